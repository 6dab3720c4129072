package extension

import (
	"strings"
	"time"
)

// IDFor derives the record ID from a project path. It is a pure function of
// the path, so two submissions of the same repository collide.
func IDFor(projectPath string) string {
	return "github-" + strings.ToLower(strings.ReplaceAll(projectPath, "/", "-"))
}

// Submission is the user-provided part of a new extension.
type Submission struct {
	GithubURL     string
	Name          string
	Description   string
	DeveloperName string
	Images        []string
}

// New builds a published record for user from a submission and its resolution.
func New(user, projectPath string, sub Submission, res *Resolution, now time.Time) *Extension {
	return &Extension{
		ID:                IDFor(projectPath),
		User:              user,
		GithubURL:         sub.GithubURL,
		ProjectPath:       projectPath,
		Name:              sub.Name,
		Description:       sub.Description,
		DeveloperName:     sub.DeveloperName,
		Images:            append([]string(nil), sub.Images...),
		SupportedVersions: append([]string(nil), res.SupportedVersions...),
		GithubStars:       res.Repo.StargazersCount,
		Published:         true,
		CreatedAt:         now.UTC(),
	}
}
