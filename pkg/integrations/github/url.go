package github

import (
	"regexp"
	"strings"

	apperrors "github.com/ulauncher/extapi/pkg/errors"
)

var (
	githubURLPattern = regexp.MustCompile(`(?i)^https?://github\.com/([\w-]+/[\w-]+)/?$`)
	// owner/repo as accepted in a repository URL
	projectPathPattern = regexp.MustCompile(`^[\w-]+/[\w-]+$`)
)

// ProjectPath extracts "owner/repo" from a repository URL such as
// https://github.com/owner/repo. A trailing slash is tolerated; anything else
// (other hosts, sub-paths, .git suffixes) is rejected with CodeInvalidGithubURL.
func ProjectPath(githubURL string) (string, error) {
	m := githubURLPattern.FindStringSubmatch(strings.TrimSpace(githubURL))
	if m == nil {
		return "", apperrors.New(apperrors.CodeInvalidGithubURL, "Invalid GithubUrl: %s", githubURL)
	}
	return m[1], nil
}

// ParseRepoRef accepts either a repository URL or a bare "owner/repo" and
// returns the project path.
func ParseRepoRef(ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	if projectPathPattern.MatchString(ref) {
		return ref, nil
	}
	return ProjectPath(ref)
}

// URL returns the canonical repository URL for a project path.
func URL(projectPath string) string {
	return "https://github.com/" + projectPath
}
