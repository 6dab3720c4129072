package extension

import (
	"context"
	"time"
)

// Extension is the stored directory record. Field names on the wire and in
// the database keep the PascalCase keys existing clients rely on.
type Extension struct {
	ID                string    `json:"ID" bson:"ID"`
	User              string    `json:"User" bson:"User"`
	GithubURL         string    `json:"GithubUrl" bson:"GithubUrl"`
	ProjectPath       string    `json:"ProjectPath" bson:"ProjectPath"`
	Name              string    `json:"Name" bson:"Name"`
	Description       string    `json:"Description" bson:"Description"`
	DeveloperName     string    `json:"DeveloperName" bson:"DeveloperName"`
	Images            []string  `json:"Images" bson:"Images"`
	SupportedVersions []string  `json:"SupportedVersions" bson:"SupportedVersions"`
	GithubStars       int       `json:"GithubStars" bson:"GithubStars"`
	Published         bool      `json:"Published" bson:"Published"`
	CreatedAt         time.Time `json:"CreatedAt" bson:"CreatedAt"`
	UpdatedAt         time.Time `json:"UpdatedAt,omitzero" bson:"UpdatedAt,omitempty"`
}

// Clone returns a deep copy so stores can hand out records without sharing slices.
func (e *Extension) Clone() *Extension {
	if e == nil {
		return nil
	}
	c := *e
	c.Images = append([]string(nil), e.Images...)
	c.SupportedVersions = append([]string(nil), e.SupportedVersions...)
	return &c
}

// Manifest is the validated content of manifest.json.
// APIVersion holds the extracted major identifier.
type Manifest struct {
	APIVersion  string
	Name        string
	Description string
	Authors     string
}

// CompatibleVersion is one valid versions.json entry.
type CompatibleVersion struct {
	APIVersion string `json:"api_version"`
	Commit     string `json:"commit"`
}

// VersionsFile is the validated content of versions.json, sorted by API
// major descending.
type VersionsFile struct {
	Versions        []CompatibleVersion
	LatestSupported string
	CommitOrBranch  string
}

// RepoInfo is the subset of GitHub repository metadata the resolvers need.
type RepoInfo struct {
	StargazersCount int    `json:"stargazers_count"`
	DefaultBranch   string `json:"default_branch"`
}

// Source fetches repository data. Implementations report a missing
// repository with CodeProjectNotFound and a missing file with
// CodeJSONFileNotFound from pkg/errors.
type Source interface {
	FetchRepo(ctx context.Context, projectPath string) (*RepoInfo, error)
	FetchJSON(ctx context.Context, projectPath, ref, blob string) ([]byte, error)
}
