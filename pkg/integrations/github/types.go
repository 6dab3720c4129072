package github

import "encoding/json"

// repoResponse is the subset of GET /repos/{owner}/{repo} that is used.
type repoResponse struct {
	FullName      string `json:"full_name"`
	Stars         int    `json:"stargazers_count"`
	DefaultBranch string `json:"default_branch"`
	Archived      bool   `json:"archived"`
}

// releaseHeader is decoded from each release to match the tag; the release
// itself is passed through untouched.
type releaseHeader struct {
	TagName string `json:"tag_name"`
}

// Release is a GitHub release document as returned by the API.
type Release = json.RawMessage
