// Package github provides an HTTP client for the GitHub API and raw content host.
//
// # Overview
//
// [Client] implements extension.Source: it fetches repository metadata from
// https://api.github.com and JSON files (manifest.json, versions.json) from
// https://raw.githubusercontent.com at a given commit or branch.
//
// # Usage
//
//	client := github.NewClient(github.Options{
//	    User:     cfg.GitHub.User,
//	    Token:    cfg.GitHub.Token,
//	    Cache:    redisCache,
//	    CacheTTL: 10 * time.Minute,
//	})
//
//	info, err := client.FetchRepo(ctx, "ulauncher/ulauncher-timer")
//	raw, err := client.FetchJSON(ctx, "ulauncher/ulauncher-timer", info.DefaultBranch, "manifest")
//
// # Authentication
//
// With a user and token the client sends Basic credentials; with a token
// alone it sends a Bearer token. Without credentials GitHub allows 60
// requests per hour, which is not enough for a sync pass over the directory.
//
// # Errors
//
// Failures carry pkg/errors codes:
//
//   - PROJECT_NOT_FOUND: the repository is gone, renamed or private
//   - JSON_FILE_NOT_FOUND: the requested file doesn't exist at that ref
//   - RATE_LIMITED: the rate-limit window is exhausted
//   - NETWORK_ERROR: transport failures and 5xx responses (after retries)
//
// # Caching
//
// Responses are cached for the configured TTL. [Client.Fresh] returns a
// client that bypasses cache reads but still refreshes the cache; the sync
// worker uses it so stars and versions always reflect live state.
//
// # URLs
//
// [ProjectPath] turns a repository URL into "owner/repo".
package github
