// Package integrations provides the shared HTTP client for upstream APIs.
//
// # Overview
//
// The extension directory talks to one upstream: GitHub. The [github]
// subpackage builds on [Client] to fetch repository metadata, raw JSON files
// from a commit or branch, and Ulauncher release data.
//
// # Client
//
// [Client] handles:
//   - Default headers (Accept, Authorization) on every request
//   - Retry of transient failures through [httputil.Retry]
//   - Response caching through any [cache.Cache] with a fixed TTL
//   - Rate-limit bookkeeping from X-RateLimit-Remaining
//
// Status codes are classified by [checkStatus]: 404 becomes [ErrNotFound],
// an exhausted rate limit becomes a RateLimitedError, 5xx and transport
// failures become retryable [ErrNetwork] errors. Bodies over 4 MiB are
// rejected with [ErrTooLarge] rather than truncated.
//
// [github]: github.com/ulauncher/extapi/pkg/integrations/github
// [cache.Cache]: github.com/ulauncher/extapi/pkg/cache.Cache
// [httputil.Retry]: github.com/ulauncher/extapi/pkg/httputil.Retry
package integrations
