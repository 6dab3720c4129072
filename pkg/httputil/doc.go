// Package httputil provides retry helpers shared by the outbound HTTP clients.
//
// # Retry
//
// [Retry] re-runs an operation with exponential backoff when it fails with a
// [RetryableError]. The GitHub client wraps these failures that way:
//
//   - Network errors
//   - 5xx server errors
//
// Rate-limit responses are not retried; waiting out the GitHub window inside a
// request would stall the sync pass. Other errors are returned immediately.
//
//	err := httputil.RetryWithBackoff(ctx, func() error {
//	    return client.Get(ctx, url, &v)
//	})
//
// # Configuration
//
// [RetryWithBackoff] uses 3 attempts with a 1 second initial delay. Call [Retry]
// directly to tune either value, or build a [Policy] from configuration.
package httputil
