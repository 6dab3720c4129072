// Package sync keeps stored extensions in step with their GitHub
// repositories.
//
// A [Syncer] walks every stored record, one at a time, and for each one:
//
//  1. fetches repository info; a repository GitHub reports as missing is
//     unpublished, any other failure leaves the record untouched
//  2. refreshes the star count
//  3. recomputes the supported API versions from versions.json, falling
//     back to the manifest's api_version when the file is missing or
//     invalid
//
// Only changed values are written, so a pass without upstream changes
// performs no writes. Failures never abort a pass; they are logged and
// counted in [observability.PassStats].
//
// [Syncer.Run] repeats passes on an interval until its context is cancelled.
package sync
