// Package extension models Ulauncher extensions and resolves their
// compatibility metadata from a GitHub repository.
//
// # Overview
//
// An extension is identified by its GitHub project path ("owner/repo"). Two
// files in the repository describe it:
//
//   - manifest.json: name, description, authors and the extension API version
//   - versions.json (optional): a list of {api_version, commit} pairs, one per
//     supported API major version
//
// Only the major number of a version specifier is significant. "^2.3.0",
// "v2" and "2" all reduce to "2" through [ExtractMajor], and compatibility is
// exact string equality on those majors ([Compatible]).
//
// # Resolution
//
// [Resolver] fetches both files through a [Source] (implemented by the GitHub
// client) and validates them:
//
//	r := extension.NewResolver(gh, logger)
//	res, err := r.Resolve(ctx, "ulauncher/ulauncher-timer")
//	// res.SupportedVersions == ["2"], res.Manifest.Name == "Timer"
//
// A missing versions.json is not an error: the manifest's own api_version
// becomes the sole supported version. Callers detect the condition with
// errors.Is(err, CodeJSONFileNotFound) from pkg/errors.
package extension
