package extension

import (
	"context"
	"encoding/json"
	"slices"

	apperrors "github.com/ulauncher/extapi/pkg/errors"
)

const versionsBlob = "versions"

// ParseVersions validates raw versions.json content.
//
// The document must be a JSON array. An entry is kept when it has a non-empty
// commit and an api_version (or legacy required_api_version) that
// [ExtractMajor] accepts; other entries are skipped. Kept entries are sorted
// by major descending, ties keep file order.
func ParseVersions(raw []byte) (*VersionsFile, error) {
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, apperrors.Wrap(apperrors.CodeInvalidVersions, err, "Error in versions.json: %v", err)
	}
	entries, ok := doc.([]any)
	if !ok {
		return nil, apperrors.New(apperrors.CodeInvalidVersions, "Invalid versions.json format. It must be a list of objects")
	}

	versions := make([]CompatibleVersion, 0, len(entries))
	for _, e := range entries {
		obj, ok := e.(map[string]any)
		if !ok {
			continue
		}
		commit := stringField(obj, "commit")
		if commit == "" {
			continue
		}
		major, ok := ExtractMajor(firstNonEmpty(stringField(obj, "api_version"), stringField(obj, "required_api_version")))
		if !ok {
			continue
		}
		versions = append(versions, CompatibleVersion{APIVersion: major, Commit: commit})
	}
	if len(versions) == 0 {
		return nil, apperrors.New(apperrors.CodeInvalidVersions, "Invalid versions.json. It must define at least one supported version")
	}

	slices.SortStableFunc(versions, func(a, b CompatibleVersion) int {
		return compareMajor(b.APIVersion, a.APIVersion)
	})
	return &VersionsFile{
		Versions:        versions,
		LatestSupported: versions[0].APIVersion,
		CommitOrBranch:  versions[0].Commit,
	}, nil
}

// Versions fetches and validates versions.json at the default branch.
// A missing file is reported with CodeJSONFileNotFound, an unusable one with
// CodeInvalidVersions.
func (r *Resolver) Versions(ctx context.Context, projectPath string, info *RepoInfo) (*VersionsFile, error) {
	info, err := r.repoInfo(ctx, projectPath, info)
	if err != nil {
		return nil, err
	}
	raw, err := r.src.FetchJSON(ctx, projectPath, info.DefaultBranch, versionsBlob)
	if err != nil {
		return nil, err
	}
	return ParseVersions(raw)
}
