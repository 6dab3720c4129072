package extension

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"

	apperrors "github.com/ulauncher/extapi/pkg/errors"
)

const manifestBlob = "manifest"

// ParseManifest validates raw manifest.json content.
//
// Legacy field names are accepted: required_api_version for api_version and
// developer_name for authors. When both are present the new name wins.
// authors may be a string or a list of strings.
func ParseManifest(raw []byte) (*Manifest, error) {
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, apperrors.Wrap(apperrors.CodeInvalidManifest, err, "Error in manifest.json: %v", err)
	}

	m := &Manifest{
		Name:        stringField(doc, "name"),
		Description: stringField(doc, "description"),
		Authors:     firstNonEmpty(authorsField(doc, "authors"), stringField(doc, "developer_name")),
	}
	rawVersion := firstNonEmpty(stringField(doc, "api_version"), stringField(doc, "required_api_version"))

	switch {
	case rawVersion == "":
		return nil, apperrors.New(apperrors.CodeInvalidManifest, "api_version is empty")
	case m.Name == "":
		return nil, apperrors.New(apperrors.CodeInvalidManifest, "name is empty")
	case m.Description == "":
		return nil, apperrors.New(apperrors.CodeInvalidManifest, "description is empty")
	case m.Authors == "":
		return nil, apperrors.New(apperrors.CodeInvalidManifest, "authors is empty")
	}

	major, ok := ExtractMajor(rawVersion)
	if !ok {
		return nil, apperrors.New(apperrors.CodeInvalidManifest, "api_version %q is not a valid version", rawVersion)
	}
	m.APIVersion = major
	return m, nil
}

// Manifest fetches and validates manifest.json for projectPath.
// Repository info is fetched when info is nil. The manifest is read at the
// commit of the highest supported version when a valid versions.json exists,
// and at the default branch otherwise.
func (r *Resolver) Manifest(ctx context.Context, projectPath string, info *RepoInfo) (*Manifest, error) {
	info, err := r.repoInfo(ctx, projectPath, info)
	if err != nil {
		return nil, err
	}
	ref := info.DefaultBranch
	if vf, err := r.Versions(ctx, projectPath, info); err == nil {
		ref = vf.CommitOrBranch
	}
	return r.ManifestAt(ctx, projectPath, ref)
}

// ManifestAt fetches and validates manifest.json at a specific commit or branch.
func (r *Resolver) ManifestAt(ctx context.Context, projectPath, ref string) (*Manifest, error) {
	raw, err := r.src.FetchJSON(ctx, projectPath, ref, manifestBlob)
	if err != nil {
		return nil, err
	}
	m, err := ParseManifest(raw)
	if err != nil {
		r.logger.Debug("invalid manifest", "project", projectPath, "ref", ref, "error", err)
		return nil, err
	}
	return m, nil
}

// stringField returns doc[key] as a trimmed string. Integral numbers are
// accepted so {"api_version": 2} works.
func stringField(doc map[string]any, key string) string {
	switch v := doc[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case float64:
		if v == float64(int64(v)) {
			return strconv.FormatInt(int64(v), 10)
		}
	}
	return ""
}

func authorsField(doc map[string]any, key string) string {
	list, ok := doc[key].([]any)
	if !ok {
		return stringField(doc, key)
	}
	names := make([]string, 0, len(list))
	for _, item := range list {
		switch a := item.(type) {
		case string:
			if s := strings.TrimSpace(a); s != "" {
				names = append(names, s)
			}
		case map[string]any:
			if s := stringField(a, "name"); s != "" {
				names = append(names, s)
			}
		}
	}
	return strings.Join(names, ", ")
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
