package extension

import (
	"context"

	"github.com/charmbracelet/log"

	apperrors "github.com/ulauncher/extapi/pkg/errors"
)

// Resolver validates extension metadata fetched from a [Source].
type Resolver struct {
	src    Source
	logger *log.Logger
}

// NewResolver creates a Resolver. A nil logger selects log.Default().
func NewResolver(src Source, logger *log.Logger) *Resolver {
	if logger == nil {
		logger = log.Default()
	}
	return &Resolver{src: src, logger: logger}
}

// Resolution is everything the create and validate flows need to know about
// a repository.
type Resolution struct {
	ProjectPath string
	Repo        *RepoInfo
	Manifest    *Manifest
	// Versions is nil when the repository has no versions.json.
	Versions          *VersionsFile
	SupportedVersions []string
}

// Resolve fetches repository info, versions.json and manifest.json for a
// submission. A missing versions.json falls back to the manifest's
// api_version; an invalid one is an error.
func (r *Resolver) Resolve(ctx context.Context, projectPath string) (*Resolution, error) {
	info, err := r.src.FetchRepo(ctx, projectPath)
	if err != nil {
		return nil, err
	}

	res := &Resolution{ProjectPath: projectPath, Repo: info}
	ref := info.DefaultBranch

	vf, err := r.Versions(ctx, projectPath, info)
	switch {
	case err == nil:
		res.Versions = vf
		ref = vf.CommitOrBranch
	case apperrors.Is(err, apperrors.CodeJSONFileNotFound):
		r.logger.Debug("no versions.json, using manifest api_version", "project", projectPath)
	default:
		return nil, err
	}

	m, err := r.ManifestAt(ctx, projectPath, ref)
	if err != nil {
		return nil, err
	}
	res.Manifest = m

	if res.Versions != nil {
		res.SupportedVersions = SupportedVersions(res.Versions)
	} else {
		res.SupportedVersions = []string{m.APIVersion}
	}
	return res, nil
}

func (r *Resolver) repoInfo(ctx context.Context, projectPath string, info *RepoInfo) (*RepoInfo, error) {
	if info != nil {
		return info, nil
	}
	return r.src.FetchRepo(ctx, projectPath)
}
