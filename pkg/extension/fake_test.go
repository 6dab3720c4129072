package extension

import (
	"context"

	apperrors "github.com/ulauncher/extapi/pkg/errors"
)

// fakeSource serves repositories and files from maps. Files are keyed by
// "path@ref/blob".
type fakeSource struct {
	repos     map[string]*RepoInfo
	files     map[string]string
	repoErr   error
	repoCalls int
	fileCalls []string
}

func newFakeSource() *fakeSource {
	return &fakeSource{repos: map[string]*RepoInfo{}, files: map[string]string{}}
}

func (f *fakeSource) FetchRepo(_ context.Context, projectPath string) (*RepoInfo, error) {
	f.repoCalls++
	if f.repoErr != nil {
		return nil, f.repoErr
	}
	info, ok := f.repos[projectPath]
	if !ok {
		return nil, apperrors.New(apperrors.CodeProjectNotFound, "Github project not found: https://github.com/%s", projectPath)
	}
	return info, nil
}

func (f *fakeSource) FetchJSON(_ context.Context, projectPath, ref, blob string) ([]byte, error) {
	key := projectPath + "@" + ref + "/" + blob
	f.fileCalls = append(f.fileCalls, key)
	raw, ok := f.files[key]
	if !ok {
		return nil, apperrors.New(apperrors.CodeJSONFileNotFound, "Unable to find file \"%s.json\" in branch \"%s\"", blob, ref)
	}
	return []byte(raw), nil
}
