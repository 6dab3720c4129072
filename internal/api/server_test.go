package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/prometheus/client_golang/prometheus"

	apperrors "github.com/ulauncher/extapi/pkg/errors"
	"github.com/ulauncher/extapi/pkg/extension"
	"github.com/ulauncher/extapi/pkg/observability"
	"github.com/ulauncher/extapi/pkg/storage"
	"github.com/ulauncher/extapi/pkg/storage/memory"
)

const imageBase = "https://ext-images.s3.amazonaws.com/"

// fakeSource serves repositories and files from maps keyed by path and
// "path@ref/blob".
type fakeSource struct {
	repos map[string]*extension.RepoInfo
	files map[string]string
}

func (f *fakeSource) FetchRepo(_ context.Context, path string) (*extension.RepoInfo, error) {
	info, ok := f.repos[path]
	if !ok {
		return nil, apperrors.New(apperrors.CodeProjectNotFound, "Github project not found: https://github.com/%s", path)
	}
	return info, nil
}

func (f *fakeSource) FetchJSON(_ context.Context, path, ref, blob string) ([]byte, error) {
	raw, ok := f.files[path+"@"+ref+"/"+blob]
	if !ok {
		return nil, apperrors.New(apperrors.CodeJSONFileNotFound, "Unable to find file \"%s.json\" in branch \"%s\"", blob, ref)
	}
	return []byte(raw), nil
}

type fakeImages struct {
	uploaded [][]byte
	deleted  []string
	maxSize  int64
}

func (f *fakeImages) Upload(_ context.Context, user string, files []io.Reader) ([]string, error) {
	var urls []string
	for i, r := range files {
		data, _ := io.ReadAll(r)
		if int64(len(data)) > f.maxSize {
			return nil, apperrors.New(apperrors.CodeFileTooLarge, "File too large")
		}
		f.uploaded = append(f.uploaded, data)
		urls = append(urls, imageBase+user+"/"+string(rune('a'+i))+".png")
	}
	return urls, nil
}

func (f *fakeImages) Delete(_ context.Context, urls []string, _ string) error {
	f.deleted = append(f.deleted, urls...)
	return nil
}

func (f *fakeImages) ValidateURL(u string) error {
	if !strings.HasPrefix(u, imageBase) {
		return apperrors.New(apperrors.CodeInvalidImageURL, "You cannot use external image URLs")
	}
	return nil
}

func (f *fakeImages) MaxSize() int64 { return f.maxSize }

type fakeReleases map[string]string

func (f fakeReleases) FetchRelease(_ context.Context, version string) (json.RawMessage, error) {
	if r, ok := f[version]; ok {
		return json.RawMessage(r), nil
	}
	return nil, apperrors.New(apperrors.CodeNotFound, "Release version %s not found", version)
}

type tokenVerifier map[string]string

func (v tokenVerifier) Verify(_ context.Context, token string) (string, error) {
	if u, ok := v[token]; ok {
		return u, nil
	}
	return "", apperrors.New(apperrors.CodeUnauthorized, "Unauthorized. invalid token")
}

type fixture struct {
	handler http.Handler
	store   *memory.Store
	src     *fakeSource
	images  *fakeImages
}

var testNow = time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

func newFixture(t *testing.T, opts ...ServerOption) *fixture {
	t.Helper()
	logger := log.NewWithOptions(io.Discard, log.Options{})
	src := &fakeSource{
		repos: map[string]*extension.RepoInfo{
			"owner/timer": {StargazersCount: 42, DefaultBranch: "main"},
		},
		files: map[string]string{
			"owner/timer@main/versions": `[{"required_api_version":"^2.0.0","commit":"py2"},{"api_version":"3","commit":"main"}]`,
			"owner/timer@main/manifest": `{"api_version":"3","name":"Timer","description":"Countdown","authors":"Jane"}`,
		},
	}
	f := &fixture{
		store:  memory.New(),
		src:    src,
		images: &fakeImages{maxSize: 1024},
	}
	f.store.SetClock(func() time.Time { return testNow })
	deps := Deps{
		Store:    f.store,
		Resolver: extension.NewResolver(src, logger),
		Releases: fakeReleases{"5.0.0": `{"tag_name":"5.0.0","name":"Ulauncher 5"}`},
		Images:   f.images,
		Verifier: tokenVerifier{"alice-token": "alice", "bob-token": "bob"},
		Logger:   logger,
		Health: map[string]HealthCheck{
			"db": func(context.Context) error { return nil },
		},
		Commit: "abc123",
	}
	f.handler = NewServer(deps, append([]ServerOption{WithClock(func() time.Time { return testNow })}, opts...)...)
	return f
}

func (f *fixture) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		r = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, r)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %s: %v", rec.Body.String(), err)
	}
	return v
}

func assertError(t *testing.T, rec *httptest.ResponseRecorder, status int, name string) {
	t.Helper()
	if rec.Code != status {
		t.Fatalf("status = %d, want %d (body %s)", rec.Code, status, rec.Body.String())
	}
	resp := decode[errorResponse](t, rec)
	if resp.Error.Status != status || resp.Error.Error != name {
		t.Errorf("error = %+v, want status %d name %s", resp.Error, status, name)
	}
}

func validCreate() map[string]any {
	return map[string]any{
		"GithubUrl":     "https://github.com/owner/timer",
		"Name":          "Timer",
		"Description":   "Countdown timer",
		"DeveloperName": "Jane",
		"Images":        []string{imageBase + "alice/a.png"},
	}
}

func TestCreateExtension(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/extensions", "alice-token", validCreate())
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	ext := decode[struct{ Data extension.Extension }](t, rec).Data
	if ext.ID != "github-owner-timer" || ext.User != "alice" || !ext.Published {
		t.Errorf("created = %+v", ext)
	}
	if ext.GithubStars != 42 {
		t.Errorf("GithubStars = %d", ext.GithubStars)
	}
	if !slices.Contains(ext.SupportedVersions, "2") || !slices.Contains(ext.SupportedVersions, "3") {
		t.Errorf("SupportedVersions = %v", ext.SupportedVersions)
	}
	if !ext.CreatedAt.Equal(testNow) {
		t.Errorf("CreatedAt = %v", ext.CreatedAt)
	}

	rec = f.do(t, http.MethodPost, "/extensions", "bob-token", validCreate())
	assertError(t, rec, http.StatusBadRequest, "ExtensionAlreadyExistsError")
}

func TestCreateExtension_Validation(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name   string
		mutate func(map[string]any)
		status int
		err    string
		desc   string
	}{
		{"missing name", func(b map[string]any) { delete(b, "Name") }, 400, "ValidationError", "Name cannot be empty"},
		{"missing url", func(b map[string]any) { b["GithubUrl"] = "" }, 400, "ValidationError", "GithubUrl cannot be empty"},
		{"no images", func(b map[string]any) { b["Images"] = []string{} }, 400, "ValidationError", ""},
		{"images not a list", func(b map[string]any) { delete(b, "Images") }, 400, "ValidationError", "Images must be a list of URLs"},
		{"external image", func(b map[string]any) { b["Images"] = []string{"https://evil.example/x.png"} }, 400, "ImageUrlValidationError", ""},
		{"bad github url", func(b map[string]any) { b["GithubUrl"] = "https://gitlab.com/owner/timer" }, 400, "InvalidGithubUrlError", "Invalid GithubUrl: https://gitlab.com/owner/timer"},
		{"unknown repo", func(b map[string]any) { b["GithubUrl"] = "https://github.com/owner/missing" }, 400, "ProjectNotFoundError", "Github project not found: https://github.com/owner/missing"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body := validCreate()
			tt.mutate(body)
			rec := f.do(t, http.MethodPost, "/extensions", "alice-token", body)
			assertError(t, rec, tt.status, tt.err)
			if tt.desc != "" {
				if got := decode[errorResponse](t, rec).Error.Description; got != tt.desc {
					t.Errorf("description = %q, want %q", got, tt.desc)
				}
			}
		})
	}
}

func TestCreateExtension_ManifestFallback(t *testing.T) {
	f := newFixture(t)
	f.src.repos["owner/legacy"] = &extension.RepoInfo{StargazersCount: 1, DefaultBranch: "master"}
	f.src.files["owner/legacy@master/manifest"] = `{"required_api_version":"~2.1","name":"Legacy","description":"Old","developer_name":"Joe"}`

	body := validCreate()
	body["GithubUrl"] = "https://github.com/owner/legacy"
	rec := f.do(t, http.MethodPost, "/extensions", "alice-token", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	ext := decode[struct{ Data extension.Extension }](t, rec).Data
	if !slices.Equal(ext.SupportedVersions, []string{"2"}) {
		t.Errorf("SupportedVersions = %v, want [2]", ext.SupportedVersions)
	}
}

func TestCreateExtension_InvalidVersions(t *testing.T) {
	f := newFixture(t)
	f.src.files["owner/timer@main/versions"] = `{"api_version":"2"}`

	rec := f.do(t, http.MethodPost, "/extensions", "alice-token", validCreate())
	assertError(t, rec, http.StatusBadRequest, "VersionsValidationError")
}

func TestAuthRequired(t *testing.T) {
	f := newFixture(t)
	for _, rt := range []struct{ method, path string }{
		{http.MethodGet, "/my/extensions"},
		{http.MethodGet, "/validate-project?url=https://github.com/owner/timer"},
		{http.MethodPost, "/extensions"},
		{http.MethodPatch, "/extensions/x"},
		{http.MethodDelete, "/extensions/x"},
		{http.MethodPost, "/upload-images"},
	} {
		rec := f.do(t, rt.method, rt.path, "", nil)
		assertError(t, rec, http.StatusUnauthorized, "AuthError")

		rec = f.do(t, rt.method, rt.path, "forged", nil)
		assertError(t, rec, http.StatusUnauthorized, "AuthError")
	}
}

func TestListExtensions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	for i, e := range []*extension.Extension{
		{ProjectPath: "a/one", GithubStars: 5, Published: true, SupportedVersions: []string{"2"}},
		{ProjectPath: "b/two", GithubStars: 50, Published: true, SupportedVersions: []string{"3"}},
		{ProjectPath: "c/three", GithubStars: 500, Published: false, SupportedVersions: []string{"3"}},
	} {
		e.CreatedAt = testNow.Add(time.Duration(i) * time.Hour)
		if _, err := f.store.Create(ctx, e); err != nil {
			t.Fatal(err)
		}
	}

	rec := f.do(t, http.MethodGet, "/extensions", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	page := decode[storage.Page](t, rec)
	if len(page.Data) != 2 || page.Data[0].ProjectPath != "b/two" || page.HasMore {
		t.Errorf("page = %+v", page)
	}

	rec = f.do(t, http.MethodGet, "/extensions?versions=2&limit=1", "", nil)
	page = decode[storage.Page](t, rec)
	if len(page.Data) != 1 || page.Data[0].ProjectPath != "a/one" {
		t.Errorf("versions filter page = %+v", page)
	}

	rec = f.do(t, http.MethodGet, "/extensions?sort_by=CreatedAt&sort_order=1&limit=1", "", nil)
	page = decode[storage.Page](t, rec)
	if len(page.Data) != 1 || page.Data[0].ProjectPath != "a/one" || !page.HasMore {
		t.Errorf("sorted page = %+v", page)
	}

	for _, q := range []string{"sort_by=Name", "sort_order=2", "offset=-1", "limit=0", "limit=1001", "limit=abc", "versions=2,x"} {
		rec := f.do(t, http.MethodGet, "/extensions?"+q, "", nil)
		assertError(t, rec, http.StatusBadRequest, "ValidationError")
	}
}

func TestGetExtension(t *testing.T) {
	f := newFixture(t)
	f.do(t, http.MethodPost, "/extensions", "alice-token", validCreate())

	rec := f.do(t, http.MethodGet, "/extensions/github-owner-timer", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if got := decode[struct{ Data extension.Extension }](t, rec).Data.Name; got != "Timer" {
		t.Errorf("Name = %q", got)
	}

	rec = f.do(t, http.MethodGet, "/extensions/nope", "", nil)
	assertError(t, rec, http.StatusNotFound, "ExtensionNotFoundError")
	if got := decode[errorResponse](t, rec).Error.Description; got != `Extension "nope" not found` {
		t.Errorf("description = %q", got)
	}
}

func TestMyExtensions(t *testing.T) {
	f := newFixture(t)
	f.do(t, http.MethodPost, "/extensions", "alice-token", validCreate())

	rec := f.do(t, http.MethodGet, "/my/extensions", "alice-token", nil)
	if got := decode[struct{ Data []extension.Extension }](t, rec).Data; len(got) != 1 {
		t.Errorf("alice has %d extensions", len(got))
	}
	rec = f.do(t, http.MethodGet, "/my/extensions", "bob-token", nil)
	if got := decode[struct{ Data []extension.Extension }](t, rec).Data; len(got) != 0 {
		t.Errorf("bob has %d extensions", len(got))
	}
}

func TestValidateProject(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/validate-project?url=https://github.com/owner/timer", "alice-token", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	info := decode[struct{ Data projectInfo }](t, rec).Data
	want := projectInfo{GithubURL: "https://github.com/owner/timer", Name: "Timer", Description: "Countdown", DeveloperName: "Jane"}
	if info != want {
		t.Errorf("info = %+v, want %+v", info, want)
	}

	rec = f.do(t, http.MethodGet, "/validate-project", "alice-token", nil)
	assertError(t, rec, http.StatusBadRequest, "ValidationError")

	f.src.files["owner/timer@main/manifest"] = `{"api_version":"3","name":"","description":"x","authors":"y"}`
	rec = f.do(t, http.MethodGet, "/validate-project?url=https://github.com/owner/timer", "alice-token", nil)
	assertError(t, rec, http.StatusBadRequest, "ManifestValidationError")
}

func TestUpdateExtension(t *testing.T) {
	f := newFixture(t)
	body := validCreate()
	body["Images"] = []string{imageBase + "alice/a.png", imageBase + "alice/b.png"}
	f.do(t, http.MethodPost, "/extensions", "alice-token", body)

	update := map[string]any{
		"Name":          "Timer 2",
		"Description":   "Better",
		"DeveloperName": "Jane D",
		"Images":        []string{imageBase + "alice/b.png", imageBase + "alice/c.png"},
	}

	rec := f.do(t, http.MethodPatch, "/extensions/github-owner-timer", "bob-token", update)
	assertError(t, rec, http.StatusForbidden, "AuthError")

	rec = f.do(t, http.MethodPatch, "/extensions/missing", "alice-token", update)
	assertError(t, rec, http.StatusNotFound, "ExtensionNotFoundError")

	rec = f.do(t, http.MethodPatch, "/extensions/github-owner-timer", "alice-token", update)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	ext := decode[struct{ Data extension.Extension }](t, rec).Data
	if ext.Name != "Timer 2" || len(ext.Images) != 2 || ext.UpdatedAt.IsZero() {
		t.Errorf("updated = %+v", ext)
	}
	if ext.GithubStars != 42 || ext.User != "alice" {
		t.Errorf("update must not touch other fields: %+v", ext)
	}
	if !slices.Equal(f.images.deleted, []string{imageBase + "alice/a.png"}) {
		t.Errorf("deleted images = %v", f.images.deleted)
	}
}

func TestDeleteExtension(t *testing.T) {
	f := newFixture(t)
	f.do(t, http.MethodPost, "/extensions", "alice-token", validCreate())

	rec := f.do(t, http.MethodDelete, "/extensions/github-owner-timer", "bob-token", nil)
	assertError(t, rec, http.StatusForbidden, "AuthError")

	rec = f.do(t, http.MethodDelete, "/extensions/github-owner-timer", "alice-token", nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if len(f.images.deleted) != 1 {
		t.Errorf("images should be deleted, got %v", f.images.deleted)
	}
	if _, err := f.store.Get(context.Background(), "github-owner-timer"); !apperrors.Is(err, apperrors.CodeExtensionNotFound) {
		t.Errorf("record should be gone: %v", err)
	}
}

func multipartBody(t *testing.T, files map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for name, content := range files {
		fw, err := mw.CreateFormFile(name, name+".png")
		if err != nil {
			t.Fatal(err)
		}
		if _, err := fw.Write([]byte(content)); err != nil {
			t.Fatal(err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}
	return &buf, mw.FormDataContentType()
}

func TestUploadImages(t *testing.T) {
	f := newFixture(t)

	upload := func(files map[string]string) *httptest.ResponseRecorder {
		body, ct := multipartBody(t, files)
		req := httptest.NewRequest(http.MethodPost, "/upload-images", body)
		req.Header.Set("Content-Type", ct)
		req.Header.Set("Authorization", "Bearer alice-token")
		rec := httptest.NewRecorder()
		f.handler.ServeHTTP(rec, req)
		return rec
	}

	rec := upload(map[string]string{"one": "png-1", "two": "png-2"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	urls := decode[struct{ Data []string }](t, rec).Data
	if len(urls) != 2 || !strings.HasPrefix(urls[0], imageBase+"alice/") {
		t.Errorf("urls = %v", urls)
	}

	rec = upload(map[string]string{})
	assertError(t, rec, http.StatusBadRequest, "ValidationError")

	rec = upload(map[string]string{"big": strings.Repeat("x", 2048)})
	assertError(t, rec, http.StatusRequestEntityTooLarge, "FileTooLargeError")
}

func TestGetRelease(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/misc/ulauncher-releases/5.0.0", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if got := decode[map[string]string](t, rec)["tag_name"]; got != "5.0.0" {
		t.Errorf("tag_name = %q", got)
	}

	rec = f.do(t, http.MethodGet, "/misc/ulauncher-releases/0.0.1", "", nil)
	assertError(t, rec, http.StatusNotFound, "NotFoundError")
}

func TestHealthzAndAPIDoc(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/healthz", "", nil)
	if rec.Code != http.StatusOK || decode[healthResponse](t, rec).Status != "ok" {
		t.Errorf("healthz = %d %s", rec.Code, rec.Body.String())
	}

	rec = f.do(t, http.MethodGet, "/api-doc", "", nil)
	doc := decode[apiDocResponse](t, rec)
	if doc.Commit != "abc123" {
		t.Errorf("commit = %q", doc.Commit)
	}
	if !slices.Contains(doc.Routes, route{Method: "POST", Pattern: "/extensions"}) {
		t.Errorf("routes = %v", doc.Routes)
	}
}

func TestHealthz_Failing(t *testing.T) {
	f := newFixture(t)
	f.handler = NewServer(Deps{
		Store:    f.store,
		Verifier: tokenVerifier{},
		Logger:   log.NewWithOptions(io.Discard, log.Options{}),
		Health: map[string]HealthCheck{
			"db":    func(context.Context) error { return nil },
			"cache": func(context.Context) error { return errors.New("connection refused") },
		},
	})

	rec := f.do(t, http.MethodGet, "/healthz", "", nil)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d", rec.Code)
	}
	resp := decode[healthResponse](t, rec)
	if resp.Checks["cache"] != "connection refused" || resp.Checks["db"] != "ok" {
		t.Errorf("checks = %v", resp.Checks)
	}
}

func TestNotFoundAndCORS(t *testing.T) {
	f := newFixture(t, WithCORS("https://ext.ulauncher.io"))

	rec := f.do(t, http.MethodGet, "/nope", "", nil)
	assertError(t, rec, http.StatusNotFound, "NotFoundError")

	req := httptest.NewRequest(http.MethodOptions, "/extensions", nil)
	req.Header.Set("Origin", "https://ext.ulauncher.io")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec = httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://ext.ulauncher.io" {
		t.Errorf("Access-Control-Allow-Origin = %q", got)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	m := observability.NewMetrics(prometheus.NewRegistry())
	f := newFixture(t, WithMetrics(m))

	f.do(t, http.MethodGet, "/extensions", "", nil)
	rec := f.do(t, http.MethodGet, "/metrics", "", nil)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "extapi_") {
		t.Errorf("metrics = %d %s", rec.Code, rec.Body.String())
	}
}
