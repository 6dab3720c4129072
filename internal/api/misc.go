package api

import (
	"context"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ulauncher/extapi/pkg/auth"
	"github.com/ulauncher/extapi/pkg/buildinfo"
	apperrors "github.com/ulauncher/extapi/pkg/errors"
)

const (
	healthTimeout = 5 * time.Second
	// maxUploadFiles bounds a single upload request.
	maxUploadFiles = 10
)

func (s *server) uploadImages(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserFromContext(r.Context())

	r.Body = http.MaxBytesReader(w, r.Body, s.Images.MaxSize()*maxUploadFiles+maxJSONBody)
	if err := r.ParseMultipartForm(s.Images.MaxSize()); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.writeError(w, r, apperrors.New(apperrors.CodeFileTooLarge, "Request too large"))
			return
		}
		s.writeError(w, r, badRequest("Invalid multipart form: %v", err))
		return
	}
	defer r.MultipartForm.RemoveAll()

	var headers []*multipart.FileHeader
	for _, name := range sortedKeys(r.MultipartForm.File) {
		headers = append(headers, r.MultipartForm.File[name]...)
	}
	if len(headers) == 0 {
		s.writeError(w, r, badRequest("Files were not provided"))
		return
	}
	if len(headers) > maxUploadFiles {
		s.writeError(w, r, badRequest("You cannot upload more than %d files at once", maxUploadFiles))
		return
	}

	files := make([]io.Reader, 0, len(headers))
	for _, h := range headers {
		f, err := h.Open()
		if err != nil {
			s.writeError(w, r, badRequest("Cannot read %s: %v", h.Filename, err))
			return
		}
		defer f.Close()
		files = append(files, f)
	}

	urls, err := s.Images.Upload(r.Context(), user, files)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.Logger.Info("images uploaded", "user", user, "count", len(urls))
	writeData(w, urls)
}

func (s *server) getRelease(w http.ResponseWriter, r *http.Request) {
	release, err := s.Releases.FetchRelease(r.Context(), chi.URLParam(r, "version"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(release)
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

func (s *server) healthz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
	defer cancel()

	resp := healthResponse{Status: "ok", Checks: map[string]string{}}
	status := http.StatusOK
	for _, name := range sortedKeys(s.Health) {
		if err := s.Health[name](ctx); err != nil {
			s.Logger.Warn("health check failed", "check", name, "error", err)
			resp.Checks[name] = err.Error()
			resp.Status = "unavailable"
			status = http.StatusServiceUnavailable
			continue
		}
		resp.Checks[name] = "ok"
	}
	writeJSON(w, status, resp)
}

type route struct {
	Method  string `json:"method"`
	Pattern string `json:"pattern"`
}

type apiDocResponse struct {
	Version   string  `json:"version"`
	Commit    string  `json:"commit"`
	BuildDate string  `json:"build_date,omitempty"`
	Routes    []route `json:"routes"`
}

func (s *server) apiDoc(w http.ResponseWriter, r *http.Request) {
	doc := apiDocResponse{Version: buildinfo.Version}
	doc.Commit, doc.BuildDate = buildinfo.Deployment(s.Commit, s.BuildDate)
	_ = chi.Walk(s.router, func(method, pattern string, _ http.Handler, _ ...func(http.Handler) http.Handler) error {
		if pattern == "/api-doc" || strings.HasSuffix(pattern, "/*") {
			return nil
		}
		doc.Routes = append(doc.Routes, route{Method: method, Pattern: pattern})
		return nil
	})
	slices.SortFunc(doc.Routes, func(a, b route) int {
		if c := strings.Compare(a.Pattern, b.Pattern); c != 0 {
			return c
		}
		return strings.Compare(a.Method, b.Method)
	})
	writeJSON(w, http.StatusOK, doc)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
