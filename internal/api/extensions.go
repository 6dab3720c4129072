package api

import (
	"fmt"
	"net/http"
	"slices"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/ulauncher/extapi/pkg/auth"
	apperrors "github.com/ulauncher/extapi/pkg/errors"
	"github.com/ulauncher/extapi/pkg/extension"
	"github.com/ulauncher/extapi/pkg/integrations/github"
	"github.com/ulauncher/extapi/pkg/storage"
)

const myExtensionsLimit = 1000

// extensionRequest is the body of create and update requests.
type extensionRequest struct {
	GithubURL     string   `json:"GithubUrl"`
	Name          string   `json:"Name"`
	Description   string   `json:"Description"`
	DeveloperName string   `json:"DeveloperName"`
	Images        []string `json:"Images"`
}

func (req *extensionRequest) validate(images ImageStore, withURL bool) error {
	if err := apperrors.ValidateRequired("Name", req.Name); err != nil {
		return err
	}
	if err := apperrors.ValidateRequired("Description", req.Description); err != nil {
		return err
	}
	if err := apperrors.ValidateRequired("DeveloperName", req.DeveloperName); err != nil {
		return err
	}
	if withURL {
		if err := apperrors.ValidateRequired("GithubUrl", req.GithubURL); err != nil {
			return err
		}
	}
	if err := apperrors.ValidateImages(req.Images); err != nil {
		return err
	}
	for _, u := range req.Images {
		if err := images.ValidateURL(u); err != nil {
			return err
		}
	}
	return nil
}

type projectInfo struct {
	GithubURL     string `json:"GithubUrl"`
	Name          string `json:"Name"`
	Description   string `json:"Description"`
	DeveloperName string `json:"DeveloperName"`
}

func (s *server) listExtensions(w http.ResponseWriter, r *http.Request) {
	q, err := parseListQuery(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	page, err := s.Store.List(r.Context(), q)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func parseListQuery(r *http.Request) (storage.Query, error) {
	v := r.URL.Query()
	q := storage.Query{SortBy: v.Get("sort_by")}

	if raw := v.Get("versions"); raw != "" {
		q.Versions = strings.Split(raw, ",")
	}
	if raw := v.Get("sort_order"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return q, badRequest("allowed sort_order: -1, 1")
		}
		q.SortOrder = n
	}
	var err error
	if q.Offset, err = intParam(v.Get("offset"), 0); err != nil {
		return q, badRequest("offset must be an integer")
	}
	if q.Limit, err = intParam(v.Get("limit"), storage.MaxLimit); err != nil {
		return q, badRequest("limit must be an integer")
	}
	if err := apperrors.ValidatePagination(q.Offset, q.Limit, storage.MaxLimit); err != nil {
		return q, err
	}
	return q, q.Normalize()
}

func intParam(raw string, def int) (int, error) {
	if raw == "" {
		return def, nil
	}
	return strconv.Atoi(raw)
}

func (s *server) getExtension(w http.ResponseWriter, r *http.Request) {
	ext, err := s.Store.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeData(w, ext)
}

func (s *server) myExtensions(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserFromContext(r.Context())
	exts, err := s.Store.ListByUser(r.Context(), user, myExtensionsLimit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeData(w, exts)
}

func (s *server) validateProject(w http.ResponseWriter, r *http.Request) {
	url := r.URL.Query().Get("url")
	if url == "" {
		s.writeError(w, r, badRequest(`query argument "url" cannot be empty`))
		return
	}
	path, err := github.ProjectPath(url)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	res, err := s.Resolver.Resolve(r.Context(), path)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeData(w, projectInfo{
		GithubURL:     url,
		Name:          res.Manifest.Name,
		Description:   res.Manifest.Description,
		DeveloperName: res.Manifest.Authors,
	})
}

func (s *server) createExtension(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserFromContext(r.Context())

	var req extensionRequest
	if err := decodeJSON(r, w, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := req.validate(s.Images, true); err != nil {
		s.writeError(w, r, err)
		return
	}
	path, err := github.ProjectPath(req.GithubURL)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	res, err := s.Resolver.Resolve(r.Context(), path)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	ext := extension.New(user, path, extension.Submission{
		GithubURL:     req.GithubURL,
		Name:          req.Name,
		Description:   req.Description,
		DeveloperName: req.DeveloperName,
		Images:        req.Images,
	}, res, s.now())

	created, err := s.Store.Create(r.Context(), ext)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.Logger.Info("extension created", "id", created.ID, "user", user, "versions", created.SupportedVersions)
	writeData(w, created)
}

func (s *server) updateExtension(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserFromContext(r.Context())
	ext, err := s.ownedExtension(r, user)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	var req extensionRequest
	if err := decodeJSON(r, w, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := req.validate(s.Images, false); err != nil {
		s.writeError(w, r, err)
		return
	}

	var removed []string
	for _, img := range ext.Images {
		if !slices.Contains(req.Images, img) {
			removed = append(removed, img)
		}
	}
	if len(removed) > 0 {
		if err := s.Images.Delete(r.Context(), removed, user); err != nil {
			s.writeError(w, r, err)
			return
		}
	}

	updated, err := s.Store.Update(r.Context(), ext.ID, storage.Fields{
		Name:          &req.Name,
		Description:   &req.Description,
		DeveloperName: &req.DeveloperName,
		Images:        req.Images,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeData(w, updated)
}

func (s *server) deleteExtension(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserFromContext(r.Context())
	ext, err := s.ownedExtension(r, user)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.Images.Delete(r.Context(), ext.Images, user); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.Store.Delete(r.Context(), ext.ID, user); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.Logger.Info("extension deleted", "id", ext.ID, "user", user)
	w.WriteHeader(http.StatusNoContent)
}

// ownedExtension loads the {id} record and checks that user owns it.
func (s *server) ownedExtension(r *http.Request, user string) (*extension.Extension, error) {
	ext, err := s.Store.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		return nil, err
	}
	if ext.User != user {
		return nil, apperrors.New(apperrors.CodeForbidden, "You are not allowed to change extensions of other users")
	}
	return ext, nil
}

func errNotFound(r *http.Request) error {
	return apperrors.New(apperrors.CodeNotFound, "Not found: %s", r.URL.Path)
}

func errInternal(v any) error {
	return fmt.Errorf("panic: %v", v)
}
