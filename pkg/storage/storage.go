// Package storage defines the persistence interface for extension records.
//
// Implementations live in subpackages:
//
//   - mongo: MongoDB, used in production
//   - memory: in-process map, used by tests and local development
//
// Stores never assume multi-document transactions. Each call succeeds or
// fails on its own; uniqueness of the extension ID is enforced by the store.
package storage

import (
	"context"
	"time"

	apperrors "github.com/ulauncher/extapi/pkg/errors"
	"github.com/ulauncher/extapi/pkg/extension"
)

// MaxLimit bounds a single page of listings.
const MaxLimit = 1000

// Sort keys accepted by [Query].
const (
	SortGithubStars = "GithubStars"
	SortCreatedAt   = "CreatedAt"
)

// Store persists extension records.
type Store interface {
	// Create inserts a record. A duplicate ID fails with CodeExtensionExists.
	Create(ctx context.Context, ext *extension.Extension) (*extension.Extension, error)
	// Get fails with CodeExtensionNotFound when id is unknown.
	Get(ctx context.Context, id string) (*extension.Extension, error)
	// All returns every record matching f, unpaginated.
	All(ctx context.Context, f Filter) ([]*extension.Extension, error)
	// List returns one page of published records.
	List(ctx context.Context, q Query) (*Page, error)
	// ListByUser returns a user's records, newest first.
	ListByUser(ctx context.Context, user string, limit int) ([]*extension.Extension, error)
	// Update sets the non-nil fields and UpdatedAt.
	Update(ctx context.Context, id string, f Fields) (*extension.Extension, error)
	// Delete removes a record. A non-empty user must own it.
	Delete(ctx context.Context, id, user string) error
	Close(ctx context.Context) error
}

// Filter narrows [Store.All]. Zero values match everything.
type Filter struct {
	Published *bool
	User      string
	// Versions matches records supporting any of the listed majors.
	Versions []string
}

// Matches reports whether ext satisfies the filter.
func (f Filter) Matches(ext *extension.Extension) bool {
	if f.Published != nil && ext.Published != *f.Published {
		return false
	}
	if f.User != "" && ext.User != f.User {
		return false
	}
	return extension.CompatibleAny(f.Versions, ext.SupportedVersions)
}

// Query describes a public listing page.
type Query struct {
	Versions  []string
	SortBy    string
	SortOrder int // -1 descending, 1 ascending
	Offset    int
	Limit     int
}

// Normalize fills defaults and validates the query.
func (q *Query) Normalize() error {
	if q.SortBy == "" {
		q.SortBy = SortGithubStars
	}
	if q.SortOrder == 0 {
		q.SortOrder = -1
	}
	if q.Limit == 0 {
		q.Limit = MaxLimit
	}
	if q.SortBy != SortGithubStars && q.SortBy != SortCreatedAt {
		return apperrors.New(apperrors.CodeInvalidInput, "allowed sort_by: %s, %s", SortGithubStars, SortCreatedAt)
	}
	if q.SortOrder != -1 && q.SortOrder != 1 {
		return apperrors.New(apperrors.CodeInvalidInput, "allowed sort_order: -1, 1")
	}
	if err := apperrors.ValidatePagination(q.Offset, q.Limit, MaxLimit); err != nil {
		return err
	}
	return apperrors.ValidateVersionList(q.Versions)
}

// Page is one page of a listing.
type Page struct {
	Data    []*extension.Extension `json:"data"`
	Offset  int                    `json:"offset"`
	HasMore bool                   `json:"has_more"`
}

// Fields is a partial update. Nil fields are left untouched.
type Fields struct {
	Name              *string
	Description       *string
	DeveloperName     *string
	Images            []string
	SupportedVersions []string
	GithubStars       *int
	Published         *bool
}

// Empty reports whether no field is set.
func (f Fields) Empty() bool {
	return f.Name == nil && f.Description == nil && f.DeveloperName == nil &&
		f.Images == nil && f.SupportedVersions == nil && f.GithubStars == nil && f.Published == nil
}

// Apply writes the set fields onto ext.
func (f Fields) Apply(ext *extension.Extension, now time.Time) {
	if f.Name != nil {
		ext.Name = *f.Name
	}
	if f.Description != nil {
		ext.Description = *f.Description
	}
	if f.DeveloperName != nil {
		ext.DeveloperName = *f.DeveloperName
	}
	if f.Images != nil {
		ext.Images = append([]string(nil), f.Images...)
	}
	if f.SupportedVersions != nil {
		ext.SupportedVersions = append([]string(nil), f.SupportedVersions...)
	}
	if f.GithubStars != nil {
		ext.GithubStars = *f.GithubStars
	}
	if f.Published != nil {
		ext.Published = *f.Published
	}
	ext.UpdatedAt = now.UTC()
}

// ErrNotFound builds the error returned for an unknown id.
func ErrNotFound(id string) error {
	return apperrors.New(apperrors.CodeExtensionNotFound, "Extension \"%s\" not found", id)
}

// ErrExists builds the error returned for a duplicate id.
func ErrExists() error {
	return apperrors.New(apperrors.CodeExtensionExists, "This extension already exists")
}

// ErrNotOwner builds the error returned when user doesn't own id.
func ErrNotOwner(id string) error {
	return apperrors.New(apperrors.CodeForbidden, "Extension '%s' doesn't belong to user", id)
}

// Ptr returns a pointer to v, for building [Fields].
func Ptr[T any](v T) *T { return &v }
