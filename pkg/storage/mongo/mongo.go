// Package mongo implements storage.Store on MongoDB.
//
// Records live in the "Extensions" collection with the PascalCase field
// names of [extension.Extension]. The unique index on ID (see
// [Store.EnsureIndexes]) resolves concurrent submissions of the same
// repository.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/ulauncher/extapi/pkg/extension"
	"github.com/ulauncher/extapi/pkg/storage"
)

const (
	extensionsCollection = "Extensions"
	migrationsCollection = "Migrations"

	defaultConnectTimeout = 10 * time.Second
)

// Store is a MongoDB-backed storage.Store.
type Store struct {
	client     *mongo.Client
	db         *mongo.Database
	extensions *mongo.Collection
	migrations *mongo.Collection
	now        func() time.Time
}

// Connect opens a client for uri, pings it and selects database dbName.
func Connect(ctx context.Context, uri, dbName string) (*Store, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultConnectTimeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect to mongodb: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongodb: %w", err)
	}
	return New(client, dbName), nil
}

// New wraps an existing client.
func New(client *mongo.Client, dbName string) *Store {
	db := client.Database(dbName)
	return &Store{
		client:     client,
		db:         db,
		extensions: db.Collection(extensionsCollection),
		migrations: db.Collection(migrationsCollection),
		now:        time.Now,
	}
}

// Ping checks the connection; used by the health endpoint.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, nil)
}

func (s *Store) Create(ctx context.Context, ext *extension.Extension) (*extension.Extension, error) {
	c := ext.Clone()
	if c.ID == "" {
		c.ID = extension.IDFor(c.ProjectPath)
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = s.now().UTC()
	}
	if c.Images == nil {
		c.Images = []string{}
	}
	if c.SupportedVersions == nil {
		c.SupportedVersions = []string{}
	}

	if _, err := s.extensions.InsertOne(ctx, c); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, storage.ErrExists()
		}
		return nil, fmt.Errorf("insert extension %s: %w", c.ID, err)
	}
	return c, nil
}

func (s *Store) Get(ctx context.Context, id string) (*extension.Extension, error) {
	var ext extension.Extension
	err := s.extensions.FindOne(ctx, bson.M{"ID": id}).Decode(&ext)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, storage.ErrNotFound(id)
	}
	if err != nil {
		return nil, fmt.Errorf("find extension %s: %w", id, err)
	}
	return &ext, nil
}

func (s *Store) All(ctx context.Context, f storage.Filter) ([]*extension.Extension, error) {
	opts := options.Find().SetSort(bson.D{{Key: "CreatedAt", Value: 1}})
	return s.find(ctx, filterDoc(f), opts)
}

func (s *Store) List(ctx context.Context, q storage.Query) (*storage.Page, error) {
	if err := q.Normalize(); err != nil {
		return nil, err
	}
	opts := options.Find().
		SetSort(bson.D{{Key: q.SortBy, Value: q.SortOrder}}).
		SetSkip(int64(q.Offset)).
		SetLimit(int64(q.Limit + 1))

	exts, err := s.find(ctx, filterDoc(storage.Filter{Published: storage.Ptr(true), Versions: q.Versions}), opts)
	if err != nil {
		return nil, err
	}
	page := &storage.Page{Offset: q.Offset, Data: exts}
	if len(exts) > q.Limit {
		page.HasMore = true
		page.Data = exts[:q.Limit]
	}
	return page, nil
}

func (s *Store) ListByUser(ctx context.Context, user string, limit int) ([]*extension.Extension, error) {
	opts := options.Find().SetSort(bson.D{{Key: "CreatedAt", Value: -1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	return s.find(ctx, bson.M{"User": user}, opts)
}

func (s *Store) Update(ctx context.Context, id string, f storage.Fields) (*extension.Extension, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var ext extension.Extension
	err := s.extensions.FindOneAndUpdate(ctx, bson.M{"ID": id}, bson.M{"$set": setDoc(f, s.now())}, opts).Decode(&ext)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, storage.ErrNotFound(id)
	}
	if err != nil {
		return nil, fmt.Errorf("update extension %s: %w", id, err)
	}
	return &ext, nil
}

func (s *Store) Delete(ctx context.Context, id, user string) error {
	filter := bson.M{"ID": id}
	if user != "" {
		filter["User"] = user
	}
	res, err := s.extensions.DeleteOne(ctx, filter)
	if err != nil {
		return fmt.Errorf("delete extension %s: %w", id, err)
	}
	if res.DeletedCount > 0 {
		return nil
	}
	// Nothing matched: tell a missing record from someone else's.
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	return storage.ErrNotOwner(id)
}

func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func (s *Store) find(ctx context.Context, filter any, opts *options.FindOptions) ([]*extension.Extension, error) {
	cur, err := s.extensions.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("find extensions: %w", err)
	}
	exts := []*extension.Extension{}
	if err := cur.All(ctx, &exts); err != nil {
		return nil, fmt.Errorf("decode extensions: %w", err)
	}
	return exts, nil
}

func filterDoc(f storage.Filter) bson.M {
	doc := bson.M{}
	if f.Published != nil {
		doc["Published"] = *f.Published
	}
	if f.User != "" {
		doc["User"] = f.User
	}
	if len(f.Versions) > 0 {
		doc["SupportedVersions"] = bson.M{"$in": f.Versions}
	}
	return doc
}

func setDoc(f storage.Fields, now time.Time) bson.M {
	set := bson.M{"UpdatedAt": now.UTC()}
	if f.Name != nil {
		set["Name"] = *f.Name
	}
	if f.Description != nil {
		set["Description"] = *f.Description
	}
	if f.DeveloperName != nil {
		set["DeveloperName"] = *f.DeveloperName
	}
	if f.Images != nil {
		set["Images"] = f.Images
	}
	if f.SupportedVersions != nil {
		set["SupportedVersions"] = f.SupportedVersions
	}
	if f.GithubStars != nil {
		set["GithubStars"] = *f.GithubStars
	}
	if f.Published != nil {
		set["Published"] = *f.Published
	}
	return set
}

var _ storage.Store = (*Store)(nil)
