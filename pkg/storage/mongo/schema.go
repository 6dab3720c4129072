package mongo

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"slices"

	"github.com/charmbracelet/log"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// SchemaVersion is the database layout this code expects.
const SchemaVersion = 3

// MigrateOptions carries values some migrations depend on.
type MigrateOptions struct {
	// ImageBaseURL is the object store prefix image URLs are rewritten to,
	// e.g. "https://bucket.nyc3.digitaloceanspaces.com".
	ImageBaseURL string
	Logger       *log.Logger
}

type migration struct {
	version int
	run     func(ctx context.Context, s *Store, opts MigrateOptions) error
}

var migrations = []migration{
	{1, func(context.Context, *Store, MigrateOptions) error { return nil }},
	{2, func(ctx context.Context, s *Store, _ MigrateOptions) error {
		_, err := s.extensions.Indexes().CreateOne(ctx, mongo.IndexModel{
			Keys: bson.D{{Key: "Published", Value: 1}, {Key: "GithubStars", Value: -1}},
		})
		return err
	}},
	{3, migrateImageHost},
}

type migrationRecord struct {
	Version int `bson:"Version"`
}

// EnsureIndexes creates the collection indexes. It is idempotent.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	if _, err := s.migrations.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "CreatedAt", Value: 1}}},
		{Keys: bson.D{{Key: "Version", Value: 1}}, Options: options.Index().SetUnique(true)},
	}); err != nil {
		return fmt.Errorf("create migration indexes: %w", err)
	}
	if _, err := s.extensions.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "ID", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "User", Value: 1}}},
		{Keys: bson.D{{Key: "Published", Value: 1}, {Key: "CreatedAt", Value: -1}}},
		{Keys: bson.D{{Key: "Published", Value: 1}, {Key: "GithubStars", Value: -1}}},
	}); err != nil {
		return fmt.Errorf("create extension indexes: %w", err)
	}
	return nil
}

// Version returns the last recorded schema version, 0 when none.
func (s *Store) Version(ctx context.Context) (int, error) {
	opts := options.FindOne().SetSort(bson.D{{Key: "CreatedAt", Value: -1}})
	var rec migrationRecord
	err := s.migrations.FindOne(ctx, bson.M{}, opts).Decode(&rec)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read schema version: %w", err)
	}
	return rec.Version, nil
}

// Init prepares a database. A fresh database gets the indexes and the
// current version; an older one runs the pending migrations in order.
// It returns the version the database was at before the call.
func (s *Store) Init(ctx context.Context, opts MigrateOptions) (int, error) {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}

	names, err := s.db.ListCollectionNames(ctx, bson.M{"name": migrationsCollection})
	if err != nil {
		return 0, fmt.Errorf("list collections: %w", err)
	}
	if !slices.Contains(names, migrationsCollection) {
		if err := s.EnsureIndexes(ctx); err != nil {
			return 0, err
		}
		if err := s.recordVersion(ctx, SchemaVersion); err != nil {
			return 0, err
		}
		logger.Info("database schema created", "version", SchemaVersion)
		return 0, nil
	}

	current, err := s.Version(ctx)
	if err != nil {
		return 0, err
	}
	if current >= SchemaVersion {
		logger.Info("database schema is up to date", "version", current)
		return current, nil
	}

	for _, m := range migrations {
		if m.version <= current || m.version > SchemaVersion {
			continue
		}
		logger.Info("migrating database", "version", m.version)
		if err := m.run(ctx, s, opts); err != nil {
			return current, fmt.Errorf("migration %d: %w", m.version, err)
		}
		if err := s.recordVersion(ctx, m.version); err != nil {
			return current, err
		}
	}
	logger.Info("database schema updated", "from", current, "to", SchemaVersion)
	return current, nil
}

// CheckVersion logs a warning when the database and code versions differ.
func (s *Store) CheckVersion(ctx context.Context, logger *log.Logger) error {
	v, err := s.Version(ctx)
	if err != nil {
		return err
	}
	switch {
	case v > SchemaVersion:
		logger.Warn("database schema is newer than this build; downgrades are not supported", "db", v, "code", SchemaVersion)
	case v != SchemaVersion:
		logger.Warn("database schema is out of date; run init-db", "db", v, "code", SchemaVersion)
	}
	return nil
}

func (s *Store) recordVersion(ctx context.Context, version int) error {
	_, err := s.migrations.InsertOne(ctx, bson.M{"Version": version, "CreatedAt": s.now().UTC()})
	if err != nil {
		return fmt.Errorf("record schema version %d: %w", version, err)
	}
	return nil
}

var hostPattern = regexp.MustCompile(`^https://[^/]+/(.*)$`)

// RewriteImageHost moves an image URL onto base, keeping the object key.
func RewriteImageHost(url, base string) string {
	return hostPattern.ReplaceAllString(url, base+"/${1}")
}

func migrateImageHost(ctx context.Context, s *Store, opts MigrateOptions) error {
	if opts.ImageBaseURL == "" {
		return errors.New("image base URL is required")
	}
	exts, err := s.find(ctx, bson.M{}, options.Find())
	if err != nil {
		return err
	}
	for _, ext := range exts {
		images := make([]string, len(ext.Images))
		for i, img := range ext.Images {
			images[i] = RewriteImageHost(img, opts.ImageBaseURL)
		}
		if _, err := s.extensions.UpdateOne(ctx, bson.M{"ID": ext.ID}, bson.M{"$set": bson.M{"Images": images}}); err != nil {
			return fmt.Errorf("rewrite images of %s: %w", ext.ID, err)
		}
	}
	return nil
}
