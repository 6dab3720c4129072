package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/ulauncher/extapi/internal/config"
	"github.com/ulauncher/extapi/pkg/storage/mongo"
)

func (c *CLI) initDBCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "init-db",
		Short: "Create indexes and run pending schema migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runInitDB(cmd.Context())
		},
	}
}

func (c *CLI) runInitDB(ctx context.Context) error {
	cfg := c.config()
	if err := cfg.Validate(config.NeedDatabase); err != nil {
		return err
	}

	store, err := c.openStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close(context.Background())

	// Image URLs are only rewritten when a bucket is configured.
	opts := mongo.MigrateOptions{Logger: c.Logger}
	if cfg.Images.Bucket != "" {
		imgs, err := c.newImages(ctx)
		if err != nil {
			return err
		}
		opts.ImageBaseURL = imgs.BaseURL()
	}

	prev, err := store.Init(ctx, opts)
	if err != nil {
		return err
	}
	if prev >= mongo.SchemaVersion {
		printInfo("Database %s is up to date (version %d)", cfg.Mongo.Database, prev)
		return nil
	}
	printSuccess("Database %s at version %d", StyleValue.Render(cfg.Mongo.Database), mongo.SchemaVersion)
	if prev > 0 {
		printDetail("migrated from version %d", prev)
	}
	return nil
}
