package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/ulauncher/extapi/pkg/cache"
	"github.com/ulauncher/extapi/pkg/httputil"
	"github.com/ulauncher/extapi/pkg/images"
	"github.com/ulauncher/extapi/pkg/integrations/github"
	"github.com/ulauncher/extapi/pkg/storage/mongo"
)

const githubTimeout = 15 * time.Second

func (c *CLI) openStore(ctx context.Context) (*mongo.Store, error) {
	cfg := c.config()
	store, err := mongo.Connect(ctx, cfg.Mongo.URI, cfg.Mongo.Database)
	if err != nil {
		return nil, err
	}
	c.Logger.Debug("connected to mongodb", "database", cfg.Mongo.Database)
	return store, nil
}

func (c *CLI) newGitHub(ghCache cache.Cache) *github.Client {
	cfg := c.config()
	if !cfg.HasGitHubAuth() {
		c.Logger.Warn("GITHUB_API_TOKEN is not set; GitHub requests are rate limited to 60 per hour")
	}
	return github.NewClient(github.Options{
		User:     cfg.GitHub.User,
		Token:    cfg.GitHub.Token,
		Cache:    ghCache,
		CacheTTL: cfg.GitHub.CacheTTL,
		Timeout:  githubTimeout,
		Retry:    httputil.DefaultPolicy,
		Logger:   c.Logger,
	})
}

func (c *CLI) newImages(ctx context.Context) (*images.Store, error) {
	cfg := c.config().Images
	store, err := images.New(ctx, images.Options{
		Bucket:       cfg.Bucket,
		Region:       cfg.Region,
		AccessKey:    cfg.AccessKey,
		SecretKey:    cfg.SecretKey,
		Endpoint:     cfg.Endpoint,
		DigitalOcean: cfg.DigitalOcean,
		MaxSize:      cfg.MaxSize,
		MaxImages:    cfg.MaxImages,
	})
	if err != nil {
		return nil, fmt.Errorf("image storage: %w", err)
	}
	return store, nil
}
