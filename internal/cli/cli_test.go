package cli

import (
	"context"
	"io"
	"path/filepath"
	"slices"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/charmbracelet/log"

	"github.com/ulauncher/extapi/internal/config"
	"github.com/ulauncher/extapi/pkg/cache"
)

func quietCLI() *CLI {
	return New(io.Discard, log.InfoLevel)
}

func TestRootCommand_Subcommands(t *testing.T) {
	root := quietCLI().RootCommand()

	var names []string
	for _, cmd := range root.Commands() {
		names = append(names, cmd.Name())
	}
	for _, want := range []string{"serve", "sync", "init-db", "validate", "cache", "images", "completion"} {
		if !slices.Contains(names, want) {
			t.Errorf("missing subcommand %q in %v", want, names)
		}
	}
	if root.PersistentFlags().Lookup("config") == nil {
		t.Error("root should have a --config flag")
	}
}

func TestLoadConfig(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("LOG_LEVEL", "warn")
	t.Setenv("PORT", "9090")

	c := quietCLI()
	root := c.RootCommand()
	root.SetContext(context.Background())
	if err := c.loadConfig(root, nil); err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if c.config().Server.Port != 9090 {
		t.Errorf("Port = %d, want 9090", c.config().Server.Port)
	}
	if c.Logger.GetLevel() != log.WarnLevel {
		t.Errorf("level = %v, want warn", c.Logger.GetLevel())
	}

	c.verbose = true
	if err := c.loadConfig(root, nil); err != nil {
		t.Fatal(err)
	}
	if c.Logger.GetLevel() != log.DebugLevel {
		t.Errorf("--verbose should force debug, got %v", c.Logger.GetLevel())
	}
	if loggerFromContext(root.Context()) != c.Logger {
		t.Error("loadConfig should attach the logger to the command context")
	}
}

func TestLoadConfig_BadLevel(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("LOG_LEVEL", "loud")

	c := quietCLI()
	root := c.RootCommand()
	root.SetContext(context.Background())
	if err := c.loadConfig(root, nil); err == nil {
		t.Fatal("expected error for unknown log level")
	}
}

func TestCacheDir(t *testing.T) {
	t.Setenv("XDG_CACHE_HOME", "/tmp/xdg")
	dir, err := cacheDir()
	if err != nil {
		t.Fatal(err)
	}
	if dir != filepath.Join("/tmp/xdg", "extapi") {
		t.Errorf("cacheDir() = %q", dir)
	}

	t.Setenv("XDG_CACHE_HOME", "")
	t.Setenv("HOME", "/home/ext")
	dir, _ = cacheDir()
	if dir != filepath.Join("/home/ext", ".cache", "extapi") {
		t.Errorf("cacheDir() = %q", dir)
	}
}

func TestNewCache(t *testing.T) {
	ctx := context.Background()

	t.Run("disabled", func(t *testing.T) {
		c := quietCLI()
		ch, err := c.newCache(ctx, true)
		if err != nil {
			t.Fatal(err)
		}
		if _, ok := ch.(cache.NullCache); !ok {
			t.Errorf("newCache(noCache) = %T, want NullCache", ch)
		}
	})

	t.Run("file", func(t *testing.T) {
		c := quietCLI()
		c.cfg = config.Default()
		c.cfg.Cache.Dir = t.TempDir()
		ch, err := c.newCache(ctx, false)
		if err != nil {
			t.Fatal(err)
		}
		fc, ok := ch.(*cache.FileCache)
		if !ok || fc.Dir() != c.cfg.Cache.Dir {
			t.Errorf("newCache() = %T, want FileCache in %s", ch, c.cfg.Cache.Dir)
		}
	})

	t.Run("redis", func(t *testing.T) {
		mr := miniredis.RunT(t)
		c := quietCLI()
		c.cfg = config.Default()
		c.cfg.Cache.RedisURL = "redis://" + mr.Addr()
		ch, err := c.newCache(ctx, false)
		if err != nil {
			t.Fatal(err)
		}
		defer ch.Close()
		if _, ok := ch.(*cache.RedisCache); !ok {
			t.Fatalf("newCache() = %T, want RedisCache", ch)
		}
		if err := ch.Set(ctx, "k", []byte("v"), 0); err != nil {
			t.Fatal(err)
		}
		if !mr.Exists("extapi:k") {
			t.Error("redis keys should carry the extapi: prefix")
		}
	})
}

func TestRunCacheClear(t *testing.T) {
	ctx := context.Background()
	c := quietCLI()
	c.cfg = config.Default()
	c.cfg.Cache.Dir = filepath.Join(t.TempDir(), "cache")

	// Missing directory is reported, not created.
	if err := c.runCacheClear(ctx); err != nil {
		t.Fatalf("clear on missing dir: %v", err)
	}

	fc, err := cache.NewFileCache(c.cfg.Cache.Dir)
	if err != nil {
		t.Fatal(err)
	}
	if err := fc.Set(ctx, "github:repo:owner/name", []byte("{}"), 0); err != nil {
		t.Fatal(err)
	}
	if err := c.runCacheClear(ctx); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if _, hit, _ := fc.Get(ctx, "github:repo:owner/name"); hit {
		t.Error("entry should be gone after cache clear")
	}
}
