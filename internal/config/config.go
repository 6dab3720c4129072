// Package config loads service configuration.
//
// Values are layered: built-in defaults, then an optional TOML file, then
// environment variables. A .env file in the working directory is loaded into
// the environment first, without overriding variables that are already set.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/charmbracelet/log"
	"github.com/joho/godotenv"
)

type Config struct {
	Server ServerConfig `toml:"server"`
	Mongo  MongoConfig  `toml:"mongo"`
	GitHub GitHubConfig `toml:"github"`
	Images ImagesConfig `toml:"images"`
	Auth   AuthConfig   `toml:"auth"`
	Cache  CacheConfig  `toml:"cache"`
	Sync   SyncConfig   `toml:"sync"`

	LogLevel string `toml:"log_level"`
	// Commit and BuildDate describe the deployment when the binary was not
	// built with ldflags.
	Commit    string `toml:"commit"`
	BuildDate string `toml:"build_date"`
}

type ServerConfig struct {
	Port        int      `toml:"port"`
	CORSOrigins []string `toml:"cors_origins"`
}

type MongoConfig struct {
	URI      string `toml:"uri"`
	Database string `toml:"database"`
}

type GitHubConfig struct {
	User     string        `toml:"user"`
	Token    string        `toml:"token"`
	CacheTTL time.Duration `toml:"cache_ttl"`
}

type ImagesConfig struct {
	Bucket       string `toml:"bucket"`
	Region       string `toml:"region"`
	AccessKey    string `toml:"access_key"`
	SecretKey    string `toml:"secret_key"`
	Endpoint     string `toml:"endpoint"`
	DigitalOcean bool   `toml:"digitalocean"`
	MaxSize      int64  `toml:"max_size"`
	MaxImages    int    `toml:"max_images"`
}

type AuthConfig struct {
	Domain   string `toml:"domain"`
	ClientID string `toml:"client_id"`
}

type CacheConfig struct {
	RedisURL string `toml:"redis_url"`
	// Dir holds the file cache used when RedisURL is empty.
	Dir string `toml:"dir"`
}

type SyncConfig struct {
	Interval     time.Duration `toml:"interval"`
	FetchTimeout time.Duration `toml:"fetch_timeout"`
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		Server: ServerConfig{Port: 8080, CORSOrigins: []string{"*"}},
		Mongo:  MongoConfig{Database: "ext_api"},
		GitHub: GitHubConfig{CacheTTL: 10 * time.Minute},
		Images: ImagesConfig{
			Region:    "us-east-1",
			MaxSize:   5 * 1024 * 1024,
			MaxImages: 300,
		},
		Sync: SyncConfig{
			Interval:     5 * time.Hour,
			FetchTimeout: 30 * time.Second,
		},
		LogLevel: "info",
	}
}

// Load builds the configuration. path names an optional TOML file; an
// empty path skips it.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := Default()
	if path != "" {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	return cfg, nil
}

type lookupFunc func(string) (string, bool)

func (c *Config) applyEnv(lookup lookupFunc) error {
	e := envReader{lookup: lookup}

	e.setInt("PORT", &c.Server.Port)
	e.setList("CORS_ORIGINS", &c.Server.CORSOrigins)
	e.setString("MONGODB_CONNECTION", &c.Mongo.URI)
	e.setString("DB_NAME", &c.Mongo.Database)
	e.setString("GITHUB_API_USER", &c.GitHub.User)
	e.setString("GITHUB_API_TOKEN", &c.GitHub.Token)
	e.setDuration("GITHUB_CACHE_TTL", &c.GitHub.CacheTTL)
	e.setString("EXT_IMAGES_BUCKET_NAME", &c.Images.Bucket)
	e.setString("AWS_DEFAULT_REGION", &c.Images.Region)
	e.setString("AWS_ACCESS_KEY_ID", &c.Images.AccessKey)
	e.setString("AWS_SECRET_ACCESS_KEY", &c.Images.SecretKey)
	e.setString("S3_ENDPOINT", &c.Images.Endpoint)
	e.setBool("S3_USE_DIGITALOCEAN", &c.Images.DigitalOcean)
	e.setInt64("MAX_IMAGE_SIZE", &c.Images.MaxSize)
	e.setInt("MAX_IMAGES", &c.Images.MaxImages)
	e.setString("AUTH0_DOMAIN", &c.Auth.Domain)
	e.setString("AUTH0_CLIENT_ID", &c.Auth.ClientID)
	e.setString("REDIS_URL", &c.Cache.RedisURL)
	e.setString("CACHE_DIR", &c.Cache.Dir)
	e.setDuration("SYNC_INTERVAL", &c.Sync.Interval)
	e.setDuration("GITHUB_FETCH_TIMEOUT", &c.Sync.FetchTimeout)
	e.setString("LOG_LEVEL", &c.LogLevel)
	e.setString("COMMIT_SHA1", &c.Commit)
	e.setString("BUILD_DATE", &c.BuildDate)

	return errors.Join(e.errs...)
}

// Requirement names a group of settings a command depends on.
type Requirement int

const (
	NeedDatabase Requirement = 1 << iota
	NeedImages
	NeedAuth
)

// Validate checks the settings the requested groups need.
func (c *Config) Validate(req Requirement) error {
	var errs []error
	missing := func(name string) { errs = append(errs, fmt.Errorf("%s is required", name)) }

	if req&NeedDatabase != 0 {
		if c.Mongo.URI == "" {
			missing("MONGODB_CONNECTION")
		}
		if c.Mongo.Database == "" {
			missing("DB_NAME")
		}
	}
	if req&NeedImages != 0 && c.Images.Bucket == "" {
		missing("EXT_IMAGES_BUCKET_NAME")
	}
	if req&NeedAuth != 0 {
		if c.Auth.Domain == "" {
			missing("AUTH0_DOMAIN")
		}
		if c.Auth.ClientID == "" {
			missing("AUTH0_CLIENT_ID")
		}
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("port %d is out of range", c.Server.Port))
	}
	if c.Images.MaxSize <= 0 {
		errs = append(errs, errors.New("MAX_IMAGE_SIZE must be positive"))
	}
	if c.Images.MaxImages <= 0 {
		errs = append(errs, errors.New("MAX_IMAGES must be positive"))
	}
	if c.Sync.Interval <= 0 || c.Sync.FetchTimeout <= 0 {
		errs = append(errs, errors.New("sync interval and fetch timeout must be positive"))
	}
	if _, err := ParseLogLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// HasGitHubAuth reports whether GitHub requests will be authenticated.
func (c *Config) HasGitHubAuth() bool { return c.GitHub.Token != "" }

// ParseLogLevel accepts level names (debug, info, warn, error) and the
// numeric levels 10/20/30/40 older deployments set.
func ParseLogLevel(s string) (log.Level, error) {
	switch strings.TrimSpace(s) {
	case "":
		return log.InfoLevel, nil
	case "10":
		return log.DebugLevel, nil
	case "20":
		return log.InfoLevel, nil
	case "30":
		return log.WarnLevel, nil
	case "40", "50":
		return log.ErrorLevel, nil
	}
	lvl, err := log.ParseLevel(strings.ToLower(strings.TrimSpace(s)))
	if err != nil {
		return log.InfoLevel, fmt.Errorf("invalid LOG_LEVEL %q", s)
	}
	return lvl, nil
}

type envReader struct {
	lookup lookupFunc
	errs   []error
}

func (e *envReader) get(key string) (string, bool) {
	v, ok := e.lookup(key)
	if !ok || strings.TrimSpace(v) == "" {
		return "", false
	}
	return strings.TrimSpace(v), true
}

func (e *envReader) setString(key string, dst *string) {
	if v, ok := e.get(key); ok {
		*dst = v
	}
}

func (e *envReader) setList(key string, dst *[]string) {
	v, ok := e.get(key)
	if !ok {
		return
	}
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	*dst = out
}

func (e *envReader) setInt(key string, dst *int) {
	if v, ok := e.get(key); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			e.errs = append(e.errs, fmt.Errorf("%s: %q is not an integer", key, v))
			return
		}
		*dst = n
	}
}

func (e *envReader) setInt64(key string, dst *int64) {
	if v, ok := e.get(key); ok {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			e.errs = append(e.errs, fmt.Errorf("%s: %q is not an integer", key, v))
			return
		}
		*dst = n
	}
}

func (e *envReader) setBool(key string, dst *bool) {
	if v, ok := e.get(key); ok {
		b, err := strconv.ParseBool(strings.ToLower(v))
		if err != nil {
			e.errs = append(e.errs, fmt.Errorf("%s: %q is not a boolean", key, v))
			return
		}
		*dst = b
	}
}

// setDuration accepts Go duration strings and bare numbers of seconds.
func (e *envReader) setDuration(key string, dst *time.Duration) {
	v, ok := e.get(key)
	if !ok {
		return
	}
	if n, err := strconv.Atoi(v); err == nil {
		*dst = time.Duration(n) * time.Second
		return
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: %q is not a duration", key, v))
		return
	}
	*dst = d
}
