package github

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"

	"github.com/ulauncher/extapi/pkg/buildinfo"
	"github.com/ulauncher/extapi/pkg/cache"
	apperrors "github.com/ulauncher/extapi/pkg/errors"
	"github.com/ulauncher/extapi/pkg/extension"
	"github.com/ulauncher/extapi/pkg/httputil"
	"github.com/ulauncher/extapi/pkg/integrations"
)

const (
	defaultAPIURL = "https://api.github.com"
	defaultRawURL = "https://raw.githubusercontent.com"

	// releasesRepo publishes the launcher itself.
	releasesRepo = "ulauncher/ulauncher"
)

// Options configures a [Client].
type Options struct {
	User     string
	Token    string
	Cache    cache.Cache
	CacheTTL time.Duration
	Timeout  time.Duration
	Retry    httputil.Policy
	Logger   *log.Logger

	// APIURL and RawURL override the GitHub hosts (tests, enterprise).
	APIURL string
	RawURL string
}

// Client provides access to GitHub repository metadata and raw files.
// It handles HTTP requests with caching, automatic retries, and optional authentication.
type Client struct {
	*integrations.Client
	apiURL  string
	rawURL  string
	refresh bool
}

// NewClient creates a GitHub client.
func NewClient(opts Options) *Client {
	headers := map[string]string{
		"Accept":     "application/vnd.github.v3+json",
		"User-Agent": buildinfo.UserAgent(),
	}
	if auth := authorization(opts.User, opts.Token); auth != "" {
		headers["Authorization"] = auth
	}

	base := integrations.NewClient(opts.Cache, "github:", opts.CacheTTL, headers)
	base.SetHTTPClient(integrations.NewHTTPClient(opts.Timeout))
	if opts.Retry.Attempts > 0 {
		base.SetRetry(opts.Retry)
	}
	base.SetLogger(opts.Logger)

	c := &Client{Client: base, apiURL: defaultAPIURL, rawURL: defaultRawURL}
	if opts.APIURL != "" {
		c.apiURL = opts.APIURL
	}
	if opts.RawURL != "" {
		c.rawURL = opts.RawURL
	}
	return c
}

// authorization builds the Authorization header value.
func authorization(user, token string) string {
	switch {
	case token == "":
		return ""
	case user != "":
		return "Basic " + base64.StdEncoding.EncodeToString([]byte(user+":"+token))
	default:
		return "Bearer " + token
	}
}

// Fresh returns a client sharing c's transport and cache that always fetches
// from GitHub and writes the result back to the cache.
func (c *Client) Fresh() *Client {
	cp := *c
	cp.refresh = true
	return &cp
}

// FetchRepo retrieves stars and the default branch of a repository.
func (c *Client) FetchRepo(ctx context.Context, projectPath string) (*extension.RepoInfo, error) {
	url := fmt.Sprintf("%s/repos/%s", c.apiURL, projectPath)
	data, err := c.Cached(ctx, cache.Key("repo", projectPath), "repo", c.refresh, func() ([]byte, error) {
		return c.GetBytes(ctx, url)
	})
	if err != nil {
		return nil, classify(err, apperrors.New(apperrors.CodeProjectNotFound,
			"Github project not found: %s", URL(projectPath)))
	}

	var resp repoResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, apperrors.Wrap(apperrors.CodeNetwork, err, "decode repository %s", projectPath)
	}
	info := &extension.RepoInfo{StargazersCount: resp.Stars, DefaultBranch: resp.DefaultBranch}
	if info.DefaultBranch == "" {
		info.DefaultBranch = "master"
	}
	return info, nil
}

// FetchJSON returns the raw content of {blob}.json at ref. The content is
// not parsed; validation belongs to the caller.
func (c *Client) FetchJSON(ctx context.Context, projectPath, ref, blob string) ([]byte, error) {
	url := fmt.Sprintf("%s/%s/%s/%s.json", c.rawURL, projectPath, ref, blob)
	key := cache.Key("file", projectPath, ref, blob)
	data, err := c.Cached(ctx, key, "file", c.refresh, func() ([]byte, error) {
		return c.GetBytes(ctx, url)
	})
	if err != nil {
		return nil, classify(err, apperrors.New(apperrors.CodeJSONFileNotFound,
			"Unable to find file \"%s.json\" in branch \"%s\"", blob, ref))
	}
	return data, nil
}

// FetchRelease returns the launcher release tagged version.
func (c *Client) FetchRelease(ctx context.Context, version string) (Release, error) {
	url := fmt.Sprintf("%s/repos/%s/releases", c.apiURL, releasesRepo)
	data, err := c.Cached(ctx, cache.Key("releases", releasesRepo), "releases", c.refresh, func() ([]byte, error) {
		return c.GetBytes(ctx, url)
	})
	if err != nil {
		return nil, classify(err, apperrors.New(apperrors.CodeNotFound, "Could not get releases from Github"))
	}

	var releases []json.RawMessage
	if err := json.Unmarshal(data, &releases); err != nil {
		return nil, apperrors.Wrap(apperrors.CodeNetwork, err, "decode releases")
	}
	for _, raw := range releases {
		var h releaseHeader
		if json.Unmarshal(raw, &h) == nil && h.TagName == version {
			return raw, nil
		}
	}
	return nil, apperrors.New(apperrors.CodeNotFound, "Release version %s not found", version)
}

// classify maps transport errors to coded errors. notFound is returned
// (with the cause attached) for 404 responses.
func classify(err error, notFound *apperrors.Error) error {
	var rl *apperrors.RateLimitedError
	switch {
	case errors.Is(err, integrations.ErrNotFound):
		notFound.Cause = err
		return notFound
	case errors.Is(err, integrations.ErrTooLarge):
		return apperrors.Wrap(apperrors.CodeNetwork, err, "GitHub response too large")
	case errors.As(err, &rl):
		return apperrors.Wrap(apperrors.CodeRateLimited, err, "GitHub rate limit exceeded")
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return apperrors.Wrap(apperrors.CodeNetwork, err, "GitHub request cancelled")
	default:
		return apperrors.Wrap(apperrors.CodeNetwork, err, "GitHub request failed")
	}
}

var _ extension.Source = (*Client)(nil)
