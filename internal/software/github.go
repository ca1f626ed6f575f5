package software

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/openbootdotdev/devenv/internal/logging"
)

const (
	DefaultGitHubAPI = "https://api.github.com"
	userAgent        = "dev-env-helper/1.0"
	releaseCacheTTL  = time.Hour
)

// httpClient uses HTTP/1.1 explicitly to avoid EOF issues with CDN endpoints.
var httpClient = &http.Client{
	Timeout: 30 * time.Second,
	Transport: &http.Transport{
		Proxy:             http.ProxyFromEnvironment,
		ForceAttemptHTTP2: false,
	},
}

type ReleaseAsset struct {
	Name               string `json:"name"`
	BrowserDownloadURL string `json:"browser_download_url"`
	Size               int64  `json:"size"`
}

type Release struct {
	TagName     string         `json:"tag_name"`
	Name        string         `json:"name"`
	Assets      []ReleaseAsset `json:"assets"`
	PublishedAt string         `json:"published_at"`
}

type cachedRelease struct {
	CachedAt time.Time `json:"cached_at"`
	Release  Release   `json:"release"`
}

// ReleaseClient looks up the latest release of a GitHub repository. Raw API
// responses are cached on disk per repository; asset filtering happens after
// the cache so different patterns share one entry.
type ReleaseClient struct {
	BaseURL  string
	Token    string
	CacheDir string
	HTTP     *http.Client
	Now      func() time.Time
}

func NewReleaseClient(cacheDir, token string) *ReleaseClient {
	return &ReleaseClient{
		BaseURL:  DefaultGitHubAPI,
		Token:    token,
		CacheDir: cacheDir,
		HTTP:     httpClient,
		Now:      time.Now,
	}
}

// Latest returns the latest release with its assets narrowed to those whose
// name matches assetPattern. An empty pattern keeps every asset.
func (c *ReleaseClient) Latest(ctx context.Context, owner, repo, assetPattern string) (*Release, error) {
	var re *regexp.Regexp
	if assetPattern != "" {
		var err error
		re, err = regexp.Compile(assetPattern)
		if err != nil {
			return nil, fmt.Errorf("invalid asset pattern regex: %w", err)
		}
	}

	release, err := c.latest(ctx, owner, repo)
	if err != nil {
		return nil, err
	}

	if re == nil {
		return release, nil
	}
	filtered := release.Assets[:0:0]
	for _, a := range release.Assets {
		if re.MatchString(a.Name) {
			filtered = append(filtered, a)
		}
	}
	if len(filtered) == 0 {
		return nil, fmt.Errorf("no assets found matching pattern: %s", assetPattern)
	}
	out := *release
	out.Assets = filtered
	return &out, nil
}

func (c *ReleaseClient) latest(ctx context.Context, owner, repo string) (*Release, error) {
	log := logging.GetLogger("github")

	if r, ok := c.readCache(owner, repo); ok {
		log.Debug().Str("repo", owner+"/"+repo).Msg("release cache hit")
		return r, nil
	}

	url := fmt.Sprintf("%s/repos/%s/%s/releases/latest", c.BaseURL, owner, repo)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/vnd.github+json")
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}

	resp, err := c.client().Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch release %s/%s: %w", owner, repo, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read release body: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("repository %s/%s not found", owner, repo)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return nil, fmt.Errorf("GitHub API error (%d): %s", resp.StatusCode, string(body))
	}

	var release Release
	if err := json.Unmarshal(body, &release); err != nil {
		return nil, fmt.Errorf("parse release: %w", err)
	}

	if err := c.writeCache(owner, repo, release); err != nil {
		log.Debug().Err(err).Msg("release cache write failed")
	}
	return &release, nil
}

func (c *ReleaseClient) client() *http.Client {
	if c.HTTP != nil {
		return c.HTTP
	}
	return httpClient
}

func (c *ReleaseClient) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now()
}

func (c *ReleaseClient) cachePath(owner, repo string) string {
	return filepath.Join(c.CacheDir, fmt.Sprintf("%s_%s.json", owner, repo))
}

func (c *ReleaseClient) readCache(owner, repo string) (*Release, bool) {
	if c.CacheDir == "" {
		return nil, false
	}
	path := c.cachePath(owner, repo)
	info, err := os.Stat(path)
	if err != nil || c.now().Sub(info.ModTime()) > releaseCacheTTL {
		return nil, false
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, false
	}
	var entry cachedRelease
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, false
	}
	return &entry.Release, true
}

func (c *ReleaseClient) writeCache(owner, repo string, r Release) error {
	if c.CacheDir == "" {
		return nil
	}
	if err := os.MkdirAll(c.CacheDir, 0755); err != nil {
		return err
	}
	data, err := json.Marshal(cachedRelease{CachedAt: c.now().UTC(), Release: r})
	if err != nil {
		return err
	}
	path := c.cachePath(owner, repo)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		return errors.Join(err, os.Remove(tmp))
	}
	return nil
}

// ClearCache removes every cached release.
func (c *ReleaseClient) ClearCache() error {
	if c.CacheDir == "" {
		return nil
	}
	if err := os.RemoveAll(c.CacheDir); err != nil {
		return fmt.Errorf("clear release cache: %w", err)
	}
	return nil
}
