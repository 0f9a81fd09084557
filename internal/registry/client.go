package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/log"
)

// Well-known registries. The mirror is the default because it is faster
// for most users; the upstream is the canonical npm registry.
const (
	MirrorRegistry   = "https://registry.npmmirror.com"
	UpstreamRegistry = "https://registry.npmjs.org"
)

var (
	// ErrNotFound indicates the registry has no such package or version.
	ErrNotFound = errors.New("package not found in registry")
	// ErrNetwork indicates the registry could not be reached or answered
	// with an unexpected status.
	ErrNetwork = errors.New("registry request failed")
	// ErrMalformed indicates the registry answered with an undecodable document.
	ErrMalformed = errors.New("malformed registry response")
)

// DefaultRegistry returns the upstream registry when useUpstream is set and
// the mirror otherwise.
func DefaultRegistry(useUpstream bool) string {
	if useUpstream {
		return UpstreamRegistry
	}
	return MirrorRegistry
}

// Client queries a registry over HTTP.
type Client struct {
	httpClient *http.Client
	userAgent  string
	logger     *log.Logger
	fallback   string
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client (useful for testing).
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		cl.httpClient = c
	}
}

// WithLogger sets the logger used for debug output.
func WithLogger(l *log.Logger) Option {
	return func(cl *Client) {
		cl.logger = l
	}
}

// WithUserAgent sets the User-Agent header sent with every request.
func WithUserAgent(ua string) Option {
	return func(cl *Client) {
		cl.userAgent = ua
	}
}

// WithDefaultRegistry sets the registry used when a call passes an empty
// registry URL.
func WithDefaultRegistry(url string) Option {
	return func(cl *Client) {
		cl.fallback = url
	}
}

// New creates a Client with the given options.
func New(opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		userAgent:  "scaff-cli",
		logger:     log.New(io.Discard),
		fallback:   DefaultRegistry(false),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// FetchMetadata fetches the package document for name.
func (c *Client) FetchMetadata(ctx context.Context, name, registryURL string) (*Metadata, error) {
	url := c.packageURL(name, registryURL)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request for %s: %w", url, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	c.logger.Debug("fetching package metadata", "url", url)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: fetching %s: %v", ErrNetwork, url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %s returned status %d", ErrNetwork, url, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading response body: %v", ErrNetwork, err)
	}

	var meta Metadata
	if err := json.Unmarshal(body, &meta); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformed, name, err)
	}
	return &meta, nil
}

// VersionMetadata returns the document of one published version.
func (c *Client) VersionMetadata(ctx context.Context, name, version, registryURL string) (*VersionMetadata, error) {
	meta, err := c.FetchMetadata(ctx, name, registryURL)
	if err != nil {
		return nil, err
	}
	vm, ok := meta.Versions[version]
	if !ok {
		return nil, fmt.Errorf("%w: %s@%s", ErrNotFound, name, version)
	}
	if vm.Dist.Tarball == "" {
		return nil, fmt.Errorf("%w: %s@%s has no tarball", ErrMalformed, name, version)
	}
	return &vm, nil
}

// ListVersions returns the published versions of name in ascending semver
// order. Any failure yields an empty slice.
func (c *Client) ListVersions(ctx context.Context, name, registryURL string) []string {
	meta, err := c.FetchMetadata(ctx, name, registryURL)
	if err != nil {
		c.logger.Debug("no versions known", "package", name, "err", err)
		return []string{}
	}
	if len(meta.Versions) == 0 {
		return []string{}
	}
	versions := make([]string, 0, len(meta.Versions))
	for v := range meta.Versions {
		versions = append(versions, v)
	}
	return SortVersions(versions)
}

// ResolveLatest returns the highest published version of name. The second
// return value is false when the registry knows no versions.
func (c *Client) ResolveLatest(ctx context.Context, name, registryURL string) (string, bool) {
	return Latest(c.ListVersions(ctx, name, registryURL))
}

func (c *Client) packageURL(name, registryURL string) string {
	if registryURL == "" {
		registryURL = c.fallback
	}
	return strings.TrimRight(registryURL, "/") + "/" + name
}
