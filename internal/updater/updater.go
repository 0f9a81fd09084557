package updater

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
	"github.com/scaff-cli/scaff/internal/branding"
	"github.com/scaff-cli/scaff/internal/registry"
)

// LatestResolver looks up the newest published version of a package.
type LatestResolver interface {
	ResolveLatest(ctx context.Context, name, registryURL string) (string, bool)
}

// Updater checks whether the running CLI is outdated.
type Updater struct {
	currentVersion string
	packageName    string
	registryURL    string
	resolver       LatestResolver
	timeout        time.Duration
	maxAge         time.Duration
	now            func() time.Time
	logger         *log.Logger
}

// Option configures an Updater.
type Option func(*Updater)

// WithRegistry sets the registry the CLI package is looked up in.
func WithRegistry(url string) Option {
	return func(u *Updater) {
		u.registryURL = url
	}
}

// WithPackage overrides the CLI's own package name.
func WithPackage(name string) Option {
	return func(u *Updater) {
		u.packageName = name
	}
}

// WithTimeout bounds the registry lookup.
func WithTimeout(d time.Duration) Option {
	return func(u *Updater) {
		u.timeout = d
	}
}

// WithClock replaces time.Now (useful for testing).
func WithClock(now func() time.Time) Option {
	return func(u *Updater) {
		u.now = now
	}
}

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option {
	return func(u *Updater) {
		u.logger = l
	}
}

// New creates an Updater for the given running version.
func New(currentVersion string, resolver LatestResolver, opts ...Option) *Updater {
	u := &Updater{
		currentVersion: currentVersion,
		packageName:    branding.PackageName(),
		resolver:       resolver,
		timeout:        3 * time.Second,
		maxAge:         DefaultCacheMaxAge,
		now:            time.Now,
		logger:         log.New(io.Discard),
	}
	for _, opt := range opts {
		opt(u)
	}
	return u
}

// Latest returns the newest published version, from the cache in home when
// it is fresh and from the registry otherwise. Lookup failures are logged at
// debug level and reported as false.
func (u *Updater) Latest(ctx context.Context, home string) (string, bool) {
	cache, err := LoadCache(home)
	if err != nil {
		u.logger.Debug("ignoring version cache", "err", err)
		cache = nil
	}
	if cache != nil && cache.Package != u.packageName {
		cache = nil
	}
	if !IsCacheStale(cache, u.maxAge, u.now()) {
		return cache.LatestVersion, cache.LatestVersion != ""
	}

	ctx, cancel := context.WithTimeout(ctx, u.timeout)
	defer cancel()
	latest, ok := u.resolver.ResolveLatest(ctx, u.packageName, u.registryURL)
	if !ok {
		u.logger.Debug("could not determine latest version", "package", u.packageName)
		return "", false
	}

	if err := SaveCache(home, &VersionCache{
		Package:       u.packageName,
		LatestVersion: latest,
		CheckedAt:     u.now(),
	}); err != nil {
		u.logger.Debug("could not save version cache", "err", err)
	}
	return latest, true
}

// CheckAndPrint prints an update notice to w when a newer version than the
// running one has been published. Development builds are never checked.
func (u *Updater) CheckAndPrint(ctx context.Context, w io.Writer, home string) {
	if !registry.IsValidVersion(strings.TrimPrefix(u.currentVersion, "v")) {
		return
	}
	latest, ok := u.Latest(ctx, home)
	if !ok {
		return
	}
	if IsUpdateAvailable(u.currentVersion, latest) {
		PrintNotice(w, u.packageName, u.currentVersion, latest)
	}
}

// IsUpdateAvailable returns true if latest is newer than current.
// Unparseable versions never report an update.
func IsUpdateAvailable(current, latest string) bool {
	cmp, err := registry.CompareVersions(current, latest)
	return err == nil && cmp < 0
}

var (
	noticeStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("3")).
			Padding(0, 2)
	currentStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	latestStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("2")).Bold(true)
	commandStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("6"))
)

// PrintNotice prints the update notification to w.
func PrintNotice(w io.Writer, pkg, current, latest string) {
	body := fmt.Sprintf("Update available: %s -> %s\nRun %s to upgrade",
		currentStyle.Render(current),
		latestStyle.Render(latest),
		commandStyle.Render("npm install -g "+pkg))
	fmt.Fprintf(w, "\n%s\n\n", noticeStyle.Render(body))
}
