package pkgcache

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"context"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"io"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/scaff-cli/scaff/internal/manifest"
	"github.com/scaff-cli/scaff/internal/registry"
)

// maxTarballBytes caps both the downloaded archive and the extracted size.
const maxTarballBytes = 500 << 20

var (
	// ErrIntegrity indicates the downloaded tarball does not match the
	// checksum published by the registry.
	ErrIntegrity = errors.New("integrity check failed")
	// ErrUnsafeArchive indicates a tarball entry escaping the package directory.
	ErrUnsafeArchive = errors.New("unsafe archive entry")
)

// InstallRequest describes one package version to place into the cache.
type InstallRequest struct {
	Name     string
	Version  string
	Registry string
	CacheDir string
	// Target is the final package directory, CacheDir/CacheKey.
	Target string
}

// Installer places a package version at InstallRequest.Target. When it
// returns nil the target holds the complete package.
type Installer interface {
	Install(ctx context.Context, req InstallRequest) error
}

// MetadataSource returns the registry document of one version.
type MetadataSource interface {
	VersionMetadata(ctx context.Context, name, version, registryURL string) (*registry.VersionMetadata, error)
}

// DependencyInstaller installs a package's runtime dependencies inside dir.
type DependencyInstaller func(ctx context.Context, dir, registryURL string) error

// TarballInstaller downloads the published tarball of a version, verifies
// it, unpacks it into a staging directory and renames it into place.
type TarballInstaller struct {
	source     MetadataSource
	httpClient *http.Client
	deps       DependencyInstaller
	logger     *log.Logger
}

// InstallerOption configures a TarballInstaller.
type InstallerOption func(*TarballInstaller)

// WithInstallerHTTPClient sets the client used to download tarballs.
func WithInstallerHTTPClient(c *http.Client) InstallerOption {
	return func(i *TarballInstaller) {
		i.httpClient = c
	}
}

// WithDependencyInstaller replaces the npm dependency step.
// A nil installer skips dependency installation.
func WithDependencyInstaller(d DependencyInstaller) InstallerOption {
	return func(i *TarballInstaller) {
		i.deps = d
	}
}

// WithInstallerLogger sets the logger.
func WithInstallerLogger(l *log.Logger) InstallerOption {
	return func(i *TarballInstaller) {
		i.logger = l
	}
}

// NewTarballInstaller creates an installer reading version documents from source.
func NewTarballInstaller(source MetadataSource, opts ...InstallerOption) *TarballInstaller {
	i := &TarballInstaller{
		source:     source,
		httpClient: &http.Client{Timeout: 5 * time.Minute},
		deps:       NpmInstall,
		logger:     log.New(io.Discard),
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Install implements Installer.
func (i *TarballInstaller) Install(ctx context.Context, req InstallRequest) error {
	meta, err := i.source.VersionMetadata(ctx, req.Name, req.Version, req.Registry)
	if err != nil {
		return err
	}

	staging, err := os.MkdirTemp(req.CacheDir, ".tmp-"+filepath.Base(req.Target)+"-")
	if err != nil {
		return fmt.Errorf("creating staging directory: %w", err)
	}
	defer os.RemoveAll(staging)

	archive := filepath.Join(staging, "package.tgz")
	if err := i.download(ctx, meta.Dist, archive); err != nil {
		return err
	}

	pkgDir := filepath.Join(staging, "package")
	if err := extractTarball(archive, pkgDir); err != nil {
		return err
	}
	if err := os.Remove(archive); err != nil {
		return fmt.Errorf("removing archive: %w", err)
	}

	m, err := manifest.Load(filepath.Join(pkgDir, manifest.FileName))
	if err != nil {
		return err
	}
	if m.Name != req.Name || m.Version != req.Version {
		return fmt.Errorf("tarball holds %s@%s, expected %s@%s", m.Name, m.Version, req.Name, req.Version)
	}

	if m.HasDependencies() && m.Runtime != manifest.RuntimeBinary && i.deps != nil {
		i.logger.Debug("installing dependencies", "package", req.Name, "count", len(m.Dependencies))
		if err := i.deps(ctx, pkgDir, req.Registry); err != nil {
			return fmt.Errorf("installing dependencies of %s: %w", req.Name, err)
		}
	}

	return promote(pkgDir, req.Target, staging)
}

// download fetches the tarball to dest, verifying it against dist on the fly.
func (i *TarballInstaller) download(ctx context.Context, dist registry.Dist, dest string) error {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, dist.Tarball, nil)
	if err != nil {
		return fmt.Errorf("creating download request: %w", err)
	}

	resp, err := i.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("downloading %s: %w", dist.Tarball, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("download of %s returned status %d", dist.Tarball, resp.StatusCode)
	}

	f, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("creating download file: %w", err)
	}
	defer f.Close()

	check, err := newChecksum(dist)
	if err != nil {
		return err
	}
	var w io.Writer = f
	if check != nil {
		w = io.MultiWriter(f, check.h)
	} else {
		i.logger.Debug("no checksum published, skipping integrity check", "tarball", dist.Tarball)
	}

	n, err := io.Copy(w, io.LimitReader(resp.Body, maxTarballBytes+1))
	if err != nil {
		return fmt.Errorf("reading download stream: %w", err)
	}
	if n > maxTarballBytes {
		return fmt.Errorf("tarball %s exceeds %d bytes", dist.Tarball, maxTarballBytes)
	}

	if check != nil {
		return check.verify()
	}
	return nil
}

type checksum struct {
	algo string
	want []byte
	h    hash.Hash
}

// newChecksum picks the strongest supported hash from dist.Integrity (an SRI
// string, possibly listing several hashes) and falls back to the hex sha1
// dist.Shasum. It returns nil when neither is published.
func newChecksum(dist registry.Dist) (*checksum, error) {
	var best *checksum
	rank := map[string]int{"sha1": 1, "sha256": 2, "sha512": 3}
	for _, field := range strings.Fields(dist.Integrity) {
		algo, encoded, ok := strings.Cut(field, "-")
		if !ok || rank[algo] == 0 {
			continue
		}
		if best != nil && rank[best.algo] >= rank[algo] {
			continue
		}
		want, err := base64.StdEncoding.DecodeString(encoded)
		if err != nil {
			return nil, fmt.Errorf("%w: malformed integrity %q", ErrIntegrity, field)
		}
		best = &checksum{algo: algo, want: want}
	}

	if best == nil && dist.Shasum != "" {
		want, err := hex.DecodeString(dist.Shasum)
		if err != nil {
			return nil, fmt.Errorf("%w: malformed shasum %q", ErrIntegrity, dist.Shasum)
		}
		best = &checksum{algo: "sha1", want: want}
	}
	if best == nil {
		return nil, nil
	}

	switch best.algo {
	case "sha512":
		best.h = sha512.New()
	case "sha256":
		best.h = sha256.New()
	default:
		best.h = sha1.New()
	}
	return best, nil
}

func (c *checksum) verify() error {
	got := c.h.Sum(nil)
	if !bytes.Equal(got, c.want) {
		return fmt.Errorf("%w: %s mismatch: expected %x, got %x", ErrIntegrity, c.algo, c.want, got)
	}
	return nil
}

// extractTarball unpacks a gzipped npm tarball into destDir, dropping the
// leading directory component every npm tarball wraps its files in.
func extractTarball(archivePath, destDir string) error {
	f, err := os.Open(archivePath)
	if err != nil {
		return fmt.Errorf("opening archive: %w", err)
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return fmt.Errorf("creating gzip reader: %w", err)
	}
	defer gz.Close()

	if err := os.MkdirAll(destDir, 0755); err != nil {
		return fmt.Errorf("creating package directory: %w", err)
	}

	var written int64
	tr := tar.NewReader(gz)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if errors.Is(err, tar.ErrInsecurePath) {
			return fmt.Errorf("%w: %s", ErrUnsafeArchive, hdr.Name)
		}
		if err != nil {
			return fmt.Errorf("reading tar entry: %w", err)
		}

		name := strings.TrimPrefix(filepath.ToSlash(hdr.Name), "./")
		_, rel, found := strings.Cut(name, "/")
		if !found || rel == "" {
			continue
		}
		rel = filepath.FromSlash(rel)
		if !filepath.IsLocal(rel) {
			return fmt.Errorf("%w: %s", ErrUnsafeArchive, hdr.Name)
		}
		dest := filepath.Join(destDir, rel)

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(dest, 0755); err != nil {
				return fmt.Errorf("creating directory %s: %w", rel, err)
			}
		case tar.TypeReg:
			written += hdr.Size
			if written > maxTarballBytes {
				return fmt.Errorf("%w: archive expands beyond %d bytes", ErrUnsafeArchive, maxTarballBytes)
			}
			if err := writeEntry(tr, dest, hdr); err != nil {
				return fmt.Errorf("extracting %s: %w", rel, err)
			}
		default:
			// Links and special files are not part of published packages.
			continue
		}
	}
	return nil
}

func writeEntry(r io.Reader, dest string, hdr *tar.Header) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return err
	}
	mode := os.FileMode(0644)
	if hdr.FileInfo().Mode()&0111 != 0 {
		mode = 0755
	}
	out, err := os.OpenFile(dest, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, io.LimitReader(r, hdr.Size)); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// promote renames the staged package directory to target. An existing target
// is first moved into the staging directory so it is removed with it. If the
// final rename fails because another installer put the same version in place
// first, that copy is kept.
func promote(src, target, staging string) error {
	if _, err := os.Stat(target); err == nil {
		if err := os.Rename(target, filepath.Join(staging, "previous")); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("moving aside existing %s: %w", target, err)
		}
	}
	if err := os.Rename(src, target); err != nil {
		if _, statErr := os.Stat(filepath.Join(target, manifest.FileName)); statErr == nil {
			return nil
		}
		return fmt.Errorf("moving package into place: %w", err)
	}
	return nil
}

// NpmInstall runs npm inside dir to install production dependencies.
func NpmInstall(ctx context.Context, dir, registryURL string) error {
	args := []string{"install", "--omit=dev", "--no-package-lock", "--no-audit", "--no-fund"}
	if registryURL != "" {
		args = append(args, "--registry", registryURL)
	}
	cmd := exec.CommandContext(ctx, "npm", args...)
	cmd.Dir = dir
	cmd.Stdout = os.Stderr
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("npm install: %w", err)
	}
	return nil
}
