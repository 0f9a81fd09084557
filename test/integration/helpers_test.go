//go:build integration

package integration_test

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"crypto/sha512"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"

	"github.com/scaff-cli/scaff/internal/config"
	"github.com/scaff-cli/scaff/internal/registry"
)

// fakeRegistry is an in-memory npm-style registry serving package documents
// and tarballs, counting tarball downloads per package.
type fakeRegistry struct {
	server *httptest.Server

	mu        sync.Mutex
	packages  map[string]map[string][]byte // name -> version -> tarball
	downloads map[string]int
}

func newFakeRegistry(t *testing.T) *fakeRegistry {
	t.Helper()
	r := &fakeRegistry{
		packages:  map[string]map[string][]byte{},
		downloads: map[string]int{},
	}
	r.server = httptest.NewServer(http.HandlerFunc(r.serve))
	t.Cleanup(r.server.Close)
	return r
}

// URL returns the registry base URL.
func (r *fakeRegistry) URL() string {
	return r.server.URL
}

// publish adds name@version with the given package files. Paths are relative
// to the package root; the tarball nests them under package/ like npm pack.
func (r *fakeRegistry) publish(t *testing.T, name, version string, files map[string]tarFile) {
	t.Helper()
	tarball := buildTarball(t, files)
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.packages[name] == nil {
		r.packages[name] = map[string][]byte{}
	}
	r.packages[name][version] = tarball
}

// Downloads returns how often a tarball of name was fetched.
func (r *fakeRegistry) Downloads(name string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.downloads[name]
}

func (r *fakeRegistry) serve(w http.ResponseWriter, req *http.Request) {
	r.mu.Lock()
	defer r.mu.Unlock()

	path := strings.TrimPrefix(req.URL.Path, "/")
	if name, rest, ok := strings.Cut(path, "/-/"); ok {
		version := strings.TrimSuffix(rest, ".tgz")
		tarball, found := r.packages[name][version]
		if !found {
			http.NotFound(w, req)
			return
		}
		r.downloads[name]++
		w.Write(tarball)
		return
	}

	versions, ok := r.packages[path]
	if !ok {
		http.NotFound(w, req)
		return
	}
	meta := registry.Metadata{Name: path, Versions: map[string]registry.VersionMetadata{}}
	for v, tarball := range versions {
		meta.Versions[v] = registry.VersionMetadata{
			Name:    path,
			Version: v,
			Dist: registry.Dist{
				Tarball:   r.server.URL + "/" + path + "/-/" + v + ".tgz",
				Integrity: sri(tarball),
			},
		}
	}
	if latest, ok := registry.Latest(mapKeys(versions)); ok {
		meta.DistTags = map[string]string{"latest": latest}
	}
	json.NewEncoder(w).Encode(meta)
}

func mapKeys(m map[string][]byte) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	return keys
}

type tarFile struct {
	body string
	mode int64
}

func buildTarball(t *testing.T, files map[string]tarFile) []byte {
	t.Helper()
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)
	for name, f := range files {
		mode := f.mode
		if mode == 0 {
			mode = 0644
		}
		hdr := &tar.Header{Name: "package/" + name, Mode: mode, Size: int64(len(f.body)), Typeflag: tar.TypeReg}
		if err := tw.WriteHeader(hdr); err != nil {
			t.Fatal(err)
		}
		if _, err := tw.Write([]byte(f.body)); err != nil {
			t.Fatal(err)
		}
	}
	if err := tw.Close(); err != nil {
		t.Fatal(err)
	}
	if err := gz.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func sri(data []byte) string {
	sum := sha512.Sum512(data)
	return "sha512-" + base64.StdEncoding.EncodeToString(sum[:])
}

// newConfig returns a configuration rooted in home that talks to registryURL.
func newConfig(t *testing.T, home, registryURL string) *config.Config {
	t.Helper()
	cfg := &config.Config{
		HomePath:             home,
		CacheDirName:         config.DefaultCacheDir,
		TemplateCacheDirName: config.DefaultTemplateCacheDir,
		Registry:             registryURL,
	}
	if err := config.EnsureDirs(cfg); err != nil {
		t.Fatalf("EnsureDirs: %v", err)
	}
	return cfg
}

// assertFileExists fails the test if the file does not exist.
func assertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); err != nil {
		t.Errorf("expected file to exist: %s (error: %v)", path, err)
	}
}

// assertFileNotExists fails the test if the file exists.
func assertFileNotExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); err == nil {
		t.Errorf("expected file NOT to exist: %s", path)
	}
}

// assertFileContains fails if the file doesn't exist or doesn't contain substr.
func assertFileContains(t *testing.T, path, substr string) {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Errorf("reading %s: %v", path, err)
		return
	}
	if !strings.Contains(string(data), substr) {
		t.Errorf("file %s does not contain %q.\nContents:\n%s", path, substr, string(data))
	}
}

// cacheDirs lists the entry names of dir.
func cacheDirs(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("reading %s: %v", dir, err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}
