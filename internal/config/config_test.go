package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoad_Defaults(t *testing.T) {
	userHome := t.TempDir()
	t.Setenv("HOME", userHome)
	for _, k := range Keys {
		t.Setenv("SCAFF_"+strings.ToUpper(k), "")
	}

	cfg, err := Load(New())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.HomePath != filepath.Join(userHome, ".scaff") {
		t.Errorf("HomePath = %q", cfg.HomePath)
	}
	if cfg.CacheDir() != filepath.Join(userHome, ".scaff", "dependencies") {
		t.Errorf("CacheDir = %q", cfg.CacheDir())
	}
	if cfg.TemplateCacheDir() != filepath.Join(userHome, ".scaff", "template") {
		t.Errorf("TemplateCacheDir = %q", cfg.TemplateCacheDir())
	}
	if cfg.TargetPath != "" {
		t.Errorf("TargetPath = %q, want empty", cfg.TargetPath)
	}
	if cfg.RegistryURL() != "https://registry.npmmirror.com" {
		t.Errorf("RegistryURL = %q", cfg.RegistryURL())
	}
}

func TestLoad_Environment(t *testing.T) {
	userHome := t.TempDir()
	t.Setenv("HOME", userHome)
	t.Setenv("SCAFF_HOME", ".scaff-dev")
	t.Setenv("SCAFF_CACHE_DIR", "deps")
	t.Setenv("SCAFF_TEMPLATE_CACHE_DIR", "")
	t.Setenv("SCAFF_TARGET_PATH", "")
	t.Setenv("SCAFF_REGISTRY", "")
	t.Setenv("SCAFF_UPSTREAM", "true")

	cfg, err := Load(New())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.HomePath != filepath.Join(userHome, ".scaff-dev") {
		t.Errorf("relative home not resolved against user home: %q", cfg.HomePath)
	}
	if cfg.CacheDir() != filepath.Join(userHome, ".scaff-dev", "deps") {
		t.Errorf("CacheDir = %q", cfg.CacheDir())
	}
	if cfg.TemplateCacheDirName != DefaultTemplateCacheDir {
		t.Errorf("empty template cache dir not defaulted: %q", cfg.TemplateCacheDirName)
	}
	if cfg.RegistryURL() != "https://registry.npmjs.org" {
		t.Errorf("RegistryURL = %q, want upstream", cfg.RegistryURL())
	}
}

func TestLoad_ConfigFile(t *testing.T) {
	home := t.TempDir()
	t.Setenv("SCAFF_HOME", home)
	t.Setenv("SCAFF_REGISTRY", "")
	t.Setenv("SCAFF_TARGET_PATH", "")
	content := "registry: https://npm.internal.example.com/\ntarget_path: plugins/init\n"
	if err := os.WriteFile(FilePath(home), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(New())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.RegistryURL() != "https://npm.internal.example.com" {
		t.Errorf("RegistryURL = %q", cfg.RegistryURL())
	}
	if !filepath.IsAbs(cfg.TargetPath) || !strings.HasSuffix(cfg.TargetPath, filepath.Join("plugins", "init")) {
		t.Errorf("TargetPath = %q, want absolute path", cfg.TargetPath)
	}
}

func TestLoad_EnvironmentBeatsConfigFile(t *testing.T) {
	home := t.TempDir()
	t.Setenv("SCAFF_HOME", home)
	t.Setenv("SCAFF_REGISTRY", "https://from-env.example.com")
	if err := os.WriteFile(FilePath(home), []byte("registry: https://from-file.example.com\n"), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(New())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Registry != "https://from-env.example.com" {
		t.Errorf("Registry = %q, want the environment value", cfg.Registry)
	}
}

func TestLoad_MalformedConfigFile(t *testing.T) {
	home := t.TempDir()
	t.Setenv("SCAFF_HOME", home)
	if err := os.WriteFile(FilePath(home), []byte("registry: [unterminated\n"), 0644); err != nil {
		t.Fatal(err)
	}

	if _, err := Load(New()); err == nil {
		t.Fatal("expected error for malformed config file")
	}
}

func TestLoad_MissingUserHome(t *testing.T) {
	t.Setenv("HOME", filepath.Join(t.TempDir(), "gone"))
	for _, k := range Keys {
		t.Setenv("SCAFF_"+strings.ToUpper(k), "")
	}

	_, err := Load(New())
	if !errors.Is(err, ErrNoUserHome) {
		t.Fatalf("Load error = %v, want ErrNoUserHome", err)
	}
}

func TestLoad_ExplicitHomeWithoutUserHome(t *testing.T) {
	t.Setenv("HOME", filepath.Join(t.TempDir(), "gone"))
	home := t.TempDir()
	t.Setenv("SCAFF_HOME", home)

	cfg, err := Load(New())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.HomePath != home {
		t.Errorf("HomePath = %q, want %q", cfg.HomePath, home)
	}
}

func TestEnsureDirs(t *testing.T) {
	home := filepath.Join(t.TempDir(), "home")
	cfg := &Config{HomePath: home, CacheDirName: DefaultCacheDir, TemplateCacheDirName: DefaultTemplateCacheDir}

	if err := EnsureDirs(cfg); err != nil {
		t.Fatalf("EnsureDirs: %v", err)
	}
	for _, dir := range []string{home, cfg.CacheDir(), cfg.TemplateCacheDir()} {
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			t.Errorf("%s not created: %v", dir, err)
		}
	}
}

func TestSetAndGet(t *testing.T) {
	home := t.TempDir()
	t.Setenv("SCAFF_HOME", home)
	t.Setenv("SCAFF_REGISTRY", "")

	if err := Set(home, KeyRegistry, "https://npm.example.com"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := Set(home, KeyCacheDir, "deps"); err != nil {
		t.Fatalf("Set: %v", err)
	}

	data, err := os.ReadFile(FilePath(home))
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(data), "template_cache_dir") {
		t.Errorf("defaults written to config file:\n%s", data)
	}

	v := New()
	if _, err := Load(v); err != nil {
		t.Fatalf("Load: %v", err)
	}
	got, err := Get(v, KeyRegistry)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got != "https://npm.example.com" {
		t.Errorf("Get(registry) = %q", got)
	}
	if got, _ := Get(v, KeyCacheDir); got != "deps" {
		t.Errorf("Get(cache_dir) = %q, want deps (first Set must survive the second)", got)
	}
}

func TestSet_UnknownKey(t *testing.T) {
	if err := Set(t.TempDir(), "colour", "blue"); err == nil {
		t.Fatal("expected error for unknown key")
	}
	if _, err := Get(New(), "colour"); err == nil {
		t.Fatal("expected error for unknown key")
	}
}

func TestLoadDotEnv(t *testing.T) {
	userHome := t.TempDir()
	t.Setenv("HOME", userHome)
	t.Setenv("SCAFF_DOTENV_SET", "from-env")
	if err := os.WriteFile(filepath.Join(userHome, ".env"), []byte("SCAFF_DOTENV_SET=from-file\nSCAFF_DOTENV_NEW=loaded\n"), 0644); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Unsetenv("SCAFF_DOTENV_NEW") })

	if err := LoadDotEnv(); err != nil {
		t.Fatalf("LoadDotEnv: %v", err)
	}
	if got := os.Getenv("SCAFF_DOTENV_SET"); got != "from-env" {
		t.Errorf("existing variable overridden: %q", got)
	}
	if got := os.Getenv("SCAFF_DOTENV_NEW"); got != "loaded" {
		t.Errorf("SCAFF_DOTENV_NEW = %q, want loaded", got)
	}
}

func TestLoadDotEnv_Missing(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	if err := LoadDotEnv(); err != nil {
		t.Fatalf("LoadDotEnv: %v", err)
	}
}
