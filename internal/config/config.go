package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/scaff-cli/scaff/internal/branding"
	"github.com/scaff-cli/scaff/internal/registry"
	"github.com/spf13/viper"
	"github.com/subosito/gotenv"
)

const (
	fileName = "config"
	fileType = "yaml"
)

// Configuration keys. Each is also readable from the environment as
// SCAFF_<KEY> (e.g. SCAFF_CACHE_DIR).
const (
	KeyHome             = "home"
	KeyCacheDir         = "cache_dir"
	KeyTemplateCacheDir = "template_cache_dir"
	KeyTargetPath       = "target_path"
	KeyRegistry         = "registry"
	KeyUpstream         = "upstream"
	KeyLogLevel         = "log_level"
)

// Defaults for the cache subdirectories under the CLI home.
const (
	DefaultCacheDir         = "dependencies"
	DefaultTemplateCacheDir = "template"
)

// Keys lists every recognised configuration key.
var Keys = []string{
	KeyHome, KeyCacheDir, KeyTemplateCacheDir, KeyTargetPath,
	KeyRegistry, KeyUpstream, KeyLogLevel,
}

// Config is constructed once at startup and handed to every component that
// needs paths or registry settings.
type Config struct {
	// HomePath is the absolute CLI home directory (~/.scaff by default).
	HomePath string
	// CacheDirName is the command package cache directory under HomePath.
	CacheDirName string
	// TemplateCacheDirName is the template package cache directory under HomePath.
	TemplateCacheDirName string
	// TargetPath, when set, points the dispatcher at a local package
	// checkout and bypasses registry and cache entirely.
	TargetPath string
	// Registry overrides the registry base URL.
	Registry string
	// UseUpstream selects the canonical registry instead of the mirror
	// when Registry is empty.
	UseUpstream bool
	// LogLevel is one of debug, info, warn, error.
	LogLevel string
}

// CacheDir returns the directory command packages are installed into.
func (c *Config) CacheDir() string {
	return filepath.Join(c.HomePath, c.CacheDirName)
}

// TemplateCacheDir returns the directory template packages are installed into.
func (c *Config) TemplateCacheDir() string {
	return filepath.Join(c.HomePath, c.TemplateCacheDirName)
}

// RegistryURL returns the registry base URL to resolve and install from.
func (c *Config) RegistryURL() string {
	if c.Registry != "" {
		return strings.TrimRight(c.Registry, "/")
	}
	return registry.DefaultRegistry(c.UseUpstream)
}

// ErrNoUserHome is returned when the CLI home defaults to a directory under
// the user home and that directory does not exist.
var ErrNoUserHome = errors.New("user home directory not found")

// DefaultHome returns ~/.scaff. It fails when the user home is unknown or
// missing, rather than falling back to a per-directory location.
func DefaultHome() (string, error) {
	home, err := userHome()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, branding.HomeDir()), nil
}

func userHome() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrNoUserHome, err)
	}
	info, err := os.Stat(home)
	if err != nil || !info.IsDir() {
		return "", fmt.Errorf("%w: %s", ErrNoUserHome, home)
	}
	return home, nil
}

// FilePath returns the config file location for a CLI home directory.
func FilePath(home string) string {
	return filepath.Join(home, fileName+"."+fileType)
}

// LoadDotEnv loads ~/.env into the process environment. Variables that are
// already set are left untouched. A missing file is not an error.
func LoadDotEnv() error {
	home, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("resolving user home directory: %w", err)
	}
	envFile := filepath.Join(home, ".env")
	if _, err := os.Stat(envFile); err != nil {
		return nil
	}
	if err := gotenv.Load(envFile); err != nil {
		return fmt.Errorf("loading %s: %w", envFile, err)
	}
	return nil
}

// New returns a viper instance with defaults and environment binding set
// up. Callers may bind flags onto it before calling Load.
func New() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(branding.EnvPrefix())
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if home, err := DefaultHome(); err == nil {
		v.SetDefault(KeyHome, home)
	}
	v.SetDefault(KeyCacheDir, DefaultCacheDir)
	v.SetDefault(KeyTemplateCacheDir, DefaultTemplateCacheDir)
	v.SetDefault(KeyUpstream, false)
	v.SetDefault(KeyLogLevel, "info")
	return v
}

// Load reads the config file under the resolved home directory and returns
// the resulting Config.
func Load(v *viper.Viper) (*Config, error) {
	home, err := resolveHome(v.GetString(KeyHome))
	if err != nil {
		return nil, err
	}

	v.SetConfigFile(FilePath(home))
	v.SetConfigType(fileType)
	if err := v.ReadInConfig(); err != nil && !isNotExist(err) {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := &Config{
		HomePath:             home,
		CacheDirName:         v.GetString(KeyCacheDir),
		TemplateCacheDirName: v.GetString(KeyTemplateCacheDir),
		TargetPath:           v.GetString(KeyTargetPath),
		Registry:             v.GetString(KeyRegistry),
		UseUpstream:          v.GetBool(KeyUpstream),
		LogLevel:             v.GetString(KeyLogLevel),
	}
	if cfg.CacheDirName == "" {
		cfg.CacheDirName = DefaultCacheDir
	}
	if cfg.TemplateCacheDirName == "" {
		cfg.TemplateCacheDirName = DefaultTemplateCacheDir
	}
	if cfg.TargetPath != "" {
		abs, err := filepath.Abs(cfg.TargetPath)
		if err != nil {
			return nil, fmt.Errorf("resolving target path %s: %w", cfg.TargetPath, err)
		}
		cfg.TargetPath = abs
	}
	return cfg, nil
}

// EnsureDirs creates the home and cache directories if they do not exist.
func EnsureDirs(cfg *Config) error {
	for _, dir := range []string{cfg.HomePath, cfg.CacheDir(), cfg.TemplateCacheDir()} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("creating directory %s: %w", dir, err)
		}
	}
	return nil
}

// Set writes a key-value pair to the config file under home. Only keys
// already in the file and the new key are written; defaults and environment
// overrides stay out of it.
func Set(home, key, value string) error {
	if !isKnownKey(key) {
		return fmt.Errorf("unknown config key %q (known keys: %s)", key, strings.Join(Keys, ", "))
	}
	if err := os.MkdirAll(home, 0755); err != nil {
		return fmt.Errorf("creating config directory %s: %w", home, err)
	}

	configFile := FilePath(home)
	v := viper.New()
	v.SetConfigFile(configFile)
	v.SetConfigType(fileType)
	if err := v.ReadInConfig(); err != nil && !isNotExist(err) {
		return fmt.Errorf("reading config file: %w", err)
	}

	v.Set(key, value)
	if err := v.WriteConfigAs(configFile); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}

// Get returns the effective value of key after defaults, the config file,
// the environment and bound flags are applied.
func Get(v *viper.Viper, key string) (string, error) {
	if !isKnownKey(key) {
		return "", fmt.Errorf("unknown config key %q (known keys: %s)", key, strings.Join(Keys, ", "))
	}
	return v.GetString(key), nil
}

// resolveHome makes a relative home directory relative to the user home,
// so SCAFF_HOME=.scaff-dev means ~/.scaff-dev.
func resolveHome(home string) (string, error) {
	if home == "" {
		return DefaultHome()
	}
	if filepath.IsAbs(home) {
		return filepath.Clean(home), nil
	}
	base, err := userHome()
	if err != nil {
		return "", err
	}
	return filepath.Join(base, home), nil
}

func isKnownKey(key string) bool {
	for _, k := range Keys {
		if k == key {
			return true
		}
	}
	return false
}

func isNotExist(err error) bool {
	var notFound viper.ConfigFileNotFoundError
	return errors.As(err, &notFound) || errors.Is(err, fs.ErrNotExist)
}
