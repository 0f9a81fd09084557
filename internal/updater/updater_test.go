package updater

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"
)

type countingResolver struct {
	latest string
	calls  int
}

func (r *countingResolver) ResolveLatest(ctx context.Context, name, registryURL string) (string, bool) {
	r.calls++
	return r.latest, r.latest != ""
}

func TestCheckAndPrint_NewerVersion(t *testing.T) {
	home := t.TempDir()
	resolver := &countingResolver{latest: "1.2.0"}
	u := New("1.0.0", resolver, WithPackage("@scaff-cli/core"))

	var buf bytes.Buffer
	u.CheckAndPrint(context.Background(), &buf, home)

	out := buf.String()
	for _, want := range []string{"Update available", "1.0.0", "1.2.0", "npm install -g @scaff-cli/core"} {
		if !strings.Contains(out, want) {
			t.Errorf("notice %q missing %q", out, want)
		}
	}
}

func TestCheckAndPrint_UpToDate(t *testing.T) {
	home := t.TempDir()
	u := New("1.2.0", &countingResolver{latest: "1.2.0"})

	var buf bytes.Buffer
	u.CheckAndPrint(context.Background(), &buf, home)
	if buf.Len() != 0 {
		t.Errorf("unexpected notice: %q", buf.String())
	}
}

func TestCheckAndPrint_DevBuildSkipsLookup(t *testing.T) {
	resolver := &countingResolver{latest: "9.9.9"}
	u := New("dev", resolver)

	var buf bytes.Buffer
	u.CheckAndPrint(context.Background(), &buf, t.TempDir())
	if buf.Len() != 0 || resolver.calls != 0 {
		t.Errorf("dev build checked for updates: calls=%d output=%q", resolver.calls, buf.String())
	}
}

func TestLatest_UsesFreshCache(t *testing.T) {
	home := t.TempDir()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	resolver := &countingResolver{latest: "1.2.0"}
	u := New("1.0.0", resolver, WithPackage("@scaff-cli/core"), WithClock(func() time.Time { return now }))

	for range 3 {
		if got, ok := u.Latest(context.Background(), home); !ok || got != "1.2.0" {
			t.Fatalf("Latest = (%q, %v), want 1.2.0", got, ok)
		}
	}
	if resolver.calls != 1 {
		t.Errorf("resolver calls = %d, want 1", resolver.calls)
	}
}

func TestLatest_RefreshesStaleCache(t *testing.T) {
	home := t.TempDir()
	if err := SaveCache(home, &VersionCache{
		Package:       "@scaff-cli/core",
		LatestVersion: "1.1.0",
		CheckedAt:     time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC),
	}); err != nil {
		t.Fatal(err)
	}
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	resolver := &countingResolver{latest: "1.3.0"}
	u := New("1.0.0", resolver, WithPackage("@scaff-cli/core"), WithClock(func() time.Time { return now }))

	got, ok := u.Latest(context.Background(), home)
	if !ok || got != "1.3.0" {
		t.Fatalf("Latest = (%q, %v), want 1.3.0", got, ok)
	}
	cache, err := LoadCache(home)
	if err != nil {
		t.Fatal(err)
	}
	if cache.LatestVersion != "1.3.0" || !cache.CheckedAt.Equal(now) {
		t.Errorf("cache not refreshed: %+v", cache)
	}
}

func TestLatest_RegistryUnavailable(t *testing.T) {
	home := t.TempDir()
	u := New("1.0.0", &countingResolver{})

	if got, ok := u.Latest(context.Background(), home); ok {
		t.Errorf("Latest = %q, want not ok", got)
	}
	if cache, _ := LoadCache(home); cache != nil {
		t.Errorf("failed lookup was cached: %+v", cache)
	}
}

func TestIsUpdateAvailable(t *testing.T) {
	tests := []struct {
		current, latest string
		want            bool
	}{
		{"1.0.0", "1.0.1", true},
		{"v1.0.0", "1.1.0", true},
		{"1.1.0", "1.0.0", false},
		{"1.0.0", "1.0.0", false},
		{"1.0.0-beta", "1.0.0", true},
		{"dev", "1.0.0", false},
		{"1.0.0", "garbage", false},
	}
	for _, tt := range tests {
		if got := IsUpdateAvailable(tt.current, tt.latest); got != tt.want {
			t.Errorf("IsUpdateAvailable(%q, %q) = %v, want %v", tt.current, tt.latest, got, tt.want)
		}
	}
}
