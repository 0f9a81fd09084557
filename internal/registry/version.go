package registry

import (
	"fmt"
	"sort"
	"strings"

	"github.com/Masterminds/semver/v3"
)

// SortVersions returns the valid semantic versions in vs, ascending by
// precedence. Strings that are not strict semantic versions are dropped.
// Versions of equal precedence (differing only in build metadata) are
// ordered by their original text so the result is deterministic.
func SortVersions(vs []string) []string {
	type parsed struct {
		raw string
		v   *semver.Version
	}
	valid := make([]parsed, 0, len(vs))
	for _, raw := range vs {
		v, err := semver.StrictNewVersion(raw)
		if err != nil {
			continue
		}
		valid = append(valid, parsed{raw: raw, v: v})
	}

	sort.SliceStable(valid, func(i, j int) bool {
		if c := valid[i].v.Compare(valid[j].v); c != 0 {
			return c < 0
		}
		return valid[i].raw < valid[j].raw
	})

	out := make([]string, len(valid))
	for i, p := range valid {
		out[i] = p.raw
	}
	return out
}

// Latest returns the maximum version in vs by semver precedence. Malformed
// entries are ignored; false is returned when nothing valid remains.
func Latest(vs []string) (string, bool) {
	sorted := SortVersions(vs)
	if len(sorted) == 0 {
		return "", false
	}
	return sorted[len(sorted)-1], true
}

// IsValidVersion reports whether v is a strict semantic version.
func IsValidVersion(v string) bool {
	_, err := semver.StrictNewVersion(v)
	return err == nil
}

// CompareVersions compares two version strings using semver.
// Returns -1 if a < b, 0 if equal, 1 if a > b. A leading "v" is tolerated.
func CompareVersions(a, b string) (int, error) {
	av, err := parseSemver(a)
	if err != nil {
		return 0, fmt.Errorf("parsing version %q: %w", a, err)
	}
	bv, err := parseSemver(b)
	if err != nil {
		return 0, fmt.Errorf("parsing version %q: %w", b, err)
	}
	return av.Compare(bv), nil
}

func parseSemver(version string) (*semver.Version, error) {
	return semver.NewVersion(strings.TrimPrefix(version, "v"))
}
