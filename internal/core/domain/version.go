package domain

import (
	"regexp"
	"strings"

	"go.trai.ch/zerr"
	"golang.org/x/mod/semver"
)

// macOSReleases maps release codenames to their version numbers.
var macOSReleases = map[string]string{
	"leopard":       "10.5",
	"snow_leopard":  "10.6",
	"lion":          "10.7",
	"mountain_lion": "10.8",
	"mavericks":     "10.9",
	"yosemite":      "10.10",
	"el_capitan":    "10.11",
	"sierra":        "10.12",
	"high_sierra":   "10.13",
	"mojave":        "10.14",
	"catalina":      "10.15",
	"big_sur":       "11",
	"monterey":      "12",
	"ventura":       "13",
	"sonoma":        "14",
	"sequoia":       "15",
}

var numericPrefix = regexp.MustCompile(`^\d+(\.\d+){0,2}`)

// CanonicalVersion converts a platform version or release codename to a
// comparable semantic version such as "v10.7".
func CanonicalVersion(v string) (string, error) {
	v = strings.TrimSpace(strings.ToLower(v))
	if named, ok := macOSReleases[strings.ReplaceAll(v, "-", "_")]; ok {
		v = named
	}
	v = strings.TrimPrefix(v, "v")
	num := numericPrefix.FindString(v)
	if num == "" {
		return "", zerr.With(ErrInvalidVersion, "version", v)
	}
	canon := "v" + num
	if !semver.IsValid(canon) {
		return "", zerr.With(ErrInvalidVersion, "version", v)
	}
	return canon, nil
}

// ComparePlatformVersion compares the host version against a reference at the
// reference's precision, so "10.6.8" equals "snow_leopard" and is at most "10.6".
func ComparePlatformVersion(actual, ref string) (int, error) {
	ca, err := CanonicalVersion(actual)
	if err != nil {
		return 0, err
	}
	cr, err := CanonicalVersion(ref)
	if err != nil {
		return 0, err
	}
	parts := strings.Split(ca, ".")
	if n := strings.Count(cr, ".") + 1; len(parts) > n {
		ca = strings.Join(parts[:n], ".")
	}
	return semver.Compare(ca, cr), nil
}
