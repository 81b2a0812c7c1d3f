package internal

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseVersion(t *testing.T) {
	testCases := []struct {
		name       string
		versionStr string
		expected   *Semver
	}{
		{"Distro kernel", "6.8.0-45-generic", &Semver{major: 6, minor: 8, patch: 0, preRelease: "45-generic"}},
		{"Stable kernel", "3.15.10", &Semver{major: 3, minor: 15, patch: 10}},
		{"Major minor", "3.16", &Semver{major: 3, minor: 16}},
		{"Build suffix", "5.15.0+", &Semver{major: 5, minor: 15}},
		{"Release candidate", "6.12.0-rc3", &Semver{major: 6, minor: 12, preRelease: "rc3"}},
		{"Not a number", "4.x", nil},
		{"Too many parts", "2.6.32.71", nil},
		{"Empty", "", nil},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, Parse(tc.versionStr))
		})
	}
}

func TestCompareVersions(t *testing.T) {
	testCases := []struct {
		name     string
		v1, v2   string
		expected int
	}{
		{"Older minor", "3.15.10", "3.16", -1},
		{"Same", "3.16.0", "3.16", 0},
		{"Newer patch", "3.16.1", "3.16", 1},
		{"Newer major", "6.8.0", "3.16", 1},
		{"Release candidate first", "6.12.0-rc3", "6.12.0", -1},
		{"Release candidates", "6.12.0-rc3", "6.12.0-rc4", -1},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			res, err := CompareVersions(Parse(tc.v1), Parse(tc.v2))
			assert.NoError(t, err)
			assert.Equal(t, tc.expected, res)
		})
	}

	_, err := CompareVersions(nil, Parse("3.16"))
	assert.Error(t, err)
}

func TestVersion(t *testing.T) {
	assert.Equal(t, "1.5.0-dev", Version())
}
