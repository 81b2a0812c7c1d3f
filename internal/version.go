package internal

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// set with -ldflags "-X github.com/zhengshuai-xiao/compsize/internal.version=..."
var (
	version      = "1.5.0-dev"
	revision     = "$Format:%h$"
	revisionDate = "$Format:%as$"
)

// Version returns the version string printed by --version.
func Version() string {
	if strings.HasPrefix(revision, "$") {
		return version
	}
	return fmt.Sprintf("%s+%s.%s", version, revisionDate, revision)
}

type Semver struct {
	major, minor, patch uint64
	preRelease          string
}

func (v *Semver) String() string {
	s := fmt.Sprintf("%d.%d.%d", v.major, v.minor, v.patch)
	if v.preRelease != "" {
		s += "-" + v.preRelease
	}
	return s
}

// Parse reads MAJOR[.MINOR[.PATCH]][-PRE][+BUILD]. It returns nil if s is
// not in that form. The build part is dropped.
func Parse(s string) *Semver {
	if i := strings.IndexByte(s, '+'); i >= 0 {
		s = s[:i]
	}
	v := &Semver{}
	if i := strings.IndexByte(s, '-'); i >= 0 {
		v.preRelease = s[i+1:]
		s = s[:i]
	}
	parts := strings.Split(s, ".")
	if len(parts) > 3 {
		return nil
	}
	nums := []*uint64{&v.major, &v.minor, &v.patch}
	for i, p := range parts {
		n, err := strconv.ParseUint(p, 10, 64)
		if err != nil {
			return nil
		}
		*nums[i] = n
	}
	return v
}

// CompareVersions returns -1, 0 or 1. A release sorts after its
// pre-releases, pre-releases compare as strings.
func CompareVersions(v1, v2 *Semver) (int, error) {
	if v1 == nil || v2 == nil {
		return 0, errors.New("cannot compare nil version")
	}
	for _, d := range [][2]uint64{{v1.major, v2.major}, {v1.minor, v2.minor}, {v1.patch, v2.patch}} {
		if d[0] != d[1] {
			if d[0] < d[1] {
				return -1, nil
			}
			return 1, nil
		}
	}
	switch {
	case v1.preRelease == v2.preRelease:
		return 0, nil
	case v1.preRelease == "":
		return 1, nil
	case v2.preRelease == "":
		return -1, nil
	default:
		return strings.Compare(v1.preRelease, v2.preRelease), nil
	}
}
