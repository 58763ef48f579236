// Package version reports the build version, set at link time with
// -ldflags "-X github.com/willia4/electriclemur-v3/pkg/version.version=1.2.3".
package version

import (
	"strconv"
	"strings"
)

var version = "0.0.0-dev"

func GetVersion() string {
	return version
}

// Numeric packs major.minor.patch into one comparable int. Pre-release
// suffixes are ignored.
func Numeric(semVer string) int {
	semVer = strings.TrimPrefix(semVer, "v")
	if i := strings.IndexAny(semVer, "-+"); i >= 0 {
		semVer = semVer[:i]
	}
	result := 0
	for _, part := range strings.SplitN(semVer, ".", 3) {
		num, _ := strconv.Atoi(part)
		result = result*1000 + num
	}
	return result
}
