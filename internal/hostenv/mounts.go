// Package hostenv inspects the host the install root lives on.
package hostenv

import (
	"path/filepath"
	"strings"

	"github.com/samber/lo"
)

// Mount is one row of the kernel mount table.
type Mount struct {
	Point   string
	Options []string
}

func (m Mount) Has(opt string) bool {
	return lo.Contains(m.Options, opt)
}

// ParseMountinfo reads /proc/self/mountinfo. Per-mount and super options
// are merged.
func ParseMountinfo(content string) []Mount {
	var out []Mount
	for _, line := range strings.Split(content, "\n") {
		fields := strings.Fields(line)
		sep := lo.IndexOf(fields, "-")
		// id parent major:minor root mountpoint options ... - fstype source superopts
		if sep < 6 {
			continue
		}
		opts := splitOptions(fields[5])
		if sep+3 < len(fields) {
			opts = lo.Union(opts, splitOptions(fields[sep+3]))
		}
		out = append(out, Mount{Point: unescape(fields[4]), Options: opts})
	}
	return out
}

// ParseMounts reads the /proc/mounts format.
func ParseMounts(content string) []Mount {
	var out []Mount
	for _, line := range strings.Split(content, "\n") {
		fields := strings.Fields(line)
		if len(fields) < 4 {
			continue
		}
		out = append(out, Mount{Point: unescape(fields[1]), Options: splitOptions(fields[3])})
	}
	return out
}

// Lookup returns the mount that holds path: the one with the longest
// matching mount point.
func Lookup(path string, mounts []Mount) (Mount, bool) {
	dest := filepath.ToSlash(filepath.Clean(path))
	if dest == "." || dest == "" {
		return Mount{}, false
	}
	best, found := Mount{}, false
	for _, m := range mounts {
		point := filepath.ToSlash(filepath.Clean(m.Point))
		if !under(dest, point) {
			continue
		}
		if !found || len(point) > len(filepath.ToSlash(filepath.Clean(best.Point))) {
			best, found = m, true
		}
	}
	return best, found
}

func under(path, point string) bool {
	if point == "/" {
		return strings.HasPrefix(path, "/")
	}
	return path == point || strings.HasPrefix(path, point+"/")
}

func splitOptions(s string) []string {
	return lo.Compact(lo.Map(strings.Split(s, ","), func(o string, _ int) string {
		return strings.TrimSpace(o)
	}))
}

// unescape undoes the octal escapes procfs uses in mount paths.
var unescape = strings.NewReplacer(`\040`, " ", `\011`, "\t", `\012`, "\n", `\134`, `\`).Replace
