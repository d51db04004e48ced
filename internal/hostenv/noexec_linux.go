//go:build linux

package hostenv

import "os"

// NoExec reports whether path sits on a noexec mount. Unreadable or odd
// mount tables report false.
func NoExec(path string) bool {
	if path == "" {
		return false
	}
	if data, err := os.ReadFile("/proc/self/mountinfo"); err == nil { // #nosec G304 -- fixed procfs path
		if m, ok := Lookup(path, ParseMountinfo(string(data))); ok {
			return m.Has("noexec")
		}
	}
	data, err := os.ReadFile("/proc/mounts") // #nosec G304 -- fixed procfs path
	if err != nil {
		return false
	}
	m, ok := Lookup(path, ParseMounts(string(data)))
	return ok && m.Has("noexec")
}
