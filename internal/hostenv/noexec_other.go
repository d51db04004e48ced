//go:build !linux

package hostenv

func NoExec(string) bool { return false }
