//go:build !windows

package clone

import (
	"os"
	"syscall"
)

// ownedByCurrentUser reports whether fi's file is owned by the process's
// effective UID, part of spec.md §4.3's private-key safety checks.
func ownedByCurrentUser(fi os.FileInfo) bool {
	st, ok := fi.Sys().(*syscall.Stat_t)
	if !ok {
		return false
	}
	return int(st.Uid) == os.Geteuid()
}
