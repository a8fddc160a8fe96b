//go:build windows

package clone

import "os"

// ownedByCurrentUser is not meaningfully checkable via os.FileInfo on
// Windows; the on-disk ED25519 fallback is unsupported there and this
// always reports false, forcing callers onto the ssh-agent path.
func ownedByCurrentUser(_ os.FileInfo) bool {
	return false
}
