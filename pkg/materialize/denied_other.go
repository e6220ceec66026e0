//go:build !windows

package materialize

import (
	stderrors "errors"
	"io/fs"
)

// isLinkDenied reports whether err means the OS refused to create a
// symbolic link for this user.
func isLinkDenied(err error) bool {
	return stderrors.Is(err, fs.ErrPermission)
}
