//go:build windows

package materialize

import (
	stderrors "errors"
	"io/fs"
	"syscall"
)

// errPrivilegeNotHeld is ERROR_PRIVILEGE_NOT_HELD, returned by CreateSymbolicLink
// without SeCreateSymbolicLinkPrivilege or developer mode.
const errPrivilegeNotHeld syscall.Errno = 1314

func isLinkDenied(err error) bool {
	var errno syscall.Errno
	if stderrors.As(err, &errno) && errno == errPrivilegeNotHeld {
		return true
	}
	return stderrors.Is(err, fs.ErrPermission)
}
