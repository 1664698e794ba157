package filesystem

import (
	"errors"
	"fmt"
	"syscall"
)

var (
	// ErrInvalidName indicates a name that is empty, too long, contains the
	// path separator or is one of "." and ".."
	ErrInvalidName = errors.New("invalid file name")

	// ErrNameConflict indicates a sibling with the same name already exists
	ErrNameConflict = errors.New("file already exists")

	ErrNotADirectory = errors.New("not a directory")
	ErrIsADirectory  = errors.New("is a directory")

	// ErrInvalidPermissionFormat indicates a permission string not matching rwxrwxrwx
	ErrInvalidPermissionFormat = errors.New("invalid permission format")

	ErrMissingLinkTarget = errors.New("symbolic link target is missing")

	// ErrDanglingLink indicates the link's target does not currently resolve
	ErrDanglingLink = errors.New("dangling symbolic link")

	ErrCyclicSymbolicLink = errors.New("symbolic link target generates a cycle")

	ErrNotASymlink     = errors.New("not a symbolic link")
	ErrInvalidFileType = errors.New("invalid file type")

	ErrNotFound          = errors.New("no such file or directory")
	ErrRootNode          = errors.New("operation not permitted on root")
	ErrDirectoryNotEmpty = errors.New("directory not empty")
)

// Error wraps a sentinel error with the operation and path it failed on.
// Use errors.Is against the package sentinels to classify it.
type Error struct {
	Op   string // Operation that failed (e.g., "rename", "write")
	Path string // Affected path
	Err  error  // Underlying error
}

func (e *Error) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(op, path string, err error) *Error {
	return &Error{Op: op, Path: path, Err: err}
}

// Operation names for consistent logging and error reporting
const (
	OpCreate   = "create"
	OpResolve  = "resolve"
	OpRename   = "rename"
	OpRemove   = "remove"
	OpRead     = "read"
	OpWrite    = "write"
	OpChmod    = "chmod"
	OpChown    = "chown"
	OpChgrp    = "chgrp"
	OpStat     = "stat"
	OpSymlink  = "symlink"
	OpMkdirAll = "mkdirall"
)

// ToErrno converts an error returned by this package to the closest errno
// so it can be handed back to the kernel by the FUSE export.
func ToErrno(err error) syscall.Errno {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrDanglingLink):
		return syscall.ENOENT
	case errors.Is(err, ErrNameConflict):
		return syscall.EEXIST
	case errors.Is(err, ErrNotADirectory):
		return syscall.ENOTDIR
	case errors.Is(err, ErrIsADirectory):
		return syscall.EISDIR
	case errors.Is(err, ErrInvalidName):
		if errors.Is(err, errNameTooLong) {
			return syscall.ENAMETOOLONG
		}
		return syscall.EINVAL
	case errors.Is(err, ErrInvalidPermissionFormat), errors.Is(err, ErrMissingLinkTarget),
		errors.Is(err, ErrNotASymlink), errors.Is(err, ErrInvalidFileType):
		return syscall.EINVAL
	case errors.Is(err, ErrCyclicSymbolicLink):
		return syscall.ELOOP
	case errors.Is(err, ErrRootNode):
		return syscall.EPERM
	case errors.Is(err, ErrDirectoryNotEmpty):
		return syscall.ENOTEMPTY
	default:
		return syscall.EIO
	}
}
