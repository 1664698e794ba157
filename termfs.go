// Package termfs contains core domain types shared by the in-memory
// filesystem, its loaders and its FUSE export.
package termfs

import "fmt"

// FileType identifies the kind of a filesystem node. The underlying value is
// the single character `ls -l` prints in front of the permission triads.
type FileType byte

const (
	RegularFile     FileType = '-'
	Directory       FileType = 'd'
	SymbolicLink    FileType = 'l'
	CharacterDevice FileType = 'c'
	BlockDevice     FileType = 'b'
	NamedPipe       FileType = 'p'
	Socket          FileType = 's'
)

var fileTypeNames = map[FileType]string{
	RegularFile:     "file",
	Directory:       "dir",
	SymbolicLink:    "symlink",
	CharacterDevice: "chardev",
	BlockDevice:     "blockdev",
	NamedPipe:       "pipe",
	Socket:          "socket",
}

// String returns the request name of the type i.e. "dir"
func (t FileType) String() string {
	if name, ok := fileTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("FileType(%q)", byte(t))
}

// Valid reports whether t is one of the known kinds
func (t FileType) Valid() bool {
	_, ok := fileTypeNames[t]
	return ok
}

// ParseFileType maps a request name ("file", "dir", "symlink", ...) to its FileType
func ParseFileType(name string) (FileType, error) {
	for t, n := range fileTypeNames {
		if n == name {
			return t, nil
		}
	}
	return 0, fmt.Errorf("unknown node type: %q", name)
}
