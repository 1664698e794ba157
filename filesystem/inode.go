package filesystem

import (
	"syscall"

	"github.com/brettbedarf/termfs"
	"github.com/hanwen/go-fuse/v2/fuse"
)

// Blksize is the preferred size for fs ops reported in attributes
const Blksize = 4096

var modeTypes = map[termfs.FileType]uint32{
	termfs.RegularFile:     syscall.S_IFREG,
	termfs.Directory:       syscall.S_IFDIR,
	termfs.SymbolicLink:    syscall.S_IFLNK,
	termfs.CharacterDevice: syscall.S_IFCHR,
	termfs.BlockDevice:     syscall.S_IFBLK,
	termfs.NamedPipe:       syscall.S_IFIFO,
	termfs.Socket:          syscall.S_IFSOCK,
}

// ModeType returns the S_IF* file type bits for kind
func ModeType(kind termfs.FileType) uint32 {
	return modeTypes[kind]
}

// PermBits converts a validated symbolic permission string i.e. "rwxr-x---"
// to its octal form 0o750
func PermBits(perms string) uint32 {
	var bits uint32
	for i := 0; i < len(perms) && i < 9; i++ {
		bits <<= 1
		if perms[i] != '-' {
			bits |= 1
		}
	}
	return bits
}

// NewAttr builds fuse attributes from a metadata snapshot.
// Links report the length of their target path as size, like lstat(2).
func NewAttr(info termfs.NodeInfo, owner fuse.Owner) fuse.Attr {
	size := uint64(info.Size)
	if info.Type == termfs.SymbolicLink {
		size = uint64(len(info.LinkTarget))
	}
	attr := fuse.Attr{
		Ino:     info.ID,
		Size:    size,
		Blocks:  (size + 511) / 512,
		Mode:    ModeType(info.Type) | PermBits(info.Permissions),
		Nlink:   1,
		Owner:   owner,
		Blksize: Blksize,
		// Only non-zero for device files (see S_IFCHR and S_IFBLK) (N/A)
		Rdev: 0,
	}
	attr.SetTimes(&info.AccessedAt, &info.ModifiedAt, &info.ChangedAt)
	return attr
}

// Attr returns the fuse attributes of the node itself (lstat)
func (n *Node) Attr(owner fuse.Owner) fuse.Attr {
	return NewAttr(n.Info(), owner)
}
