package server

import (
	"path/filepath"
	"syscall"
	"time"

	"github.com/hanwen/go-fuse/v2/fuse"

	"github.com/brettbedarf/termfs"
	"github.com/brettbedarf/termfs/filesystem"
	"github.com/brettbedarf/termfs/internal/util"
)

// FuseRaw implements the low-level FUSE wire protocol as a read-only view
// of a [filesystem.FileSystem]. Node ids of the tree are used as FUSE node
// ids directly; the root is FUSE_ROOT_ID in both.
// See https://www.man7.org/linux//man-pages/man4/fuse.4.html
type FuseRaw struct {
	fuse.RawFileSystem
	fs         *filesystem.FileSystem
	owners     *ownerResolver
	mountPoint string
	attrTTL    time.Duration
	entryTTL   time.Duration
	server     *fuse.Server
}

func NewFuseRaw(fs *filesystem.FileSystem, mountPoint string) *FuseRaw {
	cfg := fs.Config()
	return &FuseRaw{
		RawFileSystem: fuse.NewDefaultRawFileSystem(),
		fs:            fs,
		owners:        newOwnerResolver(),
		mountPoint:    mountPoint,
		attrTTL:       seconds(cfg.AttrTimeout),
		entryTTL:      seconds(cfg.EntryTimeout),
	}
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

func (r *FuseRaw) Init(s *fuse.Server) {
	logger := util.GetLogger("Fuse.Init")
	logger.Debug().Str("mountpoint", r.mountPoint).Msg("FUSE initialized")
	r.server = s
}

func (r *FuseRaw) OnUnmount() {
	logger := util.GetLogger("Fuse.OnUnmount")
	logger.Info().Str("mountpoint", r.mountPoint).Msg("FUSE unmounted")
}

func (r *FuseRaw) String() string {
	return "termfs"
}

func (r *FuseRaw) attr(node *filesystem.Node) fuse.Attr {
	info := node.Info()
	return filesystem.NewAttr(info, r.owners.Owner(info.Owner, info.Group))
}

// node returns the live node for a kernel node id
func (r *FuseRaw) node(id uint64) (*filesystem.Node, fuse.Status) {
	node, ok := r.fs.Lookup(id)
	if !ok {
		return nil, fuse.ENOENT
	}
	return node, fuse.OK
}

// Access is called when the kernel wants to know if the user has permission
// to access the node. Mode bits are enforced by the kernel via
// default_permissions; only writes are refused here.
func (r *FuseRaw) Access(cancel <-chan struct{}, input *fuse.AccessIn) fuse.Status {
	if _, st := r.node(input.NodeId); !st.Ok() {
		return st
	}
	if input.Mask&uint32(syscall.W_OK) != 0 {
		return fuse.Status(syscall.EROFS)
	}
	return fuse.OK
}

// Lookup resolves a child by name within the directory header.NodeId
func (r *FuseRaw) Lookup(cancel <-chan struct{}, header *fuse.InHeader, name string, out *fuse.EntryOut) fuse.Status {
	logger := util.GetLogger("Fuse.Lookup")

	parent, st := r.node(header.NodeId)
	if !st.Ok() {
		return st
	}
	if parent.Kind() != termfs.Directory {
		return fuse.ENOTDIR
	}
	child, ok := parent.Child(name)
	if !ok {
		logger.Trace().Uint64("parent", header.NodeId).Str("name", name).Msg("Lookup miss")
		return fuse.ENOENT
	}

	out.NodeId = child.ID()
	out.Attr = r.attr(child)
	out.SetAttrTimeout(r.attrTTL)
	out.SetEntryTimeout(r.entryTTL)
	return fuse.OK
}

func (r *FuseRaw) GetAttr(cancel <-chan struct{}, input *fuse.GetAttrIn, out *fuse.AttrOut) fuse.Status {
	node, st := r.node(input.NodeId)
	if !st.Ok() {
		return st
	}
	out.Attr = r.attr(node)
	out.SetTimeout(r.attrTTL)
	return fuse.OK
}

// Open only allows read-only access to non-directories
func (r *FuseRaw) Open(cancel <-chan struct{}, input *fuse.OpenIn, out *fuse.OpenOut) fuse.Status {
	node, st := r.node(input.NodeId)
	if !st.Ok() {
		return st
	}
	if node.Kind() == termfs.Directory {
		return fuse.Status(syscall.EISDIR)
	}
	if input.Flags&(syscall.O_WRONLY|syscall.O_RDWR|syscall.O_TRUNC|syscall.O_APPEND) != 0 {
		return fuse.Status(syscall.EROFS)
	}
	// content can change underneath through the tree API
	out.OpenFlags |= fuse.FOPEN_DIRECT_IO
	return fuse.OK
}

func (r *FuseRaw) Read(cancel <-chan struct{}, input *fuse.ReadIn, buf []byte) (fuse.ReadResult, fuse.Status) {
	logger := util.GetLogger("Fuse.Read")

	node, st := r.node(input.NodeId)
	if !st.Ok() {
		return nil, st
	}
	content, err := node.ReadContent()
	if err != nil {
		logger.Debug().Err(err).Uint64("node", input.NodeId).Msg("Read failed")
		return nil, fuse.Status(filesystem.ToErrno(err))
	}

	off := min(input.Offset, uint64(len(content)))
	end := min(off+uint64(input.Size), uint64(len(content)))
	return fuse.ReadResultData([]byte(content[off:end])), fuse.OK
}

// Readlink returns the link's target path. Absolute targets are rewritten
// below the mount point so the kernel resolves them inside this tree.
func (r *FuseRaw) Readlink(cancel <-chan struct{}, header *fuse.InHeader) ([]byte, fuse.Status) {
	node, st := r.node(header.NodeId)
	if !st.Ok() {
		return nil, st
	}
	target, ok := node.LinkPath()
	if !ok {
		return nil, fuse.EINVAL
	}
	if filepath.IsAbs(target) && r.mountPoint != "" {
		target = filepath.Join(r.mountPoint, target)
	}
	return []byte(target), fuse.OK
}

func (r *FuseRaw) OpenDir(cancel <-chan struct{}, input *fuse.OpenIn, out *fuse.OpenOut) fuse.Status {
	node, st := r.node(input.NodeId)
	if !st.Ok() {
		return st
	}
	if node.Kind() != termfs.Directory {
		return fuse.ENOTDIR
	}
	return fuse.OK
}

// ReadDir lists "." and ".." followed by the children in listing order.
// input.Offset is the index of the next entry to send.
func (r *FuseRaw) ReadDir(cancel <-chan struct{}, input *fuse.ReadIn, out *fuse.DirEntryList) fuse.Status {
	logger := util.GetLogger("Fuse.ReadDir")

	node, st := r.node(input.NodeId)
	if !st.Ok() {
		return st
	}
	if node.Kind() != termfs.Directory {
		return fuse.ENOTDIR
	}

	entries := dirEntries(node)
	for i := input.Offset; i < uint64(len(entries)); i++ {
		if !out.AddDirEntry(entries[i]) {
			// Buffer is full; the kernel calls again with a new offset
			break
		}
	}
	logger.Trace().Uint64("node", input.NodeId).Uint64("offset", input.Offset).Int("entries", len(entries)).Msg("ReadDir")
	return fuse.OK
}

func dirEntries(dir *filesystem.Node) []fuse.DirEntry {
	parentID := dir.ID()
	if parent, ok := dir.Parent(); ok {
		parentID = parent.ID()
	}
	children := dir.Children()

	entries := make([]fuse.DirEntry, 0, len(children)+2)
	entries = append(entries,
		fuse.DirEntry{Name: ".", Mode: syscall.S_IFDIR, Ino: dir.ID()},
		fuse.DirEntry{Name: "..", Mode: syscall.S_IFDIR, Ino: parentID},
	)
	for _, child := range children {
		entries = append(entries, fuse.DirEntry{
			Name: child.Name(),
			Mode: filesystem.ModeType(child.Kind()),
			Ino:  child.ID(),
		})
	}
	return entries
}

func (r *FuseRaw) StatFs(cancel <-chan struct{}, header *fuse.InHeader, out *fuse.StatfsOut) fuse.Status {
	out.Bsize = filesystem.Blksize
	out.Frsize = filesystem.Blksize
	out.NameLen = filesystem.MaxNameLen
	out.Files = uint64(r.fs.Len())
	return fuse.OK
}
