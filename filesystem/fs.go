package filesystem

import (
	"path"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/brettbedarf/termfs"
	"github.com/brettbedarf/termfs/config"
	"github.com/brettbedarf/termfs/internal/util"
	"github.com/google/uuid"
	"github.com/hanwen/go-fuse/v2/fuse"
	"github.com/puzpuzpuz/xsync/v4"
	"github.com/rs/zerolog"
)

// FileSystem owns the node tree. Nodes are kept in a registry keyed by
// inode number and reference each other by id.
//
// A single lock serializes every structural and metadata mutation; the
// registry itself can be read without it.
type FileSystem struct {
	cfg     *config.Config
	id      uuid.UUID                 // Instance id attached to every log line
	mu      sync.RWMutex              // Protects all mutable Node fields
	root    *Node                     // Root of node tree
	lastIno atomic.Uint64             // Last inode number assigned; incremented when new nodes are created
	nodes   *xsync.Map[uint64, *Node] // maps inode numbers to live Nodes
	perms   defaultPerms
	now     func() time.Time
}

type defaultPerms struct {
	dir, file, symlink string
}

// CreateOptions carries the kind-specific inputs of [FileSystem.CreateNode]
type CreateOptions struct {
	Content    string // Initial payload for files and special files
	LinkTarget string // Required for SymbolicLink
	Perms      string // Replaces the kind's default permissions when set
}

// NewFS creates a filesystem holding only the root directory "/".
// A nil cfg uses [config.NewDefaultConfig].
func NewFS(cfg *config.Config) *FileSystem {
	if cfg == nil {
		cfg = config.NewDefaultConfig()
	}
	fs := &FileSystem{
		cfg:   cfg,
		id:    uuid.New(),
		nodes: xsync.NewMap[uint64, *Node](),
		now:   time.Now,
	}
	logger := fs.logger("NewFS")
	fs.perms = defaultPerms{
		dir:     permsOrDefault(logger, "dir_perms", cfg.DirPerms, config.DefaultDirPerms),
		file:    permsOrDefault(logger, "file_perms", cfg.FilePerms, config.DefaultFilePerms),
		symlink: permsOrDefault(logger, "symlink_perms", cfg.SymlinkPerms, config.DefaultSymlinkPerms),
	}

	now := fs.now()
	root := &Node{
		fs:         fs,
		id:         fuse.FUSE_ROOT_ID,
		kind:       termfs.Directory,
		createdAt:  now,
		name:       Separator,
		parent:     noParent,
		children:   make(map[string]uint64),
		owner:      cfg.RootOwner,
		group:      cfg.RootGroup,
		perms:      fs.perms.dir,
		modifiedAt: now,
		accessedAt: now,
		changedAt:  now,
	}
	fs.root = root
	fs.lastIno.Store(fuse.FUSE_ROOT_ID)
	fs.nodes.Store(root.id, root)

	logger.Debug().Str("owner", root.owner).Str("group", root.group).Msg("Created filesystem")
	return fs
}

func permsOrDefault(logger zerolog.Logger, field, perms, def string) string {
	if err := ValidatePermissions(perms); err != nil {
		logger.Warn().Err(err).Str("field", field).Str("default", def).Msg("Invalid configured permissions; using default")
		return def
	}
	return perms
}

// ID returns the instance id of this filesystem
func (fs *FileSystem) ID() uuid.UUID {
	return fs.id
}

// Config returns the configuration the filesystem was created with
func (fs *FileSystem) Config() *config.Config {
	return fs.cfg
}

func (fs *FileSystem) Root() *Node {
	return fs.root
}

// Lookup returns the live node with the given inode number
func (fs *FileSystem) Lookup(id uint64) (*Node, bool) {
	return fs.nodes.Load(id)
}

// Len returns the number of live nodes including the root
func (fs *FileSystem) Len() int {
	return fs.nodes.Size()
}

// nodeLocked looks up a live node; id 0 never matches
func (fs *FileSystem) nodeLocked(id uint64) (*Node, bool) {
	if id == noParent {
		return nil, false
	}
	return fs.nodes.Load(id)
}

func (fs *FileSystem) logger(component string) zerolog.Logger {
	return util.GetLogger(component).With().Str("fs", fs.id.String()).Logger()
}

// fail wraps err for the caller and records the rejection
func (fs *FileSystem) fail(op, path string, err error) error {
	logger := fs.logger("FS")
	logger.Debug().Err(err).Str("op", op).Str("path", path).Msg("Operation rejected")
	return newError(op, path, err)
}

// CreateNode creates a child of parent and returns it. Directories receive
// "rwxrwxr-x", symbolic links "rwxrwxrwx" and every other kind "rw-rw-r--"
// unless opts.Perms is set or the config says otherwise.
//
// A symbolic link must have a non-empty opts.LinkTarget. The target is
// resolved once here; a missing target leaves the link dangling.
func (fs *FileSystem) CreateNode(parent *Node, name string, kind termfs.FileType, owner, group string, opts *CreateOptions) (*Node, error) {
	logger := fs.logger("FS.CreateNode")
	if opts == nil {
		opts = &CreateOptions{}
	}

	fs.mu.Lock()
	defer fs.mu.Unlock()

	node, err := fs.createLocked(parent, name, kind, owner, group, opts)
	if err != nil {
		p := name
		if parent != nil {
			p = path.Join(parent.fullPathLocked(), name)
		}
		return nil, fs.fail(OpCreate, p, err)
	}
	logger.Debug().Str("path", node.fullPathLocked()).Uint64("id", node.id).Stringer("type", kind).Msg("Created node")
	return node, nil
}

func (fs *FileSystem) createLocked(parent *Node, name string, kind termfs.FileType, owner, group string, opts *CreateOptions) (*Node, error) {
	if parent == nil || parent.removed {
		return nil, ErrNotFound
	}
	if parent.kind != termfs.Directory {
		return nil, ErrNotADirectory
	}
	if !kind.Valid() {
		return nil, ErrInvalidFileType
	}
	if err := ValidateName(name); err != nil {
		return nil, err
	}
	if _, exists := parent.children[name]; exists {
		return nil, ErrNameConflict
	}
	if opts.Perms != "" {
		if err := ValidatePermissions(opts.Perms); err != nil {
			return nil, err
		}
	}

	now := fs.now()
	node := &Node{
		fs:         fs,
		kind:       kind,
		createdAt:  now,
		name:       name,
		parent:     parent.id,
		children:   make(map[string]uint64),
		owner:      owner,
		group:      group,
		modifiedAt: now,
		accessedAt: now,
		changedAt:  now,
	}

	switch kind {
	case termfs.Directory:
		node.perms = fs.perms.dir
	case termfs.SymbolicLink:
		if opts.LinkTarget == "" {
			return nil, ErrMissingLinkTarget
		}
		node.perms = fs.perms.symlink
		node.link = &symlink{}
	default:
		node.perms = fs.perms.file
		node.content = opts.Content
	}
	if opts.Perms != "" {
		node.perms = opts.Perms
	}

	node.id = fs.lastIno.Add(1)
	if node.link != nil {
		if err := fs.retargetLocked(node, opts.LinkTarget); err != nil {
			return nil, err
		}
	}

	fs.nodes.Store(node.id, node)
	parent.children[name] = node.id
	parent.order = append(parent.order, name)
	return node, nil
}

// ResolvePath walks an absolute path from the root through child names.
// Empty segments are ignored, so "/", "//a" and "a/" all work; symbolic
// links along the way are not followed.
func (fs *FileSystem) ResolvePath(p string) (*Node, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	node, err := fs.resolvePathLocked(p)
	if err != nil {
		return nil, newError(OpResolve, p, err)
	}
	return node, nil
}

func (fs *FileSystem) resolvePathLocked(p string) (*Node, error) {
	cur := fs.root
	for _, name := range strings.Split(p, Separator) {
		if name == "" {
			continue
		}
		if cur.kind != termfs.Directory {
			return nil, ErrNotADirectory
		}
		next, ok := cur.childLocked(name)
		if !ok {
			return nil, ErrNotFound
		}
		cur = next
	}
	return cur, nil
}

// SetLinkTarget points a symbolic link at a new path.
//
// When the path resolves, the chain of links starting at the resolved node
// is followed; meeting the link itself or any node twice is rejected with
// [ErrCyclicSymbolicLink] and the link keeps its current target. When the
// path does not resolve the link becomes dangling.
func (fs *FileSystem) SetLinkTarget(link *Node, target string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	linkPath := link.fullPathLocked()
	if err := fs.setLinkTargetLocked(link, target); err != nil {
		return fs.fail(OpSymlink, linkPath, err)
	}
	logger := fs.logger("FS.SetLinkTarget")
	logger.Debug().Str("path", linkPath).Str("target", target).Bool("dangling", link.link.target == 0).Msg("Retargeted link")
	return nil
}

func (fs *FileSystem) setLinkTargetLocked(link *Node, target string) error {
	if link.removed {
		return ErrNotFound
	}
	if link.kind != termfs.SymbolicLink {
		return ErrNotASymlink
	}
	if target == "" {
		return ErrMissingLinkTarget
	}
	if err := fs.retargetLocked(link, target); err != nil {
		return err
	}
	link.changedAt = fs.now()
	return nil
}

// retargetLocked resolves target and updates link's path and resolved id
// together, or leaves both untouched when the result would be a cycle.
func (fs *FileSystem) retargetLocked(link *Node, target string) error {
	resolved, err := fs.resolvePathLocked(target)
	if err != nil {
		link.link.path = target
		link.link.target = 0
		return nil
	}

	visited := map[uint64]struct{}{link.id: {}}
	for cur := resolved; cur.kind == termfs.SymbolicLink; {
		if _, seen := visited[cur.id]; seen {
			return ErrCyclicSymbolicLink
		}
		visited[cur.id] = struct{}{}

		next, ok := fs.nodeLocked(cur.link.target)
		if !ok {
			break
		}
		cur = next
	}

	link.link.path = target
	link.link.target = resolved.id
	return nil
}

// Remove detaches node from its parent and drops it, and with recursive its
// whole subtree, from the registry. Inode numbers are not reused and links
// pointing into the removed subtree become dangling.
func (fs *FileSystem) Remove(node *Node, recursive bool) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	p := node.fullPathLocked()
	count, err := fs.removeLocked(node, recursive)
	if err != nil {
		return fs.fail(OpRemove, p, err)
	}
	logger := fs.logger("FS.Remove")
	logger.Debug().Str("path", p).Int("count", count).Msg("Removed node(s)")
	return nil
}

func (fs *FileSystem) removeLocked(node *Node, recursive bool) (int, error) {
	if node.removed {
		return 0, ErrNotFound
	}
	if node.isRootLocked() {
		return 0, ErrRootNode
	}
	if len(node.children) > 0 && !recursive {
		return 0, ErrDirectoryNotEmpty
	}
	parent, ok := fs.nodeLocked(node.parent)
	if !ok {
		return 0, ErrNotFound
	}

	delete(parent.children, node.name)
	parent.order = slices.DeleteFunc(parent.order, func(name string) bool { return name == node.name })
	return fs.dropLocked(node), nil
}

// dropLocked marks the subtree removed and evicts it from the registry
func (fs *FileSystem) dropLocked(node *Node) int {
	node.lastPath = node.fullPathLocked()
	count := 1
	for _, child := range node.childrenLocked() {
		count += fs.dropLocked(child)
	}
	node.removed = true
	fs.nodes.Delete(node.id)
	return count
}

// MkdirAll creates every missing directory along p and returns the leaf.
// It is equivalent to `mkdir -p`: existing directories are reused and an
// existing leaf is not an error.
func (fs *FileSystem) MkdirAll(p, owner, group string) (*Node, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.mkdirAllLocked(p, owner, group)
}

func (fs *FileSystem) mkdirAllLocked(p, owner, group string) (*Node, error) {
	logger := fs.logger("FS.MkdirAll")

	cur := fs.root
	newCnt := 0
	for _, name := range strings.Split(p, Separator) {
		if name == "" {
			continue
		}
		if child, ok := cur.childLocked(name); ok {
			if child.kind != termfs.Directory {
				return nil, fs.fail(OpMkdirAll, child.fullPathLocked(), ErrNotADirectory)
			}
			cur = child
			continue
		}
		child, err := fs.createLocked(cur, name, termfs.Directory, owner, group, &CreateOptions{})
		if err != nil {
			return nil, fs.fail(OpMkdirAll, path.Join(cur.fullPathLocked(), name), err)
		}
		newCnt++
		cur = child
	}
	if newCnt > 0 {
		logger.Debug().Str("path", p).Int("created", newCnt).Msg("Created directories")
	}
	return cur, nil
}

// AddNode creates the node described by req, creating any missing ancestor
// directories first. A directory request for an existing directory returns
// it unchanged. Ancestors created before a rejected leaf are kept.
func (fs *FileSystem) AddNode(req *termfs.NodeRequest) (*Node, error) {
	logger := fs.logger("FS.AddNode").With().Str("uuid", req.UUID).Logger()

	fs.mu.Lock()
	defer fs.mu.Unlock()

	clean := path.Clean(Separator + req.Path)
	dirPath, name := path.Split(clean)
	parent, err := fs.mkdirAllLocked(dirPath, req.Owner, req.Group)
	if err != nil {
		return nil, err
	}

	if req.Type == termfs.Directory {
		if existing, ok := parent.childLocked(name); ok && existing.kind == termfs.Directory {
			logger.Trace().Str("path", clean).Msg("Directory already exists")
			return existing, nil
		}
		if clean == Separator {
			return fs.root, nil
		}
	}

	opts := &CreateOptions{
		Content:    req.Content,
		LinkTarget: req.LinkTarget,
		Perms:      util.ValueOrDefault(req.Perms, ""),
	}
	node, err := fs.createLocked(parent, name, req.Type, req.Owner, req.Group, opts)
	if err != nil {
		return nil, fs.fail(OpCreate, clean, err)
	}
	logger.Debug().Str("path", clean).Uint64("id", node.id).Stringer("type", req.Type).Msg("Added node")
	return node, nil
}

// Walk visits every live node depth-first in listing order, starting at
// the root. The tree is snapshotted first so fn may call Node methods.
// Returning an error from fn stops the walk.
func (fs *FileSystem) Walk(fn func(node *Node, depth int) error) error {
	type entry struct {
		node  *Node
		depth int
	}

	fs.mu.RLock()
	var entries []entry
	var visit func(n *Node, depth int)
	visit = func(n *Node, depth int) {
		entries = append(entries, entry{n, depth})
		for _, child := range n.childrenLocked() {
			visit(child, depth+1)
		}
	}
	visit(fs.root, 0)
	fs.mu.RUnlock()

	for _, e := range entries {
		if err := fn(e.node, e.depth); err != nil {
			return err
		}
	}
	return nil
}
