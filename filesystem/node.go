package filesystem

import (
	"slices"
	"strings"
	"time"

	"github.com/brettbedarf/termfs"
)

// noParent marks the root (and detached nodes) in Node.parent
const noParent uint64 = 0

// Node is a single filesystem entry. Nodes live in their FileSystem's
// registry and reference their parent and children by id.
//
// All accessors take the owning FileSystem's lock.
type Node struct {
	fs        *FileSystem
	id        uint64          // Inode number; never reused
	kind      termfs.FileType // Immutable after creation
	createdAt time.Time

	// Fields below are protected by fs.mu
	name       string
	parent     uint64
	children   map[string]uint64
	order      []string // child names in insertion order
	owner      string
	group      string
	perms      string
	content    string
	modifiedAt time.Time // content changes
	accessedAt time.Time // content reads
	changedAt  time.Time // any metadata or content change
	link       *symlink  // non-nil only for SymbolicLink
	removed    bool
	lastPath   string // path at removal
}

// symlink holds the link-only state of a SymbolicLink node
type symlink struct {
	path   string
	target uint64 // resolved node id; 0 when dangling
}

// ID returns the node's inode number
func (n *Node) ID() uint64 {
	return n.id
}

// Kind returns the node's immutable file type
func (n *Node) Kind() termfs.FileType {
	return n.kind
}

func (n *Node) Name() string {
	n.fs.mu.RLock()
	defer n.fs.mu.RUnlock()
	return n.name
}

func (n *Node) IsRoot() bool {
	n.fs.mu.RLock()
	defer n.fs.mu.RUnlock()
	return n.isRootLocked()
}

func (n *Node) isRootLocked() bool {
	return n.parent == noParent && !n.removed
}

// IsRemoved reports whether the node has been removed from its tree
func (n *Node) IsRemoved() bool {
	n.fs.mu.RLock()
	defer n.fs.mu.RUnlock()
	return n.removed
}

// Parent returns the parent directory; false for the root or a removed node
func (n *Node) Parent() (*Node, bool) {
	n.fs.mu.RLock()
	defer n.fs.mu.RUnlock()
	if n.removed {
		return nil, false
	}
	return n.fs.nodeLocked(n.parent)
}

// Child returns the direct child with the given name
func (n *Node) Child(name string) (*Node, bool) {
	n.fs.mu.RLock()
	defer n.fs.mu.RUnlock()
	return n.childLocked(name)
}

func (n *Node) childLocked(name string) (*Node, bool) {
	id, ok := n.children[name]
	if !ok {
		return nil, false
	}
	return n.fs.nodeLocked(id)
}

// Children returns the direct children in insertion order
func (n *Node) Children() []*Node {
	n.fs.mu.RLock()
	defer n.fs.mu.RUnlock()
	return n.childrenLocked()
}

func (n *Node) childrenLocked() []*Node {
	children := make([]*Node, 0, len(n.order))
	for _, name := range n.order {
		if child, ok := n.childLocked(name); ok {
			children = append(children, child)
		}
	}
	return children
}

// FullPath returns the absolute path of the node; "/" for the root.
// A removed node reports the path it had when it was removed.
func (n *Node) FullPath() string {
	n.fs.mu.RLock()
	defer n.fs.mu.RUnlock()
	return n.fullPathLocked()
}

func (n *Node) fullPathLocked() string {
	if n.removed {
		return n.lastPath
	}
	if n.isRootLocked() {
		return Separator
	}
	var names []string
	for cur := n; cur.parent != noParent; {
		names = append(names, cur.name)
		p, ok := n.fs.nodeLocked(cur.parent)
		if !ok {
			break
		}
		cur = p
	}
	slices.Reverse(names)
	return Separator + strings.Join(names, Separator)
}

// Rename changes the node's name within its current parent. The child keeps
// its position in the parent's listing order.
func (n *Node) Rename(newName string) error {
	n.fs.mu.Lock()
	defer n.fs.mu.Unlock()

	oldPath := n.fullPathLocked()
	if err := n.renameLocked(newName); err != nil {
		return n.fs.fail(OpRename, oldPath, err)
	}
	logger := n.fs.logger("Node.Rename")
	logger.Debug().Str("from", oldPath).Str("to", n.fullPathLocked()).Msg("Renamed node")
	return nil
}

func (n *Node) renameLocked(newName string) error {
	if n.removed {
		return ErrNotFound
	}
	if n.isRootLocked() {
		return ErrRootNode
	}
	if err := ValidateName(newName); err != nil {
		return err
	}
	if newName == n.name {
		return nil
	}
	parent, ok := n.fs.nodeLocked(n.parent)
	if !ok {
		return ErrNotFound
	}
	if _, exists := parent.children[newName]; exists {
		return ErrNameConflict
	}

	delete(parent.children, n.name)
	parent.children[newName] = n.id
	parent.order[slices.Index(parent.order, n.name)] = newName

	n.name = newName
	n.changedAt = n.fs.now()
	return nil
}

// followLocked returns the first non-link node reached from n by following
// resolved link targets. n itself is returned when it is not a link.
func (n *Node) followLocked() (*Node, error) {
	if n.removed {
		return nil, ErrNotFound
	}
	cur := n
	var visited map[uint64]struct{}
	for cur.kind == termfs.SymbolicLink {
		if visited == nil {
			visited = make(map[uint64]struct{})
		}
		if _, seen := visited[cur.id]; seen {
			return nil, ErrCyclicSymbolicLink
		}
		visited[cur.id] = struct{}{}

		next, ok := n.fs.nodeLocked(cur.link.target)
		if !ok {
			return nil, ErrDanglingLink
		}
		cur = next
	}
	return cur, nil
}

// ReadContent returns the text payload and updates the access time of the
// node holding it. Symbolic links read through to their target.
func (n *Node) ReadContent() (string, error) {
	n.fs.mu.Lock()
	defer n.fs.mu.Unlock()

	content, err := n.readContentLocked()
	if err != nil {
		return "", n.fs.fail(OpRead, n.fullPathLocked(), err)
	}
	return content, nil
}

func (n *Node) readContentLocked() (string, error) {
	if n.removed {
		return "", ErrNotFound
	}
	switch n.kind {
	case termfs.Directory:
		return "", ErrIsADirectory
	case termfs.SymbolicLink:
		target, err := n.followLocked()
		if err != nil {
			return "", err
		}
		return target.readContentLocked()
	default:
		n.accessedAt = n.fs.now()
		return n.content, nil
	}
}

// WriteContent replaces the text payload, updating modification and change
// times. Symbolic links write through to their target.
func (n *Node) WriteContent(content string) error {
	n.fs.mu.Lock()
	defer n.fs.mu.Unlock()

	if err := n.writeContentLocked(content); err != nil {
		return n.fs.fail(OpWrite, n.fullPathLocked(), err)
	}
	logger := n.fs.logger("Node.WriteContent")
	logger.Trace().Str("path", n.fullPathLocked()).Int("len", len(content)).Msg("Wrote content")
	return nil
}

func (n *Node) writeContentLocked(content string) error {
	if n.removed {
		return ErrNotFound
	}
	switch n.kind {
	case termfs.Directory:
		return ErrIsADirectory
	case termfs.SymbolicLink:
		target, err := n.followLocked()
		if err != nil {
			return err
		}
		return target.writeContentLocked(content)
	default:
		now := n.fs.now()
		n.modifiedAt = now
		n.changedAt = now
		n.content = content
		return nil
	}
}

// Size returns the content length plus one, following symbolic links.
// Reading the size does not count as a content access.
func (n *Node) Size() (int, error) {
	n.fs.mu.RLock()
	defer n.fs.mu.RUnlock()

	target, err := n.followLocked()
	if err != nil {
		return 0, n.fs.fail(OpStat, n.fullPathLocked(), err)
	}
	return target.sizeLocked(), nil
}

// sizeLocked counts UTF-8 bytes so it agrees with the bytes served by reads
func (n *Node) sizeLocked() int {
	return len(n.content) + 1
}

// Permissions returns the symbolic permission string, following symbolic links
func (n *Node) Permissions() (string, error) {
	n.fs.mu.RLock()
	defer n.fs.mu.RUnlock()

	target, err := n.followLocked()
	if err != nil {
		return "", n.fs.fail(OpStat, n.fullPathLocked(), err)
	}
	return target.perms, nil
}

// SetPermissions validates and assigns perms i.e. "rwxr-xr--". On a symbolic
// link the target's permissions change.
func (n *Node) SetPermissions(perms string) error {
	n.fs.mu.Lock()
	defer n.fs.mu.Unlock()

	if err := n.setPermissionsLocked(perms); err != nil {
		return n.fs.fail(OpChmod, n.fullPathLocked(), err)
	}
	return nil
}

func (n *Node) setPermissionsLocked(perms string) error {
	if n.removed {
		return ErrNotFound
	}
	switch n.kind {
	case termfs.SymbolicLink:
		target, err := n.followLocked()
		if err != nil {
			return err
		}
		return target.setPermissionsLocked(perms)
	default:
		if err := ValidatePermissions(perms); err != nil {
			return err
		}
		n.perms = perms
		n.changedAt = n.fs.now()
		return nil
	}
}

// Owner returns the owning user, following symbolic links
func (n *Node) Owner() (string, error) {
	n.fs.mu.RLock()
	defer n.fs.mu.RUnlock()

	target, err := n.followLocked()
	if err != nil {
		return "", n.fs.fail(OpStat, n.fullPathLocked(), err)
	}
	return target.owner, nil
}

// SetOwner assigns the owning user. The user is not checked for existence.
func (n *Node) SetOwner(owner string) error {
	n.fs.mu.Lock()
	defer n.fs.mu.Unlock()

	if err := n.setOwnerLocked(owner); err != nil {
		return n.fs.fail(OpChown, n.fullPathLocked(), err)
	}
	return nil
}

func (n *Node) setOwnerLocked(owner string) error {
	if n.removed {
		return ErrNotFound
	}
	switch n.kind {
	case termfs.SymbolicLink:
		target, err := n.followLocked()
		if err != nil {
			return err
		}
		return target.setOwnerLocked(owner)
	default:
		n.owner = owner
		n.changedAt = n.fs.now()
		return nil
	}
}

// Group returns the owning group, following symbolic links
func (n *Node) Group() (string, error) {
	n.fs.mu.RLock()
	defer n.fs.mu.RUnlock()

	target, err := n.followLocked()
	if err != nil {
		return "", n.fs.fail(OpStat, n.fullPathLocked(), err)
	}
	return target.group, nil
}

// SetGroup assigns the owning group. The group is not checked for existence.
func (n *Node) SetGroup(group string) error {
	n.fs.mu.Lock()
	defer n.fs.mu.Unlock()

	if err := n.setGroupLocked(group); err != nil {
		return n.fs.fail(OpChgrp, n.fullPathLocked(), err)
	}
	return nil
}

func (n *Node) setGroupLocked(group string) error {
	if n.removed {
		return ErrNotFound
	}
	switch n.kind {
	case termfs.SymbolicLink:
		target, err := n.followLocked()
		if err != nil {
			return err
		}
		return target.setGroupLocked(group)
	default:
		n.group = group
		n.changedAt = n.fs.now()
		return nil
	}
}

// LinkPath returns the target path of a symbolic link; false for other kinds
func (n *Node) LinkPath() (string, bool) {
	if n.kind != termfs.SymbolicLink {
		return "", false
	}
	n.fs.mu.RLock()
	defer n.fs.mu.RUnlock()
	return n.link.path, true
}

// Target returns the node a symbolic link currently points at (one hop).
// False for dangling links and non-link nodes.
func (n *Node) Target() (*Node, bool) {
	if n.kind != termfs.SymbolicLink {
		return nil, false
	}
	n.fs.mu.RLock()
	defer n.fs.mu.RUnlock()
	return n.fs.nodeLocked(n.link.target)
}

// Info returns a snapshot of the node's own metadata without following
// symbolic links (lstat). A link reports its target path as LinkTarget and
// the length of that path plus one as Size.
func (n *Node) Info() termfs.NodeInfo {
	n.fs.mu.RLock()
	defer n.fs.mu.RUnlock()
	return n.infoLocked()
}

func (n *Node) infoLocked() termfs.NodeInfo {
	info := termfs.NodeInfo{
		ID:          n.id,
		Name:        n.name,
		Type:        n.kind,
		Owner:       n.owner,
		Group:       n.group,
		Permissions: n.perms,
		Size:        n.sizeLocked(),
		CreatedAt:   n.createdAt,
		ModifiedAt:  n.modifiedAt,
		AccessedAt:  n.accessedAt,
		ChangedAt:   n.changedAt,
	}
	if n.link != nil {
		info.LinkTarget = n.link.path
		info.Size = len(n.link.path) + 1
	}
	return info
}

// Stat returns the metadata snapshot of the node symbolic links resolve to
func (n *Node) Stat() (termfs.NodeInfo, error) {
	n.fs.mu.RLock()
	defer n.fs.mu.RUnlock()

	target, err := n.followLocked()
	if err != nil {
		return termfs.NodeInfo{}, n.fs.fail(OpStat, n.fullPathLocked(), err)
	}
	return target.infoLocked(), nil
}

// ModeString returns the node's own ls-style mode i.e. "lrwxrwxrwx"
func (n *Node) ModeString() string {
	return n.Info().Mode()
}
