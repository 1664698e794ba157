package termfs

import "time"

// NodeInfo is a point-in-time snapshot of a node's metadata.
// For symbolic links it either describes the link itself (lstat) or the
// resolved target (stat) depending on how it was obtained.
type NodeInfo struct {
	ID          uint64
	Name        string
	Type        FileType
	Owner       string
	Group       string
	Permissions string
	Size        int
	LinkTarget  string // Target path; empty unless Type is SymbolicLink
	CreatedAt   time.Time
	ModifiedAt  time.Time
	AccessedAt  time.Time
	ChangedAt   time.Time
}

// Mode returns the ls-style mode string i.e. "drwxrwxr-x"
func (i NodeInfo) Mode() string {
	return string(i.Type) + i.Permissions
}
