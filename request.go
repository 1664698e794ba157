package termfs

// NodeRequest describes a node to be created at an absolute path.
// Missing ancestor directories are created with the same owner and group.
type NodeRequest struct {
	Path       string
	Type       FileType
	UUID       string // Correlation id for logging; generated when not supplied
	Owner      string
	Group      string
	Perms      *string // Overrides the kind's default permissions when set
	Content    string  // Only used for non-directory, non-link kinds
	LinkTarget string  // Required for SymbolicLink
}
