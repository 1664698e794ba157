package requests

// NodeRequestDTO is the document representation of [termfs.NodeRequest].
// A node definitions file is a YAML or JSON list of these, i.e.
//
//	[
//	  {"path": "/etc/motd", "type": "file", "content": "welcome\n", "perms": "rw-r--r--"},
//	  {"path": "/etc/issue", "type": "file", "source": {"type": "http", "url": "https://example.com/issue"}},
//	  {"path": "/motd", "type": "symlink", "target": "/etc/motd"}
//	]
type NodeRequestDTO struct {
	Path    string  `yaml:"path" json:"path"`
	Type    string  `yaml:"type" json:"type"`                           // file, dir, symlink, chardev, blockdev, pipe or socket
	UUID    *string `yaml:"uuid,omitempty" json:"uuid,omitempty"`       // Optional correlation id (Default random)
	Owner   *string `yaml:"owner,omitempty" json:"owner,omitempty"`     // (Default config root_owner)
	Group   *string `yaml:"group,omitempty" json:"group,omitempty"`     // (Default config root_group)
	Perms   *string `yaml:"perms,omitempty" json:"perms,omitempty"`     // i.e. "rwxr-x---" (Default depends on type)
	Content *string `yaml:"content,omitempty" json:"content,omitempty"` // Ignored for dir and symlink
	Target  *string `yaml:"target,omitempty" json:"target,omitempty"`   // Required for symlink

	// Source fetches the content at load time instead of Content. Its "type"
	// selects a registered adapter; see the adapters package for the fields.
	Source map[string]any `yaml:"source,omitempty" json:"source,omitempty"`
}

// Defaults are applied to fields a definition leaves unset
type Defaults struct {
	Owner string
	Group string
}
