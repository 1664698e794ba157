package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/brettbedarf/termfs/internal/util"
	"gopkg.in/yaml.v3"
)

// CLI verbosity values accepted by ConfigOverride.LogLvl
const (
	ErrorVerbose = iota + 1
	WarnVerbose
	InfoVerbose
	DebugVerbose
	TraceVerbose
)

// Default configuration constants. See [Config] for field descriptions.
const (
	DefaultLogLvl = util.InfoLevel

	DefaultFsName = "termfs"
	DefaultName   = "termfs"

	// Owner and group of the root directory
	DefaultRootOwner = "root"
	DefaultRootGroup = "root"

	// Permissions assigned on creation per node kind
	DefaultDirPerms     = "rwxrwxr-x"
	DefaultFilePerms    = "rw-rw-r--"
	DefaultSymlinkPerms = "rwxrwxrwx"

	// DefaultAttrTimeout is the attribute cache timeout in seconds
	DefaultAttrTimeout = 1.0

	// DefaultEntryTimeout is the directory entry cache timeout in seconds
	DefaultEntryTimeout = 1.0

	// DefaultSourceTimeout bounds fetching all node content sources, in seconds
	DefaultSourceTimeout = 30.0
)

// Config contains runtime configuration values for the filesystem.
type Config struct {
	MountOptions
	LogLvl util.LogLevel

	RootOwner    string // Owner of "/" (Default "root")
	RootGroup    string // Group of "/" (Default "root")
	DirPerms     string // Default directory permissions (Default "rwxrwxr-x")
	FilePerms    string // Default permissions of files and special files (Default "rw-rw-r--")
	SymlinkPerms string // Permissions of symbolic links (Default "rwxrwxrwx")

	// NOTE: only used by the FUSE export
	AttrTimeout  float64 // Attribute cache timeout in seconds (Default 1.0)
	EntryTimeout float64 // Directory entry cache timeout in seconds (Default 1.0)

	SourceTimeout float64 // Time allowed to fetch node content sources in seconds (Default 30.0)
}

// ConfigOverride uses pointer fields to distinguish between unset and zero values
// when loading partial configuration. See [Config] for field descriptions.
type ConfigOverride struct {
	// LogLvl is the CLI verbosity between 1 (error) and 5 (trace); values
	// outside the range are clamped
	LogLvl       *int     `yaml:"verbose,omitempty" json:"verbose,omitempty"`
	Debug        *bool    `yaml:"debug,omitempty" json:"debug,omitempty"`
	FsName       *string  `yaml:"fs_name,omitempty" json:"fs_name,omitempty"`
	Name         *string  `yaml:"name,omitempty" json:"name,omitempty"`
	RootOwner    *string  `yaml:"root_owner,omitempty" json:"root_owner,omitempty"`
	RootGroup    *string  `yaml:"root_group,omitempty" json:"root_group,omitempty"`
	DirPerms     *string  `yaml:"dir_perms,omitempty" json:"dir_perms,omitempty"`
	FilePerms    *string  `yaml:"file_perms,omitempty" json:"file_perms,omitempty"`
	SymlinkPerms *string  `yaml:"symlink_perms,omitempty" json:"symlink_perms,omitempty"`
	AttrTimeout  *float64 `yaml:"attr_timeout,omitempty" json:"attr_timeout,omitempty"`
	EntryTimeout *float64 `yaml:"entry_timeout,omitempty" json:"entry_timeout,omitempty"`

	SourceTimeout *float64 `yaml:"source_timeout,omitempty" json:"source_timeout,omitempty"`
}

// NewDefaultConfig creates a new Config with all default values.
func NewDefaultConfig() *Config {
	return &Config{
		MountOptions: MountOptions{
			FsName: DefaultFsName,
			Name:   DefaultName,
		},
		LogLvl:       DefaultLogLvl,
		RootOwner:    DefaultRootOwner,
		RootGroup:    DefaultRootGroup,
		DirPerms:     DefaultDirPerms,
		FilePerms:    DefaultFilePerms,
		SymlinkPerms: DefaultSymlinkPerms,
		AttrTimeout:  DefaultAttrTimeout,
		EntryTimeout: DefaultEntryTimeout,

		SourceTimeout: DefaultSourceTimeout,
	}
}

// NewConfig creates a Config from defaults with the override applied.
// A nil override returns the defaults.
func NewConfig(override *ConfigOverride) *Config {
	cfg := NewDefaultConfig()
	if override != nil {
		cfg.Merge(override)
	}
	return cfg
}

// Merge applies non-nil values from override onto this Config.
// This allows partial configuration updates while preserving existing values.
func (c *Config) Merge(override *ConfigOverride) {
	if override.LogLvl != nil {
		c.LogLvl = VerbosityToLevel(*override.LogLvl)
	}
	if override.Debug != nil {
		c.Debug = *override.Debug
	}
	if override.FsName != nil {
		c.FsName = *override.FsName
	}
	if override.Name != nil {
		c.Name = *override.Name
	}
	if override.RootOwner != nil {
		c.RootOwner = *override.RootOwner
	}
	if override.RootGroup != nil {
		c.RootGroup = *override.RootGroup
	}
	if override.DirPerms != nil {
		c.DirPerms = *override.DirPerms
	}
	if override.FilePerms != nil {
		c.FilePerms = *override.FilePerms
	}
	if override.SymlinkPerms != nil {
		c.SymlinkPerms = *override.SymlinkPerms
	}
	if override.AttrTimeout != nil {
		c.AttrTimeout = *override.AttrTimeout
	}
	if override.EntryTimeout != nil {
		c.EntryTimeout = *override.EntryTimeout
	}
	if override.SourceTimeout != nil {
		c.SourceTimeout = *override.SourceTimeout
	}
}

// VerbosityToLevel converts CLI verbosity (1 error .. 5 trace) to a [util.LogLevel],
// clamping out of range values
func VerbosityToLevel(verbose int) util.LogLevel {
	verbose = min(max(verbose, ErrorVerbose), TraceVerbose)
	lvls := [5]util.LogLevel{util.ErrorLevel, util.WarnLevel, util.InfoLevel, util.DebugLevel, util.TraceLevel}
	return lvls[verbose-1]
}

// LoadConfigOverrideFile loads configuration overrides from a file without merging.
// Supports both YAML (.yaml, .yml) and JSON (.json) formats.
func LoadConfigOverrideFile(path string) (*ConfigOverride, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var override ConfigOverride

	// Determine format by file extension
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &override); err != nil {
			return nil, fmt.Errorf("failed to unmarshal config file: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, &override); err != nil {
			return nil, fmt.Errorf("failed to unmarshal config file: %w", err)
		}
	default:
		return nil, fmt.Errorf("unknown config file extension: %s", path)
	}

	return &override, nil
}

// NewConfigFromFile creates a new Config by merging file overrides with defaults.
// This is a convenience function that combines NewDefaultConfig, LoadConfigOverrideFile, and Merge.
func NewConfigFromFile(path string) (*Config, error) {
	cfg := NewDefaultConfig()
	override, err := LoadConfigOverrideFile(path)
	if err != nil {
		return nil, err
	}
	cfg.Merge(override)
	return cfg, nil
}
