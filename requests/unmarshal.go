package requests

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/brettbedarf/termfs"
	"github.com/brettbedarf/termfs/adapters"
	"github.com/brettbedarf/termfs/config"
	"github.com/brettbedarf/termfs/internal/util"
)

var (
	ErrMissingPath = errors.New("node definition has no path")
	ErrUnknownType = errors.New("unknown node type")

	// ErrUnexpectedSource indicates a source on a definition that cannot hold
	// content or that also sets content
	ErrUnexpectedSource = errors.New("unexpected content source")
)

// NewDefaults takes the definition defaults from the filesystem config
func NewDefaults(cfg *config.Config) Defaults {
	return Defaults{Owner: cfg.RootOwner, Group: cfg.RootGroup}
}

// GetNodeType extracts the node type from a single definition without
// full unmarshaling. JSON is valid YAML so both formats are accepted.
func GetNodeType(data []byte) (termfs.FileType, error) {
	var meta struct {
		Type string `yaml:"type"`
	}
	if err := yaml.Unmarshal(data, &meta); err != nil {
		return 0, err
	}
	return parseType(meta.Type)
}

// Unmarshal decodes a node definitions document. ext selects the format
// the same way config files do (".yaml", ".yml" or ".json").
func Unmarshal(data []byte, ext string) ([]NodeRequestDTO, error) {
	var dtos []NodeRequestDTO
	switch strings.ToLower(ext) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &dtos); err != nil {
			return nil, fmt.Errorf("failed to unmarshal node definitions: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, &dtos); err != nil {
			return nil, fmt.Errorf("failed to unmarshal node definitions: %w", err)
		}
	default:
		return nil, fmt.Errorf("unknown node definitions file extension: %q", ext)
	}
	return dtos, nil
}

// LoadFile reads and decodes a node definitions file
func LoadFile(path string) ([]NodeRequestDTO, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Unmarshal(data, filepath.Ext(path))
}

// ConvertNodeDTO applies defaults and converts dto to its core request.
// A content source is fetched here, bounded by ctx.
func ConvertNodeDTO(ctx context.Context, dto NodeRequestDTO, defaults Defaults) (*termfs.NodeRequest, error) {
	if strings.TrimSpace(dto.Path) == "" {
		return nil, ErrMissingPath
	}
	kind, err := parseType(dto.Type)
	if err != nil {
		return nil, err
	}

	if dto.Source != nil {
		content, err := fetchSource(ctx, kind, dto)
		if err != nil {
			return nil, err
		}
		dto.Content = &content
	}

	return &termfs.NodeRequest{
		Path:       dto.Path,
		Type:       kind,
		UUID:       util.ValueOrDefault(dto.UUID, uuid.New().String()),
		Owner:      util.ValueOrDefault(dto.Owner, defaults.Owner),
		Group:      util.ValueOrDefault(dto.Group, defaults.Group),
		Perms:      dto.Perms,
		Content:    util.ValueOrDefault(dto.Content, ""),
		LinkTarget: util.ValueOrDefault(dto.Target, ""),
	}, nil
}

// ConvertAll converts every definition it can. Rejected definitions are
// reported together in the returned error, indexed by position.
func ConvertAll(ctx context.Context, dtos []NodeRequestDTO, defaults Defaults) ([]*termfs.NodeRequest, error) {
	logger := util.GetLogger("requests.ConvertAll")

	reqs := make([]*termfs.NodeRequest, 0, len(dtos))
	var errs []error
	for i, dto := range dtos {
		req, err := ConvertNodeDTO(ctx, dto, defaults)
		if err != nil {
			errs = append(errs, fmt.Errorf("node %d (%q): %w", i, dto.Path, err))
			continue
		}
		logger.Trace().Str("path", req.Path).Stringer("type", req.Type).Str("uuid", req.UUID).Msg("Converted node definition")
		reqs = append(reqs, req)
	}
	return reqs, errors.Join(errs...)
}

func fetchSource(ctx context.Context, kind termfs.FileType, dto NodeRequestDTO) (string, error) {
	if kind == termfs.Directory || kind == termfs.SymbolicLink {
		return "", fmt.Errorf("%w: %s cannot have content", ErrUnexpectedSource, kind)
	}
	if dto.Content != nil {
		return "", fmt.Errorf("%w: both content and source set", ErrUnexpectedSource)
	}

	raw, err := json.Marshal(dto.Source)
	if err != nil {
		return "", fmt.Errorf("invalid source: %w", err)
	}
	src, err := adapters.GetSource(raw)
	if err != nil {
		return "", err
	}
	content, err := src.Fetch(ctx)
	if err != nil {
		return "", fmt.Errorf("fetch source: %w", err)
	}
	return content, nil
}

func parseType(name string) (termfs.FileType, error) {
	kind, err := termfs.ParseFileType(name)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrUnknownType, name)
	}
	return kind, nil
}
