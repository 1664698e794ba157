package adapters

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/brettbedarf/termfs/internal/util"
)

// FileSource copies the content of a local file
type FileSource struct {
	Path string `json:"path"`
}

func newFileSource(raw []byte) (Source, error) {
	var src FileSource
	if err := json.Unmarshal(raw, &src); err != nil {
		return nil, err
	}
	if src.Path == "" {
		return nil, errors.New("file source requires a path")
	}
	return &src, nil
}

func (f *FileSource) Fetch(ctx context.Context) (string, error) {
	logger := util.GetLogger("FileSource.Fetch")

	if err := ctx.Err(); err != nil {
		return "", err
	}
	file, err := os.Open(f.Path)
	if err != nil {
		return "", err
	}
	defer file.Close()

	// the file may grow after open so the read itself is bounded
	data, err := io.ReadAll(io.LimitReader(file, MaxContentSize+1))
	if err != nil {
		return "", err
	}
	if len(data) > MaxContentSize {
		return "", fmt.Errorf("%w: %s", ErrContentTooLarge, f.Path)
	}
	logger.Debug().Str("path", f.Path).Int("bytes", len(data)).Msg("Fetched source")
	return string(data), nil
}
