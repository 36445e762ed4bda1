package fetcher

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"promo-scheduler/internal/promotion"
)

// Compile-time interface check.
var _ ConfigFetcher = (*FileFetcher)(nil)

// FileFetcher reads a bundled configuration from disk. Files ending in
// .yaml or .yml are decoded as YAML, anything else as JSON.
type FileFetcher struct {
	path     string
	required string
}

func NewFileFetcher(path, requiredSchemaVersion string) *FileFetcher {
	return &FileFetcher{path: path, required: requiredSchemaVersion}
}

func (f *FileFetcher) FetchConfig(ctx context.Context) (promotion.Configuration, error) {
	if err := ctx.Err(); err != nil {
		return promotion.Configuration{}, err
	}
	data, err := os.ReadFile(f.path)
	if err != nil {
		return promotion.Configuration{}, fmt.Errorf("read config file: %w", err)
	}

	ft := formatJSON
	switch strings.ToLower(filepath.Ext(f.path)) {
	case ".yaml", ".yml":
		ft = formatYAML
	}
	return decode(data, ft, f.required)
}
