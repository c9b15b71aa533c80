package transfer

import (
	"context"
	"fmt"

	"github.com/kadirbelkuyu/docbridge/internal/config"
)

// NewSource opens the import endpoint selected by cfg.Import.Source. dir
// overrides cfg.Import.Directory for file imports.
func NewSource(ctx context.Context, cfg *config.Config, dir string) (Source, error) {
	switch cfg.Import.Source {
	case config.SourceFiles:
		if dir == "" {
			dir = cfg.Import.Directory
		}
		if dir == "" {
			return nil, fmt.Errorf("no import directory configured")
		}
		return NewDirectorySource(dir), nil
	case config.SourceMongo:
		return NewMongoSource(ctx, cfg)
	default:
		return nil, fmt.Errorf("unsupported import source: %s", cfg.Import.Source)
	}
}

// NewSink opens the export endpoint selected by cfg.Export.Target. dir
// overrides cfg.Export.Directory for file exports.
func NewSink(ctx context.Context, cfg *config.Config, dir string) (Sink, error) {
	switch cfg.Export.Target {
	case config.SourceFiles:
		if dir == "" {
			dir = cfg.Export.Directory
		}
		if dir == "" {
			return nil, fmt.Errorf("no export directory configured")
		}
		return NewDirectorySink(dir), nil
	case config.SourceMongo:
		return NewMongoSink(ctx, cfg)
	default:
		return nil, fmt.Errorf("unsupported export target: %s", cfg.Export.Target)
	}
}
