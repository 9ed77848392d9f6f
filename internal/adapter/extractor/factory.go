package extractor

import (
	"fmt"

	"gallery/config"
	"gallery/internal/port"
)

// New creates the extractor selected by cfg.Extractor.Provider and applies
// the configured decode pixel limit.
func New(cfg *config.Config) (port.Extractor, error) {
	ec := cfg.Extractor
	SetMaxPixels(ec.MaxPixels)
	switch ec.Provider {
	case "", "grid":
		if ec.Dimension != GridDimension {
			return nil, fmt.Errorf("grid extractor produces %d-d vectors, configured dimension is %d", GridDimension, ec.Dimension)
		}
		return NewGridExtractor(), nil
	case "remote":
		return NewRemoteExtractor(ec.Endpoint, ec.Model, ec.Dimension, ec.Timeout)
	case "mock":
		return NewMockExtractor(ec.Dimension), nil
	default:
		return nil, fmt.Errorf("unsupported extractor provider: %s", ec.Provider)
	}
}
