package surface

import (
	"fmt"

	"github.com/PizzaHomicide/adplay/internal/config"
	"github.com/PizzaHomicide/adplay/internal/log"
)

// New creates a video surface based on the configuration
func New(cfg *config.Config, opts Options) (Surface, error) {
	playerType := cfg.Player.Type
	log.Debug("Creating video surface", "type", playerType, "surface", opts.Name)

	switch playerType {
	case "mpv", "":
		return NewMPVSurface(cfg, opts), nil
	default:
		return nil, fmt.Errorf("unsupported player type %q", playerType)
	}
}
