package tui

import (
	"context"
	"errors"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/PizzaHomicide/adplay/internal/config"
	"github.com/PizzaHomicide/adplay/internal/service"
	"github.com/PizzaHomicide/adplay/internal/ui/tui/models"
)

// Run shows the TUI until the user quits.  When initial is set its playback starts immediately and the TUI exits
// once it ends, otherwise the catalog is shown.
func Run(ctx context.Context, cfg *config.Config, svc *service.PlaybackService, initial *config.CatalogEntry) error {
	starter := models.StarterFunc(func(ctx context.Context, title, source string) (models.Session, error) {
		session, err := svc.Start(ctx, title, source)
		if err != nil {
			// Returned on its own so the interface does not hold a typed nil
			return nil, err
		}
		return session, nil
	})

	p := tea.NewProgram(models.NewAppModel(ctx, cfg, starter, initial), tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return err
	}
	return nil
}
