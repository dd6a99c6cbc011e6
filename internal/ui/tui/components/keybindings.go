package components

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	kb "github.com/PizzaHomicide/adplay/internal/ui/tui/keybindings"
	"github.com/PizzaHomicide/adplay/internal/ui/tui/styles"
)

// KeyBinding represents a single key and its description for the keybinding bar
type KeyBinding struct {
	Key  string
	Desc string
}

// keyStyle is used to highlight keyboard shortcuts in UI
var keyStyle = lipgloss.NewStyle().
	Foreground(styles.Accent).
	Bold(true)

// KeyBindingsBar creates a styled footer showing a set of keybindings
// width: The width of the screen to center the bar
// bindings: The list of keybindings to display
func KeyBindingsBar(width int, bindings []KeyBinding) string {
	var parts []string
	for _, b := range bindings {
		parts = append(parts, fmt.Sprintf("%s: %s",
			keyStyle.Render(b.Key),
			b.Desc))
	}

	keyBar := styles.Info.Render(strings.Join(parts, " • "))
	return styles.CenteredText(width, keyBar)
}

// BarFor builds the bar entries for the given actions of a context, using the short label as description
func BarFor(context kb.ContextName, labels map[kb.Action]string, actions ...kb.Action) []KeyBinding {
	bindings := kb.ContextBindings[context]
	var out []KeyBinding
	for _, action := range actions {
		key := kb.GetActionKey(action, bindings)
		if key == "" {
			continue
		}
		out = append(out, KeyBinding{Key: displayKey(key), Desc: labels[action]})
	}
	return out
}

func displayKey(key string) string {
	switch key {
	case " ":
		return "space"
	case "left":
		return "←"
	case "right":
		return "→"
	}
	return key
}
