package keybindings

import tea "github.com/charmbracelet/bubbletea"

// Action represents a specific action that can be triggered by a key
type Action string

// Define all possible actions
const (
	// Global actions
	ActionQuit       Action = "quit"
	ActionToggleHelp Action = "toggle_help"
	ActionBack       Action = "back" // General purpose "go back" or "cancel"

	// Navigation actions
	ActionMoveUp     Action = "move_up"
	ActionMoveDown   Action = "move_down"
	ActionPageUp     Action = "page_up"
	ActionPageDown   Action = "page_down"
	ActionMoveTop    Action = "move_top"
	ActionMoveBottom Action = "move_bottom"

	// Catalog actions
	ActionPlaySelected Action = "play_selected"

	// Player actions
	ActionTogglePlay     Action = "toggle_play"
	ActionSkipBackward   Action = "skip_backward"
	ActionSkipForward    Action = "skip_forward"
	ActionSeekPercent    Action = "seek_percent"
	ActionSkipAd         Action = "skip_ad"
	ActionShare          Action = "share"
	ActionRetry          Action = "retry"
	ActionToggleControls Action = "toggle_controls"

	// Search mode actions
	ActionEnableSearch   Action = "enable_search"
	ActionSearchComplete Action = "search_complete"
)

// ContextName represents a specific UI context in the application that has its own keybinds
type ContextName string

const (
	ContextGlobal     ContextName = "global"
	ContextCatalog    ContextName = "catalog"
	ContextPlayer     ContextName = "player"
	ContextSearchMode ContextName = "search_mode"
	ContextHelp       ContextName = "help"
)

var ContextBindings = map[ContextName][]Binding{
	ContextGlobal:     globalBindings,
	ContextCatalog:    catalogBindings,
	ContextPlayer:     playerBindings,
	ContextSearchMode: searchModeBindings,
	ContextHelp:       helpBindings,
}

// KeyMap stores the mappings from actions to key sequences for each context
type KeyMap struct {
	Primary   string
	Secondary string // Optional alternative key
	Help      string // Description for help screen
}

// Binding maps an action to its keys and help text
type Binding struct {
	Action Action
	KeyMap KeyMap
}

// navigationBindings contains general navigation bindings for consistent navigation across the app
var navigationBindings = []Binding{
	{
		Action: ActionMoveUp,
		KeyMap: KeyMap{
			Primary:   "up",
			Secondary: "k",
			Help:      "Move cursor up",
		},
	},
	{
		Action: ActionMoveDown,
		KeyMap: KeyMap{
			Primary:   "down",
			Secondary: "j",
			Help:      "Move cursor down",
		},
	},
	{
		Action: ActionPageUp,
		KeyMap: KeyMap{
			Primary: "pgup",
			Help:    "Move up one page",
		},
	},
	{
		Action: ActionPageDown,
		KeyMap: KeyMap{
			Primary: "pgdown",
			Help:    "Move down one page",
		},
	},
	{
		Action: ActionMoveTop,
		KeyMap: KeyMap{
			Primary: "home",
			Help:    "Move top of view",
		},
	},
	{
		Action: ActionMoveBottom,
		KeyMap: KeyMap{
			Primary: "end",
			Help:    "Move bottom of view",
		},
	},
}

// globalBindings contains key bindings that work across all views
var globalBindings = []Binding{
	{
		Action: ActionQuit,
		KeyMap: KeyMap{
			Primary: "ctrl+c",
			Help:    "Quit application",
		},
	},
	{
		Action: ActionToggleHelp,
		KeyMap: KeyMap{
			Primary: "ctrl+h",
			Help:    "Toggle help screen",
		},
	},
	{
		Action: ActionBack,
		KeyMap: KeyMap{
			Primary: "esc",
			Help:    "Go back/cancel current action",
		},
	},
}

// helpBindings contains key bindings specific to the help view
var helpBindings = withNavigation([]Binding{})

// catalogBindings contains key bindings specific to the catalog view
var catalogBindings = withNavigation([]Binding{
	{
		Action: ActionPlaySelected,
		KeyMap: KeyMap{
			Primary:   "enter",
			Secondary: "p",
			Help:      "Play selected video",
		},
	},
	{
		Action: ActionEnableSearch,
		KeyMap: KeyMap{
			Primary:   "/",
			Secondary: "ctrl+f",
			Help:      "Search videos",
		},
	},
})

// playerBindings contains key bindings for the playback controls
var playerBindings = []Binding{
	{
		Action: ActionTogglePlay,
		KeyMap: KeyMap{
			Primary:   " ",
			Secondary: "p",
			Help:      "Play/pause",
		},
	},
	{
		Action: ActionSkipBackward,
		KeyMap: KeyMap{
			Primary:   "left",
			Secondary: "h",
			Help:      "Skip backward",
		},
	},
	{
		Action: ActionSkipForward,
		KeyMap: KeyMap{
			Primary:   "right",
			Secondary: "l",
			Help:      "Skip forward",
		},
	},
	{
		Action: ActionSeekPercent,
		KeyMap: KeyMap{
			Primary: "0-9",
			Help:    "Seek to 0%-90% of the video",
		},
	},
	{
		Action: ActionSkipAd,
		KeyMap: KeyMap{
			Primary: "s",
			Help:    "Skip ad (once the ad allows it)",
		},
	},
	{
		Action: ActionShare,
		KeyMap: KeyMap{
			Primary: "c",
			Help:    "Share: copy the video link to the clipboard",
		},
	},
	{
		Action: ActionRetry,
		KeyMap: KeyMap{
			Primary: "r",
			Help:    "Retry after a playback error",
		},
	},
	{
		Action: ActionToggleControls,
		KeyMap: KeyMap{
			Primary: "tab",
			Help:    "Show/hide controls",
		},
	},
	{
		Action: ActionBack,
		KeyMap: KeyMap{
			Primary: "q",
			Help:    "Stop playback and go back",
		},
	},
}

// searchModeBindings contains key bindings specific for when search mode is active
var searchModeBindings = []Binding{
	{
		Action: ActionBack,
		KeyMap: KeyMap{
			Primary:   "esc",
			Secondary: "ctrl+f",
			Help:      "Exit search mode and remove the filter",
		},
	},
	{
		Action: ActionSearchComplete,
		KeyMap: KeyMap{
			Primary: "enter",
			Help:    "Apply the search filter and return control to the original view",
		},
	},
}

// SeekFraction maps the digit keys to a seek position: 1 is 10% of the video, 0 is the start
func SeekFraction(keyMsg tea.KeyMsg) (float64, bool) {
	key := keyMsg.String()
	if len(key) != 1 || key[0] < '0' || key[0] > '9' {
		return 0, false
	}
	return float64(key[0]-'0') / 10, true
}

// GetActionKey returns the primary key for an action
func GetActionKey(action Action, bindings []Binding) string {
	for _, binding := range bindings {
		if binding.Action == action {
			return binding.KeyMap.Primary
		}
	}
	return ""
}

// GetActionSecondaryKey returns the secondary key for an action if it exists
func GetActionSecondaryKey(action Action, bindings []Binding) string {
	for _, binding := range bindings {
		if binding.Action == action {
			return binding.KeyMap.Secondary
		}
	}
	return ""
}

// GetBindingByKey returns the action and help text for a given key
func GetBindingByKey(key string, bindings []Binding) (Action, string) {
	for _, binding := range bindings {
		if binding.KeyMap.Primary == key || binding.KeyMap.Secondary == key {
			return binding.Action, binding.KeyMap.Help
		}
	}
	return "", ""
}

// GetActionByKey returns just the action for a given key, or an empty Action if not found
func GetActionByKey(keyMsg tea.KeyMsg, name ContextName) Action {
	if bindings, exists := ContextBindings[name]; exists {
		key := keyMsg.String()
		for _, binding := range bindings {
			if binding.KeyMap.Primary == key || binding.KeyMap.Secondary == key {
				return binding.Action
			}
		}
	}
	return ""
}

// FormatKeyHelp formats a key binding for display in help text
func FormatKeyHelp(binding Binding) string {
	if binding.KeyMap.Secondary != "" {
		return binding.KeyMap.Primary + "/" + binding.KeyMap.Secondary + ": " + binding.KeyMap.Help
	}
	return binding.KeyMap.Primary + ": " + binding.KeyMap.Help
}

// GetHelpText generates formatted help text for a set of bindings
func GetHelpText(title string, bindings []Binding) string {
	helpText := "## " + title + "\n\n"
	for _, binding := range bindings {
		helpText += "* " + FormatKeyHelp(binding) + "\n"
	}
	return helpText
}

// withNavigation is a helper function to include navigation bindings in other binding sets
func withNavigation(bindings []Binding) []Binding {
	return append(append([]Binding{}, navigationBindings...), bindings...)
}
