package playback

// Slot identifies an ad break position within a playback session
type Slot int

const (
	// SlotNone means no ad is active
	SlotNone Slot = iota
	PreRoll
	MidRoll
	PostRoll
)

func (s Slot) String() string {
	switch s {
	case PreRoll:
		return "pre_roll"
	case MidRoll:
		return "mid_roll"
	case PostRoll:
		return "post_roll"
	default:
		return "none"
	}
}

// Slots lists the ad slots in the order they can fire
var Slots = []Slot{PreRoll, MidRoll, PostRoll}

// TriggerKind is the content event that fires an ad slot
type TriggerKind int

const (
	TriggerOnLoad TriggerKind = iota + 1
	TriggerAtFraction
	TriggerOnEnd
)

// Trigger describes when a slot fires.  Fraction is only used by TriggerAtFraction and is relative to the content
// duration.
type Trigger struct {
	Kind     TriggerKind
	Fraction float64
}

// SlotConfig binds an ad slot to its ad tag and trigger
type SlotConfig struct {
	Slot    Slot
	TagURL  string
	Trigger Trigger
}

// DefaultSlots builds the pre-roll, mid-roll and post-roll table.  Slots without a tag URL are left out and never fire.
func DefaultSlots(tags map[Slot]string, midRollFraction float64) []SlotConfig {
	triggers := map[Slot]Trigger{
		PreRoll:  {Kind: TriggerOnLoad},
		MidRoll:  {Kind: TriggerAtFraction, Fraction: midRollFraction},
		PostRoll: {Kind: TriggerOnEnd},
	}

	var slots []SlotConfig
	for _, slot := range Slots {
		if tags[slot] == "" {
			continue
		}
		slots = append(slots, SlotConfig{Slot: slot, TagURL: tags[slot], Trigger: triggers[slot]})
	}
	return slots
}

// PlayedAds records which slots already fired in the current session.  Entries only ever go from false to true.
type PlayedAds map[Slot]bool

func (p PlayedAds) clone() PlayedAds {
	out := make(PlayedAds, len(p)+1)
	for slot, played := range p {
		out[slot] = played
	}
	return out
}
