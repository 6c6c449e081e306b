package blackjack

import "fmt"

// ActionKind is the request type of a player action, both on the way to the
// backend and when the backend reports the previous action.
type ActionKind int

const (
	ActionUnknown ActionKind = iota
	ActionDeal
	ActionDraw
	ActionStand
	ActionCall
	ActionFold
	ActionRaise
	ActionAllIn
	ActionClose
)

var actionString = map[ActionKind]string{
	ActionDeal:  "Deal",
	ActionDraw:  "Draw",
	ActionStand: "Stand",
	ActionCall:  "Call",
	ActionFold:  "Fold",
	ActionRaise: "Raise",
	ActionAllIn: "AllIn",
	ActionClose: "Close",
}

func (k ActionKind) String() string {
	if name, ok := actionString[k]; ok {
		return name
	}
	return "Unknown"
}

// ParseActionKind reads a wire request type. Unknown names report false.
func ParseActionKind(s string) (ActionKind, bool) {
	for kind, name := range actionString {
		if name == s {
			return kind, true
		}
	}
	return ActionUnknown, false
}

func (k ActionKind) MarshalText() ([]byte, error) {
	if _, ok := actionString[k]; !ok {
		return nil, fmt.Errorf("cannot encode action %d", int(k))
	}
	return []byte(k.String()), nil
}

func (k *ActionKind) UnmarshalText(text []byte) error {
	kind, ok := ParseActionKind(string(text))
	if !ok {
		return fmt.Errorf("unknown request type %q", string(text))
	}
	*k = kind
	return nil
}
