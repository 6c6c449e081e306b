package cards

import (
	"fmt"
	"strings"
)

// Ceiling is the bust limit of the blackjack-like game.
const Ceiling = 21

// Hidden is how a card the viewer may not see is rendered.
const Hidden = "🂠"

type Suit int

const (
	Spade Suit = iota
	Heart
	Diamond
	Club
)

var suitString = map[Suit]string{
	Spade:   "Spade",
	Heart:   "Heart",
	Diamond: "Diamond",
	Club:    "Club",
}

var suitSymbol = map[Suit]string{
	Spade:   "♠",
	Heart:   "♥",
	Diamond: "♦",
	Club:    "♣",
}

func (s Suit) String() string {
	return suitString[s]
}

func (s Suit) MarshalText() ([]byte, error) {
	name, ok := suitString[s]
	if !ok {
		return nil, fmt.Errorf("unknown suit %d", int(s))
	}
	return []byte(name), nil
}

func (s *Suit) UnmarshalText(text []byte) error {
	for suit, name := range suitString {
		if strings.EqualFold(name, string(text)) {
			*s = suit
			return nil
		}
	}
	return fmt.Errorf("unknown suit %q", string(text))
}

var numberString = map[int]string{
	1:  "A",
	11: "J",
	12: "Q",
	13: "K",
}

// Card is a single card as the backend reports it. Number runs from 1 (ace)
// to 13 (king).
type Card struct {
	Suit    Suit `json:"suit"`
	Number  int  `json:"number"`
	IsFront bool `json:"is_front"`
}

func (c Card) IsAce() bool {
	return c.Number == 1
}

// Values lists every value the card can contribute. Aces are the only card
// with two.
func (c Card) Values() []int {
	switch {
	case c.IsAce():
		return []int{1, 11}
	case c.Number >= 10:
		return []int{10}
	default:
		return []int{c.Number}
	}
}

func (c Card) rank() string {
	if name, ok := numberString[c.Number]; ok {
		return name
	}
	return fmt.Sprintf("%d", c.Number)
}

func (c Card) String() string {
	return fmt.Sprintf("%s %s", suitSymbol[c.Suit], c.rank())
}

// Render prints the card for a viewer. Face-down cards are masked unless
// reveal is set, in which case they are emphasized instead.
func (c Card) Render(reveal bool) string {
	switch {
	case c.IsFront:
		return c.String()
	case reveal:
		return "**" + c.String() + "**"
	default:
		return Hidden
	}
}

// RenderHand prints one card per line.
func RenderHand(hand []Card, reveal bool) string {
	if len(hand) == 0 {
		return "-"
	}
	lines := make([]string, 0, len(hand))
	for _, card := range hand {
		lines = append(lines, card.Render(reveal))
	}
	return strings.Join(lines, "\n")
}

// RealizedValue totals a hand against ceiling. Non-ace cards count their
// face value. Aces are resolved one at a time against the running total:
// an ace counts high only while the total, with every ace still unresolved
// counted low, stays at or under the ceiling.
func RealizedValue(hand []Card, ceiling int) int {
	total := 0
	aces := 0
	for _, card := range hand {
		if card.IsAce() {
			aces++
			continue
		}
		total += maxValue(card.Values())
	}

	for remaining := aces - 1; remaining >= 0; remaining-- {
		values := Card{Number: 1}.Values()
		low, high := minValue(values), maxValue(values)
		if total+high+remaining*low > ceiling {
			total += low
		} else {
			total += high
		}
	}
	return total
}

func maxValue(values []int) int {
	best := values[0]
	for _, v := range values[1:] {
		best = max(best, v)
	}
	return best
}

func minValue(values []int) int {
	best := values[0]
	for _, v := range values[1:] {
		best = min(best, v)
	}
	return best
}
