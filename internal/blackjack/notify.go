package blackjack

import (
	"errors"
	"maps"
	"slices"
	"strconv"

	"burstbot/internal/cards"
	"burstbot/internal/chat"
)

// BurstColor is the accent color of every embed the bot sends.
const BurstColor = 0xE67E22

// Localizer formats a catalog message.
type Localizer interface {
	Text(key string, args ...any) string
}

// Catalog keys used by the notification builder.
const (
	KeyPronoun           = "generic.pronoun"
	KeyPossessiveSecond  = "generic.possessive_second"
	KeyPossessiveThird   = "generic.possessive_third"
	KeyParticipateSecond = "generic.participate_second"
	KeyParticipateThird  = "generic.participate_third"

	KeyDraw    = "blackjack.draw"
	KeyStand   = "blackjack.stand"
	KeyCall    = "blackjack.call"
	KeyFold    = "blackjack.fold"
	KeyRaise   = "blackjack.raise"
	KeyAllIn   = "blackjack.allin"
	KeyUnknown = "blackjack.unknown"

	KeyCardPoints        = "blackjack.card_points"
	KeyTurnTitle         = "blackjack.turn_title"
	KeyProgressingFooter = "blackjack.progressing_footer"
	KeyGamblingHelp      = "blackjack.gambling_help"
	KeyHighestBets       = "blackjack.highest_bets"
	KeyYourBets          = "blackjack.your_bets"
	KeyTipsBeforeGame    = "blackjack.tips_before_game"
	KeyGamblingInitial   = "blackjack.gambling_initial"

	KeyInitialTitle       = "blackjack.initial_title"
	KeyInitialDescription = "blackjack.initial_description"
	KeyInitialFooter      = "blackjack.initial_footer"

	KeyWinTitle       = "blackjack.win_title"
	KeyWinDescription = "blackjack.win_description"
	KeyTotalPoints    = "blackjack.total_points"

	KeyRaiseInvalid = "blackjack.raise_invalid"
	KeyRaiseExcess  = "blackjack.raise_excess"
	KeyMatchFound   = "blackjack.match_found"

	KeyControlDraw  = "control.draw"
	KeyControlStand = "control.stand"
	KeyControlCall  = "control.call"
	KeyControlFold  = "control.fold"
	KeyControlAllIn = "control.allin"
)

// Keys lists every key the builder may look up.
var Keys = []string{
	KeyPronoun, KeyPossessiveSecond, KeyPossessiveThird, KeyParticipateSecond, KeyParticipateThird,
	KeyDraw, KeyStand, KeyCall, KeyFold, KeyRaise, KeyAllIn, KeyUnknown,
	KeyCardPoints, KeyTurnTitle, KeyProgressingFooter, KeyGamblingHelp, KeyHighestBets, KeyYourBets,
	KeyTipsBeforeGame, KeyGamblingInitial,
	KeyInitialTitle, KeyInitialDescription, KeyInitialFooter,
	KeyWinTitle, KeyWinDescription, KeyTotalPoints,
	KeyRaiseInvalid, KeyRaiseExcess, KeyMatchFound,
	KeyControlDraw, KeyControlStand, KeyControlCall, KeyControlFold, KeyControlAllIn,
}

// Notifier turns match state into chat messages. It has no side effects.
type Notifier struct {
	text Localizer
}

func NewNotifier(text Localizer) *Notifier {
	return &Notifier{text: text}
}

// ActionDetail carries what an action message may mention.
type ActionDetail struct {
	LastCard   string
	HighestBet int
	Diff       int
	Verb       string
}

// ActionText renders "who did what" for every action kind.
func (n *Notifier) ActionText(kind ActionKind, name string, d ActionDetail) string {
	switch kind {
	case ActionDraw:
		return n.text.Text(KeyDraw, name, d.LastCard)
	case ActionStand:
		return n.text.Text(KeyStand, name)
	case ActionCall:
		return n.text.Text(KeyCall, name, d.HighestBet)
	case ActionFold:
		return n.text.Text(KeyFold, name, d.Verb)
	case ActionRaise:
		return n.text.Text(KeyRaise, name, d.Diff, d.HighestBet)
	case ActionAllIn:
		return n.text.Text(KeyAllIn, name, d.HighestBet)
	case ActionDeal, ActionClose, ActionUnknown:
		return n.text.Text(KeyUnknown, name)
	default:
		return n.text.Text(KeyUnknown, name)
	}
}

// ActionNotice tells viewer what actor just did in the given stage. Only
// stages with player turns have such a notice. previousHighestBet is the
// highest bet before the action, used for the raise delta.
func (n *Notifier) ActionNotice(stage Progress, kind ActionKind, actor, viewer PlayerState, highestBet, previousHighestBet int) (chat.Message, bool) {
	self := actor.PlayerID == viewer.PlayerID
	name := actor.PlayerName
	if self {
		name = n.text.Text(KeyPronoun)
	}

	var author string
	switch stage {
	case Progressing:
		last := cards.Hidden
		if len(actor.Cards) > 0 {
			last = actor.Cards[len(actor.Cards)-1].Render(self)
		}
		author = n.ActionText(kind, name, ActionDetail{LastCard: last})
	case Gambling:
		verb := n.text.Text(KeyParticipateThird)
		if self {
			verb = n.text.Text(KeyParticipateSecond)
		}
		author = n.ActionText(kind, name, ActionDetail{
			HighestBet: highestBet,
			Diff:       highestBet - previousHighestBet,
			Verb:       verb,
		})
	default:
		return chat.Message{}, false
	}

	embed := &chat.Embed{
		Author:     author,
		AuthorIcon: actor.AvatarURL,
		Color:      BurstColor,
	}
	if self {
		embed.Description = n.text.Text(KeyCardPoints, actor.Points())
	}
	return chat.Message{Embed: embed}, true
}

// TurnNotice announces whose turn it is to viewer. Every hand is listed;
// cards that are not face up are masked except in the viewer's own hand.
// The acting player's copy carries the controls for the stage. It reports
// false when no seat holds the current turn.
func (n *Notifier) TurnNotice(view MatchView, viewer PlayerState) (chat.Message, bool) {
	current, ok := view.PlayerAt(view.CurrentPlayerOrder)
	if !ok {
		return chat.Message{}, false
	}
	isCurrent := viewer.Order == view.CurrentPlayerOrder

	possessive := n.text.Text(KeyPossessiveThird, current.PlayerName)
	if isCurrent {
		possessive = n.text.Text(KeyPossessiveSecond)
	}

	embed := &chat.Embed{
		Author:      current.PlayerName,
		AuthorIcon:  current.AvatarURL,
		Title:       n.text.Text(KeyTurnTitle, possessive),
		Description: n.text.Text(KeyCardPoints, viewer.Points()),
		Color:       BurstColor,
	}
	for _, p := range view.Seated() {
		embed.Fields = append(embed.Fields, chat.Field{
			Name:   p.PlayerName,
			Value:  cards.RenderHand(p.Cards, p.PlayerID == viewer.PlayerID),
			Inline: true,
		})
	}

	msg := chat.Message{Embed: embed}
	switch view.Progress {
	case Progressing:
		if isCurrent {
			embed.Footer = n.text.Text(KeyProgressingFooter)
			msg.Controls = []chat.Control{
				{ID: "draw", Label: n.text.Text(KeyControlDraw), Style: chat.ControlPrimary},
				{ID: "stand", Label: n.text.Text(KeyControlStand), Style: chat.ControlSecondary},
			}
		}
	case Gambling:
		embed.Fields = append(embed.Fields,
			chat.Field{Name: n.text.Text(KeyHighestBets), Value: strconv.Itoa(view.HighestBet), Inline: true},
			chat.Field{Name: n.text.Text(KeyYourBets), Value: strconv.Itoa(viewer.BetTips), Inline: true},
			chat.Field{Name: n.text.Text(KeyTipsBeforeGame), Value: strconv.Itoa(viewer.OwnTips)},
		)
		if isCurrent {
			embed.Description += "\n\n" + n.text.Text(KeyGamblingHelp)
			msg.Controls = []chat.Control{
				{ID: "call", Label: n.text.Text(KeyControlCall), Style: chat.ControlPrimary},
				{ID: "fold", Label: n.text.Text(KeyControlFold), Style: chat.ControlSecondary},
				{ID: "allin", Label: n.text.Text(KeyControlAllIn), Style: chat.ControlDanger},
			}
		}
	}
	return msg, true
}

// InitialNotice shows a freshly dealt hand to its owner.
func (n *Notifier) InitialNotice(player PlayerState) chat.Message {
	return chat.Message{Embed: &chat.Embed{
		Author:      player.PlayerName,
		AuthorIcon:  player.AvatarURL,
		Title:       n.text.Text(KeyInitialTitle),
		Description: n.text.Text(KeyInitialDescription, cards.RenderHand(player.Cards, true), player.Points()),
		Footer:      n.text.Text(KeyInitialFooter),
		Color:       BurstColor,
	}}
}

func (n *Notifier) GamblingIntro() chat.Message {
	return chat.Message{Content: n.text.Text(KeyGamblingInitial)}
}

// WinSummary renders the ending result with every final hand revealed.
func (n *Notifier) WinSummary(result *EndingResult, winnerName, winnerAvatar string) chat.Message {
	embed := &chat.Embed{
		Title:       n.text.Text(KeyWinTitle, winnerName),
		Description: n.text.Text(KeyWinDescription, winnerName, result.TotalRewards),
		Image:       winnerAvatar,
		Color:       BurstColor,
	}
	for _, id := range slices.Sorted(maps.Keys(result.Players)) {
		p := result.Players[id]
		embed.Fields = append(embed.Fields, chat.Field{
			Name:   p.PlayerName,
			Value:  n.text.Text(KeyTotalPoints, cards.RenderHand(p.Cards, true), cards.RealizedValue(p.Cards, cards.Ceiling)),
			Inline: true,
		})
	}
	return chat.Message{Embed: embed}
}

// Rejection explains a refused command to the player who sent it.
func (n *Notifier) Rejection(err error) chat.Message {
	if errors.Is(err, ErrRaiseExceedsBalance) {
		return chat.Message{Content: n.text.Text(KeyRaiseExcess)}
	}
	return chat.Message{Content: n.text.Text(KeyRaiseInvalid)}
}

func (n *Notifier) MatchFound(matchID string) chat.Message {
	return chat.Message{Content: n.text.Text(KeyMatchFound, matchID)}
}
