package blackjack

import (
	"errors"
	"strconv"
	"strings"
)

var (
	ErrRaiseInvalid        = errors.New("RAISE_INVALID: raise needs a non-negative whole number")
	ErrRaiseExceedsBalance = errors.New("RAISE_EXCEEDS_BALANCE: raise is more than the player owns")
)

// Command is a parsed player action, ready to become a backend request.
type Command struct {
	Kind ActionKind
	Bets int
}

// ParseCommand reads a line of player input for the given stage. It reports
// false for input that is not a command in that stage. Raise validation
// failures come back as errors and produce no command.
func ParseCommand(stage Progress, content string, player PlayerState, highestBet int) (Command, bool, error) {
	fields := strings.Fields(strings.ToLower(strings.TrimSpace(content)))
	if len(fields) == 0 {
		return Command{}, false, nil
	}

	switch stage {
	case Progressing:
		switch fields[0] {
		case "draw":
			return Command{Kind: ActionDraw}, true, nil
		case "stand":
			return Command{Kind: ActionStand}, true, nil
		}
	case Gambling:
		switch fields[0] {
		case "fold":
			return Command{Kind: ActionFold}, true, nil
		case "call":
			return Command{Kind: ActionCall}, true, nil
		case "allin":
			return raise(player, player.OwnTips-player.BetTips-highestBet)
		case "raise":
			if len(fields) < 2 {
				return Command{}, false, ErrRaiseInvalid
			}
			amount, err := strconv.Atoi(fields[1])
			if err != nil {
				return Command{}, false, ErrRaiseInvalid
			}
			return raise(player, amount)
		}
	}
	return Command{}, false, nil
}

func raise(player PlayerState, amount int) (Command, bool, error) {
	if amount < 0 {
		return Command{}, false, ErrRaiseInvalid
	}
	if player.BetTips+amount > player.OwnTips {
		return Command{}, false, ErrRaiseExceedsBalance
	}
	return Command{Kind: ActionRaise, Bets: amount}, true, nil
}

func (c Command) Request(matchID string, playerID uint64) Request {
	return Request{
		RequestType: c.Kind,
		GameID:      matchID,
		PlayerID:    playerID,
		Bets:        c.Bets,
	}
}
