package coordinator

import (
	"context"

	"tableengine/internal/card"
	"tableengine/internal/store"
	"tableengine/internal/turnorder"
)

// SeatView is a viewer-specific projection of a Seat: hole cards are
// redacted unless the viewer is entitled to see them.
type SeatView struct {
	ID              string
	PlayerID        string
	SeatNumber      int
	BuyIn           int64
	StartingBalance int64
	CurrentBet      int64
	Cards           []card.Code
	Status          store.SeatStatus
	LastAction      store.LastAction
	HandType        string
	HandDescription string
	WinAmount       int64
	WinningCards    []card.Code
}

// Snapshot is the redacted view returned to callers after every
// coordinator operation and by GetSnapshot.
type Snapshot struct {
	Table *store.PokerTable
	Game  *store.Game
	Seats []SeatView
}

func buildSnapshot(ctx context.Context, tx store.Tx, tableID, viewerUserID string) (*Snapshot, error) {
	table, err := tx.Table(ctx, tableID)
	if err != nil {
		return nil, err
	}
	seats, err := tx.Seats(ctx, tableID)
	if err != nil {
		return nil, err
	}
	// The latest game, active or just completed: showdown results stay
	// visible until the next hand starts.
	var game *store.Game
	if g, err := tx.LastGame(ctx, tableID); err == nil {
		game = g
	} else if err != store.ErrNotFound {
		return nil, err
	}

	allInRunout := game != nil && !game.IsCompleted && allRemainingAllIn(seats)

	views := make([]SeatView, 0, len(seats))
	for _, s := range seats {
		v := SeatView{
			ID:              s.ID,
			PlayerID:        s.PlayerID,
			SeatNumber:      s.SeatNumber,
			BuyIn:           s.BuyIn,
			StartingBalance: s.StartingBalance,
			CurrentBet:      s.CurrentBet,
			Status:          s.Status,
			LastAction:      s.LastAction,
			HandType:        s.HandType,
			HandDescription: s.HandDescription,
			WinAmount:       s.WinAmount,
			WinningCards:    s.WinningCards,
		}

		owner := s.PlayerID == viewerUserID
		revealedAtShowdown := game != nil && game.State == store.StateShowdown && s.Status != store.SeatFolded
		if owner || revealedAtShowdown || allInRunout {
			v.Cards = s.Cards
		} else {
			v.Cards = redactedCopyOf(s.Cards)
		}
		views = append(views, v)
	}

	return &Snapshot{Table: table, Game: game, Seats: views}, nil
}

// allRemainingAllIn is true when every seat still contesting the hand
// (active or all-in) is all-in — the revealed run-out, where no betting
// decision remains and all live hands turn face up. Folded and eliminated
// seats are not part of the hand and do not count.
func allRemainingAllIn(seats []*store.Seat) bool {
	contenders := turnorder.Contenders(seats)
	if len(contenders) == 0 {
		return false
	}
	for _, s := range contenders {
		if s.Status != store.SeatAllIn {
			return false
		}
	}
	return true
}

func redactedCopyOf(cards []card.Code) []card.Code {
	out := make([]card.Code, len(cards))
	for i := range cards {
		out[i] = card.Redacted
	}
	return out
}
