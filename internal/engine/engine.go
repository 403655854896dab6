// Package engine implements the betting executor and the hand state
// machine: everything that mutates a Game and its Seats. Every operation
// runs inside one store.Tx and reads Seat/Game rows fresh inside that Tx
// before computing any debit, so chip arithmetic never depends on values a
// caller captured earlier.
package engine

import (
	"context"

	"github.com/google/uuid"

	"tableengine/internal/engineerr"
	"tableengine/internal/eventlog"
	"tableengine/internal/store"
)

// newID mints a new row identifier for engine-owned entities.
func newID() string {
	return uuid.NewString()
}

// ActionKind tags the six operations a table accepts: Start | Deal |
// Reset | Raise | Check | Fold.
type ActionKind string

const (
	ActionStart ActionKind = "START_GAME"
	ActionDeal  ActionKind = "DEAL_CARD"
	ActionReset ActionKind = "RESET_TABLE"
	ActionRaise ActionKind = "RAISE"
	ActionCheck ActionKind = "CHECK"
	ActionFold  ActionKind = "FOLD"
)

// hand bundles what every betting and dealing operation needs, freshly
// loaded inside the caller's Tx.
type hand struct {
	ctx   context.Context
	tx    store.Tx
	table *store.PokerTable
	game  *store.Game
	seats []*store.Seat
}

func loadActiveHand(ctx context.Context, tx store.Tx, tableID string) (*hand, error) {
	table, err := tx.Table(ctx, tableID)
	if err != nil {
		if err == store.ErrNotFound {
			return nil, engineerr.New(engineerr.NotFound, "table %s not found", tableID)
		}
		return nil, err
	}
	game, err := tx.ActiveGame(ctx, tableID)
	if err != nil {
		if err == store.ErrNotFound {
			return nil, engineerr.New(engineerr.InvalidState, "no active game at table %s", tableID)
		}
		return nil, err
	}
	seats, err := tx.Seats(ctx, tableID)
	if err != nil {
		return nil, err
	}
	return &hand{ctx: ctx, tx: tx, table: table, game: game, seats: seats}, nil
}

func (h *hand) seatByID(seatID string) *store.Seat {
	for _, s := range h.seats {
		if s.ID == seatID {
			return s
		}
	}
	return nil
}

func (h *hand) persistSeats(seats ...*store.Seat) error {
	for _, s := range seats {
		if err := h.tx.UpdateSeat(h.ctx, s); err != nil {
			return err
		}
	}
	return nil
}

func (h *hand) appendEvent(eventType store.EventType, details map[string]any) error {
	if err := eventlog.Validate(eventType, details); err != nil {
		return err
	}
	_, err := h.tx.AppendEvent(h.ctx, &store.GameEvent{
		TableID: h.table.ID,
		GameID:  h.game.ID,
		Type:    eventType,
		Details: details,
	})
	return err
}
