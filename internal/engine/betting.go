package engine

import (
	"context"
	"time"

	"tableengine/internal/engineerr"
	"tableengine/internal/store"
	"tableengine/internal/turnorder"
)

// ActOnTable loads the active hand at tableID and applies actorSeatID's
// action, the entry point the table coordinator dispatches into.
func ActOnTable(ctx context.Context, tx store.Tx, tableID, actorSeatID string, kind ActKind, raiseAmount int64) (*store.Game, error) {
	h, err := loadActiveHand(ctx, tx, tableID)
	if err != nil {
		return nil, err
	}
	return Act(h, actorSeatID, kind, raiseAmount)
}

// ActKind is one of the three player actions a seat may take.
type ActKind string

const (
	ActRaise ActKind = "RAISE"
	ActCheck ActKind = "CHECK"
	ActFold  ActKind = "FOLD"
)

// Act validates and applies a RAISE/CHECK/FOLD for actorSeatID.
// raiseAmount is the actor's new total bet for this round, read only when
// kind=ActRaise and required to strictly exceed the table's current max
// bet. Requested chips beyond the actor's stack become an all-in.
func Act(h *hand, actorSeatID string, kind ActKind, raiseAmount int64) (*store.Game, error) {
	if h.game.State != store.StateBetting {
		return nil, engineerr.New(engineerr.InvalidState, "table %s is not in a betting round", h.game.TableID)
	}
	if h.game.AssignedSeatID != actorSeatID {
		return nil, engineerr.New(engineerr.WrongTurn, "it is not seat %s's turn", actorSeatID)
	}
	actor := h.seatByID(actorSeatID)
	if actor == nil {
		return nil, engineerr.New(engineerr.NotFound, "seat %s not found", actorSeatID)
	}
	if actor.Status != store.SeatActive {
		return nil, engineerr.New(engineerr.InvalidState, "seat %s is not active", actorSeatID)
	}

	maxBet := turnorder.MaxBet(h.seats)

	// A CHECK is promoted to CALL when a bet is owed.
	effectiveKind := kind
	if kind == ActCheck && maxBet > actor.CurrentBet {
		effectiveKind = "CALL"
	}

	var eventType store.EventType
	var lastAction store.LastAction

	switch kind {
	case ActRaise:
		if raiseAmount <= maxBet {
			return nil, engineerr.New(engineerr.InvalidRaise, "raise %d must be strictly greater than max bet %d", raiseAmount, maxBet)
		}
		applyDebit(actor, raiseAmount-actor.CurrentBet)
		eventType = store.EventRaise
		lastAction = store.LastActionRaise

	case ActCheck:
		if effectiveKind == "CALL" {
			applyDebit(actor, maxBet-actor.CurrentBet)
			eventType = store.EventCall
			lastAction = store.LastActionCall
		} else {
			eventType = store.EventCheck
			lastAction = store.LastActionCheck
		}

	case ActFold:
		actor.Status = store.SeatFolded
		eventType = store.EventFold
		lastAction = store.LastActionFold

	default:
		return nil, engineerr.New(engineerr.InvalidState, "unknown action %q", kind)
	}

	if kind != ActFold {
		actor.LastAction = lastAction
	} else {
		actor.LastAction = store.LastActionFold
	}

	if err := h.persistSeats(actor); err != nil {
		return nil, err
	}

	details := map[string]any{"seatId": actorSeatID}
	switch eventType {
	case store.EventRaise:
		details["total"] = actor.CurrentBet
	case store.EventCall, store.EventCheck:
		details["total"] = actor.CurrentBet
	}
	if err := h.appendEvent(eventType, details); err != nil {
		return nil, err
	}

	// Advance the turn to the next active seat.
	nextSeatID := turnorder.NextActive(h.seats, actorSeatID)
	h.game.AssignedSeatID = nextSeatID
	h.game.BetCount++
	if nextSeatID != "" && turnorder.ActiveCount(h.seats) > 0 {
		now := time.Now()
		h.game.TurnStartTime = &now
	} else {
		h.game.TurnStartTime = nil
	}
	if err := h.tx.UpdateGame(h.ctx, h.game); err != nil {
		return nil, err
	}

	return evaluateRoundClose(h)
}

// applyDebit caps fundsRequested at the actor's available buyIn (all-in),
// debiting buyIn and crediting currentBet.
func applyDebit(seat *store.Seat, fundsRequested int64) {
	if fundsRequested < 0 {
		fundsRequested = 0
	}
	if fundsRequested > seat.BuyIn {
		fundsRequested = seat.BuyIn
	}
	seat.BuyIn -= fundsRequested
	seat.CurrentBet += fundsRequested
	if seat.BuyIn == 0 {
		seat.Status = store.SeatAllIn
	}
}
