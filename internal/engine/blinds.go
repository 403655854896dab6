package engine

import (
	"context"

	"tableengine/internal/engineerr"
	"tableengine/internal/eventlog"
	"tableengine/internal/store"
	"tableengine/internal/turnorder"
)

// StartGame begins a new hand at tableID: resets per-hand seat state,
// advances the dealer button, posts blinds, and inserts the Game row in
// state DEAL_HOLE_CARDS.
func StartGame(ctx context.Context, tx store.Tx, tableID string) (*store.Game, error) {
	table, err := tx.Table(ctx, tableID)
	if err != nil {
		if err == store.ErrNotFound {
			return nil, engineerr.New(engineerr.NotFound, "table %s not found", tableID)
		}
		return nil, err
	}

	if _, err := tx.ActiveGame(ctx, tableID); err == nil {
		return nil, engineerr.New(engineerr.InvalidState, "a game is already in progress at table %s", tableID)
	} else if err != store.ErrNotFound {
		return nil, err
	}

	seats, err := tx.Seats(ctx, tableID)
	if err != nil {
		return nil, err
	}

	// Blinds for this hand are the base amounts scaled by the table's
	// current blind multiplier.
	mult := table.BlindMult
	if mult < 1 {
		mult = 1
	}
	effSmallBlind := table.SmallBlind * mult
	effBigBlind := table.BigBlind * mult

	eligible := make([]*store.Seat, 0, len(seats))
	for _, s := range seats {
		if s.Status != store.SeatEliminated && s.BuyIn >= effBigBlind {
			eligible = append(eligible, s)
		}
	}
	if len(eligible) < 2 {
		return nil, engineerr.New(engineerr.InvalidState, "table %s needs at least 2 seats with buyIn >= bigBlind to start a hand", tableID)
	}

	// Reset per-hand fields for every non-eliminated seat,
	// including prior all-in players who won chips back. Short stacks are
	// not sat out: a blind that equals or exceeds the stack simply forces
	// the seat all-in when posted below.
	for _, s := range seats {
		if s.Status == store.SeatEliminated {
			continue
		}
		s.Status = store.SeatActive
		s.Cards = nil
		s.CurrentBet = 0
		s.LastAction = store.LastActionNone
		s.HandType = ""
		s.HandDescription = ""
		s.WinAmount = 0
		s.WinningCards = nil
		s.StartingBalance = s.BuyIn
	}

	// Advance the dealer button.
	var buttonSeatID string
	if prev, err := tx.LastGame(ctx, tableID); err == nil {
		buttonSeatID = turnorder.NextNonEliminatedAfter(seats, prev.DealerButtonSeatID)
	} else if err == store.ErrNotFound {
		buttonSeatID = turnorder.FirstNonEliminated(seats)
	} else {
		return nil, err
	}

	// Post blinds. Heads-up (exactly 2 non-eliminated seats), the
	// button posts the small blind and acts first preflop; otherwise the
	// small blind is the seat after the button.
	var sbSeatID, bbSeatID string
	if turnorder.NonEliminatedCount(seats) == 2 {
		sbSeatID = buttonSeatID
		bbSeatID = turnorder.NextNonEliminatedAfter(seats, sbSeatID)
	} else {
		sbSeatID = turnorder.NextNonEliminatedAfter(seats, buttonSeatID)
		bbSeatID = turnorder.NextNonEliminatedAfter(seats, sbSeatID)
	}

	sbSeat := seatByIDIn(seats, sbSeatID)
	bbSeat := seatByIDIn(seats, bbSeatID)
	if sbSeat == nil || bbSeat == nil {
		return nil, engineerr.New(engineerr.InvalidState, "table %s could not resolve blind seats", tableID)
	}
	postBlind(sbSeat, effSmallBlind)
	postBlind(bbSeat, effBigBlind)

	// assignedSeatId starts as the first seat to receive a hole card; the
	// first seat to act is computed later, when hole-card dealing completes.
	dealToSeatID := turnorder.NextDealable(seats, buttonSeatID)

	if err := persistAll(ctx, tx, seats); err != nil {
		return nil, err
	}

	game := &store.Game{
		ID:                  newID(),
		TableID:             tableID,
		State:               store.StateDealHoleCards,
		IsCompleted:         false,
		DealerButtonSeatID:  buttonSeatID,
		AssignedSeatID:      dealToSeatID,
		PotTotal:            0,
		BetCount:            0,
		RequiredBetCount:    0,
		EffectiveSmallBlind: effSmallBlind,
		EffectiveBigBlind:   effBigBlind,
	}
	if err := tx.InsertGame(ctx, game); err != nil {
		return nil, err
	}

	if err := appendGameEvent(ctx, tx, tableID, game.ID, store.EventStartGame, map[string]any{
		"dealerButtonSeatId": buttonSeatID,
		"smallBlindSeatId":   sbSeatID,
		"bigBlindSeatId":     bbSeatID,
		"smallBlind":         effSmallBlind,
		"bigBlind":           effBigBlind,
	}); err != nil {
		return nil, err
	}

	return game, nil
}

// postBlind debits buyIn and credits currentBet by amount, capping at the
// seat's remaining stack and marking it all-in if the blind equals or
// exceeds it.
func postBlind(seat *store.Seat, amount int64) {
	if amount >= seat.BuyIn {
		amount = seat.BuyIn
		seat.Status = store.SeatAllIn
	}
	seat.BuyIn -= amount
	seat.CurrentBet += amount
}

func seatByIDIn(seats []*store.Seat, id string) *store.Seat {
	for _, s := range seats {
		if s.ID == id {
			return s
		}
	}
	return nil
}

func persistAll(ctx context.Context, tx store.Tx, seats []*store.Seat) error {
	for _, s := range seats {
		if err := tx.UpdateSeat(ctx, s); err != nil {
			return err
		}
	}
	return nil
}

func appendGameEvent(ctx context.Context, tx store.Tx, tableID, gameID string, t store.EventType, details map[string]any) error {
	if err := eventlog.Validate(t, details); err != nil {
		return err
	}
	_, err := tx.AppendEvent(ctx, &store.GameEvent{
		TableID: tableID,
		GameID:  gameID,
		Type:    t,
		Details: details,
	})
	return err
}
