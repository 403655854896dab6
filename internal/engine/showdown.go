package engine

import (
	"context"
	"fmt"

	"tableengine/internal/card"
	"tableengine/internal/engineerr"
	"tableengine/internal/evaluator"
	"tableengine/internal/eventlog"
	"tableengine/internal/potengine"
	"tableengine/internal/store"
	"tableengine/internal/turnorder"
)

// evaluateRoundClose closes the betting round once every active seat is
// matched to the highest live bet and either at most one seat can still
// act or everyone has acted at least once. On close it merges bets into
// the pot and advances to the next street or to showdown.
func evaluateRoundClose(h *hand) (*store.Game, error) {
	allEqual := turnorder.AllActiveBetsEqual(h.seats)
	activeCount := turnorder.ActiveCount(h.seats)
	closes := allEqual && (activeCount <= 1 || h.game.BetCount >= h.game.RequiredBetCount)
	if !closes {
		return h.game, nil
	}

	// Merge this round's bets into the pot.
	h.game.PotTotal += potengine.MergeBets(h.seats)
	h.game.BetCount = 0
	h.game.RequiredBetCount = 0
	if err := h.persistSeats(h.seats...); err != nil {
		return nil, err
	}

	// Straight to showdown with one contender left or a full board.
	contenders := turnorder.Contenders(h.seats)
	if len(contenders) == 1 || len(h.game.CommunityCards) == 5 {
		return runShowdown(h)
	}

	// Otherwise the next street is due; pick it by board size.
	switch len(h.game.CommunityCards) {
	case 0:
		h.game.State = store.StateDealFlop
	case 3:
		h.game.State = store.StateDealTurn
	case 4:
		h.game.State = store.StateDealRiver
	default:
		return nil, engineerr.New(engineerr.InvalidState, "unexpected community card count %d at round close", len(h.game.CommunityCards))
	}
	h.game.TurnStartTime = nil
	if err := h.tx.UpdateGame(h.ctx, h.game); err != nil {
		return nil, err
	}
	return h.game, nil
}

// runShowdown evaluates every contender, builds and distributes side
// pots, verifies chip conservation, and completes the game.
func runShowdown(h *hand) (*store.Game, error) {
	pots := potengine.BuildSidePots(h.seats)

	cardsOf := func(seatID string) []card.Code {
		if s := h.seatByID(seatID); s != nil {
			return s.Cards
		}
		return nil
	}
	payout, err := potengine.Distribute(pots, h.game.CommunityCards, cardsOf, h.oddChipPriority())
	if err != nil {
		return nil, err
	}

	// Record hand descriptors for every seat that showed a hand. A hand won
	// by folds shows nothing — there may not even be five cards out yet.
	handDescrByContenderSeat := map[string]evaluator.Hand{}
	if contenders := turnorder.Contenders(h.seats); len(contenders) > 1 {
		for _, s := range contenders {
			all := append(append([]card.Code{}, s.Cards...), h.game.CommunityCards...)
			hd, evalErr := evaluator.Solve(all)
			if evalErr != nil {
				return nil, evalErr
			}
			handDescrByContenderSeat[s.ID] = hd
		}
	}

	winnersEvent := make([]map[string]any, 0, len(payout))
	for _, s := range h.seats {
		win := payout[s.ID]
		if hd, ok := handDescrByContenderSeat[s.ID]; ok {
			s.HandType = hd.Descr
			s.HandDescription = fmt.Sprintf("%s (%v)", hd.Descr, hd.BestFive)
			s.WinningCards = hd.BestFive
		}
		s.WinAmount = win
		s.BuyIn += win
		if win > 0 {
			entry := map[string]any{"seatId": s.ID, "amount": win}
			if hd, ok := handDescrByContenderSeat[s.ID]; ok {
				entry["handType"] = hd.Descr
				entry["cards"] = hd.BestFive
			}
			winnersEvent = append(winnersEvent, entry)
		}
		if s.BuyIn == 0 && s.Status != store.SeatEliminated {
			s.Status = store.SeatEliminated
		}
	}
	if err := h.persistSeats(h.seats...); err != nil {
		return nil, err
	}

	// Every chip that started the hand must end it somewhere.
	var sumStarting, sumBuyIn int64
	for _, s := range h.seats {
		sumStarting += s.StartingBalance
		sumBuyIn += s.BuyIn
	}
	if sumStarting != sumBuyIn {
		return nil, engineerr.New(engineerr.ConservationError, "chip conservation violated at showdown: sum(startingBalance)=%d sum(buyIn)=%d", sumStarting, sumBuyIn).WithDetails(map[string]any{
			"potTotal": h.game.PotTotal,
			"pots":     pots,
			"seats":    h.seats,
		})
	}

	h.game.State = store.StateShowdown
	h.game.IsCompleted = true
	h.game.TurnStartTime = nil
	h.game.SidePotDetails = toSidePotDetails(pots)
	if err := h.tx.UpdateGame(h.ctx, h.game); err != nil {
		return nil, err
	}

	if err := h.appendEvent(store.EventEndGame, map[string]any{"winners": winnersEvent}); err != nil {
		return nil, err
	}
	return h.game, nil
}

// oddChipPriority orders seat ids starting just after the dealer button,
// wrapping: an uneven split's odd chip goes to the tied winner closest after
// the button.
func (h *hand) oddChipPriority() []string {
	n := len(h.seats)
	start := 0
	for i, s := range h.seats {
		if s.ID == h.game.DealerButtonSeatID {
			start = i
			break
		}
	}
	out := make([]string, 0, n)
	for step := 1; step <= n; step++ {
		out = append(out, h.seats[(start+step)%n].ID)
	}
	return out
}

func toSidePotDetails(pots []potengine.SidePot) []store.SidePotDetail {
	out := make([]store.SidePotDetail, 0, len(pots))
	for _, p := range pots {
		contributors := make([]string, 0, len(p.Contributors))
		for _, s := range p.Contributors {
			contributors = append(contributors, s.ID)
		}
		eligible := make([]string, 0, len(p.Eligible))
		for _, s := range p.Eligible {
			eligible = append(eligible, s.ID)
		}
		out = append(out, store.SidePotDetail{
			PotNumber:    p.PotNumber,
			Amount:       p.Amount,
			RangeLow:     p.RangeLow,
			RangeHigh:    p.RangeHigh,
			Contributors: contributors,
			Eligible:     eligible,
			Winners:      p.Winners,
		})
	}
	return out
}

// ResetTable is the dealer-only recovery operation: it completes the
// current game without a showdown, restores every non-eliminated seat's
// buyIn from startingBalance, and logs an empty-winners END_GAME.
func ResetTable(ctx context.Context, tx store.Tx, tableID string) (*store.Game, error) {
	game, err := tx.ActiveGame(ctx, tableID)
	if err != nil {
		if err == store.ErrNotFound {
			return nil, engineerr.New(engineerr.InvalidState, "no active game at table %s to reset", tableID)
		}
		return nil, err
	}
	seats, err := tx.Seats(ctx, tableID)
	if err != nil {
		return nil, err
	}

	for _, s := range seats {
		if s.Status == store.SeatEliminated {
			continue
		}
		s.BuyIn = s.StartingBalance
		s.CurrentBet = 0
		s.Cards = nil
		s.LastAction = store.LastActionNone
		s.HandType = ""
		s.HandDescription = ""
		s.WinAmount = 0
		s.WinningCards = nil
		s.Status = store.SeatActive
	}
	for _, s := range seats {
		if err := tx.UpdateSeat(ctx, s); err != nil {
			return nil, err
		}
	}

	game.State = store.StateShowdown
	game.IsCompleted = true
	game.TurnStartTime = nil
	if err := tx.UpdateGame(ctx, game); err != nil {
		return nil, err
	}

	resetDetails := map[string]any{"winners": []map[string]any{}}
	if err := eventlog.Validate(store.EventEndGame, resetDetails); err != nil {
		return nil, err
	}
	if _, err := tx.AppendEvent(ctx, &store.GameEvent{
		TableID: tableID,
		GameID:  game.ID,
		Type:    store.EventEndGame,
		Details: resetDetails,
	}); err != nil {
		return nil, err
	}
	return game, nil
}
