package engine

import (
	"context"

	"tableengine/internal/card"
	"tableengine/internal/engineerr"
	"tableengine/internal/store"
	"tableengine/internal/turnorder"
)

// DealCard applies one scan- or dealer-delivered card to the active game
// at tableID: a hole card for the assigned seat while hole cards are
// going out, a community card during the flop, turn, and river.
func DealCard(ctx context.Context, tx store.Tx, tableID string, code card.Code) (*store.Game, error) {
	h, err := loadActiveHand(ctx, tx, tableID)
	if err != nil {
		return nil, err
	}
	if !code.Valid() {
		return nil, engineerr.New(engineerr.InvalidBarcode, "invalid card code %q", code)
	}

	switch h.game.State {
	case store.StateDealHoleCards:
		return h.dealHoleCard(code)
	case store.StateDealFlop, store.StateDealTurn, store.StateDealRiver:
		return h.dealCommunityCard(code)
	default:
		return nil, engineerr.New(engineerr.InvalidState, "cannot deal a card while game is in state %s", h.game.State)
	}
}

func (h *hand) allDealtCards() map[card.Code]bool {
	seen := make(map[card.Code]bool)
	for _, s := range h.seats {
		for _, c := range s.Cards {
			seen[c] = true
		}
	}
	for _, c := range h.game.CommunityCards {
		seen[c] = true
	}
	return seen
}

func (h *hand) rejectDuplicate(code card.Code) error {
	if h.allDealtCards()[code] {
		return engineerr.New(engineerr.DuplicateCard, "card %s already dealt this hand", code)
	}
	return nil
}

func (h *hand) dealHoleCard(code card.Code) (*store.Game, error) {
	if err := h.rejectDuplicate(code); err != nil {
		return nil, err
	}
	target := h.seatByID(h.game.AssignedSeatID)
	if target == nil {
		return nil, engineerr.New(engineerr.NotFound, "assigned seat %s not found", h.game.AssignedSeatID)
	}
	target.Cards = append(target.Cards, code)
	if err := h.persistSeats(target); err != nil {
		return nil, err
	}

	if h.seatNeedsHoleCard() {
		h.game.AssignedSeatID = turnorder.NextDealable(h.seats, h.game.AssignedSeatID)
		if err := h.tx.UpdateGame(h.ctx, h.game); err != nil {
			return nil, err
		}
		return h.game, nil
	}

	h.game.State = store.StateBetting
	h.game.AssignedSeatID = h.preflopFirstToAct()
	h.game.RequiredBetCount = turnorder.ActiveCount(h.seats)
	h.game.BetCount = 0
	if err := h.tx.UpdateGame(h.ctx, h.game); err != nil {
		return nil, err
	}
	// With at most one seat still able to act (the blinds forced the rest
	// all-in) and its bet already matching the highest bet, there is no
	// betting round to wait for.
	return evaluateRoundClose(h)
}

// seatNeedsHoleCard is true while any dealable (non-folded, non-eliminated)
// seat holds fewer than 2 hole cards.
func (h *hand) seatNeedsHoleCard() bool {
	for _, s := range h.seats {
		if s.Status == store.SeatFolded || s.Status == store.SeatEliminated {
			continue
		}
		if len(s.Cards) < 2 {
			return true
		}
	}
	return false
}

// preflopFirstToAct is the first active seat after the big blind, except
// heads-up where the button (small blind) acts first.
func (h *hand) preflopFirstToAct() string {
	// 两人局按钮位即小盲，翻牌前由按钮位先行动；按钮位因盲注 all-in 时
	// 顺延到下一个可行动座位。
	if turnorder.NonEliminatedCount(h.seats) == 2 {
		btn := h.seatByID(h.game.DealerButtonSeatID)
		if btn != nil && btn.Status == store.SeatActive {
			return btn.ID
		}
		return turnorder.NextActive(h.seats, h.game.DealerButtonSeatID)
	}
	bbSeatID := turnorder.NextNonEliminatedAfter(h.seats, turnorder.NextNonEliminatedAfter(h.seats, h.game.DealerButtonSeatID))
	return turnorder.NextActive(h.seats, bbSeatID)
}

func (h *hand) dealCommunityCard(code card.Code) (*store.Game, error) {
	if err := h.rejectDuplicate(code); err != nil {
		return nil, err
	}
	h.game.CommunityCards = append(h.game.CommunityCards, code)

	threshold := communityThreshold(h.game.State)
	if len(h.game.CommunityCards) < threshold {
		if err := h.tx.UpdateGame(h.ctx, h.game); err != nil {
			return nil, err
		}
		return h.game, nil
	}

	h.game.State = store.StateBetting
	h.game.AssignedSeatID = turnorder.NextActive(h.seats, h.game.DealerButtonSeatID)
	h.game.RequiredBetCount = turnorder.ActiveCount(h.seats)
	h.game.BetCount = 0

	if err := h.tx.UpdateGame(h.ctx, h.game); err != nil {
		return nil, err
	}
	if err := h.appendEvent(streetEventType(threshold), map[string]any{
		"communityAll": h.game.CommunityCards,
	}); err != nil {
		return nil, err
	}
	// An all-in run-out has no one left to act: close the street right away
	// so the next card (or showdown) can come.
	return evaluateRoundClose(h)
}

func communityThreshold(state store.GameState) int {
	switch state {
	case store.StateDealFlop:
		return 3
	case store.StateDealTurn:
		return 4
	case store.StateDealRiver:
		return 5
	default:
		return 0
	}
}

func streetEventType(threshold int) store.EventType {
	switch threshold {
	case 3:
		return store.EventFlop
	case 4:
		return store.EventTurn
	default:
		return store.EventRiver
	}
}
