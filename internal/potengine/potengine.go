// Package potengine implements bet merging and side-pot construction and
// distribution. Side pots are recomputed from scratch at showdown from
// each seat's cumulative contribution, so folds and all-ins at any street
// are handled uniformly from a single snapshot of the seats.
package potengine

import (
	"sort"

	"tableengine/internal/card"
	"tableengine/internal/evaluator"
	"tableengine/internal/store"
)

// MergeBets closes a betting round's accounting: sum CurrentBet across
// the seats and reset each to zero. Callers persist the mutated seats,
// add the returned delta to the pot, and clear the round counters.
func MergeBets(seats []*store.Seat) (potDelta int64) {
	for _, s := range seats {
		potDelta += s.CurrentBet
		s.CurrentBet = 0
	}
	return potDelta
}

// SidePot is one constructed side pot: the chips between two contribution
// levels, the seats that put them in, and the subset still able to win them.
type SidePot struct {
	PotNumber    int
	Amount       int64
	RangeLow     int64
	RangeHigh    int64
	Contributors []*store.Seat
	Eligible     []*store.Seat
	Winners      []store.PotWinner
}

// cc is the cumulative contribution of a seat since hand start.
func cc(s *store.Seat) int64 {
	return s.StartingBalance - s.BuyIn
}

// BuildSidePots recomputes side pots from scratch from every seat's
// cumulative contribution: one pot per distinct contribution level,
// holding that level's increment from every seat that reached it.
func BuildSidePots(seats []*store.Seat) []SidePot {
	levels := distinctLevels(seats)

	var pots []SidePot
	prev := int64(0)
	potNumber := 1
	for _, level := range levels {
		increment := level - prev

		var contributors []*store.Seat
		for _, s := range seats {
			if cc(s) >= level {
				contributors = append(contributors, s)
			}
		}

		var eligible []*store.Seat
		for _, s := range contributors {
			if s.Status != store.SeatFolded && s.Status != store.SeatEliminated {
				eligible = append(eligible, s)
			}
		}

		amount := increment * int64(len(contributors))
		if amount > 0 && len(eligible) > 0 {
			pots = append(pots, SidePot{
				PotNumber:    potNumber,
				Amount:       amount,
				RangeLow:     prev,
				RangeHigh:    level,
				Contributors: contributors,
				Eligible:     eligible,
			})
			potNumber++
		}
		prev = level
	}
	return pots
}

func distinctLevels(seats []*store.Seat) []int64 {
	set := map[int64]struct{}{}
	for _, s := range seats {
		v := cc(s)
		if v > 0 {
			set[v] = struct{}{}
		}
	}
	levels := make([]int64, 0, len(set))
	for v := range set {
		levels = append(levels, v)
	}
	sort.Slice(levels, func(i, j int) bool { return levels[i] < levels[j] })
	return levels
}

// Distribute evaluates each side pot's eligible seats over hole ∪
// community cards, splits the pot among the tied winners by floor division,
// and records winners on the pot and tallies the payout per seat. An uneven
// split's remainder goes to the tied winner appearing earliest in priority
// (the seat closest after the dealer button), so every chip that entered a
// pot leaves it and the showdown conservation check can hold exactly.
// Reconciling the totals and raising ConservationError on a mismatch stays
// the caller's responsibility — potengine only computes.
func Distribute(pots []SidePot, communityCards []card.Code, cardsOf func(seatID string) []card.Code, priority []string) (payout map[string]int64, err error) {
	payout = make(map[string]int64)

	for i := range pots {
		p := &pots[i]
		if len(p.Eligible) == 0 || p.Amount <= 0 {
			continue
		}
		// A pot with a single eligible seat is won by folds: no cards need
		// to be shown, and pre-river there may not even be five to evaluate.
		if len(p.Eligible) == 1 {
			seat := p.Eligible[0]
			p.Winners = append(p.Winners, store.PotWinner{SeatID: seat.ID, Amount: p.Amount})
			payout[seat.ID] += p.Amount
			continue
		}
		hands := make([]evaluator.Hand, len(p.Eligible))
		for j, seat := range p.Eligible {
			all := make([]card.Code, 0, 7)
			all = append(all, cardsOf(seat.ID)...)
			all = append(all, communityCards...)
			h, evalErr := evaluator.Solve(all)
			if evalErr != nil {
				return nil, evalErr
			}
			hands[j] = h
		}
		winnerIdx := evaluator.Winners(hands)
		share := p.Amount / int64(len(winnerIdx))
		remainder := p.Amount - share*int64(len(winnerIdx))
		oddChipSeatID := firstByPriority(p, winnerIdx, priority)

		for _, wi := range winnerIdx {
			seat := p.Eligible[wi]
			amount := share
			if remainder > 0 && seat.ID == oddChipSeatID {
				amount += remainder
			}
			p.Winners = append(p.Winners, store.PotWinner{SeatID: seat.ID, Amount: amount})
			payout[seat.ID] += amount
		}
	}
	return payout, nil
}

// firstByPriority picks the winning seat earliest in priority; if none of
// the winners appear there, the first winner in seat order takes the odd
// chip.
func firstByPriority(p *SidePot, winnerIdx []int, priority []string) string {
	winners := make(map[string]bool, len(winnerIdx))
	for _, wi := range winnerIdx {
		winners[p.Eligible[wi].ID] = true
	}
	for _, id := range priority {
		if winners[id] {
			return id
		}
	}
	return p.Eligible[winnerIdx[0]].ID
}
