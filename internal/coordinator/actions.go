package coordinator

import (
	"context"

	"github.com/google/uuid"

	"tableengine/internal/card"
	"tableengine/internal/engine"
	"tableengine/internal/engineerr"
	"tableengine/internal/eventlog"
	"tableengine/internal/store"
)

// ActionParams carries the payload for whichever engine.ActionKind the
// caller is submitting; only the field relevant to that kind is read.
type ActionParams struct {
	RaiseAmount int64
	Card        card.Code
}

// CreateTable creates a table owned by dealerUserID.
func (c *Coordinator) CreateTable(ctx context.Context, dealerUserID, name string, smallBlind, bigBlind int64, maxSeats int) (*store.PokerTable, error) {
	t := &store.PokerTable{
		ID:          uuid.NewString(),
		Name:        name,
		DealerID:    dealerUserID,
		SmallBlind:  smallBlind,
		BigBlind:    bigBlind,
		MaxSeats:    maxSeats,
		StepSeconds: 0,
		BlindMult:   1,
	}
	if err := c.store.CreateTable(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

// Join seats playerUserID at the smallest available seatNumber, debiting
// their balance by buyIn. Joining mid-hand is rejected.
func (c *Coordinator) Join(ctx context.Context, tableID, playerUserID string, buyIn int64) (*Snapshot, error) {
	res, err := c.withTx(ctx, tableID, func(ctx context.Context, tx store.Tx) (any, error) {
		table, err := tx.Table(ctx, tableID)
		if err != nil {
			if err == store.ErrNotFound {
				return nil, engineerr.New(engineerr.NotFound, "table %s not found", tableID)
			}
			return nil, err
		}
		if _, err := tx.ActiveGame(ctx, tableID); err == nil {
			return nil, engineerr.New(engineerr.InvalidState, "cannot join table %s while a hand is in progress", tableID)
		} else if err != store.ErrNotFound {
			return nil, err
		}

		seats, err := tx.Seats(ctx, tableID)
		if err != nil {
			return nil, err
		}
		taken := make(map[int]bool, len(seats))
		for _, s := range seats {
			if s.PlayerID == playerUserID {
				return nil, engineerr.New(engineerr.Joined, "player %s already seated at table %s", playerUserID, tableID)
			}
			taken[s.SeatNumber] = true
		}
		seatNumber := -1
		for n := 0; n < table.MaxSeats; n++ {
			if !taken[n] {
				seatNumber = n
				break
			}
		}
		if seatNumber < 0 {
			return nil, engineerr.New(engineerr.TableFull, "table %s has no available seats", tableID)
		}

		user, err := tx.User(ctx, playerUserID)
		if err != nil {
			if err == store.ErrNotFound {
				return nil, engineerr.New(engineerr.NotFound, "user %s not found", playerUserID)
			}
			return nil, err
		}
		if user.Balance < buyIn {
			return nil, engineerr.New(engineerr.InsufficientBalance, "user %s balance %d is less than buyIn %d", playerUserID, user.Balance, buyIn)
		}
		user.Balance -= buyIn
		if err := tx.UpdateUser(ctx, user); err != nil {
			return nil, err
		}

		seat := &store.Seat{
			ID:              uuid.NewString(),
			TableID:         tableID,
			PlayerID:        playerUserID,
			SeatNumber:      seatNumber,
			BuyIn:           buyIn,
			StartingBalance: buyIn,
			Status:          store.SeatActive,
			LastAction:      store.LastActionNone,
		}
		if err := tx.InsertSeat(ctx, seat); err != nil {
			return nil, err
		}

		return buildSnapshot(ctx, tx, tableID, playerUserID)
	})
	if err != nil {
		return nil, err
	}
	return res.(*Snapshot), nil
}

// Leave removes playerUserID's seat and refunds their buyIn to their
// balance. Leaving mid-hand is rejected.
func (c *Coordinator) Leave(ctx context.Context, tableID, playerUserID string) error {
	_, err := c.withTx(ctx, tableID, func(ctx context.Context, tx store.Tx) (any, error) {
		return nil, leaveSeat(ctx, tx, tableID, playerUserID)
	})
	return err
}

// RemovePlayer is the dealer-only kick: same semantics as Leave, on
// someone else's seat.
func (c *Coordinator) RemovePlayer(ctx context.Context, tableID, dealerUserID, targetPlayerID string) error {
	_, err := c.withTx(ctx, tableID, func(ctx context.Context, tx store.Tx) (any, error) {
		table, err := tx.Table(ctx, tableID)
		if err != nil {
			if err == store.ErrNotFound {
				return nil, engineerr.New(engineerr.NotFound, "table %s not found", tableID)
			}
			return nil, err
		}
		if table.DealerID != dealerUserID {
			return nil, engineerr.New(engineerr.Forbidden, "user %s does not own table %s", dealerUserID, tableID)
		}
		return nil, leaveSeat(ctx, tx, tableID, targetPlayerID)
	})
	return err
}

func leaveSeat(ctx context.Context, tx store.Tx, tableID, playerUserID string) error {
	if _, err := tx.ActiveGame(ctx, tableID); err == nil {
		return engineerr.New(engineerr.InvalidState, "cannot leave table %s while a hand is in progress", tableID)
	} else if err != store.ErrNotFound {
		return err
	}

	seats, err := tx.Seats(ctx, tableID)
	if err != nil {
		return err
	}
	var seat *store.Seat
	for _, s := range seats {
		if s.PlayerID == playerUserID {
			seat = s
			break
		}
	}
	if seat == nil {
		return engineerr.New(engineerr.NotFound, "player %s is not seated at table %s", playerUserID, tableID)
	}

	user, err := tx.User(ctx, playerUserID)
	if err != nil {
		return err
	}
	user.Balance += seat.BuyIn
	if err := tx.UpdateUser(ctx, user); err != nil {
		return err
	}
	return tx.DeleteSeat(ctx, seat.ID)
}

// Action dispatches one of the six action kinds, authorizing by caller
// role before delegating to internal/engine. callerUserID is a dealer for
// START_GAME/DEAL_CARD/RESET_TABLE and a seated player for
// RAISE/CHECK/FOLD.
func (c *Coordinator) Action(ctx context.Context, tableID, callerUserID string, kind engine.ActionKind, params ActionParams) (*Snapshot, error) {
	res, err := c.withTx(ctx, tableID, func(ctx context.Context, tx store.Tx) (any, error) {
		table, err := tx.Table(ctx, tableID)
		if err != nil {
			if err == store.ErrNotFound {
				return nil, engineerr.New(engineerr.NotFound, "table %s not found", tableID)
			}
			return nil, err
		}

		switch kind {
		case engine.ActionStart:
			if table.DealerID != callerUserID {
				return nil, engineerr.New(engineerr.Forbidden, "only the table's dealer may start a hand")
			}
			if _, err := engine.StartGame(ctx, tx, tableID); err != nil {
				return nil, err
			}

		case engine.ActionDeal:
			if table.DealerID != callerUserID {
				return nil, engineerr.New(engineerr.Forbidden, "only the table's dealer may deal")
			}
			if _, err := engine.DealCard(ctx, tx, tableID, params.Card); err != nil {
				return nil, err
			}

		case engine.ActionReset:
			if table.DealerID != callerUserID {
				return nil, engineerr.New(engineerr.Forbidden, "only the table's dealer may reset the table")
			}
			if _, err := engine.ResetTable(ctx, tx, tableID); err != nil {
				return nil, err
			}

		case engine.ActionRaise, engine.ActionCheck, engine.ActionFold:
			seats, err := tx.Seats(ctx, tableID)
			if err != nil {
				return nil, err
			}
			actorSeatID := ""
			for _, s := range seats {
				if s.PlayerID == callerUserID {
					actorSeatID = s.ID
					break
				}
			}
			if actorSeatID == "" {
				return nil, engineerr.New(engineerr.NotFound, "player %s is not seated at table %s", callerUserID, tableID)
			}
			actKind := engine.ActKind(kind)
			if _, err := engine.ActOnTable(ctx, tx, tableID, actorSeatID, actKind, params.RaiseAmount); err != nil {
				return nil, err
			}

		default:
			return nil, engineerr.New(engineerr.InvalidState, "unknown action kind %q", kind)
		}

		return buildSnapshot(ctx, tx, tableID, callerUserID)
	})
	if err != nil {
		return nil, err
	}
	return res.(*Snapshot), nil
}

// DealFromScan applies one scanner-delivered card through the same
// per-table serialization slot as every other mutating operation. The
// device registry lookup has already resolved the table, so no role check
// applies here — the hardware path is trusted once the device is.
func (c *Coordinator) DealFromScan(ctx context.Context, tableID string, code card.Code) error {
	_, err := c.withTx(ctx, tableID, func(ctx context.Context, tx store.Tx) (any, error) {
		return engine.DealCard(ctx, tx, tableID, code)
	})
	return err
}

// EventsDelta returns events for tableID since sinceID. Read-only: it
// does not need the per-table actor slot since it mutates nothing, but
// uses one Tx for snapshot consistency.
func (c *Coordinator) EventsDelta(ctx context.Context, tableID string, sinceID int64) ([]*store.GameEvent, error) {
	tx, err := c.store.Begin(ctx, tableID)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()
	events, err := eventlog.EventsDelta(ctx, tx, tableID, sinceID)
	if err != nil {
		return nil, err
	}
	return events, tx.Commit()
}

// GetSnapshot returns a redacted view of tableID as seen by viewerUserID.
func (c *Coordinator) GetSnapshot(ctx context.Context, tableID, viewerUserID string) (*Snapshot, error) {
	tx, err := c.store.Begin(ctx, tableID)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()
	snap, err := buildSnapshot(ctx, tx, tableID, viewerUserID)
	if err != nil {
		return nil, err
	}
	return snap, tx.Commit()
}
