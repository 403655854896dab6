package coordinator

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"tableengine/internal/card"
	"tableengine/internal/engine"
	"tableengine/internal/engineerr"
	"tableengine/internal/store"
	"tableengine/internal/store/storetest"
)

const (
	dealerID = "dealer-1"
	p1       = "player-1"
	p2       = "player-2"
	p3       = "player-3"
)

func newCoordinator(t *testing.T) (*Coordinator, *storetest.Store) {
	t.Helper()
	st := storetest.New()
	st.SeedUser(&store.User{ID: dealerID, Role: store.RoleDealer, Balance: 0})
	for _, p := range []string{p1, p2, p3} {
		st.SeedUser(&store.User{ID: p, Role: store.RolePlayer, Balance: 1000})
	}
	c := New(st, nil)
	t.Cleanup(c.Close)
	return c, st
}

func createTable(t *testing.T, c *Coordinator) *store.PokerTable {
	t.Helper()
	tbl, err := c.CreateTable(context.Background(), dealerID, "main", 5, 10, 4)
	require.NoError(t, err)
	return tbl
}

func userBalance(t *testing.T, st *storetest.Store, userID string) int64 {
	t.Helper()
	ctx := context.Background()
	tx, err := st.Begin(ctx, "")
	require.NoError(t, err)
	defer tx.Rollback()
	u, err := tx.User(ctx, userID)
	require.NoError(t, err)
	return u.Balance
}

func TestJoinAssignsSmallestSeatAndDebitsBalance(t *testing.T) {
	c, st := newCoordinator(t)
	tbl := createTable(t, c)
	ctx := context.Background()

	snap, err := c.Join(ctx, tbl.ID, p1, 200)
	require.NoError(t, err)
	require.Len(t, snap.Seats, 1)
	require.Equal(t, 0, snap.Seats[0].SeatNumber)
	require.Equal(t, int64(200), snap.Seats[0].BuyIn)
	require.Equal(t, int64(800), userBalance(t, st, p1))

	snap, err = c.Join(ctx, tbl.ID, p2, 300)
	require.NoError(t, err)
	require.Len(t, snap.Seats, 2)
	require.Equal(t, 1, snap.Seats[1].SeatNumber)
}

func TestJoinRejections(t *testing.T) {
	c, _ := newCoordinator(t)
	tbl := createTable(t, c)
	ctx := context.Background()

	_, err := c.Join(ctx, tbl.ID, p1, 2000)
	require.True(t, engineerr.Is(err, engineerr.InsufficientBalance))

	_, err = c.Join(ctx, tbl.ID, p1, 200)
	require.NoError(t, err)
	_, err = c.Join(ctx, tbl.ID, p1, 200)
	require.True(t, engineerr.Is(err, engineerr.Joined))

	_, err = c.Join(ctx, "no-such-table", p2, 200)
	require.True(t, engineerr.Is(err, engineerr.NotFound))
}

func TestJoinTableFull(t *testing.T) {
	c, _ := newCoordinator(t)
	ctx := context.Background()
	tbl, err := c.CreateTable(ctx, dealerID, "tiny", 5, 10, 2)
	require.NoError(t, err)

	_, err = c.Join(ctx, tbl.ID, p1, 200)
	require.NoError(t, err)
	_, err = c.Join(ctx, tbl.ID, p2, 200)
	require.NoError(t, err)
	_, err = c.Join(ctx, tbl.ID, p3, 200)
	require.True(t, engineerr.Is(err, engineerr.TableFull))
}

func TestLeaveRefundsBuyIn(t *testing.T) {
	c, st := newCoordinator(t)
	tbl := createTable(t, c)
	ctx := context.Background()

	_, err := c.Join(ctx, tbl.ID, p1, 200)
	require.NoError(t, err)
	require.Equal(t, int64(800), userBalance(t, st, p1))

	require.NoError(t, c.Leave(ctx, tbl.ID, p1))
	require.Equal(t, int64(1000), userBalance(t, st, p1))

	err = c.Leave(ctx, tbl.ID, p1)
	require.True(t, engineerr.Is(err, engineerr.NotFound))
}

func TestRemovePlayerRequiresOwnership(t *testing.T) {
	c, st := newCoordinator(t)
	tbl := createTable(t, c)
	ctx := context.Background()

	_, err := c.Join(ctx, tbl.ID, p1, 200)
	require.NoError(t, err)

	err = c.RemovePlayer(ctx, tbl.ID, p2, p1)
	require.True(t, engineerr.Is(err, engineerr.Forbidden))

	require.NoError(t, c.RemovePlayer(ctx, tbl.ID, dealerID, p1))
	require.Equal(t, int64(1000), userBalance(t, st, p1))
}

func TestActionAuthorization(t *testing.T) {
	c, _ := newCoordinator(t)
	tbl := createTable(t, c)
	ctx := context.Background()

	_, err := c.Join(ctx, tbl.ID, p1, 200)
	require.NoError(t, err)
	_, err = c.Join(ctx, tbl.ID, p2, 200)
	require.NoError(t, err)

	// players cannot start hands or deal
	_, err = c.Action(ctx, tbl.ID, p1, engine.ActionStart, ActionParams{})
	require.True(t, engineerr.Is(err, engineerr.Forbidden))
	_, err = c.Action(ctx, tbl.ID, p1, engine.ActionDeal, ActionParams{Card: "As"})
	require.True(t, engineerr.Is(err, engineerr.Forbidden))
	_, err = c.Action(ctx, tbl.ID, p1, engine.ActionReset, ActionParams{})
	require.True(t, engineerr.Is(err, engineerr.Forbidden))

	snap, err := c.Action(ctx, tbl.ID, dealerID, engine.ActionStart, ActionParams{})
	require.NoError(t, err)
	require.Equal(t, store.StateDealHoleCards, snap.Game.State)

	// an unseated caller cannot bet
	_, err = c.Action(ctx, tbl.ID, p3, engine.ActionFold, ActionParams{})
	require.True(t, engineerr.Is(err, engineerr.NotFound))
}

func TestJoinRejectedDuringHand(t *testing.T) {
	c, _ := newCoordinator(t)
	tbl := createTable(t, c)
	ctx := context.Background()

	_, err := c.Join(ctx, tbl.ID, p1, 200)
	require.NoError(t, err)
	_, err = c.Join(ctx, tbl.ID, p2, 200)
	require.NoError(t, err)
	_, err = c.Action(ctx, tbl.ID, dealerID, engine.ActionStart, ActionParams{})
	require.NoError(t, err)

	_, err = c.Join(ctx, tbl.ID, p3, 200)
	require.True(t, engineerr.Is(err, engineerr.InvalidState))
	err = c.Leave(ctx, tbl.ID, p1)
	require.True(t, engineerr.Is(err, engineerr.InvalidState))
}

func dealVia(t *testing.T, c *Coordinator, tableID string, codes ...string) {
	t.Helper()
	for _, code := range codes {
		_, err := c.Action(context.Background(), tableID, dealerID, engine.ActionDeal, ActionParams{Card: card.MustParse(code)})
		require.NoError(t, err, "dealing %s", code)
	}
}

func TestSnapshotRedactsOtherHoleCards(t *testing.T) {
	c, _ := newCoordinator(t)
	tbl := createTable(t, c)
	ctx := context.Background()

	_, err := c.Join(ctx, tbl.ID, p1, 200)
	require.NoError(t, err)
	_, err = c.Join(ctx, tbl.ID, p2, 200)
	require.NoError(t, err)
	_, err = c.Action(ctx, tbl.ID, dealerID, engine.ActionStart, ActionParams{})
	require.NoError(t, err)
	dealVia(t, c, tbl.ID, "As", "Ks", "Qs", "Js")

	snap, err := c.GetSnapshot(ctx, tbl.ID, p1)
	require.NoError(t, err)
	byPlayer := map[string]SeatView{}
	for _, v := range snap.Seats {
		byPlayer[v.PlayerID] = v
	}

	// heads-up deal order: the non-button seat receives first
	require.Equal(t, []card.Code{"Ks", "Js"}, byPlayer[p1].Cards, "own cards visible")
	require.Equal(t, []card.Code{card.Redacted, card.Redacted}, byPlayer[p2].Cards)

	// the dealer sees redacted cards too: dealers own no seat
	snap, err = c.GetSnapshot(ctx, tbl.ID, dealerID)
	require.NoError(t, err)
	for _, v := range snap.Seats {
		require.Equal(t, []card.Code{card.Redacted, card.Redacted}, v.Cards)
	}
}

func TestSnapshotRevealsOnAllInRunout(t *testing.T) {
	c, _ := newCoordinator(t)
	tbl := createTable(t, c)
	ctx := context.Background()

	_, err := c.Join(ctx, tbl.ID, p1, 100)
	require.NoError(t, err)
	_, err = c.Join(ctx, tbl.ID, p2, 100)
	require.NoError(t, err)
	_, err = c.Action(ctx, tbl.ID, dealerID, engine.ActionStart, ActionParams{})
	require.NoError(t, err)
	dealVia(t, c, tbl.ID, "As", "Ks", "Qs", "Js")

	// button shoves, the other seat calls it off
	_, err = c.Action(ctx, tbl.ID, p1, engine.ActionRaise, ActionParams{RaiseAmount: 100})
	require.NoError(t, err)
	_, err = c.Action(ctx, tbl.ID, p2, engine.ActionCheck, ActionParams{})
	require.NoError(t, err)

	snap, err := c.GetSnapshot(ctx, tbl.ID, p3)
	require.NoError(t, err)
	for _, v := range snap.Seats {
		require.NotContains(t, v.Cards, card.Redacted, "all-in run-out reveals every live hand")
	}
}

func TestSnapshotRevealsAtShowdown(t *testing.T) {
	c, _ := newCoordinator(t)
	tbl := createTable(t, c)
	ctx := context.Background()

	_, err := c.Join(ctx, tbl.ID, p1, 200)
	require.NoError(t, err)
	_, err = c.Join(ctx, tbl.ID, p2, 200)
	require.NoError(t, err)
	_, err = c.Action(ctx, tbl.ID, dealerID, engine.ActionStart, ActionParams{})
	require.NoError(t, err)
	dealVia(t, c, tbl.ID, "As", "Ks", "Qs", "Js")

	check := func(p string) {
		_, err := c.Action(ctx, tbl.ID, p, engine.ActionCheck, ActionParams{})
		require.NoError(t, err)
	}
	check(p1)
	check(p2)
	dealVia(t, c, tbl.ID, "2h", "3h", "4h")
	check(p2)
	check(p1)
	dealVia(t, c, tbl.ID, "5h")
	check(p2)
	check(p1)
	dealVia(t, c, tbl.ID, "6h")
	check(p2)
	check(p1)

	snap, err := c.GetSnapshot(ctx, tbl.ID, p3)
	require.NoError(t, err)
	require.NotNil(t, snap.Game)
	require.Equal(t, store.StateShowdown, snap.Game.State)
	for _, v := range snap.Seats {
		require.NotContains(t, v.Cards, card.Redacted, "showdown reveals non-folded hands")
	}
}

func TestEventsDelta(t *testing.T) {
	c, _ := newCoordinator(t)
	tbl := createTable(t, c)
	ctx := context.Background()

	_, err := c.Join(ctx, tbl.ID, p1, 200)
	require.NoError(t, err)
	_, err = c.Join(ctx, tbl.ID, p2, 200)
	require.NoError(t, err)
	_, err = c.Action(ctx, tbl.ID, dealerID, engine.ActionStart, ActionParams{})
	require.NoError(t, err)

	events, err := c.EventsDelta(ctx, tbl.ID, 0)
	require.NoError(t, err)
	require.Len(t, events, 1)
	require.Equal(t, store.EventStartGame, events[0].Type)

	// the delta excludes what was already seen
	events, err = c.EventsDelta(ctx, tbl.ID, events[0].ID)
	require.NoError(t, err)
	require.Empty(t, events)
}

func TestNotifierFiresOnCommit(t *testing.T) {
	st := storetest.New()
	st.SeedUser(&store.User{ID: dealerID, Role: store.RoleDealer, Balance: 0})
	st.SeedUser(&store.User{ID: p1, Role: store.RolePlayer, Balance: 1000})

	n := &recordingNotifier{}
	c := New(st, n)
	t.Cleanup(c.Close)

	tbl, err := c.CreateTable(context.Background(), dealerID, "main", 5, 10, 4)
	require.NoError(t, err)
	_, err = c.Join(context.Background(), tbl.ID, p1, 200)
	require.NoError(t, err)
	require.Equal(t, []string{tbl.ID}, n.published)

	// a failed operation publishes nothing
	_, err = c.Join(context.Background(), tbl.ID, p1, 200)
	require.Error(t, err)
	require.Len(t, n.published, 1)
}

type recordingNotifier struct {
	published []string
}

func (r *recordingNotifier) Publish(tableID string) {
	r.published = append(r.published, tableID)
}
