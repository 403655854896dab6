// Package storetest provides an in-memory store.Store for engine and
// coordinator tests: the full transactional surface with no database
// underneath. A Tx works on a deep copy of the store's data and swaps it
// in on Commit, so a rolled-back (or abandoned) Tx leaves no trace.
package storetest

import (
	"context"
	"sync"
	"time"

	"tableengine/internal/card"
	"tableengine/internal/store"
)

// Store is the in-memory store.Store implementation. Transactions are
// fully serialized: Begin blocks until the previous Tx commits or rolls
// back, so concurrent callers see the same one-mutation-in-flight world a
// per-table-locked SQL store gives them, and no committed write is ever
// clobbered by a stale snapshot.
type Store struct {
	mu   sync.Mutex // guards data and direct seeding
	txMu sync.Mutex // held from Begin until Commit/Rollback
	data *data
}

type data struct {
	users   map[string]*store.User
	tables  map[string]*store.PokerTable
	seats   map[string]*store.Seat
	games   map[string]*store.Game
	gameSeq []string // game ids in insertion order
	events  []*store.GameEvent
	devices map[string]*store.PiDevice
	nextID  int64
}

func newData() *data {
	return &data{
		users:   map[string]*store.User{},
		tables:  map[string]*store.PokerTable{},
		seats:   map[string]*store.Seat{},
		games:   map[string]*store.Game{},
		devices: map[string]*store.PiDevice{},
		nextID:  1,
	}
}

// New builds an empty in-memory store.
func New() *Store {
	return &Store{data: newData()}
}

func (s *Store) Close() error { return nil }

func (s *Store) CreateTable(ctx context.Context, t *store.PokerTable) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.tables[t.ID] = cloneTable(t)
	return nil
}

func (s *Store) Begin(ctx context.Context, tableID string) (store.Tx, error) {
	s.txMu.Lock()
	s.mu.Lock()
	work := s.data.clone()
	s.mu.Unlock()
	return &memTx{s: s, work: work}, nil
}

// SeedUser inserts a user directly, outside any Tx.
func (s *Store) SeedUser(u *store.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.users[u.ID] = &store.User{ID: u.ID, Role: u.Role, Balance: u.Balance}
}

// SeedDevice registers a device directly, outside any Tx.
func (s *Store) SeedDevice(d *store.PiDevice) {
	s.mu.Lock()
	defer s.mu.Unlock()
	dd := *d
	s.data.devices[d.Serial] = &dd
}

type memTx struct {
	s    *Store
	work *data
	done bool
}

func (t *memTx) Commit() error {
	if t.done {
		return nil
	}
	t.done = true
	t.s.mu.Lock()
	t.s.data = t.work
	t.s.mu.Unlock()
	t.s.txMu.Unlock()
	return nil
}

func (t *memTx) Rollback() error {
	if t.done {
		return nil
	}
	t.done = true
	t.s.txMu.Unlock()
	return nil
}

func (t *memTx) Seats(ctx context.Context, tableID string) ([]*store.Seat, error) {
	var out []*store.Seat
	for _, s := range t.work.seats {
		if s.TableID == tableID {
			out = append(out, cloneSeat(s))
		}
	}
	sortSeats(out)
	return out, nil
}

func sortSeats(seats []*store.Seat) {
	for i := 1; i < len(seats); i++ {
		for j := i; j > 0 && seats[j-1].SeatNumber > seats[j].SeatNumber; j-- {
			seats[j-1], seats[j] = seats[j], seats[j-1]
		}
	}
}

func (t *memTx) SeatByID(ctx context.Context, seatID string) (*store.Seat, error) {
	s, ok := t.work.seats[seatID]
	if !ok {
		return nil, store.ErrNotFound
	}
	return cloneSeat(s), nil
}

func (t *memTx) UpdateSeat(ctx context.Context, s *store.Seat) error {
	if _, ok := t.work.seats[s.ID]; !ok {
		return store.ErrNotFound
	}
	t.work.seats[s.ID] = cloneSeat(s)
	return nil
}

func (t *memTx) InsertSeat(ctx context.Context, s *store.Seat) error {
	t.work.seats[s.ID] = cloneSeat(s)
	return nil
}

func (t *memTx) DeleteSeat(ctx context.Context, seatID string) error {
	delete(t.work.seats, seatID)
	return nil
}

func (t *memTx) ActiveGame(ctx context.Context, tableID string) (*store.Game, error) {
	for i := len(t.work.gameSeq) - 1; i >= 0; i-- {
		g := t.work.games[t.work.gameSeq[i]]
		if g.TableID == tableID && !g.IsCompleted {
			return cloneGame(g), nil
		}
	}
	return nil, store.ErrNotFound
}

func (t *memTx) LastGame(ctx context.Context, tableID string) (*store.Game, error) {
	for i := len(t.work.gameSeq) - 1; i >= 0; i-- {
		g := t.work.games[t.work.gameSeq[i]]
		if g.TableID == tableID {
			return cloneGame(g), nil
		}
	}
	return nil, store.ErrNotFound
}

func (t *memTx) GameByID(ctx context.Context, gameID string) (*store.Game, error) {
	g, ok := t.work.games[gameID]
	if !ok {
		return nil, store.ErrNotFound
	}
	return cloneGame(g), nil
}

func (t *memTx) InsertGame(ctx context.Context, g *store.Game) error {
	t.work.games[g.ID] = cloneGame(g)
	t.work.gameSeq = append(t.work.gameSeq, g.ID)
	return nil
}

func (t *memTx) UpdateGame(ctx context.Context, g *store.Game) error {
	if _, ok := t.work.games[g.ID]; !ok {
		return store.ErrNotFound
	}
	t.work.games[g.ID] = cloneGame(g)
	return nil
}

func (t *memTx) Table(ctx context.Context, tableID string) (*store.PokerTable, error) {
	tbl, ok := t.work.tables[tableID]
	if !ok {
		return nil, store.ErrNotFound
	}
	return cloneTable(tbl), nil
}

func (t *memTx) InsertTable(ctx context.Context, tbl *store.PokerTable) error {
	t.work.tables[tbl.ID] = cloneTable(tbl)
	return nil
}

func (t *memTx) UpdateTable(ctx context.Context, tbl *store.PokerTable) error {
	if _, ok := t.work.tables[tbl.ID]; !ok {
		return store.ErrNotFound
	}
	t.work.tables[tbl.ID] = cloneTable(tbl)
	return nil
}

func (t *memTx) User(ctx context.Context, userID string) (*store.User, error) {
	u, ok := t.work.users[userID]
	if !ok {
		return nil, store.ErrNotFound
	}
	uu := *u
	return &uu, nil
}

func (t *memTx) InsertUser(ctx context.Context, u *store.User) error {
	uu := *u
	t.work.users[u.ID] = &uu
	return nil
}

func (t *memTx) UpdateUser(ctx context.Context, u *store.User) error {
	if _, ok := t.work.users[u.ID]; !ok {
		return store.ErrNotFound
	}
	uu := *u
	t.work.users[u.ID] = &uu
	return nil
}

func (t *memTx) AppendEvent(ctx context.Context, e *store.GameEvent) (int64, error) {
	ee := cloneEvent(e)
	ee.ID = t.work.nextID
	ee.CreatedAt = time.Now().UTC()
	t.work.nextID++
	t.work.events = append(t.work.events, ee)
	return ee.ID, nil
}

func (t *memTx) EventsSince(ctx context.Context, tableID string, gameID string, sinceID int64) ([]*store.GameEvent, error) {
	var out []*store.GameEvent
	for _, e := range t.work.events {
		if e.TableID != tableID || e.ID <= sinceID {
			continue
		}
		if e.GameID != gameID && e.GameID != "" {
			continue
		}
		out = append(out, cloneEvent(e))
	}
	return out, nil
}

func (t *memTx) Device(ctx context.Context, serial string) (*store.PiDevice, error) {
	d, ok := t.work.devices[serial]
	if !ok {
		return nil, store.ErrNotFound
	}
	dd := *d
	return &dd, nil
}

func (t *memTx) UpsertDevice(ctx context.Context, d *store.PiDevice) error {
	dd := *d
	t.work.devices[d.Serial] = &dd
	return nil
}

func (d *data) clone() *data {
	out := newData()
	out.nextID = d.nextID
	for id, u := range d.users {
		uu := *u
		out.users[id] = &uu
	}
	for id, tbl := range d.tables {
		out.tables[id] = cloneTable(tbl)
	}
	for id, s := range d.seats {
		out.seats[id] = cloneSeat(s)
	}
	for id, g := range d.games {
		out.games[id] = cloneGame(g)
	}
	out.gameSeq = append([]string{}, d.gameSeq...)
	for _, e := range d.events {
		out.events = append(out.events, cloneEvent(e))
	}
	for serial, dev := range d.devices {
		dd := *dev
		out.devices[serial] = &dd
	}
	return out
}

func cloneSeat(s *store.Seat) *store.Seat {
	ss := *s
	ss.Cards = cloneCards(s.Cards)
	ss.WinningCards = cloneCards(s.WinningCards)
	return &ss
}

func cloneGame(g *store.Game) *store.Game {
	gg := *g
	gg.CommunityCards = cloneCards(g.CommunityCards)
	if g.TurnStartTime != nil {
		t := *g.TurnStartTime
		gg.TurnStartTime = &t
	}
	gg.SidePotDetails = append([]store.SidePotDetail{}, g.SidePotDetails...)
	return &gg
}

func cloneTable(t *store.PokerTable) *store.PokerTable {
	tt := *t
	if t.StartedAt != nil {
		at := *t.StartedAt
		tt.StartedAt = &at
	}
	return &tt
}

func cloneEvent(e *store.GameEvent) *store.GameEvent {
	ee := *e
	ee.Details = make(map[string]any, len(e.Details))
	for k, v := range e.Details {
		ee.Details[k] = v
	}
	return &ee
}

func cloneCards(cards []card.Code) []card.Code {
	if cards == nil {
		return nil
	}
	return append([]card.Code{}, cards...)
}
