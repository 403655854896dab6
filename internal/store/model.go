// Package store is the transactional persistence surface: the table
// engine's entities and the typed Tx operations the rest of the engine
// uses to read and mutate them. Concrete backends live in
// internal/store/sqlite and internal/store/postgres.
package store

import (
	"context"
	"time"

	"tableengine/internal/card"
)

// Role distinguishes players from dealers.
type Role string

const (
	RolePlayer Role = "player"
	RoleDealer Role = "dealer"
)

// User is identity + chip custody. Balance moves only on seat join
// (debit) and leave/kick (refund).
type User struct {
	ID      string
	Role    Role
	Balance int64
}

// PokerTable is a table's static configuration and ownership.
type PokerTable struct {
	ID          string
	Name        string
	DealerID    string
	SmallBlind  int64
	BigBlind    int64
	MaxSeats    int
	StepSeconds int
	StartedAt   *time.Time
	BlindMult   int64 // multiplier applied to SmallBlind/BigBlind per blind-timer step
	CreatedAt   time.Time
}

// SeatStatus is a seat's participation state in the current hand.
type SeatStatus string

const (
	SeatActive     SeatStatus = "active"
	SeatAllIn      SeatStatus = "all-in"
	SeatFolded     SeatStatus = "folded"
	SeatEliminated SeatStatus = "eliminated"
)

// LastAction mirrors the most recent betting action a seat took this hand.
type LastAction string

const (
	LastActionRaise LastAction = "RAISE"
	LastActionCall  LastAction = "CALL"
	LastActionCheck LastAction = "CHECK"
	LastActionFold  LastAction = "FOLD"
	LastActionNone  LastAction = ""
)

// Seat is a player's occupancy of one chair at a table.
type Seat struct {
	ID              string
	TableID         string
	PlayerID        string
	SeatNumber      int
	BuyIn           int64
	StartingBalance int64
	CurrentBet      int64
	Cards           []card.Code
	Status          SeatStatus
	LastAction      LastAction

	// Showdown display fields, set once at SHOWDOWN.
	HandType        string
	HandDescription string
	WinAmount       int64
	WinningCards    []card.Code
}

// GameState is one of the six hand-state-machine states.
type GameState string

const (
	StateDealHoleCards GameState = "DEAL_HOLE_CARDS"
	StateBetting       GameState = "BETTING"
	StateDealFlop      GameState = "DEAL_FLOP"
	StateDealTurn      GameState = "DEAL_TURN"
	StateDealRiver     GameState = "DEAL_RIVER"
	StateShowdown      GameState = "SHOWDOWN"
)

// SidePotDetail is a showdown-time snapshot of one side pot, kept on the
// Game row for display after payout.
type SidePotDetail struct {
	PotNumber    int
	Amount       int64
	RangeLow     int64
	RangeHigh    int64
	Contributors []string
	Eligible     []string
	Winners      []PotWinner
}

// PotWinner names a seat's share of a side pot.
type PotWinner struct {
	SeatID string
	Amount int64
}

// Game is one hand in progress (or just completed) at a table. At most
// one game per table has IsCompleted=false.
type Game struct {
	ID                  string
	TableID             string
	State               GameState
	IsCompleted         bool
	DealerButtonSeatID  string
	AssignedSeatID      string
	CommunityCards      []card.Code
	PotTotal            int64
	BetCount            int
	RequiredBetCount    int
	EffectiveSmallBlind int64
	EffectiveBigBlind   int64
	TurnStartTime       *time.Time
	SidePotDetails      []SidePotDetail
	CreatedAt           time.Time
}

// EventType enumerates GameEvent.type values.
type EventType string

const (
	EventStartGame EventType = "START_GAME"
	EventRaise     EventType = "RAISE"
	EventCall      EventType = "CALL"
	EventCheck     EventType = "CHECK"
	EventFold      EventType = "FOLD"
	EventFlop      EventType = "FLOP"
	EventTurn      EventType = "TURN"
	EventRiver     EventType = "RIVER"
	EventEndGame   EventType = "END_GAME"
)

// GameEvent is one append-only row in the event log; ids are assigned by
// the store and increase monotonically.
type GameEvent struct {
	ID        int64
	TableID   string
	GameID    string // empty for table-level events
	Type      EventType
	Details   map[string]any
	CreatedAt time.Time
}

// DeviceType distinguishes hardware collaborators registered in PiDevice.
type DeviceType string

const (
	DeviceScanner DeviceType = "scanner"
	DevicePrinter DeviceType = "printer"
)

// PiDevice is a registered piece of table-side hardware.
type PiDevice struct {
	Serial       string
	TableID      string
	DeviceType   DeviceType
	LastSeenAt   time.Time
	RegisteredAt time.Time
}

// Tx is a transactional unit of work against the store. All mutating
// engine operations run inside one Tx.
type Tx interface {
	// Seats returns the table's seats ordered by SeatNumber ascending.
	Seats(ctx context.Context, tableID string) ([]*Seat, error)
	SeatByID(ctx context.Context, seatID string) (*Seat, error)
	UpdateSeat(ctx context.Context, s *Seat) error
	InsertSeat(ctx context.Context, s *Seat) error
	DeleteSeat(ctx context.Context, seatID string) error

	ActiveGame(ctx context.Context, tableID string) (*Game, error)
	// LastGame returns the most recently created game regardless of
	// completion status, used to carry the dealer button forward across
	// hands once the previous hand has completed.
	LastGame(ctx context.Context, tableID string) (*Game, error)
	GameByID(ctx context.Context, gameID string) (*Game, error)
	InsertGame(ctx context.Context, g *Game) error
	UpdateGame(ctx context.Context, g *Game) error

	Table(ctx context.Context, tableID string) (*PokerTable, error)
	InsertTable(ctx context.Context, t *PokerTable) error
	UpdateTable(ctx context.Context, t *PokerTable) error

	User(ctx context.Context, userID string) (*User, error)
	InsertUser(ctx context.Context, u *User) error
	UpdateUser(ctx context.Context, u *User) error

	AppendEvent(ctx context.Context, e *GameEvent) (int64, error)
	EventsSince(ctx context.Context, tableID string, gameID string, sinceID int64) ([]*GameEvent, error)

	Device(ctx context.Context, serial string) (*PiDevice, error)
	UpsertDevice(ctx context.Context, d *PiDevice) error

	Commit() error
	Rollback() error
}

// Store opens transactions scoped to a table.
type Store interface {
	Begin(ctx context.Context, tableID string) (Tx, error)
	CreateTable(ctx context.Context, t *PokerTable) error
	Close() error
}
