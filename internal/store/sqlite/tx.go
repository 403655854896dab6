package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"tableengine/internal/store"
)

type sqliteTx struct {
	tx      *sql.Tx
	tableID string
}

func (t *sqliteTx) Commit() error   { return t.tx.Commit() }
func (t *sqliteTx) Rollback() error { return t.tx.Rollback() }

func (t *sqliteTx) Seats(ctx context.Context, tableID string) ([]*store.Seat, error) {
	rows, err := t.tx.QueryContext(ctx, `
SELECT id, table_id, player_id, seat_number, buy_in, starting_balance, current_bet, cards,
       status, last_action, hand_type, hand_description, win_amount, winning_cards
FROM seats WHERE table_id = ? ORDER BY seat_number ASC
`, tableID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*store.Seat
	for rows.Next() {
		s, err := scanSeat(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSeat(r rowScanner) (*store.Seat, error) {
	var s store.Seat
	var cardsRaw, winningCardsRaw string
	if err := r.Scan(&s.ID, &s.TableID, &s.PlayerID, &s.SeatNumber, &s.BuyIn, &s.StartingBalance,
		&s.CurrentBet, &cardsRaw, &s.Status, &s.LastAction, &s.HandType, &s.HandDescription,
		&s.WinAmount, &winningCardsRaw); err != nil {
		return nil, err
	}
	cards, err := store.DecodeCards(cardsRaw)
	if err != nil {
		return nil, err
	}
	s.Cards = cards
	winningCards, err := store.DecodeCards(winningCardsRaw)
	if err != nil {
		return nil, err
	}
	s.WinningCards = winningCards
	return &s, nil
}

func (t *sqliteTx) SeatByID(ctx context.Context, seatID string) (*store.Seat, error) {
	row := t.tx.QueryRowContext(ctx, `
SELECT id, table_id, player_id, seat_number, buy_in, starting_balance, current_bet, cards,
       status, last_action, hand_type, hand_description, win_amount, winning_cards
FROM seats WHERE id = ?
`, seatID)
	s, err := scanSeat(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	return s, err
}

func (t *sqliteTx) UpdateSeat(ctx context.Context, s *store.Seat) error {
	cardsRaw, err := store.EncodeCards(s.Cards)
	if err != nil {
		return err
	}
	winningCardsRaw, err := store.EncodeCards(s.WinningCards)
	if err != nil {
		return err
	}
	_, err = t.tx.ExecContext(ctx, `
UPDATE seats SET buy_in=?, starting_balance=?, current_bet=?, cards=?, status=?, last_action=?,
    hand_type=?, hand_description=?, win_amount=?, winning_cards=?
WHERE id=?
`, s.BuyIn, s.StartingBalance, s.CurrentBet, cardsRaw, s.Status, s.LastAction,
		s.HandType, s.HandDescription, s.WinAmount, winningCardsRaw, s.ID)
	return err
}

func (t *sqliteTx) InsertSeat(ctx context.Context, s *store.Seat) error {
	cardsRaw, err := store.EncodeCards(s.Cards)
	if err != nil {
		return err
	}
	winningCardsRaw, err := store.EncodeCards(s.WinningCards)
	if err != nil {
		return err
	}
	_, err = t.tx.ExecContext(ctx, `
INSERT INTO seats (id, table_id, player_id, seat_number, buy_in, starting_balance, current_bet, cards,
    status, last_action, hand_type, hand_description, win_amount, winning_cards)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`, s.ID, s.TableID, s.PlayerID, s.SeatNumber, s.BuyIn, s.StartingBalance, s.CurrentBet, cardsRaw,
		s.Status, s.LastAction, s.HandType, s.HandDescription, s.WinAmount, winningCardsRaw)
	return err
}

func (t *sqliteTx) DeleteSeat(ctx context.Context, seatID string) error {
	_, err := t.tx.ExecContext(ctx, `DELETE FROM seats WHERE id = ?`, seatID)
	return err
}

func (t *sqliteTx) ActiveGame(ctx context.Context, tableID string) (*store.Game, error) {
	row := t.tx.QueryRowContext(ctx, gameSelect+` WHERE table_id = ? AND is_completed = 0 ORDER BY created_at_ms DESC, rowid DESC LIMIT 1`, tableID)
	g, err := scanGame(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	return g, err
}

func (t *sqliteTx) LastGame(ctx context.Context, tableID string) (*store.Game, error) {
	row := t.tx.QueryRowContext(ctx, gameSelect+` WHERE table_id = ? ORDER BY created_at_ms DESC, rowid DESC LIMIT 1`, tableID)
	g, err := scanGame(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	return g, err
}

func (t *sqliteTx) GameByID(ctx context.Context, gameID string) (*store.Game, error) {
	row := t.tx.QueryRowContext(ctx, gameSelect+` WHERE id = ?`, gameID)
	g, err := scanGame(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	return g, err
}

const gameSelect = `
SELECT id, table_id, state, is_completed, dealer_button_seat_id, assigned_seat_id, community_cards,
       pot_total, bet_count, required_bet_count, effective_small_blind, effective_big_blind,
       turn_start_time_ms, side_pot_details, created_at_ms
FROM games`

func scanGame(r rowScanner) (*store.Game, error) {
	var g store.Game
	var communityRaw, sidePotsRaw string
	var isCompleted int
	var turnStartMs sql.NullInt64
	var createdAtMs int64
	if err := r.Scan(&g.ID, &g.TableID, &g.State, &isCompleted, &g.DealerButtonSeatID, &g.AssignedSeatID,
		&communityRaw, &g.PotTotal, &g.BetCount, &g.RequiredBetCount, &g.EffectiveSmallBlind,
		&g.EffectiveBigBlind, &turnStartMs, &sidePotsRaw, &createdAtMs); err != nil {
		return nil, err
	}
	g.IsCompleted = isCompleted != 0
	g.CreatedAt = time.UnixMilli(createdAtMs).UTC()
	if turnStartMs.Valid {
		t := time.UnixMilli(turnStartMs.Int64).UTC()
		g.TurnStartTime = &t
	}
	cards, err := store.DecodeCards(communityRaw)
	if err != nil {
		return nil, err
	}
	g.CommunityCards = cards
	pots, err := store.DecodeSidePots(sidePotsRaw)
	if err != nil {
		return nil, err
	}
	g.SidePotDetails = pots
	return &g, nil
}

func (t *sqliteTx) InsertGame(ctx context.Context, g *store.Game) error {
	communityRaw, err := store.EncodeCards(g.CommunityCards)
	if err != nil {
		return err
	}
	sidePotsRaw, err := store.EncodeSidePots(g.SidePotDetails)
	if err != nil {
		return err
	}
	_, err = t.tx.ExecContext(ctx, `
INSERT INTO games (id, table_id, state, is_completed, dealer_button_seat_id, assigned_seat_id,
    community_cards, pot_total, bet_count, required_bet_count, effective_small_blind,
    effective_big_blind, turn_start_time_ms, side_pot_details, created_at_ms)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`, g.ID, g.TableID, g.State, boolToInt(g.IsCompleted), g.DealerButtonSeatID, g.AssignedSeatID,
		communityRaw, g.PotTotal, g.BetCount, g.RequiredBetCount, g.EffectiveSmallBlind,
		g.EffectiveBigBlind, nullMs(g.TurnStartTime), sidePotsRaw, nowMs())
	return err
}

func (t *sqliteTx) UpdateGame(ctx context.Context, g *store.Game) error {
	communityRaw, err := store.EncodeCards(g.CommunityCards)
	if err != nil {
		return err
	}
	sidePotsRaw, err := store.EncodeSidePots(g.SidePotDetails)
	if err != nil {
		return err
	}
	_, err = t.tx.ExecContext(ctx, `
UPDATE games SET state=?, is_completed=?, dealer_button_seat_id=?, assigned_seat_id=?,
    community_cards=?, pot_total=?, bet_count=?, required_bet_count=?, turn_start_time_ms=?,
    side_pot_details=?
WHERE id=?
`, g.State, boolToInt(g.IsCompleted), g.DealerButtonSeatID, g.AssignedSeatID, communityRaw,
		g.PotTotal, g.BetCount, g.RequiredBetCount, nullMs(g.TurnStartTime), sidePotsRaw, g.ID)
	return err
}

func (t *sqliteTx) Table(ctx context.Context, tableID string) (*store.PokerTable, error) {
	row := t.tx.QueryRowContext(ctx, `
SELECT id, name, dealer_id, small_blind, big_blind, max_seats, step_seconds, started_at_ms, blind_mult, created_at_ms
FROM poker_tables WHERE id = ?
`, tableID)
	tbl, err := scanTable(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	return tbl, err
}

func scanTable(r rowScanner) (*store.PokerTable, error) {
	var tbl store.PokerTable
	var startedAtMs sql.NullInt64
	var createdAtMs int64
	if err := r.Scan(&tbl.ID, &tbl.Name, &tbl.DealerID, &tbl.SmallBlind, &tbl.BigBlind, &tbl.MaxSeats,
		&tbl.StepSeconds, &startedAtMs, &tbl.BlindMult, &createdAtMs); err != nil {
		return nil, err
	}
	tbl.CreatedAt = time.UnixMilli(createdAtMs).UTC()
	if startedAtMs.Valid {
		t := time.UnixMilli(startedAtMs.Int64).UTC()
		tbl.StartedAt = &t
	}
	return &tbl, nil
}

func (t *sqliteTx) InsertTable(ctx context.Context, tbl *store.PokerTable) error {
	_, err := t.tx.ExecContext(ctx, `
INSERT INTO poker_tables (id, name, dealer_id, small_blind, big_blind, max_seats, step_seconds, started_at_ms, blind_mult, created_at_ms)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`, tbl.ID, tbl.Name, tbl.DealerID, tbl.SmallBlind, tbl.BigBlind, tbl.MaxSeats, tbl.StepSeconds,
		nullMs(tbl.StartedAt), tbl.BlindMult, nowMs())
	return err
}

func (t *sqliteTx) UpdateTable(ctx context.Context, tbl *store.PokerTable) error {
	_, err := t.tx.ExecContext(ctx, `
UPDATE poker_tables SET name=?, small_blind=?, big_blind=?, max_seats=?, step_seconds=?, started_at_ms=?, blind_mult=?
WHERE id=?
`, tbl.Name, tbl.SmallBlind, tbl.BigBlind, tbl.MaxSeats, tbl.StepSeconds, nullMs(tbl.StartedAt), tbl.BlindMult, tbl.ID)
	return err
}

func (t *sqliteTx) User(ctx context.Context, userID string) (*store.User, error) {
	row := t.tx.QueryRowContext(ctx, `SELECT id, role, balance FROM users WHERE id = ?`, userID)
	var u store.User
	if err := row.Scan(&u.ID, &u.Role, &u.Balance); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}

// InsertUser also writes the minimal account satellite row so foreign keys
// resolve in a standalone deployment; real account issuance belongs to the
// auth collaborator.
func (t *sqliteTx) InsertUser(ctx context.Context, u *store.User) error {
	if _, err := t.tx.ExecContext(ctx, `
INSERT INTO accounts (id, username, created_at_ms) VALUES (?, ?, ?) ON CONFLICT (id) DO NOTHING
`, u.ID, u.ID, nowMs()); err != nil {
		return err
	}
	_, err := t.tx.ExecContext(ctx, `INSERT INTO users (id, role, balance) VALUES (?, ?, ?)`, u.ID, u.Role, u.Balance)
	return err
}

func (t *sqliteTx) UpdateUser(ctx context.Context, u *store.User) error {
	_, err := t.tx.ExecContext(ctx, `UPDATE users SET balance=? WHERE id=?`, u.Balance, u.ID)
	return err
}

func (t *sqliteTx) AppendEvent(ctx context.Context, e *store.GameEvent) (int64, error) {
	detailsRaw, err := store.EncodeDetails(e.Details)
	if err != nil {
		return 0, err
	}
	res, err := t.tx.ExecContext(ctx, `
INSERT INTO game_events (table_id, game_id, type, details, created_at_ms) VALUES (?, ?, ?, ?, ?)
`, e.TableID, e.GameID, e.Type, detailsRaw, nowMs())
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (t *sqliteTx) EventsSince(ctx context.Context, tableID string, gameID string, sinceID int64) ([]*store.GameEvent, error) {
	rows, err := t.tx.QueryContext(ctx, `
SELECT id, table_id, game_id, type, details, created_at_ms
FROM game_events
WHERE table_id = ? AND id > ? AND (game_id = ? OR game_id = '')
ORDER BY id ASC
`, tableID, sinceID, gameID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*store.GameEvent
	for rows.Next() {
		var e store.GameEvent
		var detailsRaw string
		var createdAtMs int64
		if err := rows.Scan(&e.ID, &e.TableID, &e.GameID, &e.Type, &detailsRaw, &createdAtMs); err != nil {
			return nil, err
		}
		e.CreatedAt = time.UnixMilli(createdAtMs).UTC()
		details, err := store.DecodeDetails(detailsRaw)
		if err != nil {
			return nil, err
		}
		e.Details = details
		out = append(out, &e)
	}
	return out, rows.Err()
}

func (t *sqliteTx) Device(ctx context.Context, serial string) (*store.PiDevice, error) {
	row := t.tx.QueryRowContext(ctx, `
SELECT serial, table_id, device_type, last_seen_at_ms, registered_at_ms FROM pi_devices WHERE serial = ?
`, serial)
	var d store.PiDevice
	var lastSeenMs sql.NullInt64
	var registeredAtMs int64
	if err := row.Scan(&d.Serial, &d.TableID, &d.DeviceType, &lastSeenMs, &registeredAtMs); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	d.RegisteredAt = time.UnixMilli(registeredAtMs).UTC()
	if lastSeenMs.Valid {
		d.LastSeenAt = time.UnixMilli(lastSeenMs.Int64).UTC()
	}
	return &d, nil
}

func (t *sqliteTx) UpsertDevice(ctx context.Context, d *store.PiDevice) error {
	_, err := t.tx.ExecContext(ctx, `
INSERT INTO pi_devices (serial, table_id, device_type, last_seen_at_ms, registered_at_ms)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT (serial) DO UPDATE SET table_id=excluded.table_id, device_type=excluded.device_type,
    last_seen_at_ms=excluded.last_seen_at_ms
`, d.Serial, d.TableID, d.DeviceType, nullMs(&d.LastSeenAt), nowMs())
	return err
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nowMs() int64 { return time.Now().UnixMilli() }

func nullMs(t *time.Time) sql.NullInt64 {
	if t == nil || t.IsZero() {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.UnixMilli(), Valid: true}
}
