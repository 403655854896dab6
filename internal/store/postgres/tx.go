package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"tableengine/internal/store"
)

type postgresTx struct {
	tx      *sql.Tx
	tableID string
}

func (t *postgresTx) Commit() error   { return t.tx.Commit() }
func (t *postgresTx) Rollback() error { return t.tx.Rollback() }

type rowScanner interface {
	Scan(dest ...any) error
}

func (t *postgresTx) Seats(ctx context.Context, tableID string) ([]*store.Seat, error) {
	rows, err := t.tx.QueryContext(ctx, `
SELECT id, table_id, player_id, seat_number, buy_in, starting_balance, current_bet, cards,
       status, last_action, hand_type, hand_description, win_amount, winning_cards
FROM seats WHERE table_id = $1 ORDER BY seat_number ASC
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

func (t *postgresTx) SeatByID(ctx context.Context, seatID string) (*store.Seat, error) {
	row := t.tx.QueryRowContext(ctx, `
SELECT id, table_id, player_id, seat_number, buy_in, starting_balance, current_bet, cards,
       status, last_action, hand_type, hand_description, win_amount, winning_cards
FROM seats WHERE id = $1
`, seatID)
	s, err := scanSeat(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	return s, err
}

func (t *postgresTx) UpdateSeat(ctx context.Context, s *store.Seat) error {
	cardsRaw, err := store.EncodeCards(s.Cards)
	if err != nil {
		return err
	}
	winningCardsRaw, err := store.EncodeCards(s.WinningCards)
	if err != nil {
		return err
	}
	_, err = t.tx.ExecContext(ctx, `
UPDATE seats SET buy_in=$1, starting_balance=$2, current_bet=$3, cards=$4, status=$5, last_action=$6,
    hand_type=$7, hand_description=$8, win_amount=$9, winning_cards=$10
WHERE id=$11
`, s.BuyIn, s.StartingBalance, s.CurrentBet, cardsRaw, s.Status, s.LastAction,
		s.HandType, s.HandDescription, s.WinAmount, winningCardsRaw, s.ID)
	return err
}

func (t *postgresTx) InsertSeat(ctx context.Context, s *store.Seat) error {
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
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
`, s.ID, s.TableID, s.PlayerID, s.SeatNumber, s.BuyIn, s.StartingBalance, s.CurrentBet, cardsRaw,
		s.Status, s.LastAction, s.HandType, s.HandDescription, s.WinAmount, winningCardsRaw)
	return err
}

func (t *postgresTx) DeleteSeat(ctx context.Context, seatID string) error {
	_, err := t.tx.ExecContext(ctx, `DELETE FROM seats WHERE id = $1`, seatID)
	return err
}

const gameSelect = `
SELECT id, table_id, state, is_completed, dealer_button_seat_id, assigned_seat_id, community_cards,
       pot_total, bet_count, required_bet_count, effective_small_blind, effective_big_blind,
       turn_start_time, side_pot_details, created_at
FROM games`

func (t *postgresTx) ActiveGame(ctx context.Context, tableID string) (*store.Game, error) {
	row := t.tx.QueryRowContext(ctx, gameSelect+` WHERE table_id = $1 AND is_completed = false ORDER BY created_at DESC LIMIT 1`, tableID)
	g, err := scanGame(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	return g, err
}

func (t *postgresTx) LastGame(ctx context.Context, tableID string) (*store.Game, error) {
	row := t.tx.QueryRowContext(ctx, gameSelect+` WHERE table_id = $1 ORDER BY created_at DESC LIMIT 1`, tableID)
	g, err := scanGame(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	return g, err
}

func (t *postgresTx) GameByID(ctx context.Context, gameID string) (*store.Game, error) {
	row := t.tx.QueryRowContext(ctx, gameSelect+` WHERE id = $1`, gameID)
	g, err := scanGame(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	return g, err
}

func scanGame(r rowScanner) (*store.Game, error) {
	var g store.Game
	var communityRaw, sidePotsRaw string
	var turnStart sql.NullTime
	if err := r.Scan(&g.ID, &g.TableID, &g.State, &g.IsCompleted, &g.DealerButtonSeatID, &g.AssignedSeatID,
		&communityRaw, &g.PotTotal, &g.BetCount, &g.RequiredBetCount, &g.EffectiveSmallBlind,
		&g.EffectiveBigBlind, &turnStart, &sidePotsRaw, &g.CreatedAt); err != nil {
		return nil, err
	}
	if turnStart.Valid {
		tm := turnStart.Time
		g.TurnStartTime = &tm
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

func (t *postgresTx) InsertGame(ctx context.Context, g *store.Game) error {
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
    effective_big_blind, turn_start_time, side_pot_details, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, now())
`, g.ID, g.TableID, g.State, g.IsCompleted, g.DealerButtonSeatID, g.AssignedSeatID,
		communityRaw, g.PotTotal, g.BetCount, g.RequiredBetCount, g.EffectiveSmallBlind,
		g.EffectiveBigBlind, nullTime(g.TurnStartTime), sidePotsRaw)
	return err
}

func (t *postgresTx) UpdateGame(ctx context.Context, g *store.Game) error {
	communityRaw, err := store.EncodeCards(g.CommunityCards)
	if err != nil {
		return err
	}
	sidePotsRaw, err := store.EncodeSidePots(g.SidePotDetails)
	if err != nil {
		return err
	}
	_, err = t.tx.ExecContext(ctx, `
UPDATE games SET state=$1, is_completed=$2, dealer_button_seat_id=$3, assigned_seat_id=$4,
    community_cards=$5, pot_total=$6, bet_count=$7, required_bet_count=$8, turn_start_time=$9,
    side_pot_details=$10
WHERE id=$11
`, g.State, g.IsCompleted, g.DealerButtonSeatID, g.AssignedSeatID, communityRaw,
		g.PotTotal, g.BetCount, g.RequiredBetCount, nullTime(g.TurnStartTime), sidePotsRaw, g.ID)
	return err
}

func (t *postgresTx) Table(ctx context.Context, tableID string) (*store.PokerTable, error) {
	row := t.tx.QueryRowContext(ctx, `
SELECT id, name, dealer_id, small_blind, big_blind, max_seats, step_seconds, started_at, blind_mult, created_at
FROM poker_tables WHERE id = $1
`, tableID)
	tbl, err := scanTable(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	return tbl, err
}

func scanTable(r rowScanner) (*store.PokerTable, error) {
	var tbl store.PokerTable
	var startedAt sql.NullTime
	if err := r.Scan(&tbl.ID, &tbl.Name, &tbl.DealerID, &tbl.SmallBlind, &tbl.BigBlind, &tbl.MaxSeats,
		&tbl.StepSeconds, &startedAt, &tbl.BlindMult, &tbl.CreatedAt); err != nil {
		return nil, err
	}
	if startedAt.Valid {
		tm := startedAt.Time
		tbl.StartedAt = &tm
	}
	return &tbl, nil
}

func (t *postgresTx) InsertTable(ctx context.Context, tbl *store.PokerTable) error {
	_, err := t.tx.ExecContext(ctx, `
INSERT INTO poker_tables (id, name, dealer_id, small_blind, big_blind, max_seats, step_seconds, started_at, blind_mult, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, now())
`, tbl.ID, tbl.Name, tbl.DealerID, tbl.SmallBlind, tbl.BigBlind, tbl.MaxSeats, tbl.StepSeconds,
		nullTime(tbl.StartedAt), tbl.BlindMult)
	return err
}

func (t *postgresTx) UpdateTable(ctx context.Context, tbl *store.PokerTable) error {
	_, err := t.tx.ExecContext(ctx, `
UPDATE poker_tables SET name=$1, small_blind=$2, big_blind=$3, max_seats=$4, step_seconds=$5, started_at=$6, blind_mult=$7
WHERE id=$8
`, tbl.Name, tbl.SmallBlind, tbl.BigBlind, tbl.MaxSeats, tbl.StepSeconds, nullTime(tbl.StartedAt), tbl.BlindMult, tbl.ID)
	return err
}

func (t *postgresTx) User(ctx context.Context, userID string) (*store.User, error) {
	row := t.tx.QueryRowContext(ctx, `SELECT id, role, balance FROM users WHERE id = $1`, userID)
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
func (t *postgresTx) InsertUser(ctx context.Context, u *store.User) error {
	if _, err := t.tx.ExecContext(ctx, `
INSERT INTO accounts (id, username) VALUES ($1, $2) ON CONFLICT (id) DO NOTHING
`, u.ID, u.ID); err != nil {
		return err
	}
	_, err := t.tx.ExecContext(ctx, `INSERT INTO users (id, role, balance) VALUES ($1, $2, $3)`, u.ID, u.Role, u.Balance)
	return err
}

func (t *postgresTx) UpdateUser(ctx context.Context, u *store.User) error {
	_, err := t.tx.ExecContext(ctx, `UPDATE users SET balance=$1 WHERE id=$2`, u.Balance, u.ID)
	return err
}

func (t *postgresTx) AppendEvent(ctx context.Context, e *store.GameEvent) (int64, error) {
	detailsRaw, err := store.EncodeDetails(e.Details)
	if err != nil {
		return 0, err
	}
	var id int64
	err = t.tx.QueryRowContext(ctx, `
INSERT INTO game_events (table_id, game_id, type, details, created_at) VALUES ($1, $2, $3, $4, now())
RETURNING id
`, e.TableID, e.GameID, e.Type, detailsRaw).Scan(&id)
	if err != nil {
		return 0, err
	}
	return id, nil
}

func (t *postgresTx) EventsSince(ctx context.Context, tableID string, gameID string, sinceID int64) ([]*store.GameEvent, error) {
	rows, err := t.tx.QueryContext(ctx, `
SELECT id, table_id, game_id, type, details, created_at
FROM game_events
WHERE table_id = $1 AND id > $2 AND (game_id = $3 OR game_id = '')
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
		if err := rows.Scan(&e.ID, &e.TableID, &e.GameID, &e.Type, &detailsRaw, &e.CreatedAt); err != nil {
			return nil, err
		}
		details, err := store.DecodeDetails(detailsRaw)
		if err != nil {
			return nil, err
		}
		e.Details = details
		out = append(out, &e)
	}
	return out, rows.Err()
}

func (t *postgresTx) Device(ctx context.Context, serial string) (*store.PiDevice, error) {
	row := t.tx.QueryRowContext(ctx, `
SELECT serial, table_id, device_type, last_seen_at, registered_at FROM pi_devices WHERE serial = $1
`, serial)
	var d store.PiDevice
	var lastSeen sql.NullTime
	if err := row.Scan(&d.Serial, &d.TableID, &d.DeviceType, &lastSeen, &d.RegisteredAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	if lastSeen.Valid {
		d.LastSeenAt = lastSeen.Time
	}
	return &d, nil
}

func (t *postgresTx) UpsertDevice(ctx context.Context, d *store.PiDevice) error {
	_, err := t.tx.ExecContext(ctx, `
INSERT INTO pi_devices (serial, table_id, device_type, last_seen_at, registered_at)
VALUES ($1, $2, $3, $4, now())
ON CONFLICT (serial) DO UPDATE SET table_id=excluded.table_id, device_type=excluded.device_type,
    last_seen_at=excluded.last_seen_at
`, d.Serial, d.TableID, d.DeviceType, nullTime(&d.LastSeenAt))
	return err
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil || t.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
