// Package eventlog validates GameEvent detail payloads against their
// per-type shape and answers the coordinator's EventsDelta query. Events
// are inserted inside the same Tx as the state change they describe, so
// log and state commit atomically.
package eventlog

import (
	"context"
	"fmt"

	"tableengine/internal/store"
)

// Validate checks a GameEvent's details against its type's required
// shape. internal/engine always builds details that satisfy this, so a
// validation failure here means an engine bug, not a caller error.
func Validate(eventType store.EventType, details map[string]any) error {
	switch eventType {
	case store.EventStartGame:
		return requireKeys(details, "dealerButtonSeatId")
	case store.EventRaise:
		if err := requireKeys(details, "seatId", "total"); err != nil {
			return err
		}
		return requirePositive(details, "total")
	case store.EventCall, store.EventCheck:
		return requireKeys(details, "seatId", "total")
	case store.EventFold:
		return requireKeys(details, "seatId")
	case store.EventFlop, store.EventTurn, store.EventRiver:
		return requireKeys(details, "communityAll")
	case store.EventEndGame:
		return requireKeys(details, "winners")
	default:
		return fmt.Errorf("eventlog: unknown event type %q", eventType)
	}
}

func requireKeys(details map[string]any, keys ...string) error {
	for _, k := range keys {
		if _, ok := details[k]; !ok {
			return fmt.Errorf("eventlog: missing required field %q", k)
		}
	}
	return nil
}

func requirePositive(details map[string]any, key string) error {
	v, ok := details[key]
	if !ok {
		return nil
	}
	n, ok := toInt64(v)
	if !ok || n <= 0 {
		return fmt.Errorf("eventlog: field %q must be > 0, got %v", key, v)
	}
	return nil
}

func toInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case int:
		return int64(n), true
	case float64:
		return int64(n), true
	default:
		return 0, false
	}
}

// EventsDelta returns every event with id > sinceID for tableID's
// currently active game, plus table-level events (gameId == ""), ordered
// by id ascending. If no game is active, only table-level events are
// returned.
func EventsDelta(ctx context.Context, tx store.Tx, tableID string, sinceID int64) ([]*store.GameEvent, error) {
	gameID := ""
	if g, err := tx.ActiveGame(ctx, tableID); err == nil {
		gameID = g.ID
	} else if err != store.ErrNotFound {
		return nil, err
	}
	return tx.EventsSince(ctx, tableID, gameID, sinceID)
}
