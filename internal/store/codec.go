package store

import (
	"encoding/json"

	"tableengine/internal/card"
)

// EncodeCards/DecodeCards give both backend drivers a single JSON-array
// wire format for the Seat.Cards / Game.CommunityCards / Seat.WinningCards
// columns.
func EncodeCards(cards []card.Code) (string, error) {
	raw, err := json.Marshal(cards)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

func DecodeCards(raw string) ([]card.Code, error) {
	if raw == "" {
		return nil, nil
	}
	var cards []card.Code
	if err := json.Unmarshal([]byte(raw), &cards); err != nil {
		return nil, err
	}
	return cards, nil
}

func EncodeDetails(details map[string]any) (string, error) {
	if details == nil {
		return "{}", nil
	}
	raw, err := json.Marshal(details)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

func DecodeDetails(raw string) (map[string]any, error) {
	if raw == "" {
		return nil, nil
	}
	var details map[string]any
	if err := json.Unmarshal([]byte(raw), &details); err != nil {
		return nil, err
	}
	return details, nil
}

func EncodeSidePots(pots []SidePotDetail) (string, error) {
	raw, err := json.Marshal(pots)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

func DecodeSidePots(raw string) ([]SidePotDetail, error) {
	if raw == "" {
		return nil, nil
	}
	var pots []SidePotDetail
	if err := json.Unmarshal([]byte(raw), &pots); err != nil {
		return nil, err
	}
	return pots, nil
}
