package card

import "fmt"

// ErrInvalidBarcode is returned by ParseBarcode for any value outside the
// fixed scanner grammar.
type ErrInvalidBarcode struct{ Raw string }

func (e ErrInvalidBarcode) Error() string {
	return fmt.Sprintf("card: invalid barcode %q", e.Raw)
}

var suitByDigit = map[byte]byte{
	'1': 's',
	'2': 'h',
	'3': 'c',
	'4': 'd',
}

var rankByCode = map[string]byte{
	"010": 'A',
	"020": '2',
	"030": '3',
	"040": '4',
	"050": '5',
	"060": '6',
	"070": '7',
	"080": '8',
	"090": '9',
	"100": 'T',
	"110": 'J',
	"120": 'Q',
	"130": 'K',
}

// ParseBarcode decodes a scanner barcode into a card Code: the first
// character selects the suit, the remaining three select the rank. Any
// other value is ErrInvalidBarcode.
func ParseBarcode(raw string) (Code, error) {
	if len(raw) != 4 {
		return "", ErrInvalidBarcode{Raw: raw}
	}
	suit, ok := suitByDigit[raw[0]]
	if !ok {
		return "", ErrInvalidBarcode{Raw: raw}
	}
	rank, ok := rankByCode[raw[1:]]
	if !ok {
		return "", ErrInvalidBarcode{Raw: raw}
	}
	return Code(string(rank) + string(suit)), nil
}
