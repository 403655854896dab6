package evaluator

import (
	"testing"

	"tableengine/internal/card"
)

func cards(codes ...string) []card.Code {
	out := make([]card.Code, len(codes))
	for i, c := range codes {
		out[i] = card.MustParse(c)
	}
	return out
}

func solve(t *testing.T, codes ...string) Hand {
	t.Helper()
	h, err := Solve(cards(codes...))
	if err != nil {
		t.Fatalf("Solve(%v) err: %v", codes, err)
	}
	return h
}

func TestCategories(t *testing.T) {
	cases := []struct {
		name  string
		cards []string
		want  Category
		descr string
	}{
		{"high card", []string{"As", "Kh", "9c", "5d", "2s"}, HighCard, "High Card"},
		{"one pair", []string{"As", "Ah", "9c", "5d", "2s"}, OnePair, "One Pair"},
		{"two pair", []string{"As", "Ah", "9c", "9d", "2s"}, TwoPair, "Two Pair"},
		{"trips", []string{"As", "Ah", "Ac", "9d", "2s"}, ThreeOfKind, "Three of a Kind"},
		{"straight", []string{"9s", "8h", "7c", "6d", "5s"}, Straight, "Straight"},
		{"wheel", []string{"As", "2h", "3c", "4d", "5s"}, Straight, "Straight"},
		{"flush", []string{"As", "Js", "9s", "5s", "2s"}, Flush, "Flush"},
		{"full house", []string{"As", "Ah", "Ac", "9d", "9s"}, FullHouse, "Full House"},
		{"quads", []string{"As", "Ah", "Ac", "Ad", "2s"}, FourOfKind, "Four of a Kind"},
		{"straight flush", []string{"9s", "8s", "7s", "6s", "5s"}, StraightFlush, "Straight Flush"},
		{"royal flush", []string{"As", "Ks", "Qs", "Js", "Ts"}, StraightFlush, "Royal Flush"},
	}
	for _, c := range cases {
		h := solve(t, c.cards...)
		if h.Category != c.want {
			t.Fatalf("%s: category = %v, want %v", c.name, h.Category, c.want)
		}
		if h.Descr != c.descr {
			t.Fatalf("%s: descr = %q, want %q", c.name, h.Descr, c.descr)
		}
		if len(h.BestFive) != 5 {
			t.Fatalf("%s: BestFive has %d cards", c.name, len(h.BestFive))
		}
	}
}

func TestBestOfSeven(t *testing.T) {
	// 7 张里最优是方块同花，而不是对子
	h := solve(t, "Ad", "Kd", "9d", "5d", "2d", "As", "Ks")
	if h.Category != Flush {
		t.Fatalf("category = %v, want Flush", h.Category)
	}
	for _, c := range h.BestFive {
		if c.Suit() != 'd' {
			t.Fatalf("BestFive contains off-suit card %s", c)
		}
	}
}

func TestWheelRanksBelowSixHighStraight(t *testing.T) {
	wheel := solve(t, "As", "2h", "3c", "4d", "5s")
	sixHigh := solve(t, "2h", "3c", "4d", "5s", "6h")
	if wheel.Rank >= sixHigh.Rank {
		t.Fatalf("wheel (%d) must rank below 6-high straight (%d)", wheel.Rank, sixHigh.Rank)
	}
}

func TestWheelBestFiveContainsAce(t *testing.T) {
	h := solve(t, "As", "2h", "3c", "4d", "5s", "Kh", "Qd")
	found := false
	for _, c := range h.BestFive {
		if c == card.MustParse("As") {
			found = true
		}
	}
	if !found {
		t.Fatalf("wheel BestFive %v must include the ace", h.BestFive)
	}
}

func TestKickersBreakTies(t *testing.T) {
	aceKicker := solve(t, "Ks", "Kh", "Ac", "5d", "2s")
	queenKicker := solve(t, "Kd", "Kc", "Qc", "5h", "2h")
	if aceKicker.Rank <= queenKicker.Rank {
		t.Fatal("KK with ace kicker must beat KK with queen kicker")
	}
}

func TestTwoPairOrdering(t *testing.T) {
	acesUp := solve(t, "As", "Ah", "2c", "2d", "9s")
	kingsUp := solve(t, "Ks", "Kh", "Qc", "Qd", "9h")
	if acesUp.Rank <= kingsUp.Rank {
		t.Fatal("aces up must beat kings up")
	}
}

func TestWinnersTie(t *testing.T) {
	// 同板同牌力：必须全部并列
	board := []string{"As", "Kd", "Qh", "Jc", "Ts"}
	h1 := solve(t, append([]string{"2h", "3d"}, board...)...)
	h2 := solve(t, append([]string{"4c", "5s"}, board...)...)
	h3 := solve(t, append([]string{"Ah", "2d"}, board...)...)

	got := Winners([]Hand{h1, h2, h3})
	if len(got) != 3 {
		t.Fatalf("winners = %v, want all three tied on the board straight", got)
	}
}

func TestWinnersSingle(t *testing.T) {
	board := []string{"9s", "5d", "Qh", "Jc", "2s"}
	pair := solve(t, append([]string{"Ah", "Ad"}, board...)...)
	trips := solve(t, append([]string{"9h", "9d"}, board...)...)
	got := Winners([]Hand{pair, trips})
	if len(got) != 1 || got[0] != 1 {
		t.Fatalf("winners = %v, want [1] (trip nines beat aces)", got)
	}
}

func TestSolveRejectsBadInput(t *testing.T) {
	if _, err := Solve(cards("As", "Kh")); err == nil {
		t.Fatal("fewer than 5 cards must fail")
	}
	if _, err := Solve(cards("As", "Kh", "9c", "5d", "2s", "3s", "4s", "6s")); err == nil {
		t.Fatal("more than 7 cards must fail")
	}
	if _, err := Solve([]card.Code{"As", "Kh", "9c", "5d", "XX"}); err == nil {
		t.Fatal("invalid card must fail")
	}
}
