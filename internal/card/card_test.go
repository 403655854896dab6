package card

import "testing"

func TestParseNormalizes(t *testing.T) {
	cases := []struct {
		in   string
		want Code
	}{
		{"As", "As"},
		{"as", "As"},
		{"AS", "As"},
		{"10h", "Th"},
		{"10H", "Th"},
		{"td", "Td"},
		{"2c", "2c"},
		{"Kd", "Kd"},
		{" Qs ", "Qs"},
		{"fd", Redacted},
	}
	for _, c := range cases {
		got, err := Parse(c.in)
		if err != nil {
			t.Fatalf("Parse(%q) err: %v", c.in, err)
		}
		if got != c.want {
			t.Fatalf("Parse(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestParseRejects(t *testing.T) {
	for _, in := range []string{"", "X", "1s", "Ax", "11h", "Tss", "0d"} {
		if _, err := Parse(in); err == nil {
			t.Fatalf("Parse(%q) should fail", in)
		}
	}
}

func TestRankValue(t *testing.T) {
	cases := map[Code]int{"2s": 2, "9h": 9, "Tc": 10, "Jd": 11, "Qs": 12, "Kh": 13, "Ac": 14}
	for code, want := range cases {
		if got := code.RankValue(); got != want {
			t.Fatalf("%s.RankValue() = %d, want %d", code, got, want)
		}
	}
}

func TestValid(t *testing.T) {
	if !Code("As").Valid() {
		t.Fatal("As should be valid")
	}
	for _, c := range []Code{Redacted, "A", "Ass", "1s", "Ax", ""} {
		if c.Valid() {
			t.Fatalf("%q should not be valid", c)
		}
	}
}

func TestUnique(t *testing.T) {
	if !Unique("As", "Ks", "Ah") {
		t.Fatal("distinct codes should be unique")
	}
	if Unique("As", "Ks", "As") {
		t.Fatal("repeated code should not be unique")
	}
	// redacted placeholders never collide with each other
	if !Unique(Redacted, Redacted, "As") {
		t.Fatal("redacted placeholders must be ignored")
	}
}

func TestParseBarcode(t *testing.T) {
	cases := []struct {
		in   string
		want Code
	}{
		{"1010", "As"},
		{"2020", "2h"},
		{"3090", "9c"},
		{"4100", "Td"},
		{"1110", "Js"},
		{"2120", "Qh"},
		{"3130", "Kc"},
		{"4050", "5d"},
	}
	for _, c := range cases {
		got, err := ParseBarcode(c.in)
		if err != nil {
			t.Fatalf("ParseBarcode(%q) err: %v", c.in, err)
		}
		if got != c.want {
			t.Fatalf("ParseBarcode(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestParseBarcodeRejects(t *testing.T) {
	for _, in := range []string{"", "101", "10100", "5010", "0010", "1140", "1015", "abcd", "1000"} {
		if _, err := ParseBarcode(in); err == nil {
			t.Fatalf("ParseBarcode(%q) should fail", in)
		}
	}
}
