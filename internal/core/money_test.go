package core

import (
	"encoding/json"
	"testing"
)

func TestParseDecimalToCents(t *testing.T) {
	cases := []struct {
		in  string
		out int64
		ok  bool
	}{
		{"1", 100, true},
		{"1.0", 100, true},
		{"1.23", 123, true},
		{"1,23", 123, true},
		{"0.01", 1, true},
		{"1.005", 101, true}, // half-up rounding
		{" 2.50 ", 250, true},
		{".50", 50, true},
		{"-1", 0, false},
		{"+1", 0, false},
		{"0", 0, false},
		{"0.00", 0, false},
		{"abc", 0, false},
		{"1.2.3", 0, false},
		{"", 0, false},
	}
	for _, tc := range cases {
		got, err := ParseDecimalToCents(tc.in)
		if tc.ok {
			if err != nil || got != tc.out {
				t.Fatalf("%q expected %d, got %d (err=%v)", tc.in, tc.out, got, err)
			}
		} else {
			if err == nil {
				t.Fatalf("%q expected error", tc.in)
			}
		}
	}
}

func TestMoneyString(t *testing.T) {
	cases := []struct {
		cents int64
		want  string
	}{
		{0, "0.00"},
		{1, "0.01"},
		{1234, "12.34"},
		{-5, "-0.05"},
		{-1234, "-12.34"},
	}
	for _, tc := range cases {
		if got := (Money{Cents: tc.cents}).String(); got != tc.want {
			t.Fatalf("%d cents: expected %q, got %q", tc.cents, tc.want, got)
		}
	}
}

func TestMoneyJSON(t *testing.T) {
	out, err := json.Marshal(Money{Cents: 1234})
	if err != nil {
		t.Fatal(err)
	}
	if string(out) != "12.34" {
		t.Fatalf("expected 12.34, got %s", out)
	}

	var m Money
	if err := json.Unmarshal([]byte(`12.34`), &m); err != nil || m.Cents != 1234 {
		t.Fatalf("number: expected 1234 cents, got %d (err=%v)", m.Cents, err)
	}
	if err := json.Unmarshal([]byte(`"12,34"`), &m); err != nil || m.Cents != 1234 {
		t.Fatalf("string: expected 1234 cents, got %d (err=%v)", m.Cents, err)
	}
	if err := json.Unmarshal([]byte(`-1`), &m); err == nil {
		t.Fatal("negative amount should not unmarshal")
	}
}
