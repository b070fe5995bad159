package planner

import "testing"

func TestIsEmptyToken(t *testing.T) {
	cases := []struct {
		value string
		want  bool
	}{
		{"", true},
		{"   ", true},
		{"nan", true},
		{"NaN", true},
		{" None ", true},
		{"N/A", true},
		{"n/a", true},
		{"0", false},
		{"FN1", false},
		{"null-and-void", false},
	}
	for _, tc := range cases {
		if got := IsEmptyToken(tc.value); got != tc.want {
			t.Errorf("IsEmptyToken(%q) = %v, want %v", tc.value, got, tc.want)
		}
	}
}

func TestNormalizeWeight(t *testing.T) {
	cases := []struct {
		raw  string
		want string
	}{
		{"0.35kg", "0.35"},
		{"0.35", "0.35"},
		{" 0.35 KG ", "0.35"},
		{"0.35 kg", "0.35"},
		{"1", "1"},
		{"kg", ""},
		{"", ""},
		{"500g", "500g"},
	}
	for _, tc := range cases {
		if got := NormalizeWeight(tc.raw); got != tc.want {
			t.Errorf("NormalizeWeight(%q) = %q, want %q", tc.raw, got, tc.want)
		}
	}
}

func TestNormalizeWeightEquatesSuffixedAndBareTokens(t *testing.T) {
	if NormalizeWeight("0.35kg") != NormalizeWeight("0.35") {
		t.Fatalf("expected suffixed and bare weight tokens to normalize equal")
	}
}

func TestParseQuantity(t *testing.T) {
	cases := []struct {
		raw  string
		want int
	}{
		{"4", 4},
		{" 12 ", 12},
		{"3.0", 3},
		{"abc", 1},
		{"", 1},
		{"0", 1},
		{"-2", 1},
	}
	for _, tc := range cases {
		if got := ParseQuantity(tc.raw); got != tc.want {
			t.Errorf("ParseQuantity(%q) = %d, want %d", tc.raw, got, tc.want)
		}
	}
}
