package usecase

import (
	"math"
	"testing"
)

func TestSplitAlphaNumLower(t *testing.T) {
	got := splitAlphaNumLower("What's COVID-19? Грипп, fever_high")
	want := []string{"what", "s", "covid", "19", "грипп", "fever_high"}
	if len(got) != len(want) {
		t.Fatalf("splitAlphaNumLower() = %q, want %q", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("token %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestTokenOverlapIsRelativeToQuery(t *testing.T) {
	query := toTokenSet("joint pain fatigue fever")
	chunk := toTokenSet("Condition X causes joint pain and fatigue.")
	if got := tokenOverlap(query, chunk); got != 0.75 {
		t.Fatalf("tokenOverlap() = %v, want 0.75", got)
	}
	if got := tokenOverlap(toTokenSet(""), chunk); got != 0 {
		t.Fatalf("empty query overlap = %v, want 0", got)
	}
}

func TestCosine(t *testing.T) {
	cases := []struct {
		name string
		a, b []float32
		want float64
	}{
		{name: "identical", a: []float32{1, 2}, b: []float32{1, 2}, want: 1},
		{name: "orthogonal", a: []float32{1, 0}, b: []float32{0, 1}, want: 0},
		{name: "opposite", a: []float32{1, 0}, b: []float32{-1, 0}, want: -1},
		{name: "zero vector", a: []float32{0, 0}, b: []float32{1, 1}, want: 0},
		{name: "length mismatch", a: []float32{1}, b: []float32{1, 1}, want: 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := cosine(tc.a, tc.b); math.Abs(got-tc.want) > 1e-9 {
				t.Fatalf("cosine() = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestClampAndRound(t *testing.T) {
	if clamp01(math.NaN()) != 0 || clamp01(-0.2) != 0 || clamp01(1.7) != 1 || clamp01(0.4) != 0.4 {
		t.Fatalf("clamp01 out of range")
	}
	if round2(0.456) != 0.46 || round2(0.454) != 0.45 {
		t.Fatalf("round2 mismatch: %v %v", round2(0.456), round2(0.454))
	}
}
