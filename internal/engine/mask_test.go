package engine

import "testing"

func TestValidMask(t *testing.T) {
	cases := []struct {
		mask int64
		want bool
	}{
		{0b1001, true},
		{0b10101, true},
		{0, true},
		{0b0011, false},
		{0b0110, false},
		{-1, false},
		{5, true},
		{6, false},
	}
	for _, c := range cases {
		if got := validMask(c.mask); got != c.want {
			t.Errorf("validMask(%b) = %v, want %v", c.mask, got, c.want)
		}
	}
}

func TestValidMaskMatchesAlgebraicDefinition(t *testing.T) {
	for m := int64(0); m < 4096; m++ {
		want := m&(m>>1) == 0
		if got := validMask(m); got != want {
			t.Fatalf("validMask(%d) = %v, want %v", m, got, want)
		}
	}
}
