package engine

import "testing"

func TestFreshnessOK(t *testing.T) {
	const maxAge = int64(300000)
	cases := []struct {
		name string
		now  int64
		ts   int64
		want bool
	}{
		{"exact now", 1000, 1000, true},
		{"within window", 1000, 1000 - maxAge, true},
		{"at boundary", maxAge, 0, true},
		{"stale beyond window", maxAge + 1, 0, false},
		{"future timestamp", 1000, 1001, false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := freshnessOK(c.now, c.ts, maxAge); got != c.want {
				t.Errorf("freshnessOK(%d, %d, %d) = %v, want %v", c.now, c.ts, maxAge, got, c.want)
			}
		})
	}
}
