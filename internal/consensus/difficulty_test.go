package consensus

import (
	"errors"
	"testing"
)

func TestDifficultyForMiners(t *testing.T) {
	tests := []struct {
		active int
		want   int
	}{
		{0, 4},
		{1, 4},
		{5, 4},
		{6, 5},
		{10, 5},
		{11, 6}, // 6 + floor(log2(1))
		{12, 7}, // 6 + floor(log2(2))
		{13, 7},
		{14, 8}, // 6 + floor(log2(4))
		{100, 8},
		{1 << 20, 8},
	}
	for _, tt := range tests {
		if got := DifficultyForMiners(tt.active); got != tt.want {
			t.Errorf("DifficultyForMiners(%d) = %d, want %d", tt.active, got, tt.want)
		}
	}
}

func TestMinerCountPolicy_Bounds(t *testing.T) {
	p := MinerCountPolicy{}
	for n := 0; n < 5000; n++ {
		d := p.MinersChanged(1, n)
		if d < p.Floor() || d > p.Ceiling() {
			t.Fatalf("MinersChanged(%d) = %d, outside [%d, %d]", n, d, p.Floor(), p.Ceiling())
		}
		if r := p.Retarget(1, n, nil); r != d {
			t.Fatalf("Retarget(%d) = %d, want %d", n, r, d)
		}
	}
}

// cadence builds n timestamps spaced by step milliseconds.
func cadence(n int, step int64) []int64 {
	ts := make([]int64, n)
	for i := range ts {
		ts[i] = 1_000_000 + int64(i)*step
	}
	return ts
}

// offsetLast shifts the newest timestamp by d milliseconds.
func offsetLast(ts []int64, d int64) []int64 {
	ts[len(ts)-1] += d
	return ts
}

func TestCadencePolicy_Retarget(t *testing.T) {
	p := CadencePolicy{}

	tests := []struct {
		name    string
		current int
		ts      []int64
		want    int
	}{
		{"too fast", 4, cadence(10, 30_000), 5},
		{"just under band", 4, cadence(10, 54_999), 5},
		{"lower edge of band", 4, cadence(10, 55_000), 4},
		{"on target", 4, cadence(10, 60_000), 4},
		{"upper edge of band", 4, cadence(10, 65_000), 4},
		{"just over band", 4, offsetLast(cadence(10, 65_000), 8), 3},
		{"just under lower edge", 4, offsetLast(cadence(10, 55_000), -1), 5},
		{"too slow", 4, cadence(10, 90_000), 3},
		{"floor", 1, cadence(10, 90_000), 1},
		{"single timestamp", 4, cadence(1, 0), 4},
		{"no timestamps", 4, nil, 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := p.Retarget(tt.current, 0, tt.ts); got != tt.want {
				t.Fatalf("Retarget = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestCadencePolicy_IgnoresMiners(t *testing.T) {
	p := CadencePolicy{}
	if got := p.MinersChanged(7, 100); got != 7 {
		t.Fatalf("MinersChanged = %d, want 7", got)
	}
	if got := p.MinersChanged(0, 1); got != 1 {
		t.Fatalf("MinersChanged(0) = %d, want clamp to 1", got)
	}
}

func TestCadencePolicy_CustomTarget(t *testing.T) {
	p := CadencePolicy{Target: 1_000, Tolerance: 100}
	if got := p.Retarget(2, 0, cadence(10, 500)); got != 3 {
		t.Fatalf("Retarget fast = %d, want 3", got)
	}
	if got := p.Retarget(2, 0, cadence(10, 2_000)); got != 1 {
		t.Fatalf("Retarget slow = %d, want 1", got)
	}
}

func TestShouldRetarget(t *testing.T) {
	tests := []struct {
		count uint64
		want  bool
	}{
		{0, false},
		{1, false},
		{9, false},
		{10, true},
		{11, false},
		{20, true},
		{100, true},
	}
	for _, tt := range tests {
		if got := ShouldRetarget(tt.count); got != tt.want {
			t.Errorf("ShouldRetarget(%d) = %v, want %v", tt.count, got, tt.want)
		}
	}
}

func TestClamp(t *testing.T) {
	if got := Clamp(MinerCountPolicy{}, 1); got != 4 {
		t.Fatalf("Clamp(miners, 1) = %d, want 4", got)
	}
	if got := Clamp(MinerCountPolicy{}, 20); got != 8 {
		t.Fatalf("Clamp(miners, 20) = %d, want 8", got)
	}
	if got := Clamp(CadencePolicy{}, -3); got != 1 {
		t.Fatalf("Clamp(cadence, -3) = %d, want 1", got)
	}
	if got := Clamp(CadencePolicy{}, 40); got != 40 {
		t.Fatalf("Clamp(cadence, 40) = %d, want 40", got)
	}
}

func TestParsePolicy(t *testing.T) {
	for name, want := range map[string]string{"": PolicyMiners, "miners": PolicyMiners, "cadence": PolicyCadence} {
		p, err := ParsePolicy(name)
		if err != nil {
			t.Fatalf("ParsePolicy(%q): %v", name, err)
		}
		if p.Name() != want {
			t.Fatalf("ParsePolicy(%q).Name() = %q, want %q", name, p.Name(), want)
		}
	}
	if _, err := ParsePolicy("hybrid"); !errors.Is(err, ErrUnknownPolicy) {
		t.Fatalf("ParsePolicy(hybrid) = %v, want ErrUnknownPolicy", err)
	}
}
