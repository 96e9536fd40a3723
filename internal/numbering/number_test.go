package numbering

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestFormat(t *testing.T) {
	assert.Equal(t, "BUR-000001", Format("BUR", 1))
	assert.Equal(t, "MAD-000042", Format("MAD", 42))
	assert.Equal(t, "BRL-999999", Format("BRL", MaxNumber))
}

func TestParse(t *testing.T) {
	tests := []struct {
		in     string
		prefix string
		n      int
		ok     bool
	}{
		{"BUR-000001", "BUR", 1, true},
		{"MAD-123456", "MAD", 123456, true},
		{"BUR-12", "", 0, false},
		{"BUR-ABCDEF", "", 0, false},
		{"bur-000001", "", 0, false},
		{"BURN-000001", "", 0, false},
		{"BUR-0000001", "", 0, false},
		{"", "", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			prefix, n, ok := Parse(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.prefix, prefix)
			assert.Equal(t, tt.n, n)
			assert.Equal(t, tt.ok, IsValid(tt.in))
		})
	}
}

func TestSmallestUnused(t *testing.T) {
	assert.Equal(t, 1, SmallestUnused(nil))
	assert.Equal(t, 4, SmallestUnused([]int{1, 2, 3}))
	assert.Equal(t, 2, SmallestUnused([]int{3, 1, 4}))
	assert.Equal(t, 1, SmallestUnused([]int{2, 3}))
	assert.Equal(t, 3, SmallestUnused([]int{1, 1, 2, 2}))
}

func TestNextFree(t *testing.T) {
	tests := []struct {
		name      string
		persisted []string
		reserved  []string
		want      string
	}{
		{name: "empty namespace", want: "BUR-000001"},
		{name: "contiguous", persisted: []string{"BUR-000001", "BUR-000002"}, want: "BUR-000003"},
		{name: "fills gap", persisted: []string{"BUR-000002", "BUR-000003"}, want: "BUR-000001"},
		{name: "reserved count as taken", persisted: []string{"BUR-000001"}, reserved: []string{"BUR-000002"}, want: "BUR-000003"},
		{name: "other prefixes ignored", persisted: []string{"MAD-000001", "BRL-000001"}, want: "BUR-000001"},
		{
			name:      "malformed values ignored",
			persisted: []string{"BUR-12", "BUR-ABCDEF", "BUR-+00001", "BUR-000001", "garbage", ""},
			want:      "BUR-000002",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NextFree("BUR", tt.persisted, tt.reserved)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNextFree_Exhausted(t *testing.T) {
	persisted := make([]string, 0, MaxNumber)
	for i := 1; i <= MaxNumber; i++ {
		persisted = append(persisted, Format("BUR", i))
	}

	_, err := NextFree("BUR", persisted, nil)
	assert.ErrorIs(t, err, ErrNamespaceExhausted)
}

// Allocating N times without deletions yields 1..N in order.
func TestNextFree_SequentialProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(0, 300).Draw(t, "n")

		var persisted []string
		for i := 1; i <= n; i++ {
			got, err := NextFree("BUR", persisted, nil)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != Format("BUR", i) {
				t.Fatalf("allocation %d returned %s", i, got)
			}
			persisted = append(persisted, got)
		}
	})
}

// Deleting any suffix k makes k the next allocation when it is the smallest gap.
func TestNextFree_GapFillingProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		used := rapid.SliceOfNDistinct(rapid.IntRange(1, 2000), 0, 200, rapid.ID[int]).Draw(t, "used")
		junk := rapid.SliceOfN(rapid.StringMatching(`BUR-[0-9A-Z]{0,8}`), 0, 20).Draw(t, "junk")

		persisted := make([]string, 0, len(used)+len(junk))
		for _, n := range used {
			persisted = append(persisted, Format("BUR", n))
		}
		for _, j := range junk {
			if !IsValid(j) {
				persisted = append(persisted, j)
			}
		}

		got, err := NextFree("BUR", persisted, nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		sort.Ints(used)
		want := 1
		for _, n := range used {
			if n == want {
				want++
			}
		}
		if got != Format("BUR", want) {
			t.Fatalf("got %s, want %s (used=%v)", got, Format("BUR", want), used)
		}
	})
}
