package keycodec

import (
	"net/url"
	"slices"
	"sort"
	"strings"
	"testing"
	"time"
)

func TestOrderPart_FixedWidth(t *testing.T) {
	t.Parallel()

	instants := []time.Time{
		time.Unix(0, 0),
		time.Unix(0, 1),
		time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC),
		time.Date(2262, 1, 1, 0, 0, 0, 0, time.UTC),
	}

	for _, instant := range instants {
		for _, ascending := range []bool{true, false} {
			got := OrderPart(instant, ascending)
			if len(got) != tickWidth {
				t.Errorf("expected width %d for %v (ascending=%v), got %d (%s)", tickWidth, instant, ascending, len(got), got)
			}
		}
	}
}

func TestOrderPart_AscendingPreservesOrder(t *testing.T) {
	t.Parallel()

	base := time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)
	earlier := OrderPart(base, true)
	later := OrderPart(base.Add(time.Nanosecond), true)
	muchLater := OrderPart(base.Add(10*365*24*time.Hour), true)

	if !(earlier < later && later < muchLater) {
		t.Errorf("expected ascending order, got %s, %s, %s", earlier, later, muchLater)
	}
}

func TestOrderPart_DescendingInvertsOrder(t *testing.T) {
	t.Parallel()

	base := time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)
	earlier := OrderPart(base, false)
	later := OrderPart(base.Add(time.Millisecond), false)

	if !(later < earlier) {
		t.Errorf("expected later instant to sort first, got %s >= %s", later, earlier)
	}
}

func TestOrderPart_ClampsBeforeEpoch(t *testing.T) {
	t.Parallel()

	got := OrderPart(time.Date(1900, 1, 1, 0, 0, 0, 0, time.UTC), true)
	if got != strings.Repeat("0", tickWidth) {
		t.Errorf("expected all zeros, got %s", got)
	}

	got = OrderPart(time.Date(1900, 1, 1, 0, 0, 0, 0, time.UTC), false)
	if got != "9223372036854775807" {
		t.Errorf("expected MaxTicks, got %s", got)
	}
}

func TestOrderPart_SortsLikeTime(t *testing.T) {
	t.Parallel()

	base := time.Date(2001, 9, 9, 1, 46, 40, 0, time.UTC)
	offsets := []time.Duration{5 * time.Hour, time.Second, 0, 30 * 24 * time.Hour, time.Microsecond}

	instants := make([]time.Time, 0, len(offsets))
	for _, o := range offsets {
		instants = append(instants, base.Add(o))
	}

	sort.Slice(instants, func(i, j int) bool { return instants[i].Before(instants[j]) })

	for i := 1; i < len(instants); i++ {
		if OrderPart(instants[i-1], true) >= OrderPart(instants[i], true) {
			t.Errorf("ascending fragments out of order at %d", i)
		}
		if OrderPart(instants[i-1], false) <= OrderPart(instants[i], false) {
			t.Errorf("descending fragments out of order at %d", i)
		}
	}
}

func TestVersionPart(t *testing.T) {
	t.Parallel()

	tests := []struct {
		index int
		want  string
	}{
		{index: 0, want: "0000000000"},
		{index: 1, want: "0000000001"},
		{index: 42, want: "0000000042"},
		{index: -3, want: "0000000000"},
	}

	for _, tt := range tests {
		if got := VersionPart(tt.index); got != tt.want {
			t.Errorf("VersionPart(%d) = %s, want %s", tt.index, got, tt.want)
		}
	}

	if VersionPart(9) >= VersionPart(10) {
		t.Error("expected version 9 to sort before version 10")
	}

	parsed, err := ParseVersionPart(VersionPart(123))
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if parsed != 123 {
		t.Errorf("expected 123, got %d", parsed)
	}

	if _, err := ParseVersionPart("abc"); err == nil {
		t.Error("expected error for non-numeric version part")
	}
}

func TestSubstitutedAlphanumeric(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "empty", in: "", want: ""},
		{name: "digits", in: "09", want: "9009"},
		{name: "letters", in: "az", want: "zaaz"},
		{name: "uppercase keeps original", in: "Ab", want: "zAyb"},
		{name: "non alphanumeric kept literally", in: "a/b.1", want: "za/yb.81"},
		{name: "percent encoded path", in: "docs%2Freadme.txt", want: "wdloxchs%72uFirvezawdnmve.gtcxgt"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := SubstitutedAlphanumeric(tt.in); got != tt.want {
				t.Errorf("SubstitutedAlphanumeric(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestSubstitutedAlphanumeric_DistinctInputsStayDistinct(t *testing.T) {
	t.Parallel()

	inputs := []string{"a", "A", "ab", "a_b", "b", "readme.txt", "README.txt"}
	seen := map[string]string{}

	for _, in := range inputs {
		out := SubstitutedAlphanumeric(in)
		if prev, ok := seen[out]; ok {
			t.Errorf("inputs %q and %q collide on %q", prev, in, out)
		}
		seen[out] = in
	}
}

func TestInvertedAlphanumeric(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{in: "", want: ""},
		{in: "0z", want: "z0"},
		{in: "9a", want: "qp"},
		{in: "A-1", want: "p-y"},
	}

	for _, tt := range tests {
		if got := InvertedAlphanumeric(tt.in); got != tt.want {
			t.Errorf("InvertedAlphanumeric(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestInvertedAlphanumeric_ReversesUUIDOrder(t *testing.T) {
	t.Parallel()

	ids := []string{
		"0b6c8d6e-7d1c-4f5e-9a3e-1a2b3c4d5e6f",
		"a0000000-0000-4000-8000-000000000000",
		"19999999-9999-4999-9999-999999999999",
		"1a000000-0000-4000-8000-000000000000",
		"ffffffff-ffff-4fff-bfff-ffffffffffff",
		"00000000-0000-4000-8000-000000000001",
	}

	ascending := slices.Clone(ids)
	slices.Sort(ascending)

	inverted := make([]string, len(ids))
	for i, id := range ids {
		inverted[i] = InvertedAlphanumeric(id)
	}
	slices.Sort(inverted)

	for i, id := range ascending {
		if want := InvertedAlphanumeric(id); inverted[len(inverted)-1-i] != want {
			t.Errorf("position %d: expected %s to sort in reverse, got %s", i, want, inverted[len(inverted)-1-i])
		}
	}
}

func TestSafeKeyFragment(t *testing.T) {
	t.Parallel()

	in := "docs/my file#1%.txt"
	got := SafeKeyFragment(in)

	if strings.ContainsAny(got, "#/ ") {
		t.Errorf("expected separators to be encoded, got %s", got)
	}

	back, err := url.QueryUnescape(got)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if back != in {
		t.Errorf("expected round trip to %q, got %q", in, back)
	}
}
