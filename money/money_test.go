package money

import (
	"testing"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name     string
		amount   string
		currency string
		want     int64
		wantErr  bool
	}{
		{name: "usd dollars and cents", amount: "100.50", currency: "USD", want: 10050},
		{name: "usd whole", amount: "100", currency: "USD", want: 10000},
		{name: "usd one cent", amount: "0.01", currency: "USD", want: 1},
		{name: "jpy integer", amount: "1500", currency: "JPY", want: 1500},
		{name: "jpy fractional rejected", amount: "1500.5", currency: "JPY", wantErr: true},
		{name: "usd too many decimals", amount: "1.005", currency: "USD", wantErr: true},
		{name: "bhd three decimals", amount: "2.345", currency: "BHD", want: 2345},
		{name: "trailing zeros ok", amount: "1.0500000", currency: "USD", want: 105},
		{name: "garbage", amount: "12x.4", currency: "USD", wantErr: true},
		{name: "negative allowed by parse", amount: "-3.25", currency: "USD", want: -325},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.amount, tt.currency)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %d", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %d, want %d", got, tt.want)
			}
		})
	}
}

func TestFormat(t *testing.T) {
	tests := []struct {
		minor    int64
		currency string
		want     string
	}{
		{10050, "USD", "100.50"},
		{1, "USD", "0.01"},
		{0, "USD", "0.00"},
		{1500, "JPY", "1500"},
		{2345, "BHD", "2.345"},
		{-325, "USD", "-3.25"},
	}
	for _, tt := range tests {
		if got := Format(tt.minor, tt.currency); got != tt.want {
			t.Errorf("Format(%d, %s) = %s, want %s", tt.minor, tt.currency, got, tt.want)
		}
	}
}

func TestParseFormatRoundTrip(t *testing.T) {
	currencies := []string{"USD", "JPY", "BHD"}
	amounts := []int64{0, 1, 2, 99, 100, 101, 12345, 999999999}
	for _, c := range currencies {
		for _, m := range amounts {
			s := Format(m, c)
			back, err := Parse(s, c)
			if err != nil {
				t.Fatalf("Parse(Format(%d, %s)) error: %v", m, c, err)
			}
			if back != m {
				t.Errorf("round trip %d %s: got %d", m, c, back)
			}
		}
	}
}

func TestSplitEven(t *testing.T) {
	tests := []struct {
		name    string
		total   int64
		n       int
		want    []int64
		wantErr bool
	}{
		{name: "exact division", total: 9000, n: 3, want: []int64{3000, 3000, 3000}},
		{name: "one cent among three", total: 1, n: 3, want: []int64{1, 0, 0}},
		{name: "remainder to first parties", total: 1000, n: 3, want: []int64{334, 333, 333}},
		{name: "single party", total: 777, n: 1, want: []int64{777}},
		{name: "zero total", total: 0, n: 4, want: []int64{0, 0, 0, 0}},
		{name: "negative total", total: -5, n: 2, wantErr: true},
		{name: "zero parties", total: 100, n: 0, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := SplitEven(tt.total, tt.n)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			assertShares(t, got, tt.want, tt.total)
		})
	}
}

func TestSplitWeighted(t *testing.T) {
	tests := []struct {
		name    string
		total   int64
		weights []int64
		want    []int64
		wantErr bool
	}{
		{name: "equal weights with remainder", total: 1000, weights: []int64{1, 1, 1}, want: []int64{334, 333, 333}},
		{name: "2:1 split", total: 900, weights: []int64{2, 1}, want: []int64{600, 300}},
		{name: "largest remainder wins", total: 100, weights: []int64{1, 2}, want: []int64{33, 67}},
		{name: "jpy integer only", total: 100, weights: []int64{1, 1, 1}, want: []int64{34, 33, 33}},
		{name: "zero weight rejected", total: 100, weights: []int64{1, 0}, wantErr: true},
		{name: "negative weight rejected", total: 100, weights: []int64{1, -1}, wantErr: true},
		{name: "no weights", total: 100, weights: nil, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := SplitWeighted(tt.total, tt.weights)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			assertShares(t, got, tt.want, tt.total)
		})
	}
}

func TestSplitWeightedConservation(t *testing.T) {
	totals := []int64{1, 7, 99, 1000, 99999}
	weightSets := [][]int64{{1, 1}, {1, 2, 3}, {5, 1, 1, 1}, {7, 11, 13}}
	for _, total := range totals {
		for _, ws := range weightSets {
			got, err := SplitWeighted(total, ws)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			var sum int64
			for _, s := range got {
				sum += s
			}
			if sum != total {
				t.Errorf("total %d weights %v: shares %v sum to %d", total, ws, got, sum)
			}
		}
	}
}

func TestSplitExactPlusRemainder(t *testing.T) {
	t.Run("exact plus weighted remainder", func(t *testing.T) {
		exact, others, err := SplitExactPlusRemainder(10000, []int64{2500}, []int64{1, 1})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if exact[0] != 2500 {
			t.Errorf("exact share changed: %d", exact[0])
		}
		assertShares(t, others, []int64{3750, 3750}, 7500)
	})

	t.Run("exact exceeds total", func(t *testing.T) {
		if _, _, err := SplitExactPlusRemainder(100, []int64{60, 60}, []int64{1}); err == nil {
			t.Fatal("expected error")
		}
	})

	t.Run("exact covers total with no others", func(t *testing.T) {
		exact, others, err := SplitExactPlusRemainder(100, []int64{40, 60}, nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(others) != 0 {
			t.Errorf("unexpected weighted shares: %v", others)
		}
		if exact[0]+exact[1] != 100 {
			t.Errorf("exact shares changed: %v", exact)
		}
	})

	t.Run("remainder with no weighted parties", func(t *testing.T) {
		if _, _, err := SplitExactPlusRemainder(100, []int64{40}, nil); err == nil {
			t.Fatal("expected error")
		}
	})
}

func TestDecimals(t *testing.T) {
	if d := Decimals("usd"); d != 2 {
		t.Errorf("usd decimals = %d", d)
	}
	if d := Decimals("JPY"); d != 0 {
		t.Errorf("JPY decimals = %d", d)
	}
	if d := Decimals("XYZ"); d != 2 {
		t.Errorf("unknown currency decimals = %d, want default 2", d)
	}
}

func TestSameCurrency(t *testing.T) {
	if !SameCurrency("USD", "usd", "Usd") {
		t.Error("case-insensitive comparison failed")
	}
	if SameCurrency("USD", "EUR") {
		t.Error("distinct currencies reported equal")
	}
	if !SameCurrency() {
		t.Error("empty input should be trivially same")
	}
}

func assertShares(t *testing.T, got, want []int64, total int64) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("got %d shares, want %d", len(got), len(want))
	}
	var sum int64
	for i := range got {
		if got[i] != want[i] {
			t.Errorf("share %d: got %d, want %d", i, got[i], want[i])
		}
		sum += got[i]
	}
	if sum != total {
		t.Errorf("shares sum to %d, want %d", sum, total)
	}
}
