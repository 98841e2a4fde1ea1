package types

import (
	"encoding/json"
	"testing"
)

func TestMoneyConstructors(t *testing.T) {
	tests := []struct {
		name     string
		money    Money
		amount   int64
		currency string
		display  string
	}{
		{"USD", USD(499), 499, "usd", "$4.99"},
		{"EUR", EUR(999), 999, "eur", "€9.99"},
		{"GBP", GBP(1999), 1999, "gbp", "£19.99"},
		{"Zero USD", Zero("USD"), 0, "usd", "$0.00"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.money.Amount != tt.amount {
				t.Errorf("Amount: got %d, want %d", tt.money.Amount, tt.amount)
			}
			if tt.money.Currency != tt.currency {
				t.Errorf("Currency: got %s, want %s", tt.money.Currency, tt.currency)
			}
			if tt.money.String() != tt.display {
				t.Errorf("Display: got %s, want %s", tt.money.String(), tt.display)
			}
		})
	}
}

func TestMoneyArithmetic(t *testing.T) {
	tests := []struct {
		name     string
		op       func() Money
		expected Money
	}{
		{"Add", func() Money { return USD(100).Add(USD(200)) }, USD(300)},
		{"Subtract", func() Money { return USD(500).Subtract(USD(200)) }, USD(300)},
		{"Multiply", func() Money { return USD(499).Multiply(12) }, USD(5988)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.op()
			if !got.Equal(tt.expected) {
				t.Errorf("got %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestMoneyCurrencyMismatchPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on currency mismatch")
		}
	}()
	USD(100).Add(EUR(100))
}

func TestMoneyJSONRoundTrip(t *testing.T) {
	original := USD(1999)

	data, err := json.Marshal(original)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var decoded Money
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !decoded.Equal(original) {
		t.Errorf("round trip: got %v, want %v", decoded, original)
	}
}

func TestMoneyFormatMajor(t *testing.T) {
	tests := []struct {
		money Money
		want  string
	}{
		{USD(0), "0.00"},
		{USD(5), "0.05"},
		{USD(499), "4.99"},
		{USD(-1250), "-12.50"},
	}

	for _, tt := range tests {
		if got := tt.money.FormatMajor(); got != tt.want {
			t.Errorf("FormatMajor(%d): got %s, want %s", tt.money.Amount, got, tt.want)
		}
	}
}
