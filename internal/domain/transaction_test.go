package domain

import (
	"testing"
)

func TestNormalizeAmount(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{name: "plain two decimals", input: "14.50", want: "14.50"},
		{name: "one decimal padded", input: "14.5", want: "14.50"},
		{name: "integer padded", input: "250", want: "250.00"},
		{name: "thousands separator stripped", input: "1,249.99", want: "1249.99"},
		{name: "zero", input: "0.00", want: "0.00"},
		{name: "negative rejected", input: "-3.20", wantErr: true},
		{name: "garbage rejected", input: "Rs. fifty", wantErr: true},
		{name: "empty rejected", input: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeAmount(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("NormalizeAmount(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("NormalizeAmount(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestNormalizeAmountRoundTrip(t *testing.T) {
	// Normalizing an already-normalized amount must be a no-op; formatting
	// to two decimals must not lose value.
	inputs := []string{"0.01", "10.00", "14.50", "99999.99", "1234.56"}
	for _, in := range inputs {
		first, err := NormalizeAmount(in)
		if err != nil {
			t.Fatalf("NormalizeAmount(%q): %v", in, err)
		}
		second, err := NormalizeAmount(first)
		if err != nil {
			t.Fatalf("NormalizeAmount(%q) second pass: %v", first, err)
		}
		if first != second {
			t.Errorf("round trip changed value: %q -> %q -> %q", in, first, second)
		}
		if !ParseAmount(in).Equal(ParseAmount(second)) {
			t.Errorf("value drift for %q: %s vs %s", in, ParseAmount(in), ParseAmount(second))
		}
	}
}

func TestParseStorageMode(t *testing.T) {
	for _, valid := range []string{"offline", "auto", "existing"} {
		if _, err := ParseStorageMode(valid); err != nil {
			t.Errorf("ParseStorageMode(%q) unexpected error: %v", valid, err)
		}
	}
	if _, err := ParseStorageMode("remote"); err == nil {
		t.Error("ParseStorageMode(\"remote\") expected error, got nil")
	}
}
