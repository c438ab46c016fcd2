package parse

import (
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/dvloznov/mailspend/internal/domain"
)

var testNow = time.Date(2024, 10, 24, 18, 0, 0, 0, time.UTC)

func testParser() *Parser {
	return NewParserAt(func() time.Time { return testNow })
}

func TestParseInstantPayment(t *testing.T) {
	tests := []struct {
		name         string
		msg          domain.RawMessage
		wantMerchant string
		wantAmount   string
		wantMethod   string
		wantConf     domain.Confidence
	}{
		{
			name: "paid to anchor with rupee amount",
			msg: domain.RawMessage{
				Sender:   "noreply@upi.bank",
				Subject:  "UPI transaction successful",
				Body:     "You have paid Rs. 249.00 to merchant. Paid to Cafe Coffee Day using UPI.",
				Received: testNow.Add(-2 * time.Hour),
			},
			wantMerchant: "Cafe Coffee Day",
			wantAmount:   "249.00",
			wantMethod:   "UPI",
			wantConf:     domain.ConfidenceHigh,
		},
		{
			name: "vpa token fallback for merchant",
			msg: domain.RawMessage{
				Sender:   "alerts@okbank.com",
				Subject:  "Payment alert",
				Body:     "₹120 sent via UPI. Beneficiary ramesh.stores@okaxis Ramesh Stores credited.",
				Received: testNow.Add(-30 * time.Minute),
			},
			wantMerchant: "Ramesh Stores",
			wantAmount:   "120.00",
			wantMethod:   "UPI",
			wantConf:     domain.ConfidenceHigh,
		},
		{
			name: "card instrument overrides generic label",
			msg: domain.RawMessage{
				Sender:   "alerts@bank.com",
				Subject:  "UPI payment",
				Body:     "Paid to Big Bazaar using Visa card ending 4321 amount Rs 1,500.50",
				Received: testNow.Add(-26 * time.Hour),
			},
			wantMerchant: "Big Bazaar",
			wantAmount:   "1500.50",
			wantMethod:   "Visa ****4321",
			wantConf:     domain.ConfidenceHigh,
		},
		{
			name: "unparseable amount fails open",
			msg: domain.RawMessage{
				Sender:   "noreply@phonepe.com",
				Subject:  "PhonePe payment update",
				Body:     "Your payment could not be categorized.",
				Received: testNow,
			},
			wantMerchant: "Unknown",
			wantAmount:   "0.00",
			wantMethod:   "UPI",
			wantConf:     domain.ConfidenceLow,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := testParser().Parse(tt.msg)
			if got == nil {
				t.Fatal("Parse returned nil")
			}
			if got.Rule != "instant-payment" {
				t.Errorf("rule = %q, want instant-payment", got.Rule)
			}
			if got.Merchant != tt.wantMerchant {
				t.Errorf("merchant = %q, want %q", got.Merchant, tt.wantMerchant)
			}
			if got.Amount != tt.wantAmount {
				t.Errorf("amount = %q, want %q", got.Amount, tt.wantAmount)
			}
			if got.PaymentMethod != tt.wantMethod {
				t.Errorf("payment method = %q, want %q", got.PaymentMethod, tt.wantMethod)
			}
			if got.Confidence != tt.wantConf {
				t.Errorf("confidence = %q, want %q", got.Confidence, tt.wantConf)
			}
		})
	}
}

func TestParseBankDebit(t *testing.T) {
	msg := domain.RawMessage{
		Sender:   `"HDFC Bank" <alerts@hdfcbank.net>`,
		Subject:  "Debit alert",
		Body:     "Acct: 1234. Debit: $14.50 at WHOLEFDS MRKT on 24/10.",
		Received: testNow.Add(-3 * time.Hour),
	}

	got := testParser().Parse(msg)
	if got == nil {
		t.Fatal("Parse returned nil")
	}
	if got.Rule != "bank-debit" {
		t.Errorf("rule = %q, want bank-debit", got.Rule)
	}
	if got.Amount != "14.50" {
		t.Errorf("amount = %q, want 14.50", got.Amount)
	}
	if got.Merchant != "Wholefds Mrkt" {
		t.Errorf("merchant = %q, want Wholefds Mrkt", got.Merchant)
	}
	if got.Category != "Groceries" {
		t.Errorf("category = %q, want Groceries", got.Category)
	}
	if got.PaymentMethod != "Unknown" {
		t.Errorf("payment method = %q, want Unknown", got.PaymentMethod)
	}
}

func TestParseBankDebitFromFallback(t *testing.T) {
	// No "to <Name>" anchor: merchant comes from the From display name.
	msg := domain.RawMessage{
		Sender:   `"Chase Alerts" <no.reply@chase.com>`,
		Subject:  "Your account was debited",
		Body:     "A debit of $52.10 was made with your card.",
		Received: testNow,
	}

	got := testParser().Parse(msg)
	if got.Merchant != "Chase Alerts" {
		t.Errorf("merchant = %q, want Chase Alerts", got.Merchant)
	}
	if got.Amount != "52.10" {
		t.Errorf("amount = %q, want 52.10", got.Amount)
	}
}

func TestParseTruncatesBody(t *testing.T) {
	msg := domain.RawMessage{
		Sender:   "alerts@bank.com",
		Subject:  "Debit alert",
		Body:     "Debit of $5.00 at Cafe. " + strings.Repeat("x", 600),
		Received: testNow,
	}

	got := testParser().Parse(msg)
	if len(got.RawBody) != 500 {
		t.Errorf("raw body length = %d, want 500", len(got.RawBody))
	}
}

func TestParseTruncatesBodyOnRuneBoundary(t *testing.T) {
	// A rupee sign straddles the truncation point; the cut must back up to
	// the rune start instead of leaving invalid UTF-8.
	msg := domain.RawMessage{
		Sender:   "alerts@bank.com",
		Subject:  "Debit alert",
		Body:     "Debit of $5.00 at Cafe. " + strings.Repeat("x", 475) + "₹" + strings.Repeat("y", 50),
		Received: testNow,
	}

	got := testParser().Parse(msg)
	if !utf8.ValidString(got.RawBody) {
		t.Errorf("raw body is invalid UTF-8 after truncation")
	}
	if len(got.RawBody) > 500 {
		t.Errorf("raw body length = %d, want at most 500", len(got.RawBody))
	}
}

func TestTruncateRuneSafe(t *testing.T) {
	tests := []struct {
		name string
		in   string
		n    int
		want string
	}{
		{name: "short unchanged", in: "hello", n: 10, want: "hello"},
		{name: "ascii cut", in: "hello", n: 3, want: "hel"},
		{name: "cut inside rune backs up", in: "ab₹cd", n: 3, want: "ab"},
		{name: "cut after rune keeps it", in: "ab₹cd", n: 5, want: "ab₹"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := truncate(tt.in, tt.n); got != tt.want {
				t.Errorf("truncate(%q, %d) = %q, want %q", tt.in, tt.n, got, tt.want)
			}
		})
	}
}

func TestParseEmptyMessage(t *testing.T) {
	if got := testParser().Parse(domain.RawMessage{Sender: "x@y.z"}); got != nil {
		t.Errorf("expected nil for empty message, got %+v", got)
	}
}

func TestRelativeTime(t *testing.T) {
	tests := []struct {
		name string
		at   time.Time
		want string
	}{
		{name: "just now", at: testNow.Add(-20 * time.Second), want: "just now"},
		{name: "minutes", at: testNow.Add(-5 * time.Minute), want: "5m ago"},
		{name: "hours", at: testNow.Add(-3 * time.Hour), want: "3h ago"},
		{name: "yesterday", at: testNow.Add(-30 * time.Hour), want: "yesterday"},
		{name: "days", at: testNow.Add(-4 * 24 * time.Hour), want: "4d ago"},
		{name: "old date", at: time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), want: "2 Jan 2024"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := RelativeTime(tt.at, testNow); got != tt.want {
				t.Errorf("RelativeTime = %q, want %q", got, tt.want)
			}
		})
	}
}
