package parse

import (
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/dvloznov/mailspend/internal/domain"
)

const (
	// maxRawBody bounds how much of the decoded body is kept on a candidate
	// for later manual review display.
	maxRawBody = 500

	defaultAmount         = "0.00"
	unknownMerchant       = "Unknown"
	instantPaymentMethod  = "UPI"
	unknownPaymentMethod  = "Unknown"
	ruleInstantPayment    = "instant-payment"
	ruleBankDebit         = "bank-debit"
)

// Extraction patterns. Amount captures allow thousands separators and an
// optional fractional part; merchant captures stop at connective words or
// sentence punctuation.
var (
	currencyAmountRe = regexp.MustCompile(`(?i)(?:₹|\brs\.?|\binr|\busd|\$)\s*([\d,]+(?:\.\d{1,2})?)`)
	paidAmountRe     = regexp.MustCompile(`(?i)\bpaid\s*(?:₹|rs\.?|inr|\$)?\s*([\d,]+(?:\.\d{1,2})?)`)

	paidToRe   = regexp.MustCompile(`(?i:paid to)\s+([A-Z][A-Za-z0-9 .&'-]*?)(?:\s+(?:using|via|on|from)\b|[.,\n]|$)`)
	vpaRe      = regexp.MustCompile(`[a-z0-9][a-z0-9.\-_]*@[a-z]{2,}\s*\(?([A-Z][A-Za-z]*(?:\s+[A-Z][A-Za-z]*)*)`)
	toAnchorRe = regexp.MustCompile(`(?:^|\s)(?:to|at)\s+([A-Z][A-Za-z0-9&']*(?:\s+[A-Z0-9][A-Za-z0-9&']*)*)`)

	cardRe = regexp.MustCompile(`(?i)(visa|mastercard|rupay|amex|american express|discover)\s*(?:card)?\s*(?:ending(?:\s+in)?|xx+|x-|\*+)?\s*(\d{4})`)

	// Phrases that select the instant-payment rule family.
	instantMarkers = []string{"upi", "vpa", "google pay", "phonepe", "paytm", "gpay"}

	displayNameRe = regexp.MustCompile(`^"?([^"<]+?)"?\s*<`)
)

// Parser converts one raw message into a transaction candidate. Parsing is
// fail-open: a non-match on amount yields "0.00" plus low confidence rather
// than a nil result, so the candidate still reaches manual review instead of
// being silently dropped.
type Parser struct {
	clock func() time.Time
}

// NewParser returns a Parser using the wall clock.
func NewParser() *Parser {
	return &Parser{clock: time.Now}
}

// NewParserAt returns a Parser with a fixed clock, for tests.
func NewParserAt(clock func() time.Time) *Parser {
	return &Parser{clock: clock}
}

// Parse extracts a candidate from msg. It returns nil only for messages
// with no usable content at all.
func (p *Parser) Parse(msg domain.RawMessage) *domain.ParsedTransaction {
	body := msg.Body
	if strings.TrimSpace(body) == "" {
		body = msg.Snippet
	}
	if strings.TrimSpace(body) == "" && strings.TrimSpace(msg.Subject) == "" {
		return nil
	}

	var cand *domain.ParsedTransaction
	if isInstantPayment(msg.Subject, body) {
		cand = p.parseInstantPayment(msg, body)
	} else {
		cand = p.parseBankDebit(msg, body)
	}

	cand.Category = Categorize(cand.Merchant, body)
	cand.Sender = msg.Sender
	cand.Subject = msg.Subject
	cand.OccurredAt = msg.Received
	cand.TimeLabel = RelativeTime(msg.Received, p.clock())
	cand.RawBody = truncate(body, maxRawBody)

	cand.Confidence = domain.ConfidenceHigh
	if cand.Amount == defaultAmount || cand.Merchant == unknownMerchant {
		cand.Confidence = domain.ConfidenceLow
	}
	return cand
}

func isInstantPayment(subject, body string) bool {
	haystack := strings.ToLower(subject + " " + body)
	for _, m := range instantMarkers {
		if strings.Contains(haystack, m) {
			return true
		}
	}
	return false
}

// parseInstantPayment handles peer-to-peer instant-payment notifications.
// Merchant anchors, in order: "Paid to <Name>", the capitalized name after a
// payment-identifier token, the capitalized run after "to".
func (p *Parser) parseInstantPayment(msg domain.RawMessage, body string) *domain.ParsedTransaction {
	text := msg.Subject + "\n" + body

	amount := extractAmount(text, currencyAmountRe, paidAmountRe)

	merchant := unknownMerchant
	if m := paidToRe.FindStringSubmatch(text); m != nil {
		merchant = formatMerchant(m[1])
	} else if m := vpaRe.FindStringSubmatch(text); m != nil {
		merchant = formatMerchant(m[1])
	} else if m := toAnchorRe.FindStringSubmatch(text); m != nil {
		merchant = formatMerchant(m[1])
	}

	method := instantPaymentMethod
	if card := cardRe.FindStringSubmatch(text); card != nil {
		method = formatCard(card[1], card[2])
	}

	return &domain.ParsedTransaction{
		Merchant:      merchant,
		Amount:        amount,
		PaymentMethod: method,
		Rule:          ruleInstantPayment,
	}
}

// parseBankDebit handles generic card/bank debit notifications. Merchant
// comes from a "to <Name>" anchor, falling back to the human-readable part
// of the From address.
func (p *Parser) parseBankDebit(msg domain.RawMessage, body string) *domain.ParsedTransaction {
	text := msg.Subject + "\n" + body

	amount := extractAmount(text, currencyAmountRe)

	merchant := unknownMerchant
	if m := toAnchorRe.FindStringSubmatch(text); m != nil {
		merchant = formatMerchant(m[1])
	} else if name := senderDisplayName(msg.Sender); name != "" {
		merchant = formatMerchant(name)
	}

	method := unknownPaymentMethod
	if card := cardRe.FindStringSubmatch(text); card != nil {
		method = formatCard(card[1], card[2])
	}

	return &domain.ParsedTransaction{
		Merchant:      merchant,
		Amount:        amount,
		PaymentMethod: method,
		Rule:          ruleBankDebit,
	}
}

// extractAmount tries each pattern in order and returns the first numeric
// group normalized to two decimals, or the fail-open default.
func extractAmount(text string, patterns ...*regexp.Regexp) string {
	for _, re := range patterns {
		if m := re.FindStringSubmatch(text); m != nil {
			if amt, err := domain.NormalizeAmount(m[1]); err == nil {
				return amt
			}
		}
	}
	return defaultAmount
}

// senderDisplayName extracts the human-readable portion of a From header,
// e.g. `"HDFC Bank" <alerts@hdfcbank.com>` -> "HDFC Bank".
func senderDisplayName(from string) string {
	if m := displayNameRe.FindStringSubmatch(from); m != nil {
		return strings.TrimSpace(m[1])
	}
	return ""
}

var titleCaser = cases.Title(language.English)

// formatMerchant cleans an extracted merchant string for display: collapse
// whitespace, trim stray punctuation, title-case words longer than two
// characters and upper-case the rest.
func formatMerchant(raw string) string {
	cleaned := strings.Trim(strings.TrimSpace(raw), ".,;:-")
	words := strings.Fields(cleaned)
	if len(words) == 0 {
		return unknownMerchant
	}
	for i, w := range words {
		if len(w) > 2 {
			words[i] = titleCaser.String(strings.ToLower(w))
		} else {
			words[i] = strings.ToUpper(w)
		}
	}
	out := truncate(strings.Join(words, " "), 50)
	if out == "" {
		return unknownMerchant
	}
	return out
}

func formatCard(network, last4 string) string {
	network = strings.ToLower(network)
	switch network {
	case "amex", "american express":
		network = "Amex"
	default:
		network = titleCaser.String(network)
	}
	return fmt.Sprintf("%s ****%s", network, last4)
}

// RelativeTime renders a human-relative label for a message timestamp.
func RelativeTime(at, now time.Time) string {
	d := now.Sub(at)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	case d < 48*time.Hour:
		return "yesterday"
	case d < 7*24*time.Hour:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	default:
		return at.Format("2 Jan 2006")
	}
}

// truncate cuts s to at most n bytes without splitting a multibyte rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
