package mailbox

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/dvloznov/mailspend/internal/domain"
)

const (
	maxCandidateIDs = 10
	maxBodies       = 5
	queryDateFormat = "2006/01/02"
)

// KeywordSource is the slice of the storage backend the retriever uses to
// load and seed the search keyword list.
type KeywordSource interface {
	Keywords(ctx context.Context) ([]domain.Keyword, error)
	PutKeywords(ctx context.Context, keywords []domain.Keyword) error
}

// Retriever polls the mailbox for messages that look like transaction
// notifications. All failures are absorbed: the caller always gets a
// (possibly empty) batch, never an error.
type Retriever struct {
	client   Client
	reauth   func(ctx context.Context) (Client, error)
	keywords KeywordSource
	log      zerolog.Logger
	lookback time.Duration
	now      func() time.Time
}

// NewRetriever builds a Retriever. reauth is invoked at most once per
// fetch when the session has expired; it may be nil when the token source
// refreshes itself.
func NewRetriever(client Client, reauth func(ctx context.Context) (Client, error), keywords KeywordSource, log zerolog.Logger, lookback time.Duration) *Retriever {
	return &Retriever{
		client:   client,
		reauth:   reauth,
		keywords: keywords,
		log:      log.With().Str("component", "mailbox").Logger(),
		lookback: lookback,
		now:      time.Now,
	}
}

// FetchCandidates returns the bodies of up to five recent messages that
// match the keyword search within the lookback window.
func (r *Retriever) FetchCandidates(ctx context.Context) []domain.RawMessage {
	terms := r.searchTerms(ctx)
	query := buildQuery(terms, r.now().Add(-r.lookback))

	ids, err := r.listWithRetry(ctx, query)
	if err != nil {
		r.log.Warn().Err(err).Msg("message search failed, returning empty batch")
		return nil
	}
	if len(ids) > maxCandidateIDs {
		ids = ids[:maxCandidateIDs]
	}

	var msgs []domain.RawMessage
	for _, id := range ids {
		if len(msgs) >= maxBodies {
			break
		}
		msg, err := r.client.FetchMessage(ctx, id)
		if err != nil {
			r.log.Warn().Err(err).Str("message_id", id).Msg("skipping unreadable message")
			continue
		}
		msgs = append(msgs, msg)
	}
	r.log.Info().Int("matched", len(ids)).Int("fetched", len(msgs)).Msg("mailbox poll complete")
	return msgs
}

// listWithRetry runs the search, re-authenticating exactly once if the
// session has expired.
func (r *Retriever) listWithRetry(ctx context.Context, query string) ([]string, error) {
	ids, err := r.client.ListMessageIDs(ctx, query, maxCandidateIDs)
	if err == nil || !isAuthExpired(err) || r.reauth == nil {
		return ids, err
	}
	r.log.Info().Msg("session expired, re-authenticating")
	client, authErr := r.reauth(ctx)
	if authErr != nil {
		return nil, fmt.Errorf("Retriever.listWithRetry: re-auth: %w", authErr)
	}
	r.client = client
	return r.client.ListMessageIDs(ctx, query, maxCandidateIDs)
}

// searchTerms loads the stored keyword list, topping it up with the
// defaults so a user who deleted a stock keyword gets it back. Store
// failures fall back to the defaults alone.
func (r *Retriever) searchTerms(ctx context.Context) []string {
	stored, err := r.keywords.Keywords(ctx)
	if err != nil {
		r.log.Warn().Err(err).Msg("keyword load failed, using defaults")
		stored = nil
	}

	seen := make(map[string]bool, len(stored))
	for _, kw := range stored {
		seen[strings.ToLower(kw.Text)] = true
	}

	merged := stored
	var added bool
	for _, def := range domain.DefaultKeywords() {
		if seen[strings.ToLower(def.Text)] {
			continue
		}
		if def.ID == "" {
			def.ID = uuid.NewString()
		}
		merged = append(merged, def)
		added = true
	}
	if added && err == nil {
		if putErr := r.keywords.PutKeywords(ctx, merged); putErr != nil {
			r.log.Warn().Err(putErr).Msg("keyword seed write failed")
		}
	}

	terms := make([]string, 0, len(merged))
	for _, kw := range merged {
		terms = append(terms, kw.Text)
	}
	return terms
}

// buildQuery assembles a disjunctive mailbox search bounded by an
// after: date. Multi-word terms are quoted so they match as phrases.
func buildQuery(terms []string, since time.Time) string {
	quoted := make([]string, 0, len(terms))
	for _, t := range terms {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		if strings.ContainsRune(t, ' ') {
			t = `"` + t + `"`
		}
		quoted = append(quoted, t)
	}
	var b strings.Builder
	if len(quoted) > 0 {
		b.WriteString("(")
		b.WriteString(strings.Join(quoted, " OR "))
		b.WriteString(") ")
	}
	b.WriteString("after:")
	b.WriteString(since.Format(queryDateFormat))
	return b.String()
}
