package ingest

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/dvloznov/mailspend/internal/domain"
)

// Fetcher supplies candidate messages. Implemented by mailbox.Retriever.
type Fetcher interface {
	FetchCandidates(ctx context.Context) []domain.RawMessage
}

// Parser turns one message into a candidate, or nil when the message is
// empty. Implemented by parse.Parser.
type Parser interface {
	Parse(msg domain.RawMessage) *domain.ParsedTransaction
}

// Step is a single stage of the ingestion pipeline.
type Step interface {
	Execute(ctx context.Context, state *State) error
}

// State is the shared state threaded through the pipeline steps.
type State struct {
	Messages   []domain.RawMessage
	Candidates []*domain.ParsedTransaction
	Stored     []domain.Transaction

	// Counters for the run summary.
	Unparseable int
	Duplicates  int
}

// Pipeline wires the stages together. A run never fails on a single bad
// message; only storage-level errors abort it.
type Pipeline struct {
	steps []Step
	log   zerolog.Logger
}

func NewPipeline(fetcher Fetcher, parser Parser, guard *DedupGuard, gate *ApprovalGate, log zerolog.Logger) *Pipeline {
	return &Pipeline{
		steps: []Step{
			&FetchStep{fetcher: fetcher},
			&ParseStep{parser: parser},
			&DedupStep{guard: guard},
			&RouteStep{gate: gate},
		},
		log: log.With().Str("component", "ingest").Logger(),
	}
}

// Run executes one pass over the mailbox and returns the final state.
func (p *Pipeline) Run(ctx context.Context) (*State, error) {
	state := &State{}
	for _, step := range p.steps {
		if err := step.Execute(ctx, state); err != nil {
			return state, fmt.Errorf("Pipeline.Run: %w", err)
		}
	}
	p.log.Info().
		Int("messages", len(state.Messages)).
		Int("unparseable", state.Unparseable).
		Int("duplicates", state.Duplicates).
		Int("stored", len(state.Stored)).
		Msg("ingestion run complete")
	return state, nil
}

// FetchStep pulls candidate messages from the mailbox.
type FetchStep struct {
	fetcher Fetcher
}

func (s *FetchStep) Execute(ctx context.Context, state *State) error {
	state.Messages = s.fetcher.FetchCandidates(ctx)
	return nil
}

// ParseStep extracts a candidate from each message. Messages that yield
// nothing are counted and dropped.
type ParseStep struct {
	parser Parser
}

func (s *ParseStep) Execute(_ context.Context, state *State) error {
	for _, msg := range state.Messages {
		cand := s.parser.Parse(msg)
		if cand == nil {
			state.Unparseable++
			continue
		}
		state.Candidates = append(state.Candidates, cand)
	}
	return nil
}

// DedupStep drops candidates that match an already stored transaction or
// an earlier candidate in the same batch. Without the in-batch check, two
// copies of one notification arriving together would both pass the guard
// before either is stored.
type DedupStep struct {
	guard *DedupGuard
}

func (s *DedupStep) Execute(ctx context.Context, state *State) error {
	accepted := make(map[string]bool, len(state.Candidates))
	kept := state.Candidates[:0]
	for _, cand := range state.Candidates {
		key := dedupKey(cand.Merchant, cand.Amount, cand.OccurredAt)
		if accepted[key] {
			state.Duplicates++
			continue
		}
		dup, err := s.guard.IsDuplicate(ctx, cand)
		if err != nil {
			return err
		}
		if dup {
			state.Duplicates++
			continue
		}
		accepted[key] = true
		kept = append(kept, cand)
	}
	state.Candidates = kept
	return nil
}

// RouteStep persists each surviving candidate through the approval gate.
type RouteStep struct {
	gate *ApprovalGate
}

func (s *RouteStep) Execute(ctx context.Context, state *State) error {
	for _, cand := range state.Candidates {
		tx, err := s.gate.Route(ctx, cand)
		if err != nil {
			return err
		}
		state.Stored = append(state.Stored, tx)
	}
	return nil
}
