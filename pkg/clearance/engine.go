// Package clearance detects potential duplicate submissions already on file
// for a tenant. Each candidate is scored by three independent signals:
// tax ID equality, insured name similarity and mailing address similarity.
package clearance

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/keystone-uw/underwriting-engine/pkg/models"
	"github.com/keystone-uw/underwriting-engine/pkg/normalize"
	"github.com/keystone-uw/underwriting-engine/pkg/similarity"
)

const (
	// NameSimilarityThreshold is the minimum name similarity for a NameMatch.
	NameSimilarityThreshold = 0.75
	// AddressSimilarityThreshold is the minimum address similarity for an AddressMatch.
	AddressSimilarityThreshold = 0.85
)

// CandidateFinder returns the submissions of a tenant that may duplicate the
// given one. The submission itself is excluded.
type CandidateFinder interface {
	FindPotentialDuplicates(ctx context.Context, tenantID, excludeID uuid.UUID) ([]models.SubmissionSnapshot, error)
}

// Config holds the match thresholds. Both thresholds are inclusive.
type Config struct {
	NameSimilarityThreshold    float64
	AddressSimilarityThreshold float64
}

// DefaultConfig returns the standard thresholds.
func DefaultConfig() Config {
	return Config{
		NameSimilarityThreshold:    NameSimilarityThreshold,
		AddressSimilarityThreshold: AddressSimilarityThreshold,
	}
}

// Engine runs clearance checks. It holds no per-check state and is safe for
// concurrent use.
type Engine struct {
	finder     CandidateFinder
	cfg        Config
	normalizer *normalize.Normalizer
	scorer     similarity.Scorer
	now        func() time.Time
}

// Option customizes an Engine.
type Option func(*Engine)

// WithClock sets the clock used to stamp matches.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithNormalizer replaces the default US normalizer.
func WithNormalizer(n *normalize.Normalizer) Option {
	return func(e *Engine) { e.normalizer = n }
}

// WithScorer replaces the unbounded similarity scorer.
func WithScorer(s similarity.Scorer) Option {
	return func(e *Engine) { e.scorer = s }
}

// NewEngine creates an Engine. Zero thresholds in cfg fall back to the defaults.
func NewEngine(finder CandidateFinder, cfg Config, opts ...Option) *Engine {
	if cfg.NameSimilarityThreshold == 0 {
		cfg.NameSimilarityThreshold = NameSimilarityThreshold
	}
	if cfg.AddressSimilarityThreshold == 0 {
		cfg.AddressSimilarityThreshold = AddressSimilarityThreshold
	}

	e := &Engine{
		finder:     finder,
		cfg:        cfg,
		normalizer: normalize.Default,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Check compares the submission against every candidate returned by the finder
// and returns one match per signal that fires. The result is never nil and is
// not ordered. Finder errors, including context cancellation, are returned wrapped.
func (e *Engine) Check(ctx context.Context, sub models.SubmissionSnapshot) ([]models.ClearanceMatch, error) {
	candidates, err := e.finder.FindPotentialDuplicates(ctx, sub.TenantID, sub.ID)
	if err != nil {
		return nil, fmt.Errorf("find potential duplicates: %w", err)
	}

	matches := make([]models.ClearanceMatch, 0)
	if len(candidates) == 0 {
		return matches, nil
	}

	detectedAt := e.now().UTC()
	for _, candidate := range candidates {
		if m, ok := e.matchID(sub, candidate, detectedAt); ok {
			matches = append(matches, m)
		}
		if m, ok := e.matchName(sub, candidate, detectedAt); ok {
			matches = append(matches, m)
		}
		if m, ok := e.matchAddress(sub, candidate, detectedAt); ok {
			matches = append(matches, m)
		}
	}

	return matches, nil
}

func (e *Engine) matchID(sub, candidate models.SubmissionSnapshot, at time.Time) (models.ClearanceMatch, bool) {
	if sub.InsuredTaxID == nil || candidate.InsuredTaxID == nil {
		return models.ClearanceMatch{}, false
	}

	a := normalize.ID(*sub.InsuredTaxID)
	b := normalize.ID(*candidate.InsuredTaxID)
	if a == "" || b == "" || !strings.EqualFold(a, b) {
		return models.ClearanceMatch{}, false
	}

	details := fmt.Sprintf("Tax ID match: %s", maskID(a))
	return models.NewClearanceMatch(sub.ID, candidate, models.MatchTypeID, 1.0, details, at), true
}

func (e *Engine) matchName(sub, candidate models.SubmissionSnapshot, at time.Time) (models.ClearanceMatch, bool) {
	a := e.normalizer.Name(sub.InsuredName)
	b := e.normalizer.Name(candidate.InsuredName)
	if a == "" || b == "" {
		return models.ClearanceMatch{}, false
	}

	score := e.scorer.Score(a, b)
	if score < e.cfg.NameSimilarityThreshold {
		return models.ClearanceMatch{}, false
	}

	details := fmt.Sprintf("Name similarity: '%s' vs '%s' = %.1f%%", sub.InsuredName, candidate.InsuredName, score*100)
	return models.NewClearanceMatch(sub.ID, candidate, models.MatchTypeName, score, details, at), true
}

func (e *Engine) matchAddress(sub, candidate models.SubmissionSnapshot, at time.Time) (models.ClearanceMatch, bool) {
	if sub.MailingAddress == nil || candidate.MailingAddress == nil {
		return models.ClearanceMatch{}, false
	}

	a := e.normalizeAddress(sub.MailingAddress)
	b := e.normalizeAddress(candidate.MailingAddress)

	score := e.scorer.Score(a, b)
	if score < e.cfg.AddressSimilarityThreshold {
		return models.ClearanceMatch{}, false
	}

	details := fmt.Sprintf("Address similarity: '%s' vs '%s' = %.1f%%", a, b, score*100)
	return models.NewClearanceMatch(sub.ID, candidate, models.MatchTypeAddress, score, details, at), true
}

func (e *Engine) normalizeAddress(a *models.Address) string {
	return e.normalizer.Address(a.Street1, a.City, a.State, a.PostalCode)
}

// maskID keeps the last four digits of a tax ID for audit text.
func maskID(id string) string {
	if len(id) <= 4 {
		return id
	}
	return strings.Repeat("*", len(id)-4) + id[len(id)-4:]
}
