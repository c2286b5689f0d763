package terminology

import (
	"context"

	"github.com/rs/zerolog"
)

// Coder maps a free-text chief complaint to its best-guess ICD-10 code.
// Only the top-ranked candidate is used. Nothing is cached: each call is a
// fresh search.
type Coder struct {
	search Searcher
	logger zerolog.Logger
}

// NewCoder creates a Coder backed by search.
func NewCoder(search Searcher, logger zerolog.Logger) *Coder {
	return &Coder{search: search, logger: logger}
}

// Code never returns an error to the caller: a failed search is folded into
// the Result so a consumer loop can keep going.
func (c *Coder) Code(ctx context.Context, complaint string) Result {
	res, err := c.search.SearchICD10(ctx, complaint)
	if err != nil {
		c.logger.Error().Err(err).Str("complaint", complaint).Msg("icd-10 search failed")
		return Result{Complaint: complaint, Err: err}
	}
	if len(res.Candidates) == 0 {
		c.logger.Info().Str("complaint", complaint).Msg("icd-10 search returned no candidates")
		return Result{Complaint: complaint}
	}
	top := res.Candidates[0]
	c.logger.Debug().
		Str("complaint", complaint).
		Str("code", top.Code).
		Int("total", res.Total).
		Msg("icd-10 search matched")
	return Result{Complaint: complaint, Candidate: &top}
}
