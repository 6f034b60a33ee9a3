// Package arbiter implements the handler-selection rules of spec.md
// §4.6 (C6): for each turn, analyzeCommand is called on every registered
// handler and the winner is chosen by R1-R5, evaluated in order as
// cumulative predicates.
//
// Grounded on the reference architecture's model.Router.Route: an ordered
// set of checks producing a single decision object, adjudicating handlers
// here instead of model tiers.
package arbiter

import (
	"context"

	"github.com/cascade-run/cascade/internal/handler"
)

// candidate pairs a handler with its analysis for this turn.
type candidate struct {
	h        handler.Handler
	analysis handler.CommandAnalysisResult
	index    int // registration order, for R4's first-reporter tie-break
}

// Select analyzes in against every handler and picks the winner under
// R1-R5. currentID is the uniqueId of the current handler ("" if none).
// The bool result is false exactly when R5 applies (no handler cleared
// OUT_OF_DOMAIN) — the loop responds with the localized "didn't
// understand" message in that case. A handler whose AnalyzeCommand
// returns an error is skipped for this turn rather than aborting
// selection; handlers never observe another handler's errors (spec.md
// §7), and an arbiter-side failure is no different.
func Select(ctx context.Context, handlers []handler.Handler, in handler.UserInput, currentID string) (handler.Handler, handler.CommandAnalysisResult, bool) {
	var candidates []candidate
	for i, h := range handlers {
		analysis, err := h.AnalyzeCommand(ctx, in)
		if err != nil {
			continue
		}
		candidates = append(candidates, candidate{h: h, analysis: analysis, index: i})
	}
	return pick(candidates, currentID)
}

func pick(candidates []candidate, currentID string) (handler.Handler, handler.CommandAnalysisResult, bool) {
	// R1: STOP/DEBUG always win regardless of confidence.
	for _, c := range candidates {
		if c.analysis.Type == handler.AnalysisStop || c.analysis.Type == handler.AnalysisDebug {
			return c.h, c.analysis, true
		}
	}

	// R3: followup analyses are only eligible from the current handler.
	var eligible []candidate
	for _, c := range candidates {
		if isFollowup(c.analysis.Type) && c.h.UniqueID() != currentID {
			continue
		}
		eligible = append(eligible, c)
	}

	// R2: keep only the highest confidence tier present.
	best := bestTier(eligible)
	if best < 0 {
		return nil, handler.CommandAnalysisResult{}, false // R5
	}
	var tied []candidate
	for _, c := range eligible {
		if tierOf(c.analysis.Type) == best {
			tied = append(tied, c)
		}
	}

	// R4: priority, then current handler, then first-reporter.
	winner := tied[0]
	for _, c := range tied[1:] {
		switch {
		case c.h.Priority() > winner.h.Priority():
			winner = c
		case c.h.Priority() < winner.h.Priority():
			// keep winner
		case c.h.UniqueID() == currentID && winner.h.UniqueID() != currentID:
			winner = c
		case winner.h.UniqueID() == currentID:
			// keep winner
		case c.index < winner.index:
			winner = c
		}
	}
	return winner.h, winner.analysis, true
}

func isFollowup(t handler.AnalysisType) bool {
	return t == handler.AnalysisConfidentFollowup || t == handler.AnalysisNonconfidentFollowup
}

// tierOf ranks analysis types high-to-low per R2. STOP/DEBUG never reach
// here (R1 short-circuits above).
func tierOf(t handler.AnalysisType) int {
	switch t {
	case handler.AnalysisConfidentCommand, handler.AnalysisConfidentFollowup:
		return 2
	case handler.AnalysisNonconfidentCommand, handler.AnalysisNonconfidentFollowup:
		return 1
	default: // AnalysisOutOfDomain
		return 0
	}
}

// bestTier returns the highest tier present among candidates that beats
// OUT_OF_DOMAIN, or -1 if none does (R5).
func bestTier(candidates []candidate) int {
	best := -1
	for _, c := range candidates {
		if c.analysis.Type == handler.AnalysisOutOfDomain {
			continue
		}
		if t := tierOf(c.analysis.Type); t > best {
			best = t
		}
	}
	return best
}
