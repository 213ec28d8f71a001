package rewrite

import (
	"time"

	"github.com/cubegraph/cubeplan/planlang"
)

// Budget bounds one saturation run (spec.md §4.3 Rewriter control
// contract). Zero for any field means "no limit" on that dimension.
type Budget struct {
	MaxIterations int
	MaxNodes      int
	TimeBudget    time.Duration
}

// Result reports how a saturation run ended, for diagnostics and for the
// extractor (which proceeds regardless of why saturation stopped).
type Result struct {
	Iterations   int
	NodeLimitHit bool
	TimedOut     bool
	Errors       []error // conditional-transform failures, one match each
}

// RuleSet is a fixed, ordered collection of rules. Order affects only
// which match a given iteration happens to try first, never the fixpoint
// reached: fairness guarantees every rule gets a turn each iteration
// (spec.md §4.3).
type RuleSet []Rule

// Saturate runs rules against g until no rule fires in an iteration, or a
// budget in b is exceeded. Reaching the iteration limit is not an error;
// the caller extracts from whatever the graph proved by then.
func Saturate(g *planlang.EGraph, rules RuleSet, b Budget) Result {
	var res Result
	deadline := time.Time{}
	if b.TimeBudget > 0 {
		deadline = time.Now().Add(b.TimeBudget)
	}

	for {
		if b.MaxIterations > 0 && res.Iterations >= b.MaxIterations {
			return res
		}
		if !deadline.IsZero() && time.Now().After(deadline) {
			res.TimedOut = true
			return res
		}
		if b.MaxNodes > 0 && g.NodeCount() >= b.MaxNodes {
			res.NodeLimitHit = true
			return res
		}

		firedThisIteration := 0
		for _, rule := range rules {
			fired, errs := rule.fireOnce(g)
			firedThisIteration += fired
			res.Errors = append(res.Errors, errs...)

			if b.MaxNodes > 0 && g.NodeCount() >= b.MaxNodes {
				g.Rebuild()
				res.NodeLimitHit = true
				return res
			}
		}
		g.Rebuild()
		res.Iterations++

		if firedThisIteration == 0 {
			return res
		}
	}
}
