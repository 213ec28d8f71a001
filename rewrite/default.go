package rewrite

// DefaultRuleSet composes every rule family into the engine's standard
// rule set. Order only affects which match a given iteration tries
// first; fairness (every rule gets a turn before any fires twice) makes
// the eventual fixpoint independent of it (spec.md §4.3).
func DefaultRuleSet() RuleSet {
	var all RuleSet
	all = append(all, MemberRules()...)
	all = append(all, FilterRules()...)
	all = append(all, SplitRules()...)
	all = append(all, WrapperRules()...)
	all = append(all, FlattenRules()...)
	all = append(all, TimeDimensionRules()...)
	all = append(all, OrderRules()...)
	all = append(all, JoinRules()...)
	return all
}
