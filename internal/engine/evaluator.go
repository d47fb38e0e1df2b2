package engine

import (
	"finadvisor/internal/models"

	"go.uber.org/zap"
)

// Evaluate applies every rule in the catalog to the profile and collects the
// matches in catalog order. It performs no I/O and is deterministic for a
// fixed profile and catalog. A panicking predicate only excludes its own
// rule; the rest of the catalog is still evaluated.
func Evaluate(profile models.FinancialProfile, rules []Rule, logger *zap.Logger) []Match {
	matches := make([]Match, 0, len(rules))

	for _, rule := range rules {
		if matchRule(profile, rule, logger) {
			matches = append(matches, Match{
				Rule:    rule,
				Trigger: rule.Trigger(profile),
			})
		}
	}

	return matches
}

func matchRule(profile models.FinancialProfile, rule Rule, logger *zap.Logger) (matched bool) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("Rule predicate panicked, skipping rule",
				zap.String("type", string(rule.Type)),
				zap.Any("panic", r),
			)
			matched = false
		}
	}()

	return rule.Condition(profile)
}
