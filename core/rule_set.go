// core/rule_set.go
package core

import "fmt"

// ruleOrder fixes the evaluation order of the closed rule set so two
// identically configured managers behave identically.
var ruleOrder = []RuleName{
	RuleVehicleAvailability,
	RuleVehicleAtPickup,
	RuleVehicleAtDelivery,
	RuleOrderAssignable,
	RuleVehicleCapacity,
	RuleTripWithinRange,
	RuleHubAvailability,
	RuleOrderRequestAssignability,
	RuleVehicleRouting,
	RuleConsolidation,
}

// RuleSet binds the closed constraint rules to a catalog. The static
// jurisdiction tables (entity type -> rules, rule -> kinds) are built
// once at startup; an unknown rule name on a kind is a fatal
// configuration error.
type RuleSet struct {
	rules    map[RuleName]*Rule
	byEntity map[EntityType][]*Rule

	// unconstrained lists kinds with an empty constraint set; actions of
	// these kinds are allowed once any entity they reference is notified.
	unconstrained []KindID
}

// NewRuleSet derives the jurisdiction tables from the catalog.
func NewRuleSet(catalog *Catalog) (*RuleSet, error) {
	rs := &RuleSet{
		rules:    ruleDefs(),
		byEntity: make(map[EntityType][]*Rule),
	}

	for _, kind := range catalog.All() {
		names := kind.Constraints()
		if len(names) == 0 {
			if len(kind.Params()) > 0 {
				rs.unconstrained = append(rs.unconstrained, kind.ID())
			}
			continue
		}
		for _, name := range names {
			rule, ok := rs.rules[name]
			if !ok {
				return nil, fmt.Errorf("kind %q references rule %q: %w", kind.Name(), name, ErrUnknownRule)
			}
			rule.kinds = append(rule.kinds, kind.ID())
		}
	}

	for _, name := range ruleOrder {
		rule := rs.rules[name]
		if len(rule.kinds) == 0 {
			continue
		}
		for t := range rule.entityTypes {
			rs.byEntity[t] = append(rs.byEntity[t], rule)
		}
	}
	// keep per-entity rule order deterministic regardless of map walk
	for t := range rs.byEntity {
		sortRulesByOrder(rs.byEntity[t])
	}
	return rs, nil
}

// Rule returns a rule by name.
func (rs *RuleSet) Rule(name RuleName) (*Rule, bool) {
	r, ok := rs.rules[name]
	return r, ok
}

// ForEntity returns the rules registered for an entity type, in the
// fixed evaluation order.
func (rs *RuleSet) ForEntity(t EntityType) []*Rule {
	return rs.byEntity[t]
}

// UnconstrainedKinds returns the kinds guarded by no rule at all.
func (rs *RuleSet) UnconstrainedKinds() []KindID {
	return rs.unconstrained
}

func sortRulesByOrder(rules []*Rule) {
	rank := make(map[RuleName]int, len(ruleOrder))
	for i, n := range ruleOrder {
		rank[n] = i
	}
	for i := 1; i < len(rules); i++ {
		for j := i; j > 0 && rank[rules[j-1].name] > rank[rules[j].name]; j-- {
			rules[j-1], rules[j] = rules[j], rules[j-1]
		}
	}
}
