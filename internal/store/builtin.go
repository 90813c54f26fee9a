package store

import (
	"context"
	"sync"

	"github.com/anurisatria/assignd/internal/config"
	"github.com/anurisatria/assignd/internal/rules"
)

// restrictedOnSpecial are the admins that must never touch the special
// campaign of their environment.
var restrictedOnSpecial = []any{
	"admin 6", "admin 7", "admin 09", "admin 10", "admin 91",
	"admin 92", "admin 914", "admin 915", "admin 916", "admin 917", "admin 918",
}

// DefaultRules returns the compiled-in rule set for an environment. The set
// pivots on the environment's special campaign: a handful of admins may only
// process it, a larger group may never process it, and a supervised cohort
// unlocks it for everyone via a bypass.
func DefaultRules(env string) []rules.Rule {
	sc, ok := config.SpecialCampaignFor(env)
	if !ok {
		return nil
	}
	suffix := ""
	if env == config.EnvStaging {
		suffix = "_staging"
	}
	return buildDefaultRules(sc.ID, suffix)
}

func buildDefaultRules(special int64, suffix string) []rules.Rule {
	onlySpecial := func(admin, slug string) rules.Rule {
		return rules.Rule{
			ID:          "restrict_" + slug + "_to_only_campaign" + suffix,
			Description: admin + " can only process the restricted campaign",
			Condition: rules.Condition{Type: rules.CondAnd, Conditions: []rules.Condition{
				{Type: rules.CondAdmin, Value: admin},
				{Type: rules.CondCampaign, Operator: rules.OpNeq, Value: special},
			}},
			Action:   rules.Action{Type: rules.ActionDeny},
			Priority: 1,
		}
	}

	return []rules.Rule{
		onlySpecial("admin 1", "admin1"),
		onlySpecial("admin 2", "admin2"),
		onlySpecial("admin 5", "admin5"),
		{
			ID:          "exclude_admins_from_restricted_campaign" + suffix,
			Description: "Support admins cannot process the restricted campaign",
			Condition: rules.Condition{Type: rules.CondAnd, Conditions: []rules.Condition{
				{Type: rules.CondAdmin, Operator: rules.OpIn, Value: restrictedOnSpecial},
				{Type: rules.CondCampaign, Value: special},
			}},
			Action:   rules.Action{Type: rules.ActionDeny},
			Priority: 1,
		},
		{
			ID:          "deny_admin5_when_admin91_selected" + suffix,
			Description: "admin 5 may only process the restricted campaign while admin 91 is in the cohort",
			Condition: rules.Condition{Type: rules.CondAnd, Conditions: []rules.Condition{
				{Type: rules.CondAdmin, Value: "admin 5"},
				{Type: rules.CondCohortHas, Value: "admin 91"},
				{Type: rules.CondCampaign, Operator: rules.OpNeq, Value: special},
			}},
			Action:   rules.Action{Type: rules.ActionDeny},
			Priority: 2,
		},
		{
			ID:          "bypass_for_supervised_cohort" + suffix,
			Description: "admin 5 is unrestricted while admin 1, admin 5 and admin 91 are selected together",
			Condition: rules.Condition{Type: rules.CondAnd, Conditions: []rules.Condition{
				{Type: rules.CondAdmin, Value: "admin 5"},
				{Type: rules.CondCohortHas, Value: []any{"admin 1", "admin 5", "admin 91"}},
			}},
			Action:   rules.Action{Type: rules.ActionAllowBypass},
			Priority: 3,
		},
	}
}

// MemorySource keeps user rules in process memory. It backs the builtin rule
// source, where user rules are runtime-only and reset on restart.
type MemorySource struct {
	mu    sync.RWMutex
	rules []rules.Rule
}

// NewMemorySource creates an empty in-memory rule source.
func NewMemorySource() *MemorySource {
	return &MemorySource{}
}

func (m *MemorySource) UserRules(ctx context.Context) ([]rules.Rule, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]rules.Rule(nil), m.rules...), nil
}

func (m *MemorySource) ReplaceUserRules(ctx context.Context, rs []rules.Rule) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rules = append([]rules.Rule(nil), rs...)
	return nil
}

func (m *MemorySource) Watch(fn func([]rules.Rule)) {}

func (m *MemorySource) Close() error { return nil }
