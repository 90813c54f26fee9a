package policy

import (
	"testing"

	"github.com/rs/zerolog"

	"github.com/anurisatria/assignd/internal/rules"
)

func newTestEngine(rs []rules.Rule) *Engine {
	return NewEngine(NewContext(rs), zerolog.Nop())
}

func payloads(names ...string) []rules.AdminPayload {
	ps := make([]rules.AdminPayload, len(names))
	for i, n := range names {
		ps[i] = rules.AdminPayload{Name: n}
	}
	return ps
}

func TestCanProcess_DefaultPermit(t *testing.T) {
	e := newTestEngine(nil)
	if !e.CanProcess("admin 3", 250794, payloads("admin 3"), rules.ExemptionSettings{}) {
		t.Fatal("admin with no matching rules must be permitted")
	}
}

func TestCanProcess_PriorityOrdering(t *testing.T) {
	matchBoth := rules.Condition{Type: rules.CondAdmin, Value: "admin 5"}

	bypassWins := []rules.Rule{
		{ID: "deny", Condition: matchBoth, Action: rules.Action{Type: rules.ActionDeny}, Priority: 1},
		{ID: "bypass", Condition: matchBoth, Action: rules.Action{Type: rules.ActionAllowBypass}, Priority: 3},
	}
	e := newTestEngine(bypassWins)
	if !e.CanProcess("admin 5", 1, payloads("admin 5"), rules.ExemptionSettings{}) {
		t.Fatal("higher-priority ALLOW_BYPASS must win over lower-priority DENY")
	}

	onlyDenyMatches := []rules.Rule{
		{ID: "deny", Condition: matchBoth, Action: rules.Action{Type: rules.ActionDeny}, Priority: 1},
		{
			ID:        "bypass-elsewhere",
			Condition: rules.Condition{Type: rules.CondAdmin, Value: "admin 9"},
			Action:    rules.Action{Type: rules.ActionAllowBypass},
			Priority:  3,
		},
	}
	e = newTestEngine(onlyDenyMatches)
	if e.CanProcess("admin 5", 1, payloads("admin 5"), rules.ExemptionSettings{}) {
		t.Fatal("DENY must apply when the higher-priority bypass does not match")
	}
}

func TestCanProcess_AdHocPrecedence(t *testing.T) {
	// Declarative table would permit everything; the payload exclusion on
	// campaign 100 must still be final.
	e := newTestEngine(nil)
	cohort := []rules.AdminPayload{
		{Name: "admin 4", RuleType: rules.AdHocExclude, CampaignID: 100},
	}
	if e.CanProcess("admin 4", 100, cohort, rules.ExemptionSettings{}) {
		t.Fatal("ad-hoc exclude must deny its campaign")
	}
	if !e.CanProcess("admin 4", 101, cohort, rules.ExemptionSettings{}) {
		t.Fatal("ad-hoc exclude must not affect other campaigns")
	}

	cohort = []rules.AdminPayload{
		{Name: "admin 4", RuleType: rules.AdHocInclude, CampaignID: 100},
	}
	if !e.CanProcess("admin 4", 100, cohort, rules.ExemptionSettings{}) {
		t.Fatal("ad-hoc include must permit its campaign")
	}
	if e.CanProcess("admin 4", 101, cohort, rules.ExemptionSettings{}) {
		t.Fatal("ad-hoc include must deny every other campaign")
	}
}

func TestCanProcess_AdHocPermitDoesNotBypassDeclarative(t *testing.T) {
	denyAll := []rules.Rule{{
		ID:        "deny-admin-4-100",
		Condition: rules.Condition{Type: rules.CondAnd, Conditions: []rules.Condition{
			{Type: rules.CondAdmin, Value: "admin 4"},
			{Type: rules.CondCampaign, Value: 100},
		}},
		Action:   rules.Action{Type: rules.ActionDeny},
		Priority: 1,
	}}
	e := newTestEngine(denyAll)
	cohort := []rules.AdminPayload{
		{Name: "admin 4", RuleType: rules.AdHocInclude, CampaignID: 100},
	}
	if e.CanProcess("admin 4", 100, cohort, rules.ExemptionSettings{}) {
		t.Fatal("an ad-hoc include must not override a declarative DENY")
	}
}

// Mirrors the production conditional-restriction scenario: admin 5 is locked
// to the continuation campaign while admin 91 is selected, unless admins 1, 5
// and 91 are all present.
func TestCanProcess_ConditionalRestrictionWithExemption(t *testing.T) {
	table := []rules.Rule{
		{
			ID: "restrict-admin5-when-admin91",
			Condition: rules.Condition{Type: rules.CondAnd, Conditions: []rules.Condition{
				{Type: rules.CondAdmin, Value: "admin 5"},
				{Type: rules.CondCampaign, Operator: rules.OpNeq, Value: 247001},
				{Type: rules.CondCohortHas, Value: []string{"admin 91"}},
			}},
			Action:   rules.Action{Type: rules.ActionDeny},
			Priority: 2,
		},
		{
			ID: "bypass-admin5-when-trio-present",
			Condition: rules.Condition{Type: rules.CondAnd, Conditions: []rules.Condition{
				{Type: rules.CondAdmin, Value: "admin 5"},
				{Type: rules.CondCohortHas, Value: []string{"admin 1", "admin 5", "admin 91"}},
			}},
			Action:   rules.Action{Type: rules.ActionAllowBypass},
			Priority: 3,
		},
	}
	e := newTestEngine(table)

	full := payloads("admin 1", "admin 5", "admin 91")
	if !e.CanProcess("admin 5", 246548, full, rules.ExemptionSettings{}) {
		t.Fatal("bypass rule must exempt admin 5 while the full trio is selected")
	}

	withoutAdmin1 := payloads("admin 5", "admin 91")
	if e.CanProcess("admin 5", 246548, withoutAdmin1, rules.ExemptionSettings{}) {
		t.Fatal("without admin 1 the conditional deny must apply")
	}

	// The restriction never covered the continuation campaign itself.
	if !e.CanProcess("admin 5", 247001, withoutAdmin1, rules.ExemptionSettings{}) {
		t.Fatal("admin 5 must keep access to the continuation campaign")
	}
}

func TestCanProcess_ExemptionSetting(t *testing.T) {
	table := []rules.Rule{
		{
			ID: "deny-unless-exempt",
			Condition: rules.Condition{Type: rules.CondAnd, Conditions: []rules.Condition{
				{Type: rules.CondAdmin, Value: "admin 7"},
				{Type: rules.CondNot, Condition: &rules.Condition{Type: rules.CondAdminIsExempt}},
			}},
			Action:   rules.Action{Type: rules.ActionDeny},
			Priority: 1,
		},
	}
	e := newTestEngine(table)
	cohort := payloads("admin 7")

	if e.CanProcess("admin 7", 1, cohort, rules.ExemptionSettings{}) {
		t.Fatal("admin 7 must be denied without an exemption")
	}
	if !e.CanProcess("admin 7", 1, cohort, rules.ExemptionSettings{ExemptAdmin: "admin 7"}) {
		t.Fatal("admin 7 must be permitted when exempted for the run")
	}
}

func TestReplaceUserRules_AffectsSubsequentDecisions(t *testing.T) {
	ctx := NewContext(nil)
	e := NewEngine(ctx, zerolog.Nop())
	cohort := payloads("admin 2")

	if !e.CanProcess("admin 2", 50, cohort, rules.ExemptionSettings{}) {
		t.Fatal("no rules installed, expected permit")
	}

	ctx.ReplaceUserRules([]rules.Rule{{
		ID:        "user-deny",
		Condition: rules.Condition{Type: rules.CondAdmin, Value: "admin 2"},
		Action:    rules.Action{Type: rules.ActionDeny},
		Priority:  1,
	}})
	if e.CanProcess("admin 2", 50, cohort, rules.ExemptionSettings{}) {
		t.Fatal("installed user rule must deny")
	}

	ctx.ReplaceUserRules(nil)
	if !e.CanProcess("admin 2", 50, cohort, rules.ExemptionSettings{}) {
		t.Fatal("clearing user rules must restore the default permit")
	}
}

func TestFilterAdmins_PreservesCohortOrder(t *testing.T) {
	table := []rules.Rule{{
		ID:        "deny-admin-1",
		Condition: rules.Condition{Type: rules.CondAdmin, Value: "admin 1"},
		Action:    rules.Action{Type: rules.ActionDeny},
		Priority:  1,
	}}
	e := newTestEngine(table)

	got := e.FilterAdmins(payloads("admin 3", "admin 1", "admin 2"), 9, rules.ExemptionSettings{})
	want := []string{"admin 3", "admin 2"}
	if len(got) != len(want) {
		t.Fatalf("FilterAdmins() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("FilterAdmins() = %v, want %v", got, want)
		}
	}
}
