package policy

import (
	"sort"

	"github.com/rs/zerolog"

	"github.com/anurisatria/assignd/internal/rules"
)

// Engine produces permit/deny decisions for (admin, campaign, cohort) triples.
type Engine struct {
	ctx *Context
	log zerolog.Logger
}

// NewEngine creates an Engine over the given policy context.
func NewEngine(ctx *Context, log zerolog.Logger) *Engine {
	return &Engine{ctx: ctx, log: log.With().Str("component", "policy").Logger()}
}

// CanProcess decides whether the named admin may be applied to the campaign.
//
// Decision order:
//  1. The admin's own ad-hoc payload rule, if any. An ad-hoc denial is final;
//     an ad-hoc permit does not bypass the declarative table.
//  2. Declarative rules whose condition matches, scanned in priority-descending
//     order: the first ALLOW_BYPASS permits, the first DENY refuses.
//  3. Default permit.
func (e *Engine) CanProcess(admin string, campaignID int64, cohort []rules.AdminPayload, exemption rules.ExemptionSettings) bool {
	if payload, ok := findPayload(cohort, admin); ok {
		if !adHocPermits(payload, campaignID) {
			e.log.Debug().
				Str("admin", admin).
				Int64("campaign", campaignID).
				Str("rule_type", string(payload.RuleType)).
				Msg("denied by ad-hoc payload rule")
			return false
		}
	}

	in := Input{
		Admin:      admin,
		CampaignID: campaignID,
		Cohort:     cohortNames(cohort),
		Exemption:  exemption,
	}

	matched := make([]rules.Rule, 0, 4)
	for _, r := range e.ctx.ActiveRules() {
		if Evaluate(r.Condition, in) {
			matched = append(matched, r)
		}
	}
	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].Priority > matched[j].Priority
	})

	for _, r := range matched {
		switch r.Action.Type {
		case rules.ActionAllowBypass:
			return true
		case rules.ActionDeny:
			e.log.Debug().
				Str("admin", admin).
				Int64("campaign", campaignID).
				Str("rule", r.ID).
				Msg("denied by declarative rule")
			return false
		}
	}
	return true
}

// FilterAdmins returns the cohort members permitted to act on the campaign,
// preserving cohort order.
func (e *Engine) FilterAdmins(cohort []rules.AdminPayload, campaignID int64, exemption rules.ExemptionSettings) []string {
	permitted := make([]string, 0, len(cohort))
	for _, p := range cohort {
		if e.CanProcess(p.Name, campaignID, cohort, exemption) {
			permitted = append(permitted, p.Name)
		}
	}
	return permitted
}

// adHocPermits applies one admin's payload rule to a campaign.
func adHocPermits(p rules.AdminPayload, campaignID int64) bool {
	switch p.RuleType {
	case rules.AdHocInclude:
		return p.CampaignID == campaignID
	case rules.AdHocExclude:
		return p.CampaignID != campaignID
	default:
		return true
	}
}

func findPayload(cohort []rules.AdminPayload, admin string) (rules.AdminPayload, bool) {
	for _, p := range cohort {
		if p.Name == admin {
			return p, true
		}
	}
	return rules.AdminPayload{}, false
}

func cohortNames(cohort []rules.AdminPayload) []string {
	names := make([]string, len(cohort))
	for i, p := range cohort {
		names[i] = p.Name
	}
	return names
}
