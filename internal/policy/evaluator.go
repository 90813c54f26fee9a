// Package policy decides whether an admin may be applied to a campaign.
// It layers per-request ad-hoc constraints over a declarative rule table and
// always produces a decision: malformed rule input degrades to non-matching
// conditions, never to a panic or a silent permit.
package policy

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/anurisatria/assignd/internal/rules"
)

// Input carries everything a condition may inspect. Evaluation is a pure
// function of this value; sibling conditions are order-independent.
type Input struct {
	Admin      string
	CampaignID int64
	Cohort     []string
	Exemption  rules.ExemptionSettings
}

// Evaluate reports whether the condition tree matches the input.
// Unknown condition kinds evaluate to false so that a typo in a rule file can
// never widen access.
func Evaluate(c rules.Condition, in Input) bool {
	switch c.Type {
	case rules.CondAnd:
		for _, sub := range c.Conditions {
			if !Evaluate(sub, in) {
				return false
			}
		}
		return true
	case rules.CondOr:
		for _, sub := range c.Conditions {
			if Evaluate(sub, in) {
				return true
			}
		}
		return false
	case rules.CondNot:
		if c.Condition == nil {
			return false
		}
		return !Evaluate(*c.Condition, in)
	case rules.CondAdmin:
		return matchAdmin(c, in.Admin)
	case rules.CondCampaign:
		return matchCampaign(c, in.CampaignID)
	case rules.CondCohortHas:
		return cohortContains(c.Value, in.Cohort)
	case rules.CondCohortLarger:
		limit, ok := toInt(c.Value)
		return ok && len(in.Cohort) > limit
	case rules.CondAdminIsExempt:
		return in.Exemption.ExemptAdmin != "" && in.Exemption.ExemptAdmin == in.Admin
	default:
		return false
	}
}

func matchAdmin(c rules.Condition, admin string) bool {
	switch c.Operator {
	case rules.OpNeq:
		v, ok := toString(c.Value)
		return ok && admin != v
	case rules.OpIn:
		list, ok := toStringList(c.Value)
		if !ok {
			return false
		}
		for _, v := range list {
			if admin == v {
				return true
			}
		}
		return false
	default: // == is the implied operator
		v, ok := toString(c.Value)
		return ok && admin == v
	}
}

func matchCampaign(c rules.Condition, campaignID int64) bool {
	v, ok := toCampaignID(c.Value)
	if !ok {
		return false
	}
	if c.Operator == rules.OpNeq {
		return campaignID != v
	}
	return campaignID == v
}

func cohortContains(value any, cohort []string) bool {
	inCohort := func(name string) bool {
		for _, member := range cohort {
			if member == name {
				return true
			}
		}
		return false
	}

	if list, ok := toStringList(value); ok {
		for _, name := range list {
			if !inCohort(name) {
				return false
			}
		}
		return true
	}
	name, ok := toString(value)
	return ok && inCohort(name)
}

func toString(v any) (string, bool) {
	s, ok := v.(string)
	return s, ok
}

func toStringList(v any) ([]string, bool) {
	switch values := v.(type) {
	case []string:
		return values, true
	case []any:
		result := make([]string, 0, len(values))
		for _, item := range values {
			s, ok := item.(string)
			if !ok {
				return nil, false
			}
			result = append(result, s)
		}
		return result, true
	default:
		return nil, false
	}
}

// toCampaignID coerces rule values to an integer campaign id. The upstream
// application is loose about string versus number ids, so both are accepted.
func toCampaignID(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case float64:
		return int64(n), true
	case json.Number:
		i, err := n.Int64()
		return i, err == nil
	case string:
		i, err := strconv.ParseInt(strings.TrimSpace(n), 10, 64)
		return i, err == nil
	default:
		return 0, false
	}
}

func toInt(v any) (int, bool) {
	i, ok := toCampaignID(v)
	return int(i), ok
}
