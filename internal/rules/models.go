package rules

// ConditionType tags one node of a condition tree.
type ConditionType string

// Supported condition kinds (string values for clean JSON serialization).
const (
	CondAnd           ConditionType = "AND"
	CondOr            ConditionType = "OR"
	CondNot           ConditionType = "NOT"
	CondAdmin         ConditionType = "ADMIN"
	CondCampaign      ConditionType = "CAMPAIGN"
	CondCohortHas     ConditionType = "ALL_SELECTED_ADMINS_CONTAINS"
	CondCohortLarger  ConditionType = "ALL_SELECTED_ADMINS_COUNT_GREATER_THAN"
	CondAdminIsExempt ConditionType = "ADMIN_IS_EXEMPT"
)

// Operator represents a comparison operator used in ADMIN and CAMPAIGN conditions.
type Operator string

const (
	OpEq  Operator = "=="
	OpNeq Operator = "!="
	OpIn  Operator = "IN"
)

// Condition is one node of a rule's condition tree. The set of kinds is
// closed: the evaluator matches on Type exhaustively and treats anything
// else as non-matching, so an unrecognized kind can never grant access.
//
// Field usage by kind:
//   - AND / OR: Conditions
//   - NOT: Condition
//   - ADMIN: Operator (default ==), Value (admin name, or list for IN)
//   - CAMPAIGN: Operator (default ==), Value (campaign id; numeric strings accepted)
//   - ALL_SELECTED_ADMINS_CONTAINS: Value (admin name or list of names)
//   - ALL_SELECTED_ADMINS_COUNT_GREATER_THAN: Value (count)
//   - ADMIN_IS_EXEMPT: no fields
type Condition struct {
	Type       ConditionType `json:"type"`
	Operator   Operator      `json:"operator,omitempty"`
	Value      any           `json:"value,omitempty"`
	Conditions []Condition   `json:"conditions,omitempty"`
	Condition  *Condition    `json:"condition,omitempty"`
}

// ActionType is the terminal effect of a matching rule.
type ActionType string

const (
	// ActionDeny refuses the (admin, campaign) pairing.
	ActionDeny ActionType = "DENY"
	// ActionAllowBypass permits the pairing and short-circuits any
	// lower-priority DENY rules that would otherwise also match.
	ActionAllowBypass ActionType = "ALLOW_BYPASS"
)

// Action wraps the action type; kept as a struct to match the rule file format.
type Action struct {
	Type ActionType `json:"type"`
}

// Rule is one declarative entry of the restriction table.
// Higher Priority rules are applied first; the first matching rule with a
// terminal action wins.
type Rule struct {
	ID          string    `json:"id"`
	Description string    `json:"description,omitempty"`
	Condition   Condition `json:"condition"`
	Action      Action    `json:"action"`
	Priority    int       `json:"priority"`
}

// AdHocRuleType is the per-request constraint a caller may attach to one admin.
type AdHocRuleType string

const (
	AdHocNone    AdHocRuleType = ""
	AdHocInclude AdHocRuleType = "include"
	AdHocExclude AdHocRuleType = "exclude"
)

// AdminPayload describes one admin's participation in a run: the name plus an
// optional ad-hoc include/exclude constraint scoped to a single campaign.
type AdminPayload struct {
	Name       string        `json:"name"`
	RuleType   AdHocRuleType `json:"ruleType,omitempty"`
	CampaignID int64         `json:"campaignId,omitempty"`
}

// ExemptionSettings names at most one admin carved out of conditional
// restrictions for the current run. Consumed only by ADMIN_IS_EXEMPT.
type ExemptionSettings struct {
	ExemptAdmin string `json:"exemptAdmin,omitempty"`
}
