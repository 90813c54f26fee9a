package rules

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyID is returned when a rule has no identifier.
	ErrEmptyID = errors.New("rule id is required")
	// ErrUnknownAction is returned for actions other than DENY and ALLOW_BYPASS.
	ErrUnknownAction = errors.New("unknown action type")
)

// Validate checks a rule for structural problems before it is installed.
// The evaluator itself is total and fails closed, so validation exists to
// surface operator mistakes early, not to protect the engine.
func Validate(r Rule) error {
	if r.ID == "" {
		return ErrEmptyID
	}
	if r.Action.Type != ActionDeny && r.Action.Type != ActionAllowBypass {
		return fmt.Errorf("rule %q: %w: %q", r.ID, ErrUnknownAction, r.Action.Type)
	}
	if err := validateCondition(r.Condition); err != nil {
		return fmt.Errorf("rule %q: %w", r.ID, err)
	}
	return nil
}

// ValidateAll validates every rule and reports duplicate ids.
func ValidateAll(rs []Rule) error {
	seen := make(map[string]struct{}, len(rs))
	for _, r := range rs {
		if err := Validate(r); err != nil {
			return err
		}
		if _, dup := seen[r.ID]; dup {
			return fmt.Errorf("duplicate rule id %q", r.ID)
		}
		seen[r.ID] = struct{}{}
	}
	return nil
}

func validateCondition(c Condition) error {
	switch c.Type {
	case CondAnd, CondOr:
		for i, sub := range c.Conditions {
			if err := validateCondition(sub); err != nil {
				return fmt.Errorf("conditions[%d]: %w", i, err)
			}
		}
		return nil
	case CondNot:
		if c.Condition == nil {
			return errors.New("NOT condition requires a nested condition")
		}
		return validateCondition(*c.Condition)
	case CondAdmin:
		switch c.Operator {
		case "", OpEq, OpNeq, OpIn:
		default:
			return fmt.Errorf("ADMIN condition: unsupported operator %q", c.Operator)
		}
		if c.Value == nil {
			return errors.New("ADMIN condition requires a value")
		}
		return nil
	case CondCampaign:
		switch c.Operator {
		case "", OpEq, OpNeq:
		default:
			return fmt.Errorf("CAMPAIGN condition: unsupported operator %q", c.Operator)
		}
		if c.Value == nil {
			return errors.New("CAMPAIGN condition requires a value")
		}
		return nil
	case CondCohortHas:
		if c.Value == nil {
			return errors.New("ALL_SELECTED_ADMINS_CONTAINS condition requires a value")
		}
		return nil
	case CondCohortLarger:
		if c.Value == nil {
			return errors.New("ALL_SELECTED_ADMINS_COUNT_GREATER_THAN condition requires a value")
		}
		return nil
	case CondAdminIsExempt:
		return nil
	default:
		return fmt.Errorf("unknown condition type %q", c.Type)
	}
}
