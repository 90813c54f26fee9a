package commands

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/anurisatria/assignd/internal/client"
	"github.com/anurisatria/assignd/internal/rules"
)

// buildRunRequest assembles the cohort payload shared by the plan and run
// commands from the --admins, --include, --exclude and --exempt flags.
func buildRunRequest(admins string, includes, excludes []string, exempt, timeOfDay string) (client.RunRequest, error) {
	var req client.RunRequest

	names := splitNames(admins)
	if len(names) == 0 {
		return req, fmt.Errorf("--admins requires at least one admin name")
	}

	payloads := make([]rules.AdminPayload, len(names))
	for i, name := range names {
		payloads[i] = rules.AdminPayload{Name: name}
	}

	apply := func(specs []string, ruleType rules.AdHocRuleType) error {
		for _, spec := range specs {
			name, campaignID, err := parseAdHocSpec(spec)
			if err != nil {
				return err
			}
			found := false
			for i := range payloads {
				if payloads[i].Name == name {
					payloads[i].RuleType = ruleType
					payloads[i].CampaignID = campaignID
					found = true
					break
				}
			}
			if !found {
				return fmt.Errorf("admin '%s' in --%s is not part of --admins", name, ruleType)
			}
		}
		return nil
	}
	if err := apply(includes, rules.AdHocInclude); err != nil {
		return req, err
	}
	if err := apply(excludes, rules.AdHocExclude); err != nil {
		return req, err
	}

	req.AdminPayloads = payloads
	req.TimeOfDay = timeOfDay
	req.ExemptionSettings = rules.ExemptionSettings{ExemptAdmin: exempt}
	return req, nil
}

func splitNames(admins string) []string {
	var names []string
	for _, part := range strings.Split(admins, ",") {
		if name := strings.TrimSpace(part); name != "" {
			names = append(names, name)
		}
	}
	return names
}

// parseAdHocSpec parses "admin name=campaignID".
func parseAdHocSpec(spec string) (string, int64, error) {
	name, idStr, ok := strings.Cut(spec, "=")
	if !ok {
		return "", 0, fmt.Errorf("invalid spec '%s', expected 'admin name=campaignID'", spec)
	}
	campaignID, err := strconv.ParseInt(strings.TrimSpace(idStr), 10, 64)
	if err != nil {
		return "", 0, fmt.Errorf("invalid campaign id in '%s': %w", spec, err)
	}
	return strings.TrimSpace(name), campaignID, nil
}
