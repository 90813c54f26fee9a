// Package planner partitions a run's campaigns by the admin subset permitted
// to act on each, so every unique subset becomes a single automation pass.
package planner

import (
	"fmt"
	"sort"
	"strings"

	"github.com/cespare/xxhash/v2"

	"github.com/anurisatria/assignd/internal/policy"
	"github.com/anurisatria/assignd/internal/rules"
)

// Entry is the dry-run view for one campaign.
type Entry struct {
	CampaignID       int64    `json:"campaignId"`
	ProcessingAdmins []string `json:"processingAdmins"`
	ExcludedAdmins   []string `json:"excludedAdmins"`
	Skipped          bool     `json:"skipped,omitempty"`
}

// Group is a set of campaigns sharing an identical resolved admin subset.
// Admins are sorted; a group's admin set is never empty.
type Group struct {
	Admins    []string `json:"admins"`
	Campaigns []int64  `json:"campaigns"`
}

// Fingerprint returns a short stable identifier for the group's admin set,
// used in logs and metrics labels.
func (g Group) Fingerprint() string {
	return fmt.Sprintf("%08x", xxhash.Sum64String(strings.Join(g.Admins, ","))&0xffffffff)
}

// Planner resolves permitted admin subsets through the policy engine.
type Planner struct {
	engine *policy.Engine
}

// New creates a Planner over the given policy engine.
func New(engine *policy.Engine) *Planner {
	return &Planner{engine: engine}
}

// Plan produces one entry per campaign in input order without side effects.
// Campaigns left with no permitted admins are marked skipped.
func (p *Planner) Plan(cohort []rules.AdminPayload, campaignIDs []int64, exemption rules.ExemptionSettings) []Entry {
	all := names(cohort)
	entries := make([]Entry, 0, len(campaignIDs))
	for _, id := range campaignIDs {
		processing := p.engine.FilterAdmins(cohort, id, exemption)
		entries = append(entries, Entry{
			CampaignID:       id,
			ProcessingAdmins: processing,
			ExcludedAdmins:   difference(all, processing),
			Skipped:          len(processing) == 0,
		})
	}
	return entries
}

// Groups partitions the campaigns by identical resolved admin subset.
// Admin names inside a group are sorted so the grouping is deterministic for
// any cohort order; groups appear in first-campaign-seen order. Campaigns
// with an empty resolved subset appear in no group.
func (p *Planner) Groups(cohort []rules.AdminPayload, campaignIDs []int64, exemption rules.ExemptionSettings) []Group {
	byKey := make(map[string]int)
	groups := make([]Group, 0, 2)

	for _, id := range campaignIDs {
		processing := p.engine.FilterAdmins(cohort, id, exemption)
		if len(processing) == 0 {
			continue
		}
		sort.Strings(processing)
		key := strings.Join(processing, ",")

		idx, ok := byKey[key]
		if !ok {
			idx = len(groups)
			byKey[key] = idx
			groups = append(groups, Group{Admins: processing})
		}
		groups[idx].Campaigns = append(groups[idx].Campaigns, id)
	}
	return groups
}

func names(cohort []rules.AdminPayload) []string {
	ns := make([]string, len(cohort))
	for i, p := range cohort {
		ns[i] = p.Name
	}
	return ns
}

func difference(all, subset []string) []string {
	in := make(map[string]struct{}, len(subset))
	for _, s := range subset {
		in[s] = struct{}{}
	}
	out := make([]string, 0, len(all)-len(subset))
	for _, s := range all {
		if _, ok := in[s]; !ok {
			out = append(out, s)
		}
	}
	return out
}
