package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/anurisatria/assignd/internal/config"
	"github.com/anurisatria/assignd/internal/jobs"
	"github.com/anurisatria/assignd/internal/rules"
)

// ---- run ----

type runRequest struct {
	AdminPayloads      []rules.AdminPayload     `json:"adminPayloads"`
	TimeOfDay          string                   `json:"timeOfDay"`
	CampaignSelections *jobs.CampaignSelections `json:"campaignSelections,omitempty"`
	ExemptionSettings  rules.ExemptionSettings  `json:"exemptionSettings"`
}

type runResponse struct {
	JobID   string `json:"jobId"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	var req runRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequestError(w, r, ErrCodeInvalidJSON, "invalid JSON body")
		return
	}
	if req.TimeOfDay == "" {
		req.TimeOfDay = config.TimeManual
	}
	if fields := validateCohort(req.AdminPayloads, req.TimeOfDay); len(fields) > 0 {
		ValidationError(w, r, "invalid run request", fields)
		return
	}

	// Scheduled slots target the regular campaign set by default; a manual
	// run has to opt in explicitly.
	selections := jobs.CampaignSelections{
		Regular: jobs.RegularSelection{
			Selected: req.TimeOfDay != config.TimeManual,
			Time:     req.TimeOfDay,
		},
	}
	if req.CampaignSelections != nil {
		selections = *req.CampaignSelections
	}

	jobID, err := s.runner.Run(req.AdminPayloads, req.TimeOfDay, selections, req.ExemptionSettings)
	if err != nil {
		s.log.Error().Err(err).Msg("start automation")
		InternalError(w, r, "failed to start automation")
		return
	}

	writeJSON(w, http.StatusOK, runResponse{
		JobID:   jobID,
		Status:  string(jobs.StatusRunning),
		Message: "Automation started",
	})
}

// ---- plan preview ----

type planRequest struct {
	AdminPayloads     []rules.AdminPayload    `json:"adminPayloads"`
	TimeOfDay         string                  `json:"timeOfDay"`
	ExemptionSettings rules.ExemptionSettings `json:"exemptionSettings"`
}

func (s *Server) handleCheckPlan(w http.ResponseWriter, r *http.Request) {
	var req planRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequestError(w, r, ErrCodeInvalidJSON, "invalid JSON body")
		return
	}
	if req.TimeOfDay == "" {
		req.TimeOfDay = config.TimeManual
	}
	if fields := validateCohort(req.AdminPayloads, req.TimeOfDay); len(fields) > 0 {
		ValidationError(w, r, "invalid plan request", fields)
		return
	}

	campaigns := config.CampaignIDsFor(s.cfg.Env, req.TimeOfDay)
	plan := s.planner.Plan(req.AdminPayloads, campaigns, req.ExemptionSettings)
	writeJSON(w, http.StatusOK, map[string]any{"plan": plan})
}

// ---- jobs ----

func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	list, err := s.jobs.List(r.Context())
	if err != nil {
		InternalError(w, r, "failed to list jobs")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"jobs": list})
}

func (s *Server) handleJobStatus(w http.ResponseWriter, r *http.Request) {
	job, err := s.jobs.Get(r.Context(), chi.URLParam(r, "jobID"))
	if err != nil {
		if errors.Is(err, jobs.ErrNotFound) {
			NotFoundError(w, r, "job not found")
			return
		}
		InternalError(w, r, "failed to load job")
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (s *Server) handleJobLogs(w http.ResponseWriter, r *http.Request) {
	job, err := s.jobs.Get(r.Context(), chi.URLParam(r, "jobID"))
	if err != nil {
		if errors.Is(err, jobs.ErrNotFound) {
			NotFoundError(w, r, "job not found")
			return
		}
		InternalError(w, r, "failed to load job")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"jobId":  job.ID,
		"status": job.Status,
		"logs":   job.Logs,
	})
}

func (s *Server) handleCancelJob(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	if _, err := s.jobs.Get(r.Context(), jobID); err != nil {
		if errors.Is(err, jobs.ErrNotFound) {
			NotFoundError(w, r, "job not found")
			return
		}
		InternalError(w, r, "failed to load job")
		return
	}

	cancelled, err := s.runner.Cancel(jobID)
	if err != nil {
		InternalError(w, r, "failed to cancel job")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"jobId": jobID, "cancelled": cancelled})
}

// ---- rules ----

func (s *Server) handleReplaceUserRules(w http.ResponseWriter, r *http.Request) {
	var userRules []rules.Rule
	if err := json.NewDecoder(r.Body).Decode(&userRules); err != nil {
		BadRequestError(w, r, ErrCodeInvalidJSON, "invalid JSON body")
		return
	}
	if err := rules.ValidateAll(userRules); err != nil {
		BadRequestError(w, r, ErrCodeInvalidRule, err.Error())
		return
	}

	if err := s.rules.ReplaceUserRules(r.Context(), userRules); err != nil {
		s.log.Error().Err(err).Msg("persist user rules")
		InternalError(w, r, "failed to persist rules")
		return
	}
	s.policyCtx.ReplaceUserRules(userRules)

	s.log.Info().Int("rules", len(userRules)).Msg("user rules replaced")
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "count": len(userRules)})
}

// ---- metadata ----

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"version": s.version})
}

func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	slots := map[string][]int64{}
	for _, slot := range []string{config.TimePagi, config.TimeSiang, config.TimeMalam, config.TimeManual} {
		slots[slot] = config.CampaignIDsFor(s.cfg.Env, slot)
	}
	special, _ := config.SpecialCampaignFor(s.cfg.Env)

	writeJSON(w, http.StatusOK, map[string]any{
		"allowedAdminNames": config.AllowedAdminNames(),
		"campaignIds":       slots,
		"specialCampaign":   special,
		"env":               s.cfg.Env,
	})
}

func (s *Server) handleAdminRestrictions(w http.ResponseWriter, r *http.Request) {
	special, _ := config.SpecialCampaignFor(s.cfg.Env)
	writeJSON(w, http.StatusOK, map[string]any{
		"message":            "Admin restrictions are handled through declarative rules plus per-admin include/exclude payload rules.",
		"supportedRuleTypes": []string{string(rules.AdHocInclude), string(rules.AdHocExclude), "null (all campaigns)"},
		"rules":              s.policyCtx.ActiveRules(),
		"specialCampaign":    special,
	})
}

// validateCohort returns field-level validation errors for a cohort and slot.
func validateCohort(payloads []rules.AdminPayload, timeOfDay string) map[string]string {
	fields := make(map[string]string)
	if len(payloads) == 0 {
		fields["adminPayloads"] = "at least one admin is required"
	}
	for i, p := range payloads {
		if !config.AdminAllowed(p.Name) {
			fields[fmt.Sprintf("adminPayloads[%d].name", i)] = fmt.Sprintf("unknown admin name %q", p.Name)
		}
		switch p.RuleType {
		case rules.AdHocNone, rules.AdHocInclude, rules.AdHocExclude:
		default:
			fields[fmt.Sprintf("adminPayloads[%d].ruleType", i)] = fmt.Sprintf("unknown rule type %q", p.RuleType)
		}
	}
	if !config.ValidTimeOfDay(timeOfDay) {
		fields["timeOfDay"] = fmt.Sprintf("must be one of pagi, siang, malam, manual; got %q", timeOfDay)
	}
	if len(fields) == 0 {
		return nil
	}
	return fields
}
