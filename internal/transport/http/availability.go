package http

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/bernardodieta/bookingApp-sub001/internal/app"
	"github.com/bernardodieta/bookingApp-sub001/internal/domain"
	"github.com/go-chi/chi/v5"
)

// RuleWriter creates availability rules.
type RuleWriter interface {
	CreateRule(rctx context.Context, in app.CreateRuleInput) (domain.AvailabilityRule, error)
}

// HandleCreateRule returns an HTTP handler for adding an availability rule.
func HandleCreateRule(svc RuleWriter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		staffID := chi.URLParam(r, "staffID")

		var req createRuleRequest
		dec := json.NewDecoder(r.Body)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
			return
		}

		rule, err := svc.CreateRule(r.Context(), app.CreateRuleInput{
			TenantID:    TenantID(r),
			StaffID:     staffID,
			Weekday:     time.Weekday(req.Weekday),
			StartMinute: req.StartMinute,
			EndMinute:   req.EndMinute,
		})
		if err != nil {
			switch err {
			case domain.ErrInvalidRule:
				writeError(w, http.StatusBadRequest, codeInvalidRule, err.Error())
			case domain.ErrInvalidID:
				writeError(w, http.StatusBadRequest, codeInvalidID, err.Error())
			default:
				writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
			}
			return
		}

		writeJSON(w, http.StatusCreated, ruleResponse{
			ID:          rule.ID,
			Weekday:     int(rule.Weekday),
			StartMinute: rule.StartMinute,
			EndMinute:   rule.EndMinute,
			Active:      rule.Active,
		})
	}
}

// RuleReader lists a staff member's availability rules.
type RuleReader interface {
	ListRules(rctx context.Context, tenantID, staffID string) ([]domain.AvailabilityRule, error)
}

// HandleListRules returns an HTTP handler for listing availability rules.
func HandleListRules(svc RuleReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		staffID := chi.URLParam(r, "staffID")

		rules, err := svc.ListRules(r.Context(), TenantID(r), staffID)
		if err != nil {
			if err == domain.ErrInvalidID {
				writeError(w, http.StatusBadRequest, codeInvalidID, err.Error())
				return
			}
			writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
			return
		}

		resp := make([]ruleResponse, 0, len(rules))
		for _, rule := range rules {
			resp = append(resp, ruleResponse{
				ID:          rule.ID,
				Weekday:     int(rule.Weekday),
				StartMinute: rule.StartMinute,
				EndMinute:   rule.EndMinute,
				Active:      rule.Active,
			})
		}
		writeJSON(w, http.StatusOK, map[string][]ruleResponse{"rules": resp})
	}
}

type createRuleRequest struct {
	Weekday     int `json:"weekday"`
	StartMinute int `json:"start_minute"`
	EndMinute   int `json:"end_minute"`
}

type ruleResponse struct {
	ID          string `json:"id"`
	Weekday     int    `json:"weekday"`
	StartMinute int    `json:"start_minute"`
	EndMinute   int    `json:"end_minute"`
	Active      bool   `json:"active"`
}
