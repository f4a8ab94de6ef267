package http

import (
	"encoding/json"
	"net/http"
)

const (
	codeMethodNotAllowed         = "method_not_allowed"
	codeNotFound                 = "not_found"
	codeInvalidRequestBody       = "invalid_request_body"
	codeMissingRequiredField     = "missing_required_field"
	codeMissingTenant            = "tenant_header_required"
	codeInvalidDate              = "invalid_date"
	codeInvalidID                = "invalid_id"
	codeInvalidLimit             = "invalid_limit"
	codeInvalidCursor            = "invalid_cursor"
	codeInvalidAction            = "invalid_action"
	codeNoteTooLong              = "note_too_long"
	codeInvalidRule              = "invalid_rule"
	codeInvalidAmount            = "invalid_amount"
	codeInvalidCheckoutMode      = "invalid_checkout_mode"
	codeSlotConflict             = "slot_conflict"
	codeBookingNotFound          = "booking_not_found"
	codeServiceNotFound          = "service_not_found"
	codeTenantNotFound           = "tenant_not_found"
	codeConflictNotFound         = "conflict_not_found"
	codeEntryNotFound            = "waitlist_entry_not_found"
	codeEntryNotNotified         = "waitlist_entry_not_notified"
	codeIntegrationNotConfigured = "integration_not_configured"
	codeSignatureInvalid         = "signature_invalid"
	codeForbidden                = "forbidden"
	codeInternalError            = "internal_error"
)

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	payload, err := json.Marshal(errorResponse{
		Error: msg,
		Code:  code,
	})
	if err != nil {
		_, _ = w.Write([]byte(`{"error":"internal error","code":"internal_error"}`))
		return
	}
	_, _ = w.Write(payload)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
