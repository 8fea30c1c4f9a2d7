package http

import (
	"net/http"

	"github.com/viralforge/mesh/services/core-platform/two-factor-auth-service/internal/application"
)

func (h *Handler) forgotPassword(w http.ResponseWriter, r *http.Request) {
	var req application.ForgotPasswordRequest
	if err := decodeBody(r, &req); err != nil {
		writeValidationError(r.Context(), w, "forgot_password", err)
		return
	}
	if err := h.service.ForgotPassword(r.Context(), req); err != nil {
		writeMappedError(r.Context(), w, "forgot_password", err)
		return
	}
	writeMessage(w, http.StatusOK, "If the account exists, a reset link has been sent")
}

func (h *Handler) resetPassword(w http.ResponseWriter, r *http.Request) {
	var req application.ResetPasswordRequest
	if err := decodeBody(r, &req); err != nil {
		writeValidationError(r.Context(), w, "reset_password", err)
		return
	}
	res, err := h.service.ResetPassword(r.Context(), req)
	if err != nil {
		writeMappedError(r.Context(), w, "reset_password", err)
		return
	}
	if !res.Succeeded {
		logHTTPOperationError(r.Context(), "reset_password", http.StatusBadRequest, "RESET_FAILED", "password reset failed", nil)
		writeErrorDetails(w, http.StatusBadRequest, "RESET_FAILED", "password reset failed", res.Errors)
		return
	}
	writeSuccess(w, http.StatusOK, res)
}

func (h *Handler) changePassword(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r, "change_password")
	if !ok {
		return
	}
	var req application.ChangePasswordRequest
	if err := decodeBody(r, &req); err != nil {
		writeValidationError(r.Context(), w, "change_password", err)
		return
	}
	if err := h.service.ChangePassword(r.Context(), userID, req); err != nil {
		writeMappedError(r.Context(), w, "change_password", err)
		return
	}
	writeMessage(w, http.StatusOK, "password changed")
}
