package http

import "net/http"

type codeRequest struct {
	Code string `json:"code"`
}

type enabledRequest struct {
	Enabled bool `json:"enabled"`
}

func (h *Handler) twoFactorStatus(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r, "two_factor_status")
	if !ok {
		return
	}
	res, err := h.service.TwoFactorStatus(r.Context(), userID, r.Header.Get(deviceStampHeader))
	if err != nil {
		writeMappedError(r.Context(), w, "two_factor_status", err)
		return
	}
	writeSuccess(w, http.StatusOK, res)
}

func (h *Handler) getTwoFactorEnabled(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r, "get_two_factor_enabled")
	if !ok {
		return
	}
	enabled, err := h.service.GetTwoFactorEnabled(r.Context(), userID)
	if err != nil {
		writeMappedError(r.Context(), w, "get_two_factor_enabled", err)
		return
	}
	writeSuccess(w, http.StatusOK, map[string]bool{"enabled": enabled})
}

func (h *Handler) setTwoFactorEnabled(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r, "set_two_factor_enabled")
	if !ok {
		return
	}
	var req enabledRequest
	if err := decodeBody(r, &req); err != nil {
		writeValidationError(r.Context(), w, "set_two_factor_enabled", err)
		return
	}
	res, err := h.service.SetTwoFactorEnabled(r.Context(), userID, req.Enabled)
	if err != nil {
		writeMappedError(r.Context(), w, "set_two_factor_enabled", err)
		return
	}
	writeSuccess(w, http.StatusOK, res)
}

func (h *Handler) loadAuthenticator(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r, "load_authenticator")
	if !ok {
		return
	}
	res, err := h.service.LoadSharedKeyAndQrCodeUri(r.Context(), userID)
	if err != nil {
		writeMappedError(r.Context(), w, "load_authenticator", err)
		return
	}
	writeSuccess(w, http.StatusOK, res)
}

func (h *Handler) verifyAuthenticator(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r, "verify_authenticator")
	if !ok {
		return
	}
	var req codeRequest
	if err := decodeBody(r, &req); err != nil {
		writeValidationError(r.Context(), w, "verify_authenticator", err)
		return
	}
	res, err := h.service.VerifyAuthenticator(r.Context(), userID, req.Code)
	if err != nil {
		writeMappedError(r.Context(), w, "verify_authenticator", err)
		return
	}
	writeSuccess(w, http.StatusOK, res)
}

func (h *Handler) resetAuthenticator(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r, "reset_authenticator")
	if !ok {
		return
	}
	if err := h.service.ResetAuthenticator(r.Context(), userID); err != nil {
		writeMappedError(r.Context(), w, "reset_authenticator", err)
		return
	}
	writeMessage(w, http.StatusOK, "authenticator reset; verify a new authenticator to re-enable 2FA")
}

func (h *Handler) verifyTwoFactorToken(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r, "verify_two_factor_token")
	if !ok {
		return
	}
	var req codeRequest
	if err := decodeBody(r, &req); err != nil {
		writeValidationError(r.Context(), w, "verify_two_factor_token", err)
		return
	}
	verified, err := h.service.VerifyTwoFactorToken(r.Context(), userID, req.Code)
	if err != nil {
		writeMappedError(r.Context(), w, "verify_two_factor_token", err)
		return
	}
	writeSuccess(w, http.StatusOK, map[string]bool{"verified": verified})
}

func (h *Handler) generateRecoveryCodes(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r, "generate_recovery_codes")
	if !ok {
		return
	}
	codes, err := h.service.GenerateRecoveryCodes(r.Context(), userID)
	if err != nil {
		writeMappedError(r.Context(), w, "generate_recovery_codes", err)
		return
	}
	writeSuccess(w, http.StatusOK, map[string][]string{"recovery_codes": codes})
}

func (h *Handler) recoveryCodesStatus(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r, "recovery_codes_status")
	if !ok {
		return
	}
	res, err := h.service.CheckRecoveryCodesStatus(r.Context(), userID)
	if err != nil {
		writeMappedError(r.Context(), w, "recovery_codes_status", err)
		return
	}
	writeSuccess(w, http.StatusOK, res)
}

func (h *Handler) redeemRecoveryCode(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r, "redeem_recovery_code")
	if !ok {
		return
	}
	var req codeRequest
	if err := decodeBody(r, &req); err != nil {
		writeValidationError(r.Context(), w, "redeem_recovery_code", err)
		return
	}
	succeeded, err := h.service.RedeemTwoFactorRecoveryCode(r.Context(), userID, req.Code)
	if err != nil {
		writeMappedError(r.Context(), w, "redeem_recovery_code", err)
		return
	}
	writeSuccess(w, http.StatusOK, map[string]bool{"succeeded": succeeded})
}

func (h *Handler) forgetClient(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r, "forget_client")
	if !ok {
		return
	}
	if err := h.service.ForgetTwoFactorClient(r.Context(), userID); err != nil {
		writeMappedError(r.Context(), w, "forget_client", err)
		return
	}
	writeMessage(w, http.StatusOK, "remembered devices forgotten")
}

func (h *Handler) rememberClient(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r, "remember_client")
	if !ok {
		return
	}
	res, err := h.service.RememberClient(r.Context(), userID)
	if err != nil {
		writeMappedError(r.Context(), w, "remember_client", err)
		return
	}
	writeSuccess(w, http.StatusOK, res)
}
