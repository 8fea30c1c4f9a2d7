package http

import (
	"net/http"

	"github.com/viralforge/mesh/services/core-platform/two-factor-auth-service/internal/application"
	"github.com/viralforge/mesh/services/core-platform/two-factor-auth-service/internal/domain"
)

type abandonRequest struct {
	PendingToken string `json:"pending_token"`
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var req application.LoginRequest
	if err := decodeBody(r, &req); err != nil {
		writeValidationError(r.Context(), w, "login", err)
		return
	}
	if req.DeviceStamp == "" {
		req.DeviceStamp = r.Header.Get(deviceStampHeader)
	}

	res, err := h.service.SignIn(r.Context(), req)
	h.writeSignInResult(w, r, "login", res, err)
}

func (h *Handler) loginTwoFactor(w http.ResponseWriter, r *http.Request) {
	var req application.SecondFactorRequest
	if err := decodeBody(r, &req); err != nil {
		writeValidationError(r.Context(), w, "login_2fa", err)
		return
	}
	res, err := h.service.CompleteTwoFactorSignIn(r.Context(), req)
	h.writeSignInResult(w, r, "login_2fa", res, err)
}

func (h *Handler) loginRecoveryCode(w http.ResponseWriter, r *http.Request) {
	var req application.SecondFactorRequest
	if err := decodeBody(r, &req); err != nil {
		writeValidationError(r.Context(), w, "login_recovery", err)
		return
	}
	res, err := h.service.CompleteRecoveryCodeSignIn(r.Context(), req)
	h.writeSignInResult(w, r, "login_recovery", res, err)
}

func (h *Handler) loginAbandon(w http.ResponseWriter, r *http.Request) {
	var req abandonRequest
	if err := decodeBody(r, &req); err != nil {
		writeValidationError(r.Context(), w, "login_abandon", err)
		return
	}
	if err := h.service.AbandonSignIn(r.Context(), req.PendingToken); err != nil {
		writeMappedError(r.Context(), w, "login_abandon", err)
		return
	}
	writeMessage(w, http.StatusOK, "sign-in abandoned")
}

// writeSignInResult answers 200 for Authenticated and 202 while a second factor is owed.
// A rejected code that leaves the session alive reports the remaining attempts.
func (h *Handler) writeSignInResult(w http.ResponseWriter, r *http.Request, operation string, res application.SignInResult, err error) {
	if err != nil {
		status, code, msg := mapDomainError(err)
		logHTTPOperationError(r.Context(), operation, status, code, msg, err)
		if res.State == domain.SignInAwaitingSecondFactor && res.AttemptsRemaining > 0 {
			writeErrorDetails(w, status, code, msg, map[string]any{
				"state":              res.State,
				"attempts_remaining": res.AttemptsRemaining,
			})
			return
		}
		writeError(w, status, code, msg)
		return
	}
	if res.State == domain.SignInAwaitingSecondFactor {
		writeSuccess(w, http.StatusAccepted, res)
		return
	}
	if res.DeviceStamp != "" {
		w.Header().Set(deviceStampHeader, res.DeviceStamp)
	}
	writeSuccess(w, http.StatusOK, res)
}
