package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/viralforge/mesh/services/core-platform/two-factor-auth-service/internal/application"
)

// Handler is the HTTP adapter over the application facade.
type Handler struct {
	service *application.Service
	limiter *IPRateLimiter
	ready   func() error
}

// NewHandler binds the facade. A nil limiter disables per-IP throttling and a nil
// ready probe always reports ready.
func NewHandler(service *application.Service, limiter *IPRateLimiter, ready func() error) *Handler {
	return &Handler{service: service, limiter: limiter, ready: ready}
}

// NewRouter registers the sign-in, password and 2FA management routes.
func NewRouter(handler *Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(recoverMiddleware)
	r.Use(loggingMiddleware)

	r.Get("/healthz", handler.healthz)
	r.Get("/readyz", handler.readyz)

	r.Route("/auth/v1", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(handler.rateLimitMiddleware)
			r.Post("/login", handler.login)
			r.Post("/login/2fa", handler.loginTwoFactor)
			r.Post("/login/recovery", handler.loginRecoveryCode)
			r.Post("/login/abandon", handler.loginAbandon)
			r.Post("/password/forgot", handler.forgotPassword)
			r.Post("/password/reset", handler.resetPassword)
		})

		r.Group(func(r chi.Router) {
			r.Use(handler.authMiddleware)
			r.Post("/password/change", handler.changePassword)
			r.Get("/2fa", handler.twoFactorStatus)
			r.Get("/2fa/enabled", handler.getTwoFactorEnabled)
			r.Post("/2fa/enabled", handler.setTwoFactorEnabled)
			r.Get("/2fa/authenticator", handler.loadAuthenticator)
			r.Post("/2fa/authenticator/verify", handler.verifyAuthenticator)
			r.Post("/2fa/authenticator/reset", handler.resetAuthenticator)
			r.Post("/2fa/verify", handler.verifyTwoFactorToken)
			r.Post("/2fa/recovery-codes", handler.generateRecoveryCodes)
			r.Get("/2fa/recovery-codes/status", handler.recoveryCodesStatus)
			r.Post("/2fa/recovery-codes/redeem", handler.redeemRecoveryCode)
			r.Post("/2fa/forget-client", handler.forgetClient)
			r.Get("/2fa/remember-client", handler.rememberClient)
		})
	})

	return r
}

func (h *Handler) healthz(w http.ResponseWriter, _ *http.Request) {
	writeMessage(w, http.StatusOK, "ok")
}

func (h *Handler) readyz(w http.ResponseWriter, r *http.Request) {
	if h.ready != nil {
		if err := h.ready(); err != nil {
			logHTTPOperationError(r.Context(), "readyz", http.StatusServiceUnavailable, "NOT_READY", "dependencies unavailable", err)
			writeError(w, http.StatusServiceUnavailable, "NOT_READY", "dependencies unavailable")
			return
		}
	}
	writeMessage(w, http.StatusOK, "ready")
}
