package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"login-service/internal/clock"
	"login-service/internal/metrics"
	"login-service/internal/ratelimit"
	"login-service/internal/service"
	"login-service/internal/token"
	"login-service/internal/util"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

const maxBodyBytes = 1 << 20

// AuthEngine is implemented by service.AuthService.
type AuthEngine interface {
	Login(ctx context.Context, identity, secret string) service.LoginResult
	Status(ctx context.Context, identity string) service.StatusResult
	ResetAttempts(ctx context.Context, identity string) service.Outcome
	VerifyToken(tokenString string) (*token.Claims, bool)
}

// RecoveryEngine is implemented by service.RecoveryService.
type RecoveryEngine interface {
	Recover(ctx context.Context, req service.RecoveryRequest) service.RecoveryResult
}

// AuthHandler handles HTTP requests for login, status and password recovery
type AuthHandler struct {
	auth              AuthEngine
	recovery          RecoveryEngine
	metrics           *metrics.Metrics
	clock             clock.Clock
	minPasswordLength int
	logger            *zap.Logger
}

func NewAuthHandler(
	auth AuthEngine,
	recovery RecoveryEngine,
	m *metrics.Metrics,
	clk clock.Clock,
	minPasswordLength int,
	logger *zap.Logger,
) *AuthHandler {
	return &AuthHandler{
		auth:              auth,
		recovery:          recovery,
		metrics:           m,
		clock:             clk,
		minPasswordLength: minPasswordLength,
		logger:            logger,
	}
}

// Response represents a standard API response
type Response struct {
	Success   bool        `json:"success"`
	Data      interface{} `json:"data,omitempty"`
	Error     string      `json:"error,omitempty"`
	Message   string      `json:"message,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type RecoverPasswordRequest struct {
	Email      string `json:"email"`
	BirthDate  string `json:"birth_date"`
	FatherName string `json:"father_name"`
	MotherName string `json:"mother_name"`
}

type ResetAttemptsRequest struct {
	Email string `json:"email"`
}

type UserInfo struct {
	Email     string    `json:"email"`
	LastLogin time.Time `json:"last_login"`
}

type LoginData struct {
	Token string   `json:"token"`
	User  UserInfo `json:"user"`
}

type LockoutData struct {
	LockedUntil *time.Time `json:"locked_until,omitempty"`
}

type StatusData struct {
	Email         string     `json:"email"`
	Attempts      int        `json:"attempts"`
	MaxAttempts   int        `json:"max_attempts"`
	Locked        bool       `json:"locked"`
	LockedUntil   *time.Time `json:"locked_until,omitempty"`
	LastAttemptAt *time.Time `json:"last_attempt_at,omitempty"`
}

type RecoveryData struct {
	Email                 string `json:"email"`
	TemporaryPasswordSent bool   `json:"temporary_password_sent"`
}

type TokenUser struct {
	Email     string    `json:"email"`
	TokenID   string    `json:"token_id"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

type TokenData struct {
	User          TokenUser `json:"user"`
	Authenticated bool      `json:"authenticated"`
}

// Limits are the per-route rate limiters. A nil limiter disables that policy.
type Limits struct {
	API      ratelimit.Limiter
	Login    ratelimit.Limiter
	Recovery ratelimit.Limiter
}

// RegisterRoutes registers the auth routes. The API limiter is applied by the
// router to the whole /api/v1 group.
func (h *AuthHandler) RegisterRoutes(router chi.Router, limits Limits) {
	router.Route("/auth", func(r chi.Router) {
		r.With(h.limit(limits.Login)).Post("/login", h.Login)
		r.With(h.limit(limits.Recovery)).Post("/recover-password", h.RecoverPassword)
		r.Get("/status/{email}", h.Status)
		r.Post("/reset-attempts", h.ResetAttempts)
		r.Get("/verify-token", h.VerifyToken)
	})
}

// Login handles POST /auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	startTime := time.Now()

	var req LoginRequest
	if !h.decode(w, r, &req) {
		h.recordLogin(service.OutcomeInvalidInput)
		return
	}

	email := util.SanitizeInput(req.Email)
	switch {
	case email == "" || req.Password == "":
		h.recordLogin(service.OutcomeInvalidInput)
		h.respondWithError(w, http.StatusBadRequest, service.OutcomeInvalidInput, "Email and password are required")
		return
	case !util.IsValidEmail(email):
		h.recordLogin(service.OutcomeInvalidInput)
		h.respondWithError(w, http.StatusBadRequest, service.OutcomeInvalidInput, "Invalid email format")
		return
	case utf8.RuneCountInString(req.Password) < h.minPasswordLength:
		h.recordLogin(service.OutcomeInvalidInput)
		h.respondWithError(w, http.StatusBadRequest, service.OutcomeInvalidInput, "Password is too short")
		return
	}

	result := h.auth.Login(r.Context(), email, req.Password)
	h.recordLogin(result.Outcome)

	switch result.Outcome {
	case service.OutcomeSuccess:
		h.respondWithJSON(w, http.StatusOK, h.successResponse(LoginData{
			Token: result.Token,
			User:  UserInfo{Email: email, LastLogin: result.LastLogin},
		}, "Login successful"))
	case service.OutcomeAccountLocked:
		h.respondWithJSON(w, http.StatusForbidden, Response{
			Success:   false,
			Data:      LockoutData{LockedUntil: result.LockedUntil},
			Error:     result.Outcome.String(),
			Message:   "Account locked after too many failed attempts. Try again later",
			Timestamp: h.clock.Now(),
		})
	case service.OutcomeCredentialsInvalid:
		h.respondWithError(w, http.StatusUnauthorized, result.Outcome, "Invalid email or password")
	default:
		h.respondWithError(w, getStatusCode(result.Outcome), result.Outcome, "Internal server error")
	}

	h.logger.Debug("Login handled",
		util.String("outcome", result.Outcome.String()),
		util.Duration("duration", time.Since(startTime)),
	)
}

// RecoverPassword handles POST /auth/recover-password
func (h *AuthHandler) RecoverPassword(w http.ResponseWriter, r *http.Request) {
	var req RecoverPasswordRequest
	if !h.decode(w, r, &req) {
		h.recordRecovery(service.OutcomeInvalidInput)
		return
	}

	email := util.SanitizeInput(req.Email)
	if email == "" || strings.TrimSpace(req.BirthDate) == "" ||
		strings.TrimSpace(req.FatherName) == "" || strings.TrimSpace(req.MotherName) == "" {
		h.recordRecovery(service.OutcomeInvalidInput)
		h.respondWithError(w, http.StatusBadRequest, service.OutcomeInvalidInput, "All fields are required")
		return
	}
	if !util.IsValidEmail(email) {
		h.recordRecovery(service.OutcomeInvalidInput)
		h.respondWithError(w, http.StatusBadRequest, service.OutcomeInvalidInput, "Invalid email format")
		return
	}

	result := h.recovery.Recover(r.Context(), service.RecoveryRequest{
		Identity:   email,
		BirthDate:  strings.TrimSpace(req.BirthDate),
		FatherName: req.FatherName,
		MotherName: req.MotherName,
	})
	h.recordRecovery(result.Outcome)

	switch result.Outcome {
	case service.OutcomeSuccess:
		h.respondWithJSON(w, http.StatusOK, h.successResponse(RecoveryData{
			Email:                 email,
			TemporaryPasswordSent: true,
		}, "A temporary password was sent to the account email"))
	case service.OutcomeInvalidInput:
		h.respondWithError(w, http.StatusBadRequest, result.Outcome, "Invalid birth date")
	case service.OutcomeNotFound:
		h.respondWithError(w, http.StatusNotFound, result.Outcome, "Email not found")
	case service.OutcomeIdentityMismatch:
		h.respondWithError(w, http.StatusUnauthorized, result.Outcome, "Recovery data does not match")
	case service.OutcomeNotificationFailed:
		h.respondWithError(w, http.StatusInternalServerError, result.Outcome,
			"Password was reset but the email could not be sent")
	default:
		h.respondWithError(w, getStatusCode(result.Outcome), result.Outcome, "Internal server error")
	}
}

// Status handles GET /auth/status/{email}
func (h *AuthHandler) Status(w http.ResponseWriter, r *http.Request) {
	email := util.SanitizeInput(chi.URLParam(r, "email"))
	if !util.IsValidEmail(email) {
		h.respondWithError(w, http.StatusBadRequest, service.OutcomeInvalidInput, "Invalid email format")
		return
	}

	result := h.auth.Status(r.Context(), email)
	if result.Outcome != service.OutcomeSuccess {
		h.respondWithError(w, getStatusCode(result.Outcome), result.Outcome, "Email not found")
		return
	}

	s := result.Status
	h.respondWithJSON(w, http.StatusOK, h.successResponse(StatusData{
		Email:         s.Identity,
		Attempts:      s.Attempts,
		MaxAttempts:   s.MaxAttempts,
		Locked:        s.Locked,
		LockedUntil:   s.LockedUntil,
		LastAttemptAt: s.LastAttemptAt,
	}, "Account status retrieved"))
}

// ResetAttempts handles POST /auth/reset-attempts
func (h *AuthHandler) ResetAttempts(w http.ResponseWriter, r *http.Request) {
	var req ResetAttemptsRequest
	if !h.decode(w, r, &req) {
		return
	}

	email := util.SanitizeInput(req.Email)
	if email == "" {
		h.respondWithError(w, http.StatusBadRequest, service.OutcomeInvalidInput, "Email is required")
		return
	}
	if !util.IsValidEmail(email) {
		h.respondWithError(w, http.StatusBadRequest, service.OutcomeInvalidInput, "Invalid email format")
		return
	}

	outcome := h.auth.ResetAttempts(r.Context(), email)
	if outcome != service.OutcomeSuccess {
		h.respondWithError(w, getStatusCode(outcome), outcome, "Email not found")
		return
	}

	h.respondWithJSON(w, http.StatusOK, h.successResponse(nil, "Login attempts reset"))
}

// VerifyToken handles GET /auth/verify-token
func (h *AuthHandler) VerifyToken(w http.ResponseWriter, r *http.Request) {
	tokenString, ok := bearerToken(r)
	if !ok {
		h.respondWithError(w, http.StatusUnauthorized, service.OutcomeCredentialsInvalid, "Access token not provided")
		return
	}

	claims, valid := h.auth.VerifyToken(tokenString)
	if !valid {
		h.respondWithError(w, http.StatusUnauthorized, service.OutcomeCredentialsInvalid, "Invalid access token")
		return
	}

	user := TokenUser{Email: claims.Email, TokenID: claims.ID}
	if claims.IssuedAt != nil {
		user.IssuedAt = claims.IssuedAt.Time
	}
	if claims.ExpiresAt != nil {
		user.ExpiresAt = claims.ExpiresAt.Time
	}

	h.respondWithJSON(w, http.StatusOK, h.successResponse(TokenData{
		User:          user,
		Authenticated: true,
	}, "Token is valid"))
}

// Helper Methods

func bearerToken(r *http.Request) (string, bool) {
	scheme, value, found := strings.Cut(r.Header.Get("Authorization"), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	value = strings.TrimSpace(value)
	return value, value != ""
}

// decode reads a JSON body of at most maxBodyBytes. It writes the error
// response itself and reports whether the caller should continue.
func (h *AuthHandler) decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.respondWithError(w, http.StatusRequestEntityTooLarge, service.OutcomeInvalidInput, "Request body too large")
			return false
		}
		h.respondWithError(w, http.StatusBadRequest, service.OutcomeInvalidInput, "Invalid JSON")
		return false
	}
	return true
}

func (h *AuthHandler) limit(l ratelimit.Limiter) func(http.Handler) http.Handler {
	if l == nil {
		return func(next http.Handler) http.Handler { return next }
	}
	return ratelimit.Middleware(l, h.logger, h.rejectRateLimited(l.Policy().Name))
}

func (h *AuthHandler) rejectRateLimited(policy string) ratelimit.RejectFunc {
	return func(w http.ResponseWriter, r *http.Request, d ratelimit.Decision) {
		if h.metrics != nil {
			h.metrics.RecordRateLimited(policy)
		}
		h.respondWithJSON(w, http.StatusTooManyRequests, Response{
			Success:   false,
			Error:     "RATE_LIMITED",
			Message:   "Too many requests. Try again later",
			Timestamp: h.clock.Now(),
		})
	}
}

func (h *AuthHandler) recordLogin(outcome service.Outcome) {
	if h.metrics != nil {
		h.metrics.RecordLogin(outcome.String())
	}
}

func (h *AuthHandler) recordRecovery(outcome service.Outcome) {
	if h.metrics != nil {
		h.metrics.RecordRecovery(outcome.String())
	}
}

func (h *AuthHandler) successResponse(data interface{}, message string) Response {
	return Response{
		Success:   true,
		Data:      data,
		Message:   message,
		Timestamp: h.clock.Now(),
	}
}

// respondWithJSON sends a JSON response
func (h *AuthHandler) respondWithJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("Failed to encode JSON response", util.ErrorField(err))
	}
}

// respondWithError sends an error response
func (h *AuthHandler) respondWithError(w http.ResponseWriter, statusCode int, outcome service.Outcome, message string) {
	h.logger.Warn("HTTP error response",
		util.String("outcome", outcome.String()),
		util.Int("status_code", statusCode),
		util.String("message", message),
	)
	h.respondWithJSON(w, statusCode, Response{
		Success:   false,
		Error:     outcome.String(),
		Message:   message,
		Timestamp: h.clock.Now(),
	})
}

// getStatusCode maps an engine outcome to its HTTP status
func getStatusCode(outcome service.Outcome) int {
	switch outcome {
	case service.OutcomeSuccess:
		return http.StatusOK
	case service.OutcomeInvalidInput:
		return http.StatusBadRequest
	case service.OutcomeCredentialsInvalid, service.OutcomeIdentityMismatch:
		return http.StatusUnauthorized
	case service.OutcomeAccountLocked:
		return http.StatusForbidden
	case service.OutcomeNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
