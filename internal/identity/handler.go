package identity

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/bissquit/identity-garden/internal/access"
	"github.com/bissquit/identity-garden/internal/domain"
	"github.com/bissquit/identity-garden/internal/pkg/httputil"
	"github.com/bissquit/identity-garden/internal/pkg/metrics"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
)

// Handler handles HTTP requests for the identity module.
type Handler struct {
	service   *Service
	validator *validator.Validate
	policy    access.Policy
}

// NewHandler creates a new identity handler.
func NewHandler(service *Service, policy access.Policy) *Handler {
	return &Handler{
		service:   service,
		validator: validator.New(),
		policy:    policy,
	}
}

// RegisterRoutes registers public identity routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/auth", func(r chi.Router) {
		r.Post("/register", h.Register)
		r.Post("/login", h.Login)
	})
}

// RegisterProtectedRoutes registers routes that require authentication.
// Account administration is gated per operation through the policy table.
func (h *Handler) RegisterProtectedRoutes(r chi.Router) {
	r.Post("/auth/logout", h.Logout)

	r.Route("/users", func(r chi.Router) {
		r.With(h.require(access.OpAccountProfile)).Get("/profile", h.Profile)

		r.With(h.require(access.OpAccountList)).Get("/", h.List)
		r.With(h.require(access.OpAccountCreate)).Post("/", h.Create)
		r.With(h.require(access.OpAccountGet)).Get("/{id}", h.Get)
		r.With(h.require(access.OpAccountUpdate)).Put("/{id}", h.Update)
		r.With(h.require(access.OpAccountDelete)).Delete("/{id}", h.Delete)
	})
}

func (h *Handler) require(operation string) func(http.Handler) http.Handler {
	return httputil.RequirePermission(h.policy, operation)
}

// RegisterRequest represents registration request body.
type RegisterRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
	Role     string `json:"role" validate:"omitempty,oneof=admin editor viewer"`
}

// Register handles POST /auth/register.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid json")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		httputil.ValidationError(w, err)
		return
	}

	account, err := h.service.Register(r.Context(), RegisterInput{
		Email:    req.Email,
		Password: req.Password,
		Role:     domain.Role(req.Role),
	})
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	httputil.Success(w, http.StatusCreated, account)
}

// LoginRequest represents login request body.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// Login handles POST /auth/login.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid json")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		httputil.ValidationError(w, err)
		return
	}

	token, err := h.service.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidCredentials):
			metrics.LoginAttempts.WithLabelValues(metrics.LoginOutcomeDenied).Inc()
		default:
			metrics.LoginAttempts.WithLabelValues(metrics.LoginOutcomeError).Inc()
		}
		h.handleServiceError(w, r, err)
		return
	}

	metrics.LoginAttempts.WithLabelValues(metrics.LoginOutcomeSuccess).Inc()
	httputil.Success(w, http.StatusOK, token)
}

// Logout handles POST /auth/logout. Tokens are stateless and expire on their
// own; this endpoint only acknowledges so clients can discard the token.
func (h *Handler) Logout(w http.ResponseWriter, _ *http.Request) {
	httputil.Success(w, http.StatusOK, map[string]string{
		"message": "successfully logged out",
	})
}

// Profile handles GET /users/profile. Returns the caller's own record.
func (h *Handler) Profile(w http.ResponseWriter, r *http.Request) {
	accountID := httputil.GetAccountID(r.Context())
	if accountID == 0 {
		httputil.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	account, err := h.service.GetByID(r.Context(), accountID)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	httputil.Success(w, http.StatusOK, account)
}

// List handles GET /users.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	accounts, err := h.service.List(r.Context())
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	httputil.Success(w, http.StatusOK, accounts)
}

// Get handles GET /users/{id}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := h.accountID(w, r)
	if !ok {
		return
	}

	account, err := h.service.GetByID(r.Context(), id)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	httputil.Success(w, http.StatusOK, account)
}

// Create handles POST /users. Administrative account creation with the same
// uniqueness and hashing rules as registration.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid json")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		httputil.ValidationError(w, err)
		return
	}

	account, err := h.service.Create(r.Context(), RegisterInput{
		Email:    req.Email,
		Password: req.Password,
		Role:     domain.Role(req.Role),
	})
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	httputil.Success(w, http.StatusCreated, account)
}

// UpdateRequest represents a partial account update request body.
type UpdateRequest struct {
	Email    *string `json:"email" validate:"omitempty,email"`
	Password *string `json:"password" validate:"omitempty,min=6"`
	Role     *string `json:"role" validate:"omitempty,oneof=admin editor viewer"`
}

// Update handles PUT /users/{id}.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := h.accountID(w, r)
	if !ok {
		return
	}

	var req UpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid json")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		httputil.ValidationError(w, err)
		return
	}

	input := UpdateInput{
		Email:    req.Email,
		Password: req.Password,
	}
	if req.Role != nil {
		role := domain.Role(*req.Role)
		input.Role = &role
	}

	account, err := h.service.Update(r.Context(), id, input)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	httputil.Success(w, http.StatusOK, account)
}

// Delete handles DELETE /users/{id}.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := h.accountID(w, r)
	if !ok {
		return
	}

	if err := h.service.Remove(r.Context(), id); err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) accountID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid account id")
		return 0, false
	}
	return id, true
}

func (h *Handler) handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	httputil.HandleError(r.Context(), w, err, []httputil.ErrorMapping{
		{Error: ErrAccountNotFound, Status: http.StatusNotFound},
		{Error: ErrEmailExists, Status: http.StatusConflict},
		{Error: ErrInvalidCredentials, Status: http.StatusUnauthorized},
		{Error: ErrInvalidInput, Status: http.StatusBadRequest},
	})
}
