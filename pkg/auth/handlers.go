package auth

import (
	"context"
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/pantrylabs/cookbook/pkg/contextkeys"
	"github.com/pantrylabs/cookbook/pkg/httputil"
	"github.com/pantrylabs/cookbook/pkg/observability"
)

// IdentityFromContext extracts the authenticated identity placed in the
// context by the auth middleware.
func IdentityFromContext(ctx context.Context) (*Identity, bool) {
	identity, ok := contextkeys.Identity(ctx).(*Identity)
	return identity, ok
}

// Handlers provides HTTP handlers for account management
type Handlers struct {
	service *Service
}

// NewHandlers creates new auth handlers
func NewHandlers(service *Service) *Handlers {
	return &Handlers{service: service}
}

// RegisterPublicRoutes registers the unauthenticated account routes
func (h *Handlers) RegisterPublicRoutes(r *mux.Router) {
	r.HandleFunc("/api/users", h.createUser).Methods("POST")
	r.HandleFunc("/api/users/token", h.createToken).Methods("POST")
}

// RegisterProtectedRoutes registers the token-protected profile routes
func (h *Handlers) RegisterProtectedRoutes(r *mux.Router) {
	r.HandleFunc("/api/users/me", h.getProfile).Methods("GET")
	r.HandleFunc("/api/users/me", h.updateProfile).Methods("PATCH")
}

// createUser handles POST /api/users
func (h *Handlers) createUser(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
		Name     string `json:"name"`
	}
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	user, err := h.service.CreateUser(r.Context(), req.Email, req.Password, req.Name)
	if err != nil {
		if fields, ok := AsValidation(err); ok {
			httputil.WriteFieldErrors(w, fields)
			return
		}
		if errors.Is(err, ErrDuplicateEmail) {
			httputil.WriteFieldErrors(w, map[string]string{"email": ErrDuplicateEmail.Error()})
			return
		}
		observability.FromContext(r.Context()).WithError(err).Error("create user failed")
		httputil.WriteInternalError(w, err)
		return
	}

	httputil.WriteCreated(w, user)
}

// createToken handles POST /api/users/token
func (h *Handlers) createToken(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	fields := map[string]string{}
	if req.Email == "" {
		fields["email"] = "email is required"
	}
	if req.Password == "" {
		fields["password"] = "password is required"
	}
	if len(fields) > 0 {
		httputil.WriteFieldErrors(w, fields)
		return
	}

	token, err := h.service.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			httputil.WriteValidationError(w, ErrInvalidCredentials.Error())
			return
		}
		observability.FromContext(r.Context()).WithError(err).Error("token issuance failed")
		httputil.WriteInternalError(w, err)
		return
	}

	httputil.WriteSuccess(w, map[string]string{"token": token})
}

// getProfile handles GET /api/users/me
func (h *Handlers) getProfile(w http.ResponseWriter, r *http.Request) {
	identity, ok := IdentityFromContext(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "authentication required")
		return
	}

	user, err := h.service.GetUser(r.Context(), identity.UserID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			httputil.WriteNotFoundError(w, ErrNotFound.Error())
			return
		}
		httputil.WriteInternalError(w, err)
		return
	}

	httputil.WriteSuccess(w, user.Profile())
}

// updateProfile handles PATCH /api/users/me
func (h *Handlers) updateProfile(w http.ResponseWriter, r *http.Request) {
	identity, ok := IdentityFromContext(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "authentication required")
		return
	}

	var req struct {
		Name     *string `json:"name"`
		Password *string `json:"password"`
	}
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	user, err := h.service.UpdateProfile(r.Context(), identity.UserID, ProfileUpdate{
		Name:     req.Name,
		Password: req.Password,
	})
	if err != nil {
		if fields, ok := AsValidation(err); ok {
			httputil.WriteFieldErrors(w, fields)
			return
		}
		if errors.Is(err, ErrNotFound) {
			httputil.WriteNotFoundError(w, ErrNotFound.Error())
			return
		}
		observability.FromContext(r.Context()).WithError(err).Error("profile update failed")
		httputil.WriteInternalError(w, err)
		return
	}

	httputil.WriteSuccess(w, user.Profile())
}
