package attrs

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/pantrylabs/cookbook/pkg/auth"
	"github.com/pantrylabs/cookbook/pkg/httputil"
	"github.com/pantrylabs/cookbook/pkg/observability"
)

// Handlers provides HTTP handlers for one attribute collection
type Handlers struct {
	collection *Collection
}

// NewHandlers creates handlers for the collection
func NewHandlers(collection *Collection) *Handlers {
	return &Handlers{collection: collection}
}

// RegisterRoutes registers the collection's routes on a token-protected router
func (h *Handlers) RegisterRoutes(r *mux.Router) {
	route := h.collection.Kind().Route()
	r.HandleFunc(route, h.list).Methods("GET")
	r.HandleFunc(route, h.create).Methods("POST")
}

func (h *Handlers) list(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "authentication required")
		return
	}

	attrs, err := h.collection.List(r.Context(), identity.UserID)
	if err != nil {
		observability.FromContext(r.Context()).WithError(err).
			WithField("kind", string(h.collection.Kind())).Error("list failed")
		httputil.WriteInternalError(w, err)
		return
	}

	httputil.WriteSuccess(w, attrs)
}

func (h *Handlers) create(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "authentication required")
		return
	}

	var req struct {
		Name string `json:"name"`
	}
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	attr, err := h.collection.Create(r.Context(), identity.UserID, req.Name)
	if err != nil {
		if errors.Is(err, ErrNameRequired) {
			httputil.WriteFieldErrors(w, map[string]string{"name": ErrNameRequired.Error()})
			return
		}
		observability.FromContext(r.Context()).WithError(err).
			WithField("kind", string(h.collection.Kind())).Error("create failed")
		httputil.WriteInternalError(w, err)
		return
	}

	httputil.WriteCreated(w, attr)
}
