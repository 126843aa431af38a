package recipes

import (
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"time"

	"github.com/gorilla/mux"

	"github.com/pantrylabs/cookbook/pkg/auth"
	"github.com/pantrylabs/cookbook/pkg/httputil"
	"github.com/pantrylabs/cookbook/pkg/observability"
)

// Handlers provides HTTP handlers for the recipe catalog
type Handlers struct {
	service        *Service
	metrics        *observability.Metrics
	maxUploadBytes int64
}

// NewHandlers creates new recipe handlers. metrics may be nil; a
// maxUploadBytes of zero leaves image uploads uncapped.
func NewHandlers(service *Service, metrics *observability.Metrics, maxUploadBytes int64) *Handlers {
	return &Handlers{service: service, metrics: metrics, maxUploadBytes: maxUploadBytes}
}

// RegisterRoutes registers the recipe routes on a token-protected router
func (h *Handlers) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/api/recipes", h.list).Methods("GET")
	r.HandleFunc("/api/recipes", h.create).Methods("POST")
	r.HandleFunc("/api/recipes/{id:[0-9]+}", h.get).Methods("GET")
	r.HandleFunc("/api/recipes/{id:[0-9]+}", h.replace).Methods("PUT")
	r.HandleFunc("/api/recipes/{id:[0-9]+}", h.patch).Methods("PATCH")
	r.HandleFunc("/api/recipes/{id:[0-9]+}/upload-image", h.uploadImage).Methods("POST")
}

// observe records a storage operation when metrics are enabled
func (h *Handlers) observe(operation string, start time.Time, err error) {
	if h.metrics != nil {
		h.metrics.ObserveStorage(operation, start, err)
	}
}

// recipePayload is the request shape shared by create, replace, and patch.
// Pointers distinguish omitted fields from zero values.
type recipePayload struct {
	Title       *string  `json:"title"`
	TimeMinutes *int     `json:"time_minutes"`
	Price       *Price   `json:"price"`
	Link        *string  `json:"link"`
	Tags        *[]int64 `json:"tags"`
	Ingredients *[]int64 `json:"ingredients"`
}

// requireAll checks that the fields a full payload must carry are present
func (p *recipePayload) requireAll() ValidationError {
	fields := ValidationError{}
	if p.Title == nil {
		fields["title"] = "title is required"
	}
	if p.TimeMinutes == nil {
		fields["time_minutes"] = "time_minutes is required"
	}
	if p.Price == nil {
		fields["price"] = "price is required"
	}
	return fields
}

// full converts the payload into a complete create input. Omitted link and
// relationship fields take their empty values.
func (p *recipePayload) full() CreateInput {
	input := CreateInput{
		Title:       *p.Title,
		TimeMinutes: *p.TimeMinutes,
		Price:       *p.Price,
	}
	if p.Link != nil {
		input.Link = *p.Link
	}
	if p.Tags != nil {
		input.TagIDs = *p.Tags
	}
	if p.Ingredients != nil {
		input.IngredientIDs = *p.Ingredients
	}
	return input
}

func (h *Handlers) list(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "authentication required")
		return
	}

	start := time.Now()
	summaries, err := h.service.List(r.Context(), identity.UserID)
	h.observe("recipes.list", start, err)
	if err != nil {
		observability.FromContext(r.Context()).WithError(err).Error("list recipes failed")
		httputil.WriteInternalError(w, err)
		return
	}

	httputil.WriteSuccess(w, summaries)
}

func (h *Handlers) get(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "authentication required")
		return
	}
	recipeID, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	start := time.Now()
	recipe, err := h.service.Get(r.Context(), identity.UserID, recipeID)
	h.observe("recipes.get", start, err)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			httputil.WriteNotFoundError(w, ErrNotFound.Error())
			return
		}
		observability.FromContext(r.Context()).WithError(err).Error("get recipe failed")
		httputil.WriteInternalError(w, err)
		return
	}

	httputil.WriteSuccess(w, recipe.Detail())
}

func (h *Handlers) create(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "authentication required")
		return
	}

	var payload recipePayload
	if !httputil.ParseJSONOrError(w, r, &payload) {
		return
	}
	if fields := payload.requireAll(); len(fields) > 0 {
		httputil.WriteFieldErrors(w, fields)
		return
	}

	start := time.Now()
	recipe, err := h.service.Create(r.Context(), identity.UserID, payload.full())
	h.observe("recipes.create", start, err)
	if err != nil {
		h.writeServiceError(w, r, err, "create recipe failed")
		return
	}

	httputil.WriteCreated(w, recipe.Detail())
}

func (h *Handlers) replace(w http.ResponseWriter, r *http.Request) {
	h.update(w, r, false)
}

func (h *Handlers) patch(w http.ResponseWriter, r *http.Request) {
	h.update(w, r, true)
}

// update implements both PUT and PATCH. A full replace requires the scalar
// fields and resets everything omitted; a partial update touches only what
// the payload carries.
func (h *Handlers) update(w http.ResponseWriter, r *http.Request, partial bool) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "authentication required")
		return
	}
	recipeID, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	var payload recipePayload
	if !httputil.ParseJSONOrError(w, r, &payload) {
		return
	}

	input := UpdateInput{
		Title:         payload.Title,
		TimeMinutes:   payload.TimeMinutes,
		Price:         payload.Price,
		Link:          payload.Link,
		TagIDs:        payload.Tags,
		IngredientIDs: payload.Ingredients,
	}
	if !partial {
		if fields := payload.requireAll(); len(fields) > 0 {
			httputil.WriteFieldErrors(w, fields)
			return
		}
		// Omitted optional fields reset on full replace
		if input.Link == nil {
			input.Link = new(string)
		}
		if input.TagIDs == nil {
			input.TagIDs = &[]int64{}
		}
		if input.IngredientIDs == nil {
			input.IngredientIDs = &[]int64{}
		}
	}

	start := time.Now()
	recipe, err := h.service.Update(r.Context(), identity.UserID, recipeID, input)
	h.observe("recipes.update", start, err)
	if err != nil {
		h.writeServiceError(w, r, err, "update recipe failed")
		return
	}

	httputil.WriteSuccess(w, recipe.Detail())
}

func (h *Handlers) uploadImage(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "authentication required")
		return
	}
	recipeID, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	if h.maxUploadBytes > 0 {
		if r.ContentLength > h.maxUploadBytes {
			h.writeUploadTooLarge(w)
			return
		}
		// Chunked bodies carry no length up front
		r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	}
	file, header, err := r.FormFile("image")
	if err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			h.writeUploadTooLarge(w)
			return
		}
		httputil.WriteFieldErrors(w, map[string]string{"image": ErrImageRequired.Error()})
		return
	}
	defer file.Close()

	start := time.Now()
	result, err := h.service.SetImage(r.Context(), identity.UserID, recipeID,
		filepath.Ext(header.Filename), file)
	h.observe("recipes.set_image", start, err)
	if err != nil {
		h.writeServiceError(w, r, err, "upload image failed")
		return
	}

	if h.metrics != nil {
		h.metrics.ImagesUploadedTotal.Inc()
	}
	httputil.WriteSuccess(w, result)
}

func (h *Handlers) writeUploadTooLarge(w http.ResponseWriter) {
	httputil.WriteErrorMessage(w, http.StatusRequestEntityTooLarge,
		fmt.Sprintf("image exceeds the %d byte upload limit", h.maxUploadBytes))
}

// writeServiceError maps service errors onto the response taxonomy
func (h *Handlers) writeServiceError(w http.ResponseWriter, r *http.Request, err error, logMsg string) {
	if fields, ok := AsValidation(err); ok {
		httputil.WriteFieldErrors(w, fields)
		return
	}
	if errors.Is(err, ErrNotFound) {
		httputil.WriteNotFoundError(w, ErrNotFound.Error())
		return
	}
	observability.FromContext(r.Context()).WithError(err).Error(logMsg)
	httputil.WriteInternalError(w, err)
}
