package recipes

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pantrylabs/cookbook/pkg/auth"
	"github.com/pantrylabs/cookbook/pkg/contextkeys"
)

func setupRouter(t *testing.T) (*testEnv, *mux.Router) {
	t.Helper()
	env := setupTestEnv(t)
	router := mux.NewRouter()
	NewHandlers(env.service, nil, 0).RegisterRoutes(router)
	return env, router
}

func authenticated(req *http.Request, userID int64) *http.Request {
	return req.WithContext(contextkeys.WithIdentity(req.Context(), &auth.Identity{
		UserID: userID, Email: "owner@example.com",
	}))
}

func jsonBody(t *testing.T, v interface{}) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, json.NewEncoder(&buf).Encode(v))
	return &buf
}

func TestCreateRecipeHandler(t *testing.T) {
	env, router := setupRouter(t)
	userID := env.createUser(t, "owner@example.com")
	tagID := env.createTag(t, userID, "Dinner")

	req := authenticated(httptest.NewRequest("POST", "/api/recipes", jsonBody(t, map[string]interface{}{
		"title":        "Sample",
		"time_minutes": 10,
		"price":        5.00,
		"tags":         []int64{tagID},
	})), userID)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)

	var resp Detail
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.NotZero(t, resp.ID)
	assert.Equal(t, "Sample", resp.Title)
	assert.Equal(t, "5.00", resp.Price.StringFixed(2))
	require.Len(t, resp.Tags, 1)
	assert.Equal(t, "Dinner", resp.Tags[0].Name)
	assert.Empty(t, resp.Ingredients)
}

func TestCreateRecipeHandlerMissingFields(t *testing.T) {
	env, router := setupRouter(t)
	userID := env.createUser(t, "owner@example.com")

	req := authenticated(httptest.NewRequest("POST", "/api/recipes", jsonBody(t, map[string]interface{}{
		"title": "Only a title",
	})), userID)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)

	var resp struct {
		Details map[string]string `json:"details"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Contains(t, resp.Details, "time_minutes")
	assert.Contains(t, resp.Details, "price")
}

func TestCreateRecipeHandlerUnknownTag(t *testing.T) {
	env, router := setupRouter(t)
	userID := env.createUser(t, "owner@example.com")

	req := authenticated(httptest.NewRequest("POST", "/api/recipes", jsonBody(t, map[string]interface{}{
		"title":        "Sample",
		"time_minutes": 10,
		"price":        "5.00",
		"tags":         []int64{9999},
	})), userID)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)

	var resp struct {
		Details map[string]string `json:"details"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Contains(t, resp.Details, "tags")
}

func TestListRecipesHandler(t *testing.T) {
	env, router := setupRouter(t)
	userID := env.createUser(t, "owner@example.com")

	_, err := env.service.Create(context.Background(), userID, sampleInput())
	require.NoError(t, err)

	req := authenticated(httptest.NewRequest("GET", "/api/recipes", nil), userID)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp []Summary
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Len(t, resp, 1)
	assert.Equal(t, "Sample recipe", resp[0].Title)
	assert.NotNil(t, resp[0].Tags)
	assert.NotNil(t, resp[0].Ingredients)
}

func TestGetRecipeHandler(t *testing.T) {
	env, router := setupRouter(t)
	userID := env.createUser(t, "owner@example.com")

	created, err := env.service.Create(context.Background(), userID, sampleInput())
	require.NoError(t, err)

	req := authenticated(httptest.NewRequest("GET", fmt.Sprintf("/api/recipes/%d", created.ID), nil), userID)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp Detail
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, created.ID, resp.ID)
}

func TestGetRecipeHandlerForeignOwner(t *testing.T) {
	env, router := setupRouter(t)
	ownerID := env.createUser(t, "owner@example.com")
	otherID := env.createUser(t, "other@example.com")

	theirs, err := env.service.Create(context.Background(), otherID, sampleInput())
	require.NoError(t, err)

	req := authenticated(httptest.NewRequest("GET", fmt.Sprintf("/api/recipes/%d", theirs.ID), nil), ownerID)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPutRecipeHandlerClearsOmittedSets(t *testing.T) {
	env, router := setupRouter(t)
	userID := env.createUser(t, "owner@example.com")
	tagID := env.createTag(t, userID, "Doomed")

	input := sampleInput()
	input.TagIDs = []int64{tagID}
	created, err := env.service.Create(context.Background(), userID, input)
	require.NoError(t, err)

	req := authenticated(httptest.NewRequest("PUT", fmt.Sprintf("/api/recipes/%d", created.ID), jsonBody(t, map[string]interface{}{
		"title":        "Replaced",
		"time_minutes": 20,
		"price":        "9.50",
	})), userID)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp Detail
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "Replaced", resp.Title)
	assert.Empty(t, resp.Tags)
	assert.Empty(t, resp.Link)
}

func TestPutRecipeHandlerRequiresScalars(t *testing.T) {
	env, router := setupRouter(t)
	userID := env.createUser(t, "owner@example.com")

	created, err := env.service.Create(context.Background(), userID, sampleInput())
	require.NoError(t, err)

	req := authenticated(httptest.NewRequest("PUT", fmt.Sprintf("/api/recipes/%d", created.ID), jsonBody(t, map[string]interface{}{
		"title": "Missing the rest",
	})), userID)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPatchRecipeHandlerLeavesSetsUntouched(t *testing.T) {
	env, router := setupRouter(t)
	userID := env.createUser(t, "owner@example.com")
	tagID := env.createTag(t, userID, "Sticky")

	input := sampleInput()
	input.TagIDs = []int64{tagID}
	created, err := env.service.Create(context.Background(), userID, input)
	require.NoError(t, err)

	req := authenticated(httptest.NewRequest("PATCH", fmt.Sprintf("/api/recipes/%d", created.ID), jsonBody(t, map[string]interface{}{
		"title": "Patched",
	})), userID)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp Detail
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "Patched", resp.Title)
	require.Len(t, resp.Tags, 1)
	assert.Equal(t, tagID, resp.Tags[0].ID)
}

func TestUploadImageHandler(t *testing.T) {
	env, router := setupRouter(t)
	userID := env.createUser(t, "owner@example.com")

	created, err := env.service.Create(context.Background(), userID, sampleInput())
	require.NoError(t, err)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("image", "photo.jpg")
	require.NoError(t, err)
	_, err = part.Write([]byte("fake image bytes"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := authenticated(httptest.NewRequest("POST",
		fmt.Sprintf("/api/recipes/%d/upload-image", created.ID), &buf), userID)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp ImageResult
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, created.ID, resp.ID)
	assert.NotEmpty(t, resp.Image)
}

func TestUploadImageHandlerMissingField(t *testing.T) {
	env, router := setupRouter(t)
	userID := env.createUser(t, "owner@example.com")

	created, err := env.service.Create(context.Background(), userID, sampleInput())
	require.NoError(t, err)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("other", "value"))
	require.NoError(t, mw.Close())

	req := authenticated(httptest.NewRequest("POST",
		fmt.Sprintf("/api/recipes/%d/upload-image", created.ID), &buf), userID)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)

	var resp struct {
		Details map[string]string `json:"details"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Contains(t, resp.Details, "image")
}

func TestUploadImageHandlerTooLarge(t *testing.T) {
	env := setupTestEnv(t)
	router := mux.NewRouter()
	NewHandlers(env.service, nil, 64).RegisterRoutes(router)
	userID := env.createUser(t, "owner@example.com")

	created, err := env.service.Create(context.Background(), userID, sampleInput())
	require.NoError(t, err)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("image", "photo.jpg")
	require.NoError(t, err)
	_, err = part.Write(bytes.Repeat([]byte("x"), 1024))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := authenticated(httptest.NewRequest("POST",
		fmt.Sprintf("/api/recipes/%d/upload-image", created.ID), &buf), userID)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestRecipesHandlerUnauthenticated(t *testing.T) {
	_, router := setupRouter(t)

	req := httptest.NewRequest("GET", "/api/recipes", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
