package attrs

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pantrylabs/cookbook/pkg/auth"
	"github.com/pantrylabs/cookbook/pkg/contextkeys"
)

func setupAttrRouter(t *testing.T, kind Kind) (*sql.DB, *mux.Router) {
	t.Helper()
	db := setupTestDB(t)
	c, err := NewCollection(db, kind)
	require.NoError(t, err)
	router := mux.NewRouter()
	NewHandlers(c).RegisterRoutes(router)
	return db, router
}

func authenticated(req *http.Request, userID int64) *http.Request {
	return req.WithContext(contextkeys.WithIdentity(req.Context(), &auth.Identity{
		UserID: userID, Email: "owner@example.com",
	}))
}

func TestListHandler(t *testing.T) {
	db, router := setupAttrRouter(t, KindTag)
	userID := createTestUser(t, db, "owner@example.com")

	c, err := NewCollection(db, KindTag)
	require.NoError(t, err)
	_, err = c.Create(context.Background(), userID, "Breakfast")
	require.NoError(t, err)

	req := authenticated(httptest.NewRequest("GET", "/api/tags", nil), userID)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp []Attribute
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Len(t, resp, 1)
	assert.Equal(t, "Breakfast", resp[0].Name)
}

func TestListHandlerUnauthenticated(t *testing.T) {
	_, router := setupAttrRouter(t, KindTag)

	req := httptest.NewRequest("GET", "/api/tags", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCreateHandler(t *testing.T) {
	db, router := setupAttrRouter(t, KindIngredient)
	userID := createTestUser(t, db, "owner@example.com")

	body := bytes.NewBufferString(`{"name":"Cucumber"}`)
	req := authenticated(httptest.NewRequest("POST", "/api/ingredients", body), userID)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)

	var resp Attribute
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.NotZero(t, resp.ID)
	assert.Equal(t, "Cucumber", resp.Name)
}

func TestCreateHandlerMissingName(t *testing.T) {
	db, router := setupAttrRouter(t, KindIngredient)
	userID := createTestUser(t, db, "owner@example.com")

	body := bytes.NewBufferString(`{"name":""}`)
	req := authenticated(httptest.NewRequest("POST", "/api/ingredients", body), userID)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)

	var resp struct {
		Details map[string]string `json:"details"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Contains(t, resp.Details, "name")
}

func TestCreateHandlerBadJSON(t *testing.T) {
	db, router := setupAttrRouter(t, KindTag)
	userID := createTestUser(t, db, "owner@example.com")

	body := bytes.NewBufferString(`{not json`)
	req := authenticated(httptest.NewRequest("POST", "/api/tags", body), userID)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
