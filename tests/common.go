package tests

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"feelings/api/routes"
	"feelings/db"
	"feelings/models"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// SetupTestDB swaps the global ORM for a fresh in-memory SQLite database.
// A single open connection keeps the in-memory database alive and
// serializes concurrent writers.
func SetupTestDB() error {
	database, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		return err
	}

	sqlDB, err := database.DB()
	if err != nil {
		return err
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(database); err != nil {
		return err
	}

	db.ORM = database
	return nil
}

func setupRouter(t *testing.T) *gin.Engine {
	t.Helper()
	require.NoError(t, SetupTestDB())

	gin.SetMode(gin.TestMode)
	r := gin.New()
	routes.PublicApi(r)
	return r
}

type apiResponse struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
}

func doRequest(t *testing.T, r *gin.Engine, method, path, identity string, role models.Role, body interface{}) (*httptest.ResponseRecorder, apiResponse) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req, err := http.NewRequest(method, path, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if identity != "" {
		req.Header.Set("X-Identity", identity)
		req.Header.Set("X-Role", string(role))
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var resp apiResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	return w, resp
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}

func createFeeling(t *testing.T, r *gin.Engine, identity string, role models.Role, text string) models.FeedFeeling {
	t.Helper()

	w, resp := doRequest(t, r, http.MethodPost, "/api/v1/feelings", identity, role, map[string]string{"text": text})
	require.Equal(t, http.StatusCreated, w.Code, "create failed: %s", w.Body.String())

	var feeling models.FeedFeeling
	require.NoError(t, json.Unmarshal(resp.Data, &feeling))
	require.NotZero(t, feeling.ID)
	return feeling
}
