package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skufu/medsafe/internal/checker"
	"github.com/Skufu/medsafe/internal/config"
	"github.com/Skufu/medsafe/internal/kb"
	"github.com/Skufu/medsafe/internal/kb/kbtest"
	"github.com/Skufu/medsafe/internal/metrics"
	"github.com/Skufu/medsafe/internal/model"
)

const testToken = "admin-secret"

type fakeDB struct {
	err error
}

func (f fakeDB) Ping(ctx context.Context) error {
	return f.err
}

func newTestRouter(t *testing.T, mutate ...func(*Options)) (*gin.Engine, kb.Store) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	store, err := kb.NewMemoryStore(kbtest.Fixture())
	require.NoError(t, err)
	opts := Options{
		Checker:    checker.New(store),
		Store:      store,
		AdminToken: testToken,
	}
	for _, m := range mutate {
		m(&opts)
	}
	return NewRouter(opts), store
}

func do(router http.Handler, method, path, body string, header ...string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req, _ := http.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	router.ServeHTTP(w, req)
	return w
}

func admin(router http.Handler, method, path, body string) *httptest.ResponseRecorder {
	return do(router, method, path, body, "Authorization", "Bearer "+testToken)
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func TestRouterHealthz(t *testing.T) {
	router, _ := newTestRouter(t)

	w := do(router, "GET", "/healthz", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"status":"ok"`) {
		t.Fatalf("unexpected body: %s", w.Body.String())
	}
}

func TestRouterReadyz(t *testing.T) {
	tests := []struct {
		name   string
		db     HealthChecker
		code   int
		dbText string
	}{
		{"disabled", nil, http.StatusOK, `"db":"disabled"`},
		{"healthy", fakeDB{}, http.StatusOK, `"db":"ok"`},
		{"unhealthy", fakeDB{err: errors.New("connection refused")}, http.StatusServiceUnavailable, "unhealthy: connection refused"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router, _ := newTestRouter(t, func(o *Options) { o.Health = tt.db })
			w := do(router, "GET", "/readyz", "")
			assert.Equal(t, tt.code, w.Code)
			assert.Contains(t, w.Body.String(), tt.dbText)
			assert.Contains(t, w.Body.String(), `"version":1`)
		})
	}
}

// Ensure limitBodySize middleware allows small payloads and blocks large ones.
func TestLimitBodySize(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(limitBodySize(10))
	router.POST("/echo", func(c *gin.Context) {
		_, err := c.GetRawData()
		if err != nil {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "too large"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	t.Run("within limit", func(t *testing.T) {
		w := do(router, "POST", "/echo", "12345")
		if w.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", w.Code)
		}
	})

	t.Run("over limit", func(t *testing.T) {
		w := do(router, "POST", "/echo", "01234567890")
		if w.Code != http.StatusRequestEntityTooLarge {
			t.Fatalf("expected 413, got %d", w.Code)
		}
	})
}

func TestCheckInteractionOversizeBody(t *testing.T) {
	router, _ := newTestRouter(t, func(o *Options) { o.MaxBodyBytes = 16 })
	w := do(router, "POST", "/api/drugs/check-interaction", `{"medications":["Aspirin","Ibuprofen"]}`)
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}

func TestCheckInteraction(t *testing.T) {
	router, _ := newTestRouter(t)

	w := do(router, "POST", "/api/drugs/check-interaction", `{"medications":["Aspirin","Ibuprofen","Not A Real Drug"]}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	res := decode[model.MatchResult](t, w)
	assert.Equal(t, model.SeverityHigh, res.RiskLevel)
	require.Len(t, res.Interactions, 1)
	assert.Equal(t, []string{"Aspirin", "Ibuprofen"}, res.Interactions[0].Drugs)
	assert.Equal(t, []string{"Not A Real Drug"}, res.Unresolved)
	assert.Contains(t, w.Body.String(), `"risk_level":"high"`)
	assert.Contains(t, w.Body.String(), `"advisory":false`)
}

func TestCheckInteractionValidation(t *testing.T) {
	router, _ := newTestRouter(t)

	tests := []struct {
		name string
		body string
		want string
	}{
		{"one medication", `{"medications":["Aspirin"]}`, "provide at least 2 medications"},
		{"no medications", `{}`, "insufficient_input"},
		{"malformed", `{"medications":`, "invalid_input"},
		{"wrong type", `{"medications":"Aspirin, Ibuprofen"}`, "invalid_input"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(router, "POST", "/api/drugs/check-interaction", tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Contains(t, w.Body.String(), tt.want)
		})
	}
}

func TestLookupDrug(t *testing.T) {
	router, _ := newTestRouter(t)

	w := do(router, "GET", "/api/drugs/Advil", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ibuprofen", decode[model.Drug](t, w).ID)

	w = do(router, "GET", "/api/drugs/unobtainium", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), `"error":"not_found"`)
}

func TestAdminRequiresToken(t *testing.T) {
	router, _ := newTestRouter(t)

	w := do(router, "GET", "/api/admin/facts", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	w = do(router, "GET", "/api/admin/facts", "", "Authorization", "Bearer wrong")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	w = admin(router, "GET", "/api/admin/facts", "")
	assert.Equal(t, http.StatusOK, w.Code)

	disabled, _ := newTestRouter(t, func(o *Options) { o.AdminToken = "" })
	w = do(disabled, "GET", "/api/admin/facts", "", "Authorization", "Bearer ")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAdminUpsertFact(t *testing.T) {
	router, store := newTestRouter(t)

	w := admin(router, "PUT", "/api/admin/facts", `{"drugs":["ibuprofen","aspirin"],"severity":"moderate","description":"x"}`)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), "conflicting_fact")
	f, _ := store.Fact(model.NewDrugSet("aspirin", "ibuprofen"))
	assert.Equal(t, model.SeverityHigh, f.Severity)

	w = admin(router, "PUT", "/api/admin/facts", `{"drugs":["ibuprofen","aspirin"],"severity":"moderate","description":"x","override":true}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, model.SeverityModerate, decode[model.InteractionFact](t, w).Severity)

	w = admin(router, "PUT", "/api/admin/facts", `{"drugs":["aspirin","calcium"],"severity":"LOW"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = admin(router, "PUT", "/api/admin/facts", `{"drugs":["aspirin","unobtainium"],"severity":"high"}`)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAdminSynonymFlow(t *testing.T) {
	router, _ := newTestRouter(t)

	w := admin(router, "POST", "/api/admin/drugs/acetaminophen/synonyms", `{"synonym":"Tylenol"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, decode[model.Drug](t, w).Synonyms, "Tylenol")

	w = admin(router, "POST", "/api/admin/drugs/aspirin/synonyms", `{"synonym":"tylenol"}`)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), "duplicate_synonym")

	w = admin(router, "PUT", "/api/admin/facts", `{"drugs":["Tylenol","Warfarin"],"severity":"moderate","description":"Raises INR"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = do(router, "POST", "/api/drugs/check-interaction", `{"medications":["Tylenol","Coumadin"]}`)
	require.Equal(t, http.StatusOK, w.Code)
	res := decode[model.MatchResult](t, w)
	assert.Equal(t, model.SeverityModerate, res.RiskLevel)
	assert.Equal(t, "acetaminophen", res.Resolved[0].ID)
}

func TestAdminAddDrug(t *testing.T) {
	router, _ := newTestRouter(t)

	body := `{"id":"Clopidogrel","name":"Clopidogrel","synonyms":["Plavix"],"warnings":"Bleeding risk"}`
	w := admin(router, "POST", "/api/admin/drugs", body)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, "clopidogrel", decode[model.Drug](t, w).ID)

	w = admin(router, "POST", "/api/admin/drugs", body)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = do(router, "GET", "/api/drugs/plavix", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Bleeding risk", decode[model.Drug](t, w).Warnings)
}

func TestAdminExportImport(t *testing.T) {
	router, store := newTestRouter(t)

	w := admin(router, "GET", "/api/admin/export", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "aspirin")
	exported := w.Body.String()

	w = admin(router, "POST", "/api/admin/import", "drugs:\n  - id: a\n  - id: b\nfacts:\n  - drugs: [a, b]\n    severity: high\n")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Len(t, store.Drugs(), 2)

	w = admin(router, "POST", "/api/admin/import", exported)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Len(t, store.Drugs(), len(kbtest.Fixture().Drugs))

	w = admin(router, "POST", "/api/admin/import", "facts:\n  - drugs: [a, b]\n    severity: LOW\n")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRateLimit(t *testing.T) {
	router, _ := newTestRouter(t, func(o *Options) { o.RateLimit = config.RateLimit{RPS: 0.001, Burst: 2} })

	for i := 0; i < 2; i++ {
		assert.Equal(t, http.StatusOK, do(router, "GET", "/api/drugs/aspirin", "").Code)
	}
	w := do(router, "GET", "/api/drugs/aspirin", "")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "1", w.Header().Get("Retry-After"))

	// health probes are not limited
	assert.Equal(t, http.StatusOK, do(router, "GET", "/healthz", "").Code)
}

func TestRequestID(t *testing.T) {
	router, _ := newTestRouter(t)

	w := do(router, "GET", "/healthz", "")
	assert.Len(t, w.Header().Get(requestIDHeader), 36)

	w = do(router, "GET", "/healthz", "", requestIDHeader, "abc-123")
	assert.Equal(t, "abc-123", w.Header().Get(requestIDHeader))
}

func TestRecoveryReturnsJSON(t *testing.T) {
	router, _ := newTestRouter(t)
	router.GET("/boom", func(c *gin.Context) { panic("boom") })

	w := do(router, "GET", "/boom", "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), `"error":"internal"`)
}

func TestMetricsEndpoint(t *testing.T) {
	m := metrics.New()
	router, _ := newTestRouter(t, func(o *Options) { o.Metrics = m })

	do(router, "POST", "/api/drugs/check-interaction", `{"medications":["Aspirin","Ibuprofen"]}`)
	w := do(router, "GET", "/metrics", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `route="/api/drugs/check-interaction"`)
}
