package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/aristath/ballast/internal/domain"
	"github.com/aristath/ballast/internal/events"
	"github.com/aristath/ballast/internal/modules/history"
	"github.com/aristath/ballast/internal/modules/rebalancing"
	"github.com/aristath/ballast/internal/modules/registry"
	"github.com/aristath/ballast/internal/modules/settings"
	"github.com/aristath/ballast/internal/modules/valuation"
	ballasttesting "github.com/aristath/ballast/internal/testing"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testEnv struct {
	router  *chi.Mux
	service *rebalancing.Service
	reg     *registry.Service
	cleanup func()
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	configDB, cleanupConfig := ballasttesting.NewTestDB(t, "config")
	portfolioDB, cleanupPortfolio := ballasttesting.NewTestDB(t, "portfolio")

	log := zerolog.Nop()
	bus := events.NewBus(log)
	reg := registry.NewService("vault-main", "USDC", registry.NewRepository(configDB.Conn(), log), bus, log)
	valuator := valuation.NewService(reg, log)
	configStore := rebalancing.NewConfigStore(settings.NewRepository(configDB.Conn(), log), bus, log)
	runs := history.NewRepository(portfolioDB.Conn(), log)
	service := rebalancing.NewService(reg, valuator, configStore, runs, bus, "holding", log)

	handler := NewHandler(service, runs, log)
	router := chi.NewRouter()
	router.Route("/api", func(r chi.Router) {
		handler.RegisterRoutes(r)
		handler.RegisterAdminRoutes(r)
	})

	return &testEnv{
		router:  router,
		service: service,
		reg:     reg,
		cleanup: func() {
			cleanupPortfolio()
			cleanupConfig()
		},
	}
}

func (e *testEnv) addStrategy(t *testing.T, id string, weightBps, balance uint64) *ballasttesting.MockStrategy {
	t.Helper()

	strat := ballasttesting.NewMockStrategy(balance)
	require.NoError(t, e.reg.AddStrategy(domain.StrategyRecord{
		ID: id, Vault: "vault-main", Asset: "USDC", TargetWeightBps: weightBps,
	}, strat))
	return strat
}

func (e *testEnv) do(method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func TestHandleGetPortfolio(t *testing.T) {
	env := newTestEnv(t)
	defer env.cleanup()

	env.addStrategy(t, "alpha", 5000, 7000)
	env.addStrategy(t, "beta", 5000, 3000)

	w := env.do("GET", "/api/portfolio", "")
	require.Equal(t, http.StatusOK, w.Code)

	var response map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	data := response["data"].(map[string]interface{})
	assert.Equal(t, float64(10000), data["total_value"])
}

func TestHandleGetAllocations(t *testing.T) {
	env := newTestEnv(t)
	defer env.cleanup()

	env.addStrategy(t, "alpha", 5000, 7000)
	env.addStrategy(t, "beta", 5000, 3000)

	w := env.do("GET", "/api/allocations", "")
	require.Equal(t, http.StatusOK, w.Code)

	var response map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	data := response["data"].(map[string]interface{})
	require.Equal(t, float64(2), data["count"])

	allocations := data["allocations"].([]interface{})
	first := allocations[0].(map[string]interface{})
	assert.Equal(t, "alpha", first["strategy_id"])
	assert.Equal(t, float64(7000), first["current_weight_bps"])
	assert.Equal(t, float64(2000), first["deviation_bps"])
}

func TestHandleGetAllocationsEmptyPortfolio(t *testing.T) {
	env := newTestEnv(t)
	defer env.cleanup()

	env.addStrategy(t, "alpha", 5000, 0)

	w := env.do("GET", "/api/allocations", "")
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestHandleGetStatus(t *testing.T) {
	env := newTestEnv(t)
	defer env.cleanup()

	env.addStrategy(t, "alpha", 5000, 7000)
	env.addStrategy(t, "beta", 5000, 3000)

	w := env.do("GET", "/api/rebalance/status", "")
	require.Equal(t, http.StatusOK, w.Code)

	var response map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	data := response["data"].(map[string]interface{})
	assert.Equal(t, true, data["needed"])
	assert.Equal(t, float64(2000), data["max_deviation_bps"])
}

func TestHandleRebalance(t *testing.T) {
	env := newTestEnv(t)
	defer env.cleanup()

	alpha := env.addStrategy(t, "alpha", 5000, 7000)
	beta := env.addStrategy(t, "beta", 5000, 3000)

	w := env.do("POST", "/api/rebalance", "")
	require.Equal(t, http.StatusOK, w.Code)

	var response map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	data := response["data"].(map[string]interface{})
	assert.Equal(t, float64(2000), data["moved_amount"])
	assert.NotEmpty(t, data["run_id"])

	alphaValue, _ := alpha.TotalValue()
	betaValue, _ := beta.TotalValue()
	assert.Equal(t, uint64(5000), alphaValue)
	assert.Equal(t, uint64(5000), betaValue)

	// A second trigger finds nothing to do
	w = env.do("POST", "/api/rebalance", "")
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	// The completed run shows up in history
	w = env.do("GET", "/api/rebalance/runs", "")
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	data = response["data"].(map[string]interface{})
	assert.Equal(t, float64(1), data["count"])
}

func TestHandleConfigRoundTrip(t *testing.T) {
	env := newTestEnv(t)
	defer env.cleanup()

	w := env.do("PUT", "/api/rebalance/config", `{"deviation_threshold_bps": 750, "min_rebalance_amount": 200}`)
	require.Equal(t, http.StatusOK, w.Code)

	w = env.do("GET", "/api/rebalance/config", "")
	require.Equal(t, http.StatusOK, w.Code)

	var response map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	data := response["data"].(map[string]interface{})
	assert.Equal(t, float64(750), data["deviation_threshold_bps"])
	assert.Equal(t, float64(200), data["min_rebalance_amount"])
}

func TestHandleUpdateConfigValidation(t *testing.T) {
	env := newTestEnv(t)
	defer env.cleanup()

	tests := []struct {
		name           string
		body           string
		expectedStatus int
	}{
		{
			name:           "empty update",
			body:           `{}`,
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "malformed json",
			body:           `{"deviation`,
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "threshold above maximum",
			body:           `{"deviation_threshold_bps": 2001}`,
			expectedStatus: http.StatusUnprocessableEntity,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do("PUT", "/api/rebalance/config", tt.body)
			assert.Equal(t, tt.expectedStatus, w.Code)
		})
	}
}

func TestHandleGetRunsLimitValidation(t *testing.T) {
	env := newTestEnv(t)
	defer env.cleanup()

	w := env.do("GET", "/api/rebalance/runs?limit=abc", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do("GET", "/api/rebalance/runs?limit=-1", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
