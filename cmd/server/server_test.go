package main

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx"
	"go.uber.org/fx/fxtest"

	"github.com/yourorg/checkout-orchestrator/internal/config"
)

const pendingPayment = `{"uuid":"pay-1","amount":12.5,"currency":"EUR","status":"Pending"}`

func fakeBackend(t *testing.T) *httptest.Server {
	t.Helper()
	write := func(status int, body string) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(status)
			_, _ = io.WriteString(w, body)
		}
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/public/pay-1", write(http.StatusOK, pendingPayment))
	mux.HandleFunc("/public/pay-1/payment-methods", write(http.StatusOK, `[{"stripe":{"type":"Cards"},"publicKey":"pk_test_1"}]`))
	mux.HandleFunc("/public/pay-1/stripe-client-secret", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		write(http.StatusOK, `{"clientSecret":"pi_1_secret_abc"}`)(w, r)
	})
	mux.HandleFunc("/public/pay-1/payee-name", write(http.StatusOK, `"Variocube"`))
	mux.HandleFunc("/public/pay-1/payee-country", write(http.StatusOK, `"AT"`))
	mux.HandleFunc("/public/missing", write(http.StatusNotFound, `{"message":"E404341"}`))

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func testConfig(backendURL string) config.Config {
	return config.Config{
		Backend: config.BackendConfig{
			DevURL:  backendURL,
			LiveURL: backendURL,
			Timeout: 5 * time.Second,
		},
		Checkout: config.CheckoutConfig{
			SettleDelay:     10 * time.Millisecond,
			PollInterval:    20 * time.Millisecond,
			DefaultLanguage: "en",
		},
		Wallet: config.WalletConfig{
			SDKURL:       backendURL + "/sdk/js",
			LoadAttempts: 1,
			LoadInterval: 10 * time.Millisecond,
		},
		Redirect: config.RedirectConfig{ProbeInterval: 10 * time.Millisecond},
		Redis:    config.RedisConfig{TTL: time.Minute},
	}
}

func setupTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	backendSrv := fakeBackend(t)

	var engine *gin.Engine
	app := fxtest.New(t,
		fx.NopLogger,
		fx.Supply(testConfig(backendSrv.URL)),
		checkoutModule,
		routerModule,
		fx.Populate(&engine),
	)
	app.RequireStart()
	t.Cleanup(app.RequireStop)
	return engine
}

func doJSON(t *testing.T, router *gin.Engine, method, path string, body interface{}) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, path, reader)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	var out map[string]interface{}
	if w.Body.Len() > 0 && strings.HasPrefix(w.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	}
	return w, out
}

func openSession(t *testing.T, router *gin.Engine, paymentID string) map[string]interface{} {
	t.Helper()
	w, snap := doJSON(t, router, http.MethodPost, "/sessions", map[string]interface{}{
		"paymentId": paymentID,
		"language":  "en-US",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return snap
}

func TestOpenSession_ShowsMethodSelection(t *testing.T) {
	router := setupTestRouter(t)

	snap := openSession(t, router, "pay-1")
	assert.Equal(t, "AwaitPaymentMethodSelection", snap["state"])
	assert.Equal(t, "pay-1", snap["paymentId"])
	assert.Equal(t, "Variocube", snap["payeeName"])
	assert.Equal(t, "Cancel", snap["dismissal"])
	assert.NotEmpty(t, snap["amount"])

	options, ok := snap["options"].([]interface{})
	require.True(t, ok)
	require.Len(t, options, 1)
	assert.Equal(t, "Cards", options[0].(map[string]interface{})["type"])

	w, again := doJSON(t, router, http.MethodGet, "/sessions/"+snap["sessionId"].(string), nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, snap["sessionId"], again["sessionId"])
}

func TestOpenSession_UnknownPayment(t *testing.T) {
	router := setupTestRouter(t)

	snap := openSession(t, router, "missing")
	assert.Equal(t, "InvalidPayment", snap["state"])
	assert.Equal(t, "OK", snap["dismissal"])
	assert.NotNil(t, snap["notice"])
}

func TestOpenSession_MissingPaymentID(t *testing.T) {
	router := setupTestRouter(t)

	w, _ := doJSON(t, router, http.MethodPost, "/sessions", map[string]interface{}{"language": "de"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSelectMethod_AndGoBack(t *testing.T) {
	router := setupTestRouter(t)
	id := openSession(t, router, "pay-1")["sessionId"].(string)

	w, snap := doJSON(t, router, http.MethodPost, "/sessions/"+id+"/select", map[string]interface{}{"index": 0})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "RenderPaymentView", snap["state"])
	assert.Equal(t, "pi_1_secret_abc", snap["clientSecret"])
	assert.EqualValues(t, 0, snap["selected"])

	w, snap = doJSON(t, router, http.MethodPost, "/sessions/"+id+"/back", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "AwaitPaymentMethodSelection", snap["state"])
	assert.Empty(t, snap["clientSecret"])
}

func TestSelectMethod_Errors(t *testing.T) {
	router := setupTestRouter(t)
	id := openSession(t, router, "pay-1")["sessionId"].(string)

	t.Run("missing index", func(t *testing.T) {
		w, _ := doJSON(t, router, http.MethodPost, "/sessions/"+id+"/select", map[string]interface{}{})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("unknown index", func(t *testing.T) {
		w, body := doJSON(t, router, http.MethodPost, "/sessions/"+id+"/select", map[string]interface{}{"index": 7})
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.NotNil(t, body["session"])
	})

	t.Run("unknown session", func(t *testing.T) {
		w, _ := doJSON(t, router, http.MethodPost, "/sessions/nope/select", map[string]interface{}{"index": 0})
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestWrongStateOperations(t *testing.T) {
	router := setupTestRouter(t)
	id := openSession(t, router, "pay-1")["sessionId"].(string)

	w, _ := doJSON(t, router, http.MethodPost, "/sessions/"+id+"/renew", nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	w, _ = doJSON(t, router, http.MethodPost, "/sessions/"+id+"/back", nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	w, _ = doJSON(t, router, http.MethodPost, "/sessions/"+id+"/launch", nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	w, _ = doJSON(t, router, http.MethodPost, "/sessions/"+id+"/lightbox-loaded", map[string]interface{}{})
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestDecision_OnePending(t *testing.T) {
	router := setupTestRouter(t)
	id := openSession(t, router, "pay-1")["sessionId"].(string)

	w, _ := doJSON(t, router, http.MethodPost, "/sessions/"+id+"/decision", map[string]interface{}{"approved": true})
	assert.Equal(t, http.StatusAccepted, w.Code)

	w, _ = doJSON(t, router, http.MethodPost, "/sessions/"+id+"/decision", map[string]interface{}{"approved": false})
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestCloseSession(t *testing.T) {
	router := setupTestRouter(t)
	id := openSession(t, router, "pay-1")["sessionId"].(string)

	w, _ := doJSON(t, router, http.MethodDelete, "/sessions/"+id, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w, _ = doJSON(t, router, http.MethodGet, "/sessions/"+id, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRetrospectiveReport(t *testing.T) {
	router := setupTestRouter(t)
	openSession(t, router, "pay-1")
	openSession(t, router, "missing")

	w, report := doJSON(t, router, http.MethodGet, "/reports/retrospective", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 2, report["Sessions"])
	assert.EqualValues(t, 1, report["InvalidPayments"])
}

func TestHealthAndMetrics(t *testing.T) {
	router := setupTestRouter(t)
	openSession(t, router, "pay-1")

	w, body := doJSON(t, router, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", body["status"])

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "checkout_state_transitions_total")

	families, err := prometheus.DefaultGatherer.Gather()
	require.NoError(t, err)
	var transitions *dto.MetricFamily
	for _, f := range families {
		if f.GetName() == "checkout_state_transitions_total" {
			transitions = f
		}
	}
	require.NotNil(t, transitions)
	assert.Equal(t, dto.MetricType_COUNTER, transitions.GetType())

	var awaiting float64
	for _, m := range transitions.GetMetric() {
		for _, lp := range m.GetLabel() {
			if lp.GetName() == "to" && lp.GetValue() == "AwaitPaymentMethodSelection" {
				awaiting += m.GetCounter().GetValue()
			}
		}
	}
	assert.GreaterOrEqual(t, awaiting, 1.0)
}

func TestInspectCommand(t *testing.T) {
	backendSrv := fakeBackend(t)
	t.Setenv("CHECKOUT_BACKEND_DEV_URL", backendSrv.URL)
	t.Setenv("CHECKOUT_TRACING_ENABLED", "false")

	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetArgs([]string{"inspect", "pay-1", "--language", "en"})
	require.NoError(t, root.Execute())

	var snap map[string]interface{}
	require.NoError(t, json.Unmarshal(out.Bytes(), &snap))
	assert.Equal(t, "AwaitPaymentMethodSelection", snap["state"])
	assert.Equal(t, "Variocube", snap["payeeName"])
}
