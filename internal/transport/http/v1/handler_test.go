package v1

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tripmind/backend/internal/adapter/llm"
	"github.com/tripmind/backend/internal/adapter/search"
	"github.com/tripmind/backend/internal/booking"
	"github.com/tripmind/backend/internal/config"
	"github.com/tripmind/backend/internal/domain"
	"github.com/tripmind/backend/internal/events"
	"github.com/tripmind/backend/internal/flow"
	"github.com/tripmind/backend/internal/policy"
	"github.com/tripmind/backend/internal/repository"
	"github.com/tripmind/backend/internal/runner"
	"github.com/tripmind/backend/internal/service"
	"github.com/tripmind/backend/internal/session"
)

type testEnv struct {
	e     *echo.Echo
	store *session.Store
	bc    *events.Broadcaster
	svc   *service.Service
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	cfg := config.RunConfig{
		CancelWait:       200 * time.Millisecond,
		RunTimeout:       5 * time.Second,
		HistoryThreshold: 10,
		HistoryKeep:      6,
		MaxSteps:         8,
	}

	store := session.NewStore()
	bc := events.NewBroadcaster()
	pipeline := flow.NewPipeline(
		llm.NewMockClient(),
		search.NewFlightProvider("", time.Second),
		search.NewHotelProvider("", time.Second),
		cfg,
	)
	controller := runner.NewController(store, pipeline, bc, cfg)

	archive, err := repository.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { archive.Close() })

	engine, err := policy.NewEngine(context.Background(), policy.DefaultPolicy)
	require.NoError(t, err)

	bookings := booking.NewService(store, archive, engine, bc, booking.NewLogNotifier())
	svc := service.New(store, controller, bc, bookings)

	e := echo.New()
	NewHandler(svc).RegisterRoutes(e)
	return &testEnv{e: e, store: store, bc: bc, svc: svc}
}

func (env *testEnv) do(method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rec := httptest.NewRecorder()
	env.e.ServeHTTP(rec, req)
	return rec
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "healthy")
}

func TestCreateSession(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(http.MethodPost, "/v1/sessions", "")
	assert.Equal(t, http.StatusCreated, rec.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Contains(t, resp["session_id"], "sess_")
}

func TestPostMessageRunsToCompletion(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodPost, "/v1/sessions/sess_a/messages", `{"text":"find me flights to Los Angeles"}`)
	require.Equal(t, http.StatusAccepted, rec.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Contains(t, resp["run_id"], "run_")
	assert.Contains(t, resp["message_id"], "msg_")

	// The run commits flight results and an assistant reply.
	waitFor(t, func() bool {
		st := env.store.Snapshot("sess_a")
		return st != nil && len(st.FlightResults) > 0
	})

	st := env.store.Snapshot("sess_a")
	assert.Equal(t, domain.IntentFlight, st.Intent)
	last := st.History[len(st.History)-1]
	assert.Equal(t, "assistant", last.Sender)
}

func TestPostMessageEmptyText(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(http.MethodPost, "/v1/sessions/sess_a/messages", `{"text":"   "}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetStateNotFound(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(http.MethodGet, "/v1/sessions/sess_missing/state", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetStateAndHistory(t *testing.T) {
	env := newTestEnv(t)
	env.store.AppendTurn("sess_a", domain.Turn{Sender: "user", Text: "hello", Ts: 1})

	rec := env.do(http.MethodGet, "/v1/sessions/sess_a/state", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"session_id":"sess_a"`)

	rec = env.do(http.MethodGet, "/v1/sessions/sess_a/history", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"hello"`)
}

func TestPreferencesLifecycle(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodPost, "/v1/sessions/sess_a/preferences",
		`{"items":[{"category":"cabin_class","value":"business"}]}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"cabin_class":"business"`)

	rec = env.do(http.MethodGet, "/v1/sessions/sess_a/preferences", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "business")

	rec = env.do(http.MethodDelete, "/v1/sessions/sess_a/preferences", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = env.do(http.MethodGet, "/v1/sessions/sess_a/preferences", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), "business")
}

func TestPreferencesValidation(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodPost, "/v1/sessions/sess_a/preferences", `{"items":[]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(http.MethodPost, "/v1/sessions/sess_a/preferences", `{"items":[{"category":"","value":"x"}]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestBookFlow(t *testing.T) {
	env := newTestEnv(t)
	st := env.store.GetOrCreate("sess_a")
	st.FlightResults = []domain.FlightOption{{
		ID:       "fl_1",
		Airline:  "Delta Air Lines",
		Price:    420,
		Currency: "USD",
	}}
	st.SelectedFlight = "fl_1"

	rec := env.do(http.MethodPost, "/v1/sessions/sess_a/book",
		`{"kind":"flight","guest":{"name":"Alex Rivera","email":"alex@example.com"}}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Contains(t, rec.Body.String(), "TRV-")
	assert.Contains(t, rec.Body.String(), `"status":"confirmed"`)

	rec = env.do(http.MethodGet, "/v1/sessions/sess_a/bookings", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "TRV-")
}

func TestBookBlockedByPolicy(t *testing.T) {
	env := newTestEnv(t)
	st := env.store.GetOrCreate("sess_a")
	st.FlightResults = []domain.FlightOption{{ID: "fl_1", Price: 420}}
	st.SelectedFlight = "fl_1"

	// No guest name: the policy blocks the booking.
	rec := env.do(http.MethodPost, "/v1/sessions/sess_a/book", `{"kind":"flight","guest":{}}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestBookWithoutSelection(t *testing.T) {
	env := newTestEnv(t)
	env.store.GetOrCreate("sess_a")

	rec := env.do(http.MethodPost, "/v1/sessions/sess_a/book",
		`{"kind":"flight","guest":{"name":"Alex Rivera"}}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestStreamEventsDeliversPending(t *testing.T) {
	env := newTestEnv(t)
	env.bc.Publish("sess_a", "run_1", domain.EventTypeStatus, domain.StatusPayload{Status: domain.StatusProcessing})

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	req := httptest.NewRequest(http.MethodGet, "/v1/sessions/sess_a/stream", nil).WithContext(ctx)
	rec := httptest.NewRecorder()
	env.e.ServeHTTP(rec, req)

	body := rec.Body.String()
	assert.Contains(t, body, "data: ")
	assert.Contains(t, body, `"type":"status"`)
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
}

func TestSupersessionOverHTTP(t *testing.T) {
	env := newTestEnv(t)

	first := env.do(http.MethodPost, "/v1/sessions/sess_a/messages", `{"text":"find me flights to Los Angeles"}`)
	require.Equal(t, http.StatusAccepted, first.Code)
	second := env.do(http.MethodPost, "/v1/sessions/sess_a/messages", `{"text":"actually hotels in Paris"}`)
	require.Equal(t, http.StatusAccepted, second.Code)

	var secondResp map[string]string
	require.NoError(t, json.Unmarshal(second.Body.Bytes(), &secondResp))

	// The later submission owns the session.
	waitFor(t, func() bool {
		st := env.store.Snapshot("sess_a")
		return st != nil && st.CurrentRunID == secondResp["run_id"] && len(st.HotelResults) > 0
	})
}
