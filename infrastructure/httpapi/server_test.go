package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	appselection "segment-selector/application/selection"
	"segment-selector/domain/selection"
	"segment-selector/infrastructure/config"
)

type mockProber struct{}

func (mockProber) Probe(ctx context.Context, source string) (selection.MediaReference, error) {
	if source == "broken.mp4" {
		return selection.MediaReference{}, fmt.Errorf("%w: no duration", selection.ErrInvalidMedia)
	}
	return selection.MediaReference{Source: source, Title: "Talk", TotalDuration: 600}, nil
}

type staticConfig struct {
	cfg *config.Config
}

func (s staticConfig) Current() *config.Config { return s.cfg }

type failingConsumer struct{}

func (failingConsumer) Submit(ctx context.Context, sub selection.Submission) error {
	return errors.New("queue unavailable")
}

type testAPI struct {
	registry *appselection.Registry
	handler  http.Handler
}

func newTestAPI(t *testing.T, cfg *config.Config, opts ...appselection.Option) *testAPI {
	t.Helper()
	if cfg == nil {
		cfg = config.Default()
	}
	n := 0
	opts = append(opts, appselection.WithIDGenerator(func() string {
		n++
		return fmt.Sprintf("s%d", n)
	}))
	registry := appselection.NewRegistry(mockProber{}, cfg, opts...)
	srv := NewServer(registry, staticConfig{cfg}, nil, nil)
	return &testAPI{registry: registry, handler: srv.Handler()}
}

func (a *testAPI) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	a.handler.ServeHTTP(rec, req)
	return rec
}

func (a *testAPI) open(t *testing.T) appselection.Snapshot {
	t.Helper()
	rec := a.do(t, http.MethodPost, "/v1/sessions", `{"source":"talk.mp4","plan":"free"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("open session status = %d, body %s", rec.Code, rec.Body.String())
	}
	return decode[appselection.Snapshot](t, rec)
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return v
}

func TestServer_Health(t *testing.T) {
	api := newTestAPI(t, nil)
	api.open(t)

	rec := api.do(t, http.MethodGet, "/healthz", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body := decode[map[string]any](t, rec)
	if body["status"] != "ok" || body["sessions"] != float64(1) {
		t.Errorf("health body = %v", body)
	}
}

func TestServer_Plans(t *testing.T) {
	api := newTestAPI(t, nil)

	rec := api.do(t, http.MethodGet, "/v1/plans", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	plans := decode[[]config.Plan](t, rec)

	var keys []string
	for _, p := range plans {
		keys = append(keys, p.Key)
	}
	if got := strings.Join(keys, ","); got != "free,starter,professional,enterprise" {
		t.Errorf("plan order = %s", got)
	}
	if !plans[0].Default || plans[0].MaxSpanSeconds != 300 {
		t.Errorf("expected free to be the 300s default, got %+v", plans[0])
	}
}

func TestServer_OpenSession(t *testing.T) {
	api := newTestAPI(t, nil)
	snap := api.open(t)

	if snap.ID != "s1" {
		t.Errorf("ID = %q, want s1", snap.ID)
	}
	if snap.State != selection.StateSelecting {
		t.Errorf("State = %s, want selecting", snap.State)
	}
	if snap.Selection != (selection.Selection{Start: 0, End: 300}) {
		t.Errorf("Selection = %v, want {0 300}", snap.Selection)
	}
	if snap.StartClock != "00:00" || snap.EndClock != "05:00" {
		t.Errorf("clocks = %s - %s", snap.StartClock, snap.EndClock)
	}
}

func TestServer_OpenSessionErrors(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		status int
	}{
		{name: "malformed body", body: `{`, status: http.StatusBadRequest},
		{name: "missing source", body: `{"plan":"free"}`, status: http.StatusBadRequest},
		{name: "unknown plan", body: `{"source":"talk.mp4","plan":"gold"}`, status: http.StatusBadRequest},
		{name: "unusable media", body: `{"source":"broken.mp4"}`, status: http.StatusUnprocessableEntity},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := newTestAPI(t, nil)
			rec := api.do(t, http.MethodPost, "/v1/sessions", tt.body)
			if rec.Code != tt.status {
				t.Errorf("status = %d, want %d (body %s)", rec.Code, tt.status, rec.Body.String())
			}
			if decode[errorResponse](t, rec).Error == "" {
				t.Error("expected an error message")
			}
		})
	}
}

func TestServer_UnknownSession(t *testing.T) {
	api := newTestAPI(t, nil)

	for _, tc := range []struct{ method, path string }{
		{http.MethodGet, "/v1/sessions/nope"},
		{http.MethodDelete, "/v1/sessions/nope"},
		{http.MethodPost, "/v1/sessions/nope/reset"},
		{http.MethodPost, "/v1/sessions/nope/proceed"},
		{http.MethodGet, "/v1/sessions/nope/ws"},
	} {
		rec := api.do(t, tc.method, tc.path, `{"kind":"reset"}`)
		if rec.Code != http.StatusNotFound {
			t.Errorf("%s %s status = %d, want 404", tc.method, tc.path, rec.Code)
		}
	}
}

func TestServer_EventsAndReset(t *testing.T) {
	api := newTestAPI(t, nil)
	id := api.open(t).ID

	tests := []struct {
		name   string
		body   string
		status int
		want   selection.Selection
	}{
		{name: "click on tie moves end", body: `{"kind":"click","positionFraction":0.25}`, status: http.StatusOK, want: selection.Selection{Start: 0, End: 150}},
		{name: "move end past media", body: `{"kind":"move","boundary":"end","time":700}`, status: http.StatusOK, want: selection.Selection{Start: 300, End: 600}},
		{name: "move start into gap", body: `{"kind":"move","boundary":"start","time":598}`, status: http.StatusOK, want: selection.Selection{Start: 595, End: 600}},
		{name: "unknown kind", body: `{"kind":"zoom"}`, status: http.StatusBadRequest, want: selection.Selection{Start: 595, End: 600}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := api.do(t, http.MethodPost, "/v1/sessions/"+id+"/events", tt.body)
			if rec.Code != tt.status {
				t.Fatalf("status = %d, want %d (body %s)", rec.Code, tt.status, rec.Body.String())
			}

			var sel selection.Selection
			if tt.status == http.StatusOK {
				sel = decode[appselection.Snapshot](t, rec).Selection
			} else {
				resp := decode[errorResponse](t, rec)
				if resp.Session == nil {
					t.Fatal("expected the session to be attached to the error")
				}
				sel = resp.Session.Selection
			}
			if sel != tt.want {
				t.Errorf("selection = %v, want %v", sel, tt.want)
			}
		})
	}

	rec := api.do(t, http.MethodPost, "/v1/sessions/"+id+"/reset", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("reset status = %d", rec.Code)
	}
	if sel := decode[appselection.Snapshot](t, rec).Selection; sel != (selection.Selection{Start: 0, End: 300}) {
		t.Errorf("selection after reset = %v", sel)
	}

	if rec := api.do(t, http.MethodPost, "/v1/sessions/"+id+"/events", "not json"); rec.Code != http.StatusBadRequest {
		t.Errorf("malformed event status = %d, want 400", rec.Code)
	}
}

func TestServer_Proceed(t *testing.T) {
	api := newTestAPI(t, nil)
	id := api.open(t).ID
	api.do(t, http.MethodPost, "/v1/sessions/"+id+"/events", `{"kind":"move","boundary":"end","time":700}`)

	rec := api.do(t, http.MethodPost, "/v1/sessions/"+id+"/proceed", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("proceed status = %d, body %s", rec.Code, rec.Body.String())
	}
	resp := decode[proceedResponse](t, rec)
	want := selection.Submission{Source: "talk.mp4", Start: 300, End: 600, Duration: 300}
	if resp.Submission != want {
		t.Errorf("submission = %+v, want %+v", resp.Submission, want)
	}
	if resp.Session.State != selection.StateSubmitted {
		t.Errorf("state = %s, want submitted", resp.Session.State)
	}

	// the gate stays closed after submission
	// submitted sessions are removed
	if rec := api.do(t, http.MethodPost, "/v1/sessions/"+id+"/proceed", ""); rec.Code != http.StatusNotFound {
		t.Errorf("second proceed status = %d, want 404", rec.Code)
	}
	if rec := api.do(t, http.MethodPost, "/v1/sessions/"+id+"/events", `{"kind":"reset"}`); rec.Code != http.StatusNotFound {
		t.Errorf("event after submit status = %d, want 404", rec.Code)
	}
	if rec := api.do(t, http.MethodGet, "/v1/sessions/"+id, ""); rec.Code != http.StatusNotFound {
		t.Errorf("get after submit status = %d, want 404", rec.Code)
	}
}

func TestServer_ProceedTooShort(t *testing.T) {
	cfg := config.Default()
	cfg.Selection.MinGapSeconds = 1
	api := newTestAPI(t, cfg)
	id := api.open(t).ID

	api.do(t, http.MethodPost, "/v1/sessions/"+id+"/events", `{"kind":"move","boundary":"start","time":100}`)
	api.do(t, http.MethodPost, "/v1/sessions/"+id+"/events", `{"kind":"move","boundary":"end","time":103}`)

	rec := api.do(t, http.MethodPost, "/v1/sessions/"+id+"/proceed", "")
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422 (body %s)", rec.Code, rec.Body.String())
	}
	resp := decode[errorResponse](t, rec)
	if resp.Span != 3 || resp.Limit != 5 {
		t.Errorf("span/limit = %v/%v, want 3/5", resp.Span, resp.Limit)
	}
	if resp.Session == nil || resp.Session.State != selection.StateSelecting {
		t.Errorf("expected session to stay selecting, got %+v", resp.Session)
	}
}

func TestServer_ProceedConsumerFailure(t *testing.T) {
	api := newTestAPI(t, nil, appselection.WithConsumer(failingConsumer{}))
	id := api.open(t).ID

	rec := api.do(t, http.MethodPost, "/v1/sessions/"+id+"/proceed", "")
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", rec.Code)
	}
	if !strings.Contains(decode[errorResponse](t, rec).Error, "queue unavailable") {
		t.Errorf("body = %s", rec.Body.String())
	}
}

func TestServer_CloseSession(t *testing.T) {
	api := newTestAPI(t, nil)
	id := api.open(t).ID

	if rec := api.do(t, http.MethodDelete, "/v1/sessions/"+id, ""); rec.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d", rec.Code)
	}
	if rec := api.do(t, http.MethodGet, "/v1/sessions/"+id, ""); rec.Code != http.StatusNotFound {
		t.Errorf("get after delete status = %d, want 404", rec.Code)
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{err: appselection.ErrSessionNotFound, want: http.StatusNotFound},
		{err: selection.ErrInvalidEvent, want: http.StatusBadRequest},
		{err: config.ErrPlanNotFound, want: http.StatusBadRequest},
		{err: &selection.SpanError{Kind: selection.ErrSelectionTooLong}, want: http.StatusUnprocessableEntity},
		{err: selection.ErrMediaNotReady, want: http.StatusConflict},
		{err: selection.ErrSessionClosed, want: http.StatusConflict},
		{err: fmt.Errorf("%w: boom", selection.ErrConsumerFailed), want: http.StatusBadGateway},
		{err: errors.New("boom"), want: http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := statusFor(tt.err); got != tt.want {
			t.Errorf("statusFor(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}

func TestServer_Stream(t *testing.T) {
	api := newTestAPI(t, nil)
	id := api.open(t).ID

	ts := httptest.NewServer(api.handler)
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/v1/sessions/" + id + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	read := func() StreamMessage {
		t.Helper()
		conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		var msg StreamMessage
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("read: %v", err)
		}
		return msg
	}

	first := read()
	if first.Type != MessageSnapshot || first.Session.Selection != (selection.Selection{Start: 0, End: 300}) {
		t.Fatalf("first message = %+v", first)
	}

	if err := conn.WriteJSON(selection.Event{Kind: selection.EventClick, Fraction: 0.125}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if msg := read(); msg.Type != MessageSnapshot || msg.Session.Selection != (selection.Selection{Start: 75, End: 300}) {
		t.Errorf("after click = %+v", msg)
	}

	if err := conn.WriteJSON(selection.Event{Kind: "zoom"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if msg := read(); msg.Type != MessageError || !strings.Contains(msg.Error, "invalid selection event") {
		t.Errorf("after invalid event = %+v", msg)
	}

	// changes made through the REST API reach the stream too
	api.do(t, http.MethodPost, "/v1/sessions/"+id+"/reset", "")
	if msg := read(); msg.Session == nil || msg.Session.Selection != (selection.Selection{Start: 0, End: 300}) {
		t.Errorf("after reset = %+v", msg)
	}

	if err := api.registry.Close(id); err != nil {
		t.Fatalf("Close() unexpected error: %v", err)
	}
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, _, err = conn.ReadMessage()
	if !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
		t.Errorf("expected a normal close after the session closed, got %v", err)
	}
}
