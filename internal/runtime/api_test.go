package runtime

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/minutelabs/minute-core/internal/ai"
	"github.com/minutelabs/minute-core/internal/config"
	"github.com/minutelabs/minute-core/internal/models"
	"github.com/minutelabs/minute-core/internal/recording"
	"github.com/minutelabs/minute-core/internal/store"
)

type fakeEngineLink struct {
	starts int
	stops  int
}

func (f *fakeEngineLink) Start(ctx context.Context, sessionID, inputDeviceID string) error {
	f.starts++
	return nil
}

func (f *fakeEngineLink) Stop(ctx context.Context, sessionID string) error {
	f.stops++
	return nil
}

func newTestAPI(t *testing.T, aiCfg config.AIConfig) (*httptest.Server, *apiHandlers, *fakeEngineLink) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	st, err := store.Open(context.Background(), config.StoreConfig{
		Path:          filepath.Join(t.TempDir(), "minute.db"),
		RetentionDays: 30,
		MaxSessions:   100,
	}, logger)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	link := &fakeEngineLink{}
	mgr, err := models.NewManager(config.ModelsConfig{}, logger)
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}

	api := &apiHandlers{
		store:        st,
		controller:   recording.NewController(link, st, logger),
		orchestrator: ai.NewOrchestrator(aiCfg, logger),
		models:       mgr,
		log:          logger,
	}
	mux := http.NewServeMux()
	api.register(mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, api, link
}

func postJSON(t *testing.T, url string, body any, out any) int {
	t.Helper()
	payload, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	resp, err := http.Post(url, "application/json", bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("post %s: %v", url, err)
	}
	defer resp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode %s: %v", url, err)
		}
	}
	return resp.StatusCode
}

func getJSON(t *testing.T, url string, out any) int {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("get %s: %v", url, err)
	}
	defer resp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode %s: %v", url, err)
		}
	}
	return resp.StatusCode
}

func TestSessionLifecycleOverAPI(t *testing.T) {
	srv, _, link := newTestAPI(t, config.AIConfig{})

	var sess map[string]any
	if code := postJSON(t, srv.URL+"/v1/sessions", map[string]string{"title": "standup"}, &sess); code != http.StatusCreated {
		t.Fatalf("create session: status %d", code)
	}
	id, _ := sess["id"].(string)
	if id == "" {
		t.Fatal("create session: missing id")
	}

	// Recording before consent must be refused without touching the engine.
	var errBody map[string]any
	if code := postJSON(t, srv.URL+"/v1/sessions/"+id+"/record", map[string]string{}, &errBody); code != http.StatusConflict {
		t.Fatalf("record without consent: status %d", code)
	}
	if link.starts != 0 {
		t.Fatalf("engine started without consent: %d starts", link.starts)
	}

	var snap map[string]any
	if code := postJSON(t, srv.URL+"/v1/sessions/"+id+"/consent", nil, &snap); code != http.StatusOK {
		t.Fatalf("consent: status %d", code)
	}
	if code := postJSON(t, srv.URL+"/v1/sessions/"+id+"/record", map[string]string{"input_device_id": "mic-1"}, &snap); code != http.StatusOK {
		t.Fatalf("record: status %d", code)
	}
	if snap["state"] != "recording" {
		t.Fatalf("state after record = %v, want recording", snap["state"])
	}
	if link.starts != 1 {
		t.Fatalf("starts = %d, want 1", link.starts)
	}

	if code := getJSON(t, srv.URL+"/v1/recording", &snap); code != http.StatusOK {
		t.Fatalf("recording state: status %d", code)
	}
	if snap["state"] != "recording" {
		t.Fatalf("observed state = %v, want recording", snap["state"])
	}

	// Second record call toggles back to idle.
	if code := postJSON(t, srv.URL+"/v1/sessions/"+id+"/record", map[string]string{}, &snap); code != http.StatusOK {
		t.Fatalf("stop record: status %d", code)
	}
	if snap["state"] != "idle" {
		t.Fatalf("state after stop = %v, want idle", snap["state"])
	}
	if link.stops != 1 {
		t.Fatalf("stops = %d, want 1", link.stops)
	}
}

func TestNotesAgendaAndSegments(t *testing.T) {
	srv, api, _ := newTestAPI(t, config.AIConfig{})

	var sess map[string]any
	postJSON(t, srv.URL+"/v1/sessions", map[string]string{"title": "planning"}, &sess)
	id := sess["id"].(string)

	req, _ := http.NewRequest(http.MethodPut, srv.URL+"/v1/sessions/"+id+"/notes", bytes.NewReader([]byte(`{"notes":"follow up with ops"}`)))
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("put notes: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("put notes: status %d", resp.StatusCode)
	}

	if err := api.store.AppendSegment(context.Background(), store.Segment{
		SessionID: id,
		SpeakerID: "speaker_1",
		Text:      "let's start",
		StartMS:   0,
		EndMS:     1200,
	}); err != nil {
		t.Fatalf("append segment: %v", err)
	}

	var segs []map[string]any
	if code := getJSON(t, srv.URL+"/v1/sessions/"+id+"/segments", &segs); code != http.StatusOK {
		t.Fatalf("segments: status %d", code)
	}
	if len(segs) != 1 || segs[0]["text"] != "let's start" {
		t.Fatalf("segments = %v", segs)
	}

	got, err := api.store.GetSession(context.Background(), id)
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	if got.Notes != "follow up with ops" {
		t.Fatalf("notes = %q", got.Notes)
	}
}

func TestMeetingUpdateEndToEnd(t *testing.T) {
	llm := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"message": map[string]any{
				"content": "<summary>Discussed rollout.</summary><agenda>- [x] rollout plan</agenda>",
			},
		})
	}))
	defer llm.Close()

	srv, api, _ := newTestAPI(t, config.AIConfig{
		Provider:       "ollama",
		OllamaEndpoint: llm.URL,
		TimeoutMS:      5000,
	})

	var sess map[string]any
	postJSON(t, srv.URL+"/v1/sessions", map[string]string{"title": "rollout"}, &sess)
	id := sess["id"].(string)

	var upd map[string]any
	if code := postJSON(t, srv.URL+"/v1/sessions/"+id+"/update", nil, &upd); code != http.StatusOK {
		t.Fatalf("update: status %d body %v", code, upd)
	}
	if upd["summary"] != "Discussed rollout." {
		t.Fatalf("summary = %v", upd["summary"])
	}
	if upd["agenda"] != "- [x] rollout plan" {
		t.Fatalf("agenda = %v", upd["agenda"])
	}

	var latest map[string]any
	if code := getJSON(t, srv.URL+"/v1/sessions/"+id+"/update", &latest); code != http.StatusOK {
		t.Fatalf("latest update: status %d", code)
	}
	if latest["summary"] != upd["summary"] {
		t.Fatalf("latest = %v, want %v", latest["summary"], upd["summary"])
	}

	got, err := api.store.GetSession(context.Background(), id)
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	if got.Agenda != "- [x] rollout plan" {
		t.Fatalf("session agenda = %q", got.Agenda)
	}
}

func TestMeetingUpdateConfigurationError(t *testing.T) {
	srv, _, _ := newTestAPI(t, config.AIConfig{Provider: "openai"})

	var sess map[string]any
	postJSON(t, srv.URL+"/v1/sessions", map[string]string{}, &sess)
	id := sess["id"].(string)

	var body map[string]any
	if code := postJSON(t, srv.URL+"/v1/sessions/"+id+"/update", nil, &body); code != http.StatusBadRequest {
		t.Fatalf("update without key: status %d body %v", code, body)
	}
}

func TestModelsEndpointsUnconfigured(t *testing.T) {
	srv, _, _ := newTestAPI(t, config.AIConfig{})

	var res map[string]any
	if code := postJSON(t, srv.URL+"/v1/models/validate", map[string]string{"path": "/tmp/model"}, &res); code != http.StatusOK {
		t.Fatalf("validate: status %d", code)
	}
	if ok, _ := res["ok"].(bool); ok {
		t.Fatalf("validate with no tool configured reported ok: %v", res)
	}
}

func TestUnknownSessionIs404(t *testing.T) {
	srv, _, _ := newTestAPI(t, config.AIConfig{})
	if code := getJSON(t, srv.URL+"/v1/sessions/nope", nil); code != http.StatusNotFound {
		t.Fatalf("unknown session: status %d", code)
	}
}
