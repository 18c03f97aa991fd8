package runtime

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/minutelabs/minute-core/internal/ai"
	"github.com/minutelabs/minute-core/internal/models"
	"github.com/minutelabs/minute-core/internal/recording"
	"github.com/minutelabs/minute-core/internal/store"
)

// apiHandlers exposes the core's operations to the UI layer as a small
// JSON API.
type apiHandlers struct {
	store        *store.Store
	controller   *recording.Controller
	orchestrator *ai.Orchestrator
	models       *models.Manager
	log          *slog.Logger
}

func (a *apiHandlers) register(mux *http.ServeMux) {
	mux.HandleFunc("POST /v1/sessions", a.createSession)
	mux.HandleFunc("GET /v1/sessions", a.listSessions)
	mux.HandleFunc("GET /v1/sessions/{id}", a.getSession)
	mux.HandleFunc("POST /v1/sessions/{id}/open", a.openSession)
	mux.HandleFunc("POST /v1/sessions/{id}/consent", a.grantConsent)
	mux.HandleFunc("POST /v1/sessions/{id}/record", a.record)
	mux.HandleFunc("GET /v1/sessions/{id}/segments", a.listSegments)
	mux.HandleFunc("POST /v1/sessions/{id}/speakers", a.renameSpeaker)
	mux.HandleFunc("PUT /v1/sessions/{id}/notes", a.setNotes)
	mux.HandleFunc("PUT /v1/sessions/{id}/agenda", a.setAgenda)
	mux.HandleFunc("POST /v1/sessions/{id}/update", a.meetingUpdate)
	mux.HandleFunc("GET /v1/sessions/{id}/update", a.latestUpdate)
	mux.HandleFunc("GET /v1/recording", a.recordingState)
	mux.HandleFunc("POST /v1/models/download", a.downloadModel)
	mux.HandleFunc("POST /v1/models/validate", a.validateModel)
}

func (a *apiHandlers) createSession(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Title string `json:"title"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	sess, err := a.store.CreateSession(r.Context(), body.Title)
	if err != nil {
		a.fail(w, err)
		return
	}
	if err := a.controller.OpenSession(sess.ID); err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, sessionJSON(sess))
}

func (a *apiHandlers) listSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := a.store.ListSessions(r.Context(), 0)
	if err != nil {
		a.fail(w, err)
		return
	}
	out := make([]any, 0, len(sessions))
	for _, sess := range sessions {
		out = append(out, sessionJSON(sess))
	}
	writeJSON(w, http.StatusOK, out)
}

func (a *apiHandlers) getSession(w http.ResponseWriter, r *http.Request) {
	sess, err := a.store.GetSession(r.Context(), r.PathValue("id"))
	if err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionJSON(sess))
}

func (a *apiHandlers) openSession(w http.ResponseWriter, r *http.Request) {
	sess, err := a.store.GetSession(r.Context(), r.PathValue("id"))
	if err != nil {
		a.fail(w, err)
		return
	}
	if err := a.controller.OpenSession(sess.ID); err != nil {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, a.controller.Snapshot())
}

func (a *apiHandlers) grantConsent(w http.ResponseWriter, r *http.Request) {
	snap := a.controller.Snapshot()
	if snap.SessionID != r.PathValue("id") {
		writeError(w, http.StatusConflict, "session is not open")
		return
	}
	if err := a.controller.GrantConsent(); err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, a.controller.Snapshot())
}

func (a *apiHandlers) record(w http.ResponseWriter, r *http.Request) {
	snap := a.controller.Snapshot()
	if snap.SessionID != r.PathValue("id") {
		writeError(w, http.StatusConflict, "session is not open")
		return
	}
	var body struct {
		InputDeviceID string `json:"input_device_id"`
	}
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}
	snap, err := a.controller.Record(r.Context(), body.InputDeviceID)
	if err != nil {
		status := http.StatusBadGateway
		switch {
		case errors.Is(err, recording.ErrConsentRequired),
			errors.Is(err, recording.ErrBusy),
			errors.Is(err, recording.ErrNoSession):
			status = http.StatusConflict
		}
		writeJSON(w, status, map[string]any{"error": err.Error(), "state": snap})
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (a *apiHandlers) listSegments(w http.ResponseWriter, r *http.Request) {
	segs, err := a.store.ListSegments(r.Context(), r.PathValue("id"))
	if err != nil {
		a.fail(w, err)
		return
	}
	out := make([]any, 0, len(segs))
	for _, seg := range segs {
		out = append(out, map[string]any{
			"id":           seg.ID,
			"speaker_id":   seg.SpeakerID,
			"speaker_name": seg.SpeakerName,
			"text":         seg.Text,
			"start_ms":     seg.StartMS,
			"end_ms":       seg.EndMS,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (a *apiHandlers) renameSpeaker(w http.ResponseWriter, r *http.Request) {
	var body struct {
		SpeakerID string `json:"speaker_id"`
		Name      string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if body.SpeakerID == "" {
		writeError(w, http.StatusBadRequest, "speaker_id required")
		return
	}
	n, err := a.store.RenameSpeaker(r.Context(), r.PathValue("id"), body.SpeakerID, body.Name)
	if err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"renamed": n})
}

func (a *apiHandlers) setNotes(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Notes string `json:"notes"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := a.store.SetNotes(r.Context(), r.PathValue("id"), body.Notes); err != nil {
		a.fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *apiHandlers) setAgenda(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Agenda string `json:"agenda"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := a.store.SetAgenda(r.Context(), r.PathValue("id"), body.Agenda); err != nil {
		a.fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// meetingUpdate builds a snapshot of the session and runs one AI update.
func (a *apiHandlers) meetingUpdate(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("id")
	sess, err := a.store.GetSession(r.Context(), sessionID)
	if err != nil {
		a.fail(w, err)
		return
	}
	segs, err := a.store.ListSegments(r.Context(), sessionID)
	if err != nil {
		a.fail(w, err)
		return
	}

	req := ai.Request{Notes: sess.Notes, Agenda: sess.Agenda}
	for _, seg := range segs {
		speaker := seg.SpeakerID
		if seg.SpeakerName != nil && *seg.SpeakerName != "" {
			speaker = *seg.SpeakerName
		}
		req.Transcript = append(req.Transcript, ai.TranscriptLine{
			Speaker: speaker,
			Text:    seg.Text,
			StartMS: seg.StartMS,
		})
	}

	res, err := a.orchestrator.Update(r.Context(), sessionID, req)
	if err != nil {
		status := http.StatusBadGateway
		switch {
		case errors.Is(err, ai.ErrConfiguration):
			status = http.StatusBadRequest
		case errors.Is(err, ai.ErrUpdateInFlight):
			status = http.StatusConflict
		}
		writeError(w, status, err.Error())
		return
	}

	saved, err := a.store.SaveMeetingUpdate(r.Context(), store.MeetingUpdate{
		SessionID: sessionID,
		Summary:   res.Summary,
		Agenda:    res.Agenda,
		ModelUsed: res.ModelUsed,
	})
	if err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updateJSON(saved))
}

func (a *apiHandlers) latestUpdate(w http.ResponseWriter, r *http.Request) {
	upd, err := a.store.LatestMeetingUpdate(r.Context(), r.PathValue("id"))
	if err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updateJSON(upd))
}

func (a *apiHandlers) recordingState(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, a.controller.Snapshot())
}

func (a *apiHandlers) downloadModel(w http.ResponseWriter, r *http.Request) {
	var body struct {
		RepoID string `json:"repo_id"`
		Dest   string `json:"dest"`
		Token  string `json:"token"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, a.models.Download(r.Context(), body.RepoID, body.Dest, body.Token))
}

func (a *apiHandlers) validateModel(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Path string `json:"path"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, a.models.Validate(r.Context(), body.Path))
}

func (a *apiHandlers) fail(w http.ResponseWriter, err error) {
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	a.log.Error("api request failed", slog.String("error", err.Error()))
	writeError(w, http.StatusInternalServerError, err.Error())
}

func sessionJSON(sess store.Session) map[string]any {
	return map[string]any{
		"id":         sess.ID,
		"title":      sess.Title,
		"notes":      sess.Notes,
		"agenda":     sess.Agenda,
		"created_at": sess.CreatedAt,
		"ended_at":   sess.EndedAt,
	}
}

func updateJSON(upd store.MeetingUpdate) map[string]any {
	return map[string]any{
		"id":         upd.ID,
		"session_id": upd.SessionID,
		"summary":    upd.Summary,
		"agenda":     upd.Agenda,
		"model_used": upd.ModelUsed,
		"created_at": upd.CreatedAt,
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
