package ai

import (
	"context"
	"errors"
)

// Error taxonomy for meeting updates. Callers branch with errors.Is; the
// wrapped message is always displayable to the user.
var (
	// ErrConfiguration covers missing credentials/endpoints and
	// unrecognized provider selections. Never retried.
	ErrConfiguration = errors.New("ai: configuration error")
	// ErrTransport covers network failures, timeouts and non-2xx
	// responses. Not retried automatically.
	ErrTransport = errors.New("ai: transport error")
	// ErrProtocol covers empty or unparseable provider replies.
	ErrProtocol = errors.New("ai: protocol error")
	// ErrUpdateInFlight is returned when a meeting update is requested
	// for a session that already has one outstanding.
	ErrUpdateInFlight = errors.New("ai: update already in flight")
)

// TranscriptLine is one speaker-attributed utterance in the prompt
// snapshot.
type TranscriptLine struct {
	Speaker string
	Text    string
	StartMS int64
}

// Request is a point-in-time snapshot of the meeting, built once per
// invocation.
type Request struct {
	Transcript []TranscriptLine
	Notes      string
	Agenda     string
}

// Result is the parsed meeting update.
type Result struct {
	Summary   string `json:"summary"`
	Agenda    string `json:"agenda"`
	ModelUsed string `json:"model_used"`
}

// Provider executes one meeting-update call against a specific backend
// and returns the assistant's raw text.
type Provider interface {
	Name() string
	Model() string
	Complete(ctx context.Context, req Request) (string, error)
}
