package protocol

// StartCommand asks the engine to begin capturing and transcribing audio
// for a session. InputDeviceID is empty when the engine should pick the
// system default device.
type StartCommand struct {
	SessionID     string `json:"session_id"`
	InputDeviceID string `json:"input_device_id,omitempty"`
}

// StopCommand asks the engine to stop capturing for a session.
type StopCommand struct {
	SessionID string `json:"session_id"`
}

// CommandReply acknowledges a start or stop command.
type CommandReply struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// Segment is one timestamped, speaker-attributed utterance emitted by the
// engine. StartMS is non-decreasing across segments of one recording.
type Segment struct {
	SessionID string `json:"session_id"`
	SpeakerID string `json:"speaker_id"`
	Text      string `json:"text"`
	StartMS   int64  `json:"start_ms"`
	EndMS     int64  `json:"end_ms"`
}

// StateChange is broadcast by the engine whenever its recording state
// flips, including flips the core never requested (e.g. engine crash
// recovery).
type StateChange struct {
	SessionID string `json:"session_id,omitempty"`
	Recording bool   `json:"recording"`
}

const (
	SubjectEngineStart   = "engine.cmd.start"
	SubjectEngineStop    = "engine.cmd.stop"
	SubjectEngineSegment = "engine.segment"
	SubjectEngineState   = "engine.state"
)
