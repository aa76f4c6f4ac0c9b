// Package models defines the wire-level data structures of the service.
package models

// Word is a single recognized token with its time offsets in seconds.
type Word struct {
	Token string  `json:"token"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// TranscriptionResult is the JSON body returned by batch transcription
// and carried (piecewise) over the streaming protocol.
type TranscriptionResult struct {
	Text       string   `json:"text"`
	IsFinal    bool     `json:"isFinal"`
	Confidence *float64 `json:"confidence,omitempty"`
	Words      []Word   `json:"words"`
}

// VoiceDescriptor is a static snapshot of one engine-reported synthesis
// voice. Quality is an ordinal, higher is better.
type VoiceDescriptor struct {
	Name       string `json:"name"`
	Identifier string `json:"identifier"`
	Language   string `json:"language"`
	Quality    int    `json:"quality"`
}

// SpeakRequest is the JSON body accepted by POST /tts.
type SpeakRequest struct {
	Text       string   `json:"text"`
	VoiceID    string   `json:"voiceId,omitempty"`
	Rate       *float64 `json:"rate,omitempty"`
	Pitch      *float64 `json:"pitch,omitempty"`
	SpeakLocal bool     `json:"speakLocal,omitempty"`
}

// Health is the GET /healthz response.
type Health struct {
	Status      string `json:"status"`
	Lang        string `json:"lang"`
	OnDeviceSTT bool   `json:"onDeviceSTT"`
}

// StreamEvent is an outbound WebSocket text frame. Type is one of
// "partial", "final" or "error".
type StreamEvent struct {
	Type       string   `json:"type"`
	Text       string   `json:"text,omitempty"`
	Confidence *float64 `json:"confidence,omitempty"`
	Error      string   `json:"error,omitempty"`
}

// TranscriptEvent is the envelope published to Kafka for downstream
// consumers. EventType is "stt.transcript.partial" or
// "stt.transcript.final".
type TranscriptEvent struct {
	EventType  string   `json:"eventType"`
	SessionID  string   `json:"sessionId"`
	Lang       string   `json:"lang"`
	Text       string   `json:"text"`
	Confidence *float64 `json:"confidence,omitempty"`
	Timestamp  int64    `json:"timestamp"`
}
