package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"sttbridge/internal/engine"
	"sttbridge/internal/models"
	"sttbridge/internal/stt"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  8192,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" ||
			strings.HasPrefix(origin, "http://localhost") ||
			strings.HasPrefix(origin, "http://127.0.0.1")
	},
}

func isWebSocketUpgrade(r *http.Request) bool {
	return websocket.IsWebSocketUpgrade(r)
}

// writeStreamError sends one error frame. mu may be nil when the caller
// is the only writer.
func writeStreamError(conn *websocket.Conn, mu *sync.Mutex, code string) {
	if mu != nil {
		mu.Lock()
		defer mu.Unlock()
	}
	_ = conn.WriteJSON(models.StreamEvent{Type: "error", Error: code})
}

// streamErrorCode maps a recognition failure to a stable in-protocol
// error token.
func streamErrorCode(err error) string {
	switch {
	case errors.Is(err, engine.ErrUnsupportedLanguage):
		return "unsupported_language"
	case errors.Is(err, engine.ErrOnDeviceUnavailable):
		return "on_device_unavailable"
	}
	return "recognition_failed"
}

// handleStream serves the streaming recognition protocol: binary frames
// carry raw 16 kHz mono PCM16, text frames out carry partial/final/error
// events. Authentication happens after the upgrade so failures surface
// as an in-protocol error frame instead of an opaque handshake refusal.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	lang := q.Get("lang")
	if lang == "" {
		lang = s.cfg.Speech.DefaultLang
	}
	offline := queryBool(r, "offline") || s.cfg.Speech.OfflineOnly
	partials := true
	if v := q.Get("partials"); v != "" {
		partials = strings.EqualFold(v, "true") || v == "1"
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Debug().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()
	// The default close handler echoes the peer's close frame at once,
	// after which no more writes succeed. Deferring the echo keeps the
	// socket writable for the final transcript that EndAudio produces.
	conn.SetCloseHandler(func(code int, text string) error { return nil })

	if s.cfg.Server.AuthToken != "" {
		token := q.Get("token")
		if token == "" {
			token = bearerToken(r)
		}
		if !tokenMatches(token, s.cfg.Server.AuthToken) {
			writeStreamError(conn, nil, "unauthorized")
			return
		}
	}

	var writeMu sync.Mutex
	send := func(ev models.StreamEvent) {
		writeMu.Lock()
		defer writeMu.Unlock()
		if err := conn.WriteJSON(ev); err != nil {
			log.Debug().Err(err).Msg("stream write failed")
		}
	}

	var session *stt.Session
	sessionID := ""
	publish := func(eventType string, publishFn func(context.Context, string, any) error, text string, confidence *float64) {
		event := models.TranscriptEvent{
			EventType:  eventType,
			SessionID:  sessionID,
			Lang:       lang,
			Text:       text,
			Confidence: confidence,
			Timestamp:  time.Now().UnixMilli(),
		}
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = publishFn(ctx, event.SessionID, event)
		}()
	}

	cb := stt.Callbacks{
		OnPartial: func(text string) {
			if !partials {
				return
			}
			s.metrics.RecordPartialTranscript()
			send(models.StreamEvent{Type: "partial", Text: text})
			publish(s.cfg.Kafka.TopicPartial, s.publisher.PublishPartial, text, nil)
		},
		OnFinal: func(text string, confidence *float64) {
			s.metrics.RecordFinalTranscript()
			send(models.StreamEvent{Type: "final", Text: text, Confidence: confidence})
			publish(s.cfg.Kafka.TopicFinal, s.publisher.PublishFinal, text, confidence)
		},
		OnError: func(err error) {
			s.metrics.RecordStreamError()
			send(models.StreamEvent{Type: "error", Error: streamErrorCode(err)})
		},
		OnRotate: func() {
			s.metrics.RecordRotation()
		},
	}

	session, err = stt.NewSession(s.cache, lang, offline, partials, cb)
	if err != nil {
		s.metrics.RecordStreamError()
		writeStreamError(conn, &writeMu, streamErrorCode(err))
		return
	}
	sessionID = session.ID()

	s.metrics.RecordSessionStart()
	started := time.Now()
	logger := log.With().
		Str("component", "stream").
		Str("sessionId", sessionID).
		Str("lang", lang).
		Logger()
	logger.Info().Bool("offline", offline).Bool("partials", partials).Msg("stream session opened")

	defer func() {
		session.Stop()
		session.Drain(2 * time.Second)
		writeMu.Lock()
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		writeMu.Unlock()
		s.metrics.RecordSessionEnd(time.Since(started).Seconds())
		logger.Info().Dur("duration", time.Since(started)).Msg("stream session closed")
	}()

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Debug().Err(err).Msg("stream read ended")
			}
			return
		}
		if msgType != websocket.BinaryMessage {
			// Text frames are not part of the inbound protocol.
			continue
		}
		s.metrics.RecordAudioReceived(len(data))
		session.Append(data)
	}
}
