package stt

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"sttbridge/internal/engine"
)

// MaxTaskDuration is how long one underlying recognition task may run
// before the session transparently replaces it. Callers observe no
// state change, only a possible discontinuity in recognized context at
// the boundary.
const MaxTaskDuration = 50 * time.Second

// Callbacks receive the session's asynchronous results. For each
// underlying task at most one of OnFinal/OnError fires; OnPartial may
// fire zero or more times before that. OnError is terminal for the
// whole session, not just the task: audio appended afterwards is
// dropped. OnRotate fires once per transparent task replacement.
type Callbacks struct {
	OnPartial func(text string)
	OnFinal   func(text string, confidence *float64)
	OnError   func(err error)
	OnRotate  func()
}

// Session owns one streaming-recognition lifecycle bound to a
// language/on-device policy. Append and Stop must be externally
// serialized: the owning connection is the single producer. Stop is
// idempotent and safe under concurrent invocation from the socket-close
// path and an error callback firing at the same moment.
type Session struct {
	id         string
	lang       string
	onDevice   bool
	partials   bool
	recognizer engine.Recognizer
	cb         Callbacks
	maxTaskAge time.Duration
	logger     zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu        sync.Mutex
	task      engine.RecognitionTask
	life      *taskLifecycle
	gen       int
	startedAt time.Time
	stopped   bool

	pumps sync.WaitGroup
}

// NewSession resolves a recognizer for lang through the cache, checks
// the on-device policy and starts the first recognition task.
func NewSession(cache *RecognizerCache, lang string, onDevice, partials bool, cb Callbacks) (*Session, error) {
	rec, err := cache.Get(lang)
	if err != nil {
		return nil, err
	}
	if onDevice && !rec.SupportsOnDevice() {
		return nil, engine.ErrOnDeviceUnavailable
	}

	ctx, cancel := context.WithCancel(context.Background())
	id := uuid.NewString()
	s := &Session{
		id:         id,
		lang:       lang,
		onDevice:   onDevice,
		partials:   partials,
		recognizer: rec,
		cb:         cb,
		maxTaskAge: MaxTaskDuration,
		logger: log.With().
			Str("component", "session").
			Str("sessionId", id).
			Str("lang", lang).
			Logger(),
		ctx:    ctx,
		cancel: cancel,
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.startTaskLocked(); err != nil {
		cancel()
		return nil, err
	}
	return s, nil
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Lang returns the session's language tag.
func (s *Session) Lang() string { return s.lang }

// Append forwards one chunk of raw 16 kHz mono PCM16 to the active
// task, rotating it first when the maximum task age has elapsed. Errors
// are reported through OnError, never returned: audio ingestion must
// not fail the producer loop.
func (s *Session) Append(pcm []byte) {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	if time.Since(s.startedAt) > s.maxTaskAge {
		s.rotateLocked()
	}
	task := s.task
	life := s.life
	s.mu.Unlock()

	if task == nil {
		return
	}
	if err := task.Append(pcm); err != nil {
		s.fail(life, err)
	}
}

// Stop finalizes the current task and releases session state.
// Idempotent; safe to call even if the session never received audio.
// The task is ended, not canceled: the final transcript EndAudio
// produces still flows through the callbacks. Cleanup happens once the
// event pump has drained.
func (s *Session) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	task := s.task
	s.task = nil
	s.mu.Unlock()

	if task != nil {
		task.EndAudio()
	}
	go func() {
		s.Drain(10 * time.Second)
		s.cancel()
	}()
	s.logger.Debug().Msg("session stopped")
}

// startTaskLocked allocates a fresh recognition task and starts its
// event pump. Caller holds s.mu.
func (s *Session) startTaskLocked() error {
	task, err := s.recognizer.NewTask(s.ctx, engine.TaskConfig{
		OnDevice: s.onDevice,
		Partials: s.partials,
	})
	if err != nil {
		return err
	}
	s.task = task
	s.life = newTaskLifecycle()
	s.gen++
	s.startedAt = time.Now()
	s.pumps.Add(1)
	go s.pump(task, s.life, s.gen)
	return nil
}

// Drain blocks until every event pump has exited or the timeout
// elapses. Called after Stop so a final transcript emitted by EndAudio
// can still reach the callbacks before the transport goes away.
func (s *Session) Drain(timeout time.Duration) {
	done := make(chan struct{})
	go func() {
		s.pumps.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(timeout):
		s.logger.Warn().Msg("session drain timed out")
	}
}

// rotateLocked replaces an aged-out task with a fresh one carrying the
// same language/on-device policy. Words spoken across the boundary may
// be split; that discontinuity is accepted. Caller holds s.mu.
func (s *Session) rotateLocked() {
	old := s.task
	oldLife := s.life
	if old != nil {
		old.EndAudio()
		old.Cancel()
	}
	if oldLife != nil {
		oldLife.Close()
	}
	if err := s.startTaskLocked(); err != nil {
		s.task = nil
		go s.dispatchError(err)
		return
	}
	s.logger.Debug().Int("generation", s.gen).Msg("recognition task rotated")
	if s.cb.OnRotate != nil {
		s.cb.OnRotate()
	}
}

// pump relays one task's events to the session callbacks. Events from
// rotated-away tasks are dropped via the generation check.
func (s *Session) pump(task engine.RecognitionTask, life *taskLifecycle, gen int) {
	defer s.pumps.Done()
	for ev := range task.Events() {
		switch ev.Kind {
		case engine.EventPartial:
			if life.EmitPartial() != nil || !s.isCurrent(gen) {
				continue
			}
			if s.cb.OnPartial != nil {
				s.cb.OnPartial(ev.Text)
			}
		case engine.EventFinal:
			if life.EmitFinal() != nil || !s.isCurrent(gen) {
				continue
			}
			if s.cb.OnFinal != nil {
				s.cb.OnFinal(ev.Text, MeanConfidence(ev.Confidences))
			}
		case engine.EventError:
			if !life.Fail() || !s.isCurrent(gen) {
				continue
			}
			s.dispatchError(ev.Err)
		}
	}
}

func (s *Session) isCurrent(gen int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return gen == s.gen
}

// fail reports an append failure once per task.
func (s *Session) fail(life *taskLifecycle, err error) {
	if life == nil || !life.Fail() {
		return
	}
	s.dispatchError(err)
}

// dispatchError reports an unrecoverable recognition error and stops
// the session: no replacement task is started, and audio appended after
// the error is dropped.
func (s *Session) dispatchError(err error) {
	s.mu.Lock()
	first := !s.stopped
	s.stopped = true
	task := s.task
	s.task = nil
	s.mu.Unlock()

	s.logger.Warn().Err(err).Msg("recognition error, session terminated")
	if s.cb.OnError != nil {
		s.cb.OnError(err)
	}
	if task != nil {
		task.Cancel()
	}
	if first {
		go func() {
			s.Drain(10 * time.Second)
			s.cancel()
		}()
	}
}

// MeanConfidence is the arithmetic mean of per-segment confidence
// scores, or nil when the engine reported zero segments.
func MeanConfidence(segments []float64) *float64 {
	if len(segments) == 0 {
		return nil
	}
	var sum float64
	for _, c := range segments {
		sum += c
	}
	mean := sum / float64(len(segments))
	return &mean
}
