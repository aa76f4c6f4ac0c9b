// Package google provides a Google Cloud Speech-to-Text backed
// recognition engine. Requires GOOGLE_APPLICATION_CREDENTIALS to be set.
package google

import (
	"context"
	"fmt"
	"sort"
	"sync"

	speech "cloud.google.com/go/speech/apiv1"
	"github.com/rs/zerolog/log"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	speechpb "google.golang.org/genproto/googleapis/cloud/speech/v1"

	"sttbridge/internal/codec"
	"sttbridge/internal/engine"
	"sttbridge/internal/models"
)

// Cloud speech language tags the bridge exposes. Cloud recognition is
// never on-device, so SupportsOnDevice is false for every tag and
// offline-required requests fail the precondition.
var supportedLanguages = []string{
	"de-AT", "de-CH", "de-DE", "en-AU", "en-CA", "en-GB", "en-IN",
	"en-US", "es-ES", "es-MX", "fr-CA", "fr-FR", "it-IT", "ja-JP",
	"ko-KR", "nl-NL", "pl-PL", "pt-BR", "pt-PT", "ru-RU",
}

// Provider implements engine.Provider using Google Cloud Speech.
type Provider struct {
	client *speech.Client
}

// NewProvider creates a cloud speech client.
func NewProvider(ctx context.Context) (*Provider, error) {
	c, err := speech.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("create speech client: %w", err)
	}
	return &Provider{client: c}, nil
}

func (p *Provider) Recognizer(lang string) (engine.Recognizer, error) {
	for _, l := range supportedLanguages {
		if l == lang {
			return &recognizer{client: p.client, lang: lang}, nil
		}
	}
	return nil, engine.ErrUnsupportedLanguage
}

func (p *Provider) Languages() []string {
	out := make([]string, len(supportedLanguages))
	copy(out, supportedLanguages)
	sort.Strings(out)
	return out
}

// Close releases the underlying client.
func (p *Provider) Close() error { return p.client.Close() }

type recognizer struct {
	client *speech.Client
	lang   string
}

func (r *recognizer) Language() string       { return r.lang }
func (r *recognizer) SupportsOnDevice() bool { return false }

func (r *recognizer) NewTask(ctx context.Context, cfg engine.TaskConfig) (engine.RecognitionTask, error) {
	if cfg.OnDevice {
		return nil, engine.ErrOnDeviceUnavailable
	}

	taskCtx, cancel := context.WithCancel(ctx)
	stream, err := r.client.StreamingRecognize(taskCtx)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("open recognize stream: %w", err)
	}

	// The streaming config must be the first message on the stream.
	err = stream.Send(&speechpb.StreamingRecognizeRequest{
		StreamingRequest: &speechpb.StreamingRecognizeRequest_StreamingConfig{
			StreamingConfig: &speechpb.StreamingRecognitionConfig{
				Config: &speechpb.RecognitionConfig{
					Encoding:              speechpb.RecognitionConfig_LINEAR16,
					SampleRateHertz:       codec.CanonicalSampleRate,
					LanguageCode:          r.lang,
					EnableWordTimeOffsets: true,
				},
				InterimResults: cfg.Partials,
			},
		},
	})
	if err != nil {
		cancel()
		return nil, fmt.Errorf("send recognize config: %w", err)
	}

	t := &task{
		stream: stream,
		cancel: cancel,
		events: make(chan engine.Event, 16),
	}
	go t.recvLoop()
	return t, nil
}

type task struct {
	stream speechpb.Speech_StreamingRecognizeClient
	cancel context.CancelFunc
	events chan engine.Event

	mu       sync.Mutex
	ended    bool
	canceled bool
}

func (t *task) Append(pcm []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.ended || t.canceled {
		return nil
	}
	return t.stream.Send(&speechpb.StreamingRecognizeRequest{
		StreamingRequest: &speechpb.StreamingRecognizeRequest_AudioContent{
			AudioContent: pcm,
		},
	})
}

func (t *task) EndAudio() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.ended || t.canceled {
		return
	}
	t.ended = true
	if err := t.stream.CloseSend(); err != nil {
		log.Warn().Err(err).Msg("recognize stream close-send failed")
	}
}

func (t *task) Cancel() {
	t.mu.Lock()
	if t.canceled {
		t.mu.Unlock()
		return
	}
	t.canceled = true
	t.mu.Unlock()
	t.cancel()
}

func (t *task) Events() <-chan engine.Event { return t.events }

// recvLoop translates cloud responses into events. It emits at most one
// terminal event and closes the channel afterwards.
func (t *task) recvLoop() {
	defer close(t.events)
	defer t.cancel()

	for {
		resp, err := t.stream.Recv()
		if err != nil {
			t.mu.Lock()
			canceled := t.canceled
			t.mu.Unlock()
			if canceled || status.Code(err) == codes.Canceled {
				return
			}
			t.events <- engine.Event{Kind: engine.EventError, Err: fmt.Errorf("recognize: %w", err)}
			return
		}

		for _, res := range resp.Results {
			if len(res.Alternatives) == 0 {
				continue
			}
			alt := res.Alternatives[0]
			if !res.IsFinal {
				t.events <- engine.Event{Kind: engine.EventPartial, Text: alt.Transcript}
				continue
			}

			ev := engine.Event{
				Kind:  engine.EventFinal,
				Text:  alt.Transcript,
				Words: altWords(alt),
			}
			if alt.Confidence > 0 {
				ev.Confidences = []float64{float64(alt.Confidence)}
			}
			t.events <- ev
			return
		}
	}
}

func altWords(alt *speechpb.SpeechRecognitionAlternative) []models.Word {
	if len(alt.Words) == 0 {
		return nil
	}
	words := make([]models.Word, 0, len(alt.Words))
	for _, w := range alt.Words {
		words = append(words, models.Word{
			Token: w.Word,
			Start: w.StartTime.AsDuration().Seconds(),
			End:   w.EndTime.AsDuration().Seconds(),
		})
	}
	return words
}
