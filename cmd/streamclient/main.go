// streamclient sends a WAV file over the streaming recognition
// endpoint in real-time sized chunks and prints the transcript events.
package main

import (
	"flag"
	"fmt"
	"log"
	"net/url"
	"os"
	"time"

	"github.com/gorilla/websocket"

	"sttbridge/internal/codec"
	"sttbridge/internal/models"
)

// 100ms of canonical audio: 16000 Hz * 2 bytes * 0.1s.
const (
	chunkSize       = 3200
	chunkIntervalMs = 100
)

func main() {
	audioFile := flag.String("audio", "testdata/sample.wav", "Path to WAV file")
	serverAddr := flag.String("server", "127.0.0.1:8787", "Bridge server address")
	lang := flag.String("lang", "de-DE", "Recognition language")
	offline := flag.Bool("offline", false, "Require on-device recognition")
	partials := flag.Bool("partials", true, "Request partial transcripts")
	token := flag.String("token", "", "Auth token, if the server requires one")
	flag.Parse()

	data, err := os.ReadFile(*audioFile)
	if err != nil {
		log.Fatalf("read audio file: %v", err)
	}
	buf, err := codec.DecodeWAV(data)
	if err != nil {
		log.Fatalf("parse WAV: %v", err)
	}
	canonical, err := codec.ToCanonical(buf)
	if err != nil {
		log.Fatalf("normalize audio: %v", err)
	}
	log.Printf("sending %s of audio (%d bytes)", canonical.Duration().Round(time.Millisecond), len(canonical.Data))

	q := url.Values{}
	q.Set("lang", *lang)
	q.Set("offline", fmt.Sprintf("%t", *offline))
	q.Set("partials", fmt.Sprintf("%t", *partials))
	if *token != "" {
		q.Set("token", *token)
	}
	u := url.URL{Scheme: "ws", Host: *serverAddr, Path: "/stt/stream", RawQuery: q.Encode()}

	conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		log.Fatalf("dial %s: %v", u.String(), err)
	}
	defer conn.Close()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			var ev models.StreamEvent
			if err := conn.ReadJSON(&ev); err != nil {
				return
			}
			switch ev.Type {
			case "partial":
				log.Printf("  partial: %s", ev.Text)
			case "final":
				if ev.Confidence != nil {
					log.Printf("final: %s (confidence %.2f)", ev.Text, *ev.Confidence)
				} else {
					log.Printf("final: %s", ev.Text)
				}
			case "error":
				log.Printf("error: %s", ev.Error)
			}
		}
	}()

	pcm := canonical.Data
	for off := 0; off < len(pcm); off += chunkSize {
		end := off + chunkSize
		if end > len(pcm) {
			end = len(pcm)
		}
		if err := conn.WriteMessage(websocket.BinaryMessage, pcm[off:end]); err != nil {
			log.Fatalf("send audio chunk: %v", err)
		}
		time.Sleep(chunkIntervalMs * time.Millisecond)
	}

	// The close frame ends the session; the server delivers the final
	// transcript before echoing the close.
	_ = conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		log.Println("timed out waiting for server close")
	}
}
