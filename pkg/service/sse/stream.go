package sse

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/theapemachine/a2a-runtime/pkg/a2a"
	"github.com/theapemachine/a2a-runtime/pkg/broker"
)

// DefaultHeartbeat keeps idle connections alive through proxies.
const DefaultHeartbeat = 25 * time.Second

/*
Streamer writes a subscription to an HTTP response as Server-Sent Events.
Each event is sent as a single-line SSE message of the form:

data: {json}\n\n
*/
type Streamer struct {
	Heartbeat time.Duration

	// Encode turns an event into the value written on the data line.
	Encode func(a2a.Event) any

	// OnOpen and OnClose are called around each stream, when set.
	OnOpen  func()
	OnClose func()
}

func NewStreamer(encode func(a2a.Event) any) *Streamer {
	return &Streamer{
		Heartbeat: DefaultHeartbeat,
		Encode:    encode,
	}
}

/*
Stream writes sub to an HTTP response. It blocks until the subscription ends
or the client goes away, in which case the subscription is closed.
*/
func (streamer *Streamer) Stream(w http.ResponseWriter, r *http.Request, sub *broker.Subscription) {
	defer sub.Close()

	flusher, ok := w.(http.Flusher)

	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	streamer.Pump(r.Context(), w, func() error {
		flusher.Flush()
		return nil
	}, sub)
}

/*
Pump writes every event of sub to w, calling flush after each event and each
heartbeat. It returns once the subscription ends, ctx is done, or a write or
flush fails, and always leaves the subscription closed.
*/
func (streamer *Streamer) Pump(
	ctx context.Context, w io.Writer, flush func() error, sub *broker.Subscription,
) {
	defer sub.Close()

	if streamer.OnOpen != nil {
		streamer.OnOpen()
	}

	if streamer.OnClose != nil {
		defer streamer.OnClose()
	}

	if err := flush(); err != nil {
		log.Debug("stream client went away", "task_id", sub.TaskID(), "error", err)
		return
	}

	interval := streamer.Heartbeat

	if interval <= 0 {
		interval = DefaultHeartbeat
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Debug("stream client went away", "task_id", sub.TaskID())
			return
		case evt, ok := <-sub.Events():
			if !ok {
				return
			}

			if err := streamer.write(w, evt); err != nil {
				log.Error("failed to write event", "task_id", sub.TaskID(), "error", err)
				return
			}

			if err := flush(); err != nil {
				log.Debug("stream client went away", "task_id", sub.TaskID(), "error", err)
				return
			}
		case <-ticker.C:
			if _, err := io.WriteString(w, ": heartbeat\n\n"); err != nil {
				return
			}

			if err := flush(); err != nil {
				log.Debug("stream client went away", "task_id", sub.TaskID(), "error", err)
				return
			}
		}
	}
}

func (streamer *Streamer) write(w io.Writer, evt a2a.Event) error {
	var payload any = evt

	if streamer.Encode != nil {
		payload = streamer.Encode(evt)
	}

	msg, err := json.Marshal(payload)

	if err != nil {
		return err
	}

	if _, err = io.WriteString(w, "data: "); err != nil {
		return err
	}

	if _, err = w.Write(msg); err != nil {
		return err
	}

	_, err = io.WriteString(w, "\n\n")

	return err
}
