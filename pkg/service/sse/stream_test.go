package sse

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
	"github.com/theapemachine/a2a-runtime/pkg/a2a"
	"github.com/theapemachine/a2a-runtime/pkg/broker"
)

func TestStreamer(t *testing.T) {
	Convey("Given a streamer writing a finished subscription", t, func() {
		sub := broker.NewFinishedSubscription("t1",
			a2a.TaskArtifactUpdateEvent{ID: "t1", Artifact: a2a.NewTextArtifact("out", "hi")},
			a2a.TaskStatusUpdateEvent{ID: "t1", Status: a2a.TaskStatus{State: a2a.TaskStateCompleted}, Final: true},
		)

		opened, closed := 0, 0
		streamer := NewStreamer(nil)
		streamer.OnOpen = func() { opened++ }
		streamer.OnClose = func() { closed++ }

		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/", nil)

		streamer.Stream(rec, req, sub)

		Convey("It frames every event as a data line and ends", func() {
			So(rec.Header().Get("Content-Type"), ShouldEqual, "text/event-stream")

			var lines []string
			scanner := bufio.NewScanner(strings.NewReader(rec.Body.String()))

			for scanner.Scan() {
				if line := scanner.Text(); strings.HasPrefix(line, "data: ") {
					lines = append(lines, strings.TrimPrefix(line, "data: "))
				}
			}

			So(lines, ShouldHaveLength, 2)

			var last a2a.TaskStatusUpdateEvent
			So(json.Unmarshal([]byte(lines[1]), &last), ShouldBeNil)
			So(last.Final, ShouldBeTrue)
			So(opened, ShouldEqual, 1)
			So(closed, ShouldEqual, 1)
		})
	})

	Convey("Given a client that disconnects", t, func() {
		b := broker.NewBroker()
		sub := b.Subscribe("t1")
		streamer := NewStreamer(func(evt a2a.Event) any { return evt })
		streamer.Heartbeat = 10 * time.Millisecond

		ctx, cancel := context.WithCancel(context.Background())
		req := httptest.NewRequest(http.MethodGet, "/", nil).WithContext(ctx)
		done := make(chan struct{})

		go func() {
			streamer.Stream(httptest.NewRecorder(), req, sub)
			close(done)
		}()

		time.Sleep(30 * time.Millisecond)
		cancel()

		Convey("The stream returns and the subscription is detached", func() {
			select {
			case <-done:
			case <-time.After(time.Second):
				t.Fatal("stream did not return")
			}

			So(b.SubscriberCount("t1"), ShouldEqual, 0)
		})
	})
}

func TestPumpStopsWhenFlushFails(t *testing.T) {
	Convey("Given a writer whose client drops after the first event", t, func() {
		b := broker.NewBroker()
		sub := b.Subscribe("t1")
		b.Publish(a2a.TaskStatusUpdateEvent{ID: "t1", Status: a2a.TaskStatus{State: a2a.TaskStateWorking}})

		var (
			buf     strings.Builder
			flushes int
		)

		flush := func() error {
			flushes++

			if flushes > 1 {
				return io.ErrClosedPipe
			}

			return nil
		}

		done := make(chan struct{})

		go func() {
			NewStreamer(nil).Pump(context.Background(), &buf, flush, sub)
			close(done)
		}()

		Convey("Pump returns and detaches the subscription", func() {
			select {
			case <-done:
			case <-time.After(time.Second):
				t.Fatal("pump did not return")
			}

			So(buf.String(), ShouldStartWith, "data: ")
			So(b.SubscriberCount("t1"), ShouldEqual, 0)
		})
	})
}
