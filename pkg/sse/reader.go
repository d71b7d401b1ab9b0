package sse

import (
	"bufio"
	"io"
	"strings"
)

// Event represents a Server-Sent Event
type Event struct {
	ID    string
	Event string
	Data  []byte
}

/*
Reader parses a text/event-stream body into events. Comment lines, such as
heartbeats, are skipped.
*/
type Reader struct {
	reader *bufio.Reader
}

func NewReader(r io.Reader) *Reader {
	return &Reader{reader: bufio.NewReader(r)}
}

/*
Next returns the next complete event, or io.EOF once the stream ends.
*/
func (r *Reader) Next() (*Event, error) {
	event := &Event{}
	var eventData strings.Builder
	inEvent := false

	for {
		line, err := r.reader.ReadString('\n')

		if err != nil {
			if err == io.EOF && inEvent && line == "" {
				event.Data = []byte(eventData.String())
				return event, nil
			}

			if err == io.EOF && line != "" {
				err = io.ErrUnexpectedEOF
			}

			return nil, err
		}

		line = strings.TrimRight(line, "\n\r")

		// Empty line marks the end of an event
		if line == "" {
			if inEvent {
				event.Data = []byte(eventData.String())
				return event, nil
			}

			continue
		}

		switch {
		case strings.HasPrefix(line, ":"):
			continue
		case strings.HasPrefix(line, "id:"):
			event.ID = strings.TrimSpace(line[3:])
		case strings.HasPrefix(line, "event:"):
			event.Event = strings.TrimSpace(line[6:])
		case strings.HasPrefix(line, "data:"):
			if inEvent && eventData.Len() > 0 {
				eventData.WriteString("\n")
			}

			eventData.WriteString(strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))
		default:
			continue
		}

		inEvent = true
	}
}
