package feed

import (
	"bufio"
	"errors"
	"io"
	"strconv"
	"strings"
)

// SSEEvent represents a Server-Sent Event
type SSEEvent struct {
	Event string
	Data  string
	ID    string
	Retry int // milliseconds, 0 when not sent
}

// SSEReader reads SSE events from a stream
type SSEReader struct {
	reader *bufio.Reader
}

// NewSSEReader creates a new SSE reader
func NewSSEReader(r io.Reader) *SSEReader {
	return &SSEReader{
		reader: bufio.NewReader(r),
	}
}

// ReadEvent reads the next SSE event. A trailing event cut off by EOF is
// still returned; the following call reports io.EOF.
func (s *SSEReader) ReadEvent() (*SSEEvent, error) {
	event := &SSEEvent{
		Event: "message", // default event type
	}

	var dataLines []string
	pending := func() bool {
		return len(dataLines) > 0 || event.Event != "message" || event.ID != "" || event.Retry != 0
	}

	for {
		line, err := s.reader.ReadString('\n')
		if err != nil {
			if errors.Is(err, io.EOF) && line == "" && pending() {
				event.Data = strings.Join(dataLines, "\n")
				return event, nil
			}
			if !errors.Is(err, io.EOF) || line == "" {
				return nil, err
			}
		}

		line = strings.TrimSuffix(line, "\n")
		line = strings.TrimSuffix(line, "\r")

		// Empty line signals end of event
		if line == "" {
			if pending() {
				event.Data = strings.Join(dataLines, "\n")
				return event, nil
			}
			continue
		}

		// Comment, ignore
		if strings.HasPrefix(line, ":") {
			continue
		}

		field, value, _ := strings.Cut(line, ":")
		value = strings.TrimPrefix(value, " ")

		switch field {
		case "event":
			event.Event = value
		case "data":
			dataLines = append(dataLines, value)
		case "id":
			event.ID = value
		case "retry":
			if ms, err := strconv.Atoi(value); err == nil && ms >= 0 {
				event.Retry = ms
			}
		}
	}
}
