// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package sse

import (
	"bufio"
	"bytes"
	"errors"
	"io"
)

// ErrEventTooLarge is returned when a single event exceeds MaxLineSize.
var ErrEventTooLarge = errors.New("sse event too large")

// Event is one dispatched server-sent event.
type Event struct {
	// Type is the event: field, empty for the default "message" type.
	Type string
	ID   string
	Data string
}

// IsMessage reports whether the event has the default message type.
func (e Event) IsMessage() bool {
	return e.Type == "" || e.Type == "message"
}

// EventReader reads events from a text/event-stream body.
type EventReader struct {
	reader *bufio.Reader
}

// NewEventReader creates an EventReader over r.
func NewEventReader(r io.Reader) *EventReader {
	return &EventReader{reader: bufio.NewReader(r)}
}

// ReadEvent blocks until the next event is complete. Events are separated
// by a blank line; multiple data: lines are joined with "\n". Comment lines
// and unknown fields are skipped. io.EOF is returned once the stream ends
// with no pending data.
func (r *EventReader) ReadEvent() (Event, error) {
	var (
		ev        Event
		dataLines [][]byte
		size      int
	)

	for {
		line, err := r.reader.ReadBytes('\n')
		if err != nil && !(errors.Is(err, io.EOF) && len(line) > 0) {
			if errors.Is(err, io.EOF) && len(dataLines) > 0 {
				ev.Data = string(bytes.Join(dataLines, []byte("\n")))
				return ev, nil
			}
			return Event{}, err
		}

		line = bytes.TrimRight(line, "\r\n")

		if len(line) == 0 {
			if len(dataLines) > 0 {
				ev.Data = string(bytes.Join(dataLines, []byte("\n")))
				return ev, nil
			}
			ev = Event{}
			continue
		}

		if line[0] == ':' {
			continue
		}

		field, value := line, []byte(nil)
		if i := bytes.IndexByte(line, ':'); i >= 0 {
			field = line[:i]
			value = bytes.TrimPrefix(line[i+1:], []byte(" "))
		}

		switch string(field) {
		case "data":
			size += len(value)
			if size > MaxLineSize {
				return Event{}, ErrEventTooLarge
			}
			dataLines = append(dataLines, append([]byte(nil), value...))
		case "event":
			ev.Type = string(value)
		case "id":
			ev.ID = string(value)
		}
	}
}
