// Package sse parses Server-Sent Events from an upstream LLM provider.
//
// It only reads. Format reference:
// https://html.spec.whatwg.org/multipage/server-sent-events.html
package sse

import (
	"bufio"
	"io"
	"strings"
)

// Event represents a single parsed SSE event, delimited by a blank line.
type Event struct {
	// Type is the "event:" field. Empty means the default "message" type.
	Type string

	// Data is every "data:" line of the event joined with "\n".
	Data string

	// ID is the last "id:" field, if present.
	ID string
}

// Reader yields events one at a time from src.
type Reader struct {
	scanner *bufio.Scanner

	current  Event
	hasField bool
	dataSeen bool
}

// NewReader returns a Reader over src. Lines may be up to 1 MiB.
func NewReader(src io.Reader) *Reader {
	scanner := bufio.NewScanner(src)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	return &Reader{scanner: scanner}
}

// Next blocks until a complete event is available. It returns io.EOF once the
// source is exhausted; an unterminated trailing event is still yielded first.
func (r *Reader) Next() (Event, error) {
	for r.scanner.Scan() {
		line := strings.TrimSuffix(r.scanner.Text(), "\r")

		if line == "" {
			if r.hasField {
				return r.take(), nil
			}
			// keep-alive
			continue
		}

		// comment
		if strings.HasPrefix(line, ":") {
			continue
		}

		r.parseLine(line)
	}

	if err := r.scanner.Err(); err != nil {
		return Event{}, err
	}
	if r.hasField {
		return r.take(), nil
	}
	return Event{}, io.EOF
}

func (r *Reader) parseLine(line string) {
	field, value, ok := strings.Cut(line, ":")
	if ok {
		value = strings.TrimPrefix(value, " ")
	} else {
		field = line
	}

	switch field {
	case "data":
		if r.dataSeen {
			r.current.Data += "\n"
		}
		r.current.Data += value
		r.dataSeen = true
		r.hasField = true
	case "event":
		r.current.Type = value
		r.hasField = true
	case "id":
		r.current.ID = value
		r.hasField = true
	default:
		// retry and unknown fields are ignored
	}
}

func (r *Reader) take() Event {
	ev := r.current
	r.current = Event{}
	r.hasField = false
	r.dataSeen = false
	return ev
}
