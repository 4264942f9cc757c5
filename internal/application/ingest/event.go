// Package ingest turns inbound order-change notifications into events and
// hands them to the hub for broadcast. It never fails the publisher: input
// that cannot be normalized is broadcast as an empty object.
package ingest

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"strings"
)

var ErrMalformedEnvelope = errors.New("malformed notification envelope")

// ContentKind tells Normalize how the body was delivered.
type ContentKind int

const (
	// KindStructured bodies are already the domain event (application/json
	// pushes); no envelope is unwrapped.
	KindStructured ContentKind = iota
	// KindText bodies are encoded strings that may hold a CloudEvents-style
	// wrapper with a "data" field.
	KindText
)

func (k ContentKind) String() string {
	if k == KindStructured {
		return "structured"
	}
	return "text"
}

// KindFromContentType maps a request Content-Type to a ContentKind. Only
// plain application/json is treated as structured; cloudevents+json, text/*
// and anything unknown are parsed as encoded strings.
func KindFromContentType(contentType string) ContentKind {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return KindText
	}
	if strings.EqualFold(mediaType, "application/json") {
		return KindStructured
	}
	return KindText
}

// Envelope is a notification as received.
type Envelope struct {
	Body []byte
	Kind ContentKind
}

// Event is a normalized domain event: a JSON value passed through verbatim.
type Event json.RawMessage

// EmptyEvent is what malformed input degrades to.
var EmptyEvent = Event(`{}`)

func (e Event) MarshalJSON() ([]byte, error) {
	if len(e) == 0 {
		return []byte(`{}`), nil
	}
	return e, nil
}

func (e Event) String() string {
	b, _ := e.MarshalJSON()
	return string(b)
}

// Outcome records which normalization branch produced an Event.
type Outcome int

const (
	OutcomeDirect Outcome = iota
	OutcomeUnwrapped
	OutcomeWhole
	OutcomeMalformed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeDirect:
		return "direct"
	case OutcomeUnwrapped:
		return "unwrapped"
	case OutcomeWhole:
		return "whole"
	case OutcomeMalformed:
		return "malformed"
	default:
		return "unknown"
	}
}

// Result always carries a usable Event. Err is set only for OutcomeMalformed
// and wraps ErrMalformedEnvelope.
type Result struct {
	Event   Event
	Outcome Outcome
	Err     error
}

func malformed(format string, args ...any) Result {
	return Result{
		Event:   EmptyEvent,
		Outcome: OutcomeMalformed,
		Err:     fmt.Errorf("%w: %s", ErrMalformedEnvelope, fmt.Sprintf(format, args...)),
	}
}

// Normalize reduces env to an Event.
//
// Text bodies are parsed; a truthy "data" member is the event, whatever its
// JSON type, otherwise the whole document is. Structured bodies are the event
// as-is. Only bodies that do not parse (or a null text document, which has no
// members to inspect) become EmptyEvent.
func Normalize(env Envelope) Result {
	body := bytes.TrimSpace(env.Body)
	if !json.Valid(body) {
		return malformed("body is not valid JSON")
	}
	if env.Kind == KindStructured {
		return Result{Event: Event(body), Outcome: OutcomeDirect}
	}

	if bytes.Equal(body, []byte("null")) {
		return malformed("body is null")
	}
	if body[0] != '{' {
		return Result{Event: Event(body), Outcome: OutcomeWhole}
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return malformed("parsing body: %v", err)
	}

	data, ok := fields["data"]
	data = bytes.TrimSpace(data)
	if !ok || isFalsy(data) {
		return Result{Event: Event(body), Outcome: OutcomeWhole}
	}
	return Result{Event: Event(data), Outcome: OutcomeUnwrapped}
}

// isFalsy reports whether a JSON value is null, false, zero or the empty
// string. Objects and arrays are never falsy, even when empty.
func isFalsy(v []byte) bool {
	switch {
	case len(v) == 0:
		return true
	case bytes.Equal(v, []byte("null")), bytes.Equal(v, []byte("false")), bytes.Equal(v, []byte(`""`)):
		return true
	case v[0] == '-' || (v[0] >= '0' && v[0] <= '9'):
		var f float64
		return json.Unmarshal(v, &f) == nil && f == 0
	}
	return false
}
