package internal

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
)

// TraceID is a 16-byte identifier shared by every span of a trace.
type TraceID [16]byte

// SpanID is an 8-byte identifier unique to one span within a trace.
type SpanID [8]byte

var (
	errTraceIDLength = errors.New("trace id must be 32 hex characters")
	errSpanIDLength  = errors.New("span id must be 16 hex characters")
)

// NewTraceID generates a random, non-zero trace ID.
func NewTraceID() TraceID {
	var id TraceID
	for id.IsZero() {
		_, _ = rand.Read(id[:])
	}
	return id
}

// NewSpanID generates a random, non-zero span ID.
func NewSpanID() SpanID {
	var id SpanID
	for id.IsZero() {
		_, _ = rand.Read(id[:])
	}
	return id
}

// String returns the lowercase hex encoding of the trace ID.
func (t TraceID) String() string {
	return hex.EncodeToString(t[:])
}

// String returns the lowercase hex encoding of the span ID.
func (s SpanID) String() string {
	return hex.EncodeToString(s[:])
}

// IsZero returns true if the trace ID is all zeros.
func (t TraceID) IsZero() bool {
	return t == TraceID{}
}

// IsZero returns true if the span ID is all zeros.
func (s SpanID) IsZero() bool {
	return s == SpanID{}
}

// TraceIDFromHex parses exactly 32 hex characters into a trace ID.
func TraceIDFromHex(s string) (TraceID, error) {
	var id TraceID
	if len(s) != 2*len(id) {
		return id, errTraceIDLength
	}
	if _, err := hex.Decode(id[:], []byte(s)); err != nil {
		return TraceID{}, err
	}
	return id, nil
}

// SpanIDFromHex parses exactly 16 hex characters into a span ID.
func SpanIDFromHex(s string) (SpanID, error) {
	var id SpanID
	if len(s) != 2*len(id) {
		return id, errSpanIDLength
	}
	if _, err := hex.Decode(id[:], []byte(s)); err != nil {
		return SpanID{}, err
	}
	return id, nil
}
