// Package w3c implements the W3C Trace Context format
// (https://www.w3.org/TR/trace-context/).
//
// The format was designed for HTTP, but the Propagator in this package works
// on any trace.Carrier: HTTP headers, gRPC metadata or a plain map.
package w3c

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/kzs0/tracehop/trace"
)

// Traceparent: version-traceid-spanid-flags
// Example: 00-0af7651916cd43dd8448eb211c80319c-b7ad6b7169203331-01
const (
	versionLen = 2
	traceIDLen = 32
	spanIDLen  = 16
	flagsLen   = 2
	fieldCount = 4

	// TraceparentLen is the exact length of a version 00 traceparent.
	TraceparentLen = versionLen + 1 + traceIDLen + 1 + spanIDLen + 1 + flagsLen

	// SampledFlag is bit 0 of the trace flags.
	SampledFlag = 0x01

	MaxTracestateEntries  = 32
	MaxTracestateKeyLen   = 256
	MaxTracestateValueLen = 256
)

var (
	ErrInvalidTraceparent = errors.New("invalid traceparent")
	ErrInvalidTraceID     = errors.New("invalid trace-id: must be 32 lowercase hex characters and not all zeros")
	ErrInvalidSpanID      = errors.New("invalid parent-id: must be 16 lowercase hex characters and not all zeros")
	ErrInvalidVersion     = errors.New("invalid version: must be 2 lowercase hex characters")
	ErrUnsupportedVersion = errors.New("unsupported version ff")
	ErrInvalidFlags       = errors.New("invalid flags: must be 2 hex characters")
	ErrInvalidTracestate  = errors.New("invalid tracestate")
)

// Traceparent is a decoded traceparent value.
type Traceparent struct {
	TraceID trace.TraceID
	SpanID  trace.SpanID
	Flags   byte
}

// Sampled reports whether the sampled flag is set.
func (tp Traceparent) Sampled() bool {
	return tp.Flags&SampledFlag != 0
}

// ParseTraceparent parses a traceparent value. Version 00 must have exactly
// four fields; later versions are parsed by their first four fields and
// version ff is rejected.
func ParseTraceparent(value string) (Traceparent, error) {
	fields := strings.Split(value, "-")
	if len(fields) < fieldCount {
		return Traceparent{}, ErrInvalidTraceparent
	}

	version := fields[0]
	if len(version) != versionLen || !isLowercaseHex(version) {
		return Traceparent{}, ErrInvalidVersion
	}
	switch version {
	case "ff":
		return Traceparent{}, ErrUnsupportedVersion
	case "00":
		if len(fields) != fieldCount || len(value) != TraceparentLen {
			return Traceparent{}, ErrInvalidTraceparent
		}
	}

	var tp Traceparent
	var err error

	if len(fields[1]) != traceIDLen || !isLowercaseHex(fields[1]) {
		return Traceparent{}, ErrInvalidTraceID
	}
	if tp.TraceID, err = trace.TraceIDFromHex(fields[1]); err != nil || tp.TraceID.IsZero() {
		return Traceparent{}, ErrInvalidTraceID
	}

	if len(fields[2]) != spanIDLen || !isLowercaseHex(fields[2]) {
		return Traceparent{}, ErrInvalidSpanID
	}
	if tp.SpanID, err = trace.SpanIDFromHex(fields[2]); err != nil || tp.SpanID.IsZero() {
		return Traceparent{}, ErrInvalidSpanID
	}

	if len(fields[3]) != flagsLen || !isLowercaseHex(fields[3]) {
		return Traceparent{}, ErrInvalidFlags
	}
	var flags [1]byte
	if _, err := hex.Decode(flags[:], []byte(fields[3])); err != nil {
		return Traceparent{}, ErrInvalidFlags
	}
	tp.Flags = flags[0]

	return tp, nil
}

// FormatTraceparent formats a version 00 traceparent value.
func FormatTraceparent(traceID trace.TraceID, spanID trace.SpanID, sampled bool) string {
	flags := byte(0)
	if sampled {
		flags |= SampledFlag
	}
	return fmt.Sprintf("00-%s-%s-%02x", traceID.String(), spanID.String(), flags)
}

// Entry is a single list member of a tracestate value.
type Entry struct {
	Key   string
	Value string
}

// ParseTracestate parses and validates a tracestate value. Duplicate keys keep
// their first occurrence, which is the most recent vendor update.
func ParseTracestate(value string) ([]Entry, error) {
	if strings.TrimSpace(value) == "" {
		return nil, nil
	}

	parts := strings.Split(value, ",")
	if len(parts) > MaxTracestateEntries {
		return nil, fmt.Errorf("%w: too many entries (max %d)", ErrInvalidTracestate, MaxTracestateEntries)
	}

	entries := make([]Entry, 0, len(parts))
	seen := make(map[string]struct{}, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		key, val, ok := strings.Cut(part, "=")
		if !ok {
			return nil, fmt.Errorf("%w: member %q has no '='", ErrInvalidTracestate, part)
		}
		if !IsValidTracestateKey(key) {
			return nil, fmt.Errorf("%w: invalid key %q", ErrInvalidTracestate, key)
		}
		if !IsValidTracestateValue(val) {
			return nil, fmt.Errorf("%w: invalid value for key %q", ErrInvalidTracestate, key)
		}

		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		entries = append(entries, Entry{Key: key, Value: val})
	}

	return entries, nil
}

// FormatTracestate joins entries into a tracestate value.
func FormatTracestate(entries []Entry) string {
	parts := make([]string, len(entries))
	for i, e := range entries {
		parts[i] = e.Key + "=" + e.Value
	}
	return strings.Join(parts, ",")
}

// IsValidTracestateKey validates a simple key or a multi-tenant
// "tenant@system" key.
func IsValidTracestateKey(key string) bool {
	if key == "" || len(key) > MaxTracestateKeyLen {
		return false
	}

	tenant, system, multi := strings.Cut(key, "@")
	if !multi {
		return isValidSimpleKey(key)
	}
	return isValidSimpleKey(tenant) && isValidSimpleKey(system)
}

// IsValidTracestateValue checks for printable ASCII without ',' or '='.
func IsValidTracestateValue(value string) bool {
	if value == "" || len(value) > MaxTracestateValueLen {
		return false
	}

	for i := 0; i < len(value); i++ {
		c := value[i]
		if c < 0x20 || c > 0x7E || c == ',' || c == '=' {
			return false
		}
	}
	return true
}

func isLowercaseHex(s string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}

func isValidSimpleKey(key string) bool {
	if key == "" {
		return false
	}

	for i := 0; i < len(key); i++ {
		c := key[i]
		if (c < 'a' || c > 'z') && (c < '0' || c > '9') &&
			c != '_' && c != '-' && c != '*' && c != '/' {
			return false
		}
	}
	return true
}
