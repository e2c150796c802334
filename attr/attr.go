// Package attr provides typed scalar attributes for spans and log records.
package attr

import (
	"time"
)

// Attr is a key-value pair attached to a span or event.
type Attr struct {
	Key   string
	Value Value
}

// String creates a string attribute.
func String(key, value string) Attr {
	return Attr{Key: key, Value: StringValue(value)}
}

// Int creates an int attribute (stored as int64).
func Int(key string, value int) Attr {
	return Attr{Key: key, Value: Int64Value(int64(value))}
}

// Int64 creates an int64 attribute.
func Int64(key string, value int64) Attr {
	return Attr{Key: key, Value: Int64Value(value)}
}

// Float64 creates a float64 attribute.
func Float64(key string, value float64) Attr {
	return Attr{Key: key, Value: Float64Value(value)}
}

// Bool creates a bool attribute.
func Bool(key string, value bool) Attr {
	return Attr{Key: key, Value: BoolValue(value)}
}

// Duration creates a time.Duration attribute.
func Duration(key string, value time.Duration) Attr {
	return Attr{Key: key, Value: DurationValue(value)}
}

// Time creates a time.Time attribute.
func Time(key string, value time.Time) Attr {
	return Attr{Key: key, Value: TimeValue(value)}
}

// Any creates an attribute from a scalar of unknown static type.
// Non-scalar values are stored using their fmt representation.
func Any(key string, value any) Attr {
	return Attr{Key: key, Value: AnyValue(value)}
}

// Error creates the conventional "error" attribute holding err's message.
func Error(err error) Attr {
	if err == nil {
		return String("error", "")
	}
	return String("error", err.Error())
}

// String returns "key=value".
func (a Attr) String() string {
	return a.Key + "=" + a.Value.String()
}
