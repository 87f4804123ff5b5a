package envelope

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// ContentTypeJSON is the content type written with JSON envelopes
const ContentTypeJSON = "application/json"

// Serializer turns an envelope into response bytes. Implementations must be
// safe for concurrent use and must not change after construction.
type Serializer interface {
	ContentType() string
	Marshal(env Envelope) ([]byte, error)
}

// JSONSerializer writes envelopes as JSON objects keyed by acceptedAt plus
// the variant fields.
type JSONSerializer struct {
	timeLayout string
	location   *time.Location
	indent     string
	escapeHTML bool
}

// JSONOption configures a JSONSerializer during construction
type JSONOption func(*JSONSerializer)

// WithTimeLayout sets the layout used for acceptedAt
func WithTimeLayout(layout string) JSONOption {
	return func(s *JSONSerializer) { s.timeLayout = layout }
}

// WithLocation converts acceptedAt into loc before formatting. A nil
// location keeps the zone of the recorded instant.
func WithLocation(loc *time.Location) JSONOption {
	return func(s *JSONSerializer) { s.location = loc }
}

// WithIndent pretty-prints envelopes using the given indent string
func WithIndent(indent string) JSONOption {
	return func(s *JSONSerializer) { s.indent = indent }
}

// WithEscapeHTML toggles escaping of <, > and & inside strings
func WithEscapeHTML(escape bool) JSONOption {
	return func(s *JSONSerializer) { s.escapeHTML = escape }
}

// NewJSONSerializer returns a serializer with RFC 3339 nanosecond UTC
// timestamps, compact output and HTML escaping, then applies opts.
func NewJSONSerializer(opts ...JSONOption) *JSONSerializer {
	s := &JSONSerializer{
		timeLayout: time.RFC3339Nano,
		location:   time.UTC,
		escapeHTML: true,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

type wireEmpty struct {
	AcceptedAt string `json:"acceptedAt"`
}

type wireResult struct {
	AcceptedAt string `json:"acceptedAt"`
	Result     any    `json:"result"`
}

type wireError struct {
	AcceptedAt string `json:"acceptedAt"`
	ErrorBody
}

// ContentType implements Serializer
func (s *JSONSerializer) ContentType() string {
	return ContentTypeJSON
}

// FormatTime renders t the way acceptedAt is written
func (s *JSONSerializer) FormatTime(t time.Time) string {
	if s.location != nil {
		t = t.In(s.location)
	}
	return t.Format(s.timeLayout)
}

// Marshal implements Serializer
func (s *JSONSerializer) Marshal(env Envelope) ([]byte, error) {
	var wire any
	switch e := env.(type) {
	case Empty:
		wire = wireEmpty{AcceptedAt: s.FormatTime(e.AcceptedAt)}
	case Object:
		wire = wireResult{AcceptedAt: s.FormatTime(e.AcceptedAt), Result: e.Result}
	case Array:
		result := e.Result
		if result == nil {
			result = []any{}
		}
		wire = wireResult{AcceptedAt: s.FormatTime(e.AcceptedAt), Result: result}
	case Error:
		wire = wireError{AcceptedAt: s.FormatTime(e.AcceptedAt), ErrorBody: e.Body}
	default:
		return nil, fmt.Errorf("unsupported envelope %T", env)
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(s.escapeHTML)
	if s.indent != "" {
		enc.SetIndent("", s.indent)
	}
	if err := enc.Encode(wire); err != nil {
		return nil, fmt.Errorf("failed to encode %s envelope: %w", env.Kind(), err)
	}

	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}
