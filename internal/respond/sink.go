package respond

import (
	"fmt"
	"net/http"
	"strconv"

	"respondkit/internal/envelope"
)

// committer hands a serialized envelope to wherever the response goes.
type committer interface {
	// commit reports whether the status reached the destination. Once it
	// has, the context is finished even if err is non-nil.
	commit(status int, env envelope.Envelope) (bool, error)
	// abort emits a bare 500 when no envelope could be serialized.
	abort()
}

func validStatus(status int) bool {
	return status >= 200 && status <= 599
}

func bodyAllowed(status int) bool {
	return status != http.StatusNoContent && status != http.StatusNotModified
}

func encode(s envelope.Serializer, status int, env envelope.Envelope) ([]byte, error) {
	if !bodyAllowed(status) {
		return nil, nil
	}
	return s.Marshal(env)
}

// sinkWriter commits to an http.ResponseWriter
type sinkWriter struct {
	w          http.ResponseWriter
	serializer envelope.Serializer
}

func (s sinkWriter) commit(status int, env envelope.Envelope) (bool, error) {
	body, err := encode(s.serializer, status, env)
	if err != nil {
		return false, err
	}

	if body != nil {
		h := s.w.Header()
		h.Set("Content-Type", s.serializer.ContentType())
		h.Set("Content-Length", strconv.Itoa(len(body)))
	}
	s.w.WriteHeader(status)

	if body == nil {
		return true, nil
	}
	if _, err := s.w.Write(body); err != nil {
		return true, fmt.Errorf("failed to write %s envelope: %w", env.Kind(), err)
	}
	return true, nil
}

func (s sinkWriter) abort() {
	s.w.WriteHeader(http.StatusInternalServerError)
}

// capture keeps the committed envelope in memory for Evaluate
type capture struct {
	serializer envelope.Serializer
	status     int
	env        envelope.Envelope
	body       []byte
}

func (c *capture) commit(status int, env envelope.Envelope) (bool, error) {
	body, err := encode(c.serializer, status, env)
	if err != nil {
		return false, err
	}
	c.status, c.env, c.body = status, env, body
	return true, nil
}

func (c *capture) abort() {
	c.status, c.env, c.body = http.StatusInternalServerError, nil, nil
}
