package respond

import (
	"context"
	"net/http"

	"respondkit/internal/envelope"
)

// Reply is a response described as a value. The zero Reply finishes the
// request with the dispatcher's success status.
type Reply struct {
	kind   envelope.Kind
	status int
	value  any
}

// Empty replies with an acknowledgement
func Empty(status int) Reply {
	return Reply{kind: envelope.KindEmpty, status: status}
}

// NoContent replies 204 with no body
func NoContent() Reply {
	return Empty(http.StatusNoContent)
}

// Object replies with a single value
func Object(status int, value any) Reply {
	return Reply{kind: envelope.KindObject, status: status, value: value}
}

// Array replies with a slice or array of values
func Array(status int, values any) Reply {
	return Reply{kind: envelope.KindArray, status: status, value: values}
}

// OK replies 200 with a single value
func OK(value any) Reply {
	return Object(http.StatusOK, value)
}

// Created replies 201 with a single value
func Created(value any) Reply {
	return Object(http.StatusCreated, value)
}

// Apply writes r to c
func (r Reply) Apply(c *Context) error {
	switch r.kind {
	case envelope.KindEmpty:
		return c.RespondEmpty(r.status)
	case envelope.KindObject:
		return c.RespondObject(r.status, r.value)
	case envelope.KindArray:
		return c.RespondArray(r.status, r.value)
	default:
		return c.Finish()
	}
}

// ReplyFunc computes a response instead of writing one. req is nil under
// Evaluate.
type ReplyFunc func(ctx context.Context, req *http.Request) (Reply, error)

// Body turns fn into a HandlerFunc
func (fn ReplyFunc) Body() HandlerFunc {
	return func(c *Context) error {
		reply, err := fn(c.Context(), c.Request())
		if err != nil {
			return err
		}
		return reply.Apply(c)
	}
}

// Reply adapts fn to an http.HandlerFunc
func (d *Dispatcher) Reply(fn ReplyFunc) http.HandlerFunc {
	return d.Handler(fn.Body())
}
