package respond

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"respondkit/internal/envelope"
	apierrors "respondkit/internal/errors"
	"respondkit/internal/infrastructure"
)

var (
	// ErrAlreadyResponded is returned by every Respond* call after the first
	// successful one.
	ErrAlreadyResponded = errors.New("already responded")

	// ErrInvalidStatus is returned for status codes outside 200-599
	ErrInvalidStatus = errors.New("invalid response status")
)

// HandlerFunc is a request body run by a Dispatcher
type HandlerFunc func(c *Context) error

// Context is the per-request response state. It belongs to the goroutine
// running the handler body and must not be used from sub-operations started
// with Go.
type Context struct {
	ctx           context.Context
	req           *http.Request
	acceptedAt    time.Time
	successStatus int
	out           committer
	d             *Dispatcher

	finished bool
	status   int
	kind     envelope.Kind

	group    *errgroup.Group
	groupCtx context.Context
}

// reportedError marks an error that has already gone through the fault
// pipeline.
type reportedError struct {
	err error
}

func (e *reportedError) Error() string { return e.err.Error() }
func (e *reportedError) Unwrap() error { return e.err }

// Context returns the request context
func (c *Context) Context() context.Context { return c.ctx }

// Request returns the inbound request. It is nil under Evaluate.
func (c *Context) Request() *http.Request { return c.req }

// AcceptedAt is the instant the request was accepted
func (c *Context) AcceptedAt() time.Time { return c.acceptedAt }

// IsFinished reports whether a response has been committed
func (c *Context) IsFinished() bool { return c.finished }

// Status is the committed status code, or 0 before a response
func (c *Context) Status() int { return c.status }

// Kind is the committed envelope kind, or "" before a response
func (c *Context) Kind() envelope.Kind { return c.kind }

// RespondEmpty writes an acknowledgement with no payload
func (c *Context) RespondEmpty(status int) error {
	if err := c.checkOpen(envelope.KindEmpty); err != nil {
		return err
	}
	return c.respond(status, envelope.NewEmpty(c.acceptedAt))
}

// RespondObject writes a single value as result
func (c *Context) RespondObject(status int, value any) error {
	if err := c.checkOpen(envelope.KindObject); err != nil {
		return err
	}
	return c.respond(status, envelope.NewObject(c.acceptedAt, value))
}

// RespondArray writes values, which must be a slice or array, as result
func (c *Context) RespondArray(status int, values any) error {
	if err := c.checkOpen(envelope.KindArray); err != nil {
		return err
	}
	env, err := envelope.NewArray(c.acceptedAt, values)
	if err != nil {
		return err
	}
	return c.respond(status, env)
}

// RespondSlice is the typed form of RespondArray
func RespondSlice[T any](c *Context, status int, values []T) error {
	if err := c.checkOpen(envelope.KindArray); err != nil {
		return err
	}
	return c.respond(status, envelope.ArrayOf(c.acceptedAt, values))
}

// RespondError classifies err and writes the error envelope with the
// classified status.
func (c *Context) RespondError(err error) error {
	cl := apierrors.Classify(err)
	return c.respondClassified(cl.Status, cl, err)
}

// RespondErrorStatus writes the classified payload of err under status
func (c *Context) RespondErrorStatus(status int, err error) error {
	return c.respondClassified(status, apierrors.Classify(err), err)
}

// Finish writes an empty envelope with the success status
func (c *Context) Finish() error {
	return c.RespondEmpty(c.successStatus)
}

// Go runs fn on its own goroutine as part of this request. The dispatcher
// waits for every sub-operation before settling the response. fn receives
// a context that is cancelled once any sub-operation fails; it must not
// touch c. Panics in fn are returned as *PanicError.
func (c *Context) Go(fn func(ctx context.Context) error) {
	if c.group == nil {
		c.group, c.groupCtx = errgroup.WithContext(c.ctx)
	}
	ctx := c.groupCtx
	c.group.Go(func() (err error) {
		defer func() {
			if v := recover(); v != nil {
				err = NewPanicError(v)
			}
		}()
		return fn(ctx)
	})
}

// Wait blocks until every sub-operation started with Go has returned and
// reports the first error. Later calls to Go start a fresh group.
func (c *Context) Wait() error {
	if c.group == nil {
		return nil
	}
	err := c.group.Wait()
	c.group, c.groupCtx = nil, nil
	return err
}

func (c *Context) respondClassified(status int, cl apierrors.Classified, cause error) error {
	cause = apierrors.Sanitize(cause)
	if err := c.checkOpen(envelope.KindError); err != nil {
		return err
	}

	err := c.respond(status, envelope.NewError(c.acceptedAt, cl.Body))
	if err != nil && !c.finished && cl.Body.Detail != nil && !errors.Is(err, ErrInvalidStatus) {
		// detail could not be encoded, keep the message
		body := cl.Body
		body.Detail = nil
		err = c.respond(status, envelope.NewError(c.acceptedAt, body))
	}

	if c.finished {
		c.d.converted(c, cl, cause)
	}
	return err
}

func (c *Context) checkOpen(kind envelope.Kind) error {
	if !c.finished {
		return nil
	}
	err := fmt.Errorf("respond %s after %s %d: %w", kind, c.kind, c.status, ErrAlreadyResponded)
	return c.report(infrastructure.FaultDoubleResponse, err)
}

func (c *Context) respond(status int, env envelope.Envelope) error {
	if err := c.checkOpen(env.Kind()); err != nil {
		return err
	}
	if !validStatus(status) {
		return fmt.Errorf("respond %s with status %d: %w", env.Kind(), status, ErrInvalidStatus)
	}

	committed, err := c.out.commit(status, env)
	if committed {
		c.finished, c.status, c.kind = true, status, env.Kind()
		c.d.committed(c)
		if err != nil {
			return c.report(infrastructure.FaultWrite, err)
		}
	}
	return err
}

func (c *Context) report(reason string, err error) error {
	c.d.fault(c, reason, err)
	return &reportedError{err: err}
}
