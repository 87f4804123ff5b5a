package errors

import (
	"errors"
	"fmt"
	"net/http"

	"respondkit/internal/envelope"
)

// Business is implemented by errors that choose their own HTTP status.
// Implementations may also provide ErrorCode() string and ErrorDetails() any
// to enrich the payload.
type Business interface {
	error
	HTTPStatus() int
}

type coder interface {
	ErrorCode() string
}

type detailer interface {
	ErrorDetails() any
}

// Classified is the status and payload derived from an error
type Classified struct {
	Status   int
	Body     envelope.ErrorBody
	Business bool
}

// Classify maps any error onto a status code and an error payload.
//
// The first Business error in the chain decides the status and supplies
// the message, code and details. Every other error becomes a 500 whose
// message is err.Error(). A business status outside 200-599 is replaced by
// 500 while the payload is kept, since 1xx codes never complete a response.
//
// Classify never panics. An error that cannot describe itself, such as a
// typed nil *APIError, is classified as an opaque 500 naming its type.
func Classify(err error) (cl Classified) {
	if err == nil {
		return Classified{
			Status: http.StatusInternalServerError,
			Body:   envelope.ErrorBody{Message: "unknown error", Code: CodeInternalServer},
		}
	}

	defer func() {
		if recover() != nil {
			cl = opaque(unusableMessage(err))
		}
	}()
	return classify(err)
}

func classify(err error) Classified {
	var b Business
	if errors.As(err, &b) {
		status := b.HTTPStatus()
		if status < 200 || status > 599 {
			status = http.StatusInternalServerError
		}

		body := envelope.ErrorBody{Message: b.Error()}
		if c, ok := b.(coder); ok {
			body.Code = c.ErrorCode()
		}
		if d, ok := b.(detailer); ok {
			body.Detail = d.ErrorDetails()
		}

		return Classified{Status: status, Body: body, Business: true}
	}

	return opaque(err.Error())
}

func opaque(message string) Classified {
	return Classified{
		Status: http.StatusInternalServerError,
		Body:   envelope.ErrorBody{Message: message, Code: CodeInternalServer},
	}
}

func unusableMessage(err error) string {
	return fmt.Sprintf("unusable error value of type %T", err)
}

// Sanitize returns err unchanged when it can be classified and logged.
// Otherwise it returns a plain error naming the type of err, so that
// callers can format, log and record it safely.
func Sanitize(err error) error {
	if err == nil || reportable(err) {
		return err
	}
	return errors.New(unusableMessage(err))
}

func reportable(err error) (ok bool) {
	defer func() {
		if recover() != nil {
			ok = false
		}
	}()
	_ = err.Error()
	_ = classify(err)
	return true
}

// StatusOf is shorthand for Classify(err).Status
func StatusOf(err error) int {
	return Classify(err).Status
}
