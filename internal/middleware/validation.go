package middleware

import (
	"errors"
	"io"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"

	apierrors "respondkit/internal/errors"
	"respondkit/internal/respond"
)

// DefaultMaxBodySize caps decoded request bodies
const DefaultMaxBodySize int64 = 1 << 20

var errEmptyBody = errors.New("request body is empty")

// Validator decodes JSON request bodies and checks them against their
// validate tags. Failures come back as business errors ready for the
// dispatcher.
type Validator struct {
	validate    *validator.Validate
	maxBodySize int64
}

// NewValidator creates a validator whose field names follow the json tags.
// A non-positive maxBodySize selects DefaultMaxBodySize.
func NewValidator(maxBodySize int64) *Validator {
	if maxBodySize <= 0 {
		maxBodySize = DefaultMaxBodySize
	}

	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	// notblank rejects strings made only of whitespace
	_ = v.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})

	return &Validator{validate: v, maxBodySize: maxBodySize}
}

// Struct validates v and returns a VALIDATION_FAILED error listing each
// offending field.
func (v *Validator) Struct(s any) error {
	return apierrors.FromValidation(v.validate.Struct(s))
}

// Decode reads the JSON body of r into dst and validates it
func (v *Validator) Decode(r *http.Request, dst any) error {
	if r.Body == nil || r.Body == http.NoBody {
		return apierrors.InvalidRequestWithError(errEmptyBody)
	}

	body := http.MaxBytesReader(nil, r.Body, v.maxBodySize)
	if err := render.DecodeJSON(body, dst); err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			return apierrors.ErrPayloadTooLarge.WithDetails(map[string]any{
				"max_size": v.maxBodySize,
			}).WithCause(err)
		case errors.Is(err, io.EOF):
			return apierrors.InvalidRequestWithError(errEmptyBody)
		default:
			return apierrors.InvalidRequestWithError(err)
		}
	}

	return v.Struct(dst)
}

// RequireJSON rejects bodies that are not declared as JSON with a 415
// envelope. Requests without a body pass through.
func RequireJSON(d *respond.Dispatcher) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.ContentLength == 0 || r.Method == http.MethodGet || r.Method == http.MethodHead || r.Method == http.MethodDelete {
				next.ServeHTTP(w, r)
				return
			}

			contentType := r.Header.Get("Content-Type")
			if contentType == "" {
				d.WriteError(w, r, apierrors.ErrUnsupportedMediaType.WithDetails(map[string]any{
					"allowed": []string{"application/json"},
				}))
				return
			}
			if render.GetContentType(contentType) != render.ContentTypeJSON {
				d.WriteError(w, r, apierrors.ErrUnsupportedMediaType.WithDetails(map[string]any{
					"content_type": contentType,
					"allowed":      []string{"application/json"},
				}))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
