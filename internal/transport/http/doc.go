// Package http implements the HTTP handlers of the example service.
// Handlers are thin: they parse the request, call a service, and express
// the outcome through a respond.Context. They never touch the
// http.ResponseWriter directly.
//
// # Handler Shapes
//
// Two shapes are used, depending on how much control the route needs:
//
//	// Context form: full access to Respond*, Go and Wait
//	func (h *NoteHandler) Delete(c *respond.Context) error {
//	    if err := h.service.Delete(c.Context(), chi.URLParam(c.Request(), "id")); err != nil {
//	        return noteError(err)
//	    }
//	    return c.RespondEmpty(http.StatusNoContent)
//	}
//
//	// Value form: return a Reply and let the dispatcher respond
//	func (h *HealthHandler) HealthCheck(ctx context.Context, r *http.Request) (respond.Reply, error) {
//	    return respond.OK(h.service.HealthCheck(ctx)), nil
//	}
//
// # Errors
//
// Service sentinels are mapped to *apierrors.APIError (404, 409, 503) before
// they are returned. Anything else is returned unchanged and becomes a 500
// envelope. Request bodies are decoded with middleware.Validator, whose
// failures are already business errors.
package http
