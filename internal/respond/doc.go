// Package respond guarantees that every request produces exactly one
// envelope response.
//
// A Dispatcher wraps handler bodies. For each request it creates a Context
// stamped with the acceptance time, runs the body, waits for any
// sub-operations started with Context.Go, and then settles the request:
//
//	body returned nil, nothing written     -> Finish (empty envelope, 200)
//	body returned nil, response written    -> done
//	body returned err, nothing written     -> RespondError(err)
//	body returned err, response written    -> fault pipeline, err returned
//
// A Context is write-once. The first Respond* call commits the status and
// body to the transport; every later call fails with ErrAlreadyResponded and
// leaves the committed bytes untouched.
//
// Errors are classified by internal/errors.Classify: errors that report
// their own HTTP status keep it, everything else becomes a 500 carrying the
// error message.
//
// # Usage
//
//	d := respond.New(
//	    respond.WithSerializer(cfg.Envelope.Serializer()),
//	    respond.WithLogger(logger),
//	)
//
//	r.Get("/notes/{id}", d.Handler(func(c *respond.Context) error {
//	    note, err := store.Get(c.Context(), chi.URLParam(c.Request(), "id"))
//	    if err != nil {
//	        return err
//	    }
//	    return c.RespondObject(http.StatusOK, note)
//	}))
//
// Handlers that prefer returning values can use Reply and Dispatcher.Reply;
// Dispatcher.Evaluate runs a body without any transport and returns the
// outcome, which is what the tests in this package lean on.
package respond
