// Package envelope defines the closed set of response shapes written by the
// respondkit dispatch layer and the serializer that turns them into bytes.
//
// # Variants
//
// Every response is exactly one of four envelopes, each stamped with the
// instant the request was accepted:
//
//	Empty   {"acceptedAt": "2024-05-01T10:00:00.123456789Z"}
//	Object  {"acceptedAt": "...", "result": {...}}
//	Array   {"acceptedAt": "...", "result": [...]}
//	Error   {"acceptedAt": "...", "message": "...", "code": "...", "detail": ...}
//
// Envelopes are plain values. They are built once per request and never
// mutated afterwards.
//
// # Serialization
//
// A Serializer is chosen once at startup and injected into the dispatcher.
// JSONSerializer is the stock implementation; its timestamp layout, zone,
// indentation and HTML escaping are fixed at construction time.
package envelope
