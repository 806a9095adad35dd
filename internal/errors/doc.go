// Package errors provides coded, structured errors for livedom.
//
// Every engine failure is an *Error created from the code registry. An Error
// carries a category, a short message, an occurrence-specific detail, an
// optional source location with context lines, a hint and a doc URL, and it
// unwraps to its cause.
//
// # Error Categories
//
//   - render: structural tree violations surfaced by Render and Patch
//   - hydration: tree description does not match the live markup
//   - interaction: event handlers that panic, fail or reject
//   - async: Async container children that reject
//   - chain: deferred query chain timeouts and bad targets
//   - config, cli: configuration and command line problems
//
// # Matching
//
// Errors compare by code, so callers can match on a registry entry:
//
//	if errors.Is(err, liverrors.New("E080")) { ... }
//	if liverrors.HasCode(err, "E080") { ... }
//
// # Usage
//
//	err := errors.New("E041").
//	    WithDetailf("expected %q, found %q", want, got).
//	    WithSuggestion("Render the same text on the server and the client")
//
//	fmt.Println(err.Format())
package errors
