// Package dom is the headless live document the engine renders into.
//
// A Document owns a golang.org/x/net/html node tree. All structural changes go
// through the Document so that listeners, selectors and the removal observer
// see a consistent tree, and every method is safe to call from any goroutine.
// Event listeners run outside the document lock and may mutate the document.
//
// Selectors are CSS (cascadia) unless they start with "/", "./" or "(", in
// which case they are XPath expressions evaluated by htmlquery.
package dom
