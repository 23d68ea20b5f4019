package repository

import "context"

// Element is one matched node in a fetched document.
type Element interface {
	// Text returns the trimmed visible text of the element.
	Text() string
	// Attr returns the named attribute, or "" when absent. For nodes
	// without their own href the enclosing anchor's href is surfaced.
	Attr(name string) string
}

// FetchDriver abstracts the browser session the locator drives. Every
// method may fail; a failure during a single strategy trial is treated
// as "strategy failed" by the caller, while ErrDriverGone aborts the
// whole pass.
type FetchDriver interface {
	// Navigate loads the given URL in the session.
	Navigate(ctx context.Context, url string) error
	// Title returns the current document title.
	Title(ctx context.Context) (string, error)
	// QueryElements evaluates an XPath query and returns the matches.
	QueryElements(ctx context.Context, query string) ([]Element, error)
	// AllLinks returns every anchor element in the document, used by
	// the permissive fallback extraction.
	AllLinks(ctx context.Context) ([]Element, error)
	// TriggerReveal asks the page to load more content, e.g. by
	// scrolling the conversation list container to its bottom.
	TriggerReveal(ctx context.Context) error
}
