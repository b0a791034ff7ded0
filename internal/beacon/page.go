// Package beacon instruments a single page view and reports what happens on it
// to an analytics endpoint.
package beacon

// TrackAttribute marks an element whose clicks are reported.
const TrackAttribute = "data-track-click"

// TrackSelector selects every element carrying TrackAttribute.
const TrackSelector = "[" + TrackAttribute + "]"

// Page is the slice of the browser's window/document the tracker consumes.
// Handlers registered through OnScroll and OnUnload are expected to be
// dispatched one at a time, the way a browser event loop does.
type Page interface {
	// Path is the location pathname of the current document.
	Path() string
	UserAgent() string

	// QueryAll returns the elements matching selector at the time of the call.
	QueryAll(selector string) []Element

	ScrollY() float64
	ScrollHeight() float64
	InnerHeight() float64

	// Navigate sends the page to href.
	Navigate(href string)

	OnScroll(handler func())
	OnUnload(handler func())
}

// Element is a DOM element that can be instrumented for clicks.
type Element interface {
	TagName() string
	Attribute(name string) (string, bool)
	OnClick(handler func(ClickEvent))
}

// ClickEvent is the event passed to click handlers.
type ClickEvent interface {
	PreventDefault()
}
