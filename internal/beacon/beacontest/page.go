// Package beacontest provides an in-memory Page for driving a tracker without
// a browser.
package beacontest

import (
	"sync"

	"github.com/vincentbai/pagebeacon/internal/beacon"
)

// Page is a scripted document. Scroll, click and unload are triggered
// explicitly; handlers run synchronously on the calling goroutine.
type Page struct {
	path      string
	userAgent string

	mu           sync.Mutex
	elements     []*Element
	scrollY      float64
	scrollHeight float64
	innerHeight  float64
	onScroll     []func()
	onUnload     []func()
	navigations  []string
}

var _ beacon.Page = (*Page)(nil)

// NewPage returns a page at path whose document is as tall as its viewport.
func NewPage(path, userAgent string) *Page {
	return &Page{
		path:         path,
		userAgent:    userAgent,
		scrollHeight: 800,
		innerHeight:  800,
	}
}

// SetGeometry sets the document and viewport heights.
func (p *Page) SetGeometry(scrollHeight, innerHeight float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.scrollHeight = scrollHeight
	p.innerHeight = innerHeight
}

// AddElement appends an element with the given tag and attributes.
func (p *Page) AddElement(tag string, attrs map[string]string) *Element {
	el := &Element{tag: tag, attrs: make(map[string]string, len(attrs))}
	for k, v := range attrs {
		el.attrs[k] = v
	}
	p.mu.Lock()
	p.elements = append(p.elements, el)
	p.mu.Unlock()
	return el
}

// FindByID returns the first element whose id attribute is id.
func (p *Page) FindByID(id string) *Element {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, el := range p.elements {
		if v, ok := el.attrs["id"]; ok && v == id {
			return el
		}
	}
	return nil
}

// ScrollTo moves the viewport to y and dispatches scroll handlers.
func (p *Page) ScrollTo(y float64) {
	p.mu.Lock()
	p.scrollY = y
	handlers := append([]func(){}, p.onScroll...)
	p.mu.Unlock()
	for _, h := range handlers {
		h()
	}
}

// ScrollToPercent scrolls to the offset that corresponds to percent of the
// scrollable distance.
func (p *Page) ScrollToPercent(percent float64) {
	p.mu.Lock()
	y := (p.scrollHeight - p.innerHeight) * percent / 100
	p.mu.Unlock()
	p.ScrollTo(y)
}

// Unload dispatches unload handlers.
func (p *Page) Unload() {
	p.mu.Lock()
	handlers := append([]func(){}, p.onUnload...)
	p.mu.Unlock()
	for _, h := range handlers {
		h()
	}
}

// Navigations returns the hrefs passed to Navigate, in order.
func (p *Page) Navigations() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.navigations...)
}

func (p *Page) Path() string      { return p.path }
func (p *Page) UserAgent() string { return p.userAgent }

// QueryAll supports bare attribute selectors of the form "[name]".
func (p *Page) QueryAll(selector string) []beacon.Element {
	name := selector
	if len(name) > 2 && name[0] == '[' && name[len(name)-1] == ']' {
		name = name[1 : len(name)-1]
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	var matches []beacon.Element
	for _, el := range p.elements {
		if _, ok := el.attrs[name]; ok {
			matches = append(matches, el)
		}
	}
	return matches
}

func (p *Page) ScrollY() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.scrollY
}

func (p *Page) ScrollHeight() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.scrollHeight
}

func (p *Page) InnerHeight() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.innerHeight
}

func (p *Page) Navigate(href string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.navigations = append(p.navigations, href)
}

func (p *Page) OnScroll(handler func()) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onScroll = append(p.onScroll, handler)
}

func (p *Page) OnUnload(handler func()) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onUnload = append(p.onUnload, handler)
}

// Element is a scripted DOM element.
type Element struct {
	tag   string
	attrs map[string]string

	mu      sync.Mutex
	onClick []func(beacon.ClickEvent)
}

func (e *Element) TagName() string { return e.tag }

func (e *Element) Attribute(name string) (string, bool) {
	v, ok := e.attrs[name]
	return v, ok
}

func (e *Element) OnClick(handler func(beacon.ClickEvent)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onClick = append(e.onClick, handler)
}

// Click dispatches a click and returns the event so callers can check
// whether the default action was prevented.
func (e *Element) Click() *ClickEvent {
	e.mu.Lock()
	handlers := append([]func(beacon.ClickEvent){}, e.onClick...)
	e.mu.Unlock()
	event := &ClickEvent{}
	for _, h := range handlers {
		h(event)
	}
	return event
}

// ClickEvent records whether PreventDefault was called.
type ClickEvent struct {
	mu        sync.Mutex
	prevented bool
}

func (c *ClickEvent) PreventDefault() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.prevented = true
}

func (c *ClickEvent) DefaultPrevented() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.prevented
}
