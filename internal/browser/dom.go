//go:build js && wasm

// Package browser implements beacon.Page on top of the real DOM for
// GOOS=js GOARCH=wasm builds.
package browser

import (
	"syscall/js"

	"github.com/vincentbai/pagebeacon/internal/beacon"
)

// Page is the current window and document.
type Page struct {
	window   js.Value
	document js.Value

	// Registered callbacks live as long as the page does.
	funcs []js.Func
}

var _ beacon.Page = (*Page)(nil)

func New() *Page {
	window := js.Global()
	return &Page{window: window, document: window.Get("document")}
}

// Origin is location.origin, e.g. "https://shop.example.com".
func (p *Page) Origin() string {
	return p.window.Get("location").Get("origin").String()
}

func (p *Page) Path() string {
	return p.window.Get("location").Get("pathname").String()
}

func (p *Page) UserAgent() string {
	return p.window.Get("navigator").Get("userAgent").String()
}

func (p *Page) QueryAll(selector string) []beacon.Element {
	nodes := p.document.Call("querySelectorAll", selector)
	n := nodes.Length()
	elements := make([]beacon.Element, 0, n)
	for i := 0; i < n; i++ {
		elements = append(elements, &element{page: p, value: nodes.Index(i)})
	}
	return elements
}

func (p *Page) ScrollY() float64 {
	return p.window.Get("scrollY").Float()
}

func (p *Page) ScrollHeight() float64 {
	return p.document.Get("documentElement").Get("scrollHeight").Float()
}

func (p *Page) InnerHeight() float64 {
	return p.window.Get("innerHeight").Float()
}

func (p *Page) Navigate(href string) {
	p.window.Get("location").Set("href", href)
}

func (p *Page) OnScroll(handler func()) {
	p.listen(p.window, "scroll", func(js.Value) { handler() })
}

func (p *Page) OnUnload(handler func()) {
	p.listen(p.window, "beforeunload", func(js.Value) { handler() })
}

func (p *Page) listen(target js.Value, name string, handler func(event js.Value)) {
	fn := js.FuncOf(func(_ js.Value, args []js.Value) any {
		event := js.Undefined()
		if len(args) > 0 {
			event = args[0]
		}
		handler(event)
		return nil
	})
	p.funcs = append(p.funcs, fn)
	target.Call("addEventListener", name, fn)
}

type element struct {
	page  *Page
	value js.Value
}

func (e *element) TagName() string {
	return e.value.Get("tagName").String()
}

func (e *element) Attribute(name string) (string, bool) {
	v := e.value.Call("getAttribute", name)
	if v.IsNull() || v.IsUndefined() {
		return "", false
	}
	return v.String(), true
}

func (e *element) OnClick(handler func(beacon.ClickEvent)) {
	e.page.listen(e.value, "click", func(event js.Value) {
		handler(clickEvent{value: event})
	})
}

type clickEvent struct {
	value js.Value
}

func (c clickEvent) PreventDefault() {
	if c.value.IsUndefined() {
		return
	}
	c.value.Call("preventDefault")
}

// Console writes to console.error, one call per Write.
type Console struct{}

func (Console) Write(p []byte) (int, error) {
	js.Global().Get("console").Call("error", string(p))
	return len(p), nil
}
