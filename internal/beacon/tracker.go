package beacon

import (
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/vincentbai/pagebeacon/internal/models"
)

// Tracker wires the page observers to a Reporter for one page view.
type Tracker struct {
	page     Page
	reporter *Reporter
	session  *Session
	logger   *slog.Logger
	now      func() time.Time

	navigations sync.WaitGroup
	unload      sync.Once
}

// Start begins tracking page. It captures the page path and session start,
// reports the page view and user agent, instruments the elements carrying
// TrackAttribute at this moment, and registers the scroll and unload
// observers. Elements added to the page later are not instrumented.
func Start(page Page, endpoint string, opts ...Option) *Tracker {
	s := newSettings(opts)
	t := &Tracker{
		page:     page,
		reporter: NewReporter(endpoint, page.Path(), opts...),
		session:  NewSession(s.now()),
		logger:   s.logger,
		now:      s.now,
	}

	t.reporter.Report(models.TypePageView, nil)
	t.reporter.Report(models.TypeUserAgent, map[string]any{"user_agent": page.UserAgent()})

	elements := page.QueryAll(TrackSelector)
	for _, element := range elements {
		element.OnClick(t.clickHandler(element))
	}
	t.logger.Debug("tracking page", "path", t.reporter.Path(), "tracked_elements", len(elements))

	page.OnScroll(t.handleScroll)
	page.OnUnload(t.handleUnload)
	return t
}

func (t *Tracker) Session() *Session {
	return t.session
}

func (t *Tracker) Reporter() *Reporter {
	return t.reporter
}

// Wait blocks until every report and deferred navigation issued so far has
// finished.
func (t *Tracker) Wait() {
	t.navigations.Wait()
	t.reporter.Wait()
}

// clickHandler holds navigation back until the click report has settled so
// the request is not aborted by the page going away.
func (t *Tracker) clickHandler(element Element) func(ClickEvent) {
	return func(event ClickEvent) {
		event.PreventDefault()
		href, _ := element.Attribute("href")
		id, _ := element.Attribute("id")
		className, _ := element.Attribute("class")

		done := t.reporter.Report(models.TypeClick, map[string]any{
			"element":    strings.ToLower(element.TagName()),
			"element_id": id,
			"class_name": className,
		})

		t.navigations.Add(1)
		go func() {
			defer t.navigations.Done()
			<-done
			if href != "" {
				t.page.Navigate(href)
			}
		}()
	}
}

func (t *Tracker) handleScroll() {
	percent := ScrollPercent(t.page.ScrollY(), t.page.ScrollHeight(), t.page.InnerHeight())
	t.session.ObserveScroll(percent)
}

// handleUnload sends the final two events without waiting on them. The page
// may be torn down before either request completes, in which case they are
// lost.
func (t *Tracker) handleUnload() {
	t.unload.Do(func() {
		duration := t.session.Duration(t.now())
		t.reporter.Report(models.TypeScrollDepth, map[string]any{"max_scroll": t.session.MaxScroll()})
		t.reporter.Report(models.TypeSessionDuration, map[string]any{"duration_ms": duration.Milliseconds()})
	})
}
