// Package scenario replays a scripted page visit through the beacon so the
// collector can be exercised without a browser.
package scenario

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/vincentbai/pagebeacon/internal/beacon"
	"github.com/vincentbai/pagebeacon/internal/beacon/beacontest"
	"github.com/vincentbai/pagebeacon/internal/models"
)

// Scenario describes one page view.
type Scenario struct {
	Path           string    `yaml:"path"`
	UserAgent      string    `yaml:"user_agent"`
	DocumentHeight float64   `yaml:"document_height"`
	ViewportHeight float64   `yaml:"viewport_height"`
	Elements       []Element `yaml:"elements"`
	Steps          []Step    `yaml:"steps"`
}

// Element is a clickable element on the scripted page.
type Element struct {
	Tag     string `yaml:"tag"`
	ID      string `yaml:"id"`
	Class   string `yaml:"class"`
	Href    string `yaml:"href"`
	Tracked bool   `yaml:"tracked"`
}

// Step is a single user action. Exactly one field is set.
type Step struct {
	Scroll *float64 `yaml:"scroll"` // percent of scrollable distance
	Click  string   `yaml:"click"`  // element id
	Wait   string   `yaml:"wait"`   // Go duration
	Unload bool     `yaml:"unload"`
}

// Load reads a scenario file.
func Load(path string) (Scenario, error) {
	file, err := os.Open(path)
	if err != nil {
		return Scenario{}, fmt.Errorf("open scenario %q: %w", path, err)
	}
	defer file.Close()
	return Decode(file)
}

// Decode parses and validates a scenario.
func Decode(r io.Reader) (Scenario, error) {
	var s Scenario
	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)
	if err := decoder.Decode(&s); err != nil {
		return Scenario{}, fmt.Errorf("parse scenario: %w", err)
	}
	if err := s.Validate(); err != nil {
		return Scenario{}, err
	}
	return s, nil
}

// Validate checks that every step is well formed and that clicks refer to
// declared elements.
func (s Scenario) Validate() error {
	if !strings.HasPrefix(s.Path, "/") {
		return fmt.Errorf("path must start with /, got %q", s.Path)
	}
	ids := make(map[string]bool, len(s.Elements))
	for i, el := range s.Elements {
		if strings.TrimSpace(el.Tag) == "" {
			return fmt.Errorf("elements[%d]: tag must not be empty", i)
		}
		if el.ID != "" {
			ids[el.ID] = true
		}
	}
	for i, step := range s.Steps {
		set := 0
		if step.Scroll != nil {
			set++
		}
		if step.Click != "" {
			set++
			if !ids[step.Click] {
				return fmt.Errorf("steps[%d]: unknown element %q", i, step.Click)
			}
		}
		if step.Wait != "" {
			set++
			if d, err := time.ParseDuration(step.Wait); err != nil || d < 0 {
				return fmt.Errorf("steps[%d]: invalid wait %q", i, step.Wait)
			}
		}
		if step.Unload {
			set++
		}
		if set != 1 {
			return fmt.Errorf("steps[%d]: exactly one of scroll, click, wait, unload must be set", i)
		}
	}
	return nil
}

// Result summarizes a replayed scenario.
type Result struct {
	Path        string
	MaxScroll   int
	Navigations []string
	Unloaded    bool
}

// Runner replays scenarios against a collector endpoint.
type Runner struct {
	Endpoint string
	Options  []beacon.Option
	// Sleep waits for d; nil means a real, cancellable sleep.
	Sleep func(ctx context.Context, d time.Duration) error
}

// Run replays s. Clicks on tracked elements wait for their report before the
// next step, matching how a navigation would end the visit.
func (r Runner) Run(ctx context.Context, s Scenario) (Result, error) {
	if err := s.Validate(); err != nil {
		return Result{}, err
	}
	sleep := r.Sleep
	if sleep == nil {
		sleep = sleepContext
	}

	page := beacontest.NewPage(s.Path, s.UserAgent)
	if s.DocumentHeight > 0 || s.ViewportHeight > 0 {
		page.SetGeometry(s.DocumentHeight, s.ViewportHeight)
	}
	for _, el := range s.Elements {
		attrs := map[string]string{}
		if el.ID != "" {
			attrs["id"] = el.ID
		}
		if el.Class != "" {
			attrs["class"] = el.Class
		}
		if el.Href != "" {
			attrs["href"] = el.Href
		}
		if el.Tracked {
			attrs[beacon.TrackAttribute] = ""
		}
		page.AddElement(el.Tag, attrs)
	}

	tracker := beacon.Start(page, strings.TrimRight(r.Endpoint, "/")+models.TrackPath, r.Options...)
	result := Result{Path: s.Path}

	for i, step := range s.Steps {
		if err := ctx.Err(); err != nil {
			tracker.Wait()
			return result, err
		}
		switch {
		case step.Scroll != nil:
			page.ScrollToPercent(*step.Scroll)
		case step.Click != "":
			page.FindByID(step.Click).Click()
			tracker.Wait()
		case step.Wait != "":
			d, _ := time.ParseDuration(step.Wait)
			if err := sleep(ctx, d); err != nil {
				tracker.Wait()
				return result, fmt.Errorf("steps[%d]: %w", i, err)
			}
		case step.Unload:
			page.Unload()
			result.Unloaded = true
		}
	}

	tracker.Wait()
	result.MaxScroll = tracker.Session().MaxScroll()
	result.Navigations = page.Navigations()
	return result, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
