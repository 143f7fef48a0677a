package browser

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
)

// loadResult is what one document navigation produced.
type loadResult struct {
	// ErrorText is the browser's network error, e.g. net::ERR_NAME_NOT_RESOLVED.
	ErrorText string
	// Status is the HTTP status of the main document, 0 when none was seen.
	Status int64
	Href   string
}

// Err reports whether the navigation left a usable page.
func (r loadResult) Err() error {
	switch {
	case r.ErrorText != "":
		return fmt.Errorf("page load error %s", r.ErrorText)
	case strings.HasPrefix(r.Href, "chrome-error:"):
		return fmt.Errorf("browser error page %s", r.Href)
	case r.Status >= 400:
		return fmt.Errorf("http status %d", r.Status)
	}
	return nil
}

// loadWatch collects document responses and DOMContentLoaded lifecycle
// events by loader id. Events may arrive before the loader id of a
// navigation is known.
type loadWatch struct {
	mu      sync.Mutex
	status  map[cdp.LoaderID]int64
	ready   map[cdp.LoaderID]bool
	changed chan struct{}
}

func newLoadWatch() *loadWatch {
	return &loadWatch{
		status:  make(map[cdp.LoaderID]int64),
		ready:   make(map[cdp.LoaderID]bool),
		changed: make(chan struct{}, 1),
	}
}

// Observe is a chromedp.ListenTarget callback.
func (w *loadWatch) Observe(ev any) {
	w.mu.Lock()
	switch ev := ev.(type) {
	case *network.EventResponseReceived:
		if ev.Type != network.ResourceTypeDocument || ev.Response == nil {
			w.mu.Unlock()
			return
		}
		w.status[ev.LoaderID] = ev.Response.Status
	case *page.EventLifecycleEvent:
		if ev.Name != "DOMContentLoaded" {
			w.mu.Unlock()
			return
		}
		w.ready[ev.LoaderID] = true
	default:
		w.mu.Unlock()
		return
	}
	w.mu.Unlock()

	select {
	case w.changed <- struct{}{}:
	default:
	}
}

// Wait blocks until loader reached DOMContentLoaded and returns its document
// status. It reports false when ctx ends first.
func (w *loadWatch) Wait(ctx context.Context, loader cdp.LoaderID) (int64, bool) {
	for {
		w.mu.Lock()
		ready, status := w.ready[loader], w.status[loader]
		w.mu.Unlock()
		if ready {
			return status, true
		}
		select {
		case <-w.changed:
		case <-ctx.Done():
			return 0, false
		}
	}
}
