package browser

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"selfheal/internal/logging"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
)

// Page is one browser tab. It satisfies locator.Capability.
type Page struct {
	meta      Session
	page      *rod.Page
	incognito *rod.Browser
	cfg       Config
	release   func(id string)

	mu     sync.Mutex
	closed bool
}

// Meta returns the page metadata.
func (p *Page) Meta() Session {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.meta
}

// Navigate loads url and waits for the load event.
func (p *Page) Navigate(ctx context.Context, url string) error {
	rp := p.page.Context(ctx).Timeout(p.cfg.NavigationTimeout())
	if err := rp.Navigate(url); err != nil {
		return fmt.Errorf("navigate to %s: %w", url, err)
	}
	if err := rp.WaitLoad(); err != nil {
		return fmt.Errorf("wait for %s: %w", url, err)
	}
	p.mu.Lock()
	p.meta.URL = url
	p.mu.Unlock()
	logging.BrowserDebug("Navigated %s to %s", p.meta.ID, url)
	return nil
}

// Exists waits up to timeout for locator to match an element.
func (p *Page) Exists(ctx context.Context, locator string, timeout time.Duration) bool {
	_, err := p.find(ctx, locator, timeout)
	if err != nil {
		logging.BrowserDebug("Locator %q not found within %v: %v", locator, timeout, err)
		return false
	}
	return true
}

// Fill replaces the element's current value with value.
func (p *Page) Fill(ctx context.Context, locator, value string) error {
	el, err := p.find(ctx, locator, p.cfg.ActionTimeout())
	if err != nil {
		return fmt.Errorf("fill %q: %w", locator, err)
	}
	if err := el.SelectAllText(); err != nil {
		return fmt.Errorf("fill %q: select text: %w", locator, err)
	}
	if err := el.Input(value); err != nil {
		return fmt.Errorf("fill %q: %w", locator, err)
	}
	return nil
}

// Click left-clicks the element once.
func (p *Page) Click(ctx context.Context, locator string) error {
	el, err := p.find(ctx, locator, p.cfg.ActionTimeout())
	if err != nil {
		return fmt.Errorf("click %q: %w", locator, err)
	}
	if err := el.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return fmt.Errorf("click %q: %w", locator, err)
	}
	return nil
}

// ReadText returns the element's visible text.
func (p *Page) ReadText(ctx context.Context, locator string) (string, error) {
	el, err := p.find(ctx, locator, p.cfg.ActionTimeout())
	if err != nil {
		return "", fmt.Errorf("read text %q: %w", locator, err)
	}
	text, err := el.Text()
	if err != nil {
		return "", fmt.Errorf("read text %q: %w", locator, err)
	}
	return text, nil
}

// Close closes the tab and disposes its incognito context. Safe to call twice.
func (p *Page) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.mu.Unlock()

	err := p.page.Close()
	if p.incognito != nil {
		if derr := (proto.TargetDisposeBrowserContext{BrowserContextID: p.incognito.BrowserContextID}).Call(p.incognito); derr != nil && err == nil {
			err = derr
		}
	}
	if p.release != nil {
		p.release(p.meta.ID)
	}
	return err
}

func (p *Page) find(ctx context.Context, locator string, timeout time.Duration) (*rod.Element, error) {
	rp := p.page.Context(ctx).Timeout(timeout)
	kind, expr := Classify(locator)
	if kind == KindXPath {
		return rp.ElementX(expr)
	}
	return rp.Element(expr)
}

// Kind is the query language of a locator.
type Kind int

const (
	KindCSS Kind = iota
	KindXPath
)

// Classify splits a locator into its query language and expression.
// "xpath=" prefixes are stripped; "//", "(//" and "./" are XPath.
func Classify(locator string) (Kind, string) {
	trimmed := strings.TrimSpace(locator)
	if rest, ok := strings.CutPrefix(trimmed, "xpath="); ok {
		return KindXPath, rest
	}
	if rest, ok := strings.CutPrefix(trimmed, "css="); ok {
		return KindCSS, rest
	}
	if strings.HasPrefix(trimmed, "//") || strings.HasPrefix(trimmed, "(//") || strings.HasPrefix(trimmed, "./") {
		return KindXPath, trimmed
	}
	return KindCSS, trimmed
}
