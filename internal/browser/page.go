package browser

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/playwright-community/playwright-go"
)

var (
	ErrNoSuchElement = errors.New("no element matches selector")
	ErrWaitTimeout   = errors.New("timed out waiting for selector")
)

// Page is the capability set the scraping engines consume. Keeping it
// behind an interface lets the engines run against an in-memory fake in
// tests; production code gets the playwright-backed implementation from
// Browser.NewSession.
//
// A Page is not safe for concurrent use. One goroutine drives one page.
type Page interface {
	Navigate(url string) error
	WaitFor(selector string, timeout time.Duration) error
	Find(selector string) (Element, error)
	FindAll(selector string) ([]Element, error)
	Content() (string, error)
	URL() string
	Close() error
}

type Element interface {
	Attribute(name string) (string, error)
	Text() (string, error)
	HTML() (string, error)
	Selected() (bool, error)
	Click() error
}

type playwrightPage struct {
	page   playwright.Page
	logger *slog.Logger
}

func (p *playwrightPage) Navigate(url string) error {
	_, err := p.page.Goto(url, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
		Timeout:   playwright.Float(30000),
	})
	if err != nil {
		return fmt.Errorf("failed to navigate to %s: %w", url, err)
	}
	return nil
}

func (p *playwrightPage) WaitFor(selector string, timeout time.Duration) error {
	_, err := p.page.WaitForSelector(selector, playwright.PageWaitForSelectorOptions{
		State:   playwright.WaitForSelectorStateAttached,
		Timeout: playwright.Float(float64(timeout.Milliseconds())),
	})
	if err != nil {
		return fmt.Errorf("%w: %s", ErrWaitTimeout, selector)
	}
	return nil
}

func (p *playwrightPage) Find(selector string) (Element, error) {
	handle, err := p.page.QuerySelector(selector)
	if err != nil {
		return nil, fmt.Errorf("query %q: %w", selector, err)
	}
	if handle == nil {
		return nil, fmt.Errorf("%w: %s", ErrNoSuchElement, selector)
	}
	return &playwrightElement{handle: handle}, nil
}

func (p *playwrightPage) FindAll(selector string) ([]Element, error) {
	handles, err := p.page.QuerySelectorAll(selector)
	if err != nil {
		return nil, fmt.Errorf("query all %q: %w", selector, err)
	}
	elems := make([]Element, 0, len(handles))
	for _, h := range handles {
		elems = append(elems, &playwrightElement{handle: h})
	}
	return elems, nil
}

func (p *playwrightPage) Content() (string, error) {
	return p.page.Content()
}

func (p *playwrightPage) URL() string {
	return p.page.URL()
}

func (p *playwrightPage) Close() error {
	return p.page.Close()
}

type playwrightElement struct {
	handle playwright.ElementHandle
}

func (e *playwrightElement) Attribute(name string) (string, error) {
	return e.handle.GetAttribute(name)
}

func (e *playwrightElement) Text() (string, error) {
	return e.handle.InnerText()
}

func (e *playwrightElement) HTML() (string, error) {
	return e.handle.InnerHTML()
}

// Selected reports the live checked state of the element. The DOM property
// is the source of truth here; the checked attribute only reflects the
// initial markup.
func (e *playwrightElement) Selected() (bool, error) {
	v, err := e.handle.Evaluate("el => el.checked === true")
	if err != nil {
		return false, fmt.Errorf("read checked state: %w", err)
	}
	checked, ok := v.(bool)
	if !ok {
		return false, nil
	}
	return checked, nil
}

// Click dispatches the click from script rather than through a native
// pointer event, so overlays sitting above the control cannot intercept it.
func (e *playwrightElement) Click() error {
	_, err := e.handle.Evaluate("el => el.click()")
	if err != nil {
		return fmt.Errorf("scripted click: %w", err)
	}
	return nil
}
