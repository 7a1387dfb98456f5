package scenario

import (
	"context"
	"fmt"
	"sync"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
)

// ChromeSurface implements Surface on a headless Chrome via chromedp.
type ChromeSurface struct {
	// browserCtx is the chromedp browser context; it outlives the
	// per-call contexts, which only gate cancellation.
	browserCtx context.Context
	cancel     context.CancelFunc

	// pending dialog input, consumed by the next dialog event.
	mu          sync.Mutex
	dialogArmed bool
	dialogInput string
}

var _ Surface = (*ChromeSurface)(nil)

// ChromeOption configures the Chrome allocator.
type ChromeOption func(*[]chromedp.ExecAllocatorOption)

// WithHeadful runs the browser with a visible window, useful when
// debugging a failing stage locally.
func WithHeadful() ChromeOption {
	return func(opts *[]chromedp.ExecAllocatorOption) {
		*opts = append(*opts, chromedp.Flag("headless", false))
	}
}

// NewChromeSurface starts a browser and returns the surface driving
// it. The caller must call Close when done.
func NewChromeSurface(ctx context.Context, opts ...ChromeOption) (*ChromeSurface, error) {
	allocOpts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	for _, opt := range opts {
		opt(&allocOpts)
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, allocOpts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)

	s := &ChromeSurface{
		browserCtx: browserCtx,
		cancel: func() {
			browserCancel()
			allocCancel()
		},
	}

	// Start the browser eagerly so a missing Chrome binary surfaces
	// here instead of at the first stage.
	if err := chromedp.Run(browserCtx); err != nil {
		s.cancel()
		return nil, fmt.Errorf("start browser: %w", err)
	}

	chromedp.ListenTarget(browserCtx, func(ev interface{}) {
		if _, ok := ev.(*page.EventJavascriptDialogOpening); ok {
			s.handleDialog()
		}
	})

	return s, nil
}

// Close shuts the browser down.
func (s *ChromeSurface) Close() {
	s.cancel()
}

// run executes actions on the browser, honoring the caller's context.
func (s *ChromeSurface) run(ctx context.Context, actions ...chromedp.Action) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return chromedp.Run(s.browserCtx, actions...)
}

// Navigate loads the given URL and waits for the body to be ready.
func (s *ChromeSurface) Navigate(ctx context.Context, url string) error {
	return s.run(ctx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
}

// Fill clears the element at selector and types value into it.
// SendKeys fires real key events, which the frontend's controlled
// inputs require; setting the value attribute directly would not
// register.
func (s *ChromeSurface) Fill(ctx context.Context, selector, value string) error {
	return s.run(ctx,
		chromedp.WaitVisible(selector, chromedp.ByQuery),
		chromedp.SetValue(selector, "", chromedp.ByQuery),
		chromedp.SendKeys(selector, value, chromedp.ByQuery),
	)
}

// Click clicks the first element matching selector.
func (s *ChromeSurface) Click(ctx context.Context, selector string) error {
	return s.run(ctx,
		chromedp.WaitVisible(selector, chromedp.ByQuery),
		chromedp.Click(selector, chromedp.ByQuery),
	)
}

// ClickByText clicks the first button whose visible text contains
// substring.
func (s *ChromeSurface) ClickByText(ctx context.Context, substring string) error {
	script := fmt.Sprintf(`(() => {
		for (const btn of document.querySelectorAll('button')) {
			if (btn.textContent.includes(%q)) { btn.click(); return true; }
		}
		return false;
	})()`, substring)

	var clicked bool
	if err := s.run(ctx, chromedp.Evaluate(script, &clicked)); err != nil {
		return err
	}
	if !clicked {
		return fmt.Errorf("no button containing %q", substring)
	}
	return nil
}

// SelectOption selects the option whose text contains substring,
// using the native value setter so the frontend sees the change.
func (s *ChromeSurface) SelectOption(ctx context.Context, selector, substring string) error {
	script := fmt.Sprintf(`(() => {
		const sel = document.querySelector(%q);
		if (!sel) return false;
		for (const opt of sel.options) {
			if (opt.textContent.includes(%q)) {
				const setter = Object.getOwnPropertyDescriptor(HTMLSelectElement.prototype, 'value').set;
				setter.call(sel, opt.value);
				sel.dispatchEvent(new Event('change', { bubbles: true }));
				return true;
			}
		}
		return false;
	})()`, selector, substring)

	var selected bool
	if err := s.run(ctx, chromedp.Evaluate(script, &selected)); err != nil {
		return err
	}
	if !selected {
		return fmt.Errorf("no option containing %q in %s", substring, selector)
	}
	return nil
}

// AcceptNextDialog arms the surface to accept the next JavaScript
// dialog with the given prompt input.
func (s *ChromeSurface) AcceptNextDialog(ctx context.Context, input string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dialogArmed = true
	s.dialogInput = input
	return nil
}

// handleDialog accepts an armed dialog, or dismisses an unexpected one
// so the page does not hang.
func (s *ChromeSurface) handleDialog() {
	s.mu.Lock()
	armed := s.dialogArmed
	input := s.dialogInput
	s.dialogArmed = false
	s.mu.Unlock()

	go func() {
		action := page.HandleJavaScriptDialog(armed)
		if armed {
			action = action.WithPromptText(input)
		}
		chromedp.Run(s.browserCtx, action)
	}()
}

// ClickRowButton clicks the button whose id starts with idPrefix
// inside the first table row whose text contains rowText.
func (s *ChromeSurface) ClickRowButton(ctx context.Context, rowText, idPrefix string) error {
	script := fmt.Sprintf(`(() => {
		for (const tr of document.querySelectorAll('tr')) {
			if (!tr.textContent.includes(%q)) continue;
			const btn = tr.querySelector('[id^=%q]');
			if (btn) { btn.click(); return true; }
			return false;
		}
		return false;
	})()`, rowText, idPrefix)

	var clicked bool
	if err := s.run(ctx, chromedp.Evaluate(script, &clicked)); err != nil {
		return err
	}
	if !clicked {
		return fmt.Errorf("no button with id prefix %q in a row containing %q", idPrefix, rowText)
	}
	return nil
}

// RowCellText returns the text of the cell-th column (1-based) of the
// first table row whose text contains rowText.
func (s *ChromeSurface) RowCellText(ctx context.Context, rowText string, cell int) (string, error) {
	script := fmt.Sprintf(`(() => {
		for (const tr of document.querySelectorAll('tr')) {
			if (!tr.textContent.includes(%q)) continue;
			const cells = tr.querySelectorAll('td');
			return cells.length >= %d ? cells[%d].innerText : null;
		}
		return null;
	})()`, rowText, cell, cell-1)

	var text *string
	if err := s.run(ctx, chromedp.Evaluate(script, &text)); err != nil {
		return "", err
	}
	if text == nil {
		return "", fmt.Errorf("no row containing %q with %d cells", rowText, cell)
	}
	return *text, nil
}

// Text returns the visible text of the first element matching
// selector.
func (s *ChromeSurface) Text(ctx context.Context, selector string) (string, error) {
	script := fmt.Sprintf(`(() => {
		const el = document.querySelector(%q);
		return el ? el.innerText : null;
	})()`, selector)

	var text *string
	if err := s.run(ctx, chromedp.Evaluate(script, &text)); err != nil {
		return "", err
	}
	if text == nil {
		return "", fmt.Errorf("no element matching %s", selector)
	}
	return *text, nil
}

// PageText returns the visible text of the whole page.
func (s *ChromeSurface) PageText(ctx context.Context) (string, error) {
	var text string
	if err := s.run(ctx, chromedp.Evaluate(`document.body ? document.body.innerText : ""`, &text)); err != nil {
		return "", err
	}
	return text, nil
}
