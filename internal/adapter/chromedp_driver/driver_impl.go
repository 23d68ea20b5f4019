package chromedp_driver

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/chromedp/cdproto/input"
	"github.com/chromedp/chromedp"

	"github.com/Dadudekc/DreamVault/internal/entity"
	"github.com/Dadudekc/DreamVault/internal/repository"
)

// DriverImpl drives one headless browser session via chromedp. It
// implements both repository.FetchDriver for discovery and
// repository.TranscriptRepository for pulling full conversations.
//
// The session is long-lived; when the underlying browser dies every
// subsequent call returns repository.ErrDriverGone and the caller is
// expected to Close and rebuild the driver.
type DriverImpl struct {
	allocCtx      context.Context
	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc
	timeout       time.Duration
}

// NewDriver starts a browser session. pageLoadTimeout bounds every
// individual call against the page.
func NewDriver(headless bool, pageLoadTimeout time.Duration) (*DriverImpl, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.UserAgent(`Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/108.0.0.0 Safari/537.36`),
	)
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)

	// Launch the browser eagerly so a broken Chrome install surfaces
	// here instead of on the first Navigate.
	if err := chromedp.Run(browserCtx); err != nil {
		browserCancel()
		allocCancel()
		return nil, err
	}

	return &DriverImpl{
		allocCtx:      allocCtx,
		allocCancel:   allocCancel,
		browserCtx:    browserCtx,
		browserCancel: browserCancel,
		timeout:       pageLoadTimeout,
	}, nil
}

// Close tears down the browser session.
func (d *DriverImpl) Close() {
	d.browserCancel()
	d.allocCancel()
}

// run executes actions against the session with the configured timeout,
// translating a dead browser into ErrDriverGone.
func (d *DriverImpl) run(ctx context.Context, actions ...chromedp.Action) error {
	if d.browserCtx.Err() != nil {
		return repository.ErrDriverGone
	}

	runCtx, cancel := context.WithTimeout(d.browserCtx, d.timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- chromedp.Run(runCtx, actions...) }()

	select {
	case <-ctx.Done():
		cancel()
		<-done
		return ctx.Err()
	case err := <-done:
		if err != nil && d.browserCtx.Err() != nil {
			return repository.ErrDriverGone
		}
		return err
	}
}

// Navigate loads the given URL and waits for the document body.
func (d *DriverImpl) Navigate(ctx context.Context, url string) error {
	err := d.run(ctx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
	if err != nil && err != repository.ErrDriverGone && ctx.Err() == nil {
		return fmt.Errorf("%w: %s: %v", repository.ErrNavigationFailed, url, err)
	}
	return err
}

// Title returns the current document title.
func (d *DriverImpl) Title(ctx context.Context) (string, error) {
	var title string
	if err := d.run(ctx, chromedp.Title(&title)); err != nil {
		return "", err
	}
	return title, nil
}

type elementSnapshot struct {
	Text string `json:"text"`
	Href string `json:"href"`
}

// xpathSnapshotJS materializes every XPath match into {text, href}
// pairs in one round trip. Nodes without their own href surface the
// enclosing anchor's href.
const xpathSnapshotJS = `(() => {
	const out = [];
	const it = document.evaluate(%q, document, null, XPathResult.ORDERED_NODE_SNAPSHOT_TYPE, null);
	for (let i = 0; i < it.snapshotLength; i++) {
		const n = it.snapshotItem(i);
		const el = n.nodeType === 1 ? n : n.parentElement;
		if (!el) continue;
		let href = el.getAttribute && el.getAttribute('href');
		if (!href && el.closest) {
			const a = el.closest('a');
			href = a ? a.getAttribute('href') : null;
		}
		out.push({text: (el.textContent || '').trim(), href: href || ''});
	}
	return out;
})()`

// QueryElements evaluates an XPath query against the current page.
func (d *DriverImpl) QueryElements(ctx context.Context, query string) ([]repository.Element, error) {
	var snapshots []elementSnapshot
	err := d.run(ctx, chromedp.Evaluate(fmt.Sprintf(xpathSnapshotJS, query), &snapshots))
	if err != nil {
		return nil, err
	}

	elements := make([]repository.Element, 0, len(snapshots))
	for _, s := range snapshots {
		elements = append(elements, &pageElement{snapshot: s})
	}
	return elements, nil
}

// AllLinks returns every anchor in the document.
func (d *DriverImpl) AllLinks(ctx context.Context) ([]repository.Element, error) {
	return d.QueryElements(ctx, "//a")
}

// TriggerReveal scrolls the sidebar list and the page to the bottom and
// sends an End keypress, which is what actually nudges lazy list
// containers into loading the next slice.
func (d *DriverImpl) TriggerReveal(ctx context.Context) error {
	return d.run(ctx,
		chromedp.Evaluate(`(() => {
			const nav = document.querySelector('nav');
			if (nav) nav.scrollTo(0, nav.scrollHeight);
			window.scrollTo(0, document.body.scrollHeight);
		})()`, nil),
		input.DispatchKeyEvent(input.KeyRawDown).WithKey("End").WithCode("End"),
		input.DispatchKeyEvent(input.KeyUp).WithKey("End").WithCode("End"),
	)
}

type conversationMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// transcriptJS walks the message selector cascade in preference order
// and returns the first non-empty turn list. Role comes from the
// data-message-author-role attribute when present, with a class-name
// heuristic as fallback and assistant as the default.
const transcriptJS = `(() => {
	const selectors = [
		"//div[contains(@data-testid, 'conversation-turn')]",
		"//div[contains(@class, 'message')]",
		"//div[contains(@class, 'markdown')]",
	];
	for (const sel of selectors) {
		const it = document.evaluate(sel, document, null, XPathResult.ORDERED_NODE_SNAPSHOT_TYPE, null);
		if (it.snapshotLength === 0) continue;
		const out = [];
		for (let i = 0; i < it.snapshotLength; i++) {
			const el = it.snapshotItem(i);
			const text = (el.textContent || '').trim();
			if (!text) continue;
			let role = 'assistant';
			const marked = el.querySelector('[data-message-author-role]');
			if (marked) {
				role = marked.getAttribute('data-message-author-role');
			} else if (((el.className || '') + ' ' + (el.getAttribute('data-testid') || '')).includes('user')) {
				role = 'user';
			}
			out.push({role: role, content: text});
		}
		if (out.length > 0) return out;
	}
	return [];
})()`

// FetchConversation opens the conversation page and extracts the full
// transcript.
func (d *DriverImpl) FetchConversation(ctx context.Context, record entity.DiscoveryRecord) (*entity.Conversation, error) {
	if err := d.Navigate(ctx, record.SourceURL); err != nil {
		return nil, err
	}

	var title string
	var messages []conversationMessage
	err := d.run(ctx,
		chromedp.Sleep(2*time.Second), // transcripts hydrate after load
		chromedp.Evaluate(`(() => {
			const h1 = document.querySelector('h1');
			return h1 && h1.textContent.trim() ? h1.textContent.trim() : document.title;
		})()`, &title),
		chromedp.Evaluate(transcriptJS, &messages),
	)
	if err != nil {
		return nil, err
	}

	slog.Debug("fetched conversation transcript",
		"conversation_id", record.ID, "messages", len(messages))

	conv := &entity.Conversation{
		ID:       record.ID,
		Title:    firstNonEmpty(title, record.DisplayTitle),
		Messages: make([]entity.Message, 0, len(messages)),
	}
	for _, m := range messages {
		conv.Messages = append(conv.Messages, entity.Message{Role: m.Role, Content: m.Content})
	}
	return conv, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
