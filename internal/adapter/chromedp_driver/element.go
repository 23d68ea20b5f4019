package chromedp_driver

// pageElement is a detached snapshot of a matched node. The locator
// only ever reads text and href, so the snapshot carries exactly that
// and no live handle back into the page.
type pageElement struct {
	snapshot elementSnapshot
}

func (e *pageElement) Text() string {
	return e.snapshot.Text
}

func (e *pageElement) Attr(name string) string {
	if name == "href" {
		return e.snapshot.Href
	}
	return ""
}
