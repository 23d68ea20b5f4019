package locator

import (
	"strings"

	"github.com/Dadudekc/DreamVault/internal/repository"
)

// conversationPath is the URL fragment that marks a link as a
// conversation reference.
const conversationPath = "/c/"

// Strategy pairs a structural query against the fetched document with a
// validator confirming a matched element really is a conversation
// record. The discovery algorithm never inspects queries; swapping or
// extending the library does not touch it.
type Strategy struct {
	Query    string
	Validate func(title, href string) bool
}

// ValidRecord is the default validator: a record needs a non-empty
// display label and a link shaped like a conversation reference.
func ValidRecord(title, href string) bool {
	return title != "" && strings.Contains(href, conversationPath)
}

// libraryQueries is the exhaustive, ordered strategy library. Earlier
// entries are more specific; the tail degenerates toward anything in
// the sidebar, which the validator then filters.
var libraryQueries = []string{
	"//a[contains(@href, '/c/')]//span",
	"//a[contains(@href, '/c/')]",
	"//div[contains(@class, 'conversation')]//a",
	"//nav//a[contains(@href, '/c/')]",
	"//a[contains(@href, 'chatgpt.com/c/')]",
	"//a[contains(@href, 'chat.openai.com/c/')]",
	"//div[contains(@class, 'group')]//a[contains(@href, '/c/')]",
	"//div[contains(@class, 'flex')]//a[contains(@href, '/c/')]",
	"//nav//div[contains(@class, 'conversation')]//a",
	"//div[contains(@class, 'conversation')]//div[contains(@class, 'title')]//a",
	"//a[contains(@href, '/c/')]//div[contains(@class, 'text')]",
	"//div[contains(@class, 'conversation')]//a[contains(@href, '/c/')]",
	"//div[contains(@class, 'conversation')]//span",
	"//nav//span",
	"//a[contains(@href, '/c/')]//div",
	"//div[contains(@class, 'conversation')]//div",
	"//nav//div",
}

// Library returns the static strategy library with the default
// validator attached to every entry.
func Library() []Strategy {
	strategies := make([]Strategy, len(libraryQueries))
	for i, q := range libraryQueries {
		strategies[i] = Strategy{Query: q, Validate: ValidRecord}
	}
	return strategies
}

// baseURLs are the candidate entry points probed in order until one
// loads a page that looks like the upstream application.
var baseURLs = []string{
	"https://chatgpt.com",
	"https://chat.openai.com",
	"https://chatgpt.co",
}

// countValid reports how many matched elements pass the validator.
func countValid(elements []repository.Element, validate func(title, href string) bool) int {
	n := 0
	for _, el := range elements {
		if validate(el.Text(), el.Attr("href")) {
			n++
		}
	}
	return n
}

// recordID derives the record identifier from a conversation URL.
func recordID(href string) string {
	if idx := strings.LastIndex(href, conversationPath); idx >= 0 {
		return href[idx+len(conversationPath):]
	}
	return href
}
