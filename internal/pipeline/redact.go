package pipeline

import (
	"regexp"

	"github.com/Dadudekc/DreamVault/internal/entity"
)

type redactionRule struct {
	pattern     *regexp.Regexp
	category    string
	placeholder string
}

// Redactor strips PII from transcripts before anything downstream sees
// them. Rules apply in order; earlier, more specific patterns win over
// the generic trailing ones.
type Redactor struct {
	rules []redactionRule
}

// NewRedactor builds a redactor with the default rule set.
func NewRedactor() *Redactor {
	return &Redactor{rules: []redactionRule{
		{regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`), "email", "[EMAIL]"},
		{regexp.MustCompile(`\b\d{3}-\d{3}-\d{4}\b`), "phone", "[PHONE]"},
		{regexp.MustCompile(`\b\d{4}-\d{4}-\d{4}-\d{4}\b`), "credit_card", "[CREDIT_CARD]"},
		{regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`), "ssn", "[SSN]"},
		{regexp.MustCompile(`\b\d{1,3}\.\d{1,3}\.\d{1,3}\.\d{1,3}\b`), "ip_address", "[IP]"},
		{regexp.MustCompile(`\b[A-Z]{2}\d{2}[A-Z0-9]{10,30}\b`), "iban", "[IBAN]"},
	}}
}

// Redact replaces every PII match with its placeholder and counts
// redactions per category.
func (r *Redactor) Redact(text string) (string, map[string]int) {
	counts := make(map[string]int)
	for _, rule := range r.rules {
		matches := rule.pattern.FindAllStringIndex(text, -1)
		if len(matches) == 0 {
			continue
		}
		counts[rule.category] += len(matches)
		text = rule.pattern.ReplaceAllString(text, rule.placeholder)
	}
	return text, counts
}

// RedactConversation applies Redact to every message, returning a new
// conversation and the merged counts.
func (r *Redactor) RedactConversation(conv *entity.Conversation) (*entity.Conversation, map[string]int) {
	out := &entity.Conversation{
		ID:       conv.ID,
		Metadata: conv.Metadata,
		Messages: make([]entity.Message, len(conv.Messages)),
	}
	total := make(map[string]int)

	title, counts := r.Redact(conv.Title)
	out.Title = title
	for k, v := range counts {
		total[k] += v
	}

	for i, m := range conv.Messages {
		redacted, counts := r.Redact(m.Content)
		out.Messages[i] = entity.Message{Role: m.Role, Content: redacted}
		for k, v := range counts {
			total[k] += v
		}
	}
	return out, total
}
