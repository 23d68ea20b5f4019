package pipeline

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/Dadudekc/DreamVault/internal/entity"
	"github.com/Dadudekc/DreamVault/pkg/utils"
)

const (
	maxSummarySentences = 3
	maxTopics           = 5
	maxTags             = 6
)

// promptTemplate feeds the prompt fingerprint so unchanged transcripts
// summarized by an unchanged prompt can be skipped upstream.
const promptTemplate = "summarize-conversation-v1"

var stopwords = map[string]bool{
	"the": true, "a": true, "an": true, "and": true, "or": true, "but": true,
	"is": true, "are": true, "was": true, "were": true, "be": true, "been": true,
	"to": true, "of": true, "in": true, "on": true, "for": true, "with": true,
	"that": true, "this": true, "it": true, "as": true, "at": true, "by": true,
	"i": true, "you": true, "we": true, "they": true, "he": true, "she": true,
	"my": true, "your": true, "our": true, "me": true, "do": true, "can": true,
	"not": true, "have": true, "has": true, "what": true, "how": true, "about": true,
	"from": true, "so": true, "if": true, "would": true, "will": true, "just": true,
}

var positiveWords = map[string]bool{
	"great": true, "good": true, "excellent": true, "thanks": true, "helpful": true,
	"perfect": true, "works": true, "solved": true, "love": true, "nice": true,
}

var negativeWords = map[string]bool{
	"error": true, "broken": true, "fail": true, "failed": true, "wrong": true,
	"bad": true, "bug": true, "crash": true, "stuck": true, "problem": true,
}

// Summarizer produces structured summaries from redacted transcripts:
// leading sentences, keyword-derived tags and topics, and a lexicon
// sentiment score.
type Summarizer struct{}

// NewSummarizer creates a summarizer.
func NewSummarizer() *Summarizer {
	return &Summarizer{}
}

// Summarize builds the summary object for a conversation.
func (s *Summarizer) Summarize(_ context.Context, conv *entity.Conversation) (*entity.Summary, error) {
	text := conv.Text()
	words := tokenize(text)

	topics := topTopics(words)
	tags := make([]string, 0, maxTags)
	for _, t := range topics {
		if len(tags) == maxTags {
			break
		}
		tags = append(tags, t.Topic)
	}

	return &entity.Summary{
		ConversationID: conv.ID,
		Summary:        leadingSentences(conv),
		Tags:           tags,
		Topics:         topics,
		Sentiment:      scoreSentiment(words),
		ContentHash:    utils.HashText(text),
		PromptHash:     utils.HashText(promptTemplate + "\n" + text),
		GeneratedAt:    time.Now().UTC(),
	}, nil
}

// leadingSentences takes the first few sentences of user content as the
// abstract; user turns state the subject, assistant turns elaborate.
func leadingSentences(conv *entity.Conversation) string {
	var parts []string
	for _, m := range conv.Messages {
		if m.Role != "user" {
			continue
		}
		for _, sentence := range strings.FieldsFunc(m.Content, func(r rune) bool {
			return r == '.' || r == '!' || r == '?'
		}) {
			sentence = strings.TrimSpace(sentence)
			if sentence == "" {
				continue
			}
			parts = append(parts, sentence)
			if len(parts) == maxSummarySentences {
				return strings.Join(parts, ". ") + "."
			}
		}
	}
	if len(parts) == 0 {
		return conv.Title
	}
	return strings.Join(parts, ". ") + "."
}

func tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !('a' <= r && r <= 'z') && !('0' <= r && r <= '9')
	})
	out := fields[:0]
	for _, w := range fields {
		if len(w) > 2 && !stopwords[w] {
			out = append(out, w)
		}
	}
	return out
}

func topTopics(words []string) []entity.Topic {
	freq := make(map[string]int)
	for _, w := range words {
		freq[w]++
	}

	type kv struct {
		word  string
		count int
	}
	sorted := make([]kv, 0, len(freq))
	for w, c := range freq {
		sorted = append(sorted, kv{w, c})
	}
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].count != sorted[j].count {
			return sorted[i].count > sorted[j].count
		}
		return sorted[i].word < sorted[j].word
	})

	n := min(maxTopics, len(sorted))
	topics := make([]entity.Topic, 0, n)
	for _, e := range sorted[:n] {
		topics = append(topics, entity.Topic{
			Topic:      e.word,
			Confidence: float64(e.count) / float64(len(words)),
			Mentions:   e.count,
		})
	}
	return topics
}

func scoreSentiment(words []string) entity.Sentiment {
	var pos, neg int
	for _, w := range words {
		if positiveWords[w] {
			pos++
		}
		if negativeWords[w] {
			neg++
		}
	}

	total := pos + neg
	s := entity.Sentiment{Overall: "neutral", Confidence: 0.5, Scores: map[string]float64{}}
	if total == 0 {
		s.Scores["neutral"] = 1
		return s
	}

	s.Scores["positive"] = float64(pos) / float64(total)
	s.Scores["negative"] = float64(neg) / float64(total)
	switch {
	case pos > neg*2:
		s.Overall = "positive"
	case neg > pos*2:
		s.Overall = "negative"
	case pos > 0 && neg > 0:
		s.Overall = "mixed"
	}
	s.Confidence = float64(max(pos, neg)) / float64(total)
	return s
}
