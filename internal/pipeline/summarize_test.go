package pipeline

import (
	"context"
	"strings"
	"testing"

	"github.com/Dadudekc/DreamVault/internal/entity"
)

func testConversation() *entity.Conversation {
	return &entity.Conversation{
		ID:    "conv-42",
		Title: "Docker networking question",
		Messages: []entity.Message{
			{Role: "user", Content: "My docker container cannot reach the database. The docker network looks wrong."},
			{Role: "assistant", Content: "Check whether both containers share a docker network."},
			{Role: "user", Content: "That fixed it, thanks! Works great now."},
		},
	}
}

func TestSummarizer_Summarize(t *testing.T) {
	s := NewSummarizer()
	conv := testConversation()

	sum, err := s.Summarize(context.Background(), conv)
	if err != nil {
		t.Fatalf("Summarize() error = %v", err)
	}

	if sum.ConversationID != "conv-42" {
		t.Errorf("ConversationID = %q, want %q", sum.ConversationID, "conv-42")
	}
	if !strings.HasPrefix(sum.Summary, "My docker container cannot reach the database") {
		t.Errorf("Summary should open with the first user sentence, got %q", sum.Summary)
	}
	if len(sum.Topics) == 0 || len(sum.Topics) > maxTopics {
		t.Fatalf("got %d topics, want 1..%d", len(sum.Topics), maxTopics)
	}
	if sum.Topics[0].Topic != "docker" {
		t.Errorf("top topic = %q, want %q (most frequent word)", sum.Topics[0].Topic, "docker")
	}
	if sum.ContentHash == "" || sum.PromptHash == "" {
		t.Error("hashes must be populated")
	}
	if sum.ContentHash == sum.PromptHash {
		t.Error("content and prompt hashes should differ")
	}
	if sum.GeneratedAt.IsZero() {
		t.Error("GeneratedAt not set")
	}
}

func TestSummarizer_HashesStableAcrossRuns(t *testing.T) {
	s := NewSummarizer()

	a, err := s.Summarize(context.Background(), testConversation())
	if err != nil {
		t.Fatal(err)
	}
	b, err := s.Summarize(context.Background(), testConversation())
	if err != nil {
		t.Fatal(err)
	}

	if a.ContentHash != b.ContentHash {
		t.Errorf("content hash not stable: %q vs %q", a.ContentHash, b.ContentHash)
	}
	if a.PromptHash != b.PromptHash {
		t.Errorf("prompt hash not stable: %q vs %q", a.PromptHash, b.PromptHash)
	}
}

func TestLeadingSentences(t *testing.T) {
	tests := []struct {
		name string
		conv *entity.Conversation
		want string
	}{
		{
			name: "caps at three sentences",
			conv: &entity.Conversation{Messages: []entity.Message{
				{Role: "user", Content: "One. Two. Three. Four."},
			}},
			want: "One. Two. Three.",
		},
		{
			name: "skips assistant turns",
			conv: &entity.Conversation{Messages: []entity.Message{
				{Role: "assistant", Content: "Ignored."},
				{Role: "user", Content: "Kept."},
			}},
			want: "Kept.",
		},
		{
			name: "falls back to title",
			conv: &entity.Conversation{Title: "Only a title", Messages: []entity.Message{
				{Role: "assistant", Content: "No user turns."},
			}},
			want: "Only a title",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := leadingSentences(tt.conv); got != tt.want {
				t.Errorf("leadingSentences() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestTokenize(t *testing.T) {
	got := tokenize("The Docker container, and the docker NETWORK!")
	want := []string{"docker", "container", "docker", "network"}
	if len(got) != len(want) {
		t.Fatalf("tokenize() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("tokenize()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestScoreSentiment(t *testing.T) {
	tests := []struct {
		name  string
		words []string
		want  string
	}{
		{"neutral when no signal", []string{"docker", "network"}, "neutral"},
		{"positive dominates", []string{"great", "perfect", "thanks"}, "positive"},
		{"negative dominates", []string{"error", "broken", "crash"}, "negative"},
		{"mixed when balanced", []string{"great", "good", "error", "bug"}, "mixed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := scoreSentiment(tt.words)
			if s.Overall != tt.want {
				t.Errorf("scoreSentiment(%v).Overall = %q, want %q", tt.words, s.Overall, tt.want)
			}
		})
	}
}
