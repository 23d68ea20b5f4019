package localfs

import (
	"context"
	"encoding/json"
	"hash/fnv"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Dadudekc/DreamVault/internal/entity"
)

const embeddingDim = 256

// EmbeddingRepoImpl stores summary embeddings as JSON artifacts on the
// local filesystem, one file per conversation. Vectors are built with a
// deterministic feature-hashing scheme so identical summaries always
// embed identically.
type EmbeddingRepoImpl struct {
	dir   string
	model string
}

type embeddingArtifact struct {
	entity.EmbeddingRef
	Vector []float64 `json:"vector"`
}

// NewEmbeddingRepo creates the embeddings directory if needed.
func NewEmbeddingRepo(dir string) (*EmbeddingRepoImpl, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &EmbeddingRepoImpl{dir: dir, model: "hashing-v1"}, nil
}

// Embed writes the embedding artifact for a summary and returns its
// reference. An existing artifact for the conversation is replaced.
func (r *EmbeddingRepoImpl) Embed(_ context.Context, summary *entity.Summary) (*entity.EmbeddingRef, error) {
	path := filepath.Join(r.dir, "embed_"+summary.ConversationID+".json")
	ref := entity.EmbeddingRef{
		EmbeddingID:    "embed_" + summary.ConversationID,
		ConversationID: summary.ConversationID,
		Model:          r.model,
		Dimension:      embeddingDim,
		Path:           path,
		CreatedAt:      time.Now().UTC(),
	}

	artifact := embeddingArtifact{
		EmbeddingRef: ref,
		Vector:       hashEmbed(embeddingText(summary)),
	}
	raw, err := json.MarshalIndent(artifact, "", "  ")
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return nil, err
	}
	return &ref, nil
}

// CleanupOlderThan removes embedding artifacts older than the cutoff.
func (r *EmbeddingRepoImpl) CleanupOlderThan(_ context.Context, days int) (int, error) {
	cutoff := time.Now().AddDate(0, 0, -days)

	entries, err := os.ReadDir(r.dir)
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasPrefix(entry.Name(), "embed_") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			if err := os.Remove(filepath.Join(r.dir, entry.Name())); err == nil {
				removed++
			}
		}
	}
	return removed, nil
}

// embeddingText concatenates the summary fields worth embedding.
func embeddingText(summary *entity.Summary) string {
	parts := []string{summary.Summary}
	parts = append(parts, summary.Tags...)
	for _, t := range summary.Topics {
		parts = append(parts, t.Topic)
	}
	return strings.Join(parts, " ")
}

// hashEmbed folds tokens into a fixed-size vector via FNV feature
// hashing, L2-normalized.
func hashEmbed(text string) []float64 {
	vec := make([]float64, embeddingDim)
	for _, token := range strings.Fields(strings.ToLower(text)) {
		h := fnv.New32a()
		h.Write([]byte(token))
		sum := h.Sum32()
		dim := int(sum % embeddingDim)
		sign := 1.0
		if sum&0x80000000 != 0 {
			sign = -1.0
		}
		vec[dim] += sign
	}

	var norm float64
	for _, v := range vec {
		norm += v * v
	}
	if norm > 0 {
		norm = math.Sqrt(norm)
		for i := range vec {
			vec[i] /= norm
		}
	}
	return vec
}
