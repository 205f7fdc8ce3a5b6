package embedcache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/xxxsen/studynote/internal/ai"
)

type cacheKey struct {
	full        string
	contentHash string
	modelName   string
	taskType    string
}

// buildCacheKey scopes a cached vector to the embedder identity (provider,
// model and dimensions), any per-call model override and the task type.
func buildCacheKey(modelName string, o ai.EmbedOptions, text string) cacheKey {
	modelName = strings.TrimSpace(modelName)
	if modelName == "" {
		modelName = "unknown"
	}
	if o.Model != "" {
		modelName += "#" + o.Model
	}
	hash := sha256.Sum256([]byte(text))
	contentHash := hex.EncodeToString(hash[:])
	return cacheKey{
		full:        "embed:" + modelName + ":" + o.TaskType + ":" + contentHash,
		contentHash: contentHash,
		modelName:   modelName,
		taskType:    o.TaskType,
	}
}

// embedMisses sends every text whose slot in out is still nil to next in a
// single call, so the decorated embedder keeps all-or-nothing semantics. The
// returned indexes are the slots that were filled.
func embedMisses(ctx context.Context, next ai.IEmbedder, texts []string, out [][]float32, opts []ai.EmbedOption) ([]int, error) {
	var (
		missTexts []string
		missIdx   []int
		slotOf    = make(map[string]int)
	)
	for i, text := range texts {
		if out[i] != nil {
			continue
		}
		missIdx = append(missIdx, i)
		if _, ok := slotOf[text]; ok {
			continue
		}
		slotOf[text] = len(missTexts)
		missTexts = append(missTexts, text)
	}
	if len(missTexts) == 0 {
		return nil, nil
	}
	vectors, err := next.Embed(ctx, missTexts, opts...)
	if err != nil {
		return nil, err
	}
	for _, i := range missIdx {
		out[i] = cloneEmbedding(vectors[slotOf[texts[i]]])
	}
	return missIdx, nil
}

func cloneEmbedding(values []float32) []float32 {
	if values == nil {
		return nil
	}
	clone := make([]float32, len(values))
	copy(clone, values)
	return clone
}
