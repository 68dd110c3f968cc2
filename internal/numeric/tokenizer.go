package numeric

import (
	"strings"

	"github.com/yanyiwu/gojieba"
)

// Tokenizer is the mixed Chinese/English tokenizer the RRF reranker's
// BM25 leg uses. It
// wraps gojieba, grounded on the teacher's chat_pipline PluginPreprocess
// (CutForSearch over the default dictionary), the same library the
// original's get_mixed_tokenizer() names (jieba-style segmentation).
type Tokenizer struct {
	jieba *gojieba.Jieba
}

// NewTokenizer loads gojieba's default dictionary. Callers must call
// Close when done to free the underlying CGO resources.
func NewTokenizer() *Tokenizer {
	return &Tokenizer{jieba: gojieba.NewJieba()}
}

// Close releases the tokenizer's dictionary resources.
func (t *Tokenizer) Close() {
	if t.jieba != nil {
		t.jieba.Free()
	}
}

// Tokenize segments text into lowercased, whitespace-trimmed tokens
// using jieba's search-mode cut (the mode tuned for retrieval rather
// than for display), matching rrf.py's tokenizer.tokenize(text,
// fast_mode=True) call.
func (t *Tokenizer) Tokenize(text string) []string {
	if text == "" {
		return nil
	}
	segments := t.jieba.CutForSearch(strings.ToLower(text), true)
	tokens := make([]string, 0, len(segments))
	for _, s := range segments {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		tokens = append(tokens, s)
	}
	return tokens
}
