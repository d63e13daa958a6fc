package pipeline

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"
	"github.com/smallnest/langgraphgo/rag"
)

var (
	encoderOnce sync.Once
	encoder     *tiktoken.Tiktoken
)

// tokenCount counts the tokens in text using the cl100k_base encoding, which
// both chat and embedding deployments share. Returns 0 if the encoding data
// cannot be loaded.
func tokenCount(text string) int {
	encoderOnce.Do(func() {
		enc, err := tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			return
		}
		encoder = enc
	})
	if encoder == nil {
		return 0
	}
	return len(encoder.Encode(text, nil, nil))
}

func countDocumentTokens(documents []rag.Document) int {
	total := 0
	for _, doc := range documents {
		total += tokenCount(doc.Content)
	}
	return total
}
