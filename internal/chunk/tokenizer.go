package chunk

import (
	"fmt"
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"
)

// Tokenizer maps text to a token count. Implementations must be deterministic
// and must match the sizing used by the embedding provider, otherwise the
// token bound drifts from what the provider accepts.
type Tokenizer interface {
	Count(text string) int
}

// TiktokenTokenizer counts tokens with the cl100k_base encoding used by the
// OpenAI embedding family.
type TiktokenTokenizer struct {
	enc *tiktoken.Tiktoken
}

// NewTiktokenTokenizer loads the cl100k_base encoding.
func NewTiktokenTokenizer() (*TiktokenTokenizer, error) {
	enc, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		return nil, fmt.Errorf("load cl100k_base encoding: %w", err)
	}
	return &TiktokenTokenizer{enc: enc}, nil
}

func (t *TiktokenTokenizer) Count(text string) int {
	return len(t.enc.Encode(text, nil, nil))
}

// EstimateTokenizer approximates token counts at four characters per token.
// It is the fallback when the BPE encoding cannot be loaded (offline hosts).
type EstimateTokenizer struct{}

func (EstimateTokenizer) Count(text string) int {
	n := utf8.RuneCountInString(text)
	if n == 0 {
		return 0
	}
	count := n / 4
	if count < 1 {
		count = 1
	}
	return count
}

// DefaultTokenizer returns the tiktoken tokenizer, falling back to the
// character estimate when the encoding is unavailable.
func DefaultTokenizer() Tokenizer {
	tok, err := NewTiktokenTokenizer()
	if err != nil {
		return EstimateTokenizer{}
	}
	return tok
}
