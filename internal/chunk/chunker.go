package chunk

import (
	"regexp"
	"strings"
)

// DefaultMaxTokens bounds a chunk's token count unless a single paragraph
// alone exceeds it.
const DefaultMaxTokens = 8000

// maxKeyMetrics caps extracted currency amounts per chunk.
const maxKeyMetrics = 5

// currencyPattern matches currency amounts: symbol, digits with optional
// thousands separators and decimal part, optional magnitude abbreviation
// (K/M/B, optionally spelled out as -illion).
var currencyPattern = regexp.MustCompile(`\$\s*\d+(?:,\d{3})*(?:\.\d{2})?(?:\s*[mMbBkK](?:illion)?)?`)

// Chunker splits full document text into ordered chunks.
type Chunker struct {
	maxTokens int
	tokenizer Tokenizer
}

// NewChunker builds a chunker with the given token bound and tokenizer.
// Zero or negative maxTokens selects DefaultMaxTokens; a nil tokenizer
// selects DefaultTokenizer.
func NewChunker(maxTokens int, tokenizer Tokenizer) *Chunker {
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}
	if tokenizer == nil {
		tokenizer = DefaultTokenizer()
	}
	return &Chunker{maxTokens: maxTokens, tokenizer: tokenizer}
}

// Chunk splits fullText into section-aware, token-bounded chunks. Empty input
// yields zero chunks. Text with no recognizable markers becomes a single
// leading section chunked purely by the token bound.
func (c *Chunker) Chunk(fullText string) []Chunk {
	var chunks []Chunk
	for _, section := range splitSections(fullText) {
		if strings.TrimSpace(section) == "" {
			continue
		}
		if c.tokenizer.Count(section) <= c.maxTokens {
			chunks = append(chunks, c.newChunk(section))
			continue
		}
		for _, sub := range c.splitOversized(section) {
			chunks = append(chunks, c.newChunk(sub))
		}
	}
	for i := range chunks {
		chunks[i].ChunkIndex = i
		chunks[i].TotalChunks = len(chunks)
	}
	return chunks
}

// splitSections scans lines for marker keywords. Each marker line starts a
// new section; text before the first marker is its own section.
func splitSections(text string) []string {
	if text == "" {
		return nil
	}
	var sections []string
	var current []string
	for _, line := range strings.Split(text, "\n") {
		if isSectionMarker(line) {
			if len(current) > 0 {
				sections = append(sections, strings.Join(current, "\n"))
			}
			current = []string{line}
			continue
		}
		current = append(current, line)
	}
	if len(current) > 0 {
		sections = append(sections, strings.Join(current, "\n"))
	}
	return sections
}

// splitOversized greedily packs blank-line-delimited paragraphs into
// sub-chunks under the token bound. A single paragraph over the bound is
// emitted whole, never split mid-paragraph.
func (c *Chunker) splitOversized(section string) []string {
	var paras []string
	for _, p := range strings.Split(section, "\n\n") {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			paras = append(paras, trimmed)
		}
	}

	var subs []string
	var current []string
	size := 0
	for _, para := range paras {
		paraSize := c.tokenizer.Count(para)
		if size+paraSize > c.maxTokens && len(current) > 0 {
			subs = append(subs, strings.Join(current, "\n\n"))
			current = []string{para}
			size = paraSize
			continue
		}
		current = append(current, para)
		size += paraSize
	}
	if len(current) > 0 {
		subs = append(subs, strings.Join(current, "\n\n"))
	}
	return subs
}

func (c *Chunker) newChunk(text string) Chunk {
	return Chunk{
		Text:          text,
		SectionType:   classify(text),
		TokenCount:    c.tokenizer.Count(text),
		ContainsTable: containsTable(text),
		KeyMetrics:    extractKeyMetrics(text),
	}
}

func containsTable(text string) bool {
	return strings.ContainsAny(text, "|\t")
}

func extractKeyMetrics(text string) KeyMetrics {
	amounts := currencyPattern.FindAllString(text, maxKeyMetrics)
	return KeyMetrics{CurrencyAmounts: amounts}
}
