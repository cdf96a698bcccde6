// Package chunk splits extracted financial-document text into section-aware,
// token-bounded chunks tagged with classification metadata. Chunking is pure
// and deterministic: the same text and tokenizer always produce the same
// chunks.
package chunk

// SectionType labels the financial region a chunk was cut from.
type SectionType string

const (
	SectionBalanceSheet    SectionType = "balance_sheet"
	SectionIncomeStatement SectionType = "income_statement"
	SectionCashFlow        SectionType = "cash_flow"
	SectionRevenue         SectionType = "revenue"
	SectionExpenses        SectionType = "expenses"
	SectionOperations      SectionType = "operations"
	SectionAnalysis        SectionType = "analysis"
	SectionOther           SectionType = "other"
)

// KeyMetrics carries currency amounts extracted from a chunk's text.
type KeyMetrics struct {
	CurrencyAmounts []string `json:"currency_amounts,omitempty"`
}

// Chunk is a contiguous token-bounded slice of document text. ChunkIndex
// encodes the chunk's position in the source; TotalChunks is identical on
// every chunk of one document.
type Chunk struct {
	Text          string      `json:"text"`
	SectionType   SectionType `json:"section_type"`
	TokenCount    int         `json:"token_count"`
	ContainsTable bool        `json:"contains_table"`
	KeyMetrics    KeyMetrics  `json:"key_metrics"`
	ChunkIndex    int         `json:"chunk_index"`
	TotalChunks   int         `json:"total_chunks"`
}
