package textsplitter

import (
	"fmt"
	"strings"

	"github.com/knowbase/kb-assistant/config"
)

// TextSplitter splits raw cleaned text into bounded, overlapping chunks
// suitable for embedding. Implementations must preserve original order and
// drop no text.
type TextSplitter interface {
	SplitText(text string) ([]string, error)
}

// NewTextSplitter creates a text splitter from configuration.
func NewTextSplitter(cfg *config.SplitterConfig) (TextSplitter, error) {
	chunkSize := cfg.ChunkSize
	if chunkSize <= 0 {
		chunkSize = 1000
	}
	overlap := cfg.ChunkOverlap
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= chunkSize {
		return nil, fmt.Errorf("chunk overlap (%d) must be less than chunk size (%d)", overlap, chunkSize)
	}

	switch strings.ToLower(cfg.Provider) {
	case "", "character":
		return &CharacterSplitter{ChunkSize: chunkSize, ChunkOverlap: overlap}, nil
	case "token":
		return NewTokenSplitter(chunkSize, overlap)
	default:
		return nil, fmt.Errorf("unknown splitter provider: %s", cfg.Provider)
	}
}
