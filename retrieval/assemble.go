package retrieval

import (
	"fmt"
	"strings"

	"github.com/knowbase/kb-assistant/schema"
)

// Assemble turns raw similarity matches into a citation-labeled context
// string. Matches at or below the threshold are dropped; if nothing
// survives, the result is marked unusable and the caller takes the fallback
// answer path.
//
// Sources are deduplicated by origin URL, keeping the first (highest
// scoring) occurrence, so a page split into many chunks is cited once.
// Confidence is the score of the best surviving match.
func Assemble(matches []schema.SearchResult, threshold float64) schema.ContextResult {
	var blocks []string
	var sources []schema.Source
	seenURL := make(map[string]bool)

	n := 0
	for _, m := range matches {
		if m.Score <= threshold {
			continue
		}
		n++
		blocks = append(blocks, fmt.Sprintf("[%d] %s (%s):\n%s",
			n, m.Document.Label, m.Document.OriginURL, m.Document.Content))
		if !seenURL[m.Document.OriginURL] {
			seenURL[m.Document.OriginURL] = true
			sources = append(sources, schema.Source{
				URL:   m.Document.OriginURL,
				Label: m.Document.Label,
				Score: m.Score,
			})
		}
	}

	if n == 0 {
		return schema.ContextResult{Sources: []schema.Source{}}
	}

	confidence := 0.0
	for _, m := range matches {
		if m.Score > threshold && m.Score > confidence {
			confidence = m.Score
		}
	}

	return schema.ContextResult{
		Context:    strings.Join(blocks, "\n\n"),
		Sources:    sources,
		Usable:     true,
		Confidence: confidence,
		ChunksUsed: n,
	}
}
