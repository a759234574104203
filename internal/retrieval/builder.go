package retrieval

import (
	"fmt"
	"sort"
	"strings"
)

// BuildContext assembles retrieved chunks into a bounded context block.
//
// Chunks are deduplicated by content hash, ordered by similarity
// descending, and included whole: a chunk that would push the block over
// the budget is dropped entirely rather than truncated, because a cut-off
// record reads like data corruption to the model. Trimming removes the
// lowest-ranked chunks first, so the block is always a rank prefix: no
// chunk is ever included while a higher-ranked one is left out.
//
// Returns "" when nothing fits.
func BuildContext(chunks []Chunk, budget int) string {
	if len(chunks) == 0 || budget <= 0 {
		return ""
	}

	ordered := append([]Chunk(nil), chunks...)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Score > ordered[j].Score
	})

	seen := make(map[string]struct{}, len(ordered))
	var b strings.Builder
	used := 0
	n := 0

	for _, chunk := range ordered {
		if chunk.Text == "" {
			continue
		}
		key := chunk.Hash
		if key == "" {
			key = chunk.Text
		}
		if _, dup := seen[key]; dup {
			continue
		}

		entry := fmt.Sprintf("[%d] %s", n+1, chunk.Text)
		cost := len(entry)
		if n > 0 {
			cost += len("\n")
		}
		if used+cost > budget {
			break
		}

		if n > 0 {
			b.WriteString("\n")
		}
		b.WriteString(entry)
		used += cost
		n++
		seen[key] = struct{}{}
	}

	return b.String()
}

// ComposePrompt prefixes the base prompt with the context block. An empty
// block returns the base prompt unchanged.
func ComposePrompt(contextBlock, basePrompt string) string {
	if contextBlock == "" {
		return basePrompt
	}

	var b strings.Builder
	b.WriteString("Relevant business records for this seller:\n\n")
	b.WriteString(contextBlock)
	b.WriteString("\n\nUsing the records above where helpful, respond to the following.\n\n")
	b.WriteString(basePrompt)
	return b.String()
}
