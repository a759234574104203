package chunk

import (
	"crypto/sha256"
	"encoding/hex"
)

// Classification is the result of comparing rendered text against the
// stored chunk state.
type Classification int

const (
	// New means no chunk record exists for the source row yet.
	New Classification = iota
	// Changed means the rendered text differs from the stored hash.
	Changed
	// Unchanged means the rendered text is identical; only bookkeeping
	// timestamps are updated and the embedding client is never called.
	Unchanged
)

// String returns the classification name for logs and metrics labels.
func (c Classification) String() string {
	switch c {
	case New:
		return "new"
	case Changed:
		return "changed"
	case Unchanged:
		return "unchanged"
	default:
		return "unknown"
	}
}

// Hash returns the hex SHA-256 digest of the rendered chunk text.
func Hash(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// Classify compares newly rendered text against the stored hash.
// existingHash is "" when no prior record exists.
//
// This is the cost-control pivot of the whole pipeline: a source row whose
// updated_at advanced but whose rendered text is byte-identical classifies
// Unchanged and skips embedding entirely.
func Classify(existingHash, newText string) (Classification, string) {
	newHash := Hash(newText)
	switch existingHash {
	case "":
		return New, newHash
	case newHash:
		return Unchanged, newHash
	default:
		return Changed, newHash
	}
}
