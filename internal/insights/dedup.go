package insights

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"sync"
)

// Fingerprint computes the content hash for an insight. The hash covers the
// lower-cased, whitespace-collapsed title and summary, so cosmetic rewording
// with identical wording survives formatting differences.
func Fingerprint(title, summary string) string {
	normalized := normalizeContent(title) + "\n" + normalizeContent(summary)
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:])
}

func normalizeContent(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// Deduplicator tracks fingerprints seen within a run. It is an in-process
// shortcut only; the storage unique constraint on (company, hash) stays
// authoritative across runs and processes.
type Deduplicator struct {
	mu   sync.Mutex
	seen map[string]map[string]bool
}

// NewDeduplicator constructs a Deduplicator.
func NewDeduplicator() *Deduplicator {
	return &Deduplicator{seen: make(map[string]map[string]bool)}
}

// Seen records the fingerprint for the company and reports whether it was
// already present.
func (d *Deduplicator) Seen(companyID, hash string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	company, ok := d.seen[companyID]
	if !ok {
		company = make(map[string]bool)
		d.seen[companyID] = company
	}
	if company[hash] {
		return true
	}
	company[hash] = true
	return false
}
