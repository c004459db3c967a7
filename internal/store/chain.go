package store

import (
	"sort"

	"github.com/BHARGAVSAI558/final-zero-trust/internal/models"
)

type ChainBreak struct {
	Index    int64  `json:"index"`
	Expected string `json:"expected"`
	Found    string `json:"found"`
}

// VerifyChain checks hash linkage between consecutive blocks: each block's
// previous hash must equal the current hash of the block one index below.
// Blocks may arrive in any order; index gaps are not treated as breaks.
func VerifyChain(blocks []models.AuditBlock) []ChainBreak {
	sorted := make([]models.AuditBlock, len(blocks))
	copy(sorted, blocks)
	sort.Slice(sorted, func(a, b int) bool { return sorted[a].Index < sorted[b].Index })

	var breaks []ChainBreak
	for i := 1; i < len(sorted); i++ {
		prev, cur := sorted[i-1], sorted[i]
		if cur.Index != prev.Index+1 {
			continue
		}
		if cur.PreviousHash != prev.CurrentHash {
			breaks = append(breaks, ChainBreak{Index: cur.Index, Expected: prev.CurrentHash, Found: cur.PreviousHash})
		}
	}
	return breaks
}
