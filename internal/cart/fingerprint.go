package cart

import (
	"fmt"
	"sort"

	"golang.org/x/crypto/blake2b"
)

// fingerprint hashes a sorted set of modifier option IDs so the Add
// operation can cheaply test "does an item with this exact option set
// already exist" (spec §4.2's same-product-same-options merge rule)
// without comparing slices row by row.
func fingerprint(optionIDs []int64) string {
	sorted := append([]int64(nil), optionIDs...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	buf := make([]byte, 0, len(sorted)*9)
	for _, id := range sorted {
		buf = append(buf, []byte(fmt.Sprintf("%d,", id))...)
	}
	sum := blake2b.Sum256(buf)
	return fmt.Sprintf("%x", sum)
}
