package expr

import "github.com/cespare/xxhash/v2"

// Fingerprint returns a 64-bit hash of Format(n). Trees that print the
// same hash the same, which makes it usable for golden comparisons and
// for spotting that a subtree came back untouched.
func Fingerprint(n Node) uint64 {
	return xxhash.Sum64String(Format(n))
}
