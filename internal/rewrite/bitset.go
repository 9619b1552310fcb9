package rewrite

// BitSet is a set of resume states backed by a bitmap.
type BitSet struct {
	bits []uint64
}

// NewBitSet creates a BitSet that can hold states up to maxVal (inclusive)
// without growing.
func NewBitSet(maxVal int) *BitSet {
	words := (maxVal + 64) / 64
	return &BitSet{bits: make([]uint64, words)}
}

// Set adds val to the set and reports whether it was already present.
func (b *BitSet) Set(val uint32) bool {
	word := val / 64
	if int(word) >= len(b.bits) {
		b.grow(int(word) + 1)
	}
	mask := uint64(1) << (val % 64)
	had := b.bits[word]&mask != 0
	b.bits[word] |= mask
	return had
}

// Has returns true if val is in the set.
func (b *BitSet) Has(val uint32) bool {
	word := val / 64
	if int(word) >= len(b.bits) {
		return false
	}
	return b.bits[word]&(1<<(val%64)) != 0
}

// Count returns the number of elements in the set.
func (b *BitSet) Count() int {
	count := 0
	for _, word := range b.bits {
		for word != 0 {
			word &= word - 1
			count++
		}
	}
	return count
}

// Dense reports whether the set is exactly {1..n}.
func (b *BitSet) Dense(n int) bool {
	if b.Has(0) || b.Count() != n {
		return false
	}
	for v := 1; v <= n; v++ {
		if !b.Has(uint32(v)) {
			return false
		}
	}
	return true
}

// grow expands the bitset to n words.
func (b *BitSet) grow(n int) {
	newBits := make([]uint64, n)
	copy(newBits, b.bits)
	b.bits = newBits
}
