package bench

import "github.com/pkg/errors"

// ElementSize is the width in bytes of one message element, a float64.
const ElementSize = 8

// Bucket is one message size of the benchmark.
type Bucket struct {
	Index    int // 1-based position in ascending size order
	Elements int // number of float64 elements sent
}

// Bytes returns the size of the bucket's message on the wire.
func (b Bucket) Bytes() int {
	return b.Elements * ElementSize
}

// NewBuckets returns maxI buckets of block*(i-1)+1 elements for i in 1..maxI,
// where block = maxM/maxI. Element counts are strictly increasing.
func NewBuckets(maxM, maxI int) ([]Bucket, error) {
	if maxI < 1 {
		return nil, errors.WithStack(&ConfigurationError{
			Name:    "maxI",
			Value:   maxI,
			Message: "at least one message size is required",
		})
	}
	if maxM < maxI {
		return nil, errors.WithStack(&ConfigurationError{
			Name:    "maxM",
			Value:   maxM,
			Message: "must be at least maxI so that message sizes increase",
		})
	}
	block := maxM / maxI
	buckets := make([]Bucket, maxI)
	for i := 1; i <= maxI; i++ {
		buckets[i-1] = Bucket{Index: i, Elements: block*(i-1) + 1}
	}
	return buckets, nil
}

// maxElements returns the element count of the largest bucket.
func maxElements(buckets []Bucket) int {
	max := 0
	for _, b := range buckets {
		if b.Elements > max {
			max = b.Elements
		}
	}
	return max
}
