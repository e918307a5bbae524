package coupon

import (
	"context"
	"sync"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
)

// prefilterFPR keeps false positives rare enough that nearly all garbage
// codes are rejected without touching the database.
const prefilterFPR = 0.001

// Prefilter is a bloom filter over known coupon codes. Validation hits it
// before the database: a miss is a guaranteed "not found", a hit may still be
// a false positive and is confirmed by the real lookup.
type Prefilter struct {
	mu     sync.RWMutex
	filter *bloom.BloomFilter
}

// NewPrefilter builds a Prefilter sized for the given codes.
func NewPrefilter(codes []string) *Prefilter {
	capacity := uint(len(codes)) * 2
	if capacity < 1024 {
		capacity = 1024
	}
	f := bloom.NewWithEstimates(capacity, prefilterFPR)
	for _, code := range codes {
		f.AddString(NormalizeCode(code))
	}
	return &Prefilter{filter: f}
}

// LoadPrefilter seeds a Prefilter from every code in the repository.
func LoadPrefilter(ctx context.Context, repo Repository) (*Prefilter, error) {
	codes, err := repo.Codes(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "load coupon codes")
	}
	return NewPrefilter(codes), nil
}

// MayContain reports whether code could be a known coupon code.
func (p *Prefilter) MayContain(code string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.filter.TestString(NormalizeCode(code))
}

// Add registers a newly created code so it passes the fast path immediately.
func (p *Prefilter) Add(code string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.filter.AddString(NormalizeCode(code))
}
