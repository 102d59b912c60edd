package terminology

import (
	"context"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"
)

// DefaultMemoSize is the number of lookups kept by Cached.
const DefaultMemoSize = 4096

// Cached memoizes lookups. Concurrent lookups of the same key share one
// call to the inner normalizer. Errors are not memoized.
type Cached struct {
	inner Normalizer
	memo  *lru.Cache[string, []Result]
	group singleflight.Group
}

// NewCached wraps inner.
func NewCached(inner Normalizer, size int) *Cached {
	if size <= 0 {
		size = DefaultMemoSize
	}
	memo, _ := lru.New[string, []Result](size)
	return &Cached{inner: inner, memo: memo}
}

func memoKey(term, terminology string) string {
	return terminology + "\x00" + term
}

// Normalize implements Normalizer.
func (c *Cached) Normalize(ctx context.Context, term, terminology string) ([]Result, error) {
	key := memoKey(term, terminology)
	if res, ok := c.memo.Get(key); ok {
		return res, nil
	}

	v, err, _ := c.group.Do(key, func() (any, error) {
		res, err := c.inner.Normalize(ctx, term, terminology)
		if err != nil {
			return nil, err
		}
		c.memo.Add(key, res)
		return res, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]Result), nil
}

// Inner returns the wrapped normalizer.
func (c *Cached) Inner() Normalizer {
	return c.inner
}
