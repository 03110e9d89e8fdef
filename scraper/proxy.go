package scraper

import "sync/atomic"

// ProxyPool hands out proxy URLs round-robin. The browser transport takes one
// proxy per launch, so callers draw a fresh one for every launch.
type ProxyPool struct {
	urls []string
	next atomic.Uint64
}

// NewProxyPool returns a pool over urls; an empty pool yields "".
func NewProxyPool(urls []string) *ProxyPool {
	return &ProxyPool{urls: urls}
}

// Next returns the next proxy, or "" when the pool is empty.
func (p *ProxyPool) Next() string {
	if p == nil || len(p.urls) == 0 {
		return ""
	}
	i := p.next.Add(1) - 1
	return p.urls[i%uint64(len(p.urls))]
}
