package scraper

import "testing"

func TestProxyPoolRotates(t *testing.T) {
	pool := NewProxyPool([]string{"http://a:1", "http://b:2"})
	want := []string{"http://a:1", "http://b:2", "http://a:1", "http://b:2"}
	for i, w := range want {
		if got := pool.Next(); got != w {
			t.Fatalf("launch %d proxy = %q, want %q", i, got, w)
		}
	}
}

func TestProxyPoolEmpty(t *testing.T) {
	for _, pool := range []*ProxyPool{nil, NewProxyPool(nil)} {
		if got := pool.Next(); got != "" {
			t.Fatalf("empty pool proxy = %q, want none", got)
		}
	}
}
