package scraper

import (
	"fmt"
	"math/rand/v2"
	"net/http"
	"regexp"
	"strings"
	"sync"
)

// DefaultUserAgents is the curated pool of current desktop browsers.
var DefaultUserAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:109.0) Gecko/20100101 Firefox/121.0",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.2.1 Safari/605.1.15",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
}

var acceptLanguages = []string{
	"zh-CN,zh;q=0.9,en;q=0.8",
	"zh-CN,zh;q=0.9,en-US;q=0.8,en;q=0.7",
	"zh-CN,zh-TW;q=0.9,zh;q=0.8,en;q=0.6",
}

var fetchSites = []string{"same-origin", "same-site", "cross-site"}

var chromeVersion = regexp.MustCompile(`Chrome/(\d+)`)

// Identity supplies a plausible browser identity per request. The session part
// (language, fetch site) is stable until Reset; the User-Agent changes per request.
type Identity struct {
	agents []string
	origin string

	mu      sync.Mutex
	session http.Header
}

// NewIdentity builds a rotator sending Referer and Origin for origin.
func NewIdentity(agents []string, origin string) *Identity {
	if len(agents) == 0 {
		agents = DefaultUserAgents
	}
	id := &Identity{
		agents: agents,
		origin: strings.TrimSuffix(origin, "/"),
	}
	id.Reset()
	return id
}

// UserAgent returns a random entry of the pool.
func (id *Identity) UserAgent() string {
	return id.agents[rand.IntN(len(id.agents))]
}

// Reset regenerates the session headers.
func (id *Identity) Reset() {
	session := http.Header{}
	session.Set("Accept-Language", acceptLanguages[rand.IntN(len(acceptLanguages))])
	session.Set("Cache-Control", "no-cache")
	session.Set("Pragma", "no-cache")
	session.Set("Sec-Fetch-Site", fetchSites[rand.IntN(len(fetchSites))])
	if id.origin != "" {
		session.Set("Referer", id.origin+"/")
		session.Set("Origin", id.origin)
	}

	id.mu.Lock()
	id.session = session
	id.mu.Unlock()
}

// Headers returns a fresh header set for one request. Accept-Encoding is left
// to the transport, which only decodes gzip.
func (id *Identity) Headers(expectJSON bool) http.Header {
	id.mu.Lock()
	hdr := id.session.Clone()
	id.mu.Unlock()

	ua := id.UserAgent()
	hdr.Set("User-Agent", ua)
	if expectJSON {
		hdr.Set("Accept", "application/json, text/plain, */*")
		hdr.Set("Sec-Fetch-Dest", "empty")
		hdr.Set("Sec-Fetch-Mode", "cors")
	} else {
		hdr.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
		hdr.Set("Sec-Fetch-Dest", "document")
		hdr.Set("Sec-Fetch-Mode", "navigate")
	}
	for key, value := range clientHints(ua) {
		hdr.Set(key, value)
	}
	return hdr
}

// clientHints derives Sec-Ch-Ua headers; only Chromium sends them.
func clientHints(ua string) map[string]string {
	match := chromeVersion.FindStringSubmatch(ua)
	if match == nil {
		return nil
	}
	platform := "Windows"
	switch {
	case strings.Contains(ua, "Macintosh"):
		platform = "macOS"
	case strings.Contains(ua, "Linux"):
		platform = "Linux"
	}
	return map[string]string{
		"Sec-Ch-Ua":          fmt.Sprintf(`"Not_A Brand";v="8", "Chromium";v="%[1]s", "Google Chrome";v="%[1]s"`, match[1]),
		"Sec-Ch-Ua-Mobile":   "?0",
		"Sec-Ch-Ua-Platform": fmt.Sprintf(`"%s"`, platform),
	}
}
