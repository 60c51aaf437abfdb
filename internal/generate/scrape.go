package generate

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"golang.org/x/net/html"
)

const maxPageSize = 5 << 20

var blankRunRe = regexp.MustCompile(`\n\s*\n+`)

// Scraper downloads a web page and reduces it to readable text.
type Scraper struct {
	client    *http.Client
	checkHost func(host string) error
}

// NewScraper returns a Scraper that refuses loopback and cloud metadata
// hosts, including on redirects.
func NewScraper(timeout time.Duration) *Scraper {
	s := &Scraper{checkHost: checkBlockedHost}
	s.client = &http.Client{
		Timeout: timeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= 5 {
				return fmt.Errorf("too many redirects (max 5)")
			}
			return s.checkHost(req.URL.Hostname())
		},
	}
	return s
}

// Scrape fetches rawURL and returns its visible text.
func (s *Scraper) Scrape(ctx context.Context, rawURL string) (string, error) {
	parsed, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return "", fmt.Errorf("scrape: invalid URL: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return "", fmt.Errorf("scrape: unsupported scheme: %s", parsed.Scheme)
	}
	if err := s.checkHost(parsed.Hostname()); err != nil {
		return "", fmt.Errorf("scrape: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, parsed.String(), nil)
	if err != nil {
		return "", fmt.Errorf("scrape: create request: %w", err)
	}
	req.Header.Set("User-Agent", "hypermind/1.0")

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("scrape: download failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("scrape: download failed: HTTP %d", resp.StatusCode)
	}

	doc, err := html.Parse(io.LimitReader(resp.Body, maxPageSize))
	if err != nil {
		return "", fmt.Errorf("scrape: parse html: %w", err)
	}

	var sb strings.Builder
	extractText(doc, &sb, 0)
	text := strings.TrimSpace(blankRunRe.ReplaceAllString(sb.String(), "\n"))
	if text == "" {
		return "", fmt.Errorf("scrape: no text found at %s", rawURL)
	}
	return text, nil
}

func extractText(n *html.Node, sb *strings.Builder, depth int) {
	if depth > 64 {
		return
	}
	switch n.Type {
	case html.TextNode:
		if text := strings.Join(strings.Fields(n.Data), " "); text != "" {
			sb.WriteString(text)
			sb.WriteString(" ")
		}
	case html.ElementNode:
		switch n.Data {
		case "script", "style", "noscript", "iframe", "svg", "nav", "footer", "header", "form":
			return
		case "p", "div", "li", "br", "h1", "h2", "h3", "h4", "h5", "h6", "title", "tr":
			sb.WriteString("\n")
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		extractText(c, sb, depth+1)
	}
	if n.Type == html.ElementNode {
		switch n.Data {
		case "p", "div", "li", "h1", "h2", "h3", "h4", "h5", "h6", "title", "tr":
			sb.WriteString("\n")
		}
	}
}

// checkBlockedHost rejects loopback and cloud metadata addresses.
func checkBlockedHost(host string) error {
	if host == "metadata.google.internal" {
		return fmt.Errorf("blocked host: %s", host)
	}

	ip := net.ParseIP(host)
	if ip == nil {
		ips, lookupErr := net.LookupIP(host)
		if lookupErr != nil || len(ips) == 0 {
			return nil //nolint:nilerr // let http.Client handle DNS failures
		}
		ip = ips[0]
	}

	if ip.IsLoopback() {
		return fmt.Errorf("blocked host: loopback address %s", host)
	}
	if ip.Equal(net.ParseIP("169.254.169.254")) {
		return fmt.Errorf("blocked host: cloud metadata address %s", host)
	}
	return nil
}
