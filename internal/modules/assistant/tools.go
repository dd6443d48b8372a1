package assistant

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/microcosm-cc/bluemonday"
)

const (
	DefaultDuckDuckGoURL  = "https://html.duckduckgo.com/html/"
	DefaultMaxResults     = 3
	defaultShopInfoMaxLen = 4000
	userAgent             = "Mozilla/5.0 (compatible; HedspiAssistant/1.0)"
)

func defaultClient(c *http.Client) *http.Client {
	if c != nil {
		return c
	}
	return &http.Client{Timeout: 10 * time.Second}
}

func fetchDocument(ctx context.Context, client *http.Client, rawURL string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: status code %d", rawURL, resp.StatusCode)
	}
	return goquery.NewDocumentFromReader(resp.Body)
}

// ShopInfoFetcher serves the visible text of the shop's information page.
type ShopInfoFetcher struct {
	URL    string
	Client *http.Client
	MaxLen int
}

func (f *ShopInfoFetcher) ShopInfo(ctx context.Context, _ string) (string, error) {
	if strings.TrimSpace(f.URL) == "" {
		return "", fmt.Errorf("shop info: no URL configured")
	}
	doc, err := fetchDocument(ctx, defaultClient(f.Client), f.URL)
	if err != nil {
		return "", err
	}
	doc.Find("script, style, noscript").Remove()
	text := strings.Join(strings.Fields(doc.Find("body").Text()), " ")
	if text == "" {
		return "", fmt.Errorf("shop info: no text content found")
	}
	limit := f.MaxLen
	if limit <= 0 {
		limit = defaultShopInfoMaxLen
	}
	if r := []rune(text); len(r) > limit {
		text = string(r[:limit])
	}
	return text, nil
}

// DuckDuckGo searches the HTML endpoint and renders the top results as
// "title: snippet" lines.
type DuckDuckGo struct {
	BaseURL    string
	Client     *http.Client
	MaxResults int

	policy *bluemonday.Policy
}

func NewDuckDuckGo(client *http.Client) *DuckDuckGo {
	return &DuckDuckGo{
		BaseURL:    DefaultDuckDuckGoURL,
		Client:     client,
		MaxResults: DefaultMaxResults,
		policy:     bluemonday.StrictPolicy(),
	}
}

func (d *DuckDuckGo) Search(ctx context.Context, query string) (string, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return "", fmt.Errorf("web search: empty query")
	}
	base := d.BaseURL
	if base == "" {
		base = DefaultDuckDuckGoURL
	}
	max := d.MaxResults
	if max <= 0 {
		max = DefaultMaxResults
	}
	policy := d.policy
	if policy == nil {
		policy = bluemonday.StrictPolicy()
	}

	doc, err := fetchDocument(ctx, defaultClient(d.Client), base+"?q="+url.QueryEscape(query))
	if err != nil {
		return "", err
	}
	var lines []string
	doc.Find(".result").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		title := clean(policy, s.Find(".result__a").First().Text())
		snippet := clean(policy, s.Find(".result__snippet").First().Text())
		if title == "" && snippet == "" {
			return true
		}
		lines = append(lines, title+": "+snippet)
		return len(lines) < max
	})
	if len(lines) == 0 {
		return "Không tìm thấy kết quả phù hợp.", nil
	}
	return strings.Join(lines, "\n"), nil
}

func clean(p *bluemonday.Policy, s string) string {
	return strings.Join(strings.Fields(p.Sanitize(s)), " ")
}
