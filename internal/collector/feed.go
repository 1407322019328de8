package collector

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gocolly/colly/v2"
	"github.com/mmcdole/gofeed"
)

const (
	feedDefaultTimeout  = 10 * time.Second
	feedDefaultMaxItems = 20
	feedMaxBodyBytes    = 4 << 20 // 4MB，防止超大响应拖垮单轮采集
	feedUserAgent       = "KickoffHubBot/1.0"
	feedAccept          = "application/rss+xml, application/atom+xml, application/xml, text/xml;q=0.9, */*;q=0.8"
)

// FeedFetcher 通过 colly 拉取 RSS/Atom，并用 gofeed 解析
type FeedFetcher struct {
	Timeout  time.Duration
	MaxItems int
	// Transport 为空时使用 http.DefaultTransport
	Transport http.RoundTripper
	Now       func() time.Time
}

func NewFeedFetcher(timeout time.Duration, maxItems int) *FeedFetcher {
	if timeout <= 0 {
		timeout = feedDefaultTimeout
	}
	if maxItems <= 0 {
		maxItems = feedDefaultMaxItems
	}
	return &FeedFetcher{Timeout: timeout, MaxItems: maxItems, Now: time.Now}
}

func (f *FeedFetcher) Fetch(ctx context.Context, src Source) ([]RawArticle, error) {
	ctx, cancel := context.WithTimeout(ctx, f.Timeout)
	defer cancel()

	base := f.Transport
	if base == nil {
		base = http.DefaultTransport
	}

	c := colly.NewCollector(
		colly.UserAgent(feedUserAgent),
		colly.MaxBodySize(feedMaxBodyBytes),
		colly.AllowURLRevisit(),
	)
	c.SetRequestTimeout(f.Timeout)
	c.WithTransport(&contextTransport{ctx: ctx, base: base})
	c.OnRequest(func(r *colly.Request) {
		r.Headers.Set("Accept", feedAccept)
	})

	var body []byte
	c.OnResponse(func(r *colly.Response) {
		body = r.Body
	})

	// 非 2xx 由 colly 转成 error 返回
	if err := c.Visit(src.URL); err != nil {
		return nil, fmt.Errorf("collector: fetch %s: %w", src.Code, err)
	}

	// 只接受 RSS/Atom；JSON Feed 等其他格式按解析失败处理
	switch ft := gofeed.DetectFeedType(bytes.NewReader(body)); ft {
	case gofeed.FeedTypeRSS, gofeed.FeedTypeAtom:
	default:
		return nil, fmt.Errorf("collector: parse %s: unsupported feed type %v", src.Code, ft)
	}

	feed, err := gofeed.NewParser().Parse(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("collector: parse %s: %w", src.Code, err)
	}

	now := time.Now()
	if f.Now != nil {
		now = f.Now()
	}
	return Normalize(feed, src, now, f.MaxItems), nil
}

// contextTransport 让 colly 发出的请求跟随调用方的 context 取消
type contextTransport struct {
	ctx  context.Context
	base http.RoundTripper
}

func (t *contextTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	return t.base.RoundTrip(req.WithContext(t.ctx))
}
