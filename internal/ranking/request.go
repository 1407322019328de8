package ranking

import (
	"errors"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/LJTian/KickoffHub/internal/processor"
	"github.com/LJTian/KickoffHub/internal/scoring"
)

// ErrInvalidFilter 过滤参数不合法；调用方按空结果处理
var ErrInvalidFilter = errors.New("ranking: invalid filter")

const (
	defaultLimit = 20
	maxLimit     = 100
)

// Filters 排序前的硬过滤
type Filters struct {
	Category       string
	From           *time.Time
	To             *time.Time
	Search         string
	ExcludeSources []string
}

func (f Filters) validate() error {
	if f.Category != "" {
		if _, ok := processor.ParseCategory(f.Category); !ok {
			return ErrInvalidFilter
		}
	}
	if f.From != nil && f.To != nil && f.From.After(*f.To) {
		return ErrInvalidFilter
	}
	return nil
}

type Page struct {
	Offset int
	Limit  int
}

type Request struct {
	Filters Filters
	Prefs   scoring.Preferences
	Page    Page
}

// ParseRequest 从 query 参数解析请求；列表参数支持逗号分隔或重复出现
func ParseRequest(v url.Values) (Request, error) {
	req := Request{
		Filters: Filters{
			Category:       strings.TrimSpace(v.Get("category")),
			Search:         strings.TrimSpace(v.Get("q")),
			ExcludeSources: listParam(v, "exclude"),
		},
		Prefs: scoring.Preferences{
			ViewerID:       strings.TrimSpace(v.Get("viewer")),
			TeamIDs:        listParam(v, "teams"),
			PlayerIDs:      listParam(v, "players"),
			LeagueIDs:      listParam(v, "leagues"),
			Categories:     listParam(v, "categories"),
			BlockedSources: listParam(v, "blocked"),
			Language:       strings.TrimSpace(v.Get("lang")),
		},
		Page: Page{Limit: defaultLimit},
	}

	var err error
	if req.Filters.From, err = timeParam(v.Get("from"), false); err != nil {
		return Request{}, err
	}
	if req.Filters.To, err = timeParam(v.Get("to"), true); err != nil {
		return Request{}, err
	}
	if s := v.Get("offset"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			return Request{}, ErrInvalidFilter
		}
		req.Page.Offset = n
	}
	if s := v.Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			return Request{}, ErrInvalidFilter
		}
		if n > 0 {
			req.Page.Limit = min(n, maxLimit)
		}
	}

	if err := req.Filters.validate(); err != nil {
		return Request{}, err
	}
	return req, nil
}

func listParam(v url.Values, key string) []string {
	var out []string
	for _, raw := range v[key] {
		for _, part := range strings.Split(raw, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// timeParam 支持 RFC3339 与 2006-01-02；只有日期的 to 取当天最后一刻
func timeParam(s string, endOfDay bool) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return &t, nil
	}
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return nil, ErrInvalidFilter
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return &t, nil
}
