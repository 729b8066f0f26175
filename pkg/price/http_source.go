// 文件: pkg/price/http_source.go
// HTTP 行情源 - 对接行情服务的 REST 接口
//
// 接口契约:
//   GET {base}/api/prices?symbols=BTC,ETH
//   -> {"BTC": {"price": 45000, "change_24h": 1.2, "volume_24h": 2.1e10, "market_cap": 8.8e11}, ...}

package price

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// 确保实现了接口
var _ Source = (*HTTPSource)(nil)

const (
	defaultHTTPTimeout = 10 * time.Second
	defaultRetryCount  = 2
)

// HTTPSource 基于 REST 的行情源
type HTTPSource struct {
	client *resty.Client
}

// quoteEntry 上游返回的单币种行情
type quoteEntry struct {
	Price     float64 `json:"price"`
	Change24h float64 `json:"change_24h"`
	Volume24h float64 `json:"volume_24h"`
	MarketCap float64 `json:"market_cap"`
}

// NewHTTPSource 创建 HTTP 行情源
// baseURL: 行情服务地址，如 "http://localhost:5001"
func NewHTTPSource(baseURL string) *HTTPSource {
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(defaultHTTPTimeout).
		SetRetryCount(defaultRetryCount).
		SetRetryWaitTime(500 * time.Millisecond)

	return &HTTPSource{client: client}
}

// GetPrices 批量获取行情
func (s *HTTPSource) GetPrices(ctx context.Context, symbols []string) (map[string]Observation, error) {
	if len(symbols) == 0 {
		return map[string]Observation{}, nil
	}

	var body map[string]quoteEntry
	resp, err := s.client.R().
		SetContext(ctx).
		SetQueryParam("symbols", strings.Join(symbols, ",")).
		SetResult(&body).
		Get("/api/prices")
	if err != nil {
		return nil, fmt.Errorf("fetch prices: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("fetch prices: upstream status %d", resp.StatusCode())
	}

	now := time.Now()
	out := make(map[string]Observation, len(body))
	for sym, q := range body {
		sym = strings.ToUpper(sym)
		out[sym] = Observation{
			Symbol:     sym,
			Price:      q.Price,
			Change24h:  q.Change24h,
			Volume24h:  q.Volume24h,
			MarketCap:  q.MarketCap,
			ObservedAt: now,
		}
	}
	return out, nil
}
