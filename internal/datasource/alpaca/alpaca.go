// Package alpaca adapts the Alpaca Market Data REST API to the engine's
// DataSource contract. The request shapes (bars/latest-trade endpoints,
// timeframe mapping, auth headers) are carried over from the reference
// stock-data client; this version returns domain.Quote/domain.Bar
// instead of an exchange-specific Kline type, and implements the
// DataSource interface rather than being called ad hoc.
package alpaca

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/xfactor-labs/tradeforge/internal/datasource"
	"github.com/xfactor-labs/tradeforge/internal/domain"
	"github.com/xfactor-labs/tradeforge/internal/enginerr"
)

const baseURL = "https://data.alpaca.markets"

type Source struct {
	client    *http.Client
	apiKey    string
	apiSecret string
}

func New(config map[string]any) (datasource.DataSource, error) {
	apiKey, _ := config["api_key"].(string)
	apiSecret, _ := config["api_secret"].(string)
	if apiKey == "" || apiSecret == "" {
		return nil, enginerr.Client("alpaca data source: api_key/api_secret required")
	}
	return &Source{
		client:    &http.Client{Timeout: 30 * time.Second},
		apiKey:    apiKey,
		apiSecret: apiSecret,
	}, nil
}

func (s *Source) Name() string { return "alpaca" }

func (s *Source) Connect(ctx context.Context) error    { return nil }
func (s *Source) Disconnect(ctx context.Context) error { return nil }
func (s *Source) HealthCheck(ctx context.Context) error {
	_, err := s.GetQuote(ctx, "SPY")
	return err
}

func (s *Source) do(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("APCA-API-KEY-ID", s.apiKey)
	req.Header.Set("APCA-API-SECRET-KEY", s.apiSecret)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("alpaca API returned status %d: %s", resp.StatusCode, string(body))
	}
	return body, nil
}

func (s *Source) GetQuote(ctx context.Context, symbol string) (domain.Quote, error) {
	url := fmt.Sprintf("%s/v2/stocks/%s/trades/latest", baseURL, symbol)
	body, err := s.do(ctx, url)
	if err != nil {
		return domain.Quote{}, enginerr.External(err, "alpaca get_quote(%s)", symbol)
	}

	var tradeResp struct {
		Trade struct {
			Price float64 `json:"p"`
			Size  float64 `json:"s"`
			Time  string  `json:"t"`
		} `json:"trade"`
	}
	if err := json.Unmarshal(body, &tradeResp); err != nil {
		return domain.Quote{}, enginerr.External(err, "alpaca get_quote(%s): decode", symbol)
	}

	ts, _ := time.Parse(time.RFC3339, tradeResp.Trade.Time)
	return domain.Quote{
		Symbol:    symbol,
		Last:      tradeResp.Trade.Price,
		Volume:    tradeResp.Trade.Size,
		Timestamp: ts,
		Source:    s.Name(),
	}, nil
}

func mapTimeframe(tf string) string {
	switch tf {
	case "1m":
		return "1Min"
	case "5m":
		return "5Min"
	case "15m":
		return "15Min"
	case "30m":
		return "30Min"
	case "1h":
		return "1Hour"
	case "4h":
		return "4Hour"
	case "1d", "1D":
		return "1Day"
	default:
		return "5Min"
	}
}

func barDuration(tf string) time.Duration {
	switch tf {
	case "1m":
		return time.Minute
	case "5m":
		return 5 * time.Minute
	case "15m":
		return 15 * time.Minute
	case "30m":
		return 30 * time.Minute
	case "1h":
		return time.Hour
	case "4h":
		return 4 * time.Hour
	case "1d", "1D":
		return 24 * time.Hour
	default:
		return 5 * time.Minute
	}
}

func (s *Source) GetBars(ctx context.Context, symbol, timeframe string, limit int) ([]domain.Bar, error) {
	alpacaTF := mapTimeframe(timeframe)
	start := time.Now().Add(-barDuration(timeframe) * time.Duration(limit))

	url := fmt.Sprintf("%s/v2/stocks/%s/bars?timeframe=%s&start=%s&limit=%d",
		baseURL, symbol, alpacaTF, start.Format(time.RFC3339), limit)

	body, err := s.do(ctx, url)
	if err != nil {
		return nil, enginerr.External(err, "alpaca get_bars(%s)", symbol)
	}

	var barsResp struct {
		Bars []struct {
			Timestamp  string  `json:"t"`
			Open       float64 `json:"o"`
			High       float64 `json:"h"`
			Low        float64 `json:"l"`
			Close      float64 `json:"c"`
			Volume     float64 `json:"v"`
		} `json:"bars"`
	}
	if err := json.Unmarshal(body, &barsResp); err != nil {
		return nil, enginerr.External(err, "alpaca get_bars(%s): decode", symbol)
	}

	out := make([]domain.Bar, 0, len(barsResp.Bars))
	for _, b := range barsResp.Bars {
		ts, _ := time.Parse(time.RFC3339, b.Timestamp)
		out = append(out, domain.Bar{
			Symbol: symbol, Timeframe: timeframe,
			Open: b.Open, High: b.High, Low: b.Low, Close: b.Close, Volume: b.Volume,
			Timestamp: ts,
		})
	}
	return out, nil
}
