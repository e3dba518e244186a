package quote

import (
	"context"
	"fmt"

	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"
)

// Compile-time interface check.
var _ Source = (*AlpacaSource)(nil)

// AlpacaSource fetches the latest trade for a symbol through the Alpaca
// market-data API and uses it as the current quote.
type AlpacaSource struct {
	client *marketdata.Client
	symbol string
	bounds Bounds
}

// NewAlpacaSource creates an AlpacaSource for the given symbol. dataURL may
// be empty to use the SDK default.
func NewAlpacaSource(apiKey, apiSecret, dataURL, symbol string, bounds Bounds) *AlpacaSource {
	opts := marketdata.ClientOpts{
		APIKey:    apiKey,
		APISecret: apiSecret,
	}
	if dataURL != "" {
		opts.BaseURL = dataURL
	}

	return &AlpacaSource{
		client: marketdata.NewClient(opts),
		symbol: symbol,
		bounds: bounds,
	}
}

// Fetch returns the price and size of the symbol's latest trade.
func (s *AlpacaSource) Fetch(_ context.Context) (Quote, error) {
	trade, err := s.client.GetLatestTrade(s.symbol, marketdata.GetLatestTradeRequest{})
	if err != nil {
		return Quote{}, fmt.Errorf("GetLatestTrade(%s): %w", s.symbol, err)
	}
	if trade == nil {
		return Quote{}, fmt.Errorf("no latest trade for %s", s.symbol)
	}

	q := Quote{Price: trade.Price, Volume: float64(trade.Size)}
	if err := s.bounds.Validate(q); err != nil {
		return Quote{}, fmt.Errorf("latest trade for %s: %w", s.symbol, err)
	}
	return q, nil
}
