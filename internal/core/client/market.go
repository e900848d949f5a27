package client

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	// LatestTickEndpoint serves the latest index value per instrument.
	LatestTickEndpoint = "/index/cc/v1/latest/tick"

	// DefaultIndexMarket is the CoinDesk aggregate index.
	DefaultIndexMarket = "cadli"
)

// Tick is the latest index value for one instrument.
type Tick struct {
	Market          string          `json:"MARKET"`
	Instrument      string          `json:"INSTRUMENT"`
	Value           decimal.Decimal `json:"VALUE"`
	ValueFlag       string          `json:"VALUE_FLAG"`
	LastUpdateTS    int64           `json:"VALUE_LAST_UPDATE_TS"`
	DayOpen         decimal.Decimal `json:"CURRENT_DAY_OPEN"`
	DayHigh         decimal.Decimal `json:"CURRENT_DAY_HIGH"`
	DayLow          decimal.Decimal `json:"CURRENT_DAY_LOW"`
	DayChange       decimal.Decimal `json:"CURRENT_DAY_CHANGE"`
	DayChangePct    decimal.Decimal `json:"CURRENT_DAY_CHANGE_PERCENTAGE"`
	DayQuoteVolume  decimal.Decimal `json:"CURRENT_DAY_QUOTE_VOLUME"`
	Day24hChangePct decimal.Decimal `json:"MOVING_24_HOUR_CHANGE_PERCENTAGE"`
}

// UpdatedAt returns the provider's last update time for the value.
func (t Tick) UpdatedAt() time.Time {
	if t.LastUpdateTS == 0 {
		return time.Time{}
	}
	return time.Unix(t.LastUpdateTS, 0).UTC()
}

// LatestTick fetches the latest index ticks for the instruments, in the order
// requested. An empty market selects DefaultIndexMarket.
func (c *Client) LatestTick(ctx context.Context, market string, instruments ...string) ([]Tick, *Response, error) {
	names := make([]string, 0, len(instruments))
	for _, instrument := range instruments {
		value := strings.ToUpper(strings.TrimSpace(instrument))
		if value != "" {
			names = append(names, value)
		}
	}
	if len(names) == 0 {
		return nil, nil, errors.New("at least one instrument is required")
	}

	market = strings.TrimSpace(market)
	if market == "" {
		market = DefaultIndexMarket
	}

	params := url.Values{}
	params.Set("market", market)
	params.Set("instruments", strings.Join(names, ","))
	params.Set("apply_mapping", "true")

	resp, err := c.Get(ctx, LatestTickEndpoint, params)
	if err != nil {
		return nil, resp, err
	}

	var payload struct {
		Data map[string]Tick `json:"Data"`
	}
	if err := resp.Decode(&payload); err != nil {
		return nil, resp, err
	}

	ticks := make([]Tick, 0, len(names))
	for _, name := range names {
		tick, ok := payload.Data[name]
		if !ok {
			return ticks, resp, fmt.Errorf("no tick returned for %s", name)
		}
		if tick.Instrument == "" {
			tick.Instrument = name
		}
		ticks = append(ticks, tick)
	}
	return ticks, resp, nil
}
