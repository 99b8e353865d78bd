package wallet

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/imroc/req"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/tidwall/gjson"
)

// Prices used when every feed fails.
var fallbackPrices = map[string]decimal.Decimal{
	"ETH":      decimal.NewFromInt(2500),
	"BNB":      decimal.NewFromInt(600),
	OFFCSymbol: decimal.RequireFromString("0.00006"),
}

var coinGeckoIDs = map[string]string{
	"ETH": "ethereum",
	"BNB": "binancecoin",
}

// PriceEndpoints are the base URLs of the price feeds.
type PriceEndpoints struct {
	DexScreener string
	PancakeSwap string
	CoinGecko   string
}

func DefaultPriceEndpoints() PriceEndpoints {
	return PriceEndpoints{
		DexScreener: "https://api.dexscreener.com",
		PancakeSwap: "https://api.pancakeswap.info",
		CoinGecko:   "https://api.coingecko.com",
	}
}

// PriceOracle resolves USD prices through a chain of public feeds and never
// fails: when every feed is down it answers with a fixed estimate.
type PriceOracle struct {
	client    *req.Req
	endpoints PriceEndpoints
	logger    zerolog.Logger
}

func NewPriceOracle(endpoints PriceEndpoints, logger zerolog.Logger) *PriceOracle {
	client := req.New()
	client.SetTimeout(10 * time.Second)
	return &PriceOracle{client: client, endpoints: endpoints, logger: logger}
}

// Price returns the USD price of symbol.
func (o *PriceOracle) Price(ctx context.Context, symbol string) decimal.Decimal {
	if symbol == OFFCSymbol {
		return o.offcPrice(ctx)
	}
	return o.nativePrice(ctx, symbol)
}

func (o *PriceOracle) offcPrice(ctx context.Context) decimal.Decimal {
	sources := []struct {
		name  string
		fetch func(context.Context) (decimal.Decimal, error)
	}{
		{"dexscreener pair", o.dexScreenerPair},
		{"dexscreener token", o.dexScreenerToken},
		{"pancakeswap", o.pancakeSwap},
		{"coingecko", o.coinGeckoToken},
	}
	for _, src := range sources {
		price, err := src.fetch(ctx)
		if err == nil && price.IsPositive() {
			return price
		}
		o.logger.Debug().Err(err).Str("source", src.name).Msg("OFFC price source failed")
	}
	o.logger.Warn().Msg("using fallback OFFC price")
	return fallbackPrices[OFFCSymbol]
}

func (o *PriceOracle) dexScreenerPair(ctx context.Context) (decimal.Decimal, error) {
	doc, err := o.getJSON(ctx, o.endpoints.DexScreener+"/latest/dex/pairs/bsc/"+OFFCPair)
	if err != nil {
		return decimal.Zero, err
	}
	return parsePrice(doc.Get("pairs.0.priceUsd"))
}

// dexScreenerToken prefers the known pool and otherwise takes the first
// pair with a positive price.
func (o *PriceOracle) dexScreenerToken(ctx context.Context) (decimal.Decimal, error) {
	doc, err := o.getJSON(ctx, o.endpoints.DexScreener+"/latest/dex/tokens/"+OFFCAddress)
	if err != nil {
		return decimal.Zero, err
	}
	var best, first decimal.Decimal
	doc.Get("pairs").ForEach(func(_, pair gjson.Result) bool {
		price, err := parsePrice(pair.Get("priceUsd"))
		if err != nil || !price.IsPositive() {
			return true
		}
		if strings.EqualFold(pair.Get("pairAddress").String(), OFFCPair) {
			best = price
			return false
		}
		if first.IsZero() {
			first = price
		}
		return true
	})
	if best.IsPositive() {
		return best, nil
	}
	if first.IsPositive() {
		return first, nil
	}
	return decimal.Zero, fmt.Errorf("no priced pair")
}

func (o *PriceOracle) pancakeSwap(ctx context.Context) (decimal.Decimal, error) {
	doc, err := o.getJSON(ctx, o.endpoints.PancakeSwap+"/api/v2/tokens/"+OFFCAddress)
	if err != nil {
		return decimal.Zero, err
	}
	return parsePrice(doc.Get("data.price"))
}

func (o *PriceOracle) coinGeckoToken(ctx context.Context) (decimal.Decimal, error) {
	url := o.endpoints.CoinGecko + "/api/v3/simple/token_price/binance-smart-chain?contract_addresses=" + OFFCAddress + "&vs_currencies=usd"
	doc, err := o.getJSON(ctx, url)
	if err != nil {
		return decimal.Zero, err
	}
	return parsePrice(doc.Get(OFFCAddress + ".usd"))
}

func (o *PriceOracle) nativePrice(ctx context.Context, symbol string) decimal.Decimal {
	id, ok := coinGeckoIDs[symbol]
	if !ok {
		return fallbackPrices[symbol]
	}
	price, err := o.coinGeckoSimple(ctx, id)
	if err == nil && price.IsPositive() {
		return price
	}
	o.logger.Warn().Err(err).Str("symbol", symbol).Msg("using fallback price")
	return fallbackPrices[symbol]
}

func (o *PriceOracle) coinGeckoSimple(ctx context.Context, id string) (decimal.Decimal, error) {
	doc, err := o.getJSON(ctx, o.endpoints.CoinGecko+"/api/v3/simple/price?ids="+id+"&vs_currencies=usd")
	if err != nil {
		return decimal.Zero, err
	}
	return parsePrice(doc.Get(id + ".usd"))
}

func (o *PriceOracle) getJSON(ctx context.Context, url string) (gjson.Result, error) {
	resp, err := o.client.Get(url, ctx, req.Header{"Accept": "application/json"})
	if err != nil {
		return gjson.Result{}, err
	}
	if code := resp.Response().StatusCode; code != http.StatusOK {
		return gjson.Result{}, fmt.Errorf("GET %s: status %d", url, code)
	}
	body := resp.Bytes()
	if !gjson.ValidBytes(body) {
		return gjson.Result{}, fmt.Errorf("GET %s: invalid JSON", url)
	}
	return gjson.ParseBytes(body), nil
}

// parsePrice accepts both JSON numbers and numeric strings.
func parsePrice(r gjson.Result) (decimal.Decimal, error) {
	if !r.Exists() {
		return decimal.Zero, fmt.Errorf("price missing")
	}
	return decimal.NewFromString(r.String())
}
