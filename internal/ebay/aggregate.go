// Package ebay prices a release from comparable eBay listings.
package ebay

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
)

const SearchLimit = 5

var punctuation = regexp.MustCompile(`[^\p{L}\p{N}_\s]`)

type Marketplace interface {
	Token(ctx context.Context) (string, error)
	SearchItems(ctx context.Context, query string, limit int, accessToken string) ([]ItemSummary, error)
}

// Prices holds either all three figures or none of them.
type Prices struct {
	Low  *float64
	High *float64
	Mean *float64
}

func (p Prices) Found() bool {
	return p.Low != nil
}

type Aggregator struct {
	market Marketplace
}

func NewAggregator(market Marketplace) *Aggregator {
	return &Aggregator{market: market}
}

// Aggregate never fails: auth, network and parse errors all come back as an
// empty Prices, indistinguishable from a search with no priced listings.
func (a *Aggregator) Aggregate(ctx context.Context, title, year string) Prices {
	prices, err := a.fetchPrices(ctx, title, year)
	if err != nil {
		log.Warn().Err(err).Str("title", title).Msg("eBay price lookup failed")
		return Prices{}
	}
	return Reduce(prices)
}

func (a *Aggregator) fetchPrices(ctx context.Context, title, year string) ([]float64, error) {
	query := BuildQuery(title, year)
	log.Debug().Str("query", query).Msg("eBay query")

	token, err := a.market.Token(ctx)
	if err != nil {
		return nil, err
	}

	items, err := a.market.SearchItems(ctx, query, SearchLimit, token)
	if err != nil {
		return nil, err
	}

	var prices []float64
	for _, item := range items {
		log.Debug().Str("title", item.Title).Msg("eBay listing")
		if item.Price == nil {
			continue
		}
		value, err := strconv.ParseFloat(item.Price.Value, 64)
		if err != nil {
			return nil, fmt.Errorf("failed to parse price %q: %w", item.Price.Value, err)
		}
		prices = append(prices, value)
	}
	return prices, nil
}

// BuildQuery strips punctuation from the title, collapses whitespace and
// appends the format and year.
func BuildQuery(title, year string) string {
	cleaned := strings.Join(strings.Fields(punctuation.ReplaceAllString(title, "")), " ")
	return cleaned + " Vinyl " + year
}

// Reduce computes low, high and the mean rounded to two decimals.
func Reduce(prices []float64) Prices {
	if len(prices) == 0 {
		return Prices{}
	}
	low, high, sum := prices[0], prices[0], 0.0
	for _, p := range prices {
		low = math.Min(low, p)
		high = math.Max(high, p)
		sum += p
	}
	mean := round2(sum / float64(len(prices)))
	return Prices{Low: &low, High: &high, Mean: &mean}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
