// Package discogs looks releases up on the Discogs database by matrix number.
package discogs

import (
	"context"
	"strings"

	"github.com/rs/zerolog/log"
)

const (
	ReleaseType = "release"
	PerPage     = 10
)

type Searcher interface {
	Search(ctx context.Context, query, releaseType string, perPage int) ([]Release, error)
}

// Catalogue adapts a Searcher to the single-release lookup the scanner needs.
type Catalogue struct {
	searcher Searcher
}

func NewCatalogue(searcher Searcher) *Catalogue {
	return &Catalogue{searcher: searcher}
}

// Lookup searches for matrixNumber and picks a release. Search failures are
// logged and reported the same way as an empty result.
func (c *Catalogue) Lookup(ctx context.Context, matrixNumber string) (*Release, bool) {
	results, err := c.searcher.Search(ctx, matrixNumber, ReleaseType, PerPage)
	if err != nil {
		log.Warn().Err(err).Str("matrix", matrixNumber).Msg("Discogs search failed")
		return nil, false
	}
	log.Debug().Int("results", len(results)).Str("matrix", matrixNumber).Msg("Discogs search complete")
	return SelectRelease(results, matrixNumber)
}

// SelectRelease prefers the first result with a barcode containing the
// matrix number (spaces ignored on both sides) and otherwise falls back to the
// first result.
func SelectRelease(results []Release, matrixNumber string) (*Release, bool) {
	if len(results) == 0 {
		return nil, false
	}
	needle := stripSpaces(matrixNumber)
	for i := range results {
		for _, barcode := range results[i].Barcodes {
			// containment, not equality
			if strings.Contains(stripSpaces(barcode), needle) {
				return &results[i], true
			}
		}
	}
	return &results[0], true
}

func stripSpaces(s string) string {
	return strings.ReplaceAll(s, " ", "")
}
