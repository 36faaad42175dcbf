package discogs

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubSearcher struct {
	results []Release
	err     error
	queries []string
}

func (s *stubSearcher) Search(_ context.Context, query, releaseType string, perPage int) ([]Release, error) {
	s.queries = append(s.queries, query+"|"+releaseType)
	return s.results, s.err
}

func TestSelectRelease(t *testing.T) {
	first := Release{Title: "First", Barcodes: []string{"5012345"}}
	barcoded := Release{Title: "Barcoded", Barcodes: []string{"nothing", "ABC 1234 X"}}
	later := Release{Title: "Later", Barcodes: []string{"ABC1234X"}}

	tests := []struct {
		name    string
		results []Release
		matrix  string
		want    string
		wantOK  bool
	}{
		{name: "empty results", results: nil, matrix: "ABC1234X", wantOK: false},
		{name: "barcode match beats order", results: []Release{first, barcoded, later}, matrix: "ABC1234X", want: "Barcoded", wantOK: true},
		{name: "spaces ignored on matrix side", results: []Release{first, later}, matrix: "ABC 1234 X", want: "Later", wantOK: true},
		{name: "substring containment", results: []Release{first, {Title: "Long", Barcodes: []string{"ZZABC1234XZZ"}}}, matrix: "ABC1234X", want: "Long", wantOK: true},
		{name: "fallback to first", results: []Release{first, {Title: "Second"}}, matrix: "NOPE123", want: "First", wantOK: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := SelectRelease(tt.results, tt.matrix)
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				require.NotNil(t, got)
				assert.Equal(t, tt.want, got.Title)
			} else {
				assert.Nil(t, got)
			}
		})
	}
}

func TestCatalogueLookup(t *testing.T) {
	searcher := &stubSearcher{results: []Release{
		{Title: "Other"},
		{Title: "Match", Barcodes: []string{"ABC-1234-X"}},
	}}

	release, ok := NewCatalogue(searcher).Lookup(context.Background(), "ABC-1234-X")
	require.True(t, ok)
	assert.Equal(t, "Match", release.Title)
	assert.Equal(t, []string{"ABC-1234-X|release"}, searcher.queries)
}

func TestCatalogueLookupErrorIsAbsent(t *testing.T) {
	searcher := &stubSearcher{
		results: []Release{{Title: "ignored"}},
		err:     errors.New("connection reset"),
	}

	release, ok := NewCatalogue(searcher).Lookup(context.Background(), "ABC1234X")
	assert.False(t, ok)
	assert.Nil(t, release)
}
