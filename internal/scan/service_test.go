package scan

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"
	"time"

	"vinyl_scanner/internal/discogs"
	"vinyl_scanner/internal/ebay"
	"vinyl_scanner/internal/sheets"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDetector struct {
	text   string
	err    error
	calls  int
	images [][]byte
}

func (f *fakeDetector) DetectText(_ context.Context, image []byte) (string, error) {
	f.calls++
	f.images = append(f.images, image)
	return f.text, f.err
}

type fakeCatalogue struct {
	release *discogs.Release
	queries []string
}

func (f *fakeCatalogue) Lookup(_ context.Context, matrixNumber string) (*discogs.Release, bool) {
	f.queries = append(f.queries, matrixNumber)
	if f.release == nil {
		return nil, false
	}
	return f.release, true
}

type fakePrices struct {
	prices ebay.Prices
	calls  [][2]string
}

func (f *fakePrices) Aggregate(_ context.Context, title, year string) ebay.Prices {
	f.calls = append(f.calls, [2]string{title, year})
	return f.prices
}

type fakeSheet struct {
	headers   [][]string
	rows      [][]interface{}
	headerErr error
	appendErr error
}

func (f *fakeSheet) EnsureHeaderRow(_ context.Context, _ string, headers []string) error {
	f.headers = append(f.headers, headers)
	return f.headerErr
}

func (f *fakeSheet) AppendRow(_ context.Context, _ string, row []interface{}) error {
	if f.appendErr != nil {
		return f.appendErr
	}
	f.rows = append(f.rows, row)
	return nil
}

type fixture struct {
	detector  *fakeDetector
	catalogue *fakeCatalogue
	prices    *fakePrices
	sheet     *fakeSheet
	service   *Service
}

func newFixture(text string) *fixture {
	f := &fixture{
		detector: &fakeDetector{text: text},
		catalogue: &fakeCatalogue{release: &discogs.Release{
			Title:       "The Beatles - Help!",
			Year:        "1965",
			ResourceURL: "https://api.discogs.com/releases/1",
			Barcodes:    []string{"ABC-1234-X"},
		}},
		prices: &fakePrices{},
		sheet:  &fakeSheet{},
	}
	f.service = NewService(f.detector, f.catalogue, f.prices)
	f.service.Now = func() time.Time { return time.Date(2024, 3, 9, 14, 5, 7, 0, time.UTC) }
	return f
}

func (f *fixture) session() Session {
	return Session{Authenticated: true, SheetID: "sheet-1", Sheet: f.sheet}
}

func jpeg() *Upload {
	return &Upload{Data: []byte("jpeg-bytes"), ContentType: "image/jpeg"}
}

func floatPtr(v float64) *float64 { return &v }

func TestScanLogsRecord(t *testing.T) {
	f := newFixture("some label text ABC-1234-X more")
	f.prices.prices = ebay.Reduce([]float64{10.00, 15.50, 12.25})

	resp := f.service.Scan(context.Background(), f.session(), jpeg())

	require.Equal(t, OutcomeLogged, resp.Outcome)
	assert.Equal(t, http.StatusOK, resp.Outcome.StatusCode())
	assert.Equal(t, MsgLogged, resp.Message())
	require.NotNil(t, resp.Result)
	assert.Equal(t, "ABC-1234-X", resp.Result.MatrixNumber)
	assert.Equal(t, []string{"ABC-1234-X"}, f.catalogue.queries)
	assert.Equal(t, [][2]string{{"The Beatles - Help!", "1965"}}, f.prices.calls)
	assert.Equal(t, []byte("jpeg-bytes"), f.detector.images[0])

	require.Len(t, f.sheet.headers, 1)
	assert.Equal(t, sheets.Headers, f.sheet.headers[0])
	require.Len(t, f.sheet.rows, 1)
	assert.Equal(t, []interface{}{
		"2024-03-09 14:05:07",
		"ABC-1234-X",
		"The Beatles - Help!",
		"1965",
		"https://api.discogs.com/releases/1",
		10.00,
		12.58,
		15.50,
		"",
	}, f.sheet.rows[0])
}

type cannedSearcher struct {
	results []discogs.Release
	queries []string
}

func (c *cannedSearcher) Search(_ context.Context, query, _ string, _ int) ([]discogs.Release, error) {
	c.queries = append(c.queries, query)
	return c.results, nil
}

func TestScanUnhyphenatedBarcodeFallsBackToFirstResult(t *testing.T) {
	f := newFixture("ABC-1234-X")
	searcher := &cannedSearcher{results: []discogs.Release{{
		Title:       "Canned Release",
		Year:        "1972",
		ResourceURL: "https://api.discogs.com/releases/9",
		Barcodes:    []string{"ABC1234X"},
	}}}
	svc := NewService(f.detector, discogs.NewCatalogue(searcher), f.prices)
	svc.Now = f.service.Now

	resp := svc.Scan(context.Background(), f.session(), jpeg())

	require.Equal(t, OutcomeLogged, resp.Outcome)
	assert.Equal(t, []string{"ABC-1234-X"}, searcher.queries)
	assert.Equal(t, "ABC-1234-X", resp.Result.MatrixNumber)
	assert.Equal(t, "Canned Release", resp.Result.Title)
	assert.Equal(t, "https://api.discogs.com/releases/9", resp.Result.ResourceURL)
}

func TestScanLogsWithoutPrices(t *testing.T) {
	f := newFixture("ABC-1234-X")

	resp := f.service.Scan(context.Background(), f.session(), jpeg())

	require.Equal(t, OutcomeLogged, resp.Outcome)
	assert.Nil(t, resp.Result.LowPrice)
	assert.Nil(t, resp.Result.MedianPrice)
	require.Len(t, f.sheet.rows, 1)
	row := f.sheet.rows[0]
	assert.Equal(t, "", row[5])
	assert.Equal(t, "", row[6])
	assert.Equal(t, "", row[7])
}

func TestScanNoMatrixSkipsCatalogue(t *testing.T) {
	f := newFixture("no recognisable code here")

	resp := f.service.Scan(context.Background(), f.session(), jpeg())

	assert.Equal(t, OutcomeNoMatrix, resp.Outcome)
	assert.Equal(t, http.StatusNotFound, resp.Outcome.StatusCode())
	assert.Equal(t, "No matrix number found", resp.Message())
	assert.Empty(t, f.catalogue.queries)
	assert.Empty(t, f.prices.calls)
	assert.Empty(t, f.sheet.rows)
}

func TestScanEmptyOCRText(t *testing.T) {
	f := newFixture("")

	resp := f.service.Scan(context.Background(), f.session(), jpeg())

	assert.Equal(t, OutcomeNoMatrix, resp.Outcome)
	assert.Equal(t, 1, f.detector.calls)
}

func TestScanNoImageSkipsOCR(t *testing.T) {
	f := newFixture("ABC-1234-X")

	for _, upload := range []*Upload{nil, {ContentType: "image/png"}} {
		resp := f.service.Scan(context.Background(), f.session(), upload)
		assert.Equal(t, OutcomeNoImage, resp.Outcome)
		assert.Equal(t, http.StatusBadRequest, resp.Outcome.StatusCode())
		assert.Equal(t, "No image uploaded", resp.Message())
	}
	assert.Equal(t, 0, f.detector.calls)
	// header is still ensured before the image check
	assert.Len(t, f.sheet.headers, 2)
}

func TestScanNoMatch(t *testing.T) {
	f := newFixture("ABC-1234-X")
	f.catalogue.release = nil

	resp := f.service.Scan(context.Background(), f.session(), jpeg())

	assert.Equal(t, OutcomeNoMatch, resp.Outcome)
	assert.Equal(t, "No match found on Discogs", resp.Message())
	assert.Empty(t, f.prices.calls)
	assert.Empty(t, f.sheet.rows)
}

func TestScanUnauthenticated(t *testing.T) {
	f := newFixture("ABC-1234-X")

	resp := f.service.Scan(context.Background(), Session{SheetID: "sheet-1", Sheet: f.sheet}, jpeg())

	assert.Equal(t, OutcomeUnauthenticated, resp.Outcome)
	assert.Equal(t, http.StatusUnauthorized, resp.Outcome.StatusCode())
	assert.Empty(t, f.sheet.headers)
	assert.Equal(t, 0, f.detector.calls)
}

func TestScanNoSheet(t *testing.T) {
	f := newFixture("ABC-1234-X")

	resp := f.service.Scan(context.Background(), Session{Authenticated: true}, jpeg())

	assert.Equal(t, OutcomeNoSheet, resp.Outcome)
	assert.Equal(t, 0, f.detector.calls)
}

func TestScanInternalErrors(t *testing.T) {
	boom := errors.New("boom")

	t.Run("header", func(t *testing.T) {
		f := newFixture("ABC-1234-X")
		f.sheet.headerErr = boom
		resp := f.service.Scan(context.Background(), f.session(), jpeg())
		assert.Equal(t, OutcomeInternal, resp.Outcome)
		assert.Equal(t, "boom", resp.Message())
		assert.Equal(t, 0, f.detector.calls)
	})

	t.Run("ocr", func(t *testing.T) {
		f := newFixture("")
		f.detector.err = boom
		resp := f.service.Scan(context.Background(), f.session(), jpeg())
		assert.Equal(t, OutcomeInternal, resp.Outcome)
		assert.ErrorIs(t, resp.Err, boom)
	})

	t.Run("append", func(t *testing.T) {
		f := newFixture("ABC-1234-X")
		f.sheet.appendErr = boom
		resp := f.service.Scan(context.Background(), f.session(), jpeg())
		assert.Equal(t, OutcomeInternal, resp.Outcome)
		assert.Equal(t, http.StatusInternalServerError, resp.Outcome.StatusCode())
	})

	t.Run("undecodable image", func(t *testing.T) {
		f := newFixture("ABC-1234-X")
		resp := f.service.Scan(context.Background(), f.session(), &Upload{Data: []byte("nope"), ContentType: "image/png"})
		assert.Equal(t, OutcomeInternal, resp.Outcome)
		assert.Equal(t, 0, f.detector.calls)
	})
}

type panickingCatalogue struct{}

func (panickingCatalogue) Lookup(context.Context, string) (*discogs.Release, bool) {
	panic("catalogue exploded")
}

func TestScanRecoversPanics(t *testing.T) {
	f := newFixture("ABC-1234-X")
	svc := NewService(f.detector, panickingCatalogue{}, f.prices)

	resp := svc.Scan(context.Background(), f.session(), jpeg())

	assert.Equal(t, OutcomeInternal, resp.Outcome)
	assert.Contains(t, resp.Message(), "catalogue exploded")
}

func TestResultJSON(t *testing.T) {
	result := Result{
		MatrixNumber: "ABC-1234-X",
		Title:        "Help!",
		Year:         "1965",
		ResourceURL:  "https://api.discogs.com/releases/1",
		LowPrice:     floatPtr(10),
		HighPrice:    floatPtr(15.5),
		MedianPrice:  floatPtr(12.58),
	}
	data, err := json.Marshal(result)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"matrix_number": "ABC-1234-X",
		"title": "Help!",
		"year": "1965",
		"resource_url": "https://api.discogs.com/releases/1",
		"low_price": 10,
		"high_price": 15.5,
		"median_price": 12.58
	}`, string(data))

	data, err = json.Marshal(Result{MatrixNumber: "X"})
	require.NoError(t, err)
	assert.Contains(t, string(data), `"median_price":null`)
}
