// Package scan runs one photographed label through OCR, catalogue lookup and
// pricing, and logs the result to the user's spreadsheet.
package scan

import (
	"context"
	"errors"
	"fmt"
	"time"

	"vinyl_scanner/internal/discogs"
	"vinyl_scanner/internal/ebay"
	"vinyl_scanner/internal/imaging"
	"vinyl_scanner/internal/matrix"
	"vinyl_scanner/internal/ocr"
	"vinyl_scanner/internal/sheets"

	"github.com/rs/zerolog/log"
)

const TimestampLayout = "2006-01-02 15:04:05"

// Spreadsheet is the part of the user's sheet a scan writes to.
type Spreadsheet interface {
	EnsureHeaderRow(ctx context.Context, spreadsheetID string, headers []string) error
	AppendRow(ctx context.Context, spreadsheetID string, row []interface{}) error
}

type Catalogue interface {
	Lookup(ctx context.Context, matrixNumber string) (*discogs.Release, bool)
}

type PriceAggregator interface {
	Aggregate(ctx context.Context, title, year string) ebay.Prices
}

// Session is the caller's state as far as a scan cares.
type Session struct {
	Authenticated bool
	SheetID       string
	Sheet         Spreadsheet
}

// Upload is the image part of the request. A nil Upload or one with no
// bytes means nothing was uploaded.
type Upload struct {
	Data        []byte
	ContentType string
}

// Result is what gets logged and echoed back to the client.
type Result struct {
	MatrixNumber string   `json:"matrix_number"`
	Title        string   `json:"title"`
	Year         string   `json:"year"`
	ResourceURL  string   `json:"resource_url"`
	LowPrice     *float64 `json:"low_price"`
	HighPrice    *float64 `json:"high_price"`
	MedianPrice  *float64 `json:"median_price"`
}

type Response struct {
	Outcome Outcome
	Result  *Result
	Err     error
}

// Message is the user-facing text for the response.
func (r Response) Message() string {
	switch r.Outcome {
	case OutcomeLogged:
		return MsgLogged
	case OutcomeUnauthenticated:
		return MsgUnauthenticated
	case OutcomeNoImage:
		return MsgNoImage
	case OutcomeNoMatrix:
		return MsgNoMatrix
	case OutcomeNoMatch:
		return MsgNoMatch
	case OutcomeInternal:
		if r.Err != nil {
			return r.Err.Error()
		}
		return "internal error"
	default:
		return ""
	}
}

type Service struct {
	detector  ocr.TextDetector
	catalogue Catalogue
	prices    PriceAggregator
	Now       func() time.Time
}

func NewService(detector ocr.TextDetector, catalogue Catalogue, prices PriceAggregator) *Service {
	return &Service{
		detector:  detector,
		catalogue: catalogue,
		prices:    prices,
		Now:       time.Now,
	}
}

// Scan handles one scan request end to end. It never panics; anything
// unexpected comes back as OutcomeInternal.
func (s *Service) Scan(ctx context.Context, sess Session, upload *Upload) (resp Response) {
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("scan panicked: %v", r)
			log.Error().Err(err).Msg("Scan failed")
			resp = Response{Outcome: OutcomeInternal, Err: err}
		}
	}()

	if !sess.Authenticated {
		return Response{Outcome: OutcomeUnauthenticated}
	}
	if sess.SheetID == "" || sess.Sheet == nil {
		return Response{Outcome: OutcomeNoSheet}
	}

	if err := sess.Sheet.EnsureHeaderRow(ctx, sess.SheetID, sheets.Headers); err != nil {
		return internal(err)
	}

	if upload == nil || len(upload.Data) == 0 {
		return Response{Outcome: OutcomeNoImage}
	}

	image, err := imaging.Normalize(upload.Data, upload.ContentType)
	if err != nil {
		return internal(err)
	}

	text, err := s.detector.DetectText(ctx, image)
	if err != nil {
		return internal(err)
	}
	log.Debug().Int("chars", len(text)).Msg("OCR complete")

	matrixNumber, ok := matrix.Extract(text)
	if !ok {
		log.Info().Msg("No matrix number in OCR text")
		return Response{Outcome: OutcomeNoMatrix}
	}
	log.Debug().Str("matrix", matrixNumber).Msg("Extracted matrix number")

	release, ok := s.catalogue.Lookup(ctx, matrixNumber)
	if !ok {
		log.Info().Str("matrix", matrixNumber).Msg("No Discogs match")
		return Response{Outcome: OutcomeNoMatch}
	}

	year := string(release.Year)
	prices := s.prices.Aggregate(ctx, release.Title, year)

	result := &Result{
		MatrixNumber: matrixNumber,
		Title:        release.Title,
		Year:         year,
		ResourceURL:  release.ResourceURL,
		LowPrice:     prices.Low,
		HighPrice:    prices.High,
		MedianPrice:  prices.Mean,
	}

	if err := sess.Sheet.AppendRow(ctx, sess.SheetID, s.row(result)); err != nil {
		return internal(err)
	}

	log.Info().
		Str("matrix", matrixNumber).
		Str("title", release.Title).
		Bool("priced", prices.Found()).
		Msg("Scan logged")
	return Response{Outcome: OutcomeLogged, Result: result}
}

// row lays a result out in sheet column order. The trailing empty cell is
// the listing price column.
func (s *Service) row(r *Result) []interface{} {
	return []interface{}{
		s.Now().Format(TimestampLayout),
		r.MatrixNumber,
		r.Title,
		r.Year,
		r.ResourceURL,
		priceCell(r.LowPrice),
		priceCell(r.MedianPrice),
		priceCell(r.HighPrice),
		"",
	}
}

func priceCell(p *float64) interface{} {
	if p == nil {
		return ""
	}
	return *p
}

func internal(err error) Response {
	if errors.Is(err, context.Canceled) {
		log.Warn().Err(err).Msg("Scan cancelled")
	} else {
		log.Error().Err(err).Msg("Scan failed")
	}
	return Response{Outcome: OutcomeInternal, Err: err}
}
