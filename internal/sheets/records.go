package sheets

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog/log"
)

const (
	ColSubmitted    = "Time of Submission"
	ColMatrixNumber = "Matrix Number"
	ColTitle        = "Title"
	ColYear         = "Year"
	ColRelease      = "Discogs Release"
	ColLowestPrice  = "Lowest Price"
	ColMedianPrice  = "Median Price"
	ColHighestPrice = "Highest Price"
)

// Headers is the header row every scan sheet carries. Rows have one extra,
// unnamed trailing column reserved for listing prices.
var Headers = []string{
	ColSubmitted,
	ColMatrixNumber,
	ColTitle,
	ColYear,
	ColRelease,
	ColLowestPrice,
	ColMedianPrice,
	ColHighestPrice,
}

// ScanRecord is one logged scan read back from a sheet.
type ScanRecord struct {
	RowIndex     int
	SubmittedAt  string
	MatrixNumber string
	Title        string
	Year         string
	ReleaseURL   string
	LowestPrice  string
	MedianPrice  string
	HighestPrice string
}

var sheetURL = regexp.MustCompile(`/spreadsheets/d/([a-zA-Z0-9-_]+)`)

// ParseSheetID accepts a full spreadsheet URL or a bare id.
func ParseSheetID(input string) string {
	if m := sheetURL.FindStringSubmatch(input); m != nil {
		return m[1]
	}
	return strings.TrimSpace(input)
}

// ParseRecords maps data rows to records using the header row (row 1) to
// locate columns. Rows with no cells and repeated header rows are skipped.
func ParseRecords(rows [][]interface{}) []ScanRecord {
	if len(rows) == 0 {
		return nil
	}

	index := make(map[string]int)
	for i, h := range cellStrings(rows[0]) {
		if _, seen := index[h]; !seen {
			index[h] = i
		}
	}

	field := func(row []interface{}, name string) string {
		i, ok := index[name]
		if !ok || i >= len(row) {
			return ""
		}
		return cellString(row[i])
	}

	var records []ScanRecord
	for i, row := range rows[1:] {
		if len(row) == 0 || isHeaderRow(cellStrings(row)) {
			continue
		}
		records = append(records, ScanRecord{
			RowIndex:     i + 2,
			SubmittedAt:  field(row, ColSubmitted),
			MatrixNumber: field(row, ColMatrixNumber),
			Title:        field(row, ColTitle),
			Year:         field(row, ColYear),
			ReleaseURL:   field(row, ColRelease),
			LowestPrice:  field(row, ColLowestPrice),
			MedianPrice:  field(row, ColMedianPrice),
			HighestPrice: field(row, ColHighestPrice),
		})
	}

	log.Debug().
		Int("total_rows", len(rows)).
		Int("records", len(records)).
		Msg("Parsed sheet records")
	return records
}

// NewestFirst returns the records in reverse sheet order.
func NewestFirst(records []ScanRecord) []ScanRecord {
	out := make([]ScanRecord, len(records))
	for i, r := range records {
		out[len(records)-1-i] = r
	}
	return out
}

// Recent returns up to n records, newest first.
func Recent(records []ScanRecord, n int) []ScanRecord {
	newest := NewestFirst(records)
	if len(newest) > n {
		return newest[:n]
	}
	return newest
}

// TotalValue sums the median price column, ignoring blank or non-numeric
// cells.
func TotalValue(records []ScanRecord) float64 {
	total := 0.0
	for _, r := range records {
		price, err := strconv.ParseFloat(strings.TrimSpace(r.MedianPrice), 64)
		if err != nil || math.IsNaN(price) || math.IsInf(price, 0) {
			continue
		}
		total += price
	}
	return total
}

// FormatPounds renders v as £1,234.56.
func FormatPounds(v float64) string {
	return "£" + humanize.FormatFloat("#,###.##", v)
}
