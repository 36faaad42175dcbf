package sheets

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strings"

	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

// Client talks to a user's spreadsheets. All operations target the first
// worksheet of the spreadsheet.
type Client struct {
	service *sheets.Service
}

func NewClient(ctx context.Context, opts ...option.ClientOption) (*Client, error) {
	service, err := sheets.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheets service: %w", err)
	}

	return &Client{
		service: service,
	}, nil
}

// NewUserClient builds a client acting as the signed-in user.
func NewUserClient(ctx context.Context, ts oauth2.TokenSource) (*Client, error) {
	return NewClient(ctx, option.WithTokenSource(ts))
}

type worksheet struct {
	id    int64
	title string
}

func (w worksheet) a1(cells string) string {
	quoted := "'" + strings.ReplaceAll(w.title, "'", "''") + "'"
	if cells == "" {
		return quoted
	}
	return quoted + "!" + cells
}

func (c *Client) firstWorksheet(ctx context.Context, spreadsheetID string) (worksheet, error) {
	resp, err := c.service.Spreadsheets.Get(spreadsheetID).
		Fields("sheets.properties(sheetId,title,index)").
		Context(ctx).
		Do()
	if err != nil {
		return worksheet{}, fmt.Errorf("failed to open spreadsheet: %w", err)
	}
	if len(resp.Sheets) == 0 || resp.Sheets[0].Properties == nil {
		return worksheet{}, fmt.Errorf("spreadsheet %s has no worksheets", spreadsheetID)
	}

	props := resp.Sheets[0].Properties
	return worksheet{id: props.SheetId, title: props.Title}, nil
}

// ReadAllRows returns every non-empty row of the first worksheet.
func (c *Client) ReadAllRows(ctx context.Context, spreadsheetID string) ([][]interface{}, error) {
	ws, err := c.firstWorksheet(ctx, spreadsheetID)
	if err != nil {
		return nil, err
	}

	resp, err := c.service.Spreadsheets.Values.Get(spreadsheetID, ws.a1("")).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet: %w", err)
	}

	return resp.Values, nil
}

// AppendRow adds row after the last row of the first worksheet.
func (c *Client) AppendRow(ctx context.Context, spreadsheetID string, row []interface{}) error {
	ws, err := c.firstWorksheet(ctx, spreadsheetID)
	if err != nil {
		return err
	}

	valueRange := &sheets.ValueRange{
		Values: [][]interface{}{row},
	}

	_, err = c.service.Spreadsheets.Values.Append(spreadsheetID, ws.a1("A1"), valueRange).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("failed to append row: %w", err)
	}

	return nil
}

// EnsureHeaderRow makes row 1 equal headers. An outdated header row is
// rewritten in place. When row 1 holds data instead, a new row is inserted
// above it so no existing data is lost.
func (c *Client) EnsureHeaderRow(ctx context.Context, spreadsheetID string, headers []string) error {
	ws, err := c.firstWorksheet(ctx, spreadsheetID)
	if err != nil {
		return err
	}

	resp, err := c.service.Spreadsheets.Values.Get(spreadsheetID, ws.a1("1:1")).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("failed to read header row: %w", err)
	}

	var current []string
	if len(resp.Values) > 0 {
		current = cellStrings(resp.Values[0])
	}
	if slices.Equal(current, headers) {
		log.Debug().Str("spreadsheet_id", spreadsheetID).Msg("Sheet headers already correct")
		return nil
	}

	switch {
	case isHeaderRow(current):
		if _, err := c.service.Spreadsheets.Values.Clear(spreadsheetID, ws.a1("1:1"), &sheets.ClearValuesRequest{}).Context(ctx).Do(); err != nil {
			return fmt.Errorf("failed to clear header row: %w", err)
		}
	case len(current) > 0:
		insert := &sheets.BatchUpdateSpreadsheetRequest{
			Requests: []*sheets.Request{{
				InsertDimension: &sheets.InsertDimensionRequest{
					Range: &sheets.DimensionRange{
						SheetId:    ws.id,
						Dimension:  "ROWS",
						StartIndex: 0,
						EndIndex:   1,
					},
					InheritFromBefore: false,
				},
			}},
		}
		if _, err := c.service.Spreadsheets.BatchUpdate(spreadsheetID, insert).Context(ctx).Do(); err != nil {
			return fmt.Errorf("failed to insert header row: %w", err)
		}
	}

	row := make([]interface{}, len(headers))
	for i, h := range headers {
		row[i] = h
	}
	_, err = c.service.Spreadsheets.Values.Update(spreadsheetID, ws.a1("A1"), &sheets.ValueRange{Values: [][]interface{}{row}}).
		ValueInputOption("RAW").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("failed to write header row: %w", err)
	}

	log.Info().
		Str("spreadsheet_id", spreadsheetID).
		Strs("headers", headers).
		Msg("Sheet headers updated")
	return nil
}

// isHeaderRow reports whether row is a header row, current or outdated.
func isHeaderRow(row []string) bool {
	return slices.Contains(row, ColMatrixNumber)
}

// IsTransient reports whether err is worth retrying: quota and server-side
// failures from the Google API.
func IsTransient(err error) bool {
	var apiErr *googleapi.Error
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.Code == http.StatusTooManyRequests || apiErr.Code >= http.StatusInternalServerError
}

func cellStrings(row []interface{}) []string {
	out := make([]string, len(row))
	for i, cell := range row {
		out[i] = cellString(cell)
	}
	return out
}

func cellString(cell interface{}) string {
	if cell == nil {
		return ""
	}
	return fmt.Sprintf("%v", cell)
}
