package sheets

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
)

// fakeSheets is a minimal in-memory stand-in for the Sheets v4 REST API with
// a single worksheet.
type fakeSheets struct {
	mu       sync.Mutex
	title    string
	rows     [][]interface{}
	inserts  int
	clears   int
	updates  int
	failWith int
}

func (f *fakeSheets) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.failWith != 0 {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(f.failWith)
		_, _ = fmt.Fprintf(w, `{"error":{"code":%d,"message":"backend error"}}`, f.failWith)
		return
	}

	path := r.URL.Path
	w.Header().Set("Content-Type", "application/json")

	switch {
	case strings.HasSuffix(path, ":batchUpdate"):
		f.rows = append([][]interface{}{{}}, f.rows...)
		f.inserts++
		_, _ = w.Write([]byte(`{}`))

	case strings.Contains(path, "/values/") && strings.HasSuffix(path, ":clear"):
		if len(f.rows) > 0 {
			f.rows[0] = nil
		}
		f.clears++
		_, _ = w.Write([]byte(`{}`))

	case strings.Contains(path, "/values/") && strings.HasSuffix(path, ":append"):
		var body struct {
			Values [][]interface{} `json:"values"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		f.rows = append(f.rows, body.Values...)
		_, _ = w.Write([]byte(`{}`))

	case strings.Contains(path, "/values/") && r.Method == http.MethodPut:
		var body struct {
			Values [][]interface{} `json:"values"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		if len(f.rows) == 0 {
			f.rows = append(f.rows, nil)
		}
		f.rows[0] = body.Values[0]
		f.updates++
		_, _ = w.Write([]byte(`{}`))

	case strings.Contains(path, "/values/"):
		values := f.rows
		if strings.HasSuffix(path, "!1:1") {
			values = nil
			if len(f.rows) > 0 && len(f.rows[0]) > 0 {
				values = f.rows[:1]
			}
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"values": values})

	default:
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"sheets": []map[string]interface{}{
				{"properties": map[string]interface{}{"sheetId": 0, "title": f.title, "index": 0}},
			},
		})
	}
}

func newFakeClient(t *testing.T, fake *fakeSheets) *Client {
	t.Helper()
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	client, err := NewClient(context.Background(),
		option.WithEndpoint(srv.URL+"/"),
		option.WithoutAuthentication(),
		option.WithHTTPClient(srv.Client()),
	)
	require.NoError(t, err)
	return client
}
