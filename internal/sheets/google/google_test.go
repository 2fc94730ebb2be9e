package google

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	ports "ledger/internal/sheets"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

// fakeSheets serves the handful of Sheets API calls the client makes.
type fakeSheets struct {
	mu      sync.Mutex
	titles  []string
	calls   []string
	written map[string][][]any
}

func (f *fakeSheets) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	path := r.URL.Path
	w.Header().Set("Content-Type", "application/json")

	switch {
	case r.Method == http.MethodGet && strings.HasSuffix(path, "/spreadsheets/sid"):
		f.calls = append(f.calls, "get")
		var sheets []map[string]any
		for _, t := range f.titles {
			sheets = append(sheets, map[string]any{"properties": map[string]any{"title": t}})
		}
		json.NewEncoder(w).Encode(map[string]any{"spreadsheetId": "sid", "sheets": sheets})

	case r.Method == http.MethodPost && strings.HasSuffix(path, ":batchUpdate"):
		f.calls = append(f.calls, "batchUpdate")
		var req gsheet.BatchUpdateSpreadsheetRequest
		json.NewDecoder(r.Body).Decode(&req)
		for _, rq := range req.Requests {
			if rq.AddSheet != nil {
				f.titles = append(f.titles, rq.AddSheet.Properties.Title)
			}
		}
		json.NewEncoder(w).Encode(map[string]any{"spreadsheetId": "sid"})

	case r.Method == http.MethodPost && strings.HasSuffix(path, ":clear"):
		f.calls = append(f.calls, "clear")
		json.NewEncoder(w).Encode(map[string]any{"spreadsheetId": "sid"})

	case r.Method == http.MethodPut && strings.Contains(path, "/values/"):
		f.calls = append(f.calls, "update")
		rng := path[strings.Index(path, "/values/")+len("/values/"):]
		var vr gsheet.ValueRange
		json.NewDecoder(r.Body).Decode(&vr)
		f.written[rng] = vr.Values
		json.NewEncoder(w).Encode(map[string]any{"spreadsheetId": "sid", "updatedRange": rng})

	default:
		http.Error(w, "unexpected "+r.Method+" "+path, http.StatusNotFound)
	}
}

func newTestClient(t *testing.T, f *fakeSheets) *Client {
	t.Helper()
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)

	svc, err := gsheet.NewService(context.Background(),
		goption.WithEndpoint(srv.URL+"/"),
		goption.WithHTTPClient(srv.Client()))
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return NewWithService(svc, "sid", "Ledger", slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestPublishTableCreatesSheetOnce(t *testing.T) {
	f := &fakeSheets{written: make(map[string][][]any)}
	c := newTestClient(t, f)
	ctx := context.Background()

	table := ports.Table{
		Name:   "Composition",
		Header: []string{"Year", "Public"},
		Rows:   [][]any{{2019, 1.5}},
	}
	ref, err := c.PublishTable(ctx, table)
	if err != nil {
		t.Fatalf("PublishTable: %v", err)
	}
	if ref != "'Ledger Composition'!A1" {
		t.Errorf("ref = %q", ref)
	}
	if _, err := c.PublishTable(ctx, table); err != nil {
		t.Fatalf("second PublishTable: %v", err)
	}

	want := "get,batchUpdate,clear,update,clear,update"
	if got := strings.Join(f.calls, ","); got != want {
		t.Errorf("calls = %s, want %s", got, want)
	}
	if len(f.titles) != 1 || f.titles[0] != "Ledger Composition" {
		t.Errorf("titles = %v", f.titles)
	}

	values := f.written["'Ledger Composition'!A1"]
	if len(values) != 2 || values[0][0] != "Year" || values[1][1] != 1.5 {
		t.Errorf("written = %v", values)
	}
}

func TestPublishTableReusesExistingSheet(t *testing.T) {
	f := &fakeSheets{titles: []string{"Ledger Lens staffing"}, written: make(map[string][][]any)}
	c := newTestClient(t, f)

	if _, err := c.PublishTable(context.Background(), ports.Table{Name: "Lens staffing", Header: []string{"Vendor ID"}}); err != nil {
		t.Fatalf("PublishTable: %v", err)
	}
	if got := strings.Join(f.calls, ","); got != "get,clear,update" {
		t.Errorf("calls = %s", got)
	}
}

func TestPublishTableErrors(t *testing.T) {
	c := &Client{}
	if _, err := c.PublishTable(context.Background(), ports.Table{Name: "x"}); err == nil {
		t.Error("expected error without service")
	}

	f := &fakeSheets{written: make(map[string][][]any)}
	c = newTestClient(t, f)
	if _, err := c.PublishTable(context.Background(), ports.Table{}); err == nil {
		t.Error("expected error for unnamed table")
	}
}

func TestNew_MissingSpreadsheetID(t *testing.T) {
	_, err := New(context.Background(), " ", "Ledger", nil)
	if err == nil || err.Error() != "missing GOOGLE_SPREADSHEET_ID" {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestNew_MissingCredentials(t *testing.T) {
	t.Setenv("GOOGLE_SERVICE_ACCOUNT_JSON", "")
	t.Setenv("GOOGLE_SERVICE_ACCOUNT_FILE", "")
	t.Setenv("GOOGLE_APPLICATION_CREDENTIALS", "")

	_, err := New(context.Background(), "sid", "Ledger", nil)
	if err == nil || !strings.Contains(err.Error(), "missing service account credentials") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestQuoteSheet(t *testing.T) {
	tests := map[string]string{
		"Ledger Composition": "'Ledger Composition'",
		"Bob's":              "'Bob''s'",
	}
	for in, want := range tests {
		if got := quoteSheet(in); got != want {
			t.Errorf("quoteSheet(%q) = %q, want %q", in, got, want)
		}
	}
}
