package web

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/nbbaier/tableimport/internal/config"
	"github.com/nbbaier/tableimport/internal/core"
)

// fakeService records what the handlers pass in and returns canned results.
type fakeService struct {
	gotTable string
	gotBody  string
	gotOpts  core.ParseOptions

	importErr error
	countErr  error
	dropErr   error

	count      int64
	countTable string
}

func (f *fakeService) ImportDelimited(ctx context.Context, tableName string, r io.Reader, opts core.ParseOptions) (*core.ImportResult, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("parse %s: invalid csv: %w", tableName, err)
	}
	f.gotTable, f.gotBody, f.gotOpts = tableName, string(b), opts
	if f.importErr != nil {
		return nil, f.importErr
	}
	return &core.ImportResult{
		ImportID: "imp-1",
		Table: &core.TableMetadata{
			TableName:          tableName,
			SanitizedTableName: core.SanitizeIdentifier(tableName),
			RowCount:           1,
		},
		Delimiter: string(opts.Delimiter),
	}, nil
}

func (f *fakeService) Preview(tableName string, r io.Reader, opts core.ParseOptions) (*core.TableMetadata, error) {
	parsed, err := core.ParseDelimited(r, opts)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", tableName, err)
	}
	return core.Plan(tableName, parsed.Columns, parsed.Rows)
}

func (f *fakeService) TableRowCount(ctx context.Context, tableName string) (string, int64, error) {
	f.gotTable = tableName
	if f.countErr != nil {
		return "", 0, f.countErr
	}
	return f.countTable, f.count, nil
}

func (f *fakeService) DropTable(ctx context.Context, tableName string) (string, error) {
	if f.dropErr != nil {
		return "", f.dropErr
	}
	return core.SanitizeIdentifier(tableName), nil
}

func (f *fakeService) LimiterStatus() core.LimiterStatus {
	return core.LimiterStatus{Active: 1, Available: 4, MaxConcurrent: 5}
}

func testConfig() *config.Config {
	return &config.Config{
		Import: config.ImportConfig{MaxFileSize: 1 << 20},
	}
}

func do(t *testing.T, s *Server, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	return resp
}

func multipartBody(t *testing.T, field, content string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile(field, "upload.csv")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := io.WriteString(fw, content); err != nil {
		t.Fatal(err)
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}
	return &buf, mw.FormDataContentType()
}

func TestHealth(t *testing.T) {
	s := NewServer(&fakeService{}, testConfig())
	rec := do(t, s, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if rec.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Error("missing security headers")
	}
}

func TestImport_RawBody(t *testing.T) {
	svc := &fakeService{}
	s := NewServer(svc, testConfig())

	req := httptest.NewRequest(http.MethodPost, "/api/import/Sales%20Q1?delimiter=semicolon", strings.NewReader("a;b\n1;2\n"))
	req.Header.Set("Content-Type", "text/csv")
	rec := do(t, s, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201; body = %s", rec.Code, rec.Body)
	}
	if svc.gotTable != "Sales Q1" || svc.gotBody != "a;b\n1;2\n" || svc.gotOpts.Delimiter != ';' {
		t.Errorf("service got table=%q body=%q delim=%q", svc.gotTable, svc.gotBody, svc.gotOpts.Delimiter)
	}

	var res core.ImportResult
	if err := json.NewDecoder(rec.Body).Decode(&res); err != nil {
		t.Fatal(err)
	}
	if res.ImportID != "imp-1" || res.Table.SanitizedTableName != "sales_q1" {
		t.Errorf("response = %+v", res)
	}
}

func TestImport_Multipart(t *testing.T) {
	svc := &fakeService{}
	s := NewServer(svc, testConfig())

	body, contentType := multipartBody(t, "file", "x,y\n1,2\n")
	req := httptest.NewRequest(http.MethodPost, "/api/import/points", body)
	req.Header.Set("Content-Type", contentType)
	rec := do(t, s, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201; body = %s", rec.Code, rec.Body)
	}
	if svc.gotBody != "x,y\n1,2\n" {
		t.Errorf("service body = %q", svc.gotBody)
	}
}

func TestImport_Errors(t *testing.T) {
	tests := []struct {
		name       string
		svc        *fakeService
		cfg        func(*config.Config)
		build      func(t *testing.T) *http.Request
		wantStatus int
		wantCode   string
	}{
		{
			name: "bad delimiter",
			svc:  &fakeService{},
			build: func(t *testing.T) *http.Request {
				return httptest.NewRequest(http.MethodPost, "/api/import/t?delimiter=ab", strings.NewReader("a\n1\n"))
			},
			wantStatus: http.StatusBadRequest,
			wantCode:   "REQ004",
		},
		{
			name: "multipart without file field",
			svc:  &fakeService{},
			build: func(t *testing.T) *http.Request {
				body, ct := multipartBody(t, "other", "a\n1\n")
				req := httptest.NewRequest(http.MethodPost, "/api/import/t", body)
				req.Header.Set("Content-Type", ct)
				return req
			},
			wantStatus: http.StatusBadRequest,
			wantCode:   "FILE003",
		},
		{
			name: "body too large",
			svc:  &fakeService{},
			cfg:  func(c *config.Config) { c.Import.MaxFileSize = 4 },
			build: func(t *testing.T) *http.Request {
				return httptest.NewRequest(http.MethodPost, "/api/import/t", strings.NewReader("a,b,c\n1,2,3\n"))
			},
			wantStatus: http.StatusRequestEntityTooLarge,
			wantCode:   "FILE001",
		},
		{
			name: "too many imports",
			svc:  &fakeService{importErr: core.ErrTooManyImports},
			build: func(t *testing.T) *http.Request {
				return httptest.NewRequest(http.MethodPost, "/api/import/t", strings.NewReader("a\n1\n"))
			},
			wantStatus: http.StatusServiceUnavailable,
			wantCode:   "REQ001",
		},
		{
			name: "empty file",
			svc:  &fakeService{importErr: fmt.Errorf("parse t: %w", core.ErrEmptyInput)},
			build: func(t *testing.T) *http.Request {
				return httptest.NewRequest(http.MethodPost, "/api/import/t", strings.NewReader(""))
			},
			wantStatus: http.StatusBadRequest,
			wantCode:   "FILE004",
		},
		{
			name: "rejected value",
			svc: &fakeService{importErr: &core.ImportError{
				Table: "t", Stage: core.StageInsert, Row: 4,
				Err: &pgconn.PgError{Code: "22003", Message: "value out of range"},
			}},
			build: func(t *testing.T) *http.Request {
				return httptest.NewRequest(http.MethodPost, "/api/import/t", strings.NewReader("a\n1\n"))
			},
			wantStatus: http.StatusUnprocessableEntity,
			wantCode:   "DB002",
		},
		{
			name: "commit failure",
			svc: &fakeService{importErr: &core.ImportError{
				Table: "t", Stage: core.StageCommit, Err: fmt.Errorf("conn closed"),
			}},
			build: func(t *testing.T) *http.Request {
				return httptest.NewRequest(http.MethodPost, "/api/import/t", strings.NewReader("a\n1\n"))
			},
			wantStatus: http.StatusInternalServerError,
			wantCode:   "IMP003",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			if tt.cfg != nil {
				tt.cfg(cfg)
			}
			s := NewServer(tt.svc, cfg)
			rec := do(t, s, tt.build(t))

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d; body = %s", rec.Code, tt.wantStatus, rec.Body)
			}
			if got := decodeError(t, rec).Code; got != tt.wantCode {
				t.Errorf("code = %s, want %s", got, tt.wantCode)
			}
		})
	}
}

func TestImport_BusySetsRetryAfter(t *testing.T) {
	s := NewServer(&fakeService{importErr: core.ErrTooManyImports}, testConfig())
	rec := do(t, s, httptest.NewRequest(http.MethodPost, "/api/import/t", strings.NewReader("a\n1\n")))

	if got := rec.Header().Get("Retry-After"); got != "30" {
		t.Errorf("Retry-After = %q, want 30", got)
	}
}

func TestPreview(t *testing.T) {
	s := NewServer(&fakeService{}, testConfig())
	req := httptest.NewRequest(http.MethodPost, "/api/preview/People?delimiter=tab", strings.NewReader("Id\tName\n1\tAda\n2\tBob\n"))
	rec := do(t, s, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body = %s", rec.Code, rec.Body)
	}
	var meta core.TableMetadata
	if err := json.NewDecoder(rec.Body).Decode(&meta); err != nil {
		t.Fatal(err)
	}
	if meta.SanitizedTableName != "people" || len(meta.Columns) != 2 || meta.RowCount != 2 {
		t.Fatalf("meta = %+v", meta)
	}
	if meta.Columns[0].Type != core.ColumnInteger || meta.Columns[1].Type != core.ColumnText {
		t.Errorf("column types = %s, %s", meta.Columns[0].Type, meta.Columns[1].Type)
	}
}

func TestTableCount(t *testing.T) {
	tests := []struct {
		name      string
		path      string
		counted   string
		wantParam string
	}{
		{"short name", "/api/tables/My%20Table/count", "my_table", "My Table"},
		{
			// The service truncates long names; the response must name the table it counted.
			name:      "long name",
			path:      "/api/tables/" + strings.Repeat("x", 70) + "/count",
			counted:   strings.Repeat("x", core.MaxIdentifierLength),
			wantParam: strings.Repeat("x", 70),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &fakeService{count: 42, countTable: tt.counted}
			rec := do(t, NewServer(svc, testConfig()), httptest.NewRequest(http.MethodGet, tt.path, nil))

			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d, want 200", rec.Code)
			}
			if svc.gotTable != tt.wantParam {
				t.Errorf("service got table %q, want %q", svc.gotTable, tt.wantParam)
			}
			var body struct {
				Table    string `json:"table"`
				RowCount int64  `json:"rowCount"`
			}
			if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
				t.Fatal(err)
			}
			if body.Table != tt.counted || body.RowCount != 42 {
				t.Errorf("body = %+v, want table %q", body, tt.counted)
			}
		})
	}
}

func TestTableCount_Missing(t *testing.T) {
	svc := &fakeService{countErr: fmt.Errorf("count x: %w", &pgconn.PgError{Code: "42P01"})}
	s := NewServer(svc, testConfig())
	rec := do(t, s, httptest.NewRequest(http.MethodGet, "/api/tables/x/count", nil))

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
	if got := decodeError(t, rec).Code; got != "TBL001" {
		t.Errorf("code = %s, want TBL001", got)
	}
}

func TestDropTable(t *testing.T) {
	s := NewServer(&fakeService{}, testConfig())
	rec := do(t, s, httptest.NewRequest(http.MethodDelete, "/api/tables/Old%20Data", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"table":"old_data"`) {
		t.Errorf("body = %s", rec.Body)
	}
}

func TestStatus(t *testing.T) {
	s := NewServer(&fakeService{}, testConfig())
	rec := do(t, s, httptest.NewRequest(http.MethodGet, "/api/status", nil))

	var st core.LimiterStatus
	if err := json.NewDecoder(rec.Body).Decode(&st); err != nil {
		t.Fatal(err)
	}
	if st.Active != 1 || st.MaxConcurrent != 5 {
		t.Errorf("status = %+v", st)
	}
}

func TestAPIKeyRequired(t *testing.T) {
	cfg := testConfig()
	cfg.Security = config.SecurityConfig{RequireAPIKey: true, APIKeys: []string{"k1", "k2"}}
	s := NewServer(&fakeService{}, cfg)

	tests := []struct {
		key        string
		wantStatus int
	}{
		{"", http.StatusUnauthorized},
		{"nope", http.StatusForbidden},
		{"k2", http.StatusOK},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/api/status", nil)
		if tt.key != "" {
			req.Header.Set("X-API-Key", tt.key)
		}
		if rec := do(t, s, req); rec.Code != tt.wantStatus {
			t.Errorf("key %q: status = %d, want %d", tt.key, rec.Code, tt.wantStatus)
		}
	}

	// Health checks stay open.
	if rec := do(t, s, httptest.NewRequest(http.MethodGet, "/healthz", nil)); rec.Code != http.StatusOK {
		t.Errorf("healthz status = %d, want 200", rec.Code)
	}
}
