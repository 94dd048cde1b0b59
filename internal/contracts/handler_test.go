package contracts_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/JaimeStill/covenant/internal/contracts"
	"github.com/JaimeStill/covenant/internal/normalize"
	"github.com/JaimeStill/covenant/internal/risk"
	"github.com/JaimeStill/covenant/pkg/pagination"
)

type mockSystem struct {
	listFn func(ctx context.Context, page pagination.PageRequest, filters contracts.Filters) (*pagination.PageResult[contracts.Contract], error)
	findFn func(ctx context.Context, id uuid.UUID) (*contracts.Contract, error)
	textFn func(ctx context.Context, id uuid.UUID) (*normalize.Document, error)

	sourceFn func(ctx context.Context, id uuid.UUID) (io.ReadCloser, *contracts.Contract, error)
}

func (m *mockSystem) Handler(runner contracts.Runner, maxUploadSize int64) *contracts.Handler {
	return newTestHandler(m, runner)
}

func (m *mockSystem) List(ctx context.Context, page pagination.PageRequest, filters contracts.Filters) (*pagination.PageResult[contracts.Contract], error) {
	return m.listFn(ctx, page, filters)
}

func (m *mockSystem) Find(ctx context.Context, id uuid.UUID) (*contracts.Contract, error) {
	return m.findFn(ctx, id)
}

func (m *mockSystem) Create(context.Context, contracts.CreateCommand) (*contracts.Contract, error) {
	return nil, errors.New("not implemented")
}

func (m *mockSystem) Transition(context.Context, uuid.UUID, contracts.Status, contracts.Status) (*contracts.Contract, error) {
	return nil, errors.New("not implemented")
}

func (m *mockSystem) Fail(context.Context, uuid.UUID, contracts.ErrorKind, string) (*contracts.Contract, error) {
	return nil, errors.New("not implemented")
}

func (m *mockSystem) SaveProfile(context.Context, uuid.UUID, contracts.Profile) error {
	return errors.New("not implemented")
}

func (m *mockSystem) SaveText(context.Context, uuid.UUID, *normalize.Document) error {
	return errors.New("not implemented")
}

func (m *mockSystem) ClearText(context.Context, uuid.UUID) error {
	return errors.New("not implemented")
}

func (m *mockSystem) Text(ctx context.Context, id uuid.UUID) (*normalize.Document, error) {
	return m.textFn(ctx, id)
}

func (m *mockSystem) Source(ctx context.Context, id uuid.UUID) (io.ReadCloser, *contracts.Contract, error) {
	return m.sourceFn(ctx, id)
}

type mockRunner struct {
	submitFn  func(ctx context.Context, cmd contracts.CreateCommand) (*contracts.Contract, error)
	analyzeFn func(ctx context.Context, id uuid.UUID) (*contracts.Contract, error)
	cancelFn  func(ctx context.Context, id uuid.UUID) (*contracts.Contract, error)
}

func (m *mockRunner) Submit(ctx context.Context, cmd contracts.CreateCommand) (*contracts.Contract, error) {
	return m.submitFn(ctx, cmd)
}

func (m *mockRunner) Analyze(ctx context.Context, id uuid.UUID) (*contracts.Contract, error) {
	return m.analyzeFn(ctx, id)
}

func (m *mockRunner) Cancel(ctx context.Context, id uuid.UUID) (*contracts.Contract, error) {
	return m.cancelFn(ctx, id)
}

func newTestHandler(sys contracts.System, runner contracts.Runner) *contracts.Handler {
	return contracts.NewHandler(
		sys,
		runner,
		slog.New(slog.NewTextHandler(io.Discard, nil)),
		pagination.Config{DefaultPageSize: 20, MaxPageSize: 100},
		1024*1024,
	)
}

func setupMux(h *contracts.Handler) *http.ServeMux {
	mux := http.NewServeMux()
	group := h.Routes()
	for _, route := range group.Routes {
		pattern := route.Method + " " + group.Prefix + route.Pattern
		mux.HandleFunc(pattern, route.Handler)
	}
	return mux
}

var contractID = uuid.MustParse("7d1f9a52-3b7c-4c55-9f0e-2a4b8c6d1e30")

func sampleContract() contracts.Contract {
	return contracts.Contract{
		ID:           contractID,
		Filename:     "msa.txt",
		ContentType:  normalize.MediaText,
		ContractType: "service",
		Status:       contracts.StatusAnalyzed,
		Parties:      []string{"Acme Corp", "Beta LLC"},
		RiskScore:    risk.High,
		RiskSummary:  risk.Summary{Level: risk.High, Assessed: 2},
		CreatedAt:    time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
		UpdatedAt:    time.Date(2026, 3, 1, 9, 5, 0, 0, time.UTC),
	}
}

func TestHandlerList(t *testing.T) {
	var captured contracts.Filters
	sys := &mockSystem{
		listFn: func(_ context.Context, _ pagination.PageRequest, f contracts.Filters) (*pagination.PageResult[contracts.Contract], error) {
			captured = f
			result := pagination.NewPageResult([]contracts.Contract{sampleContract()}, 1, 1, 20)
			return &result, nil
		},
	}

	mux := setupMux(newTestHandler(sys, &mockRunner{}))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/contracts?status=analyzed&contract_type=service&risk_score=high", nil)
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var result pagination.PageResult[contracts.Contract]
	if err := json.NewDecoder(rec.Body).Decode(&result); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(result.Data) != 1 || result.Data[0].RiskScore != risk.High {
		t.Errorf("data = %+v", result.Data)
	}

	if captured.Status == nil || *captured.Status != "analyzed" {
		t.Errorf("status filter = %v", captured.Status)
	}
	if captured.ContractType == nil || *captured.ContractType != "service" {
		t.Errorf("contract_type filter = %v", captured.ContractType)
	}
	if captured.RiskScore == nil || *captured.RiskScore != "high" {
		t.Errorf("risk_score filter = %v", captured.RiskScore)
	}
}

func TestHandlerFind(t *testing.T) {
	sys := &mockSystem{
		findFn: func(_ context.Context, id uuid.UUID) (*contracts.Contract, error) {
			if id != contractID {
				return nil, contracts.ErrNotFound
			}
			c := sampleContract()
			return &c, nil
		},
	}
	mux := setupMux(newTestHandler(sys, &mockRunner{}))

	tests := []struct {
		name string
		path string
		want int
	}{
		{"found", "/contracts/" + contractID.String(), http.StatusOK},
		{"not found", "/contracts/" + uuid.NewString(), http.StatusNotFound},
		{"invalid id", "/contracts/not-a-uuid", http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, httptest.NewRequest("GET", tt.path, nil))

			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}

func TestHandlerText(t *testing.T) {
	sys := &mockSystem{
		textFn: func(_ context.Context, id uuid.UUID) (*normalize.Document, error) {
			if id != contractID {
				return nil, contracts.ErrNoText
			}
			return &normalize.Document{
				Text:  "Page one.",
				Pages: []normalize.PageMarker{{Page: 1, Start: 0, End: 9}},
			}, nil
		},
	}
	mux := setupMux(newTestHandler(sys, &mockRunner{}))

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest("GET", "/contracts/"+contractID.String()+"/text", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var doc normalize.Document
	if err := json.NewDecoder(rec.Body).Decode(&doc); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if doc.Text != "Page one." || len(doc.Pages) != 1 {
		t.Errorf("doc = %+v", doc)
	}

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest("GET", "/contracts/"+uuid.NewString()+"/text", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("missing text status = %d, want 404", rec.Code)
	}
}

func TestHandlerSource(t *testing.T) {
	body := "MASTER SERVICES AGREEMENT"
	sys := &mockSystem{
		sourceFn: func(_ context.Context, id uuid.UUID) (io.ReadCloser, *contracts.Contract, error) {
			if id != contractID {
				return nil, nil, contracts.ErrNotFound
			}
			c := sampleContract()
			c.Filename = "acme msa.txt"
			c.SizeBytes = int64(len(body))
			return io.NopCloser(bytes.NewReader([]byte(body))), &c, nil
		},
	}
	mux := setupMux(newTestHandler(sys, &mockRunner{}))

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest("GET", "/contracts/"+contractID.String()+"/source", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != normalize.MediaText {
		t.Errorf("content type = %s", ct)
	}
	if cd := rec.Header().Get("Content-Disposition"); cd != `attachment; filename="acme msa.txt"` {
		t.Errorf("content disposition = %s", cd)
	}
	if rec.Body.String() != body {
		t.Errorf("body = %q", rec.Body.String())
	}

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest("GET", "/contracts/"+uuid.NewString()+"/source", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("missing contract status = %d, want 404", rec.Code)
	}
}

func multipartBody(t *testing.T, filename, contentType string, data []byte, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			t.Fatalf("write field: %v", err)
		}
	}

	if filename != "" {
		header := make(map[string][]string)
		header["Content-Disposition"] = []string{`form-data; name="file"; filename="` + filename + `"`}
		header["Content-Type"] = []string{contentType}
		part, err := w.CreatePart(header)
		if err != nil {
			t.Fatalf("create part: %v", err)
		}
		part.Write(data)
	}

	w.Close()
	return &buf, w.FormDataContentType()
}

func TestHandlerUpload(t *testing.T) {
	t.Run("submits resolved command", func(t *testing.T) {
		var captured contracts.CreateCommand
		runner := &mockRunner{
			submitFn: func(_ context.Context, cmd contracts.CreateCommand) (*contracts.Contract, error) {
				captured = cmd
				c := sampleContract()
				c.Status = contracts.StatusUploaded
				return &c, nil
			},
		}
		mux := setupMux(newTestHandler(&mockSystem{}, runner))

		body, ct := multipartBody(t, "msa.txt", "application/octet-stream", []byte("This Agreement is made."), map[string]string{
			"title":         " Master Services Agreement ",
			"contract_type": "service",
		})

		rec := httptest.NewRecorder()
		req := httptest.NewRequest("POST", "/contracts", body)
		req.Header.Set("Content-Type", ct)
		mux.ServeHTTP(rec, req)

		if rec.Code != http.StatusAccepted {
			t.Fatalf("status = %d, want 202: %s", rec.Code, rec.Body.String())
		}
		if captured.ContentType != normalize.MediaText {
			t.Errorf("content type = %q, want text/plain", captured.ContentType)
		}
		if captured.Title != "Master Services Agreement" {
			t.Errorf("title = %q", captured.Title)
		}
		if captured.ContractType != "service" {
			t.Errorf("contract type = %q", captured.ContractType)
		}
		if captured.Filename != "msa.txt" {
			t.Errorf("filename = %q", captured.Filename)
		}
	})

	t.Run("unsupported format", func(t *testing.T) {
		runner := &mockRunner{
			submitFn: func(context.Context, contracts.CreateCommand) (*contracts.Contract, error) {
				t.Fatal("submit called for unsupported format")
				return nil, nil
			},
		}
		mux := setupMux(newTestHandler(&mockSystem{}, runner))

		png := []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")
		body, ct := multipartBody(t, "scan.png", "image/png", png, nil)

		rec := httptest.NewRecorder()
		req := httptest.NewRequest("POST", "/contracts", body)
		req.Header.Set("Content-Type", ct)
		mux.ServeHTTP(rec, req)

		if rec.Code != http.StatusUnsupportedMediaType {
			t.Errorf("status = %d, want 415", rec.Code)
		}
	})

	t.Run("missing file", func(t *testing.T) {
		mux := setupMux(newTestHandler(&mockSystem{}, &mockRunner{}))

		body, ct := multipartBody(t, "", "", nil, map[string]string{"title": "x"})

		rec := httptest.NewRecorder()
		req := httptest.NewRequest("POST", "/contracts", body)
		req.Header.Set("Content-Type", ct)
		mux.ServeHTTP(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", rec.Code)
		}
	})
}

func TestHandlerAnalyzeAndCancel(t *testing.T) {
	runner := &mockRunner{
		analyzeFn: func(_ context.Context, id uuid.UUID) (*contracts.Contract, error) {
			if id == contractID {
				return nil, contracts.ErrBusy
			}
			return nil, contracts.ErrInvalidTransition
		},
		cancelFn: func(_ context.Context, id uuid.UUID) (*contracts.Contract, error) {
			c := sampleContract()
			c.Status = contracts.StatusError
			return &c, nil
		},
	}
	mux := setupMux(newTestHandler(&mockSystem{}, runner))

	tests := []struct {
		name string
		path string
		want int
	}{
		{"analyze busy", "/contracts/" + contractID.String() + "/analyze", http.StatusConflict},
		{"analyze analyzed", "/contracts/" + uuid.NewString() + "/analyze", http.StatusConflict},
		{"cancel", "/contracts/" + contractID.String() + "/cancel", http.StatusAccepted},
		{"analyze bad id", "/contracts/nope/analyze", http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, httptest.NewRequest("POST", tt.path, nil))

			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}

func TestMapHTTPStatus(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{contracts.ErrNotFound, http.StatusNotFound},
		{contracts.ErrBusy, http.StatusConflict},
		{contracts.ErrInvalidTransition, http.StatusConflict},
		{normalize.ErrUnsupportedFormat, http.StatusUnsupportedMediaType},
		{contracts.ErrFileTooLarge, http.StatusRequestEntityTooLarge},
		{errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		if got := contracts.MapHTTPStatus(tt.err); got != tt.want {
			t.Errorf("MapHTTPStatus(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}
