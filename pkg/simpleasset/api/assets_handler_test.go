package api

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/simple-asset/pkg/simpleasset"
)

// fakeService records calls and returns canned results.
type fakeService struct {
	submitted []simpleasset.SubmitAssetRequest
	filters   []simpleasset.AssetFilter
	assets    []*simpleasset.Asset
	err       error
}

func (f *fakeService) Submit(ctx context.Context, req simpleasset.SubmitAssetRequest) (*simpleasset.Asset, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.submitted = append(f.submitted, req)
	return &simpleasset.Asset{
		ID:          uuid.MustParse("123e4567-e89b-12d3-a456-426614174000"),
		Filename:    req.Filename,
		ContentType: req.ContentType,
		Size:        int64(len(req.Content)),
		Status:      simpleasset.AssetStatusPending,
	}, nil
}

func (f *fakeService) FindByFilter(ctx context.Context, filter simpleasset.AssetFilter) ([]*simpleasset.Asset, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.filters = append(f.filters, filter)
	return f.assets, nil
}

func newTestRouter(svc simpleasset.Service) http.Handler {
	return NewRouter(RouterConfig{Service: svc})
}

func doJSON(t *testing.T, h http.Handler, method, path string, body interface{}, header http.Header) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		switch b := body.(type) {
		case string:
			buf.WriteString(b)
		default:
			require.NoError(t, json.NewEncoder(&buf).Encode(body))
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range header {
		req.Header[k] = v
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestUploadAsset_Accepted(t *testing.T) {
	svc := &fakeService{}
	router := newTestRouter(svc)

	rec := doJSON(t, router, http.MethodPost, "/api/v1/assets", UploadAssetRequest{
		Filename:    "report.pdf",
		EncodedFile: base64.StdEncoding.EncodeToString([]byte("%PDF")),
		ContentType: "application/pdf",
	}, nil)

	require.Equal(t, http.StatusAccepted, rec.Code)
	var resp UploadAssetResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "123e4567-e89b-12d3-a456-426614174000", resp.ID)

	require.Len(t, svc.submitted, 1)
	assert.Equal(t, "report.pdf", svc.submitted[0].Filename)
	assert.Equal(t, "%PDF", string(svc.submitted[0].Content))
}

func TestUploadAsset_Validation(t *testing.T) {
	encoded := base64.StdEncoding.EncodeToString([]byte("data"))

	tests := []struct {
		name    string
		body    interface{}
		message string
	}{
		{name: "malformed json", body: "{", message: "invalid request body"},
		{name: "missing filename", body: UploadAssetRequest{EncodedFile: encoded, ContentType: "text/plain"}, message: "filename"},
		{name: "blank file", body: UploadAssetRequest{Filename: "a.txt", EncodedFile: "  ", ContentType: "text/plain"}, message: "encodedFile"},
		{name: "missing content type", body: UploadAssetRequest{Filename: "a.txt", EncodedFile: encoded}, message: "contentType"},
		{name: "path traversal", body: UploadAssetRequest{Filename: "../a.txt", EncodedFile: encoded, ContentType: "text/plain"}, message: "invalid filename"},
		{name: "path separator", body: UploadAssetRequest{Filename: `dir\a.txt`, EncodedFile: encoded, ContentType: "text/plain"}, message: "invalid filename"},
		{name: "filename too long", body: UploadAssetRequest{Filename: strings.Repeat("a", 256), EncodedFile: encoded, ContentType: "text/plain"}, message: "filename exceeds"},
		{name: "content type too long", body: UploadAssetRequest{Filename: "a.txt", EncodedFile: encoded, ContentType: strings.Repeat("t", 101)}, message: "contentType exceeds"},
		{name: "not base64", body: UploadAssetRequest{Filename: "a.txt", EncodedFile: "!!!", ContentType: "text/plain"}, message: "base64"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &fakeService{}
			rec := doJSON(t, newTestRouter(svc), http.MethodPost, "/api/v1/assets", tt.body, nil)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			var resp ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Contains(t, resp.Error, tt.message)
			assert.Empty(t, svc.submitted)
		})
	}
}

func TestUploadAsset_IngestionFailure(t *testing.T) {
	svc := &fakeService{err: simpleasset.ErrIngestionFailure}

	rec := doJSON(t, newTestRouter(svc), http.MethodPost, "/api/v1/assets", UploadAssetRequest{
		Filename:    "a.txt",
		EncodedFile: base64.StdEncoding.EncodeToString([]byte("a")),
		ContentType: "text/plain",
	}, nil)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestListAssets(t *testing.T) {
	date := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	svc := &fakeService{assets: []*simpleasset.Asset{{
		ID:          uuid.MustParse("123e4567-e89b-12d3-a456-426614174000"),
		Filename:    "a.png",
		ContentType: "image/png",
		URL:         "memory://a",
		Size:        3,
		UploadDate:  date,
		Status:      simpleasset.AssetStatusCompleted,
	}}}

	rec := doJSON(t, newTestRouter(svc), http.MethodGet,
		"/api/v1/assets?uploadDateStart=2024-01-01T00:00&uploadDateEnd=2024-01-03T00:00:00Z&filename=a&filetype=image/png&sortDirection=ASC&status=COMPLETED,failed",
		nil, nil)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp []AssetResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp, 1)
	assert.Equal(t, "a.png", resp[0].Filename)
	assert.Equal(t, "COMPLETED", resp[0].Status)
	assert.Equal(t, "memory://a", resp[0].URL)
	assert.True(t, date.Equal(resp[0].UploadDate))

	require.Len(t, svc.filters, 1)
	f := svc.filters[0]
	require.NotNil(t, f.UploadDateStart)
	require.NotNil(t, f.UploadDateEnd)
	assert.True(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).Equal(*f.UploadDateStart))
	assert.True(t, time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC).Equal(*f.UploadDateEnd))
	assert.Equal(t, "a", *f.Filename)
	assert.Equal(t, "image/png", *f.ContentType)
	assert.Equal(t, simpleasset.SortAsc, f.SortDirection)
	assert.Equal(t, []simpleasset.AssetStatus{simpleasset.AssetStatusCompleted, simpleasset.AssetStatusFailed}, f.Statuses)
}

func TestListAssets_EmptyResultIsArray(t *testing.T) {
	rec := doJSON(t, newTestRouter(&fakeService{assets: []*simpleasset.Asset{}}), http.MethodGet, "/api/v1/assets", nil, nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, "[]", rec.Body.String())
}

func TestListAssets_InvalidQuery(t *testing.T) {
	tests := []struct {
		name  string
		query string
	}{
		{name: "bad date", query: "uploadDateStart=yesterday"},
		{name: "start after end", query: "uploadDateStart=2024-01-02T00:00&uploadDateEnd=2024-01-01T00:00"},
		{name: "start equals end", query: "uploadDateStart=2024-01-01T00:00&uploadDateEnd=2024-01-01T00:00"},
		{name: "bad sort", query: "sortDirection=UP"},
		{name: "lowercase sort", query: "sortDirection=asc"},
		{name: "bad status", query: "status=UPLOADED"},
		{name: "filetype too long", query: "filetype=" + strings.Repeat("x", 101)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &fakeService{}
			rec := doJSON(t, newTestRouter(svc), http.MethodGet, "/api/v1/assets?"+tt.query, nil, nil)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Empty(t, svc.filters)
		})
	}
}

func TestListAssets_ServiceError(t *testing.T) {
	svc := &fakeService{err: errors.New("db down")}

	rec := doJSON(t, newTestRouter(svc), http.MethodGet, "/api/v1/assets", nil, nil)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestHealth(t *testing.T) {
	rec := doJSON(t, newTestRouter(&fakeService{}), http.MethodGet, "/health", nil, nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}
