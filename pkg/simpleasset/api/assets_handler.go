package api

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/gotidy/ptr"
	"github.com/tendant/simple-asset/pkg/simpleasset"
)

const (
	maxFilenameLength    = 255
	maxContentTypeLength = 100
)

// localDateTime matches YYYY-MM-DDTHH:MM with optional seconds
var localDateTime = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}T\d{2}:\d{2}(:\d{2})?$`)

// AssetsHandler serves the asset ingestion and query endpoints
type AssetsHandler struct {
	service simpleasset.Service
	logger  *slog.Logger
}

func NewAssetsHandler(service simpleasset.Service, logger *slog.Logger) *AssetsHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &AssetsHandler{service: service, logger: logger}
}

// Routes returns the router for asset endpoints
func (h *AssetsHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/", h.UploadAsset)
	r.Get("/", h.ListAssets)
	return r
}

// UploadAssetRequest is the body of POST /assets
type UploadAssetRequest struct {
	Filename    string `json:"filename"`
	EncodedFile string `json:"encodedFile"` // base64
	ContentType string `json:"contentType"`
}

// UploadAssetResponse is returned once the asset is accepted
type UploadAssetResponse struct {
	ID string `json:"id"`
}

// AssetResponse is one entry of GET /assets
type AssetResponse struct {
	ID          string    `json:"id"`
	Filename    string    `json:"filename"`
	ContentType string    `json:"contentType"`
	URL         string    `json:"url,omitempty"`
	Size        int64     `json:"size"`
	UploadDate  time.Time `json:"uploadDate"`
	Status      string    `json:"status"`
}

// ErrorResponse is the body of every 4xx/5xx reply
type ErrorResponse struct {
	Error string `json:"error"`
}

// UploadAsset accepts an asset and answers 202 before storage completes
func (h *AssetsHandler) UploadAsset(w http.ResponseWriter, r *http.Request) {
	var req UploadAssetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("Failed to decode request", "error", err)
		writeError(w, r, http.StatusBadRequest, "invalid request body")
		return
	}

	content, err := validateUpload(req)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	asset, err := h.service.Submit(r.Context(), simpleasset.SubmitAssetRequest{
		Filename:    req.Filename,
		ContentType: req.ContentType,
		Content:     content,
	})
	if err != nil {
		h.logger.Error("Failed to submit asset", "filename", req.Filename, "error", err)
		writeError(w, r, http.StatusInternalServerError, "failed to accept asset")
		return
	}

	render.Status(r, http.StatusAccepted)
	render.JSON(w, r, UploadAssetResponse{ID: asset.ID.String()})
}

// ListAssets returns the assets matching the query parameters
func (h *AssetsHandler) ListAssets(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	assets, err := h.service.FindByFilter(r.Context(), filter)
	if err != nil {
		h.logger.Error("Failed to query assets", "error", err)
		writeError(w, r, http.StatusInternalServerError, "failed to query assets")
		return
	}

	resp := make([]AssetResponse, 0, len(assets))
	for _, a := range assets {
		resp = append(resp, AssetResponse{
			ID:          a.ID.String(),
			Filename:    a.Filename,
			ContentType: a.ContentType,
			URL:         a.URL,
			Size:        a.Size,
			UploadDate:  a.UploadDate,
			Status:      string(a.Status),
		})
	}
	render.JSON(w, r, resp)
}

func validateUpload(req UploadAssetRequest) ([]byte, error) {
	if strings.TrimSpace(req.Filename) == "" {
		return nil, errors.New("filename cannot be null or empty")
	}
	if strings.TrimSpace(req.EncodedFile) == "" {
		return nil, errors.New("encodedFile cannot be null or empty")
	}
	if strings.TrimSpace(req.ContentType) == "" {
		return nil, errors.New("contentType cannot be null or empty")
	}
	if strings.Contains(req.Filename, "..") || strings.ContainsAny(req.Filename, `/\`) {
		return nil, errors.New("invalid filename")
	}
	if len(req.Filename) > maxFilenameLength {
		return nil, fmt.Errorf("filename exceeds %d characters", maxFilenameLength)
	}
	if len(req.ContentType) > maxContentTypeLength {
		return nil, fmt.Errorf("contentType exceeds %d characters", maxContentTypeLength)
	}

	content, err := base64.StdEncoding.DecodeString(req.EncodedFile)
	if err != nil {
		return nil, errors.New("encodedFile must be base64")
	}
	return content, nil
}

func parseFilter(r *http.Request) (simpleasset.AssetFilter, error) {
	q := r.URL.Query()
	var filter simpleasset.AssetFilter

	start, err := parseDate("uploadDateStart", q.Get("uploadDateStart"))
	if err != nil {
		return filter, err
	}
	end, err := parseDate("uploadDateEnd", q.Get("uploadDateEnd"))
	if err != nil {
		return filter, err
	}
	if start != nil && end != nil && !start.Before(*end) {
		return filter, errors.New("uploadDateStart must be before uploadDateEnd")
	}
	filter.UploadDateStart = start
	filter.UploadDateEnd = end

	if v := q.Get("filename"); v != "" {
		if len(v) > maxFilenameLength {
			return filter, errors.New("filename too long")
		}
		filter.Filename = ptr.String(v)
	}
	if v := q.Get("filetype"); v != "" {
		if len(v) > maxContentTypeLength {
			return filter, errors.New("filetype too long")
		}
		filter.ContentType = ptr.String(v)
	}

	switch v := q.Get("sortDirection"); v {
	case "":
	case string(simpleasset.SortAsc), string(simpleasset.SortDesc):
		filter.SortDirection = simpleasset.SortDirection(v)
	default:
		return filter, errors.New("sortDirection must be ASC or DESC")
	}

	for _, raw := range q["status"] {
		for _, part := range strings.Split(raw, ",") {
			if strings.TrimSpace(part) == "" {
				continue
			}
			st, err := simpleasset.ParseAssetStatus(part)
			if err != nil {
				return filter, err
			}
			filter.Statuses = append(filter.Statuses, st)
		}
	}

	return filter, nil
}

// parseDate accepts a local date-time, read as UTC, or an RFC 3339 timestamp
func parseDate(name, v string) (*time.Time, error) {
	if v == "" {
		return nil, nil
	}
	if localDateTime.MatchString(v) {
		layout := "2006-01-02T15:04"
		if len(v) == len("2006-01-02T15:04:05") {
			layout = "2006-01-02T15:04:05"
		}
		t, err := time.ParseInLocation(layout, v, time.UTC)
		if err != nil {
			return nil, fmt.Errorf("%s must be ISO-8601", name)
		}
		return &t, nil
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return nil, fmt.Errorf("%s must be ISO-8601", name)
	}
	utc := t.UTC()
	return &utc, nil
}

func writeError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	render.Status(r, status)
	render.JSON(w, r, ErrorResponse{Error: msg})
}
