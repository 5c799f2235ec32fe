package api_test

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/simple-asset/pkg/simpleasset/api"
	"github.com/tendant/simple-asset/pkg/simpleasset/presets"
)

func TestRouter_UploadThenList(t *testing.T) {
	svc := presets.NewTesting(t, presets.WithInlineUploads())
	router := api.NewRouter(api.RouterConfig{Service: svc})

	body, err := json.Marshal(api.UploadAssetRequest{
		Filename:    "diagram.png",
		EncodedFile: base64.StdEncoding.EncodeToString([]byte{0x89, 'P', 'N', 'G'}),
		ContentType: "image/png",
	})
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/assets", bytes.NewReader(body)))
	require.Equal(t, http.StatusAccepted, rec.Code)

	var uploaded api.UploadAssetResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &uploaded))

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/assets?status=COMPLETED&filetype=image/png", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var listed []api.AssetResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listed))
	require.Len(t, listed, 1)
	assert.Equal(t, uploaded.ID, listed[0].ID)
	assert.Equal(t, "diagram.png", listed[0].Filename)
	assert.NotEmpty(t, listed[0].URL)
}
