package bridge

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/strefethen/victrola-bridge/internal/registry"
	"github.com/strefethen/victrola-bridge/internal/state"
	"github.com/strefethen/victrola-bridge/internal/victrola"
)

func newTestRouter(device *fakeDevice, reg *registry.Registry) http.Handler {
	service := NewService(device, state.New(), reg, nil)
	router := chi.NewRouter()
	RegisterRoutes(router, service)
	return router
}

func doJSON(t *testing.T, handler http.Handler, method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	var decoded map[string]any
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &decoded))
	}
	return rec, decoded
}

func TestGetStateRoute(t *testing.T) {
	router := newTestRouter(&fakeDevice{}, registry.New(testCoreID))

	rec, body := doJSON(t, router, http.MethodGet, "/v1/state", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "device_state", body["object"])
	assert.Equal(t, false, body["connected"])
	// Not yet observed: null, never a fabricated in-range number.
	assert.Nil(t, body["volume"])
	assert.Nil(t, body["knob_brightness"])
}

func TestQuickplayRouteUnknownSpeaker(t *testing.T) {
	router := newTestRouter(&fakeDevice{}, registry.New(testCoreID))

	rec, body := doJSON(t, router, http.MethodPost, "/v1/speakers/sonos/quickplay",
		`{"speaker":"Garage"}`)
	require.Equal(t, http.StatusNotFound, rec.Code)

	errBody, ok := body["error"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "SPEAKER_NOT_FOUND", errBody["code"])
}

func TestQuickplayRouteSuccess(t *testing.T) {
	reg := registry.New(testCoreID)
	reg.UpdateFromQuickplay([]victrola.QuickplaySpeaker{
		{Name: "Living Room", ID: "RINCON_AAA"},
	})
	device := &fakeDevice{}
	router := newTestRouter(device, reg)

	rec, body := doJSON(t, router, http.MethodPost, "/v1/speakers/sonos/quickplay",
		`{"speaker":"living room"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, body["ok"])
	require.Len(t, device.calls, 1)
	assert.Equal(t, "quickplay", device.calls[0].name)
}

func TestSetSourceRouteUnknownSource(t *testing.T) {
	router := newTestRouter(&fakeDevice{}, registry.New(testCoreID))

	rec, body := doJSON(t, router, http.MethodPost, "/v1/source", `{"source":"cassette"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	errBody, ok := body["error"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "SOURCE_UNKNOWN", errBody["code"])
}

func TestSetVolumeRouteValidation(t *testing.T) {
	router := newTestRouter(&fakeDevice{}, registry.New(testCoreID))

	rec, _ := doJSON(t, router, http.MethodPost, "/v1/player/volume", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, body := doJSON(t, router, http.MethodPost, "/v1/player/volume", `{"volume":130}`)
	require.Equal(t, http.StatusOK, rec.Code)
	// Clamped before it reaches the response.
	assert.Equal(t, float64(100), body["volume"])
}

func TestListSpeakersRoute(t *testing.T) {
	reg := registry.New(testCoreID)
	reg.LoadSeeds(registry.SeedTable{
		UPnP: []registry.Seed{{DisplayName: "TV", NetworkID: "uuid:123"}},
	})
	router := newTestRouter(&fakeDevice{}, reg)

	rec, body := doJSON(t, router, http.MethodGet, "/v1/speakers", "")
	require.Equal(t, http.StatusOK, rec.Code)
	backends, ok := body["backends"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, backends, "UPnP")
}
