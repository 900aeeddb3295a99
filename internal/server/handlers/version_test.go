package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/fulmenhq/gofulmen/appidentity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adrianaguero/chatgate/internal/appid"
)

func TestVersionHandlerIncludesIdentityAndService(t *testing.T) {
	SetVersionInfo("1.2.3", "abcd123", "2026-01-07T12:00:00Z")
	SetAppIdentity(&appidentity.Identity{BinaryName: "chatgate-staging"})
	SetServiceInfo(ServiceInfo{Provider: "gemini", Model: "gemini-2.0-flash", QuotaDriver: "redis"})
	t.Cleanup(func() {
		SetAppIdentity(nil)
		SetServiceInfo(ServiceInfo{})
	})

	rec := httptest.NewRecorder()
	VersionHandler(rec, httptest.NewRequest(http.MethodGet, "/version", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var resp VersionResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))

	assert.Equal(t, "chatgate-staging", resp.App.Name)
	assert.Equal(t, "1.2.3", resp.App.Version)
	assert.Equal(t, "abcd123", resp.App.Commit)
	assert.Equal(t, "1.2.3", AppVersion())
	assert.Equal(t, "gemini", resp.Service.Provider)
	assert.Equal(t, "redis", resp.Service.QuotaDriver)
	assert.NotEmpty(t, resp.Dependencies.Gofulmen)
	assert.NotEmpty(t, resp.Dependencies.Crucible)
}

func TestVersionHandlerFallsBackToBuiltInIdentity(t *testing.T) {
	SetAppIdentity(nil)

	rec := httptest.NewRecorder()
	VersionHandler(rec, httptest.NewRequest(http.MethodGet, "/version", nil))

	var resp VersionResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, appid.BinaryName, resp.App.Name)
}
