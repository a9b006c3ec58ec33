package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/bloodlink/internal/config"
	"github.com/example/bloodlink/internal/logger"
	"github.com/example/bloodlink/internal/services"
	"github.com/example/bloodlink/internal/store"
)

type testServer struct {
	app    *fiber.App
	donors *services.DonorService
}

func newTestServer(t *testing.T, staticDir string) *testServer {
	t.Helper()
	cfg := &config.Config{
		Env:            "test",
		StaticDir:      staticDir,
		CORSOrigins:    "*",
		DatabaseDriver: config.DriverMemory,
	}
	log := logger.Discard()
	mem := store.NewMemory()
	sms := services.NewTwilioGateway(services.TwilioConfig{CountryCode: "91"}, log)
	tokens := services.TokenConfig{Secret: "route-secret", TTL: time.Hour}
	donors := services.NewDonorService(mem.Donors(), mem.Requests(), sms, tokens, log)
	requests := services.NewRequestService(mem.Requests(), mem.Donors(), sms, services.NewTelegramService("", "", log), log)

	app := NewApp(Deps{
		Config:   cfg,
		Log:      log,
		Donors:   donors,
		Requests: requests,
		SMS:      sms,
		Ping:     func(context.Context) error { return nil },
	})
	return &testServer{app: app, donors: donors}
}

func (s *testServer) do(t *testing.T, method, path, token string, body any) (int, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	out := map[string]any{}
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(raw) > 0 && raw[0] == '{' {
		require.NoError(t, json.Unmarshal(raw, &out))
	}
	return resp.StatusCode, out
}

type registered struct {
	id    string
	token string
}

func (s *testServer) register(t *testing.T, name, phone, bloodType string, lng, lat float64) registered {
	t.Helper()
	status, body := s.do(t, http.MethodPost, "/api/donors/register", "", map[string]any{
		"name":      name,
		"email":     phone + "@example.com",
		"phone":     phone,
		"password":  "secret123",
		"bloodType": bloodType,
		"location": map[string]any{
			"type":        "Point",
			"coordinates": []float64{lng, lat},
			"address":     "Test Street",
		},
	})
	require.Equal(t, http.StatusCreated, status, body)
	data := body["data"].(map[string]any)
	return registered{id: data["_id"].(string), token: data["token"].(string)}
}

func (s *testServer) createRequest(t *testing.T, token, bloodType string) string {
	t.Helper()
	status, body := s.do(t, http.MethodPost, "/api/requests", token, map[string]any{
		"patientName":  "Ravi",
		"contactPhone": "9000000001",
		"bloodType":    bloodType,
		"units":        2,
		"hospital":     "City Hospital",
		"urgency":      "urgent",
	})
	require.Equal(t, http.StatusCreated, status, body)
	return body["data"].(map[string]any)["_id"].(string)
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, "")

	status, body := s.do(t, http.MethodGet, "/api/health", "", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "Server is running", body["message"])

	db := body["database"].(map[string]any)
	assert.Equal(t, "memory", db["driver"])
	assert.Equal(t, true, db["connected"])

	sms := body["sms"].(map[string]any)
	assert.Equal(t, false, sms["configured"])
}

func TestRegisterLoginAndProfile(t *testing.T) {
	s := newTestServer(t, "")
	me := s.register(t, "Asha", "9876543210", "O+", 77.59, 12.97)

	status, body := s.do(t, http.MethodPost, "/api/donors/login", "", map[string]any{
		"phone":    "9876543210",
		"password": "secret123",
	})
	require.Equal(t, http.StatusOK, status)
	data := body["data"].(map[string]any)
	assert.NotEmpty(t, data["token"])
	assert.NotContains(t, data, "password")
	assert.NotContains(t, data, "PasswordHash")

	status, body = s.do(t, http.MethodGet, "/api/donors/profile", me.token, nil)
	require.Equal(t, http.StatusOK, status)
	profile := body["data"].(map[string]any)
	assert.Equal(t, "Asha", profile["name"])
	assert.Equal(t, "O+", profile["bloodType"])
	assert.Equal(t, true, profile["isAvailable"])

	status, body = s.do(t, http.MethodPut, "/api/donors/profile", me.token, map[string]any{"isAvailable": false})
	require.Equal(t, http.StatusOK, status, body)
	assert.Equal(t, false, body["data"].(map[string]any)["isAvailable"])
	assert.NotEmpty(t, body["data"].(map[string]any)["token"])
}

func TestRegisterRejectsDuplicatePhone(t *testing.T) {
	s := newTestServer(t, "")
	s.register(t, "Asha", "9876543210", "O+", 77.59, 12.97)

	status, body := s.do(t, http.MethodPost, "/api/donors/register", "", map[string]any{
		"name":      "Other",
		"email":     "other@example.com",
		"phone":     "9876543210",
		"password":  "secret123",
		"bloodType": "A+",
		"location":  map[string]any{"coordinates": []float64{77.5, 12.9}, "address": "Elsewhere"},
	})
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "Donor already exists with this phone number", body["error"])
}

func TestRegisterValidationErrors(t *testing.T) {
	s := newTestServer(t, "")

	status, body := s.do(t, http.MethodPost, "/api/donors/register", "", map[string]any{
		"name":  "Asha",
		"phone": "123",
	})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, false, body["success"])
	assert.NotEmpty(t, body["error"])
	assert.Contains(t, body["fields"], "phone")
}

func TestLoginWrongPassword(t *testing.T) {
	s := newTestServer(t, "")
	s.register(t, "Asha", "9876543210", "O+", 77.59, 12.97)

	status, body := s.do(t, http.MethodPost, "/api/donors/login", "", map[string]any{
		"phone":    "9876543210",
		"password": "wrong-password",
	})
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "Invalid phone number or password", body["error"])
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	s := newTestServer(t, "")

	status, body := s.do(t, http.MethodGet, "/api/donors/profile", "", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "Not authorized, no token", body["error"])

	status, body = s.do(t, http.MethodGet, "/api/donors/profile", "garbage", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "Not authorized, token failed", body["error"])
}

func TestAdminRoutes(t *testing.T) {
	s := newTestServer(t, "")
	admin := s.register(t, "Admin", "9000000010", "AB+", 77.59, 12.97)
	donor := s.register(t, "Donor", "9000000011", "B-", 77.60, 12.98)

	status, body := s.do(t, http.MethodGet, "/api/donors", donor.token, nil)
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, "Not authorized as an admin", body["error"])

	_, err := s.donors.PromoteAdmin(context.Background(), "9000000010")
	require.NoError(t, err)

	status, body = s.do(t, http.MethodGet, "/api/donors", admin.token, nil)
	require.Equal(t, http.StatusOK, status)
	assert.EqualValues(t, 2, body["count"])

	status, body = s.do(t, http.MethodPut, "/api/donors/"+donor.id, admin.token, map[string]any{"bloodType": "B+"})
	require.Equal(t, http.StatusOK, status, body)
	assert.Equal(t, "B+", body["data"].(map[string]any)["bloodType"])

	status, body = s.do(t, http.MethodDelete, "/api/donors/"+donor.id, admin.token, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Donor removed", body["message"])

	status, _ = s.do(t, http.MethodGet, "/api/donors/"+donor.id, admin.token, nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestNearbyDonors(t *testing.T) {
	s := newTestServer(t, "")
	s.register(t, "Close", "9000000020", "O-", 77.5946, 12.9716)
	s.register(t, "Far", "9000000021", "O-", 72.8777, 19.0760)

	status, body := s.do(t, http.MethodGet, "/api/donors/nearby?lat=12.97&lng=77.59&radius=5", "", nil)
	require.Equal(t, http.StatusOK, status, body)
	assert.EqualValues(t, 1, body["count"])
	first := body["data"].([]any)[0].(map[string]any)
	assert.Equal(t, "Close", first["name"])

	status, body = s.do(t, http.MethodGet, "/api/donors/nearby?location=12.97,77.59&radius=2000", "", nil)
	require.Equal(t, http.StatusOK, status)
	assert.EqualValues(t, 2, body["count"])

	status, body = s.do(t, http.MethodGet, "/api/donors/nearby?lat=abc&lng=77.59", "", nil)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "Invalid latitude or longitude", body["error"])
}

func TestDonationHistory(t *testing.T) {
	s := newTestServer(t, "")
	me := s.register(t, "Asha", "9876543210", "O+", 77.59, 12.97)

	status, body := s.do(t, http.MethodPost, "/api/donors/donations", me.token, map[string]any{
		"date":     "2026-01-15",
		"location": "Red Cross Centre",
	})
	require.Equal(t, http.StatusCreated, status, body)

	status, body = s.do(t, http.MethodGet, "/api/donors/donations", me.token, nil)
	require.Equal(t, http.StatusOK, status)
	assert.EqualValues(t, 1, body["count"])
}

func TestRequestNotifyRespondFlow(t *testing.T) {
	s := newTestServer(t, "")
	requester := s.register(t, "Requester", "9000000030", "A+", 77.59, 12.97)
	donor := s.register(t, "Donor", "9000000031", "O-", 77.60, 12.98)
	other := s.register(t, "Other", "9000000032", "O-", 77.61, 12.99)

	reqID := s.createRequest(t, requester.token, "A+")

	status, body := s.do(t, http.MethodGet, "/api/requests/"+reqID, "", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "pending", body["data"].(map[string]any)["status"])

	status, body = s.do(t, http.MethodPost, "/api/requests/"+reqID+"/donors/"+donor.id+"/notify", other.token, nil)
	assert.Equal(t, http.StatusForbidden, status, body)

	status, body = s.do(t, http.MethodPost, "/api/requests/"+reqID+"/donors/"+donor.id+"/notify", requester.token, nil)
	require.Equal(t, http.StatusOK, status, body)
	data := body["data"].(map[string]any)
	assert.Equal(t, "notified", data["request"].(map[string]any)["status"])
	assert.Equal(t, true, data["sms"].(map[string]any)["success"])

	status, body = s.do(t, http.MethodPost, "/api/requests/"+reqID+"/respond", donor.token, map[string]any{"status": "maybe"})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "Invalid status. Must be either accepted or rejected", body["error"])

	status, body = s.do(t, http.MethodPost, "/api/requests/"+reqID+"/respond", donor.token, map[string]any{"status": "accepted"})
	require.Equal(t, http.StatusOK, status, body)
	assert.Equal(t, "accepted", body["data"].(map[string]any)["status"])

	status, body = s.do(t, http.MethodGet, "/api/donors/"+donor.id+"/requests", donor.token, nil)
	require.Equal(t, http.StatusOK, status)
	assert.EqualValues(t, 1, body["count"])

	status, _ = s.do(t, http.MethodGet, "/api/donors/"+donor.id+"/requests", other.token, nil)
	assert.Equal(t, http.StatusForbidden, status)

	status, body = s.do(t, http.MethodPut, "/api/requests/"+reqID, requester.token, map[string]any{"status": "fulfilled"})
	require.Equal(t, http.StatusOK, status, body)
	assert.Equal(t, "fulfilled", body["data"].(map[string]any)["status"])

	status, body = s.do(t, http.MethodPost, "/api/requests/"+reqID+"/donors/"+other.id+"/notify", requester.token, nil)
	assert.Equal(t, http.StatusBadRequest, status, body)
}

func TestRequestListingAndStatusLookup(t *testing.T) {
	s := newTestServer(t, "")
	requester := s.register(t, "Requester", "9000000040", "A+", 77.59, 12.97)
	s.createRequest(t, requester.token, "A+")
	s.createRequest(t, requester.token, "B+")

	status, body := s.do(t, http.MethodGet, "/api/requests?bloodType=A%2B", "", nil)
	require.Equal(t, http.StatusOK, status)
	assert.EqualValues(t, 1, body["count"])
	assert.EqualValues(t, 1, body["total"])

	status, body = s.do(t, http.MethodGet, "/api/requests/user", requester.token, nil)
	require.Equal(t, http.StatusOK, status)
	assert.EqualValues(t, 2, body["count"])

	status, body = s.do(t, http.MethodGet, "/api/requests/status?phone=9000000001", "", nil)
	require.Equal(t, http.StatusOK, status)
	assert.EqualValues(t, 2, body["count"])
}

func TestMatchDonors(t *testing.T) {
	s := newTestServer(t, "")
	requester := s.register(t, "Requester", "9000000050", "AB+", 77.59, 12.97)
	s.register(t, "Universal", "9000000051", "O-", 77.60, 12.98)
	s.register(t, "Mismatch", "9000000052", "B+", 77.60, 12.98)

	reqID := s.createRequest(t, requester.token, "A-")

	status, body := s.do(t, http.MethodPost, "/api/requests/"+reqID+"/match?radius=20", requester.token, nil)
	require.Equal(t, http.StatusOK, status, body)
	assert.EqualValues(t, 1, body["count"])
	assert.Equal(t, "Universal", body["data"].([]any)[0].(map[string]any)["name"])
}

func TestOTPDevelopmentFlow(t *testing.T) {
	s := newTestServer(t, "")

	status, body := s.do(t, http.MethodPost, "/api/otp/send", "", map[string]any{"phone": "9876543210"})
	require.Equal(t, http.StatusOK, status, body)
	assert.Equal(t, "pending", body["data"].(map[string]any)["status"])

	status, body = s.do(t, http.MethodPost, "/api/otp/verify", "", map[string]any{"phone": "9876543210", "otp": services.DevOTPCode})
	require.Equal(t, http.StatusOK, status, body)
	assert.Equal(t, "approved", body["data"].(map[string]any)["status"])

	status, _ = s.do(t, http.MethodPost, "/api/otp/send", "", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestUnknownAPIRouteReturnsJSON404(t *testing.T) {
	s := newTestServer(t, "")

	status, body := s.do(t, http.MethodGet, "/api/nope", "", nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "Route not found: GET /api/nope", body["error"])
}

func TestFrontendFallback(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.html"), []byte("<html>app</html>"), 0o644))
	s := newTestServer(t, dir)

	req := httptest.NewRequest(http.MethodGet, "/dashboard/requests", nil)
	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(raw), "app")

	status, _ := s.do(t, http.MethodGet, "/api/missing", "", nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestPasswordReset(t *testing.T) {
	s := newTestServer(t, "")
	s.register(t, "Asha", "9876543210", "O+", 77.59, 12.97)

	status, body := s.do(t, http.MethodPost, "/api/donors/password/forgot", "", map[string]any{"phone": "9876543210"})
	require.Equal(t, http.StatusOK, status, body)

	status, body = s.do(t, http.MethodPost, "/api/donors/password/reset", "", map[string]any{
		"phone":    "9876543210",
		"otp":      services.DevOTPCode,
		"password": "brandnew1",
	})
	require.Equal(t, http.StatusOK, status, body)
	assert.NotEmpty(t, body["data"].(map[string]any)["token"])

	status, _ = s.do(t, http.MethodPost, "/api/donors/login", "", map[string]any{
		"phone":    "9876543210",
		"password": "brandnew1",
	})
	assert.Equal(t, http.StatusOK, status)

	status, _ = s.do(t, http.MethodPost, "/api/donors/password/forgot", "", map[string]any{"phone": "9000000000"})
	assert.Equal(t, http.StatusNotFound, status)
}
