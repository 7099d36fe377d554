package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nanobanana/supermarket/internal/config"
	"github.com/nanobanana/supermarket/internal/gateway"
	"github.com/nanobanana/supermarket/internal/imagestore"
	"github.com/nanobanana/supermarket/internal/imaging"
	"github.com/nanobanana/supermarket/internal/models"
	"github.com/nanobanana/supermarket/internal/pipeline"
	"github.com/nanobanana/supermarket/internal/store"
)

type stubGateway struct {
	result *models.GeneratedContent
	err    error
	onEdit func()
}

func (s *stubGateway) Edit(ctx context.Context, req gateway.EditRequest) (*models.GeneratedContent, error) {
	if s.onEdit != nil {
		s.onEdit()
	}
	if s.err != nil {
		return nil, s.err
	}
	return s.result, nil
}

func testPNGDataURL(t *testing.T) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	img.Set(0, 0, color.White)
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return imaging.EncodeDataURL("image/png", buf.Bytes())
}

func newTestServerWithStore(t *testing.T, gw pipeline.Gateway) (*Server, store.Store) {
	t.Helper()

	logr := slog.New(slog.NewTextHandler(io.Discard, nil))

	accounts, err := store.NewFileStore(t.TempDir(), 10)
	require.NoError(t, err)
	t.Cleanup(func() { accounts.Close() })

	images, err := imagestore.New(t.TempDir(), logr, nil)
	require.NoError(t, err)

	cfg := config.Config{
		AdminUsername: "admin",
		AdminPassword: "admin-pass",
		AdminToken:    "admin-secret-token",
	}

	pipe := pipeline.NewService(gw, images, "", logr)
	return NewServer(cfg, logr, accounts, images, pipe), accounts
}

func newTestServer(t *testing.T, gw pipeline.Gateway) *Server {
	t.Helper()
	s, _ := newTestServerWithStore(t, gw)
	return s
}

func doJSON(t *testing.T, s *Server, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func registerUser(t *testing.T, s *Server, phone string) {
	t.Helper()
	rec := doJSON(t, s, http.MethodPost, "/api/register", map[string]string{
		"phone":    phone,
		"password": "secret1",
	}, nil)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, &stubGateway{})

	rec := doJSON(t, s, http.MethodGet, "/api/health", nil, nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decodeBody(t, rec)["status"])
}

func TestRegisterEndpoint(t *testing.T) {
	s := newTestServer(t, &stubGateway{})

	rec := doJSON(t, s, http.MethodPost, "/api/register", map[string]string{
		"phone":    "13812345678",
		"password": "secret1",
	}, nil)

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, true, body["success"])
	user := body["user"].(map[string]any)
	assert.Equal(t, "13812345678", user["phone"])
	assert.Equal(t, float64(10), user["remainingUses"])

	// invalid phone
	rec = doJSON(t, s, http.MethodPost, "/api/register", map[string]string{
		"phone":    "12345",
		"password": "secret1",
	}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// duplicate
	rec = doJSON(t, s, http.MethodPost, "/api/register", map[string]string{
		"phone":    "13812345678",
		"password": "secret1",
	}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLoginEndpoint(t *testing.T) {
	s := newTestServer(t, &stubGateway{})
	registerUser(t, s, "13812345678")

	rec := doJSON(t, s, http.MethodPost, "/api/login", map[string]string{
		"phone":    "13812345678",
		"password": "secret1",
	}, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, s, http.MethodPost, "/api/login", map[string]string{
		"phone":    "13812345678",
		"password": "wrong-pass",
	}, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doJSON(t, s, http.MethodPost, "/api/login", map[string]string{
		"phone":    "13999999999",
		"password": "secret1",
	}, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestTransformationsEndpoint(t *testing.T) {
	s := newTestServer(t, &stubGateway{})

	rec := doJSON(t, s, http.MethodGet, "/api/transformations", nil, nil)

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.NotEmpty(t, body["transformations"])
}

func TestGenerateEndpoint(t *testing.T) {
	gw := &stubGateway{result: &models.GeneratedContent{ImageURL: testPNGDataURL(t)}}
	s := newTestServer(t, gw)
	registerUser(t, s, "13812345678")

	rec := doJSON(t, s, http.MethodPost, "/api/generate", map[string]string{
		"phone":          "13812345678",
		"transformation": "Custom Edit",
		"customPrompt":   "Make it pop",
		"primaryImage":   testPNGDataURL(t),
	}, nil)

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, float64(9), body["remainingUses"])
	assert.Equal(t, float64(1), body["imagesGenerated"])
	assert.Contains(t, body["filename"], "13812345678-single-Custom-Edit-")

	// the saved image is now in the history
	rec = doJSON(t, s, http.MethodPost, "/api/user/images", map[string]string{"phone": "13812345678"}, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	images := decodeBody(t, rec)["images"].([]any)
	assert.Len(t, images, 1)
}

func TestGenerateEndpoint_ValidationAndAuth(t *testing.T) {
	gw := &stubGateway{result: &models.GeneratedContent{ImageURL: testPNGDataURL(t)}}
	s := newTestServer(t, gw)
	registerUser(t, s, "13812345678")

	// unknown phone
	rec := doJSON(t, s, http.MethodPost, "/api/generate", map[string]string{
		"phone":          "13999999999",
		"transformation": "Custom Edit",
		"customPrompt":   "x",
		"primaryImage":   testPNGDataURL(t),
	}, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// unknown transformation
	rec = doJSON(t, s, http.MethodPost, "/api/generate", map[string]string{
		"phone":          "13812345678",
		"transformation": "No Such Transformation",
		"primaryImage":   testPNGDataURL(t),
	}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// missing primary image
	rec = doJSON(t, s, http.MethodPost, "/api/generate", map[string]string{
		"phone":          "13812345678",
		"transformation": "Custom Edit",
		"customPrompt":   "x",
	}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGenerateEndpoint_GatewayFailureIsNotCharged(t *testing.T) {
	gw := &stubGateway{err: errors.New("rate limit exceeded")}
	s := newTestServer(t, gw)
	registerUser(t, s, "13812345678")

	rec := doJSON(t, s, http.MethodPost, "/api/generate", map[string]string{
		"phone":          "13812345678",
		"transformation": "Custom Edit",
		"customPrompt":   "x",
		"primaryImage":   testPNGDataURL(t),
	}, nil)
	assert.Equal(t, http.StatusBadGateway, rec.Code)

	// the distilled upstream message is the failure reason shown to the user
	assert.Equal(t, "rate limit exceeded", decodeBody(t, rec)["error"])

	// no credit was spent on the failure
	rec = doJSON(t, s, http.MethodPost, "/api/login", map[string]string{
		"phone":    "13812345678",
		"password": "secret1",
	}, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	user := decodeBody(t, rec)["user"].(map[string]any)
	assert.Equal(t, float64(10), user["remainingUses"])
}

func TestGenerateEndpoint_TextOnlyReplyIsFree(t *testing.T) {
	gw := &stubGateway{result: &models.GeneratedContent{Text: "I cannot edit that image."}}
	s := newTestServer(t, gw)
	registerUser(t, s, "13812345678")

	rec := doJSON(t, s, http.MethodPost, "/api/generate", map[string]string{
		"phone":          "13812345678",
		"transformation": "Custom Edit",
		"customPrompt":   "x",
		"primaryImage":   testPNGDataURL(t),
	}, nil)

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, float64(10), body["remainingUses"])
	result := body["result"].(map[string]any)
	assert.Equal(t, "I cannot edit that image.", result["text"])
}

func TestGenerateEndpoint_TextOnlyCountersAreFresh(t *testing.T) {
	gw := &stubGateway{result: &models.GeneratedContent{Text: "no image"}}
	s, accounts := newTestServerWithStore(t, gw)
	registerUser(t, s, "13812345678")

	// another request charges the account while this generation is in flight
	gw.onEdit = func() {
		_, err := accounts.ChargeGeneration(context.Background(), "13812345678")
		require.NoError(t, err)
	}

	rec := doJSON(t, s, http.MethodPost, "/api/generate", map[string]string{
		"phone":          "13812345678",
		"transformation": "Custom Edit",
		"customPrompt":   "x",
		"primaryImage":   testPNGDataURL(t),
	}, nil)

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, float64(9), body["remainingUses"])
	assert.Equal(t, float64(1), body["imagesGenerated"])
}

func TestSaveImageEndpoint(t *testing.T) {
	s := newTestServer(t, &stubGateway{})
	registerUser(t, s, "13812345678")

	rec := doJSON(t, s, http.MethodPost, "/api/save-image", map[string]string{
		"phone":               "13812345678",
		"imageUrl":            testPNGDataURL(t),
		"transformationTitle": "Sticker Pack",
		"step":                "single",
	}, nil)

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, float64(9), body["remainingUses"])
	filename := body["filename"].(string)
	assert.Contains(t, filename, "13812345678-single-Sticker-Pack-")

	// the stored file is served back with immutable caching
	rec = doJSON(t, s, http.MethodGet, "/api/images/"+filename, nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "public, max-age=31536000, immutable", rec.Header().Get("Cache-Control"))

	rec = doJSON(t, s, http.MethodGet, "/api/download/"+filename, nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "attachment")
}

func TestSaveImageEndpoint_Exhausted(t *testing.T) {
	s := newTestServer(t, &stubGateway{})
	registerUser(t, s, "13812345678")

	for i := 0; i < 10; i++ {
		rec := doJSON(t, s, http.MethodPost, "/api/save-image", map[string]string{
			"phone":    "13812345678",
			"imageUrl": testPNGDataURL(t),
		}, nil)
		require.Equal(t, http.StatusOK, rec.Code)
	}

	rec := doJSON(t, s, http.MethodPost, "/api/save-image", map[string]string{
		"phone":    "13812345678",
		"imageUrl": testPNGDataURL(t),
	}, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestImageEndpoint_NotFound(t *testing.T) {
	s := newTestServer(t, &stubGateway{})

	rec := doJSON(t, s, http.MethodGet, "/api/images/13812345678-single-Missing-1735689600123.png", nil, nil)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAdminLogin(t *testing.T) {
	s := newTestServer(t, &stubGateway{})

	rec := doJSON(t, s, http.MethodPost, "/api/admin/login", map[string]string{
		"username": "admin",
		"password": "admin-pass",
	}, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "admin-secret-token", decodeBody(t, rec)["token"])

	rec = doJSON(t, s, http.MethodPost, "/api/admin/login", map[string]string{
		"username": "admin",
		"password": "wrong",
	}, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAdminUsers_TokenRequired(t *testing.T) {
	s := newTestServer(t, &stubGateway{})
	registerUser(t, s, "13812345678")

	rec := doJSON(t, s, http.MethodGet, "/api/admin/users", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doJSON(t, s, http.MethodGet, "/api/admin/users", nil, map[string]string{"Admin-Token": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doJSON(t, s, http.MethodGet, "/api/admin/users", nil, map[string]string{"Admin-Token": "admin-secret-token"})
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Len(t, body["users"], 1)
	stats := body["stats"].(map[string]any)
	assert.Equal(t, float64(1), stats["totalUsers"])
}

func TestAdminResetUses(t *testing.T) {
	s := newTestServer(t, &stubGateway{})
	registerUser(t, s, "13812345678")

	headers := map[string]string{"Admin-Token": "admin-secret-token"}

	rec := doJSON(t, s, http.MethodPost, "/api/admin/reset-uses", map[string]any{
		"phone": "13812345678",
		"uses":  50,
	}, headers)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, s, http.MethodPost, "/api/login", map[string]string{
		"phone":    "13812345678",
		"password": "secret1",
	}, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	user := decodeBody(t, rec)["user"].(map[string]any)
	assert.Equal(t, float64(50), user["remainingUses"])

	// unknown account
	rec = doJSON(t, s, http.MethodPost, "/api/admin/reset-uses", map[string]any{
		"phone": "13999999999",
		"uses":  5,
	}, headers)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// negative values rejected
	rec = doJSON(t, s, http.MethodPost, "/api/admin/reset-uses", map[string]any{
		"phone": "13812345678",
		"uses":  -1,
	}, headers)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
