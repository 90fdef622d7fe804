package handlers

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"

	"shop-analyzer/audit"
	"shop-analyzer/database"
	"shop-analyzer/middleware"
	"shop-analyzer/service"
	"shop-analyzer/stubllm"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// fakePublisher records published messages and optionally fails.
type fakePublisher struct {
	messages []interface{}
	err      error
}

func (f *fakePublisher) Publish(message interface{}) error {
	f.messages = append(f.messages, message)
	return f.err
}

type testEnv struct {
	router *gin.Engine
	mock   sqlmock.Sqlmock
	db     *sql.DB
	dir    string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	return newTestEnvWithPublisher(t, nil)
}

func newTestEnvWithPublisher(t *testing.T, publisher SubmissionPublisher) *testEnv {
	t.Helper()

	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	t.Cleanup(func() { db.Close() })

	dir := t.TempDir()
	writer, err := audit.NewWriter(dir)
	if err != nil {
		t.Fatalf("audit.NewWriter() error = %v", err)
	}

	analyzer := service.NewAnalyzer(stubllm.NewClient(), 5*time.Second, 2000)
	h := NewHandlers(analyzer, database.NewWithDB(db), writer, publisher)

	router := gin.New()
	router.Use(middleware.CORS())
	router.POST("/analyze-shop", h.AnalyzeShop)
	router.POST("/submit-shop", h.SubmitShop)
	router.GET("/health", h.HealthCheck)
	router.GET("/shops/:id", h.GetShop)

	return &testEnv{router: router, mock: mock, db: db, dir: dir}
}

func testJPEG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 30), G: uint8(y * 30), B: 120, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, nil); err != nil {
		t.Fatalf("jpeg.Encode() error = %v", err)
	}
	return buf.Bytes()
}

// multipartBody builds a multipart form with an optional image part and
// extra string fields.
func multipartBody(t *testing.T, imageData []byte, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	if imageData != nil {
		part, err := w.CreateFormFile("image", "shop.jpg")
		if err != nil {
			t.Fatalf("CreateFormFile() error = %v", err)
		}
		part.Write(imageData)
	}
	for k, v := range fields {
		w.WriteField(k, v)
	}
	w.Close()
	return &buf, w.FormDataContentType()
}

func doRequest(t *testing.T, router *gin.Engine, method, path string, body *bytes.Buffer, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == nil {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, body)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeJSON(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("response is not JSON: %v\nbody: %s", err, rec.Body.String())
	}
	return out
}

func TestHealthCheck(t *testing.T) {
	env := newTestEnv(t)

	rec := doRequest(t, env.router, http.MethodGet, "/health", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /health status = %d, want 200", rec.Code)
	}
	body := decodeJSON(t, rec)
	if body["status"] != "healthy" {
		t.Errorf("status = %v, want healthy", body["status"])
	}
	if body["service"] != "shop-analyzer" {
		t.Errorf("service = %v, want shop-analyzer", body["service"])
	}
	if _, ok := body["timestamp"].(string); !ok {
		t.Errorf("timestamp missing from health response: %v", body)
	}
}

func TestAnalyzeShopSuccess(t *testing.T) {
	env := newTestEnv(t)

	body, contentType := multipartBody(t, testJPEG(t), nil)
	rec := doRequest(t, env.router, http.MethodPost, "/analyze-shop", body, contentType)
	if rec.Code != http.StatusOK {
		t.Fatalf("POST /analyze-shop status = %d, want 200\nbody: %s", rec.Code, rec.Body.String())
	}
	out := decodeJSON(t, rec)
	if out["is_valid"] != true {
		t.Errorf("is_valid = %v, want true", out["is_valid"])
	}
}

func TestAnalyzeShopMissingImage(t *testing.T) {
	env := newTestEnv(t)

	body, contentType := multipartBody(t, nil, map[string]string{"other": "field"})
	rec := doRequest(t, env.router, http.MethodPost, "/analyze-shop", body, contentType)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	out := decodeJSON(t, rec)
	if out["error"] != "No image provided" {
		t.Errorf("error = %v, want %q", out["error"], "No image provided")
	}
	if out["status"] != "error" {
		t.Errorf("status = %v, want error", out["status"])
	}
}

func TestAnalyzeShopEmptyImage(t *testing.T) {
	env := newTestEnv(t)

	body, contentType := multipartBody(t, []byte{}, nil)
	rec := doRequest(t, env.router, http.MethodPost, "/analyze-shop", body, contentType)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	out := decodeJSON(t, rec)
	if out["error"] != "Empty image data" {
		t.Errorf("error = %v, want %q", out["error"], "Empty image data")
	}
}

// An image the decoder cannot handle is still a handled analysis; the
// endpoint answers 200 with an invalid result document.
func TestAnalyzeShopUndecodableImage(t *testing.T) {
	env := newTestEnv(t)

	body, contentType := multipartBody(t, []byte("definitely not an image"), nil)
	rec := doRequest(t, env.router, http.MethodPost, "/analyze-shop", body, contentType)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	out := decodeJSON(t, rec)
	if out["is_valid"] != false {
		t.Errorf("is_valid = %v, want false", out["is_valid"])
	}
	if errStr, _ := out["error"].(string); errStr == "" {
		t.Errorf("error field missing from failure document: %v", out)
	}
}

func TestSubmitShop(t *testing.T) {
	env := newTestEnv(t)

	env.mock.ExpectExec(`INSERT\s+INTO shops`).
		WillReturnResult(sqlmock.NewResult(11, 1))

	shopData := `{"location": {"lat": 1.5, "lon": 2.5}, "inference": {"business_type": "bakery"}}`
	body, contentType := multipartBody(t, testJPEG(t), map[string]string{"shop_data": shopData})
	rec := doRequest(t, env.router, http.MethodPost, "/submit-shop", body, contentType)
	if rec.Code != http.StatusOK {
		t.Fatalf("POST /submit-shop status = %d, want 200\nbody: %s", rec.Code, rec.Body.String())
	}
	out := decodeJSON(t, rec)
	if out["status"] != "success" {
		t.Errorf("status = %v, want success", out["status"])
	}
	if id, ok := out["shop_id"].(float64); !ok || int64(id) != 11 {
		t.Errorf("shop_id = %v, want 11", out["shop_id"])
	}

	entries, err := os.ReadDir(env.dir)
	if err != nil {
		t.Fatalf("ReadDir() error = %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("audit dir has %d files, want 1", len(entries))
	}
	if filepath.Ext(entries[0].Name()) != ".jpg" {
		t.Errorf("audit file name = %s, want .jpg extension", entries[0].Name())
	}

	if err := env.mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestSubmitShopPublishesEvent(t *testing.T) {
	pub := &fakePublisher{}
	env := newTestEnvWithPublisher(t, pub)

	env.mock.ExpectExec(`INSERT\s+INTO shops`).
		WillReturnResult(sqlmock.NewResult(21, 1))

	image := testJPEG(t)
	body, contentType := multipartBody(t, image, map[string]string{"shop_data": `{"location": {}, "inference": {}}`})
	rec := doRequest(t, env.router, http.MethodPost, "/submit-shop", body, contentType)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200\nbody: %s", rec.Code, rec.Body.String())
	}

	if len(pub.messages) != 1 {
		t.Fatalf("published %d messages, want 1", len(pub.messages))
	}
	raw, err := json.Marshal(pub.messages[0])
	if err != nil {
		t.Fatalf("event does not marshal: %v", err)
	}
	var event map[string]any
	if err := json.Unmarshal(raw, &event); err != nil {
		t.Fatalf("event is not a JSON object: %v", err)
	}
	if id, ok := event["shop_id"].(float64); !ok || int64(id) != 21 {
		t.Errorf("event shop_id = %v, want 21", event["shop_id"])
	}
	if size, ok := event["image_size"].(float64); !ok || int(size) != len(image) {
		t.Errorf("event image_size = %v, want %d", event["image_size"], len(image))
	}
	if _, ok := event["audit_path"].(string); !ok {
		t.Errorf("event audit_path missing: %v", event)
	}
	if _, ok := event["created_at"].(string); !ok {
		t.Errorf("event created_at missing: %v", event)
	}
	if _, present := event["image_bytes"]; present {
		t.Errorf("event must not carry image bytes: %v", event)
	}
}

func TestSubmitShopPublisherFailureStillSucceeds(t *testing.T) {
	pub := &fakePublisher{err: errors.New("broker unreachable")}
	env := newTestEnvWithPublisher(t, pub)

	env.mock.ExpectExec(`INSERT\s+INTO shops`).
		WillReturnResult(sqlmock.NewResult(31, 1))

	body, contentType := multipartBody(t, testJPEG(t), map[string]string{"shop_data": `{"location": {}, "inference": {}}`})
	rec := doRequest(t, env.router, http.MethodPost, "/submit-shop", body, contentType)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 despite publish failure\nbody: %s", rec.Code, rec.Body.String())
	}
	out := decodeJSON(t, rec)
	if id, ok := out["shop_id"].(float64); !ok || int64(id) != 31 {
		t.Errorf("shop_id = %v, want 31", out["shop_id"])
	}
	if len(pub.messages) != 1 {
		t.Errorf("publish attempts = %d, want 1", len(pub.messages))
	}
}

func TestSubmitShopMissingShopData(t *testing.T) {
	env := newTestEnv(t)

	body, contentType := multipartBody(t, testJPEG(t), nil)
	rec := doRequest(t, env.router, http.MethodPost, "/submit-shop", body, contentType)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	out := decodeJSON(t, rec)
	if out["error"] != "No shop_data provided" {
		t.Errorf("error = %v, want %q", out["error"], "No shop_data provided")
	}
}

func TestSubmitShopMalformedShopData(t *testing.T) {
	env := newTestEnv(t)

	body, contentType := multipartBody(t, testJPEG(t), map[string]string{"shop_data": "{not json"})
	rec := doRequest(t, env.router, http.MethodPost, "/submit-shop", body, contentType)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	out := decodeJSON(t, rec)
	if out["error"] != "Invalid shop_data JSON" {
		t.Errorf("error = %v, want %q", out["error"], "Invalid shop_data JSON")
	}
}

func TestSubmitShopInsertFailure(t *testing.T) {
	env := newTestEnv(t)

	env.mock.ExpectExec(`INSERT\s+INTO shops`).
		WillReturnError(sql.ErrConnDone)

	shopData := `{"location": {}, "inference": {}}`
	body, contentType := multipartBody(t, testJPEG(t), map[string]string{"shop_data": shopData})
	rec := doRequest(t, env.router, http.MethodPost, "/submit-shop", body, contentType)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	out := decodeJSON(t, rec)
	if out["error"] != "Internal server error" {
		t.Errorf("error = %v, want %q", out["error"], "Internal server error")
	}
}

func TestGetShopNotFound(t *testing.T) {
	env := newTestEnv(t)

	env.mock.ExpectQuery(`SELECT id, location_data, inference_data, image, created_at`).
		WithArgs(int64(123)).
		WillReturnError(sql.ErrNoRows)

	rec := doRequest(t, env.router, http.MethodGet, "/shops/123", nil, "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
	out := decodeJSON(t, rec)
	if out["error"] != "Shop not found" {
		t.Errorf("error = %v, want %q", out["error"], "Shop not found")
	}
}

func TestGetShopInvalidID(t *testing.T) {
	env := newTestEnv(t)

	rec := doRequest(t, env.router, http.MethodGet, "/shops/abc", nil, "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestGetShopOmitsImageByDefault(t *testing.T) {
	env := newTestEnv(t)

	rows := sqlmock.NewRows([]string{"id", "location_data", "inference_data", "image", "created_at"}).
		AddRow(int64(5), []byte(`{"lat": 1}`), []byte(`{"type": "cafe"}`), []byte{0x01, 0x02}, time.Now())
	env.mock.ExpectQuery(`SELECT id, location_data, inference_data, image, created_at`).
		WithArgs(int64(5)).
		WillReturnRows(rows)

	rec := doRequest(t, env.router, http.MethodGet, "/shops/5", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200\nbody: %s", rec.Code, rec.Body.String())
	}
	out := decodeJSON(t, rec)
	if img, present := out["image"]; present && img != nil {
		t.Errorf("image should be omitted without include_image=true, got %v", img)
	}
}

func TestCORSPreflight(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodOptions, "/analyze-shop", nil)
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("OPTIONS status = %d, want 204", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("Access-Control-Allow-Origin = %q, want *", got)
	}
}
