package upload

import (
	"bytes"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/aura-webinar/venue/config"
	"github.com/aura-webinar/venue/internal/middleware"
	"github.com/aura-webinar/venue/internal/worlds"
)

func newUploadRouter(f *fixture) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewHandler(f.svc, nil)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set(worlds.ContextWorld, f.world)
		c.Set(middleware.ContextPrincipal, f.principal)
	})
	r.POST("/api/upload", h.Upload)
	r.POST("/api/schedule_import", h.ScheduleImport)
	return r
}

func multipartBody(t *testing.T, filename string, data []byte, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatal(err)
		}
	}
	if filename != "" {
		fw, err := mw.CreateFormFile("file", filename)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := fw.Write(data); err != nil {
			t.Fatal(err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}
	return &buf, mw.FormDataContentType()
}

func post(t *testing.T, r http.Handler, path, filename string, data []byte, fields map[string]string) (int, map[string]string) {
	t.Helper()
	body, ct := multipartBody(t, filename, data, fields)
	req := httptest.NewRequest(http.MethodPost, path, body)
	req.Header.Set("Content-Type", ct)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	out := map[string]string{}
	if w.Body.Len() > 0 {
		var raw map[string]any
		if err := json.Unmarshal(w.Body.Bytes(), &raw); err != nil {
			t.Fatalf("decode: %v (%s)", err, w.Body.String())
		}
		for k, v := range raw {
			if s, ok := v.(string); ok {
				out[k] = s
			}
		}
	}
	return w.Code, out
}

func TestUploadHandler(t *testing.T) {
	f := newFixture(t, nil)
	r := newUploadRouter(f)

	tests := []struct {
		name     string
		filename string
		data     []byte
		fields   map[string]string
		status   int
		errCode  string
	}{
		{"missing file", "", nil, nil, http.StatusBadRequest, "file.missing"},
		{"wrong type", "a.txt", []byte("hi"), nil, http.StatusBadRequest, "file.type"},
		{"broken picture", "a.png", []byte("nope"), nil, http.StatusBadRequest, "file.picture.invalid"},
		{"picture", "a.png", noisePNG(t, 20, 10), map[string]string{"width": "10", "height": "10"}, http.StatusCreated, ""},
		{"document", "talk.pdf", []byte("%PDF-1.4"), nil, http.StatusCreated, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := post(t, r, "/api/upload", tt.filename, tt.data, tt.fields)
			if status != tt.status {
				t.Fatalf("status = %d, want %d (%v)", status, tt.status, body)
			}
			if tt.errCode != "" && body["error"] != tt.errCode {
				t.Fatalf("error = %q, want %q", body["error"], tt.errCode)
			}
			if tt.status == http.StatusCreated && body["url"] == "" {
				t.Fatalf("missing url in %v", body)
			}
		})
	}
}

func TestUploadHandlerServerError(t *testing.T) {
	f := newFixture(t, nil)
	f.blobs.putErr = errors.New("s3 unavailable")
	r := newUploadRouter(f)

	status, body := post(t, r, "/api/upload", "talk.pdf", []byte("%PDF-1.4"), nil)
	if status != http.StatusInternalServerError {
		t.Fatalf("status = %d", status)
	}
	if body["error"] != "server error" {
		t.Fatalf("body = %v", body)
	}
}

func TestScheduleImportHandler(t *testing.T) {
	f := newFixture(t, nil)
	r := newUploadRouter(f)

	status, body := post(t, r, "/api/schedule_import", "s.xlsx", []byte("x"), nil)
	if status != http.StatusCreated || body["url"] == "" {
		t.Fatalf("import: %d %v", status, body)
	}

	f.converter.err = errors.New("Sessions row 3: missing start")
	status, body = post(t, r, "/api/schedule_import", "s.xlsx", []byte("x"), nil)
	if status != http.StatusBadRequest || body["error"] != "Sessions row 3: missing start" {
		t.Fatalf("converter failure: %d %v", status, body)
	}
}

func TestUploadHandlerSizeLimits(t *testing.T) {
	f := newFixture(t, func(cfg *config.UploadConfig) {
		cfg.MaxSize = 1024
		cfg.ScheduleMaxSize = 1024
	})
	r := newUploadRouter(f)

	tests := []struct {
		name     string
		path     string
		filename string
		size     int
	}{
		{"document over max size", "/api/upload", "talk.pdf", 4 << 10},
		{"picture over body limit", "/api/upload", "a.png", 2 << 20},
		{"schedule over max size", "/api/schedule_import", "s.xlsx", 4 << 10},
		{"schedule over body limit", "/api/schedule_import", "s.xlsx", 2 << 20},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := post(t, r, tt.path, tt.filename, bytes.Repeat([]byte("x"), tt.size), nil)
			if status != http.StatusBadRequest || body["error"] != "file.size" {
				t.Fatalf("got %d %v, want 400 file.size", status, body)
			}
		})
	}
	if len(f.files.files) != 0 {
		t.Fatalf("stored %d files", len(f.files.files))
	}
}

func TestCheckDeclaredSize(t *testing.T) {
	f := newFixture(t, func(cfg *config.UploadConfig) {
		cfg.MaxSize = 100
		cfg.ScheduleMaxSize = 50
	})

	tests := []struct {
		name     string
		filename string
		size     int64
		schedule bool
		wantErr  bool
	}{
		{"document within max size", "talk.pdf", 100, false, false},
		{"document over max size", "talk.pdf", 101, false, true},
		{"picture over max size", "a.png", 1000, false, false},
		{"schedule within max size", "s.xlsx", 50, true, false},
		{"schedule over max size", "s.xlsx", 51, true, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := f.svc.checkDeclaredSize(tt.filename, tt.size, tt.schedule)
			if tt.wantErr && !errors.Is(err, ErrSizeExceeded) {
				t.Fatalf("err = %v, want ErrSizeExceeded", err)
			}
			if !tt.wantErr && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}
