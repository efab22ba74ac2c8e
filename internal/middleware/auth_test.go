package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aura-webinar/venue/internal/auth"
	"github.com/aura-webinar/venue/internal/models"
	"github.com/aura-webinar/venue/internal/worlds"
)

type stubGate struct {
	err     error
	gotRoom *uuid.UUID
}

func (g *stubGate) Authenticate(_ context.Context, _ *models.World, _ string, req auth.Requirement) (*models.Principal, error) {
	g.gotRoom = req.Room
	if g.err != nil {
		return nil, g.err
	}
	return &models.Principal{UserID: uuid.New()}, nil
}

func TestRequirePermissions(t *testing.T) {
	gin.SetMode(gin.TestMode)
	room := uuid.New()

	tests := []struct {
		name       string
		path       string
		err        error
		wantStatus int
	}{
		{"allowed", "/rooms/" + room.String(), nil, http.StatusOK},
		{"unauthorized", "/rooms/" + room.String(), auth.ErrUnauthorized, http.StatusUnauthorized},
		{"forbidden", "/rooms/" + room.String(), auth.ErrForbidden, http.StatusForbidden},
		{"store failure", "/rooms/" + room.String(), context.DeadlineExceeded, http.StatusInternalServerError},
		{"bad room id", "/rooms/nope", nil, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gate := &stubGate{err: tt.err}
			r := gin.New()
			r.Use(func(c *gin.Context) { c.Set(worlds.ContextWorld, &models.World{ID: uuid.New()}) })
			r.GET("/rooms/:room", RequirePermissions(gate, zap.NewNop(), "room", models.PermRoomPollRead), func(c *gin.Context) {
				if PrincipalFrom(c) == nil {
					t.Error("principal missing")
				}
				c.Status(http.StatusOK)
			})

			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, tt.path, nil))
			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			if tt.wantStatus == http.StatusForbidden && w.Body.Len() != 0 {
				t.Fatalf("expected empty body on denial, got %q", w.Body.String())
			}
			if tt.wantStatus == http.StatusOK && (gate.gotRoom == nil || *gate.gotRoom != room) {
				t.Fatalf("room requirement = %v, want %s", gate.gotRoom, room)
			}
		})
	}
}

func TestCORS(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(CORS("http://a.example, http://b.example"))
	r.POST("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodOptions, "/x", nil)
	req.Header.Set("Origin", "http://b.example")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusNoContent {
		t.Fatalf("preflight status = %d", w.Code)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "http://b.example" {
		t.Fatalf("allow origin = %q", got)
	}

	req = httptest.NewRequest(http.MethodPost, "/x", nil)
	req.Header.Set("Origin", "http://evil.example")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Header().Get("Access-Control-Allow-Origin") != "" {
		t.Fatal("unexpected allow origin for unknown origin")
	}
}
