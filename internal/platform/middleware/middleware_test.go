package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

func newTestContext(method, path string) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	req := httptest.NewRequest(method, path, nil)
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func okHandler(c echo.Context) error {
	return c.String(http.StatusOK, "ok")
}

func TestRequestID_Generates(t *testing.T) {
	c, rec := newTestContext(http.MethodGet, "/health")

	if err := RequestID()(okHandler)(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	rid, _ := c.Get("request_id").(string)
	if rid == "" {
		t.Error("expected request_id set in context")
	}
	if rec.Header().Get(echo.HeaderXRequestID) != rid {
		t.Error("expected response header to carry the request id")
	}
}

func TestRequestID_KeepsCallerID(t *testing.T) {
	c, _ := newTestContext(http.MethodGet, "/health")
	c.Request().Header.Set(echo.HeaderXRequestID, "caller-id")

	if err := RequestID()(okHandler)(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rid, _ := c.Get("request_id").(string); rid != "caller-id" {
		t.Errorf("expected caller id kept, got %q", rid)
	}
}

func TestAPIKeyAuth(t *testing.T) {
	tests := []struct {
		name     string
		expected string
		supplied string
		wantErr  bool
	}{
		{"no key configured allows all", "", "", false},
		{"matching key", "secret", "secret", false},
		{"wrong key", "secret", "nope", true},
		{"missing key", "secret", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := newTestContext(http.MethodPost, "/api/v1/notes/generate")
			if tt.supplied != "" {
				c.Request().Header.Set(apiKeyHeader, tt.supplied)
			}

			err := APIKeyAuth(tt.expected)(okHandler)(c)
			if tt.wantErr && err == nil {
				t.Error("expected auth error")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestRecovery(t *testing.T) {
	c, _ := newTestContext(http.MethodGet, "/panic")

	panicking := func(echo.Context) error { panic("boom") }
	err := Recovery(zerolog.Nop())(panicking)(c)

	httpErr, ok := err.(*echo.HTTPError)
	if !ok {
		t.Fatalf("expected HTTPError, got %v", err)
	}
	if httpErr.Code != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", httpErr.Code)
	}
}

func TestLogger_PassesThrough(t *testing.T) {
	c, rec := newTestContext(http.MethodGet, "/health")

	if err := Logger(zerolog.Nop())(okHandler)(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}
