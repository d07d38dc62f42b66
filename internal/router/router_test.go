package router_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/optik-pos/api/internal/auth"
	"github.com/optik-pos/api/internal/config"
	"github.com/optik-pos/api/internal/router"
	"github.com/optik-pos/api/internal/ws"
)

func testConfig() *config.Config {
	return &config.Config{
		JWTSecret:      "router-secret",
		AllowedOrigins: []string{"http://localhost:3000"},
		ShopTimezone:   "Asia/Kuwait",
	}
}

func TestHealth(t *testing.T) {
	r := router.New(testConfig(), router.Services{Hub: ws.NewHub()})

	req := httptest.NewRequest("GET", "/health", nil)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusOK)
	}
	if rr.Body.String() != `{"status":"ok"}` {
		t.Errorf("body: %s", rr.Body.String())
	}
}

func TestShopRoutesRequireToken(t *testing.T) {
	r := router.New(testConfig(), router.Services{Hub: ws.NewHub()})

	req := httptest.NewRequest("GET", "/shops/"+uuid.New().String()+"/orders", nil)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusUnauthorized)
	}
}

func TestReportsRequireManager(t *testing.T) {
	cfg := testConfig()
	r := router.New(cfg, router.Services{Hub: ws.NewHub()})

	shopID := uuid.New()
	token, err := auth.GenerateToken(cfg.JWTSecret, "cashier-1", shopID, "CASHIER", 0)
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}

	req := httptest.NewRequest("GET", "/shops/"+shopID.String()+"/reports/sales", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	if rr.Code != http.StatusForbidden {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusForbidden)
	}
}

func TestCORSPreflight(t *testing.T) {
	r := router.New(testConfig(), router.Services{Hub: ws.NewHub()})

	req := httptest.NewRequest("OPTIONS", "/shops/"+uuid.New().String()+"/orders", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", "POST")
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	if got := rr.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
		t.Errorf("Access-Control-Allow-Origin: got %q", got)
	}
}
