package app

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/NemoPS/youtube-comments-analyzer/auth"

	"github.com/gin-gonic/gin"
)

// withTestClaims injects verified claims the way the auth middleware would.
func withTestClaims(userID string) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := &auth.Claims{Subject: userID}
		c.Request = c.Request.WithContext(auth.WithClaims(c.Request.Context(), claims))
		c.Next()
	}
}

func newSearchRouter(authed bool) *gin.Engine {
	router := gin.New()
	group := router.Group("/api")
	if authed {
		group.Use(withTestClaims("user-1"))
	}
	group.POST("/searches", AnalyzeVideo)
	group.GET("/searches", ListSearches)
	group.GET("/searches/:searchid", GetSearch)
	return router
}

func postAnalyze(router *gin.Engine, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			panic(err)
		}
	}
	req := httptest.NewRequest(http.MethodPost, "/api/searches", &buf)
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	return resp
}

func TestAnalyzeVideoUnauthenticated(t *testing.T) {
	router := newSearchRouter(false)

	resp := postAnalyze(router, map[string]string{"videoUrl": "https://youtu.be/dQw4w9WgXcQ"})
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without claims, got %d", resp.Code)
	}
}

func TestAnalyzeVideoMissingURL(t *testing.T) {
	router := newSearchRouter(true)

	for name, body := range map[string]any{
		"empty body": nil,
		"empty url":  map[string]string{"videoUrl": ""},
		"wrong key":  map[string]string{"url": "https://youtu.be/dQw4w9WgXcQ"},
	} {
		t.Run(name, func(t *testing.T) {
			resp := postAnalyze(router, body)
			if resp.Code != http.StatusBadRequest {
				t.Fatalf("expected 400 for %s, got %d", name, resp.Code)
			}
		})
	}
}

func TestAnalyzeVideoInvalidURL(t *testing.T) {
	router := newSearchRouter(true)

	resp := postAnalyze(router, map[string]string{"videoUrl": "https://vimeo.com/123456"})
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for non-youtube url, got %d", resp.Code)
	}
}

func TestGetSearchNotFound(t *testing.T) {
	router := newSearchRouter(true)

	req := httptest.NewRequest(http.MethodGet, "/api/searches/9999", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown search, got %d", resp.Code)
	}
}

func TestListSearchesEmptyHistory(t *testing.T) {
	router := newSearchRouter(true)

	req := httptest.NewRequest(http.MethodGet, "/api/searches?page=2", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}

	var body struct {
		PreviousSearches []any `json:"previousSearches"`
		TotalPages       int   `json:"totalPages"`
		CurrentPage      int   `json:"currentPage"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(body.PreviousSearches) != 0 || body.CurrentPage != 2 {
		t.Fatalf("unexpected page payload: %+v", body)
	}
}

func TestListSearchesIgnoresBadPageParam(t *testing.T) {
	router := newSearchRouter(true)

	req := httptest.NewRequest(http.MethodGet, "/api/searches?page=banana", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}

	var body struct {
		CurrentPage int `json:"currentPage"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body.CurrentPage != 1 {
		t.Fatalf("bad page param should fall back to 1, got %d", body.CurrentPage)
	}
}
