package auth

import (
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
)

func tokenServer(t *testing.T, hits *atomic.Int32) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"token123","token_type":"bearer","expires_in":3600}`))
	}))
	t.Cleanup(server.Close)
	return server
}

func TestGetTokenAndSetAuthHeader(t *testing.T) {
	var hits atomic.Int32
	server := tokenServer(t, &hits)

	client := NewClientCred(Conf{ClientID: "id", ClientSecret: "secret", TokenURL: server.URL})
	token, err := client.GetToken()
	if err != nil {
		t.Fatalf("GetToken returned error: %v", err)
	}
	if token != "token123" {
		t.Fatalf("unexpected token %s", token)
	}

	req, _ := http.NewRequest("GET", "http://example.com", nil)
	if err := client.SetAuthHeader(req); err != nil {
		t.Fatalf("SetAuthHeader returned error: %v", err)
	}
	if auth := req.Header.Get("Authorization"); auth != "Bearer token123" {
		t.Fatalf("unexpected Authorization header %q", auth)
	}
	if hits.Load() != 1 {
		t.Fatalf("expected cached token, got %d requests", hits.Load())
	}

	if _, err := client.ForceRefresh(); err != nil {
		t.Fatalf("ForceRefresh returned error: %v", err)
	}
	if hits.Load() != 2 {
		t.Fatalf("expected refresh to hit the token endpoint, got %d requests", hits.Load())
	}
}

func TestNewSelectsAuthenticator(t *testing.T) {
	if _, ok := New(Conf{}, "tok").(StaticToken); !ok {
		t.Fatalf("expected static token without client credentials")
	}
	if _, ok := New(Conf{ClientID: "id", TokenURL: "http://x"}, "").(*ClientCred); !ok {
		t.Fatalf("expected client credentials")
	}

	req, _ := http.NewRequest("GET", "http://example.com", nil)
	_ = StaticToken("").SetAuthHeader(req)
	if req.Header.Get("Authorization") != "" {
		t.Fatalf("empty token must not set a header")
	}
	_ = StaticToken("abc").SetAuthHeader(req)
	if req.Header.Get("Authorization") != "Bearer abc" {
		t.Fatalf("static token not applied")
	}
}
