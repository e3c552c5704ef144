package identity

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestServiceJWT(t *testing.T) {
	s := New("jwt-secret", "provider-1", "", "", "")

	signed, err := s.ServiceJWT("user-1", "tenant-1", time.Minute)
	if err != nil {
		t.Fatalf("ServiceJWT failed: %v", err)
	}

	parsed, err := jwt.Parse(signed, func(token *jwt.Token) (any, error) {
		return []byte("jwt-secret"), nil
	})
	if err != nil || !parsed.Valid {
		t.Fatalf("token should verify with the shared secret: %v", err)
	}

	claims := parsed.Claims.(jwt.MapClaims)
	if claims["sub"] != "unspecified" {
		t.Fatalf("sub = %v", claims["sub"])
	}
	if claims["user_id"] != "user-1" || claims["tenant_id"] != "tenant-1" {
		t.Fatalf("claims = %v", claims)
	}
}

func TestServiceJWT_MissingSecret(t *testing.T) {
	s := New("", "provider-1", "", "", "")
	if _, err := s.ServiceJWT("u", "t", 0); !errors.Is(err, ErrJWTSecretMissing) {
		t.Fatalf("error = %v, want ErrJWTSecretMissing", err)
	}
}

func TestLookupUser(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-API-Key") != "api-key" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		if r.URL.Query().Get("emails") == "dana@acme.dev" {
			w.Write([]byte(`[{"ls_user_id":"user-9","tenant_id":"tenant-3"}]`))
			return
		}
		w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	s := New("secret", "provider", "api-key", srv.URL, srv.URL)

	user, err := s.LookupUser(context.Background(), "dana@acme.dev")
	if err != nil {
		t.Fatalf("LookupUser failed: %v", err)
	}
	if user == nil || user.ID != "user-9" || user.TenantID != "tenant-3" {
		t.Fatalf("user = %+v", user)
	}

	missing, err := s.LookupUser(context.Background(), "nobody@acme.dev")
	if err != nil {
		t.Fatalf("LookupUser failed: %v", err)
	}
	if missing != nil {
		t.Fatalf("missing user = %+v, want nil", missing)
	}
}

func TestLookupUser_NoAPIKey(t *testing.T) {
	s := New("secret", "provider", "", "http://unused", "")
	user, err := s.LookupUser(context.Background(), "a@b.c")
	if err != nil || user != nil {
		t.Fatalf("LookupUser without key = (%v, %v), want (nil, nil)", user, err)
	}
}

func TestGitHubTokenForUser(t *testing.T) {
	tests := []struct {
		name     string
		response string
		wantTok  string
		wantURL  string
		wantErr  bool
	}{
		{name: "token", response: `{"token":"gh-token"}`, wantTok: "gh-token"},
		{name: "auth url", response: `{"url":"https://auth.example/login"}`, wantURL: "https://auth.example/login"},
		{name: "neither", response: `{}`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.Header.Get("X-Service-Key") == "" {
					http.Error(w, "missing service key", http.StatusUnauthorized)
					return
				}
				if r.Header.Get("X-Tenant-Id") != "tenant-3" || r.Header.Get("X-User-Id") != "user-9" {
					http.Error(w, "bad identity headers", http.StatusBadRequest)
					return
				}
				w.Write([]byte(tt.response))
			}))
			defer srv.Close()

			s := New("secret", "provider-1", "key", srv.URL, srv.URL)
			result, err := s.GitHubTokenForUser(context.Background(), &User{ID: "user-9", TenantID: "tenant-3"})

			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("GitHubTokenForUser failed: %v", err)
			}
			if result.Token != tt.wantTok || result.AuthURL != tt.wantURL {
				t.Fatalf("result = %+v", result)
			}
		})
	}
}

func TestGitHubTokenForUser_NoProvider(t *testing.T) {
	s := New("secret", "", "key", "", "")
	if _, err := s.GitHubTokenForUser(context.Background(), &User{ID: "u", TenantID: "t"}); err == nil {
		t.Fatal("expected error without provider id")
	}
}
