package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/go-cmp/cmp"
)

func TestParseTokens(t *testing.T) {
	store, err := ParseTokens(" admin:secret-1 , editor:secret-2:shop-1|shop-2,, ")
	if err != nil {
		t.Fatalf("ParseTokens: %v", err)
	}
	if store.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", store.Len())
	}

	p, ok := store.Lookup("secret-1")
	if !ok || p.UserID != "admin" || len(p.ShopIDs) != 0 {
		t.Errorf("Lookup(secret-1) = %+v, %v", p, ok)
	}

	p, ok = store.Lookup("secret-2")
	if !ok {
		t.Fatal("Lookup(secret-2) not found")
	}
	if diff := cmp.Diff(Principal{UserID: "editor", ShopIDs: []string{"shop-1", "shop-2"}}, p); diff != "" {
		t.Errorf("principal mismatch (-want +got):\n%s", diff)
	}

	if _, ok := store.Lookup("secret"); ok {
		t.Error("Lookup must not match a token prefix")
	}
}

func TestParseTokens_Empty(t *testing.T) {
	store, err := ParseTokens("")
	if err != nil {
		t.Fatalf("ParseTokens: %v", err)
	}
	if store.Len() != 0 {
		t.Errorf("Len() = %d, want 0", store.Len())
	}
	if _, ok := store.Lookup(""); ok {
		t.Error("empty token must not authenticate")
	}
}

func TestParseTokens_Invalid(t *testing.T) {
	for _, spec := range []string{"no-colon", ":token", "user:"} {
		if _, err := ParseTokens(spec); err == nil {
			t.Errorf("ParseTokens(%q) error = nil, want error", spec)
		}
	}
}

func TestPrincipal_CanManage(t *testing.T) {
	all := Principal{UserID: "admin"}
	scoped := Principal{UserID: "editor", ShopIDs: []string{"shop-1"}}

	if !all.CanManage("any") {
		t.Error("unscoped principal should manage every shop")
	}
	if !scoped.CanManage("shop-1") || scoped.CanManage("shop-2") {
		t.Error("scoped principal should manage only listed shops")
	}
}

func newTestTokenStore(t *testing.T) *TokenStore {
	t.Helper()
	store, err := ParseTokens("admin:admin-token,editor:editor-token:shop-1")
	if err != nil {
		t.Fatalf("ParseTokens: %v", err)
	}
	return store
}

func TestTokenAuthMiddleware(t *testing.T) {
	tests := []struct {
		name       string
		header     string
		wantStatus int
		wantUser   string
	}{
		{"有効なトークン", "Bearer admin-token", http.StatusOK, "admin"},
		{"スキームは大文字小文字を区別しない", "bearer editor-token", http.StatusOK, "editor"},
		{"ヘッダーなし", "", http.StatusUnauthorized, ""},
		{"Bearer以外", "Basic YWRtaW46eA==", http.StatusUnauthorized, ""},
		{"トークンが空", "Bearer ", http.StatusUnauthorized, ""},
		{"未知のトークン", "Bearer nope", http.StatusUnauthorized, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotUser string
			handler := NewTokenAuthMiddleware(newTestTokenStore(t))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				gotUser, _ = UserIDFromContext(r.Context())
				w.WriteHeader(http.StatusOK)
			}))

			req := httptest.NewRequest(http.MethodPost, "/api/shops/shop-1/google-shopping-feeds/generate", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			if gotUser != tt.wantUser {
				t.Errorf("user = %q, want %q", gotUser, tt.wantUser)
			}
		})
	}
}

// ショップ単位の権限がURLパラメータで検証されることを検証
func TestShopPermissionMiddleware(t *testing.T) {
	store := newTestTokenStore(t)

	r := chi.NewRouter()
	r.With(NewTokenAuthMiddleware(store), NewShopPermissionMiddleware("shopID")).
		Post("/api/shops/{shopID}/generate", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		})

	tests := []struct {
		name       string
		token      string
		shopID     string
		wantStatus int
	}{
		{"全ショップ権限", "admin-token", "shop-9", http.StatusOK},
		{"対象ショップの権限あり", "editor-token", "shop-1", http.StatusOK},
		{"対象ショップの権限なし", "editor-token", "shop-2", http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/shops/"+tt.shopID+"/generate", nil)
			req.Header.Set("Authorization", "Bearer "+tt.token)
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
		})
	}
}

func TestShopPermissionMiddleware_WithoutPrincipal(t *testing.T) {
	handler := NewShopPermissionMiddleware("shopID")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not be called")
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/", nil))
	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}
}

func TestUserIDFromContext(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if _, err := UserIDFromContext(req.Context()); err == nil {
		t.Error("UserIDFromContext on empty context should fail")
	}

	ctx := ContextWithUserID(req.Context(), "user-1")
	if got, err := UserIDFromContext(ctx); err != nil || got != "user-1" {
		t.Errorf("UserIDFromContext = %q, %v", got, err)
	}
	if p, _ := PrincipalFromContext(ctx); !p.CanManage("anything") {
		t.Error("ContextWithUserID should grant all shops")
	}
}
