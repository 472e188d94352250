// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"crypto/subtle"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/shoppingfeed/internal/model"
)

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

// principalContextKey はリクエストコンテキストに認証主体を格納するためのキー。
var principalContextKey = contextKey("principal")

// Principal はAPIトークンで認証された利用者を表す。
type Principal struct {
	UserID string
	// ShopIDs は管理権限を持つショップ。空の場合は全ショップを管理できる。
	ShopIDs []string
}

// CanManage はショップの管理権限を持つかを返す。
func (p Principal) CanManage(shopID string) bool {
	return len(p.ShopIDs) == 0 || slices.Contains(p.ShopIDs, shopID)
}

// TokenLookup はAPIトークンから認証主体を引くインターフェース。
type TokenLookup interface {
	Lookup(token string) (Principal, bool)
}

type tokenEntry struct {
	token     []byte
	principal Principal
}

// TokenStore は設定から読み込んだAPIトークンの集合。
type TokenStore struct {
	entries []tokenEntry
}

// ParseTokens は "userID:token[:shop1|shop2]" をカンマ区切りで並べた文字列からTokenStoreを生成する。
// ショップ指定を省略したトークンは全ショップの管理権限を持つ。
func ParseTokens(spec string) (*TokenStore, error) {
	store := &TokenStore{}
	for _, raw := range strings.Split(spec, ",") {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		parts := strings.SplitN(raw, ":", 3)
		if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
			return nil, fmt.Errorf("APIトークンの形式が不正です（userID:token[:shop1|shop2]）")
		}
		p := Principal{UserID: parts[0]}
		if len(parts) == 3 && parts[2] != "" {
			p.ShopIDs = strings.Split(parts[2], "|")
		}
		store.entries = append(store.entries, tokenEntry{token: []byte(parts[1]), principal: p})
	}
	return store, nil
}

// Len は登録済みトークン数を返す。
func (s *TokenStore) Len() int {
	return len(s.entries)
}

// Lookup はトークンに対応する認証主体を返す。比較は定数時間で行う。
func (s *TokenStore) Lookup(token string) (Principal, bool) {
	var found Principal
	ok := false
	for _, e := range s.entries {
		if subtle.ConstantTimeCompare(e.token, []byte(token)) == 1 {
			found, ok = e.principal, true
		}
	}
	return found, ok
}

// NewTokenAuthMiddleware は "Authorization: Bearer <token>" を検証し、
// 認証主体をリクエストコンテキストに注入するミドルウェアを返す。
// 未認証リクエストには401 Unauthorizedを返す。
func NewTokenAuthMiddleware(tokens TokenLookup) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r)
			if !ok {
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
				return
			}

			principal, ok := tokens.Lookup(token)
			if !ok {
				slog.Warn("invalid api token",
					slog.String("path", r.URL.Path),
				)
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
				return
			}

			next.ServeHTTP(w, r.WithContext(ContextWithPrincipal(r.Context(), principal)))
		})
	}
}

// NewShopPermissionMiddleware はURLパラメータparamのショップに対する管理権限を検証する。
// NewTokenAuthMiddlewareの後に配置する。権限がない場合は403 Forbiddenを返す。
func NewShopPermissionMiddleware(param string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, ok := PrincipalFromContext(r.Context())
			if !ok {
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
				return
			}
			if !principal.CanManage(chi.URLParam(r, param)) {
				WriteErrorResponse(w, http.StatusForbidden, model.NewForbiddenError())
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	scheme, token, found := strings.Cut(h, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// PrincipalFromContext はリクエストコンテキストから認証主体を取得する。
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalContextKey).(Principal)
	return p, ok && p.UserID != ""
}

// ContextWithPrincipal はコンテキストに認証主体を注入する。
func ContextWithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalContextKey, p)
}

// UserIDFromContext はリクエストコンテキストからユーザーIDを取得する。
// トークン認証ミドルウェアを通過したリクエストでのみ有効。
func UserIDFromContext(ctx context.Context) (string, error) {
	p, ok := PrincipalFromContext(ctx)
	if !ok {
		return "", fmt.Errorf("user ID not found in context")
	}
	return p.UserID, nil
}

// ContextWithUserID は全ショップの管理権限を持つユーザーとしてコンテキストに注入する。
// テストやミドルウェア以外のコンテキスト生成で使用する。
func ContextWithUserID(ctx context.Context, userID string) context.Context {
	return ContextWithPrincipal(ctx, Principal{UserID: userID})
}
