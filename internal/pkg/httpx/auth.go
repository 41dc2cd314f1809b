package httpx

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

const InternalTokenHeader = "X-Internal-Token"

// RequireBearer 校验后台管理员的 Bearer 令牌。token 为空时拒绝所有请求。
func RequireBearer(token string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || !tokenEqual(got, token) {
			w.Header().Set("WWW-Authenticate", `Bearer realm="admin"`)
			WriteJSON(w, http.StatusUnauthorized, ErrorBody{Error: "unauthorized"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireInternalToken 校验服务间调用的共享密钥，与管理员令牌分属不同信任边界。
func RequireInternalToken(token string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !tokenEqual(r.Header.Get(InternalTokenHeader), token) {
			WriteJSON(w, http.StatusForbidden, ErrorBody{Error: "forbidden"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func tokenEqual(got, want string) bool {
	if want == "" || got == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(got), []byte(want)) == 1
}
