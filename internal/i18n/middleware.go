package i18n

import "net/http"

// Middleware stores a localizer in every request context. The language is
// negotiated from Accept-Language among the loaded locales, with lang as the
// default.
func Middleware(lang string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			chosen := Negotiate(r.Header.Get("Accept-Language"), lang)
			ctx := WithLocalizer(r.Context(), NewLocalizer(chosen, lang))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
