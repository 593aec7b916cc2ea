package middleware

import (
	"mime"
	"net/http"
	"strings"
)

const (
	methodOverrideField  = "_method"
	methodOverrideHeader = "X-HTTP-Method-Override"
)

var overridableMethods = map[string]string{
	"PUT":    http.MethodPut,
	"PATCH":  http.MethodPatch,
	"DELETE": http.MethodDelete,
}

// methodOverrideMiddleware lets HTML forms, which can only POST, reach PUT,
// PATCH and DELETE routes. It must wrap the router since routing matches
// on r.Method.
func methodOverrideMiddleware() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodPost {
				if m, ok := overridableMethods[strings.ToUpper(overrideValue(r))]; ok {
					r.Method = m
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

func overrideValue(r *http.Request) string {
	if v := r.Header.Get(methodOverrideHeader); v != "" {
		return v
	}

	ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch ct {
	case "application/x-www-form-urlencoded", "multipart/form-data":
		return r.PostFormValue(methodOverrideField)
	}
	return ""
}
