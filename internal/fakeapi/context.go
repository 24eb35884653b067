package fakeapi

import (
	"context"
	"net/http"
)

func contextWithUser(r *http.Request, uid string) context.Context {
	return context.WithValue(r.Context(), ctxKey{}, uid)
}

func userFrom(r *http.Request) string {
	uid, _ := r.Context().Value(ctxKey{}).(string)
	return uid
}
