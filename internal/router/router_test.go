package router

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestRouter_MethodRouting(t *testing.T) {
	r := New()

	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	r.Post("/trigger", func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	})

	tests := []struct {
		method string
		path   string
		want   int
	}{
		{http.MethodGet, "/healthz", http.StatusOK},
		{http.MethodPost, "/trigger", http.StatusAccepted},
		{http.MethodGet, "/trigger", http.StatusMethodNotAllowed},
		{http.MethodGet, "/missing", http.StatusNotFound},
	}

	for _, tt := range tests {
		req := httptest.NewRequest(tt.method, tt.path, nil)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		if w.Code != tt.want {
			t.Errorf("%s %s: status = %d, want %d", tt.method, tt.path, w.Code, tt.want)
		}
	}
}

func TestRouter_MiddlewareOrder(t *testing.T) {
	var order []string

	tag := func(name string) Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, "before "+name)
				next.ServeHTTP(w, r)
				order = append(order, "after "+name)
			})
		}
	}

	r := New(tag("global"))
	r.Get("/test", func(w http.ResponseWriter, req *http.Request) {
		order = append(order, "handler")
	}, tag("route"))

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	r.ServeHTTP(httptest.NewRecorder(), req)

	expected := []string{"before global", "before route", "handler", "after route", "after global"}
	if len(order) != len(expected) {
		t.Fatalf("expected %d entries, got %d: %v", len(expected), len(order), order)
	}
	for i, v := range expected {
		if order[i] != v {
			t.Errorf("position %d: expected %s, got %s", i, v, order[i])
		}
	}
}

func TestRouter_GroupInheritsChain(t *testing.T) {
	globalCalled := false
	groupCalled := false

	mark := func(flag *bool) Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				*flag = true
				next.ServeHTTP(w, r)
			})
		}
	}

	r := New(mark(&globalCalled))
	group := r.Group(mark(&groupCalled))
	group.Post("/guarded", func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	// Routes on the parent stay outside the group's chain.
	r.Get("/open", func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodPost, "/guarded", nil)
	r.ServeHTTP(httptest.NewRecorder(), req)
	if !globalCalled || !groupCalled {
		t.Errorf("group route: global=%v group=%v, want both true", globalCalled, groupCalled)
	}

	globalCalled, groupCalled = false, false
	req = httptest.NewRequest(http.MethodGet, "/open", nil)
	r.ServeHTTP(httptest.NewRecorder(), req)
	if !globalCalled {
		t.Error("parent route skipped the global middleware")
	}
	if groupCalled {
		t.Error("parent route ran the group middleware")
	}
}
