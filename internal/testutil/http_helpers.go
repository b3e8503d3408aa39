package testutil

import (
	"context"
	"net/http"
	"net/http/httptest"

	"github.com/go-chi/chi/v5"
)

// NewRequestWithURLParams builds a request whose chi route context already
// carries the given path parameters, so handlers reading chi.URLParam can be
// tested without mounting a router.
//
//	req := testutil.NewRequestWithURLParams(
//	    http.MethodGet,
//	    "/api/backtest/123-456",
//	    map[string]string{"uuid": "123-456"},
//	)
func NewRequestWithURLParams(method, path string, params map[string]string) *http.Request {
	req := httptest.NewRequest(method, path, nil)

	if len(params) > 0 {
		rctx := chi.NewRouteContext()
		for key, value := range params {
			rctx.URLParams.Add(key, value)
		}
		req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
	}

	return req
}

// NewRequestWithQueryParams builds a request with the given query string,
// for handlers that filter through r.URL.Query().
//
//	req := testutil.NewRequestWithQueryParams(
//	    http.MethodGet,
//	    "/api/backtest",
//	    map[string]string{
//	        "profile": "balanced",
//	        "status": "done",
//	    },
//	)
func NewRequestWithQueryParams(method, path string, queryParams map[string]string) *http.Request {
	req := httptest.NewRequest(method, path, nil)

	if len(queryParams) > 0 {
		q := req.URL.Query()
		for key, value := range queryParams {
			q.Add(key, value)
		}
		req.URL.RawQuery = q.Encode()
	}

	return req
}
