package api

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRouterGatesAllMutatingRoutesBehindAdminAuth(t *testing.T) {
	router := newTestRouter(t)

	cases := []struct {
		method string
		path   string
	}{
		{http.MethodPost, "/integrations"},
		{http.MethodPut, "/integrations/" + "00000000-0000-0000-0000-000000000000"},
		{http.MethodDelete, "/integrations/" + "00000000-0000-0000-0000-000000000000"},
		{http.MethodPost, "/integrations/" + "00000000-0000-0000-0000-000000000000" + "/sync"},
		{http.MethodPost, "/integrations/test"},
	}

	for _, tc := range cases {
		rec := doRequest(router, tc.method, tc.path, nil, false)
		assert.Equalf(t, http.StatusUnauthorized, rec.Code, "%s %s should require admin auth", tc.method, tc.path)
	}
}

func TestRouterLeavesReadRoutesOpen(t *testing.T) {
	router := newTestRouter(t)

	cases := []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/health"},
		{http.MethodGet, "/integrations"},
		{http.MethodGet, "/parts/search"},
	}

	for _, tc := range cases {
		rec := doRequest(router, tc.method, tc.path, nil, false)
		assert.NotEqualf(t, http.StatusUnauthorized, rec.Code, "%s %s should not require admin auth", tc.method, tc.path)
	}
}
