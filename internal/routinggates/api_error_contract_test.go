package routinggates

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	internalserver "github.com/pocotu/oficri-areas/internal/server"
	"github.com/pocotu/oficri-areas/modules/areas"
	"github.com/pocotu/oficri-areas/modules/areas/domain/area"
	"github.com/pocotu/oficri-areas/pkg/configuration"
	pkgserver "github.com/pocotu/oficri-areas/pkg/server"
)

type apiError struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Meta    map[string]string `json:"meta"`
}

type emptyRepo struct{}

func (emptyRepo) ListAreas(context.Context, uuid.UUID) ([]area.Area, error) { return nil, nil }
func (emptyRepo) LockAreas(context.Context, uuid.UUID) ([]area.Area, error) { return nil, nil }
func (emptyRepo) InsertArea(context.Context, uuid.UUID, area.Area) error { return nil }
func (emptyRepo) UpdateArea(context.Context, uuid.UUID, area.Area) error { return nil }
func (emptyRepo) DeleteArea(context.Context, uuid.UUID, uuid.UUID) error { return nil }

func (emptyRepo) SetParent(context.Context, uuid.UUID, uuid.UUID, *uuid.UUID) error {
	return nil
}

func buildServer(t *testing.T) *pkgserver.HTTPServer {
	t.Helper()
	conf, err := configuration.Load()
	require.NoError(t, err)
	t.Cleanup(conf.Unload)
	conf.Prometheus.Enabled = true
	conf.RateLimit.Enabled = false

	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)

	mod, err := areas.NewModule(areas.Options{
		Config:     conf,
		Logger:     logger,
		Repository: emptyRepo{},
		TxRunner: func(ctx context.Context, _ uuid.UUID, fn func(context.Context) error) error {
			return fn(ctx)
		},
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = mod.Close() })

	srv, err := internalserver.Default(&internalserver.DefaultOptions{
		Logger:        logger,
		Configuration: conf,
		Controllers:   mod.Controllers(),
	})
	require.NoError(t, err)
	return srv
}

func decodeAPIError(t *testing.T, rr *httptest.ResponseRecorder) apiError {
	t.Helper()
	require.Equal(t, "application/json", rr.Header().Get("Content-Type"))
	var payload apiError
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&payload))
	return payload
}

func TestAPIErrorContracts_JSONOnly_For404And405(t *testing.T) {
	h := buildServer(t).Router()

	t.Run("404_is_json", func(t *testing.T) {
		rr := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "http://example.com/areas/api/__nonexistent__", nil)
		req.Header.Set("X-Request-ID", "req-404")
		h.ServeHTTP(rr, req)

		require.Equal(t, http.StatusNotFound, rr.Code)
		payload := decodeAPIError(t, rr)
		require.Equal(t, "NOT_FOUND", payload.Code)
		require.Equal(t, "req-404", payload.Meta["request_id"])
		require.Equal(t, "/areas/api/__nonexistent__", payload.Meta["path"])
	})

	t.Run("405_is_json", func(t *testing.T) {
		rr := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPut, "http://example.com/areas/api/tree", nil)
		h.ServeHTTP(rr, req)

		require.Equal(t, http.StatusMethodNotAllowed, rr.Code)
		payload := decodeAPIError(t, rr)
		require.Equal(t, "METHOD_NOT_ALLOWED", payload.Code)
		require.Equal(t, http.MethodPut, payload.Meta["method"])
		require.Equal(t, "/areas/api/tree", payload.Meta["path"])
	})
}

// Every API route must sit under /areas/api and answer a tenant-less request
// with the JSON envelope instead of running the handler.
func TestAreasRoutes_RequireTenantAndSpeakJSON(t *testing.T) {
	router := buildServer(t).Router()

	type route struct{ path, method string }
	var routes []route
	require.NoError(t, router.Walk(func(r *mux.Route, _ *mux.Router, _ []*mux.Route) error {
		tpl, err := r.GetPathTemplate()
		if err != nil {
			return nil
		}
		methods, err := r.GetMethods()
		if err != nil {
			return nil
		}
		for _, m := range methods {
			routes = append(routes, route{path: tpl, method: m})
		}
		return nil
	}))
	require.NotEmpty(t, routes)

	id := uuid.NewString()
	for _, rt := range routes {
		if strings.HasPrefix(rt.path, "/debug/") {
			continue
		}
		require.True(t, strings.HasPrefix(rt.path, "/areas/api/"), "unexpected route %s", rt.path)

		target := strings.NewReplacer("{id}", id, "{ancestor_id}", id).Replace(rt.path)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, httptest.NewRequest(rt.method, target, nil))

		require.Equal(t, http.StatusBadRequest, rr.Code, "%s %s", rt.method, rt.path)
		require.Equal(t, "TENANT_REQUIRED", decodeAPIError(t, rr).Code, "%s %s", rt.method, rt.path)
	}
}
