package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"

	"github.com/pocotu/oficri-areas/modules/areas/domain/area"
	"github.com/pocotu/oficri-areas/modules/areas/services"
	"github.com/pocotu/oficri-areas/pkg/httpapi"
	"github.com/pocotu/oficri-areas/pkg/middleware"
)

var testTenant = uuid.MustParse("00000000-0000-0000-0000-0000000000aa")

type memRepo struct {
	mu   sync.Mutex
	rows map[uuid.UUID]area.Area
}

func (r *memRepo) list() []area.Area {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]area.Area, 0, len(r.rows))
	for _, a := range r.rows {
		out = append(out, a.Clone())
	}
	return out
}

func (r *memRepo) ListAreas(context.Context, uuid.UUID) ([]area.Area, error) { return r.list(), nil }
func (r *memRepo) LockAreas(context.Context, uuid.UUID) ([]area.Area, error) { return r.list(), nil }

func (r *memRepo) InsertArea(_ context.Context, _ uuid.UUID, a area.Area) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rows[a.ID] = a.Clone()
	return nil
}

func (r *memRepo) UpdateArea(_ context.Context, _ uuid.UUID, a area.Area) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rows[a.ID] = a.Clone()
	return nil
}

func (r *memRepo) SetParent(_ context.Context, _ uuid.UUID, id uuid.UUID, parentID *uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a := r.rows[id]
	a.ParentID = parentID
	r.rows[id] = a.Clone()
	return nil
}

func (r *memRepo) DeleteArea(_ context.Context, _ uuid.UUID, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.rows, id)
	return nil
}

func id(n int) uuid.UUID {
	var u uuid.UUID
	u[15] = byte(n)
	return u
}

func ref(n int) *uuid.UUID {
	v := id(n)
	return &v
}

// 1 Gerencia > 2 Logística > 3 Almacén; 1 > 5 Archivo (inactive); 4 Alcaldía.
func newTestRouter(t *testing.T) (*mux.Router, *memRepo) {
	t.Helper()
	repo := &memRepo{rows: map[uuid.UUID]area.Area{}}
	for _, a := range []area.Area{
		{ID: id(1), Label: "Gerencia", IsActive: true},
		{ID: id(2), ParentID: ref(1), Label: "Logística", IsActive: true},
		{ID: id(3), ParentID: ref(2), Label: "Almacén", IsActive: true},
		{ID: id(4), Label: "Alcaldía", IsActive: true},
		{ID: id(5), ParentID: ref(1), Label: "Archivo", IsActive: false},
	} {
		repo.rows[a.ID] = a
	}
	svc := services.NewAreaService(repo, services.WithTxRunner(func(ctx context.Context, _ uuid.UUID, fn func(context.Context) error) error {
		return fn(ctx)
	}))
	r := mux.NewRouter()
	NewAreaAPIController(svc, WithMiddlewares(middleware.RequireTenantHeader("X-Tenant-ID"))).Register(r)
	return r, repo
}

func do(t *testing.T, r http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("X-Tenant-ID", testTenant.String())
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out), rr.Body.String())
	return out
}

func TestAreaAPI_TreeIsFlattenedAndSorted(t *testing.T) {
	r, _ := newTestRouter(t)

	rr := do(t, r, http.MethodGet, "/areas/api/tree", "")
	require.Equal(t, http.StatusOK, rr.Code)
	resp := decode[treeResponse](t, rr)

	labels := make([]string, 0, len(resp.Nodes))
	for _, n := range resp.Nodes {
		labels = append(labels, strings.Repeat("-", n.Depth)+n.Label)
	}
	require.Equal(t, []string{"Alcaldía", "Gerencia", "-Logística", "--Almacén"}, labels)

	rr = do(t, r, http.MethodGet, "/areas/api/tree?include_inactive=true&root_id="+id(1).String(), "")
	require.Equal(t, http.StatusOK, rr.Code)
	resp = decode[treeResponse](t, rr)
	require.Len(t, resp.Nodes, 4)
	require.Equal(t, "Archivo", resp.Nodes[1].Label)

	rr = do(t, r, http.MethodGet, "/areas/api/tree?root_id=nope", "")
	require.Equal(t, http.StatusBadRequest, rr.Code)

	rr = do(t, r, http.MethodGet, "/areas/api/tree?root_id="+id(99).String(), "")
	require.Equal(t, http.StatusNotFound, rr.Code)
}

func TestAreaAPI_MoveRejectsCycle(t *testing.T) {
	r, repo := newTestRouter(t)

	rr := do(t, r, http.MethodPost, "/areas/api/nodes/"+id(1).String()+":move",
		`{"target_id":"`+id(3).String()+`","position":"inside"}`)
	require.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	env := decode[httpapi.ErrorEnvelope](t, rr)
	require.Equal(t, "AREA_CYCLE_REJECTED", env.Code)
	require.Nil(t, repo.rows[id(1)].ParentID)
}

func TestAreaAPI_MoveApplies(t *testing.T) {
	r, repo := newTestRouter(t)

	rr := do(t, r, http.MethodPost, "/areas/api/nodes/"+id(3).String()+":move",
		`{"target_id":"`+id(4).String()+`","position":"inside"}`)
	require.Equal(t, http.StatusOK, rr.Code)
	resp := decode[mutationResponse](t, rr)
	require.False(t, resp.DryRun)
	require.Len(t, resp.Ops, 1)
	require.Equal(t, "SetParent("+id(3).String()+", "+id(4).String()+")", resp.Ops[0].Summary)
	require.Len(t, resp.EventIDs, 1)
	require.Equal(t, id(4), *repo.rows[id(3)].ParentID)

	rr = do(t, r, http.MethodPost, "/areas/api/nodes/"+id(3).String()+":move", `{"position":"sideways"}`)
	require.Equal(t, http.StatusBadRequest, rr.Code)
	require.Equal(t, "AREA_INVALID_POSITION", decode[httpapi.ErrorEnvelope](t, rr).Code)

	rr = do(t, r, http.MethodPost, "/areas/api/nodes/"+id(3).String()+":move", `{}`)
	require.Equal(t, http.StatusBadRequest, rr.Code)
	require.Equal(t, "position is required", decode[httpapi.ErrorEnvelope](t, rr).Message)
}

func TestAreaAPI_Delete(t *testing.T) {
	r, repo := newTestRouter(t)

	rr := do(t, r, http.MethodDelete, "/areas/api/nodes/"+id(2).String(), "")
	require.Equal(t, http.StatusConflict, rr.Code)
	require.Equal(t, "AREA_NON_EMPTY_SUBTREE", decode[httpapi.ErrorEnvelope](t, rr).Code)

	rr = do(t, r, http.MethodDelete, "/areas/api/nodes/"+id(2).String()+"?cascade=true&dry_run=true", "")
	require.Equal(t, http.StatusOK, rr.Code)
	resp := decode[mutationResponse](t, rr)
	require.True(t, resp.DryRun)
	require.Equal(t, []uuid.UUID{id(3), id(2)}, []uuid.UUID{resp.Ops[0].NodeID, resp.Ops[1].NodeID})
	require.Empty(t, resp.EventIDs)
	require.Len(t, repo.rows, 5)

	rr = do(t, r, http.MethodDelete, "/areas/api/nodes/"+id(2).String()+"?cascade=true", "")
	require.Equal(t, http.StatusOK, rr.Code)
	require.Len(t, repo.rows, 3)

	rr = do(t, r, http.MethodDelete, "/areas/api/nodes/"+id(2).String()+"?cascade=maybe", "")
	require.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestAreaAPI_CreateAndUpdate(t *testing.T) {
	r, repo := newTestRouter(t)

	rr := do(t, r, http.MethodPost, "/areas/api/nodes", `{"parent_id":"`+id(4).String()+`"}`)
	require.Equal(t, http.StatusBadRequest, rr.Code)
	require.Equal(t, "label is required", decode[httpapi.ErrorEnvelope](t, rr).Message)

	rr = do(t, r, http.MethodPost, "/areas/api/nodes", `{"label":"x","color":"red"}`)
	require.Equal(t, http.StatusBadRequest, rr.Code)

	rr = do(t, r, http.MethodPost, "/areas/api/nodes", `{"id":"`+id(6).String()+`","parent_id":"`+id(4).String()+`","label":"  Tesorería "}`)
	require.Equal(t, http.StatusCreated, rr.Code)
	resp := decode[mutationResponse](t, rr)
	require.Equal(t, "Tesorería", resp.Area.Label)
	require.Equal(t, id(4), *repo.rows[id(6)].ParentID)

	rr = do(t, r, http.MethodPost, "/areas/api/nodes", `{"id":"`+id(6).String()+`","label":"otra"}`)
	require.Equal(t, http.StatusConflict, rr.Code)

	rr = do(t, r, http.MethodPatch, "/areas/api/nodes/"+id(6).String(), `{"label":"Caja","is_active":false}`)
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "Caja", repo.rows[id(6)].Label)
	require.False(t, repo.rows[id(6)].IsActive)
}

func TestAreaAPI_Queries(t *testing.T) {
	r, _ := newTestRouter(t)

	rr := do(t, r, http.MethodGet, "/areas/api/nodes/"+id(3).String()+"/path", "")
	require.Equal(t, http.StatusOK, rr.Code)
	path := decode[pathResponse](t, rr)
	require.Equal(t, 2, path.Depth)
	require.Equal(t, []string{"Gerencia", "Logística", "Almacén"}, []string{path.Path[0].Label, path.Path[1].Label, path.Path[2].Label})

	rr = do(t, r, http.MethodGet, "/areas/api/nodes/"+id(1).String()+"/descendants", "")
	require.Equal(t, http.StatusOK, rr.Code)
	desc := decode[struct {
		Descendants []area.Area `json:"descendants"`
	}](t, rr)
	require.Len(t, desc.Descendants, 3)

	rr = do(t, r, http.MethodGet, "/areas/api/nodes/"+id(3).String()+"/ancestors/"+id(1).String(), "")
	require.Equal(t, http.StatusOK, rr.Code)
	require.True(t, decode[struct {
		IsAncestor bool `json:"is_ancestor"`
	}](t, rr).IsAncestor)

	rr = do(t, r, http.MethodGet, "/areas/api/nodes/"+id(1).String()+"/ancestors/"+id(1).String(), "")
	require.False(t, decode[struct {
		IsAncestor bool `json:"is_ancestor"`
	}](t, rr).IsAncestor)

	rr = do(t, r, http.MethodGet, "/areas/api/nodes/"+id(42).String()+"/path", "")
	require.Equal(t, http.StatusNotFound, rr.Code)

	rr = do(t, r, http.MethodGet, "/areas/api/check", "")
	require.Equal(t, http.StatusOK, rr.Code)
	require.True(t, decode[struct {
		Healthy bool `json:"healthy"`
	}](t, rr).Healthy)
}

func TestAreaAPI_RequiresTenant(t *testing.T) {
	r, _ := newTestRouter(t)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/areas/api/tree", nil))
	require.Equal(t, http.StatusBadRequest, rr.Code)
	require.Equal(t, "TENANT_REQUIRED", decode[httpapi.ErrorEnvelope](t, rr).Code)
}

func TestAreaAPI_WrongMethodIs405(t *testing.T) {
	r, _ := newTestRouter(t)
	r.NotFoundHandler = httpapi.NotFound()
	r.MethodNotAllowedHandler = httpapi.MethodNotAllowed()

	for _, tc := range []struct{ method, path string }{
		{http.MethodPut, "/areas/api/tree"},
		{http.MethodDelete, "/areas/api/tree"},
		{http.MethodPut, "/areas/api/check"},
		{http.MethodDelete, "/areas/api/check"},
		{http.MethodPut, "/areas/api/nodes"},
		{http.MethodDelete, "/areas/api/nodes"},
		{http.MethodPut, "/areas/api/nodes/" + id(1).String()},
		{http.MethodPost, "/areas/api/nodes/" + id(1).String() + "/path"},
	} {
		rr := do(t, r, tc.method, tc.path, "")
		require.Equal(t, http.StatusMethodNotAllowed, rr.Code, "%s %s", tc.method, tc.path)
		require.Equal(t, "METHOD_NOT_ALLOWED", decode[httpapi.ErrorEnvelope](t, rr).Code, "%s %s", tc.method, tc.path)
	}

	rr := do(t, r, http.MethodGet, "/areas/api/__nonexistent__", "")
	require.Equal(t, http.StatusNotFound, rr.Code)
}

func TestAreaAPI_RecordsRequestMetrics(t *testing.T) {
	r, _ := newTestRouter(t)
	before := apiRequests(t, "path", "4xx")

	do(t, r, http.MethodGet, "/areas/api/nodes/"+id(77).String()+"/path", "")

	require.Equal(t, before+1, apiRequests(t, "path", "4xx"))
}

func apiRequests(t *testing.T, endpoint, result string) float64 {
	t.Helper()
	families, err := prometheus.DefaultGatherer.Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() != "areas_api_requests_total" {
			continue
		}
		for _, m := range mf.GetMetric() {
			labels := labelsToMap(m.GetLabel())
			if labels["endpoint"] == endpoint && labels["result"] == result {
				return m.GetCounter().GetValue()
			}
		}
	}
	return 0
}

func labelsToMap(pairs []*dto.LabelPair) map[string]string {
	out := make(map[string]string, len(pairs))
	for _, p := range pairs {
		out[p.GetName()] = p.GetValue()
	}
	return out
}
