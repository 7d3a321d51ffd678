package services

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"

	"github.com/pocotu/oficri-areas/modules/areas/domain/area"
	"github.com/pocotu/oficri-areas/modules/areas/domain/events"
	"github.com/pocotu/oficri-areas/modules/areas/domain/hierarchy"
	"github.com/pocotu/oficri-areas/pkg/eventbus"
)

var tenantID = uuid.MustParse("aaaaaaaa-aaaa-aaaa-aaaa-aaaaaaaaaaaa")

func newTestService(repo *fakeRepo, opts ...Option) *AreaService {
	base := []Option{WithTxRunner(passthroughTx), WithClock(fixedNow)}
	return NewAreaService(repo, append(base, opts...)...)
}

func requireServiceError(t *testing.T, err error, status int, code string) {
	t.Helper()
	var svcErr *ServiceError
	require.ErrorAs(t, err, &svcErr)
	require.Equal(t, status, svcErr.Status)
	require.Equal(t, code, svcErr.Code)
}

func TestMoveArea_AppliesPlanAndPublishes(t *testing.T) {
	repo := chainRepo()
	cache := newFakeCache()
	bus := eventbus.New[events.AreaEventV1](nil)
	var published []events.AreaEventV1
	bus.Subscribe(func(_ context.Context, ev events.AreaEventV1) error {
		published = append(published, ev)
		return nil
	})
	svc := newTestService(repo, WithCache(cache), WithPublisher(bus))

	res, err := svc.MoveArea(context.Background(), tenantID, "req-1", testID(9), MoveAreaInput{
		NodeID:   testID(3),
		TargetID: ref(4),
		Position: "inside",
	})
	require.NoError(t, err)
	require.False(t, res.DryRun)
	require.Equal(t, []hierarchy.Operation{{Kind: hierarchy.OpSetParent, NodeID: testID(3), ParentID: ref(4)}}, res.Plan.Ops)
	require.Equal(t, []string{"set_parent " + testID(3).String()}, repo.writes())
	require.Equal(t, testID(4), *repo.rows[testID(3)].ParentID)
	require.Equal(t, 1, cache.invalidated)

	require.Len(t, published, 1)
	ev := published[0]
	require.Equal(t, events.ChangeTypeMoved, ev.ChangeType)
	require.Equal(t, "req-1", ev.RequestID)
	require.Equal(t, tenantID, ev.TenantID)
	require.Equal(t, testID(9), ev.InitiatorID)
	require.Equal(t, fixedNow(), ev.TransactionTime)
	require.JSONEq(t, `{"parent_id":"`+testID(2).String()+`"}`, string(ev.OldValues))
	require.JSONEq(t, `{"parent_id":"`+testID(4).String()+`"}`, string(ev.NewValues))
	require.Equal(t, res.GeneratedEvents, published)
}

func TestMoveArea_RejectsCycleWithoutWriting(t *testing.T) {
	repo := chainRepo()
	svc := newTestService(repo)

	_, err := svc.MoveArea(context.Background(), tenantID, "req-1", uuid.Nil, MoveAreaInput{
		NodeID:   testID(1),
		TargetID: ref(3),
		Position: "inside",
	})
	requireServiceError(t, err, 422, "AREA_CYCLE_REJECTED")
	require.True(t, errors.Is(err, area.ErrCycleRejected))
	require.Empty(t, repo.writes())
	require.GreaterOrEqual(t, counterValue(t, "areas_mutation_rejections_total", map[string]string{"mutation": "move", "code": "AREA_CYCLE_REJECTED"}), float64(1))
}

func TestMoveArea_ValidationErrors(t *testing.T) {
	svc := newTestService(chainRepo())
	ctx := context.Background()

	_, err := svc.MoveArea(ctx, tenantID, "", uuid.Nil, MoveAreaInput{NodeID: testID(2), TargetID: ref(1), Position: "sideways"})
	requireServiceError(t, err, 400, "AREA_INVALID_POSITION")

	_, err = svc.MoveArea(ctx, tenantID, "", uuid.Nil, MoveAreaInput{NodeID: testID(2), Position: "after"})
	requireServiceError(t, err, 400, "AREA_INVALID_POSITION")

	_, err = svc.MoveArea(ctx, tenantID, "", uuid.Nil, MoveAreaInput{NodeID: testID(99), TargetID: ref(1), Position: "inside"})
	requireServiceError(t, err, 404, "AREA_NOT_FOUND")

	_, err = svc.MoveArea(ctx, tenantID, "", uuid.Nil, MoveAreaInput{NodeID: testID(2), TargetID: ref(2), Position: "root"})
	requireServiceError(t, err, 422, "AREA_CYCLE_REJECTED")

	_, err = svc.MoveArea(ctx, uuid.Nil, "", uuid.Nil, MoveAreaInput{NodeID: testID(2), Position: "root"})
	requireServiceError(t, err, 400, "AREA_INVALID_BODY")
}

func TestMoveArea_DryRunDoesNotWrite(t *testing.T) {
	repo := chainRepo()
	cache := newFakeCache()
	svc := newTestService(repo, WithCache(cache))

	res, err := svc.MoveArea(context.Background(), tenantID, "req-1", uuid.Nil, MoveAreaInput{
		NodeID:   testID(2),
		Position: "root",
		DryRun:   true,
	})
	require.NoError(t, err)
	require.True(t, res.DryRun)
	require.Len(t, res.Plan.Ops, 1)
	require.Nil(t, res.Plan.Ops[0].ParentID)
	require.Empty(t, res.GeneratedEvents)
	require.Empty(t, repo.writes())
	require.Zero(t, cache.invalidated)
}

func TestDeleteArea_CascadeDeletesDeepestFirst(t *testing.T) {
	repo := chainRepo()
	svc := newTestService(repo)

	res, err := svc.DeleteArea(context.Background(), tenantID, "req-2", uuid.Nil, DeleteAreaInput{NodeID: testID(1), Cascade: true})
	require.NoError(t, err)
	require.Equal(t, []string{
		"delete " + testID(3).String(),
		"delete " + testID(2).String(),
		"delete " + testID(1).String(),
	}, repo.writes())
	require.Len(t, repo.rows, 1)

	require.Len(t, res.GeneratedEvents, 3)
	for i, ev := range res.GeneratedEvents {
		require.Equal(t, i, ev.Sequence)
		require.Equal(t, events.ChangeTypeDeleted, ev.ChangeType)
		require.Nil(t, ev.NewValues)
	}
	var old area.Area
	require.NoError(t, json.Unmarshal(res.GeneratedEvents[2].OldValues, &old))
	require.Equal(t, "Gerencia", old.Label)
}

func TestDeleteArea_NonCascadeWithChildren(t *testing.T) {
	repo := chainRepo()
	svc := newTestService(repo)

	_, err := svc.DeleteArea(context.Background(), tenantID, "", uuid.Nil, DeleteAreaInput{NodeID: testID(2)})
	requireServiceError(t, err, 409, "AREA_NON_EMPTY_SUBTREE")
	require.Empty(t, repo.writes())

	_, err = svc.DeleteArea(context.Background(), tenantID, "", uuid.Nil, DeleteAreaInput{NodeID: testID(3)})
	require.NoError(t, err)
}

func TestCreateArea(t *testing.T) {
	repo := chainRepo()
	svc := newTestService(repo)
	ctx := context.Background()

	res, err := svc.CreateArea(ctx, tenantID, "", uuid.Nil, CreateAreaInput{ID: testID(10), ParentID: ref(2), Label: "  Compras "})
	require.NoError(t, err)
	require.Equal(t, "Compras", res.Area.Label)
	require.True(t, res.Area.IsActive)
	require.Equal(t, hierarchy.OpInsert, res.Plan.Ops[0].Kind)
	require.Equal(t, "Compras", repo.rows[testID(10)].Label)

	generated, err := svc.CreateArea(ctx, tenantID, "", uuid.Nil, CreateAreaInput{Label: "Root"})
	require.NoError(t, err)
	require.NotEqual(t, uuid.Nil, generated.Area.ID)
	require.Nil(t, generated.Area.ParentID)

	_, err = svc.CreateArea(ctx, tenantID, "", uuid.Nil, CreateAreaInput{Label: "  "})
	requireServiceError(t, err, 400, "AREA_INVALID_BODY")

	_, err = svc.CreateArea(ctx, tenantID, "", uuid.Nil, CreateAreaInput{ID: testID(11), ParentID: ref(99), Label: "x"})
	requireServiceError(t, err, 404, "AREA_NOT_FOUND")

	_, err = svc.CreateArea(ctx, tenantID, "", uuid.Nil, CreateAreaInput{ID: testID(2), Label: "dup"})
	requireServiceError(t, err, 409, "AREA_DUPLICATE_ID")
}

func TestUpdateArea(t *testing.T) {
	repo := chainRepo()
	svc := newTestService(repo)
	ctx := context.Background()

	label := "Logística y Almacenes"
	inactive := false
	res, err := svc.UpdateArea(ctx, tenantID, "", uuid.Nil, UpdateAreaInput{ID: testID(2), Label: &label, IsActive: &inactive})
	require.NoError(t, err)
	require.Equal(t, label, res.Area.Label)
	require.False(t, repo.rows[testID(2)].IsActive)
	require.Equal(t, testID(1), *repo.rows[testID(2)].ParentID)
	require.Len(t, res.GeneratedEvents, 1)
	require.Equal(t, events.ChangeTypeUpdated, res.GeneratedEvents[0].ChangeType)

	_, err = svc.UpdateArea(ctx, tenantID, "", uuid.Nil, UpdateAreaInput{ID: testID(2)})
	requireServiceError(t, err, 400, "AREA_INVALID_BODY")

	_, err = svc.UpdateArea(ctx, tenantID, "", uuid.Nil, UpdateAreaInput{ID: testID(99), Label: &label})
	requireServiceError(t, err, 404, "AREA_NOT_FOUND")
}

func TestGetTree_UsesCacheAndFiltersInactive(t *testing.T) {
	repo := chainRepo()
	inactive := repo.rows[testID(2)]
	inactive.IsActive = false
	repo.rows[testID(2)] = inactive
	cache := newFakeCache()
	svc := newTestService(repo, WithCache(cache))
	ctx := context.Background()

	tree, err := svc.GetTree(ctx, tenantID, TreeQuery{})
	require.NoError(t, err)
	require.Equal(t, 2, treeSize(tree))
	require.Equal(t, "Alcaldía", tree[0].Area.Label)

	full, err := svc.GetTree(ctx, tenantID, TreeQuery{IncludeInactive: true})
	require.NoError(t, err)
	require.Equal(t, 4, treeSize(full))

	lists := 0
	for _, c := range repo.calls {
		if c == "list" {
			lists++
		}
	}
	require.Equal(t, 1, lists)

	_, err = svc.GetTree(ctx, tenantID, TreeQuery{RootID: ref(99)})
	requireServiceError(t, err, 404, "AREA_NOT_FOUND")

	sub, err := svc.GetTree(ctx, tenantID, TreeQuery{RootID: ref(2)})
	require.NoError(t, err)
	require.Empty(t, sub)
}

// listHookRepo runs afterList once, after the rows were read but before they
// are returned, to interleave a write with an in-flight read.
type listHookRepo struct {
	*fakeRepo
	afterList func()
}

func (r *listHookRepo) ListAreas(ctx context.Context, tenantID uuid.UUID) ([]area.Area, error) {
	rows, err := r.fakeRepo.ListAreas(ctx, tenantID)
	if hook := r.afterList; hook != nil {
		r.afterList = nil
		hook()
	}
	return rows, err
}

func TestSnapshot_ReadRacingAWriteDoesNotRefillCache(t *testing.T) {
	inner := chainRepo()
	repo := &listHookRepo{fakeRepo: inner}
	cache := newFakeCache()
	svc := NewAreaService(repo, WithTxRunner(passthroughTx), WithClock(fixedNow), WithCache(cache))
	ctx := context.Background()

	repo.afterList = func() {
		_, err := svc.MoveArea(ctx, tenantID, "req-move", uuid.Nil, MoveAreaInput{
			NodeID:   testID(3),
			TargetID: ref(4),
			Position: "inside",
		})
		require.NoError(t, err)
	}

	stale, err := svc.Snapshot(ctx, tenantID)
	require.NoError(t, err)
	before, _ := stale.Get(testID(3))
	require.Equal(t, testID(2), *before.ParentID)
	require.Equal(t, 1, cache.invalidated)
	require.Empty(t, cache.entries)

	fresh, err := svc.Snapshot(ctx, tenantID)
	require.NoError(t, err)
	after, _ := fresh.Get(testID(3))
	require.Equal(t, testID(4), *after.ParentID)
	require.Len(t, cache.entries[tenantID], 4)
}

func TestGetPathDescendantsAndAncestry(t *testing.T) {
	svc := newTestService(chainRepo())
	ctx := context.Background()

	path, err := svc.GetPath(ctx, tenantID, testID(3))
	require.NoError(t, err)
	require.Equal(t, 2, path.Depth)
	require.Equal(t, testID(1), path.Path[0].ID)

	_, err = svc.GetPath(ctx, tenantID, testID(99))
	requireServiceError(t, err, 404, "AREA_NOT_FOUND")

	desc, err := svc.GetDescendants(ctx, tenantID, testID(1))
	require.NoError(t, err)
	require.Len(t, desc, 2)

	ok, err := svc.IsAncestor(ctx, tenantID, testID(1), testID(3))
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = svc.IsAncestor(ctx, tenantID, testID(4), testID(3))
	require.NoError(t, err)
	require.False(t, ok)

	_, err = svc.IsAncestor(ctx, tenantID, testID(1), testID(99))
	requireServiceError(t, err, 404, "AREA_NOT_FOUND")
}

func TestPublisherFailureDoesNotFailMutation(t *testing.T) {
	bus := eventbus.New[events.AreaEventV1](nil)
	bus.Subscribe(func(context.Context, events.AreaEventV1) error { return errors.New("broker down") })
	svc := newTestService(chainRepo(), WithPublisher(bus))

	_, err := svc.MoveArea(context.Background(), tenantID, "", uuid.Nil, MoveAreaInput{NodeID: testID(3), Position: "root"})
	require.NoError(t, err)
}

func TestRepositoryErrorsAreMapped(t *testing.T) {
	repo := chainRepo()
	repo.err = errors.New("connection reset")
	svc := newTestService(repo)

	_, err := svc.GetTree(context.Background(), tenantID, TreeQuery{})
	requireServiceError(t, err, 500, "AREA_INTERNAL")

	_, err = svc.DeleteArea(context.Background(), tenantID, "", uuid.Nil, DeleteAreaInput{NodeID: testID(3)})
	requireServiceError(t, err, 500, "AREA_INTERNAL")
}

func TestCheck_ReportsCorruptRows(t *testing.T) {
	repo := chainRepo()
	a := repo.rows[testID(1)]
	a.ParentID = ref(3)
	repo.rows[testID(1)] = a

	issues, err := newTestService(repo).Check(context.Background(), tenantID)
	require.NoError(t, err)
	require.Len(t, issues, 1)
	require.Equal(t, hierarchy.IssueCycle, issues[0].Kind)
}

func counterValue(t *testing.T, name string, want map[string]string) float64 {
	t.Helper()
	mfs, err := prometheus.DefaultGatherer.Gather()
	require.NoError(t, err)
	for _, mf := range mfs {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			if matchLabels(m, want) {
				return m.GetCounter().GetValue()
			}
		}
	}
	return 0
}

func matchLabels(m *dto.Metric, want map[string]string) bool {
	got := map[string]string{}
	for _, lp := range m.GetLabel() {
		got[lp.GetName()] = lp.GetValue()
	}
	for k, v := range want {
		if got[k] != v {
			return false
		}
	}
	return true
}

func treeSize(roots []*hierarchy.TreeNode) int {
	n := 0
	for _, r := range roots {
		n += r.Size()
	}
	return n
}
