package executor_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/leaporm/pkg/core"
	"github.com/leapstack-labs/leaporm/pkg/driver"
	"github.com/leapstack-labs/leaporm/pkg/executor"
	"github.com/leapstack-labs/leaporm/pkg/query"
	"github.com/leapstack-labs/leaporm/pkg/schema"
)

// fakeDriver records every call so tests can assert exact driver call
// counts and inspect the specs the executor builds.
type fakeDriver struct {
	queries []*query.Spec
	rows    map[string][]core.Row // entity type name -> rows to return

	countCalls, sumCalls, avgCalls, minCalls, maxCalls int

	updates   []map[string]any
	deletes   []*core.Entity
	updateErr func(identity map[string]any) error
	deleteErr func(e *core.Entity) error
}

func (f *fakeDriver) Connect(context.Context, driver.Config) error { return nil }
func (f *fakeDriver) Close() error                                 { return nil }

func (f *fakeDriver) Create(context.Context, *core.EntityType, map[string]any) error { return nil }

func (f *fakeDriver) GeneratedIdentity(context.Context, *core.EntityType, string) (any, error) {
	return nil, nil
}

func (f *fakeDriver) Load(context.Context, *core.Entity) (core.Row, error) { return nil, nil }

func (f *fakeDriver) Update(_ context.Context, _ *core.EntityType, identity, values map[string]any) error {
	if f.updateErr != nil {
		if err := f.updateErr(identity); err != nil {
			return err
		}
	}
	f.updates = append(f.updates, values)
	return nil
}

func (f *fakeDriver) Delete(_ context.Context, e *core.Entity) error {
	if f.deleteErr != nil {
		if err := f.deleteErr(e); err != nil {
			return err
		}
	}
	f.deletes = append(f.deletes, e)
	return nil
}

func (f *fakeDriver) Query(_ context.Context, spec *query.Spec) ([]core.Row, error) {
	f.queries = append(f.queries, spec)
	return f.rows[spec.Type().Name], nil
}

func (f *fakeDriver) Count(context.Context, *query.Spec) (int64, error) {
	f.countCalls++
	return 42, nil
}

func (f *fakeDriver) Sum(context.Context, *query.Spec, string) (float64, error) {
	f.sumCalls++
	return 10.5, nil
}

func (f *fakeDriver) Average(context.Context, *query.Spec, string) (float64, error) {
	f.avgCalls++
	return 2.5, nil
}

func (f *fakeDriver) Min(context.Context, *query.Spec, string) (float64, error) {
	f.minCalls++
	return 1, nil
}

func (f *fakeDriver) Max(context.Context, *query.Spec, string) (float64, error) {
	f.maxCalls++
	return 9, nil
}

// newFixture registers Order (hasMany items, belongsTo customer), Item,
// and Customer over a single fake-backed connection.
func newFixture(t *testing.T, fake *fakeDriver) (*executor.Executor, *schema.Registry) {
	t.Helper()

	m := driver.NewManager(nil)
	m.Add("main", fake)
	r := schema.NewRegistry(m)

	_, err := r.Register(schema.TypeDef{
		Name: "Order", Table: "orders", Identity: []string{"id"},
		Properties: []schema.PropertyDef{
			{Name: "id", Type: core.TypeInt},
			{Name: "customer_id", Type: core.TypeInt},
			{Name: "items", Relation: &schema.RelationDef{
				Kind: core.HasMany, Related: "Item",
				LocalKey: "id", ForeignKey: "order_id",
			}},
			{Name: "customer", Relation: &schema.RelationDef{
				Kind: core.BelongsTo, Related: "Customer",
				LocalKey: "customer_id", ForeignKey: "id",
			}},
		},
	})
	require.NoError(t, err)

	_, err = r.Register(schema.TypeDef{
		Name: "Item", Table: "items", Identity: []string{"id"},
		Properties: []schema.PropertyDef{
			{Name: "id", Type: core.TypeInt},
			{Name: "order_id", Type: core.TypeInt},
		},
	})
	require.NoError(t, err)

	_, err = r.Register(schema.TypeDef{
		Name: "Customer", Table: "customers", Identity: []string{"id"},
		Properties: []schema.PropertyDef{
			{Name: "id", Type: core.TypeInt},
			{Name: "name", Type: core.TypeString},
		},
	})
	require.NoError(t, err)
	require.NoError(t, r.Validate())

	return executor.New(r, nil), r
}

func orderSpec(t *testing.T, r *schema.Registry) *query.Spec {
	t.Helper()
	typ, ok := r.Type("Order")
	require.True(t, ok)
	return query.New(typ)
}

func orderRows(ids ...int64) []core.Row {
	rows := make([]core.Row, 0, len(ids))
	for _, id := range ids {
		rows = append(rows, core.Row{"id": id})
	}
	return rows
}

func TestExecute_PreservesDriverOrder(t *testing.T) {
	fake := &fakeDriver{rows: map[string][]core.Row{
		"Order": orderRows(3, 1, 2),
	}}
	x, r := newFixture(t, fake)

	entities, err := x.Execute(context.Background(), orderSpec(t, r))
	require.NoError(t, err)
	require.Len(t, entities, 3)
	assert.Equal(t, int64(3), entities[0].Get("id"))
	assert.Equal(t, int64(1), entities[1].Get("id"))
	assert.Equal(t, int64(2), entities[2].Get("id"))
}

func TestExecute_HasManyIsBatched(t *testing.T) {
	// 10 orders eager-loading items, only 3 with matches: exactly one
	// relationship query, and the other 7 resolve to explicit empty
	// collections.
	rows := orderRows(1, 2, 3, 4, 5, 6, 7, 8, 9, 10)
	fake := &fakeDriver{rows: map[string][]core.Row{
		"Order": rows,
		"Item": {
			{"id": int64(100), "order_id": int64(1)},
			{"id": int64(101), "order_id": int64(1)},
			{"id": int64(102), "order_id": int64(3)},
			{"id": int64(103), "order_id": int64(5)},
		},
	}}
	x, r := newFixture(t, fake)

	entities, err := x.Execute(context.Background(), orderSpec(t, r).With("items"))
	require.NoError(t, err)
	require.Len(t, entities, 10)

	require.Len(t, fake.queries, 2, "one base query plus exactly one relationship query")
	relSpec := fake.queries[1]
	assert.Equal(t, "Item", relSpec.Type().Name)
	_, limit := relSpec.Window()
	assert.Equal(t, query.MaxLimit, limit, "relationship lookups are bounded")

	filters := relSpec.Filters()
	require.Len(t, filters, 1)
	assert.Equal(t, query.FilterIn, filters[0].Kind)
	assert.Equal(t, "order_id", filters[0].Column)
	assert.Len(t, filters[0].Values, 10)

	withMatches := 0
	for _, e := range entities {
		items, resolved := e.RelatedMany("items")
		require.True(t, resolved, "every entity must leave hydration resolved")
		require.NotNil(t, items)
		if len(items) > 0 {
			withMatches++
		}
	}
	assert.Equal(t, 3, withMatches)

	first := entities[0]
	items, _ := first.RelatedMany("items")
	require.Len(t, items, 2, "order 1 has two items in driver order")
	assert.Equal(t, int64(100), items[0].Get("id"))
	assert.Equal(t, int64(101), items[1].Get("id"))
}

func TestExecute_BelongsToConfirmedAbsent(t *testing.T) {
	// 5 orders eager-loading customer, 2 without a matching record:
	// those 2 are confirmed-absent and later reads trigger no further
	// driver call.
	fake := &fakeDriver{rows: map[string][]core.Row{
		"Order": {
			{"id": int64(1), "customer_id": int64(10)},
			{"id": int64(2), "customer_id": int64(11)},
			{"id": int64(3), "customer_id": int64(12)},
			{"id": int64(4), "customer_id": int64(13)},
			{"id": int64(5), "customer_id": int64(14)},
		},
		"Customer": {
			{"id": int64(10), "name": "ada"},
			{"id": int64(11), "name": "bob"},
			{"id": int64(12), "name": "cyd"},
		},
	}}
	x, r := newFixture(t, fake)

	entities, err := x.Execute(context.Background(), orderSpec(t, r).With("customer"))
	require.NoError(t, err)
	require.Len(t, entities, 5)
	require.Len(t, fake.queries, 2)

	absent := 0
	for _, e := range entities {
		switch e.RelationState("customer") {
		case core.RelationAbsent:
			absent++
		case core.RelationPresent:
			related, ok := e.RelatedOne("customer")
			require.True(t, ok)
			require.NotNil(t, related)
		default:
			t.Fatalf("order %v left unresolved", e.Get("id"))
		}
	}
	assert.Equal(t, 2, absent)

	// Reading resolved relations is a pure cache hit.
	for _, e := range entities {
		_, _ = e.RelatedOne("customer")
	}
	assert.Len(t, fake.queries, 2, "relation reads must not issue driver calls")
}

func TestExecute_BelongsToLastRecordWins(t *testing.T) {
	fake := &fakeDriver{rows: map[string][]core.Row{
		"Order": {{"id": int64(1), "customer_id": int64(10)}},
		"Customer": {
			{"id": int64(10), "name": "first"},
			{"id": int64(10), "name": "second"},
		},
	}}
	x, r := newFixture(t, fake)

	entities, err := x.Execute(context.Background(), orderSpec(t, r).With("customer"))
	require.NoError(t, err)

	related, ok := entities[0].RelatedOne("customer")
	require.True(t, ok)
	assert.Equal(t, "second", related.Get("name"), "the last related record seen for a key wins")
}

func TestExecute_DeduplicatesLocalKeys(t *testing.T) {
	fake := &fakeDriver{rows: map[string][]core.Row{
		"Order": {
			{"id": int64(1), "customer_id": int64(10)},
			{"id": int64(2), "customer_id": int64(10)},
			{"id": int64(3), "customer_id": int64(10)},
		},
		"Customer": {{"id": int64(10), "name": "ada"}},
	}}
	x, r := newFixture(t, fake)

	entities, err := x.Execute(context.Background(), orderSpec(t, r).With("customer"))
	require.NoError(t, err)

	filters := fake.queries[1].Filters()
	require.Len(t, filters, 1)
	assert.Len(t, filters[0].Values, 1, "a key on N entities contributes once to the batch")

	for _, e := range entities {
		related, ok := e.RelatedOne("customer")
		require.True(t, ok)
		assert.Equal(t, "ada", related.Get("name"))
	}
}

func TestExecute_EmptyLocalKeysSkipTheQuery(t *testing.T) {
	fake := &fakeDriver{rows: map[string][]core.Row{
		"Order": {
			{"id": int64(1), "customer_id": int64(0)},
			{"id": int64(2), "customer_id": nil},
		},
	}}
	x, r := newFixture(t, fake)

	entities, err := x.Execute(context.Background(), orderSpec(t, r).With("customer"))
	require.NoError(t, err)

	assert.Len(t, fake.queries, 1, "no candidates means no relationship query at all")
	for _, e := range entities {
		assert.Equal(t, core.RelationAbsent, e.RelationState("customer"))
	}
}

func TestExecute_MixedEmptyKeys(t *testing.T) {
	fake := &fakeDriver{rows: map[string][]core.Row{
		"Order": {
			{"id": int64(1), "customer_id": int64(10)},
			{"id": int64(2), "customer_id": int64(0)},
		},
		"Customer": {{"id": int64(10), "name": "ada"}},
	}}
	x, r := newFixture(t, fake)

	entities, err := x.Execute(context.Background(), orderSpec(t, r).With("customer"))
	require.NoError(t, err)

	filters := fake.queries[1].Filters()
	assert.Len(t, filters[0].Values, 1, "empty keys are not candidates")

	_, ok := entities[0].RelatedOne("customer")
	assert.True(t, ok)
	assert.Equal(t, core.RelationAbsent, entities[1].RelationState("customer"))
}

func TestExecute_HydrationFollowsEagerOrder(t *testing.T) {
	fake := &fakeDriver{rows: map[string][]core.Row{
		"Order": {{"id": int64(1), "customer_id": int64(10)}},
	}}
	x, r := newFixture(t, fake)

	_, err := x.Execute(context.Background(), orderSpec(t, r).With("items", "customer"))
	require.NoError(t, err)

	require.Len(t, fake.queries, 3)
	assert.Equal(t, "Order", fake.queries[0].Type().Name)
	assert.Equal(t, "Item", fake.queries[1].Type().Name)
	assert.Equal(t, "Customer", fake.queries[2].Type().Name)
}

func TestExecute_UnknownRelationshipFailsBeforeAnyQuery(t *testing.T) {
	fake := &fakeDriver{rows: map[string][]core.Row{}}
	x, r := newFixture(t, fake)

	_, err := x.Execute(context.Background(), orderSpec(t, r).With("nope"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), `no relationship "nope"`)
	assert.Empty(t, fake.queries)
}

func TestFirst(t *testing.T) {
	t.Run("no rows returns the absent marker", func(t *testing.T) {
		fake := &fakeDriver{rows: map[string][]core.Row{}}
		x, r := newFixture(t, fake)

		e, err := x.First(context.Background(), orderSpec(t, r))
		require.NoError(t, err)
		assert.Nil(t, e)
	})

	t.Run("one row returns the entity directly", func(t *testing.T) {
		fake := &fakeDriver{rows: map[string][]core.Row{"Order": orderRows(7)}}
		x, r := newFixture(t, fake)

		e, err := x.First(context.Background(), orderSpec(t, r))
		require.NoError(t, err)
		require.NotNil(t, e)
		assert.Equal(t, int64(7), e.Get("id"))

		_, limit := fake.queries[0].Window()
		assert.Equal(t, 1, limit, "First must narrow the window to one row")
	})

	t.Run("FirstN always returns a collection", func(t *testing.T) {
		fake := &fakeDriver{rows: map[string][]core.Row{"Order": orderRows(7)}}
		x, r := newFixture(t, fake)

		entities, err := x.FirstN(context.Background(), orderSpec(t, r), 5)
		require.NoError(t, err)
		assert.Len(t, entities, 1)

		_, limit := fake.queries[0].Window()
		assert.Equal(t, 5, limit)
	})
}

func TestAggregates_DelegateWithoutMaterialization(t *testing.T) {
	fake := &fakeDriver{rows: map[string][]core.Row{}}
	x, r := newFixture(t, fake)
	ctx := context.Background()
	spec := orderSpec(t, r)

	n, err := x.Count(ctx, spec)
	require.NoError(t, err)
	assert.Equal(t, int64(42), n)

	sum, err := x.Sum(ctx, spec, "total")
	require.NoError(t, err)
	assert.Equal(t, 10.5, sum)

	avg, err := x.Average(ctx, spec, "total")
	require.NoError(t, err)
	assert.Equal(t, 2.5, avg)

	_, err = x.Min(ctx, spec, "total")
	require.NoError(t, err)
	_, err = x.Max(ctx, spec, "total")
	require.NoError(t, err)

	assert.Equal(t, 1, fake.countCalls)
	assert.Equal(t, 1, fake.sumCalls)
	assert.Equal(t, 1, fake.avgCalls)
	assert.Equal(t, 1, fake.minCalls)
	assert.Equal(t, 1, fake.maxCalls)
	assert.Empty(t, fake.queries, "aggregates bypass row materialization entirely")
}

func TestSetAll_ContinuesOnFailureAndTalliesSuccesses(t *testing.T) {
	fake := &fakeDriver{rows: map[string][]core.Row{"Order": orderRows(1, 2, 3)}}
	fake.updateErr = func(identity map[string]any) error {
		if identity["id"] == int64(2) {
			return errors.New("constraint violation")
		}
		return nil
	}
	x, r := newFixture(t, fake)

	n, err := x.SetAll(context.Background(), orderSpec(t, r), map[string]any{"status": "closed"})
	assert.Equal(t, 2, n, "only successful mutations are counted")
	require.Error(t, err)

	var list *core.ErrorList
	require.ErrorAs(t, err, &list)
	assert.Equal(t, 1, list.Len())
	assert.Contains(t, list.At(0).Error(), "constraint violation")

	assert.Len(t, fake.updates, 2, "the failure must not halt the batch")
}

func TestSetAll_UpdatesEntityFields(t *testing.T) {
	fake := &fakeDriver{rows: map[string][]core.Row{"Order": orderRows(1)}}
	x, r := newFixture(t, fake)

	n, err := x.SetAll(context.Background(), orderSpec(t, r), map[string]any{"status": "closed"})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	require.Len(t, fake.updates, 1)
	assert.Equal(t, map[string]any{"status": "closed"}, fake.updates[0])
}

func TestDeleteAll(t *testing.T) {
	fake := &fakeDriver{rows: map[string][]core.Row{"Order": orderRows(1, 2, 3)}}
	fake.deleteErr = func(e *core.Entity) error {
		if e.Get("id") == int64(1) {
			return errors.New("foreign key in use")
		}
		return nil
	}
	x, r := newFixture(t, fake)

	n, err := x.DeleteAll(context.Background(), orderSpec(t, r))
	assert.Equal(t, 2, n)
	require.Error(t, err)
	assert.Len(t, fake.deletes, 2)
}

// recordingMutator verifies that bulk operations flow through an
// installed pipeline instead of the driver.
type recordingMutator struct {
	updated int
	deleted int
}

func (m *recordingMutator) Update(context.Context, *core.Entity, map[string]any) error {
	m.updated++
	return nil
}

func (m *recordingMutator) Delete(context.Context, *core.Entity) error {
	m.deleted++
	return nil
}

func TestUseMutator_RoutesBulkMutations(t *testing.T) {
	fake := &fakeDriver{rows: map[string][]core.Row{"Order": orderRows(1, 2)}}
	x, r := newFixture(t, fake)

	rec := &recordingMutator{}
	x.UseMutator(rec)

	n, err := x.SetAll(context.Background(), orderSpec(t, r), map[string]any{"status": "closed"})
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, 2, rec.updated)
	assert.Empty(t, fake.updates, "the driver must not be hit when a pipeline is installed")

	n, err = x.DeleteAll(context.Background(), orderSpec(t, r))
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, 2, rec.deleted)
	assert.Empty(t, fake.deletes)
}

func TestSequence_EachTraversalReExecutes(t *testing.T) {
	fake := &fakeDriver{rows: map[string][]core.Row{"Order": orderRows(1, 2)}}
	x, r := newFixture(t, fake)

	seq := x.Sequence(orderSpec(t, r))

	var seen []int64
	err := seq.Each(context.Background(), func(e *core.Entity) error {
		seen = append(seen, e.Get("id").(int64))
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2}, seen)
	assert.Len(t, fake.queries, 1)

	// A second traversal runs the query again against current data.
	fake.rows["Order"] = orderRows(1, 2, 3)
	entities, err := seq.All(context.Background())
	require.NoError(t, err)
	assert.Len(t, entities, 3)
	assert.Len(t, fake.queries, 2)
}

func TestSequence_EachStopsOnCallbackError(t *testing.T) {
	fake := &fakeDriver{rows: map[string][]core.Row{"Order": orderRows(1, 2, 3)}}
	x, r := newFixture(t, fake)

	stop := errors.New("stop")
	calls := 0
	err := x.Sequence(orderSpec(t, r)).Each(context.Background(), func(*core.Entity) error {
		calls++
		if calls == 2 {
			return stop
		}
		return nil
	})
	assert.ErrorIs(t, err, stop)
	assert.Equal(t, 2, calls)
}
