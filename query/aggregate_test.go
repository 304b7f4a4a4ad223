package query

import (
	"context"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAggregateCounts(t *testing.T) {
	e, s := newTestEngine(t)
	ctx := context.Background()
	seedPeople(t, s)
	seedKnows(t, s, "e1", "p1", "p2", nil)
	seedKnows(t, s, "e2", "p1", "p3", nil)
	seedKnows(t, s, "e3", "p2", "p3", nil)

	rows, err := e.From("Person", "p").
		Traverse("knows", "e").To("Person", "f").
		GroupBy("p", "name").
		Aggregate(map[string]AggregateTerm{
			"who":     Field("p", "name"),
			"friends": Count("f"),
		}).
		Execute(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	sort.Slice(rows, func(i, j int) bool { return rows[i]["who"].(string) < rows[j]["who"].(string) })
	assert.Equal(t, "Alice", rows[0]["who"])
	assert.EqualValues(t, 2, rows[0]["friends"])
	assert.Equal(t, "Bob", rows[1]["who"])
	assert.EqualValues(t, 1, rows[1]["friends"])
}

func TestAggregateSumAvgMinMax(t *testing.T) {
	e, s := newTestEngine(t)
	ctx := context.Background()
	seedPeople(t, s)

	rows, err := e.From("Person", "p").
		Aggregate(map[string]AggregateTerm{
			"total":  Sum("p", "age"),
			"mean":   Avg("p", "age"),
			"oldest": Max("p", "age"),
			"newest": Min("p", "age"),
		}).
		Execute(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.EqualValues(t, 95, rows[0]["total"])
	assert.EqualValues(t, 40, rows[0]["oldest"])
	assert.EqualValues(t, 25, rows[0]["newest"])
}

func TestHaving(t *testing.T) {
	e, s := newTestEngine(t)
	ctx := context.Background()
	seedPeople(t, s)
	seedKnows(t, s, "e1", "p1", "p2", nil)
	seedKnows(t, s, "e2", "p1", "p3", nil)
	seedKnows(t, s, "e3", "p2", "p3", nil)

	rows, err := e.From("Person", "p").
		Traverse("knows", "e").To("Person", "f").
		GroupBy("p", "name").
		Having(Count("f").Gt(1)).
		Aggregate(map[string]AggregateTerm{
			"who":     Field("p", "name"),
			"friends": Count("f"),
		}).
		Execute(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "Alice", rows[0]["who"])
}
