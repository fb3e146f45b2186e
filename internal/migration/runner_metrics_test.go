package migration

import (
	"context"
	"testing"

	"github.com/loykin/schoolsys/internal/ledger"
	"github.com/loykin/schoolsys/internal/metrics"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRun_Metrics(t *testing.T) {
	c := &calls{}
	f := newFixture(t,
		createTable(c, "1_create_a", "a"),
		failing(c, "2_create_b"),
	)
	m := metrics.New("schoolsys")
	f.runner.Metrics = m

	_, err := f.runner.Run(context.Background())
	require.Error(t, err)

	ops := m.ChangesetOperations
	assert.Equal(t, 1.0, testutil.ToFloat64(ops.WithLabelValues(ledger.DirectionUp, "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(ops.WithLabelValues(ledger.DirectionUp, "failure")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.RunDuration))
}

func TestRevert_Metrics(t *testing.T) {
	c := &calls{}
	f := newFixture(t, abc(c)...)
	m := metrics.New("schoolsys")
	f.runner.Metrics = m
	ctx := context.Background()

	_, err := f.runner.Run(ctx)
	require.NoError(t, err)
	_, err = f.runner.Revert(ctx, "")
	require.NoError(t, err)

	ops := m.ChangesetOperations
	assert.Equal(t, 3.0, testutil.ToFloat64(ops.WithLabelValues(ledger.DirectionUp, "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(ops.WithLabelValues(ledger.DirectionDown, "success")))
}
