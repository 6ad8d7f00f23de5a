package worker

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/spec-kit/user-directory/internal/events"
	"github.com/spec-kit/user-directory/internal/observability"
)

func TestAuditWorker_LogsAndCountsEvents(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	metrics := observability.NewMetrics()
	dispatcher := events.NewInMemoryDispatcher()

	NewAuditWorker(dispatcher, zap.New(core), metrics).Start()

	ctx := context.Background()
	require.NoError(t, dispatcher.Publish(ctx, events.NewEvent(events.EventAccountRegistered, 7, nil)))
	require.NoError(t, dispatcher.Publish(ctx, events.NewEvent(events.EventAccountLoggedIn, 7, nil)))
	require.NoError(t, dispatcher.Publish(ctx, events.NewEvent(events.EventAccountLoggedIn, 7, nil)))

	entries := logs.FilterMessage("account_logged_in").All()
	require.Len(t, entries, 2)
	assert.Equal(t, int64(7), entries[0].ContextMap()["account_id"])

	count, err := testutil.GatherAndCount(metrics.Registry(), "user_directory_audit_events_total")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestAuditWorker_NilDispatcher(t *testing.T) {
	assert.NotPanics(t, func() { NewAuditWorker(nil, nil, nil).Start() })
}
