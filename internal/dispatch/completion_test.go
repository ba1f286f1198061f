package dispatch_test

import (
	"context"
	"testing"
	"time"

	"hvac-dispatch/internal/dispatch"
	"hvac-dispatch/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompleteWithoutSignatureLeavesStatus(t *testing.T) {
	env := newTestEnv(t)
	o := env.startedOrder(t)

	_, err := env.engine.Completion.Complete(context.Background(), technician, o.ID, nil, nil)
	assert.ErrorIs(t, err, dispatch.ErrSignatureRequired)

	stored := env.orders.get(o.ID)
	assert.Equal(t, models.StatusInProgress, stored.Status)
	assert.Nil(t, stored.CompletedAt)
	assert.Empty(t, env.events.kinds(o.ID))
}

func TestCompleteClosesTheVisit(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	o := env.startedOrder(t)
	_, err := env.engine.Broadcast.StartTracking(ctx, technician, o.ID, fixedAt(-23.55, -46.63))
	require.NoError(t, err)

	res, err := env.engine.Completion.Complete(ctx, technician, o.ID, env.signature(), []models.ConsumedPart{{ItemID: 3, Quantity: 2}})
	require.NoError(t, err)

	assert.Equal(t, models.StatusCompleted, res.Order.Status)
	require.NotNil(t, res.Order.CompletedAt)
	assert.Equal(t, fixedNow, *res.Order.CompletedAt)
	assert.False(t, res.Order.TrackingActive)

	require.NotNil(t, res.Signature)
	assert.Equal(t, models.PhotoSignature, res.Signature.Category)

	require.Len(t, res.Consumed, 1)
	assert.Equal(t, "Service order #1", res.Consumed[0].Reason)
	assert.Empty(t, res.Failures)

	require.NotNil(t, res.Event)
	assert.Equal(t, models.EventCompletion, res.Event.Kind)
	require.NotNil(t, res.Event.Lat)
	assert.Equal(t, -23.55, *res.Event.Lat)
	assert.Equal(t, []models.EventKind{models.EventStart, models.EventCompletion}, env.events.kinds(o.ID))

	assert.Contains(t, env.publisher.types(), "order.completed")
}

func TestCompleteReportsPartialInventoryFailure(t *testing.T) {
	env := newTestEnv(t)
	o := env.startedOrder(t)
	env.inventory.failFor[42] = true

	res, err := env.engine.Completion.Complete(context.Background(), technician, o.ID, env.signature(), []models.ConsumedPart{
		{ItemID: 41, Quantity: 1},
		{ItemID: 42, Quantity: 3},
	})
	require.NoError(t, err)

	require.Len(t, res.Failures, 1)
	assert.Equal(t, int64(42), res.Failures[0].ItemID)
	assert.Equal(t, 3, res.Failures[0].Quantity)
	assert.Len(t, res.Consumed, 1)

	stored := env.orders.get(o.ID)
	assert.Equal(t, models.StatusCompleted, stored.Status)
	assert.NotNil(t, stored.CompletedAt)
}

func TestCompleteRetryReusesStoredSignature(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	o := env.startedOrder(t)

	_, err := env.engine.Completion.Complete(ctx, technician, o.ID, env.signature(), []models.ConsumedPart{{ItemID: 1, Quantity: 0}})
	var ve *dispatch.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Empty(t, env.photos.rows)

	// another writer bumps the version between the signature and the update
	env.orders.beforeUpdate = func(id int64) {
		env.orders.beforeUpdate = nil
		row := env.orders.get(id)
		row.Version++
		env.orders.put(row)
	}
	_, err = env.engine.Completion.Complete(ctx, technician, o.ID, env.signature(), nil)
	require.ErrorIs(t, err, dispatch.ErrConcurrentUpdate)
	require.Len(t, env.photos.rows, 1)

	res, err := env.engine.Completion.Complete(ctx, technician, o.ID, nil, nil)
	require.NoError(t, err)
	assert.Nil(t, res.Signature)
	assert.Equal(t, models.StatusCompleted, res.Order.Status)
}

func TestCompleteGeostamp(t *testing.T) {
	ctx := context.Background()

	t.Run("stale cell from an earlier visit is ignored", func(t *testing.T) {
		env := newTestEnv(t)
		o := env.startedOrder(t)
		require.NoError(t, env.positions.Set(ctx, models.PositionSample{
			TechnicianID: certifiedID, Lat: -22.9, Lon: -43.2, CapturedAt: fixedNow.Add(-3 * time.Hour),
		}))

		res, err := env.engine.Completion.Complete(ctx, technician, o.ID, env.signature(), nil)
		require.NoError(t, err)
		require.NotNil(t, res.Event)
		assert.Nil(t, res.Event.Lat)
		assert.Nil(t, res.Event.Lon)
	})

	t.Run("recent cell is used without tracking", func(t *testing.T) {
		env := newTestEnv(t)
		o := env.startedOrder(t)
		require.NoError(t, env.positions.Set(ctx, models.PositionSample{
			TechnicianID: certifiedID, Lat: -23.55, Lon: -46.63, CapturedAt: fixedNow.Add(-2 * time.Minute),
		}))

		res, err := env.engine.Completion.Complete(ctx, technician, o.ID, env.signature(), nil)
		require.NoError(t, err)
		require.NotNil(t, res.Event.Lat)
		assert.Equal(t, -23.55, *res.Event.Lat)
	})
}

func TestCompleteRejectsWrongState(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	open := env.openOrder(t, ptr(certifiedID), nil)
	_, err := env.engine.Completion.Complete(ctx, technician, open.ID, env.signature(), nil)
	var te *dispatch.TransitionError
	require.ErrorAs(t, err, &te)
	assert.Empty(t, env.photos.rows)

	o := env.startedOrder(t)
	_, err = env.engine.Completion.Complete(ctx, technician, o.ID, env.signature(), nil)
	require.NoError(t, err)
	_, err = env.engine.Completion.Complete(ctx, technician, o.ID, env.signature(), nil)
	assert.ErrorAs(t, err, &te)
}

func TestCompleteSurvivesTimelineFailure(t *testing.T) {
	env := newTestEnv(t)
	o := env.startedOrder(t)
	env.events.failOn = models.EventCompletion

	res, err := env.engine.Completion.Complete(context.Background(), technician, o.ID, env.signature(), nil)
	require.NoError(t, err)
	assert.NotEmpty(t, res.EventError)
	assert.Nil(t, res.Event)
	assert.Equal(t, models.StatusCompleted, env.orders.get(o.ID).Status)
}
