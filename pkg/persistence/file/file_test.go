package file

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relaykit/journey/pkg/models"
	"github.com/relaykit/journey/pkg/persistence"
	"github.com/relaykit/journey/pkg/testutil"
)

func newTestPersistence(t *testing.T) *Persistence {
	t.Helper()

	return NewPersistence(t.TempDir())
}

func saveTestDelay(t *testing.T, p *Persistence, executeAt time.Time) *models.DelayRecord {
	t.Helper()

	execCtx := testutil.CreateTestContext()
	suspension := models.NewSuspension("node-1", &models.DelaySpec{Type: models.DelayFixed, Hours: 1}, executeAt.Add(-time.Hour))
	record := models.NewDelayRecord(suspension, execCtx)

	require.NoError(t, p.Delays().Save(context.Background(), record))

	return record
}

func TestWorkflowRepository_RoundTrip(t *testing.T) {
	p := newTestPersistence(t)
	ctx := context.Background()

	workflow := testutil.CreateTestWorkflow()
	require.NoError(t, p.Workflows().Save(ctx, workflow))

	loaded, err := p.Workflows().GetByID(ctx, workflow.ID)
	require.NoError(t, err)
	assert.Equal(t, workflow.ID, loaded.ID)
	assert.Equal(t, "subscription", loaded.TriggerType())

	_, err = p.Workflows().GetByID(ctx, "no-such-workflow")
	assert.ErrorIs(t, err, persistence.ErrWorkflowNotFound)
}

func TestWorkflowRepository_ListPublishedExcludesDrafts(t *testing.T) {
	p := newTestPersistence(t)
	ctx := context.Background()

	published := testutil.CreateTestWorkflow()
	draft := testutil.CreateTestWorkflow(testutil.WithStatus(models.WorkflowStatusDraft))

	require.NoError(t, p.Workflows().Save(ctx, published))
	require.NoError(t, p.Workflows().Save(ctx, draft))

	workflows, err := p.Workflows().ListPublished(ctx)
	require.NoError(t, err)
	require.Len(t, workflows, 1)
	assert.Equal(t, published.ID, workflows[0].ID)
}

func TestDelayRepository_ClaimIsAtMostOnce(t *testing.T) {
	p := newTestPersistence(t)
	ctx := context.Background()

	record := saveTestDelay(t, p, time.Now().UTC().Add(-time.Minute))
	reclaimBefore := time.Now().UTC().Add(-15 * time.Minute)

	const workers = 8

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		claimed int
	)

	for range workers {
		wg.Add(1)

		go func() {
			defer wg.Done()

			ok, err := p.Delays().Claim(ctx, record.ID, "worker", reclaimBefore)
			assert.NoError(t, err)

			if ok {
				mu.Lock()
				claimed++
				mu.Unlock()
			}
		}()
	}

	wg.Wait()

	assert.Equal(t, 1, claimed)

	loaded, err := p.Delays().GetByID(ctx, record.ID)
	require.NoError(t, err)
	assert.Equal(t, models.DelayProcessing, loaded.Status)
	require.NotNil(t, loaded.ClaimedAt)
}

func TestDelayRepository_StaleClaimIsReclaimable(t *testing.T) {
	p := newTestPersistence(t)
	ctx := context.Background()

	record := saveTestDelay(t, p, time.Now().UTC().Add(-time.Hour))

	ok, err := p.Delays().Claim(ctx, record.ID, "worker-1", time.Now().UTC().Add(-15*time.Minute))
	require.NoError(t, err)
	require.True(t, ok)

	// A fresh claim is not stale yet.
	ok, err = p.Delays().Claim(ctx, record.ID, "worker-2", time.Now().UTC().Add(-15*time.Minute))
	require.NoError(t, err)
	assert.False(t, ok)

	// With the cutoff in the future the claim counts as stale and another
	// worker may take it over.
	ok, err = p.Delays().Claim(ctx, record.ID, "worker-2", time.Now().UTC().Add(time.Minute))
	require.NoError(t, err)
	assert.True(t, ok)

	loaded, err := p.Delays().GetByID(ctx, record.ID)
	require.NoError(t, err)
	assert.Equal(t, "worker-2", loaded.ClaimedBy)
}

func TestDelayRepository_Transitions(t *testing.T) {
	p := newTestPersistence(t)
	ctx := context.Background()

	record := saveTestDelay(t, p, time.Now().UTC().Add(-time.Minute))

	// Complete requires a processing claim.
	err := p.Delays().Complete(ctx, record.ID, map[string]any{"done": true})
	assert.ErrorIs(t, err, persistence.ErrNotClaimable)

	ok, err := p.Delays().Claim(ctx, record.ID, "worker", time.Now().UTC().Add(-15*time.Minute))
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, p.Delays().Complete(ctx, record.ID, map[string]any{"done": true}))

	loaded, err := p.Delays().GetByID(ctx, record.ID)
	require.NoError(t, err)
	assert.Equal(t, models.DelayExecuted, loaded.Status)

	// Executed records are terminal.
	err = p.Delays().Cancel(ctx, record.ID)
	assert.ErrorIs(t, err, persistence.ErrNotClaimable)
}

func TestDelayRepository_DueOrdersByExecuteAt(t *testing.T) {
	p := newTestPersistence(t)
	ctx := context.Background()

	later := saveTestDelay(t, p, time.Now().UTC().Add(-time.Minute))
	earlier := saveTestDelay(t, p, time.Now().UTC().Add(-time.Hour))
	saveTestDelay(t, p, time.Now().UTC().Add(time.Hour)) // not due yet

	due, err := p.Delays().Due(ctx, time.Now().UTC(), time.Now().UTC().Add(-15*time.Minute), 10)
	require.NoError(t, err)
	require.Len(t, due, 2)
	assert.Equal(t, earlier.ID, due[0].ID)
	assert.Equal(t, later.ID, due[1].ID)
}

func TestWatermarkRepository_AdvanceIsMonotonic(t *testing.T) {
	p := newTestPersistence(t)
	ctx := context.Background()

	watermark, err := p.Watermarks().Get(ctx, "wf-1", "subscription")
	require.NoError(t, err)
	assert.Nil(t, watermark)

	first := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, p.Watermarks().Advance(ctx, "wf-1", "subscription", first))

	// Moving backwards is silently dropped.
	require.NoError(t, p.Watermarks().Advance(ctx, "wf-1", "subscription", first.Add(-time.Hour)))

	watermark, err = p.Watermarks().Get(ctx, "wf-1", "subscription")
	require.NoError(t, err)
	require.NotNil(t, watermark)
	assert.True(t, watermark.LastExecutionAt.Equal(first))

	// Moving forward sticks.
	second := first.Add(time.Hour)
	require.NoError(t, p.Watermarks().Advance(ctx, "wf-1", "subscription", second))

	watermark, err = p.Watermarks().Get(ctx, "wf-1", "subscription")
	require.NoError(t, err)
	assert.True(t, watermark.LastExecutionAt.Equal(second))
}

func TestWatermarkRepository_PairsAreIndependent(t *testing.T) {
	p := newTestPersistence(t)
	ctx := context.Background()

	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, p.Watermarks().Advance(ctx, "wf-1", "subscription", at))

	other, err := p.Watermarks().Get(ctx, "wf-1", "signup")
	require.NoError(t, err)
	assert.Nil(t, other)
}

func TestEntityRepository_UnprocessedSince(t *testing.T) {
	p := newTestPersistence(t)
	ctx := context.Background()

	old := testutil.CreateTestEntity(func(e *models.Entity) {
		e.CreatedAt = time.Now().UTC().Add(-2 * time.Hour)
	})
	recent := testutil.CreateTestEntity()
	processed := testutil.CreateTestEntity(func(e *models.Entity) {
		at := time.Now().UTC()
		e.ProcessedAt = &at
	})
	otherType := testutil.CreateTestEntity(func(e *models.Entity) {
		e.Type = "signup"
	})

	for _, entity := range []*models.Entity{old, recent, processed, otherType} {
		require.NoError(t, p.Entities().Save(ctx, entity))
	}

	entities, err := p.Entities().UnprocessedSince(ctx, "subscription", "", time.Now().UTC().Add(-time.Hour))
	require.NoError(t, err)
	require.Len(t, entities, 1)
	assert.Equal(t, recent.ID, entities[0].ID)

	// A wider window picks up the old entity too, oldest first.
	entities, err = p.Entities().UnprocessedSince(ctx, "subscription", "", time.Now().UTC().Add(-24*time.Hour))
	require.NoError(t, err)
	require.Len(t, entities, 2)
	assert.Equal(t, old.ID, entities[0].ID)
}

func TestEntityRepository_StateFilter(t *testing.T) {
	p := newTestPersistence(t)
	ctx := context.Background()

	active := testutil.CreateTestEntity()
	cancelled := testutil.CreateTestEntity(func(e *models.Entity) {
		e.State = "cancelled"
	})

	require.NoError(t, p.Entities().Save(ctx, active))
	require.NoError(t, p.Entities().Save(ctx, cancelled))

	entities, err := p.Entities().UnprocessedSince(ctx, "subscription", "active", time.Now().UTC().Add(-time.Hour))
	require.NoError(t, err)
	require.Len(t, entities, 1)
	assert.Equal(t, active.ID, entities[0].ID)
}

func TestEntityRepository_MarkProcessed(t *testing.T) {
	p := newTestPersistence(t)
	ctx := context.Background()

	entity := testutil.CreateTestEntity()
	require.NoError(t, p.Entities().Save(ctx, entity))

	at := time.Now().UTC()
	require.NoError(t, p.Entities().MarkProcessed(ctx, entity.ID, at))

	entities, err := p.Entities().UnprocessedSince(ctx, "subscription", "", time.Now().UTC().Add(-time.Hour))
	require.NoError(t, err)
	assert.Empty(t, entities)

	err = p.Entities().MarkProcessed(ctx, "no-such-entity", at)
	assert.ErrorIs(t, err, persistence.ErrEntityNotFound)
}

func TestExecutionRepository_RoundTripAndList(t *testing.T) {
	p := newTestPersistence(t)
	ctx := context.Background()

	record := &models.ExecutionRecord{
		ID:         "exec-1",
		WorkflowID: "wf-1",
		Status:     models.ExecutionCompleted,
		CreatedAt:  time.Now().UTC(),
		UpdatedAt:  time.Now().UTC(),
	}
	require.NoError(t, p.Executions().Save(ctx, record))

	other := &models.ExecutionRecord{
		ID:         "exec-2",
		WorkflowID: "wf-2",
		Status:     models.ExecutionFailed,
		CreatedAt:  time.Now().UTC(),
		UpdatedAt:  time.Now().UTC(),
	}
	require.NoError(t, p.Executions().Save(ctx, other))

	loaded, err := p.Executions().GetByID(ctx, "exec-1")
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionCompleted, loaded.Status)

	records, err := p.Executions().List(ctx, persistence.ListExecutionsOptions{WorkflowID: "wf-1"})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "exec-1", records[0].ID)

	records, err = p.Executions().List(ctx, persistence.ListExecutionsOptions{Status: models.ExecutionFailed})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "exec-2", records[0].ID)

	_, err = p.Executions().GetByID(ctx, "no-such-execution")
	assert.ErrorIs(t, err, persistence.ErrExecutionNotFound)
}
