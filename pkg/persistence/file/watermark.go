package file

import (
	"context"
	"time"

	"github.com/relaykit/journey/pkg/models"
)

const watermarkCollection = "watermarks"

// WatermarkRepository stores one watermark file per (workflow, trigger
// type) pair; the pair is the file name, which is what keeps it unique.
type WatermarkRepository struct {
	p *Persistence
}

func watermarkID(workflowID, triggerType string) string {
	return workflowID + "__" + triggerType
}

func (r *WatermarkRepository) Get(ctx context.Context, workflowID, triggerType string) (*models.ExecutionWatermark, error) {
	r.p.mu.Lock()
	defer r.p.mu.Unlock()

	var watermark models.ExecutionWatermark

	found, err := r.p.read(watermarkCollection, watermarkID(workflowID, triggerType), &watermark)
	if err != nil {
		return nil, err
	}

	if !found {
		return nil, nil
	}

	return &watermark, nil
}

func (r *WatermarkRepository) Advance(ctx context.Context, workflowID, triggerType string, to time.Time) error {
	r.p.mu.Lock()
	defer r.p.mu.Unlock()

	id := watermarkID(workflowID, triggerType)

	var watermark models.ExecutionWatermark

	found, err := r.p.read(watermarkCollection, id, &watermark)
	if err != nil {
		return err
	}

	// Monotonic: never move backwards.
	if found && !watermark.LastExecutionAt.Before(to) {
		return nil
	}

	watermark = models.ExecutionWatermark{
		WorkflowID:      workflowID,
		TriggerType:     triggerType,
		LastExecutionAt: to,
		UpdatedAt:       time.Now().UTC(),
	}

	return r.p.write(watermarkCollection, id, &watermark)
}
