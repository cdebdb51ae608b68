package workflows

import (
	"context"
	"fmt"

	"go.temporal.io/sdk/activity"

	"github.com/samirrijal/hazardmap/internal/core/domain"
	"github.com/samirrijal/hazardmap/internal/core/usecases"
)

// SubmissionActivities holds the activity implementations for the submission workflow.
type SubmissionActivities struct {
	Submissions *usecases.SubmissionService
}

// SubmitRecord stores a validated submission and returns the record id.
// The submission id makes retries idempotent on the PostGIS backend.
func (a *SubmissionActivities) SubmitRecord(ctx context.Context, sub domain.Submission) (string, error) {
	id, err := a.Submissions.Store(ctx, &sub)
	if err != nil {
		return "", fmt.Errorf("store submission %s: %w", sub.ID, err)
	}
	activity.GetLogger(ctx).Info("record stored", "kind", sub.Kind, "id", id)
	return id, nil
}

// PublishRecordEvent announces the new record.
func (a *SubmissionActivities) PublishRecordEvent(ctx context.Context, kind domain.Kind, id string) error {
	if err := a.Submissions.Announce(ctx, domain.EventCreated, kind, id); err != nil {
		return fmt.Errorf("publish %s %s: %w", kind, id, err)
	}
	return nil
}

// DeleteRecord removes a stored record (saga compensation / rollback).
func (a *SubmissionActivities) DeleteRecord(ctx context.Context, kind domain.Kind, id string) error {
	if err := a.Submissions.Retract(ctx, kind, id); err != nil {
		return fmt.Errorf("delete %s %s: %w", kind, id, err)
	}
	activity.GetLogger(ctx).Info("record deleted (saga compensation)", "kind", kind, "id", id)
	return nil
}
