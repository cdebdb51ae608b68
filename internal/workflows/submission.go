package workflows

import (
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/samirrijal/hazardmap/internal/core/domain"
)

// TaskQueue is the default queue the reporter worker polls.
const TaskQueue = "hazardmap-submissions"

// WorkflowID derives a deterministic workflow id from the submission id.
func WorkflowID(submissionID string) string {
	return "submission-" + submissionID
}

// SubmissionResult is returned by SubmissionWorkflow.
type SubmissionResult struct {
	RecordID string
}

// SubmissionWorkflow stores a record and announces it. If the announcement
// fails after retries, the record is deleted again (saga compensation).
func SubmissionWorkflow(ctx workflow.Context, sub domain.Submission) (*SubmissionResult, error) {
	logger := workflow.GetLogger(ctx)
	logger.Info("Starting submission workflow", "kind", sub.Kind, "submission", sub.ID)

	actOpts := workflow.ActivityOptions{
		StartToCloseTimeout: 30 * time.Second,
		RetryPolicy: &temporal.RetryPolicy{
			MaximumAttempts: 3,
		},
	}
	ctx = workflow.WithActivityOptions(ctx, actOpts)

	// Step 1: Store the record
	var recordID string
	err := workflow.ExecuteActivity(ctx, "SubmitRecord", sub).Get(ctx, &recordID)
	if err != nil {
		return nil, err
	}

	// Step 2: Announce it
	err = workflow.ExecuteActivity(ctx, "PublishRecordEvent", sub.Kind, recordID).Get(ctx, nil)
	if err != nil {
		logger.Warn("publishing record event failed, compensating", "error", err)
		// Compensate: delete the record
		if derr := workflow.ExecuteActivity(ctx, "DeleteRecord", sub.Kind, recordID).Get(ctx, nil); derr != nil {
			logger.Error("compensation failed, record left behind", "record", recordID, "error", derr)
		}
		return nil, err
	}

	logger.Info("Submission stored", "record", recordID)
	return &SubmissionResult{RecordID: recordID}, nil
}
