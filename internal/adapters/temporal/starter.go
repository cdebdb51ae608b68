// Package temporal hands submissions to the reporter worker.
package temporal

import (
	"context"
	"fmt"

	"go.temporal.io/sdk/client"

	"github.com/samirrijal/hazardmap/internal/core/domain"
	"github.com/samirrijal/hazardmap/internal/workflows"
)

// Starter implements ports.SubmissionStarter.
type Starter struct {
	client    client.Client
	taskQueue string
}

// Dial connects to the Temporal frontend.
func Dial(hostPort, namespace, taskQueue string) (*Starter, error) {
	c, err := client.Dial(client.Options{
		HostPort:  hostPort,
		Namespace: namespace,
	})
	if err != nil {
		return nil, fmt.Errorf("temporal client: %w", err)
	}
	return NewStarter(c, taskQueue), nil
}

// NewStarter wraps an existing client.
func NewStarter(c client.Client, taskQueue string) *Starter {
	if taskQueue == "" {
		taskQueue = workflows.TaskQueue
	}
	return &Starter{client: c, taskQueue: taskQueue}
}

// StartSubmission starts SubmissionWorkflow and returns its workflow id.
// Starting the same submission twice attaches to the running execution.
func (s *Starter) StartSubmission(ctx context.Context, sub *domain.Submission) (string, error) {
	opts := client.StartWorkflowOptions{
		ID:        workflows.WorkflowID(sub.ID),
		TaskQueue: s.taskQueue,
	}
	run, err := s.client.ExecuteWorkflow(ctx, opts, workflows.SubmissionWorkflow, *sub)
	if err != nil {
		return "", fmt.Errorf("start workflow: %w", err)
	}
	return run.GetID(), nil
}

// Close releases the client.
func (s *Starter) Close() {
	s.client.Close()
}
