package workflows_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"
	"go.temporal.io/sdk/testsuite"

	"github.com/samirrijal/hazardmap/internal/core/domain"
	"github.com/samirrijal/hazardmap/internal/workflows"
)

type SubmissionWorkflowSuite struct {
	suite.Suite
	testsuite.WorkflowTestSuite
	env *testsuite.TestWorkflowEnvironment
}

func (s *SubmissionWorkflowSuite) SetupTest() {
	s.env = s.NewTestWorkflowEnvironment()
	s.env.RegisterActivity(&workflows.SubmissionActivities{})
}

func (s *SubmissionWorkflowSuite) AfterTest(suiteName, testName string) {
	s.env.AssertExpectations(s.T())
}

func incidentSubmission() domain.Submission {
	return domain.Submission{
		ID:       "5d0c3f3e-4c1a-4f8e-9b57-1d3c2e9a7f10",
		Kind:     domain.KindIncident,
		Name:     "Gasleck",
		Location: &domain.GeoPoint{Lat: 52.52, Lon: 13.405},
		Severity: domain.SeverityCritical,
	}
}

func (s *SubmissionWorkflowSuite) TestStoresAndAnnounces() {
	var a *workflows.SubmissionActivities
	s.env.OnActivity(a.SubmitRecord, mock.Anything, mock.Anything).Return("41", nil).Once()
	s.env.OnActivity(a.PublishRecordEvent, mock.Anything, domain.KindIncident, "41").Return(nil).Once()

	s.env.ExecuteWorkflow(workflows.SubmissionWorkflow, incidentSubmission())

	s.True(s.env.IsWorkflowCompleted())
	s.NoError(s.env.GetWorkflowError())

	var res workflows.SubmissionResult
	s.NoError(s.env.GetWorkflowResult(&res))
	s.Equal("41", res.RecordID)
}

func (s *SubmissionWorkflowSuite) TestCompensatesWhenPublishFails() {
	var a *workflows.SubmissionActivities
	s.env.OnActivity(a.SubmitRecord, mock.Anything, mock.Anything).Return("41", nil).Once()
	s.env.OnActivity(a.PublishRecordEvent, mock.Anything, domain.KindIncident, "41").
		Return(errors.New("nats unavailable"))
	s.env.OnActivity(a.DeleteRecord, mock.Anything, domain.KindIncident, "41").Return(nil).Once()

	s.env.ExecuteWorkflow(workflows.SubmissionWorkflow, incidentSubmission())

	s.True(s.env.IsWorkflowCompleted())
	s.Error(s.env.GetWorkflowError())
}

func (s *SubmissionWorkflowSuite) TestCompensationFailureKeepsPublishError() {
	var a *workflows.SubmissionActivities
	s.env.OnActivity(a.SubmitRecord, mock.Anything, mock.Anything).Return("41", nil).Once()
	s.env.OnActivity(a.PublishRecordEvent, mock.Anything, domain.KindIncident, "41").
		Return(errors.New("nats unavailable"))
	s.env.OnActivity(a.DeleteRecord, mock.Anything, domain.KindIncident, "41").
		Return(errors.New("backend down"))

	s.env.ExecuteWorkflow(workflows.SubmissionWorkflow, incidentSubmission())

	s.True(s.env.IsWorkflowCompleted())
	err := s.env.GetWorkflowError()
	s.Require().Error(err)
	s.Contains(err.Error(), "nats unavailable")
	s.NotContains(err.Error(), "backend down")
}

func (s *SubmissionWorkflowSuite) TestStoreFailureSkipsCompensation() {
	var a *workflows.SubmissionActivities
	s.env.OnActivity(a.SubmitRecord, mock.Anything, mock.Anything).Return("", errors.New("backend down"))

	s.env.ExecuteWorkflow(workflows.SubmissionWorkflow, incidentSubmission())

	s.True(s.env.IsWorkflowCompleted())
	s.Error(s.env.GetWorkflowError())
}

func TestSubmissionWorkflowSuite(t *testing.T) {
	suite.Run(t, new(SubmissionWorkflowSuite))
}

func TestWorkflowID(t *testing.T) {
	if got := workflows.WorkflowID("abc"); got != "submission-abc" {
		t.Errorf("unexpected workflow id %s", got)
	}
}
