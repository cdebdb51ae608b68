package telemetry

// Span attribute keys shared by the record pipeline.
const (
	AttrRecordKind  = "hazardmap.record.kind"
	AttrRecordCount = "hazardmap.record.count"
	AttrRejected    = "hazardmap.record.rejected"
	AttrBiasSource  = "hazardmap.geocode.bias"
	AttrWorkflowID  = "hazardmap.submission.workflow_id"
)
