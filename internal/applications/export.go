package applications

import (
	"time"

	"jobboard/application-portal/application-portal-backend/internal/export"
)

var pipelineColumns = []export.Column{
	{Key: "id", Label: "Application ID"},
	{Key: "job_seeker_id", Label: "Job Seeker"},
	{Key: "status", Label: "Status"},
	{Key: "submitted_at", Label: "Submitted"},
	{Key: "status_changed_at", Label: "Status Changed"},
	{Key: "note", Label: "Latest Note"},
	{Key: "transitions", Label: "Transitions"},
}

// pipelineTable flattens a job's applications into export rows
func pipelineTable(job JobContext, apps []*Application, now time.Time) *export.Table {
	title := job.JobTitle
	if title == "" {
		title = "Applications"
	}

	rows := make([]map[string]interface{}, 0, len(apps))
	for _, app := range apps {
		row := map[string]interface{}{
			"id":                app.ID,
			"job_seeker_id":     app.JobSeekerID,
			"status":            string(app.Status),
			"submitted_at":      app.CreatedAt,
			"status_changed_at": app.UpdatedAt,
			"transitions":       0,
		}
		if last, ok := app.LastEntry(); ok {
			row["status_changed_at"] = last.Timestamp
			row["note"] = last.Note
			row["transitions"] = len(app.StatusHistory) - 1
		}
		rows = append(rows, row)
	}

	return &export.Table{
		Title:       title,
		Subtitle:    "Applicant pipeline",
		Columns:     pipelineColumns,
		Rows:        rows,
		GeneratedAt: now,
	}
}
