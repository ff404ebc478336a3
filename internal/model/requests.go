package model

import "time"

// RejectedFile reports a file that failed admission validation.
// Rejections are non-fatal: the rest of the batch is still enqueued.
type RejectedFile struct {
	Name   string `json:"name"`
	Reason string `json:"reason"`
}

// JobView is the JSON-friendly job snapshot returned to the presentation layer
type JobView struct {
	ID          string     `json:"id"`
	Status      JobStatus  `json:"status"`
	Name        string     `json:"name"`
	MIME        string     `json:"mime"`
	Size        int64      `json:"size"`
	Result      *Result    `json:"result,omitempty"`
	Error       *string    `json:"error,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	StartedAt   *time.Time `json:"startedAt,omitempty"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
}

// NewJobView builds the external view of a job snapshot
func NewJobView(j *Job) JobView {
	return JobView{
		ID:          j.ID,
		Status:      j.Status,
		Name:        j.Source.Name,
		MIME:        j.Source.MIME,
		Size:        j.Source.Size,
		Result:      j.Result,
		Error:       j.Error,
		CreatedAt:   j.CreatedAt,
		StartedAt:   j.StartedAt,
		CompletedAt: j.CompletedAt,
	}
}

// EnqueueResponse is returned from POST /api/jobs
type EnqueueResponse struct {
	Jobs     []JobView      `json:"jobs"`
	Rejected []RejectedFile `json:"rejected,omitempty"`
}

// JobListResponse is returned from GET /api/jobs
type JobListResponse struct {
	Jobs   []JobView `json:"jobs"`
	Paused bool      `json:"paused"`
}

// ProgressResponse is the aggregate counter pair plus the derived percentage
type ProgressResponse struct {
	Processed int `json:"processed"`
	Total     int `json:"total"`
	Percent   int `json:"percent"`
}

// UpdateSettingsRequest carries a partial settings update. Absent fields keep
// their current value.
type UpdateSettingsRequest struct {
	Quality   *float64 `json:"quality" validate:"omitempty,gte=0.1,lte=1"`
	MaxWidth  *int     `json:"maxWidth" validate:"omitempty,gt=0"`
	MaxHeight *int     `json:"maxHeight" validate:"omitempty,gt=0"`
	Format    *string  `json:"outputFormat" validate:"omitempty,oneof=auto jpeg png webp"`
}
