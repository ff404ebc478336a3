package model

import "time"

// Job status
type JobStatus string

const (
	JobStatusQueued      JobStatus = "queued"
	JobStatusCompressing JobStatus = "compressing"
	JobStatusCompressed  JobStatus = "compressed"
	JobStatusError       JobStatus = "error"
	JobStatusCancelled   JobStatus = "cancelled"
)

// SourceFile holds the original upload exactly as it was admitted
type SourceFile struct {
	Name string `json:"name"`
	MIME string `json:"mime"`
	Size int64  `json:"size"`
	Data []byte `json:"-"`
}

// Result holds the compressed output. Present only while the job is compressed.
type Result struct {
	Name   string       `json:"name"`
	Size   int64        `json:"size"`
	Ratio  int          `json:"ratio"`
	Format OutputFormat `json:"format"`
	Data   []byte       `json:"-"`
}

// Job represents one submitted image in the compression queue.
// Settings are not stored on the job: compression always uses the settings
// current at the moment the job is admitted, so a re-run may produce a
// different result than the first pass.
type Job struct {
	ID          string     `json:"id"`
	Status      JobStatus  `json:"status"`
	Source      SourceFile `json:"source"`
	Result      *Result    `json:"result,omitempty"`
	Error       *string    `json:"error,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	StartedAt   *time.Time `json:"startedAt,omitempty"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
}

// IsTerminal returns true if the job is in a terminal state
func (j *Job) IsTerminal() bool {
	return j.Status == JobStatusCompressed || j.Status == JobStatusError || j.Status == JobStatusCancelled
}

// Clone returns a snapshot copy safe to hand outside the registry.
// Byte slices are shared: source and result data are never mutated in place.
func (j *Job) Clone() *Job {
	out := *j
	if j.Result != nil {
		result := *j.Result
		out.Result = &result
	}
	if j.Error != nil {
		msg := *j.Error
		out.Error = &msg
	}
	return &out
}
