package model

// WebSocket message types
const (
	WSMessageTypeStatus   = "status"
	WSMessageTypeProgress = "progress"
	WSMessageTypeError    = "error"
	WSMessageTypePing     = "ping"
	WSMessageTypePong     = "pong"
)

// WSMessage represents a generic WebSocket message
type WSMessage struct {
	Type string `json:"type"`
}

// WSStatusMessage announces a job status transition
type WSStatusMessage struct {
	Type string  `json:"type"`
	Job  JobView `json:"job"`
}

// WSProgressMessage carries the aggregate queue progress
type WSProgressMessage struct {
	Type      string `json:"type"`
	Processed int    `json:"processed"`
	Total     int    `json:"total"`
	Percent   int    `json:"percent"`
}

// WSErrorMessage represents an error
type WSErrorMessage struct {
	Type  string  `json:"type"`
	JobID string  `json:"jobId"`
	Error WSError `json:"error"`
}

// WSError represents error details
type WSError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
