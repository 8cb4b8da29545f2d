package models

// Submission represents a check request read from the Redis stream
type Submission struct {
	CheckID      string `json:"checkId"`
	SubmissionID string `json:"submissionId"`
	Text         string `json:"text"`
}
