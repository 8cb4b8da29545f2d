package models

import (
	"time"
)

type Step string

const (
	StepQueued        Step = "queued"
	StepLoadingCorpus Step = "loading_corpus"
	StepScoring       Step = "scoring"
	StepCompleted     Step = "completed"
	StepFailed        Step = "failed"
)

// Valid reports whether s is one of the known check steps.
func (s Step) Valid() bool {
	switch s {
	case StepQueued, StepLoadingCorpus, StepScoring, StepCompleted, StepFailed:
		return true
	}
	return false
}

type Risk string

const (
	RiskClean            Risk = "clean"
	RiskSuspicious       Risk = "suspicious"
	RiskHighlySuspicious Risk = "highly suspicious"
	RiskNearCopy         Risk = "near copy"
)

// SimilarityResult is the outcome of one scorer over a corpus.
// Source is empty only when the corpus was empty.
type SimilarityResult struct {
	Score  int    `bson:"score" json:"score"`   // 0..100
	Source string `bson:"source" json:"source"` // matched reference id
}

// Matched reports whether a reference document was identified.
func (r SimilarityResult) Matched() bool {
	return r.Source != ""
}

// CheckReport combines both local scorers for one submission
type CheckReport struct {
	CheckID      string           `bson:"checkId" json:"checkId"`
	SubmissionID string           `bson:"submissionId,omitempty" json:"submissionId,omitempty"`
	Provider     Provider         `bson:"provider" json:"provider"`
	TokenSet     SimilarityResult `bson:"tokenSet" json:"tokenSet"`
	Fingerprint  SimilarityResult `bson:"fingerprint" json:"fingerprint"`
	Distance     int              `bson:"distance" json:"distance"` // hamming distance of the nearest fingerprint
	Score        int              `bson:"score" json:"score"`
	Source       string           `bson:"source" json:"source"`
	Risk         Risk             `bson:"risk" json:"risk"`
	CorpusSize   int              `bson:"corpusSize" json:"corpusSize"`
	Status       Step             `bson:"status" json:"status"`
	Error        string           `bson:"error,omitempty" json:"error,omitempty"`
	CreatedAt    time.Time        `bson:"createdAt" json:"createdAt"`
}

// ScoreRequest represents a synchronous scoring request
type ScoreRequest struct {
	Text string `json:"text"`
}

// CheckRequest represents a request to queue a check
type CheckRequest struct {
	SubmissionID string `json:"submissionId"`
	Text         string `json:"text" binding:"required"`
}

// CheckResponse represents the response from the checks endpoint
type CheckResponse struct {
	Step    Step         `json:"step"`
	CheckID string       `json:"checkId"`
	Report  *CheckReport `json:"report,omitempty"`
}

// CorpusEntry describes a loaded reference document
type CorpusEntry struct {
	ID    string `json:"id"`
	Chars int    `json:"chars"`
}
