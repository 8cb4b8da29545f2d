package stream

import (
	"fmt"
	"strings"

	"github.com/RishiKendai/aegis-local/internal/models"
	"github.com/google/uuid"
)

// StreamMessage is a raw entry read from the check stream
type StreamMessage struct {
	ID     string
	Fields map[string]string
}

// ParseSubmission builds a Submission from stream fields. A missing
// checkId is generated; text is required.
func ParseSubmission(msg *StreamMessage) (*models.Submission, error) {
	text, ok := msg.Fields["text"]
	if !ok {
		return nil, fmt.Errorf("message %s has no text field", msg.ID)
	}
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("message %s has empty text", msg.ID)
	}

	checkID := msg.Fields["checkId"]
	if checkID == "" {
		checkID = uuid.NewString()
	}

	return &models.Submission{
		CheckID:      checkID,
		SubmissionID: msg.Fields["submissionId"],
		Text:         text,
	}, nil
}
