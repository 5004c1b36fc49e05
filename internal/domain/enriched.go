package domain

import "time"

type Analysis struct {
	Text      string    `json:"text"`
	Provider  string    `json:"provider,omitempty"`
	Model     string    `json:"model,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

type StorageOutcome struct {
	Target       string `json:"target"`
	Range        string `json:"range,omitempty"`
	CellsWritten int64  `json:"cells_written"`
	Message      string `json:"message,omitempty"`
}

// EnrichedRecord is the output of one team's pipeline run.
type EnrichedRecord struct {
	Team           *TeamRecord    `json:"team"`
	Analysis       Analysis       `json:"analysis"`
	StorageOutcome StorageOutcome `json:"storage_outcome"`
}
