package models

import (
	"time"

	"github.com/pablopda/linux-speech-tools/internal/segment"
)

// ChunkRequest asks for the chunking of a text without synthesizing it.
type ChunkRequest struct {
	Text     string `json:"text" binding:"required"`
	Language string `json:"language,omitempty"` // code, name or BCP 47 tag; empty detects
}

// ChunkResponse lists the chunks of a ChunkRequest in order.
type ChunkResponse struct {
	Language string          `json:"language"`
	Count    int             `json:"count"`
	Chunks   []segment.Chunk `json:"chunks"`
}

// SpeechRequest is the OpenAI compatible speech request body.
type SpeechRequest struct {
	Model    string  `json:"model"`
	Input    string  `json:"input" binding:"required"`
	Voice    string  `json:"voice"`
	Speed    float64 `json:"speed"`
	Language string  `json:"language,omitempty"`
}

// JobStatus represents the status of a synthesis job.
type JobStatus string

const (
	JobStatusProcessing JobStatus = "processing"
	JobStatusComplete   JobStatus = "complete"
	JobStatusError      JobStatus = "error"
)

// Job represents an asynchronous long-text synthesis job.
type Job struct {
	ID          string     `json:"job_id"`
	Status      JobStatus  `json:"status"`
	Progress    string     `json:"progress,omitempty"` // e.g. "5/19"
	Chunks      int        `json:"chunks,omitempty"`
	Error       string     `json:"error,omitempty"`
	AudioData   []byte     `json:"-"`
	CreatedAt   time.Time  `json:"created_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}
