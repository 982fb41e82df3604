// Package storage implements the durable write pipeline and read API query
// layer: a pgx-backed relational store for requests, streaming chunks, and
// conversation analyses.
package storage

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// RequestType classifies an inbound call per §4.D's classification rule.
type RequestType string

const (
	RequestTypeInference       RequestType = "inference"
	RequestTypeQueryEvaluation RequestType = "query_evaluation"
	RequestTypeQuota           RequestType = "quota"
	RequestTypeHealthCheck     RequestType = "health_check"
)

// Request is one row of api_requests.
type Request struct {
	RequestID   uuid.UUID
	Domain      string
	AccountID   string
	Timestamp   time.Time
	UpstreamModel string
	RequestType RequestType
	RequestBody json.RawMessage
	ResponseBody json.RawMessage

	Streaming bool

	InputTokens          *int64
	OutputTokens         *int64
	TotalTokens          *int64
	CacheCreationTokens  *int64
	CacheReadTokens      *int64

	FirstTokenMS *int64
	DurationMS   *int64

	ErrorText       *string
	ErrorKind       *string
	HTTPStatusCode  *int
	UpstreamRequestID *string
	ToolCallCount   int

	ConversationID *uuid.UUID
	BranchID       *string
	MessageCount   int
	ParentRequestID *uuid.UUID

	CurrentMessageHash *string
	ParentMessageHash  *string
	SystemHash         *string

	ParentTaskRequestID *uuid.UUID
	IsSubtask           bool
	TaskToolInvocation  json.RawMessage

	CreatedAt time.Time
}

// Chunk is one row of streaming_chunks.
type Chunk struct {
	RequestID  uuid.UUID
	ChunkIndex int
	Timestamp  time.Time
	Data       []byte
	TokenCount int
}

// AnalysisStatus is the lifecycle state of a conversation_analyses row.
type AnalysisStatus string

const (
	AnalysisPending    AnalysisStatus = "pending"
	AnalysisProcessing AnalysisStatus = "processing"
	AnalysisCompleted  AnalysisStatus = "completed"
	AnalysisFailed     AnalysisStatus = "failed"
)

// Analysis is one row of conversation_analyses.
type Analysis struct {
	ID             uuid.UUID
	ConversationID uuid.UUID
	BranchID       string
	Status         AnalysisStatus
	ModelName      *string
	Content        *string
	StructuredData json.RawMessage
	PromptTruncated bool
	ErrorText      *string
	RetryCount     int
	PromptTokens   *int64
	CompletionTokens *int64
	CustomPrompt   *string

	CreatedAt   time.Time
	UpdatedAt   time.Time
	GeneratedAt *time.Time
	CompletedAt *time.Time
	NextRetryAt *time.Time
}

// AuditEntry is one append-only row of analysis_audit_log.
type AuditEntry struct {
	Timestamp      time.Time
	ConversationID uuid.UUID
	BranchID       string
	Action         string
	Actor          string
	DetailsJSON    json.RawMessage
	AnalysisID     *uuid.UUID
}
