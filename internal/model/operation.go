// internal/model/operation.go
package model

import (
	"time"

	"github.com/google/uuid"
)

// OperationType represents the type of inbound operation
type OperationType string

const (
	OperationTypePower    OperationType = "POWER"
	OperationTypeCommand  OperationType = "COMMAND"
	OperationTypeProperty OperationType = "PROPERTY"
	OperationTypeOption   OperationType = "OPTION"
	OperationTypeFunction OperationType = "FUNCTION"
)

// OperationStatus represents the status of an operation
type OperationStatus string

const (
	OperationStatusSuccess OperationStatus = "SUCCESS"
	OperationStatusSkipped OperationStatus = "SKIPPED"
	OperationStatusFailed  OperationStatus = "FAILED"
)

// ProjectorOperation records one inbound request executed against a projector
type ProjectorOperation struct {
	ID            uuid.UUID       `json:"id"`
	ProjectorID   string          `json:"projector_id"`
	OperationType OperationType   `json:"operation_type"`
	Target        string          `json:"target"`
	Value         string          `json:"value,omitempty"`
	Status        OperationStatus `json:"status"`
	Reply         string          `json:"reply,omitempty"`
	Result        JSONObject      `json:"result,omitempty"`
	Attempts      int             `json:"attempts"`
	StartedAt     time.Time       `json:"started_at"`
	DurationMs    int64           `json:"duration_ms"`
	ErrorMessage  *string         `json:"error_message,omitempty"`
}

// NewProjectorOperation starts a record for target
func NewProjectorOperation(projectorID string, operationType OperationType, target, value string) *ProjectorOperation {
	return &ProjectorOperation{
		ID:            uuid.New(),
		ProjectorID:   projectorID,
		OperationType: operationType,
		Target:        target,
		Value:         value,
		StartedAt:     time.Now(),
	}
}

// Complete stamps the final status and duration
func (op *ProjectorOperation) Complete(status OperationStatus, err error) *ProjectorOperation {
	op.Status = status
	op.DurationMs = time.Since(op.StartedAt).Milliseconds()
	if err != nil {
		msg := err.Error()
		op.ErrorMessage = &msg
	}
	return op
}

// IsSuccessful reports whether the operation reached the projector and succeeded
func (op *ProjectorOperation) IsSuccessful() bool {
	return op.Status == OperationStatusSuccess
}
