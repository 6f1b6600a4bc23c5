package model

import "time"

// OperationType identifies a control-plane operation recorded in the log
type OperationType string

const (
	OperationTypeMoveCollection OperationType = "move_collection"
	OperationTypeUpgrade        OperationType = "upgrade"
	OperationTypeRebalance      OperationType = "rebalance"
)

// OperationStatus tracks an operation's lifecycle
type OperationStatus string

const (
	OperationStatusPending    OperationStatus = "pending"
	OperationStatusInProgress OperationStatus = "in_progress"
	OperationStatusCompleted  OperationStatus = "completed"
	OperationStatusFailed     OperationStatus = "failed"
)

// Operation is one audit record of a control-plane mutation
type Operation struct {
	OperationID  string
	Type         OperationType
	Target       string
	Status       OperationStatus
	ErrorMessage string
	StartedAt    time.Time
	CompletedAt  *time.Time
}
