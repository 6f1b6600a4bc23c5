package model

// RebalanceJobState mirrors the substrate's background job states
type RebalanceJobState string

const (
	RebalanceStateScheduled  RebalanceJobState = "scheduled"
	RebalanceStateRunning    RebalanceJobState = "running"
	RebalanceStateCancelling RebalanceJobState = "cancelling"
	RebalanceStateFailing    RebalanceJobState = "failing"
	RebalanceStateCancelled  RebalanceJobState = "cancelled"
	RebalanceStateFailed     RebalanceJobState = "failed"
	RebalanceStateFinished   RebalanceJobState = "finished"
)

// InFlight reports whether a job in this state still holds the rebalancer
func (s RebalanceJobState) InFlight() bool {
	switch s {
	case RebalanceStateScheduled, RebalanceStateRunning,
		RebalanceStateCancelling, RebalanceStateFailing:
		return true
	default:
		return false
	}
}

// RebalanceJob is one row of the substrate's rebalance job queue
type RebalanceJob struct {
	JobID   int64
	State   RebalanceJobState
	Details string
}
