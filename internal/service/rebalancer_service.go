package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/papyrusdb/controlplane/internal/apierror"
	"github.com/papyrusdb/controlplane/internal/model"
	"github.com/papyrusdb/controlplane/internal/store"
	"go.uber.org/zap"
)

// RebalancerStatus is the rebalancer status view
type RebalancerStatus struct {
	Mode        string               `json:"mode"`
	RunningJobs []model.RebalanceJob `json:"runningJobs"`
	OtherJobs   []model.RebalanceJob `json:"otherJobs"`
	Strategies  []string             `json:"strategies"`
}

// RebalancerService drives the substrate's background shard rebalancer.
// Every operation is rejected when the rebalancer feature is disabled.
type RebalancerService struct {
	rebalancer store.RebalancerStore
	operations store.OperationLog
	enabled    bool
	logger     *zap.Logger
}

// NewRebalancerService creates a new rebalancer service
func NewRebalancerService(rebalancer store.RebalancerStore, operations store.OperationLog, enabled bool, logger *zap.Logger) *RebalancerService {
	return &RebalancerService{
		rebalancer: rebalancer,
		operations: operations,
		enabled:    enabled,
		logger:     logger,
	}
}

func (s *RebalancerService) gate() error {
	if !s.enabled {
		return apierror.New(apierror.CodeCommandNotSupported, "shard rebalancer is not enabled")
	}
	return nil
}

// Status reports in-flight and settled rebalance jobs plus the available
// strategies.
func (s *RebalancerService) Status(ctx context.Context) (*RebalancerStatus, error) {
	if err := s.gate(); err != nil {
		return nil, err
	}

	jobs, err := s.rebalancer.ListJobs(ctx)
	if err != nil {
		return nil, apierror.Wrap(apierror.CodeInternalError, "failed to read rebalance jobs", err)
	}
	strategies, err := s.rebalancer.ListStrategies(ctx)
	if err != nil {
		return nil, apierror.Wrap(apierror.CodeInternalError, "failed to read rebalance strategies", err)
	}

	status := &RebalancerStatus{
		Mode:        "full",
		RunningJobs: make([]model.RebalanceJob, 0),
		OtherJobs:   make([]model.RebalanceJob, 0),
		Strategies:  strategies,
	}
	for _, job := range jobs {
		if job.State.InFlight() {
			status.RunningJobs = append(status.RunningJobs, job)
		} else {
			status.OtherJobs = append(status.OtherJobs, job)
		}
	}
	return status, nil
}

// Start schedules a background rebalance, optionally selecting a strategy.
// Rejected while another rebalance is in flight.
func (s *RebalancerService) Start(ctx context.Context, strategy string) (int64, error) {
	if err := s.gate(); err != nil {
		return 0, err
	}

	jobs, err := s.rebalancer.ListJobs(ctx)
	if err != nil {
		return 0, apierror.Wrap(apierror.CodeInternalError, "failed to read rebalance jobs", err)
	}
	for _, job := range jobs {
		if job.State.InFlight() {
			return 0, apierror.Newf(apierror.CodeBackgroundOperationInProgress,
				"rebalance job %d is already %s", job.JobID, job.State)
		}
	}

	if strategy != "" {
		strategies, err := s.rebalancer.ListStrategies(ctx)
		if err != nil {
			return 0, apierror.Wrap(apierror.CodeInternalError, "failed to read rebalance strategies", err)
		}
		known := false
		for _, name := range strategies {
			if name == strategy {
				known = true
				break
			}
		}
		if !known {
			return 0, apierror.Newf(apierror.CodeInvalidOptions, "unknown rebalance strategy %q", strategy)
		}
		if err := s.rebalancer.SetDefaultStrategy(ctx, strategy); err != nil {
			return 0, apierror.Wrap(apierror.CodeInternalError, "failed to select rebalance strategy", err)
		}
	}

	jobID, err := s.rebalancer.Start(ctx)
	if err != nil {
		return 0, apierror.Wrap(apierror.CodeInternalError, "failed to start rebalance", err)
	}

	// The scheduled job runs in the background; the operation stays pending
	// until the substrate's job tracker settles it.
	op := &model.Operation{
		OperationID: uuid.New().String(),
		Type:        model.OperationTypeRebalance,
		Target:      fmt.Sprintf("job %d", jobID),
		Status:      model.OperationStatusPending,
		StartedAt:   time.Now(),
	}
	if err := s.operations.Create(ctx, op); err != nil {
		s.logger.Error("Failed to record rebalance operation", zap.Error(err))
	}
	return jobID, nil
}

// Stop cancels the in-flight rebalance, reporting whether one was active
func (s *RebalancerService) Stop(ctx context.Context) (bool, error) {
	if err := s.gate(); err != nil {
		return false, err
	}

	wasActive, err := s.rebalancer.Stop(ctx)
	if err != nil {
		return false, apierror.Wrap(apierror.CodeInternalError, "failed to stop rebalance", err)
	}
	if wasActive {
		s.logger.Info("Rebalance cancelled")
	}
	return wasActive, nil
}
