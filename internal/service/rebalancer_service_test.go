package service

import (
	"context"
	"errors"
	"testing"

	"github.com/papyrusdb/controlplane/internal/apierror"
	"github.com/papyrusdb/controlplane/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"
)

func newRebalancerFixture(enabled bool) (*MockRebalancerStore, *MockOperationLog, *RebalancerService) {
	rebalancer := new(MockRebalancerStore)
	operations := new(MockOperationLog)
	svc := NewRebalancerService(rebalancer, operations, enabled, zap.NewNop())
	return rebalancer, operations, svc
}

func TestRebalancerDisabled(t *testing.T) {
	rebalancer, _, svc := newRebalancerFixture(false)
	ctx := context.Background()

	_, err := svc.Status(ctx)
	assert.Equal(t, apierror.CodeCommandNotSupported, apierror.CodeOf(err))

	_, err = svc.Start(ctx, "")
	assert.Equal(t, apierror.CodeCommandNotSupported, apierror.CodeOf(err))

	_, err = svc.Stop(ctx)
	assert.Equal(t, apierror.CodeCommandNotSupported, apierror.CodeOf(err))

	rebalancer.AssertNotCalled(t, "ListJobs", mock.Anything)
	rebalancer.AssertNotCalled(t, "Start", mock.Anything)
	rebalancer.AssertNotCalled(t, "Stop", mock.Anything)
}

func TestRebalancerStatusSplitsJobsByState(t *testing.T) {
	rebalancer, _, svc := newRebalancerFixture(true)
	ctx := context.Background()

	rebalancer.On("ListJobs", ctx).Return([]model.RebalanceJob{
		{JobID: 12, State: model.RebalanceStateRunning},
		{JobID: 11, State: model.RebalanceStateFinished},
		{JobID: 10, State: model.RebalanceStateCancelled},
	}, nil)
	rebalancer.On("ListStrategies", ctx).Return([]string{"by_shard_count", "by_disk_size"}, nil)

	status, err := svc.Status(ctx)

	assert.NoError(t, err)
	assert.Equal(t, "full", status.Mode)
	assert.Len(t, status.RunningJobs, 1)
	assert.Equal(t, int64(12), status.RunningJobs[0].JobID)
	assert.Len(t, status.OtherJobs, 2)
	assert.Equal(t, []string{"by_shard_count", "by_disk_size"}, status.Strategies)
}

func TestRebalancerStartRejectedWhileInFlight(t *testing.T) {
	rebalancer, operations, svc := newRebalancerFixture(true)
	ctx := context.Background()

	rebalancer.On("ListJobs", ctx).Return([]model.RebalanceJob{
		{JobID: 12, State: model.RebalanceStateCancelling},
	}, nil)

	_, err := svc.Start(ctx, "")

	assert.Equal(t, apierror.CodeBackgroundOperationInProgress, apierror.CodeOf(err))
	rebalancer.AssertNotCalled(t, "Start", mock.Anything)
	operations.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestRebalancerStartUnknownStrategy(t *testing.T) {
	rebalancer, _, svc := newRebalancerFixture(true)
	ctx := context.Background()

	rebalancer.On("ListJobs", ctx).Return([]model.RebalanceJob{}, nil)
	rebalancer.On("ListStrategies", ctx).Return([]string{"by_shard_count"}, nil)

	_, err := svc.Start(ctx, "by_moon_phase")

	assert.Equal(t, apierror.CodeInvalidOptions, apierror.CodeOf(err))
	rebalancer.AssertNotCalled(t, "SetDefaultStrategy", mock.Anything, mock.Anything)
	rebalancer.AssertNotCalled(t, "Start", mock.Anything)
}

func TestRebalancerStartWithStrategy(t *testing.T) {
	rebalancer, operations, svc := newRebalancerFixture(true)
	ctx := context.Background()

	rebalancer.On("ListJobs", ctx).Return([]model.RebalanceJob{
		{JobID: 11, State: model.RebalanceStateFinished},
	}, nil)
	rebalancer.On("ListStrategies", ctx).Return([]string{"by_shard_count", "by_disk_size"}, nil)
	rebalancer.On("SetDefaultStrategy", ctx, "by_disk_size").Return(nil)
	rebalancer.On("Start", ctx).Return(int64(13), nil)
	operations.On("Create", ctx, mock.Anything).Return(nil)

	jobID, err := svc.Start(ctx, "by_disk_size")

	assert.NoError(t, err)
	assert.Equal(t, int64(13), jobID)
	rebalancer.AssertExpectations(t)
}

func TestRebalancerStartRecordsPendingOperation(t *testing.T) {
	rebalancer, operations, svc := newRebalancerFixture(true)
	ctx := context.Background()

	rebalancer.On("ListJobs", ctx).Return([]model.RebalanceJob{}, nil)
	rebalancer.On("Start", ctx).Return(int64(14), nil)
	operations.On("Create", ctx, mock.MatchedBy(func(op *model.Operation) bool {
		return op.Type == model.OperationTypeRebalance &&
			op.Status == model.OperationStatusPending &&
			op.Target == "job 14"
	})).Return(nil)

	jobID, err := svc.Start(ctx, "")

	assert.NoError(t, err)
	assert.Equal(t, int64(14), jobID)
	rebalancer.AssertNotCalled(t, "SetDefaultStrategy", mock.Anything, mock.Anything)
	operations.AssertExpectations(t)
}

func TestRebalancerStartSurvivesOperationLogFailure(t *testing.T) {
	rebalancer, operations, svc := newRebalancerFixture(true)
	ctx := context.Background()

	rebalancer.On("ListJobs", ctx).Return([]model.RebalanceJob{}, nil)
	rebalancer.On("Start", ctx).Return(int64(15), nil)
	operations.On("Create", ctx, mock.Anything).Return(errors.New("operations table locked"))

	// The background job is already scheduled: a logging failure must not
	// surface as a command failure.
	jobID, err := svc.Start(ctx, "")

	assert.NoError(t, err)
	assert.Equal(t, int64(15), jobID)
}

func TestRebalancerStop(t *testing.T) {
	rebalancer, _, svc := newRebalancerFixture(true)
	ctx := context.Background()

	rebalancer.On("Stop", ctx).Return(true, nil).Once()
	wasActive, err := svc.Stop(ctx)
	assert.NoError(t, err)
	assert.True(t, wasActive)

	rebalancer.On("Stop", ctx).Return(false, nil).Once()
	wasActive, err = svc.Stop(ctx)
	assert.NoError(t, err)
	assert.False(t, wasActive)
}
