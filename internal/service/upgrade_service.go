package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/papyrusdb/controlplane/internal/metrics"
	"github.com/papyrusdb/controlplane/internal/model"
	"github.com/papyrusdb/controlplane/internal/store"
	"go.uber.org/zap"
)

// versionCacheKey is the cache entry flushed when the cluster version moves
const versionCacheKey = "cluster:version"

// UpgradeStep is one version-gated, idempotent migration step. Steps sharing
// a gating version run in declaration order.
type UpgradeStep struct {
	Version model.Version
	Name    string
	Run     func(ctx context.Context, admin store.SchemaAdmin) error
}

// PostSetupFunc is the extension point invoked after the built-in steps,
// receiving the same version predicate so external code can gate its own
// steps with identical arithmetic.
type PostSetupFunc func(ctx context.Context, shouldApply func(model.Version) bool) error

// UpgradeService applies the ordered migration step list exactly once per
// version boundary, cluster-wide. It assumes a single coordinator process
// invokes it at a time; that is an operational invariant, not one enforced
// here.
type UpgradeService struct {
	metadata   store.ClusterMetadataStore
	nodes      store.NodeCatalog
	admin      store.SchemaAdmin
	cache      store.Cache
	operations store.OperationLog
	steps      []UpgradeStep
	postSetup  PostSetupFunc
	versionTTL time.Duration
	metrics    *metrics.Metrics
	logger     *zap.Logger
}

// NewUpgradeService creates a new upgrade service. postSetup may be nil.
func NewUpgradeService(
	metadata store.ClusterMetadataStore,
	nodes store.NodeCatalog,
	admin store.SchemaAdmin,
	cache store.Cache,
	operations store.OperationLog,
	steps []UpgradeStep,
	postSetup PostSetupFunc,
	versionTTL time.Duration,
	m *metrics.Metrics,
	logger *zap.Logger,
) *UpgradeService {
	return &UpgradeService{
		metadata:   metadata,
		nodes:      nodes,
		admin:      admin,
		cache:      cache,
		operations: operations,
		steps:      steps,
		postSetup:  postSetup,
		versionTTL: versionTTL,
		metrics:    m,
		logger:     logger,
	}
}

// shouldApply gates one step: strictly newer than the last completed upgrade
// and no newer than the installed package.
func shouldApply(step, lastUpgrade, installed model.Version) bool {
	return step.After(lastUpgrade) && !step.After(installed)
}

// RunUpgrade brings the cluster schema up to the installed extension
// version. Returns whether anything ran: a call with no version delta
// performs only the version-compare read.
func (s *UpgradeService) RunUpgrade(ctx context.Context, isInitialize bool) (bool, error) {
	if err := s.ensureReferenceTablesReplicated(ctx, isInitialize); err != nil {
		return false, err
	}

	record, err := s.metadata.GetVersionRecord(ctx)
	if err == store.ErrNotFound {
		record = &model.ClusterVersionRecord{}
	} else if err != nil {
		return false, fmt.Errorf("failed to read cluster version record: %w", err)
	}

	if isInitialize && record.InitializedVersion != nil {
		s.logger.Info("Cluster already initialized",
			zap.String("initialized_version", record.InitializedVersion.String()))
		return false, nil
	}

	installed, err := s.metadata.InstalledVersion(ctx)
	if err != nil {
		return false, err
	}

	lastUpgrade := record.LastDeployVersion
	if !isInitialize && lastUpgrade.Compare(installed) == 0 {
		return false, nil
	}

	s.logger.Info("Running cluster upgrade",
		zap.String("from", lastUpgrade.String()),
		zap.String("to", installed.String()),
		zap.Bool("initialize", isInitialize))

	op := &model.Operation{
		OperationID: uuid.New().String(),
		Type:        model.OperationTypeUpgrade,
		Target:      fmt.Sprintf("%s -> %s", lastUpgrade, installed),
		Status:      model.OperationStatusInProgress,
		StartedAt:   time.Now(),
	}
	if err := s.operations.Create(ctx, op); err != nil {
		return false, fmt.Errorf("failed to record operation: %w", err)
	}

	if err := s.applySteps(ctx, record, lastUpgrade, installed, isInitialize); err != nil {
		if logErr := s.operations.MarkFailed(ctx, op.OperationID, err.Error()); logErr != nil {
			s.logger.Error("Failed to record operation failure", zap.Error(logErr))
		}
		return false, err
	}

	if err := s.operations.MarkCompleted(ctx, op.OperationID); err != nil {
		s.logger.Error("Failed to record operation completion", zap.Error(err))
	}

	s.logger.Info("Cluster upgrade completed", zap.String("version", installed.String()))
	return true, nil
}

func (s *UpgradeService) applySteps(
	ctx context.Context,
	record *model.ClusterVersionRecord,
	lastUpgrade, installed model.Version,
	isInitialize bool,
) error {
	for _, step := range s.steps {
		if !shouldApply(step.Version, lastUpgrade, installed) {
			continue
		}
		s.logger.Info("Applying upgrade step",
			zap.String("step", step.Name),
			zap.String("version", step.Version.String()))
		if err := step.Run(ctx, s.admin); err != nil {
			return fmt.Errorf("upgrade step %s (%s) failed: %w", step.Name, step.Version, err)
		}
		s.metrics.RecordUpgradeStep()
	}

	if s.postSetup != nil {
		predicate := func(v model.Version) bool { return shouldApply(v, lastUpgrade, installed) }
		if err := s.postSetup(ctx, predicate); err != nil {
			return fmt.Errorf("post-setup hook failed: %w", err)
		}
	}

	substrate, err := s.metadata.SubstrateVersion(ctx)
	if err != nil {
		return err
	}

	record.LastDeployVersion = installed
	record.LastSubstrateVersion = substrate
	if isInitialize {
		record.InitializedVersion = &installed
	}
	if err := s.metadata.SaveVersionRecord(ctx, record); err != nil {
		return err
	}

	// Other processes pick up the new version on their next catalog read.
	if err := s.metadata.BroadcastInvalidation(ctx); err != nil {
		return err
	}
	if err := s.cache.Delete(ctx, versionCacheKey); err != nil {
		s.logger.Warn("Failed to flush version cache", zap.Error(err))
	}
	return nil
}

// ClusterVersion returns the last deployed cluster version, serving repeat
// reads from cache until the next upgrade flushes the entry.
func (s *UpgradeService) ClusterVersion(ctx context.Context) (model.Version, error) {
	if cached, err := s.cache.Get(ctx, versionCacheKey); err == nil {
		if str, ok := cached.(string); ok {
			if v, err := model.ParseVersion(str); err == nil {
				return v, nil
			}
		}
	}

	record, err := s.metadata.GetVersionRecord(ctx)
	if err == store.ErrNotFound {
		return model.Version{}, nil
	} else if err != nil {
		return model.Version{}, fmt.Errorf("failed to read cluster version record: %w", err)
	}

	v := record.LastDeployVersion
	if err := s.cache.Set(ctx, versionCacheKey, v.String(), s.versionTTL); err != nil {
		s.logger.Warn("Failed to populate version cache", zap.Error(err))
	}
	return v, nil
}

// InitializeCluster runs first-time setup, a no-op when the cluster has
// already been initialized.
func (s *UpgradeService) InitializeCluster(ctx context.Context) (bool, error) {
	return s.RunUpgrade(ctx, true)
}

// ensureReferenceTablesReplicated re-replicates reference tables when a node
// was added since they were last replicated. During first initialization the
// reference table may not exist yet; that is not an error.
func (s *UpgradeService) ensureReferenceTablesReplicated(ctx context.Context, isInitialize bool) error {
	placements, err := s.metadata.CountReferenceTablePlacements(ctx)
	if err != nil {
		if isInitialize {
			s.logger.Debug("Reference table placement check skipped during initialize", zap.Error(err))
			return nil
		}
		return err
	}

	primaries, err := s.nodes.CountActivePrimaryNodes(ctx)
	if err != nil {
		return err
	}

	if placements >= primaries {
		return nil
	}

	s.logger.Info("Replicating reference tables",
		zap.Int("placements", placements),
		zap.Int("active_primaries", primaries))
	return s.metadata.ReplicateReferenceTables(ctx)
}
