package service

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/papyrusdb/controlplane/internal/apierror"
	"github.com/papyrusdb/controlplane/internal/model"
	"github.com/papyrusdb/controlplane/internal/store"
	"go.uber.org/zap"
)

// indexMetadataHandler names the handler function registered on every node
const indexMetadataHandler = "update_index_metadata"

// indexMetadataEnvelope is the dispatched payload
type indexMetadataEnvelope struct {
	Update              model.IndexMetadataUpdateRequest `json:"update"`
	IgnoreMissingShards bool                             `json:"ignoreMissingShards"`
}

// IndexMetadataService propagates index catalog flag changes to every node
// hosting a shard of the owning collection's table, with coordinator
// backfill so the coordinator's catalog stays current even when it hosts no
// shard.
type IndexMetadataService struct {
	collections store.CollectionCatalog
	local       store.IndexMetadataStore
	dispatch    *DispatchService
	schemas     store.Schemas
	logger      *zap.Logger
}

// NewIndexMetadataService creates the service and registers its handler's
// coordinator-side implementation with the dispatcher.
func NewIndexMetadataService(
	collections store.CollectionCatalog,
	local store.IndexMetadataStore,
	dispatch *DispatchService,
	schemas store.Schemas,
	logger *zap.Logger,
) *IndexMetadataService {
	s := &IndexMetadataService{
		collections: collections,
		local:       local,
		dispatch:    dispatch,
		schemas:     schemas,
		logger:      logger,
	}
	dispatch.RegisterHandler(indexMetadataHandler, s.applyLocal)
	return s
}

// PropagateUpdate applies one index metadata change on every node hosting a
// shard of the collection's table. With ignoreMissingShards set, a node
// where the index row is absent treats the update as a no-op, tolerating
// placement gaps mid scale-out.
func (s *IndexMetadataService) PropagateUpdate(ctx context.Context, req *model.IndexMetadataUpdateRequest, ignoreMissingShards bool) error {
	if !req.Operation.Valid() {
		return apierror.Newf(apierror.CodeInvalidOptions,
			"unknown index metadata operation %q", req.Operation)
	}

	collection, err := s.collections.LookupByID(ctx, req.CollectionID)
	if err == store.ErrNotFound {
		return apierror.Newf(apierror.CodeNamespaceNotFound,
			"collection %d does not exist", req.CollectionID)
	}
	if err != nil {
		return apierror.Wrap(apierror.CodeInternalError, "failed to look up collection", err)
	}

	payload, err := json.Marshal(indexMetadataEnvelope{
		Update:              *req,
		IgnoreMissingShards: ignoreMissingShards,
	})
	if err != nil {
		return fmt.Errorf("failed to encode index metadata update: %w", err)
	}

	table := s.schemas.DataTable(collection.TableName())
	_, err = s.dispatch.Dispatch(ctx, indexMetadataHandler, payload, false, table, true)
	if err != nil {
		return err
	}

	s.logger.Info("Index metadata propagated",
		zap.Uint64("collection_id", req.CollectionID),
		zap.Int32("index_id", req.IndexID),
		zap.String("operation", string(req.Operation)),
		zap.Bool("value", req.Value))
	return nil
}

// applyLocal is the coordinator-side handler implementation
func (s *IndexMetadataService) applyLocal(ctx context.Context, payload []byte) ([]byte, error) {
	var envelope indexMetadataEnvelope
	if err := json.Unmarshal(payload, &envelope); err != nil {
		return nil, fmt.Errorf("failed to decode index metadata update: %w", err)
	}
	if err := s.local.ApplyUpdate(ctx, &envelope.Update, envelope.IgnoreMissingShards); err != nil {
		return nil, err
	}
	return []byte(`{"applied":true}`), nil
}
