package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/papyrusdb/controlplane/internal/apierror"
	"github.com/papyrusdb/controlplane/internal/metrics"
	"github.com/papyrusdb/controlplane/internal/model"
	"github.com/papyrusdb/controlplane/internal/service"
	"go.uber.org/zap"
)

// AdminHandler exposes the document-in/document-out admin command surface
// over HTTP JSON.
type AdminHandler struct {
	topology   *service.TopologyService
	colocation *service.ColocationService
	upgrade    *service.UpgradeService
	rebalancer *service.RebalancerService
	indexMeta  *service.IndexMetadataService
	metrics    *metrics.Metrics
	logger     *zap.Logger
}

// NewAdminHandler creates a new admin command handler
func NewAdminHandler(
	topology *service.TopologyService,
	colocation *service.ColocationService,
	upgrade *service.UpgradeService,
	rebalancer *service.RebalancerService,
	indexMeta *service.IndexMetadataService,
	m *metrics.Metrics,
	logger *zap.Logger,
) *AdminHandler {
	return &AdminHandler{
		topology:   topology,
		colocation: colocation,
		upgrade:    upgrade,
		rebalancer: rebalancer,
		indexMeta:  indexMeta,
		metrics:    m,
		logger:     logger,
	}
}

// Register attaches the command routes to mux
func (h *AdminHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("/shardMap", h.GetShardMap)
	mux.HandleFunc("/shards", h.ListShards)
	mux.HandleFunc("/moveCollection", h.MoveCollection)
	mux.HandleFunc("/collMod", h.CollMod)
	mux.HandleFunc("/initialize", h.Initialize)
	mux.HandleFunc("/upgrade", h.Upgrade)
	mux.HandleFunc("/clusterVersion", h.ClusterVersion)
	mux.HandleFunc("/indexMetadata", h.IndexMetadata)
	mux.HandleFunc("/rebalancer/status", h.RebalancerStatus)
	mux.HandleFunc("/rebalancer/start", h.RebalancerStart)
	mux.HandleFunc("/rebalancer/stop", h.RebalancerStop)
}

// GetShardMap handles getShardMap
func (h *AdminHandler) GetShardMap(w http.ResponseWriter, r *http.Request) {
	started := time.Now()
	nodes, err := h.topology.ListShardHostingNodes(r.Context())
	if err != nil {
		h.writeError(w, "getShardMap", started, err)
		return
	}

	shardMap := h.topology.RenderShardMap(nodes)
	h.writeOK(w, "getShardMap", started, map[string]interface{}{
		"map":   shardMap.Map,
		"hosts": shardMap.Hosts,
		"nodes": shardMap.Nodes,
	})
}

// ListShards handles listShards
func (h *AdminHandler) ListShards(w http.ResponseWriter, r *http.Request) {
	started := time.Now()
	nodes, err := h.topology.ListShardHostingNodes(r.Context())
	if err != nil {
		h.writeError(w, "listShards", started, err)
		return
	}

	h.writeOK(w, "listShards", started, map[string]interface{}{
		"shards": h.topology.RenderShardList(nodes),
	})
}

type moveCollectionRequest struct {
	MoveCollection        string `json:"moveCollection"`
	ToShard               string `json:"toShard"`
	UseLogicalReplication bool   `json:"useLogicalReplication"`
}

// MoveCollection handles moveCollection
func (h *AdminHandler) MoveCollection(w http.ResponseWriter, r *http.Request) {
	started := time.Now()
	var req moveCollectionRequest
	if err := decodeStrict(r, &req); err != nil {
		h.writeError(w, "moveCollection", started, err)
		return
	}

	err := h.colocation.MoveCollection(r.Context(), req.MoveCollection, req.ToShard, req.UseLogicalReplication)
	if err != nil {
		h.writeError(w, "moveCollection", started, err)
		return
	}
	h.writeOK(w, "moveCollection", started, nil)
}

type collModRequest struct {
	Database   string `json:"database"`
	Collection string `json:"collMod"`
	Colocation *struct {
		Collection *string `json:"collection"`
	} `json:"colocation"`
}

// CollMod handles the collection-modify colocation option
func (h *AdminHandler) CollMod(w http.ResponseWriter, r *http.Request) {
	started := time.Now()
	var req collModRequest
	if err := decodeStrict(r, &req); err != nil {
		h.writeError(w, "collMod", started, err)
		return
	}
	if req.Colocation == nil {
		h.writeError(w, "collMod", started,
			apierror.New(apierror.CodeInvalidOptions, "collMod requires a colocation document"))
		return
	}

	err := h.colocation.SetColocation(r.Context(), req.Database, req.Collection, req.Colocation.Collection)
	if err != nil {
		h.writeError(w, "collMod", started, err)
		return
	}
	h.writeOK(w, "collMod", started, nil)
}

// Initialize handles first-time cluster initialization
func (h *AdminHandler) Initialize(w http.ResponseWriter, r *http.Request) {
	started := time.Now()
	ran, err := h.upgrade.InitializeCluster(r.Context())
	if err != nil {
		h.writeError(w, "initialize", started, err)
		return
	}
	h.writeOK(w, "initialize", started, map[string]interface{}{"initialized": ran})
}

// Upgrade handles cluster version upgrades
func (h *AdminHandler) Upgrade(w http.ResponseWriter, r *http.Request) {
	started := time.Now()
	ran, err := h.upgrade.RunUpgrade(r.Context(), false)
	if err != nil {
		h.writeError(w, "upgrade", started, err)
		return
	}
	h.writeOK(w, "upgrade", started, map[string]interface{}{"upgraded": ran})
}

// ClusterVersion handles cluster version reads
func (h *AdminHandler) ClusterVersion(w http.ResponseWriter, r *http.Request) {
	started := time.Now()
	version, err := h.upgrade.ClusterVersion(r.Context())
	if err != nil {
		h.writeError(w, "clusterVersion", started, err)
		return
	}
	h.writeOK(w, "clusterVersion", started, map[string]interface{}{"version": version.String()})
}

type indexMetadataRequest struct {
	CollectionID        uint64 `json:"collectionId"`
	IndexID             int32  `json:"indexId"`
	Operation           string `json:"operation"`
	Value               bool   `json:"value"`
	IgnoreMissingShards bool   `json:"ignoreMissingShards"`
}

// IndexMetadata handles index metadata flag propagation
func (h *AdminHandler) IndexMetadata(w http.ResponseWriter, r *http.Request) {
	started := time.Now()
	var req indexMetadataRequest
	if err := decodeStrict(r, &req); err != nil {
		h.writeError(w, "indexMetadata", started, err)
		return
	}

	update := &model.IndexMetadataUpdateRequest{
		CollectionID: req.CollectionID,
		IndexID:      req.IndexID,
		Operation:    model.IndexMetadataOperation(req.Operation),
		Value:        req.Value,
	}
	if err := h.indexMeta.PropagateUpdate(r.Context(), update, req.IgnoreMissingShards); err != nil {
		h.writeError(w, "indexMetadata", started, err)
		return
	}
	h.writeOK(w, "indexMetadata", started, nil)
}

// RebalancerStatus handles rebalancer status reads
func (h *AdminHandler) RebalancerStatus(w http.ResponseWriter, r *http.Request) {
	started := time.Now()
	status, err := h.rebalancer.Status(r.Context())
	if err != nil {
		h.writeError(w, "rebalancerStatus", started, err)
		return
	}
	h.writeOK(w, "rebalancerStatus", started, map[string]interface{}{
		"mode":        status.Mode,
		"runningJobs": status.RunningJobs,
		"otherJobs":   status.OtherJobs,
		"strategies":  status.Strategies,
	})
}

type rebalancerStartRequest struct {
	Strategy string `json:"strategy"`
}

// RebalancerStart handles rebalancer start requests
func (h *AdminHandler) RebalancerStart(w http.ResponseWriter, r *http.Request) {
	started := time.Now()
	var req rebalancerStartRequest
	if err := decodeStrict(r, &req); err != nil {
		h.writeError(w, "rebalancerStart", started, err)
		return
	}

	jobID, err := h.rebalancer.Start(r.Context(), req.Strategy)
	if err != nil {
		h.writeError(w, "rebalancerStart", started, err)
		return
	}
	h.writeOK(w, "rebalancerStart", started, map[string]interface{}{"jobId": jobID})
}

// RebalancerStop handles rebalancer stop requests
func (h *AdminHandler) RebalancerStop(w http.ResponseWriter, r *http.Request) {
	started := time.Now()
	wasActive, err := h.rebalancer.Stop(r.Context())
	if err != nil {
		h.writeError(w, "rebalancerStop", started, err)
		return
	}
	h.writeOK(w, "rebalancerStop", started, map[string]interface{}{"wasActive": wasActive})
}

// decodeStrict decodes a JSON body rejecting unknown top-level fields
func decodeStrict(r *http.Request, dst interface{}) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		return apierror.Wrap(apierror.CodeFailedToParse, "malformed command document", err)
	}
	return nil
}

func (h *AdminHandler) writeOK(w http.ResponseWriter, command string, started time.Time, body map[string]interface{}) {
	if body == nil {
		body = make(map[string]interface{})
	}
	body["ok"] = 1

	h.metrics.RecordCommand(command, "ok", time.Since(started).Seconds())

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(body)
}

func (h *AdminHandler) writeError(w http.ResponseWriter, command string, started time.Time, err error) {
	code := apierror.CodeOf(err)

	h.logger.Warn("Command failed",
		zap.String("command", command),
		zap.String("code", string(code)),
		zap.Error(err))
	h.metrics.RecordCommand(command, string(code), time.Since(started).Seconds())

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(httpStatus(code))
	json.NewEncoder(w).Encode(map[string]interface{}{
		"ok":     0,
		"code":   string(code),
		"errmsg": err.Error(),
	})
}

func httpStatus(code apierror.Code) int {
	switch code {
	case apierror.CodeInvalidOptions, apierror.CodeInvalidNamespace,
		apierror.CodeFailedToParse, apierror.CodeCommandNotSupported:
		return http.StatusBadRequest
	case apierror.CodeNamespaceNotFound:
		return http.StatusNotFound
	case apierror.CodeBackgroundOperationInProgress:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
