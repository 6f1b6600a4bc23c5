package model

// IndexMetadataOperation names the index catalog flag being toggled
type IndexMetadataOperation string

const (
	IndexMetadataOpReady         IndexMetadataOperation = "READY"
	IndexMetadataOpSparse        IndexMetadataOperation = "SPARSE"
	IndexMetadataOpTTL           IndexMetadataOperation = "TTL"
	IndexMetadataOpHidden        IndexMetadataOperation = "HIDDEN"
	IndexMetadataOpPrepareUnique IndexMetadataOperation = "PREPARE_UNIQUE"
	IndexMetadataOpUnique        IndexMetadataOperation = "UNIQUE"
)

// Valid reports whether op names a known index metadata flag
func (op IndexMetadataOperation) Valid() bool {
	switch op {
	case IndexMetadataOpReady, IndexMetadataOpSparse, IndexMetadataOpTTL,
		IndexMetadataOpHidden, IndexMetadataOpPrepareUnique, IndexMetadataOpUnique:
		return true
	default:
		return false
	}
}

// IndexMetadataUpdateRequest is a transient message applied once by the
// dispatcher's registered handler on each node hosting a shard of the
// collection's table.
type IndexMetadataUpdateRequest struct {
	CollectionID uint64                 `json:"collectionId"`
	IndexID      int32                  `json:"indexId"`
	Operation    IndexMetadataOperation `json:"operation"`
	Value        bool                   `json:"value"`
}
