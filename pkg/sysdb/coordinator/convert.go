package coordinator

import (
	"encoding/json"

	"github.com/chroma-core/controlplane/pkg/model"
	"github.com/chroma-core/controlplane/pkg/sysdb/metastore/db/dbmodel"
	"github.com/chroma-core/controlplane/pkg/types"
)

func convertTenantToModel(t *dbmodel.Tenant) *model.Tenant {
	return &model.Tenant{
		Name:               t.ID,
		ResourceName:       t.ResourceName,
		LastCompactionTime: t.LastCompactionTime,
	}
}

func convertDatabaseToModel(d *dbmodel.Database) *model.Database {
	return &model.Database{
		ID:     d.ID,
		Name:   d.Name,
		Tenant: d.TenantID,
	}
}

func metadataToEAVRows(collectionID string, md *model.Metadata) []*dbmodel.CollectionMetadata {
	if md.Empty() {
		return nil
	}
	rows := make([]*dbmodel.CollectionMetadata, 0, len(md.Values))
	for k, v := range md.Values {
		row := &dbmodel.CollectionMetadata{CollectionID: collectionID, Key: k}
		switch val := v.(type) {
		case model.MetadataValueString:
			row.StrValue = &val.Value
		case model.MetadataValueInt64:
			row.IntValue = &val.Value
		case model.MetadataValueFloat64:
			row.FloatValue = &val.Value
		case model.MetadataValueBool:
			row.BoolValue = &val.Value
		}
		rows = append(rows, row)
	}
	return rows
}

func eavRowsToMetadata(rows []*dbmodel.CollectionMetadata) *model.Metadata {
	md := model.NewMetadata()
	for _, row := range rows {
		switch {
		case row.StrValue != nil:
			md.Add(row.Key, model.MetadataValueString{Value: *row.StrValue})
		case row.IntValue != nil:
			md.Add(row.Key, model.MetadataValueInt64{Value: *row.IntValue})
		case row.FloatValue != nil:
			md.Add(row.Key, model.MetadataValueFloat64{Value: *row.FloatValue})
		case row.BoolValue != nil:
			md.Add(row.Key, model.MetadataValueBool{Value: *row.BoolValue})
		}
	}
	return md
}

func convertCollectionToModel(c *dbmodel.Collection, databaseName string, md *model.Metadata) *model.Collection {
	id := types.MustParse(c.ID)
	state := model.CollectionStateReady
	if c.IsDeleted {
		state = model.CollectionStateSoftDeleted
	}
	result := &model.Collection{
		ID:                         id,
		Name:                       c.Name,
		TenantID:                   c.TenantID,
		DatabaseID:                 c.DatabaseID,
		DatabaseName:               databaseName,
		Dimension:                  c.Dimension,
		DistanceMetric:             model.DistanceMetric(c.DistanceMetric),
		ConfigurationJSON:          c.ConfigurationJSON,
		Metadata:                   md,
		State:                      state,
		Version:                    c.Version,
		LogCompactionOffset:        c.LogCompactionOffset,
		LogEnumerationOffset:       c.LogEnumerationOffset,
		LastCompactionTime:         c.LastCompactionTimeSecs,
		TotalRecordsPostCompaction: c.TotalRecordsPostCompaction,
		SoftDeletedAt:              c.SoftDeletedAt,
		HardDeletableAfter:         c.HardDeletableAfter,
	}
	if c.ForkSourceCollectionID != nil {
		result.Fork = &model.CollectionFork{
			SourceCollectionID: types.MustParse(*c.ForkSourceCollectionID),
			SourceVersion:      derefInt32(c.ForkSourceVersion),
			SourceLogOffset:    derefInt64(c.ForkSourceLogOffset),
		}
	}
	return result
}

func derefInt32(p *int32) int32 {
	if p == nil {
		return 0
	}
	return *p
}

func derefInt64(p *int64) int64 {
	if p == nil {
		return 0
	}
	return *p
}

func convertSegmentToModel(s *dbmodel.Segment) *model.Segment {
	return &model.Segment{
		ID:             types.MustParse(s.ID),
		CollectionID:   types.MustParse(s.CollectionID),
		Scope:          s.Scope,
		Type:           s.Type,
		FilePaths:      unmarshalFilePaths(s.FilePathsJSON),
		ReferenceCount: s.ReferenceCount,
		Metadata:       model.NewMetadata(),
	}
}

func convertCollectionVersionToModel(v *dbmodel.CollectionVersion) *model.CollectionVersion {
	byStringID := unmarshalSegmentSnapshot(v.SegmentFilePathsJSON)
	byID := make(map[types.UniqueID]map[string][]string, len(byStringID))
	for segID, paths := range byStringID {
		byID[types.MustParse(segID)] = paths
	}
	return &model.CollectionVersion{
		CollectionID:        types.MustParse(v.CollectionID),
		Version:             v.Version,
		LogCompactionOffset: v.LogCompactionOffset,
		SegmentFilePaths:    byID,
		CreatedAt:           v.CreatedAt.Unix(),
		IsCurrent:           v.IsCurrent,
		MarkedForGC:         v.MarkedForGC,
	}
}

func marshalSegmentSnapshot(bySegmentID map[string]map[string][]string) string {
	data, _ := json.Marshal(bySegmentID)
	return string(data)
}

func unmarshalSegmentSnapshot(s string) map[string]map[string][]string {
	if s == "" {
		return map[string]map[string][]string{}
	}
	var snapshot map[string]map[string][]string
	_ = json.Unmarshal([]byte(s), &snapshot)
	return snapshot
}

func marshalFilePaths(paths map[string][]string) string {
	data, _ := json.Marshal(paths)
	return string(data)
}

func unmarshalFilePaths(s string) map[string][]string {
	if s == "" {
		return map[string][]string{}
	}
	var paths map[string][]string
	_ = json.Unmarshal([]byte(s), &paths)
	return paths
}
