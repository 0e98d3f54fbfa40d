package query

import (
	chromalog "github.com/chroma-core/controlplane/pkg/log"
	"github.com/chroma-core/controlplane/pkg/model"
)

// applyMetadataPatch merges a log record's untyped metadata patch onto base,
// converting each value into model's tagged-union MetadataValueType. Unknown
// value shapes (anything but string/int64/float64/bool) are dropped rather
// than erroring, mirroring a best-effort read path: a write-time Validate
// call already rejects them before they ever reach the log.
func applyMetadataPatch(base *model.Metadata, patch map[string]interface{}) *model.Metadata {
	if len(patch) == 0 {
		return base
	}
	out := model.NewMetadata()
	if base != nil {
		for k, v := range base.Values {
			out.Add(k, v)
		}
	}
	for k, v := range patch {
		switch val := v.(type) {
		case string:
			out.Add(k, model.MetadataValueString{Value: val})
		case int64:
			out.Add(k, model.MetadataValueInt64{Value: val})
		case float64:
			out.Add(k, model.MetadataValueFloat64{Value: val})
		case bool:
			out.Add(k, model.MetadataValueBool{Value: val})
		}
	}
	return out
}

// foldPendingRecords applies the log suffix spec.md §4.4 step 4 describes
// on top of a plan's evaluated hits, in log order: a later UPSERT for an id
// already present overrides its document/metadata (its existing Score is
// left unchanged, since the pending record isn't re-ranked against the
// query embedding — see DESIGN.md's open-question note on this), a
// UPSERT for an id not present is appended as an unranked hit, and a DELETE
// tombstones the id out of the result set entirely regardless of whether it
// originated from the materialized segments or an earlier pending upsert.
func foldPendingRecords(hits []Hit, pending []chromalog.Record) []Hit {
	if len(pending) == 0 {
		return hits
	}

	order := make([]string, 0, len(hits))
	byID := make(map[string]*Hit, len(hits))
	for i := range hits {
		order = append(order, hits[i].ID)
		byID[hits[i].ID] = &hits[i]
	}
	tombstoned := make(map[string]bool)

	for _, rec := range pending {
		switch rec.Op {
		case chromalog.OpDelete:
			tombstoned[rec.ID] = true
			delete(byID, rec.ID)
		case chromalog.OpUpsert:
			delete(tombstoned, rec.ID)
			if existing, ok := byID[rec.ID]; ok {
				existing.Document = rec.Document
				existing.Metadata = applyMetadataPatch(existing.Metadata, rec.MetadataPatch)
				continue
			}
			h := Hit{ID: rec.ID, Document: rec.Document, Metadata: applyMetadataPatch(nil, rec.MetadataPatch)}
			byID[rec.ID] = &h
			order = append(order, rec.ID)
		}
	}

	out := make([]Hit, 0, len(order))
	seen := make(map[string]bool, len(order))
	for _, id := range order {
		if seen[id] || tombstoned[id] {
			continue
		}
		seen[id] = true
		if h, ok := byID[id]; ok {
			out = append(out, *h)
		}
	}
	return out
}
