package model

import (
	"time"

	json "github.com/alpkeskin/gotoon"
)

// NormalizeMetadata clones meta, strips nil-valued keys, and returns the
// canonical JSON encoding used for storage. Reserved keys (§9) are left in
// place for the caller to read back with IsRoot/IsChild/etc below.
func NormalizeMetadata(meta map[string]any) (clean map[string]any, jsonString string) {
	clean = CloneMetadata(meta)
	for k, v := range clean {
		if v == nil {
			delete(clean, k)
		}
	}
	b, _ := json.Marshal(clean)
	return clean, string(b)
}

func CloneMetadata(meta map[string]any) map[string]any {
	if meta == nil {
		return map[string]any{}
	}
	cp := make(map[string]any, len(meta))
	for k, v := range meta {
		cp[k] = v
	}
	return cp
}

func DecodeMetadata(raw string) map[string]any {
	if raw == "" {
		return map[string]any{}
	}
	var meta map[string]any
	if err := json.Unmarshal([]byte(raw), &meta); err != nil {
		return map[string]any{}
	}
	return meta
}

func FloatFromAny(v any) float64 {
	switch t := v.(type) {
	case float64:
		return t
	case float32:
		return float64(t)
	case int:
		return float64(t)
	case int64:
		return float64(t)
	case string:
		var f float64
		if err := json.Unmarshal([]byte(t), &f); err == nil {
			return f
		}
	}
	return 0
}

func StringFromAny(v any) string {
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	b, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(b)
}

func BoolFromAny(v any) bool {
	b, ok := v.(bool)
	return ok && b
}

func TimeFromAny(v any) time.Time {
	switch t := v.(type) {
	case time.Time:
		return t
	case string:
		if ts, err := time.Parse(time.RFC3339Nano, t); err == nil {
			return ts
		}
	}
	return time.Time{}
}

func Float32SliceFromAny(v any) []float32 {
	switch t := v.(type) {
	case nil:
		return nil
	case []float32:
		out := make([]float32, len(t))
		copy(out, t)
		return out
	case []float64:
		out := make([]float32, len(t))
		for i, val := range t {
			out[i] = float32(val)
		}
		return out
	case []any:
		out := make([]float32, 0, len(t))
		for _, val := range t {
			out = append(out, float32(FloatFromAny(val)))
		}
		return out
	case string:
		if t == "" {
			return nil
		}
		var arr []float64
		if err := json.Unmarshal([]byte(t), &arr); err == nil {
			return Float32SliceFromAny(arr)
		}
	}
	return nil
}

// IsRootChunk reports whether metadata marks this memory as a root waypoint
// created during large-document ingestion (§4.7, reserved key is_root).
func IsRootChunk(meta map[string]any) bool { return BoolFromAny(meta[MetaIsRoot]) }

// IsChildChunk reports the complementary is_child reserved key.
func IsChildChunk(meta map[string]any) bool { return BoolFromAny(meta[MetaIsChild]) }

// ParentID reads the parent_id reserved key linking a child chunk to its root.
func ParentID(meta map[string]any) string { return StringFromAny(meta[MetaParentID]) }

// SectionIndex and TotalSections read the ordering reserved keys written
// during ingestion section-splitting.
func SectionIndex(meta map[string]any) int   { return int(FloatFromAny(meta[MetaSectionIndex])) }
func TotalSections(meta map[string]any) int  { return int(FloatFromAny(meta[MetaTotalSections])) }
func SourceURL(meta map[string]any) string   { return StringFromAny(meta[MetaSourceURL]) }
func Checksum(meta map[string]any) string    { return StringFromAny(meta[MetaChecksum]) }
