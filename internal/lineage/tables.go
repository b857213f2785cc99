package lineage

import "strings"

const tablesMarker = "Tables/"

// Known file extensions stripped from file-like path segments.
var fileExtensions = []string{
	".csv", ".parquet", ".json", ".txt", ".orc", ".avro", ".delta", ".xlsx",
}

// TableRef is a schema/name pair extracted from a path.
type TableRef struct {
	Schema string
	Name   string
}

// ParseTablePath extracts a table reference from a path string.
//
// Paths containing the "Tables/" marker are split after it: two or more
// remaining segments yield schema=first, name=last; exactly one segment
// yields a schema-less table. File-like paths yield the last segment with a
// known extension stripped, the preceding segment (if any) as schema. A path
// without a valid table name yields nothing; that is not an error.
func ParseTablePath(path string) (TableRef, bool) {
	if strings.TrimSpace(path) == "" {
		return TableRef{}, false
	}

	if idx := strings.Index(path, tablesMarker); idx >= 0 {
		segs := splitSegments(path[idx+len(tablesMarker):])
		switch {
		case len(segs) >= 2:
			return TableRef{Schema: segs[0], Name: segs[len(segs)-1]}, true
		case len(segs) == 1:
			return TableRef{Name: segs[0]}, true
		default:
			return TableRef{}, false
		}
	}

	segs := splitSegments(path)
	if len(segs) == 0 {
		return TableRef{}, false
	}
	name, stripped := stripExtension(segs[len(segs)-1])
	if !stripped || name == "" {
		return TableRef{}, false
	}
	ref := TableRef{Name: name}
	if len(segs) >= 2 {
		ref.Schema = segs[len(segs)-2]
	}
	return ref, true
}

func splitSegments(s string) []string {
	parts := strings.Split(s, "/")
	segs := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			segs = append(segs, p)
		}
	}
	return segs
}

func stripExtension(seg string) (string, bool) {
	lower := strings.ToLower(seg)
	for _, ext := range fileExtensions {
		if strings.HasSuffix(lower, ext) {
			return seg[:len(seg)-len(ext)], true
		}
	}
	return seg, false
}
