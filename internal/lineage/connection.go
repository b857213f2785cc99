package lineage

import (
	"encoding/json"
	"fmt"
	"strings"

	appErr "github.com/fabriclens/engine/pkg/errors"
	"github.com/fabriclens/engine/pkg/hash"
)

// Ref is a canonical, tagged connection reference. Each variant knows its
// kind and the ordered list of fields that define its identity. Missing
// fields are empty strings, never dropped, so field position stays fixed.
type Ref interface {
	Kind() string
	Signature() []string
	Display() string
}

// RefID derives the deterministic identity of a reference: a fixed-width
// hash over kind plus the ordered signature fields.
func RefID(r Ref) string {
	return hash.Signature(append([]string{r.Kind()}, r.Signature()...)...)
}

// OneLakeRef points at another platform item's data.
type OneLakeRef struct {
	ItemID      string
	WorkspaceID string
	Path        string
}

func (r OneLakeRef) Kind() string        { return "onelake" }
func (r OneLakeRef) Signature() []string { return []string{r.ItemID, r.WorkspaceID, r.Path} }
func (r OneLakeRef) Display() string {
	if r.Path != "" {
		return r.Path
	}
	return r.ItemID
}

// SnowflakeRef identifies a warehouse table by its database triple.
type SnowflakeRef struct {
	Database string
	Schema   string
	Table    string
}

func (r SnowflakeRef) Kind() string        { return "snowflake" }
func (r SnowflakeRef) Signature() []string { return []string{r.Database, r.Schema, r.Table} }
func (r SnowflakeRef) Display() string     { return r.Database }

// FullPath joins the non-empty triple parts with dots.
func (r SnowflakeRef) FullPath() string {
	parts := make([]string, 0, 3)
	for _, p := range []string{r.Database, r.Schema, r.Table} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, ".")
}

// BlobRef covers ADLS Gen2 and Azure Blob containers.
type BlobRef struct {
	Container string
	Path      string
}

func (r BlobRef) Kind() string        { return "blob" }
func (r BlobRef) Signature() []string { return []string{r.Container, r.Path} }
func (r BlobRef) Display() string     { return r.Container }

// S3Ref identifies an object (or prefix) in an S3 bucket.
type S3Ref struct {
	Bucket string
	Key    string
}

func (r S3Ref) Kind() string        { return "s3" }
func (r S3Ref) Signature() []string { return []string{r.Bucket, r.Key} }
func (r S3Ref) Display() string     { return r.Bucket }

// SharePointRef identifies a SharePoint file share location.
type SharePointRef struct {
	Location string
}

func (r SharePointRef) Kind() string        { return "sharepoint" }
func (r SharePointRef) Signature() []string { return []string{r.Location} }
func (r SharePointRef) Display() string     { return r.Location }

// RawRef is the fallback for unrecognized or legacy connection shapes.
type RawRef struct {
	Payload string
}

func (r RawRef) Kind() string        { return "raw" }
func (r RawRef) Signature() []string { return []string{r.Payload} }
func (r RawRef) Display() string {
	if len(r.Payload) > 64 {
		return r.Payload[:64]
	}
	return r.Payload
}

// Details exposes the variant's fields as a flat map for node metadata.
func Details(r Ref) map[string]string {
	switch v := r.(type) {
	case OneLakeRef:
		return map[string]string{"item_id": v.ItemID, "workspace_id": v.WorkspaceID, "path": v.Path}
	case SnowflakeRef:
		return map[string]string{"database": v.Database, "schema": v.Schema, "table": v.Table}
	case BlobRef:
		return map[string]string{"container": v.Container, "path": v.Path}
	case S3Ref:
		return map[string]string{"bucket": v.Bucket, "key": v.Key}
	case SharePointRef:
		return map[string]string{"location": v.Location}
	default:
		return nil
	}
}

// Normalize parses a raw connection descriptor into a canonical Ref.
// Multi-valued connections (lists) select the first element; this is a
// documented simplification, not an accident. A nil or empty descriptor is a
// parse error; an object of unknown shape degrades to RawRef.
func Normalize(raw any) (Ref, error) {
	switch v := raw.(type) {
	case nil:
		return nil, appErr.New(appErr.CodeParse, "connection descriptor is absent")
	case []any:
		if len(v) == 0 {
			return nil, appErr.New(appErr.CodeParse, "connection descriptor list is empty")
		}
		return Normalize(v[0])
	case string:
		if isMissing(v) {
			return nil, appErr.New(appErr.CodeParse, "connection descriptor is blank")
		}
		return RawRef{Payload: v}, nil
	case map[string]any:
		return normalizeObject(v)
	default:
		return nil, appErr.Newf(appErr.CodeParse, "unsupported connection descriptor type %T", raw)
	}
}

func normalizeObject(obj map[string]any) (Ref, error) {
	typ := strings.ToLower(str(obj, "type"))
	switch typ {
	case "onelake":
		p := props(obj, "oneLake")
		return OneLakeRef{
			ItemID:      str(p, "itemId"),
			WorkspaceID: str(p, "workspaceId"),
			Path:        str(p, "path"),
		}, nil
	case "snowflake":
		p := props(obj, "snowflake")
		table := str(p, "table")
		if table == "" {
			table = str(p, "tableName")
		}
		return SnowflakeRef{
			Database: str(p, "database"),
			Schema:   str(p, "schema"),
			Table:    table,
		}, nil
	case "adlsgen2":
		p := props(obj, "adlsGen2")
		return blobRefFrom(p), nil
	case "azureblob":
		p := props(obj, "azureBlob")
		return blobRefFrom(p), nil
	case "amazons3":
		p := props(obj, "amazonS3")
		key := str(p, "key")
		if key == "" {
			key = str(p, "path")
		}
		return S3Ref{Bucket: str(p, "bucket"), Key: key}, nil
	case "sharepoint":
		p := props(obj, "sharePoint")
		loc := str(p, "location")
		if loc == "" {
			loc = str(p, "url")
		}
		return SharePointRef{Location: loc}, nil
	default:
		payload, err := json.Marshal(obj)
		if err != nil {
			return nil, appErr.Wrap(err, appErr.CodeParse, "marshal raw connection payload")
		}
		return RawRef{Payload: string(payload)}, nil
	}
}

func blobRefFrom(p map[string]any) BlobRef {
	container := str(p, "container")
	if container == "" {
		container = str(p, "location")
	}
	return BlobRef{Container: container, Path: str(p, "path")}
}

// props returns the type-specific property object, falling back to the
// generic typeProperties bag some export versions emit.
func props(obj map[string]any, key string) map[string]any {
	if m, ok := obj[key].(map[string]any); ok {
		return m
	}
	if m, ok := obj["typeProperties"].(map[string]any); ok {
		return m
	}
	return obj
}

func str(obj map[string]any, key string) string {
	if obj == nil {
		return ""
	}
	switch v := obj[key].(type) {
	case string:
		return v
	case float64:
		return fmt.Sprintf("%v", v)
	default:
		return ""
	}
}
