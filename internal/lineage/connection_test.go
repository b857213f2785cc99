package lineage

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErr "github.com/fabriclens/engine/pkg/errors"
)

func TestNormalizeRejectsAbsentDescriptors(t *testing.T) {
	for _, raw := range []any{nil, []any{}, "", "  ", "NaN", "none", "NULL"} {
		_, err := Normalize(raw)
		require.Error(t, err, "descriptor %v", raw)
		assert.True(t, appErr.IsCode(err, appErr.CodeParse), "descriptor %v should be a parse error", raw)
	}
}

func TestNormalizeString(t *testing.T) {
	ref, err := Normalize("legacy-connection-string")
	require.NoError(t, err)
	raw, ok := ref.(RawRef)
	require.True(t, ok)
	assert.Equal(t, "legacy-connection-string", raw.Payload)
}

func TestNormalizeListTakesFirstElement(t *testing.T) {
	ref, err := Normalize([]any{
		map[string]any{"type": "oneLake", "oneLake": map[string]any{"itemId": "item-1"}},
		map[string]any{"type": "snowflake"},
	})
	require.NoError(t, err)
	ol, ok := ref.(OneLakeRef)
	require.True(t, ok)
	assert.Equal(t, "item-1", ol.ItemID)
}

func TestNormalizeOneLake(t *testing.T) {
	ref, err := Normalize(map[string]any{
		"type": "OneLake",
		"oneLake": map[string]any{
			"itemId":      "item-9",
			"workspaceId": "ws-1",
			"path":        "Tables/dbo/ORDERS",
		},
	})
	require.NoError(t, err)
	ol := ref.(OneLakeRef)
	assert.Equal(t, "item-9", ol.ItemID)
	assert.Equal(t, "ws-1", ol.WorkspaceID)
	assert.Equal(t, "Tables/dbo/ORDERS", ol.Path)
}

func TestNormalizeSnowflakeTableNameFallback(t *testing.T) {
	ref, err := Normalize(map[string]any{
		"type": "Snowflake",
		"typeProperties": map[string]any{
			"database":  "ANALYTICS",
			"schema":    "PUBLIC",
			"tableName": "CUSTOMER",
		},
	})
	require.NoError(t, err)
	sf := ref.(SnowflakeRef)
	assert.Equal(t, "CUSTOMER", sf.Table)
	assert.Equal(t, "ANALYTICS.PUBLIC.CUSTOMER", sf.FullPath())
}

func TestNormalizeBlobContainerFallsBackToLocation(t *testing.T) {
	ref, err := Normalize(map[string]any{
		"type":     "AdlsGen2",
		"adlsGen2": map[string]any{"location": "raw-zone", "path": "events/2025.parquet"},
	})
	require.NoError(t, err)
	blob := ref.(BlobRef)
	assert.Equal(t, "raw-zone", blob.Container)
	assert.Equal(t, "events/2025.parquet", blob.Path)
}

func TestNormalizeS3KeyFallsBackToPath(t *testing.T) {
	ref, err := Normalize(map[string]any{
		"type":     "AmazonS3",
		"amazonS3": map[string]any{"bucket": "exports", "path": "daily/dump.csv"},
	})
	require.NoError(t, err)
	s3 := ref.(S3Ref)
	assert.Equal(t, "exports", s3.Bucket)
	assert.Equal(t, "daily/dump.csv", s3.Key)
}

func TestNormalizeSharePoint(t *testing.T) {
	ref, err := Normalize(map[string]any{
		"type":       "SharePoint",
		"sharePoint": map[string]any{"location": "sites/finance/Shared Documents"},
	})
	require.NoError(t, err)
	sp, ok := ref.(SharePointRef)
	require.True(t, ok)
	assert.Equal(t, "sites/finance/Shared Documents", sp.Location)
}

func TestNormalizeSharePointURLFallback(t *testing.T) {
	ref, err := Normalize(map[string]any{
		"type": "SharePoint",
		"typeProperties": map[string]any{
			"url": "https://contoso.sharepoint.com/sites/finance",
		},
	})
	require.NoError(t, err)
	sp := ref.(SharePointRef)
	assert.Equal(t, "https://contoso.sharepoint.com/sites/finance", sp.Location)
}

func TestNormalizeUnknownObjectDegradesToRaw(t *testing.T) {
	ref, err := Normalize(map[string]any{"type": "Kusto", "cluster": "west"})
	require.NoError(t, err)
	raw, ok := ref.(RawRef)
	require.True(t, ok)
	assert.True(t, strings.Contains(raw.Payload, "Kusto"))
}

func TestRefIDStableAcrossKinds(t *testing.T) {
	a := RefID(SnowflakeRef{Database: "DB", Schema: "S", Table: "T"})
	b := RefID(SnowflakeRef{Database: "DB", Schema: "S", Table: "T"})
	assert.Equal(t, a, b)

	// A blob and a snowflake ref with coincidentally equal fields must not
	// collide; the kind participates in the identity.
	x := RefID(BlobRef{Container: "c", Path: "p"})
	y := RefID(S3Ref{Bucket: "c", Key: "p"})
	assert.NotEqual(t, x, y)
}

func TestRefIDMissingFieldsKeepPosition(t *testing.T) {
	a := RefID(SnowflakeRef{Database: "DB", Table: "T"})
	b := RefID(SnowflakeRef{Database: "DB", Schema: "T"})
	assert.NotEqual(t, a, b)
}
