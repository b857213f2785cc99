// Package export reads lineage export documents from wherever they live.
// Acquisition from the platform APIs is a separate concern; this reader only
// consumes the point-in-time documents that acquisition drops off.
package export

import (
	"context"
	"strings"
	"time"

	"github.com/viant/afs"

	"github.com/fabriclens/engine/internal/lineage"
	appErr "github.com/fabriclens/engine/pkg/errors"
)

// Reader loads export documents through the abstract file storage layer, so
// file://, s3://, and the other afs schemes all work.
type Reader struct {
	fs afs.Service
}

// NewReader returns a reader over the default afs service.
func NewReader() *Reader {
	return &Reader{fs: afs.New()}
}

// normalizeURL treats bare paths as local files.
func normalizeURL(url string) string {
	if strings.Contains(url, "://") {
		return url
	}
	return "file://" + url
}

// Read downloads and decodes the export at the given URL.
func (r *Reader) Read(ctx context.Context, url string) ([]lineage.Record, error) {
	data, err := r.fs.DownloadWithURL(ctx, normalizeURL(url))
	if err != nil {
		return nil, appErr.Wrap(err, appErr.CodeUnavailable, "download export").WithMeta("url", url)
	}
	return lineage.ParseExport(data)
}

// ModTime probes the export's last modification time, used as the snapshot
// cache invalidation signal. A probe failure is not fatal; callers fall back
// to TTL expiry alone.
func (r *Reader) ModTime(ctx context.Context, url string) (time.Time, error) {
	obj, err := r.fs.Object(ctx, normalizeURL(url))
	if err != nil {
		return time.Time{}, appErr.Wrap(err, appErr.CodeUnavailable, "probe export").WithMeta("url", url)
	}
	return obj.ModTime(), nil
}
