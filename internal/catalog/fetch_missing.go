package catalog

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/galleryplan/engine/pkg/logger"
)

// FetchError is the per-ID outcome of a failed catalog lookup. Exactly one of
// StatusCode or Err carries the detail.
type FetchError struct {
	ExternalID uint   `json:"id"`
	StatusCode int    `json:"status_code,omitempty"`
	Err        string `json:"error,omitempty"`
}

// FetchMissing resolves each ID against the catalog, best effort: a failure
// for one ID never aborts the others. It returns the fetched records in input
// order plus one FetchError per ID that could not be resolved.
func FetchMissing(ctx context.Context, f Fetcher, externalIDs []uint) ([]*Record, []FetchError) {
	var records []*Record
	var fetchErrs []FetchError

	for _, id := range externalIDs {
		if ctx.Err() != nil {
			fetchErrs = append(fetchErrs, FetchError{ExternalID: id, Err: ctx.Err().Error()})
			continue
		}

		rec, err := f.Fetch(ctx, id)
		if err != nil {
			var se *StatusError
			if errors.As(err, &se) {
				fetchErrs = append(fetchErrs, FetchError{ExternalID: id, StatusCode: se.StatusCode})
			} else {
				fetchErrs = append(fetchErrs, FetchError{ExternalID: id, Err: err.Error()})
			}
			logger.L().Warn("catalog fetch failed",
				zap.Uint("external_id", id),
				zap.Error(err),
			)
			continue
		}
		records = append(records, rec)
	}

	return records, fetchErrs
}
