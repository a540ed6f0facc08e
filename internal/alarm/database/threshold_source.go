package database

import (
	"context"
	"encoding/json"
	"fmt"

	prommodel "github.com/prometheus/common/model"

	"github.com/opseye/opseye/internal/alarm/model"
)

// ThresholdSource reads the latest output of the external threshold
// computation task. Each row is the full desired configuration for one time
// series; the computation overwrites rows in place, so no versioning is
// needed here.
type ThresholdSource struct {
	db *Database
}

func NewThresholdSource(db *Database) *ThresholdSource {
	return &ThresholdSource{db: db}
}

func (s *ThresholdSource) LatestResults(ctx context.Context, datasource string) ([]model.ThresholdResult, error) {
	const q = `
	SELECT unique_key, labels, thresholds
	FROM threshold_results
	WHERE datasource = $1
	ORDER BY unique_key
	`
	rows, err := s.db.QueryContext(ctx, q, datasource)
	if err != nil {
		return nil, fmt.Errorf("query threshold results: %w", err)
	}
	defer rows.Close()

	var out []model.ThresholdResult
	for rows.Next() {
		var r model.ThresholdResult
		var labelsRaw, thresholdsRaw []byte
		if err := rows.Scan(&r.UniqueKey, &labelsRaw, &thresholdsRaw); err != nil {
			return nil, fmt.Errorf("scan threshold result: %w", err)
		}
		r.Labels = prommodel.LabelSet{}
		if err := json.Unmarshal(labelsRaw, &r.Labels); err != nil {
			return nil, fmt.Errorf("unmarshal labels for %s: %w", r.UniqueKey, err)
		}
		if err := json.Unmarshal(thresholdsRaw, &r.Thresholds); err != nil {
			return nil, fmt.Errorf("unmarshal thresholds for %s: %w", r.UniqueKey, err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate threshold results: %w", err)
	}
	return out, nil
}
