package metrics

import (
	"context"
	"sort"

	"go.opencensus.io/stats"
	"go.opencensus.io/stats/view"
	"go.opencensus.io/tag"
)

const (
	OpRegister   = "register"
	OpUnregister = "unregister"
	OpUpdate     = "update"

	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomeSkipped = "skipped"
	OutcomeCurrent = "current"
)

var (
	CounterOperations   = stats.Int64("mngr/operations", "Number of plugin operations", "1")
	CounterDownloadSize = stats.Int64("mngr/download_bytes", "Bytes of downloaded plugin artifacts", stats.UnitBytes)

	TagOperation = tag.MustNewKey("operation")
	TagOutcome   = tag.MustNewKey("outcome")
)

var (
	operationsView = &view.View{
		Name:        "mngr/operations",
		Measure:     CounterOperations,
		Description: "Number of plugin operations",
		TagKeys:     []tag.Key{TagOperation, TagOutcome},
		Aggregation: view.Count(),
	}
	downloadSizeView = &view.View{
		Name:        "mngr/download_bytes",
		Measure:     CounterDownloadSize,
		Description: "Bytes of downloaded plugin artifacts",
		Aggregation: view.Sum(),
	}
	views = []*view.View{operationsView, downloadSizeView}
)

func Register() error {
	return view.Register(views...)
}

func Unregister() {
	view.Unregister(views...)
}

// Record counts a single operation. Recording is a no-op until Register was called.
func Record(ctx context.Context, operation, outcome string) {
	_ = stats.RecordWithTags(ctx, []tag.Mutator{
		tag.Upsert(TagOperation, operation),
		tag.Upsert(TagOutcome, outcome),
	}, CounterOperations.M(1))
}

func RecordDownload(ctx context.Context, size int64) {
	stats.Record(ctx, CounterDownloadSize.M(size))
}

type Row struct {
	Operation string
	Outcome   string
	Count     int64
}

// Summary returns the operation counters collected so far, sorted by
// operation and outcome.
func Summary() ([]Row, error) {
	rows, err := view.RetrieveData(operationsView.Name)
	if err != nil {
		return nil, err
	}
	ret := make([]Row, 0, len(rows))
	for _, r := range rows {
		count, ok := r.Data.(*view.CountData)
		if !ok {
			continue
		}
		row := Row{Count: count.Value}
		for _, t := range r.Tags {
			switch t.Key {
			case TagOperation:
				row.Operation = t.Value
			case TagOutcome:
				row.Outcome = t.Value
			}
		}
		ret = append(ret, row)
	}
	sort.Slice(ret, func(i, j int) bool {
		if ret[i].Operation != ret[j].Operation {
			return ret[i].Operation < ret[j].Operation
		}
		return ret[i].Outcome < ret[j].Outcome
	})
	return ret, nil
}

// DownloadedBytes returns the total size of all recorded downloads.
func DownloadedBytes() (int64, error) {
	rows, err := view.RetrieveData(downloadSizeView.Name)
	if err != nil {
		return 0, err
	}
	var total int64
	for _, r := range rows {
		if sum, ok := r.Data.(*view.SumData); ok {
			total += int64(sum.Value)
		}
	}
	return total, nil
}
