package store

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

// sampleCount reads the histogram sample count for an operation/result
// pair from the default registry, or 0 when no sample exists yet.
func sampleCount(t *testing.T, operation, result string) uint64 {
	t.Helper()
	families, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		t.Fatalf("gather failed: %v", err)
	}
	for _, mf := range families {
		if mf.GetName() != "timetrack_store_operation_duration_seconds" {
			continue
		}
		for _, m := range mf.GetMetric() {
			if labelsMatch(m, operation, result) {
				return m.GetHistogram().GetSampleCount()
			}
		}
	}
	return 0
}

func labelsMatch(m *dto.Metric, operation, result string) bool {
	var opOK, resOK bool
	for _, l := range m.GetLabel() {
		switch l.GetName() {
		case "operation":
			opOK = l.GetValue() == operation
		case "result":
			resOK = l.GetValue() == result
		}
	}
	return opOK && resOK
}

func TestObserveOpRecordsOutcome(t *testing.T) {
	beforeOK := sampleCount(t, "fetch", "success")
	beforeErr := sampleCount(t, "fetch", "error")

	func() {
		var err error
		defer ObserveOp("fetch", time.Now(), &err)
	}()

	func() (err error) {
		defer ObserveOp("fetch", time.Now(), &err)
		return errors.New("connection refused")
	}()

	if got := sampleCount(t, "fetch", "success"); got != beforeOK+1 {
		t.Fatalf("expected %d success samples, got %d", beforeOK+1, got)
	}
	if got := sampleCount(t, "fetch", "error"); got != beforeErr+1 {
		t.Fatalf("expected %d error samples, got %d", beforeErr+1, got)
	}
}
