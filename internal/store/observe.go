package store

import (
	"time"

	"github.com/yourorg/timetrack/internal/observability/metrics"
)

// ObserveOp records the latency and outcome of a remote store call.
// Call it deferred with the operation's named error:
//
//	defer store.ObserveOp("get", time.Now(), &err)
func ObserveOp(operation string, start time.Time, err *error) {
	result := "success"
	if err != nil && *err != nil {
		result = "error"
	}
	metrics.ObserveStoreOperation(operation, result, time.Since(start))
}
