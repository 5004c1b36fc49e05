package util

import (
	"time"

	"github.com/kapu/roster-aggregator-go/internal/constants"
)

// RunTimestamp formats t for run artifacts, in UTC.
func RunTimestamp(t time.Time) string {
	return t.UTC().Format(constants.OutputConfig.TimestampLayout)
}
