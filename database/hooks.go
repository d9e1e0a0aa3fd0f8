package database

import (
	"time"

	"github.com/pkg/errors"
	"gorm.io/gorm"

	"example.com/backstage/services/portal/metrics"
)

const startTimeKey = "metrics:start_time"

// RegisterMetricsHooks records the duration of every statement, labelled with
// its operation and table
func RegisterMetricsHooks(db *gorm.DB, m *metrics.Metrics) error {
	record := func(operation string) func(*gorm.DB) {
		return func(tx *gorm.DB) {
			m.DBQuery(operation, tableOf(tx), durationOf(tx))
		}
	}

	cb := db.Callback()
	errs := []error{
		cb.Create().Before("gorm:create").Register("metrics:before_create", startTimer),
		cb.Create().After("gorm:create").Register("metrics:after_create", record("create")),
		cb.Query().Before("gorm:query").Register("metrics:before_query", startTimer),
		cb.Query().After("gorm:query").Register("metrics:after_query", record("query")),
		cb.Update().Before("gorm:update").Register("metrics:before_update", startTimer),
		cb.Update().After("gorm:update").Register("metrics:after_update", record("update")),
		cb.Delete().Before("gorm:delete").Register("metrics:before_delete", startTimer),
		cb.Delete().After("gorm:delete").Register("metrics:after_delete", record("delete")),
		cb.Raw().Before("gorm:raw").Register("metrics:before_raw", startTimer),
		cb.Raw().After("gorm:raw").Register("metrics:after_raw", record("raw")),
	}
	for _, err := range errs {
		if err != nil {
			return errors.Wrap(err, "failed to register metrics hooks")
		}
	}
	return nil
}

func startTimer(tx *gorm.DB) {
	tx.InstanceSet(startTimeKey, time.Now())
}

func durationOf(tx *gorm.DB) time.Duration {
	if start, ok := tx.InstanceGet(startTimeKey); ok {
		if t, ok := start.(time.Time); ok {
			return time.Since(t)
		}
	}
	return 0
}

func tableOf(tx *gorm.DB) string {
	if tx.Statement != nil && tx.Statement.Table != "" {
		return tx.Statement.Table
	}
	return "unknown"
}
