package database

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// queryLogger adapts slog to GORM's logger.Interface. Every statement the
// store layer issues against the history tables is emitted as a Debug
// message tagged with the dialect; level filtering is delegated to slog, so
// above Debug the SQL formatting callback is never invoked.
type queryLogger struct {
	dialect string
}

// LogMode is a no-op; level filtering is handled by slog.
func (l queryLogger) LogMode(logger.LogLevel) logger.Interface { return l }

// Info logs informational messages from GORM.
func (l queryLogger) Info(_ context.Context, msg string, args ...any) {
	slog.Info(fmt.Sprintf(msg, args...), "dialect", l.dialect)
}

// Warn logs warning messages from GORM.
func (l queryLogger) Warn(_ context.Context, msg string, args ...any) {
	slog.Warn(fmt.Sprintf(msg, args...), "dialect", l.dialect)
}

// Error logs error messages from GORM.
func (l queryLogger) Error(_ context.Context, msg string, args ...any) {
	slog.Error(fmt.Sprintf(msg, args...), "dialect", l.dialect)
}

// maxQueryLength is the maximum length of a statement in debug logs before
// it gets truncated with an ellipsis. Embedding vectors are inlined into
// companion-table inserts, so untruncated statements can run to kilobytes.
const maxQueryLength = 200

// truncateQuery shortens a statement for readable log output, replacing the
// middle with "..." when it exceeds maxQueryLength.
func truncateQuery(sql string) string {
	if len(sql) <= maxQueryLength {
		return sql
	}
	half := (maxQueryLength - 3) / 2
	return sql[:half] + "..." + sql[len(sql)-half:]
}

// Trace is called by GORM after every SQL operation. Real errors are logged
// at Error level. ErrRecordNotFound is the normal "no rows" result and is
// logged at Debug level alongside successful queries.
func (l queryLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	elapsed := time.Since(begin)

	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		sql, rows := fc()
		slog.Error("storage query failed",
			"dialect", l.dialect,
			"sql", truncateQuery(sql),
			"rows", rows,
			"duration", elapsed,
			"error", err,
		)
		return
	}

	if !slog.Default().Enabled(ctx, slog.LevelDebug) {
		return
	}

	sql, rows := fc()
	slog.Debug("storage query",
		"dialect", l.dialect,
		"sql", truncateQuery(sql),
		"rows", rows,
		"duration", elapsed,
	)
}
