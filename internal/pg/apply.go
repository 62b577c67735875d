package pg

import (
	"context"
	"database/sql"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// duplicate_object и duplicate_table
var alreadyExists = map[string]struct{}{
	"42710": {},
	"42P07": {},
}

// ApplyDDL выполняет map[ключ]sql в порядке ключей. Ожидается idempotent DDL (create ... if not exists).
func ApplyDDL(ctx context.Context, db *sql.DB, ddl map[string]string, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	keys := make([]string, 0, len(ddl))
	for k := range ddl {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		sqlText := strings.TrimSpace(ddl[k])
		if sqlText == "" {
			continue
		}
		for _, stmt := range splitStatements(sqlText) {
			if err := applyOne(ctx, db, stmt, logger); err != nil {
				return errors.Wrapf(err, "DDL apply failed (%s)", k)
			}
		}
		logger.Info("DDL applied", zap.String("phase", k))
	}
	return nil
}

func applyOne(ctx context.Context, db *sql.DB, stmt string, logger *zap.Logger) error {
	_, err := db.ExecContext(ctx, stmt)
	if err == nil {
		return nil
	}
	// pgx/stdlib возвращает *pgconn.PgError
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if _, ok := alreadyExists[pgErr.Code]; ok {
			logger.Debug("DDL skipped (already exists)",
				zap.String("code", pgErr.Code),
				zap.String("constraint", pgErr.ConstraintName),
				zap.String("message", strings.TrimSpace(pgErr.Message)))
			return nil
		}
		return err
	}
	// подстраховка по фразе (на случай других драйверов)
	if strings.Contains(strings.ToLower(err.Error()), "already exists") {
		logger.Debug("DDL skipped (already exists)", zap.Error(err))
		return nil
	}
	return err
}

// каждый оператор отдельно: пропуск дубликата не должен терять остаток фазы
func splitStatements(sqlText string) []string {
	var out []string
	for _, s := range strings.Split(sqlText, ";\n") {
		s = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), ";"))
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
