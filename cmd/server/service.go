package main

import (
	"database/sql"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"odatagate/internal/api"
	"odatagate/internal/config"
	"odatagate/internal/reference"
	"odatagate/internal/sample"
	"odatagate/internal/service"
)

// buildService собирает сервис: справочники, сущности sample, контроллеры.
// db == nil: in-memory контроллеры.
func buildService(cfg *config.Config, db *sql.DB, logger *zap.Logger) (*service.Service, error) {
	b := service.NewBuilder(cfg.Schema.Container, api.JSONDecoder{}, logger)

	if cfg.Schema.EnumsDir != "" {
		enums, err := reference.LoadEnumTypes(cfg.Schema.EnumsDir)
		if err != nil {
			return nil, err
		}
		for _, e := range enums {
			if err := b.AddEnumType(cfg.Schema.EnumNamespace, e); err != nil {
				return nil, errors.Wrapf(err, "enum %s", e.Name)
			}
		}
		logger.Info("enum catalogs loaded", zap.String("dir", cfg.Schema.EnumsDir), zap.Int("count", len(enums)))
	}

	var (
		ctrls sample.Controllers
		err   error
	)
	if db != nil {
		ctrls, err = sample.Postgres(db, logger.Named("pg"))
	} else {
		ctrls, err = sample.Memory()
	}
	if err != nil {
		return nil, err
	}
	if err := sample.Register(b, ctrls); err != nil {
		return nil, err
	}
	return b.Build()
}
