package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"odatagate/internal/config"
	"odatagate/internal/csdl"
	"odatagate/internal/pg"
	"odatagate/internal/service"
)

func newMetadataCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "metadata",
		Short: "Print the CSDL metadata document",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := offlineService(cmd)
			if err != nil {
				return err
			}
			return csdl.Write(cmd.OutOrStdout(), svc.Schemas)
		},
	}
}

func newDDLCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ddl",
		Short: "Print PostgreSQL DDL for the registered entity sets",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := offlineService(cmd)
			if err != nil {
				return err
			}
			ddl, err := pg.GenerateDDL(svc.Schemas)
			if err != nil {
				return err
			}
			_, err = fmt.Fprint(cmd.OutOrStdout(), pg.Script(ddl))
			return err
		},
	}
}

// offlineService строит схему без подключения к базе.
func offlineService(cmd *cobra.Command) (*service.Service, error) {
	cfg, err := config.Load(cmd.Flags())
	if err != nil {
		return nil, err
	}
	return buildService(cfg, nil, zap.NewNop())
}
