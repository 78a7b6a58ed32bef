package main

import (
	"fmt"

	"github.com/Hacktool254/flashtrendy-ecommerce-store/internal/config"
	"github.com/Hacktool254/flashtrendy-ecommerce-store/internal/repository"
	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending Postgres migrations and exit",
	RunE:  runMigrate,
}

func runMigrate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	repo, err := openRepository(cfg, true)
	if err != nil {
		return err
	}
	defer repo.Close()
	fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
	return nil
}

func credentials(cfg *config.Config) *repository.Credentials {
	return &repository.Credentials{
		Host:              cfg.DB.Host,
		Port:              cfg.DB.Port,
		User:              cfg.DB.User,
		Password:          cfg.DB.Password,
		DBName:            cfg.DB.Name,
		MigrationsDirPath: cfg.DB.MigrationsPath,
	}
}

func openRepository(cfg *config.Config, migrate bool) (*repository.Repository, error) {
	cred := credentials(cfg)
	repo, err := repository.NewRepository(cred)
	if err != nil {
		return nil, err
	}
	if migrate {
		if err := repo.RunMigrations(cred); err != nil {
			repo.Close()
			return nil, err
		}
	}
	return repo, nil
}
