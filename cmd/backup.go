package cmd

import (
	"context"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"example.com/garageroute/services/workshop/config"
	"example.com/garageroute/services/workshop/internal/backup"
)

var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Take a database snapshot now",
	RunE:  runBackup,
}

var restoreCmd = &cobra.Command{
	Use:   "restore [file]",
	Short: "Restore a database snapshot",
	Args:  cobra.ExactArgs(1),
	RunE:  runRestore,
}

func init() {
	rootCmd.AddCommand(backupCmd)
	rootCmd.AddCommand(restoreCmd)
}

func runBackup(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig(".")
	if err != nil {
		return err
	}
	configureLogging(cfg)

	gdb, err := initDatabase(cfg)
	if err != nil {
		return err
	}

	path, err := backup.NewService(gdb, cfg.Backup).Run(context.Background())
	if err != nil {
		return errors.Wrap(err, "backup failed")
	}

	log.Info().Str("path", path).Msg("Backup written")
	return nil
}

func runRestore(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig(".")
	if err != nil {
		return err
	}
	configureLogging(cfg)

	gdb, err := initDatabase(cfg)
	if err != nil {
		return err
	}

	if err := backup.NewService(gdb, cfg.Backup).Restore(context.Background(), args[0]); err != nil {
		return errors.Wrap(err, "restore failed")
	}

	log.Info().Str("path", args[0]).Msg("Backup restored")
	return nil
}
