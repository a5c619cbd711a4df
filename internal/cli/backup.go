package cli

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/scrypster/companion/internal/backup"
	"github.com/scrypster/companion/internal/config"
	"github.com/scrypster/companion/internal/connections"
	"github.com/scrypster/companion/internal/storage/sqlite"
)

// sqlitePath returns the database file backups operate on.
func sqlitePath(cfg *config.Config) (string, error) {
	target, err := connections.Resolve(cfg.Storage.DatabaseURL, cfg.Storage.DataPath)
	if err != nil {
		return "", err
	}
	if target.Kind != connections.KindSQLite {
		return "", fmt.Errorf("backups are only supported for sqlite, not %s", target.Kind)
	}
	path := sqlite.PathFromDSN(target.DSN)
	if path == "" {
		return "", fmt.Errorf("cannot back up an in-memory database")
	}
	return path, nil
}

func newBackupCmd(opts *options) *cobra.Command {
	var keep int
	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Snapshot the SQLite database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			path, err := sqlitePath(cfg)
			if err != nil {
				return err
			}

			info, err := backup.Create(path, cfg.Backup.BackupPath, cfg.Backup.BackupVerify)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "backup written to %s (%s", info.Path, humanize.Bytes(uint64(info.Size)))
			if info.Verified {
				fmt.Fprint(out, ", verified")
			}
			fmt.Fprintln(out, ")")

			if keep > 0 {
				removed, err := backup.Prune(cfg.Backup.BackupPath, keep)
				if err != nil {
					return err
				}
				if removed > 0 {
					fmt.Fprintf(out, "pruned %d old backup(s)\n", removed)
				}
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&keep, "keep", 0, "keep only the newest N backups (0 keeps all)")

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List backups, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			backups, err := backup.List(cfg.Backup.BackupPath)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(backups) == 0 {
				fmt.Fprintln(out, "no backups")
				return nil
			}
			for _, b := range backups {
				fmt.Fprintf(out, "%s  %8s  %s\n", b.Timestamp.Local().Format("2006-01-02 15:04:05"), humanize.Bytes(uint64(b.Size)), b.Path)
			}
			return nil
		},
	})
	return cmd
}

func newRestoreCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "restore <backup-file>",
		Short: "Replace the SQLite database with a backup",
		Long:  "Replace the SQLite database with a verified backup. Stop the server first.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			path, err := sqlitePath(cfg)
			if err != nil {
				return err
			}
			if err := backup.Restore(args[0], path); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "restored %s from %s\n", path, args[0])
			return nil
		},
	}
}
