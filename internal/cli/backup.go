package cli

import (
	"path/filepath"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/nerdneilsfield/go-overlay-translator/pkg/store"
)

func newBackupCommand() *cobra.Command {
	var dir string

	cmd := &cobra.Command{
		Use:   "backup",
		Short: "备份全部语言的译文记录",
		Long: `把存储中全部语言的记录写入新的备份文件，
并按 store.keep_backups 删除较旧的备份。`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := newRuntime()
			if err != nil {
				return err
			}
			defer rt.Close()

			if dir == "" {
				dir = rt.cfg.Store.BackupDir
			}
			path, err := store.WriteBackup(rt.store, dir)
			if err != nil {
				return err
			}
			removed, err := store.PruneBackups(dir, rt.cfg.Store.KeepBackups)
			if err != nil {
				return err
			}
			success(cmd).Printfln("backup written to %s", path)
			for _, p := range removed {
				warning(cmd).Printfln("removed old backup %s", filepath.Base(p))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&dir, "dir", "", "备份目录 (默认 store.backup_dir)")
	return cmd
}

func newRestoreCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "restore <backup-file>",
		Short: "从备份恢复译文记录",
		Long: `校验备份文件后把其中的记录写回存储。
备份损坏时不写入任何记录。`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := newRuntime()
			if err != nil {
				return err
			}
			defer rt.Close()

			n, err := store.RestoreBackup(rt.store, args[0])
			if err != nil {
				return err
			}
			success(cmd).Printfln("restored %d records from %s", n, args[0])
			return nil
		},
	}
}

func newBackupsCommand() *cobra.Command {
	var dir string

	cmd := &cobra.Command{
		Use:   "backups",
		Short: "列出已有备份",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := newRuntime()
			if err != nil {
				return err
			}
			defer rt.Close()

			if dir == "" {
				dir = rt.cfg.Store.BackupDir
			}
			infos, err := store.ListBackups(dir)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			printTitle(out, "Backups in %s", dir)
			t := newTable(out, table.Row{"Created", "ID", "Records", "File"})
			for _, b := range infos {
				t.AppendRow(table.Row{
					b.CreatedAt.Local().Format("2006-01-02 15:04:05"),
					shortID(b.ID),
					b.Records,
					filepath.Base(b.Path),
				})
			}
			t.Render()
			return nil
		},
	}

	cmd.Flags().StringVar(&dir, "dir", "", "备份目录 (默认 store.backup_dir)")
	return cmd
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
