package cmd

import (
	"github.com/spf13/cobra"

	"go-swan/internal/logx"
	"go-swan/internal/syncer"
)

var keepDays int

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Pull the workspace into local data, markdown and media files",
	Long: `sync resolves the well-known containers under the root page and refreshes the
local content directory. Individual step failures keep the previous files and
only fail the command when the root page itself cannot be read.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		ctx, cancel := signalContext()
		defer cancel()
		s := syncer.New(a.api, a.assets, a.store, syncer.Options{
			ContentDir:  cfg.Paths.ContentDir,
			DataDir:     cfg.Paths.DataDir,
			Concurrency: cfg.Concurrency.Fetch,
			Prune:       cfg.Prune(),
		})
		rep, err := s.Run(ctx, cfg.Notion.RootPageID)
		if err != nil {
			return err
		}
		for _, st := range rep.Steps {
			logx.Infof("步骤 %s：%s 文件=%d", st.Name, st.State, st.Artifacts)
		}
		if !rep.OK() {
			logx.Warnf("部分步骤失败，对应文件保持旧版本（运行 %s）", rep.RunID)
		}
		if a.store != nil && keepDays > 0 {
			if err := a.store.CleanOldRuns(ctx, keepDays); err != nil {
				logx.Warnf("清理历史运行记录失败：%v", err)
			}
		}
		return nil
	},
}

func init() {
	syncCmd.Flags().IntVar(&keepDays, "keep-days", 30, "drop run history older than N days (0 keeps everything)")
	rootCmd.AddCommand(syncCmd)
}
