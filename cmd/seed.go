package cmd

import (
	"context"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"go-swan/internal/logx"
	"go-swan/internal/model"
	"go-swan/internal/seed"
)

var definitionPath string

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Bootstrap an empty workspace root from a site definition",
	Long: `seed creates the Home Page, Navbar Pages, Collections and Config containers under
the root page. It refuses to write anything when the root already has content.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		site, err := loadDefinition(definitionPath)
		if err != nil {
			return err
		}
		a, err := newApp(cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		ctx, cancel := signalContext()
		defer cancel()
		runID := uuid.NewString()
		a.recordRun(ctx, model.Run{ID: runID, Kind: "seed", Root: cfg.Notion.RootPageID})

		res, err := seed.New(a.api).Seed(ctx, cfg.Notion.RootPageID, site)
		if err != nil {
			a.finishRun(ctx, runID, err)
			return err
		}
		a.finishRun(ctx, runID, nil)
		logx.Infof("初始化完成：section=%d 行=%d 跳过=%d", res.Sections, res.Rows, res.Skipped)
		return nil
	},
}

func init() {
	seedCmd.Flags().StringVar(&definitionPath, "definition", "", "site definition YAML (default: built-in sample site)")
	rootCmd.AddCommand(seedCmd)
}

func loadDefinition(path string) (*seed.Site, error) {
	if path == "" {
		return seed.Default()
	}
	return seed.Load(path)
}

func (a *app) recordRun(ctx context.Context, r model.Run) {
	if a.store == nil {
		return
	}
	if err := a.store.BeginRun(ctx, r); err != nil {
		logx.Warnf("记录运行失败：%v", err)
	}
}

func (a *app) finishRun(ctx context.Context, runID string, runErr error) {
	if a.store == nil {
		return
	}
	state, msg := model.StateDone, ""
	if runErr != nil {
		state, msg = model.StateFailed, runErr.Error()
	}
	if err := a.store.SetRunState(context.WithoutCancel(ctx), runID, state, msg); err != nil {
		logx.Warnf("记录运行状态失败：%v", err)
	}
}
