package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"go-swan/internal/content"
	"go-swan/internal/logx"
	"go-swan/internal/store"
)

var showCmd = &cobra.Command{
	Use:   "show [collection]",
	Short: "List what the local content store holds",
	Long: `show reads the local content directory the way the site renderer does.
Without arguments it prints the home sections, collections, navbar pages and the
last sync run; with a collection name it lists that collection's items in render order.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cs := content.New(cfg.Paths.ContentDir, cfg.Paths.DataDir)
		out := cmd.OutOrStdout()
		if len(args) == 1 {
			return showCollection(out, cs, args[0])
		}
		if err := showOverview(out, cs); err != nil {
			return err
		}
		showState(cmd.Context(), out, cfg.Database.DSN)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(showCmd)
}

func showCollection(out io.Writer, cs *content.Store, name string) error {
	posts, err := cs.Posts(name)
	if err != nil {
		return err
	}
	if len(posts) == 0 {
		fmt.Fprintf(out, "collection %q is empty or missing\n", name)
		return nil
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SLUG\tORDER\tDATE\tTITLE")
	for _, p := range posts {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", p.Slug, strconv.FormatFloat(p.Order, 'f', -1, 64), p.Date, p.Title)
	}
	return tw.Flush()
}

func showOverview(out io.Writer, cs *content.Store) error {
	home, err := cs.Home()
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "site: %d config keys\n", len(home.Info))
	fmt.Fprintf(out, "home: %d sections (%d enabled)\n", len(home.Sections), len(content.Enabled(home.Sections)))
	for _, sec := range home.Sections {
		fmt.Fprintf(out, "  - %-28s %s\n", sec.Type, sec.Title)
	}

	colls, err := cs.Collections()
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "collections: %d\n", len(colls))
	for _, c := range colls {
		posts, err := cs.Posts(c)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "  - %-28s %d items\n", c, len(posts))
	}

	pages, err := cs.NavbarPages()
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "navbar pages: %d\n", len(pages))
	for _, p := range pages {
		fmt.Fprintf(out, "  - %-28s %s\n", p.Slug, p.Title)
	}
	return nil
}

// showState 打印状态库中的最近一次同步；状态库不存在时不创建。
func showState(ctx context.Context, out io.Writer, dsn string) {
	if ctx == nil {
		ctx = context.Background()
	}
	if _, err := os.Stat(dsn); err != nil {
		return
	}
	st, err := store.OpenSQLite(dsn)
	if err != nil {
		logx.Warnf("打开状态库失败：%s 错误=%v", dsn, err)
		return
	}
	defer st.Close()
	stats, err := st.Stats(ctx)
	if err != nil {
		logx.Warnf("读取状态库失败：%v", err)
		return
	}
	fmt.Fprintf(out, "state: %d runs, %d tracked files, %d assets (%d failed)\n", stats.Runs, stats.Artifacts, stats.Assets, stats.AssetsErr)
	last, err := st.LastRun(ctx, "sync")
	if err != nil || last == nil {
		return
	}
	fmt.Fprintf(out, "last sync: %s %s started %s\n", last.ID, last.State, last.StartedAt.Format("2006-01-02 15:04:05"))
	steps, err := st.Steps(ctx, last.ID)
	if err != nil {
		return
	}
	for _, s := range steps {
		line := fmt.Sprintf("  - %-12s %-8s %d files", s.Name, s.State, s.Artifacts)
		if s.Error != "" {
			line += "  " + s.Error
		}
		fmt.Fprintln(out, line)
	}
}
