package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"csheet/internal/cell"
	"csheet/internal/config"
	"csheet/internal/navigation"
	"csheet/internal/server"
	"csheet/internal/viewer"
	"csheet/internal/visibility"
)

const (
	viewCellWidth = 320
	viewGap       = 4
)

type viewFlags struct {
	server    string
	columns   int
	rows      int
	scrollAll bool
	hover     []string
	zoom      string
	next      int
	refresh   bool
	timeout   time.Duration
	jsonOut   bool
}

func newViewCommand(ctx *commandContext) *cobra.Command {
	var flags viewFlags

	cmd := &cobra.Command{
		Use:   "view",
		Short: "Run a headless viewer session against a csheet server",
		Long: "Lays the server's cells out in a grid, scrolls the viewport, and reports each " +
			"cell's lifecycle state once every load has settled.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := ctx.configValue()
			base := strings.TrimRight(strings.TrimSpace(flags.server), "/")
			if base == "" {
				base = "http://" + cfg.Paths.Bind
			}
			runCtx, cancel := context.WithTimeout(cmd.Context(), flags.timeout)
			defer cancel()

			snap, err := runView(runCtx, cfg, base, flags, ctx)
			if err != nil {
				return err
			}
			if flags.jsonOut {
				return writeJSON(cmd, snap)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Loaded %s\n", snap.Counter)
			fmt.Fprintln(out, renderViewTable(snap, !isTerminal(out)))
			return nil
		},
	}

	cmd.Flags().StringVar(&flags.server, "server", "", "Server base URL (default: http://<paths.bind>)")
	cmd.Flags().IntVar(&flags.columns, "columns", 4, "Grid columns")
	cmd.Flags().IntVar(&flags.rows, "rows", 3, "Rows visible in the viewport")
	cmd.Flags().BoolVar(&flags.scrollAll, "scroll-all", false, "Scroll through the whole grid")
	cmd.Flags().StringSliceVar(&flags.hover, "hover", nil, "Cell ids to hover")
	cmd.Flags().StringVar(&flags.zoom, "zoom", "", "Cell id to open in the full viewer")
	cmd.Flags().IntVar(&flags.next, "next", 0, "Step the full viewer forward this many times after --zoom")
	cmd.Flags().BoolVar(&flags.refresh, "refresh", false, "Force refresh every visible cell once")
	cmd.Flags().DurationVar(&flags.timeout, "timeout", 2*time.Minute, "Give up after this long")
	cmd.Flags().BoolVar(&flags.jsonOut, "json", false, "Output JSON")
	return cmd
}

func runView(ctx context.Context, cfg *config.Config, base string, flags viewFlags, cmdCtx *commandContext) (viewer.Snapshot, error) {
	specs, err := fetchCells(ctx, base)
	if err != nil {
		return viewer.Snapshot{}, err
	}
	if len(specs) == 0 {
		return viewer.Snapshot{Counter: "0/0"}, nil
	}
	session, err := viewer.New(specs, viewer.OptionsFromConfig(cfg, base, cmdCtx.loggerFor()))
	if err != nil {
		return viewer.Snapshot{}, err
	}
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = session.Run(ctx)
	}()
	defer func() {
		session.Close()
		<-done
	}()

	columns := max(flags.columns, 1)
	rows := max(flags.rows, 1)
	cellHeight := float64(cfg.Viewer.TargetHeight)
	for i, spec := range specs {
		if err := session.Layout(spec.ID, gridRect(i, columns, cellHeight)); err != nil {
			return viewer.Snapshot{}, err
		}
	}

	pageHeight := float64(rows) * (cellHeight + viewGap)
	viewport := visibility.Rect{Width: float64(columns) * (viewCellWidth + viewGap), Height: pageHeight}
	totalRows := (len(specs) + columns - 1) / columns
	pages := 1
	if flags.scrollAll {
		pages = (totalRows + rows - 1) / rows
	}
	for page := 0; page < pages; page++ {
		viewport.Y = float64(page) * pageHeight
		if err := session.Scroll(viewport); err != nil {
			return viewer.Snapshot{}, err
		}
		if err := session.Idle(ctx); err != nil {
			return viewer.Snapshot{}, err
		}
	}

	for _, id := range flags.hover {
		if err := session.Hover(strings.TrimSpace(id)); err != nil {
			return viewer.Snapshot{}, err
		}
	}
	if flags.zoom != "" {
		if err := session.Zoom(flags.zoom); err != nil {
			return viewer.Snapshot{}, err
		}
		current := flags.zoom
		for i := 0; i < flags.next; i++ {
			target, err := session.Navigate(ctx, current, navigation.Next)
			if err != nil {
				return viewer.Snapshot{}, err
			}
			if target.Disabled {
				break
			}
			current = strings.TrimPrefix(target.Href, "#")
		}
	}
	if flags.refresh {
		if err := session.RefreshAll(); err != nil {
			return viewer.Snapshot{}, err
		}
	}
	if err := session.Idle(ctx); err != nil {
		return viewer.Snapshot{}, err
	}
	return session.Snapshot(ctx)
}

func gridRect(position, columns int, cellHeight float64) visibility.Rect {
	col := position % columns
	row := position / columns
	return visibility.Rect{
		X:      float64(col) * (viewCellWidth + viewGap),
		Y:      float64(row) * (cellHeight + viewGap),
		Width:  viewCellWidth,
		Height: cellHeight,
	}
}

func fetchCells(ctx context.Context, base string) ([]cell.Spec, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+"/api/cells", nil)
	if err != nil {
		return nil, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch cells: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch cells: unexpected status %d", resp.StatusCode)
	}
	var payload server.CellsResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode cells: %w", err)
	}
	specs := make([]cell.Spec, 0, len(payload.Cells))
	for _, c := range payload.Cells {
		specs = append(specs, c.Spec())
	}
	return specs, nil
}

func renderViewTable(snap viewer.Snapshot, plain bool) string {
	rows := make([][]string, 0, len(snap.Cells))
	for _, v := range snap.Cells {
		rows = append(rows, []string{
			fmt.Sprintf("%d", v.Position+1),
			shortID(v.ID),
			v.Display,
			strings.Join(v.Classes, " "),
			fmt.Sprintf("%.0fx%.0f", v.Box.Width, v.Box.Height),
			aspectLabel(v.Aspect),
		})
	}
	return renderTable(
		[]string{"#", "Cell", "Display", "State", "Box", "Aspect"},
		rows,
		[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignRight, alignRight},
		plain,
	)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func aspectLabel(aspect float64) string {
	if aspect <= 0 {
		return "-"
	}
	return fmt.Sprintf("%.3f", aspect)
}
