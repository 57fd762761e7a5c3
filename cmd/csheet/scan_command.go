package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"csheet/internal/catalog"
	"csheet/internal/thumbnail"
)

func newScanCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool
	var warm bool

	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Scan the media directory and update the catalog",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := ctx.mediaDir()
			if err != nil {
				return err
			}
			cfg := ctx.configValue()
			return ctx.withCatalog(func(store *catalog.Store) error {
				items, err := store.Sync(cmd.Context(), dir, cfg.Catalog.Extensions)
				if err != nil {
					return err
				}
				failed := 0
				if warm {
					gen := thumbnail.New(cfg, thumbnail.WithLogger(ctx.loggerFor()))
					if failed, err = gen.Warm(cmd.Context(), items, store); err != nil {
						return err
					}
					if items, err = store.List(cmd.Context(), dir); err != nil {
						return err
					}
				}
				if jsonOut {
					return writeJSON(cmd, scanRows(items))
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "%s: %d shots\n", catalog.SheetTitle(dir), len(items))
				if len(items) > 0 {
					fmt.Fprintln(out, renderScanTable(items, !isTerminal(out)))
				}
				if failed > 0 {
					fmt.Fprintf(out, "%d thumbnails failed; see the log for details\n", failed)
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output JSON")
	cmd.Flags().BoolVar(&warm, "thumbs", false, "Generate thumbnails and previews")
	return cmd
}

type scanRow struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	File     string    `json:"file"`
	Kind     string    `json:"kind"`
	Size     int64     `json:"size"`
	Modified time.Time `json:"modified"`
	Thumb    bool      `json:"thumb"`
}

func scanRows(items []catalog.Item) []scanRow {
	rows := make([]scanRow, 0, len(items))
	for _, item := range items {
		rows = append(rows, scanRow{
			ID:       item.ID,
			Name:     item.Name,
			File:     item.FileName(),
			Kind:     string(item.Kind),
			Size:     item.Size,
			Modified: item.ModTime,
			Thumb:    strings.TrimSpace(item.Thumb) != "",
		})
	}
	return rows
}

func renderScanTable(items []catalog.Item, plain bool) string {
	rows := make([][]string, 0, len(items))
	for _, item := range items {
		rows = append(rows, []string{
			item.Name,
			item.FileName(),
			string(item.Kind),
			humanize.Bytes(uint64(item.Size)),
			humanize.Time(item.ModTime),
			yesNo(strings.TrimSpace(item.Thumb) != ""),
		})
	}
	return renderTable(
		[]string{"Shot", "File", "Kind", "Size", "Modified", "Thumb"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignLeft, alignLeft},
		plain,
	)
}
