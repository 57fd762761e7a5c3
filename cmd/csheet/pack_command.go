package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"csheet/internal/catalog"
	"csheet/internal/fileutil"
	"csheet/internal/pack"
	"csheet/internal/progressfeed"
	"csheet/internal/thumbnail"
)

func newPackCommand(ctx *commandContext) *cobra.Command {
	var output string
	var serverURL string

	cmd := &cobra.Command{
		Use:   "pack",
		Short: "Pack the contact sheet into a zip archive",
		Long: "Pack the media directory locally, or download a packed sheet from a running " +
			"server with --server while following its progress feed.",
		RunE: func(cmd *cobra.Command, args []string) error {
			progress := progressPrinter(cmd.ErrOrStderr())
			if strings.TrimSpace(serverURL) != "" {
				return packRemote(cmd.Context(), strings.TrimRight(serverURL, "/"), output, progress, cmd.OutOrStdout())
			}
			return packLocal(cmd, ctx, output, progress)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "Destination zip (default: <title>.zip in the current directory)")
	cmd.Flags().StringVar(&serverURL, "server", "", "Download from a running csheet server instead of packing locally")
	return cmd
}

func packLocal(cmd *cobra.Command, ctx *commandContext, output string, report func(float64)) error {
	dir, err := ctx.mediaDir()
	if err != nil {
		return err
	}
	cfg := ctx.configValue()
	logger := ctx.loggerFor()
	return ctx.withCatalog(func(store *catalog.Store) error {
		items, err := store.Sync(cmd.Context(), dir, cfg.Catalog.Extensions)
		if err != nil {
			return err
		}
		progress := pack.NewProgress()
		updates, cancel := progress.Subscribe()
		go func() {
			for v := range updates {
				report(v)
			}
		}()
		defer cancel()

		packer := pack.New(cfg.Paths.PackDir, thumbnail.New(cfg, thumbnail.WithLogger(logger)), progress, logger)
		archive, err := packer.Pack(cmd.Context(), catalog.SheetTitle(dir), items)
		if err != nil {
			return err
		}
		defer archive.Remove()

		target := outputPath(output, archive.Name)
		if err := fileutil.CopyFile(archive.Path, target); err != nil {
			return fmt.Errorf("write %s: %w", target, err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Packed %d shots into %s\n", len(items), target)
		return nil
	})
}

// packRemote downloads /pack while watching /pack_progress. The watcher is
// best-effort: it stops once the download finishes.
func packRemote(ctx context.Context, base, output string, report func(float64), out io.Writer) error {
	watchCtx, stopWatch := context.WithCancel(ctx)
	defer stopWatch()

	group, gctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		err := progressfeed.Watch(watchCtx, base+"/pack_progress", report)
		if err != nil && !errors.Is(err, context.Canceled) {
			fmt.Fprintf(out, "progress feed unavailable: %v\n", err)
		}
		return nil
	})

	var target string
	group.Go(func() error {
		defer stopWatch()
		var err error
		target, err = download(gctx, base+"/pack", output)
		return err
	})
	if err := group.Wait(); err != nil {
		return err
	}
	fmt.Fprintf(out, "Saved %s\n", target)
	return nil
}

func download(ctx context.Context, url, output string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("request pack: %w", err)
	}
	defer resp.Body.Close()
	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusTooManyRequests:
		return "", errors.New("server is already packing; try again when it finishes")
	default:
		return "", fmt.Errorf("request pack: unexpected status %d", resp.StatusCode)
	}

	name := "csheet.zip"
	if _, params, err := mime.ParseMediaType(resp.Header.Get("Content-Disposition")); err == nil && params["filename"] != "" {
		name = filepath.Base(params["filename"])
	}
	target := outputPath(output, name)
	err = fileutil.WriteAtomic(target, func(w io.Writer) error {
		_, err := io.Copy(w, resp.Body)
		return err
	})
	if err != nil {
		return "", fmt.Errorf("save archive: %w", err)
	}
	return target, nil
}

func outputPath(output, name string) string {
	output = strings.TrimSpace(output)
	if output == "" {
		return name
	}
	if info, err := os.Stat(output); err == nil && info.IsDir() {
		return filepath.Join(output, name)
	}
	return output
}

func progressPrinter(w io.Writer) func(float64) {
	colorize := isTerminal(w)
	return func(v float64) {
		if v < 0 {
			if colorize {
				fmt.Fprintln(w)
			}
			return
		}
		if colorize {
			fmt.Fprintf(w, "\rpacking %5.1f%%", v)
			return
		}
		fmt.Fprintf(w, "packing %.1f%%\n", v)
	}
}
