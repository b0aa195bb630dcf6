package cli

import (
	"context"
	"flag"
	"fmt"

	"bankchat/internal/tui"
)

func runTUI(args []string, std streams) int {
	fs := flag.NewFlagSet("tui", flag.ContinueOnError)
	fs.SetOutput(std.err)
	common := addCommonFlags(fs)
	exportDir := fs.String("export-dir", "", "directory for /export files")
	if err := fs.Parse(args); err != nil {
		return 1
	}

	cfg, err := common.resolveConfig()
	if err != nil {
		fmt.Fprintln(std.err, err)
		return 1
	}
	if *exportDir != "" {
		cfg.Export.Dir = *exportDir
	}

	// The full-screen program owns the terminal, so logs only go to a file.
	a, err := newApp(context.Background(), cfg, nil)
	if err != nil {
		fmt.Fprintln(std.err, err)
		return 1
	}
	defer a.Close()

	if err := tui.Run(tui.Options{
		Dispatcher: a.dispatcher,
		Catalog:    a.catalog,
		Logger:     a.logger,
		ExportDir:  cfg.Export.Dir,
	}); err != nil {
		fmt.Fprintln(std.err, err.Error())
		return 1
	}
	return 0
}
