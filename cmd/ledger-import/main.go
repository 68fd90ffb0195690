package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"

	"ledger/internal/cli"
	"ledger/internal/core"
	"ledger/internal/importer"
	applog "ledger/internal/log"
	"ledger/internal/services"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cli.LoadEnvFile()
	logger := cli.SetupLogger(applog.ComponentCLI)

	switch os.Args[1] {
	case "import":
		runImport(logger)
	case "export":
		runExport(logger)
	case "template":
		if err := importer.WriteTemplate(os.Stdout); err != nil {
			cli.Fatal(logger, "Failed to write template", err)
		}
	case "summary":
		runSummary(logger)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Ledger import tool")
	fmt.Println("\nUsage:")
	fmt.Println("  ledger-import <command> [options]")
	fmt.Println("\nCommands:")
	fmt.Println("  import    Check or commit a CSV file into a tenant's ledger")
	fmt.Println("  export    Write a tenant's transactions as CSV")
	fmt.Println("  template  Print the canonical CSV header")
	fmt.Println("  summary   Print totals for a month range")
	fmt.Println("\nRun 'ledger-import <command> -h' for more information on a command.")
}

func openApp(logger *applog.Logger) *cli.App {
	cfg := cli.LoadAndValidateConfig(logger)
	repo := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	// offline runs only refresh in-process caches
	return cli.NewApp(logger, cfg, repo, nil)
}

func tenantFlag(fs *flag.FlagSet) *string {
	return fs.String("tenant", os.Getenv("LEDGER_TENANT"), "tenant id (or set LEDGER_TENANT)")
}

func parseTenant(logger *applog.Logger, s string) int64 {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		cli.Fatal(logger, "Invalid tenant", core.ErrMissingTenant)
	}
	return id
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func runImport(logger *applog.Logger) {
	fs := flag.NewFlagSet("import", flag.ExitOnError)
	tenant := tenantFlag(fs)
	file := fs.String("file", "", "CSV file to import (required)")
	mode := fs.String("mode", "check", "check or commit")
	policy := fs.String("policy", "skip", "duplicate policy: skip, allow or replace")
	dateFormat := fs.String("date-format", "", "auto, dmy or mdy")
	createCategories := fs.Bool("create-categories", false, "create categories named in the file")
	fs.Parse(os.Args[2:])

	if *file == "" {
		fmt.Fprintln(os.Stderr, "Error: -file is required")
		fs.Usage()
		os.Exit(2)
	}
	tenantID := parseTenant(logger, *tenant)

	var (
		opts services.ImportOptions
		err  error
	)
	if opts.Mode, err = core.ParseImportMode(*mode); err != nil {
		cli.Fatal(logger, "Invalid mode", err)
	}
	if opts.Policy, err = core.ParseDuplicatePolicy(*policy); err != nil {
		cli.Fatal(logger, "Invalid duplicate policy", err)
	}
	if opts.DateFormat, err = importer.ParseDateFormat(*dateFormat); err != nil {
		cli.Fatal(logger, "Invalid date format", err)
	}
	opts.CreateMissingCategories = *createCategories

	f, err := os.Open(*file)
	if err != nil {
		cli.Fatal(logger, "Failed to open file", err)
	}
	defer f.Close()

	app := openApp(logger)
	defer app.Repo.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	logger.Info("Starting import", "tenant_id", tenantID, "file", *file, "mode", opts.Mode, "policy", opts.Policy)

	var out any
	if opts.Mode == core.ModeCheck {
		out, err = app.Imports.Check(ctx, tenantID, f, opts)
	} else {
		out, err = app.Imports.Commit(ctx, tenantID, f, opts)
	}
	if err != nil {
		cli.Fatal(logger, "Import failed", err)
	}
	if err := printJSON(out); err != nil {
		cli.Fatal(logger, "Failed to print result", err)
	}
}

func runExport(logger *applog.Logger) {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	tenant := tenantFlag(fs)
	from := fs.String("from", "", "first month, YYYY-MM")
	to := fs.String("to", "", "last month, YYYY-MM")
	output := fs.String("o", "", "output file (default stdout)")
	fs.Parse(os.Args[2:])

	tenantID := parseTenant(logger, *tenant)

	var filter core.TransactionFilter
	var err error
	if filter.MonthFrom, err = core.ParsePeriod(*from); err != nil {
		cli.Fatal(logger, "Invalid -from", err)
	}
	if filter.MonthTo, err = core.ParsePeriod(*to); err != nil {
		cli.Fatal(logger, "Invalid -to", err)
	}

	w := os.Stdout
	if *output != "" {
		f, err := os.Create(*output)
		if err != nil {
			cli.Fatal(logger, "Failed to create output file", err)
		}
		defer f.Close()
		w = f
	}

	app := openApp(logger)
	defer app.Repo.Close()

	n, err := app.Ledger.Export(context.Background(), tenantID, filter, w)
	if err != nil {
		cli.Fatal(logger, "Export failed", err)
	}
	logger.Info("Export complete", "tenant_id", tenantID, "rows", n)
}

func runSummary(logger *applog.Logger) {
	fs := flag.NewFlagSet("summary", flag.ExitOnError)
	tenant := tenantFlag(fs)
	last := fs.Int("last", 12, "number of months ending with the current one")
	fs.Parse(os.Args[2:])

	tenantID := parseTenant(logger, *tenant)
	from, to := core.LastNMonths(time.Now(), *last)

	app := openApp(logger)
	defer app.Repo.Close()

	totals, err := app.Reports.Summary(context.Background(), tenantID, from, to)
	if err != nil {
		cli.Fatal(logger, "Summary failed", err)
	}
	if err := printJSON(map[string]string{
		"from":            from.String(),
		"to":              to.String(),
		"totalIncome":     core.FormatAmount(totals.TotalIncome),
		"totalExpense":    core.FormatAmount(totals.TotalExpense),
		"balance":         core.FormatAmount(totals.Balance),
		"fixedExpense":    core.FormatAmount(totals.FixedExpense),
		"variableExpense": core.FormatAmount(totals.VariableExpense),
	}); err != nil {
		cli.Fatal(logger, "Failed to print result", err)
	}
}
