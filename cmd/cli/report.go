package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/jeovahfialho/capgains-ledger/internal/config"
	"github.com/jeovahfialho/capgains-ledger/internal/domain"
	"github.com/jeovahfialho/capgains-ledger/internal/export"
	"github.com/jeovahfialho/capgains-ledger/internal/ingestion"
	"github.com/jeovahfialho/capgains-ledger/internal/service"
	"github.com/jeovahfialho/capgains-ledger/internal/storage/postgres"
	"github.com/jeovahfialho/capgains-ledger/internal/taxlot"
	pkglogger "github.com/jeovahfialho/capgains-ledger/pkg/logger"
)

type services struct {
	cfg    *config.Config
	ledger *service.LedgerService
	tax    *service.TaxService
	close  func()
}

// setup monta os serviços sobre arquivos CSV ou, com --db, sobre o Postgres.
// A CLI não usa cache.
func setup(cmd *cobra.Command, files []string) (*services, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	fromDB, _ := cmd.Flags().GetBool("db")

	var source service.TradeSource
	closeFn := func() { pkglogger.Close() }

	if fromDB {
		db, err := connectDB(cfg)
		if err != nil {
			pkglogger.Close()
			return nil, err
		}
		source = postgres.NewTradeRepository(db)
		closeFn = func() {
			db.Close()
			pkglogger.Close()
		}
	} else {
		if len(files) == 0 {
			return nil, fmt.Errorf("informe arquivos CSV ou use --db")
		}
		paths, err := ingestion.ExpandPaths(files)
		if err != nil {
			return nil, err
		}
		parser := ingestion.NewParser(cfg.BatchSize, cfg.Workers, cfg.Delimiter())
		source = ingestion.NewFileSource(parser, paths)
	}

	ledger := service.NewLedgerService(source, taxlot.NewEngine(cfg.DefaultToken), nil)
	tax := service.NewTaxService(ledger, nil, cfg.Taxpayer, cfg.Rates())

	return &services{cfg: cfg, ledger: ledger, tax: tax, close: closeFn}, nil
}

func ratesFromFlags(cmd *cobra.Command, defaults taxlot.Rates) (*taxlot.Rates, error) {
	short, _ := cmd.Flags().GetString("short")
	long, _ := cmd.Flags().GetString("long")
	return service.ParseRates(short, long, defaults)
}

func showLedger(cmd *cobra.Command, files []string, openLots, asJSON bool) error {
	svc, err := setup(cmd, files)
	if err != nil {
		return err
	}
	defer svc.close()

	token, _ := cmd.Flags().GetString("token")

	result, err := svc.ledger.Result(cmd.Context(), token)
	if err != nil {
		return err
	}

	if asJSON {
		return writeJSON(os.Stdout, result)
	}

	if len(result.Entries) == 0 {
		fmt.Println("Nenhuma venda encontrada.")
	} else {
		printEntries(os.Stdout, result.Entries)
	}

	totals := taxlot.Aggregate(result.Entries)
	fmt.Printf("\n📊 Curto prazo: %s | Longo prazo: %s | Total: %s\n",
		totals.ShortTerm.StringFixed(2), totals.LongTerm.StringFixed(2), totals.TotalGain.StringFixed(2))
	fmt.Printf("📥 %d operações lidas, %d ignoradas\n", result.Accepted, result.Skipped)

	if estimated := countEstimated(result.Entries); estimated > 0 {
		fmt.Printf("⚠️  %d venda(s) sem lote de compra: custo considerado zero\n", estimated)
	}

	if openLots {
		fmt.Printf("\n📦 %d lote(s) abertos:\n", len(result.OpenLots))
		tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', tabwriter.AlignRight)
		fmt.Fprintln(tw, "Compra\tToken\tQtd\tPreço\tData\t")
		for _, l := range result.OpenLots {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t\n",
				l.BuyID, l.Token, l.Qty.String(), l.Price.StringFixed(2), l.Date.Format("2006-01-02"))
		}
		tw.Flush()
	}

	return nil
}

func printEntries(w io.Writer, entries []domain.GainEntry) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "Venda\tCompra\tToken\tQtd\tCusto\tVenda\tGanho\tDias\tPrazo\t")

	for _, e := range entries {
		buyID := "-"
		if e.BuyID != nil {
			buyID = *e.BuyID
		}
		term := "curto"
		if taxlot.IsLongTerm(e) {
			term = "longo"
		}
		if e.IsEstimated {
			term += "*"
		}

		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%d\t%s\t\n",
			e.SellID, buyID, e.Token, e.Qty.String(),
			e.BuyPrice.StringFixed(2), e.SellPrice.StringFixed(2), e.Gain.StringFixed(2),
			e.HoldingDays, term)
	}
	tw.Flush()
}

func countEstimated(entries []domain.GainEntry) int {
	n := 0
	for _, e := range entries {
		if e.IsEstimated {
			n++
		}
	}
	return n
}

func showForm(cmd *cobra.Command, files []string, year int, asJSON bool) error {
	if err := service.ValidateYear(year); err != nil {
		return err
	}

	svc, err := setup(cmd, files)
	if err != nil {
		return err
	}
	defer svc.close()

	taxpayer, _ := cmd.Flags().GetString("taxpayer")

	form, err := svc.tax.Form(cmd.Context(), year, taxpayer)
	if err != nil {
		return err
	}

	if asJSON {
		return export.WriteFormJSON(os.Stdout, form)
	}

	fmt.Printf("🧾 Ano fiscal %d", form.TaxYear)
	if form.Taxpayer != "" {
		fmt.Printf(" - %s", form.Taxpayer)
	}
	fmt.Println()
	fmt.Printf("├─ Receita total:   %s\n", form.TotalProceeds.StringFixed(2))
	fmt.Printf("├─ Custo total:     %s\n", form.TotalCostBasis.StringFixed(2))
	fmt.Printf("├─ Ganho total:     %s\n", form.TotalGain.StringFixed(2))
	fmt.Printf("├─ Curto prazo:     %s\n", form.ShortTerm.StringFixed(2))
	fmt.Printf("└─ Longo prazo:     %s\n", form.LongTerm.StringFixed(2))

	if len(form.Entries) > 0 {
		fmt.Println()
		printEntries(os.Stdout, form.Entries)
	}

	return nil
}

func showEstimate(cmd *cobra.Command, files []string, year int) error {
	if err := service.ValidateYear(year); err != nil {
		return err
	}

	svc, err := setup(cmd, files)
	if err != nil {
		return err
	}
	defer svc.close()

	rates, err := ratesFromFlags(cmd, svc.tax.Rates())
	if err != nil {
		return err
	}
	taxpayer, _ := cmd.Flags().GetString("taxpayer")

	estimate, err := svc.tax.Estimate(cmd.Context(), year, taxpayer, rates)
	if err != nil {
		return err
	}

	fmt.Printf("💰 Estimativa de imposto %d\n", estimate.TaxYear)
	fmt.Printf("├─ Curto prazo: %s x %s%%\n", estimate.ShortTerm.StringFixed(2), estimate.Rates.ShortTermPct.String())
	fmt.Printf("├─ Longo prazo: %s x %s%%\n", estimate.LongTerm.StringFixed(2), estimate.Rates.LongTermPct.String())
	fmt.Printf("└─ Devido:      %s\n", estimate.TaxDue.StringFixed(2))

	return nil
}

func exportReport(cmd *cobra.Command, format string, files []string, year int, output string) error {
	format = strings.ToLower(format)

	var filename string
	switch format {
	case "csv":
		filename = export.CSVFilename
	case "json":
		filename = export.FormJSONFilename(year)
	case "html":
		filename = export.ReportHTMLFilename(year)
	default:
		return fmt.Errorf("formato desconhecido %q (use csv, json ou html)", format)
	}

	if format != "csv" {
		if err := service.ValidateYear(year); err != nil {
			return fmt.Errorf("--year é obrigatório para %s: %w", format, err)
		}
	}

	svc, err := setup(cmd, files)
	if err != nil {
		return err
	}
	defer svc.close()

	rates, err := ratesFromFlags(cmd, svc.tax.Rates())
	if err != nil {
		return err
	}
	taxpayer, _ := cmd.Flags().GetString("taxpayer")
	token, _ := cmd.Flags().GetString("token")

	if output == "" {
		output = filename
	}

	var w io.Writer = os.Stdout
	var file *os.File
	if output != "-" {
		file, err = os.Create(output)
		if err != nil {
			return fmt.Errorf("erro ao criar arquivo: %w", err)
		}
		defer file.Close()
		w = file
	}

	ctx := cmd.Context()
	switch format {
	case "csv":
		err = svc.tax.ExportCSV(ctx, w, token)
	case "json":
		err = svc.tax.ExportFormJSON(ctx, w, year, taxpayer)
	case "html":
		err = svc.tax.ExportFormHTML(ctx, w, year, taxpayer, rates)
	}
	if err != nil {
		return err
	}

	if file != nil {
		if err := file.Close(); err != nil {
			return fmt.Errorf("erro ao gravar arquivo: %w", err)
		}
		fmt.Fprintf(os.Stderr, "✅ Exportado: %s\n", output)
	}

	return nil
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
