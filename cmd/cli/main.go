package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

func main() {
	var rootCmd = &cobra.Command{
		Use:   "capgains",
		Short: "Livro de ganhos de capital (FIFO)",
		Long: `CLI para apuração de ganhos de capital de criptoativos.
Casa vendas com compras pelo método FIFO, monta o formulário do ano fiscal
e exporta CSV, JSON e HTML. Lê arquivos CSV ou o histórico no Postgres.`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().Bool("db", false, "Ler o histórico do Postgres em vez de arquivos")
	rootCmd.PersistentFlags().String("token", "", "Filtrar por token")

	// Comando ledger
	var ledgerCmd = &cobra.Command{
		Use:   "ledger [files...]",
		Short: "Mostra o livro de ganhos realizados",
		RunE: func(cmd *cobra.Command, args []string) error {
			openLots, _ := cmd.Flags().GetBool("open-lots")
			asJSON, _ := cmd.Flags().GetBool("json")
			return showLedger(cmd, args, openLots, asJSON)
		},
	}

	ledgerCmd.Flags().Bool("open-lots", false, "Mostrar também os lotes ainda abertos")
	ledgerCmd.Flags().Bool("json", false, "Saída em JSON")

	// Comando form
	var formCmd = &cobra.Command{
		Use:   "form [files...]",
		Short: "Monta o formulário de um ano fiscal",
		RunE: func(cmd *cobra.Command, args []string) error {
			year, _ := cmd.Flags().GetInt("year")
			asJSON, _ := cmd.Flags().GetBool("json")
			return showForm(cmd, args, year, asJSON)
		},
	}

	formCmd.Flags().IntP("year", "y", 0, "Ano fiscal (obrigatório)")
	formCmd.Flags().Bool("json", false, "Saída em JSON")
	formCmd.MarkFlagRequired("year")

	// Comando estimate
	var estimateCmd = &cobra.Command{
		Use:   "estimate [files...]",
		Short: "Estima o imposto devido no ano",
		RunE: func(cmd *cobra.Command, args []string) error {
			year, _ := cmd.Flags().GetInt("year")
			return showEstimate(cmd, args, year)
		},
	}

	estimateCmd.Flags().IntP("year", "y", 0, "Ano fiscal (obrigatório)")
	estimateCmd.MarkFlagRequired("year")

	// Comando export
	var exportCmd = &cobra.Command{
		Use:       "export csv|json|html [files...]",
		Short:     "Exporta o livro (csv) ou o formulário do ano (json, html)",
		Args:      cobra.MinimumNArgs(1),
		ValidArgs: []string{"csv", "json", "html"},
		RunE: func(cmd *cobra.Command, args []string) error {
			year, _ := cmd.Flags().GetInt("year")
			output, _ := cmd.Flags().GetString("output")
			return exportReport(cmd, args[0], args[1:], year, output)
		},
	}

	exportCmd.Flags().IntP("year", "y", 0, "Ano fiscal (json e html)")
	exportCmd.Flags().StringP("output", "o", "", "Arquivo de saída (padrão: nome sugerido no diretório atual, - para stdout)")

	for _, cmd := range []*cobra.Command{formCmd, estimateCmd, exportCmd} {
		cmd.Flags().String("taxpayer", "", "Contribuinte (padrão: TAXPAYER)")
	}
	for _, cmd := range []*cobra.Command{estimateCmd, exportCmd} {
		cmd.Flags().String("short", "", "Alíquota de curto prazo em % (padrão: SHORT_TERM_RATE_PCT)")
		cmd.Flags().String("long", "", "Alíquota de longo prazo em % (padrão: LONG_TERM_RATE_PCT)")
	}

	// Comando fetch
	var fetchCmd = &cobra.Command{
		Use:   "fetch [names or urls...]",
		Short: "Baixa exportações de histórico de operações",
		Long: `Baixa exportações CSV por HTTP. Nomes simples são resolvidos contra
EXPORT_BASE_URL; URLs completas são usadas como estão.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outputDir, _ := cmd.Flags().GetString("output")
			return fetchExports(cmd.Context(), args, outputDir)
		},
	}

	fetchCmd.Flags().StringP("output", "o", "./data", "Diretório de saída")

	// Comando list
	var listCmd = &cobra.Command{
		Use:   "list",
		Short: "Lista arquivos disponíveis para carregar",
		RunE: func(cmd *cobra.Command, args []string) error {
			dataDir, _ := cmd.Flags().GetString("dir")
			return listFiles(dataDir)
		},
	}

	listCmd.Flags().StringP("dir", "d", "./data", "Diretório dos dados")

	// Comando load
	var loadCmd = &cobra.Command{
		Use:   "load [files...]",
		Short: "Carrega arquivos CSV no Postgres",
		Long: `Carrega arquivos CSV no banco de dados.
Aceita múltiplos arquivos e suporta wildcards (ex: data/*.csv).
Operações com id já carregado são ignoradas.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return loadFiles(cmd.Context(), args)
		},
	}

	// Comando migrate
	var migrateCmd = &cobra.Command{
		Use:   "migrate",
		Short: "Cria as tabelas no Postgres",
		RunE: func(cmd *cobra.Command, args []string) error {
			return migrate(cmd.Context())
		},
	}

	// Comando health
	var healthCmd = &cobra.Command{
		Use:   "health",
		Short: "Verifica saúde do sistema",
		RunE: func(cmd *cobra.Command, args []string) error {
			return checkHealth(cmd.Context())
		},
	}

	rootCmd.AddCommand(ledgerCmd, formCmd, estimateCmd, exportCmd,
		fetchCmd, listCmd, loadCmd, migrateCmd, healthCmd)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}
