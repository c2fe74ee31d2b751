package export

import (
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/jeovahfialho/capgains-ledger/internal/domain"
	"github.com/shopspring/decimal"
)

const HTMLContentType = "text/html; charset=utf-8"

type Report struct {
	Form        domain.TaxForm
	ShortRate   decimal.Decimal
	LongRate    decimal.Decimal
	EstimateDue decimal.Decimal
	GeneratedAt time.Time
}

func ReportHTMLFilename(year int) string {
	return fmt.Sprintf("tax_form_%d.html", year)
}

var reportFuncs = template.FuncMap{
	"money": func(d decimal.Decimal) string { return d.StringFixed(2) },
	"date": func(t *time.Time) string {
		if t == nil {
			return "-"
		}
		return t.UTC().Format("2006-01-02")
	},
	"day": func(t time.Time) string { return t.UTC().Format("2006-01-02") },
	"deref": func(s *string) string {
		if s == nil {
			return "-"
		}
		return *s
	},
	"term": func(days int) string {
		if days >= 365 {
			return "Longo"
		}
		return "Curto"
	},
}

var reportTemplate = template.Must(template.New("report").Funcs(reportFuncs).Parse(`<!DOCTYPE html>
<html lang="pt-BR">
<head>
<meta charset="utf-8">
<title>Ganhos de capital {{.Form.TaxYear}}</title>
<style>
body { font-family: Helvetica, Arial, sans-serif; margin: 2rem; color: #222; }
h1 { font-size: 1.4rem; margin-bottom: 0.2rem; }
.meta { color: #666; margin-bottom: 1.5rem; }
table { border-collapse: collapse; width: 100%; font-size: 0.85rem; }
th, td { border: 1px solid #ccc; padding: 4px 6px; text-align: right; }
th { background: #f2f2f2; }
td.text, th.text { text-align: left; }
.summary td { font-weight: bold; }
.estimated { background: #fff4e0; }
@media print { body { margin: 0; } }
</style>
</head>
<body>
<h1>Ganhos de capital, ano fiscal {{.Form.TaxYear}}</h1>
<div class="meta">Contribuinte: {{if .Form.Taxpayer}}{{.Form.Taxpayer}}{{else}}-{{end}} · gerado em {{day .GeneratedAt}}</div>
<table class="summary">
<tr><th class="text">Receita total</th><td>{{money .Form.TotalProceeds}}</td></tr>
<tr><th class="text">Custo de aquisição</th><td>{{money .Form.TotalCostBasis}}</td></tr>
<tr><th class="text">Ganho total</th><td>{{money .Form.TotalGain}}</td></tr>
<tr><th class="text">Curto prazo</th><td>{{money .Form.ShortTerm}}</td></tr>
<tr><th class="text">Longo prazo</th><td>{{money .Form.LongTerm}}</td></tr>
<tr><th class="text">Imposto estimado ({{.ShortRate}}% / {{.LongRate}}%)</th><td>{{money .EstimateDue}}</td></tr>
</table>
<h2>Operações</h2>
<table>
<tr><th class="text">Venda</th><th class="text">Compra</th><th class="text">Token</th><th>Qtd</th><th>Preço compra</th><th>Preço venda</th><th>Ganho</th><th>Dias</th><th class="text">Prazo</th><th class="text">Data compra</th><th class="text">Data venda</th></tr>
{{range .Form.Entries}}<tr{{if .IsEstimated}} class="estimated"{{end}}><td class="text">{{.SellID}}</td><td class="text">{{deref .BuyID}}</td><td class="text">{{.Token}}</td><td>{{.Qty}}</td><td>{{money .BuyPrice}}</td><td>{{money .SellPrice}}</td><td>{{money .Gain}}</td><td>{{.HoldingDays}}</td><td class="text">{{term .HoldingDays}}</td><td class="text">{{date .BuyDate}}</td><td class="text">{{day .SellDate}}</td></tr>
{{else}}<tr><td class="text" colspan="11">Nenhuma venda neste ano.</td></tr>
{{end}}</table>
</body>
</html>
`))

func WriteReportHTML(w io.Writer, report Report) error {
	if report.GeneratedAt.IsZero() {
		report.GeneratedAt = time.Now()
	}
	if err := reportTemplate.Execute(w, report); err != nil {
		return fmt.Errorf("erro ao gerar relatório: %w", err)
	}
	return nil
}
