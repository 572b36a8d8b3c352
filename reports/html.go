package reports

import (
	"html/template"
	"io"

	"github.com/shopspring/decimal"
)

var funcs = template.FuncMap{
	"money": func(d decimal.Decimal) string { return d.StringFixed(2) },
}

var htmlTemplate = template.Must(template.New("reconciliation").Funcs(funcs).Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>Payment history {{.PeriodLabel}}</title>
<style>
body { font-family: sans-serif; font-size: 12px; }
table { border-collapse: collapse; width: 100%; margin-bottom: 16px; }
th, td { border: 1px solid #999; padding: 4px 6px; }
td.amount { text-align: right; }
tr.type th { background: #eee; text-align: left; }
</style>
</head>
<body>
<h1>Payment history {{.PeriodLabel}}</h1>
<p>{{.Parent1.Name}} / {{.Parent2Name}}</p>
{{if .FilterInvalid}}<p class="warning">The selected period is not valid.</p>{{end}}
<table>
<tr><th>Category</th><th>{{.Parent1.Name}}</th><th>{{.Parent1.Name}} (pending)</th><th>{{.Parent2Name}}</th><th>{{.Parent2Name}} (pending)</th></tr>
{{range .Groups}}<tr class="type"><th colspan="5">{{.TypeName}}</th></tr>
{{range .Categories}}<tr><td>{{.CategoryName}}</td><td class="amount">{{money .Parent1Validated}}</td><td class="amount">{{money .Parent1Pending}}</td><td class="amount">{{money .Parent2Validated}}</td><td class="amount">{{money .Parent2Pending}}</td></tr>
{{end}}{{end}}<tr><th>Total</th><td class="amount">{{money .Parent1Total}}</td><td></td><td class="amount">{{money .Parent2Total}}</td><td></td></tr>
</table>
<p>Difference: {{money .Difference}}{{with .InFavorOfName}} in favour of {{.}}{{end}}</p>
<p>Contribution: {{money .ContributionAmount}} for {{.ChildrenCount}} child(ren), {{money .Parent1Share}} / {{money .Parent2Share}}</p>
<p>Generated {{.GeneratedAt.Format "2006-01-02 15:04"}}</p>
</body>
</html>
`))

// RenderHTML writes the printable HTML page of r.
func RenderHTML(w io.Writer, r Report) error {
	return htmlTemplate.Execute(w, r)
}
