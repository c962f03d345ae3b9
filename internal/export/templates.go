package export

import (
	"bytes"
	"embed"
	"html/template"
	"time"
)

//go:embed templates/*.html
var templateFS embed.FS

var recordTemplate *template.Template

func init() {
	funcMap := template.FuncMap{
		"formatDate": func(t time.Time, layout string) string {
			return t.Format(layout)
		},
	}

	templateContent, err := templateFS.ReadFile("templates/record.html")
	if err != nil {
		recordTemplate = template.Must(template.New("record").Funcs(funcMap).Parse(fallbackTemplate))
		return
	}

	recordTemplate = template.Must(template.New("record").Funcs(funcMap).Parse(string(templateContent)))
}

// RenderRecordHTML renders the record sheet template. All values are escaped.
func RenderRecordHTML(sheet Sheet) (string, error) {
	var buf bytes.Buffer
	if err := recordTemplate.Execute(&buf, sheet); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// fallbackTemplate is used if the embedded template fails to load
const fallbackTemplate = `<!DOCTYPE html>
<html>
<head>
  <meta charset="UTF-8">
  <title>{{.Title}}</title>
</head>
<body>
  <h1>{{.Title}}</h1>
  <table>{{range .Customer}}<tr><th>{{.Label}}</th><td>{{.Value}}</td></tr>{{end}}</table>
  {{if .Summary}}<p>{{.Summary}}</p>{{end}}
  {{if .Transcript}}<pre>{{.Transcript}}</pre>{{end}}
</body>
</html>`
