package render

import (
	"html/template"
	"io"
	"strings"
)

var entryTemplate = template.Must(template.New("entry").Funcs(template.FuncMap{
	"num": formatNumber,
	"deref64": func(p *float64) float64 {
		if p == nil {
			return 0
		}
		return *p
	},
	"deref": func(p *int) int {
		if p == nil {
			return 0
		}
		return *p
	},
	"selected": func(v any, opt string) bool {
		switch x := v.(type) {
		case string:
			return x == opt
		case []string:
			for _, s := range x {
				if s == opt {
					return true
				}
			}
		case []any:
			for _, s := range x {
				if s == opt {
					return true
				}
			}
		}
		return false
	},
	"str": func(v any) string {
		s, _ := v.(string)
		return s
	},
	"checked": func(v any) bool {
		switch x := v.(type) {
		case bool:
			return x
		case string:
			return x == "true" || x == "on"
		}
		return false
	},
}).Parse(`<form method="post" class="fieldforms-entry">
{{- range .}}
{{- if eq .Kind "heading"}}
<div class="section"><h5>{{.Label}}</h5>{{if .Text}}<p>{{.Text}}</p>{{end}}</div>
{{- else}}
<div class="field" data-field-id="{{.ID}}">
{{- if eq .Kind "checkbox"}}
<label><input type="checkbox" name="{{.Name}}" id="{{.ID}}"{{if .Required}} required{{end}}{{if checked .Value}} checked{{end}}> {{.Label}}{{if .Required}} *{{end}}</label>
{{- else}}
<label for="{{.ID}}">{{.Label}}{{if .Required}} *{{end}}</label>
{{- if eq .Kind "input" "file"}}
<input type="{{.InputType}}" name="{{.Name}}" id="{{.ID}}"{{if .Required}} required{{end}}{{if .Placeholder}} placeholder="{{.Placeholder}}"{{end}}{{if .Pattern}} pattern="{{.Pattern}}"{{end}}{{if .Min}} min="{{num (deref64 .Min)}}"{{end}}{{if .Max}} max="{{num (deref64 .Max)}}"{{end}}{{if .Accept}} accept="{{.Accept}}"{{end}}{{if str .Value}} value="{{str .Value}}"{{end}}>
{{- else if eq .Kind "textarea"}}
<textarea name="{{.Name}}" id="{{.ID}}" rows="4"{{if .Required}} required{{end}}{{if .Placeholder}} placeholder="{{.Placeholder}}"{{end}}{{if .MinLength}} minlength="{{deref .MinLength}}"{{end}}{{if .MaxLength}} maxlength="{{deref .MaxLength}}"{{end}}>{{str .Value}}</textarea>
{{- else if eq .Kind "select"}}
<select name="{{.Name}}" id="{{.ID}}"{{if .Required}} required{{end}}><option value="">{{.Placeholder}}</option>{{$v := .Value}}{{range .Options}}<option value="{{.}}"{{if selected $v .}} selected{{end}}>{{.}}</option>{{end}}</select>
{{- else}}
{{- $w := .}}{{range $i, $opt := .Options}}
<label><input type="{{if eq $w.Kind "checkboxes"}}checkbox{{else}}radio{{end}}" name="{{$w.Name}}" value="{{$opt}}"{{if and $w.Required (ne $w.Kind "checkboxes")}} required{{end}}{{if selected $w.Value $opt}} checked{{end}}> {{$opt}}</label>
{{- end}}
{{- end}}
{{- if .Hint}}
<small>{{.Hint}}</small>
{{- end}}
{{- end}}
</div>
{{- end}}
{{- end}}
</form>
`))

// WriteHTML renders widgets as an HTML form fragment.
func WriteHTML(w io.Writer, widgets []Widget) error {
	return entryTemplate.Execute(w, widgets)
}

// HTML returns the WriteHTML rendition of widgets.
func HTML(widgets []Widget) (string, error) {
	var b strings.Builder
	if err := WriteHTML(&b, widgets); err != nil {
		return "", err
	}
	return b.String(), nil
}
