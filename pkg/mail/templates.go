package mail

import (
	"bytes"
	_ "embed"
	"fmt"
	htmltemplate "html/template"
	"strings"
	texttemplate "text/template"

	"github.com/Masterminds/sprig/v3"

	"github.com/telekom/exception-subscriptions/pkg/event"
)

// ErrorMailParams carries everything the error notification templates render.
type ErrorMailParams struct {
	ProjectName string
	Level       string
	Culprit     string
	Message     string
	FirstLine   string
	Logger      string
	ServerName  string
	Interfaces  []event.Interface

	Link         string // Link to the group in the error tracker
	SettingsLink string // Link to the user's notification settings
}

var (
	errorTextTemplate = texttemplate.New("error.txt").Funcs(sprig.TxtFuncMap())
	errorHTMLTemplate = htmltemplate.New("error.html").Funcs(sprig.FuncMap())

	//go:embed templates/error.txt
	errorTextTemplateRaw string
	//go:embed templates/error.html
	errorHTMLTemplateRaw string
)

func init() {
	if _, err := errorTextTemplate.Parse(errorTextTemplateRaw); err != nil {
		panic(err)
	}
	if _, err := errorHTMLTemplate.Parse(errorHTMLTemplateRaw); err != nil {
		panic(err)
	}
}


func render(execute func(*bytes.Buffer) error) (string, error) {
	b := bytes.Buffer{}
	err := execute(&b)
	return b.String(), err
}

func RenderErrorText(p ErrorMailParams) (string, error) {
	return render(func(b *bytes.Buffer) error { return errorTextTemplate.Execute(b, p) })
}

func RenderErrorHTML(p ErrorMailParams) (string, error) {
	return render(func(b *bytes.Buffer) error { return errorHTMLTemplate.Execute(b, p) })
}

// Subject builds "<prefix> [<project>] <LEVEL> <culprit>: <firstLine>".
func Subject(prefix, project, level, culprit, firstLine string) string {
	s := fmt.Sprintf("[%s] %s %s: %s", project, strings.ToUpper(level), culprit, firstLine)
	if prefix = strings.TrimSpace(prefix); prefix != "" {
		s = prefix + " " + s
	}
	// Header values must stay on a single line.
	return strings.NewReplacer("\r", " ", "\n", " ").Replace(s)
}
