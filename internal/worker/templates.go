package worker

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"
)

// TemplateContext — данные для рендеринга сообщений об исходе задачи.
type TemplateContext struct {
	// Name — имя задачи.
	Name string

	// ID — идентификатор задачи.
	ID string

	// Return — значение, возвращённое задачей (для успеха).
	Return any

	// Exc — сообщение ошибки (для повтора и ошибки).
	Exc string

	// Traceback — stack trace ошибки.
	Traceback string

	// Args, Kwargs — аргументы вызова.
	Args   []any
	Kwargs map[string]any

	// Hostname — имя хоста воркера.
	Hostname string
}

// Templates — шаблоны сообщений обёртки задачи: лог успеха, лог ошибки,
// тема и тело письма об ошибке. Синтаксис — text/template, контекст —
// TemplateContext. Пустое поле означает «использовать стандартный
// шаблон», слияние происходит при создании обёртки.
type Templates struct {
	SuccessMsg      string
	FailMsg         string
	FailMailSubject string
	FailMailBody    string
}

// DefaultTemplates возвращает стандартные шаблоны сообщений.
func DefaultTemplates() Templates {
	return Templates{
		SuccessMsg:      "Task {{.Name}}[{{.ID}}] processed: {{.Return}}",
		FailMsg:         "Task {{.Name}}[{{.ID}}] raised exception: {{.Exc}}",
		FailMailSubject: "[conveyor@{{.Hostname}}] Error: Task {{.Name}} ({{.ID}}): {{.Exc}}",
		FailMailBody: `Task {{.Name}} with id {{.ID}} raised exception: {{.Exc}}

Task was called with args: {{.Args}} kwargs: {{.Kwargs}}.

The contents of the full traceback was:

{{.Traceback}}
`,
	}
}

// merged возвращает копию t, в которой пустые поля заполнены
// стандартными шаблонами.
func (t Templates) merged() Templates {
	def := DefaultTemplates()
	if t.SuccessMsg == "" {
		t.SuccessMsg = def.SuccessMsg
	}
	if t.FailMsg == "" {
		t.FailMsg = def.FailMsg
	}
	if t.FailMailSubject == "" {
		t.FailMailSubject = def.FailMailSubject
	}
	if t.FailMailBody == "" {
		t.FailMailBody = def.FailMailBody
	}
	return t
}

// renderMessage рендерит шаблон сообщения с контекстом задачи.
func renderMessage(tmpl string, tc *TemplateContext) (string, error) {
	// Строка без шаблонных выражений возвращается как есть
	if !strings.Contains(tmpl, "{{") {
		return tmpl, nil
	}

	t, err := template.New("message").Parse(tmpl)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrTemplateRender, err)
	}

	var buf bytes.Buffer
	if err := t.Execute(&buf, tc); err != nil {
		return "", fmt.Errorf("%w: %v", ErrTemplateRender, err)
	}

	return buf.String(), nil
}
