package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
)

// Output печатает результаты команд: таблицей для человека или JSON'ом
// для скриптов. Данные идут в stdout, сообщения — в stderr, чтобы вывод
// можно было передавать по конвейеру.
type Output struct {
	asJSON bool
	data   io.Writer
	msgs   io.Writer
}

// NewOutput создаёт Output; asJSON переключает вывод данных в JSON.
func NewOutput(asJSON bool) *Output {
	return &Output{asJSON: asJSON, data: os.Stdout, msgs: os.Stderr}
}

// Print выводит данные в формате, выбранном при создании.
func (o *Output) Print(headers []string, rows [][]string, v any) {
	if o.asJSON {
		o.JSON(v)
	} else {
		o.Table(headers, rows)
	}
}

// Table печатает колонки, выровненные через tabwriter.
func (o *Output) Table(headers []string, rows [][]string) {
	tw := tabwriter.NewWriter(o.data, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(headers, "\t"))
	fmt.Fprintln(tw, underline(headers))
	for _, row := range rows {
		fmt.Fprintln(tw, strings.Join(row, "\t"))
	}
	tw.Flush()
}

// JSON печатает v с отступами.
func (o *Output) JSON(v any) {
	enc := json.NewEncoder(o.data)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fmt.Fprintln(o.msgs, "Error: "+err.Error())
	}
}

// Success печатает сообщение в stderr.
func (o *Output) Success(msg string) {
	fmt.Fprintln(o.msgs, msg)
}

// Error печатает сообщение об ошибке в stderr.
func (o *Output) Error(msg string) {
	fmt.Fprintln(o.msgs, "Error: "+msg)
}

// underline строит строку-разделитель под заголовками.
func underline(headers []string) string {
	dashes := make([]string, len(headers))
	for i, h := range headers {
		dashes[i] = strings.Repeat("-", len(h))
	}
	return strings.Join(dashes, "\t")
}
