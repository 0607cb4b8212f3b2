package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
)

// Output управляет форматированием вывода CLI.
type Output struct {
	jsonMode bool
	w        io.Writer // stdout для данных
	errW     io.Writer // stderr для сообщений
}

// NewOutput создаёт Output. Если jsonMode=true, данные выводятся в JSON.
func NewOutput(jsonMode bool, w, errW io.Writer) *Output {
	return &Output{
		jsonMode: jsonMode,
		w:        w,
		errW:     errW,
	}
}

// JSONMode сообщает, включён ли JSON вывод.
func (o *Output) JSONMode() bool {
	return o.jsonMode
}

// Section выводит заголовок раздела таблицы. В JSON режиме — ничего.
func (o *Output) Section(title string) {
	if o.jsonMode {
		return
	}
	fmt.Fprintf(o.w, "%s\n\n", title)
}

// Table выводит данные в виде таблицы через tabwriter.
func (o *Output) Table(headers []string, rows [][]string) {
	tw := tabwriter.NewWriter(o.w, 0, 0, 2, ' ', 0)

	fmt.Fprintln(tw, strings.Join(headers, "\t"))

	dashes := make([]string, len(headers))
	for i, h := range headers {
		dashes[i] = strings.Repeat("-", len(h))
	}
	fmt.Fprintln(tw, strings.Join(dashes, "\t"))

	for _, row := range rows {
		fmt.Fprintln(tw, strings.Join(row, "\t"))
	}

	tw.Flush()
	fmt.Fprintln(o.w)
}

// JSON выводит данные в формате JSON с отступами.
func (o *Output) JSON(v any) error {
	enc := json.NewEncoder(o.w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// Warn выводит предупреждение в stderr.
func (o *Output) Warn(msg string) {
	fmt.Fprintln(o.errW, "Warning: "+msg)
}

// Error выводит сообщение об ошибке в stderr.
func (o *Output) Error(msg string) {
	fmt.Fprintln(o.errW, "Error: "+msg)
}
