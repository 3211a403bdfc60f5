package cli

import (
	"fmt"
	"io"
	"sort"

	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	jsoniter "github.com/json-iterator/go"
	"gopkg.in/yaml.v3"

	"github.com/pratik-mahalle/resourcectl/internal/domain/resource"
	"github.com/pratik-mahalle/resourcectl/internal/pkg/loading"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const masked = "********"

// NewTable creates a table writing to w with the given headers.
func NewTable(w io.Writer, headers ...string) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.Style().Options.DrawBorder = false
	t.Style().Options.SeparateColumns = false

	row := make(table.Row, len(headers))
	for i, h := range headers {
		row[i] = h
	}
	t.AppendHeader(row)
	return t
}

// printOutput prints data in the requested non-table format.
func printOutput(w io.Writer, format string, data interface{}) error {
	switch format {
	case "yaml":
		return printYAML(w, data)
	default:
		return printJSON(w, data)
	}
}

func printJSON(w io.Writer, data interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(data)
}

func printYAML(w io.Writer, data interface{}) error {
	// Round-trip through JSON so yaml keys follow the json tags.
	raw, err := json.Marshal(data)
	if err != nil {
		return err
	}
	var generic interface{}
	if err := yaml.Unmarshal(raw, &generic); err != nil {
		return err
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	defer enc.Close()
	return enc.Encode(generic)
}

// truncate shortens a string to maxLen, adding "..." if truncated.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}

// formatExecStatus returns a colored exec status.
func formatExecStatus(status resource.ExecStatus) string {
	s := string(status)
	switch status {
	case resource.ExecSucceeded, resource.ExecRegistered:
		return color.GreenString(s)
	case resource.ExecFailed:
		return color.RedString(s)
	case resource.ExecPending, resource.ExecRunning:
		return color.YellowString(s)
	case resource.ExecCanceled:
		return color.MagentaString(s)
	default:
		return s
	}
}

// formatPhase renders a loading status for humans.
func formatPhase(st loading.Status) string {
	switch st.Phase {
	case loading.Succeeded:
		return color.GreenString("succeeded")
	case loading.Failed:
		msg := "failed"
		if st.Message != "" {
			msg += ": " + st.Message
		}
		return color.RedString(msg)
	case loading.Loading:
		return color.YellowString("in progress")
	default:
		return "not started"
	}
}

// printFieldErrors lists validation errors one per line.
func printFieldErrors(w io.Writer, fields map[string]string) {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(w, "  %s %s: %s\n", color.RedString("x"), k, fields[k])
	}
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
