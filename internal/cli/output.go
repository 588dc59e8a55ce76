package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/fatih/color"

	"github.com/ayusman/handbooth/internal/plugin"
	"github.com/ayusman/handbooth/internal/store"
)

// Formatter writes human-readable command output.
type Formatter struct {
	w io.Writer
}

func NewFormatter(w io.Writer) *Formatter {
	return &Formatter{w: w}
}

func (f *Formatter) Error(msg string) {
	color.New(color.FgRed).Fprintf(f.w, "error: %s\n", msg)
}

func (f *Formatter) Info(msg string) {
	fmt.Fprintln(f.w, msg)
}

func (f *Formatter) Success(msg string) {
	color.New(color.FgGreen).Fprintln(f.w, msg)
}

func (f *Formatter) Warning(msg string) {
	color.New(color.FgYellow).Fprintf(f.w, "warning: %s\n", msg)
}

func (f *Formatter) Header(title string) {
	color.New(color.FgCyan, color.Bold).Fprintf(f.w, "%s\n\n", title)
}

func (f *Formatter) SessionItem(s *store.Session) {
	status := string(s.Status)
	switch s.Status {
	case store.SessionFinished:
		status = color.GreenString(status)
	case store.SessionAbandoned:
		status = color.YellowString(status)
	default:
		status = color.CyanString(status)
	}

	fmt.Fprintf(f.w, "  %s  %s  %-9s  %d photo%s\n",
		s.ID,
		s.StartedAt.Local().Format("2006-01-02 15:04"),
		status,
		s.PhotoCount,
		plural(s.PhotoCount),
	)
}

func (f *Formatter) PluginItem(p *plugin.Plugin) {
	version := p.Manifest.Version
	if version == "" {
		version = "-"
	}
	fmt.Fprintf(f.w, "  %s %s  %v\n", color.New(color.Bold).Sprint(p.Manifest.Name), version, p.Manifest.Events)
	if p.Manifest.Description != "" {
		fmt.Fprintf(f.w, "    %s\n", p.Manifest.Description)
	}
}

func (f *Formatter) Listening(addr string, started time.Time) {
	color.New(color.FgGreen).Fprintf(f.w, "handbooth listening on http://%s", addr)
	fmt.Fprintf(f.w, " (%s)\n", started.Format(time.Kitchen))
}

func plural(n int) string {
	if n == 1 {
		return ""
	}
	return "s"
}
