// Package render prints a workflow's event stream and final report to a
// terminal.
package render

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"github.com/dshills/agentcrew/graph/emit"
	"github.com/dshills/agentcrew/internal/report"
)

// MaxToolOutput is the number of characters of a tool result that are shown.
const MaxToolOutput = 300

const rule = "=================================================="

// Options configure a Renderer.
type Options struct {
	// Markdown renders the final report through glamour.
	Markdown bool

	// Width is the word-wrap width for markdown. Zero means 100.
	Width int

	// Style is a glamour style name or a path to a JSON style file. Empty
	// picks a style from the terminal background.
	Style string
}

// Renderer writes events to w in arrival order. It is not safe for
// concurrent use; a single goroutine drains the event channel.
type Renderer struct {
	w       io.Writer
	opts    Options
	current string
	banner  lipgloss.Style
	heading lipgloss.Style
	md      *glamour.TermRenderer
}

// New creates a Renderer writing to w. It fails when the markdown style
// cannot be loaded.
func New(w io.Writer, opts Options) (*Renderer, error) {
	if opts.Width <= 0 {
		opts.Width = 100
	}
	r := &Renderer{
		w:       w,
		opts:    opts,
		banner:  lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#5B8DEF")),
		heading: lipgloss.NewStyle().Bold(true),
	}
	if opts.Markdown {
		style := glamour.WithAutoStyle()
		if opts.Style != "" {
			style = glamour.WithStylePath(opts.Style)
		}
		md, err := glamour.NewTermRenderer(style, glamour.WithWordWrap(opts.Width))
		if err != nil {
			return nil, fmt.Errorf("render: markdown renderer: %w", err)
		}
		r.md = md
	}
	return r, nil
}

// Render prints one event. A banner precedes the first event of every newly
// active agent. The returned error comes from the writer.
func (r *Renderer) Render(ev emit.Event) error {
	p := &printer{w: r.w}

	if ev.NodeID != "" && ev.NodeID != r.current {
		r.current = ev.NodeID
		p.printf("\n%s\n%s\n%s\n\n", rule, r.banner.Render("🤖 Agent: "+ev.NodeID), rule)
	}

	switch ev.Kind {
	case emit.KindAgentOutput:
		if ev.Text != "" {
			p.printf("📤 Output: %s\n", ev.Text)
		}
		if len(ev.ToolCalls) > 0 {
			p.printf("🛠️ Planning to use tools: [%s]\n", strings.Join(ev.ToolCalls, ", "))
		}
	case emit.KindToolCallResult:
		p.printf("🔧 Tool Result (%s):\n", ev.ToolName)
		p.printf("    Output: %s...\n", Truncate(fmt.Sprintf("%v", ev.ToolOutput), MaxToolOutput))
	case emit.KindToolCall:
		if !strings.Contains(ev.ToolName, "handoff") {
			p.printf("🔨 Calling Tool: %s\n", ev.ToolName)
			p.printf("    With arguments: %s\n", formatArgs(ev.ToolArgs))
		}
	}
	return p.err
}

// Final prints the completion banner followed by the report and its review.
func (r *Renderer) Final(s report.State) error {
	p := &printer{w: r.w}

	p.printf("\n%s\n", r.heading.Render("--- ✅ Workflow Complete ---"))
	p.printf("\n%s\n\n", r.heading.Render("--- Final Report Content ---"))
	p.printf("%s\n", r.markdown(s.ReportContent))
	p.printf("\n----------------------------\n\n")
	p.printf("\n%s\n\n", r.heading.Render("--- Final Review ---"))
	p.printf("%s\n", s.Review)
	return p.err
}

func (r *Renderer) markdown(text string) string {
	if r.md == nil {
		return text
	}
	out, err := r.md.Render(text)
	if err != nil {
		return text
	}
	return strings.TrimRight(out, "\n")
}

// Truncate returns the first n characters of s.
func Truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

func formatArgs(args map[string]any) string {
	if len(args) == 0 {
		return "{}"
	}
	b, err := json.Marshal(args)
	if err != nil {
		return fmt.Sprintf("%v", args)
	}
	return string(b)
}

// printer keeps the first write error and skips writes after it.
type printer struct {
	w   io.Writer
	err error
}

func (p *printer) printf(format string, args ...any) {
	if p.err != nil {
		return
	}
	_, p.err = fmt.Fprintf(p.w, format, args...)
}
