package render

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/formatters"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/styles"
	"github.com/charmbracelet/lipgloss"

	"github.com/tidemill/promptcanvas/pkg/agent"
)

// Renderer formats an aggregated response for the terminal, one styled block
// per finalized stage plus the live thinking buffer.
type Renderer struct {
	thoughtStyle     lipgloss.Style
	actionStyle      lipgloss.Style
	observationStyle lipgloss.Style
	errorStyle       lipgloss.Style
	successStyle     lipgloss.Style
	statusStyle      lipgloss.Style
	thinkingStyle    lipgloss.Style

	highlight bool
}

// NewRenderer creates a renderer with the default stage styles
func NewRenderer() *Renderer {
	return &Renderer{
		thoughtStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#976bb5")).
			Italic(true),

		actionStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#6b93b5")),

		observationStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#61afaf")),

		errorStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#d95f5f")).
			Bold(true),

		successStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#93b56b")).
			Bold(true),

		statusStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#5c5044")).
			Italic(true),

		thinkingStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#83715f")).
			Italic(true),

		highlight: true,
	}
}

// WithoutHighlighting disables chroma syntax highlighting (useful when output
// is not a terminal).
func (r *Renderer) WithoutHighlighting() *Renderer {
	r.highlight = false
	return r
}

// Response renders the full aggregated response
func (r *Renderer) Response(resp agent.Response) string {
	var out strings.Builder

	for _, stage := range resp.Stages {
		out.WriteString(r.Stage(stage))
		out.WriteString("\n")
	}

	if resp.ThinkingStream != "" {
		out.WriteString(r.thinkingStyle.Render(resp.ThinkingStream + "|"))
		out.WriteString("\n")
	}

	if resp.StatusMessage != "" {
		out.WriteString(r.statusStyle.Render("[" + resp.StatusMessage + "]"))
		out.WriteString("\n")
	}

	return out.String()
}

// Stage renders one finalized stage
func (r *Renderer) Stage(stage agent.Update) string {
	switch stage.Subtype {
	case agent.SubtypeThought:
		return r.thoughtStyle.Render("Thought: " + stage.Thought)

	case agent.SubtypeAction:
		header := r.actionStyle.Render(fmt.Sprintf("Action: using tool %s", stage.ToolName))
		args := r.toolArgs(stage.ToolArgs)
		if args == "" {
			return header
		}
		return header + "\n" + args

	case agent.SubtypeObservation:
		if stage.IsError {
			return r.errorStyle.Render("Observation: " + stage.Observation)
		}
		return r.observationStyle.Render("Observation: " + stage.Observation)

	case agent.SubtypeEnd:
		line := "Task finished: " + stage.FinalMessage
		style := r.successStyle
		if !stage.Success {
			style = r.errorStyle
			line = "Task failed: " + stage.FinalMessage
		}
		rendered := style.Render(line)
		if stage.FinalScript != "" {
			rendered += "\n" + r.code(stage.FinalScript, "")
		}
		return rendered

	default:
		return r.statusStyle.Render(fmt.Sprintf("[%s] %s", stage.Subtype, stage.Message))
	}
}

// toolArgs pretty-prints and highlights tool arguments as JSON
func (r *Renderer) toolArgs(args map[string]any) string {
	if len(args) == 0 {
		return ""
	}

	data, err := json.MarshalIndent(args, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", args)
	}

	return r.code(string(data), "json")
}

// code syntax-highlights a block of code, falling back to the raw text when
// highlighting is disabled or fails.
func (r *Renderer) code(source, language string) string {
	if !r.highlight {
		return source
	}

	lexer := lexers.Get(language)
	if lexer == nil {
		lexer = lexers.Analyse(source)
	}
	if lexer == nil {
		lexer = lexers.Fallback
	}
	lexer = chroma.Coalesce(lexer)

	formatter := formatters.Get("terminal16m")
	if formatter == nil {
		formatter = formatters.Fallback
	}

	style := styles.Get("monokai")
	if style == nil {
		style = styles.Fallback
	}

	iterator, err := lexer.Tokenise(nil, source)
	if err != nil {
		return source
	}

	var out strings.Builder
	if err := formatter.Format(&out, style, iterator); err != nil {
		return source
	}
	return out.String()
}
