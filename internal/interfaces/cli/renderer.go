package cli

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/ngoclaw/deskflow/internal/domain/protocol"
	"github.com/ngoclaw/deskflow/internal/service/executor"
)

// Renderer handles the planner's terminal output: protocol previews,
// per-action progress, and the end-of-run summary (spec §4.5 step 6).
// 终端输出渲染器：协议预览、执行进度、运行结果摘要。
type Renderer struct {
	width int
}

// NewRenderer creates a renderer with the given terminal width.
func NewRenderer(width int) *Renderer {
	if width <= 0 {
		width = 80
	}
	return &Renderer{width: width}
}

// RenderProtocol previews a generated protocol before execution, grouped
// by action so the user can scan what they are about to approve.
func (r *Renderer) RenderProtocol(p *protocol.Protocol) string {
	titleStyle := lipgloss.NewStyle().Foreground(colorCyan).Bold(true)
	labelStyle := lipgloss.NewStyle().Foreground(colorGray)
	idxStyle := lipgloss.NewStyle().Foreground(colorDim)

	var b strings.Builder
	fmt.Fprintf(&b, "%s %s\n", titleStyle.Render("Protocol:"), p.Metadata.Description)
	fmt.Fprintf(&b, "%s %s  %s %d action(s)  %s %v\n",
		labelStyle.Render("complexity"), p.Metadata.Complexity,
		labelStyle.Render("·"), len(p.Actions),
		labelStyle.Render("uses_vision"), p.Metadata.UsesVision,
	)
	for i, a := range p.Actions {
		args, _ := json.Marshal(a.Params)
		fmt.Fprintf(&b, "  %s %s %s\n", idxStyle.Render(fmt.Sprintf("%2d.", i+1)), a.Name, labelStyle.Render(string(args)))
	}
	return b.String()
}

// RenderApproval renders the blocking confirmation prompt for a
// critical-action match inside the vision loop (spec §4.6.3).
func (r *Renderer) RenderApproval(keywords []string, reasoning string) string {
	boxStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(colorYellow).
		Padding(0, 1).
		Width(r.width - 4)

	title := lipgloss.NewStyle().Foreground(colorYellow).Bold(true).Render("! Critical action requires confirmation")
	content := fmt.Sprintf("%s\n\nkeywords: %s\nreasoning: %s\n\n%s",
		title,
		lipgloss.NewStyle().Foreground(colorWhite).Render(strings.Join(keywords, ", ")),
		reasoning,
		lipgloss.NewStyle().Foreground(colorGray).Render("[y]es / [n]o"),
	)
	return boxStyle.Render(content)
}

// RenderActionLog renders one executor.ActionLogEntry as a single line.
func (r *Renderer) RenderActionLog(entry executor.ActionLogEntry) string {
	var icon string
	switch entry.Outcome {
	case "success":
		icon = lipgloss.NewStyle().Foreground(colorGreen).Render("✓")
	case "skipped":
		icon = lipgloss.NewStyle().Foreground(colorDim).Render("·")
	default:
		icon = lipgloss.NewStyle().Foreground(colorRed).Render("✗")
	}
	nameStyle := lipgloss.NewStyle().Foreground(colorCyan)
	durStyle := lipgloss.NewStyle().Foreground(colorGray)
	return fmt.Sprintf("  %s %s %s%s",
		icon,
		lipgloss.NewStyle().Foreground(colorDim).Render(fmt.Sprintf("%2d", entry.Index+1)),
		nameStyle.Render(entry.Name),
		durStyle.Render(fmt.Sprintf(" (%s)", formatDuration(time.Duration(entry.DurationMs)*time.Millisecond))),
	)
}

// RenderSummary renders the categorized end-of-run summary: status, action
// counts, and — on failure — the action that terminated the run.
func (r *Renderer) RenderSummary(res *executor.Result) string {
	statusStyle := lipgloss.NewStyle().Foreground(colorGreen).Bold(true)
	if res.Status != executor.StatusSuccess {
		statusStyle = lipgloss.NewStyle().Foreground(colorRed).Bold(true)
	}
	labelStyle := lipgloss.NewStyle().Foreground(colorGray)

	var b strings.Builder
	fmt.Fprintf(&b, "%s %s\n", labelStyle.Render("status"), statusStyle.Render(string(res.Status)))
	fmt.Fprintf(&b, "%s %d/%d  %s %s\n",
		labelStyle.Render("actions"), res.ActionsCompleted, res.ActionsTotal,
		labelStyle.Render("duration"), formatDuration(time.Duration(res.DurationMs)*time.Millisecond),
	)
	if res.ErrorDetails != nil {
		fmt.Fprintf(&b, "%s #%d %s (%s)\n",
			lipgloss.NewStyle().Foreground(colorRed).Render("failed at"),
			res.ErrorDetails.ActionIndex+1, res.ErrorDetails.ActionName, res.ErrorDetails.Kind,
		)
	}
	return b.String()
}

func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	return fmt.Sprintf("%.1fs", d.Seconds())
}
