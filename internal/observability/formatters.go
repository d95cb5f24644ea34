// Package observability provides formatted output utilities for the CLI.
package observability

import (
	"fmt"
	"io"
	"strings"

	"github.com/jonathan/venture-planner/internal/types"
)

const (
	// boxWidth is the default width for formatted output boxes
	boxWidth = 60
	// maxItemsToShow is the default number of items to display in lists
	maxItemsToShow = 5
)

// Printer handles formatted output for the CLI
type Printer struct {
	out io.Writer
}

// NewPrinter creates a new Printer that writes to the given writer
func NewPrinter(out io.Writer) *Printer {
	return &Printer{out: out}
}

// truncate shortens s to at most n runes, marking the cut with "...".
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}

// printBox prints a formatted box with a title and content
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) printBox(title string, content string) {
	border := strings.Repeat("─", boxWidth-2)
	fmt.Fprintf(p.out, "┌%s┐\n", border)
	fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, title)
	fmt.Fprintf(p.out, "├%s┤\n", border)

	for _, line := range strings.Split(content, "\n") {
		fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, truncate(line, boxWidth-4))
	}

	fmt.Fprintf(p.out, "└%s┘\n", border)
}

// PrintDiscovery outputs the ranked opportunities of a discovery.
func (p *Printer) PrintDiscovery(d *types.Discovery) {
	if d == nil || len(d.Opportunities) == 0 {
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Discovery: %s\n", d.ID))
	sb.WriteString(fmt.Sprintf("Focus:     %s\n\n", d.Focus))

	for i, o := range d.Opportunities {
		sb.WriteString(fmt.Sprintf("#%d  %s\n", o.Rank, o.Name))
		sb.WriteString(fmt.Sprintf("    Priority: %s  Risk: %s\n", o.Priority, o.Risk))
		sb.WriteString(fmt.Sprintf("    ID: %s\n", o.ID))
		if o.Rationale != "" {
			sb.WriteString(fmt.Sprintf("    %s\n", o.Rationale))
		}
		if i < len(d.Opportunities)-1 {
			sb.WriteString("\n")
		}
	}

	p.printBox("RANKED OPPORTUNITIES", strings.TrimSuffix(sb.String(), "\n"))
}

// PrintAdvice outputs the build-mode comparison a run is waiting on.
func (p *Printer) PrintAdvice(advice *types.BuildModeAdvice) {
	if advice == nil {
		return
	}

	var sb strings.Builder
	mode := func(name string, a types.ModeAdvice) {
		sb.WriteString(name + ":\n")
		sb.WriteString(fmt.Sprintf("  Cost/benefit: %s\n", a.CostBenefitAnalysis))
		sb.WriteString(fmt.Sprintf("  Resources:    %s\n", a.ResourceMetrics))
		sb.WriteString(fmt.Sprintf("  Recommended:  %s\n", a.StrategicRecommendation))
	}
	mode(string(types.BuildModeInHouse), advice.InHouse)
	sb.WriteString("\n")
	mode(string(types.BuildModeOutSourced), advice.OutSourced)

	p.printBox("BUILD MODE ADVICE", strings.TrimSuffix(sb.String(), "\n"))
}

// PrintPlan outputs a one-screen overview of a stored plan.
func (p *Printer) PrintPlan(rec *types.PlanRecord) {
	if rec == nil {
		return
	}
	plan := &rec.Plan

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Opportunity: %s\n", plan.Opportunity.Name))
	sb.WriteString(fmt.Sprintf("Plan:        %s (v%d, %s)\n", rec.ID, rec.Version, rec.Status))
	if plan.BuildMode != "" {
		sb.WriteString(fmt.Sprintf("Build mode:  %s\n", plan.BuildMode))
	}
	if plan.Analysis != nil {
		sb.WriteString(fmt.Sprintf("Revenue:     %s\n", plan.Analysis.PotentialRevenue))
	}
	if len(plan.ChartData) > 0 {
		sb.WriteString(fmt.Sprintf("12m revenue: %d\n", types.TotalRevenue(plan.ChartData)))
	}
	if plan.Structure != nil {
		sb.WriteString(fmt.Sprintf("Departments: %d\n", len(plan.Structure.Departments)))
	}
	if plan.ActionPlan != nil {
		sb.WriteString(fmt.Sprintf("Tasks:       %d (%d%% done)\n", len(plan.ActionPlan.Tasks()), plan.ActionPlan.Progress()))
		if cp := plan.ActionPlan.CriticalPath; cp != nil {
			sb.WriteString(fmt.Sprintf("Critical:    %s (%s)\n", cp.TaskTitle, cp.TimeEstimate))
		}
	}

	p.printBox("VENTURE PLAN", strings.TrimSuffix(sb.String(), "\n"))
}

// PrintBrief outputs the executive brief.
func (p *Printer) PrintBrief(brief *types.ExecutiveBrief) {
	if brief == nil {
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Viability: %d/10   ROI: %s\n", brief.ViabilityScore, brief.ROIPotential))
	sb.WriteString(fmt.Sprintf("Breakeven: %s\n\n", brief.TimeToBreakeven))
	sb.WriteString("Strengths:\n")
	for _, s := range brief.KeyStrengths {
		sb.WriteString(fmt.Sprintf("  + %s\n", s))
	}
	sb.WriteString("Risks:\n")
	for _, r := range brief.PotentialRisks {
		sb.WriteString(fmt.Sprintf("  - %s\n", r))
	}
	sb.WriteString("\n" + brief.StrategicRecommendation)

	p.printBox("EXECUTIVE BRIEF", sb.String())
}

// PrintTasks outputs the action plan in dependency order with completion marks.
func (p *Printer) PrintTasks(plan *types.ActionPlan) {
	if plan == nil {
		return
	}

	var sb strings.Builder
	ordered := types.ExecutionOrder(plan)
	sb.WriteString(fmt.Sprintf("%d tasks, %d%% complete\n\n", len(ordered), plan.Progress()))
	for _, t := range ordered {
		mark := "[ ]"
		if t.Completed {
			mark = "[x]"
		}
		sb.WriteString(fmt.Sprintf("%s %s  %s\n", mark, t.ID, t.Title))
		if len(t.Dependencies) > 0 {
			sb.WriteString(fmt.Sprintf("      after %s\n", strings.Join(t.Dependencies, ", ")))
		}
	}

	p.printBox("ACTION PLAN", strings.TrimSuffix(sb.String(), "\n"))
}

// PrintFindings outputs the consistency findings attached to a plan.
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) PrintFindings(findings []types.Finding) {
	if len(findings) == 0 {
		fmt.Fprintf(p.out, "┌%s┐\n", strings.Repeat("─", boxWidth-2))
		fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, "✅ NO CONSISTENCY FINDINGS")
		fmt.Fprintf(p.out, "└%s┘\n", strings.Repeat("─", boxWidth-2))
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Found %d findings:\n\n", len(findings)))

	count := min(len(findings), maxItemsToShow)
	for i := 0; i < count; i++ {
		f := findings[i]
		sb.WriteString(fmt.Sprintf("⚠ %s\n", f.Code))
		sb.WriteString(fmt.Sprintf("  %s\n", f.Message))
		if i < count-1 {
			sb.WriteString("\n")
		}
	}
	if len(findings) > maxItemsToShow {
		sb.WriteString(fmt.Sprintf("\n... and %d more findings", len(findings)-maxItemsToShow))
	}

	p.printBox("CONSISTENCY FINDINGS", strings.TrimSuffix(sb.String(), "\n"))
}
