package types

import (
	"fmt"
	"sort"
	"strings"
)

// FindingCode identifies the kind of consistency issue.
type FindingCode string

// Consistency finding codes
const (
	FindingDanglingDependency  FindingCode = "dangling_dependency"
	FindingDuplicateTaskID     FindingCode = "duplicate_task_id"
	FindingSelfDependency      FindingCode = "self_dependency"
	FindingDependencyCycle     FindingCode = "dependency_cycle"
	FindingUnknownCriticalPath FindingCode = "unknown_critical_path"
	FindingDateOrder           FindingCode = "end_before_start"
	FindingMissingSupplierTask FindingCode = "missing_supplier_task"
	FindingMissingInternalTask FindingCode = "missing_internal_task"
)

// Finding is an advisory issue in generated plan content. Findings never reject a plan.
type Finding struct {
	Code    FindingCode `json:"code"`
	TaskID  string      `json:"taskId,omitempty"`
	Message string      `json:"message"`
}

var supplierKeywords = []string{"supplier", "procure", "vendor", "freelanc", "outsourc", "upwork", "agency", "contractor", "vet "}

var internalKeywords = []string{"internal", "in-house", "team", "hire", "recruit", "develop", "build", "proprietary"}

// CheckActionPlan runs the post-hoc consistency pass over an action plan.
// Task references produced by the model are untrusted, so issues are reported rather than enforced.
func CheckActionPlan(plan *ActionPlan, mode BuildMode) []Finding {
	if plan == nil {
		return nil
	}

	var findings []Finding
	tasks := plan.Tasks()

	ids := make(map[string]int, len(tasks))
	for _, t := range tasks {
		ids[t.ID]++
	}
	dupReported := make(map[string]bool)
	for _, t := range tasks {
		if ids[t.ID] > 1 && !dupReported[t.ID] {
			dupReported[t.ID] = true
			findings = append(findings, Finding{
				Code:    FindingDuplicateTaskID,
				TaskID:  t.ID,
				Message: fmt.Sprintf("task id %q is used by %d tasks", t.ID, ids[t.ID]),
			})
		}
	}

	for _, t := range tasks {
		for _, dep := range t.Dependencies {
			switch {
			case dep == t.ID:
				findings = append(findings, Finding{
					Code:    FindingSelfDependency,
					TaskID:  t.ID,
					Message: fmt.Sprintf("task %q depends on itself", t.ID),
				})
			case ids[dep] == 0:
				findings = append(findings, Finding{
					Code:    FindingDanglingDependency,
					TaskID:  t.ID,
					Message: fmt.Sprintf("task %q depends on unknown task %q", t.ID, dep),
				})
			}
		}
		if t.StartDate != "" && t.EndDate != "" && t.EndDate < t.StartDate {
			findings = append(findings, Finding{
				Code:    FindingDateOrder,
				TaskID:  t.ID,
				Message: fmt.Sprintf("task %q ends (%s) before it starts (%s)", t.ID, t.EndDate, t.StartDate),
			})
		}
	}

	if cycle := findCycle(tasks); len(cycle) > 0 {
		findings = append(findings, Finding{
			Code:    FindingDependencyCycle,
			TaskID:  cycle[0],
			Message: "dependency cycle: " + strings.Join(cycle, " -> "),
		})
	}

	if plan.CriticalPath != nil && !hasTitle(tasks, plan.CriticalPath.TaskTitle) {
		findings = append(findings, Finding{
			Code:    FindingUnknownCriticalPath,
			Message: fmt.Sprintf("critical path task %q does not match any task title", plan.CriticalPath.TaskTitle),
		})
	}

	switch mode {
	case BuildModeOutSourced:
		if !anyTaskMentions(tasks, supplierKeywords) {
			findings = append(findings, Finding{
				Code:    FindingMissingSupplierTask,
				Message: "out-sourced plan has no procurement or supplier discovery task",
			})
		}
	case BuildModeInHouse:
		if !anyTaskMentions(tasks, internalKeywords) {
			findings = append(findings, Finding{
				Code:    FindingMissingInternalTask,
				Message: "in-house plan has no internal build or team task",
			})
		}
	}

	return findings
}

// HasFinding reports whether findings contains the given code.
func HasFinding(findings []Finding, code FindingCode) bool {
	for _, f := range findings {
		if f.Code == code {
			return true
		}
	}
	return false
}

// ExecutionOrder returns tasks ordered so that every task follows the tasks it depends on.
// Dangling dependencies are ignored; tasks caught in a cycle are appended in plan order.
func ExecutionOrder(plan *ActionPlan) []Task {
	tasks := plan.Tasks()
	index := make(map[string]int, len(tasks))
	for i, t := range tasks {
		if _, ok := index[t.ID]; !ok {
			index[t.ID] = i
		}
	}

	indegree := make([]int, len(tasks))
	dependents := make([][]int, len(tasks))
	for i, t := range tasks {
		for _, dep := range t.Dependencies {
			j, ok := index[dep]
			if !ok || j == i {
				continue
			}
			indegree[i]++
			dependents[j] = append(dependents[j], i)
		}
	}

	var ready []int
	for i := range tasks {
		if indegree[i] == 0 {
			ready = append(ready, i)
		}
	}

	ordered := make([]Task, 0, len(tasks))
	placed := make([]bool, len(tasks))
	for len(ready) > 0 {
		sort.Ints(ready)
		i := ready[0]
		ready = ready[1:]
		ordered = append(ordered, tasks[i])
		placed[i] = true
		for _, d := range dependents[i] {
			indegree[d]--
			if indegree[d] == 0 {
				ready = append(ready, d)
			}
		}
	}
	for i, t := range tasks {
		if !placed[i] {
			ordered = append(ordered, t)
		}
	}
	return ordered
}

// findCycle returns one dependency cycle as a list of task IDs, or nil.
func findCycle(tasks []Task) []string {
	deps := make(map[string][]string, len(tasks))
	for _, t := range tasks {
		deps[t.ID] = append(deps[t.ID], t.Dependencies...)
	}

	const (
		unvisited = iota
		visiting
		done
	)
	state := make(map[string]int, len(deps))
	var stack []string
	var cycle []string

	var visit func(id string) bool
	visit = func(id string) bool {
		state[id] = visiting
		stack = append(stack, id)
		for _, dep := range deps[id] {
			if _, known := deps[dep]; !known || dep == id {
				continue
			}
			switch state[dep] {
			case visiting:
				for i, s := range stack {
					if s == dep {
						cycle = append(append([]string{}, stack[i:]...), dep)
						return true
					}
				}
			case unvisited:
				if visit(dep) {
					return true
				}
			}
		}
		stack = stack[:len(stack)-1]
		state[id] = done
		return false
	}

	for _, t := range tasks {
		if state[t.ID] == unvisited && visit(t.ID) {
			return cycle
		}
	}
	return nil
}

func hasTitle(tasks []Task, title string) bool {
	want := strings.TrimSpace(strings.ToLower(title))
	for _, t := range tasks {
		if strings.TrimSpace(strings.ToLower(t.Title)) == want {
			return true
		}
	}
	return false
}

func anyTaskMentions(tasks []Task, keywords []string) bool {
	for _, t := range tasks {
		text := strings.ToLower(t.Title + " " + t.Description + " " + t.Category)
		for _, kw := range keywords {
			if strings.Contains(text, kw) {
				return true
			}
		}
	}
	return false
}
