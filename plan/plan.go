// Package plan implements Plan (spec.md §4.10): a named, dependency-annotated
// graph of instructions that can be validated for acyclicity and grouped
// into dependency-depth execution phases, without itself executing anything
// (a caller that wants a phase run passes its instructions to exec.Exec
// itself).
//
// Internally this wraps a dag type adapted from the teacher's
// orchestration/workflow_dag.go WorkflowDAG: the same rebuild-dependents,
// DFS cycle detection, and Kahn's-algorithm execution-level grouping,
// renamed and generalized to carry core.Instruction payloads and to report
// cycles as a ValidationError carrying the cycle's vertex list instead of a
// plain error.
package plan

import (
	"fmt"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/flowloom/actions/core"
)

// StepStatus tracks a step's progress through one execution pass. Plan
// itself never advances a step's status — a caller driving execution calls
// MarkRunning/MarkCompleted/MarkFailed to keep Statistics current.
type StepStatus int

const (
	StepPending StepStatus = iota
	StepRunning
	StepCompleted
	StepFailed
	StepSkipped
)

func (s StepStatus) String() string {
	switch s {
	case StepPending:
		return "pending"
	case StepRunning:
		return "running"
	case StepCompleted:
		return "completed"
	case StepFailed:
		return "failed"
	case StepSkipped:
		return "skipped"
	default:
		return "unknown"
	}
}

// StepSpec is the keyword-list form Build/ToKeyword round-trip through
// (spec.md §4.10: "build(keyword-list, context)" / "to_keyword reverses the
// plan into a canonical keyword list form").
type StepSpec struct {
	Name       string
	Action     core.Action
	Params     core.Params
	DependsOn  []string
}

type step struct {
	name         string
	inst         core.Instruction
	dependencies []string
	dependents   []string
	status       StepStatus
}

// Plan is a directed acyclic graph of named steps, each carrying a
// core.Instruction to run once its dependencies have completed.
type Plan struct {
	mu         sync.RWMutex
	steps      map[string]*step
	order      []string // insertion order, for ToKeyword/ExecutionPhases determinism
	normalized bool
}

// New returns an empty Plan.
func New() *Plan {
	return &Plan{steps: make(map[string]*step)}
}

// Add registers a named step carrying inst, depending on the named steps in
// dependsOn (which need not exist yet — Normalize checks existence).
// Re-adding an existing name overwrites its instruction and dependency list.
// Add returns the receiver so calls can be chained, spec.md §4.10's
// "add(name, action-or-tuple, depends_on: [...])" expressed as a builder.
func (p *Plan) Add(name string, inst core.Instruction, dependsOn ...string) *Plan {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, exists := p.steps[name]; !exists {
		p.order = append(p.order, name)
	}
	p.steps[name] = &step{
		name:         name,
		inst:         inst,
		dependencies: append([]string{}, dependsOn...),
		status:       StepPending,
	}
	p.normalized = false
	return p
}

// DependsOn appends additional dependencies to an already-added step
// (spec.md §4.10 "depends_on(name, deps)").
func (p *Plan) DependsOn(name string, deps ...string) *Plan {
	p.mu.Lock()
	defer p.mu.Unlock()

	s, ok := p.steps[name]
	if !ok {
		s = &step{name: name, status: StepPending}
		p.steps[name] = s
		p.order = append(p.order, name)
	}
	s.dependencies = append(s.dependencies, deps...)
	p.normalized = false
	return p
}

// Build constructs a Plan from a flat list of StepSpecs sharing one
// context, the value form of Add/DependsOn (spec.md §4.10
// "build(keyword-list, context)").
func Build(steps []StepSpec, context core.Params) (*Plan, *core.Error) {
	p := New()
	for _, spec := range steps {
		if spec.Name == "" {
			return nil, core.NewError(core.ValidationError, "plan step is missing a name", nil)
		}
		act, err := core.ValidateAction(spec.Action)
		if err != nil {
			return nil, err.WithDetail("step", spec.Name)
		}
		inst := core.NewInstruction(act, spec.Params, context, core.RunOpts{})
		p.Add(spec.Name, inst, spec.DependsOn...)
	}
	if err := p.Normalize(); err != nil {
		return nil, err
	}
	return p, nil
}

// MustBuild is Build but panics on error (spec.md §4.10 "build!").
func MustBuild(steps []StepSpec, context core.Params) *Plan {
	p, err := Build(steps, context)
	if err != nil {
		panic(err)
	}
	return p
}

// rebuildDependents recomputes each step's reverse-dependency list from the
// current forward dependency lists (teacher: WorkflowDAG.rebuildDependents).
func (p *Plan) rebuildDependents() {
	for _, s := range p.steps {
		s.dependents = nil
	}
	for name, s := range p.steps {
		for _, dep := range s.dependencies {
			if d, ok := p.steps[dep]; ok {
				d.dependents = append(d.dependents, name)
			}
		}
	}
}

// Normalize builds the directed graph and validates acyclicity (spec.md
// §4.10 "normalize"): every dependency must reference an existing step, and
// the graph must be acyclic. On success the Plan is marked normalized so
// ExecutionPhases can skip re-validating.
func (p *Plan) Normalize() *core.Error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.normalizeLocked()
}

func (p *Plan) normalizeLocked() *core.Error {
	p.rebuildDependents()

	for name, s := range p.steps {
		for _, dep := range s.dependencies {
			if _, ok := p.steps[dep]; !ok {
				return core.NewError(core.ValidationError, fmt.Sprintf("step %q depends on unknown step %q", name, dep), map[string]interface{}{
					"step":       name,
					"dependency": dep,
				})
			}
		}
	}

	if cycle := p.findCycle(); cycle != nil {
		return core.Wrap(core.ValidationError, "plan contains a circular dependency", core.ErrPlanCycle, map[string]interface{}{
			"cycle": cycle,
		})
	}

	p.normalized = true
	return nil
}

// findCycle runs DFS over the dependents edges, returning the vertex list
// of the first cycle found (teacher: WorkflowDAG.hasCycleDFS, generalized
// here to report the cycle rather than a bare bool).
func (p *Plan) findCycle() []string {
	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make(map[string]int, len(p.steps))
	var path []string
	var found []string

	var visit func(name string) bool
	visit = func(name string) bool {
		color[name] = gray
		path = append(path, name)
		for _, next := range p.steps[name].dependents {
			switch color[next] {
			case white:
				if visit(next) {
					return true
				}
			case gray:
				idx := indexOf(path, next)
				found = append(append([]string{}, path[idx:]...), next)
				return true
			}
		}
		path = path[:len(path)-1]
		color[name] = black
		return false
	}

	names := make([]string, 0, len(p.steps))
	for name := range p.steps {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if color[name] == white {
			if visit(name) {
				return found
			}
		}
	}
	return nil
}

func indexOf(list []string, v string) int {
	for i, item := range list {
		if item == v {
			return i
		}
	}
	return -1
}

// ExecutionPhases groups steps into dependency-depth levels: every step in
// phase d has all its dependencies in phases 0..d-1, so every step within a
// phase may run concurrently (spec.md §4.10: "topological layering; all
// nodes at depth d may run concurrently"). Steps within a phase are sorted
// by name for determinism. Normalize runs implicitly if it hasn't already.
func (p *Plan) ExecutionPhases() ([][]string, *core.Error) {
	p.mu.Lock()
	if !p.normalized {
		if err := p.normalizeLocked(); err != nil {
			p.mu.Unlock()
			return nil, err
		}
	}
	steps := p.steps
	p.mu.Unlock()

	resolved := make(map[string]bool, len(steps))
	var phases [][]string

	for len(resolved) < len(steps) {
		var level []string
		for name, s := range steps {
			if resolved[name] {
				continue
			}
			ready := true
			for _, dep := range s.dependencies {
				if !resolved[dep] {
					ready = false
					break
				}
			}
			if ready {
				level = append(level, name)
			}
		}
		if len(level) == 0 {
			// Normalize already rejects cycles, so this should be
			// unreachable; guard against an infinite loop regardless.
			break
		}
		sort.Strings(level)
		for _, name := range level {
			resolved[name] = true
		}
		phases = append(phases, level)
	}

	return phases, nil
}

// ToKeyword reverses the plan into its canonical StepSpec list, in
// insertion order (spec.md §4.10 "to_keyword reverses the plan into a
// canonical keyword list form"), such that ToKeyword(MustBuild(kw, ctx))
// round-trips kw.
func (p *Plan) ToKeyword() []StepSpec {
	p.mu.RLock()
	defer p.mu.RUnlock()

	out := make([]StepSpec, 0, len(p.order))
	for _, name := range p.order {
		s := p.steps[name]
		out = append(out, StepSpec{
			Name:      name,
			Action:    s.inst.Action(),
			Params:    s.inst.Params(),
			DependsOn: append([]string{}, s.dependencies...),
		})
	}
	return out
}

// Instruction returns the named step's instruction and whether it exists.
func (p *Plan) Instruction(name string) (core.Instruction, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	s, ok := p.steps[name]
	if !ok {
		return core.Instruction{}, false
	}
	return s.inst, true
}

// MarkRunning, MarkCompleted, and MarkFailed update a step's status for
// Statistics' benefit; MarkFailed cascades StepSkipped onto every
// transitive dependent, mirroring the teacher's
// WorkflowDAG.markDependentsSkipped.
func (p *Plan) MarkRunning(name string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if s, ok := p.steps[name]; ok {
		s.status = StepRunning
	}
}

func (p *Plan) MarkCompleted(name string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if s, ok := p.steps[name]; ok {
		s.status = StepCompleted
	}
}

func (p *Plan) MarkFailed(name string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	s, ok := p.steps[name]
	if !ok {
		return
	}
	s.status = StepFailed
	p.rebuildDependents()
	p.skipDependents(name)
}

func (p *Plan) skipDependents(name string) {
	s, ok := p.steps[name]
	if !ok {
		return
	}
	for _, depName := range s.dependents {
		dep, ok := p.steps[depName]
		if !ok || dep.status == StepSkipped || dep.status == StepCompleted || dep.status == StepFailed {
			continue
		}
		dep.status = StepSkipped
		p.skipDependents(depName)
	}
}

// Reset returns every step to StepPending, for re-running a Plan.
func (p *Plan) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, s := range p.steps {
		s.status = StepPending
	}
}

// Statistics summarizes the Plan's shape and current run progress.
// Supplemented from the teacher's DAGStatistics: useful observability
// spec.md doesn't mention but doesn't exclude either.
type Statistics struct {
	TotalSteps      int
	PendingSteps    int
	RunningSteps    int
	CompletedSteps  int
	FailedSteps     int
	SkippedSteps    int
	MaxDependencies int
	MaxDependents   int
	MaxParallelism  int // size of the widest execution phase
	Depth           int // number of execution phases
}

func (p *Plan) Statistics() Statistics {
	p.mu.RLock()
	stats := Statistics{TotalSteps: len(p.steps)}
	for _, s := range p.steps {
		switch s.status {
		case StepPending:
			stats.PendingSteps++
		case StepRunning:
			stats.RunningSteps++
		case StepCompleted:
			stats.CompletedSteps++
		case StepFailed:
			stats.FailedSteps++
		case StepSkipped:
			stats.SkippedSteps++
		}
		if n := len(s.dependencies); n > stats.MaxDependencies {
			stats.MaxDependencies = n
		}
		if n := len(s.dependents); n > stats.MaxDependents {
			stats.MaxDependents = n
		}
	}
	p.mu.RUnlock()

	phases, err := p.ExecutionPhases()
	if err == nil {
		stats.Depth = len(phases)
		for _, level := range phases {
			if len(level) > stats.MaxParallelism {
				stats.MaxParallelism = len(level)
			}
		}
	}
	return stats
}

// yamlStep is the serializable shape of one StepSpec: actions are recorded
// by name only, so FromYAML needs a registry to resolve them back into
// core.Action values (the same resolution problem workflow.Definition's
// YAML step actions face).
type yamlStep struct {
	Name      string                 `yaml:"name"`
	Action    string                 `yaml:"action"`
	Params    map[string]interface{} `yaml:"params,omitempty"`
	DependsOn []string               `yaml:"depends_on,omitempty"`
}

type yamlPlan struct {
	Steps []yamlStep `yaml:"steps"`
}

// ToYAML serializes the plan's canonical keyword-list form to YAML, action
// identity recorded by name (core.Action values are not themselves
// serializable).
func (p *Plan) ToYAML() ([]byte, error) {
	kw := p.ToKeyword()
	out := yamlPlan{Steps: make([]yamlStep, 0, len(kw))}
	for _, spec := range kw {
		out.Steps = append(out.Steps, yamlStep{
			Name:      spec.Name,
			Action:    spec.Action.Name(),
			Params:    spec.Params,
			DependsOn: spec.DependsOn,
		})
	}
	return yaml.Marshal(out)
}

// FromYAML parses YAML produced by ToYAML (or hand-authored in the same
// shape) into a Plan, resolving each step's action name against registry.
func FromYAML(data []byte, registry map[string]core.Action) (*Plan, *core.Error) {
	var parsed yamlPlan
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return nil, core.Wrap(core.ValidationError, "invalid plan YAML", err, nil)
	}

	specs := make([]StepSpec, 0, len(parsed.Steps))
	for _, s := range parsed.Steps {
		act, ok := registry[s.Action]
		if !ok {
			return nil, core.NewError(core.ValidationError, fmt.Sprintf("unknown action %q referenced by step %q", s.Action, s.Name), map[string]interface{}{
				"step":   s.Name,
				"action": s.Action,
			})
		}
		specs = append(specs, StepSpec{
			Name:      s.Name,
			Action:    act,
			Params:    core.Params(s.Params),
			DependsOn: s.DependsOn,
		})
	}
	return Build(specs, core.Params{})
}
