package schemas

import (
	"embed"
	"fmt"
	"path"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"
)

//go:embed contracts/*.schema.json
var contractFiles embed.FS

// Stage names a pipeline stage. Each stage owns one output contract family.
type Stage string

// Pipeline stages
const (
	StageDiscover           Stage = "discover"
	StageRank               Stage = "rank"
	StageAnalyzeMarket      Stage = "analyze-market"
	StageGenerateStructure  Stage = "generate-structure"
	StageBuildStrategy      Stage = "build-strategy"
	StageBuildModeAdvice    Stage = "build-mode-advice"
	StageChartData          Stage = "chart-data"
	StageExtractTasks       Stage = "extract-tasks"
	StageExecutiveBrief     Stage = "executive-brief"
	StagePrioritizeVentures Stage = "prioritize-ventures"
)

// AllStages lists every stage with a contract, in pipeline order.
func AllStages() []Stage {
	return []Stage{
		StageDiscover, StageRank, StageAnalyzeMarket, StageGenerateStructure,
		StageBuildStrategy, StageBuildModeAdvice, StageChartData,
		StageExtractTasks, StageExecutiveBrief, StagePrioritizeVentures,
	}
}

// Contract is one version of a stage's output schema.
type Contract struct {
	Stage   Stage
	Version int
	Source  string

	once     sync.Once
	compiled *gojsonschema.Schema
	err      error
	outline  string
}

// Name returns the contract identifier, e.g. "extract-tasks.v5".
func (c *Contract) Name() string {
	return fmt.Sprintf("%s.v%d", c.Stage, c.Version)
}

// Validate checks a JSON document against the contract.
// It returns *ValidationError for non-conforming documents and *SchemaLoadError for unusable schemas.
func (c *Contract) Validate(jsonContent string) error {
	c.compile()
	if c.err != nil {
		return c.err
	}

	return validateWith(c.compiled, c.Name(), []byte(jsonContent))
}

// Outline returns a human-readable description of the expected output, used in prompts.
func (c *Contract) Outline() string {
	c.compile()
	return c.outline
}

func (c *Contract) compile() {
	c.once.Do(func() {
		compiled, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(c.Source))
		if err != nil {
			c.err = &SchemaLoadError{Path: c.Name(), Message: "invalid contract schema", Cause: err}
			return
		}
		c.compiled = compiled

		outline, err := buildOutline(c.Source)
		if err != nil {
			c.err = &SchemaLoadError{Path: c.Name(), Message: "failed to describe contract", Cause: err}
			return
		}
		c.outline = outline
	})
}

var (
	registryOnce sync.Once
	registry     map[Stage]map[int]*Contract
	registryErr  error
)

func loadRegistry() {
	registry = make(map[Stage]map[int]*Contract)
	entries, err := contractFiles.ReadDir("contracts")
	if err != nil {
		registryErr = fmt.Errorf("failed to read embedded contracts: %w", err)
		return
	}
	for _, entry := range entries {
		name := strings.TrimSuffix(entry.Name(), ".schema.json")
		dot := strings.LastIndex(name, ".v")
		if dot < 0 {
			registryErr = fmt.Errorf("contract file %s has no version suffix", entry.Name())
			return
		}
		version, err := strconv.Atoi(name[dot+2:])
		if err != nil {
			registryErr = fmt.Errorf("contract file %s has invalid version: %w", entry.Name(), err)
			return
		}
		data, err := contractFiles.ReadFile(path.Join("contracts", entry.Name()))
		if err != nil {
			registryErr = fmt.Errorf("failed to read contract %s: %w", entry.Name(), err)
			return
		}
		stage := Stage(name[:dot])
		if registry[stage] == nil {
			registry[stage] = make(map[int]*Contract)
		}
		registry[stage][version] = &Contract{Stage: stage, Version: version, Source: string(data)}
	}
}

// Lookup returns a specific contract version for a stage.
func Lookup(stage Stage, version int) (*Contract, error) {
	registryOnce.Do(loadRegistry)
	if registryErr != nil {
		return nil, registryErr
	}
	versions, ok := registry[stage]
	if !ok {
		return nil, fmt.Errorf("unknown stage: %s", stage)
	}
	c, ok := versions[version]
	if !ok {
		return nil, fmt.Errorf("stage %s has no contract version %d (available: %v)", stage, version, Versions(stage))
	}
	return c, nil
}

// Latest returns the highest contract version for a stage.
func Latest(stage Stage) (*Contract, error) {
	versions := Versions(stage)
	if len(versions) == 0 {
		return nil, fmt.Errorf("unknown stage: %s", stage)
	}
	return Lookup(stage, versions[len(versions)-1])
}

// Versions returns the available contract versions of a stage in ascending order.
func Versions(stage Stage) []int {
	registryOnce.Do(loadRegistry)
	var out []int
	for v := range registry[stage] {
		out = append(out, v)
	}
	sort.Ints(out)
	return out
}

// Pins fixes the contract version of every stage for one pipeline run.
type Pins map[Stage]int

// LatestPins pins every stage to its newest contract.
func LatestPins() Pins {
	pins := make(Pins)
	for _, stage := range AllStages() {
		if versions := Versions(stage); len(versions) > 0 {
			pins[stage] = versions[len(versions)-1]
		}
	}
	return pins
}

// With returns a copy of the pins with overrides applied.
func (p Pins) With(overrides map[Stage]int) Pins {
	out := make(Pins, len(p)+len(overrides))
	for k, v := range p {
		out[k] = v
	}
	for k, v := range overrides {
		out[k] = v
	}
	return out
}

// Contract resolves the pinned contract of a stage. Unpinned stages use the latest version.
func (p Pins) Contract(stage Stage) (*Contract, error) {
	if v, ok := p[stage]; ok {
		return Lookup(stage, v)
	}
	return Latest(stage)
}

// Check verifies that every pinned version exists.
func (p Pins) Check() error {
	for stage, v := range p {
		if _, err := Lookup(stage, v); err != nil {
			return err
		}
	}
	return nil
}

// Record converts the pins into the plain map stored with a plan.
func (p Pins) Record() map[string]int {
	out := make(map[string]int, len(p))
	for k, v := range p {
		out[string(k)] = v
	}
	return out
}

// PinsFromRecord restores pins saved with a plan.
func PinsFromRecord(rec map[string]int) Pins {
	pins := make(Pins, len(rec))
	for k, v := range rec {
		pins[Stage(k)] = v
	}
	return pins
}
