package engine

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Plan is an ordered list of endpoints to probe.
type Plan struct {
	Name        string            `yaml:"name" json:"name"`
	Description string            `yaml:"description,omitempty" json:"description,omitempty"`
	Vars        map[string]string `yaml:"vars,omitempty" json:"vars,omitempty"`
	Endpoints   []PlanEndpoint    `yaml:"endpoints" json:"endpoints"`
}

// PlanEndpoint is one probe. Param values may reference plan variables as
// {name}.
type PlanEndpoint struct {
	Name        string         `yaml:"name" json:"name"`
	Path        string         `yaml:"path" json:"path"`
	Params      map[string]any `yaml:"params,omitempty" json:"params,omitempty"`
	Description string         `yaml:"description,omitempty" json:"description,omitempty"`
}

// Spot plan variables.
const (
	VarMarket      = "market"
	VarInstruments = "instruments"
	VarInstrument  = "instrument"
)

// DefaultSpotPlan covers the spot-market endpoints.
func DefaultSpotPlan() Plan {
	return Plan{
		Name:        "spot",
		Description: "Spot market data endpoints",
		Vars: map[string]string{
			VarMarket:      "coinbase",
			VarInstruments: "BTC-USD,ETH-USD",
		},
		Endpoints: []PlanEndpoint{
			{
				Name:        "Spot Instruments",
				Path:        "/spot/v1/markets/instruments",
				Params:      map[string]any{"market": "{market}", "instruments": "{instruments}"},
				Description: "Spot instruments for a market",
			},
			{
				Name:        "Spot Latest Tick",
				Path:        "/spot/v1/latest/tick",
				Params:      map[string]any{"market": "{market}", "instruments": "{instruments}"},
				Description: "Latest tick data for spot instruments",
			},
			{
				Name:        "Spot Latest Trade",
				Path:        "/spot/v1/latest/trade",
				Params:      map[string]any{"market": "{market}", "instruments": "{instruments}"},
				Description: "Latest trade for spot instruments",
			},
			{
				Name:        "Spot Historical Hours",
				Path:        "/spot/v1/historical/hours",
				Params:      map[string]any{"market": "{market}", "instrument": "{instrument}", "limit": 10},
				Description: "Historical hourly spot data",
			},
			{
				Name:        "Spot Historical Days",
				Path:        "/spot/v1/historical/days",
				Params:      map[string]any{"market": "{market}", "instrument": "{instrument}", "limit": 10},
				Description: "Historical daily spot data",
			},
			{
				Name:        "Spot Markets List",
				Path:        "/spot/v1/markets",
				Description: "Available spot markets",
			},
		},
	}
}

// LoadPlan reads a YAML plan file.
func LoadPlan(path string) (Plan, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return Plan{}, errors.New("plan path is required")
	}
	// #nosec G304 -- plan path is user-provided by design
	data, err := os.ReadFile(path)
	if err != nil {
		return Plan{}, fmt.Errorf("read plan: %w", err)
	}
	plan, err := ParsePlan(data)
	if err != nil {
		return Plan{}, fmt.Errorf("%s: %w", path, err)
	}
	return plan, nil
}

// ParsePlan decodes and validates a YAML plan.
func ParsePlan(data []byte) (Plan, error) {
	var plan Plan
	if err := yaml.Unmarshal(data, &plan); err != nil {
		return Plan{}, fmt.Errorf("parse plan: %w", err)
	}
	if err := plan.Validate(); err != nil {
		return Plan{}, err
	}
	return plan, nil
}

// Validate checks that every endpoint has a path.
func (p Plan) Validate() error {
	if len(p.Endpoints) == 0 {
		return errors.New("plan has no endpoints")
	}
	for i, ep := range p.Endpoints {
		if strings.TrimSpace(ep.Path) == "" {
			return fmt.Errorf("endpoint %d (%s): path is required", i+1, ep.Name)
		}
	}
	return nil
}

// WithVars returns a copy of the plan with vars layered over its own.
// Unless instrument is given, it follows the first entry of instruments.
func (p Plan) WithVars(vars map[string]string) Plan {
	merged := make(map[string]string, len(p.Vars)+len(vars))
	for k, v := range p.Vars {
		merged[k] = v
	}
	for k, v := range vars {
		if strings.TrimSpace(v) != "" {
			merged[k] = v
		}
	}
	derive := strings.TrimSpace(vars[VarInstruments]) != "" || merged[VarInstrument] == ""
	if strings.TrimSpace(vars[VarInstrument]) == "" && derive {
		if list := merged[VarInstruments]; list != "" {
			merged[VarInstrument] = strings.TrimSpace(strings.Split(list, ",")[0])
		}
	}
	p.Vars = merged
	return p
}

// Query expands the endpoint params against vars.
func (e PlanEndpoint) Query(vars map[string]string) url.Values {
	values := url.Values{}
	if len(e.Params) == 0 {
		return values
	}

	pairs := make([]string, 0, len(vars)*2)
	keys := make([]string, 0, len(vars))
	for k := range vars {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		pairs = append(pairs, "{"+k+"}", vars[k])
	}
	replacer := strings.NewReplacer(pairs...)

	for key, raw := range e.Params {
		value := fmt.Sprint(raw)
		if raw == nil {
			value = ""
		}
		values.Set(key, replacer.Replace(value))
	}
	return values
}

// Label is the endpoint name, or its path when unnamed.
func (e PlanEndpoint) Label() string {
	if name := strings.TrimSpace(e.Name); name != "" {
		return name
	}
	return e.Path
}
