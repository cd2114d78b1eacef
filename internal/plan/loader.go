package plan

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

type NamedPlan struct {
	Name string
	Plan *Plan
}

/*
LoadPlansFromFile loads one or many pre-written plans from a JSON file and
always returns a slice. It supports these shapes:

 1. Multi-plan:
    {
    "plans": [
    { "name": "alpha", "plan": { "goal_analysis": "...", "steps": [...] } },
    { "plan": { "steps": [...] } },           // name optional
    [ {..step..}, ... ]                        // an entry can be a bare steps array
    ]
    }

 2. Single plan:
    { "goal_analysis": "...", "steps": [ ... ] }
    [ {..step..}, ... ]   // bare array of steps at top level

Unnamed plans are auto-named as "manual:<base>#<index>".
*/
func LoadPlansFromFile(path string) ([]NamedPlan, error) {
	clean := filepath.Clean(path)
	if _, err := os.Stat(clean); err != nil {
		return nil, fmt.Errorf("plans file not found: %s", clean)
	}
	data, err := os.ReadFile(clean)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", clean, err)
	}
	base := filepath.Base(clean)

	var obj struct {
		Plans []json.RawMessage `json:"plans"`
	}
	if err := json.Unmarshal(data, &obj); err == nil && len(obj.Plans) > 0 {
		return parsePlanList(obj.Plans, base)
	}

	if np, ok := parseOneTopLevelPlan(data, base); ok {
		return []NamedPlan{np}, nil
	}

	return nil, fmt.Errorf("unrecognized plans format in %s", clean)
}

func parsePlanList(items []json.RawMessage, base string) ([]NamedPlan, error) {
	out := make([]NamedPlan, 0, len(items))
	for i, raw := range items {
		np, ok := parseOneNamedPlan(raw)
		if !ok {
			var steps []Step
			if err := json.Unmarshal(raw, &steps); err == nil && len(steps) > 0 {
				np = NamedPlan{Plan: &Plan{Steps: steps}}
				ok = true
			}
		}
		if !ok {
			return nil, fmt.Errorf("could not parse plan #%d", i+1)
		}
		if strings.TrimSpace(np.Name) == "" {
			np.Name = fmt.Sprintf("manual:%s#%d", base, i+1)
		}
		out = append(out, np)
	}
	return out, nil
}

// parseOneNamedPlan tries {"name":"...", "plan":{...}}.
func parseOneNamedPlan(raw json.RawMessage) (NamedPlan, bool) {
	var wrap struct {
		Name string `json:"name"`
		Plan *Plan  `json:"plan"`
	}
	if err := json.Unmarshal(raw, &wrap); err == nil && wrap.Plan != nil && len(wrap.Plan.Steps) > 0 {
		return NamedPlan{Name: strings.TrimSpace(wrap.Name), Plan: wrap.Plan}, true
	}
	return NamedPlan{}, false
}

// parseOneTopLevelPlan handles {"steps":[...]} or a bare steps array.
func parseOneTopLevelPlan(data []byte, base string) (NamedPlan, bool) {
	var p Plan
	if err := json.Unmarshal(data, &p); err == nil && len(p.Steps) > 0 {
		return NamedPlan{Name: "manual:" + base, Plan: &p}, true
	}
	var steps []Step
	if err := json.Unmarshal(data, &steps); err == nil && len(steps) > 0 {
		return NamedPlan{Name: "manual:" + base, Plan: &Plan{Steps: steps}}, true
	}
	return NamedPlan{}, false
}

// SelectPlansByNames returns plans matching the given names (case-insensitive).
func SelectPlansByNames(plans []NamedPlan, names []string) ([]NamedPlan, []string) {
	if len(names) == 0 {
		return plans, nil
	}

	var selected []NamedPlan
	var missing []string
	for _, want := range names {
		w := strings.TrimSpace(want)
		if w == "" {
			continue
		}
		found := false
		for i := range plans {
			if strings.EqualFold(plans[i].Name, w) {
				selected = append(selected, plans[i])
				found = true
				break
			}
		}
		if !found {
			missing = append(missing, want)
		}
	}
	return selected, missing
}
