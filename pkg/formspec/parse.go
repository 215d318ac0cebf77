package formspec

import (
	"encoding/json"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// wrapped matches documents that nest the spec under a top-level key.
type wrapped struct {
	Legacy *Spec `json:"SocaInputParamSpec" yaml:"SocaInputParamSpec"`
	Spec   *Spec `json:"spec" yaml:"spec"`
}

// Parse decodes a JSON or YAML document. The spec may sit at the top level
// or under a "spec" or "SocaInputParamSpec" key.
func Parse(data []byte, source string) (*Spec, error) {
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil, fmt.Errorf("formspec: file %s is empty", source)
	}

	spec, err := decode(data)
	if err != nil {
		return nil, fmt.Errorf("formspec: parse %s: %w", source, err)
	}
	spec.Source = source
	if strings.TrimSpace(spec.Name) == "" {
		return nil, fmt.Errorf("formspec: file %s defines a spec without a name", source)
	}
	spec.Name = strings.TrimSpace(spec.Name)
	return spec, nil
}

func decode(data []byte) (*Spec, error) {
	var (
		spec Spec
		wrap wrapped
	)
	if err := json.Unmarshal(data, &spec); err == nil {
		_ = json.Unmarshal(data, &wrap)
		return pick(&spec, wrap), nil
	}

	if err := yaml.Unmarshal(data, &spec); err != nil {
		return nil, fmt.Errorf("invalid JSON or YAML: %w", err)
	}
	_ = yaml.Unmarshal(data, &wrap)
	return pick(&spec, wrap), nil
}

func pick(spec *Spec, wrap wrapped) *Spec {
	if spec.Name != "" || len(spec.Params) > 0 || len(spec.Modules) > 0 {
		return spec
	}
	if wrap.Spec != nil {
		return wrap.Spec
	}
	if wrap.Legacy != nil {
		return wrap.Legacy
	}
	return spec
}
