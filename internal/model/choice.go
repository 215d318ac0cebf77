package model

import (
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"
)

type choiceAlias Choice

// UnmarshalYAML accepts either a mapping or a bare scalar, which becomes both
// title and value.
func (c *Choice) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		var value any
		if err := node.Decode(&value); err != nil {
			return err
		}
		*c = ScalarChoice(value)
		return nil
	}
	var alias choiceAlias
	if err := node.Decode(&alias); err != nil {
		return err
	}
	*c = Choice(alias)
	return nil
}

// UnmarshalJSON accepts either an object or a bare scalar.
func (c *Choice) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if _, ok := raw.(map[string]any); !ok {
		*c = ScalarChoice(raw)
		return nil
	}
	var alias choiceAlias
	if err := json.Unmarshal(data, &alias); err != nil {
		return err
	}
	*c = Choice(alias)
	return nil
}

// ScalarChoice builds a choice whose title is the formatted value.
func ScalarChoice(value any) Choice {
	return Choice{Title: fmt.Sprint(value), Value: value}
}

// NormalizeChoice fills a missing title from the value and a missing value
// from the title.
func NormalizeChoice(c Choice) Choice {
	if c.Value == nil && c.Title != "" {
		c.Value = c.Title
	}
	if c.Title == "" && c.Value != nil {
		c.Title = fmt.Sprint(c.Value)
	}
	return c
}
