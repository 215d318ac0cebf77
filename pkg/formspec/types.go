// Package formspec loads form specification documents: a named, versioned
// set of param descriptors arranged into modules, sections and groups.
//
// Documents are YAML or JSON. A Registry indexes one document and answers
// the ordered descriptor list for a module, section or group, merging the
// section-level overrides with the registered params. A Store holds every
// document loaded from a filesystem.
package formspec

import "github.com/goliatone/go-formspec/pkg/model"

// Spec is one specification document.
type Spec struct {
	Name    string        `json:"name" yaml:"name"`
	Version string        `json:"version,omitempty" yaml:"version,omitempty"`
	Tags    []Tag         `json:"tags,omitempty" yaml:"tags,omitempty"`
	Params  []model.Field `json:"params,omitempty" yaml:"params,omitempty"`
	Modules []Module      `json:"modules,omitempty" yaml:"modules,omitempty"`

	// Source is the file the document was read from, when known.
	Source string `json:"-" yaml:"-"`
}

// Tag labels params sharing a concern.
type Tag struct {
	Name        string `json:"name" yaml:"name"`
	Title       string `json:"title,omitempty" yaml:"title,omitempty"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
	Markdown    string `json:"markdown,omitempty" yaml:"markdown,omitempty"`
	Unicode     string `json:"unicode,omitempty" yaml:"unicode,omitempty"`
	ASCII       string `json:"ascii,omitempty" yaml:"ascii,omitempty"`
}

// Module is a top-level unit of a spec, for example one installer step.
type Module struct {
	Name        string    `json:"name" yaml:"name"`
	Title       string    `json:"title,omitempty" yaml:"title,omitempty"`
	Description string    `json:"description,omitempty" yaml:"description,omitempty"`
	Markdown    string    `json:"markdown,omitempty" yaml:"markdown,omitempty"`
	Sections    []Section `json:"sections,omitempty" yaml:"sections,omitempty"`
}

// Section is an ordered page of params within a module.
type Section struct {
	Name        string        `json:"name" yaml:"name"`
	Title       string        `json:"title,omitempty" yaml:"title,omitempty"`
	Description string        `json:"description,omitempty" yaml:"description,omitempty"`
	Markdown    string        `json:"markdown,omitempty" yaml:"markdown,omitempty"`
	Required    bool          `json:"required,omitempty" yaml:"required,omitempty"`
	Review      *Review       `json:"review,omitempty" yaml:"review,omitempty"`
	Params      []model.Field `json:"params,omitempty" yaml:"params,omitempty"`
	Groups      []Group       `json:"groups,omitempty" yaml:"groups,omitempty"`
}

// Review asks the user to confirm a section once all of its params are
// answered.
type Review struct {
	Prompt string `json:"prompt,omitempty" yaml:"prompt,omitempty"`
}

// Group is a named subset of a section's params.
type Group struct {
	Name        string        `json:"name" yaml:"name"`
	Title       string        `json:"title,omitempty" yaml:"title,omitempty"`
	Description string        `json:"description,omitempty" yaml:"description,omitempty"`
	Params      []model.Field `json:"params,omitempty" yaml:"params,omitempty"`
}

// ReviewPrompt returns the confirmation question of the section, falling
// back to "Are the <title> OK?".
func (s Section) ReviewPrompt() string {
	if s.Review != nil && s.Review.Prompt != "" {
		return s.Review.Prompt
	}
	title := s.Title
	if title == "" {
		title = model.DefaultLabeler(s.Name)
	}
	return "Are the " + title + " OK?"
}
