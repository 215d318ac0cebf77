package formspec

import (
	"html"
	"strings"
	"sync"

	"github.com/microcosm-cc/bluemonday"

	"github.com/goliatone/go-formspec/pkg/model"
)

var (
	policyOnce     sync.Once
	textPolicy     *bluemonday.Policy
	markdownPolicy *bluemonday.Policy
)

func policies() (*bluemonday.Policy, *bluemonday.Policy) {
	policyOnce.Do(func() {
		textPolicy = bluemonday.StrictPolicy()

		markdownPolicy = bluemonday.UGCPolicy()
		markdownPolicy.AllowAttrs("class").Matching(bluemonday.SpaceSeparatedTokens).OnElements("code", "pre", "span")
	})
	return textPolicy, markdownPolicy
}

// SanitizeText strips all markup from plain text such as titles and
// descriptions. Entities are decoded so the result prints as written.
func SanitizeText(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return ""
	}
	strict, _ := policies()
	return strings.TrimSpace(html.UnescapeString(strict.Sanitize(trimmed)))
}

// SanitizeMarkdown removes unsafe HTML embedded in markdown while keeping
// the markdown itself untouched.
func SanitizeMarkdown(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return ""
	}
	_, ugc := policies()
	return strings.TrimSpace(ugc.Sanitize(trimmed))
}

func sanitizeField(field model.Field) model.Field {
	field.Title = SanitizeText(field.Title)
	field.Description = SanitizeText(field.Description)
	field.Description2 = SanitizeText(field.Description2)
	field.HelpText = SanitizeText(field.HelpText)
	field.Markdown = SanitizeMarkdown(field.Markdown)
	if field.CLI != nil {
		cli := *field.CLI
		cli.HelpText = SanitizeText(cli.HelpText)
		field.CLI = &cli
	}
	if len(field.Choices) > 0 {
		choices := make([]model.Choice, len(field.Choices))
		for i, choice := range field.Choices {
			choice.Title = SanitizeText(choice.Title)
			choice.Description = SanitizeText(choice.Description)
			choices[i] = choice
		}
		field.Choices = choices
	}
	return field
}

func sanitizeFields(fields []model.Field) []model.Field {
	if len(fields) == 0 {
		return nil
	}
	out := make([]model.Field, len(fields))
	for i, field := range fields {
		out[i] = sanitizeField(field)
	}
	return out
}

// sanitizeSpec returns a copy of spec with every text attribute cleaned.
func sanitizeSpec(spec *Spec) *Spec {
	out := *spec
	out.Params = sanitizeFields(spec.Params)

	if len(spec.Tags) > 0 {
		out.Tags = make([]Tag, len(spec.Tags))
		for i, tag := range spec.Tags {
			tag.Title = SanitizeText(tag.Title)
			tag.Description = SanitizeText(tag.Description)
			tag.Markdown = SanitizeMarkdown(tag.Markdown)
			out.Tags[i] = tag
		}
	}

	if len(spec.Modules) > 0 {
		out.Modules = make([]Module, len(spec.Modules))
		for i, module := range spec.Modules {
			module.Title = SanitizeText(module.Title)
			module.Description = SanitizeText(module.Description)
			module.Markdown = SanitizeMarkdown(module.Markdown)
			module.Sections = sanitizeSections(module.Sections)
			out.Modules[i] = module
		}
	}
	return &out
}

func sanitizeSections(sections []Section) []Section {
	if len(sections) == 0 {
		return nil
	}
	out := make([]Section, len(sections))
	for i, section := range sections {
		section.Title = SanitizeText(section.Title)
		section.Description = SanitizeText(section.Description)
		section.Markdown = SanitizeMarkdown(section.Markdown)
		if section.Review != nil {
			review := Review{Prompt: SanitizeText(section.Review.Prompt)}
			section.Review = &review
		}
		section.Params = sanitizeFields(section.Params)
		if len(section.Groups) > 0 {
			groups := make([]Group, len(section.Groups))
			for j, group := range section.Groups {
				group.Title = SanitizeText(group.Title)
				group.Description = SanitizeText(group.Description)
				group.Params = sanitizeFields(group.Params)
				groups[j] = group
			}
			section.Groups = groups
		}
		out[i] = section
	}
	return out
}
