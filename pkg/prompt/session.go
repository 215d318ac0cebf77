// Package prompt fills a form interactively. A Session walks the fields of
// each step in order, asking only for the ones currently visible, so an
// answer can reveal or hide the questions that follow it.
package prompt

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/goliatone/go-formspec/pkg/form"
	"github.com/goliatone/go-formspec/pkg/model"
	"github.com/goliatone/go-formspec/pkg/review"
	"github.com/goliatone/go-formspec/pkg/visibility"
)

// Step is one section of a session.
type Step struct {
	Name        string
	Title       string
	Description string
	// Fields lists the params asked in this step, in order.
	Fields []string
	// Review, when set, is asked after the step. Declining repeats the step.
	Review string
}

// Option configures a Session.
type Option func(*Session)

// WithDriver overrides the prompt driver. The default is a survey driver on
// the process stdio.
func WithDriver(driver PromptDriver) Option {
	return func(s *Session) {
		if driver != nil {
			s.driver = driver
		}
	}
}

// WithReviewRenderer sets the renderer used for step summaries.
func WithReviewRenderer(renderer *review.Renderer) Option {
	return func(s *Session) {
		if renderer != nil {
			s.reviewer = renderer
		}
	}
}

// WithLogger sets the session logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Session) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// Session prompts for the fields of a form.
type Session struct {
	form     *form.Form
	driver   PromptDriver
	reviewer *review.Renderer
	logger   *slog.Logger
}

// NewSession binds a session to f.
func NewSession(f *form.Form, opts ...Option) (*Session, error) {
	if f == nil {
		return nil, ErrNoForm
	}
	s := &Session{
		form:   f,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	if s.driver == nil {
		s.driver = NewSurveyDriver()
	}
	if s.reviewer == nil {
		reviewer, err := review.New()
		if err != nil {
			return nil, err
		}
		s.reviewer = reviewer
	}
	return s, nil
}

// Run asks every step in order. With a single step no "Step i of n" header
// is printed.
func (s *Session) Run(ctx context.Context, steps []Step) error {
	for i, step := range steps {
		if err := s.runStep(ctx, step, i+1, len(steps)); err != nil {
			return err
		}
	}
	return nil
}

func (s *Session) runStep(ctx context.Context, step Step, index, total int) error {
	title := step.Title
	if title == "" {
		title = model.DefaultLabeler(step.Name)
	}
	for {
		header := title
		if total > 1 {
			header = fmt.Sprintf("Step %d of %d: %s", index, total, title)
		}
		if err := s.driver.Info(ctx, header); err != nil {
			return err
		}
		if step.Description != "" {
			if err := s.driver.Info(ctx, step.Description); err != nil {
				return err
			}
		}

		for _, name := range step.Fields {
			if err := s.Ask(ctx, name); err != nil {
				return err
			}
		}

		if step.Review == "" {
			return nil
		}
		ok, err := s.review(ctx, title, step)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
		s.logger.Debug("prompt: step rejected at review", "step", step.Name)
	}
}

func (s *Session) review(ctx context.Context, title string, step Step) (bool, error) {
	var states []form.FieldState
	for _, name := range step.Fields {
		if state, ok := s.form.Field(name); ok {
			states = append(states, state)
		}
	}
	summary, err := s.reviewer.Render(review.Build(title, step.Review, states))
	if err != nil {
		return false, err
	}
	if err := s.driver.Info(ctx, strings.TrimRight(summary, "\n")); err != nil {
		return false, err
	}
	return s.driver.Confirm(ctx, ConfirmConfig{Message: step.Review, Default: true})
}

// Ask prompts for one field if it is visible and promptable. Display-only
// fields are printed. The answer is validated before it is stored; invalid
// answers are reported and asked again.
func (s *Session) Ask(ctx context.Context, name string) error {
	state, ok := s.form.Field(name)
	if !ok {
		return fmt.Errorf("%w %q", form.ErrUnknownField, name)
	}
	field := state.Field
	if !state.Visible || !field.IsPrompt() {
		return nil
	}
	if field.IsDisplayOnly() {
		return s.driver.Info(ctx, displayText(field))
	}

	for {
		answer, err := s.answer(ctx, state)
		if err != nil {
			return err
		}
		errs, err := s.form.ValidateField(name, answer)
		if err != nil {
			return err
		}
		if len(errs) > 0 {
			for _, e := range errs {
				if err := s.driver.Info(ctx, "Invalid: "+e.Message); err != nil {
					return err
				}
			}
			continue
		}
		if _, err := s.form.SetValue(name, answer); err != nil {
			return err
		}
		s.logger.Debug("prompt: answered", "param", name)
		return nil
	}
}

func (s *Session) answer(ctx context.Context, state form.FieldState) (any, error) {
	field := state.Field
	switch field.ParamType {
	case model.ParamTypeConfirm:
		current, _ := state.Value.(bool)
		return s.driver.Confirm(ctx, ConfirmConfig{Message: field.Title, Default: current, Help: help(field)})

	case model.ParamTypePassword:
		return s.driver.Password(ctx, InputConfig{Message: field.Title, Help: help(field)})

	case model.ParamTypeNewPassword:
		return s.newPassword(ctx, field)

	case model.ParamTypeSelect, model.ParamTypeRawSelect, model.ParamTypeRadioGroup, model.ParamTypeTiles,
		model.ParamTypeAutocomplete, model.ParamTypeChoices, model.ParamTypeSelectOrText, model.ParamTypeCheckbox:
		return s.choose(ctx, state)
	}

	if field.Multiline || field.ParamType == model.ParamTypeCode {
		return s.driver.TextArea(ctx, TextAreaConfig{Message: field.Title, Default: defaultText(state), Help: help(field)})
	}
	return s.driver.Input(ctx, InputConfig{Message: field.Title, Default: defaultText(state), Help: help(field)})
}

func (s *Session) newPassword(ctx context.Context, field model.Field) (any, error) {
	for {
		first, err := s.driver.Password(ctx, InputConfig{Message: field.Title, Help: help(field)})
		if err != nil {
			return nil, err
		}
		second, err := s.driver.Password(ctx, InputConfig{Message: "Verify " + field.Title})
		if err != nil {
			return nil, err
		}
		if first == second {
			return first, nil
		}
		if err := s.driver.Info(ctx, "Invalid: passwords do not match"); err != nil {
			return nil, err
		}
	}
}

// choose resolves the field's choices and asks for one or several of them.
// Without choices a select_or_text field, or any field whose fetch failed,
// falls back to a text prompt.
func (s *Session) choose(ctx context.Context, state form.FieldState) (any, error) {
	field := state.Field
	listing, err := s.form.ResolveChoices(ctx, field.Name)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		s.logger.Warn("prompt: choices unavailable", "param", field.Name, "error", err)
	}

	var options []model.Choice
	for _, choice := range listing {
		if !choice.Disabled {
			options = append(options, choice)
		}
	}
	if len(options) == 0 {
		if field.ChoicesEmptyLabel != "" {
			if err := s.driver.Info(ctx, field.ChoicesEmptyLabel); err != nil {
				return nil, err
			}
		}
		return s.driver.Input(ctx, InputConfig{Message: field.Title, Default: defaultText(state), Help: help(field)})
	}

	titles := make([]string, len(options))
	descriptions := make([]string, len(options))
	for i, choice := range options {
		titles[i] = choice.Title
		descriptions[i] = choice.Description
	}
	cfg := SelectConfig{
		Message:      field.Title,
		Options:      titles,
		Descriptions: descriptions,
		DefaultIndex: -1,
		Help:         help(field),
	}

	if field.Multiple || field.ParamType == model.ParamTypeCheckbox {
		current, _ := state.Value.([]any)
		for i, choice := range options {
			if choice.Checked || containsValue(current, choice.Value) {
				cfg.Defaults = append(cfg.Defaults, i)
			}
		}
		indices, err := s.driver.MultiSelect(ctx, cfg)
		if err != nil {
			return nil, err
		}
		picked := make([]any, 0, len(indices))
		for _, idx := range indices {
			if idx >= 0 && idx < len(options) {
				picked = append(picked, options[idx].Value)
			}
		}
		return picked, nil
	}

	for i, choice := range options {
		if state.Defined && visibility.Equal(choice.Value, state.Value) {
			cfg.DefaultIndex = i
			break
		}
	}
	if field.Refreshable {
		cfg.Options = append(cfg.Options, refreshOption)
		cfg.Descriptions = append(cfg.Descriptions, "")
	}
	idx, err := s.driver.Select(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if field.Refreshable && idx == len(options) {
		if _, err := s.form.RefreshChoices(ctx, field.Name); err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			s.logger.Warn("prompt: refresh failed", "param", field.Name, "error", err)
		}
		return s.choose(ctx, state)
	}
	if idx < 0 || idx >= len(options) {
		return nil, nil
	}
	return options[idx].Value, nil
}

// refreshOption is appended to refreshable selects and refetches the listing.
const refreshOption = "(refresh choices)"

func containsValue(list []any, value any) bool {
	for _, item := range list {
		if visibility.Equal(item, value) {
			return true
		}
	}
	return false
}

func help(field model.Field) string {
	if field.CLI != nil && field.CLI.HelpText != "" {
		return field.CLI.HelpText
	}
	if field.HelpText != "" {
		return field.HelpText
	}
	return field.Description
}

func displayText(field model.Field) string {
	text := field.Title
	if field.Description != "" {
		text += "\n" + field.Description
	}
	if field.Markdown != "" {
		text += "\n" + field.Markdown
	}
	return text
}

// defaultText renders the current value as the text a user would type.
func defaultText(state form.FieldState) string {
	if !state.Defined {
		return ""
	}
	switch v := state.Value.(type) {
	case string:
		return v
	case []any:
		parts := make([]string, len(v))
		for i, item := range v {
			parts[i] = fmt.Sprint(item)
		}
		return strings.Join(parts, ",")
	case map[string]any:
		raw, err := json.Marshal(v)
		if err != nil {
			return ""
		}
		return string(raw)
	}
	return fmt.Sprint(state.Value)
}
