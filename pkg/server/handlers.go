package server

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/goliatone/go-formspec/pkg/form"
	"github.com/goliatone/go-formspec/pkg/formspec"
	"github.com/goliatone/go-formspec/pkg/model"
	"github.com/goliatone/go-formspec/pkg/store"
	"github.com/goliatone/go-formspec/pkg/values"
)

// ErrorMessage is the body of every error response.
type ErrorMessage struct {
	Reason string `json:"reason"`
	Advice string `json:"advice,omitempty"`
}

func newError(code int, reason, advice string) *echo.HTTPError {
	return echo.NewHTTPError(code, ErrorMessage{Reason: reason, Advice: advice})
}

// httpError maps package sentinels onto status codes.
func httpError(err error) error {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return newError(http.StatusNotFound, err.Error(), "").SetInternal(err)
	case errors.Is(err, formspec.ErrSpecNotFound),
		errors.Is(err, formspec.ErrModuleNotFound),
		errors.Is(err, formspec.ErrSectionNotFound),
		errors.Is(err, form.ErrUnknownField):
		return newError(http.StatusNotFound, err.Error(), "").SetInternal(err)
	case errors.Is(err, form.ErrDisplayOnly), errors.Is(err, form.ErrNoChoices):
		return newError(http.StatusBadRequest, err.Error(), "").SetInternal(err)
	}
	return newError(http.StatusInternalServerError, "internal error", "check the server log").SetInternal(err)
}

type specSummary struct {
	Name    string   `json:"name"`
	Version string   `json:"version,omitempty"`
	Modules []string `json:"modules"`
}

func (s *Server) listSpecs(c echo.Context) error {
	specs := s.specs.Store()
	out := []specSummary{}
	for _, name := range specs.Names() {
		reg, err := specs.Spec(name)
		if err != nil {
			return httpError(err)
		}
		summary := specSummary{Name: reg.Name(), Version: reg.Version(), Modules: []string{}}
		for _, module := range reg.Spec().Modules {
			summary.Modules = append(summary.Modules, module.Name)
		}
		out = append(out, summary)
	}
	return c.JSON(http.StatusOK, map[string]any{"specs": out})
}

type sectionView struct {
	Name        string   `json:"name"`
	Title       string   `json:"title,omitempty"`
	Description string   `json:"description,omitempty"`
	Required    bool     `json:"required,omitempty"`
	Review      string   `json:"review,omitempty"`
	Params      []string `json:"params"`
}

type moduleView struct {
	Spec        string        `json:"spec"`
	Name        string        `json:"name"`
	Title       string        `json:"title,omitempty"`
	Description string        `json:"description,omitempty"`
	Sections    []sectionView `json:"sections"`
}

func (s *Server) getModule(c echo.Context) error {
	reg, err := s.specs.Store().Spec(c.Param("spec"))
	if err != nil {
		return httpError(err)
	}
	module, err := reg.Module(c.Param("module"))
	if err != nil {
		return httpError(err)
	}

	view := moduleView{
		Spec:        reg.Name(),
		Name:        module.Name,
		Title:       module.Title,
		Description: module.Description,
		Sections:    []sectionView{},
	}
	for _, section := range module.Sections {
		fields, err := reg.Params(module.Name, section.Name, "")
		if err != nil {
			return httpError(err)
		}
		sv := sectionView{
			Name:        section.Name,
			Title:       section.Title,
			Description: section.Description,
			Required:    section.Required,
			Params:      make([]string, len(fields)),
		}
		if section.Review != nil {
			sv.Review = section.ReviewPrompt()
		}
		for i, field := range fields {
			sv.Params[i] = field.Name
		}
		view.Sections = append(view.Sections, sv)
	}
	return c.JSON(http.StatusOK, view)
}

type createRequest struct {
	Spec    string         `json:"spec"`
	Module  string         `json:"module"`
	Section string         `json:"section,omitempty"`
	Values  map[string]any `json:"values,omitempty"`
}

type fieldView struct {
	Param   model.Field            `json:"param"`
	Visible bool                   `json:"visible"`
	Value   any                    `json:"value,omitempty"`
	Errors  []form.ValidationError `json:"errors,omitempty"`
}

type sessionView struct {
	ID      string         `json:"id"`
	Spec    string         `json:"spec"`
	Module  string         `json:"module"`
	Section string         `json:"section,omitempty"`
	Fields  []fieldView    `json:"fields"`
	Values  map[string]any `json:"values"`
}

func (s *Server) createSession(c echo.Context) error {
	var req createRequest
	if err := c.Bind(&req); err != nil {
		return newError(http.StatusBadRequest, "malformed request body", "send a JSON object")
	}
	if req.Spec == "" || req.Module == "" {
		return newError(http.StatusBadRequest, "spec and module are required", "")
	}

	sess := store.Session{Spec: req.Spec, Module: req.Module, Section: req.Section}
	f, err := s.newForm(c, sess, form.WithInitialValues(req.Values))
	if err != nil {
		return httpError(err)
	}
	defer f.Close()
	// let $first/$all defaults of dynamic fields settle before saving
	f.Wait()

	sess.Values = f.Values()
	sess, err = s.sessions.Create(sess)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, s.view(sess, f))
}

func (s *Server) getSession(c echo.Context) error {
	sess, f, err := s.open(c)
	if err != nil {
		return err
	}
	defer f.Close()
	f.Validate()
	return c.JSON(http.StatusOK, s.view(sess, f))
}

func (s *Server) deleteSession(c echo.Context) error {
	if err := s.sessions.Delete(c.Param("id")); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

type setRequest struct {
	Value any `json:"value"`
}

type setResponse struct {
	Param   string   `json:"param"`
	Value   any      `json:"value"`
	Refresh []string `json:"refresh"`
}

func (s *Server) setParam(c echo.Context) error {
	var req setRequest
	if err := c.Bind(&req); err != nil {
		return newError(http.StatusBadRequest, "malformed request body", `send {"value": ...}`)
	}

	name := c.Param("param")
	var change form.Change
	_, err := s.sessions.Update(c.Param("id"), func(sess *store.Session) error {
		f, err := s.restore(c, *sess)
		if err != nil {
			return err
		}
		defer f.Close()
		change, err = f.SetValue(name, req.Value)
		if err != nil {
			return err
		}
		sess.Values = f.Values()
		return nil
	})
	if err != nil {
		return httpError(err)
	}

	return c.JSON(http.StatusOK, setResponse{
		Param:   name,
		Value:   change.Value,
		Refresh: refreshed(change),
	})
}

// refreshed lists the params a client must redraw after change: those whose
// visibility flipped and those whose choices were invalidated.
func refreshed(change form.Change) []string {
	out := []string{}
	seen := map[string]struct{}{}
	for _, list := range [][]string{change.Shown, change.Hidden, change.Refresh} {
		for _, name := range list {
			if _, dup := seen[name]; dup {
				continue
			}
			seen[name] = struct{}{}
			out = append(out, name)
		}
	}
	return out
}

type choicesResponse struct {
	Param      string         `json:"param"`
	Listing    []model.Choice `json:"listing"`
	EmptyLabel string         `json:"empty_label,omitempty"`
	Error      string         `json:"error,omitempty"`
}

func (s *Server) getChoices(c echo.Context) error {
	refresh := false
	if raw := c.QueryParam("refresh"); raw != "" {
		parsed, err := strconv.ParseBool(raw)
		if err != nil {
			return newError(http.StatusBadRequest, fmt.Sprintf("invalid refresh flag %q", raw), "use true or false")
		}
		refresh = parsed
	}

	_, f, err := s.open(c)
	if err != nil {
		return err
	}
	defer f.Close()

	name := c.Param("param")
	ctx := c.Request().Context()
	var listing []model.Choice
	if refresh {
		listing, err = f.RefreshChoices(ctx, name)
	} else {
		listing, err = f.ResolveChoices(ctx, name)
	}

	resp := choicesResponse{Param: name, Listing: listing}
	if resp.Listing == nil {
		resp.Listing = []model.Choice{}
	}
	if err != nil {
		if errors.Is(err, form.ErrUnknownField) || errors.Is(err, form.ErrNoChoices) {
			return httpError(err)
		}
		// a failed fetch is reported with an empty listing
		resp.Error = err.Error()
	}
	if state, ok := f.Field(name); ok {
		resp.EmptyLabel = state.Field.ChoicesEmptyLabel
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *Server) getParams(c echo.Context) error {
	format, err := values.ParseFormat(c.QueryParam("format"))
	if err != nil {
		return newError(http.StatusBadRequest, err.Error(), "use json, yaml, form or pretty")
	}
	_, f, err := s.open(c)
	if err != nil {
		return err
	}
	defer f.Close()

	exported, err := f.Export()
	if err != nil {
		return httpError(err)
	}
	body, err := values.Encode(format, exported)
	if err != nil {
		return httpError(err)
	}
	return c.Blob(http.StatusOK, contentType(format), body)
}

func contentType(format values.Format) string {
	switch format {
	case values.FormatYAML:
		return "application/yaml"
	case values.FormatForm:
		return echo.MIMEApplicationForm
	case values.FormatPretty:
		return echo.MIMETextPlainCharsetUTF8
	}
	return echo.MIMEApplicationJSONCharsetUTF8
}

type validateResponse struct {
	Valid  bool                   `json:"valid"`
	Errors []form.ValidationError `json:"errors"`
}

func (s *Server) validate(c echo.Context) error {
	_, f, err := s.open(c)
	if err != nil {
		return err
	}
	defer f.Close()

	resp := validateResponse{Valid: f.Validate(), Errors: f.Errors()}
	if resp.Errors == nil {
		resp.Errors = []form.ValidationError{}
	}
	if !resp.Valid {
		return c.JSON(http.StatusUnprocessableEntity, resp)
	}
	return c.JSON(http.StatusOK, resp)
}

// open loads the session named in the path and rebuilds its form. The
// caller closes the form.
func (s *Server) open(c echo.Context) (store.Session, *form.Form, error) {
	sess, err := s.sessions.Get(c.Param("id"))
	if err != nil {
		return store.Session{}, nil, httpError(err)
	}
	f, err := s.restore(c, sess)
	if err != nil {
		return store.Session{}, nil, httpError(err)
	}
	return sess, f, nil
}

// restore rebuilds the form of a stored session. Dynamic choices are only
// fetched when a handler asks for them.
func (s *Server) restore(c echo.Context, sess store.Session) (*form.Form, error) {
	snapshot := values.Map(sess.Values)
	if snapshot == nil {
		snapshot = values.Map{}
	}
	return s.newForm(c, sess, form.WithSnapshot(snapshot), form.WithLazyChoices())
}

func (s *Server) newForm(c echo.Context, sess store.Session, extra ...form.Option) (*form.Form, error) {
	reg, err := s.specs.Store().Spec(sess.Spec)
	if err != nil {
		return nil, err
	}
	fields, err := reg.Params(sess.Module, sess.Section, "")
	if err != nil {
		return nil, err
	}
	opts := []form.Option{
		form.WithContext(c.Request().Context()),
		form.WithFetcher(s.fetcher),
		form.WithModule(sess.Module),
		form.WithExtras(s.extras),
		form.WithLogger(s.logger),
	}
	return form.New(fields, append(opts, extra...)...)
}

func (s *Server) view(sess store.Session, f *form.Form) sessionView {
	view := sessionView{
		ID:      sess.ID,
		Spec:    sess.Spec,
		Module:  sess.Module,
		Section: sess.Section,
		Fields:  []fieldView{},
		Values:  map[string]any(f.Values()),
	}
	for _, state := range f.Fields() {
		view.Fields = append(view.Fields, fieldView{
			Param:   state.Field,
			Visible: state.Visible,
			Value:   state.Value,
			Errors:  state.Errors,
		})
	}
	return view
}
