package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/goliatone/go-formspec/pkg/choices"
	"github.com/goliatone/go-formspec/pkg/form"
	"github.com/goliatone/go-formspec/pkg/formspec"
	"github.com/goliatone/go-formspec/pkg/model"
	"github.com/goliatone/go-formspec/pkg/store"
)

const installerSpec = `
name: installer
version: "2.1"
params:
  - name: cluster_name
    validate:
      required: true
      regex: "^[a-z0-9-]{3,18}$"
  - name: mode
    choices: [basic, custom]
    default: basic
  - name: custom_prefix
    when:
      param: mode
      eq: custom
  - name: region
    default: us-east-1
  - name: vpc_id
    dynamic_choices: true
    depends_on: [region]
  - name: storage_gb
    data_type: int
    default: 2048
    validate:
      min: 1024
modules:
  - name: config
    title: Configuration
    sections:
      - name: cluster
        title: Cluster
        review:
          prompt: Cluster OK?
        params:
          - name: cluster_name
          - name: mode
          - name: custom_prefix
      - name: network
        params:
          - name: region
          - name: vpc_id
          - name: storage_gb
`

type testServer struct {
	srv      *Server
	sessions *store.Store
	fetches  atomic.Int64
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	spec, err := formspec.Parse([]byte(installerSpec), "installer.yml")
	require.NoError(t, err)
	specs, err := formspec.NewStore(spec)
	require.NoError(t, err)

	sessions, err := store.Open(filepath.Join(t.TempDir(), "sessions.db"))
	require.NoError(t, err)
	t.Cleanup(func() { sessions.Close() })

	ts := &testServer{sessions: sessions}
	fetcher := choices.FetcherFunc(func(ctx context.Context, req choices.Request) (choices.Result, error) {
		ts.fetches.Add(1)
		region, _ := req.Values["region"].(string)
		if region == "broken" {
			return choices.Result{}, errors.New("lookup failed")
		}
		return choices.Result{Listing: []model.Choice{
			{Title: "main", Value: "vpc-" + region},
		}}, nil
	})
	ts.srv = New(Static(specs), sessions, WithFetcher(fetcher))
	return ts
}

func (ts *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	ts.srv.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func (ts *testServer) create(t *testing.T, section string, values map[string]any) sessionView {
	t.Helper()
	rec := ts.do(t, http.MethodPost, "/api/v1/sessions", createRequest{
		Spec: "installer", Module: "config", Section: section, Values: values,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[sessionView](t, rec)
}

func TestListSpecsAndModule(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/api/v1/specs", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	specs := decode[map[string][]specSummary](t, rec)
	assert.Equal(t, []specSummary{{Name: "installer", Version: "2.1", Modules: []string{"config"}}}, specs["specs"])

	rec = ts.do(t, http.MethodGet, "/api/v1/specs/installer/modules/config/", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	module := decode[moduleView](t, rec)
	require.Len(t, module.Sections, 2)
	assert.Equal(t, "Configuration", module.Title)
	assert.Equal(t, []string{"cluster_name", "mode", "custom_prefix"}, module.Sections[0].Params)
	assert.Equal(t, "Cluster OK?", module.Sections[0].Review)
	assert.Equal(t, "", module.Sections[1].Review)

	rec = ts.do(t, http.MethodGet, "/api/v1/specs/installer/modules/missing/", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = ts.do(t, http.MethodGet, "/api/v1/specs/nope/modules/config/", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCreateSession(t *testing.T) {
	ts := newTestServer(t)

	view := ts.create(t, "cluster", map[string]any{"cluster_name": "hpc-01"})
	assert.NotEmpty(t, view.ID)
	assert.Equal(t, map[string]any{"cluster_name": "hpc-01", "mode": "basic"}, view.Values)

	visible := map[string]bool{}
	for _, field := range view.Fields {
		visible[field.Param.Name] = field.Visible
	}
	assert.Equal(t, map[string]bool{"cluster_name": true, "mode": true, "custom_prefix": false}, visible)

	stored, err := ts.sessions.Get(view.ID)
	require.NoError(t, err)
	assert.Equal(t, "cluster", stored.Section)

	rec := ts.do(t, http.MethodPost, "/api/v1/sessions/", createRequest{Spec: "installer"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = ts.do(t, http.MethodPost, "/api/v1/sessions/", createRequest{Spec: "installer", Module: "config", Section: "nope"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSetParamReportsRefresh(t *testing.T) {
	ts := newTestServer(t)
	view := ts.create(t, "", nil)
	base := "/api/v1/sessions/" + view.ID

	rec := ts.do(t, http.MethodPut, base+"/params/mode/", setRequest{Value: "custom"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp := decode[setResponse](t, rec)
	assert.Equal(t, "custom", resp.Value)
	assert.Equal(t, []string{"custom_prefix"}, resp.Refresh)

	rec = ts.do(t, http.MethodPut, base+"/params/region/", setRequest{Value: "eu-west-1"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"vpc_id"}, decode[setResponse](t, rec).Refresh)

	rec = ts.do(t, http.MethodPut, base+"/params/storage_gb/", setRequest{Value: "4096"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(4096), decode[setResponse](t, rec).Value)

	stored, err := ts.sessions.Get(view.ID)
	require.NoError(t, err)
	assert.Equal(t, "custom", stored.Values["mode"])
	assert.Equal(t, "eu-west-1", stored.Values["region"])

	rec = ts.do(t, http.MethodGet, base, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[sessionView](t, rec)
	for _, field := range got.Fields {
		if field.Param.Name == "custom_prefix" {
			assert.True(t, field.Visible)
		}
		if field.Param.Name == "cluster_name" {
			require.Len(t, field.Errors, 1)
			assert.Equal(t, "required", field.Errors[0].Code)
		}
	}

	rec = ts.do(t, http.MethodPut, base+"/params/nope/", setRequest{Value: 1})
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = ts.do(t, http.MethodPut, "/api/v1/sessions/unknown/params/mode/", setRequest{Value: "basic"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetChoices(t *testing.T) {
	ts := newTestServer(t)
	view := ts.create(t, "", map[string]any{"region": "ap-south-1"})
	base := "/api/v1/sessions/" + view.ID

	rec := ts.do(t, http.MethodGet, base+"/params/vpc_id/choices/?refresh=true", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp := decode[choicesResponse](t, rec)
	assert.Equal(t, []model.Choice{{Title: "main", Value: "vpc-ap-south-1"}}, resp.Listing)
	assert.Empty(t, resp.Error)

	rec = ts.do(t, http.MethodGet, base+"/params/mode/choices/", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[choicesResponse](t, rec).Listing, 2)

	rec = ts.do(t, http.MethodPut, base+"/params/region/", setRequest{Value: "broken"})
	require.Equal(t, http.StatusOK, rec.Code)
	rec = ts.do(t, http.MethodGet, base+"/params/vpc_id/choices/", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	resp = decode[choicesResponse](t, rec)
	assert.Empty(t, resp.Listing)
	assert.Contains(t, resp.Error, "lookup failed")

	rec = ts.do(t, http.MethodGet, base+"/params/region/choices/", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = ts.do(t, http.MethodGet, base+"/params/vpc_id/choices/?refresh=maybe", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetParamsAndValidate(t *testing.T) {
	ts := newTestServer(t)
	view := ts.create(t, "", map[string]any{"mode": "custom", "custom_prefix": "hpc"})
	base := "/api/v1/sessions/" + view.ID

	rec := ts.do(t, http.MethodPost, base+"/validate/", nil)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	failed := decode[validateResponse](t, rec)
	assert.False(t, failed.Valid)
	require.Len(t, failed.Errors, 1)
	assert.Equal(t, "cluster_name", failed.Errors[0].Field)

	rec = ts.do(t, http.MethodPut, base+"/params/cluster_name/", setRequest{Value: "hpc-01"})
	require.Equal(t, http.StatusOK, rec.Code)
	rec = ts.do(t, http.MethodPost, base+"/validate/", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.True(t, decode[validateResponse](t, rec).Valid)

	rec = ts.do(t, http.MethodGet, base+"/params/?format=yaml", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/yaml", rec.Header().Get("Content-Type"))
	var exported map[string]any
	require.NoError(t, yaml.Unmarshal(rec.Body.Bytes(), &exported))
	assert.Equal(t, "hpc", exported["custom_prefix"])
	assert.Equal(t, "hpc-01", exported["cluster_name"])
	assert.Equal(t, 2048, exported["storage_gb"])

	rec = ts.do(t, http.MethodGet, base+"/params/", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json"))

	rec = ts.do(t, http.MethodGet, base+"/params/?format=xml", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDeleteSession(t *testing.T) {
	ts := newTestServer(t)
	view := ts.create(t, "", nil)

	rec := ts.do(t, http.MethodDelete, "/api/v1/sessions/"+view.ID+"/", nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = ts.do(t, http.MethodGet, "/api/v1/sessions/"+view.ID+"/", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	msg := decode[ErrorMessage](t, rec)
	assert.Contains(t, msg.Reason, "not found")

	rec = ts.do(t, http.MethodDelete, "/api/v1/sessions/"+view.ID+"/", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRefreshed(t *testing.T) {
	got := refreshed(form.Change{Shown: []string{"a"}, Hidden: []string{"b"}, Refresh: []string{"a", "c"}})
	assert.Equal(t, []string{"a", "b", "c"}, got)
	assert.Equal(t, []string{}, refreshed(form.Change{}))
}

func TestSessionRequestsFetchChoicesOnlyWhenAsked(t *testing.T) {
	ts := newTestServer(t)
	sess := ts.create(t, "", map[string]any{"cluster_name": "hpc-01"})
	ts.fetches.Store(0)

	base := "/api/v1/sessions/" + sess.ID
	require.Equal(t, http.StatusOK, ts.do(t, http.MethodGet, base+"/", nil).Code)
	require.Equal(t, http.StatusOK, ts.do(t, http.MethodGet, base+"/params/", nil).Code)
	require.Equal(t, http.StatusOK, ts.do(t, http.MethodPost, base+"/validate/", nil).Code)
	rec := ts.do(t, http.MethodPut, base+"/params/region/", setRequest{Value: "eu-west-1"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, []string{"vpc_id"}, decode[setResponse](t, rec).Refresh)
	assert.Equal(t, int64(0), ts.fetches.Load())

	rec = ts.do(t, http.MethodGet, base+"/params/vpc_id/choices/", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []model.Choice{{Title: "main", Value: "vpc-eu-west-1"}}, decode[choicesResponse](t, rec).Listing)
	assert.Equal(t, int64(1), ts.fetches.Load())
}

func TestConcurrentSetParamKeepsEveryValue(t *testing.T) {
	ts := newTestServer(t)

	for round := 0; round < 10; round++ {
		sess := ts.create(t, "cluster", nil)
		base := "/api/v1/sessions/" + sess.ID

		var wg sync.WaitGroup
		codes := make([]int, 2)
		for i, update := range []struct{ param, value string }{
			{"cluster_name", "hpc-01"},
			{"custom_prefix", "team"},
		} {
			wg.Add(1)
			go func(i int, param, value string) {
				defer wg.Done()
				codes[i] = ts.do(t, http.MethodPut, base+"/params/"+param+"/", setRequest{Value: value}).Code
			}(i, update.param, update.value)
		}
		wg.Wait()
		assert.Equal(t, []int{http.StatusOK, http.StatusOK}, codes)

		stored, err := ts.sessions.Get(sess.ID)
		require.NoError(t, err)
		assert.Equal(t, "hpc-01", stored.Values["cluster_name"], "round %d", round)
		assert.Equal(t, "team", stored.Values["custom_prefix"], "round %d", round)
	}
}
