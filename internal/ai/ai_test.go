package ai

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ba-assist/ba-assist-backend/internal/apperr"
	filesdomain "github.com/ba-assist/ba-assist-backend/internal/files/domain"
	"github.com/ba-assist/ba-assist-backend/internal/llm"
	projdomain "github.com/ba-assist/ba-assist-backend/internal/projects/domain"
	rdomain "github.com/ba-assist/ba-assist-backend/internal/roadmap/domain"
	"github.com/ba-assist/ba-assist-backend/internal/testutil"
)

type fakeLLM struct {
	enabled bool
	reply   string
	err     error
	calls   int
	got     llm.Request
}

func (f *fakeLLM) Enabled() bool { return f.enabled }

func (f *fakeLLM) Complete(_ context.Context, req llm.Request) (string, error) {
	f.calls++
	f.got = req
	return f.reply, f.err
}

type fakeDocs []filesdomain.Document

func (f fakeDocs) ProcessedDocuments(context.Context, string) ([]filesdomain.Document, error) {
	return f, nil
}

type fakeRoadmaps struct {
	got *rdomain.Blueprint
}

func (f *fakeRoadmaps) Create(_ context.Context, projectID string, bp rdomain.Blueprint) (*rdomain.Roadmap, error) {
	f.got = &bp
	return &rdomain.Roadmap{ID: "rm-1", ProjectID: projectID, Name: bp.Name, Source: bp.Source, IsActive: true}, nil
}

type fakeSummaries struct {
	calls int
	last  string
}

func (f *fakeSummaries) SetSummary(_ context.Context, p *projdomain.Project, summary string) error {
	f.calls++
	f.last = summary
	p.Summary = summary
	return nil
}

var docs = fakeDocs{
	{Name: "Business_Case.pdf", Text: "The claims portal replaces paper forms."},
	{Name: "Interviews.docx", Text: "Adjusters want mobile access."},
}

func newProject() *projdomain.Project {
	return &projdomain.Project{ID: "p-1", UserID: "u-1", Name: "Claims portal", Description: "Digital claims intake"}
}

const roadmapJSON = "```json\n" + `{
  "name": "Claims discovery",
  "phases": [
    {"name": "Plan", "description": "Set up", "tasks": [
      {"title": "Stakeholder analysis", "artifact_codes": ["stakeholder_register"]},
      {"title": "Kick-off"}
    ]},
    {"name": "Elicit", "tasks": [{"title": "Interviews", "artifact_codes": ["BRD", ""]}]}
  ]
}` + "\n```"

func TestGenerateRoadmap(t *testing.T) {
	completer := &fakeLLM{enabled: true, reply: roadmapJSON}
	roadmaps := &fakeRoadmaps{}
	svc := NewService(completer, docs, roadmaps, &fakeSummaries{}, nil, Options{ArtifactCodes: []string{"BRD", "STAKEHOLDER_REGISTER"}})

	rm, err := svc.GenerateRoadmap(context.Background(), newProject(), " focus on mobile ")
	require.NoError(t, err)
	assert.Equal(t, "rm-1", rm.ID)

	bp := roadmaps.got
	require.NotNil(t, bp)
	assert.Equal(t, rdomain.SourceAI, bp.Source)
	assert.Equal(t, "Claims discovery", bp.Name)
	require.Len(t, bp.Phases, 2)
	assert.Equal(t, []string{"STAKEHOLDER_REGISTER"}, bp.Phases[0].Tasks[0].ArtifactCodes)
	assert.Equal(t, []string{"BRD"}, bp.Phases[1].Tasks[0].ArtifactCodes)

	assert.True(t, completer.got.JSON)
	assert.Equal(t, "roadmap", completer.got.Operation)
	user := completer.got.Messages[1].Content
	assert.Contains(t, user, "focus on mobile")
	assert.Contains(t, user, "Adjusters want mobile access.")
	assert.Contains(t, completer.got.Messages[0].Content, "BRD, STAKEHOLDER_REGISTER")
}

func TestGenerateRoadmap_DefaultsName(t *testing.T) {
	roadmaps := &fakeRoadmaps{}
	svc := NewService(&fakeLLM{enabled: true, reply: `{"phases":[{"name":"Plan","tasks":[]}]}`}, docs, roadmaps, &fakeSummaries{}, nil, Options{})

	_, err := svc.GenerateRoadmap(context.Background(), newProject(), "")
	require.NoError(t, err)
	assert.Equal(t, "AI roadmap: Claims portal", roadmaps.got.Name)
}

func TestGenerateRoadmap_Errors(t *testing.T) {
	cases := []struct {
		name  string
		llm   *fakeLLM
		want  error
		instr string
	}{
		{"disabled", &fakeLLM{enabled: false}, apperr.ErrUnavailable, ""},
		{"invalid json", &fakeLLM{enabled: true, reply: "Here is your roadmap!"}, apperr.ErrUpstream, ""},
		{"no phases", &fakeLLM{enabled: true, reply: `{"name":"x","phases":[]}`}, apperr.ErrUpstream, ""},
		{"untitled task", &fakeLLM{enabled: true, reply: `{"name":"x","phases":[{"name":"Plan","tasks":[{"title":" "}]}]}`}, apperr.ErrUpstream, ""},
		{"llm failure", &fakeLLM{enabled: true, err: apperr.Upstreamf("llm returned status 500")}, apperr.ErrUpstream, ""},
		{"long instructions", &fakeLLM{enabled: true}, apperr.ErrInvalid, strings.Repeat("a", maxInstructions+1)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			roadmaps := &fakeRoadmaps{}
			svc := NewService(tc.llm, docs, roadmaps, &fakeSummaries{}, nil, Options{})
			_, err := svc.GenerateRoadmap(context.Background(), newProject(), tc.instr)
			assert.ErrorIs(t, err, tc.want)
			assert.Nil(t, roadmaps.got)
		})
	}
}

func newCache(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

func TestSummarize_CachesResult(t *testing.T) {
	mr, rdb := newCache(t)
	completer := &fakeLLM{enabled: true, reply: `{"summary":" Digital claims intake for adjusters. ","key_points":["mobile first",""],"risks":["legacy CRM"]}`}
	summaries := &fakeSummaries{}
	svc := NewService(completer, docs, &fakeRoadmaps{}, summaries, rdb, Options{})
	p := newProject()

	first, err := svc.Summarize(context.Background(), p)
	require.NoError(t, err)
	assert.False(t, first.Cached)
	assert.Equal(t, "Digital claims intake for adjusters.", first.Summary)
	assert.Equal(t, []string{"mobile first"}, first.KeyPoints)
	assert.Equal(t, []string{"legacy CRM"}, first.Risks)
	assert.Equal(t, "Digital claims intake for adjusters.", p.Summary)
	assert.Equal(t, "summary", completer.got.Operation)
	assert.Len(t, mr.Keys(), 1)
	assert.True(t, strings.HasPrefix(mr.Keys()[0], summaryKeyPrefix+"p-1:"))

	second, err := svc.Summarize(context.Background(), p)
	require.NoError(t, err)
	assert.True(t, second.Cached)
	assert.Equal(t, first.Summary, second.Summary)
	assert.Equal(t, 1, completer.calls)
	assert.Equal(t, 1, summaries.calls)
}

func TestSummarize_NewDocumentsMissCache(t *testing.T) {
	_, rdb := newCache(t)
	completer := &fakeLLM{enabled: true, reply: `{"summary":"v1"}`}
	p := newProject()

	_, err := NewService(completer, docs, &fakeRoadmaps{}, &fakeSummaries{}, rdb, Options{}).Summarize(context.Background(), p)
	require.NoError(t, err)

	more := append(fakeDocs{}, docs...)
	more = append(more, filesdomain.Document{Name: "Scope.txt", Text: "Out of scope: payments."})
	_, err = NewService(completer, more, &fakeRoadmaps{}, &fakeSummaries{}, rdb, Options{}).Summarize(context.Background(), p)
	require.NoError(t, err)
	assert.Equal(t, 2, completer.calls)
}

func TestSummarize_Errors(t *testing.T) {
	summaries := &fakeSummaries{}
	svc := NewService(&fakeLLM{enabled: true, reply: `{"summary":""}`}, docs, &fakeRoadmaps{}, summaries, nil, Options{})
	_, err := svc.Summarize(context.Background(), newProject())
	assert.ErrorIs(t, err, apperr.ErrUpstream)
	assert.Zero(t, summaries.calls)

	svc = NewService(&fakeLLM{enabled: false}, docs, &fakeRoadmaps{}, summaries, nil, Options{})
	_, err = svc.Summarize(context.Background(), newProject())
	assert.ErrorIs(t, err, llm.ErrNotConfigured)
}

func TestDocumentContext_Truncates(t *testing.T) {
	out := documentContext(fakeDocs{{Name: "a.txt", Text: strings.Repeat("x", 100)}, {Name: "b.txt", Text: "never"}}, 40)
	assert.Contains(t, out, "### a.txt")
	assert.Contains(t, out, truncatedMarker[1:])
	assert.NotContains(t, out, "never")

	assert.Empty(t, documentContext(nil, 100))
	assert.Empty(t, documentContext(docs, 0))
}

func TestHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	roadmaps := &fakeRoadmaps{}
	svc := NewService(&fakeLLM{enabled: true, reply: roadmapJSON}, docs, roadmaps, &fakeSummaries{}, nil, Options{})

	limited := 0
	limit := func(c *gin.Context) { limited++; c.Next() }

	r := gin.New()
	scoped := r.Group("/projects/:project_id", testutil.WithProject(newProject()))
	NewHandler(svc).Register(scoped, limit)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/projects/p-1/ai/roadmap", strings.NewReader(`{"instructions":"keep it short"}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Contains(t, w.Body.String(), `"source":"ai"`)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/projects/p-1/ai/roadmap", nil))
	assert.Equal(t, http.StatusCreated, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/projects/p-1/ai/summary", nil))
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Contains(t, w.Body.String(), `"ok":false`)

	assert.Equal(t, 3, limited)
}
