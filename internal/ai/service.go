// Package ai generates roadmaps and project summaries with the LLM.
package ai

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/redis/go-redis/v9"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"github.com/ba-assist/ba-assist-backend/internal/apperr"
	filesdomain "github.com/ba-assist/ba-assist-backend/internal/files/domain"
	"github.com/ba-assist/ba-assist-backend/internal/llm"
	"github.com/ba-assist/ba-assist-backend/internal/logging"
	"github.com/ba-assist/ba-assist-backend/internal/metrics"
	projdomain "github.com/ba-assist/ba-assist-backend/internal/projects/domain"
	rdomain "github.com/ba-assist/ba-assist-backend/internal/roadmap/domain"
	rservice "github.com/ba-assist/ba-assist-backend/internal/roadmap/service"
)

const (
	summaryKeyPrefix = "ba:ai:summary:"
	maxInstructions  = 2000
)

type Completer interface {
	Enabled() bool
	Complete(ctx context.Context, req llm.Request) (string, error)
}

type DocumentSource interface {
	ProcessedDocuments(ctx context.Context, projectID string) ([]filesdomain.Document, error)
}

type RoadmapCreator interface {
	Create(ctx context.Context, projectID string, bp rdomain.Blueprint) (*rdomain.Roadmap, error)
}

type SummaryStore interface {
	SetSummary(ctx context.Context, p *projdomain.Project, summary string) error
}

type Options struct {
	ContextChars  int
	ArtifactCodes []string
	CacheTTL      time.Duration
}

type Service struct {
	llm       Completer
	docs      DocumentSource
	roadmaps  RoadmapCreator
	summaries SummaryStore
	cache     *redis.Client
	opts      Options
}

// NewService builds the AI service. cache may be nil, which disables summary
// caching.
func NewService(completer Completer, docs DocumentSource, roadmaps RoadmapCreator, summaries SummaryStore, cache *redis.Client, opts Options) *Service {
	if opts.ContextChars <= 0 {
		opts.ContextChars = 24000
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = time.Hour
	}
	return &Service{llm: completer, docs: docs, roadmaps: roadmaps, summaries: summaries, cache: cache, opts: opts}
}

type Summary struct {
	Summary   string   `json:"summary"`
	KeyPoints []string `json:"key_points"`
	Risks     []string `json:"risks"`
	Cached    bool     `json:"cached"`
}

func (s *Service) ready() error {
	if s.llm == nil || !s.llm.Enabled() {
		return llm.ErrNotConfigured
	}
	return nil
}

func (s *Service) documents(ctx context.Context, p *projdomain.Project) (string, error) {
	docs, err := s.docs.ProcessedDocuments(ctx, p.ID)
	if err != nil {
		return "", err
	}
	return documentContext(docs, s.opts.ContextChars), nil
}

// GenerateRoadmap asks the LLM for a roadmap and stores it as the project's
// active roadmap.
func (s *Service) GenerateRoadmap(ctx context.Context, p *projdomain.Project, instructions string) (rm *rdomain.Roadmap, err error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	instructions = strings.TrimSpace(instructions)
	if utf8.RuneCountInString(instructions) > maxInstructions {
		return nil, apperr.Invalidf("instructions must be at most %d characters", maxInstructions)
	}
	defer func() { metrics.IncAIGeneration("roadmap", err) }()

	docs, err := s.documents(ctx, p)
	if err != nil {
		return nil, err
	}
	content, err := s.llm.Complete(ctx, llm.Request{
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: roadmapSystemPrompt(s.opts.ArtifactCodes)},
			{Role: llm.RoleUser, Content: roadmapUserPrompt(p, docs, instructions)},
		},
		JSON:        true,
		Temperature: 0.3,
		Operation:   "roadmap",
	})
	if err != nil {
		return nil, err
	}

	bp, err := ParseRoadmap(content)
	if err != nil {
		return nil, err
	}
	if bp.Name == "" {
		bp.Name = "AI roadmap: " + p.Name
	}
	if err := rservice.Validate(&bp); err != nil {
		return nil, apperr.Upstreamf("AI returned an unusable roadmap: %s", apperr.Message(err))
	}

	logging.FromContext(ctx).Info("ai roadmap generated",
		zap.String("project_id", p.ID),
		zap.Int("phases", len(bp.Phases)),
	)
	return s.roadmaps.Create(ctx, p.ID, bp)
}

// ParseRoadmap reads the LLM's roadmap JSON into a blueprint.
func ParseRoadmap(content string) (rdomain.Blueprint, error) {
	content = llm.StripCodeFence(content)
	if !gjson.Valid(content) {
		return rdomain.Blueprint{}, apperr.Upstreamf("AI returned invalid JSON")
	}
	root := gjson.Parse(content)
	phases := root.Get("phases")
	if !phases.IsArray() || len(phases.Array()) == 0 {
		return rdomain.Blueprint{}, apperr.Upstreamf("AI roadmap has no phases")
	}

	bp := rdomain.Blueprint{Name: root.Get("name").String(), Source: rdomain.SourceAI}
	for _, ph := range phases.Array() {
		phase := rdomain.BlueprintPhase{
			Name:        ph.Get("name").String(),
			Description: ph.Get("description").String(),
		}
		for _, t := range ph.Get("tasks").Array() {
			task := rdomain.BlueprintTask{
				Title:       t.Get("title").String(),
				Description: t.Get("description").String(),
			}
			for _, code := range t.Get("artifact_codes").Array() {
				if c := code.String(); c != "" {
					task.ArtifactCodes = append(task.ArtifactCodes, c)
				}
			}
			phase.Tasks = append(phase.Tasks, task)
		}
		bp.Phases = append(bp.Phases, phase)
	}
	return bp, nil
}

// Summarize returns the project summary, from cache when the project and its
// documents are unchanged, and stores it on the project.
func (s *Service) Summarize(ctx context.Context, p *projdomain.Project) (out *Summary, err error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	docs, err := s.documents(ctx, p)
	if err != nil {
		return nil, err
	}
	userPrompt := summaryUserPrompt(p, docs)
	key := summaryKeyPrefix + p.ID + ":" + inputHash(summarySystemPrompt, userPrompt)

	if cached, ok := s.cachedSummary(ctx, key); ok {
		cached.Cached = true
		if cached.Summary != p.Summary {
			if err := s.summaries.SetSummary(ctx, p, cached.Summary); err != nil {
				return nil, err
			}
		}
		return cached, nil
	}

	defer func() { metrics.IncAIGeneration("summary", err) }()
	content, err := s.llm.Complete(ctx, llm.Request{
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: summarySystemPrompt},
			{Role: llm.RoleUser, Content: userPrompt},
		},
		JSON:        true,
		Temperature: 0.2,
		Operation:   "summary",
	})
	if err != nil {
		return nil, err
	}
	sum, err := ParseSummary(content)
	if err != nil {
		return nil, err
	}
	if err := s.summaries.SetSummary(ctx, p, sum.Summary); err != nil {
		return nil, err
	}
	s.storeSummary(ctx, key, sum)
	return sum, nil
}

func ParseSummary(content string) (*Summary, error) {
	content = llm.StripCodeFence(content)
	if !gjson.Valid(content) {
		return nil, apperr.Upstreamf("AI returned invalid JSON")
	}
	root := gjson.Parse(content)
	out := &Summary{
		Summary:   strings.TrimSpace(root.Get("summary").String()),
		KeyPoints: stringList(root.Get("key_points")),
		Risks:     stringList(root.Get("risks")),
	}
	if out.Summary == "" {
		return nil, apperr.Upstreamf("AI summary is empty")
	}
	return out, nil
}

func stringList(v gjson.Result) []string {
	out := []string{}
	for _, item := range v.Array() {
		if s := strings.TrimSpace(item.String()); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func inputHash(parts ...string) string {
	h := sha256.New()
	for _, p := range parts {
		h.Write([]byte(p))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

func (s *Service) cachedSummary(ctx context.Context, key string) (*Summary, bool) {
	if s.cache == nil {
		return nil, false
	}
	raw, err := s.cache.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			logging.FromContext(ctx).Warn("summary cache read failed", zap.Error(err))
		}
		return nil, false
	}
	var sum Summary
	if err := json.Unmarshal(raw, &sum); err != nil {
		return nil, false
	}
	return &sum, true
}

func (s *Service) storeSummary(ctx context.Context, key string, sum *Summary) {
	if s.cache == nil {
		return
	}
	raw, err := json.Marshal(sum)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, key, raw, s.opts.CacheTTL).Err(); err != nil {
		logging.FromContext(ctx).Warn("summary cache write failed", zap.Error(err))
	}
}
