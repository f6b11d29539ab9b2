// Package answer turns a question into a grounded, cited reply: retrieve
// facts from the graph, draft with the language model, then keep only
// citations that point back at retrieved facts.
package answer

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/rs/zerolog"

	"github.com/synapta-ai/synapta/internal/config"
	"github.com/synapta-ai/synapta/internal/graph"
	"github.com/synapta-ai/synapta/internal/llm"
	"github.com/synapta-ai/synapta/internal/model"
	"github.com/synapta-ai/synapta/internal/store"
)

// maxSources caps how many source descriptors a reply carries.
const maxSources = 3

// noFactsAnswer is returned when retrieval finds nothing relevant. The model
// is never consulted in that case; there is nothing to ground an answer on.
const noFactsAnswer = "I don't have any relevant information about that yet. Try syncing your accounts or asking about something in your email or CRM data."

const systemPrompt = `You are an assistant that answers questions using only the numbered facts provided as context.
Rules:
- Use only the provided facts. If they do not contain the answer, say you don't have that information.
- Do not invent names, numbers or dates that are not in the facts.
- End your reply with a final line of the form "SOURCES: F1, F3" listing the fact tags you actually used. If you used none, write "SOURCES:" with nothing after it.`

var sourcesLineRe = regexp.MustCompile(`(?mi)^\s*SOURCES:\s*(.*)\s*$`)
var factTagRe = regexp.MustCompile(`[Ff](\d+)`)

// Engine answers questions against one graph group.
type Engine struct {
	graph    graph.Graph
	llm      llm.Provider
	episodes store.Episodes
	cfg      *config.Config
	logger   zerolog.Logger
}

func New(g graph.Graph, provider llm.Provider, episodes store.Episodes, cfg *config.Config, logger zerolog.Logger) *Engine {
	return &Engine{
		graph:    g,
		llm:      provider,
		episodes: episodes,
		cfg:      cfg,
		logger:   logger.With().Str("component", "answer").Logger(),
	}
}

// Answer runs retrieve→draft→cite under the configured deadline. A deadline
// overrun surfaces as model.ErrAnswerTimeout.
func (e *Engine) Answer(ctx context.Context, question string) (*model.ChatResponse, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, fmt.Errorf("empty question")
	}

	ctx, cancel := context.WithTimeout(ctx, e.cfg.AnswerTimeout())
	defer cancel()

	facts, err := e.retrieve(ctx, question)
	if errors.Is(err, model.ErrNoRelevantFacts) {
		return &model.ChatResponse{Answer: noFactsAnswer, Sources: []string{}}, nil
	}
	if err != nil {
		return nil, err
	}

	completion, err := e.llm.Complete(ctx, systemPrompt, buildPrompt(question, facts))
	if err != nil {
		if ctx.Err() != nil {
			return nil, model.ErrAnswerTimeout
		}
		return nil, fmt.Errorf("draft answer: %w", err)
	}

	answerText, cited := splitCitations(completion, len(facts))
	if len(cited) == 0 {
		// The model ignored the citation contract; fall back to citing the
		// whole context rather than presenting an unattributed answer.
		for i := range facts {
			cited = append(cited, i)
		}
	}

	var episodeIDs []string
	for _, idx := range cited {
		episodeIDs = append(episodeIDs, facts[idx].EpisodeIDs...)
	}
	sources, err := e.episodes.ResolveSources(ctx, episodeIDs)
	if err != nil {
		return nil, fmt.Errorf("resolve sources: %w", err)
	}
	if len(sources) > maxSources {
		sources = sources[:maxSources]
	}
	if sources == nil {
		sources = []string{}
	}

	e.logger.Debug().Int("facts", len(facts)).Int("cited", len(cited)).Int("sources", len(sources)).Msg("answer composed")
	return &model.ChatResponse{Answer: answerText, Sources: sources}, nil
}

// retrieve searches the graph, drops low-scoring hits and trims to the
// context budget. model.ErrNoRelevantFacts when nothing survives.
func (e *Engine) retrieve(ctx context.Context, question string) ([]model.Fact, error) {
	facts, err := e.graph.Search(ctx, e.cfg.GraphGroupID, question, e.cfg.SearchTopK)
	if err != nil {
		if ctx.Err() != nil {
			return nil, model.ErrAnswerTimeout
		}
		return nil, fmt.Errorf("graph search: %w", err)
	}

	kept := facts[:0:0]
	for _, f := range facts {
		if f.Score >= e.cfg.SearchMinScore {
			kept = append(kept, f)
		}
	}
	if len(kept) > e.cfg.ContextFactLimit {
		kept = kept[:e.cfg.ContextFactLimit]
	}
	if len(kept) == 0 {
		return nil, model.ErrNoRelevantFacts
	}
	return kept, nil
}

func buildPrompt(question string, facts []model.Fact) string {
	var b strings.Builder
	b.WriteString("Context facts:\n")
	for i, f := range facts {
		fmt.Fprintf(&b, "[F%d] %s\n", i+1, f.Text)
	}
	b.WriteString("\nQuestion: ")
	b.WriteString(question)
	return b.String()
}

// splitCitations strips the trailing SOURCES line and returns the indices of
// the facts it names. Tags outside [1, n] are discarded: the reply may only
// cite facts that were actually retrieved.
func splitCitations(completion string, n int) (string, []int) {
	matches := sourcesLineRe.FindAllStringSubmatchIndex(completion, -1)
	if len(matches) == 0 {
		return strings.TrimSpace(completion), nil
	}
	last := matches[len(matches)-1]
	answerText := strings.TrimSpace(completion[:last[0]] + completion[last[1]:])
	tagList := completion[last[2]:last[3]]

	seen := make(map[int]bool)
	var cited []int
	for _, m := range factTagRe.FindAllStringSubmatch(tagList, -1) {
		var idx int
		if _, err := fmt.Sscanf(m[1], "%d", &idx); err != nil {
			continue
		}
		if idx < 1 || idx > n || seen[idx] {
			continue
		}
		seen[idx] = true
		cited = append(cited, idx-1)
	}
	return answerText, cited
}
