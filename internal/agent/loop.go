package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/kaptinlin/jsonrepair"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/stocklens/stocklens/internal/config"
	"github.com/stocklens/stocklens/internal/llm"
	"github.com/stocklens/stocklens/internal/metrics"
	"github.com/stocklens/stocklens/internal/models"
)

// Verdict is the model's final answer, parsed from its JSON output. The
// confidence here is the model's own claim; the orchestrator replaces it
// with the reweighted combination before anything is cached or returned.
type Verdict struct {
	Signal      models.Signal `json:"signal"`
	Confidence  float64       `json:"confidence"`
	Explanation string        `json:"explanation"`
}

// Loop drives the bounded tool-calling conversation: send the transcript,
// execute any requested tools, append results, repeat. A turn with no tool
// calls is terminal and is parsed into a Verdict. The turn budget is hard;
// tool and validation errors consume turns as TOOL messages rather than
// aborting.
type Loop struct {
	completer llm.Completer
	registry  *Registry
	maxTurns  int
	logger    zerolog.Logger
}

// NewLoop creates an agent loop. maxTurns below 1 falls back to 10.
func NewLoop(completer llm.Completer, registry *Registry, maxTurns int) *Loop {
	if maxTurns < 1 {
		maxTurns = 10
	}
	return &Loop{
		completer: completer,
		registry:  registry,
		maxTurns:  maxTurns,
		logger:    config.NewLogger("agent"),
	}
}

// Run analyzes one ticker. pillarContext is the pre-computed pillar summary
// injected into the first user turn so the model does not re-fetch data it
// already has. Returns models.ErrAgentExhausted when the turn budget runs
// out before a terminal answer.
func (l *Loop) Run(ctx context.Context, ticker, pillarContext string) (*Verdict, error) {
	messages := []llm.Message{
		{Role: llm.RoleSystem, Content: analysisSystemPrompt},
		{Role: llm.RoleUser, Content: buildUserPrompt(ticker, pillarContext)},
	}

	for turn := 1; turn <= l.maxTurns; turn++ {
		resp, err := l.completer.Complete(ctx, messages, l.registry.Definitions())
		if err != nil {
			return nil, fmt.Errorf("completion failed on turn %d: %w", turn, err)
		}
		msg := resp.FirstMessage()
		if msg == nil {
			return nil, fmt.Errorf("empty completion on turn %d", turn)
		}
		messages = append(messages, *msg)

		if len(msg.ToolCalls) == 0 {
			verdict := l.parseVerdict(ticker, msg.Content)
			metrics.ObserveAgentTurns(turn)
			l.logger.Debug().
				Str("ticker", ticker).
				Int("turns", turn).
				Str("signal", string(verdict.Signal)).
				Msg("Agent reached verdict")
			return verdict, nil
		}

		l.logger.Debug().
			Str("ticker", ticker).
			Int("turn", turn).
			Int("tool_calls", len(msg.ToolCalls)).
			Msg("Executing tool calls")
		messages = append(messages, l.executeToolCalls(ctx, msg.ToolCalls)...)
	}

	metrics.ObserveAgentTurns(l.maxTurns)
	l.logger.Warn().
		Str("ticker", ticker).
		Int("max_turns", l.maxTurns).
		Msg("Agent exhausted turn budget without a verdict")
	return nil, fmt.Errorf("%w: no verdict after %d turns", models.ErrAgentExhausted, l.maxTurns)
}

// executeToolCalls runs the batch concurrently and returns one TOOL message
// per call, in request order. Failures become error text the model can read
// and react to; they never abort the loop.
func (l *Loop) executeToolCalls(ctx context.Context, calls []llm.ToolCall) []llm.Message {
	results := make([]llm.Message, len(calls))
	g, gctx := errgroup.WithContext(ctx)
	for i, call := range calls {
		g.Go(func() error {
			output, err := l.registry.Dispatch(gctx, call.Function.Name, call.Function.Arguments)
			if err != nil {
				l.logger.Warn().
					Str("tool", call.Function.Name).
					Err(err).
					Msg("Tool call failed")
				output = "Error: " + err.Error()
			}
			results[i] = llm.Message{
				Role:       llm.RoleTool,
				Content:    output,
				ToolCallID: call.ID,
			}
			return nil
		})
	}
	g.Wait()
	return results
}

// parseVerdict extracts the JSON verdict from the model's final message.
// Markdown fences are stripped, malformed JSON is repaired, and anything
// still unparseable falls back to a neutral HOLD at 0.5 so an almost-good
// answer never turns into a failed request.
func (l *Loop) parseVerdict(ticker, content string) *Verdict {
	raw := extractJSON(content)

	var parsed struct {
		Signal      string  `json:"signal"`
		Confidence  float64 `json:"confidence"`
		Explanation string  `json:"explanation"`
	}
	err := json.Unmarshal([]byte(raw), &parsed)
	if err != nil {
		repaired, repairErr := jsonrepair.JSONRepair(raw)
		if repairErr == nil {
			err = json.Unmarshal([]byte(repaired), &parsed)
		}
	}
	if err != nil || parsed.Signal == "" {
		l.logger.Warn().
			Str("ticker", ticker).
			Str("content", truncate(content, 200)).
			Msg("Unparseable verdict, falling back to HOLD")
		return &Verdict{Signal: models.SignalHold, Confidence: 0.5, Explanation: content}
	}

	signal, known := models.ParseSignal(parsed.Signal)
	if !known {
		l.logger.Warn().
			Str("ticker", ticker).
			Str("signal", parsed.Signal).
			Msg("Unknown signal in verdict, falling back to HOLD")
	}
	confidence := parsed.Confidence
	if confidence < 0 || confidence > 1 {
		confidence = 0.5
	}
	return &Verdict{Signal: signal, Confidence: confidence, Explanation: parsed.Explanation}
}

func buildUserPrompt(ticker, pillarContext string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Analyze %s and provide a recommendation.\n", ticker)
	if pillarContext != "" {
		b.WriteString("\n## Pre-computed Pillar Results\n\n")
		b.WriteString(pillarContext)
		b.WriteString("\n\nUse these results directly; fetch additional data only if something is missing.")
	}
	return b.String()
}

// extractJSON pulls the JSON object out of a message that may wrap it in
// markdown fences or surrounding prose.
func extractJSON(content string) string {
	s := strings.TrimSpace(content)
	if idx := strings.Index(s, "```json"); idx >= 0 {
		s = s[idx+len("```json"):]
		if end := strings.Index(s, "```"); end >= 0 {
			s = s[:end]
		}
		return strings.TrimSpace(s)
	}
	if idx := strings.Index(s, "```"); idx >= 0 {
		s = s[idx+len("```"):]
		if end := strings.Index(s, "```"); end >= 0 {
			s = s[:end]
		}
		return strings.TrimSpace(s)
	}
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start >= 0 && end > start {
		return s[start : end+1]
	}
	return s
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
