package agent

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/attunelabs/attune/internal/observability"
	"github.com/attunelabs/attune/internal/providers"
	"github.com/attunelabs/attune/internal/tools"
	"github.com/attunelabs/attune/pkg/models"
)

// ChatResult is the outcome of one chat turn.
type ChatResult struct {
	Response       string      `json:"response"`
	ConversationID string      `json:"conversation_id"`
	ToolsUsed      []string    `json:"tools_used,omitempty"`
	Metrics        ChatMetrics `json:"metrics"`
}

// ChatMetrics summarizes what one turn cost.
type ChatMetrics struct {
	Provider   string        `json:"provider,omitempty"`
	LLMCalls   int           `json:"llm_calls"`
	ToolRounds int           `json:"tool_rounds"`
	TokensUsed int           `json:"tokens_used"`
	Elapsed    time.Duration `json:"elapsed"`
}

// emptyResponses are literal contents local models emit when they have
// nothing to say after a tool round.
var emptyResponses = map[string]bool{
	"":      true,
	"```":   true,
	"\n```": true,
	"`":     true,
	"\n":    true,
	" ":     true,
	"  ":    true,
	"\t":    true,
}

func isEmptyResponse(content string) bool {
	if emptyResponses[content] {
		return true
	}
	trimmed := strings.TrimSpace(content)
	return trimmed == "" || trimmed == "```" || trimmed == "`"
}

// Chat runs one complete turn for the user and returns the reply. Turns for
// the same user are serialized.
func (s *Service) Chat(ctx context.Context, principal models.Principal, text string) (*ChatResult, error) {
	requestID := uuid.NewString()
	ctx = context.WithValue(ctx, observability.RequestIDKey, requestID)
	ctx = context.WithValue(ctx, observability.UserIDKey, principal.ID)

	lock := s.locks.forUser(principal.ID)
	lock.Lock()
	defer lock.Unlock()

	start := time.Now()
	s.observer.OperationStart(ctx, "chat.turn")
	result, err := s.chat(ctx, principal, text, requestID)
	s.observer.OperationEnd(ctx, "chat.turn", time.Since(start), err == nil)
	if result != nil {
		result.Metrics.Elapsed = time.Since(start)
	}
	return result, err
}

func (s *Service) chat(ctx context.Context, principal models.Principal, text, requestID string) (*ChatResult, error) {
	manager := s.store.ForUser(principal.ID)
	result := &ChatResult{ConversationID: requestID}

	if err := s.tracker.OnMessage(ctx, principal.ID); err != nil {
		return nil, fmt.Errorf("count message: %w", err)
	}
	if err := manager.Append(ctx, models.Message{
		Role:    models.RoleUser,
		Content: text,
		Type:    models.TypeAI,
		UserID:  principal.ID,
	}); err != nil {
		return nil, fmt.Errorf("remember message: %w", err)
	}

	language, confirmation := s.resolveLanguage(ctx, principal.ID, text)
	if confirmation != "" {
		result.Response = confirmation
		return result, s.finishTurn(ctx, principal.ID, manager, confirmation)
	}

	family := s.promptFamily()
	pc, err := s.gatherPromptContext(ctx, principal.ID, language, family)
	if err != nil {
		return nil, fmt.Errorf("assemble prompt: %w", err)
	}

	reply := s.runLoop(ctx, principal, language, buildSystemPrompt(pc), text, result)
	result.Response = reply
	if err := s.evaluateIfDue(ctx, principal.ID); err != nil {
		s.logger.Warn(ctx, "skill evaluation failed", "error", err)
	}
	return result, s.finishTurn(ctx, principal.ID, manager, reply)
}

// runLoop drives LLM calls and tool rounds until the model produces text or
// the round cap is hit. It never returns an empty reply.
func (s *Service) runLoop(ctx context.Context, principal models.Principal, language, system, text string, result *ChatResult) string {
	req := &providers.Request{
		System: system,
		Messages: []models.Message{
			{Role: models.RoleUser, Content: text},
		},
		Tools: s.registry.Definitions(),
	}

	var content string
	for round := 0; round <= s.config.ToolLoopCap; round++ {
		resp, used, err := s.mux.Invoke(ctx, s.config.PreferredProvider, req)
		if err != nil {
			s.logger.Error(ctx, "all providers failed", "error", err)
			s.observer.Anomaly(ctx, "chat.no_provider", err.Error())
			return s.apologize(ctx, s.config.PreferredProvider, language)
		}
		result.Metrics.Provider = used
		result.Metrics.LLMCalls++
		if resp.Usage != nil {
			result.Metrics.TokensUsed += resp.Usage.Total()
		}

		if family, ok := s.mux.Family(used); ok && family == providers.FamilyLocal {
			resp = s.normalizer.Normalize(resp, language)
		}
		content = resp.Content

		if len(resp.ToolCalls) == 0 {
			break
		}
		if round == s.config.ToolLoopCap {
			s.observer.Anomaly(ctx, "chat.tool_loop_cap", fmt.Sprintf("user %d", principal.ID))
			s.logger.Warn(ctx, "tool loop cap reached", "cap", s.config.ToolLoopCap)
			break
		}
		result.Metrics.ToolRounds++

		calls := injectUserID(resp.ToolCalls, principal.ID)
		results := s.runner.Dispatch(ctx, calls)
		for _, call := range calls {
			result.ToolsUsed = append(result.ToolsUsed, call.Name)
		}

		req.Messages = append(req.Messages, models.Message{
			Role:    models.RoleAssistant,
			Content: assistantTurnText(resp),
		})
		for _, r := range results {
			req.Messages = append(req.Messages, models.Message{
				Role:       models.RoleTool,
				Content:    tools.FormatResult(r),
				ToolName:   r.Name,
				ToolCallID: r.ToolCallID,
			})
		}
	}

	if isEmptyResponse(content) {
		return s.repairEmptyReply(ctx, req.Messages, language)
	}
	return content
}

// injectUserID stamps the acting user onto every tool call so tools always
// act for the authenticated principal, whatever the model passed.
func injectUserID(calls []models.ToolCall, userID int64) []models.ToolCall {
	out := make([]models.ToolCall, len(calls))
	for i, call := range calls {
		out[i] = call
		args := make(map[string]any, len(call.Arguments)+1)
		for k, v := range call.Arguments {
			args[k] = v
		}
		args["user_id"] = userID
		out[i].Arguments = args
	}
	return out
}

// assistantTurnText records what the assistant did this round for the next
// request, naming requested tools when there was no text.
func assistantTurnText(resp *models.LLMResponse) string {
	if strings.TrimSpace(resp.Content) != "" {
		return resp.Content
	}
	names := make([]string, len(resp.ToolCalls))
	for i, call := range resp.ToolCalls {
		names[i] = call.Name
	}
	return "Requested tools: " + strings.Join(names, ", ")
}

// repairEmptyReply salvages a turn where the model went silent: the most
// recent tool result within the last three messages becomes the reply.
func (s *Service) repairEmptyReply(ctx context.Context, history []models.Message, language string) string {
	lookback := 3
	for i := len(history) - 1; i >= 0 && lookback > 0; i, lookback = i-1, lookback-1 {
		msg := history[i]
		if msg.Role == models.RoleTool && strings.TrimSpace(msg.Content) != "" {
			return fmt.Sprintf("Based on the %s results:\n\n%s", msg.ToolName, msg.Content)
		}
	}
	s.observer.Anomaly(ctx, "chat.empty_response", "no tool result to fall back on")
	return s.apologize(ctx, s.config.PreferredProvider, language)
}

// evaluateIfDue runs skill evaluation over the user's recent messages at
// every evaluation boundary and folds the outcome into the training plan.
func (s *Service) evaluateIfDue(ctx context.Context, userID int64) error {
	due, err := s.tracker.ShouldEvaluate(ctx, userID)
	if err != nil || !due {
		return err
	}

	recalled, err := s.store.ForUser(userID).Recall(ctx, s.config.RecallLimit, models.TypeAI)
	if err != nil {
		return err
	}
	var recent []any
	for _, msg := range recalled {
		if msg.Role == models.RoleUser {
			recent = append(recent, msg.Content)
		}
	}
	if len(recent) == 0 {
		return nil
	}

	results := s.runner.Dispatch(ctx, []models.ToolCall{{
		ID:   uuid.NewString(),
		Name: "skill_evaluator",
		Arguments: map[string]any{
			"user_id":  userID,
			"messages": recent,
		},
	}})
	if len(results) == 0 {
		return fmt.Errorf("skill evaluation produced no result")
	}
	if results[0].IsError() {
		return fmt.Errorf("skill evaluation: %s", results[0].Error)
	}
	analysis, ok := results[0].Value.(models.SkillAnalysis)
	if !ok {
		return fmt.Errorf("skill evaluation returned %T", results[0].Value)
	}
	return s.tracker.OnProgress(ctx, userID, analysis.SkillsUpdated)
}

// finishTurn remembers the reply and checkpoints the user's memory.
func (s *Service) finishTurn(ctx context.Context, userID int64, manager memoryManager, reply string) error {
	if err := manager.Append(ctx, models.Message{
		Role:    models.RoleAssistant,
		Content: reply,
		Type:    models.TypeAI,
		UserID:  userID,
	}); err != nil {
		return fmt.Errorf("remember reply: %w", err)
	}
	if err := manager.Flush(ctx); err != nil {
		return fmt.Errorf("persist memory: %w", err)
	}
	return nil
}

// promptFamily reports which provider family the prompt should target,
// based on the provider that will be tried first.
func (s *Service) promptFamily() providers.Family {
	name := s.config.PreferredProvider
	if name == "" {
		names := s.mux.Names()
		if len(names) == 0 {
			return providers.FamilyOpenAI
		}
		name = names[0]
	}
	if family, ok := s.mux.Family(name); ok {
		return family
	}
	return providers.FamilyOpenAI
}

// memoryManager is the slice of memory.Manager the turn path uses.
type memoryManager interface {
	Append(ctx context.Context, msg models.Message) error
	Flush(ctx context.Context) error
}
