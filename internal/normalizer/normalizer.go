// Package normalizer cleans up responses from locally-hosted models: prompt
// artifacts, tool calls embedded as JSON in the text, hallucinated tool
// names, and raw search output leaking into the reply.
package normalizer

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"github.com/attunelabs/attune/pkg/models"
)

// artifactLiterals are chat-template fragments local models leak into their
// output. They are removed wherever they appear.
var artifactLiterals = []string{
	"<end_of_turn>",
	"<start_of_turn>",
	"<|im_end|>",
	"<|im_start|>",
	"<|end|>",
	"<|assistant|>",
	"<|user|>",
	"<|system|>",
	"</s>",
	"<s>",
	"[INST]",
	"[/INST]",
	"<<SYS>>",
	"<</SYS>>",
	"<|endoftext|>",
	"<|pad|>",
}

// hallucinatedTurn marks the model starting a fake user turn; everything
// from here on is discarded.
const hallucinatedTurn = "<start_of_turn>user"

var (
	thinkBlockRe     = regexp.MustCompile(`(?s)<think>.*?</think>`)
	multiNewlineRe   = regexp.MustCompile(`\n{3,}`)
	multiSpaceRe     = regexp.MustCompile(`[ \t]+`)
	urlRe            = regexp.MustCompile(`https?://\S+`)
	markdownHeaderRe = regexp.MustCompile(`(?m)^#+[ \t]*`)
)

// Config tunes the normalizer. The alias table can be extended from
// configuration; entries here override the built-in table.
type Config struct {
	ToolAliases map[string]string `yaml:"tool_aliases"`
}

// Normalizer rewrites raw local-model responses into well-formed ones.
type Normalizer struct {
	aliases map[string]string
}

// New creates a normalizer with the built-in alias table merged with any
// configured overrides.
func New(config Config) *Normalizer {
	aliases := make(map[string]string, len(defaultToolAliases)+len(config.ToolAliases))
	for from, to := range defaultToolAliases {
		aliases[from] = to
	}
	for from, to := range config.ToolAliases {
		aliases[from] = to
	}
	return &Normalizer{aliases: aliases}
}

// Normalize cleans one response. userLanguage is the user's stored language
// preference ("" when unknown); it drives the language-argument overrides.
// The operation is idempotent: normalizing an already-normalized response
// returns it unchanged.
func (n *Normalizer) Normalize(resp *models.LLMResponse, userLanguage string) *models.LLMResponse {
	if resp == nil {
		return nil
	}
	out := *resp
	out.ToolCalls = append([]models.ToolCall(nil), resp.ToolCalls...)

	out.Content = StripArtifacts(out.Content)

	content, embedded, found := n.extractEmbedded(out.Content)
	if found {
		out.Content = content
		if len(embedded) > 0 {
			out.ToolCalls = append(out.ToolCalls, embedded...)
		}
	} else if looksLikeRawSearch(out.Content) && len(out.ToolCalls) == 0 {
		out.Content = recoverRawSearch(out.Content)
	}

	for i := range out.ToolCalls {
		out.ToolCalls[i] = n.remapCall(out.ToolCalls[i], userLanguage)
	}
	return &out
}

// StripArtifacts removes chat-template fragments, thinking blocks, and
// hallucinated turn continuations, then collapses runs of whitespace.
func StripArtifacts(content string) string {
	if i := strings.Index(content, hallucinatedTurn); i >= 0 {
		content = content[:i]
	}
	content = thinkBlockRe.ReplaceAllString(content, "")
	for _, literal := range artifactLiterals {
		content = strings.ReplaceAll(content, literal, "")
	}
	content = multiNewlineRe.ReplaceAllString(content, "\n\n")
	content = multiSpaceRe.ReplaceAllString(content, " ")
	return strings.TrimSpace(content)
}

// extractEmbedded finds a JSON envelope in the content. The primary shape is
// an object with a formatted_output key; the legacy shape is a bare array of
// {name, ...} objects.
func (n *Normalizer) extractEmbedded(content string) (string, []models.ToolCall, bool) {
	for _, candidate := range jsonCandidates(content, '{') {
		var obj map[string]any
		if !decodeValue(candidate, &obj) {
			continue
		}
		formatted, present := obj["formatted_output"]
		if !present {
			continue
		}

		if s, ok := formatted.(string); ok && len(s) > 5 {
			return strings.TrimSpace(s), nil, true
		}
		if calls := parseCallList(obj["tool_calls"]); len(calls) > 0 {
			return "", calls, true
		}
		// Envelope recognized but empty; drop it from the content.
		return strings.TrimSpace(strings.Replace(content, candidate, "", 1)), nil, true
	}

	for _, candidate := range jsonCandidates(content, '[') {
		var arr []any
		if !decodeValue(candidate, &arr) {
			continue
		}
		if calls := parseCallList(arr); len(calls) > 0 {
			return "", calls, true
		}
	}
	return content, nil, false
}

// jsonCandidates returns the raw JSON value starting at each occurrence of
// the opening delimiter that parses cleanly, outermost first.
func jsonCandidates(content string, open byte) []string {
	var out []string
	for i := 0; i < len(content); i++ {
		if content[i] != open {
			continue
		}
		dec := json.NewDecoder(strings.NewReader(content[i:]))
		var raw json.RawMessage
		if err := dec.Decode(&raw); err == nil {
			out = append(out, string(raw))
			// Skip past this value so nested openers are not re-tried.
			i += len(raw) - 1
		}
	}
	return out
}

func decodeValue(raw string, target any) bool {
	return json.Unmarshal([]byte(raw), target) == nil
}

// parseCallList converts a decoded tool_calls list into structured calls.
// Entries without a name are skipped.
func parseCallList(value any) []models.ToolCall {
	list, ok := value.([]any)
	if !ok {
		return nil
	}
	var out []models.ToolCall
	for _, item := range list {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		name, _ := m["name"].(string)
		if name == "" {
			continue
		}
		args, _ := m["arguments"].(map[string]any)
		if args == nil {
			args = map[string]any{}
		}
		out = append(out, models.ToolCall{
			ID:        uuid.NewString(),
			Name:      name,
			Arguments: args,
		})
	}
	return out
}
