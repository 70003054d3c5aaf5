package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/attunelabs/attune/internal/providers"
	"github.com/attunelabs/attune/internal/tools/builtin"
	"github.com/attunelabs/attune/pkg/models"
)

// detectionConfidenceFloor is the confidence below which a detected language
// is confirmed with the user instead of stored.
const detectionConfidenceFloor = 0.9

type languageDetection struct {
	Language   string  `json:"language"`
	Confidence float64 `json:"confidence"`
}

// storedLanguage returns the user's persisted language preference, or "".
func (s *Service) storedLanguage(ctx context.Context, userID int64) string {
	prefs, err := s.repo.GetPreferences(ctx, userID, builtin.LanguagePrefType)
	if err != nil {
		return ""
	}
	pref, ok := prefs[builtin.LanguagePrefKey]
	if !ok {
		return ""
	}
	var language string
	if err := json.Unmarshal(pref.Value, &language); err != nil {
		return ""
	}
	return language
}

// resolveLanguage decides the language for this turn. When no preference is
// stored it asks the model to classify the message: confident detections are
// persisted, uncertain ones produce a confirmation question that replaces
// the normal reply.
func (s *Service) resolveLanguage(ctx context.Context, userID int64, text string) (language, confirmation string) {
	if stored := s.storedLanguage(ctx, userID); stored != "" {
		return stored, ""
	}

	detected, err := s.detectLanguage(ctx, text)
	if err != nil {
		s.logger.Debug(ctx, "language detection failed", "error", err)
		return "", ""
	}
	if detected.Language == "" {
		return "", ""
	}

	if detected.Confidence >= detectionConfidenceFloor {
		if err := s.repo.SetPreference(ctx, userID, builtin.LanguagePrefType, builtin.LanguagePrefKey,
			detected.Language, detected.Confidence); err != nil {
			s.logger.Warn(ctx, "language preference not saved", "error", err)
		}
		return detected.Language, ""
	}
	return detected.Language, confirmationFor(detected.Language)
}

// cannedConfirmations ask, in the detected language, whether to keep replying
// in it. Keyed by lowercase language name.
var cannedConfirmations = map[string]string{
	"english": "It looks like you might be writing in English. Should I reply in English from now on?",
	"german":  "Es sieht so aus, als würdest du auf Deutsch schreiben. Soll ich ab jetzt auf Deutsch antworten?",
	"french":  "On dirait que vous écrivez en français. Dois-je répondre en français à partir de maintenant ?",
	"spanish": "Parece que escribes en español. ¿Quieres que responda en español a partir de ahora?",
}

// confirmationFor returns the confirmation question in the detected language,
// falling back to an English sentence that names it.
func confirmationFor(language string) string {
	if msg, ok := cannedConfirmations[strings.ToLower(strings.TrimSpace(language))]; ok {
		return msg
	}
	return fmt.Sprintf(
		"It looks like you might be writing in %s. Should I reply in %s from now on?",
		language, language)
}

// detectLanguage asks the preferred provider to classify the message
// language, expecting a small JSON object back.
func (s *Service) detectLanguage(ctx context.Context, text string) (languageDetection, error) {
	req := &providers.Request{
		System: `Identify the language of the user message. Reply with only a JSON object: {"language": "<English name>", "confidence": <0..1>}`,
		Messages: []models.Message{
			{Role: models.RoleUser, Content: text},
		},
		MaxTokens: 60,
	}
	resp, _, err := s.mux.Invoke(ctx, s.config.PreferredProvider, req)
	if err != nil {
		return languageDetection{}, err
	}

	content := strings.TrimSpace(s.normalizer.Normalize(resp, "").Content)
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start < 0 || end <= start {
		return languageDetection{}, fmt.Errorf("no JSON in detection reply: %q", content)
	}
	var out languageDetection
	if err := json.Unmarshal([]byte(content[start:end+1]), &out); err != nil {
		return languageDetection{}, fmt.Errorf("decode detection reply: %w", err)
	}
	out.Language = strings.TrimSpace(out.Language)
	return out, nil
}
