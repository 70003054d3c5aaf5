package agent

import (
	"context"
	"strings"

	"github.com/attunelabs/attune/internal/providers"
	"github.com/attunelabs/attune/pkg/models"
)

// cannedApologies are the fallback replies when every provider failed or the
// model produced nothing usable, keyed by lowercase language name.
var cannedApologies = map[string]string{
	"english": "I'm sorry, I'm having trouble responding right now. Please try again in a moment.",
	"german":  "Entschuldigung, ich habe gerade Schwierigkeiten zu antworten. Bitte versuche es gleich noch einmal.",
	"french":  "Désolé, j'ai du mal à répondre pour le moment. Veuillez réessayer dans un instant.",
	"spanish": "Lo siento, tengo problemas para responder en este momento. Inténtalo de nuevo en un momento.",
}

// apologyFor returns the canned apology in the user's language, falling back
// to English.
func apologyFor(language string) string {
	if msg, ok := cannedApologies[strings.ToLower(strings.TrimSpace(language))]; ok {
		return msg
	}
	return cannedApologies["english"]
}

// apologize produces an apology in the user's language. Local models get one
// short generated attempt so the wording matches the conversation; anything
// failing falls back to the canned text.
func (s *Service) apologize(ctx context.Context, preferred, language string) string {
	family, ok := s.mux.Family(preferred)
	if !ok || family != providers.FamilyLocal {
		return apologyFor(language)
	}

	prompt := "Apologize briefly, in at most 30 words, for not being able to answer right now."
	if language != "" && !strings.EqualFold(language, "english") {
		prompt += " Respond in " + language + "."
	}
	resp, _, err := s.mux.Invoke(ctx, preferred, &providers.Request{
		System:    "You write one short apology sentence. No tools, no preamble.",
		Messages:  []models.Message{{Role: models.RoleUser, Content: prompt}},
		MaxTokens: 60,
	})
	if err != nil || resp == nil {
		return apologyFor(language)
	}
	text := strings.TrimSpace(s.normalizer.Normalize(resp, language).Content)
	if text == "" || len(strings.Fields(text)) > 30 {
		return apologyFor(language)
	}
	return text
}
