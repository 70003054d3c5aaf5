package normalizer

import (
	"fmt"
	"strings"

	"github.com/attunelabs/attune/pkg/models"
)

// defaultToolAliases maps names local models invent to the tools actually
// registered. Configuration can extend or override the table.
var defaultToolAliases = map[string]string{
	"get_weather":         "web_search",
	"weather":             "web_search",
	"search_web":          "web_search",
	"search":              "web_search",
	"google_search":       "web_search",
	"internet_search":     "web_search",
	"lookup":              "web_search",
	"translate":           "clarify_communication",
	"translation":         "clarify_communication",
	"check_message":       "clarify_communication",
	"empathy_check":       "clarify_communication",
	"set_language":        "set_language_preference",
	"change_language":     "set_language_preference",
	"language_preference": "set_language_preference",
	"get_preference":      "user_preference",
	"set_preference":      "user_preference",
	"save_preference":     "user_preference",
	"remember":            "user_preference",
	"get_memory":          "recall_last_conversation",
	"recall":              "recall_last_conversation",
	"last_conversation":   "recall_last_conversation",
	"conversation_history": "recall_last_conversation",
	"evaluate_skills":     "skill_evaluator",
	"skill_check":         "skill_evaluator",
	"format":              "format_output",
	"pretty_print":        "format_output",
}

// weatherAliases are the search aliases whose arguments describe a place
// rather than a query; the query is rebuilt as a weather search.
var weatherAliases = map[string]bool{
	"get_weather": true,
	"weather":     true,
}

// preferenceActionByAlias injects the action argument preference aliases
// imply but never pass.
var preferenceActionByAlias = map[string]string{
	"get_preference":  "get",
	"set_preference":  "set",
	"save_preference": "set",
	"remember":        "set",
}

// remapCall renames an aliased call and fixes up its arguments for the
// canonical tool. Unknown names pass through with only language fixes.
// The input call is never mutated.
func (n *Normalizer) remapCall(call models.ToolCall, userLanguage string) models.ToolCall {
	out := call
	out.Arguments = make(map[string]any, len(call.Arguments))
	for k, v := range call.Arguments {
		out.Arguments[k] = v
	}

	alias := strings.ToLower(strings.TrimSpace(call.Name))
	canonical, ok := n.aliases[alias]
	if !ok {
		n.fixLanguageArgs(alias, out.Arguments, userLanguage)
		return out
	}
	out.Name = canonical

	switch canonical {
	case "web_search":
		remapSearchArgs(alias, out.Arguments)
	case "user_preference":
		if action, ok := preferenceActionByAlias[alias]; ok {
			if _, has := out.Arguments["action"]; !has {
				out.Arguments["action"] = action
			}
		}
	}
	n.fixLanguageArgs(canonical, out.Arguments, userLanguage)
	return out
}

// remapSearchArgs turns location-style arguments into a query. A weather
// alias asking about "Berlin" becomes the query "weather in Berlin".
func remapSearchArgs(alias string, args map[string]any) {
	if _, has := args["query"]; has {
		return
	}
	location, _ := args["location"].(string)
	if location == "" {
		if city, ok := args["city"].(string); ok {
			location = city
		}
	}
	if location == "" {
		return
	}
	delete(args, "location")
	delete(args, "city")
	if weatherAliases[alias] {
		args["query"] = fmt.Sprintf("weather in %s", location)
	} else {
		args["query"] = location
	}
}

// fixLanguageArgs corrects the common local-model habit of defaulting every
// language argument to English even when the user's stored preference says
// otherwise.
func (n *Normalizer) fixLanguageArgs(name string, args map[string]any, userLanguage string) {
	if userLanguage == "" || isEnglish(userLanguage) || args == nil {
		return
	}
	switch name {
	case "clarify_communication":
		if target, ok := args["target_language"].(string); ok && isEnglish(target) {
			args["target_language"] = userLanguage
		}
	case "set_language_preference":
		if lang, ok := args["language"].(string); ok && isEnglish(lang) {
			args["language"] = userLanguage
		}
	}
}

func isEnglish(language string) bool {
	l := strings.ToLower(strings.TrimSpace(language))
	return l == "english" || l == "en"
}
