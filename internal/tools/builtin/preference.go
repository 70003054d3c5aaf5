package builtin

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/attunelabs/attune/internal/crypto"
	"github.com/attunelabs/attune/internal/storage"
	"github.com/attunelabs/attune/internal/tools"
	"github.com/attunelabs/attune/pkg/models"
)

// PreferenceTool reads and writes user preferences. String values under
// sensitive preference types are encrypted with the user's key before they
// reach storage and decrypted transparently on read.
type PreferenceTool struct {
	repo storage.Repository
}

// NewPreferenceTool creates the tool over the repository.
func NewPreferenceTool(repo storage.Repository) *PreferenceTool {
	return &PreferenceTool{repo: repo}
}

func (t *PreferenceTool) Name() string { return "user_preference" }

func (t *PreferenceTool) Description() string {
	return "Get, set, or delete a user preference. Use this to remember facts the user shares about themselves, like their language, interests, or personal details."
}

func (t *PreferenceTool) Schema() tools.Schema {
	return tools.Schema{
		"action": {
			Type:        tools.TypeString,
			Required:    true,
			Description: "The operation to perform",
			Enum:        []string{"get", "set", "delete"},
		},
		"user_id": {
			Type:        tools.TypeInteger,
			Required:    true,
			Description: "The id of the user the preference belongs to",
		},
		"preference_type": {
			Type:        tools.TypeString,
			Description: "Preference category, e.g. communication, interests, personal_info",
			Default:     "",
		},
		"preference_key": {
			Type:        tools.TypeString,
			Description: "Preference name within its category",
			Default:     "",
		},
		"preference_value": {
			Type:        tools.TypeString,
			Description: "Value to store (set only)",
			Default:     "",
		},
		"confidence": {
			Type:        tools.TypeNumber,
			Description: "Confidence in the stored value, between 0 and 1",
			Default:     1.0,
		},
	}
}

func (t *PreferenceTool) Execute(ctx context.Context, args map[string]any) (any, error) {
	userID, ok := int64Arg(args, "user_id")
	if !ok {
		return nil, fmt.Errorf("user_id is required")
	}
	action := stringArg(args, "action")
	prefType := stringArg(args, "preference_type")
	prefKey := stringArg(args, "preference_key")

	switch action {
	case "get":
		return t.get(ctx, userID, prefType, prefKey)
	case "set":
		return t.set(ctx, userID, prefType, prefKey, stringArg(args, "preference_value"), floatArg(args, "confidence", 1.0))
	case "delete":
		if err := t.repo.DeletePreference(ctx, userID, prefType, prefKey); err != nil {
			return nil, fmt.Errorf("delete preference: %w", err)
		}
		return map[string]any{"message": "Preference deleted."}, nil
	default:
		return nil, fmt.Errorf("unknown action %q", action)
	}
}

func (t *PreferenceTool) get(ctx context.Context, userID int64, prefType, prefKey string) (any, error) {
	prefs, err := t.repo.GetPreferences(ctx, userID, prefType)
	if err != nil {
		return nil, fmt.Errorf("read preferences: %w", err)
	}

	out := map[string]any{}
	for key, pref := range prefs {
		if prefKey != "" && key != prefKey {
			continue
		}
		value, err := t.decode(ctx, userID, pref)
		if err != nil {
			return nil, err
		}
		out[key] = value
	}
	return out, nil
}

func (t *PreferenceTool) set(ctx context.Context, userID int64, prefType, prefKey, value string, confidence float64) (any, error) {
	if prefType == "" || prefKey == "" {
		return nil, fmt.Errorf("preference_type and preference_key are required for set")
	}
	if confidence < 0 || confidence > 1 {
		return nil, fmt.Errorf("confidence %v is out of range [0, 1]", confidence)
	}

	stored := value
	if models.SensitivePreferenceTypes[prefType] {
		key, err := t.userKey(ctx, userID)
		if err != nil {
			return nil, err
		}
		stored, err = crypto.Encrypt(key, []byte(value))
		if err != nil {
			return nil, fmt.Errorf("encrypt preference: %w", err)
		}
	}
	if err := t.repo.SetPreference(ctx, userID, prefType, prefKey, stored, confidence); err != nil {
		return nil, fmt.Errorf("store preference: %w", err)
	}
	return map[string]any{
		"message": fmt.Sprintf("Preference %s.%s saved.", prefType, prefKey),
	}, nil
}

// decode unmarshals a stored preference value and decrypts it when it carries
// the ciphertext tag.
func (t *PreferenceTool) decode(ctx context.Context, userID int64, pref models.Preference) (any, error) {
	var value any
	if err := json.Unmarshal(pref.Value, &value); err != nil {
		return nil, fmt.Errorf("decode preference %s.%s: %w", pref.Type, pref.Key, err)
	}
	s, isString := value.(string)
	if !isString || !crypto.IsEncrypted(s) {
		return value, nil
	}
	key, err := t.userKey(ctx, userID)
	if err != nil {
		return nil, err
	}
	plain, err := crypto.Decrypt(key, s)
	if err != nil {
		return nil, fmt.Errorf("decrypt preference %s.%s: %w", pref.Type, pref.Key, err)
	}
	return string(plain), nil
}

func (t *PreferenceTool) userKey(ctx context.Context, userID int64) (crypto.Key, error) {
	encoded, err := t.repo.EnsureEncryptionKey(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("ensure encryption key: %w", err)
	}
	key, err := crypto.DecodeKey(encoded)
	if err != nil {
		return nil, fmt.Errorf("decode encryption key: %w", err)
	}
	return key, nil
}
