package builtin

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/attunelabs/attune/internal/storage"
	"github.com/attunelabs/attune/internal/tools"
)

// lifeEventType is the preference type under which events are stored, one
// preference row per event keyed by its id.
const lifeEventType = "life_event"

// LifeEvent is one remembered event in a user's life.
type LifeEvent struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Date        string    `json:"date,omitempty"`
	Category    string    `json:"category,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// LifeEventTool manages a user's remembered life events: milestones,
// anniversaries, and plans the assistant should bring up at the right time.
type LifeEventTool struct {
	repo storage.Repository
}

// NewLifeEventTool creates the tool over the repository.
func NewLifeEventTool(repo storage.Repository) *LifeEventTool {
	return &LifeEventTool{repo: repo}
}

func (t *LifeEventTool) Name() string { return "life_event" }

func (t *LifeEventTool) Description() string {
	return "Add, get, update, delete, or list the user's life events, or build a chronological timeline of them."
}

func (t *LifeEventTool) Schema() tools.Schema {
	return tools.Schema{
		"action": {
			Type:        tools.TypeString,
			Required:    true,
			Description: "The operation to perform",
			Enum:        []string{"add", "get", "update", "delete", "list", "timeline"},
		},
		"user_id": {
			Type:        tools.TypeInteger,
			Required:    true,
			Description: "The id of the user the event belongs to",
		},
		"event_id": {
			Type:        tools.TypeString,
			Description: "Event id for get, update, and delete",
			Default:     "",
		},
		"title": {
			Type:        tools.TypeString,
			Description: "Short event title",
			Default:     "",
		},
		"description": {
			Type:        tools.TypeString,
			Description: "Longer event description",
			Default:     "",
		},
		"date": {
			Type:        tools.TypeString,
			Description: "Event date in YYYY-MM-DD form",
			Default:     "",
		},
		"category": {
			Type:        tools.TypeString,
			Description: "Event category, e.g. family, career, health",
			Default:     "",
		},
	}
}

func (t *LifeEventTool) Execute(ctx context.Context, args map[string]any) (any, error) {
	userID, ok := int64Arg(args, "user_id")
	if !ok {
		return nil, fmt.Errorf("user_id is required")
	}

	switch action := stringArg(args, "action"); action {
	case "add":
		return t.add(ctx, userID, args)
	case "get":
		return t.get(ctx, userID, stringArg(args, "event_id"))
	case "update":
		return t.update(ctx, userID, args)
	case "delete":
		return t.delete(ctx, userID, stringArg(args, "event_id"))
	case "list":
		return t.list(ctx, userID, false)
	case "timeline":
		return t.list(ctx, userID, true)
	default:
		return nil, fmt.Errorf("unknown action %q", action)
	}
}

func (t *LifeEventTool) add(ctx context.Context, userID int64, args map[string]any) (any, error) {
	title := stringArg(args, "title")
	if title == "" {
		return nil, fmt.Errorf("title is required for add")
	}
	event := LifeEvent{
		ID:          uuid.NewString(),
		Title:       title,
		Description: stringArg(args, "description"),
		Date:        stringArg(args, "date"),
		Category:    stringArg(args, "category"),
		CreatedAt:   time.Now().UTC(),
	}
	if err := t.store(ctx, userID, event); err != nil {
		return nil, err
	}
	return map[string]any{
		"message":  fmt.Sprintf("Life event %q recorded.", event.Title),
		"event_id": event.ID,
	}, nil
}

func (t *LifeEventTool) get(ctx context.Context, userID int64, eventID string) (any, error) {
	if eventID == "" {
		return nil, fmt.Errorf("event_id is required for get")
	}
	event, err := t.find(ctx, userID, eventID)
	if err != nil {
		return nil, err
	}
	if event == nil {
		return map[string]any{"message": fmt.Sprintf("No life event with id %s.", eventID)}, nil
	}
	return event, nil
}

func (t *LifeEventTool) update(ctx context.Context, userID int64, args map[string]any) (any, error) {
	eventID := stringArg(args, "event_id")
	if eventID == "" {
		return nil, fmt.Errorf("event_id is required for update")
	}
	event, err := t.find(ctx, userID, eventID)
	if err != nil {
		return nil, err
	}
	if event == nil {
		return nil, fmt.Errorf("no life event with id %s", eventID)
	}

	if v := stringArg(args, "title"); v != "" {
		event.Title = v
	}
	if v := stringArg(args, "description"); v != "" {
		event.Description = v
	}
	if v := stringArg(args, "date"); v != "" {
		event.Date = v
	}
	if v := stringArg(args, "category"); v != "" {
		event.Category = v
	}
	if err := t.store(ctx, userID, *event); err != nil {
		return nil, err
	}
	return map[string]any{"message": fmt.Sprintf("Life event %q updated.", event.Title)}, nil
}

func (t *LifeEventTool) delete(ctx context.Context, userID int64, eventID string) (any, error) {
	if eventID == "" {
		return nil, fmt.Errorf("event_id is required for delete")
	}
	if err := t.repo.DeletePreference(ctx, userID, lifeEventType, eventID); err != nil {
		return nil, fmt.Errorf("delete life event: %w", err)
	}
	return map[string]any{"message": "Life event deleted."}, nil
}

func (t *LifeEventTool) list(ctx context.Context, userID int64, chronological bool) (any, error) {
	events, err := t.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	if chronological {
		sort.Slice(events, func(i, j int) bool {
			if events[i].Date != events[j].Date {
				return events[i].Date < events[j].Date
			}
			return events[i].CreatedAt.Before(events[j].CreatedAt)
		})
	} else {
		sort.Slice(events, func(i, j int) bool {
			return events[i].CreatedAt.Before(events[j].CreatedAt)
		})
	}
	return map[string]any{
		"message": fmt.Sprintf("%d life events on record.", len(events)),
		"events":  events,
	}, nil
}

func (t *LifeEventTool) store(ctx context.Context, userID int64, event LifeEvent) error {
	if err := t.repo.SetPreference(ctx, userID, lifeEventType, event.ID, event, 1.0); err != nil {
		return fmt.Errorf("store life event: %w", err)
	}
	return nil
}

func (t *LifeEventTool) find(ctx context.Context, userID int64, eventID string) (*LifeEvent, error) {
	events, err := t.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	for i := range events {
		if events[i].ID == eventID {
			return &events[i], nil
		}
	}
	return nil, nil
}

func (t *LifeEventTool) load(ctx context.Context, userID int64) ([]LifeEvent, error) {
	prefs, err := t.repo.GetPreferences(ctx, userID, lifeEventType)
	if err != nil {
		return nil, fmt.Errorf("read life events: %w", err)
	}
	events := make([]LifeEvent, 0, len(prefs))
	for _, pref := range prefs {
		var event LifeEvent
		if err := json.Unmarshal(pref.Value, &event); err != nil {
			continue
		}
		events = append(events, event)
	}
	return events, nil
}
