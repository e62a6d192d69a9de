package command

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/mattjoyce/slashgate/internal/interaction"
)

// NotesCollection is where /note records are appended.
const NotesCollection = "notes"

// Interaction tokens expire after 15 minutes, so reminders must land before that.
const maxReminderMinutes = 14

// Deps are the collaborators built-in handlers may call.
type Deps struct {
	Store     Appender
	FollowUps FollowUpScheduler
	Logger    *slog.Logger
	Now       func() time.Time
}

// Builtins returns the built-in command set wired to deps.
func Builtins(deps Deps) []Command {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}

	return []Command{
		{
			Name:        "hello",
			Description: "Say hello",
			Handler:     hello,
		},
		{
			Name:        "test",
			Description: "Check that the interactions endpoint works",
			Handler:     selfTest,
		},
		{
			Name:        "note",
			Description: "Save a short note",
			Schema: `{
				"type": "object",
				"properties": {"text": {"type": "string", "minLength": 1, "maxLength": 2000}},
				"required": ["text"]
			}`,
			Handler: deps.note,
		},
		{
			Name:        "remind",
			Description: "Get a reminder in a few minutes",
			Schema: fmt.Sprintf(`{
				"type": "object",
				"properties": {
					"text": {"type": "string", "minLength": 1, "maxLength": 2000},
					"minutes": {"type": "integer", "minimum": 1, "maximum": %d}
				},
				"required": ["text", "minutes"]
			}`, maxReminderMinutes),
			Handler: deps.remind,
		},
		{
			Name:        "echo",
			Description: "Echo text back through a deferred follow-up",
			Schema: `{
				"type": "object",
				"properties": {"text": {"type": "string", "minLength": 1, "maxLength": 2000}},
				"required": ["text"]
			}`,
			Handler: deps.echo,
		},
	}
}

func hello(context.Context, Request) interaction.Response {
	return interaction.Message{Content: "Hello from Cloud Run!"}
}

const selfTestContent = "テスト成功！Cloud Run のエンドポイントは正常です 🎉"

func selfTest(context.Context, Request) interaction.Response {
	return interaction.Message{Content: selfTestContent}
}

func (d Deps) note(ctx context.Context, req Request) interaction.Response {
	text := strings.TrimSpace(stringArg(req.Arguments, "text"))
	if text == "" {
		return interaction.Message{Content: "Notes need some text.", Ephemeral: true}
	}
	if d.Store == nil {
		return interaction.Message{Content: "Notes are not enabled here.", Ephemeral: true}
	}

	id, err := d.Store.Append(ctx, NotesCollection, map[string]any{
		"text":       text,
		"user_id":    req.Invoker.UserID,
		"channel_id": req.Invoker.ChannelID,
		"guild_id":   req.Invoker.GuildID,
		"created_at": d.Now().UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		d.Logger.Warn("failed to save note", "command", req.Name, "invoker", req.Invoker, "error", err)
		return interaction.Message{Content: "Could not save your note right now.", Ephemeral: true}
	}

	return interaction.Message{Content: fmt.Sprintf("Saved note %s.", id), Ephemeral: true}
}

func (d Deps) remind(ctx context.Context, req Request) interaction.Response {
	text := strings.TrimSpace(stringArg(req.Arguments, "text"))
	minutes, ok := intArg(req.Arguments, "minutes")
	if text == "" || !ok || minutes < 1 || minutes > maxReminderMinutes {
		return interaction.Message{
			Content:   fmt.Sprintf("Reminders need text and 1-%d minutes.", maxReminderMinutes),
			Ephemeral: true,
		}
	}
	if d.FollowUps == nil {
		return interaction.Message{Content: "Reminders are not enabled here.", Ephemeral: true}
	}

	delay := time.Duration(minutes) * time.Minute
	if _, err := d.FollowUps.Schedule(ctx, req.Invoker, "Reminder: "+text, true, delay); err != nil {
		d.Logger.Warn("failed to schedule reminder", "command", req.Name, "invoker", req.Invoker, "error", err)
		return interaction.Message{Content: "Could not schedule your reminder right now.", Ephemeral: true}
	}

	return interaction.Message{Content: fmt.Sprintf("Okay, I'll remind you in %d minute(s).", minutes), Ephemeral: true}
}

func (d Deps) echo(ctx context.Context, req Request) interaction.Response {
	text := strings.TrimSpace(stringArg(req.Arguments, "text"))
	if text == "" {
		return interaction.Message{Content: "Nothing to echo.", Ephemeral: true}
	}
	if d.FollowUps == nil {
		return interaction.Message{Content: text}
	}

	if _, err := d.FollowUps.Schedule(ctx, req.Invoker, text, false, 0); err != nil {
		d.Logger.Warn("failed to schedule echo", "command", req.Name, "invoker", req.Invoker, "error", err)
		// Answer inline instead of leaving the user with a spinner.
		return interaction.Message{Content: text}
	}

	return interaction.Deferred{}
}

func stringArg(args map[string]any, name string) string {
	s, _ := args[name].(string)
	return s
}

// intArg accepts whole JSON numbers only.
func intArg(args map[string]any, name string) (int, bool) {
	switch v := args[name].(type) {
	case float64:
		if v != math.Trunc(v) || v > math.MaxInt32 || v < math.MinInt32 {
			return 0, false
		}
		return int(v), true
	case int:
		return v, true
	case int64:
		return int(v), true
	default:
		return 0, false
	}
}
