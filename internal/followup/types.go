// Package followup delivers messages after the synchronous interaction
// response. Handlers enqueue jobs into a SQLite-backed queue; a dispatcher
// loop claims due jobs and posts them through the platform's follow-up
// webhook, retrying with exponential backoff.
package followup

import (
	"errors"
	"time"
)

type Status string

const (
	StatusQueued  Status = "queued"
	StatusRunning Status = "running"
	StatusSent    Status = "sent"
	StatusDead    Status = "dead"
)

// Job is one pending follow-up message.
type Job struct {
	ID            string
	ApplicationID string
	Token         string
	InteractionID string
	UserID        string
	ChannelID     string
	GuildID       string
	Content       string
	Ephemeral     bool
	Status        Status
	Attempt       int
	MaxAttempts   int
	CreatedAt     time.Time
	DeliverAt     time.Time
	StartedAt     *time.Time
	CompletedAt   *time.Time
	LastError     *string
}

// EnqueueRequest describes a follow-up to deliver at or after DeliverAt.
type EnqueueRequest struct {
	ApplicationID string
	Token         string
	InteractionID string
	UserID        string
	ChannelID     string
	GuildID       string
	Content       string
	Ephemeral     bool
	MaxAttempts   int
	DeliverAt     time.Time
}

var ErrJobNotFound = errors.New("follow-up job not found")
