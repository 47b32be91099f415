package kokoro

import (
	"time"

	"github.com/google/uuid"
)

// Role identifies the author of a conversation turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one prior turn handed to a Completer.
// All fields are primitive types — no internal package imports.
type Message struct {
	Role    string
	Content string
}

// Turn is the public view of one logged conversation message.
type Turn struct {
	ID        int64
	Role      Role
	Content   string
	CreatedAt time.Time
}

// Thought is an internal reflection extracted from a reply.
type Thought struct {
	ID         int64
	Content    string
	Importance int
	CreatedAt  time.Time
}

// MoodEvent records one mood change.
type MoodEvent struct {
	ID        int64
	Mood      string
	Intensity float64
	CreatedAt time.Time
}

// StateSnapshot is one persisted full copy of the character state.
type StateSnapshot struct {
	State     map[string]string
	CreatedAt time.Time
}

// GeneratedImage is one rendered image attached to a reply.
type GeneratedImage struct {
	ID        uuid.UUID
	Prompt    string
	URL       string
	StoredURL string // empty when indexing did not complete
}

// Reply is the result of processing one user message.
type Reply struct {
	Text     string
	Thoughts []string
	Images   []GeneratedImage
	Mood     string
}

// ArtifactOutcome is the terminal state an artifact write reached.
type ArtifactOutcome string

const (
	// ArtifactRated: the artifact already existed; only its rating changed.
	ArtifactRated ArtifactOutcome = "rated"
	// ArtifactIndexed: a new vector and blob were written.
	ArtifactIndexed ArtifactOutcome = "indexed"
)

// ArtifactResult describes one completed artifact write, including any
// identifier substitution the caller must adopt for future correlation.
type ArtifactResult struct {
	ID        uuid.UUID
	Remapped  bool
	Outcome   ArtifactOutcome
	StoredURL string
}

// MemoryHit is one semantic recall result.
type MemoryHit struct {
	ID      uuid.UUID
	Content string
	Kind    string
	Score   float32
}
