// Package model defines the domain types shared across internal packages.
package model

import "time"

// Role identifies the author of a conversation turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one logged message in a conversation.
type Turn struct {
	ID        int64
	Role      Role
	Content   string
	CreatedAt time.Time
}

// Thought is an internal reflection extracted from a model response.
// Importance ranks thoughts for retrieval; higher is more important.
type Thought struct {
	ID         int64
	Content    string
	Importance int
	CreatedAt  time.Time
}

// DefaultThoughtImportance is assigned when the caller does not rank a thought.
const DefaultThoughtImportance = 5

// MoodEvent records a mood change with its intensity.
type MoodEvent struct {
	ID        int64
	Mood      string
	Intensity float64
	CreatedAt time.Time
}

// DefaultMood is reported whenever no mood has ever been logged.
const DefaultMood = "neutral"

// StateSnapshot is one durable full copy of the character state map.
type StateSnapshot struct {
	ID        int64
	State     map[string]string
	CreatedAt time.Time
}

// Memory is a retrieval result blending thoughts and past turns.
type Memory struct {
	Content    string
	Source     string // "thought" or "conversation"
	Importance int
	CreatedAt  time.Time
}

// MemorySourceThought and MemorySourceConversation label Memory.Source.
const (
	MemorySourceThought      = "thought"
	MemorySourceConversation = "conversation"
)

// ConversationMemoryImportance is the fixed rank given to past turns when
// they are merged with thoughts during memory retrieval.
const ConversationMemoryImportance = 3
