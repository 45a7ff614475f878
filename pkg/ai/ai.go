// Package ai defines the model capabilities the consultation pipeline depends
// on and an OpenAI-backed implementation of them.
package ai

import (
	"context"
)

type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one entry of a chat history handed to a ChatModel.
type Message struct {
	Role    Role
	Content string
}

// ChatModel produces the next assistant message for a conversation.
// sessionKey correlates calls that belong to the same logical conversation.
type ChatModel interface {
	Complete(ctx context.Context, sessionKey string, messages []Message) (string, error)
}

// Transcriber turns an audio file on disk into text.
type Transcriber interface {
	Transcribe(ctx context.Context, audioPath string) (string, error)
}

// SpeechSynthesizer renders text as audio bytes (mp3).
type SpeechSynthesizer interface {
	Synthesize(ctx context.Context, text string) ([]byte, error)
}

// VisionModel answers a directive about a single image.
type VisionModel interface {
	Describe(ctx context.Context, sessionKey, directive string, image []byte, contentType string) (string, error)
}

// Provider bundles every capability.
type Provider interface {
	ChatModel
	Transcriber
	SpeechSynthesizer
	VisionModel
}
