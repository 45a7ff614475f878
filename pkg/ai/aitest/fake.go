// Package aitest provides a scriptable in-memory ai.Provider for tests.
package aitest

import (
	"context"
	"os"
	"sync"

	"github.com/jwalitptl/medicure-api/pkg/ai"
)

// ChatCall records one Complete invocation.
type ChatCall struct {
	SessionKey string
	Messages   []ai.Message
}

// VisionCall records one Describe invocation.
type VisionCall struct {
	SessionKey string
	Directive  string
	Image      []byte
}

// Fake answers from configured values and records every call.
type Fake struct {
	mu sync.Mutex

	ChatReplies []string // consumed in order; the last one repeats
	ChatErr     error

	Transcript    string
	TranscribeErr error

	Speech    []byte
	SpeechErr error

	Analysis  string
	VisionErr error

	ChatCalls       []ChatCall
	VisionCalls     []VisionCall
	TranscribedFrom []string
	// AudioExisted records whether the audio file was on disk during transcription.
	AudioExisted []bool
	SpeechInputs []string
}

func New() *Fake {
	return &Fake{
		ChatReplies: []string{"Can you tell me more about your symptoms?"},
		Transcript:  "I have had a headache for two days",
		Speech:      []byte("ID3-fake-mp3"),
		Analysis:    "A red, raised rash approximately 2cm across.",
	}
}

func (f *Fake) Complete(_ context.Context, sessionKey string, messages []ai.Message) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	cp := make([]ai.Message, len(messages))
	copy(cp, messages)
	f.ChatCalls = append(f.ChatCalls, ChatCall{SessionKey: sessionKey, Messages: cp})

	if f.ChatErr != nil {
		return "", f.ChatErr
	}
	if len(f.ChatReplies) == 0 {
		return "", nil
	}
	reply := f.ChatReplies[0]
	if len(f.ChatReplies) > 1 {
		f.ChatReplies = f.ChatReplies[1:]
	}
	return reply, nil
}

func (f *Fake) Transcribe(_ context.Context, audioPath string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	_, statErr := os.Stat(audioPath)
	f.TranscribedFrom = append(f.TranscribedFrom, audioPath)
	f.AudioExisted = append(f.AudioExisted, statErr == nil)
	if f.TranscribeErr != nil {
		return "", f.TranscribeErr
	}
	return f.Transcript, nil
}

func (f *Fake) Synthesize(_ context.Context, text string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.SpeechInputs = append(f.SpeechInputs, text)
	if f.SpeechErr != nil {
		return nil, f.SpeechErr
	}
	return f.Speech, nil
}

func (f *Fake) Describe(_ context.Context, sessionKey, directive string, image []byte, _ string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.VisionCalls = append(f.VisionCalls, VisionCall{SessionKey: sessionKey, Directive: directive, Image: image})
	if f.VisionErr != nil {
		return "", f.VisionErr
	}
	return f.Analysis, nil
}

// ChatCallCount is safe to call concurrently with the fake in use.
func (f *Fake) ChatCallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.ChatCalls)
}

var _ ai.Provider = (*Fake)(nil)
