package ai

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	openai "github.com/sashabaranov/go-openai"
)

type OpenAIConfig struct {
	APIKey          string
	BaseURL         string
	ChatModel       string
	VisionModel     string
	SpeechModel     string
	SpeechVoice     string
	TranscribeModel string
	Temperature     float32
}

// OpenAI implements Provider on the OpenAI API.
type OpenAI struct {
	client *openai.Client
	cfg    OpenAIConfig
}

func NewOpenAI(cfg OpenAIConfig) *OpenAI {
	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = cfg.BaseURL
	}
	if cfg.ChatModel == "" {
		cfg.ChatModel = "gpt-4o"
	}
	if cfg.VisionModel == "" {
		cfg.VisionModel = cfg.ChatModel
	}
	if cfg.TranscribeModel == "" {
		cfg.TranscribeModel = openai.Whisper1
	}
	if cfg.SpeechModel == "" {
		cfg.SpeechModel = string(openai.TTSModel1)
	}
	if cfg.SpeechVoice == "" {
		cfg.SpeechVoice = string(openai.VoiceNova)
	}
	return &OpenAI{client: openai.NewClientWithConfig(oc), cfg: cfg}
}

func (o *OpenAI) Complete(ctx context.Context, sessionKey string, messages []Message) (string, error) {
	oaMsgs := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, m := range messages {
		role := string(m.Role)
		if role != openai.ChatMessageRoleSystem && role != openai.ChatMessageRoleUser && role != openai.ChatMessageRoleAssistant {
			role = openai.ChatMessageRoleUser
		}
		oaMsgs = append(oaMsgs, openai.ChatCompletionMessage{Role: role, Content: m.Content})
	}

	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       o.cfg.ChatModel,
		Messages:    oaMsgs,
		Temperature: o.cfg.Temperature,
		User:        sessionKey,
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", nil
	}
	return resp.Choices[0].Message.Content, nil
}

func (o *OpenAI) Transcribe(ctx context.Context, audioPath string) (string, error) {
	resp, err := o.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    o.cfg.TranscribeModel,
		FilePath: audioPath,
	})
	if err != nil {
		return "", err
	}
	return resp.Text, nil
}

func (o *OpenAI) Synthesize(ctx context.Context, text string) ([]byte, error) {
	body, err := o.client.CreateSpeech(ctx, openai.CreateSpeechRequest{
		Model:          openai.SpeechModel(o.cfg.SpeechModel),
		Input:          text,
		Voice:          openai.SpeechVoice(o.cfg.SpeechVoice),
		ResponseFormat: openai.SpeechResponseFormatMp3,
	})
	if err != nil {
		return nil, err
	}
	defer body.Close()

	audio, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("failed to read speech body: %w", err)
	}
	return audio, nil
}

func (o *OpenAI) Describe(ctx context.Context, sessionKey, directive string, image []byte, contentType string) (string, error) {
	if len(image) == 0 {
		return "", errors.New("empty image")
	}
	if contentType == "" {
		contentType = "image/jpeg"
	}
	dataURL := fmt.Sprintf("data:%s;base64,%s", contentType, base64.StdEncoding.EncodeToString(image))

	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: o.cfg.VisionModel,
		Messages: []openai.ChatCompletionMessage{
			{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{Type: openai.ChatMessagePartTypeText, Text: directive},
					{Type: openai.ChatMessagePartTypeImageURL, ImageURL: &openai.ChatMessageImageURL{
						URL:    dataURL,
						Detail: openai.ImageURLDetailAuto,
					}},
				},
			},
		},
		Temperature: o.cfg.Temperature,
		User:        sessionKey,
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", nil
	}
	return resp.Choices[0].Message.Content, nil
}

var _ Provider = (*OpenAI)(nil)
