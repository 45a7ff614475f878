package consultation

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/jwalitptl/medicure-api/internal/model"
	"github.com/jwalitptl/medicure-api/pkg/ai"
	apperrors "github.com/jwalitptl/medicure-api/pkg/errors"
	"github.com/jwalitptl/medicure-api/pkg/storage"
)

var audioExts = map[string]bool{
	".webm": true,
	".mp3":  true,
	".mp4":  true,
	".m4a":  true,
	".mpeg": true,
	".mpga": true,
	".wav":  true,
	".ogg":  true,
}

// VoiceResult is the outcome of a spoken patient turn.
type VoiceResult struct {
	TranscribedText string
	Exchange        *model.Exchange
	// AudioURL is empty when the reply could not be voiced.
	AudioURL string
}

// ImageResult is the outcome of an image upload.
type ImageResult struct {
	ImageURL string
	Analysis string
	Turn     *model.Turn
}

// NormalizeVoice transcribes an audio upload. The audio only lives on disk for
// the duration of the call; failing to remove it is logged, never returned.
func (s *Service) NormalizeVoice(ctx context.Context, audio io.Reader, filename string) (string, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	if !audioExts[ext] {
		ext = ".webm"
	}

	f, err := os.CreateTemp(s.cfg.TempDir, "voice-*"+ext)
	if err != nil {
		return "", apperrors.NewInternal(fmt.Errorf("failed to create temp audio file: %w", err))
	}
	path := f.Name()
	defer func() {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			s.logger.Warn(err, "failed to remove temp audio file", "path", path)
		}
	}()

	_, copyErr := io.Copy(f, audio)
	closeErr := f.Close()
	if copyErr != nil {
		return "", apperrors.NewBadRequest("failed to read audio", copyErr)
	}
	if closeErr != nil {
		return "", apperrors.NewInternal(fmt.Errorf("failed to write temp audio file: %w", closeErr))
	}

	text, err := s.model.Transcribe(ctx, path)
	if err != nil {
		return "", upstream(ai.OpTranscribe, err)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", apperrors.NewUpstream(ai.OpTranscribe, errors.New("empty transcription"))
	}
	return text, nil
}

// SendVoice transcribes the audio, runs it through the interview as a voice
// turn and voices the reply.
func (s *Service) SendVoice(ctx context.Context, caller model.Caller, appointmentID uuid.UUID, audio io.Reader, filename string) (*VoiceResult, error) {
	// checked again under the lock by AppendTurn
	appt, err := s.patientAppointment(ctx, caller, appointmentID)
	if err != nil {
		return nil, err
	}
	if err := requireOpen(appt); err != nil {
		return nil, err
	}

	text, err := s.NormalizeVoice(ctx, audio, filename)
	if err != nil {
		return nil, err
	}

	exchange, err := s.AppendTurn(ctx, caller, appointmentID, text, model.OriginVoice)
	if err != nil {
		return nil, err
	}

	return &VoiceResult{
		TranscribedText: text,
		Exchange:        exchange,
		AudioURL:        s.SpeakReply(ctx, exchange.AITurn.Text),
	}, nil
}

// SpeakReply stores a spoken version of text and returns its URL, or "" when
// synthesis or storage fails.
func (s *Service) SpeakReply(ctx context.Context, text string) string {
	audio, err := s.model.Synthesize(ctx, text)
	if err != nil {
		s.logger.Warn(err, "speech synthesis failed")
		return ""
	}

	name := storage.NewName("reply", "reply.mp3")
	if err := s.media.Save(ctx, name, bytes.NewReader(audio), int64(len(audio)), "audio/mpeg"); err != nil {
		s.logger.Warn(err, "failed to store synthesized speech")
		return ""
	}
	return s.mediaURL(name)
}

// UploadImage stores an image, has it described under the appointment's
// vision session and records the description as an image-origin AI turn.
func (s *Service) UploadImage(ctx context.Context, caller model.Caller, appointmentID uuid.UUID, image []byte, filename, contentType string) (*ImageResult, error) {
	if len(image) == 0 {
		return nil, apperrors.NewBadRequest("image is empty", nil)
	}
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = storage.ContentTypeFor(filename)
	}
	if !strings.HasPrefix(contentType, "image/") {
		return nil, apperrors.NewBadRequest("file must be an image", nil)
	}

	release, err := s.acquire(ctx, appointmentID)
	if err != nil {
		return nil, err
	}
	defer release()

	appt, err := s.patientAppointment(ctx, caller, appointmentID)
	if err != nil {
		return nil, err
	}
	if err := requireOpen(appt); err != nil {
		return nil, err
	}

	name := storage.NewName("image", filename)
	if err := s.media.Save(ctx, name, bytes.NewReader(image), int64(len(image)), contentType); err != nil {
		return nil, apperrors.NewInternal(fmt.Errorf("failed to store image: %w", err))
	}
	url := s.mediaURL(name)

	analysis, err := s.model.Describe(ctx, model.SessionKey(appointmentID, model.SessionVision), imageDirective, image, contentType)
	if err == nil && strings.TrimSpace(analysis) == "" {
		err = errors.New("empty analysis")
	}
	if err != nil {
		if delErr := s.media.Delete(ctx, name); delErr != nil {
			s.logger.Warn(delErr, "failed to remove unanalysed image", "file", name)
		}
		return nil, upstream(ai.OpVision, err)
	}
	analysis = strings.TrimSpace(analysis)

	ts, err := s.nextAfter(ctx, appointmentID)
	if err != nil {
		return nil, err
	}
	turn := &model.Turn{
		ID:            uuid.New(),
		AppointmentID: appointmentID,
		Sender:        model.SenderAI,
		Origin:        model.OriginImage,
		Text:          analysis,
		MediaURL:      &url,
		Timestamp:     ts,
	}
	if err := s.appendTurn(ctx, turn); err != nil {
		return nil, err
	}

	return &ImageResult{ImageURL: url, Analysis: analysis, Turn: turn}, nil
}
