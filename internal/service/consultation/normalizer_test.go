package consultation

import (
	"context"
	"errors"
	"io"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/medicure-api/internal/model"
	apperrors "github.com/jwalitptl/medicure-api/pkg/errors"
	"github.com/jwalitptl/medicure-api/pkg/storage"
)

func TestSendVoice(t *testing.T) {
	h := newHarness(t)
	h.fake.ChatReplies = []string{"Is the pain constant?"}
	ctx := context.Background()

	res, err := h.svc.SendVoice(ctx, h.patientCaller(), h.appt.ID, strings.NewReader("webm-bytes"), "clip.webm")
	require.NoError(t, err)

	assert.Equal(t, h.fake.Transcript, res.TranscribedText)
	assert.Equal(t, model.OriginVoice, res.Exchange.PatientTurn.Origin)
	assert.Equal(t, h.fake.Transcript, res.Exchange.PatientTurn.Text)
	assert.Equal(t, "Is the pain constant?", res.Exchange.AITurn.Text)
	assert.Equal(t, []string{"Is the pain constant?"}, h.fake.SpeechInputs)

	require.True(t, strings.HasPrefix(res.AudioURL, "/api/files/reply_"))
	rc, info, err := h.media.Open(ctx, storedName(res.AudioURL))
	require.NoError(t, err)
	defer rc.Close()
	audio, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, h.fake.Speech, audio)
	assert.Equal(t, "audio/mpeg", info.ContentType)

	// the upload existed during transcription and is gone afterwards
	require.Len(t, h.fake.TranscribedFrom, 1)
	assert.True(t, h.fake.AudioExisted[0])
	assert.True(t, strings.HasSuffix(h.fake.TranscribedFrom[0], ".webm"))
	_, statErr := os.Stat(h.fake.TranscribedFrom[0])
	assert.True(t, errors.Is(statErr, os.ErrNotExist))
	assert.Empty(t, dirEntries(t, h.tempDir))
}

func TestSendVoiceSurvivesSpeechFailure(t *testing.T) {
	h := newHarness(t)
	h.fake.SpeechErr = errors.New("tts unavailable")

	res, err := h.svc.SendVoice(context.Background(), h.patientCaller(), h.appt.ID, strings.NewReader("x"), "clip.m4a")
	require.NoError(t, err)
	assert.Empty(t, res.AudioURL)
	assert.Len(t, h.transcript(t), 2)
}

func TestSendVoiceEmptyTranscription(t *testing.T) {
	h := newHarness(t)
	h.fake.Transcript = "  "

	_, err := h.svc.SendVoice(context.Background(), h.patientCaller(), h.appt.ID, strings.NewReader("x"), "clip.webm")
	assert.ErrorIs(t, err, apperrors.UpstreamError)
	assert.Empty(t, h.transcript(t))
	assert.Zero(t, h.fake.ChatCallCount())
	assert.Empty(t, dirEntries(t, h.tempDir))
}

func TestSendVoiceTranscriptionFailure(t *testing.T) {
	h := newHarness(t)
	h.fake.TranscribeErr = errors.New("whisper down")

	_, err := h.svc.SendVoice(context.Background(), h.patientCaller(), h.appt.ID, strings.NewReader("x"), "clip")
	assert.ErrorIs(t, err, apperrors.UpstreamError)
	assert.Empty(t, h.transcript(t))
	require.Len(t, h.fake.TranscribedFrom, 1)
	assert.True(t, strings.HasSuffix(h.fake.TranscribedFrom[0], ".webm"))
}

func TestSendVoiceChecksAccessBeforeTranscribing(t *testing.T) {
	h := newHarness(t)
	stranger := h.addUser(t, "Nosy Parker", model.RolePatient)

	_, err := h.svc.SendVoice(context.Background(), model.Caller{ID: stranger.ID, Role: model.RolePatient}, h.appt.ID, strings.NewReader("x"), "clip.webm")
	assert.ErrorIs(t, err, apperrors.ForbiddenError)
	assert.Empty(t, h.fake.TranscribedFrom)
}

func TestSpeakReplyStoreFailure(t *testing.T) {
	h := newHarness(t)
	h.svc.media = failingStore{}

	assert.Empty(t, h.svc.SpeakReply(context.Background(), "hello"))
}

func TestUploadImage(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	img := []byte("\x89PNG fake")

	res, err := h.svc.UploadImage(ctx, h.patientCaller(), h.appt.ID, img, "rash.png", "image/png")
	require.NoError(t, err)

	assert.Equal(t, h.fake.Analysis, res.Analysis)
	assert.True(t, strings.HasPrefix(res.ImageURL, "/api/files/image_"))
	assert.True(t, strings.HasSuffix(res.ImageURL, ".png"))

	require.Len(t, h.fake.VisionCalls, 1)
	call := h.fake.VisionCalls[0]
	assert.Equal(t, model.SessionKey(h.appt.ID, model.SessionVision), call.SessionKey)
	assert.NotEqual(t, model.SessionKey(h.appt.ID, model.SessionInterview), call.SessionKey)
	assert.Contains(t, call.Directive, "objectively")
	assert.Equal(t, img, call.Image)

	turns := h.transcript(t)
	require.Len(t, turns, 1)
	assert.Equal(t, model.SenderAI, turns[0].Sender)
	assert.Equal(t, model.OriginImage, turns[0].Origin)
	assert.Equal(t, h.fake.Analysis, turns[0].Text)
	require.NotNil(t, turns[0].MediaURL)
	assert.Equal(t, res.ImageURL, *turns[0].MediaURL)

	rc, _, err := h.media.Open(ctx, storedName(res.ImageURL))
	require.NoError(t, err)
	rc.Close()

	// image context reaches the interview with its provenance marked
	_, err = h.svc.SendMessage(ctx, h.patientCaller(), h.appt.ID, "it itches")
	require.NoError(t, err)
	msgs := h.fake.ChatCalls[0].Messages
	assert.Equal(t, imageMarker+h.fake.Analysis, msgs[1].Content)
}

func TestUploadImageRejectsNonImage(t *testing.T) {
	h := newHarness(t)

	_, err := h.svc.UploadImage(context.Background(), h.patientCaller(), h.appt.ID, []byte("%PDF"), "notes.pdf", "application/pdf")
	assert.ErrorIs(t, err, apperrors.BadRequestError)

	_, err = h.svc.UploadImage(context.Background(), h.patientCaller(), h.appt.ID, nil, "x.png", "image/png")
	assert.ErrorIs(t, err, apperrors.BadRequestError)
	assert.Empty(t, h.fake.VisionCalls)
}

func TestUploadImageInfersContentType(t *testing.T) {
	h := newHarness(t)

	_, err := h.svc.UploadImage(context.Background(), h.patientCaller(), h.appt.ID, []byte("jpeg"), "photo.JPG", "application/octet-stream")
	require.NoError(t, err)
}

func TestUploadImageVisionFailure(t *testing.T) {
	h := newHarness(t)
	h.fake.VisionErr = errors.New("vision timeout")

	_, err := h.svc.UploadImage(context.Background(), h.patientCaller(), h.appt.ID, []byte("png"), "rash.png", "image/png")
	assert.ErrorIs(t, err, apperrors.UpstreamError)
	assert.Empty(t, h.transcript(t))
	assert.Empty(t, dirEntries(t, h.mediaDir))
}

func TestUploadImageForbidden(t *testing.T) {
	h := newHarness(t)

	_, err := h.svc.UploadImage(context.Background(), h.doctorCaller(), h.appt.ID, []byte("png"), "rash.png", "image/png")
	assert.ErrorIs(t, err, apperrors.ForbiddenError)
	assert.Empty(t, h.fake.VisionCalls)
}

type failingStore struct{}

func (failingStore) Save(context.Context, string, io.Reader, int64, string) error {
	return errors.New("disk full")
}

func (failingStore) Open(context.Context, string) (io.ReadCloser, *storage.ObjectInfo, error) {
	return nil, nil, storage.ErrNotFound
}

func (failingStore) Delete(context.Context, string) error { return nil }
