package router

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	authhandler "github.com/jwalitptl/medicure-api/internal/handler/auth"
	chathandler "github.com/jwalitptl/medicure-api/internal/handler/chat"
	doctorhandler "github.com/jwalitptl/medicure-api/internal/handler/doctor"
	fileshandler "github.com/jwalitptl/medicure-api/internal/handler/files"
	healthhandler "github.com/jwalitptl/medicure-api/internal/handler/health"
	patienthandler "github.com/jwalitptl/medicure-api/internal/handler/patient"
	"github.com/jwalitptl/medicure-api/internal/middleware"
	"github.com/jwalitptl/medicure-api/internal/repository/memory"
	"github.com/jwalitptl/medicure-api/internal/service/appointment"
	authsvc "github.com/jwalitptl/medicure-api/internal/service/auth"
	"github.com/jwalitptl/medicure-api/internal/service/consultation"
	"github.com/jwalitptl/medicure-api/internal/service/doctor"
	"github.com/jwalitptl/medicure-api/internal/service/report"
	"github.com/jwalitptl/medicure-api/pkg/ai/aitest"
	"github.com/jwalitptl/medicure-api/pkg/auth"
	"github.com/jwalitptl/medicure-api/pkg/lock"
	"github.com/jwalitptl/medicure-api/pkg/metrics"
	"github.com/jwalitptl/medicure-api/pkg/security"
	"github.com/jwalitptl/medicure-api/pkg/storage"
)

type envelope struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type app struct {
	t      *testing.T
	engine *gin.Engine
	fake   *aitest.Fake
}

func newApp(t *testing.T) *app {
	t.Helper()

	users := memory.NewUserRepository()
	appts := memory.NewAppointmentRepository()
	turns := memory.NewTranscriptRepository()
	sums := memory.NewSummaryRepository()
	media, err := storage.NewLocalStore(t.TempDir())
	require.NoError(t, err)

	reg := prometheus.NewRegistry()
	m := metrics.NewMetrics("medicure", reg)
	fake := aitest.New()
	locker := lock.NewLocal()

	authService := authsvc.NewService(users, auth.NewJWTService("test-secret", "medicure-test", time.Hour), security.NewBcryptHasher(4))
	consult := consultation.NewService(consultation.Dependencies{
		Appointments: appts,
		Transcripts:  turns,
		Summaries:    sums,
		Users:        users,
		Model:        fake,
		Media:        media,
		Locker:       locker,
		Metrics:      m,
	}, consultation.Config{TempDir: t.TempDir(), PublicBaseURL: "/api/files"})

	r := NewRouter(middleware.NewAuthMiddleware(authService), Handlers{
		Auth:    authhandler.NewHandler(authService),
		Patient: patienthandler.NewHandler(appointment.NewService(appts, users, locker)),
		Chat:    chathandler.NewHandler(consult, 1<<20),
		Doctor:  doctorhandler.NewHandler(doctor.NewService(appts, sums, users, doctor.DefaultConfig(), nil), consult, report.NewService(consult)),
		Files:   fileshandler.NewHandler(media),
		Health:  healthhandler.NewHandler(nil),
	}, m, RouterConfig{
		Mode:       gin.TestMode,
		CORSConfig: middleware.DefaultCORSConfig(),
		SizeLimit:  middleware.DefaultSizeLimitConfig(),
		Gatherer:   reg,
		Logger:     zerolog.Nop(),
	})

	return &app{t: t, engine: r.Engine(), fake: fake}
}

func (a *app) do(method, path, token string, body interface{}) (*httptest.ResponseRecorder, envelope) {
	a.t.Helper()
	var rd *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(a.t, err)
		rd = bytes.NewReader(raw)
	} else {
		rd = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, rd)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return a.send(req, token)
}

func (a *app) send(req *http.Request, token string) (*httptest.ResponseRecorder, envelope) {
	a.t.Helper()
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	a.engine.ServeHTTP(w, req)

	var env envelope
	if strings.HasPrefix(w.Header().Get("Content-Type"), "application/json") {
		require.NoError(a.t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	}
	return w, env
}

func (a *app) multipart(path, token, appointmentID, field, filename, contentType string, content []byte) (*httptest.ResponseRecorder, envelope) {
	a.t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(a.t, mw.WriteField("appointment_id", appointmentID))
	h := make(map[string][]string)
	h["Content-Disposition"] = []string{`form-data; name="` + field + `"; filename="` + filename + `"`}
	h["Content-Type"] = []string{contentType}
	part, err := mw.CreatePart(h)
	require.NoError(a.t, err)
	_, err = part.Write(content)
	require.NoError(a.t, err)
	require.NoError(a.t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return a.send(req, token)
}

type authData struct {
	Token string `json:"token"`
	User  struct {
		ID string `json:"id"`
	} `json:"user"`
}

func (a *app) signup(name, email, role, spec string) authData {
	a.t.Helper()
	body := map[string]string{
		"name":     name,
		"email":    email,
		"password": "correct-horse",
		"role":     role,
		"region":   "north",
	}
	if spec != "" {
		body["specialization"] = spec
	}
	w, env := a.do(http.MethodPost, "/api/auth/signup", "", body)
	require.Equal(a.t, http.StatusCreated, w.Code, w.Body.String())
	var res authData
	require.NoError(a.t, json.Unmarshal(env.Data, &res))
	return res
}

func decode(t *testing.T, env envelope, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(env.Data, v))
}

func TestConsultationFlow(t *testing.T) {
	a := newApp(t)
	patient := a.signup("Pat", "pat@example.com", "patient", "")
	other := a.signup("Other", "other@example.com", "patient", "")
	doc := a.signup("Dr Who", "who@example.com", "doctor", "General Practice")
	otherDoc := a.signup("Dr No", "no@example.com", "doctor", "Dermatology")

	// login and me
	w, env := a.do(http.MethodPost, "/api/auth/login", "", map[string]string{"email": "PAT@example.com", "password": "correct-horse"})
	require.Equal(t, http.StatusOK, w.Code)
	w, env = a.do(http.MethodGet, "/api/auth/me", patient.Token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, string(env.Data), `"pat@example.com"`)

	// directory and booking
	w, env = a.do(http.MethodGet, "/api/patient/doctors", patient.Token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var doctors []map[string]interface{}
	decode(t, env, &doctors)
	assert.Len(t, doctors, 2)

	w, env = a.do(http.MethodPost, "/api/patient/book", patient.Token, map[string]interface{}{
		"doctor_id": doc.User.ID,
		"slot":      time.Now().Add(24 * time.Hour).Format(time.RFC3339),
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var apt struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}
	decode(t, env, &apt)
	assert.Equal(t, "booked", apt.Status)

	w, _ = a.do(http.MethodGet, "/api/patient/doctors", doc.Token, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	// typed turn
	w, env = a.do(http.MethodPost, "/api/chat/message", patient.Token, map[string]string{"appointment_id": apt.ID, "message": "I have a rash"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var msg map[string]string
	decode(t, env, &msg)
	assert.Equal(t, "I have a rash", msg["patient_message"])
	assert.NotEmpty(t, msg["ai_response"])

	// foreign patients cannot tell the appointment exists
	w, env = a.do(http.MethodPost, "/api/chat/message", other.Token, map[string]string{"appointment_id": apt.ID, "message": "hi"})
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "error", env.Status)

	w, _ = a.do(http.MethodPost, "/api/chat/message", doc.Token, map[string]string{"appointment_id": apt.ID, "message": "hi"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w, _ = a.do(http.MethodPost, "/api/chat/message", patient.Token, map[string]string{"appointment_id": apt.ID})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// voice turn
	w, env = a.multipart("/api/chat/voice", patient.Token, apt.ID, "audio", "clip.webm", "audio/webm", []byte("webm-bytes"))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var voice map[string]string
	decode(t, env, &voice)
	assert.Equal(t, a.fake.Transcript, voice["transcribed_text"])
	require.True(t, strings.HasPrefix(voice["audio_url"], "/api/files/reply_"))

	w, _ = a.send(httptest.NewRequest(http.MethodGet, voice["audio_url"], nil), "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "audio/mpeg", w.Header().Get("Content-Type"))

	// image turn
	w, env = a.multipart("/api/chat/upload", patient.Token, apt.ID, "image", "rash.png", "image/png", []byte("\x89PNG\r\n\x1a\nrest"))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var img map[string]string
	decode(t, env, &img)
	assert.Equal(t, a.fake.Analysis, img["analysis"])

	w, _ = a.multipart("/api/chat/upload", patient.Token, apt.ID, "image", "notes.txt", "text/plain", []byte("hello"))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// history is visible to the doctor of record
	w, env = a.do(http.MethodGet, "/api/chat/history/"+apt.ID, doc.Token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var turns []map[string]interface{}
	decode(t, env, &turns)
	assert.Len(t, turns, 5)

	// end, twice
	a.fake.ChatReplies = []string{`{"symptoms":["rash"],"summary_text":"Itchy rash for a week."}`}
	w, env = a.do(http.MethodPost, "/api/chat/end?appointment_id="+apt.ID, patient.Token, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var summary struct {
		ID          string   `json:"id"`
		SummaryText string   `json:"summary_text"`
		Images      []string `json:"images"`
		ParseStatus string   `json:"parse_status"`
	}
	decode(t, env, &summary)
	assert.Equal(t, "Itchy rash for a week.", summary.SummaryText)
	assert.Equal(t, []string{img["image_url"]}, summary.Images)
	assert.Equal(t, "parsed", summary.ParseStatus)

	w, env = a.do(http.MethodPost, "/api/chat/end", patient.Token, map[string]string{"appointment_id": apt.ID})
	require.Equal(t, http.StatusOK, w.Code)
	var again struct {
		ID string `json:"id"`
	}
	decode(t, env, &again)
	assert.Equal(t, summary.ID, again.ID)

	w, _ = a.do(http.MethodPost, "/api/chat/message", patient.Token, map[string]string{"appointment_id": apt.ID, "message": "one more thing"})
	assert.Equal(t, http.StatusConflict, w.Code)

	// doctor views
	w, env = a.do(http.MethodGet, "/api/doctor/appointments", doc.Token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var dash []struct {
		Status  string `json:"status"`
		Patient struct {
			Name string `json:"name"`
		} `json:"patient"`
		Summary *struct {
			ID string `json:"id"`
		} `json:"summary"`
	}
	decode(t, env, &dash)
	require.Len(t, dash, 1)
	assert.Equal(t, "completed", dash[0].Status)
	assert.Equal(t, "Pat", dash[0].Patient.Name)
	require.NotNil(t, dash[0].Summary)
	assert.Equal(t, summary.ID, dash[0].Summary.ID)

	w, env = a.do(http.MethodGet, "/api/doctor/summary/"+summary.ID, doc.Token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, string(env.Data), `"patient"`)

	w, _ = a.do(http.MethodGet, "/api/doctor/summary/"+summary.ID, otherDoc.Token, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w, _ = a.do(http.MethodGet, "/api/doctor/summary/"+summary.ID+"/pdf", doc.Token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
	assert.True(t, bytes.HasPrefix(w.Body.Bytes(), []byte("%PDF-")))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "summary_"+apt.ID+".pdf")
}

func TestAuthErrors(t *testing.T) {
	a := newApp(t)
	a.signup("Pat", "pat@example.com", "patient", "")

	w, _ := a.do(http.MethodPost, "/api/auth/signup", "", map[string]string{
		"name": "Pat", "email": "pat@example.com", "password": "correct-horse", "role": "patient", "region": "north",
	})
	assert.Equal(t, http.StatusConflict, w.Code)

	w, env := a.do(http.MethodPost, "/api/auth/signup", "", map[string]string{
		"name": "Doc", "email": "doc@example.com", "password": "correct-horse", "role": "doctor", "region": "north",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, env.Message, "specialization")

	w, _ = a.do(http.MethodPost, "/api/auth/signup", "", map[string]string{
		"name": "X", "email": "x@example.com", "password": "correct-horse", "role": "admin", "region": "north",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = a.do(http.MethodPost, "/api/auth/login", "", map[string]string{"email": "pat@example.com", "password": "wrong-password"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w, _ = a.do(http.MethodGet, "/api/auth/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestPublicEndpoints(t *testing.T) {
	a := newApp(t)

	w, _ := a.send(httptest.NewRequest(http.MethodGet, "/api/files/reply_missing.mp3", nil), "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, _ = a.send(httptest.NewRequest(http.MethodGet, "/api/health/live", nil), "")
	assert.Equal(t, http.StatusOK, w.Code)
	w, _ = a.send(httptest.NewRequest(http.MethodGet, "/api/health/ready", nil), "")
	assert.Equal(t, http.StatusOK, w.Code)

	w, _ = a.send(httptest.NewRequest(http.MethodGet, "/metrics", nil), "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "medicure_http_requests_total")
}
