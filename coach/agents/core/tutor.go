package core

import (
	"context"
	"errors"
	"strings"
	"time"

	"essaycoach/coach/agents/configs"
	"essaycoach/coach/services/export"
	"essaycoach/coach/services/llm"
	"essaycoach/coach/session"
	"essaycoach/coach/transcript"
	"essaycoach/coach/utils/apperr"
	"essaycoach/coach/utils/logging"
	"essaycoach/coach/utils/types"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

var ErrEmptyMessage = errors.New("message is empty")

// LogExporter publishes a full transcript as the user's chat log.
type LogExporter interface {
	Export(ctx context.Context, who types.Identity, turns []transcript.Turn) (*export.Result, error)
}

// ExportRecorder keeps a history of published chat logs.
type ExportRecorder interface {
	RecordExport(ctx context.Context, who types.Identity, sessionID string, res *export.Result) error
}

// Outcome is the result of one interaction. Turns holds what the interaction
// appended: the user turn, and the assistant turn when the backend answered.
// Err is set when the backend failed; ExportErr when the reply arrived but
// the chat log could not be published.
type Outcome struct {
	SessionID string
	Turns     []transcript.Turn
	Export    *export.Result
	ExportErr error
	Err       error
}

// Tutor drives tutoring conversations: it seeds sessions with the profile,
// relays each user message to the backend and keeps the chat log current.
type Tutor struct {
	llm       llm.Client
	exporter  LogExporter
	recorder  ExportRecorder
	profile   *configs.TutorProfile
	annotator *transcript.Annotator
	sessions  *session.Manager

	tracer         trace.Tracer
	backendLatency metric.Float64Histogram
	responseTime   metric.Int64Histogram
}

func NewTutor(client llm.Client, exporter LogExporter, profile *configs.TutorProfile, annotator *transcript.Annotator, sessions *session.Manager) *Tutor {
	t := &Tutor{
		llm:       client,
		exporter:  exporter,
		profile:   profile,
		annotator: annotator,
		sessions:  sessions,
		tracer:    otel.Tracer("essaycoach/tutor"),
	}
	meter := otel.Meter("essaycoach/tutor")
	if h, err := meter.Float64Histogram(
		"tutor.backend.duration",
		metric.WithDescription("Backend completion duration in milliseconds"),
	); err == nil {
		t.backendLatency = h
	}
	if h, err := meter.Int64Histogram(
		"tutor.user.response_time",
		metric.WithDescription("Seconds the user took to answer the tutor"),
		metric.WithUnit("s"),
	); err == nil {
		t.responseTime = h
	}
	return t
}

// WithRecorder makes every successful export also land in rec.
func (t *Tutor) WithRecorder(rec ExportRecorder) *Tutor {
	t.recorder = rec
	return t
}

func (t *Tutor) Sessions() *session.Manager {
	return t.sessions
}

// Begin opens a session for an authenticated identity, seeded with the
// system instruction and greeting, and publishes the initial chat log.
// A failed initial export does not prevent the session from starting.
func (t *Tutor) Begin(ctx context.Context, who types.Identity) (*session.Session, *Outcome, error) {
	seed := []transcript.Turn{
		t.annotator.NewTurn(transcript.RoleSystem, t.profile.SystemPrompt),
		t.annotator.NewTurn(transcript.RoleAssistant, t.profile.Greeting),
	}
	sess, err := t.sessions.Open(ctx, who, seed)
	if err != nil {
		return nil, nil, err
	}
	out := &Outcome{SessionID: sess.ID, Turns: seed[1:]}
	t.export(ctx, sess, seed, out)
	return sess, out, nil
}

// Submit starts one interaction and returns at once. The channel yields
// exactly one Outcome and is then closed; until it does the caller should
// show the reply as pending. Cancelling ctx aborts the backend call.
// Interactions on one session run one at a time in submission order.
func (t *Tutor) Submit(ctx context.Context, sessionID, uid, text string) <-chan Outcome {
	ch := make(chan Outcome, 1)
	go func() {
		defer close(ch)
		ch <- t.interact(ctx, sessionID, uid, text)
	}()
	return ch
}

// Converse is Submit for callers that want to block.
func (t *Tutor) Converse(ctx context.Context, sessionID, uid, text string) Outcome {
	return <-t.Submit(ctx, sessionID, uid, text)
}

func (t *Tutor) interact(ctx context.Context, sessionID, uid, text string) Outcome {
	ctx, span := t.tracer.Start(ctx, "tutor.interact", trace.WithAttributes(attribute.String("session_id", sessionID)))
	defer span.End()

	out := Outcome{SessionID: sessionID}
	if strings.TrimSpace(text) == "" {
		out.Err = ErrEmptyMessage
		return out
	}
	sess, err := t.sessions.Get(sessionID, uid)
	if err != nil {
		out.Err = err
		return out
	}

	err = sess.Do(func(tr *transcript.Transcript) error {
		user := t.annotator.NewTurn(transcript.RoleUser, text)
		if err := tr.Append(user); err != nil {
			return err
		}
		out.Turns = append(out.Turns, user)
		t.recordResponseTime(ctx, tr.Turns())

		reply, err := t.complete(ctx, tr.Turns())
		if err != nil {
			// the user turn stays; the next export still carries it
			return apperr.Backend("complete", err)
		}
		assistant := t.annotator.NewTurn(transcript.RoleAssistant, reply)
		if err := tr.Append(assistant); err != nil {
			return err
		}
		out.Turns = append(out.Turns, assistant)
		t.export(ctx, sess, tr.Turns(), &out)
		return nil
	})
	if err != nil {
		if errors.Is(err, session.ErrNotActive) {
			err = apperr.Session("interact", err)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		out.Err = err
	}
	return out
}

func (t *Tutor) complete(ctx context.Context, turns []transcript.Turn) (string, error) {
	ctx, span := t.tracer.Start(ctx, "tutor.backend_call")
	defer span.End()
	defer logging.LogDuration(ctx, "backend_completion")()

	msgs := make([]llm.Message, len(turns))
	for i, turn := range turns {
		msgs[i] = llm.Message{Role: string(turn.Role), Content: turn.Content}
	}
	m := t.profile.Model
	start := time.Now()
	reply, err := t.llm.Complete(ctx, msgs, llm.Params{
		Model:            m.Name,
		Temperature:      m.Temperature,
		PresencePenalty:  m.PresencePenalty,
		FrequencyPenalty: m.FrequencyPenalty,
		MaxTokens:        m.MaxTokens,
	})
	if t.backendLatency != nil {
		t.backendLatency.Record(ctx, float64(time.Since(start).Milliseconds()))
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		logging.ErrorLogger.Error("backend completion failed", zap.Error(err))
		return "", err
	}
	return reply, nil
}

// export publishes turns and fills the export fields of out. Failures are
// reported through out, never returned: the interaction itself succeeded.
func (t *Tutor) export(ctx context.Context, sess *session.Session, turns []transcript.Turn, out *Outcome) {
	ctx, span := t.tracer.Start(ctx, "tutor.export")
	defer span.End()

	who := sess.Identity()
	res, err := t.exporter.Export(ctx, who, turns)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		out.ExportErr = err
		return
	}
	span.SetAttributes(attribute.String("object_key", res.ObjectKey), attribute.Int("rows", res.Rows))
	out.Export = res

	if t.recorder == nil {
		return
	}
	if err := t.recorder.RecordExport(ctx, who, sess.ID, res); err != nil {
		logging.ErrorLogger.Error("export history write failed",
			zap.String("session_id", sess.ID),
			zap.String("key", res.ObjectKey),
			zap.Error(err),
		)
	}
}

// recordResponseTime feeds the latest user response time to the histogram.
func (t *Tutor) recordResponseTime(ctx context.Context, turns []transcript.Turn) {
	if t.responseTime == nil {
		return
	}
	timed, err := transcript.ResponseTimes(transcript.WithoutSystem(turns), t.annotator.Location())
	if err != nil || len(timed) == 0 {
		return
	}
	last := timed[len(timed)-1]
	if last.HasResponseTime {
		t.responseTime.Record(ctx, last.ResponseSeconds)
	}
}

// Transcript returns the visible turns of a live session.
func (t *Tutor) Transcript(sessionID, uid string) ([]transcript.Turn, error) {
	sess, err := t.sessions.Get(sessionID, uid)
	if err != nil {
		return nil, err
	}
	var turns []transcript.Turn
	err = sess.Do(func(tr *transcript.Transcript) error {
		turns = tr.Visible()
		return nil
	})
	if err != nil {
		return nil, apperr.Session("transcript", err)
	}
	return turns, nil
}

// End logs the session out. Its keep-alive task has stopped when End returns.
func (t *Tutor) End(ctx context.Context, sessionID, uid string) error {
	return t.sessions.End(ctx, sessionID, uid)
}
