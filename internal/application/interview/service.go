package interview

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/genintake/backend/internal/application/knowledge"
	"github.com/genintake/backend/internal/domain/assessment"
	"github.com/genintake/backend/internal/domain/shared"
	"github.com/genintake/backend/internal/infrastructure/llm"
	"github.com/genintake/backend/internal/infrastructure/telemetry"
)

const (
	defaultHistoryLimit    = 12
	defaultLockTTL         = 90 * time.Second
	defaultAnalysisTimeout = 15 * time.Second
	lockReleaseTimeout     = 5 * time.Second
)

// Abandon reasons recorded on sessions closed by limits
const (
	AbandonReasonTurnLimit = "turn_limit_reached"
	AbandonReasonExpired   = "session_expired"
)

// ContextRetriever supplies guideline excerpts for a turn. Retrieval
// never fails; a degraded lookup yields no excerpts.
type ContextRetriever interface {
	Retrieve(ctx context.Context, query, specialty string, k int) []knowledge.RetrievedChunk
}

var _ ContextRetriever = (*knowledge.RetrieverService)(nil)

// ServiceConfig wires the interview service dependencies
type ServiceConfig struct {
	Sessions    assessment.SessionRepository
	Protocols   assessment.ProtocolProvider
	Coordinator *Coordinator
	Retriever   ContextRetriever
	Gateway     *llm.Gateway
	Extractor   assessment.Extractor
	TurnLock    shared.TurnLock
	Logger      *zap.Logger
	// HistoryLimit bounds how much transcript replays into the prompt
	HistoryLimit int
	// LockTTL reclaims the per-session lock after a crashed turn
	LockTTL time.Duration
	// AnalysisTimeout bounds post-reply extraction and persistence
	AnalysisTimeout time.Duration
}

// Service orchestrates interview turns: transcript, retrieval, model
// reply, fact extraction, criteria evaluation and persistence.
type Service struct {
	sessions        assessment.SessionRepository
	protocols       assessment.ProtocolProvider
	coordinator     *Coordinator
	retriever       ContextRetriever
	gateway         *llm.Gateway
	extractor       assessment.Extractor
	turnLock        shared.TurnLock
	logger          *zap.Logger
	metrics         *telemetry.InterviewMetrics
	historyLimit    int
	lockTTL         time.Duration
	analysisTimeout time.Duration
}

// SetInterviewMetrics sets the interview metrics collector
func (s *Service) SetInterviewMetrics(im *telemetry.InterviewMetrics) {
	s.metrics = im
}

// NewService creates a new interview service
func NewService(config ServiceConfig) *Service {
	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	historyLimit := config.HistoryLimit
	if historyLimit <= 0 {
		historyLimit = defaultHistoryLimit
	}
	lockTTL := config.LockTTL
	if lockTTL <= 0 {
		lockTTL = defaultLockTTL
	}
	analysisTimeout := config.AnalysisTimeout
	if analysisTimeout <= 0 {
		analysisTimeout = defaultAnalysisTimeout
	}
	return &Service{
		sessions:        config.Sessions,
		protocols:       config.Protocols,
		coordinator:     config.Coordinator,
		retriever:       config.Retriever,
		gateway:         config.Gateway,
		extractor:       config.Extractor,
		turnLock:        config.TurnLock,
		logger:          logger,
		historyLimit:    historyLimit,
		lockTTL:         lockTTL,
		analysisTimeout: analysisTimeout,
	}
}

// StartSession opens an interview session and returns the protocol's
// first opening question as the first assistant message.
func (s *Service) StartSession(ctx context.Context, req StartSessionRequest) (resp *SessionStartedResponse, err error) {
	ctx, span := telemetry.StartSpan(ctx, "interview.start_session",
		telemetry.WithAttribute(telemetry.SpanAttrSubjectID, req.SubjectID))
	defer func() {
		telemetry.RecordError(span, err)
		span.End()
	}()

	protocol, err := s.protocols.ForSpecialty(ctx, req.Specialty)
	if err != nil {
		return nil, err
	}
	telemetry.SetAttributes(span, telemetry.SpanAttrSpecialty, protocol.Specialty)

	session, err := assessment.NewChatSession(req.SubjectID, protocol.Specialty, protocol.ID, protocol.MaxTurns, protocol.MaxSessionDuration)
	if err != nil {
		return nil, err
	}

	opening, _ := protocol.OpeningQuestion(0)
	if _, err := session.AppendAssistantReply(opening); err != nil {
		return nil, err
	}

	if err := s.coordinator.CreateSession(ctx, session); err != nil {
		return nil, err
	}

	s.logger.Info("interview session started",
		zap.String("session_id", session.ID.String()),
		zap.String("subject_id", session.SubjectID.String()),
		zap.String("specialty", session.Specialty),
		zap.String("protocol_id", session.ProtocolID))

	return &SessionStartedResponse{
		SessionID:       session.ID,
		Specialty:       session.Specialty,
		ProtocolID:      session.ProtocolID,
		OpeningQuestion: opening,
		SessionStatus:   session.Status.String(),
		ExpiresAt:       session.ExpiresAt,
	}, nil
}

// SubmitTurn processes one interview turn: append the utterance, retrieve
// guideline context, generate the reply (scripted when the model is
// degraded), extract and merge facts, evaluate criteria, decide the
// transition and persist. Completion wins over limits; limits abandon the
// session with its last verdict retained.
func (s *Service) SubmitTurn(ctx context.Context, sessionID uuid.UUID, utterance string) (resp *TurnResponse, err error) {
	if sessionID == uuid.Nil {
		return nil, shared.ErrInvalidInput
	}
	if strings.TrimSpace(utterance) == "" {
		return nil, shared.NewDomainError("EMPTY_UTTERANCE", "Utterance cannot be empty")
	}

	ctx, span := telemetry.StartSpan(ctx, "interview.submit_turn",
		telemetry.WithAttribute(telemetry.SpanAttrSessionID, sessionID.String()))
	defer func() {
		telemetry.RecordError(span, err)
		span.End()
	}()

	turnStart := time.Now()

	acquired, err := s.turnLock.Acquire(ctx, sessionID.String(), s.lockTTL)
	if err != nil {
		return nil, fmt.Errorf("acquire turn lock: %w", err)
	}
	if !acquired {
		return nil, shared.ErrTurnInProgress
	}
	defer s.releaseLock(sessionID)

	session, err := s.sessions.FindByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	protocol, err := s.protocols.Get(ctx, session.ProtocolID)
	if err != nil {
		return nil, fmt.Errorf("load protocol %s: %w", session.ProtocolID, err)
	}

	// The utterance joins the transcript and opens the turn. Terminal
	// sessions are rejected here, untouched.
	utteranceMsg, err := session.AppendSubjectUtterance(utterance)
	if err != nil {
		return nil, err
	}

	// Guideline context and the most valuable fact still unknown.
	target, hasTarget := protocol.NextTarget(session.Facts)
	retrieved := s.retriever.Retrieve(ctx, retrievalQuery(utterance, session.Facts), session.Specialty, protocol.RetrievalK)

	if err := session.BeginReply(); err != nil {
		return nil, err
	}
	reply, scripted := s.generateReply(ctx, session, protocol, knowledge.Excerpts(retrieved), utterance, target, hasTarget)

	replyMsg, err := session.AppendAssistantReply(reply)
	if err != nil {
		return nil, err
	}

	// The reply is paid for. From here the turn runs detached from the
	// caller's cancellation so committed evidence cannot be discarded.
	turnCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.analysisTimeout)
	defer cancel()

	if err := session.BeginAnalysis(); err != nil {
		return nil, err
	}

	// Extraction dominates turn cost, so it runs under its own
	// profiling labels.
	telemetry.WithProfilingLabels(turnCtx, telemetry.OperationLabels("analyze_turn", map[string]string{
		telemetry.ProfilingLabelSpecialty: session.Specialty,
	}), func(ctx context.Context) {
		s.extractAndMerge(ctx, session, utteranceMsg, replyMsg)
	})

	verdict, err := s.evaluate(protocol, session)
	if err != nil {
		return nil, err
	}

	switch {
	case verdict.MeetsCriteria:
		// The interview is over; close with the protocol's statement
		// rather than the model's next question.
		if closing := protocol.ClosingStatement; closing != "" {
			if msg, appendErr := session.AppendAssistantReply(closing); appendErr == nil {
				reply = msg.Text
			}
		}
		if err := session.Complete(verdict); err != nil {
			return nil, err
		}
	case session.LimitsReached(time.Now()):
		if err := session.RecordVerdict(verdict); err != nil {
			return nil, err
		}
		if err := session.Abandon(abandonReasonFor(session)); err != nil {
			return nil, err
		}
	default:
		if err := session.RecordVerdict(verdict); err != nil {
			return nil, err
		}
		if err := session.ResumeActive(); err != nil {
			return nil, err
		}
	}

	if err := s.coordinator.CommitTurn(turnCtx, session); err != nil {
		return nil, err
	}

	var verdictOut *VerdictResponse
	if session.Status.IsTerminal() && session.LastVerdict != nil {
		s.coordinator.ProjectVerdict(turnCtx, session, session.LastVerdict)
		verdictOut = NewVerdictResponse(session.LastVerdict)
		telemetry.AddEvent(turnCtx, "verdict_reached",
			telemetry.SpanAttrRiskCategory, session.LastVerdict.RiskCategory,
			telemetry.SpanAttrMeetsCriteria, session.LastVerdict.MeetsCriteria)
	}

	telemetry.SetAttributes(span,
		telemetry.SpanAttrSpecialty, session.Specialty,
		telemetry.SpanAttrTurnCount, session.TurnCount,
		telemetry.SpanAttrSessionStatus, session.Status.String(),
		telemetry.SpanAttrMeetsCriteria, verdict.MeetsCriteria,
		telemetry.SpanAttrDegraded, scripted,
		telemetry.SpanAttrRetrievedChunks, len(retrieved))

	if s.metrics != nil {
		s.metrics.RecordTurn(turnCtx, session.Specialty, scripted, time.Since(turnStart))
	}

	s.logger.Info("turn processed",
		zap.String("session_id", session.ID.String()),
		zap.Int("turn", session.TurnCount),
		zap.String("status", session.Status.String()),
		zap.Bool("meets_criteria", verdict.MeetsCriteria),
		zap.String("trace_id", telemetry.GetTraceID(ctx)))

	return &TurnResponse{
		SessionID:     session.ID,
		Reply:         reply,
		Verdict:       verdictOut,
		SessionStatus: session.Status.String(),
		TurnCount:     session.TurnCount,
	}, nil
}

// GetAssessment returns the latest verdict for a session. While the
// session is not terminal a later turn may supersede it.
func (s *Service) GetAssessment(ctx context.Context, sessionID uuid.UUID) (*VerdictResponse, error) {
	if sessionID == uuid.Nil {
		return nil, shared.ErrInvalidInput
	}

	if verdict, ok := s.coordinator.CachedVerdict(ctx, sessionID); ok {
		telemetry.AddEvent(ctx, "verdict_cache_hit",
			telemetry.SpanAttrSessionID, sessionID.String())
		return NewVerdictResponse(verdict), nil
	}

	session, err := s.sessions.FindByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.LastVerdict == nil {
		return nil, shared.ErrNotFound
	}
	return NewVerdictResponse(session.LastVerdict), nil
}

// AbandonIdleSessions closes sessions whose wall-clock limit elapsed
// between turns, keeping their last verdict for audit. Sessions whose
// lock is held are skipped; the live turn sees the limit itself.
func (s *Service) AbandonIdleSessions(ctx context.Context, batch int) (closed int, err error) {
	ctx, span := telemetry.StartSpan(ctx, "interview.abandon_idle")
	defer func() {
		telemetry.RecordError(span, err)
		span.End()
	}()

	expired, err := s.sessions.FindExpired(ctx, time.Now(), batch)
	if err != nil {
		return 0, fmt.Errorf("find expired sessions: %w", err)
	}

	for _, session := range expired {
		acquired, err := s.turnLock.Acquire(ctx, session.ID.String(), s.lockTTL)
		if err != nil || !acquired {
			continue
		}
		if err := s.abandonExpired(ctx, session); err != nil {
			if errors.Is(err, shared.ErrConcurrencyConflict) {
				// A turn committed between FindExpired and the lock;
				// the next sweep sees the session's real state.
				s.logger.Debug("idle session advanced under the sweep",
					zap.String("session_id", session.ID.String()))
			} else {
				s.logger.Error("idle session abandon failed",
					zap.String("session_id", session.ID.String()),
					zap.Error(err))
			}
		} else {
			closed++
		}
		s.releaseLock(session.ID)
	}

	telemetry.SetAttributes(span, "expired_found", len(expired), "sessions_closed", closed)
	return closed, nil
}

func (s *Service) abandonExpired(ctx context.Context, session *assessment.ChatSession) error {
	if err := session.Abandon(AbandonReasonExpired); err != nil {
		return err
	}
	if err := s.coordinator.CommitTurn(ctx, session); err != nil {
		return err
	}
	if session.LastVerdict != nil {
		s.coordinator.ProjectVerdict(ctx, session, session.LastVerdict)
	}
	s.logger.Info("idle session abandoned",
		zap.String("session_id", session.ID.String()),
		zap.Int("turns", session.TurnCount))
	return nil
}

// generateReply asks the model for the next interview reply. Degradation
// or failure substitutes the protocol's scripted question; a turn never
// fails because the model did. The second return reports whether the
// reply came from the script instead of the model.
func (s *Service) generateReply(ctx context.Context, session *assessment.ChatSession, protocol *assessment.InterviewProtocol, excerpts []string, utterance string, target assessment.FactKey, hasTarget bool) (string, bool) {
	targetQuestion := ""
	if hasTarget {
		targetQuestion = protocol.FollowUpFor(target)
	}

	messages := llm.BuildReplyMessages(llm.ReplyPromptInput{
		Specialty:      session.Specialty,
		Excerpts:       excerpts,
		History:        chatHistory(session, s.historyLimit),
		Utterance:      utterance,
		TargetQuestion: targetQuestion,
	})

	reply, err := s.gateway.Complete(ctx, messages)
	if err != nil {
		reason := "model_error"
		if errors.Is(err, llm.ErrDegraded) {
			reason = "breaker_open"
			s.logger.Info("model degraded, substituting scripted question",
				zap.String("session_id", session.ID.String()))
		} else {
			s.logger.Warn("reply generation failed, substituting scripted question",
				zap.String("session_id", session.ID.String()),
				zap.Error(err))
		}
		s.recordFallback(ctx, session.Specialty, reason)
		return s.scriptedReply(session, protocol, target, hasTarget), true
	}
	if strings.TrimSpace(reply) == "" {
		s.recordFallback(ctx, session.Specialty, "empty_reply")
		return s.scriptedReply(session, protocol, target, hasTarget), true
	}
	return reply, false
}

func (s *Service) recordFallback(ctx context.Context, specialty, reason string) {
	telemetry.AddEvent(ctx, "model_fallback",
		"reason", reason,
		telemetry.SpanAttrSpecialty, specialty)
	if s.metrics != nil {
		s.metrics.RecordModelFallback(ctx, specialty, reason)
	}
}

// scriptedReply picks the deterministic question for a degraded turn: the
// next unasked opening question, else the follow-up eliciting the
// highest-weight unknown fact, else the generic probe.
func (s *Service) scriptedReply(session *assessment.ChatSession, protocol *assessment.InterviewProtocol, target assessment.FactKey, hasTarget bool) string {
	if question, ok := protocol.OpeningQuestion(session.AssistantMessageCount()); ok {
		return question
	}
	if hasTarget {
		return protocol.FollowUpFor(target)
	}
	return protocol.DefaultFollowUp
}

// extractAndMerge runs fact extraction over the exchange. Extraction
// failures and schema violations discard the proposal, never the turn.
func (s *Service) extractAndMerge(ctx context.Context, session *assessment.ChatSession, utteranceMsg, replyMsg assessment.Message) {
	extraction, err := s.extractor.Extract(ctx, utteranceMsg.Text, replyMsg.Text, session.Facts)
	if err != nil {
		s.logger.Warn("fact extraction discarded",
			zap.String("session_id", session.ID.String()),
			zap.String("extractor", s.extractor.Name()),
			zap.Error(err))
		return
	}
	if err := assessment.ValidateExtraction(extraction); err != nil {
		s.logger.Warn("fact extraction rejected by schema",
			zap.String("session_id", session.ID.String()),
			zap.String("extractor", s.extractor.Name()),
			zap.Error(err))
		return
	}

	applied, err := session.ApplyExtraction(extraction, utteranceMsg.ID)
	if err != nil {
		s.logger.Warn("fact merge rejected",
			zap.String("session_id", session.ID.String()),
			zap.Error(err))
		return
	}
	if len(applied) > 0 {
		s.logger.Debug("facts updated",
			zap.String("session_id", session.ID.String()),
			zap.Int("facts_applied", len(applied)))
	}
}

// evaluate compiles the protocol's criteria and runs the pure evaluator
// over the session's current record
func (s *Service) evaluate(protocol *assessment.InterviewProtocol, session *assessment.ChatSession) (*assessment.AssessmentVerdict, error) {
	rules, err := assessment.NewRuleSet(protocol.Criteria)
	if err != nil {
		return nil, fmt.Errorf("compile criteria of protocol %s: %w", protocol.ID, err)
	}
	outcome := assessment.NewEvaluator(rules).Evaluate(session.Facts)
	return assessment.NewAssessmentVerdict(session.ID, outcome, session.Facts), nil
}

// releaseLock frees the per-session lock on a context of its own, so a
// caller that died mid-turn cannot leak the lock until the TTL.
func (s *Service) releaseLock(sessionID uuid.UUID) {
	ctx, cancel := context.WithTimeout(context.Background(), lockReleaseTimeout)
	defer cancel()
	if err := s.turnLock.Release(ctx, sessionID.String()); err != nil {
		s.logger.Warn("turn lock release failed",
			zap.String("session_id", sessionID.String()),
			zap.Error(err))
	}
}

func abandonReasonFor(session *assessment.ChatSession) string {
	if session.TurnCount >= session.MaxTurns {
		return AbandonReasonTurnLimit
	}
	return AbandonReasonExpired
}

// retrievalQuery widens the subject's words with the facts already
// established, so retrieval sees the interview, not one sentence
func retrievalQuery(utterance string, facts assessment.ClinicalFactRecord) string {
	var b strings.Builder
	b.WriteString(utterance)
	for _, key := range assessment.SchemaKeys() {
		value, ok := facts.Get(key)
		if !ok || !value.IsDefinite() {
			continue
		}
		b.WriteString(" ")
		b.WriteString(string(key))
		b.WriteString(" ")
		if kind, _ := assessment.KindOf(key); kind == assessment.FactKindInt {
			b.WriteString(strconv.Itoa(value.IntValue))
		} else if value.BoolValue {
			b.WriteString("yes")
		} else {
			b.WriteString("no")
		}
	}
	return b.String()
}

// chatHistory maps the transcript before the current utterance into chat
// messages; the current utterance rides separately in the prompt
func chatHistory(session *assessment.ChatSession, limit int) []llm.ChatMessage {
	history := session.History(limit + 1)
	if len(history) > 0 {
		history = history[:len(history)-1]
	}
	out := make([]llm.ChatMessage, 0, len(history))
	for _, msg := range history {
		role := llm.ChatRoleAssistant
		if msg.Role == assessment.RoleSubject {
			role = llm.ChatRoleUser
		}
		out = append(out, llm.ChatMessage{Role: role, Content: msg.Text})
	}
	return out
}
