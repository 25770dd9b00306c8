package assessment

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/genintake/backend/internal/domain/shared"
)

// Test helpers

func createTestSession(t *testing.T) *ChatSession {
	session, err := NewChatSession(uuid.New(), "hereditary_cancer", "hboc-v1", 20, time.Hour)
	require.NoError(t, err)
	session.ClearDomainEvents()
	return session
}

func runTestTurn(t *testing.T, session *ChatSession, utterance, reply string) {
	t.Helper()
	_, err := session.AppendSubjectUtterance(utterance)
	require.NoError(t, err)
	require.NoError(t, session.BeginReply())
	_, err = session.AppendAssistantReply(reply)
	require.NoError(t, err)
	require.NoError(t, session.BeginAnalysis())
}

func testVerdict(t *testing.T, sessionID uuid.UUID, meets bool) *AssessmentVerdict {
	t.Helper()
	evaluator := testEvaluator(t)
	record := NewClinicalFactRecord()
	if meets {
		record = recordWithFacts(t,
			withBool(FactPersonalBreastCancer, true),
			withInt(FactBreastCancerAge, 42),
		)
	}
	return NewAssessmentVerdict(sessionID, evaluator.Evaluate(record), record)
}

// ============================================
// SessionStatus Tests
// ============================================

func TestSessionStatus_IsValid(t *testing.T) {
	tests := []struct {
		status  SessionStatus
		isValid bool
	}{
		{StatusActive, true},
		{StatusAwaitingReply, true},
		{StatusAnalyzing, true},
		{StatusCompleted, true},
		{StatusAbandoned, true},
		{SessionStatus("archived"), false},
		{SessionStatus(""), false},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			assert.Equal(t, tt.isValid, tt.status.IsValid())
		})
	}
}

func TestSessionStatus_CanTransitionTo(t *testing.T) {
	tests := []struct {
		from     SessionStatus
		to       SessionStatus
		canTrans bool
	}{
		// From active
		{StatusActive, StatusAwaitingReply, true},
		{StatusActive, StatusAbandoned, true},
		{StatusActive, StatusAnalyzing, false},
		{StatusActive, StatusCompleted, false},
		// From awaiting_reply
		{StatusAwaitingReply, StatusAnalyzing, true},
		{StatusAwaitingReply, StatusAbandoned, true},
		{StatusAwaitingReply, StatusActive, false},
		{StatusAwaitingReply, StatusCompleted, false},
		// From analyzing
		{StatusAnalyzing, StatusActive, true},
		{StatusAnalyzing, StatusCompleted, true},
		{StatusAnalyzing, StatusAbandoned, true},
		{StatusAnalyzing, StatusAwaitingReply, false},
		// Terminal states never leave
		{StatusCompleted, StatusActive, false},
		{StatusCompleted, StatusAbandoned, false},
		{StatusAbandoned, StatusActive, false},
		{StatusAbandoned, StatusCompleted, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"_to_"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.canTrans, tt.from.CanTransitionTo(tt.to))
		})
	}
}

func TestSessionStatus_IsTerminal(t *testing.T) {
	assert.True(t, StatusCompleted.IsTerminal())
	assert.True(t, StatusAbandoned.IsTerminal())
	assert.False(t, StatusActive.IsTerminal())
	assert.False(t, StatusAwaitingReply.IsTerminal())
	assert.False(t, StatusAnalyzing.IsTerminal())
}

// ============================================
// ChatSession Tests
// ============================================

func TestNewChatSession(t *testing.T) {
	t.Run("creates an active session with an empty record", func(t *testing.T) {
		session, err := NewChatSession(uuid.New(), "hereditary_cancer", "hboc-v1", 20, time.Hour)
		require.NoError(t, err)

		assert.Equal(t, StatusActive, session.Status)
		assert.Equal(t, 0, session.TurnCount)
		assert.Equal(t, 0, session.Facts.DefiniteCount())
		assert.Nil(t, session.LastVerdict)
		assert.Empty(t, session.Messages)

		events := session.GetDomainEvents()
		require.Len(t, events, 1)
		assert.Equal(t, EventTypeSessionStarted, events[0].EventType())
	})

	t.Run("rejects missing subject", func(t *testing.T) {
		_, err := NewChatSession(uuid.Nil, "hereditary_cancer", "hboc-v1", 20, time.Hour)
		assert.Error(t, err)
	})

	t.Run("rejects non-positive limits", func(t *testing.T) {
		_, err := NewChatSession(uuid.New(), "hereditary_cancer", "hboc-v1", 0, time.Hour)
		assert.Error(t, err)

		_, err = NewChatSession(uuid.New(), "hereditary_cancer", "hboc-v1", 20, 0)
		assert.Error(t, err)
	})
}

func TestChatSession_TurnLifecycle(t *testing.T) {
	session := createTestSession(t)

	msg, err := session.AppendSubjectUtterance("I was diagnosed with breast cancer at age 42")
	require.NoError(t, err)
	assert.Equal(t, RoleSubject, msg.Role)
	assert.Equal(t, 0, msg.Seq)
	assert.Equal(t, 1, session.TurnCount)

	require.NoError(t, session.BeginReply())
	assert.Equal(t, StatusAwaitingReply, session.Status)

	reply, err := session.AppendAssistantReply("Thank you for sharing that.")
	require.NoError(t, err)
	assert.Equal(t, 1, reply.Seq)

	require.NoError(t, session.BeginAnalysis())
	assert.Equal(t, StatusAnalyzing, session.Status)

	require.NoError(t, session.ResumeActive())
	assert.Equal(t, StatusActive, session.Status)
}

func TestChatSession_Complete(t *testing.T) {
	t.Run("completes from analyzing with a verdict", func(t *testing.T) {
		session := createTestSession(t)
		runTestTurn(t, session, "I had breast cancer at 42", "Understood.")
		verdict := testVerdict(t, session.ID, true)

		err := session.Complete(verdict)
		require.NoError(t, err)

		assert.Equal(t, StatusCompleted, session.Status)
		assert.NotNil(t, session.CompletedAt)
		assert.Same(t, verdict, session.LastVerdict)

		events := session.GetDomainEvents()
		require.NotEmpty(t, events)
		assert.Equal(t, EventTypeSessionCompleted, events[len(events)-1].EventType())
	})

	t.Run("rejects completion without a verdict", func(t *testing.T) {
		session := createTestSession(t)
		runTestTurn(t, session, "Hello", "Hi.")

		err := session.Complete(nil)
		assert.Error(t, err)
		assert.Equal(t, StatusAnalyzing, session.Status)
	})

	t.Run("rejects completion from active", func(t *testing.T) {
		session := createTestSession(t)

		err := session.Complete(testVerdict(t, session.ID, true))
		assert.Error(t, err)
	})
}

func TestChatSession_Abandon(t *testing.T) {
	t.Run("abandons an active session and keeps the last verdict", func(t *testing.T) {
		session := createTestSession(t)
		runTestTurn(t, session, "My mother had breast cancer", "Noted.")
		verdict := testVerdict(t, session.ID, false)
		require.NoError(t, session.RecordVerdict(verdict))
		require.NoError(t, session.ResumeActive())

		err := session.Abandon("turn limit reached")
		require.NoError(t, err)

		assert.Equal(t, StatusAbandoned, session.Status)
		assert.NotNil(t, session.AbandonedAt)
		assert.Equal(t, "turn limit reached", session.AbandonReason)
		assert.Same(t, verdict, session.LastVerdict)
	})

	t.Run("requires a reason", func(t *testing.T) {
		session := createTestSession(t)
		assert.Error(t, session.Abandon(""))
	})

	t.Run("cannot abandon a completed session", func(t *testing.T) {
		session := createTestSession(t)
		runTestTurn(t, session, "I had breast cancer at 40", "Understood.")
		require.NoError(t, session.Complete(testVerdict(t, session.ID, true)))

		err := session.Abandon("timeout")
		assert.Error(t, err)
		assert.Equal(t, StatusCompleted, session.Status)
	})
}

func TestChatSession_TerminalRejectsTurns(t *testing.T) {
	session := createTestSession(t)
	runTestTurn(t, session, "I had breast cancer at 40", "Understood.")
	require.NoError(t, session.Complete(testVerdict(t, session.ID, true)))

	factsBefore := session.Facts.Clone()
	messagesBefore := len(session.Messages)

	_, err := session.AppendSubjectUtterance("Anything else?")
	assert.ErrorIs(t, err, shared.ErrSessionTerminal)

	_, err = session.ApplyExtraction(Extraction{SubjectAge: intPtr(50), Confidence: 0.9}, uuid.New())
	assert.ErrorIs(t, err, shared.ErrSessionTerminal)

	assert.Equal(t, factsBefore.Facts, session.Facts.Facts)
	assert.Len(t, session.Messages, messagesBefore)
}

func TestChatSession_CanAcceptTurn(t *testing.T) {
	session := createTestSession(t)
	require.NoError(t, session.CanAcceptTurn())

	require.NoError(t, session.BeginReply())
	assert.ErrorIs(t, session.CanAcceptTurn(), shared.ErrTurnInProgress)
}

func TestChatSession_ApplyExtraction(t *testing.T) {
	session := createTestSession(t)
	msg, err := session.AppendSubjectUtterance("I was diagnosed with breast cancer at age 42")
	require.NoError(t, err)

	applied, err := session.ApplyExtraction(Extraction{
		PersonalBreastCancer: boolPtr(true),
		BreastCancerAge:      intPtr(42),
		Confidence:           0.9,
	}, msg.ID)
	require.NoError(t, err)

	assert.Len(t, applied, 2)
	value, _ := session.Facts.Get(FactPersonalBreastCancer)
	assert.Equal(t, msg.ID, value.SourceMessageID)
	assert.Equal(t, 1, value.Turn)
}

func TestChatSession_LimitsReached(t *testing.T) {
	session, err := NewChatSession(uuid.New(), "hereditary_cancer", "hboc-v1", 2, time.Hour)
	require.NoError(t, err)

	now := time.Now()
	assert.False(t, session.LimitsReached(now))

	session.TurnCount = 2
	assert.True(t, session.LimitsReached(now))

	session.TurnCount = 0
	assert.True(t, session.LimitsReached(session.ExpiresAt.Add(time.Second)))
}

func TestChatSession_History(t *testing.T) {
	session := createTestSession(t)
	runTestTurn(t, session, "First", "Second")
	require.NoError(t, session.ResumeActive())
	runTestTurn(t, session, "Third", "Fourth")

	all := session.History(0)
	assert.Len(t, all, 4)

	last := session.History(2)
	require.Len(t, last, 2)
	assert.Equal(t, "Third", last[0].Text)
	assert.Equal(t, "Fourth", last[1].Text)
}
