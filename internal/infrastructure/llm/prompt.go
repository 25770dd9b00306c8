package llm

import (
	"strconv"
	"strings"
)

const interviewSystemPrompt = `You are a clinical intake assistant conducting a structured interview to determine whether a person should be referred for genetic testing.

Your role:
- You gather personal and family medical history through short, empathetic questions.
- You ask exactly ONE question per reply.
- You acknowledge what the person shared before asking the next question.
- You are NOT a doctor and you do NOT diagnose, advise on treatment, or speculate about test results.

Style:
- Warm, plain language. No medical jargon unless the person used it first.
- Two to four sentences per reply, never more.
- Never repeat a question that was already answered.

Boundaries:
- Do not state or hint whether the person qualifies for testing; eligibility is decided elsewhere.
- If asked about eligibility, explain that the assessment result comes at the end of the interview.
- If the person shares distressing news, acknowledge it briefly and kindly before continuing.`

// ReplyPromptInput carries everything the reply prompt is built from
type ReplyPromptInput struct {
	// Specialty is the clinical area of the interview protocol
	Specialty string
	// Excerpts are retrieved guideline passages grounding the reply
	Excerpts []string
	// History is the prior conversation in transcript order
	History []ChatMessage
	// Utterance is the subject's current message
	Utterance string
	// TargetQuestion is the fact-eliciting question to work toward next
	TargetQuestion string
}

// BuildReplyMessages assembles the chat messages for one interview reply:
// the system prompt with grounding excerpts and the next target question,
// the conversation so far, then the subject's utterance.
func BuildReplyMessages(in ReplyPromptInput) []ChatMessage {
	var system strings.Builder
	system.WriteString(interviewSystemPrompt)

	if in.Specialty != "" {
		system.WriteString("\n\nThis interview covers: ")
		system.WriteString(in.Specialty)
	}

	if len(in.Excerpts) > 0 {
		system.WriteString("\n\nRelevant clinical guideline excerpts:\n")
		for i, excerpt := range in.Excerpts {
			system.WriteString("[")
			system.WriteString(strconv.Itoa(i + 1))
			system.WriteString("] ")
			system.WriteString(strings.TrimSpace(excerpt))
			system.WriteString("\n")
		}
	}

	if in.TargetQuestion != "" {
		system.WriteString("\nThe next piece of history to elicit: ")
		system.WriteString(in.TargetQuestion)
		system.WriteString("\nWeave this into your single question naturally.")
	}

	messages := make([]ChatMessage, 0, len(in.History)+2)
	messages = append(messages, ChatMessage{Role: ChatRoleSystem, Content: system.String()})
	messages = append(messages, in.History...)
	messages = append(messages, ChatMessage{Role: ChatRoleUser, Content: in.Utterance})
	return messages
}
