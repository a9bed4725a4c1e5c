package sessions

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/agrilens/agrilens/control-plane/internal/gateway"
	"github.com/agrilens/agrilens/control-plane/pkg/models"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const (
	greeting = "Hello! I'm your Agri AI Assistant. I can help you with crop diseases, pest identification, " +
		"treatment recommendations, and agricultural best practices. How can I assist you today?"
	welcomeFormat = "I see you've just diagnosed your %s with %s. The detection confidence was %d%%. " +
		"How can I help you with treatment recommendations, prevention strategies, or any other questions about this condition?"
	preambleFormat     = "Context: I have %s with %s (%d%% confidence). Question: %s"
	errorReplyFormat   = "Sorry, I encountered an error: %s"
	languageSwitchText = "Switched to %s language. I'll respond in %s from now on."

	// ImageOnlyText stands in for the text of a message that only carries an image.
	ImageOnlyText = "Uploaded an image for analysis"

	contextCropFallback = "Crop"
)

// ErrEmptyMessage is returned when a message has neither text nor image.
var ErrEmptyMessage = errors.New("message has no text and no image")

// Chatter is the gateway operation a session relays messages to.
type Chatter interface {
	Chat(ctx context.Context, query, language string) (*gateway.ChatResult, error)
}

// Session is one chat conversation. The transcript is mutated under mu; the
// backend call runs without it, so a slow reply never blocks readers.
type Session struct {
	ID string

	mu        sync.Mutex
	language  models.Language
	context   *models.DiagnosisContext
	createdAt time.Time
	updatedAt time.Time

	transcript *Transcript
	chat       Chatter
	handoff    *Handoff
	now        func() time.Time
}

func newSession(chat Chatter, handoff *Handoff, now func() time.Time) *Session {
	ts := now().UTC()
	s := &Session{
		ID:         uuid.New().String(),
		language:   models.DefaultLanguage,
		createdAt:  ts,
		updatedAt:  ts,
		transcript: NewTranscript(),
		chat:       chat,
		handoff:    handoff,
		now:        now,
	}
	s.transcript.Append(s.message(models.SenderBot, greeting, ""))
	return s
}

// ConsumeDiagnosisContext takes the pending diagnosis handoff, if any, makes
// it the active context and appends a welcome message about it. It reports
// whether a context was consumed.
func (s *Session) ConsumeDiagnosisContext() bool {
	if s.handoff == nil {
		return false
	}
	dc := s.handoff.Take()
	if dc == nil {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.context = dc
	s.appendLocked(models.SenderBot, fmt.Sprintf(welcomeFormat, cropName(dc), dc.Condition, dc.ConfidencePercent()), "")

	log.Debug().Str("session", s.ID).Str("label", dc.DetectedClass).Msg("Diagnosis context consumed")
	return true
}

// SendUserMessage appends the user's message, relays it to the backend and
// appends the reply. Backend failures become a bot message; the only error
// returned is ErrEmptyMessage. Cancelling ctx does not abort the relay.
func (s *Session) SendUserMessage(ctx context.Context, text, imageRef string) (models.ChatMessage, error) {
	text = strings.TrimSpace(text)
	if text == "" && imageRef == "" {
		return models.ChatMessage{}, ErrEmptyMessage
	}
	if text == "" {
		text = ImageOnlyText
	}

	s.mu.Lock()
	s.appendLocked(models.SenderUser, text, imageRef)
	language := s.language
	query := text
	if s.context != nil {
		query = fmt.Sprintf(preambleFormat, cropName(s.context), s.context.Condition, s.context.ConfidencePercent(), text)
	}
	s.mu.Unlock()

	// The relay outlives the caller: a client that goes away mid-request
	// still gets the reply in the transcript, bounded by the gateway timeout.
	var replyText string
	res, err := s.chat.Chat(context.WithoutCancel(ctx), query, string(language))
	if err != nil {
		log.Warn().Err(err).Str("session", s.ID).Msg("Chat relay failed")
		replyText = fmt.Sprintf(errorReplyFormat, gateway.UserMessage(err))
	} else {
		replyText = res.Response
	}

	s.mu.Lock()
	reply := s.appendLocked(models.SenderBot, replyText, "")
	s.mu.Unlock()
	return reply, nil
}

// SetLanguage changes the language for subsequent chat calls and announces
// the switch. Earlier messages are left as they are.
func (s *Session) SetLanguage(lang models.Language) models.ChatMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.language = lang
	return s.appendLocked(models.SenderBot, fmt.Sprintf(languageSwitchText, lang, lang), "")
}

// Language returns the session language.
func (s *Session) Language() models.Language {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.language
}

// ClearContext drops the active diagnosis context.
func (s *Session) ClearContext() {
	s.mu.Lock()
	s.context = nil
	s.updatedAt = s.now().UTC()
	s.mu.Unlock()
}

// SuggestedQueries returns questions tailored to the active context, or
// general ones without a context.
func (s *Session) SuggestedQueries() []string {
	s.mu.Lock()
	dc := s.context
	s.mu.Unlock()

	if dc == nil {
		return []string{
			"How to prevent rice brown spot?",
			"What causes tomato leaf curl?",
			"Best organic pesticides for aphids",
			"Signs of apple scab disease",
			"How to treat corn blight?",
			"Natural remedies for spider mites",
		}
	}
	c := dc.Condition
	return []string{
		fmt.Sprintf("What are the best treatments for %s?", c),
		fmt.Sprintf("How to prevent %s from spreading?", c),
		fmt.Sprintf("What causes %s in %s?", c, cropName(dc)),
		fmt.Sprintf("Are there organic treatments for %s?", c),
		fmt.Sprintf("How long does it take to recover from %s?", c),
		fmt.Sprintf("What are the early signs of %s?", c),
	}
}

// Transcript exposes the message log for streaming.
func (s *Session) Transcript() *Transcript { return s.transcript }

// Snapshot returns the API view of the session.
func (s *Session) Snapshot() models.ChatSession {
	s.mu.Lock()
	defer s.mu.Unlock()

	var dc *models.DiagnosisContext
	if s.context != nil {
		c := *s.context
		dc = &c
	}
	return models.ChatSession{
		ID:        s.ID,
		Language:  s.language,
		Context:   dc,
		Messages:  s.transcript.Messages(),
		CreatedAt: s.createdAt,
		UpdatedAt: s.updatedAt,
	}
}

// lastActive returns when the session was last touched.
func (s *Session) lastActive() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updatedAt
}

// appendLocked appends a message. Caller holds s.mu.
func (s *Session) appendLocked(sender models.Sender, text, imageRef string) models.ChatMessage {
	msg := s.message(sender, text, imageRef)
	s.transcript.Append(msg)
	s.updatedAt = msg.Timestamp
	return msg
}

func (s *Session) message(sender models.Sender, text, imageRef string) models.ChatMessage {
	return models.ChatMessage{
		ID:        uuid.New().String(),
		Sender:    sender,
		Text:      text,
		Timestamp: s.now().UTC(),
		ImageURL:  imageRef,
	}
}

func cropName(dc *models.DiagnosisContext) string {
	if dc.Crop == "" {
		return contextCropFallback
	}
	return dc.Crop
}
