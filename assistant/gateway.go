package assistant

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

type Tone string

const (
	ToneFormal   Tone = "formal"
	ToneFriendly Tone = "friendly"
	ToneUrgent   Tone = "urgent"
)

var tonePhrases = map[Tone]string{
	ToneFormal:   "Please be informed that",
	ToneFriendly: "We are excited to share that",
	ToneUrgent:   "URGENT ATTENTION REQUIRED:",
}

// ParseTone maps anything unknown to ToneFormal.
func ParseTone(s string) Tone {
	tone := Tone(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := tonePhrases[tone]; !ok {
		return ToneFormal
	}
	return tone
}

type Draft struct {
	Subject string `json:"subject"`
	Content string `json:"content"`
}

const (
	summaryPreviewRunes = 50

	summarizeInstruction = `You summarize internal announcements for busy employees.
Reply with {"summary":"..."} holding one or two plain sentences.`

	draftInstruction = `You write internal announcements for a management team.
Reply with {"subject":"...","content":"..."}. The content is ready to send,
signed "Management Team", and uses the requested tone.`
)

type IGateway interface {
	Summarize(ctx context.Context, text string) string
	Draft(ctx context.Context, topic string, tone Tone) Draft
}

// Gateway never fails: a missing completer, a timeout, a transport error or an
// unparsable reply all degrade to a canned answer.
type Gateway struct {
	log       *slog.Logger
	completer Completer
	timeout   time.Duration
}

// NewGateway accepts a nil completer, in which case every call returns the fallback.
func NewGateway(log *slog.Logger, completer Completer, timeout time.Duration) *Gateway {
	return &Gateway{log: log, completer: completer, timeout: timeout}
}

func (g *Gateway) Summarize(ctx context.Context, text string) string {
	var reply struct {
		Summary string `json:"summary"`
	}
	if err := g.ask(ctx, summarizeInstruction, text, &reply); err != nil || strings.TrimSpace(reply.Summary) == "" {
		g.log.Warn("Summary fallback", "error", err)
		return FallbackSummary(text)
	}
	return strings.TrimSpace(reply.Summary)
}

func (g *Gateway) Draft(ctx context.Context, topic string, tone Tone) Draft {
	tone = ParseTone(string(tone))
	prompt := fmt.Sprintf("Topic: %s\nTone: %s", topic, tone)
	var reply Draft
	if err := g.ask(ctx, draftInstruction, prompt, &reply); err != nil ||
		strings.TrimSpace(reply.Subject) == "" || strings.TrimSpace(reply.Content) == "" {
		g.log.Warn("Draft fallback", "tone", tone, "error", err)
		return FallbackDraft(topic, tone)
	}
	return Draft{Subject: strings.TrimSpace(reply.Subject), Content: strings.TrimSpace(reply.Content)}
}

func (g *Gateway) ask(ctx context.Context, instruction, prompt string, out any) error {
	if g.completer == nil {
		return fmt.Errorf("no completer configured")
	}
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}
	raw, err := g.completer.Complete(ctx, instruction, prompt)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(raw), out); err != nil {
		return fmt.Errorf("unparsable reply: %w", err)
	}
	return nil
}

func FallbackSummary(text string) string {
	runes := []rune(text)
	if len(runes) > summaryPreviewRunes {
		runes = runes[:summaryPreviewRunes]
	}
	return fmt.Sprintf("[System Summary] This message is about: %s... (AI summarization is currently disabled).", string(runes))
}

func FallbackDraft(topic string, tone Tone) Draft {
	tone = ParseTone(string(tone))
	return Draft{
		Subject: fmt.Sprintf("[Draft] Announcement: %s", topic),
		Content: fmt.Sprintf("**%s UPDATE**\n\n%s %s.\n\n"+
			"This is a template draft generated without AI connectivity. "+
			"Please edit this text to add specific details, dates, and requirements before sending.\n\n"+
			"Best regards,\nManagement Team",
			strings.ToUpper(string(tone)), tonePhrases[tone], topic),
	}
}
