package slack

import (
	"fmt"
	"strings"

	goslack "github.com/slack-go/slack"
)

const maxBlockTextLength = 2900

var urgencyEmoji = map[string]string{
	"urgent": ":rotating_light:",
	"high":   ":red_circle:",
	"medium": ":large_orange_circle:",
	"low":    ":large_blue_circle:",
}

func section(text string) goslack.Block {
	return goslack.NewSectionBlock(
		goslack.NewTextBlockObject(goslack.MarkdownType, text, false, false),
		nil, nil,
	)
}

// escalationFallback is the plain notification text. It carries the
// session marker so follow-ups can find the thread.
func escalationFallback(input EscalationInput) string {
	return fmt.Sprintf("Escalation %s (%s, %s) for %s",
		input.TicketNumber, input.Reason, input.Urgency, SessionMarker(input.SessionID))
}

// BuildEscalationMessage creates Block Kit blocks for a human-handoff request.
func BuildEscalationMessage(input EscalationInput, dashboardURL string) []goslack.Block {
	emoji := urgencyEmoji[input.Urgency]
	if emoji == "" {
		emoji = ":question:"
	}

	header := fmt.Sprintf("%s *Escalation %s*\nReason: `%s` · Urgency: *%s* · Language: %s\n_%s_",
		emoji, input.TicketNumber, input.Reason, input.Urgency, input.Language,
		SessionMarker(input.SessionID))
	if input.ContactEmail != "" {
		header += "\nCustomer acknowledged by email"
	}
	blocks := []goslack.Block{section(header)}

	if strings.TrimSpace(input.Transcript) != "" {
		blocks = append(blocks, section("*Recent conversation:*\n```"+truncateForSlack(input.Transcript)+"```"))
	}

	if dashboardURL != "" {
		btn := goslack.NewButtonBlockElement("", "", goslack.NewTextBlockObject(goslack.PlainTextType, "Open Conversation", false, false))
		btn.URL = fmt.Sprintf("%s/conversations/%s", dashboardURL, input.ConversationID)
		blocks = append(blocks, goslack.NewActionBlock("", btn))
	}
	return blocks
}

func leadFallback(input LeadInput) string {
	return fmt.Sprintf("New lead from %s for %s", input.Name, SessionMarker(input.SessionID))
}

// BuildLeadMessage creates Block Kit blocks for a captured lead.
func BuildLeadMessage(input LeadInput) []goslack.Block {
	text := fmt.Sprintf(":memo: *New quote request*\nName: %s\nEmail: %s\nLanguage: %s\n_%s_",
		input.Name, input.Email, input.Language, SessionMarker(input.SessionID))
	return []goslack.Block{section(text)}
}

func truncateForSlack(text string) string {
	if len(text) <= maxBlockTextLength {
		return text
	}
	return text[:maxBlockTextLength] + "\n... (truncated)"
}
