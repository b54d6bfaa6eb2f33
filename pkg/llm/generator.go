// Package llm adapts the external generative backend that writes free-form
// replies when neither the knowledge base nor memory can answer.
package llm

import (
	"context"
	"errors"
	"regexp"

	"github.com/codeready-toolchain/concierge/pkg/models"
)

// ErrEmptyReply is returned when the backend answers without content.
var ErrEmptyReply = errors.New("generative backend returned empty content")

// HistoryMessage is one prior transcript entry sent as context.
type HistoryMessage struct {
	Role    models.Role `json:"role"`
	Content string      `json:"content"`
}

// Request asks the backend for a reply.
type Request struct {
	ConversationID string           `json:"conversation_id"`
	Message        string           `json:"message"`
	Language       string           `json:"language"`
	History        []HistoryMessage `json:"history,omitempty"`
	// Knowledge is a rendered block of matched knowledge entries.
	Knowledge string `json:"knowledge,omitempty"`
	Intent    string `json:"intent,omitempty"`
}

// Reply is a generated answer.
type Reply struct {
	Content  string                 `json:"content"`
	Metadata models.MessageMetadata `json:"metadata"`
}

// Generator produces replies.
type Generator interface {
	Generate(ctx context.Context, req Request) (*Reply, error)
}

// HistoryFrom converts transcript messages for a Request.
func HistoryFrom(msgs []models.Message) []HistoryMessage {
	out := make([]HistoryMessage, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, HistoryMessage{Role: m.Role, Content: m.Content})
	}
	return out
}

var pricePattern = regexp.MustCompile(`(?i)€\s?\d|\d(?:[.,]\d{1,2})?\s?(?:€|euro\b|eur\b)`)

// DetectPrice reports whether content quotes an amount of money.
func DetectPrice(content string) bool {
	return pricePattern.MatchString(content)
}

// wireMetadata is the metadata shape both transports decode. PriceDetected
// is a pointer so an omitted flag can fall back to DetectPrice.
type wireMetadata struct {
	PriceDetected         *bool   `json:"price_detected"`
	IsStyleConsultation   bool    `json:"is_style_consultation"`
	ConsultationCompleted bool    `json:"consultation_completed"`
	Confidence            float64 `json:"confidence"`
}

func newReply(content string, md wireMetadata) (*Reply, error) {
	if content == "" {
		return nil, ErrEmptyReply
	}
	price := DetectPrice(content)
	if md.PriceDetected != nil {
		price = *md.PriceDetected
	}
	return &Reply{
		Content: content,
		Metadata: models.MessageMetadata{
			PriceDetected:         price,
			IsStyleConsultation:   md.IsStyleConsultation,
			ConsultationCompleted: md.ConsultationCompleted,
			Source:                models.SourceBackend,
			Confidence:            md.Confidence,
		},
	}, nil
}
