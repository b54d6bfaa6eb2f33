package models

import "time"

// Category groups knowledge entries for intent alignment.
type Category string

const (
	CategoryPricing      Category = "pricing"
	CategoryFAQ          Category = "faq"
	CategoryProduct      Category = "product"
	CategoryMeasurement  Category = "measurement"
	CategoryInstallation Category = "installation"
	CategoryDelivery     Category = "delivery"
	CategoryService      Category = "service"
	CategoryGeneral      Category = "general"
)

// KnowledgeEntry is a curated topic/content pair. The engine only reads it.
type KnowledgeEntry struct {
	ID       string   `json:"id" yaml:"id"`
	Topic    string   `json:"topic" yaml:"topic"`
	Content  string   `json:"content" yaml:"content"`
	Category Category `json:"category" yaml:"category"`
	Language string   `json:"language" yaml:"language"`
	Priority int      `json:"priority" yaml:"priority"`
	Approved bool     `json:"approved" yaml:"approved"`
}

// LearnedResponse is an admin-approved question/answer pair eligible for reuse.
type LearnedResponse struct {
	ID               string     `json:"id" yaml:"id"`
	OriginalQuestion string     `json:"original_question" yaml:"original_question"`
	Response         string     `json:"response" yaml:"response"`
	Keywords         []string   `json:"keywords" yaml:"keywords"`
	Language         string     `json:"language" yaml:"language"`
	UsageCount       int        `json:"usage_count" yaml:"usage_count"`
	LastUsed         *time.Time `json:"last_used,omitempty" yaml:"last_used,omitempty"`
	Active           bool       `json:"active" yaml:"active"`
}
