package models

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ── Languages ────────────────────────────────────────────────

// Language is a response language understood by the diagnosis backend.
type Language string

const (
	LanguageEnglish   Language = "English"
	LanguageTamil     Language = "Tamil"
	LanguageTelugu    Language = "Telugu"
	LanguageKannada   Language = "Kannada"
	LanguageMalayalam Language = "Malayalam"
)

// DefaultLanguage is used when a caller does not pick one.
const DefaultLanguage = LanguageEnglish

// ErrUnsupportedLanguage is returned by ParseLanguage for unknown names.
var ErrUnsupportedLanguage = errors.New("unsupported language")

// Languages lists the supported languages in display order.
func Languages() []Language {
	return []Language{LanguageEnglish, LanguageTamil, LanguageTelugu, LanguageKannada, LanguageMalayalam}
}

// ParseLanguage matches a language name case-insensitively.
// An empty string yields DefaultLanguage.
func ParseLanguage(s string) (Language, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return DefaultLanguage, nil
	}
	for _, l := range Languages() {
		if strings.EqualFold(string(l), s) {
			return l, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedLanguage, s)
}

// ── Diagnosis ────────────────────────────────────────────────

// HealthStatus is the coarse outcome of a diagnosis.
type HealthStatus string

const (
	HealthHealthy HealthStatus = "Healthy"
	HealthDisease HealthStatus = "Disease"
	HealthPest    HealthStatus = "Pest"
)

// Category is what kind of subject was photographed.
type Category string

const (
	CategoryCrop   Category = "Crop"
	CategoryInsect Category = "Insect"
)

// TreatmentInfo is static or synthesized guidance for a detected class.
type TreatmentInfo struct {
	Title       string   `json:"title"`
	Description string   `json:"description"` // may contain lightweight markup
	Steps       []string `json:"steps"`
	Prevention  []string `json:"prevention"`
}

// DiagnosisRecord is one completed diagnosis. Records are never mutated
// after creation.
type DiagnosisRecord struct {
	ID            string         `json:"id"`
	ImageURL      string         `json:"imageUrl"`
	DetectedClass string         `json:"detectedClass"` // "Crop___Condition"
	Confidence    float64        `json:"confidence"`    // normalized to [0,1]
	Category      Category       `json:"category"`
	Subtype       string         `json:"subtype"`
	HealthStatus  HealthStatus   `json:"healthStatus"`
	Timestamp     time.Time      `json:"timestamp"`
	Treatment     *TreatmentInfo `json:"treatment,omitempty"`
}

// DiagnosisContext carries the latest diagnosis into a chat session.
// It is consumed once.
type DiagnosisContext struct {
	DetectedClass string       `json:"detectedClass"`
	Crop          string       `json:"crop"`
	Condition     string       `json:"condition"`
	HealthStatus  HealthStatus `json:"healthStatus"`
	Confidence    float64      `json:"confidence"`
	ImageURL      string       `json:"imageUrl,omitempty"`
	Timestamp     time.Time    `json:"timestamp"`
}

// ConfidencePercent rounds the normalized confidence to a whole percentage.
func (c DiagnosisContext) ConfidencePercent() int {
	return int(c.Confidence*100 + 0.5)
}

// ── History queries ──────────────────────────────────────────

// StatusFilter restricts a history query by health status.
type StatusFilter string

const (
	StatusAll     StatusFilter = "all"
	StatusHealthy StatusFilter = "healthy"
	StatusDisease StatusFilter = "disease"
	StatusPest    StatusFilter = "pest"
)

// Matches reports whether a record with status s passes the filter.
func (f StatusFilter) Matches(s HealthStatus) bool {
	if f == "" || f == StatusAll {
		return true
	}
	return strings.EqualFold(string(f), string(s))
}

// SortKey orders history query results. Both orders are descending.
type SortKey string

const (
	SortByDate       SortKey = "date"
	SortByConfidence SortKey = "confidence"
)

// HistoryQuery is a read-only projection over the history.
type HistoryQuery struct {
	Search string       `json:"search,omitempty"`
	Status StatusFilter `json:"status,omitempty"`
	Sort   SortKey      `json:"sort,omitempty"`
}

// ── Chat ─────────────────────────────────────────────────────

// Sender identifies the author of a chat message.
type Sender string

const (
	SenderUser Sender = "user"
	SenderBot  Sender = "bot"
)

// ChatMessage is one entry of a chat transcript.
type ChatMessage struct {
	ID        string    `json:"id"`
	Sender    Sender    `json:"sender"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
	ImageURL  string    `json:"image,omitempty"`
}

// ChatSession is the API view of a chat session.
type ChatSession struct {
	ID        string            `json:"id"`
	Language  Language          `json:"language"`
	Context   *DiagnosisContext `json:"context,omitempty"`
	Messages  []ChatMessage     `json:"messages"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// ── Catalog ──────────────────────────────────────────────────

// Icon is a resolved category icon.
type Icon struct {
	Name  string `json:"name"`
	Glyph string `json:"glyph"`
	Color string `json:"color"`
}

// CropCategory groups the condition labels of one crop (or of insect pests).
type CropCategory struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	Emoji      string   `json:"emoji"`
	Conditions []string `json:"conditions"`
	Icon       Icon     `json:"icon"`
}

// KnowledgeItem is a reference entry about a crop condition.
type KnowledgeItem struct {
	ID         string       `json:"id"`
	Name       string       `json:"name"`
	Category   string       `json:"category"`
	Type       HealthStatus `json:"type"`
	Causes     []string     `json:"causes"`
	Symptoms   []string     `json:"symptoms"`
	Treatment  []string     `json:"treatment"`
	Prevention []string     `json:"prevention"`
	Image      string       `json:"image"`
}

// ── Backend status ───────────────────────────────────────────

// ConnectionState is the last observed backend reachability.
type ConnectionState string

const (
	ConnectionChecking     ConnectionState = "checking"
	ConnectionConnected    ConnectionState = "connected"
	ConnectionDisconnected ConnectionState = "disconnected"
)

// BackendStatus is reported by the health monitor.
type BackendStatus struct {
	Status    ConnectionState `json:"status"`
	Message   string          `json:"message"`
	CheckedAt *time.Time      `json:"checked_at,omitempty"`
}
