// Package diagnosis turns a backend prediction into a DiagnosisRecord and
// records it in history.
package diagnosis

import (
	"context"
	"fmt"
	"time"

	"github.com/agrilens/agrilens/control-plane/internal/gateway"
	"github.com/agrilens/agrilens/control-plane/pkg/models"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var tracer = otel.Tracer("agrilens-diagnosis")

// Diagnoser is the gateway operation the orchestrator depends on.
type Diagnoser interface {
	Diagnose(ctx context.Context, req gateway.DiagnoseRequest) (*gateway.DiagnoseResult, error)
}

// Recorder persists completed records.
type Recorder interface {
	Append(ctx context.Context, rec models.DiagnosisRecord) error
}

// TreatmentSource looks up curated treatments by exact label.
type TreatmentSource interface {
	Treatment(label string) (models.TreatmentInfo, bool)
}

// ImageSaver stores the uploaded image and returns an opaque reference.
type ImageSaver interface {
	Save(id string, img gateway.Image) (string, error)
}

// Request is one diagnosis submission.
type Request struct {
	Image            gateway.Image
	Language         models.Language
	FollowupQuestion string
}

// Orchestrator runs a diagnosis end to end.
type Orchestrator struct {
	gateway    Diagnoser
	treatments TreatmentSource
	history    Recorder
	images     ImageSaver // optional
	now        func() time.Time
}

// Option configures the orchestrator.
type Option func(*Orchestrator)

// WithImageSaver stores uploaded images alongside records.
func WithImageSaver(s ImageSaver) Option {
	return func(o *Orchestrator) { o.images = s }
}

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// NewOrchestrator creates an orchestrator.
func NewOrchestrator(gw Diagnoser, treatments TreatmentSource, history Recorder, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		gateway:    gw,
		treatments: treatments,
		history:    history,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Diagnose calls the backend, builds the record and appends it to history.
// Gateway errors are returned unchanged and nothing is stored.
func (o *Orchestrator) Diagnose(ctx context.Context, req Request) (*models.DiagnosisRecord, error) {
	ctx, span := tracer.Start(ctx, "diagnosis.run")
	defer span.End()

	lang := req.Language
	if lang == "" {
		lang = models.DefaultLanguage
	}

	res, err := o.gateway.Diagnose(ctx, gateway.DiagnoseRequest{
		Image:            req.Image,
		Language:         string(lang),
		FollowupQuestion: req.FollowupQuestion,
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	rec := o.buildRecord(res)
	span.SetAttributes(
		attribute.String("diagnosis.label", rec.DetectedClass),
		attribute.Float64("diagnosis.confidence", rec.Confidence),
	)

	if o.images != nil {
		ref, err := o.images.Save(rec.ID, req.Image)
		if err != nil {
			log.Warn().Err(err).Str("record", rec.ID).Msg("Image not stored, record kept without it")
		} else {
			rec.ImageURL = ref
		}
	}

	if err := o.history.Append(ctx, rec); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("record diagnosis: %w", err)
	}

	log.Info().
		Str("id", rec.ID).
		Str("label", rec.DetectedClass).
		Float64("confidence", rec.Confidence).
		Str("status", string(rec.HealthStatus)).
		Msg("Diagnosis recorded")
	return &rec, nil
}

func (o *Orchestrator) buildRecord(res *gateway.DiagnoseResult) models.DiagnosisRecord {
	_, condition := ParseLabel(res.PredictedLabel)
	status, subtype := DeriveHealth(condition)

	treatment, ok := o.treatments.Treatment(res.PredictedLabel)
	if !ok {
		treatment = FallbackTreatment(res.Narrative)
	}

	return models.DiagnosisRecord{
		ID:            uuid.New().String(),
		DetectedClass: res.PredictedLabel,
		Confidence:    NormalizeConfidence(res.ConfidencePercent),
		Category:      models.CategoryCrop,
		Subtype:       subtype,
		HealthStatus:  status,
		Timestamp:     o.now().UTC(),
		Treatment:     &treatment,
	}
}

// FallbackTreatment synthesizes guidance from the backend narrative when no
// curated entry exists.
func FallbackTreatment(narrative string) models.TreatmentInfo {
	return models.TreatmentInfo{
		Title:       "Treatment Information",
		Description: narrative,
		Steps: []string{
			"Consult with the AI chatbot for detailed treatment recommendations",
			"Monitor the affected area regularly",
			"Consider preventive measures for future crops",
		},
		Prevention: []string{
			"Maintain proper plant spacing for air circulation",
			"Use disease-resistant varieties when possible",
			"Practice crop rotation",
			"Keep the growing area clean and free of debris",
		},
	}
}

// ContextFor builds the one-shot chat context for a record.
func ContextFor(rec models.DiagnosisRecord) models.DiagnosisContext {
	crop, condition := ParseLabel(rec.DetectedClass)
	return models.DiagnosisContext{
		DetectedClass: rec.DetectedClass,
		Crop:          crop,
		Condition:     condition,
		HealthStatus:  rec.HealthStatus,
		Confidence:    rec.Confidence,
		ImageURL:      rec.ImageURL,
		Timestamp:     rec.Timestamp,
	}
}
