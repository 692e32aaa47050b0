package context

import (
	stdcontext "context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// StageRepository resolves the backend base URL for a stage.
// This allows for different implementations (e.g., in-memory, config-backed).
type StageRepository interface {
	BaseURL(stage Stage) (string, error)
}

// InMemoryStageRepository is a simple in-memory implementation.
type InMemoryStageRepository struct {
	mu   sync.RWMutex
	urls map[Stage]string
}

// NewInMemoryStageRepository creates a new in-memory repository.
func NewInMemoryStageRepository() *InMemoryStageRepository {
	return &InMemoryStageRepository{
		urls: make(map[Stage]string),
	}
}

// AddStage registers the base URL of a stage.
func (r *InMemoryStageRepository) AddStage(stage Stage, baseURL string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.urls[stage] = strings.TrimRight(baseURL, "/")
}

// BaseURL fetches the base URL of a stage.
func (r *InMemoryStageRepository) BaseURL(stage Stage) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	url, ok := r.urls[stage]
	if !ok {
		return "", fmt.Errorf("base url not found for stage: %s", stage)
	}
	return url, nil
}

// OpenRequest is what the presentation surface supplies to open a checkout.
type OpenRequest struct {
	PaymentID string
	Live      bool
	Language  string
	ReturnURL string
	CancelURL string
}

// Builder is responsible for creating TraceContext and SessionContext.
type Builder struct {
	stages          StageRepository
	defaultLanguage Language
}

// NewBuilder creates a new Builder. Unsupported or empty requested languages
// fall back to defaultLanguage.
func NewBuilder(repo StageRepository, defaultLanguage Language) *Builder {
	if repo == nil {
		panic("StageRepository cannot be nil")
	}
	if defaultLanguage == "" {
		defaultLanguage = LanguageDE
	}
	return &Builder{stages: repo, defaultLanguage: defaultLanguage}
}

// Build creates the TraceContext and SessionContext for a checkout.
func (b *Builder) Build(parent stdcontext.Context, req OpenRequest) (TraceContext, SessionContext, error) {
	traceCtx := NewTraceContext(parent)

	paymentID := strings.TrimSpace(req.PaymentID)
	if paymentID == "" {
		return traceCtx, SessionContext{}, fmt.Errorf("payment id cannot be empty")
	}

	stage := StageFor(req.Live)
	baseURL, err := b.stages.BaseURL(stage)
	if err != nil {
		return traceCtx, SessionContext{}, fmt.Errorf("failed to resolve backend: %w", err)
	}

	lang, ok := ParseLanguage(req.Language)
	if !ok {
		lang = b.defaultLanguage
	}

	traceCtx.Baggage["payment_id"] = paymentID
	traceCtx.Baggage["stage"] = string(stage)

	return traceCtx, SessionContext{
		SessionID: uuid.NewString(),
		PaymentID: paymentID,
		Stage:     stage,
		BaseURL:   baseURL,
		Language:  lang,
		ReturnURL: req.ReturnURL,
		CancelURL: req.CancelURL,
	}, nil
}
