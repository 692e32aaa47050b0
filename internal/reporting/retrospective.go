package reporting

import (
	"sync"
	"time"
)

const (
	stateInvalidPayment = "InvalidPayment"
	statePaymentResult  = "PaymentResult"
)

// TransitionEntry is one event of a checkout session: a state transition or
// an error surfaced while staying in a state.
type TransitionEntry struct {
	Timestamp    time.Time
	SessionID    string
	PaymentID    string
	From         string // Checkout session state before the event
	To           string // Checkout session state after the event
	Status       string // Payment status, e.g. "Succeeded", "Processing"
	Amount       int64  // Minor units
	Currency     string
	Provider     string // Payment provider tag, e.g. "Stripe", "Wallee"
	ErrorCode    string // Error code or message, if any
	ErrorMessage string // Rendered error text, if any
}

// Journal keeps the most recent entries in memory.
type Journal struct {
	mu      sync.Mutex
	entries []TransitionEntry
	limit   int
}

// NewJournal creates a Journal holding at most limit entries (0 = unbounded).
func NewJournal(limit int) *Journal {
	return &Journal{limit: limit}
}

// Record appends e, dropping the oldest entry when the journal is full.
func (j *Journal) Record(e TransitionEntry) {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	j.entries = append(j.entries, e)
	if j.limit > 0 && len(j.entries) > j.limit {
		j.entries = append([]TransitionEntry(nil), j.entries[len(j.entries)-j.limit:]...)
	}
}

// Entries returns a copy of the recorded entries, oldest first.
func (j *Journal) Entries() []TransitionEntry {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]TransitionEntry(nil), j.entries...)
}

// RetrospectiveReport summarizes checkout activity based on journal entries.
type RetrospectiveReport struct {
	TotalEntries       int
	Sessions           int              // Distinct sessions seen
	InvalidPayments    int              // Sessions that ended in InvalidPayment
	ResultsByStatus    map[string]int   // Transitions into PaymentResult by payment status
	SucceededAmount    map[string]int64 // Minor units of succeeded results by currency
	ErrorBreakdown     map[string]int   // Count of each error code
	ProviderUsage      map[string]int   // Results per provider tag
	DateFrom           time.Time
	DateTo             time.Time
	ProcessingDuration time.Duration // Total duration covered by the entries
}

// RetrospectiveReporter generates retrospective reports from journal entries.
type RetrospectiveReporter struct{}

// NewRetrospectiveReporter creates a new RetrospectiveReporter.
func NewRetrospectiveReporter() *RetrospectiveReporter {
	return &RetrospectiveReporter{}
}

// GenerateRetrospective analyzes entries and produces a RetrospectiveReport.
func (rr *RetrospectiveReporter) GenerateRetrospective(entries []TransitionEntry) (*RetrospectiveReport, error) {
	report := &RetrospectiveReport{
		ResultsByStatus: make(map[string]int),
		SucceededAmount: make(map[string]int64),
		ErrorBreakdown:  make(map[string]int),
		ProviderUsage:   make(map[string]int),
	}
	if len(entries) == 0 {
		return report, nil
	}

	sessions := make(map[string]struct{})
	report.DateFrom = entries[0].Timestamp
	report.DateTo = entries[0].Timestamp
	for _, e := range entries {
		report.TotalEntries++
		if e.SessionID != "" {
			sessions[e.SessionID] = struct{}{}
		}
		if e.Timestamp.Before(report.DateFrom) {
			report.DateFrom = e.Timestamp
		}
		if e.Timestamp.After(report.DateTo) {
			report.DateTo = e.Timestamp
		}
		if e.ErrorCode != "" {
			report.ErrorBreakdown[e.ErrorCode]++
		}

		// Errors raised inside a state are not transitions.
		if e.From == e.To {
			continue
		}
		switch e.To {
		case stateInvalidPayment:
			report.InvalidPayments++
		case statePaymentResult:
			report.ResultsByStatus[e.Status]++
			if e.Provider != "" {
				report.ProviderUsage[e.Provider]++
			}
			if e.Status == "Succeeded" {
				report.SucceededAmount[e.Currency] += e.Amount
			}
		}
	}
	report.Sessions = len(sessions)
	report.ProcessingDuration = report.DateTo.Sub(report.DateFrom)
	return report, nil
}
