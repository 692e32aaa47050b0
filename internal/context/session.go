package context

import "strings"

// Stage selects which backend deployment a checkout talks to.
type Stage string

const (
	StageDev  Stage = "dev"
	StageLive Stage = "live"
)

// StageFor maps the live flag of an open request to a Stage.
func StageFor(live bool) Stage {
	if live {
		return StageLive
	}
	return StageDev
}

// Language is a supported display language code.
type Language string

const (
	LanguageEN Language = "en"
	LanguageDE Language = "de"
	LanguageET Language = "et"
)

// ParseLanguage reads the first two letters of a locale tag. The second return
// value is false when the tag names no supported language.
func ParseLanguage(tag string) (Language, bool) {
	if len(tag) < 2 {
		return "", false
	}
	lang := Language(strings.ToLower(tag[:2]))
	switch lang {
	case LanguageEN, LanguageDE, LanguageET:
		return lang, true
	}
	return "", false
}

// SessionContext is built once per checkout and handed to every component that
// needs the payment id or the backend address. Its lifetime is the session's.
type SessionContext struct {
	SessionID string
	PaymentID string
	Stage     Stage
	BaseURL   string
	Language  Language
	// ReturnURL and CancelURL are where redirect providers send the payer back to.
	ReturnURL string
	CancelURL string
}
