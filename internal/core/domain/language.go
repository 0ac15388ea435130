package domain

// Supported UI languages. The stored preference survives reloads alongside
// the bearer token.
const (
	LangEnglish = "en"
	LangGreek   = "el"
)

// NormalizeLanguage maps a stored preference to a supported language,
// translating the legacy "gr" alias and defaulting to English for anything
// unrecognised.
func NormalizeLanguage(s string) string {
	switch s {
	case LangGreek, "gr":
		return LangGreek
	case LangEnglish, "":
		return LangEnglish
	default:
		return LangEnglish
	}
}
