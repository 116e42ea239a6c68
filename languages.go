package transctl

import (
	"fmt"
	"sort"
	"strings"

	"golang.org/x/text/language"
)

// SupportedLanguages maps accepted language codes to human-readable names.
var SupportedLanguages = map[string]string{
	"ar":    "Arabic",
	"bg":    "Bulgarian",
	"cs":    "Czech",
	"da":    "Danish",
	"de":    "German",
	"el":    "Greek",
	"en":    "English",
	"en-GB": "English (United Kingdom)",
	"en-US": "English (United States)",
	"es":    "Spanish",
	"et":    "Estonian",
	"fi":    "Finnish",
	"fr":    "French",
	"he":    "Hebrew",
	"hi":    "Hindi",
	"hu":    "Hungarian",
	"id":    "Indonesian",
	"it":    "Italian",
	"ja":    "Japanese",
	"ko":    "Korean",
	"lt":    "Lithuanian",
	"lv":    "Latvian",
	"nb":    "Norwegian Bokmål",
	"nl":    "Dutch",
	"pl":    "Polish",
	"pt":    "Portuguese",
	"pt-BR": "Portuguese (Brazil)",
	"pt-PT": "Portuguese (Portugal)",
	"ro":    "Romanian",
	"ru":    "Russian",
	"sk":    "Slovak",
	"sl":    "Slovenian",
	"sv":    "Swedish",
	"th":    "Thai",
	"tr":    "Turkish",
	"uk":    "Ukrainian",
	"vi":    "Vietnamese",
	"zh":    "Chinese (Simplified)",
	"zh-TW": "Chinese (Traditional)",
}

// NormalizeLocale converts a language code to the canonical form used as key
// in SupportedLanguages (e.g., "pt_br" → "pt-BR").
func NormalizeLocale(code string) string {
	code = strings.ReplaceAll(strings.TrimSpace(code), "_", "-")
	tag, err := language.Parse(code)
	if err != nil {
		return code
	}
	return tag.String()
}

// TargetLanguages normalizes targets and drops duplicates and any target
// equal to source, keeping the first spelling order.
func TargetLanguages(source string, targets []string) []string {
	seen := map[string]bool{NormalizeLocale(source): true}
	out := make([]string, 0, len(targets))
	for _, t := range targets {
		t = NormalizeLocale(t)
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}

// IsSupported reports whether code names a supported language.
func IsSupported(code string) bool {
	_, ok := SupportedLanguages[NormalizeLocale(code)]
	return ok
}

// ValidateLanguage returns a ConfigError if code is not a supported language.
func ValidateLanguage(code string) error {
	if strings.TrimSpace(code) == "" {
		return &ConfigError{Message: "empty language code"}
	}
	if _, err := language.Parse(strings.ReplaceAll(code, "_", "-")); err != nil {
		return &ConfigError{Message: fmt.Sprintf("invalid language code %q", code), Cause: err}
	}
	if !IsSupported(code) {
		return &ConfigError{Message: fmt.Sprintf("language %q is not supported", code)}
	}
	return nil
}

// GetLanguageName returns the human-readable name for a language code.
// Falls back to the code itself if not found.
func GetLanguageName(code string) string {
	if name, ok := SupportedLanguages[NormalizeLocale(code)]; ok {
		return name
	}
	return code
}

// BaseLanguage returns the primary language subtag ("pt" for "pt-BR").
func BaseLanguage(code string) string {
	tag, err := language.Parse(strings.ReplaceAll(code, "_", "-"))
	if err != nil {
		return strings.ToLower(strings.SplitN(code, "-", 2)[0])
	}
	base, _ := tag.Base()
	return base.String()
}

// SortedLanguages returns the supported codes in lexical order.
func SortedLanguages() []string {
	codes := make([]string, 0, len(SupportedLanguages))
	for code := range SupportedLanguages {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}
