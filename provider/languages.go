package provider

import (
	"strings"

	"golang.org/x/text/language"
)

func parseTag(code string) (language.Tag, bool) {
	tag, err := language.Parse(strings.ReplaceAll(strings.TrimSpace(code), "_", "-"))
	return tag, err == nil
}

// deeplSource returns the DeepL source language, which never carries a region.
func deeplSource(code string) string {
	tag, ok := parseTag(code)
	if !ok {
		return strings.ToUpper(code)
	}
	base, _ := tag.Base()
	return strings.ToUpper(base.String())
}

// deeplTarget returns the DeepL target language. English and Portuguese
// need a regional variant and Chinese a script.
func deeplTarget(code string) string {
	tag, ok := parseTag(code)
	if !ok {
		return strings.ToUpper(code)
	}
	base, _ := tag.Base()
	region, regionConf := tag.Region()
	hasRegion := regionConf == language.Exact

	switch base.String() {
	case "en":
		if hasRegion && region.String() == "GB" {
			return "EN-GB"
		}
		return "EN-US"
	case "pt":
		if hasRegion && region.String() == "BR" {
			return "PT-BR"
		}
		return "PT-PT"
	case "zh":
		if hasRegion && (region.String() == "TW" || region.String() == "HK") {
			return "ZH-HANT"
		}
		return "ZH-HANS"
	}
	return strings.ToUpper(base.String())
}

// azureCode returns the Azure Translator language code.
func azureCode(code string) string {
	tag, ok := parseTag(code)
	if !ok {
		return code
	}
	base, _ := tag.Base()
	region, regionConf := tag.Region()
	hasRegion := regionConf == language.Exact

	switch base.String() {
	case "zh":
		if hasRegion && (region.String() == "TW" || region.String() == "HK") {
			return "zh-Hant"
		}
		return "zh-Hans"
	case "pt":
		if hasRegion && region.String() == "PT" {
			return "pt-PT"
		}
		return "pt"
	case "fr":
		if hasRegion && region.String() == "CA" {
			return "fr-CA"
		}
	}
	return base.String()
}

// googleTag returns the language tag sent to Google Cloud Translation.
func googleTag(code string) (language.Tag, error) {
	return language.Parse(strings.ReplaceAll(strings.TrimSpace(code), "_", "-"))
}
