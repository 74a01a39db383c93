package model

import (
	"fmt"
	"strings"
)

// Platform is the operating system a catalog listing is filtered by.
type Platform int

const (
	// PlatformWindows selects Windows installers (catalog id 150, tier T1).
	PlatformWindows Platform = iota

	// PlatformMac selects Mac installers (catalog id 153, tier T2).
	PlatformMac
)

// ParsePlatform accepts "win", "windows", "mac" or "macos" in any case.
func ParsePlatform(s string) (Platform, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "win", "windows":
		return PlatformWindows, nil
	case "mac", "macos":
		return PlatformMac, nil
	default:
		return 0, fmt.Errorf("invalid platform: %s (use 'win' or 'mac')", s)
	}
}

// String returns the name used in export file names.
func (p Platform) String() string {
	if p == PlatformMac {
		return "Mac"
	}
	return "Windows"
}

// CatalogID returns the id the catalog's platform filter expects.
func (p Platform) CatalogID() string {
	if p == PlatformMac {
		return "153"
	}
	return "150"
}

// Language is a catalog partition. Each language maps to the L<number>
// label embedded in WrapIDs and to a catalog filter id.
type Language struct {
	// Code is the short name used on the command line, e.g. "eng".
	Code string

	// Name is the English language name.
	Name string

	// Label is the WrapID partition label, e.g. "L1".
	Label string

	// CatalogID is the value of the catalog's language filter.
	CatalogID string
}

// Languages lists every partition the catalog knows about.
var Languages = []Language{
	{Code: "eng", Name: "English", Label: "L1", CatalogID: "114"},
	{Code: "ger", Name: "German", Label: "L2", CatalogID: "117"},
	{Code: "spa", Name: "Spanish", Label: "L3", CatalogID: "120"},
	{Code: "fre", Name: "French", Label: "L4", CatalogID: "123"},
	{Code: "ita", Name: "Italian", Label: "L7", CatalogID: "126"},
	{Code: "jap", Name: "Japanese", Label: "L8", CatalogID: "129"},
	{Code: "dut", Name: "Dutch", Label: "L10", CatalogID: "135"},
	{Code: "swe", Name: "Swedish", Label: "L11", CatalogID: "138"},
	{Code: "dan", Name: "Danish", Label: "L12", CatalogID: "141"},
	{Code: "por", Name: "Portuguese", Label: "L13", CatalogID: "144"},
}

// ParseLanguage accepts a language code ("ger") or name ("german").
func ParseLanguage(s string) (Language, error) {
	key := strings.ToLower(strings.TrimSpace(s))
	for _, lang := range Languages {
		if key == lang.Code || key == strings.ToLower(lang.Name) {
			return lang, nil
		}
	}
	return Language{}, fmt.Errorf("invalid language: %s", s)
}

// ParseLanguages parses a comma-separated list, dropping duplicates.
func ParseLanguages(s string) ([]Language, error) {
	var langs []Language
	seen := make(map[string]struct{})
	for _, part := range strings.Split(s, ",") {
		if strings.TrimSpace(part) == "" {
			continue
		}
		lang, err := ParseLanguage(part)
		if err != nil {
			return nil, err
		}
		if _, ok := seen[lang.Code]; ok {
			continue
		}
		seen[lang.Code] = struct{}{}
		langs = append(langs, lang)
	}
	if len(langs) == 0 {
		return nil, fmt.Errorf("no language given")
	}
	return langs, nil
}
