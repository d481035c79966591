package extraction

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var titleCaser = cases.Title(language.English)

// DisplayName cleans an extracted borrower name for display and persistence:
// whitespace is collapsed, and all-caps or all-lowercase names (common on
// scanned forms) are title-cased. Mixed-case names pass through unchanged so
// spellings like "McDermott" survive.
func DisplayName(name string) string {
	name = strings.Join(strings.Fields(name), " ")
	if name == "" {
		return ""
	}
	if name == strings.ToUpper(name) || name == strings.ToLower(name) {
		return titleCaser.String(strings.ToLower(name))
	}
	return name
}
