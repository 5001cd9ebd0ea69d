package insights

import "strings"

// CategoryGeneral is the fallback for provider categories the registry does
// not recognize.
const CategoryGeneral = "general"

// Registered insight categories.
var registeredCategories = map[string]bool{
	"clinical_trial": true,
	"regulatory":     true,
	"partnership":    true,
	"financial":      true,
	"leadership":     true,
	"product":        true,
	"legal":          true,
	"market":         true,
	CategoryGeneral:  true,
}

// categoryKeywords maps free-form provider labels onto registered categories.
var categoryKeywords = map[string]string{
	"trial":       "clinical_trial",
	"clinical":    "clinical_trial",
	"phase":       "clinical_trial",
	"fda":         "regulatory",
	"ema":         "regulatory",
	"approval":    "regulatory",
	"collab":      "partnership",
	"alliance":    "partnership",
	"acquisition": "partnership",
	"merger":      "partnership",
	"earnings":    "financial",
	"funding":     "financial",
	"revenue":     "financial",
	"ceo":         "leadership",
	"executive":   "leadership",
	"appoint":     "leadership",
	"launch":      "product",
	"patent":      "legal",
	"lawsuit":     "legal",
	"litigation":  "legal",
	"competitor":  "market",
	"stock":       "market",
}

// NormalizeCategory maps a provider-supplied category onto the registered
// enumeration. Unrecognized labels fall back to general; the second return
// reports whether the label was recognized.
func NormalizeCategory(raw string) (string, bool) {
	label := strings.ToLower(strings.TrimSpace(raw))
	label = strings.ReplaceAll(label, " ", "_")
	label = strings.ReplaceAll(label, "-", "_")
	if label == "" {
		return CategoryGeneral, true
	}
	if registeredCategories[label] {
		return label, true
	}
	for keyword, category := range categoryKeywords {
		if strings.Contains(label, keyword) {
			return category, true
		}
	}
	return CategoryGeneral, false
}

// Categories returns the registered category names.
func Categories() []string {
	out := make([]string, 0, len(registeredCategories))
	for name := range registeredCategories {
		out = append(out, name)
	}
	return out
}
