package domain

import "strings"

// KeywordRule pairs a lower-case keyword with the category it maps to.
type KeywordRule struct {
	Keyword  string
	Category Category
}

// DefaultKeywordRules returns the ordered classification table. Order is
// load-bearing: overlapping keywords resolve by position, not specificity
// ("liquor law" must be scanned before a later rule could see "violation",
// and "assault" claims "aggravated assault" strings before anything else).
// Callers must not reorder the slice.
func DefaultKeywordRules() []KeywordRule {
	return []KeywordRule{
		// Part I violent crimes.
		{"homicide", CategoryViolent},
		{"murder", CategoryViolent},
		{"manslaughter", CategoryViolent},
		{"robbery", CategoryViolent},
		{"assault", CategoryViolent},
		{"aggravated assault", CategoryViolent},
		{"rape", CategoryViolent},
		{"sexual assault", CategoryViolent},

		// Part I property crimes.
		{"burglary", CategoryProperty},
		{"theft", CategoryProperty},
		{"larceny", CategoryProperty},
		{"motor vehicle theft", CategoryProperty},
		{"arson", CategoryProperty},

		// Part II offenses.
		{"drug", CategoryDrugs},
		{"narcotics", CategoryDrugs},
		{"disorderly conduct", CategoryQualityOfLife},
		{"vandalism", CategoryProperty},
		{"fraud", CategoryProperty},
		{"dui", CategoryTraffic},
		{"prostitution", CategoryQualityOfLife},
		{"liquor law", CategoryDrugs},
		{"forgery", CategoryProperty},
		{"embezzlement", CategoryProperty},

		{"other", CategoryOther},
	}
}

// Classifier maps free-text crime descriptions to coarse categories with an
// ordered first-substring-wins scan.
type Classifier struct {
	rules []KeywordRule
}

// NewClassifier builds a classifier over the given rules. The rules slice is
// treated as immutable; pass DefaultKeywordRules() for production behavior.
func NewClassifier(rules []KeywordRule) *Classifier {
	return &Classifier{rules: rules}
}

// Classify returns the category of the first keyword found as a substring of
// the lower-cased input. Empty or unmatched input yields CategoryOther, so
// canonical incidents always carry a category.
func (c *Classifier) Classify(crimeType string) Category {
	if crimeType == "" {
		return CategoryOther
	}
	lower := strings.ToLower(crimeType)
	for _, rule := range c.rules {
		if strings.Contains(lower, rule.Keyword) {
			return rule.Category
		}
	}
	return CategoryOther
}
