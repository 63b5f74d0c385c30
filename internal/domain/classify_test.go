package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifier_Classify(t *testing.T) {
	c := NewClassifier(DefaultKeywordRules())

	tests := []struct {
		name     string
		input    string
		expected Category
	}{
		{"aggravated assault", "AGGRAVATED ASSAULT", CategoryViolent},
		{"homicide", "Homicide - Willful", CategoryViolent},
		{"robbery", "ROBBERY W/ FIREARM", CategoryViolent},
		{"burglary", "Burglary - Residential", CategoryProperty},
		{"grand theft auto", "Grand Theft Auto", CategoryProperty},
		{"larceny", "LARCENY FROM VEHICLE", CategoryProperty},
		{"vandalism", "Vandalism/Graffiti", CategoryProperty},
		{"narcotics", "Possession of Narcotics", CategoryDrugs},
		{"liquor law precedence", "Liquor Law Violation", CategoryDrugs},
		{"disorderly conduct", "Disorderly Conduct", CategoryQualityOfLife},
		{"dui", "DUI Alcohol", CategoryTraffic},
		{"empty input", "", CategoryOther},
		{"no keyword match", "Suspicious Occurrence", CategoryOther},
		{"explicit other", "Other Offenses", CategoryOther},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, c.Classify(tc.input))
		})
	}
}

// Keyword position decides overlaps: "drug" is scanned before "dui", so text
// containing both classifies as drugs regardless of which term is more
// specific to the report.
func TestClassifier_OrderPrecedence(t *testing.T) {
	c := NewClassifier(DefaultKeywordRules())

	assert.Equal(t, CategoryDrugs, c.Classify("DUI with drug possession"))
	// "theft" precedes "fraud" in the table.
	assert.Equal(t, CategoryProperty, c.Classify("Theft by fraud"))
}

func TestClassifier_AlwaysReturnsKnownCategory(t *testing.T) {
	c := NewClassifier(DefaultKeywordRules())
	known := map[Category]bool{
		CategoryViolent:       true,
		CategoryProperty:      true,
		CategoryDrugs:         true,
		CategoryQualityOfLife: true,
		CategoryTraffic:       true,
		CategoryOther:         true,
	}

	inputs := []string{"", "assault", "zzz", "Liquor Law", "ARSON", "prostitution"}
	for _, in := range inputs {
		assert.True(t, known[c.Classify(in)], "input %q", in)
	}
}
