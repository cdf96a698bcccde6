package chunk

import "strings"

// sectionMarkers is the fixed vocabulary that starts a new section. A line
// containing any of these (case-insensitive) begins a section; everything up
// to the next marker belongs to it.
var sectionMarkers = []string{
	"BALANCE SHEET",
	"INCOME STATEMENT",
	"CASH FLOW",
	"FINANCIAL HIGHLIGHTS",
	"REVENUE",
	"EXPENSES",
	"OPERATIONS",
	"ANALYSIS",
	"SUMMARY",
}

// sectionClasses maps keywords to section types in precedence order. The
// first entry whose keyword appears in the chunk's first line wins.
var sectionClasses = []struct {
	keywords []string
	label    SectionType
}{
	{[]string{"BALANCE SHEET"}, SectionBalanceSheet},
	{[]string{"INCOME STATEMENT"}, SectionIncomeStatement},
	{[]string{"CASH FLOW"}, SectionCashFlow},
	{[]string{"REVENUE", "SALES"}, SectionRevenue},
	{[]string{"EXPENSES", "COSTS"}, SectionExpenses},
	{[]string{"OPERATIONS"}, SectionOperations},
	{[]string{"ANALYSIS"}, SectionAnalysis},
}

func isSectionMarker(line string) bool {
	upper := strings.ToUpper(line)
	for _, marker := range sectionMarkers {
		if strings.Contains(upper, marker) {
			return true
		}
	}
	return false
}

// classify determines the section type from the first non-empty line of text.
func classify(text string) SectionType {
	line := firstLine(text)
	upper := strings.ToUpper(line)
	for _, class := range sectionClasses {
		for _, kw := range class.keywords {
			if strings.Contains(upper, kw) {
				return class.label
			}
		}
	}
	return SectionOther
}

func firstLine(text string) string {
	for _, line := range strings.Split(text, "\n") {
		if strings.TrimSpace(line) != "" {
			return line
		}
	}
	return ""
}
