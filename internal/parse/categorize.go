// Package parse turns raw notification messages into structured transaction
// candidates using a fixed, ordered set of extraction rules.
package parse

import "strings"

// categoryRule pairs a category name with the substrings that select it.
// Rules are checked in order; the first hit wins, so the list order is part
// of the contract (e.g. "Whole Foods" matches Food & Dining before the
// groceries bucket gets a look).
type categoryRule struct {
	name     string
	keywords []string
}

var categoryRules = []categoryRule{
	{
		name: "Food & Dining",
		keywords: []string{
			"restaurant", "cafe", "coffee", "food", "dining", "swiggy",
			"zomato", "dominos", "pizza", "starbucks", "mcdonald", "kfc",
			"burger", "bakery", "eatery", "kitchen", "doordash", "uber eats",
		},
	},
	{
		name: "Shopping",
		keywords: []string{
			"amazon", "flipkart", "myntra", "ajio", "ebay", "mall",
			"store", "retail", "clothing", "electronics",
		},
	},
	{
		name: "Transport",
		keywords: []string{
			"uber", "ola", "rapido", "lyft", "fuel", "petrol", "metro",
			"cab", "taxi", "parking", "toll", "irctc", "transit",
		},
	},
	{
		name: "Entertainment",
		keywords: []string{
			"netflix", "spotify", "prime video", "hotstar", "bookmyshow",
			"cinema", "movie", "theatre", "gaming", "subscription",
		},
	},
	{
		name: "Groceries",
		keywords: []string{
			"grocery", "groceries", "bigbasket", "blinkit", "zepto",
			"instamart", "supermarket", "wholefds", "kirana", "mart",
		},
	},
}

// fallbackCategory is returned when nothing matches.
const fallbackCategory = "Others"

// Categorize maps a merchant name and message content to a category name.
// Case-insensitive ordered substring matching, first match wins. The result
// is deterministic for a given input, which dedup and approval learning
// depend on.
func Categorize(merchant, content string) string {
	haystack := strings.ToLower(merchant + " " + content)
	for _, rule := range categoryRules {
		for _, kw := range rule.keywords {
			if strings.Contains(haystack, kw) {
				return rule.name
			}
		}
	}
	return fallbackCategory
}
