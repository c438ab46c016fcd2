package domain

// Default reference data seeded at onboarding. Users can rename or remove
// any of these afterwards; transactions keep referencing names by value.

func DefaultCategories() []Category {
	return []Category{
		{ID: "cat-food", Name: "Food & Dining", Icon: "restaurant", Color: "#FF7043"},
		{ID: "cat-shopping", Name: "Shopping", Icon: "cart", Color: "#5C6BC0"},
		{ID: "cat-transport", Name: "Transport", Icon: "car", Color: "#26A69A"},
		{ID: "cat-entertainment", Name: "Entertainment", Icon: "film", Color: "#AB47BC"},
		{ID: "cat-groceries", Name: "Groceries", Icon: "basket", Color: "#66BB6A"},
		{ID: "cat-salary", Name: "Salary", Icon: "wallet", Color: "#FFA726"},
		{ID: "cat-others", Name: "Others", Icon: "ellipsis", Color: "#78909C"},
	}
}

func DefaultPaymentMethods() []PaymentMethod {
	return []PaymentMethod{
		{ID: "pm-upi", Name: "UPI", Icon: "flash", Type: "upi"},
		{ID: "pm-cash", Name: "Cash", Icon: "cash", Type: "cash"},
		{ID: "pm-other", Name: "Other", Icon: "card", Type: "other"},
	}
}

// DefaultKeywords are the financial keywords every mailbox query includes.
// Missing entries are merged into the keyword store before the first query.
func DefaultKeywords() []Keyword {
	return []Keyword{
		{ID: "kw-debited", Text: "debited", Category: TypeExpense},
		{ID: "kw-credited", Text: "credited", Category: TypeIncome},
		{ID: "kw-salary", Text: "salary", Category: TypeIncome},
		{ID: "kw-payment", Text: "payment received", Category: TypeIncome},
		{ID: "kw-upi", Text: "UPI", Category: TypeExpense},
		{ID: "kw-hdfc", Text: "HDFC Bank", Category: TypeExpense},
		{ID: "kw-icici", Text: "ICICI Bank", Category: TypeExpense},
		{ID: "kw-sbi", Text: "SBI", Category: TypeExpense},
		{ID: "kw-axis", Text: "Axis Bank", Category: TypeExpense},
		{ID: "kw-chase", Text: "Chase", Category: TypeExpense},
		{ID: "kw-amex", Text: "American Express", Category: TypeExpense},
	}
}
