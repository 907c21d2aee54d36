package core

type defaultCategory struct {
	name          string
	subcategories []string
}

var defaultExpenseCategories = []defaultCategory{
	{"Housing", []string{"Rent", "Mortgage", "Maintenance"}},
	{"Food", []string{"Groceries", "Restaurants"}},
	{"Transportation", []string{"Fuel", "Public Transport", "Car Maintenance"}},
	{"Utilities", []string{"Electricity", "Water", "Internet", "Phone"}},
	{"Healthcare", []string{"Doctor", "Pharmacy", "Insurance"}},
	{"Entertainment", []string{"Movies", "Subscriptions", "Hobbies"}},
	{"Shopping", []string{"Clothing", "Electronics", "Household"}},
	{"Education", []string{"Tuition", "Books", "Courses"}},
}

var defaultIncomeCategories = []defaultCategory{
	{"Salary", nil},
	{"Freelance", nil},
	{"Investments", []string{"Dividends", "Interest"}},
	{"Gifts", nil},
	{"Other Income", nil},
}

// DefaultCategories returns the categories seeded into a new family.
func DefaultCategories(familyID string) []Category {
	out := make([]Category, 0, len(defaultExpenseCategories)+len(defaultIncomeCategories))
	add := func(defs []defaultCategory, t TransactionType) {
		for _, d := range defs {
			out = append(out, Category{
				ID:            NewID(),
				FamilyID:      familyID,
				Name:          d.name,
				Type:          t,
				IsDefault:     true,
				Subcategories: append([]string(nil), d.subcategories...),
			})
		}
	}
	add(defaultExpenseCategories, Expense)
	add(defaultIncomeCategories, Income)
	return out
}
