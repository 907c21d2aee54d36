// Package core holds the Kanakku entities, their validation rules and the
// typed errors shared by every other package.
package core

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	Checking   AccountType = "Checking"
	Savings    AccountType = "Savings"
	CreditCard AccountType = "Credit Card"
	Cash       AccountType = "Cash"
)

const (
	Income  TransactionType = "income"
	Expense TransactionType = "expense"
)

const (
	RoleOwner  Role = "owner"
	RoleMember Role = "member"
)

const maxDescriptionLength = 200

type (
	AccountType     string
	TransactionType string
	Role            string

	// Account balance is only ever changed by the ledger mutator.
	Account struct {
		ID        string
		FamilyID  string
		Name      string
		Type      AccountType
		Balance   decimal.Decimal
		Version   int64
		CreatedAt time.Time
	}

	// Transaction amounts are signed: income positive, expense negative.
	// Empty optional references mean "none".
	Transaction struct {
		ID              string
		FamilyID        string
		UID             string
		AccountID       string
		Amount          decimal.Decimal
		Type            TransactionType
		Description     string
		CategoryID      string
		Category        string // "Name" or "Name: Sub"
		Subcategory     string
		Date            time.Time
		GoalID          string
		EventID         string
		EventCategoryID string
		NeedsReview     bool
		ReviewedBy      string
		Version         int64
		CreatedAt       time.Time
		UpdatedAt       time.Time
	}

	Budget struct {
		ID        string
		FamilyID  string
		Category  string
		Amount    decimal.Decimal
		Month     string // "October 2025"
		CreatedAt time.Time
	}

	Goal struct {
		ID           string
		FamilyID     string
		GoalName     string
		TargetAmount decimal.Decimal
		TargetDate   time.Time
		CreatedAt    time.Time
	}

	Event struct {
		ID            string
		FamilyID      string
		Name          string
		EstimatedCost decimal.Decimal
		EventDate     time.Time
		CreatedAt     time.Time
	}

	EventCategory struct {
		ID              string
		FamilyID        string
		EventID         string
		Name            string
		EstimatedBudget decimal.Decimal
		CreatedAt       time.Time
	}

	Category struct {
		ID            string
		FamilyID      string
		Name          string
		Type          TransactionType
		IsDefault     bool
		Subcategories []string
		CreatedAt     time.Time
	}

	Family struct {
		ID         string
		OwnerID    string
		InviteCode string
		CreatedAt  time.Time
	}

	// User without a FamilyID is onboarding.
	User struct {
		UID       string
		Email     string
		FamilyID  string
		Role      Role
		Version   int64
		CreatedAt time.Time
		UpdatedAt time.Time
	}

	// Actor is the authenticated principal a request runs as.
	Actor struct {
		UID      string
		Email    string
		FamilyID string
		Role     Role
	}
)

// NewID returns a fresh document identifier.
func NewID() string {
	return uuid.NewString()
}

func (t AccountType) Valid() bool {
	switch t {
	case Checking, Savings, CreditCard, Cash:
		return true
	}
	return false
}

func (t TransactionType) Valid() bool {
	return t == Income || t == Expense
}

// ParseTransactionType accepts "income"/"expense" in any case.
func ParseTransactionType(s string) (TransactionType, error) {
	t := TransactionType(strings.ToLower(strings.TrimSpace(s)))
	if !t.Valid() {
		return "", Validationf("parse type", "type must be %q or %q", Income, Expense)
	}
	return t, nil
}

// Onboarding reports whether the user still has to create or join a family.
func (u User) Onboarding() bool {
	return u.FamilyID == ""
}

func (u User) Actor() Actor {
	return Actor{UID: u.UID, Email: u.Email, FamilyID: u.FamilyID, Role: u.Role}
}

// RequireFamily fails with an authorization error when the actor has no family.
func (a Actor) RequireFamily(op string) error {
	if a.UID == "" {
		return Unauthorizedf(op, "not signed in")
	}
	if a.FamilyID == "" {
		return Unauthorizedf(op, "join or create a family first")
	}
	return nil
}

func (a Actor) IsOwner() bool {
	return a.Role == RoleOwner
}

func (a Account) Validate() error {
	if strings.TrimSpace(a.Name) == "" {
		return Validationf("account", "name is required")
	}
	if !a.Type.Valid() {
		return Validationf("account", "unknown account type %q", a.Type)
	}
	return nil
}

// CheckSign verifies that the stored amount agrees with the transaction type.
func (tx Transaction) CheckSign() error {
	switch {
	case tx.Type == Income && tx.Amount.IsPositive():
		return nil
	case tx.Type == Expense && tx.Amount.IsNegative():
		return nil
	}
	return Validationf("transaction", "amount %s does not agree with type %q", tx.Amount, tx.Type)
}

// Magnitude is the unsigned amount.
func (tx Transaction) Magnitude() decimal.Decimal {
	return tx.Amount.Abs()
}

func (tx Transaction) Validate() error {
	if tx.AccountID == "" {
		return Validationf("transaction", "account is required")
	}
	if !tx.Type.Valid() {
		return Validationf("transaction", "type must be %q or %q", Income, Expense)
	}
	if err := tx.CheckSign(); err != nil {
		return err
	}
	if tx.CategoryID == "" {
		return Validationf("transaction", "category is required")
	}
	if len(tx.Description) > maxDescriptionLength {
		return Validationf("transaction", "description too long (max %d characters)", maxDescriptionLength)
	}
	if tx.Date.IsZero() {
		return Validationf("transaction", "date is required")
	}
	return nil
}

func (b Budget) Validate() error {
	if strings.TrimSpace(b.Category) == "" {
		return Validationf("budget", "category is required")
	}
	if !b.Amount.IsPositive() {
		return Validationf("budget", "amount must be greater than zero")
	}
	if _, err := ParseMonthLabel(b.Month); err != nil {
		return err
	}
	return nil
}

func (g Goal) Validate() error {
	if strings.TrimSpace(g.GoalName) == "" {
		return Validationf("goal", "name is required")
	}
	if !g.TargetAmount.IsPositive() {
		return Validationf("goal", "target amount must be greater than zero")
	}
	if g.TargetDate.IsZero() {
		return Validationf("goal", "target date is required")
	}
	return nil
}

func (e Event) Validate() error {
	if strings.TrimSpace(e.Name) == "" {
		return Validationf("event", "name is required")
	}
	if !e.EstimatedCost.IsPositive() {
		return Validationf("event", "estimated cost must be greater than zero")
	}
	if e.EventDate.IsZero() {
		return Validationf("event", "event date is required")
	}
	return nil
}

func (c EventCategory) Validate() error {
	if c.EventID == "" {
		return Validationf("event category", "event is required")
	}
	if strings.TrimSpace(c.Name) == "" {
		return Validationf("event category", "name is required")
	}
	if !c.EstimatedBudget.IsPositive() {
		return Validationf("event category", "estimated budget must be greater than zero")
	}
	return nil
}

func (c Category) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return Validationf("category", "name is required")
	}
	if strings.Contains(c.Name, ":") {
		return Validationf("category", "name cannot contain ':'")
	}
	if !c.Type.Valid() {
		return Validationf("category", "type must be %q or %q", Income, Expense)
	}
	for _, s := range c.Subcategories {
		if strings.TrimSpace(s) == "" {
			return Validationf("category", "subcategory names cannot be empty")
		}
	}
	return nil
}

// HasSubcategory reports whether sub is one of the category's subcategories, ignoring case.
func (c Category) HasSubcategory(sub string) (string, bool) {
	for _, s := range c.Subcategories {
		if strings.EqualFold(s, strings.TrimSpace(sub)) {
			return s, true
		}
	}
	return "", false
}
