package campaign

import (
	"strings"
	"time"

	"github.com/arflow/backend/internal/domain/shared"
)

// NormalizeEmail canonicalizes an address for preference lookups and the
// dedup ledger. The preference table keys on the normalized form.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// OptOutScope names which campaign tiers an opt-out covers.
type OptOutScope string

const (
	OptOutScopeAll         OptOutScope = "all"
	OptOutScopeReminders   OptOutScope = "reminders"
	OptOutScopeCollections OptOutScope = "collections"
)

// IsValid checks the opt-out scope
func (s OptOutScope) IsValid() bool {
	switch s {
	case OptOutScopeAll, OptOutScopeReminders, OptOutScopeCollections:
		return true
	}
	return false
}

// CustomerPreference holds per-recipient dunning opt-outs at three
// granularities: everything, reminder tiers only, or collection tiers only.
// Scoped opt-outs accumulate; an opt-in clears all of them.
type CustomerPreference struct {
	Email               string
	OptedOutAll         bool
	OptedOutReminders   bool
	OptedOutCollections bool
	OptOutAt            *time.Time
	Source              string
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// NewCustomerPreference creates an opted-in preference record.
func NewCustomerPreference(email string) (*CustomerPreference, error) {
	email = NormalizeEmail(email)
	if email == "" {
		return nil, shared.NewDomainError("INVALID_EMAIL", "Email cannot be empty")
	}
	now := time.Now()
	return &CustomerPreference{
		Email:     email,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// IsOptedOut reports whether any opt-out flag is set.
func (p *CustomerPreference) IsOptedOut() bool {
	return p.OptedOutAll || p.OptedOutReminders || p.OptedOutCollections
}

// OptedOutFor reports whether sends from a campaign of the given type are
// suppressed.
func (p *CustomerPreference) OptedOutFor(typ CampaignType) bool {
	if p.OptedOutAll {
		return true
	}
	if p.OptedOutReminders && typ.IsReminder() {
		return true
	}
	return p.OptedOutCollections && typ.IsCollection()
}

// OptOut suppresses future sends for the given scope.
func (p *CustomerPreference) OptOut(scope OptOutScope, source string, now time.Time) error {
	switch scope {
	case OptOutScopeAll:
		p.OptedOutAll = true
	case OptOutScopeReminders:
		p.OptedOutReminders = true
	case OptOutScopeCollections:
		p.OptedOutCollections = true
	default:
		return shared.NewDomainError("INVALID_OPT_OUT_SCOPE", "Unknown opt-out scope")
	}
	p.OptOutAt = &now
	p.Source = source
	p.UpdatedAt = now
	return nil
}

// OptIn clears every opt-out flag.
func (p *CustomerPreference) OptIn(now time.Time) {
	p.OptedOutAll = false
	p.OptedOutReminders = false
	p.OptedOutCollections = false
	p.OptOutAt = nil
	p.UpdatedAt = now
}
