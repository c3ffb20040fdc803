// Package contact defines the records exchanged between the remote connection
// source, the reconciliation engine and the local contact directory.
package contact

import (
	"sort"
	"strings"
)

// Field names used in FieldChange records. They follow the naming of the
// remote connection payload.
const (
	FieldBio            = "bio"
	FieldBirthday       = "birthday"
	FieldAddress        = "address"
	FieldMailingAddress = "mailingAddress"
	FieldPhoneNumber    = "phoneNumber"
	FieldEmail          = "email"
)

// ConnectionRef identifies a connection to reconcile.
type ConnectionRef struct {
	ID          string `json:"id" yaml:"id" validate:"required"`
	DisplayName string `json:"displayName,omitempty" yaml:"display_name,omitempty"`
}

// ConnectionDetail is a snapshot of another user's shareable profile.
// An empty string means the field is not shared.
type ConnectionDetail struct {
	ID             string   `json:"id" yaml:"id" validate:"required"`
	FirstName      string   `json:"firstName,omitempty" yaml:"first_name,omitempty"`
	LastName       string   `json:"lastName,omitempty" yaml:"last_name,omitempty"`
	Bio            string   `json:"bio,omitempty" yaml:"bio,omitempty"`
	PhoneNumber    string   `json:"phoneNumber,omitempty" yaml:"phone_number,omitempty"`
	Email          string   `json:"email,omitempty" yaml:"email,omitempty" validate:"omitempty,email"`
	Address        *Address `json:"address,omitempty" yaml:"address,omitempty"`
	MailingAddress *Address `json:"mailingAddress,omitempty" yaml:"mailing_address,omitempty"`
	Birthday       *Date    `json:"birthday,omitempty" yaml:"birthday,omitempty"`
}

// FullName joins first and last name with a single space.
func (d *ConnectionDetail) FullName() string {
	return strings.TrimSpace(d.FirstName + " " + d.LastName)
}

// Address is a postal address as shared by a connection.
type Address struct {
	Street  string `json:"street,omitempty" yaml:"street,omitempty"`
	Unit    string `json:"unit,omitempty" yaml:"unit,omitempty"`
	City    string `json:"city,omitempty" yaml:"city,omitempty"`
	State   string `json:"state,omitempty" yaml:"state,omitempty"`
	ZipCode string `json:"zipCode,omitempty" yaml:"zip_code,omitempty"`
}

// StreetLine returns the street with the unit appended, if any.
func (a Address) StreetLine() string {
	switch {
	case a.Unit == "":
		return a.Street
	case a.Street == "":
		return a.Unit
	default:
		return a.Street + " " + a.Unit
	}
}

// Postal converts the address to its stored form.
func (a Address) Postal() Postal {
	return Postal{
		Street:  a.StreetLine(),
		Unit:    a.Unit,
		City:    a.City,
		State:   a.State,
		ZipCode: a.ZipCode,
	}
}

// String renders the address on one line, e.g. "1 Main St, Springfield, IL 62701".
func (a Address) String() string {
	return a.Postal().String()
}

// Postal is an address as stored in the local directory. Street already
// carries the unit; Unit is kept for directories that have a slot for it.
type Postal struct {
	Street  string `json:"street,omitempty" yaml:"street,omitempty"`
	Unit    string `json:"unit,omitempty" yaml:"unit,omitempty"`
	City    string `json:"city,omitempty" yaml:"city,omitempty"`
	State   string `json:"state,omitempty" yaml:"state,omitempty"`
	ZipCode string `json:"zipCode,omitempty" yaml:"zip_code,omitempty"`
}

// String renders the stored address on one line.
func (p Postal) String() string {
	parts := make([]string, 0, 3)
	if p.Street != "" {
		parts = append(parts, p.Street)
	}
	if p.City != "" {
		parts = append(parts, p.City)
	}
	if region := strings.TrimSpace(p.State + " " + p.ZipCode); region != "" {
		parts = append(parts, region)
	}
	return strings.Join(parts, ", ")
}

// Result is the outcome of reconciling one connection.
type Result struct {
	Connection ConnectionDetail `json:"connection" yaml:"connection"`

	// Changes holds the effective changes only.
	Changes []FieldChange `json:"changes" yaml:"changes"`

	// Audit holds every change planned for an owned field, effective or not.
	Audit []FieldChange `json:"audit,omitempty" yaml:"audit,omitempty"`

	IsNewEntry bool `json:"isNewEntry" yaml:"is_new_entry"`

	// Persisted reports whether the directory write went through. It is
	// always false for dry runs.
	Persisted    bool `json:"persisted" yaml:"persisted"`
	Acknowledged bool `json:"acknowledged" yaml:"acknowledged"`
}

// BatchSummary collects the results of one reconciliation run.
type BatchSummary struct {
	DryRun  bool     `json:"dryRun" yaml:"dry_run"`
	Results []Result `json:"results" yaml:"results"`
}

// SortByID orders results by connection id. Results arrive in completion order.
func (s *BatchSummary) SortByID() {
	sort.SliceStable(s.Results, func(i, j int) bool {
		return s.Results[i].Connection.ID < s.Results[j].Connection.ID
	})
}

// ChangeCount returns the number of effective changes across all results.
func (s *BatchSummary) ChangeCount() int {
	n := 0
	for _, r := range s.Results {
		n += len(r.Changes)
	}
	return n
}

// NewEntryCount returns how many results create a local entry.
func (s *BatchSummary) NewEntryCount() int {
	n := 0
	for _, r := range s.Results {
		if r.IsNewEntry {
			n++
		}
	}
	return n
}

// Unpersisted returns the results of a committed run whose write did not land.
func (s *BatchSummary) Unpersisted() []Result {
	if s.DryRun {
		return nil
	}
	var out []Result
	for _, r := range s.Results {
		if !r.Persisted {
			out = append(out, r)
		}
	}
	return out
}
