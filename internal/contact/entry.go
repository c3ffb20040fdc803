package contact

import "strings"

// Label is the category a local field value is filed under.
type Label string

const (
	LabelHome    Label = "home"
	LabelMobile  Label = "mobile"
	LabelMailing Label = "mailing"
	LabelWork    Label = "work"
	LabelOther   Label = "other"
)

// LabeledValue is a phone number or email address with its category.
type LabeledValue struct {
	Label Label
	Value string
}

// LabeledPostal is a stored address with its category.
type LabeledPostal struct {
	Label  Label
	Postal Postal
}

// LocalEntry is a transient view of one local directory entry, limited to
// the fields reconciliation reads or writes.
type LocalEntry struct {
	ID        string
	FirstName string
	LastName  string
	JobTitle  string
	Birthday  *Date
	Phones    []LabeledValue
	Emails    []LabeledValue
	Addresses []LabeledPostal
}

// FullName joins first and last name with a single space.
func (e *LocalEntry) FullName() string {
	return strings.TrimSpace(e.FirstName + " " + e.LastName)
}

// Phone returns the first phone number filed under label.
func (e *LocalEntry) Phone(label Label) (string, bool) {
	return lookupLabeled(e.Phones, label)
}

// Email returns the first email address filed under label.
func (e *LocalEntry) Email(label Label) (string, bool) {
	return lookupLabeled(e.Emails, label)
}

// Address returns the first address filed under label.
func (e *LocalEntry) Address(label Label) (Postal, bool) {
	for _, a := range e.Addresses {
		if a.Label == label {
			return a.Postal, true
		}
	}
	return Postal{}, false
}

// Clone returns a deep copy of e.
func (e *LocalEntry) Clone() *LocalEntry {
	c := *e
	if e.Birthday != nil {
		b := *e.Birthday
		c.Birthday = &b
	}
	c.Phones = append([]LabeledValue(nil), e.Phones...)
	c.Emails = append([]LabeledValue(nil), e.Emails...)
	c.Addresses = append([]LabeledPostal(nil), e.Addresses...)
	return &c
}

func lookupLabeled(values []LabeledValue, label Label) (string, bool) {
	for _, v := range values {
		if v.Label == label {
			return v.Value, true
		}
	}
	return "", false
}

// Patch is the set of field writes produced by the merge policy. A nil
// field is not written.
type Patch struct {
	FirstName      *string
	LastName       *string
	JobTitle       *string
	Birthday       *Date
	HomeAddress    *Postal
	MailingAddress *Postal
	MobilePhone    *string
	HomeEmail      *string
}

// Empty reports whether the patch writes nothing.
func (p Patch) Empty() bool {
	return len(p.Fields()) == 0
}

// Fields lists the written local fields in a stable order.
func (p Patch) Fields() []string {
	var out []string
	add := func(set bool, name string) {
		if set {
			out = append(out, name)
		}
	}
	add(p.FirstName != nil, "firstName")
	add(p.LastName != nil, "lastName")
	add(p.JobTitle != nil, "jobTitle")
	add(p.Birthday != nil, "birthday")
	add(p.HomeAddress != nil, "homeAddress")
	add(p.MailingAddress != nil, "mailingAddress")
	add(p.MobilePhone != nil, "mobilePhone")
	add(p.HomeEmail != nil, "homeEmail")
	return out
}

// ApplyTo writes the patch into e. Labeled categories are replaced as a
// whole, never merged field by field.
func (p Patch) ApplyTo(e *LocalEntry) {
	if p.FirstName != nil {
		e.FirstName = *p.FirstName
	}
	if p.LastName != nil {
		e.LastName = *p.LastName
	}
	if p.JobTitle != nil {
		e.JobTitle = *p.JobTitle
	}
	if p.Birthday != nil {
		b := *p.Birthday
		e.Birthday = &b
	}
	if p.HomeAddress != nil {
		e.Addresses = replacePostal(e.Addresses, LabelHome, *p.HomeAddress)
	}
	if p.MailingAddress != nil {
		e.Addresses = replacePostal(e.Addresses, LabelMailing, *p.MailingAddress)
	}
	if p.MobilePhone != nil {
		e.Phones = replaceLabeled(e.Phones, LabelMobile, *p.MobilePhone)
	}
	if p.HomeEmail != nil {
		e.Emails = replaceLabeled(e.Emails, LabelHome, *p.HomeEmail)
	}
}

func replaceLabeled(values []LabeledValue, label Label, value string) []LabeledValue {
	out := make([]LabeledValue, 0, len(values)+1)
	for _, v := range values {
		if v.Label != label {
			out = append(out, v)
		}
	}
	return append(out, LabeledValue{Label: label, Value: value})
}

func replacePostal(values []LabeledPostal, label Label, postal Postal) []LabeledPostal {
	out := make([]LabeledPostal, 0, len(values)+1)
	for _, v := range values {
		if v.Label != label {
			out = append(out, v)
		}
	}
	return append(out, LabeledPostal{Label: label, Postal: postal})
}
