package engine

import "github.com/tartampluch/go-contactsync/internal/contact"

// Plan maps a connection and its matched local entry (nil when none) to the
// writes to perform and one FieldChange per owned field present on the
// connection. Changes are reported whether or not they are effective.
//
// Owned fields are always overwritten. Names are only written for new entries.
func Plan(d *contact.ConnectionDetail, existing *contact.LocalEntry) (contact.Patch, []contact.FieldChange) {
	var (
		patch   contact.Patch
		changes []contact.FieldChange
	)

	record := func(field string, old *string, next string) {
		changes = append(changes, contact.FieldChange{Field: field, Old: old, New: &next})
	}

	if existing == nil {
		if d.FirstName != "" {
			patch.FirstName = ptr(d.FirstName)
		}
		if d.LastName != "" {
			patch.LastName = ptr(d.LastName)
		}
	}

	if d.Bio != "" {
		patch.JobTitle = ptr(d.Bio)
		var old *string
		if existing != nil && existing.JobTitle != "" {
			old = ptr(existing.JobTitle)
		}
		record(contact.FieldBio, old, d.Bio)
	}

	if d.Birthday != nil && !d.Birthday.IsZero() {
		b := *d.Birthday
		patch.Birthday = &b
		var old *string
		if existing != nil && existing.Birthday != nil && !existing.Birthday.IsZero() {
			old = ptr(existing.Birthday.Medium())
		}
		record(contact.FieldBirthday, old, b.Medium())
	}

	if d.Address != nil {
		postal := d.Address.Postal()
		patch.HomeAddress = &postal
		record(contact.FieldAddress, oldPostal(existing, contact.LabelHome), postal.String())
	}

	if d.MailingAddress != nil {
		postal := d.MailingAddress.Postal()
		patch.MailingAddress = &postal
		record(contact.FieldMailingAddress, oldPostal(existing, contact.LabelMailing), postal.String())
	}

	if d.PhoneNumber != "" {
		patch.MobilePhone = ptr(d.PhoneNumber)
		var old *string
		if existing != nil {
			if v, ok := existing.Phone(contact.LabelMobile); ok {
				old = ptr(v)
			}
		}
		record(contact.FieldPhoneNumber, old, d.PhoneNumber)
	}

	if d.Email != "" {
		patch.HomeEmail = ptr(d.Email)
		var old *string
		if existing != nil {
			if v, ok := existing.Email(contact.LabelHome); ok {
				old = ptr(v)
			}
		}
		record(contact.FieldEmail, old, d.Email)
	}

	return patch, changes
}

func oldPostal(existing *contact.LocalEntry, label contact.Label) *string {
	if existing == nil {
		return nil
	}
	if p, ok := existing.Address(label); ok {
		return ptr(p.String())
	}
	return nil
}

func ptr(s string) *string { return &s }
