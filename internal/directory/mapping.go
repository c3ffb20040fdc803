package directory

import (
	"strings"
	"time"

	"github.com/emersion/go-vcard"

	"github.com/tartampluch/go-contactsync/internal/config"
	"github.com/tartampluch/go-contactsync/internal/contact"
)

// entryFromCard projects the fields reconciliation cares about.
func entryFromCard(c vcard.Card) *contact.LocalEntry {
	e := &contact.LocalEntry{
		ID:       c.Value(vcard.FieldUID),
		JobTitle: c.Value(vcard.FieldTitle),
	}
	if n := c.Name(); n != nil {
		e.FirstName = n.GivenName
		e.LastName = n.FamilyName
	}
	if bday := c.Value(vcard.FieldBirthday); bday != "" {
		if d, err := contact.ParseDate(bday); err == nil {
			e.Birthday = &d
		}
	}
	for _, f := range c[vcard.FieldTelephone] {
		e.Phones = append(e.Phones, contact.LabeledValue{Label: phoneLabel(f.Params), Value: f.Value})
	}
	for _, f := range c[vcard.FieldEmail] {
		e.Emails = append(e.Emails, contact.LabeledValue{Label: emailLabel(f.Params), Value: f.Value})
	}
	for _, a := range c.Addresses() {
		var params vcard.Params
		if a.Field != nil {
			params = a.Params
		}
		e.Addresses = append(e.Addresses, contact.LabeledPostal{
			Label: addressLabel(params),
			Postal: contact.Postal{
				Street:  a.StreetAddress,
				Unit:    a.ExtendedAddress,
				City:    a.Locality,
				State:   a.Region,
				ZipCode: a.PostalCode,
			},
		})
	}
	return e
}

// applyPatch writes patch into c. Labeled properties of the written
// category are dropped before the new value is added.
func applyPatch(c vcard.Card, p contact.Patch, now time.Time) {
	if p.FirstName != nil || p.LastName != nil {
		name := &vcard.Name{}
		if p.FirstName != nil {
			name.GivenName = *p.FirstName
		}
		if p.LastName != nil {
			name.FamilyName = *p.LastName
		}
		delete(c, vcard.FieldName)
		c.AddName(name)
		if fn := strings.TrimSpace(name.GivenName + " " + name.FamilyName); fn != "" {
			c.SetValue(vcard.FieldFormattedName, fn)
		}
	}
	if p.JobTitle != nil {
		c.SetValue(vcard.FieldTitle, *p.JobTitle)
	}
	if p.Birthday != nil {
		c.SetValue(vcard.FieldBirthday, p.Birthday.String())
	}
	if p.HomeAddress != nil {
		replaceAddress(c, contact.LabelHome, vcard.TypeHome, *p.HomeAddress)
	}
	if p.MailingAddress != nil {
		replaceAddress(c, contact.LabelMailing, config.VCardTypePostal, *p.MailingAddress)
	}
	if p.MobilePhone != nil {
		replaceTyped(c, vcard.FieldTelephone, phoneLabel, contact.LabelMobile, vcard.TypeCell, *p.MobilePhone)
	}
	if p.HomeEmail != nil {
		replaceTyped(c, vcard.FieldEmail, emailLabel, contact.LabelHome, vcard.TypeHome, *p.HomeEmail)
	}
	c.SetValue(vcard.FieldRevision, now.UTC().Format(config.VCardRevisionFormat))
}

// labeler classifies a property by its params, the same way entries are read.
type labeler func(vcard.Params) contact.Label

func replaceTyped(c vcard.Card, key string, classify labeler, label contact.Label, typ, value string) {
	kept := withoutLabel(c[key], classify, label)
	c[key] = append(kept, &vcard.Field{
		Value:  value,
		Params: vcard.Params{vcard.ParamType: {typ}},
	})
}

func replaceAddress(c vcard.Card, label contact.Label, typ string, p contact.Postal) {
	c[vcard.FieldAddress] = withoutLabel(c[vcard.FieldAddress], addressLabel, label)
	c.AddAddress(&vcard.Address{
		Field:           &vcard.Field{Params: vcard.Params{vcard.ParamType: {typ}}},
		StreetAddress:   p.Street,
		ExtendedAddress: p.Unit,
		Locality:        p.City,
		Region:          p.State,
		PostalCode:      p.ZipCode,
	})
}

// withoutLabel drops the fields that read back as label. A field typed
// home,postal reads as home, so a mailing write leaves it alone.
func withoutLabel(fields []*vcard.Field, classify labeler, label contact.Label) []*vcard.Field {
	kept := make([]*vcard.Field, 0, len(fields)+1)
	for _, f := range fields {
		if classify(f.Params) != label {
			kept = append(kept, f)
		}
	}
	return kept
}

// hasType checks TYPE params case-insensitively, including comma lists
// such as TYPE=home,voice.
func hasType(p vcard.Params, typ string) bool {
	for _, v := range p[vcard.ParamType] {
		for _, t := range strings.Split(v, ",") {
			if strings.EqualFold(strings.TrimSpace(t), typ) {
				return true
			}
		}
	}
	return false
}

func phoneLabel(p vcard.Params) contact.Label {
	switch {
	case hasType(p, vcard.TypeCell):
		return contact.LabelMobile
	case hasType(p, vcard.TypeHome):
		return contact.LabelHome
	case hasType(p, vcard.TypeWork):
		return contact.LabelWork
	default:
		return contact.LabelOther
	}
}

func emailLabel(p vcard.Params) contact.Label {
	switch {
	case hasType(p, vcard.TypeHome):
		return contact.LabelHome
	case hasType(p, vcard.TypeWork):
		return contact.LabelWork
	default:
		return contact.LabelOther
	}
}

func addressLabel(p vcard.Params) contact.Label {
	switch {
	case hasType(p, vcard.TypeHome):
		return contact.LabelHome
	case hasType(p, config.VCardTypePostal):
		return contact.LabelMailing
	case hasType(p, vcard.TypeWork):
		return contact.LabelWork
	default:
		return contact.LabelOther
	}
}
