package server

import (
	"bytes"
	"crypto/sha256"
	"fmt"
	"log/slog"
	"time"

	"github.com/emersion/go-ical"

	"github.com/tartampluch/go-contactsync/internal/config"
	"github.com/tartampluch/go-contactsync/internal/contact"
)

// BuildBirthdayCalendar renders an iCalendar feed with one all-day event per
// connection birthday for the previous, current and next year. It returns
// the encoded feed and the number of connections that contributed events.
func BuildBirthdayCalendar(results []contact.Result, now time.Time) ([]byte, int, error) {
	cal := ical.NewCalendar()
	cal.Props.SetText(config.PropVersion, config.ICalVersion)
	cal.Props.SetText(config.PropProdid, config.ICalProdid)
	cal.Props.SetText(config.PropXWRCalName, config.ICalCalName)
	cal.Props.SetText(config.PropCalScale, config.ICalScale)
	cal.Props.SetText(config.PropMethod, config.ICalMethod)

	refreshProp := ical.NewProp(config.PropRefresh)
	refreshProp.SetDuration(config.DefaultICalRefresh)
	cal.Props.Set(refreshProp)

	dtStampProp := ical.NewProp(config.PropDTStamp)
	dtStampProp.SetDateTime(now.UTC())

	count := 0
	for _, res := range results {
		d := res.Connection
		if d.Birthday == nil || d.Birthday.IsZero() {
			continue
		}
		name := d.FullName()
		if name == "" {
			name = config.FallbackName
		}

		count++
		for _, e := range birthdayEvents(d.ID, name, *d.Birthday, now) {
			e.Props.Set(dtStampProp)
			cal.Children = append(cal.Children, e.Component)
		}
	}

	if len(cal.Children) == 0 {
		return []byte(config.StubVCalendar), 0, nil
	}

	var buf bytes.Buffer
	if err := ical.NewEncoder(&buf).Encode(cal); err != nil {
		return nil, 0, fmt.Errorf("%s: %w", config.ErrICalEncode, err)
	}

	slog.Debug(config.MsgCalendarBuilt,
		config.LogKeyComponent, config.CompServer,
		config.LogKeyBirthdays, count,
	)
	return buf.Bytes(), count, nil
}

// birthdayEvents creates the events of one connection. No event is created
// for a year before the birth year.
func birthdayEvents(connectionID, name string, birth contact.Date, now time.Time) []*ical.Event {
	// The connection id is stable across runs, so event UIDs are too.
	hash := sha256.Sum256(fmt.Appendf(nil, config.FormatHashInput, connectionID, birth.String(), config.UIDSalt))
	uidBase := fmt.Sprintf("%x", hash[:config.UIDHashLength])

	currentYear := now.Year()
	var events []*ical.Event
	for _, y := range []int{currentYear - 1, currentYear, currentYear + 1} {
		if y < birth.Year {
			continue
		}

		event := ical.NewEvent()
		event.Props.SetText(config.PropUID, fmt.Sprintf(config.FormatUID, uidBase, y, config.ICalDomain))

		summary := fmt.Sprintf(config.FallbackSummaryAge, name, y-birth.Year)
		if y == birth.Year {
			summary = fmt.Sprintf(config.FallbackSummaryBirth, name)
		}
		event.Props.SetText(config.PropSummary, summary)

		// time.Date normalizes Feb 29 to Mar 1 in non-leap years.
		dtStartProp := ical.NewProp(config.PropDTStart)
		dtStartProp.SetDate(time.Date(y, birth.Month, birth.Day, 0, 0, 0, 0, now.Location()))
		event.Props.Set(dtStartProp)

		events = append(events, event)
	}
	return events
}
