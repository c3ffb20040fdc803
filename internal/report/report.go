// Package report renders a reconciliation summary for people and tools.
//
// The text format is localized and meant for the confirmation step before
// a commit; json and yaml carry the full summary, audit trail included.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/goccy/go-yaml"
	"github.com/nicksnyder/go-i18n/v2/i18n"

	"github.com/tartampluch/go-contactsync/internal/config"
	"github.com/tartampluch/go-contactsync/internal/contact"
)

// Renderer writes summaries in one of the supported formats.
type Renderer struct {
	lang      string
	languages []string
	tr        translator
}

// NewRenderer prepares a renderer for lang. Unknown languages fall back to
// English through the bundle's default.
func NewRenderer(lang string) *Renderer {
	if lang == "" {
		lang = config.DefaultLanguage
	}
	bundle, detected := loadBundle()
	return &Renderer{
		lang:      lang,
		languages: detected,
		tr:        translator{localizer: i18n.NewLocalizer(bundle, lang, config.DefaultLanguage)},
	}
}

// Languages lists the languages found in the embedded locales.
func (r *Renderer) Languages() []string {
	return slices.Clone(r.languages)
}

// Message returns the localized text for key, or key itself when missing.
func (r *Renderer) Message(key string) string {
	return r.tr.msg(key, nil)
}

// Render writes s in the given format.
func (r *Renderer) Render(w io.Writer, format string, s *contact.BatchSummary) error {
	switch format {
	case "", config.OutputText:
		return r.Text(w, s)
	case config.OutputJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", config.JSONIndent)
		if err := enc.Encode(s); err != nil {
			return fmt.Errorf("%s: %w", config.ErrReportEncode, err)
		}
		return nil
	case config.OutputYAML:
		out, err := yaml.Marshal(s)
		if err != nil {
			return fmt.Errorf("%s: %w", config.ErrReportEncode, err)
		}
		_, err = w.Write(out)
		return err
	default:
		return fmt.Errorf("%s: %q", config.ErrOutputFormat, format)
	}
}

// Text writes a localized, human-readable preview. Results are sorted by
// connection id so that repeated runs print identically.
func (r *Renderer) Text(w io.Writer, s *contact.BatchSummary) error {
	sorted := *s
	sorted.Results = slices.Clone(s.Results)
	sorted.SortByID()

	var b strings.Builder

	headerKey := config.TKeyHeaderCommit
	if s.DryRun {
		headerKey = config.TKeyHeaderPreview
	}
	b.WriteString(r.tr.plural(headerKey, map[string]any{
		"Count":   len(sorted.Results),
		"Changes": sorted.ChangeCount(),
	}, len(sorted.Results)))
	b.WriteString("\n")

	for _, res := range sorted.Results {
		r.writeResult(&b, res, s.DryRun)
	}

	if unsaved := sorted.Unpersisted(); len(unsaved) > 0 {
		b.WriteString(r.tr.plural(config.TKeyFooterUnsaved, map[string]any{"Count": len(unsaved)}, len(unsaved)))
		b.WriteString("\n")
	}

	_, err := io.WriteString(w, b.String())
	return err
}

func (r *Renderer) writeResult(b *strings.Builder, res contact.Result, dryRun bool) {
	name := displayName(res.Connection)

	marker, key := config.MarkerUpdate, config.TKeyEntryUpdate
	switch {
	case res.IsNewEntry:
		marker, key = config.MarkerNew, config.TKeyEntryNew
	case len(res.Changes) == 0:
		marker, key = config.MarkerSame, config.TKeyEntrySame
	}
	if !dryRun && !res.Persisted {
		marker = config.MarkerFailed
	}

	fmt.Fprintf(b, "%s %s\n", marker, r.tr.msg(key, map[string]any{"Name": name}))

	for _, c := range res.Changes {
		fmt.Fprintf(b, "%s%s\n", config.ReportIndent, r.tr.msg(config.TKeyChangeLine, map[string]any{
			"Field": r.FieldLabel(c.Field),
			"Old":   r.value(c.Old),
			"New":   r.value(c.New),
		}))
	}

	if !dryRun {
		if !res.Persisted {
			fmt.Fprintf(b, "%s%s\n", config.ReportIndent, r.tr.msg(config.TKeyNotSaved, nil))
		}
		if !res.Acknowledged {
			fmt.Fprintf(b, "%s%s\n", config.ReportIndent, r.tr.msg(config.TKeyNotAcked, nil))
		}
	}
}

// FieldLabel returns the localized label of a FieldChange field name.
func (r *Renderer) FieldLabel(field string) string {
	key, ok := fieldKeys[field]
	if !ok {
		return field
	}
	return r.tr.msg(key, nil)
}

var fieldKeys = map[string]string{
	contact.FieldBio:            config.TKeyFieldBio,
	contact.FieldBirthday:       config.TKeyFieldBirthday,
	contact.FieldAddress:        config.TKeyFieldAddress,
	contact.FieldMailingAddress: config.TKeyFieldMailing,
	contact.FieldPhoneNumber:    config.TKeyFieldPhone,
	contact.FieldEmail:          config.TKeyFieldEmail,
}

func (r *Renderer) value(v *string) string {
	if v == nil || *v == "" {
		return r.tr.msg(config.TKeyValueNone, nil)
	}
	return *v
}

func displayName(d contact.ConnectionDetail) string {
	if name := d.FullName(); name != "" {
		return name
	}
	return d.ID
}
