package directory

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/emersion/go-vcard"
	"github.com/google/renameio/v2"
	"github.com/google/uuid"

	"github.com/tartampluch/go-contactsync/internal/config"
	"github.com/tartampluch/go-contactsync/internal/contact"
)

// VCardDirectory stores contacts as vCards in a single file. The whole file
// is loaded on open and rewritten atomically after every write. A directory
// without a path lives in memory only.
type VCardDirectory struct {
	path  string
	mu    sync.RWMutex
	cards []vcard.Card

	// Now stamps the REV property of written cards.
	Now func() time.Time
}

// NewMemory returns an empty directory that is never written to disk.
func NewMemory() *VCardDirectory {
	return &VCardDirectory{Now: time.Now}
}

// OpenVCard loads the vCard file at path. A missing file is treated as an
// empty address book and created on the first write.
func OpenVCard(path string) (*VCardDirectory, error) {
	if path == "" {
		return nil, errors.New(config.ErrDirPathEmpty)
	}
	d := &VCardDirectory{path: path, Now: time.Now}

	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		slog.Info(config.MsgDirCreated,
			config.LogKeyComponent, config.CompDirectory,
			config.LogKeyFile, path)
		return d, nil
	}
	if err != nil {
		return nil, classify(err)
	}
	defer func() { _ = f.Close() }()

	cards, err := decodeCards(f)
	if err != nil {
		return nil, err
	}
	d.cards = cards

	slog.Info(config.MsgDirLoaded,
		config.LogKeyComponent, config.CompDirectory,
		config.LogKeyFile, path,
		config.LogKeyCount, len(cards))
	return d, nil
}

// Load replaces the in-memory cards with those decoded from r. It does not
// write to disk.
func (d *VCardDirectory) Load(r io.Reader) error {
	cards, err := decodeCards(r)
	if err != nil {
		return err
	}
	d.mu.Lock()
	d.cards = cards
	d.mu.Unlock()
	return nil
}

func decodeCards(r io.Reader) ([]vcard.Card, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, classify(err)
	}
	content := bytes.TrimSpace(bytes.TrimPrefix(data, utf8BOM))
	if len(content) == 0 {
		return nil, nil
	}
	// Anything else would be overwritten by the first save.
	if !hasPrefixFold(content, config.VCardBegin) {
		return nil, fmt.Errorf("%w: %s", ErrStore, config.ErrVCardParse)
	}

	dec := vcard.NewDecoder(bytes.NewReader(content))
	var cards []vcard.Card
	for {
		card, err := dec.Decode()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrStore, config.ErrVCardParse, err)
		}
		// Entries need a stable handle; it is persisted on the next write.
		if card.Value(vcard.FieldUID) == "" {
			card.SetValue(vcard.FieldUID, uuid.NewString())
		}
		cards = append(cards, card)
	}
	if len(cards) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrStore, config.ErrVCardParse)
	}
	return cards, nil
}

var utf8BOM = []byte("\ufeff")

func hasPrefixFold(b []byte, prefix string) bool {
	return len(b) >= len(prefix) && bytes.EqualFold(b[:len(prefix)], []byte(prefix))
}

// Path returns the backing file, or "" for an in-memory directory.
func (d *VCardDirectory) Path() string { return d.path }

// Len returns the number of entries.
func (d *VCardDirectory) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.cards)
}

// Entries returns a snapshot of every entry.
func (d *VCardDirectory) Entries() []*contact.LocalEntry {
	return d.find(func(vcard.Card) bool { return true })
}

// FindByPhone matches phone numbers on their digits only.
func (d *VCardDirectory) FindByPhone(ctx context.Context, phone string) ([]*contact.LocalEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	want := digits(phone)
	if want == "" {
		return nil, nil
	}
	return d.find(func(c vcard.Card) bool {
		for _, f := range c[vcard.FieldTelephone] {
			if digits(f.Value) == want {
				return true
			}
		}
		return false
	}), nil
}

// FindByEmail matches email addresses case-insensitively.
func (d *VCardDirectory) FindByEmail(ctx context.Context, email string) ([]*contact.LocalEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	want := strings.TrimSpace(email)
	if want == "" {
		return nil, nil
	}
	return d.find(func(c vcard.Card) bool {
		for _, f := range c[vcard.FieldEmail] {
			if strings.EqualFold(strings.TrimSpace(f.Value), want) {
				return true
			}
		}
		return false
	}), nil
}

// FindByName matches the formatted name or "given family", case-insensitively.
func (d *VCardDirectory) FindByName(ctx context.Context, fullName string) ([]*contact.LocalEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	want := strings.TrimSpace(fullName)
	if want == "" {
		return nil, nil
	}
	return d.find(func(c vcard.Card) bool {
		if strings.EqualFold(strings.TrimSpace(c.Value(vcard.FieldFormattedName)), want) {
			return true
		}
		if n := c.Name(); n != nil {
			return strings.EqualFold(strings.TrimSpace(n.GivenName+" "+n.FamilyName), want)
		}
		return false
	}), nil
}

func (d *VCardDirectory) find(match func(vcard.Card) bool) []*contact.LocalEntry {
	d.mu.RLock()
	defer d.mu.RUnlock()
	var out []*contact.LocalEntry
	for _, c := range d.cards {
		if match(c) {
			out = append(out, entryFromCard(c))
		}
	}
	return out
}

// Create adds a new vCard built from patch.
func (d *VCardDirectory) Create(ctx context.Context, patch contact.Patch) (*contact.LocalEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	card := make(vcard.Card)
	card.SetValue(vcard.FieldVersion, config.VCardVersion)
	card.SetValue(vcard.FieldUID, uuid.NewString())
	applyPatch(card, patch, d.now())
	if card.Value(vcard.FieldFormattedName) == "" {
		card.SetValue(vcard.FieldFormattedName, config.FallbackName)
	}

	next := append(slices.Clone(d.cards), card)
	if err := d.save(next); err != nil {
		return nil, err
	}
	d.cards = next
	return entryFromCard(card), nil
}

// Update writes patch into the vCard behind entry and refreshes entry.
func (d *VCardDirectory) Update(ctx context.Context, entry *contact.LocalEntry, patch contact.Patch) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	idx := slices.IndexFunc(d.cards, func(c vcard.Card) bool {
		return c.Value(vcard.FieldUID) == entry.ID
	})
	if idx < 0 {
		return fmt.Errorf("%w: %s %q", ErrStore, config.ErrEntryNotFound, entry.ID)
	}

	card := cloneCard(d.cards[idx])
	applyPatch(card, patch, d.now())

	next := slices.Clone(d.cards)
	next[idx] = card
	if err := d.save(next); err != nil {
		return err
	}
	d.cards = next
	*entry = *entryFromCard(card)
	return nil
}

func (d *VCardDirectory) now() time.Time {
	if d.Now == nil {
		return time.Now()
	}
	return d.Now()
}

// save replaces the file atomically, so a failed write never truncates the
// address book.
func (d *VCardDirectory) save(cards []vcard.Card) error {
	if d.path == "" {
		return nil
	}
	dir := filepath.Dir(d.path)
	if err := os.MkdirAll(dir, config.DirPermUserRWX); err != nil {
		return classify(err)
	}
	pf, err := renameio.NewPendingFile(d.path,
		renameio.WithTempDir(dir),
		renameio.WithPermissions(config.FilePermUserRW),
	)
	if err != nil {
		return classify(err)
	}
	defer func() { _ = pf.Cleanup() }()

	enc := vcard.NewEncoder(pf)
	for _, c := range cards {
		if err := enc.Encode(c); err != nil {
			return fmt.Errorf("%w: %s: %w", ErrStore, config.ErrVCardEncode, err)
		}
	}
	if err := pf.CloseAtomicallyReplace(); err != nil {
		return classify(err)
	}

	slog.Debug(config.MsgDirSaved,
		config.LogKeyComponent, config.CompDirectory,
		config.LogKeyFile, d.path,
		config.LogKeyCount, len(cards))
	return nil
}

func classify(err error) error {
	if errors.Is(err, fs.ErrPermission) {
		return fmt.Errorf("%w: %w", ErrPermissionDenied, err)
	}
	return fmt.Errorf("%w: %w", ErrStore, err)
}

func cloneCard(c vcard.Card) vcard.Card {
	out := make(vcard.Card, len(c))
	for k, fields := range c {
		out[k] = slices.Clone(fields)
	}
	return out
}

func digits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
