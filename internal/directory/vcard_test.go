package directory_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tartampluch/go-contactsync/internal/contact"
	"github.com/tartampluch/go-contactsync/internal/directory"
)

const sampleVCF = "BEGIN:VCARD\r\n" +
	"VERSION:4.0\r\n" +
	"FN:Amy Lee\r\n" +
	"N:Lee;Amy;;;\r\n" +
	"TEL;TYPE=cell:+1 (555) 010-0\r\n" +
	"TEL;TYPE=work:+1 555 0200\r\n" +
	"EMAIL;TYPE=home:Amy@Example.com\r\n" +
	"ADR;TYPE=home:;;1 Main St;Springfield;IL;62701;\r\n" +
	"BDAY:19900304\r\n" +
	"END:VCARD\r\n" +
	"BEGIN:VCARD\r\n" +
	"VERSION:4.0\r\n" +
	"UID:bo\r\n" +
	"FN:Bo Ng\r\n" +
	"TEL;TYPE=home,voice:555-0300\r\n" +
	"END:VCARD\r\n"

func str(s string) *string { return &s }

func openSample(t *testing.T) (*directory.VCardDirectory, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "contacts.vcf")
	require.NoError(t, os.WriteFile(path, []byte(sampleVCF), 0o600))
	d, err := directory.OpenVCard(path)
	require.NoError(t, err)
	return d, path
}

func TestOpenVCard_MissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "contacts.vcf")

	d, err := directory.OpenVCard(path)
	require.NoError(t, err)
	assert.Zero(t, d.Len())
	assert.NoFileExists(t, path, "nothing is written before the first change")

	_, err = directory.OpenVCard("")
	assert.Error(t, err)
}

func TestOpenVCard_ParsesEntries(t *testing.T) {
	d, _ := openSample(t)
	require.Equal(t, 2, d.Len())

	entries := d.Entries()
	amy := entries[0]
	assert.NotEmpty(t, amy.ID, "entries without UID get one")
	assert.Equal(t, "Amy Lee", amy.FullName())
	require.NotNil(t, amy.Birthday)
	assert.Equal(t, contact.NewDate(1990, time.March, 4), *amy.Birthday)

	mobile, ok := amy.Phone(contact.LabelMobile)
	require.True(t, ok)
	assert.Equal(t, "+1 (555) 010-0", mobile)
	_, ok = amy.Phone(contact.LabelWork)
	assert.True(t, ok)

	home, ok := amy.Address(contact.LabelHome)
	require.True(t, ok)
	assert.Equal(t, "1 Main St, Springfield, IL 62701", home.String())

	bo := entries[1]
	assert.Equal(t, "bo", bo.ID)
	_, ok = bo.Phone(contact.LabelHome)
	assert.True(t, ok, "comma separated TYPE lists are understood")
}

func TestOpenVCard_Corrupt(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"plain text", "my notes, not a vcard"},
		{"text before the first card", "notes\r\n" + sampleVCF},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "contacts.vcf")
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0o600))

			d, err := directory.OpenVCard(path)
			assert.Nil(t, d)
			assert.ErrorIs(t, err, directory.ErrStore)

			data, err := os.ReadFile(path)
			require.NoError(t, err)
			assert.Equal(t, tt.content, string(data), "an unreadable file is left untouched")
		})
	}
}

func TestOpenVCard_BlankFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "contacts.vcf")
	require.NoError(t, os.WriteFile(path, []byte(" \r\n\n"), 0o600))

	d, err := directory.OpenVCard(path)
	require.NoError(t, err)
	assert.Zero(t, d.Len())
}

func TestOpenVCard_ByteOrderMark(t *testing.T) {
	path := filepath.Join(t.TempDir(), "contacts.vcf")
	require.NoError(t, os.WriteFile(path, []byte("\ufeff"+sampleVCF), 0o600))

	d, err := directory.OpenVCard(path)
	require.NoError(t, err)
	assert.Equal(t, 2, d.Len())
}

func TestVCardDirectory_Find(t *testing.T) {
	d, _ := openSample(t)
	ctx := context.Background()

	tests := []struct {
		name string
		find func() ([]*contact.LocalEntry, error)
		want int
	}{
		{"phone digits only", func() ([]*contact.LocalEntry, error) { return d.FindByPhone(ctx, "+15550100") }, 1},
		{"phone no match", func() ([]*contact.LocalEntry, error) { return d.FindByPhone(ctx, "999") }, 0},
		{"phone without digits", func() ([]*contact.LocalEntry, error) { return d.FindByPhone(ctx, "n/a") }, 0},
		{"email case insensitive", func() ([]*contact.LocalEntry, error) { return d.FindByEmail(ctx, "amy@example.COM") }, 1},
		{"email empty", func() ([]*contact.LocalEntry, error) { return d.FindByEmail(ctx, " ") }, 0},
		{"formatted name", func() ([]*contact.LocalEntry, error) { return d.FindByName(ctx, "bo ng") }, 1},
		{"structured name", func() ([]*contact.LocalEntry, error) { return d.FindByName(ctx, "Amy Lee") }, 1},
		{"name no match", func() ([]*contact.LocalEntry, error) { return d.FindByName(ctx, "Cy Doe") }, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.find()
			require.NoError(t, err)
			assert.Len(t, got, tt.want)
		})
	}
}

func TestVCardDirectory_FindCancelled(t *testing.T) {
	d := directory.NewMemory()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := d.FindByEmail(ctx, "amy@example.com")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestVCardDirectory_CreatePersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "contacts.vcf")
	d, err := directory.OpenVCard(path)
	require.NoError(t, err)
	d.Now = func() time.Time { return time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC) }

	birthday := contact.NewDate(1990, time.March, 4)
	entry, err := d.Create(context.Background(), contact.Patch{
		FirstName:   str("Amy"),
		LastName:    str("Lee"),
		JobTitle:    str("Engineer"),
		Birthday:    &birthday,
		MobilePhone: str("+1 555 0100"),
		HomeEmail:   str("amy@example.com"),
		HomeAddress: &contact.Postal{Street: "1 Main St Apt 2", Unit: "Apt 2", City: "Springfield"},
	})
	require.NoError(t, err)
	assert.NotEmpty(t, entry.ID)
	assert.Equal(t, "Amy Lee", entry.FullName())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	text := string(data)
	assert.Contains(t, text, "FN:Amy Lee")
	assert.Contains(t, text, "BDAY:1990-03-04")
	assert.Contains(t, text, "20250615T100000Z")

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	reopened, err := directory.OpenVCard(path)
	require.NoError(t, err)
	require.Equal(t, 1, reopened.Len())
	got := reopened.Entries()[0]
	assert.Equal(t, entry.ID, got.ID, "UIDs survive a reload")
	assert.Equal(t, "Engineer", got.JobTitle)
	home, ok := got.Address(contact.LabelHome)
	require.True(t, ok)
	assert.Equal(t, "1 Main St Apt 2", home.Street)
}

func TestVCardDirectory_SaveReplacesFile(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "contacts.vcf")
	require.NoError(t, os.WriteFile(path, []byte(sampleVCF), 0o644))

	d, err := directory.OpenVCard(path)
	require.NoError(t, err)
	_, err = d.Create(context.Background(), contact.Patch{FirstName: str("Amy")})
	require.NoError(t, err)

	files, err := os.ReadDir(root)
	require.NoError(t, err)
	require.Len(t, files, 1, "no temporary file is left behind")
	assert.Equal(t, "contacts.vcf", files[0].Name())

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	reopened, err := directory.OpenVCard(path)
	require.NoError(t, err)
	assert.Equal(t, 3, reopened.Len())
}

func TestVCardDirectory_CreateWithoutName(t *testing.T) {
	d := directory.NewMemory()
	_, err := d.Create(context.Background(), contact.Patch{HomeEmail: str("x@example.com")})
	require.NoError(t, err)

	hits, err := d.FindByEmail(context.Background(), "x@example.com")
	require.NoError(t, err)
	require.Len(t, hits, 1)
}

func TestVCardDirectory_UpdateReplacesCategory(t *testing.T) {
	d, path := openSample(t)
	ctx := context.Background()

	hits, err := d.FindByName(ctx, "Amy Lee")
	require.NoError(t, err)
	require.Len(t, hits, 1)
	amy := hits[0]

	err = d.Update(ctx, amy, contact.Patch{
		MobilePhone: str("+1 555 0199"),
		HomeAddress: &contact.Postal{Street: "2 Elm St", City: "Shelbyville"},
	})
	require.NoError(t, err)

	mobile, _ := amy.Phone(contact.LabelMobile)
	assert.Equal(t, "+1 555 0199", mobile, "the entry is refreshed in place")
	assert.Len(t, amy.Phones, 2, "other phone categories are kept")
	assert.Len(t, amy.Addresses, 1)
	assert.Equal(t, "Amy Lee", amy.FullName())

	reopened, err := directory.OpenVCard(path)
	require.NoError(t, err)
	byPhone, err := reopened.FindByPhone(ctx, "15550100")
	require.NoError(t, err)
	assert.Empty(t, byPhone, "the old mobile number is gone")
	byPhone, err = reopened.FindByPhone(ctx, "15550199")
	require.NoError(t, err)
	require.Len(t, byPhone, 1)
	assert.Equal(t, amy.ID, byPhone[0].ID)
}

func TestVCardDirectory_MailingWriteKeepsCombinedHome(t *testing.T) {
	path := filepath.Join(t.TempDir(), "contacts.vcf")
	vcf := "BEGIN:VCARD\r\n" +
		"VERSION:4.0\r\n" +
		"UID:amy\r\n" +
		"FN:Amy Lee\r\n" +
		"ADR;TYPE=home,postal:;;9 Old Rd;Shelbyville;IL;00001;\r\n" +
		"END:VCARD\r\n"
	require.NoError(t, os.WriteFile(path, []byte(vcf), 0o600))

	d, err := directory.OpenVCard(path)
	require.NoError(t, err)
	amy := d.Entries()[0]
	_, ok := amy.Address(contact.LabelMailing)
	require.False(t, ok, "a home,postal address reads as home")

	require.NoError(t, d.Update(context.Background(), amy, contact.Patch{
		MailingAddress: &contact.Postal{Street: "PO Box 7"},
	}))

	check := func(e *contact.LocalEntry) {
		t.Helper()
		home, ok := e.Address(contact.LabelHome)
		require.True(t, ok, "the home address survives a mailing write")
		assert.Equal(t, "9 Old Rd, Shelbyville, IL 00001", home.String())
		mailing, ok := e.Address(contact.LabelMailing)
		require.True(t, ok)
		assert.Equal(t, "PO Box 7", mailing.Street)
		assert.Len(t, e.Addresses, 2)
	}
	check(amy)

	reopened, err := directory.OpenVCard(path)
	require.NoError(t, err)
	check(reopened.Entries()[0])
}

func TestVCardDirectory_HomeWriteReplacesCombinedHome(t *testing.T) {
	d := directory.NewMemory()
	require.NoError(t, d.Load(strings.NewReader("BEGIN:VCARD\r\n"+
		"VERSION:4.0\r\n"+
		"UID:amy\r\n"+
		"FN:Amy Lee\r\n"+
		"ADR;TYPE=home,postal:;;9 Old Rd;Shelbyville;IL;00001;\r\n"+
		"ADR;TYPE=postal:;;PO Box 7;;;;\r\n"+
		"END:VCARD\r\n")))

	amy := d.Entries()[0]
	require.NoError(t, d.Update(context.Background(), amy, contact.Patch{
		HomeAddress: &contact.Postal{Street: "1 Main St"},
	}))

	home, ok := amy.Address(contact.LabelHome)
	require.True(t, ok)
	assert.Equal(t, "1 Main St", home.Street)
	mailing, ok := amy.Address(contact.LabelMailing)
	require.True(t, ok)
	assert.Equal(t, "PO Box 7", mailing.Street)
	assert.Len(t, amy.Addresses, 2)
}

func TestVCardDirectory_UpdateUnknownEntry(t *testing.T) {
	d := directory.NewMemory()
	err := d.Update(context.Background(), &contact.LocalEntry{ID: "ghost"}, contact.Patch{JobTitle: str("x")})
	assert.ErrorIs(t, err, directory.ErrStore)
}

func TestVCardDirectory_PermissionDenied(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("permissions are not enforced for root")
	}
	dir := filepath.Join(t.TempDir(), "locked")
	require.NoError(t, os.Mkdir(dir, 0o500))
	t.Cleanup(func() { _ = os.Chmod(dir, 0o700) })

	d, err := directory.OpenVCard(filepath.Join(dir, "contacts.vcf"))
	require.NoError(t, err)

	_, err = d.Create(context.Background(), contact.Patch{FirstName: str("Amy")})
	assert.ErrorIs(t, err, directory.ErrPermissionDenied)
	assert.Zero(t, d.Len(), "a failed write leaves the directory unchanged")
}

func TestVCardDirectory_Load(t *testing.T) {
	d := directory.NewMemory()
	require.NoError(t, d.Load(strings.NewReader(sampleVCF)))
	assert.Equal(t, 2, d.Len())
	assert.Empty(t, d.Path())
}
