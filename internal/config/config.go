package config

import (
	"io/fs"
	"time"
)

// -----------------------------------------------------------------------------
// Build Information
// -----------------------------------------------------------------------------

// Build variables are injected via -ldflags.
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// UserAgent identifies the HTTP client.
var UserAgent = "Go-ContactSync/" + Version

// -----------------------------------------------------------------------------
// Application Constants
// -----------------------------------------------------------------------------

const (
	AppName           = "Go ContactSync"
	AppID             = "com.github.tartampluch.go-contactsync"
	KeyringService    = "com.github.tartampluch.go-contactsync"
	KeyringUser       = "api_token"
	LocalhostBindAddr = "127.0.0.1"
	LogFileName       = "app.log"
	DataDirName       = "go-contactsync"
	DefaultVCardFile  = "contacts.vcf"
)

// -----------------------------------------------------------------------------
// Exit Codes
// -----------------------------------------------------------------------------

const (
	ExitCodeSuccess = 0
	ExitCodeError   = 1
)

// -----------------------------------------------------------------------------
// System & File Permissions
// -----------------------------------------------------------------------------

const (
	// FilePermUserRW represents -rw------- (Read/Write for owner only).
	// Used for logs and the address book file.
	FilePermUserRW fs.FileMode = 0600

	// DirPermUserRWX represents drwx------ (Read/Write/Exec for owner only).
	DirPermUserRWX fs.FileMode = 0700

	// ChannelBufferSize defines the standard buffer size for internal signaling channels.
	ChannelBufferSize = 1
)

// -----------------------------------------------------------------------------
// CLI Commands & Flags
// -----------------------------------------------------------------------------

const (
	CmdRoot    = "go-contactsync"
	CmdSync    = "sync"
	CmdPreview = "preview"
	CmdLogin   = "login"
	CmdServe   = "serve"

	DescRoot    = "Reconcile your connections into your local address book"
	DescSync    = "Preview the pending changes, confirm, then write them"
	DescPreview = "Show the pending changes without writing anything"
	DescLogin   = "Store the API token in the system keyring"
	DescServe   = "Refresh the preview periodically and serve it on localhost"

	FlagVersion     = "version"
	FlagDebug       = "debug"
	FlagConfig      = "config"
	FlagDryRun      = "dry-run"
	FlagYes         = "yes"
	FlagOutput      = "output"
	FlagLang        = "lang"
	FlagAPIURL      = "api-url"
	FlagVCard       = "vcard"
	FlagConcurrency = "concurrency"
	FlagTimeout     = "timeout"
	FlagPort        = "port"
	FlagInterval    = "interval"
	FlagToken       = "token"

	FlagShortOutput = "o"
	FlagShortYes    = "y"

	FlagDescVersion     = "Show application version and exit"
	FlagDescDebug       = "Enable debug logging"
	FlagDescConfig      = "Config file (default is $HOME/.go-contactsync.yaml)"
	FlagDescDryRun      = "Compute and print the changes without writing them"
	FlagDescYes         = "Apply without asking for confirmation"
	FlagDescOutput      = "Output format: text, json or yaml"
	FlagDescLang        = "Language of the text report"
	FlagDescAPIURL      = "Base URL of the connections API"
	FlagDescVCard       = "Path of the local address book (.vcf)"
	FlagDescConcurrency = "Maximum connections reconciled at once (0 for no limit)"
	FlagDescTimeout     = "Deadline for one reconciliation batch"
	FlagDescPort        = "Port of the preview server"
	FlagDescInterval    = "Delay between two preview refreshes"
	FlagDescToken       = "API token to store (prompted when omitted)"

	MsgVersionOutput = "%s version %s (%s/%s)\n"
)

// -----------------------------------------------------------------------------
// Settings Keys & Sources
// -----------------------------------------------------------------------------

const (
	KeyConfig      = "config"
	KeyAPIURL      = "api_url"
	KeyToken       = "token"
	KeyVCardPath   = "vcard_path"
	KeyLanguage    = "lang"
	KeyOutput      = "output"
	KeyPort        = "port"
	KeyConcurrency = "concurrency"
	KeyTimeout     = "timeout"
	KeyInterval    = "interval"

	EnvPrefix      = "CONTACTSYNC"
	ConfigFileName = ".go-contactsync"
	ConfigFileType = "yaml"
)

// EnvFiles are loaded in order; earlier files win since godotenv never
// overrides variables that are already set.
var EnvFiles = []string{".env.local", ".env"}

// SupportedLanguages defines the list of available report languages (ISO 639-1).
var SupportedLanguages = []string{"en", "fr"}

// -----------------------------------------------------------------------------
// Translation Keys (I18n)
// -----------------------------------------------------------------------------

const (
	TKeyHeaderPreview = "report_header_preview" // Requires Count, Changes
	TKeyHeaderCommit  = "report_header_commit"  // Requires Count, Changes
	TKeyFooterUnsaved = "report_footer_unsaved" // Requires Count
	TKeyEntryNew      = "entry_new"             // Requires Name
	TKeyEntryUpdate   = "entry_update"          // Requires Name
	TKeyEntrySame     = "entry_same"            // Requires Name
	TKeyChangeLine    = "change_line"           // Requires Field, Old, New
	TKeyNotSaved      = "entry_not_saved"
	TKeyNotAcked      = "entry_not_acked"
	TKeyValueNone     = "value_none"

	TKeyFieldBio      = "field_bio"
	TKeyFieldBirthday = "field_birthday"
	TKeyFieldAddress  = "field_address"
	TKeyFieldMailing  = "field_mailing_address"
	TKeyFieldPhone    = "field_phone"
	TKeyFieldEmail    = "field_email"

	TKeyConfirmTitle   = "confirm_title"
	TKeyConfirmYes     = "confirm_yes"
	TKeyConfirmNo      = "confirm_no"
	TKeyConfirmNothing = "confirm_nothing"
	TKeyConfirmAborted = "confirm_aborted"
)

// -----------------------------------------------------------------------------
// Default Values & Business Logic
// -----------------------------------------------------------------------------

const (
	DefaultPort          = "18080"
	DefaultLanguage      = "en"
	DefaultConcurrency   = 8
	DefaultBatchTimeout  = 2 * time.Minute
	DefaultServeInterval = 15 * time.Minute
	UIDSalt              = "go-contactsync-v1-" // Salt for deterministic UID generation

	// Matching tiers, in lookup order.
	TierPhone = "phone"
	TierEmail = "email"
	TierName  = "name"
)

// -----------------------------------------------------------------------------
// Report Output
// -----------------------------------------------------------------------------

const (
	OutputText = "text"
	OutputJSON = "json"
	OutputYAML = "yaml"

	JSONIndent   = "  "
	ReportIndent = "    "

	MarkerNew    = "+"
	MarkerUpdate = "~"
	MarkerSame   = "="
	MarkerFailed = "!"
)

// -----------------------------------------------------------------------------
// Standards: iCalendar & vCard
// -----------------------------------------------------------------------------

const (
	// iCal Properties
	ICalVersion = "2.0"
	ICalProdid  = "-//Go ContactSync//Birthdays//EN"
	ICalCalName = "Connection birthdays"
	ICalMethod  = "PUBLISH"
	ICalScale   = "GREGORIAN"
	ICalDomain  = "gocontactsync"

	PropUID        = "UID"
	PropSummary    = "SUMMARY"
	PropDTStart    = "DTSTART"
	PropDTStamp    = "DTSTAMP"
	PropRefresh    = "REFRESH-INTERVAL"
	PropVersion    = "VERSION"
	PropProdid     = "PRODID"
	PropXWRCalName = "X-WR-CALNAME"
	PropCalScale   = "CALSCALE"
	PropMethod     = "METHOD"

	DefaultICalRefresh = 1 * time.Hour

	// vCard
	VCardVersion        = "4.0"
	VCardBegin          = "BEGIN:VCARD"
	VCardTypePostal     = "postal"
	VCardRevisionFormat = "20060102T150405Z"
)

// -----------------------------------------------------------------------------
// Data Formats & Limits
// -----------------------------------------------------------------------------

const (
	// Date layouts accepted in API payloads and vCard BDAY fields.
	DateFormatFullDash  = "2006-01-02"
	DateFormatFullBasic = "20060102"
	DateFormatRFC3339   = time.RFC3339
	DateFormatFullT     = "2006-01-02T15:04:05Z"

	// DateFormatMedium renders birthdays in change records.
	DateFormatMedium = "Jan 2, 2006"

	// Limits
	MinPort = 1
	MaxPort = 65535

	// UID Generation
	UIDHashLength   = 16
	FormatHashInput = "%s|%s|%s"
	FormatUID       = "%s-%d@%s"

	// Locales
	LocalesDir   = "locales"
	LocalePrefix = "active."
	LocaleSuffix = ".json"
)

// -----------------------------------------------------------------------------
// Network & Timeouts
// -----------------------------------------------------------------------------

const (
	HTTPTimeout           = 30 * time.Second
	DialTimeout           = 10 * time.Second
	KeepAlive             = 30 * time.Second
	TLSHandshakeTimeout   = 10 * time.Second
	ExpectContinueTimeout = 1 * time.Second
	MaxIdleConns          = 32
	ShutdownTimeout       = 5 * time.Second
	ServerReadTimeout     = 10 * time.Second
	ServerWriteTimeout    = 30 * time.Second
	ServerIdleTimeout     = 60 * time.Second
	RetryAfterSeconds     = "10"
	AllowedMethods        = "GET, HEAD"
	MaxHTTPResponseSize   = 16 * 1024 * 1024 // 16MB
	SchemeHTTP            = "http"
	SchemeHTTPS           = "https"
	AddrSeparator         = ":"

	// Connections API
	RouteConnections = "connections"
	RouteOutOfSync   = "out-of-sync"
	RouteSynced      = "synced"

	// Preview server
	RoutePreview   = "/preview"
	RouteBirthdays = "/birthdays.ics"
)

// -----------------------------------------------------------------------------
// HTTP Headers & MIME Types
// -----------------------------------------------------------------------------

const (
	HeaderContentType     = "Content-Type"
	HeaderCacheControl    = "Cache-Control"
	HeaderETag            = "ETag"
	HeaderLastModified    = "Last-Modified"
	HeaderRetryAfter      = "Retry-After"
	HeaderAllow           = "Allow"
	HeaderXContentType    = "X-Content-Type-Options"
	HeaderUserAgent       = "User-Agent"
	HeaderAccept          = "Accept"
	HeaderAuthorization   = "Authorization"
	HeaderIfNoneMatch     = "If-None-Match"
	HeaderIfModifiedSince = "If-Modified-Since"

	BearerPrefix = "Bearer "

	MimeJSON            = "application/json"
	MimeTextCalendar    = "text/calendar; charset=utf-8"
	MimeNoSniff         = "nosniff"
	CacheControlPrivate = "private, no-cache"

	// FormatETag expects a string argument.
	FormatETag = `"%s"`
)

// -----------------------------------------------------------------------------
// Error Messages (Technical/Logs)
// -----------------------------------------------------------------------------

const (
	// Engine
	ErrEngineOption        = "invalid engine option"
	ErrEngineNotConfigured = "engine requires a source and a directory"
	ErrLookup              = "directory lookup failed"
	ErrDateParse           = "unable to parse date"

	// Directory
	ErrDirPermission = "address book access denied"
	ErrDirStore      = "address book storage error"
	ErrDirPathEmpty  = "configuration error: address book path is empty"
	ErrVCardParse    = "failed to parse vCard stream"
	ErrVCardEncode   = "failed to encode vCard stream"
	ErrEntryNotFound = "entry not found"

	// Remote
	ErrRemoteNotFound     = "connection not found"
	ErrRemoteUnauthorized = "not authorized by the connections API"
	ErrRemoteNetwork      = "connections API unreachable"
	ErrRemotePayload      = "invalid payload from the connections API"
	ErrAPIURLEmpty        = "configuration error: API URL is empty"
	ErrInvalidURL         = "invalid URL structure"
	ErrProtocol           = "unsupported protocol scheme (http/https only)"
	ErrIDMismatch         = "connection id mismatch"
	ErrRequestBuild       = "failed to create request"

	// Report
	ErrReportEncode  = "failed to encode report"
	ErrOutputFormat  = "unsupported output format"
	ErrLocalesAccess = "failed to access embedded locales"
	ErrLocaleLoad    = "failed to load locale file"

	// Server
	ErrServerStartup  = "server startup failed"
	ErrServerShutdown = "server shutdown failed"
	ErrPortRequired   = "server port is required"
	ErrPortNumber     = "server port must be a number"
	ErrPortRange      = "server port must be between 1 and 65535"
	ErrICalEncode     = "failed to encode iCalendar data"
	ErrWriteResp      = "failed to write response body"

	// Settings & CLI
	ErrConfigRead   = "failed to read config file"
	ErrSettings     = "invalid settings"
	ErrKeyringStore = "failed to store token in keyring"
	ErrTokenEmpty   = "token is empty"
	ErrListPending  = "failed to list out-of-sync connections"
	ErrConfirm      = "confirmation prompt failed"
	ErrLogFile      = "failed to open log file"
	ErrCacheDir     = "could not determine user cache dir"
	ErrCreateDir    = "could not create app cache dir"
	ErrDataDir      = "could not determine user config dir"
	ErrAppFailed    = "application failed unexpectedly"
)

// -----------------------------------------------------------------------------
// HTTP Server Responses
// -----------------------------------------------------------------------------

const (
	HTTPMsgInitializing = "Preview initializing, please try again shortly."
	HTTPMsgMethodNotAll = "Method Not Allowed"
)

// -----------------------------------------------------------------------------
// Fallbacks & Defaults
// -----------------------------------------------------------------------------

const (
	FallbackSummaryAge   = "Birthday: %s (%d)"
	FallbackSummaryBirth = "Birthday: %s (birth)"
	FallbackName         = "Unknown"

	// StubVCalendar is the minimal valid iCalendar object used when no events are found.
	StubVCalendar = "BEGIN:VCALENDAR\r\nVERSION:2.0\r\nPRODID:" + ICalProdid + "\r\nEND:VCALENDAR\r\n"
)

// -----------------------------------------------------------------------------
// Log Messages
// -----------------------------------------------------------------------------

const (
	// Engine
	MsgBatchEmpty     = "No connections to reconcile"
	MsgBatchStarted   = "Reconciliation started"
	MsgBatchTimeout   = "Reconciliation deadline reached, returning partial results"
	MsgBatchFinished  = "Reconciliation finished"
	MsgTaskState      = "Task state changed"
	MsgTierResult     = "Match tier evaluated"
	MsgFetchFailed    = "Connection detail unavailable, skipping"
	MsgMatchFailed    = "Match lookup failed, treating as new contact"
	MsgWriteFailed    = "Address book write failed"
	MsgAckFailed      = "Sync acknowledgement failed"
	MsgEntryCreated   = "Contact created"
	MsgEntryUpdated   = "Contact updated"
	MsgEntryUnchanged = "Contact already up to date"

	// Directory
	MsgDirCreated = "Address book not found, starting empty"
	MsgDirLoaded  = "Address book loaded"
	MsgDirSaved   = "Address book saved"

	// Remote
	MsgRequestSent   = "Sending API request"
	MsgServerStatus  = "API returned error status"
	MsgHTTP2Disabled = "HTTP/2 unavailable, using HTTP/1.1"

	// Report
	MsgLocaleSkip    = "Skipping non-locale file"
	MsgLocaleBadName = "Skipping malformed locale filename"
	MsgLocaleLoaded  = "Locale loaded successfully"
	MsgTransMissing  = "Missing translation key"

	// Server
	MsgServerListen  = "HTTP server listening"
	MsgServerStop    = "Shutting down HTTP server..."
	MsgCacheUpdated  = "Preview cache updated"
	MsgCalendarBuilt = "Birthday calendar built"

	// Main & worker
	MsgAppStarting   = "Starting application"
	MsgAppStop       = "Application stopped gracefully"
	MsgConfigFile    = "Using config file"
	MsgPassFail      = "Token retrieval from keyring failed (might be empty)"
	MsgTokenStored   = "API token stored in keyring"
	MsgSyncStarted   = "Synchronization started"
	MsgSyncSuccess   = "Synchronization completed"
	MsgSyncFailed    = "Synchronization failed. Check logs."
	MsgWorkerStart   = "Background worker started"
	MsgWorkerStop    = "Worker stopping due to context cancellation"
	MsgUpdateSync    = "Updating refresh interval"
	MsgRefreshFailed = "Preview refresh failed"
	MsgLogWarning    = "Warning: %s at %s: %v\n"
	MsgPromptToken   = "API token"
	MsgPromptAborted = "Sync aborted by user"
)

// -----------------------------------------------------------------------------
// Structured Logging Keys (slog)
// -----------------------------------------------------------------------------

const (
	LogKeyComponent  = "component"
	LogKeyError      = "error"
	LogKeyURL        = "url"
	LogKeyMethod     = "method"
	LogKeyStatus     = "status_code"
	LogKeyFile       = "file"
	LogKeyLang       = "lang"
	LogKeyKey        = "key"
	LogKeyPort       = "port"
	LogKeyInterval   = "interval"
	LogKeyOld        = "old"
	LogKeyNew        = "new"
	LogKeyStats      = "stats"
	LogKeyCount      = "count"
	LogKeyTotal      = "total"
	LogKeyResults    = "results"
	LogKeyChanges    = "changes"
	LogKeyBirthdays  = "birthdays"
	LogKeyDuration   = "duration_ms"
	LogKeyConnection = "connection_id"
	LogKeyEntry      = "entry_id"
	LogKeyTier       = "tier"
	LogKeyState      = "state"
	LogKeyDryRun     = "dry_run"

	// Startup Info Keys
	LogKeyBuild   = "build"
	LogKeyApp     = "app"
	LogKeyVersion = "version"
	LogKeyGoVer   = "go_version"
	LogKeyEnv     = "env"
	LogKeyOS      = "os"
	LogKeyArch    = "arch"
	LogKeyPID     = "pid"
)

// -----------------------------------------------------------------------------
// Log Components
// -----------------------------------------------------------------------------

const (
	CompEngine    = "engine"
	CompTask      = "task"
	CompMatcher   = "matcher"
	CompDirectory = "directory"
	CompRemote    = "remote"
	CompServer    = "server"
	CompWorker    = "worker"
	CompMain      = "main"
	CompConfig    = "config"
	CompI18n      = "i18n"
)
