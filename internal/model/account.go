package model

import "time"

// Security selects the transport security for a server connection.
type Security string

const (
	// SecurityTLS uses implicit TLS from the first byte.
	SecurityTLS Security = "tls"
	// SecurityStartTLS connects in plaintext and upgrades via STARTTLS.
	SecurityStartTLS Security = "starttls"
	// SecurityNone uses a plaintext connection. Testing only.
	SecurityNone Security = "none"
)

// Account holds the identity and connection parameters for one mailbox
// provider. The password is never stored here; it lives in the system
// keyring under (KeyringService(), Email).
type Account struct {
	// ID is the local database identifier.
	ID int64 `json:"id"`

	// Name is the user-chosen label for the account, unique across accounts.
	Name string `json:"name"`

	// Email is the address used both for login and as the keyring username.
	Email string `json:"email"`

	// IMAPHost and IMAPPort locate the IMAP server.
	IMAPHost string `json:"imap_host"`
	IMAPPort int    `json:"imap_port"`

	// IMAPSecurity selects the IMAP transport mode.
	IMAPSecurity Security `json:"imap_security"`

	// SMTPHost, SMTPPort, and SMTPSecurity are kept with the account so
	// one entry describes the whole provider, though only the IMAP side
	// is used by the sync core.
	SMTPHost     string   `json:"smtp_host"`
	SMTPPort     int      `json:"smtp_port"`
	SMTPSecurity Security `json:"smtp_security"`

	// CreatedAt is when the account was first stored.
	CreatedAt time.Time `json:"created_at"`
}

// KeyringService returns the per-account keyring service string used to
// namespace this account's credential.
func (a Account) KeyringService() string {
	return "hawk-tui:" + a.Name
}
