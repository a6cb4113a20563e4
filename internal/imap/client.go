// Package imap implements the protocol client used by the sync engine
// and the push monitor: one authenticated session per account wrapping
// a go-imap v2 connection.
package imap

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"time"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"
	"github.com/emersion/go-sasl"
	"github.com/sirupsen/logrus"

	"github.com/RipKord42/Hawk-TUI/internal/credential"
	"github.com/RipKord42/Hawk-TUI/internal/model"
)

const (
	// opTimeout bounds quick protocol round trips.
	opTimeout = 30 * time.Second

	// fetchTimeout bounds a batched message fetch, which may carry
	// full bodies and attachments.
	fetchTimeout = 2 * time.Minute
)

// Client is one session to one account's IMAP server. A session is
// exclusively owned by whichever task currently drives it; the sync
// engine and the push monitor each hold their own Client and never
// share one. Methods reconnect on demand: after a network error the
// session drops to disconnected and the next call dials again.
type Client struct {
	account model.Account
	logger  *logrus.Logger

	cli      *imapclient.Client
	selected string

	// flagBatch caps how many UIDs a single STORE or flag FETCH
	// round trip carries.
	flagBatch int

	// events receives unilateral server notifications (new mail,
	// expunges, flag changes) pushed by the connection's read loop.
	events   chan Event
	idleCmd  *imapclient.IdleCommand
	idleDone chan error
}

// defaultFlagBatch is the UID batch size for flag, move, and delete
// round trips.
const defaultFlagBatch = 100

// NewClient creates a client for the given account. No connection is
// made until the first operation.
func NewClient(account model.Account, logger *logrus.Logger) *Client {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Client{
		account:   account,
		logger:    logger,
		flagBatch: defaultFlagBatch,
		events:    make(chan Event, 32),
	}
}

// SetFlagBatchSize overrides the UID batch size for flag, move, and
// delete operations. Non-positive values keep the default.
func (c *Client) SetFlagBatchSize(n int) {
	if n > 0 {
		c.flagBatch = n
	}
}

// Account returns the account this client is bound to.
func (c *Client) Account() model.Account {
	return c.account
}

// Connected reports whether the client currently holds a session.
func (c *Client) Connected() bool {
	return c.cli != nil
}

// Connect establishes the transport and authenticates. It is
// idempotent: an already-connected client returns immediately.
//
// The credential comes from the system keyring under
// (account.KeyringService(), account.Email). A missing or rejected
// credential yields an AuthError, which callers must not retry.
func (c *Client) Connect(ctx context.Context) error {
	if c.cli != nil {
		return nil
	}

	password, err := credential.Get(c.account.KeyringService(), c.account.Email)
	if err != nil {
		if errors.Is(err, credential.ErrNotFound) {
			return &AuthError{
				Account: c.account.Name,
				Message: fmt.Sprintf("no stored credential for %s", c.account.Email),
			}
		}
		return fmt.Errorf("reading credential for %s: %w", c.account.Name, err)
	}

	addr := net.JoinHostPort(c.account.IMAPHost, strconv.Itoa(c.account.IMAPPort))
	options := &imapclient.Options{
		TLSConfig: &tls.Config{
			ServerName: c.account.IMAPHost,
			MinVersion: tls.VersionTLS12,
		},
		UnilateralDataHandler: c.unilateralHandler(),
	}

	var cli *imapclient.Client
	switch c.account.IMAPSecurity {
	case model.SecurityTLS:
		cli, err = imapclient.DialTLS(addr, options)
	case model.SecurityStartTLS:
		cli, err = imapclient.DialStartTLS(addr, options)
	case model.SecurityNone:
		cli, err = imapclient.DialInsecure(addr, options)
	default:
		return fmt.Errorf("unknown security mode %q for account %s",
			c.account.IMAPSecurity, c.account.Name)
	}
	if err != nil {
		return &ConnError{Account: c.account.Name, Err: fmt.Errorf("dial %s: %w", addr, err)}
	}

	// Bound login and force the socket shut if it stalls.
	authCtx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	stopClose := context.AfterFunc(authCtx, func() {
		_ = cli.Close()
	})
	defer stopClose()

	if err := c.authenticate(cli, password); err != nil {
		return err
	}

	c.cli = cli
	c.selected = ""
	c.logger.WithFields(logrus.Fields{
		"account": c.account.Name,
		"server":  addr,
	}).Info("connected to IMAP server")

	return nil
}

// authenticate logs in over an established transport, preferring SASL
// PLAIN when the server advertises it and falling back to LOGIN.
func (c *Client) authenticate(cli *imapclient.Client, password string) error {
	usePlain := false
	if caps := cli.Caps(); caps != nil {
		usePlain = caps.Has(imap.Cap("AUTH=PLAIN"))
	}

	var err error
	if usePlain {
		err = cli.Authenticate(sasl.NewPlainClient("", c.account.Email, password))
	} else {
		err = cli.Login(c.account.Email, password).Wait()
	}
	if err != nil {
		_ = cli.Logout().Wait()
		_ = cli.Close()
		if closedOrNetErr(err) {
			return &ConnError{Account: c.account.Name, Err: err}
		}
		return &AuthError{
			Account: c.account.Name,
			Message: fmt.Sprintf("authentication failed for %s: %v", c.account.Email, err),
		}
	}
	return nil
}

// Close logs out and tears down the session. Safe on a disconnected
// client.
func (c *Client) Close() error {
	if c.cli == nil {
		return nil
	}
	if c.idleCmd != nil {
		_ = c.idleCmd.Close()
		c.idleCmd = nil
		c.idleDone = nil
	}
	_ = c.cli.Logout().Wait()
	err := c.cli.Close()
	c.cli = nil
	c.selected = ""
	return err
}

// drop discards a session after a transport failure without attempting
// a logout handshake.
func (c *Client) drop() {
	if c.cli != nil {
		_ = c.cli.Close()
		c.cli = nil
	}
	c.selected = ""
	c.idleCmd = nil
	c.idleDone = nil
}

// fail maps an operation error to the error taxonomy. Transport
// failures drop the session and come back as ConnError; everything
// else is a ProtocolError for the caller to judge.
func (c *Client) fail(op string, err error) error {
	if closedOrNetErr(err) {
		c.drop()
		return &ConnError{Account: c.account.Name, Err: fmt.Errorf("%s: %w", op, err)}
	}
	return &ProtocolError{Op: op, Err: err}
}

// closedOrNetErr reports whether err looks like a dead connection
// rather than a server rejection.
func closedOrNetErr(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	return errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, net.ErrClosed)
}

// opGuard force-closes the connection when ctx ends before the
// in-flight command does, so blocked waits return promptly. The
// returned stop function must be deferred.
func (c *Client) opGuard(ctx context.Context) func() bool {
	cli := c.cli
	return context.AfterFunc(ctx, func() {
		_ = cli.Close()
	})
}

// withOpTimeout runs one protocol round trip under its own deadline,
// force-closing the connection if the deadline passes first. Batched
// operations call this per chunk so a long loop is bounded by the
// caller's context, not a single fixed window.
func (c *Client) withOpTimeout(ctx context.Context, d time.Duration, fn func() error) error {
	opCtx, cancel := context.WithTimeout(ctx, d)
	defer cancel()
	defer c.opGuard(opCtx)()
	return fn()
}

// hasCap reports whether the server advertises the given capability.
func (c *Client) hasCap(cap imap.Cap) bool {
	if c.cli == nil {
		return false
	}
	caps := c.cli.Caps()
	return caps != nil && caps.Has(cap)
}

// SupportsIdle reports whether the server supports IDLE push mode.
func (c *Client) SupportsIdle() bool {
	return c.hasCap(imap.CapIdle)
}

// ListFolders returns every selectable folder with its classification.
// When withStatus is set, each folder is enriched with live message and
// unseen counts; enrichment failures are logged and skipped per folder.
func (c *Client) ListFolders(ctx context.Context, withStatus bool) ([]FolderInfo, error) {
	if err := c.Connect(ctx); err != nil {
		return nil, err
	}
	opCtx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	defer c.opGuard(opCtx)()

	boxes, err := c.cli.List("", "*", nil).Collect()
	if err != nil {
		return nil, c.fail("list folders", err)
	}

	var folders []FolderInfo
	for _, mb := range boxes {
		if hasAttr(mb.Attrs, imap.MailboxAttrNoSelect) {
			c.logger.WithField("folder", mb.Mailbox).Debug("skipping non-selectable folder")
			continue
		}

		delim := ""
		if mb.Delim != 0 {
			delim = string(mb.Delim)
		}

		info := FolderInfo{
			Name:      mb.Mailbox,
			Delimiter: delim,
			Type:      classifyFolder(mb.Mailbox, delim, mb.Attrs),
		}

		if withStatus {
			status, err := c.cli.Status(mb.Mailbox, &imap.StatusOptions{
				NumMessages: true,
				NumUnseen:   true,
			}).Wait()
			if err != nil {
				c.logger.WithError(err).WithField("folder", mb.Mailbox).
					Debug("folder status unavailable")
			} else {
				if status.NumMessages != nil {
					info.Messages = *status.NumMessages
				}
				if status.NumUnseen != nil {
					info.Unseen = *status.NumUnseen
				}
				info.HasStatus = true
			}
		}

		folders = append(folders, info)
	}

	return folders, nil
}

// hasAttr reports whether attrs contains attr.
func hasAttr(attrs []imap.MailboxAttr, attr imap.MailboxAttr) bool {
	for _, a := range attrs {
		if a == attr {
			return true
		}
	}
	return false
}

// SelectFolder makes a folder the target of subsequent UID operations
// and returns its current state. Re-selecting the already-selected
// folder takes a lightweight STATUS round trip instead of a SELECT.
func (c *Client) SelectFolder(ctx context.Context, name string, readOnly bool) (*SelectInfo, error) {
	if err := c.Connect(ctx); err != nil {
		return nil, err
	}
	opCtx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	defer c.opGuard(opCtx)()

	if c.selected == name {
		status, err := c.cli.Status(name, &imap.StatusOptions{
			NumMessages: true,
			NumUnseen:   true,
			UIDNext:     true,
			UIDValidity: true,
		}).Wait()
		if err != nil {
			return nil, c.fail("folder status", err)
		}
		info := &SelectInfo{
			UIDNext:     uint32(status.UIDNext),
			UIDValidity: status.UIDValidity,
		}
		if status.NumMessages != nil {
			info.NumMessages = *status.NumMessages
		}
		if status.NumUnseen != nil {
			info.NumUnseen = *status.NumUnseen
		}
		return info, nil
	}

	data, err := c.cli.Select(name, &imap.SelectOptions{ReadOnly: readOnly}).Wait()
	if err != nil {
		c.selected = ""
		return nil, c.fail("select "+name, err)
	}
	c.selected = name

	return &SelectInfo{
		NumMessages: data.NumMessages,
		UIDNext:     uint32(data.UIDNext),
		UIDValidity: data.UIDValidity,
	}, nil
}

// FolderUIDs returns the complete UID set currently present in a
// folder. Used for set comparison only, never for content.
func (c *Client) FolderUIDs(ctx context.Context, folder string) ([]uint32, error) {
	if _, err := c.SelectFolder(ctx, folder, true); err != nil {
		return nil, err
	}
	opCtx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	defer c.opGuard(opCtx)()

	data, err := c.cli.UIDSearch(&imap.SearchCriteria{}, nil).Wait()
	if err != nil {
		return nil, c.fail("search uids in "+folder, err)
	}

	raw := data.AllUIDs()
	uids := make([]uint32, 0, len(raw))
	for _, uid := range raw {
		uids = append(uids, uint32(uid))
	}
	return uids, nil
}
