package imap

import (
	"context"
	"errors"
	"time"

	"github.com/emersion/go-imap/v2/imapclient"
)

// EventKind labels a unilateral server notification.
type EventKind string

const (
	// EventNewMail means the folder's message count changed, usually
	// because new mail arrived.
	EventNewMail EventKind = "new_mail"
	// EventExpunge means a message was removed from the folder.
	EventExpunge EventKind = "expunge"
	// EventFlags means a message's flags changed.
	EventFlags EventKind = "flags"
)

// Event is a notification the server pushed outside a command
// response. The account and folder are implied by the session that
// observed it.
type Event struct {
	Kind EventKind
	// Count carries the folder's new message count for EventNewMail,
	// zero otherwise.
	Count uint32
}

// unilateralHandler routes server-pushed responses into the events
// channel. The callbacks run on the connection's read goroutine and
// must never block.
func (c *Client) unilateralHandler() *imapclient.UnilateralDataHandler {
	return &imapclient.UnilateralDataHandler{
		Mailbox: func(data *imapclient.UnilateralDataMailbox) {
			if data.NumMessages != nil {
				c.pushEvent(Event{Kind: EventNewMail, Count: *data.NumMessages})
			}
		},
		Expunge: func(seqNum uint32) {
			c.pushEvent(Event{Kind: EventExpunge})
		},
		Fetch: func(msg *imapclient.FetchMessageData) {
			// Drain the message data so the read loop keeps moving.
			_, _ = msg.Collect()
			c.pushEvent(Event{Kind: EventFlags})
		},
	}
}

func (c *Client) pushEvent(ev Event) {
	select {
	case c.events <- ev:
	default:
		// A full buffer means the consumer is behind; dropping is
		// safe because events only signal "something changed".
	}
}

func (c *Client) drainEvents() {
	for {
		select {
		case <-c.events:
		default:
			return
		}
	}
}

// IdleStart selects folder and puts the session into IDLE. Stale
// events from before the idle window are discarded.
func (c *Client) IdleStart(ctx context.Context, folder string) error {
	if c.idleCmd != nil {
		return &ProtocolError{Op: "idle", Err: errors.New("idle already active")}
	}
	if _, err := c.SelectFolder(ctx, folder, true); err != nil {
		return err
	}

	c.drainEvents()

	idleCmd, err := c.cli.Idle()
	if err != nil {
		return c.fail("idle start", err)
	}

	done := make(chan error, 1)
	go func() {
		done <- idleCmd.Wait()
	}()

	c.idleCmd = idleCmd
	c.idleDone = done
	return nil
}

// IdleWait blocks until the server pushes at least one event, the
// timeout passes, or ctx is cancelled. A timeout returns no events and
// no error. Events arriving in the same burst are coalesced into one
// result.
func (c *Client) IdleWait(ctx context.Context, timeout time.Duration) ([]Event, error) {
	if c.idleCmd == nil {
		return nil, &ProtocolError{Op: "idle wait", Err: errors.New("idle not active")}
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case ev := <-c.events:
		events := []Event{ev}
		for {
			select {
			case ev := <-c.events:
				events = append(events, ev)
			default:
				return events, nil
			}
		}

	case err := <-c.idleDone:
		// IDLE ended without IdleDone: the connection is gone.
		c.idleCmd = nil
		c.idleDone = nil
		if err == nil {
			err = errors.New("idle terminated by server")
		}
		c.drop()
		return nil, &ConnError{Account: c.account.Name, Err: err}

	case <-timer.C:
		return nil, nil

	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// IdleDone ends the IDLE and returns the session to command mode.
// Safe to call when no IDLE is active.
func (c *Client) IdleDone() error {
	if c.idleCmd == nil {
		return nil
	}
	cmd := c.idleCmd
	done := c.idleDone
	c.idleCmd = nil
	c.idleDone = nil

	if err := cmd.Close(); err != nil {
		return c.fail("idle done", err)
	}
	if done != nil {
		if err := <-done; err != nil {
			return c.fail("idle done", err)
		}
	}
	return nil
}
