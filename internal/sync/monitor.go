package sync

import (
	"context"
	"errors"
	gosync "sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/RipKord42/Hawk-TUI/internal/imap"
	"github.com/RipKord42/Hawk-TUI/internal/model"
)

const (
	// idleTimeout bounds one idle window. Servers may drop sessions
	// idling past 30 minutes, so refresh just before that.
	idleTimeout = 29 * time.Minute

	// reconnectDelay spaces reconnect attempts after a connection
	// error.
	reconnectDelay = 30 * time.Second

	// stopGrace bounds how long Stop waits for watchers to exit before
	// force-closing their sessions.
	stopGrace = 2 * time.Second

	// eventBuffer sizes the push event channel.
	eventBuffer = 16

	// inboxFolder is the folder every account watches. New mail lands
	// in the inbox; other folders are covered by scheduled syncs.
	inboxFolder = "INBOX"
)

// MonitorEvent is a server push notification tagged with the account
// and folder that observed it.
type MonitorEvent struct {
	Account string
	Folder  string
	Kind    imap.EventKind

	// Count carries the folder's new message count for new-mail
	// events, zero otherwise.
	Count uint32
}

// IdleSession is the slice of the protocol client the monitor drives.
// It is satisfied by *imap.Client.
type IdleSession interface {
	Connect(ctx context.Context) error
	SupportsIdle() bool
	IdleStart(ctx context.Context, folder string) error
	IdleWait(ctx context.Context, timeout time.Duration) ([]imap.Event, error)
	IdleDone() error
	Close() error
}

// Monitor keeps one idle session open per account and surfaces server
// push notifications as events. Sessions are separate from the
// engine's: an idling connection cannot run commands, so each account
// gets a dedicated watch connection.
type Monitor struct {
	logger *logrus.Logger

	// dial builds the idle session for an account. Tests override it
	// to avoid the network.
	dial func(account model.Account, logger *logrus.Logger) IdleSession

	events chan MonitorEvent

	mu       gosync.Mutex
	running  bool
	cancel   context.CancelFunc
	sessions map[string]IdleSession
	wg       gosync.WaitGroup
}

// NewMonitor creates a push monitor. Start launches the watchers.
func NewMonitor(logger *logrus.Logger) *Monitor {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Monitor{
		logger: logger,
		dial: func(account model.Account, logger *logrus.Logger) IdleSession {
			return imap.NewClient(account, logger)
		},
		events:   make(chan MonitorEvent, eventBuffer),
		sessions: make(map[string]IdleSession),
	}
}

// Events returns the push event stream. Events are dropped rather than
// buffered without bound when the consumer falls behind; an event only
// signals that something changed, so a dropped one is made up for by
// the next sync.
func (m *Monitor) Events() <-chan MonitorEvent {
	return m.events
}

// Running reports whether the monitor has been started and not yet
// stopped.
func (m *Monitor) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

// Start launches one watcher per account. A watcher exits permanently
// when its server rejects the credential or lacks idle support;
// connection failures are retried with a delay.
func (m *Monitor) Start(accounts []model.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		return errors.New("monitor already running")
	}
	m.running = true

	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel

	m.logger.WithField("accounts", len(accounts)).Info("starting push monitor")
	for _, account := range accounts {
		m.wg.Add(1)
		go m.watch(ctx, account)
	}
	return nil
}

// Stop cancels all watchers and force-closes any session still open
// after a short grace period, so shutdown never hangs on an
// unresponsive server.
func (m *Monitor) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	m.running = false
	cancel := m.cancel
	m.cancel = nil
	m.mu.Unlock()

	m.logger.Info("stopping push monitor")
	cancel()

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(stopGrace):
		m.logger.Warn("watchers did not stop in time, closing sessions")
		m.mu.Lock()
		for name, session := range m.sessions {
			if err := session.Close(); err != nil {
				m.logger.WithError(err).WithField("account", name).
					Warn("failed to close idle session")
			}
		}
		m.mu.Unlock()
	}
}

func (m *Monitor) publish(ev MonitorEvent) {
	select {
	case m.events <- ev:
	default:
		// Drop if the channel is full to avoid blocking the watcher.
	}
}

func (m *Monitor) track(name string, session IdleSession) {
	m.mu.Lock()
	m.sessions[name] = session
	m.mu.Unlock()
}

func (m *Monitor) untrack(name string) {
	m.mu.Lock()
	delete(m.sessions, name)
	m.mu.Unlock()
}

// watch maintains the idle loop for one account, reconnecting after
// connection errors until the monitor stops.
func (m *Monitor) watch(ctx context.Context, account model.Account) {
	defer m.wg.Done()

	log := m.logger.WithField("account", account.Name)
	log.Info("watching for new mail")

	for ctx.Err() == nil {
		session := m.dial(account, m.logger)
		m.track(account.Name, session)

		retry, err := m.idle(ctx, session, account)
		m.untrack(account.Name)
		session.Close()

		if ctx.Err() != nil {
			log.Debug("watcher stopped")
			return
		}
		if !retry {
			return
		}

		log.WithError(err).WithField("retry_in", reconnectDelay).
			Warn("idle session lost, reconnecting")
		select {
		case <-time.After(reconnectDelay):
		case <-ctx.Done():
			return
		}
	}
}

// idle runs one connect-and-idle session and reports whether the
// watcher should reconnect and retry.
func (m *Monitor) idle(ctx context.Context, session IdleSession, account model.Account) (retry bool, err error) {
	log := m.logger.WithField("account", account.Name)

	if err := session.Connect(ctx); err != nil {
		if imap.IsAuthError(err) {
			log.WithError(err).Error("authentication failed, watcher exiting")
			return false, err
		}
		return true, err
	}

	if !session.SupportsIdle() {
		log.Warn("server does not support idle, push disabled for this account")
		return false, nil
	}

	if err := session.IdleStart(ctx, inboxFolder); err != nil {
		return true, err
	}

	for ctx.Err() == nil {
		events, err := session.IdleWait(ctx, idleTimeout)
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			return true, err
		}

		// Leave idle before doing anything else on the session.
		if err := session.IdleDone(); err != nil {
			return true, err
		}

		for _, ev := range events {
			m.publish(MonitorEvent{
				Account: account.Name,
				Folder:  inboxFolder,
				Kind:    ev.Kind,
				Count:   ev.Count,
			})
		}
		if len(events) == 0 {
			log.Debug("refreshing idle session")
		}

		if ctx.Err() != nil {
			break
		}
		if err := session.IdleStart(ctx, inboxFolder); err != nil {
			return true, err
		}
	}

	// Stopping: end the idle cleanly if one is still active.
	_ = session.IdleDone()
	return false, nil
}
