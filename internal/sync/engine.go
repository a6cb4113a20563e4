// Package sync reconciles local mail state with IMAP servers. The
// engine drives full and incremental folder syncs with spam
// interception; the monitor holds IDLE sessions open and turns server
// push notifications into sync triggers.
package sync

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"
	gosync "sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/RipKord42/Hawk-TUI/internal/imap"
	"github.com/RipKord42/Hawk-TUI/internal/model"
	"github.com/RipKord42/Hawk-TUI/internal/store"
)

const (
	// defaultFetchBatch bounds how many full messages one round trip
	// fetches and how many rows one upsert writes.
	defaultFetchBatch = 50

	// progressBuffer sizes the snapshot channel.
	progressBuffer = 16
)

// ErrSyncInProgress reports that a sync attempt was dropped because a
// run for the same account is still active.
var ErrSyncInProgress = errors.New("sync already in progress")

// Classifier scores messages during the spam interception pass. It is
// satisfied by *spam.Classifier.
type Classifier interface {
	IsTrained() bool
	Classify(msg *model.Message) float64
}

// Mailbox is the slice of the protocol client the engine drives. It is
// satisfied by *imap.Client; tests substitute an in-memory fake.
type Mailbox interface {
	Connect(ctx context.Context) error
	Connected() bool
	Close() error
	ListFolders(ctx context.Context, withStatus bool) ([]imap.FolderInfo, error)
	SelectFolder(ctx context.Context, name string, readOnly bool) (*imap.SelectInfo, error)
	FolderUIDs(ctx context.Context, folder string) ([]uint32, error)
	FetchMessages(ctx context.Context, req imap.FetchRequest) ([]model.Message, error)
	FetchFlags(ctx context.Context, folder string, uids []uint32) (map[uint32]model.MessageFlags, error)
	MoveMessages(ctx context.Context, src, dst string, uids []uint32) error
}

// Options selects which reconciliation passes a run performs beyond
// fetching new messages.
type Options struct {
	// SyncFlags refreshes local flags from the server for messages
	// that already exist locally.
	SyncFlags bool

	// SyncDeletions removes local messages whose UIDs no longer exist
	// on the server.
	SyncDeletions bool
}

// DefaultOptions derives run options from configuration.
func DefaultOptions(cfg *model.AppConfig) Options {
	opts := Options{SyncFlags: true}
	if cfg != nil {
		opts.SyncDeletions = cfg.Sync.SyncDeleted
	}
	return opts
}

// Engine makes local state converge to server state, one account per
// run. A single Engine serves all accounts: runs for different
// accounts proceed concurrently while a second run for the same
// account is rejected with ErrSyncInProgress.
type Engine struct {
	store      store.Store
	classifier Classifier
	config     *model.AppConfig
	logger     *logrus.Logger

	// dial builds the protocol session for a run. Tests override it to
	// avoid the network.
	dial func(account model.Account, logger *logrus.Logger) Mailbox

	fetchBatch int
	progressCh chan Progress

	mu      gosync.Mutex
	running map[string]bool
}

// NewEngine creates a sync engine on top of the given store. The
// classifier may be nil, which disables spam interception.
func NewEngine(st store.Store, classifier Classifier, cfg *model.AppConfig, logger *logrus.Logger) *Engine {
	if cfg == nil {
		cfg = &model.AppConfig{}
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	batch := cfg.Sync.FetchBatchSize
	if batch <= 0 {
		batch = defaultFetchBatch
	}
	return &Engine{
		store:      st,
		classifier: classifier,
		config:     cfg,
		logger:     logger,
		dial: func(account model.Account, logger *logrus.Logger) Mailbox {
			cli := imap.NewClient(account, logger)
			if cfg.Sync.UIDBatchSize > 0 {
				cli.SetFlagBatchSize(cfg.Sync.UIDBatchSize)
			}
			return cli
		},
		fetchBatch: batch,
		progressCh: make(chan Progress, progressBuffer),
		running:    make(map[string]bool),
	}
}

// Progress returns the snapshot stream shared by all runs. Snapshots
// carry the account name and run id so consumers can tell concurrent
// runs apart.
func (e *Engine) Progress() <-chan Progress {
	return e.progressCh
}

func (e *Engine) publish(p Progress) {
	select {
	case e.progressCh <- p:
	default:
		// Drop if the channel is full to avoid blocking the sync.
	}
}

func (e *Engine) acquire(account string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.running[account] {
		return fmt.Errorf("%w for account %s", ErrSyncInProgress, account)
	}
	e.running[account] = true
	return nil
}

func (e *Engine) release(account string) {
	e.mu.Lock()
	delete(e.running, account)
	e.mu.Unlock()
}

// SyncAll reconciles every folder of account. The returned error is
// non-nil only when the run never started (another run holds the
// account) or when authentication failed; everything else is collected
// into Result.Errors, with Success reporting whether the run completed
// its folder loop.
func (e *Engine) SyncAll(ctx context.Context, account model.Account, opts Options) (*Result, error) {
	if err := e.acquire(account.Name); err != nil {
		return nil, err
	}
	defer e.release(account.Name)

	r := e.newRun(account, opts)
	defer r.mailbox.Close()

	return r.syncAll(ctx)
}

// SyncFolder reconciles a single named folder, typically in response
// to a push event. It shares per-account serialization with SyncAll.
func (e *Engine) SyncFolder(ctx context.Context, account model.Account, folderName string, opts Options) (*Result, error) {
	if err := e.acquire(account.Name); err != nil {
		return nil, err
	}
	defer e.release(account.Name)

	r := e.newRun(account, opts)
	defer r.mailbox.Close()

	return r.syncOne(ctx, folderName)
}

// ensureAccount resolves the store row for account, creating it on
// first sync.
func (e *Engine) ensureAccount(ctx context.Context, account model.Account) (int64, error) {
	row, err := e.store.UpsertAccount(ctx, account)
	if err != nil {
		return 0, fmt.Errorf("storing account: %w", err)
	}
	return row.ID, nil
}

// reconcileFolders mirrors the server's folder list into the store and
// returns the local rows. Folders the server no longer reports are
// deleted along with their messages.
func (e *Engine) reconcileFolders(ctx context.Context, accountID int64, remote []imap.FolderInfo) ([]model.Folder, error) {
	names := make([]string, 0, len(remote))
	folders := make([]model.Folder, 0, len(remote))
	for _, info := range remote {
		folder, err := e.store.UpsertFolder(ctx, model.Folder{
			AccountID: accountID,
			Name:      info.Name,
			Type:      info.Type,
			Delimiter: info.Delimiter,
		})
		if err != nil {
			return nil, fmt.Errorf("storing folder %s: %w", info.Name, err)
		}
		names = append(names, info.Name)
		folders = append(folders, *folder)
	}

	if err := e.store.DeleteFoldersExcept(ctx, accountID, names); err != nil {
		return nil, fmt.Errorf("pruning folders: %w", err)
	}
	return folders, nil
}

// run carries the state of one sync attempt. Counters accumulate on
// the progress snapshot and are copied into the final Result.
type run struct {
	engine  *Engine
	mailbox Mailbox
	account model.Account
	opts    Options

	accountID int64
	progress  Progress
	errors    []string
	started   time.Time
}

func (e *Engine) newRun(account model.Account, opts Options) *run {
	return &run{
		engine:  e,
		mailbox: e.dial(account, e.logger),
		account: account,
		opts:    opts,
		started: time.Now(),
		progress: Progress{
			RunID:   uuid.New(),
			Account: account.Name,
		},
	}
}

func (r *run) publish(status Status) {
	r.progress.Status = status
	r.engine.publish(r.progress)
}

func (r *run) recordError(scope string, err error) {
	r.errors = append(r.errors, fmt.Sprintf("%s: %v", scope, err))
	r.progress.Error = err.Error()
}

func (r *run) finish(status Status) *Result {
	r.progress.Folder = ""
	r.publish(status)
	return &Result{
		RunID:           r.progress.RunID,
		Success:         status == StatusComplete,
		Cancelled:       status == StatusCancelled,
		NewMessages:     r.progress.NewMessages,
		UpdatedMessages: r.progress.UpdatedMessages,
		DeletedMessages: r.progress.DeletedMessages,
		SpamMoved:       r.progress.SpamMoved,
		Errors:          r.errors,
		Duration:        time.Since(r.started),
	}
}

func (r *run) syncAll(ctx context.Context) (*Result, error) {
	log := r.engine.logger.WithFields(logrus.Fields{
		"account": r.account.Name,
		"run_id":  r.progress.RunID,
	})
	log.Info("starting sync")

	r.publish(StatusConnecting)
	if err := r.mailbox.Connect(ctx); err != nil {
		r.recordError("connect", err)
		if imap.IsAuthError(err) {
			return r.finish(StatusError), err
		}
		return r.finish(StatusError), nil
	}

	accountID, err := r.engine.ensureAccount(ctx, r.account)
	if err != nil {
		r.recordError("account", err)
		return r.finish(StatusError), nil
	}
	r.accountID = accountID

	r.publish(StatusListing)
	remote, err := r.mailbox.ListFolders(ctx, false)
	if err != nil {
		r.recordError("list folders", err)
		return r.finish(StatusError), nil
	}

	folders, err := r.engine.reconcileFolders(ctx, accountID, remote)
	if err != nil {
		r.recordError("folders", err)
		return r.finish(StatusError), nil
	}
	r.progress.TotalFolders = len(folders)

	for i := range folders {
		if ctx.Err() != nil {
			return r.finish(StatusCancelled), nil
		}
		folder := &folders[i]
		r.progress.Folder = folder.Name
		r.publish(StatusSyncing)

		if err := r.syncFolder(ctx, folder); err != nil {
			if imap.IsAuthError(err) {
				r.recordError(folder.Name, err)
				return r.finish(StatusError), err
			}
			if ctx.Err() != nil {
				return r.finish(StatusCancelled), nil
			}
			r.recordError(folder.Name, err)
			log.WithError(err).WithField("folder", folder.Name).Error("folder sync failed")
		}
		r.progress.SyncedFolders++
	}

	if ctx.Err() != nil {
		return r.finish(StatusCancelled), nil
	}

	res := r.finish(StatusComplete)
	log.WithFields(logrus.Fields{
		"new":      res.NewMessages,
		"updated":  res.UpdatedMessages,
		"deleted":  res.DeletedMessages,
		"spam":     res.SpamMoved,
		"errors":   len(res.Errors),
		"duration": res.Duration.Round(time.Millisecond),
	}).Info("sync finished")
	return res, nil
}

func (r *run) syncOne(ctx context.Context, folderName string) (*Result, error) {
	r.publish(StatusConnecting)
	if err := r.mailbox.Connect(ctx); err != nil {
		r.recordError("connect", err)
		if imap.IsAuthError(err) {
			return r.finish(StatusError), err
		}
		return r.finish(StatusError), nil
	}

	accountID, err := r.engine.ensureAccount(ctx, r.account)
	if err != nil {
		r.recordError("account", err)
		return r.finish(StatusError), nil
	}
	r.accountID = accountID

	folder, err := r.lookupFolder(ctx, folderName)
	if err != nil {
		r.recordError(folderName, err)
		return r.finish(StatusError), nil
	}

	r.progress.TotalFolders = 1
	r.progress.Folder = folder.Name
	r.publish(StatusSyncing)

	if err := r.syncFolder(ctx, folder); err != nil {
		if imap.IsAuthError(err) {
			r.recordError(folder.Name, err)
			return r.finish(StatusError), err
		}
		if ctx.Err() != nil {
			return r.finish(StatusCancelled), nil
		}
		r.recordError(folder.Name, err)
		return r.finish(StatusError), nil
	}
	r.progress.SyncedFolders = 1
	return r.finish(StatusComplete), nil
}

// lookupFolder resolves a folder row by name, refreshing the folder
// list from the server once if the name is unknown locally.
func (r *run) lookupFolder(ctx context.Context, name string) (*model.Folder, error) {
	folder, err := r.engine.store.GetFolderByName(ctx, r.accountID, name)
	if err == nil {
		return folder, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}

	remote, err := r.mailbox.ListFolders(ctx, false)
	if err != nil {
		return nil, err
	}
	if _, err := r.engine.reconcileFolders(ctx, r.accountID, remote); err != nil {
		return nil, err
	}

	folder, err = r.engine.store.GetFolderByName(ctx, r.accountID, name)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("folder %q does not exist", name)
		}
		return nil, err
	}
	return folder, nil
}

// syncFolder reconciles one folder. The choice between full and
// incremental sync rests on UIDVALIDITY: a changed epoch makes every
// stored UID meaningless, so the local copy is purged and refetched.
func (r *run) syncFolder(ctx context.Context, folder *model.Folder) error {
	log := r.engine.logger.WithFields(logrus.Fields{
		"account": r.account.Name,
		"folder":  folder.Name,
	})

	sel, err := r.mailbox.SelectFolder(ctx, folder.Name, false)
	if err != nil {
		return err
	}

	r.progress.TotalMessages = 0
	r.progress.SyncedMessages = 0

	switch {
	case sel.UIDValidity == 0:
		// Some servers omit UIDVALIDITY; without an epoch to compare,
		// stored UIDs are trusted as-is.
		log.Warn("server reported no uidvalidity, syncing incrementally")
		err = r.incrementalSync(ctx, folder)
	case folder.UIDValidity == 0:
		log.Debug("first sync, fetching all messages")
		err = r.fullSync(ctx, folder)
	case folder.UIDValidity != sel.UIDValidity:
		log.WithFields(logrus.Fields{
			"stored": folder.UIDValidity,
			"server": sel.UIDValidity,
		}).Warn("uidvalidity changed, discarding local messages")
		err = r.fullSync(ctx, folder)
	default:
		err = r.incrementalSync(ctx, folder)
	}
	if err != nil {
		return err
	}

	if r.opts.SyncFlags {
		if err := r.syncFlags(ctx, folder); err != nil {
			return err
		}
	}
	if r.opts.SyncDeletions {
		if err := r.syncDeletions(ctx, folder); err != nil {
			return err
		}
	}

	if err := ctx.Err(); err != nil {
		return err
	}
	return r.finishFolder(ctx, folder, sel.UIDValidity)
}

// finishFolder stamps the folder's post-sync metadata. The UIDVALIDITY
// epoch is recorded only after the folder's messages agree with it,
// and counts are recomputed from what was actually persisted.
func (r *run) finishFolder(ctx context.Context, folder *model.Folder, uidValidity uint32) error {
	if err := r.engine.store.SetFolderUIDValidity(ctx, folder.ID, uidValidity); err != nil {
		return err
	}
	return r.engine.store.UpdateFolderCounts(ctx, folder.ID)
}

// fullSync discards the local copy of folder and refetches everything.
func (r *run) fullSync(ctx context.Context, folder *model.Folder) error {
	if err := r.engine.store.DeleteAllMessages(ctx, folder.ID); err != nil {
		return err
	}

	uids, err := r.mailbox.FolderUIDs(ctx, folder.Name)
	if err != nil {
		return err
	}
	return r.fetchAndPersist(ctx, folder, uids)
}

// incrementalSync fetches the messages the server has that the store
// does not. UIDs are compared as sets; arrival order does not matter.
func (r *run) incrementalSync(ctx context.Context, folder *model.Folder) error {
	serverUIDs, err := r.mailbox.FolderUIDs(ctx, folder.Name)
	if err != nil {
		return err
	}
	local, err := r.engine.store.LocalUIDs(ctx, folder.ID)
	if err != nil {
		return err
	}

	missing := make([]uint32, 0, len(serverUIDs))
	for _, uid := range serverUIDs {
		if !local[uid] {
			missing = append(missing, uid)
		}
	}
	return r.fetchAndPersist(ctx, folder, missing)
}

// fetchAndPersist downloads uids in ascending batches, runs the spam
// pass, and upserts each batch before fetching the next, so progress
// already persisted survives a mid-run failure. Cancellation is
// honored at batch boundaries.
func (r *run) fetchAndPersist(ctx context.Context, folder *model.Folder, uids []uint32) error {
	if len(uids) == 0 {
		return nil
	}
	slices.Sort(uids)

	r.progress.TotalMessages = len(uids)
	r.progress.SyncedMessages = 0
	r.publish(StatusSyncing)

	batch := r.engine.fetchBatch
	for start := 0; start < len(uids); start += batch {
		if err := ctx.Err(); err != nil {
			return err
		}
		end := min(start+batch, len(uids))

		msgs, err := r.mailbox.FetchMessages(ctx, imap.FetchRequest{
			Folder:   folder.Name,
			UIDs:     uids[start:end],
			WithBody: true,
		})
		if err != nil {
			return err
		}

		ham, spam, junkID := r.interceptSpam(ctx, folder, msgs)
		if err := r.engine.store.SaveMessages(ctx, folder.ID, ham); err != nil {
			return err
		}
		if len(spam) > 0 {
			if err := r.engine.store.SaveMessages(ctx, junkID, spam); err != nil {
				return err
			}
			r.progress.SpamMoved += len(spam)
		}

		r.progress.NewMessages += len(msgs)
		r.progress.SyncedMessages += len(msgs)
		r.publish(StatusSyncing)
	}
	return nil
}

// interceptSpam classifies a fetched batch and moves messages scoring
// at or above the configured threshold to the junk folder before
// anything is persisted. The returned junk folder id is meaningful
// only when spam is non-empty.
//
// A failed move keeps the messages in their original folder with the
// spam flag still set; detected spam is never dropped.
func (r *run) interceptSpam(ctx context.Context, folder *model.Folder, msgs []model.Message) (ham, spam []model.Message, junkID int64) {
	cfg := r.engine.config.Spam
	cls := r.engine.classifier
	if cls == nil || !cls.IsTrained() {
		return msgs, nil, 0
	}
	if !cfg.AutoMoveToJunk {
		return msgs, nil, 0
	}
	if folder.Type == model.FolderJunk || folder.Type == model.FolderTrash {
		return msgs, nil, 0
	}

	junk, err := r.engine.store.GetFolderByType(ctx, folder.AccountID, model.FolderJunk)
	if err != nil {
		r.engine.logger.WithError(err).Warn("junk folder lookup failed, skipping spam pass")
		return msgs, nil, 0
	}
	if junk == nil {
		r.engine.logger.WithField("account", r.account.Name).
			Warn("no junk folder, spam auto-move disabled")
		return msgs, nil, 0
	}

	var spamUIDs []uint32
	for i := range msgs {
		score := cls.Classify(&msgs[i])
		msgs[i].SpamScore = score
		if score >= cfg.Threshold {
			msgs[i].Flags = msgs[i].Flags.With(model.FlagSpam)
			spam = append(spam, msgs[i])
			spamUIDs = append(spamUIDs, msgs[i].UID)
		} else {
			ham = append(ham, msgs[i])
		}
	}
	if len(spam) == 0 {
		return ham, nil, 0
	}

	log := r.engine.logger.WithFields(logrus.Fields{
		"account": r.account.Name,
		"folder":  folder.Name,
		"count":   len(spam),
	})
	if err := r.mailbox.MoveMessages(ctx, folder.Name, junk.Name, spamUIDs); err != nil {
		log.WithError(err).Error("failed to move spam, keeping messages in place")
		return append(ham, spam...), nil, 0
	}
	log.Info("moved spam to junk folder")

	// The moved copies get fresh UIDs on the server; the stored rows
	// are provisional until the junk folder's next sync replaces them.
	return ham, spam, junk.ID
}

// syncFlags refreshes local flags from the server for messages already
// in the store. Server-owned flags are taken verbatim; local-only
// flags survive the merge.
func (r *run) syncFlags(ctx context.Context, folder *model.Folder) error {
	local, err := r.engine.store.LocalFlags(ctx, folder.ID)
	if err != nil {
		return err
	}
	if len(local) == 0 {
		return nil
	}

	uids := make([]uint32, 0, len(local))
	for uid := range local {
		uids = append(uids, uid)
	}
	slices.Sort(uids)

	updates := make(map[uint32]model.MessageFlags)
	batch := r.engine.fetchBatch
	for start := 0; start < len(uids); start += batch {
		if err := ctx.Err(); err != nil {
			return err
		}
		end := min(start+batch, len(uids))

		server, err := r.mailbox.FetchFlags(ctx, folder.Name, uids[start:end])
		if err != nil {
			return err
		}
		for uid, flags := range server {
			have, ok := local[uid]
			if !ok {
				continue
			}
			if merged := have.MergeServer(flags); merged != have {
				updates[uid] = merged
			}
		}
	}
	if len(updates) == 0 {
		return nil
	}

	if err := r.engine.store.UpdateFlags(ctx, folder.ID, updates); err != nil {
		return err
	}
	r.progress.UpdatedMessages += len(updates)
	r.publish(StatusSyncing)
	return nil
}

// syncDeletions removes local messages whose UIDs the server no longer
// reports. The flag fetch doubles as an existence probe: a UID with no
// response row is gone from the folder.
func (r *run) syncDeletions(ctx context.Context, folder *model.Folder) error {
	local, err := r.engine.store.LocalUIDs(ctx, folder.ID)
	if err != nil {
		return err
	}
	if len(local) == 0 {
		return nil
	}

	uids := make([]uint32, 0, len(local))
	for uid := range local {
		uids = append(uids, uid)
	}
	slices.Sort(uids)

	var gone []uint32
	batch := r.engine.fetchBatch
	for start := 0; start < len(uids); start += batch {
		if err := ctx.Err(); err != nil {
			return err
		}
		end := min(start+batch, len(uids))
		chunk := uids[start:end]

		server, err := r.mailbox.FetchFlags(ctx, folder.Name, chunk)
		if err != nil {
			return err
		}
		for _, uid := range chunk {
			if _, ok := server[uid]; !ok {
				gone = append(gone, uid)
			}
		}
	}
	if len(gone) == 0 {
		return nil
	}

	if err := r.engine.store.DeleteMessagesByUIDs(ctx, folder.ID, gone); err != nil {
		return err
	}
	r.engine.logger.WithFields(logrus.Fields{
		"account": r.account.Name,
		"folder":  folder.Name,
		"count":   len(gone),
	}).Info("removed messages deleted on server")
	r.progress.DeletedMessages += len(gone)
	r.publish(StatusSyncing)
	return nil
}
