package engine

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/roach88/tuplespace/internal/history"
	"github.com/roach88/tuplespace/internal/lock"
	"github.com/roach88/tuplespace/internal/store"
	"github.com/roach88/tuplespace/internal/term"
)

// DefaultMaxRetries bounds how often a conflicted operation is re-issued
// before the conflict surfaces to the caller.
const DefaultMaxRetries = 5

// Match is the outcome of a produce or consume that completed a pairing:
// the continuation to fire, its provenance id, and the matched data in
// pattern order. A nil *Match from Produce/Consume means the new item was
// stored instead.
type Match struct {
	Continuation term.Continuation
	ConsumeID    string
	Persistent   bool // the fired continuation was persistent and remains registered
	Data         []MatchedDatum
}

// MatchedDatum is one matched payload plus the matcher's transformed result.
type MatchedDatum struct {
	Channel term.Channel
	Payload term.Value
	Value   term.Value
	Persist bool
}

// Engine is the tuple-space facade: produce, consume, install, retrieve,
// reset, clear, checkpoint. Stateless across calls; each public operation
// is one atomic unit.
//
// Thread-safety model:
//   - Produce/Consume/Install: safe from any goroutine; disjoint channel
//     sets run in parallel, overlapping ones serialize on the channel lock
//   - Reset/Clear/Checkpoint: exclusive; they quiesce the whole space
//   - Retrieve: read-only, never blocks matching
type Engine struct {
	store    *store.Store
	history  *history.Store
	installs *Installs
	locks    *lock.KeySetLock
	matcher  Matcher
	shuffler Shuffler
	tokens   TokenSource
	log      *slog.Logger

	// global serializes whole-space operations (reset/clear/checkpoint)
	// against per-channel-set operations, which share it.
	global sync.RWMutex

	maxRetries int
}

// Option configures an Engine.
type Option func(*Engine)

// WithShuffler replaces the candidate-order randomness. Tests inject a
// seeded or ordered shuffler for reproducible match choices.
func WithShuffler(s Shuffler) Option {
	return func(e *Engine) { e.shuffler = s }
}

// WithLogger replaces the engine's logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.log = l }
}

// WithTokens replaces the operation-token source.
func WithTokens(t TokenSource) Option {
	return func(e *Engine) { e.tokens = t }
}

// WithMaxRetries adjusts the conflict retry budget.
func WithMaxRetries(n int) Option {
	return func(e *Engine) { e.maxRetries = n }
}

// New creates an Engine over the given live store, history store, and
// matcher. The installs registry is constructed here and owned by the
// engine for the life of the process.
func New(s *store.Store, h *history.Store, m Matcher, opts ...Option) *Engine {
	e := &Engine{
		store:      s,
		history:    h,
		installs:   NewInstalls(),
		locks:      lock.New(),
		matcher:    m,
		shuffler:   NewShuffler(),
		tokens:     UUIDv7Source{},
		log:        slog.Default(),
		maxRetries: DefaultMaxRetries,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Consume registers patterns plus a continuation over an ordered channel
// group. If the current data already completes the match, the continuation
// fires immediately: the matched non-persistent data is removed and the
// continuation is NOT stored. Otherwise the continuation is persisted as a
// waiting row and nil is returned.
//
// With persist=true the continuation stays registered after each firing.
func (e *Engine) Consume(ctx context.Context, channels []term.Channel, patterns []term.Pattern, k term.Continuation, persist bool) (*Match, error) {
	const op = "consume"
	if err := validateGroup(op, channels, patterns); err != nil {
		return nil, err
	}
	token := e.tokens.Next()

	e.global.RLock()
	defer e.global.RUnlock()

	hashes := channelHashes(channels)

	var result *Match
	err := e.withRetry(ctx, op, func() error {
		return e.locks.With(hashes, func() error {
			return e.store.Update(ctx, func(txn *store.Txn) error {
				result = nil

				seq, err := txn.NextSeq()
				if err != nil {
					return err
				}
				cid, err := term.ConsumeID(channels, patterns, k, persist, seq)
				if err != nil {
					return usageError(op, "continuation not hashable: %v", err)
				}

				pools, err := e.buildPools(txn, channels, "", nil)
				if err != nil {
					return err
				}
				picks, ok, err := e.attempt(pools, channels, patterns)
				if err != nil {
					return matcherError(op, err)
				}

				if !ok {
					wc := term.WaitingContinuation{
						Patterns:     patterns,
						Continuation: k,
						Persist:      persist,
						ConsumeID:    cid,
					}
					if err := txn.PutContinuation(channels, wc); err != nil {
						return err
					}
					for _, ch := range distinct(channels) {
						if err := txn.AddJoin(ch, channels); err != nil {
							return err
						}
					}
					return nil
				}

				if err := commitPicks(txn, picks); err != nil {
					return err
				}
				if persist {
					// A persistent consume keeps standing: store it even
					// though it also fires now.
					wc := term.WaitingContinuation{
						Patterns:     patterns,
						Continuation: k,
						Persist:      true,
						ConsumeID:    cid,
					}
					if err := txn.PutContinuation(channels, wc); err != nil {
						return err
					}
					for _, ch := range distinct(channels) {
						if err := txn.AddJoin(ch, channels); err != nil {
							return err
						}
					}
				}
				result = &Match{
					Continuation: k,
					ConsumeID:    cid,
					Persistent:   persist,
					Data:         matchedData(picks),
				}
				return nil
			})
		})
	})
	if err != nil {
		return nil, err
	}

	e.log.Debug("consume done",
		slog.String("token", token),
		slog.Int("channels", len(channels)),
		slog.Bool("fired", result != nil))
	return result, nil
}

// Produce deposits a datum on a channel. Every channel group the channel is
// joined to is tried, in shuffled order, for a waiting continuation the new
// datum completes; the first complete match fires and at most one group is
// satisfied. If no group matches, the datum is stored.
//
// With persist=true the datum survives matches and keeps satisfying later
// consumes.
func (e *Engine) Produce(ctx context.Context, channel term.Channel, payload term.Value, persist bool) (*Match, error) {
	const op = "produce"
	if payload == nil {
		return nil, usageError(op, "nil payload")
	}
	token := e.tokens.Next()
	datum := term.Datum{Payload: payload, Persist: persist}

	e.global.RLock()
	defer e.global.RUnlock()

	// The full hash set is unknown until the join table is read: a
	// continuation may wait jointly on this channel plus others, and the
	// attempt may remove data from those others. Discovery runs unlocked;
	// TwoStep re-checks it under the acquired set.
	discover := func() ([]string, error) {
		hashes := []string{term.ChannelHash(channel)}
		err := e.store.View(ctx, func(txn *store.Txn) error {
			groups, err := txn.Joins(channel)
			if err != nil {
				return err
			}
			for _, g := range groups {
				hashes = append(hashes, channelHashes(g)...)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
		return hashes, nil
	}

	var result *Match
	err := e.withRetry(ctx, op, func() error {
		return e.locks.TwoStep(discover, func() error {
			return e.store.Update(ctx, func(txn *store.Txn) error {
				result = nil

				groups, err := txn.Joins(channel)
				if err != nil {
					return err
				}
				e.shuffler.Shuffle(len(groups), func(i, j int) {
					groups[i], groups[j] = groups[j], groups[i]
				})

				for _, group := range groups {
					match, err := e.produceAttempt(txn, group, channel, datum)
					if err != nil {
						return err
					}
					if match != nil {
						result = match
						return nil
					}
				}

				return txn.PutDatum(channel, datum)
			})
		})
	})
	if err != nil {
		return nil, err
	}

	e.log.Debug("produce done",
		slog.String("token", token),
		slog.String("channel", string(channel)),
		slog.Bool("fired", result != nil))
	return result, nil
}

// produceAttempt tries every waiting continuation of one joined group, in
// shuffled order, against the group's data plus the new datum. The first
// complete match commits and fires.
func (e *Engine) produceAttempt(txn *store.Txn, group []term.Channel, channel term.Channel, datum term.Datum) (*Match, error) {
	conts, err := txn.Continuations(group)
	if err != nil {
		return nil, err
	}
	if len(conts) == 0 {
		return nil, nil
	}

	order := make([]int, len(conts))
	for i := range order {
		order[i] = i
	}
	e.shuffler.Shuffle(len(order), func(i, j int) {
		order[i], order[j] = order[j], order[i]
	})

	pools, err := e.buildPools(txn, group, channel, &datum)
	if err != nil {
		return nil, err
	}

	for _, ci := range order {
		wc := conts[ci]
		picks, ok, err := e.attempt(pools, group, wc.Patterns)
		if err != nil {
			return nil, matcherError("produce", err)
		}
		if !ok {
			continue
		}

		if err := commitPicks(txn, picks); err != nil {
			return nil, err
		}
		if !wc.Persist {
			if err := txn.RemoveContinuation(group, ci); err != nil {
				return nil, err
			}
			if len(conts) == 1 {
				// That was the group's last waiting continuation; drop its
				// join rows so future produces skip the group entirely.
				for _, ch := range distinct(group) {
					if err := txn.RemoveJoin(ch, group); err != nil {
						return nil, err
					}
				}
			}
		}
		if !usedExtra(picks) {
			// The match completed from data already at rest; the new datum
			// still has to land somewhere.
			if err := txn.PutDatum(channel, datum); err != nil {
				return nil, err
			}
		}
		return &Match{
			Continuation: wc.Continuation,
			ConsumeID:    wc.ConsumeID,
			Persistent:   wc.Persist,
			Data:         matchedData(picks),
		}, nil
	}

	return nil, nil
}

// Install registers a permanently standing continuation for a channel
// group. Installs define service handlers present before any data arrives:
// a group whose current data would satisfy the patterns immediately is a
// fatal usage error, as is installing a group twice.
//
// The install lands both in the live store (as a persistent waiting
// continuation) and in the registry, and is replayed after every reset.
func (e *Engine) Install(ctx context.Context, channels []term.Channel, patterns []term.Pattern, k term.Continuation) error {
	const op = "install"
	if err := validateGroup(op, channels, patterns); err != nil {
		return err
	}
	token := e.tokens.Next()
	ins := term.Install{Channels: channels, Patterns: patterns, Continuation: k}

	e.global.RLock()
	defer e.global.RUnlock()

	// Reserve the group before touching the store: of two concurrent
	// installs on the same group, exactly one passes, and the loser never
	// writes a continuation row the registry does not know about.
	if !e.installs.Add(ins) {
		return usageError(op, "channel group already installed")
	}

	err := e.withRetry(ctx, op, func() error {
		return e.locks.With(channelHashes(channels), func() error {
			return e.store.Update(ctx, func(txn *store.Txn) error {
				return e.installTxn(txn, ins)
			})
		})
	})
	if err != nil {
		e.installs.Remove(channels)
		return err
	}

	e.log.Info("install registered",
		slog.String("token", token),
		slog.Int("channels", len(channels)))
	return nil
}

// installTxn runs the store half of an install: reject if the patterns
// match existing data, otherwise persist the standing continuation and its
// joins. Shared by Install and reset replay.
func (e *Engine) installTxn(txn *store.Txn, ins term.Install) error {
	const op = "install"

	// Installs hash with sequence 0: their identity is stable across the
	// process lifetime and across resets.
	cid, err := term.ConsumeID(ins.Channels, ins.Patterns, ins.Continuation, true, 0)
	if err != nil {
		return usageError(op, "continuation not hashable: %v", err)
	}

	// A copy of this install may already be in the store: the same install
	// directory is loaded on every process start. The stable consume id
	// makes registration idempotent.
	existing, err := txn.Continuations(ins.Channels)
	if err != nil {
		return err
	}
	for _, wc := range existing {
		if wc.ConsumeID == cid {
			return nil
		}
	}

	pools, err := e.buildPools(txn, ins.Channels, "", nil)
	if err != nil {
		return err
	}
	_, ok, err := e.attempt(pools, ins.Channels, ins.Patterns)
	if err != nil {
		return matcherError(op, err)
	}
	if ok {
		return usageError(op, "install would match existing data immediately")
	}

	wc := term.WaitingContinuation{
		Patterns:     ins.Patterns,
		Continuation: ins.Continuation,
		Persist:      true,
		ConsumeID:    cid,
	}
	if err := txn.PutContinuation(ins.Channels, wc); err != nil {
		return err
	}
	for _, ch := range distinct(ins.Channels) {
		if err := txn.AddJoin(ch, ins.Channels); err != nil {
			return err
		}
	}
	return nil
}

// Retrieve reads the GNAT stored at one exact ordered channel group under a
// historical root. Read-only: no lock, no mutation, and live matching is
// untouched. Returns nil when the root has no leaf for that group.
func (e *Engine) Retrieve(ctx context.Context, root string, channels []term.Channel) (*term.GNAT, error) {
	const op = "retrieve"
	if len(channels) == 0 {
		return nil, usageError(op, "empty channel group")
	}

	g, err := e.history.Leaf(ctx, root, channels)
	if errors.Is(err, history.ErrUnknownRoot) {
		return nil, checkpointError(op, root, err)
	}
	if err != nil {
		return nil, err
	}
	return g, nil
}

// Reset replaces the live state with the leaves of a committed root, then
// replays every registered install in registration order. After Reset the
// live content is exactly the root's leaves plus the replayed installs -
// no residue from before.
func (e *Engine) Reset(ctx context.Context, root string) error {
	const op = "reset"
	token := e.tokens.Next()

	e.global.Lock()
	defer e.global.Unlock()

	ok, err := e.history.ValidateRoot(ctx, root)
	if err != nil {
		return err
	}
	if !ok {
		return checkpointError(op, root, history.ErrUnknownRoot)
	}

	leaves, err := e.history.Leaves(ctx, root)
	if err != nil {
		return err
	}

	err = e.withRetry(ctx, op, func() error {
		return e.store.Update(ctx, func(txn *store.Txn) error {
			if err := txn.Clear(); err != nil {
				return err
			}
			if err := txn.BulkInsert(leaves); err != nil {
				return err
			}
			return e.replayInstalls(txn)
		})
	})
	if err != nil {
		return err
	}

	e.log.Info("reset complete",
		slog.String("token", token),
		slog.String("root", root),
		slog.Int("leaves", len(leaves)),
		slog.Int("installs", e.installs.Len()))
	return nil
}

// Clear resets to the canonical empty root: all live rows dropped, installs
// replayed.
func (e *Engine) Clear(ctx context.Context) error {
	return e.Reset(ctx, e.history.EmptyRoot())
}

// Snapshot returns the live state as sorted GNAT leaves without committing
// anything. Read-only; concurrent matching keeps running.
func (e *Engine) Snapshot(ctx context.Context) ([]term.GNAT, error) {
	e.global.RLock()
	defer e.global.RUnlock()

	var gnats []term.GNAT
	err := e.store.View(ctx, func(txn *store.Txn) error {
		var err error
		gnats, err = txn.Snapshot()
		return err
	})
	if err != nil {
		return nil, err
	}
	return gnats, nil
}

// Checkpoint commits the current live state to the history store and
// returns its root. The space is quiesced for the duration so the leaf set
// is a consistent cut.
func (e *Engine) Checkpoint(ctx context.Context) (string, error) {
	const op = "checkpoint"
	token := e.tokens.Next()

	e.global.Lock()
	defer e.global.Unlock()

	var gnats []term.GNAT
	err := e.withRetry(ctx, op, func() error {
		return e.store.View(ctx, func(txn *store.Txn) error {
			var err error
			gnats, err = txn.Snapshot()
			return err
		})
	})
	if err != nil {
		return "", err
	}

	root, err := e.history.Commit(ctx, gnats)
	if err != nil {
		return "", err
	}

	e.log.Info("checkpoint committed",
		slog.String("token", token),
		slog.String("root", root),
		slog.Int("leaves", len(gnats)))
	return root, nil
}

// replayInstalls re-registers every install against a freshly restored
// store, in registration order. A restored leaf may already carry an
// install's continuation (it was persistent state when the checkpoint was
// taken); installTxn's stable consume id detects that and skips it.
func (e *Engine) replayInstalls(txn *store.Txn) error {
	for _, ins := range e.installs.All() {
		if err := e.installTxn(txn, ins); err != nil {
			return err
		}
	}
	return nil
}

// withRetry re-issues fn while it fails with a retriable store conflict,
// up to the engine's retry budget. Errors from the critical section
// propagate only after locks are released (the lock helpers guarantee
// that).
func (e *Engine) withRetry(ctx context.Context, op string, fn func() error) error {
	var last error
	for attempt := 0; attempt <= e.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Duration(attempt) * 5 * time.Millisecond):
			}
		}
		err := fn()
		if err == nil {
			return nil
		}
		if !errors.Is(err, store.ErrConflict) {
			return err
		}
		last = err
		e.log.Debug("retrying after conflict",
			slog.String("op", op),
			slog.Int("attempt", attempt+1))
	}
	return conflictError(op, last)
}

// validateGroup rejects malformed channel/pattern groups before any lock
// is acquired.
func validateGroup(op string, channels []term.Channel, patterns []term.Pattern) error {
	if len(channels) == 0 {
		return usageError(op, "empty channel group")
	}
	if len(channels) != len(patterns) {
		return usageError(op, "%d channels but %d patterns", len(channels), len(patterns))
	}
	return nil
}

// channelHashes maps channels to their lock keys.
func channelHashes(channels []term.Channel) []string {
	hashes := make([]string, len(channels))
	for i, c := range channels {
		hashes[i] = term.ChannelHash(c)
	}
	return hashes
}

// distinct returns the unique channels of a group, preserving first-seen
// order.
func distinct(channels []term.Channel) []term.Channel {
	seen := make(map[term.Channel]struct{}, len(channels))
	out := make([]term.Channel, 0, len(channels))
	for _, c := range channels {
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	return out
}
