package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/jwebster45206/npc-engine/internal/lock"
	"github.com/jwebster45206/npc-engine/internal/services/events"
	"github.com/jwebster45206/npc-engine/pkg/belief"
	"github.com/jwebster45206/npc-engine/pkg/cognition"
	"github.com/jwebster45206/npc-engine/pkg/memory"
	"github.com/jwebster45206/npc-engine/pkg/prompts"
	"github.com/jwebster45206/npc-engine/pkg/relationship"
	"github.com/jwebster45206/npc-engine/pkg/storage"
)

const (
	DefaultCompressionThreshold = 5
	DefaultPassTimeout          = 5 * time.Minute

	// maxExchangesPerPass stops a pass that keeps finding work, which only
	// happens if status transitions are not being stored.
	maxExchangesPerPass = 1000
)

// ErrStalled is returned when an exchange is still pending after it was
// marked processed.
var ErrStalled = errors.New("consolidation made no progress")

// Options tunes a Consolidator. Zero values take the defaults.
type Options struct {
	// SnapshotMin is the belief confidence needed to reach the summarizer.
	SnapshotMin float64
	// CompressionThreshold is the open-scene episode count at which older
	// episodes are folded into bullets.
	CompressionThreshold int
	// Locker, when set, must also be acquired before a pass runs.
	Locker      Locker
	PassTimeout time.Duration
}

// Consolidator turns buffered exchanges into the scene-segmented memory
// document. At most one pass runs per (npc, user) pair at a time; passes
// for different pairs run concurrently.
type Consolidator struct {
	storage    storage.Storage
	summarizer cognition.Summarizer
	publisher  events.Publisher
	logger     *slog.Logger
	opts       Options

	locks *lock.KeyedMutex
	// mu guards rerun and orders it with taking and releasing locks.
	mu    sync.Mutex
	rerun map[string]bool
	wg    sync.WaitGroup
	now   func() time.Time
}

func NewConsolidator(store storage.Storage, summarizer cognition.Summarizer, publisher events.Publisher, logger *slog.Logger, opts Options) *Consolidator {
	if opts.SnapshotMin <= 0 {
		opts.SnapshotMin = belief.DefaultSnapshotMin
	}
	if opts.CompressionThreshold <= 0 {
		opts.CompressionThreshold = DefaultCompressionThreshold
	}
	if opts.PassTimeout <= 0 {
		opts.PassTimeout = DefaultPassTimeout
	}
	if publisher == nil {
		publisher = events.Nop{}
	}
	return &Consolidator{
		storage:    store,
		summarizer: summarizer,
		publisher:  publisher,
		logger:     logger,
		opts:       opts,
		locks:      lock.NewKeyedMutex(),
		rerun:      make(map[string]bool),
		now:        time.Now,
	}
}

// pairKey is unambiguous for any ids: the npc id is length-prefixed.
func pairKey(npcID, userID string) string {
	return strconv.Itoa(len(npcID)) + ":" + npcID + ":" + userID
}

// Trigger starts a background pass for the pair and reports whether it did.
// When a pass for the pair is already running it returns false and that pass
// drains the buffer once more before it releases the pair, so turns written
// while it was finishing are not left behind.
func (c *Consolidator) Trigger(npcID, userID string) bool {
	key := pairKey(npcID, userID)
	if !c.acquire(key) {
		c.logger.Debug("Consolidation already running", "npc_id", npcID, "user_id", userID)
		return false
	}

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		for {
			ctx, cancel := context.WithTimeout(context.Background(), c.opts.PassTimeout)
			if _, err := c.pass(ctx, npcID, userID); err != nil {
				c.logger.Error("Consolidation pass failed", "npc_id", npcID, "user_id", userID, "error", err)
			}
			cancel()
			if c.release(key) {
				return
			}
		}
	}()
	return true
}

// Run performs a pass in the caller's goroutine. ran is false when another
// pass for the pair held it; that pass then runs again before it finishes.
func (c *Consolidator) Run(ctx context.Context, npcID, userID string) (ran bool, err error) {
	key := pairKey(npcID, userID)
	if !c.acquire(key) {
		return false, nil
	}
	for {
		ran, err = c.pass(ctx, npcID, userID)
		if ctx.Err() != nil {
			c.forceRelease(key)
			return ran, err
		}
		if c.release(key) {
			return ran, err
		}
	}
}

// Running reports whether a pass holds the pair in this process.
func (c *Consolidator) Running(npcID, userID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	key := pairKey(npcID, userID)
	if !c.locks.TryLock(key) {
		return true
	}
	c.locks.Unlock(key)
	return false
}

// acquire takes key, or records that the holder must drain once more.
func (c *Consolidator) acquire(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.locks.TryLock(key) {
		return true
	}
	c.rerun[key] = true
	return false
}

// release gives key up unless a rerun was requested while the pass ran, in
// which case the request is consumed, key stays held and release returns
// false.
func (c *Consolidator) release(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.rerun[key] {
		delete(c.rerun, key)
		return false
	}
	c.locks.Unlock(key)
	return true
}

func (c *Consolidator) forceRelease(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.rerun, key)
	c.locks.Unlock(key)
}

// Wait blocks until every background pass has finished.
func (c *Consolidator) Wait() {
	c.wg.Wait()
}

// pass drains the pair's buffer. The caller holds the in-process lock.
func (c *Consolidator) pass(ctx context.Context, npcID, userID string) (bool, error) {
	if c.opts.Locker != nil {
		release, ok, err := c.opts.Locker.TryAcquire(ctx, pairKey(npcID, userID))
		if err != nil {
			return false, err
		}
		if !ok {
			c.logger.Debug("Consolidation held by another process", "npc_id", npcID, "user_id", userID)
			return false, nil
		}
		defer release()
	}

	log := c.logger.With("npc_id", npcID, "user_id", userID)
	start := time.Now()
	done := 0
	var last []int64

	for done < maxExchangesPerPass {
		pending, err := c.storage.PendingTurns(ctx, npcID, userID)
		if err != nil {
			return true, fmt.Errorf("failed to load pending turns: %w", err)
		}
		ex, superseded := memory.NextExchange(pending)
		if ex == nil {
			break
		}
		if slices.Equal(ex.RowIDs(), last) {
			return true, fmt.Errorf("%w: turns %v", ErrStalled, last)
		}
		last = ex.RowIDs()

		if len(superseded) > 0 {
			ids := make([]int64, 0, len(superseded))
			for _, t := range superseded {
				ids = append(ids, t.ID)
			}
			if err := c.storage.ArchiveTurns(ctx, npcID, userID, ids); err != nil {
				return true, fmt.Errorf("failed to archive superseded turns: %w", err)
			}
			log.Info("Archived unpaired turns", "turn_ids", ids)
		}

		if err := c.consolidate(ctx, log, npcID, userID, *ex); err != nil {
			return true, err
		}
		done++
	}

	if done > 0 {
		log.Info("Consolidation pass finished", "exchanges", done, "duration", time.Since(start))
	}
	return true, nil
}

// consolidate folds one exchange into the memory document and persists it.
// The exchange rows are marked processed only after the save succeeds.
func (c *Consolidator) consolidate(ctx context.Context, log *slog.Logger, npcID, userID string, ex memory.Exchange) error {
	stored, err := c.storage.LoadMemory(ctx, npcID, userID)
	if err != nil {
		return fmt.Errorf("failed to load memory: %w", err)
	}
	doc, err := memory.Decode(stored)
	if err != nil {
		// Never overwrite a document we cannot read.
		return fmt.Errorf("stored memory document is invalid: %w", err)
	}
	past, open := doc.Split()

	req, err := c.summaryRequest(ctx, npcID, userID, open, ex)
	if err != nil {
		return err
	}

	text, err := c.summarizer.Summarize(ctx, req)
	if err != nil {
		return fmt.Errorf("summarization failed: %w", err)
	}

	updated, fallback := c.applySummary(log, doc, past, open, ex, text)
	if req.Compress {
		if s := lastOpen(&updated); s != nil && memory.Compress(s, memory.DefaultKeepRecent) {
			log.Debug("Compressed open scene", "scene", s.Tag, "bullets", len(s.Compressed))
		}
	}
	for i := range updated.Scenes {
		updated.Scenes[i].RecomputePeak()
	}

	if err := c.storage.SaveMemory(ctx, npcID, userID, memory.Encode(updated)); err != nil {
		return fmt.Errorf("failed to save memory: %w", err)
	}
	if err := c.storage.MarkProcessed(ctx, npcID, userID, ex.RowIDs()); err != nil {
		return fmt.Errorf("failed to mark turns processed: %w", err)
	}

	log.Info("Exchange consolidated",
		"turn_ids", ex.RowIDs(),
		"scenes", len(updated.Scenes),
		"episodes", updated.EpisodeCount(),
		"fallback", fallback)

	if err := c.publisher.Publish(ctx, events.Event{
		Type:   events.EventTypeMemoryConsolidated,
		NPCID:  npcID,
		UserID: userID,
		Data: map[string]any{
			"turn_ids": ex.RowIDs(),
			"scenes":   len(updated.Scenes),
			"episodes": updated.EpisodeCount(),
			"fallback": fallback,
		},
	}); err != nil {
		log.Warn("Failed to publish consolidation event", "error", err)
	}
	return nil
}

func (c *Consolidator) summaryRequest(ctx context.Context, npcID, userID string, open *memory.Scene, ex memory.Exchange) (cognition.SummaryRequest, error) {
	rel, err := c.storage.LoadRelationship(ctx, npcID, userID)
	if errors.Is(err, storage.ErrNotFound) {
		rel = relationship.New(npcID, userID)
	} else if err != nil {
		return cognition.SummaryRequest{}, fmt.Errorf("failed to load relationship: %w", err)
	}
	self, err := c.storage.LoadSelfBeliefs(ctx, npcID)
	if err != nil {
		return cognition.SummaryRequest{}, fmt.Errorf("failed to load self beliefs: %w", err)
	}
	player, err := c.storage.LoadPlayerBeliefs(ctx, npcID, userID)
	if err != nil {
		return cognition.SummaryRequest{}, fmt.Errorf("failed to load player beliefs: %w", err)
	}

	req := cognition.SummaryRequest{
		NPCID:             npcID,
		UserID:            userID,
		RelationshipLabel: string(rel.Label()),
		Trust:             rel.Trust,
		SelfBeliefs:       self.Snapshot(c.opts.SnapshotMin),
		PlayerBeliefs:     player.Snapshot(c.opts.SnapshotMin),
		NextEpisode:       1,
		Exchange:          ex,
		Policy:            prompts.ScenePolicy,
		Now:               c.now(),
	}
	if open != nil {
		req.OpenScene = memory.EncodeScene(*open)
		req.NextEpisode = open.NextNumber()
		req.Compress = len(open.Episodes) >= c.opts.CompressionThreshold
	}
	return req, nil
}

// applySummary merges the summarizer's replacement for the open scene into
// the document. Output that does not parse, breaks the document rules or
// loses the new exchange is discarded and the exchange is logged verbatim.
func (c *Consolidator) applySummary(log *slog.Logger, doc memory.Document, past []memory.Scene, open *memory.Scene, ex memory.Exchange, text string) (memory.Document, bool) {
	fallback := func(reason error) (memory.Document, bool) {
		log.Warn("Discarding summary, logging exchange verbatim", "error", reason)
		doc.AppendVerbatim(ex, c.now())
		return doc, true
	}

	scenes, err := memory.ParseReplacement(text)
	if err != nil {
		return fallback(err)
	}
	if !mentions(scenes, ex.PlayerText()) || !mentions(scenes, ex.NPCText()) {
		return fallback(&memory.StructuralError{Reason: "replacement does not record the new exchange"})
	}
	if open != nil {
		if n := memory.RestoreProtected(*open, scenes); n > 0 {
			log.Info("Restored protected episodes dropped by summary", "count", n)
		}
	}
	memory.AnnotateExchange(scenes, ex)
	updated := memory.Assemble(past, scenes)
	if err := memory.Validate(updated); err != nil {
		return fallback(err)
	}
	return updated, false
}

// mentions reports whether said appears as an episode or inside a bullet.
func mentions(scenes []memory.Scene, said string) bool {
	said = strings.TrimSpace(said)
	if said == "" {
		return true
	}
	for _, s := range scenes {
		for _, ep := range s.Episodes {
			if strings.TrimSpace(ep.Said) == said {
				return true
			}
		}
		for _, b := range s.Compressed {
			if strings.Contains(b, said) || strings.Contains(b, strconv.Quote(said)) {
				return true
			}
		}
	}
	return false
}

func lastOpen(d *memory.Document) *memory.Scene {
	if n := len(d.Scenes); n > 0 && !d.Scenes[n-1].Closed {
		return &d.Scenes[n-1]
	}
	return nil
}
