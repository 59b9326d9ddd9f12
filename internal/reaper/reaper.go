// Package reaper removes messages whose lifetime has ended: temporary
// messages past their deadline and, for group chats with a retention window,
// messages older than the cutoff.
package reaper

import (
	"context"
	"log"
	"time"

	"github.com/CryptoCapi/Mexora-sub001/internal/policy"
	"github.com/CryptoCapi/Mexora-sub001/internal/repository"
)

const DefaultInterval = 30 * time.Second

type Reaper struct {
	msgs     *repository.MessageRepository
	chats    *repository.ChatRepository
	interval time.Duration

	now func() time.Time
}

func New(msgs *repository.MessageRepository, chats *repository.ChatRepository, interval time.Duration) *Reaper {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Reaper{
		msgs:     msgs,
		chats:    chats,
		interval: interval,
		now:      time.Now,
	}
}

// Run sweeps on a periodic tick until ctx is cancelled.
func (r *Reaper) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n, err := r.SweepOnce(ctx); err != nil {
				log.Printf("reaper: sweep failed: %v", err)
			} else if n > 0 {
				log.Printf("reaper: removed %d messages", n)
			}
		}
	}
}

// SweepOnce runs one expiry plus retention pass and returns how many
// messages were removed. One failing message is logged and skipped, never
// aborting the sweep; deletes are idempotent, so racing reapers are safe.
func (r *Reaper) SweepOnce(ctx context.Context) (int, error) {
	removed, err := r.sweepExpired(ctx)
	if err != nil {
		return removed, err
	}
	n, err := r.sweepRetention(ctx)
	removed += n
	return removed, err
}

func (r *Reaper) sweepExpired(ctx context.Context) (int, error) {
	expired, err := r.msgs.ListExpired(ctx, r.now())
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, m := range expired {
		if err := r.msgs.Delete(ctx, m.ID); err != nil {
			log.Printf("reaper: delete expired %s: %v", m.ID, err)
			continue
		}
		removed++
	}
	return removed, nil
}

func (r *Reaper) sweepRetention(ctx context.Context) (int, error) {
	chats, err := r.chats.ListRetentionChats(ctx)
	if err != nil {
		return 0, err
	}
	removed := 0
	for i := range chats {
		chat := chats[i]
		cutoff, ok := policy.RetentionCutoff(&chat, r.now())
		if !ok {
			continue
		}
		stale, err := r.msgs.ListOlderThan(ctx, chat.ID, cutoff)
		if err != nil {
			log.Printf("reaper: list retention of %s: %v", chat.ID, err)
			continue
		}
		for _, m := range stale {
			if err := r.msgs.Delete(ctx, m.ID); err != nil {
				log.Printf("reaper: retention delete %s: %v", m.ID, err)
				continue
			}
			removed++
		}
	}
	return removed, nil
}
