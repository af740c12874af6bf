package speech

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/deathnote2501/fia-v3.0-sub001/runtime/events"
	"github.com/deathnote2501/fia-v3.0-sub001/runtime/logger"
	"github.com/deathnote2501/fia-v3.0-sub001/runtime/textclean"
)

// SweepReport summarizes one backlog sweep.
type SweepReport struct {
	ID        string
	Processed int
	Failed    int
	Skipped   int
	Duration  time.Duration
	// AutoPlayed is the message played once the sweep finished, if any.
	AutoPlayed string
	// Err is set when the sweep was interrupted by its context.
	Err error
}

// Sweep generates audio for every assistant message that has none yet, in
// document order and one at a time. Messages with blank text are skipped. A
// failure is logged and the sweep moves on. Every BatchSize successful
// generations the sweep pauses for BatchPause.
//
// When at least one message was generated and TTS is still enabled, the most
// recent assistant message is played at the end.
//
// Only one sweep runs at a time; a second caller waits for the first.
func (c *Coordinator) Sweep(ctx context.Context) SweepReport {
	c.sweepMu.Lock()
	defer c.sweepMu.Unlock()

	report := SweepReport{ID: uuid.NewString()}
	ctx = logger.WithSweepID(ctx, report.ID)
	start := time.Now()

	// Tear-down of the view interrupts the sweep as well.
	ctx, stop := context.WithCancel(ctx)
	defer stop()
	detach := context.AfterFunc(c.life, stop)
	defer detach()

	candidates := c.backlog()
	logger.InfoContext(ctx, "Backlog sweep started", "candidates", len(candidates))

	cfg := c.config()
	sinceBreak := 0
	for i, msg := range candidates {
		if err := ctx.Err(); err != nil {
			report.Err = err
			break
		}
		if textclean.IsEmpty(msg.Text) {
			report.Skipped++
			continue
		}
		// Generated meanwhile by an auto-play or a manual request.
		if c.store.Has(msg.ID) {
			report.Skipped++
			continue
		}

		_, err := c.recordFor(logger.WithMessageID(ctx, msg.ID), msg.ID, msg.Text)
		switch {
		case err == nil:
			report.Processed++
			sinceBreak++
		case errors.Is(err, errMessageRemoved), errors.Is(err, ErrEmptyInput):
			report.Skipped++
			continue
		case ctx.Err() != nil:
			report.Err = ctx.Err()
		default:
			report.Failed++
			logger.WarnContext(ctx, "Backlog generation failed, continuing",
				"message_id", msg.ID, "error", err)
			continue
		}
		if report.Err != nil {
			break
		}

		if sinceBreak >= cfg.BatchSize && i < len(candidates)-1 {
			sinceBreak = 0
			if err := sleepCtx(ctx, cfg.BatchPause); err != nil {
				report.Err = err
				break
			}
		}
	}

	if report.Err == nil && report.Processed > 0 && c.mode.Enabled() {
		report.AutoPlayed = c.autoPlayLatest(ctx)
	}

	report.Duration = time.Since(start)
	logger.InfoContext(ctx, "Backlog sweep finished",
		"processed", report.Processed,
		"failed", report.Failed,
		"skipped", report.Skipped,
		"duration", report.Duration,
		"auto_played", report.AutoPlayed)
	c.emitter.BacklogCompleted(events.BacklogCompletedData{
		Processed:  report.Processed,
		Failed:     report.Failed,
		Skipped:    report.Skipped,
		Duration:   report.Duration,
		AutoPlayed: report.AutoPlayed,
	})
	return report
}

// backlog returns the assistant messages without a record.
func (c *Coordinator) backlog() []Message {
	all := c.conv.Assistant()
	out := all[:0]
	for _, msg := range all {
		if !c.store.Has(msg.ID) {
			out = append(out, msg)
		}
	}
	return out
}

func (c *Coordinator) autoPlayLatest(ctx context.Context) string {
	last, ok := c.conv.LastAssistant()
	if !ok {
		return ""
	}
	rec, ok := c.store.Get(last.ID)
	if !ok {
		return ""
	}
	if err := c.playRecord(logger.WithMessageID(ctx, last.ID), rec); err != nil {
		logger.WarnContext(ctx, "Auto-play after sweep failed", "message_id", last.ID, "error", err)
		return ""
	}
	return last.ID
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
