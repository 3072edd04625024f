package game

import (
	"context"
	"time"

	"omcip.game/internal/protocol"
)

// clickBatch buffers taps between debounce flushes.
type clickBatch struct {
	Count      int
	Timestamps []int64 // unix ms, tap order
}

// batchDropEvent is the telemetry record for a batch abandoned after
// retries ran out.
type batchDropEvent struct {
	Event    string `json:"event"`
	Count    int    `json:"count"`
	Attempts int    `json:"attempts"`
	Error    string `json:"error"`
	At       string `json:"at"`
}

// appendToBatch records an accepted tap and (re)arms the debounce
// timer. The timer restarts on every tap, so at most one pending flush
// exists. Caller holds the lock.
func (e *Engine) appendToBatch(now time.Time) {
	e.batch.Count++
	e.batch.Timestamps = append(e.batch.Timestamps, now.UnixMilli())

	d := e.tune.BatchDebounce()
	if e.flushTimer == nil {
		e.flushTimer = time.AfterFunc(d, e.flushDebounced)
		return
	}
	e.flushTimer.Reset(d)
}

func (e *Engine) takeBatchLocked() protocol.ClickBatchMsg {
	msg := protocol.ClickBatchMsg{
		Count:         e.batch.Count,
		Timestamps:    e.batch.Timestamps,
		CoinsPerClick: e.state.BaseCoinsPerClick,
	}
	e.batch = clickBatch{}
	return msg
}

// flushDebounced fires when the debounce window closes. Retry backoff
// is sequential per batch: while a flush is in flight, newly batched
// taps wait for it to finish instead of starting a second delivery.
func (e *Engine) flushDebounced() {
	e.mu.Lock()
	if e.closed || e.batch.Count == 0 {
		e.mu.Unlock()
		return
	}
	if e.flushInFlight {
		e.flushDeferred = true
		e.mu.Unlock()
		return
	}
	e.flushInFlight = true
	msg := e.takeBatchLocked()
	e.mu.Unlock()

	e.deliver(msg)

	e.mu.Lock()
	e.flushInFlight = false
	again := e.flushDeferred && e.batch.Count > 0 && !e.closed
	e.flushDeferred = false
	if again {
		// Prior delivery outlived the debounce window; flush the
		// accumulated batch now.
		if e.flushTimer == nil {
			e.flushTimer = time.AfterFunc(0, e.flushDebounced)
		} else {
			e.flushTimer.Reset(0)
		}
	}
	e.mu.Unlock()
}

// deliver sends one batch: push channel first, then the REST fallback
// with bounded exponential backoff. Exhausted retries drop the batch
// with a telemetry record; taps are never fatal to the session.
func (e *Engine) deliver(msg protocol.ClickBatchMsg) {
	if e.push != nil && e.push.Send(protocol.TypeClick, msg) {
		return
	}
	if e.api == nil {
		e.log.Printf("click batch dropped: no delivery path (count=%d)", msg.Count)
		return
	}

	var lastErr error
	for attempt := 1; attempt <= e.tune.RetryAttempts; attempt++ {
		lastErr = e.api.SendClick(context.Background(), msg)
		if lastErr == nil {
			return
		}
		if attempt < e.tune.RetryAttempts {
			e.log.Printf("click sync failed (attempt %d/%d), retrying in %s: %v",
				attempt, e.tune.RetryAttempts, e.tune.RetryDelay(attempt), lastErr)
			time.Sleep(e.tune.RetryDelay(attempt))
		}
	}

	e.log.Printf("click batch dropped after %d attempts: %v", e.tune.RetryAttempts, lastErr)
	e.telemetryEvent(batchDropEvent{
		Event:    "click_batch_dropped",
		Count:    msg.Count,
		Attempts: e.tune.RetryAttempts,
		Error:    lastErr.Error(),
		At:       e.now().UTC().Format(time.RFC3339),
	})
}

// deliverFinal is the teardown path: one synchronous best-effort send,
// no retries.
func (e *Engine) deliverFinal(msg protocol.ClickBatchMsg) {
	if e.push != nil && e.push.Send(protocol.TypeClick, msg) {
		return
	}
	if e.api == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := e.api.SendClick(ctx, msg); err != nil {
		e.log.Printf("final click flush failed: %v", err)
	}
}
