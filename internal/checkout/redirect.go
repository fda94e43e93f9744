package checkout

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

var ErrCheckoutBusy = errors.New("a checkout is already open")

// Presenter shows the hosted checkout URL to the user, for example by
// printing it or opening a browser.
type Presenter func(ctx context.Context, tokenURL string) error

type transaction struct {
	id       uint64
	callback func(Signal)
}

// RedirectWidget is a Widget for clients without an embedded page. The
// hosted checkout redirects the user to the callback endpoint, whose handler
// calls Deliver. One transaction is open at a time.
type RedirectWidget struct {
	present Presenter
	logger  *slog.Logger

	mu     sync.Mutex
	seq    uint64
	active *transaction
}

func NewRedirectWidget(present Presenter, logger *slog.Logger) *RedirectWidget {
	return &RedirectWidget{present: present, logger: logger}
}

func (w *RedirectWidget) Transact(ctx context.Context, opts TransactOptions) error {
	if opts.Callback == nil {
		return errors.New("transact: callback is required")
	}

	w.mu.Lock()
	if w.active != nil {
		w.mu.Unlock()
		return ErrCheckoutBusy
	}
	w.seq++
	tx := &transaction{id: w.seq, callback: opts.Callback}
	w.active = tx
	w.mu.Unlock()

	if err := w.present(ctx, opts.TokenURL); err != nil {
		w.release(tx.id)
		return fmt.Errorf("present checkout: %w", err)
	}

	go func() {
		<-ctx.Done()
		if w.release(tx.id) {
			w.logger.Debug("checkout transaction abandoned", "error", ctx.Err())
		}
	}()
	return nil
}

// Deliver passes s to the open transaction and closes it. It returns false
// when no transaction is open.
func (w *RedirectWidget) Deliver(s Signal) bool {
	w.mu.Lock()
	tx := w.active
	w.active = nil
	w.mu.Unlock()

	if tx == nil {
		return false
	}
	tx.callback(s)
	return true
}

// Pending reports whether a transaction is waiting for its callback.
func (w *RedirectWidget) Pending() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.active != nil
}

func (w *RedirectWidget) release(id uint64) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.active != nil && w.active.id == id {
		w.active = nil
		return true
	}
	return false
}
