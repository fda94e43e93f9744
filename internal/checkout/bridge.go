package checkout

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// TypeIFrame is the only presentation mode the bridge requests.
const TypeIFrame = "IFRAME"

var ErrWidgetUnavailable = errors.New("checkout widget not available")

// TransactOptions is what a widget needs to show the hosted checkout.
type TransactOptions struct {
	TokenURL string
	Type     string
	Callback func(Signal)
}

// Widget presents the hosted checkout and calls opts.Callback once the user
// leaves it. Transact may return before the callback fires.
type Widget interface {
	Transact(ctx context.Context, opts TransactOptions) error
}

// Bridge wraps a Widget. It never queries payment status.
type Bridge struct {
	widget Widget
	logger *slog.Logger
}

func NewBridge(widget Widget, logger *slog.Logger) *Bridge {
	return &Bridge{widget: widget, logger: logger}
}

// Available reports whether a widget is loaded.
func (b *Bridge) Available() bool {
	return b != nil && b.widget != nil
}

// Open launches the widget for tokenURL and waits for its first callback.
// Later callbacks for the same transaction are dropped.
func (b *Bridge) Open(ctx context.Context, tokenURL string) (Result, error) {
	if !b.Available() {
		return 0, ErrWidgetUnavailable
	}

	// Widgets tie the transaction to ctx; end it when Open returns.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	signals := make(chan Signal, 1)
	var once sync.Once
	callback := func(s Signal) {
		delivered := false
		once.Do(func() {
			signals <- s
			delivered = true
		})
		if !delivered {
			b.logger.Debug("ignoring repeated checkout callback", "signal", s)
		}
	}

	b.logger.Info("opening checkout", "type", TypeIFrame)
	if err := b.widget.Transact(ctx, TransactOptions{
		TokenURL: tokenURL,
		Type:     TypeIFrame,
		Callback: callback,
	}); err != nil {
		return 0, fmt.Errorf("open checkout: %w", err)
	}

	select {
	case <-ctx.Done():
		return 0, ctx.Err()
	case s := <-signals:
		result, err := resultOf(s)
		if err != nil {
			b.logger.Warn("checkout closed with unknown signal", "signal", s)
			return 0, err
		}
		b.logger.Info("checkout closed", "result", result)
		return result, nil
	}
}
