package monitor

import (
	"context"
	"time"

	"go.uber.org/atomic"
)

// MutableTicker ticks on C like time.Ticker, but its interval can
// change while it runs and it can be paused. Ticks are dropped when
// nobody reads them.
type MutableTicker struct {
	C <-chan bool
	d *atomic.Int64
	e *atomic.Bool
	i chan bool
}

// NewMutableTicker starts a ticker that stops when ctx is done.
func NewMutableTicker(ctx context.Context, d time.Duration) *MutableTicker {
	c := make(chan bool, 1)
	mt := &MutableTicker{
		C: c,
		d: atomic.NewInt64(int64(d)),
		e: atomic.NewBool(true),
		i: make(chan bool, 1),
	}

	go func() {
		for {
			t := time.NewTimer(time.Duration(mt.d.Load()))
			select {
			case <-t.C:
			case <-mt.i:
				t.Stop()
				continue
			case <-ctx.Done():
				t.Stop()
				return
			}

			if mt.e.Load() {
				select {
				case c <- true:
				default:
				}
			}
		}
	}()

	return mt
}

func (mt *MutableTicker) Interval() time.Duration {
	return time.Duration(mt.d.Load())
}

func (mt *MutableTicker) SetInterval(d time.Duration) {
	mt.d.Store(int64(d))
	mt.interrupt()
}

func (mt *MutableTicker) Stop() {
	mt.e.Store(false)
	mt.interrupt()
}

func (mt *MutableTicker) Start() {
	mt.e.Store(true)
	mt.interrupt()
}

func (mt *MutableTicker) interrupt() {
	select {
	case mt.i <- true:
	default:
	}
}
