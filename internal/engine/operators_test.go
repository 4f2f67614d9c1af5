package engine

import (
	"github.com/roach88/marbles/internal/ir"
)

// Minimal operators standing in for code under test. They only need to be
// correct for the timelines used in these tests.

func mapValues(src Observable, f func(ir.Value) ir.Value) Observable {
	return ObservableFunc(func(o Observer) Subscription {
		return src.Subscribe(ObserverFuncs{
			OnNext:     func(v ir.Value) { o.Next(f(v)) },
			OnError:    o.Error,
			OnComplete: o.Complete,
		})
	})
}

func delayBy(s *Scheduler, src Observable, delay ir.Frame) Observable {
	return ObservableFunc(func(o Observer) Subscription {
		var queued []*Action
		later := func(fn func()) {
			a, err := s.Schedule(delay, fn)
			if err == nil {
				queued = append(queued, a)
			}
		}

		inner := src.Subscribe(ObserverFuncs{
			OnNext:     func(v ir.Value) { later(func() { o.Next(v) }) },
			OnError:    func(err any) { later(func() { o.Error(err) }) },
			OnComplete: func() { later(o.Complete) },
		})

		return SubscriptionFunc(func() {
			inner.Unsubscribe()
			for _, a := range queued {
				a.Cancel()
			}
		})
	})
}

func merge(sources ...Observable) Observable {
	return ObservableFunc(func(o Observer) Subscription {
		active := len(sources)
		subs := make([]Subscription, 0, len(sources))
		for _, src := range sources {
			subs = append(subs, src.Subscribe(ObserverFuncs{
				OnNext:  o.Next,
				OnError: o.Error,
				OnComplete: func() {
					active--
					if active == 0 {
						o.Complete()
					}
				},
			}))
		}
		return SubscriptionFunc(func() {
			for _, sub := range subs {
				sub.Unsubscribe()
			}
		})
	})
}
