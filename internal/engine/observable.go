package engine

import "github.com/roach88/marbles/internal/ir"

// Observer receives the notifications of one subscription.
type Observer interface {
	Next(v ir.Value)
	Error(err any)
	Complete()
}

// Subscription cancels delivery to an Observer.
type Subscription interface {
	Unsubscribe()
}

// Observable is anything a recorder can subscribe to: a source created by the
// scheduler, or a stream built on top of sources by the code under test.
type Observable interface {
	Subscribe(o Observer) Subscription
}

// Deliver dispatches n to the matching Observer method.
func Deliver(o Observer, n ir.Notification) {
	switch n.Kind {
	case ir.KindNext:
		o.Next(n.Value)
	case ir.KindError:
		o.Error(n.Err)
	case ir.KindComplete:
		o.Complete()
	}
}

// ObserverFuncs adapts plain functions into an Observer. Nil fields ignore
// the notification.
type ObserverFuncs struct {
	OnNext     func(v ir.Value)
	OnError    func(err any)
	OnComplete func()
}

// Next implements Observer.
func (f ObserverFuncs) Next(v ir.Value) {
	if f.OnNext != nil {
		f.OnNext(v)
	}
}

// Error implements Observer.
func (f ObserverFuncs) Error(err any) {
	if f.OnError != nil {
		f.OnError(err)
	}
}

// Complete implements Observer.
func (f ObserverFuncs) Complete() {
	if f.OnComplete != nil {
		f.OnComplete()
	}
}

// ObservableFunc adapts a subscribe function into an Observable.
type ObservableFunc func(o Observer) Subscription

// Subscribe implements Observable.
func (f ObservableFunc) Subscribe(o Observer) Subscription {
	return f(o)
}

// SubscriptionFunc adapts a teardown function into a Subscription.
type SubscriptionFunc func()

// Unsubscribe implements Subscription.
func (f SubscriptionFunc) Unsubscribe() {
	if f != nil {
		f()
	}
}
