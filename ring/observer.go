package ring

// RingObserver receives after-the-fact notifications of sequencer
// activity: it is purely additive, never consulted on the critical
// wait path, and never blocks a claim or publish. It exists so a
// caller (typically a metrics package) can watch ring occupancy,
// claim rate, and publish rate without the ring package itself
// importing a metrics library.
type RingObserver interface {
	// OnClaim fires after Next/TryNext successfully claims [lo, hi].
	OnClaim(lo, hi int64)
	// OnPublish fires after Publish makes [lo, hi] visible.
	OnPublish(lo, hi int64)
}

// ObservedSequencer decorates a Sequencer, invoking a RingObserver
// after each completed claim and publish. All real work still happens
// in the wrapped Sequencer; ObservedSequencer only ever reports
// transitions that have already happened.
type ObservedSequencer struct {
	Sequencer
	Observer RingObserver
}

// ObserveSequencer wraps sequencer so every claim/publish also
// notifies observer.
func ObserveSequencer(sequencer Sequencer, observer RingObserver) *ObservedSequencer {
	return &ObservedSequencer{Sequencer: sequencer, Observer: observer}
}

func (o *ObservedSequencer) Next(n int64) int64 {
	hi := o.Sequencer.Next(n)
	o.Observer.OnClaim(hi-n+1, hi)
	return hi
}

func (o *ObservedSequencer) TryNext(n int64) (int64, error) {
	hi, err := o.Sequencer.TryNext(n)
	if err == nil {
		o.Observer.OnClaim(hi-n+1, hi)
	}
	return hi, err
}

func (o *ObservedSequencer) Publish(lo, hi int64) {
	o.Sequencer.Publish(lo, hi)
	o.Observer.OnPublish(lo, hi)
}
