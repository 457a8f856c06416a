package docstore

import "sync"

// Update is one delivery on a subscription: the complete current value
// of the document, never a diff. Consumers replace local state
// wholesale on every delivery. Failures arrive in-band via Err.
type Update struct {
	Doc Document
	Err error
}

type Subscription struct {
	ch         chan Update
	cancelOnce sync.Once
	cancel     func()
}

func newSubscription(cancel func()) *Subscription {
	return &Subscription{
		// Buffer of one with latest-value-wins: only the current state
		// is ever meaningful, so a slow consumer skips intermediate
		// values instead of backing up the publisher.
		ch:     make(chan Update, 1),
		cancel: cancel,
	}
}

func (s *Subscription) Updates() <-chan Update { return s.ch }

func (s *Subscription) Cancel() {
	s.cancelOnce.Do(s.cancel)
}

func (s *Subscription) publish(u Update) {
	for {
		select {
		case s.ch <- u:
			return
		default:
			select {
			case <-s.ch:
			default:
			}
		}
	}
}
