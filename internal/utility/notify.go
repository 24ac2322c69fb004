package utility

// Notifier delivers "structure changed" notifications to dependents.
// Delivery is synchronous, after the mutation, in subscription order.
type Notifier struct {
	next int
	subs []subscription
}

type subscription struct {
	id int
	fn func()
}

// Subscribe registers fn and returns a function that removes it.
func (n *Notifier) Subscribe(fn func()) (cancel func()) {
	n.next++
	id := n.next
	n.subs = append(n.subs, subscription{id: id, fn: fn})
	return func() {
		for i, s := range n.subs {
			if s.id == id {
				n.subs = append(n.subs[:i:i], n.subs[i+1:]...)
				return
			}
		}
	}
}

// Notify calls every subscriber.
func (n *Notifier) Notify() {
	subs := append([]subscription(nil), n.subs...)
	for _, s := range subs {
		s.fn()
	}
}

// Len returns the number of live subscriptions.
func (n *Notifier) Len() int {
	return len(n.subs)
}
