package relay

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/nbd-wtf/go-nostr"
)

// Pool is a Publisher/Subscriber over a fixed set of relay URLs.
// Connections are established lazily and reused; a relay that cannot be
// reached is skipped as long as at least one other serves the call.
type Pool struct {
	urls []string

	mu     sync.Mutex
	relays map[string]*nostr.Relay
}

// NewPool creates a pool over the given relay URLs.
func NewPool(urls ...string) *Pool {
	return &Pool{
		urls:   urls,
		relays: make(map[string]*nostr.Relay),
	}
}

// Publish fans the event out to every relay. It succeeds if at least one
// relay accepts the event and returns the joined errors otherwise.
func (p *Pool) Publish(ctx context.Context, evt *nostr.Event) error {
	if len(p.urls) == 0 {
		return errors.New("pool has no relays")
	}

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		accepted int
		errs     []error
	)
	for _, url := range p.urls {
		wg.Add(1)
		go func(url string) {
			defer wg.Done()
			r, err := p.relay(ctx, url)
			if err == nil {
				err = r.Publish(ctx, *evt)
			}
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", url, err))
				return
			}
			accepted++
		}(url)
	}
	wg.Wait()

	if accepted == 0 {
		return fmt.Errorf("no relay accepted event %s: %w", evt.ID, errors.Join(errs...))
	}
	return nil
}

// Subscribe opens the filter on every reachable relay and merges the
// streams, de-duplicating by event id and dropping events whose
// signature does not verify. The subscription ends when ctx is cancelled
// or Close is called.
func (p *Pool) Subscribe(ctx context.Context, filter nostr.Filter) (Subscription, error) {
	ctx, cancel := context.WithCancel(ctx)

	var subs []*nostr.Subscription
	for _, url := range p.urls {
		r, err := p.relay(ctx, url)
		if err != nil {
			log.Printf("relay %s unreachable, skipping: %v", url, err)
			continue
		}
		sub, err := r.Subscribe(ctx, nostr.Filters{filter})
		if err != nil {
			log.Printf("subscribe on %s failed, skipping: %v", url, err)
			continue
		}
		subs = append(subs, sub)
	}
	if len(subs) == 0 {
		cancel()
		return nil, errors.New("no relay accepted the subscription")
	}

	out := make(chan *nostr.Event)
	merged := &poolSubscription{events: out, cancel: cancel}

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		seen = make(map[string]struct{})
	)
	for _, sub := range subs {
		wg.Add(1)
		go func(sub *nostr.Subscription) {
			defer wg.Done()
			defer sub.Unsub()
			for {
				select {
				case <-ctx.Done():
					return
				case evt, ok := <-sub.Events:
					if !ok {
						return
					}
					if evt == nil {
						continue
					}
					mu.Lock()
					_, dup := seen[evt.ID]
					if !dup {
						seen[evt.ID] = struct{}{}
					}
					mu.Unlock()
					if dup {
						continue
					}
					if valid, err := evt.CheckSignature(); err != nil || !valid {
						log.Printf("dropping event %s with invalid signature", evt.ID)
						continue
					}
					select {
					case <-ctx.Done():
						return
					case out <- evt:
					}
				}
			}
		}(sub)
	}
	go func() {
		wg.Wait()
		close(out)
	}()

	return merged, nil
}

// Close terminates every cached relay connection.
func (p *Pool) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for url, r := range p.relays {
		r.Close()
		delete(p.relays, url)
	}
}

// relay returns the cached connection for url, dialing if needed.
func (p *Pool) relay(ctx context.Context, url string) (*nostr.Relay, error) {
	p.mu.Lock()
	if r, ok := p.relays[url]; ok {
		p.mu.Unlock()
		return r, nil
	}
	p.mu.Unlock()

	r, err := nostr.RelayConnect(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", url, err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if existing, ok := p.relays[url]; ok {
		r.Close()
		return existing, nil
	}
	p.relays[url] = r
	return r, nil
}
