package queue

import (
	"context"
	"fmt"
	"sync"

	"github.com/erain9/orderlab/pkg/messaging"
	"github.com/rs/zerolog/log"
)

// SenderPool hands out a bounded set of report senders. It implements
// messaging.ReportSender itself so callers can treat it as one sender.
type SenderPool struct {
	senders chan messaging.ReportSender
	factory func() (messaging.ReportSender, error)
	mu      sync.Mutex
	closed  bool
}

// NewSenderPool pre-populates a pool of size senders built by factory
func NewSenderPool(size int, factory func() (messaging.ReportSender, error)) (*SenderPool, error) {
	if size <= 0 {
		return nil, fmt.Errorf("sender pool size must be positive, got %d", size)
	}

	pool := &SenderPool{
		senders: make(chan messaging.ReportSender, size),
		factory: factory,
	}

	for i := 0; i < size; i++ {
		sender, err := factory()
		if err != nil {
			log.Warn().Err(err).Msg("Error creating sender")
			continue
		}
		pool.senders <- sender
	}

	if len(pool.senders) == 0 {
		return nil, fmt.Errorf("sender pool: no sender could be created")
	}

	return pool, nil
}

// Get takes a sender from the pool, or nil when it is empty
func (p *SenderPool) Get() messaging.ReportSender {
	select {
	case sender := <-p.senders:
		return sender
	default:
		log.Warn().Msg("Sender pool is empty")
		return nil
	}
}

// Put returns a sender to the pool, closing it when the pool is full or closed
func (p *SenderPool) Put(sender messaging.ReportSender) {
	if sender == nil {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		_ = sender.Close()
		return
	}

	select {
	case p.senders <- sender:
	default:
		log.Warn().Msg("Sender pool is full")
		_ = sender.Close()
	}
}

// Available returns the number of idle senders
func (p *SenderPool) Available() int {
	return len(p.senders)
}

// SendRunReport sends a report with a pooled sender. A sender that fails is
// dropped and replaced with a fresh one.
func (p *SenderPool) SendRunReport(ctx context.Context, report *messaging.RunReport) error {
	sender := p.Get()
	if sender == nil {
		return fmt.Errorf("failed to get message sender from pool")
	}

	if err := sender.SendRunReport(ctx, report); err != nil {
		_ = sender.Close()
		if replacement, ferr := p.factory(); ferr == nil {
			p.Put(replacement)
		}
		return err
	}

	p.Put(sender)
	return nil
}

// Close closes every idle sender
func (p *SenderPool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true

	for {
		select {
		case sender := <-p.senders:
			_ = sender.Close()
		default:
			return nil
		}
	}
}

var _ messaging.ReportSender = (*SenderPool)(nil)
