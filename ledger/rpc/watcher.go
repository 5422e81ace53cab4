package rpc

import (
	"context"
	"sync"
	"time"

	"hydroclient/ledger"
)

var _ ledger.BlockWatcher = (*Client)(nil)

// SubscribeBlocks polls the node head and delivers a header whenever the
// block number advances. The returned cancel function releases the poller
// and may be called any number of times.
func (c *Client) SubscribeBlocks(ctx context.Context) (<-chan ledger.BlockHeader, func(), error) {
	// Prime with the current head so subscribers only see advancement.
	head, err := c.BlockHeader(ctx, ledger.Latest())
	if err != nil {
		return nil, nil, err
	}

	headers := make(chan ledger.BlockHeader, 8)
	pollCtx, cancelPoll := context.WithCancel(ctx)
	var once sync.Once
	cancel := func() {
		once.Do(cancelPoll)
	}

	go func() {
		defer close(headers)
		ticker := time.NewTicker(c.pollInterval)
		defer ticker.Stop()
		lastSeen := head.Number
		for {
			select {
			case <-pollCtx.Done():
				return
			case <-ticker.C:
			}
			next, err := c.BlockHeader(pollCtx, ledger.Latest())
			if err != nil {
				// A failed poll delays the next one; it never tears the
				// subscription down.
				continue
			}
			if next.Number <= lastSeen {
				continue
			}
			lastSeen = next.Number
			select {
			case headers <- next:
			case <-pollCtx.Done():
				return
			}
		}
	}()

	return headers, cancel, nil
}
