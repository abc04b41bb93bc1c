package consumer

import (
	"context"
	stderrors "errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"cardassist/internal/broker"
	"cardassist/internal/logger"
)

// RunWorkers consumes every queue with one Consume loop each and blocks until
// ctx is done or a loop fails. Cancellation is a clean stop.
func RunWorkers(ctx context.Context, c broker.Consumer, queues []string, p *Processor, log logger.Logger) error {
	if len(queues) == 0 {
		return fmt.Errorf("no queues to consume")
	}

	g, gCtx := errgroup.WithContext(ctx)
	for _, queue := range queues {
		queue := queue
		g.Go(func() error {
			log.InfowCtx(gCtx, "Starting consumer", "queue", queue)
			if err := c.Consume(gCtx, queue, p.Handle); err != nil && !stderrors.Is(err, context.Canceled) {
				return fmt.Errorf("consumer %s: %w", queue, err)
			}
			return nil
		})
	}
	return g.Wait()
}
