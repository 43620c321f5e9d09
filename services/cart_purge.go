package services

import (
	"context"
	"log"
	"time"

	"github.com/robfig/cron"
)

// CartPurger deletes carts that have not been touched for ttl.
type CartPurger interface {
	PurgeStale(ctx context.Context, ttl time.Duration) (int64, error)
}

// StartCartPurge runs the purge on the given cron schedule until the returned cron is stopped.
func StartCartPurge(schedule string, purger CartPurger, ttl time.Duration) (*cron.Cron, error) {
	c := cron.New()
	err := c.AddFunc(schedule, func() { runCartPurge(purger, ttl) })
	if err != nil {
		return nil, err
	}
	c.Start()
	return c, nil
}

func runCartPurge(purger CartPurger, ttl time.Duration) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	n, err := purger.PurgeStale(ctx, ttl)
	if err != nil {
		log.Printf("cart purge: %v", err)
		return
	}
	if n > 0 {
		log.Printf("cart purge: removed %d stale carts", n)
	}
}
