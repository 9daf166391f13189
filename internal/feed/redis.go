package feed

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	channelPrefix = "friendzone:owner:"
	seqPrefix     = "friendzone:seq:"
)

// NewRedisClient parses url and checks the server is reachable.
func NewRedisClient(url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	return client, nil
}

// Publisher announces owner changes on Redis pub/sub.
type Publisher struct {
	client *redis.Client
}

func NewPublisher(client *redis.Client) *Publisher {
	return &Publisher{client: client}
}

// OwnersChanged bumps each owner's sequence number and publishes it. Errors
// are logged; the next change or an on-demand read repairs a missed one.
func (p *Publisher) OwnersChanged(ctx context.Context, ownerIDs ...string) {
	for _, owner := range ownerIDs {
		if owner == "" {
			continue
		}
		seq, err := p.client.Incr(ctx, seqPrefix+owner).Result()
		if err != nil {
			log.Printf("Feed: failed to bump seq for %s: %v", owner, err)
			continue
		}
		if err := p.client.Publish(ctx, channelPrefix+owner, strconv.FormatInt(seq, 10)).Err(); err != nil {
			log.Printf("Feed: failed to publish change for %s: %v", owner, err)
		}
	}
}

// Seq returns the latest sequence number for ownerID, zero if none.
func (p *Publisher) Seq(ctx context.Context, ownerID string) (uint64, error) {
	seq, err := p.client.Get(ctx, seqPrefix+ownerID).Uint64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read seq: %w", err)
	}
	return seq, nil
}

// Subscribe delivers every owner change to fn until ctx is cancelled.
func Subscribe(ctx context.Context, client *redis.Client, fn func(ctx context.Context, ownerID string, seq uint64)) error {
	pubsub := client.PSubscribe(ctx, channelPrefix+"*")
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe to owner changes: %w", err)
	}

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			owner := strings.TrimPrefix(msg.Channel, channelPrefix)
			seq, err := strconv.ParseUint(msg.Payload, 10, 64)
			if err != nil || owner == "" {
				log.Printf("Feed: ignoring malformed change %q on %s", msg.Payload, msg.Channel)
				continue
			}
			fn(ctx, owner, seq)
		}
	}
}
