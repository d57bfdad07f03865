package location

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

// fix is the wire format devices publish to the fixes channel.
type fix struct {
	Lat *float64   `json:"lat"`
	Lng *float64   `json:"lng"`
	Alt *float64   `json:"alt,omitempty"`
	TS  *time.Time `json:"ts,omitempty"`
}

// RedisFeed forwards fixes published on a Redis channel to its subscribers.
// Samples can also be pushed directly through the embedded Source.
type RedisFeed struct {
	*Source
	redis   *redis.Client
	channel string
}

func NewRedisFeed(client *redis.Client, channel string) *RedisFeed {
	return &RedisFeed{
		Source:  NewSource(),
		redis:   client,
		channel: channel,
	}
}

// Probe pings Redis.
func (f *RedisFeed) Probe(ctx context.Context) error {
	if err := f.redis.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// Run subscribes to the fixes channel until ctx is cancelled. ready, if not
// nil, is closed once the subscription is confirmed.
func (f *RedisFeed) Run(ctx context.Context, ready chan<- struct{}) error {
	pubsub := f.redis.Subscribe(ctx, f.channel)
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		f.Fail(fmt.Errorf("%w: %v", ErrUnavailable, err))
		return err
	}
	if ready != nil {
		close(ready)
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
			sample, err := DecodeFix([]byte(msg.Payload))
			if err != nil {
				log.Printf("location: dropping fix from %s: %v", msg.Channel, err)
				f.Fail(err)
				continue
			}
			f.Push(sample)
		}
	}
}

// Publish sends a fix to the channel, as a device would.
func (f *RedisFeed) Publish(ctx context.Context, sample Sample) error {
	payload, err := EncodeFix(sample)
	if err != nil {
		return err
	}
	return f.redis.Publish(ctx, f.channel, payload).Err()
}

func EncodeFix(sample Sample) ([]byte, error) {
	lat, lng := sample.Latitude, sample.Longitude
	return json.Marshal(fix{Lat: &lat, Lng: &lng, Alt: sample.Altitude, TS: sample.DeviceTime})
}

// DecodeFix parses a published fix. The device timestamp, if any, is kept as
// DeviceTime; CapturedAt is left for the receiver to stamp on arrival.
func DecodeFix(payload []byte) (Sample, error) {
	var in fix
	if err := json.Unmarshal(payload, &in); err != nil {
		return Sample{}, fmt.Errorf("%w: %v", ErrMalformedFix, err)
	}
	if in.Lat == nil || in.Lng == nil {
		return Sample{}, fmt.Errorf("%w: lat and lng required", ErrMalformedFix)
	}
	sample := Sample{Latitude: *in.Lat, Longitude: *in.Lng, Altitude: in.Alt, DeviceTime: in.TS}
	if err := sample.Validate(); err != nil {
		return Sample{}, err
	}
	return sample, nil
}
