package presence

import (
	"context"
	"encoding/json"
	"log"

	"github.com/redis/go-redis/v9"
)

const bridgeChannel = "presence:events"

type bridgeEnvelope struct {
	Origin  string          `json:"origin"`
	Room    string          `json:"room"`
	Payload json.RawMessage `json:"payload"`
}

// RedisBridge mirrors room events over a Redis pub/sub channel so that hubs
// on other instances deliver them to their local subscribers. Events carry
// the origin hub id; each bridge ignores its own.
type RedisBridge struct {
	client *redis.Client
	hub    *Hub
	cancel context.CancelFunc
}

func NewRedisBridge(redisURL string, hub *Hub) (*RedisBridge, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	bridge := &RedisBridge{
		client: redis.NewClient(opt),
		hub:    hub,
		cancel: cancel,
	}
	go bridge.listen(ctx)
	return bridge, nil
}

// Broadcast publishes fire-and-forget: a Redis hiccup must not block or fail
// the local fan-out that already happened.
func (b *RedisBridge) Broadcast(room string, payload []byte) {
	envelope, err := json.Marshal(bridgeEnvelope{
		Origin:  b.hub.Origin(),
		Room:    room,
		Payload: payload,
	})
	if err != nil {
		log.Printf("presence bridge encode: %v", err)
		return
	}
	if err := b.client.Publish(context.Background(), bridgeChannel, envelope).Err(); err != nil {
		log.Printf("presence bridge publish: %v", err)
	}
}

func (b *RedisBridge) listen(ctx context.Context) {
	pubsub := b.client.Subscribe(ctx, bridgeChannel)
	defer pubsub.Close()

	for msg := range pubsub.Channel() {
		var envelope bridgeEnvelope
		if err := json.Unmarshal([]byte(msg.Payload), &envelope); err != nil {
			log.Printf("presence bridge decode: %v", err)
			continue
		}
		if envelope.Origin == b.hub.Origin() {
			continue
		}
		b.hub.deliverLocal(envelope.Room, envelope.Payload, "")
	}
}

func (b *RedisBridge) Close() error {
	b.cancel()
	return b.client.Close()
}
