package messaging

import "github.com/segmentio/kafka-go"

const (
	OrderEventsTopic = "order.events"

	eventTypeHeader   = "event-type"
	contentTypeHeader = "content-type"
)

func header(msg *kafka.Message, key string) string {
	for _, h := range msg.Headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

func setHeader(msg *kafka.Message, key, value string) {
	for i, h := range msg.Headers {
		if h.Key == key {
			msg.Headers[i].Value = []byte(value)
			return
		}
	}
	msg.Headers = append(msg.Headers, kafka.Header{Key: key, Value: []byte(value)})
}

// headerCarrier exposes kafka headers to the OTel propagator.
type headerCarrier struct {
	msg *kafka.Message
}

func (c headerCarrier) Get(key string) string { return header(c.msg, key) }

func (c headerCarrier) Set(key, value string) { setHeader(c.msg, key, value) }

func (c headerCarrier) Keys() []string {
	keys := make([]string, len(c.msg.Headers))
	for i, h := range c.msg.Headers {
		keys[i] = h.Key
	}
	return keys
}
