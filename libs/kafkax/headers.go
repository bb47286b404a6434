package kafkax

import (
	"strings"

	"github.com/segmentio/kafka-go"
)

// Canonical header keys carried on every event.
const (
	HeaderEventID   = "event_id"
	HeaderEventType = "event_type"
	HeaderRequestID = "request_id"
)

func HeaderValue(headers []kafka.Header, key string) string {
	for _, h := range headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

// EventHeaders builds the metadata headers, skipping empty values.
func EventHeaders(eventID, eventType, requestID string) []kafka.Header {
	var headers []kafka.Header
	for _, kv := range [][2]string{
		{HeaderEventID, eventID},
		{HeaderEventType, eventType},
		{HeaderRequestID, requestID},
	} {
		if kv[1] == "" {
			continue
		}
		headers = append(headers, kafka.Header{Key: kv[0], Value: []byte(kv[1])})
	}
	return headers
}

func SplitBrokers(raw string) []string {
	var brokers []string
	for _, b := range strings.Split(raw, ",") {
		b = strings.TrimSpace(b)
		if b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}
