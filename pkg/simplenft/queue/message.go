// Package queue consumes NFT processing requests independently of the
// broker. The broker boundary lives in queue/amqp.
package queue

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/tendant/simple-nft/pkg/simplenft"
)

// ProcessNftsPattern is the command name producers publish under
const ProcessNftsPattern = "api-process-nfts"

// DeathHeader carries the broker's dead-letter history, newest first
const DeathHeader = "x-death"

// Message is one delivery as seen by the consumer
type Message struct {
	Body    []byte
	Headers map[string]any
}

// Payload is a request to process one NFT
type Payload struct {
	Identifier string                    `json:"identifier"`
	Nft        simplenft.Nft             `json:"nft"`
	Settings   simplenft.ProcessSettings `json:"settings"`
}

// envelope is the shape of messages published by a microservice client:
// {"pattern": {"cmd": "..."}, "data": {...}}
type envelope struct {
	Pattern *struct {
		Cmd string `json:"cmd"`
	} `json:"pattern"`
	Data json.RawMessage `json:"data"`
}

// DecodeMessage parses a message body, with or without the command envelope.
// Enveloped messages for another command are rejected.
func DecodeMessage(body []byte) (*Payload, error) {
	raw := json.RawMessage(body)

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", simplenft.ErrInvalidMessage, err)
	}
	if env.Pattern != nil {
		if env.Pattern.Cmd != ProcessNftsPattern {
			return nil, fmt.Errorf("%w: unexpected command %q", simplenft.ErrInvalidMessage, env.Pattern.Cmd)
		}
		raw = env.Data
	}

	var payload Payload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("%w: %v", simplenft.ErrInvalidMessage, err)
	}
	if payload.Identifier == "" {
		payload.Identifier = payload.Nft.Identifier
	}
	if payload.Nft.Identifier == "" {
		payload.Nft.Identifier = payload.Identifier
	}
	if payload.Identifier == "" {
		return nil, fmt.Errorf("%w: missing identifier", simplenft.ErrInvalidMessage)
	}
	return &payload, nil
}

// Attempt returns how many times the message went through the dead-letter
// exchange: the count of the most recent x-death entry, 0 when absent.
func Attempt(headers map[string]any) int {
	deaths, ok := headers[DeathHeader]
	if !ok {
		return 0
	}

	var first any
	switch list := deaths.(type) {
	case []any:
		if len(list) == 0 {
			return 0
		}
		first = list[0]
	case []map[string]any:
		if len(list) == 0 {
			return 0
		}
		first = list[0]
	default:
		return 0
	}

	death, ok := first.(map[string]any)
	if !ok {
		return 0
	}
	return toInt(death["count"])
}

func toInt(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case int8:
		return int(n)
	case int16:
		return int(n)
	case int32:
		return int(n)
	case int64:
		return int(n)
	case uint8:
		return int(n)
	case uint16:
		return int(n)
	case uint32:
		return int(n)
	case uint64:
		if n > math.MaxInt32 {
			return math.MaxInt32
		}
		return int(n)
	case float32:
		return int(n)
	case float64:
		return int(n)
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			return 0
		}
		return int(i)
	default:
		return 0
	}
}
