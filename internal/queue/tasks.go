package queue

import (
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
)

const TypeHeartbeatTouch = "heartbeat:touch"

type HeartbeatPayload struct {
	APIKey string `json:"api_key"`
}

func NewHeartbeatTask(apiKey string) (*asynq.Task, error) {
	data, err := json.Marshal(HeartbeatPayload{APIKey: apiKey})
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	return asynq.NewTask(TypeHeartbeatTouch, data), nil
}

func ParseHeartbeatTask(t *asynq.Task) (HeartbeatPayload, error) {
	var p HeartbeatPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return p, fmt.Errorf("unmarshal payload: %w", err)
	}
	return p, nil
}
