package scheduler

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const TaskInternalAlert = "ops.internal_alert"

type InternalAlertPayload struct {
	TraceID    string `json:"traceId"`
	ChatID     int64  `json:"chatId"`
	UpdateType string `json:"updateType"`
	Error      string `json:"error"`
}

func NewInternalAlertTask(payload InternalAlertPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskInternalAlert, data), nil
}

func ParseInternalAlertPayload(task *asynq.Task) (InternalAlertPayload, error) {
	var payload InternalAlertPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return InternalAlertPayload{}, err
	}
	return payload, nil
}
