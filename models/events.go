package models

import "time"

// Topic names one stream on the engine event bus. All events are
// fire-and-forget notifications, never request/response calls.
type Topic string

const (
	TopicStateChange        Topic = "state-change"
	TopicNetworkStateChange Topic = "network-state-change"
	TopicSyncRequired       Topic = "sync-required"
	TopicPeriodicSync       Topic = "periodic-sync"
	TopicOperationProcessed Topic = "operation-processed"
	TopicRetryAttempt       Topic = "retry-attempt"
	TopicUpdateAvailable    Topic = "update-available"
)

// Event is a single bus notification.
type Event struct {
	Topic   Topic     `json:"topic"`
	At      time.Time `json:"at"`
	Payload any       `json:"payload,omitempty"`
}

// SyncRequiredEvent asks the sync engine to drain the queue.
type SyncRequiredEvent struct {
	Trigger SyncTrigger `json:"trigger"`
}

// NetworkStateEvent reports an online/offline transition.
type NetworkStateEvent struct {
	Online bool `json:"online"`
}

// OperationProcessedEvent reports one operation reaching a terminal state.
type OperationProcessedEvent struct {
	OperationID string  `json:"operation_id"`
	Outcome     Outcome `json:"outcome"`
}

// RetryAttemptEvent reports one failed replay attempt of an operation.
type RetryAttemptEvent struct {
	OperationID string `json:"operation_id"`
	Attempt     int    `json:"attempt"`
	Error       string `json:"error,omitempty"`
}

// UpdateAvailableEvent reports that the remote version marker no longer
// matches the active version. Applying the update is the caller's decision.
type UpdateAvailableEvent struct {
	Current string `json:"current"`
	Remote  string `json:"remote"`
}
