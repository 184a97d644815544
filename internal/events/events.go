// Package events carries notable run events (warm-up progress, abandoned
// entries, failed operations, chaos attacks) to interested observers.
package events

import "time"

// EventType represents the type of event
type EventType string

const (
	// EventWarmupStarted is emitted by the driver that won the warm-up election
	EventWarmupStarted EventType = "warmup_started"
	// EventWarmupCompleted is emitted when the warm-up loop ends, early or not
	EventWarmupCompleted EventType = "warmup_completed"
	// EventPutRetried is emitted when a warm-up put is retried after a transient failure
	EventPutRetried EventType = "put_retried"
	// EventPutAbandoned is emitted when a warm-up entry is skipped
	EventPutAbandoned EventType = "put_abandoned"
	// EventOperationFailed is emitted when a measured operation fails
	EventOperationFailed EventType = "operation_failed"
	// EventChaosAttack is emitted when a chaos attack is executed
	EventChaosAttack EventType = "chaos_attack"
	// EventChaosResume is emitted when an attacked node is restored by chaos
	EventChaosResume EventType = "chaos_resume"
)

// AttackType represents the type of chaos attack
type AttackType string

const (
	AttackTypeKill    AttackType = "kill"
	AttackTypeSuspend AttackType = "suspend"
	AttackTypeDelay   AttackType = "delay"
)

// Event is a single notification. Source is the worker or node it concerns.
type Event struct {
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Source    string    `json:"source"`
	Data      EventData `json:"data,omitempty"`
}

// EventData contains event-specific data
type EventData struct {
	Key           string     `json:"key,omitempty"`
	Entries       int        `json:"entries,omitempty"`
	Failed        uint64     `json:"failed,omitempty"`
	Duration      string     `json:"duration,omitempty"`
	AttackType    AttackType `json:"attack_type,omitempty"`
	DelayDuration string     `json:"delay_duration,omitempty"`
	Error         string     `json:"error,omitempty"`
}

func newEvent(t EventType, source string, data EventData) Event {
	return Event{Type: t, Timestamp: time.Now(), Source: source, Data: data}
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

// NewWarmupStartedEvent creates a warm-up started event for entries records
func NewWarmupStartedEvent(workerID string, entries int) Event {
	return newEvent(EventWarmupStarted, workerID, EventData{Entries: entries})
}

// NewWarmupCompletedEvent creates a warm-up completed event
func NewWarmupCompletedEvent(workerID string, loaded int, failed uint64, d time.Duration) Event {
	return newEvent(EventWarmupCompleted, workerID, EventData{
		Entries:  loaded,
		Failed:   failed,
		Duration: d.String(),
	})
}

// NewPutRetriedEvent creates a put retried event
func NewPutRetriedEvent(workerID, key string, err error) Event {
	return newEvent(EventPutRetried, workerID, EventData{Key: key, Error: errString(err)})
}

// NewPutAbandonedEvent creates a put abandoned event
func NewPutAbandonedEvent(workerID, key string, err error) Event {
	return newEvent(EventPutAbandoned, workerID, EventData{Key: key, Error: errString(err)})
}

// NewOperationFailedEvent creates an operation failed event
func NewOperationFailedEvent(workerID, key string, err error) Event {
	return newEvent(EventOperationFailed, workerID, EventData{Key: key, Error: errString(err)})
}

// NewChaosAttackEvent creates a new chaos attack event
func NewChaosAttackEvent(nodeID string, attackType AttackType) Event {
	return newEvent(EventChaosAttack, nodeID, EventData{AttackType: attackType})
}

// NewChaosAttackEventWithDelay creates a chaos attack event for delay injection
func NewChaosAttackEventWithDelay(nodeID string, delay time.Duration) Event {
	return newEvent(EventChaosAttack, nodeID, EventData{
		AttackType:    AttackTypeDelay,
		DelayDuration: delay.String(),
	})
}

// NewChaosResumeEvent creates a chaos resume event
func NewChaosResumeEvent(nodeID string, attackType AttackType) Event {
	return newEvent(EventChaosResume, nodeID, EventData{AttackType: attackType})
}
