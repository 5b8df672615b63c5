// Package event defines the facts emitted by revision decisions and reading
// progress, and the sink that delivers them to user topics.
package event

import (
	"context"
	"strings"
	"time"
)

// Type identifies the type of a narrative event.
type Type string

// Revision events.
const (
	// TypeRevisionDecided records an approval or rejection of a revision.
	TypeRevisionDecided Type = "revision.decided"
)

// Progress events.
// Events represent facts that have occurred, not requests.
const (
	// TypeChoiceRecorded records a reader taking a choice.
	TypeChoiceRecorded Type = "progress.choice_recorded"
	// TypeEndingReached records a reader arriving on an ending node.
	TypeEndingReached Type = "progress.ending_reached"
	// TypeAchievementUnlocked records an achievement consequence firing.
	TypeAchievementUnlocked Type = "progress.achievement_unlocked"
	// TypeNodeJumped records a chapter-select jump to a visited node.
	TypeNodeJumped Type = "progress.node_jumped"
	// TypeProgressRestarted records a reader returning to the start node.
	TypeProgressRestarted Type = "progress.restarted"
	// TypeProgressSynced tells other devices a new progress version exists.
	TypeProgressSynced Type = "progress.synced"
)

// Decision values carried by RevisionDecided.
const (
	DecisionApproved = "approved"
	DecisionRejected = "rejected"
)

// Payload is implemented by every event payload.
type Payload interface {
	EventType() Type
}

// Event is an immutable fact with its payload.
type Event struct {
	Type      Type      `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Payload   Payload   `json:"payload"`
}

// New wraps payload in an event stamped at.
func New(payload Payload, at time.Time) Event {
	return Event{Type: payload.EventType(), Timestamp: at.UTC(), Payload: payload}
}

// RevisionDecided is emitted when a reviewer approves or rejects a revision.
type RevisionDecided struct {
	AuthorID   string `json:"authorId"`
	ComicID    string `json:"comicId"`
	ComicTitle string `json:"comicTitle"`
	RevisionID string `json:"revisionId"`
	Version    int    `json:"version"`
	ReviewerID string `json:"reviewerId"`
	Decision   string `json:"decision"`
	Reason     string `json:"reason,omitempty"`
}

// ChoiceRecorded is emitted for every accepted choice.
type ChoiceRecorded struct {
	ComicID      string `json:"comicId"`
	NodeID       string `json:"nodeId"`
	ChoiceID     string `json:"choiceId"`
	TargetNodeID string `json:"targetNodeId"`
}

// EndingReached is emitted when a choice lands on an ending node.
type EndingReached struct {
	ComicID    string `json:"comicId"`
	NodeID     string `json:"nodeId"`
	EndingType string `json:"endingType"`
}

// AchievementUnlocked is emitted per unlock_achievement consequence.
type AchievementUnlocked struct {
	ComicID string `json:"comicId"`
	Key     string `json:"key"`
}

// NodeJumped is emitted when a reader jumps back to a visited node.
type NodeJumped struct {
	ComicID    string `json:"comicId"`
	FromNodeID string `json:"fromNodeId"`
	NodeID     string `json:"nodeId"`
}

// ProgressRestarted is emitted when a reader returns to the start node.
type ProgressRestarted struct {
	ComicID    string `json:"comicId"`
	FromNodeID string `json:"fromNodeId"`
	NodeID     string `json:"nodeId"`
}

// ProgressSynced announces the stored progress version after a write.
type ProgressSynced struct {
	ReaderID      string `json:"readerId"`
	ComicID       string `json:"comicId"`
	Version       int64  `json:"version"`
	CurrentNodeID string `json:"currentNodeId"`
	Status        string `json:"status"`
}

func (RevisionDecided) EventType() Type     { return TypeRevisionDecided }
func (ChoiceRecorded) EventType() Type      { return TypeChoiceRecorded }
func (EndingReached) EventType() Type       { return TypeEndingReached }
func (AchievementUnlocked) EventType() Type { return TypeAchievementUnlocked }
func (NodeJumped) EventType() Type          { return TypeNodeJumped }
func (ProgressRestarted) EventType() Type   { return TypeProgressRestarted }
func (ProgressSynced) EventType() Type      { return TypeProgressSynced }

// Sink delivers events to a topic. Delivery is at-least-once.
type Sink interface {
	Publish(ctx context.Context, topic string, events ...Event) error
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(ctx context.Context, topic string, events ...Event) error

// Publish implements Sink.
func (fn SinkFunc) Publish(ctx context.Context, topic string, events ...Event) error {
	return fn(ctx, topic, events...)
}

// Discard is a Sink that drops every event.
var Discard Sink = SinkFunc(func(context.Context, string, ...Event) error { return nil })

const userTopicPrefix = "user:"

// UserTopic returns the topic addressing every device of a user.
func UserTopic(userID string) string {
	return userTopicPrefix + strings.TrimSpace(userID)
}

// UserFromTopic extracts the user id from a user topic.
func UserFromTopic(topic string) (string, bool) {
	userID, ok := strings.CutPrefix(topic, userTopicPrefix)
	if !ok || userID == "" {
		return "", false
	}
	return userID, true
}
