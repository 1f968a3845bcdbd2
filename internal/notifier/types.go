package notifier

import (
	"time"

	"rotabot/internal/transport"
)

// Config controls the outbound pipeline. Zero values mean defaults.
type Config struct {
	Workers           int
	QueueSize         int
	StatusesPerMinute int
	FollowsPerMinute  int
	RetryMax          int
	RetryBase         time.Duration
	RetryMaxDelay     time.Duration
	DedupWindow       time.Duration
	DedupMaxEntries   int
	PersistDedup      bool
}

type Kind string

const (
	KindStatus   Kind = "status"
	KindFollow   Kind = "follow"
	KindUnfollow Kind = "unfollow"
)

// Job is one outbound action. Post is used by KindStatus, AccountID by the
// follow kinds. Source names the producer (announcer, feature, responder).
type Job struct {
	Kind      Kind
	Post      transport.Post
	AccountID string
	Source    string
}

// Status is a convenience constructor for a status job.
func Status(source string, p transport.Post) Job {
	return Job{Kind: KindStatus, Post: p, Source: source}
}

// PostEvent is the payload of post.* bus events.
type PostEvent struct {
	ID       string    `json:"id"`
	Kind     Kind      `json:"kind"`
	Source   string    `json:"source,omitempty"`
	Target   string    `json:"target,omitempty"`
	Key      string    `json:"key,omitempty"`
	RemoteID string    `json:"remote_id,omitempty"`
	Attempts int       `json:"attempts,omitempty"`
	At       time.Time `json:"at"`
	Error    string    `json:"error,omitempty"`
}

func (j Job) target() string {
	if j.Kind == KindStatus {
		return j.Post.InReplyToID
	}
	return j.AccountID
}
