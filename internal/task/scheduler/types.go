package scheduler

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	logx "rotabot/pkg/logx"
)

// Job runs once per trigger. now is the trigger instant in the scheduler
// timezone, truncated to the second.
type Job func(ctx context.Context, now time.Time) error

type Config struct {
	Location *time.Location
	// Timeout bounds each run; 0 means 5 minutes.
	Timeout time.Duration
}

type scheduleDef struct {
	name    string
	spec    string
	job     Job
	entryID cron.EntryID
	state   *runState
}

type runState struct {
	running atomic.Bool
	runs    atomic.Uint64
	skipped atomic.Uint64
	mu      sync.Mutex
	lastErr string
	lastAt  time.Time
}

type Service struct {
	mu sync.Mutex

	log logx.Logger
	cfg Config

	parser cron.Parser
	c      *cron.Cron
	ctx    context.Context
	cancel context.CancelFunc
	runWG  sync.WaitGroup
	defs   []scheduleDef
}

// ScheduleInfo describes one registered schedule.
type ScheduleInfo struct {
	Name    string
	Spec    string
	Next    time.Time
	Prev    time.Time
	Runs    uint64
	Skipped uint64
	LastErr string
	LastAt  time.Time
}
