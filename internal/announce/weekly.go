package announce

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"rotabot/internal/notifier"
	"rotabot/internal/storage"
	"rotabot/internal/transport"
	logx "rotabot/pkg/logx"
)

const weeklyStateKey = "weekly_activity.last_week"

// DefaultWeeklyTemplate is used when no template is configured.
const DefaultWeeklyTemplate = "__START_DATE__ 〜 __END_DATE__ のアクティビティ\n" +
	"投稿: __STATUSES__\nログイン: __LOGINS__\n新規登録: __REGISTRATIONS__"

// ActivitySource returns weekly instance activity, oldest week first.
type ActivitySource interface {
	WeeklyActivity(ctx context.Context) ([]transport.WeeklyActivity, error)
}

type WeeklyOptions struct {
	Source   ActivitySource
	Store    storage.Store // nil keeps state in memory
	Out      Submitter
	Template string
	Location *time.Location
	Log      logx.Logger
}

// Weekly posts the last completed week's activity once.
type Weekly struct {
	src   ActivitySource
	store storage.Store
	out   Submitter
	tmpl  string
	loc   *time.Location
	log   logx.Logger
}

func NewWeekly(opts WeeklyOptions) *Weekly {
	w := &Weekly{src: opts.Source, store: opts.Store, out: opts.Out, tmpl: opts.Template, loc: opts.Location, log: opts.Log}
	if w.store == nil {
		w.store = storage.NewMemory()
	}
	if strings.TrimSpace(w.tmpl) == "" {
		w.tmpl = DefaultWeeklyTemplate
	}
	if w.loc == nil {
		w.loc = time.Local
	}
	if w.log.IsZero() {
		w.log = logx.Nop()
	}
	w.log = w.log.With(logx.String("comp", "weekly_activity"))
	return w
}

// Check fetches the activity and posts the latest completed week if it has
// not been posted yet. It returns the posted text, or "" when nothing new.
func (w *Weekly) Check(ctx context.Context) (string, error) {
	weeks, err := w.src.WeeklyActivity(ctx)
	if err != nil {
		return "", fmt.Errorf("fetch activity: %w", err)
	}
	// The newest entry is the week in progress.
	if len(weeks) < 2 {
		return "", nil
	}
	week := weeks[len(weeks)-2]

	last, err := w.lastWeek(ctx)
	if err != nil {
		return "", err
	}
	if week.Week.Unix() <= last {
		w.log.Debug("weekly activity already posted", logx.Time("week", week.Week))
		return "", nil
	}

	text := w.Render(week)
	if _, err := w.out.Submit(ctx, weeklyJob(text)); err != nil {
		return "", fmt.Errorf("submit: %w", err)
	}
	if err := w.store.PutState(ctx, weeklyStateKey, strconv.FormatInt(week.Week.Unix(), 10)); err != nil {
		return text, fmt.Errorf("save last week: %w", err)
	}
	w.log.Info("weekly activity queued", logx.Time("week", week.Week))
	return text, nil
}

// Run adapts Check to a scheduler job.
func (w *Weekly) Run(ctx context.Context, _ time.Time) error {
	_, err := w.Check(ctx)
	return err
}

// Render fills the template for one week.
func (w *Weekly) Render(a transport.WeeklyActivity) string {
	start := a.Week.In(w.loc)
	end := start.AddDate(0, 0, 6)
	statuses := strconv.FormatInt(a.Statuses, 10)
	logins := strconv.FormatInt(a.Logins, 10)
	return strings.NewReplacer(
		"__START_DATE__", start.Format("2006-01-02"),
		"__END_DATE__", end.Format("2006-01-02"),
		"__STATUSES__", statuses,
		"__STATUS_COUNT__", statuses,
		"__LOGINS__", logins,
		"__ACTIVE_USER__", logins,
		"__REGISTRATIONS__", strconv.FormatInt(a.Registrations, 10),
	).Replace(w.tmpl)
}

func (w *Weekly) lastWeek(ctx context.Context) (int64, error) {
	v, err := w.store.GetState(ctx, weeklyStateKey)
	if errors.Is(err, storage.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("load last week: %w", err)
	}
	n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
	if err != nil {
		w.log.Warn("bad stored week, ignoring", logx.String("value", v))
		return 0, nil
	}
	return n, nil
}

func weeklyJob(text string) notifier.Job {
	return notifier.Status("weekly_activity", transport.Post{Text: text, Visibility: transport.Public})
}
