package announce

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"rotabot/internal/notifier"
	"rotabot/internal/storage"
	"rotabot/internal/transport"
	logx "rotabot/pkg/logx"
)

type FeedSource struct {
	Name string
	URL  string
}

type FeedsOptions struct {
	Sources []FeedSource
	// TitlePatterns filter entries by title. Empty matches every title.
	TitlePatterns []string
	UserAgent     string
	PostInterval  time.Duration
	Client        *http.Client // optional

	Store storage.Store // nil keeps state in memory
	Out   Submitter
	Log   logx.Logger
}

// Feeds posts new feed entries whose titles match the configured patterns.
type Feeds struct {
	sources  []FeedSource
	patterns []*regexp.Regexp
	gap      time.Duration
	parser   *gofeed.Parser
	store    storage.Store
	out      Submitter
	log      logx.Logger
}

// FeedEntry is one post-worthy item.
type FeedEntry struct {
	ID      string
	Title   string
	Authors []string
	Link    string
}

// Text renders "title [authors]\n\nlink".
func (e FeedEntry) Text() string {
	if len(e.Authors) == 0 {
		return e.Title + "\n\n" + e.Link
	}
	return fmt.Sprintf("%s [%s]\n\n%s", e.Title, strings.Join(e.Authors, ", "), e.Link)
}

func NewFeeds(opts FeedsOptions) (*Feeds, error) {
	f := &Feeds{sources: opts.Sources, gap: opts.PostInterval, store: opts.Store, out: opts.Out, log: opts.Log}
	for i, p := range opts.TitlePatterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("feeds.title_patterns[%d]: %w", i, err)
		}
		f.patterns = append(f.patterns, re)
	}
	for i, src := range opts.Sources {
		if strings.TrimSpace(src.Name) == "" || strings.TrimSpace(src.URL) == "" {
			return nil, fmt.Errorf("feeds.sources[%d]: name and url are required", i)
		}
	}
	f.parser = gofeed.NewParser()
	f.parser.UserAgent = opts.UserAgent
	if opts.Client != nil {
		f.parser.Client = opts.Client
	}
	if f.store == nil {
		f.store = storage.NewMemory()
	}
	if f.log.IsZero() {
		f.log = logx.Nop()
	}
	f.log = f.log.With(logx.String("comp", "feeds"))
	return f, nil
}

// Run polls every source once; failures of one source do not stop the rest.
func (f *Feeds) Run(ctx context.Context, _ time.Time) error {
	var errs []error
	first := true
	for _, src := range f.sources {
		entries, err := f.Fetch(ctx, src)
		if err != nil {
			f.log.Error("feed poll failed", logx.String("feed", src.Name), logx.Err(err))
			errs = append(errs, fmt.Errorf("%s: %w", src.Name, err))
			continue
		}
		if len(entries) > 0 {
			f.log.Info("new feed entries", logx.String("feed", src.Name), logx.Int("count", len(entries)))
		}
		for _, e := range entries {
			if !first {
				if err := sleepCtx(ctx, f.gap); err != nil {
					return errors.Join(append(errs, err)...)
				}
			}
			first = false
			if _, err := f.out.Submit(ctx, notifier.Status("feed."+src.Name, transport.Post{Text: e.Text(), Visibility: transport.Public})); err != nil {
				f.log.Warn("feed entry not queued", logx.String("feed", src.Name), logx.String("title", e.Title), logx.Err(err))
				errs = append(errs, fmt.Errorf("%s: %w", src.Name, err))
			}
		}
	}
	return errors.Join(errs...)
}

// Fetch returns the matching entries of src published since the last poll,
// oldest first, and records the newest entry ID.
func (f *Feeds) Fetch(ctx context.Context, src FeedSource) ([]FeedEntry, error) {
	feed, err := f.parser.ParseURLWithContext(src.URL, ctx)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", src.URL, err)
	}
	if len(feed.Items) == 0 {
		return nil, nil
	}

	key := "feed." + src.Name + ".last_id"
	last, err := f.store.GetState(ctx, key)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("load last id: %w", err)
	}
	fresh := newItems(feed.Items, last)
	if len(fresh) == 0 {
		return nil, nil
	}
	if err := f.store.PutState(ctx, key, itemID(fresh[0])); err != nil {
		return nil, fmt.Errorf("save last id: %w", err)
	}

	out := make([]FeedEntry, 0, len(fresh))
	for i := len(fresh) - 1; i >= 0; i-- {
		it := fresh[i]
		if it == nil || strings.TrimSpace(it.Title) == "" || strings.TrimSpace(it.Link) == "" {
			continue
		}
		if !f.matchTitle(it.Title) {
			continue
		}
		e := FeedEntry{ID: itemID(it), Title: strings.TrimSpace(it.Title), Link: strings.TrimSpace(it.Link)}
		for _, a := range it.Authors {
			if a != nil && a.Name != "" {
				e.Authors = append(e.Authors, a.Name)
			}
		}
		out = append(out, e)
	}
	return out, nil
}

func (f *Feeds) matchTitle(title string) bool {
	if len(f.patterns) == 0 {
		return true
	}
	for _, re := range f.patterns {
		if re.MatchString(title) {
			return true
		}
	}
	return false
}

// newItems returns the items ahead of lastID in feed order. An unknown or
// empty lastID makes every item new.
func newItems(items []*gofeed.Item, lastID string) []*gofeed.Item {
	if lastID == "" {
		return items
	}
	for i, it := range items {
		if it != nil && itemID(it) == lastID {
			return items[:i]
		}
	}
	return items
}

func itemID(it *gofeed.Item) string {
	if it.GUID != "" {
		return it.GUID
	}
	return it.Link
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
