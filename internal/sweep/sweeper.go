package sweep

import (
	"context"
	"errors"
	"time"

	"github.com/aradhanasaha/coffee-sub000/internal/metrics"
	"github.com/aradhanasaha/coffee-sub000/internal/notifications"
	"github.com/aradhanasaha/coffee-sub000/internal/serviceerror"
	"go.uber.org/zap"
)

const (
	opRun = "sweep.run"

	// DefaultWindow is how recently a user must have logged a coffee to be skipped.
	DefaultWindow = 7 * 24 * time.Hour
	// DefaultBatchCap bounds the nudges written by one run.
	DefaultBatchCap = 50
)

var (
	errMissingDirectory = errors.New("sweep: user directory is required")
	errMissingActivity  = errors.New("sweep: activity source is required")
	errMissingNotifier  = errors.New("sweep: notifier is required")
)

// UserDirectory lists every user.
type UserDirectory interface {
	AllUserIDs(ctx context.Context) ([]string, error)
}

// ActivitySource lists users who posted recently.
type ActivitySource interface {
	ActiveAuthorIDsSince(ctx context.Context, since time.Time) ([]string, error)
}

type Config struct {
	Users    UserDirectory
	Activity ActivitySource
	Notifier notifications.Notifier
	Clock    func() time.Time
	Window   time.Duration
	BatchCap int
	Logger   *zap.Logger
	Metrics  *metrics.Collectors
}

// Sweeper nudges users who have not logged a coffee within the window. Each run
// recomputes its targets from scratch and keeps no cursor, so when more users are
// eligible than the cap the ones at the end of the directory order wait until the
// set shrinks.
type Sweeper struct {
	users    UserDirectory
	activity ActivitySource
	notifier notifications.Notifier
	clock    func() time.Time
	window   time.Duration
	batchCap int
	logger   *zap.Logger
	metrics  *metrics.Collectors
}

func New(cfg Config) (*Sweeper, error) {
	if cfg.Users == nil {
		return nil, errMissingDirectory
	}
	if cfg.Activity == nil {
		return nil, errMissingActivity
	}
	if cfg.Notifier == nil {
		return nil, errMissingNotifier
	}
	sweeper := &Sweeper{
		users:    cfg.Users,
		activity: cfg.Activity,
		notifier: cfg.Notifier,
		clock:    cfg.Clock,
		window:   cfg.Window,
		batchCap: cfg.BatchCap,
		logger:   cfg.Logger,
		metrics:  cfg.Metrics,
	}
	if sweeper.clock == nil {
		sweeper.clock = time.Now
	}
	if sweeper.window <= 0 {
		sweeper.window = DefaultWindow
	}
	if sweeper.batchCap <= 0 {
		sweeper.batchCap = DefaultBatchCap
	}
	if sweeper.logger == nil {
		sweeper.logger = zap.NewNop()
	}
	return sweeper, nil
}

// Run writes one nudge per inactive user, up to the batch cap, and returns how many
// notifications were created.
func (s *Sweeper) Run(ctx context.Context) (int, error) {
	userIDs, err := s.users.AllUserIDs(ctx)
	if err != nil {
		return 0, serviceerror.New(opRun, "user_query_failed", err)
	}
	since := s.clock().UTC().Add(-s.window)
	activeIDs, err := s.activity.ActiveAuthorIDsSince(ctx, since)
	if err != nil {
		return 0, serviceerror.New(opRun, "activity_query_failed", err)
	}

	active := make(map[string]struct{}, len(activeIDs))
	for _, id := range activeIDs {
		active[id] = struct{}{}
	}
	targets := make([]string, 0, len(userIDs))
	for _, id := range userIDs {
		if _, ok := active[id]; ok {
			continue
		}
		targets = append(targets, id)
	}
	candidates := len(targets)
	if len(targets) > s.batchCap {
		targets = targets[:s.batchCap]
	}

	nudged := 0
	for _, userID := range targets {
		if ctx.Err() != nil {
			break
		}
		outcome := s.notifier.Notify(ctx, notifications.Request{
			RecipientID: userID,
			Type:        notifications.TypeNudge.String(),
		})
		if outcome.Created() {
			nudged++
		}
	}

	s.metrics.RecordSweep(candidates, nudged)
	s.logger.Info("inactivity sweep finished",
		zap.Int("users", len(userIDs)),
		zap.Int("inactive", candidates),
		zap.Int("nudged", nudged),
		zap.Int("deferred", candidates-len(targets)))
	return nudged, ctx.Err()
}
