// Package trigger is the external scheduler of the daily endpoint: it calls
// GET /api/cron/daily with the shared bearer secret on a cron schedule.
package trigger

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/rs/zerolog/log"

	"github.com/robalobadob/dailypuzzle/internal/daily"
)

// Summary is the 200 body of the trigger endpoint.
type Summary struct {
	Date    string         `json:"date"`
	Results []daily.Result `json:"results"`
}

// Client calls the trigger endpoint once per Fire.
type Client struct {
	url    string
	secret string
	http   *http.Client
}

func NewClient(url, secret string, hc *http.Client) *Client {
	if hc == nil {
		hc = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{url: url, secret: secret, http: hc}
}

// Fire performs one trigger call. Non-200 responses are returned as errors
// carrying the endpoint's error code and details.
func (c *Client) Fire(ctx context.Context) (*Summary, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, fmt.Errorf("build trigger request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.secret)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call trigger endpoint: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read trigger response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var e struct {
			Error   string `json:"error"`
			Details string `json:"details"`
		}
		_ = json.Unmarshal(body, &e)
		return nil, fmt.Errorf("trigger endpoint returned %d: %s %s", resp.StatusCode, e.Error, e.Details)
	}
	var s Summary
	if err := json.Unmarshal(body, &s); err != nil {
		return nil, fmt.Errorf("decode trigger response: %w", err)
	}
	return &s, nil
}

// Run fires the client on schedule (standard 5-field cron, evaluated in loc)
// and once at startup, until ctx is cancelled. Overlapping runs are skipped.
func Run(ctx context.Context, c *Client, schedule string, loc *time.Location) error {
	if loc == nil {
		loc = time.UTC
	}
	sched, err := gocron.NewScheduler(gocron.WithLocation(loc))
	if err != nil {
		return fmt.Errorf("create scheduler: %w", err)
	}

	_, err = sched.NewJob(
		gocron.CronJob(schedule, false),
		gocron.NewTask(func() {
			fire(ctx, c)
		}),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithStartAt(gocron.WithStartImmediately()),
	)
	if err != nil {
		_ = sched.Shutdown()
		return fmt.Errorf("schedule trigger %q: %w", schedule, err)
	}

	sched.Start()
	log.Info().Str("schedule", schedule).Str("url", c.url).Msg("trigger scheduler started")
	<-ctx.Done()
	if err := sched.Shutdown(); err != nil {
		return fmt.Errorf("stop scheduler: %w", err)
	}
	log.Info().Msg("trigger scheduler stopped")
	return nil
}

func fire(ctx context.Context, c *Client) {
	s, err := c.Fire(ctx)
	if err != nil {
		log.Error().Err(err).Msg("daily trigger failed")
		return
	}
	for _, r := range s.Results {
		log.Info().
			Str("date", s.Date).
			Str("gameType", string(r.GameType)).
			Str("targetId", r.TargetID).
			Bool("created", r.Created).
			Msg("daily trigger")
	}
}
