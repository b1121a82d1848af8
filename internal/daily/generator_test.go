package daily

import (
	"context"
	"sync"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/robalobadob/dailypuzzle/internal/game"
	"github.com/robalobadob/dailypuzzle/internal/store"
)

type countingRecorder struct {
	mu        sync.Mutex
	created   int
	reused    int
	exhausted int
	windows   []int
}

func (r *countingRecorder) RecordScheduleCreated(string) { r.mu.Lock(); r.created++; r.mu.Unlock() }
func (r *countingRecorder) RecordScheduleReused(string)  { r.mu.Lock(); r.reused++; r.mu.Unlock() }
func (r *countingRecorder) RecordPoolExhausted(string)   { r.mu.Lock(); r.exhausted++; r.mu.Unlock() }
func (r *countingRecorder) RecordPoolRelaxed(_ string, w int) {
	r.mu.Lock()
	r.windows = append(r.windows, w)
	r.mu.Unlock()
}

func banner(id string) game.Candidate {
	return game.Candidate{ID: id, Kind: game.KindAnime, Name: id, BannerURL: "https://img.example/" + id, PopularityRank: 10}
}

func newTestGenerator(t *testing.T, cands ...game.Candidate) (*Generator, store.Store, *countingRecorder) {
	t.Helper()
	st := store.NewMemoryStore()
	if err := st.UpsertCandidates(context.Background(), cands); err != nil {
		t.Fatal(err)
	}
	rec := &countingRecorder{}
	g := NewGenerator(st, st, Options{
		Calendar: Calendar{loc: time.UTC},
		Salt:     "test-salt",
		Filters: map[game.Type]store.PoolFilter{
			game.TypeBanner: {RequireBanner: true, MaxPopularityRank: 100},
		},
		Recorder: rec,
	})
	return g, st, rec
}

func mustDay(t *testing.T, key string) time.Time {
	t.Helper()
	d, err := ParseDate(key)
	if err != nil {
		t.Fatal(err)
	}
	return d.Add(12 * time.Hour)
}

func seedSchedule(t *testing.T, st store.ScheduleStore, date string, gt game.Type, id string) {
	t.Helper()
	if _, _, err := st.InsertIfAbsent(context.Background(), date, gt, id); err != nil {
		t.Fatal(err)
	}
}

func TestEnsureSchedule_Idempotent(t *testing.T) {
	g, st, rec := newTestGenerator(t, banner("a"), banner("b"), banner("c"))
	ctx := context.Background()
	day := mustDay(t, "2026-03-10")

	first, err := g.EnsureSchedule(ctx, day, game.TypeBanner)
	if err != nil {
		t.Fatal(err)
	}
	if !first.Created || first.TargetID == "" {
		t.Fatalf("first call = %+v, want created", first)
	}
	second, err := g.EnsureSchedule(ctx, day.Add(6*time.Hour), game.TypeBanner)
	if err != nil {
		t.Fatal(err)
	}
	if second.Created || second.TargetID != first.TargetID {
		t.Fatalf("second call = %+v, want reuse of %q", second, first.TargetID)
	}
	id, ok, _ := st.Get(ctx, "2026-03-10", game.TypeBanner)
	if !ok || id != first.TargetID {
		t.Errorf("stored = %q,%v", id, ok)
	}
	if rec.created != 1 || rec.reused != 1 {
		t.Errorf("recorder created=%d reused=%d", rec.created, rec.reused)
	}
}

func TestEnsureSchedule_Concurrent(t *testing.T) {
	g, _, rec := newTestGenerator(t, banner("a"), banner("b"), banner("c"), banner("d"))
	ctx := context.Background()
	day := mustDay(t, "2026-03-11")

	const n = 16
	results := make([]Result, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := g.EnsureSchedule(ctx, day, game.TypeBanner)
			if err != nil {
				t.Error(err)
			}
			results[i] = res
		}(i)
	}
	wg.Wait()

	created := 0
	for _, r := range results {
		if r.TargetID != results[0].TargetID {
			t.Fatalf("diverging targets: %q vs %q", r.TargetID, results[0].TargetID)
		}
		if r.Created {
			created++
		}
	}
	if created != 1 || rec.created != 1 {
		t.Errorf("created = %d (recorder %d), want exactly 1", created, rec.created)
	}
}

func TestEnsureSchedule_RepeatAvoidance(t *testing.T) {
	g, st, _ := newTestGenerator(t, banner("used"), banner("fresh"))
	ctx := context.Background()
	for i := 1; i <= 7; i++ {
		d, _ := AddDays("2026-04-10", -i)
		seedSchedule(t, st, d, game.TypeBanner, "used")
	}

	res, err := g.EnsureSchedule(ctx, mustDay(t, "2026-04-10"), game.TypeBanner)
	if err != nil {
		t.Fatal(err)
	}
	if res.TargetID != "fresh" {
		t.Fatalf("target = %q, want the only candidate not used in the last 7 days", res.TargetID)
	}
}

func TestEnsureSchedule_RelaxesWindow(t *testing.T) {
	t.Run("to three days", func(t *testing.T) {
		g, st, rec := newTestGenerator(t, banner("a"), banner("b"))
		seedSchedule(t, st, "2026-05-09", game.TypeBanner, "a")
		seedSchedule(t, st, "2026-05-05", game.TypeBanner, "b")

		res, err := g.EnsureSchedule(context.Background(), mustDay(t, "2026-05-10"), game.TypeBanner)
		if err != nil {
			t.Fatal(err)
		}
		if res.TargetID != "b" {
			t.Errorf("target = %q, want b (a was used yesterday)", res.TargetID)
		}
		if len(rec.windows) != 1 || rec.windows[0] != 3 {
			t.Errorf("relaxed windows = %v, want [3]", rec.windows)
		}
	})

	t.Run("to no exclusion", func(t *testing.T) {
		g, st, rec := newTestGenerator(t, banner("a"), banner("b"))
		seedSchedule(t, st, "2026-05-09", game.TypeBanner, "a")
		seedSchedule(t, st, "2026-05-08", game.TypeBanner, "b")

		res, err := g.EnsureSchedule(context.Background(), mustDay(t, "2026-05-10"), game.TypeBanner)
		if err != nil {
			t.Fatal(err)
		}
		if res.TargetID != "a" && res.TargetID != "b" {
			t.Errorf("target = %q", res.TargetID)
		}
		if len(rec.windows) != 1 || rec.windows[0] != 0 {
			t.Errorf("relaxed windows = %v, want [0]", rec.windows)
		}
	})
}

func TestEnsureSchedule_PoolExhausted(t *testing.T) {
	noBanner := banner("x")
	noBanner.BannerURL = ""
	g, st, rec := newTestGenerator(t, noBanner)
	ctx := context.Background()

	_, err := g.EnsureSchedule(ctx, mustDay(t, "2026-06-01"), game.TypeBanner)
	if !game.IsCode(err, game.ErrCodePoolExhausted) {
		t.Fatalf("err = %v, want POOL_EXHAUSTED", err)
	}
	if _, ok, _ := st.Get(ctx, "2026-06-01", game.TypeBanner); ok {
		t.Error("no schedule may be written when the pool is exhausted")
	}
	if rec.exhausted != 1 {
		t.Errorf("exhausted = %d", rec.exhausted)
	}
}

func TestEnsureAll_IndependentTypes(t *testing.T) {
	g, _, _ := newTestGenerator(t, banner("a"))
	out := g.EnsureAll(context.Background(), mustDay(t, "2026-06-02"))
	if len(out) != len(game.Types) {
		t.Fatalf("outcomes = %d", len(out))
	}
	for _, o := range out {
		switch o.GameType {
		case game.TypeStudio:
			if !game.IsCode(o.Err, game.ErrCodePoolExhausted) {
				t.Errorf("studio: err = %v, want POOL_EXHAUSTED", o.Err)
			}
		default:
			if o.Err != nil || o.TargetID != "a" {
				t.Errorf("%s: %+v err=%v", o.GameType, o.Result, o.Err)
			}
		}
	}
}

func TestCalendar_DateKey(t *testing.T) {
	cal, err := NewCalendar("Asia/Tokyo")
	if err != nil {
		t.Fatal(err)
	}
	at := time.Date(2026, 1, 1, 20, 0, 0, 0, time.UTC)
	if got := cal.DateKey(at); got != "2026-01-02" {
		t.Errorf("DateKey = %s, want 2026-01-02", got)
	}
	if _, err := NewCalendar("Mars/Olympus"); err == nil {
		t.Error("unknown zone should fail")
	}
}

func TestEnsureSchedule_RandomPickWithoutSalt(t *testing.T) {
	cands := []game.Candidate{banner("a"), banner("b"), banner("c"), banner("d")}
	seen := map[string]bool{}
	for i := 0; i < 64; i++ {
		st := store.NewMemoryStore()
		if err := st.UpsertCandidates(context.Background(), cands); err != nil {
			t.Fatal(err)
		}
		g := NewGenerator(st, st, Options{Calendar: Calendar{loc: time.UTC}})
		res, err := g.EnsureSchedule(context.Background(), mustDay(t, "2026-03-01"), game.TypeBanner)
		if err != nil {
			t.Fatal(err)
		}
		seen[res.TargetID] = true

		again, err := g.EnsureSchedule(context.Background(), mustDay(t, "2026-03-01"), game.TypeBanner)
		if err != nil || again.TargetID != res.TargetID {
			t.Fatalf("retry = %+v, %v; want the stored %q", again, err, res.TargetID)
		}
	}
	if len(seen) < 2 {
		t.Errorf("same date picked %v on every fresh store; the pick must not be derivable from public inputs", seen)
	}
}

func TestRandomIndex(t *testing.T) {
	for i := 0; i < 100; i++ {
		n, err := RandomIndex(3)
		if err != nil {
			t.Fatal(err)
		}
		if n < 0 || n >= 3 {
			t.Fatalf("index %d out of range", n)
		}
	}
	if n, err := RandomIndex(0); err != nil || n != 0 {
		t.Errorf("empty pool = %d, %v", n, err)
	}
}

func TestPickIndex(t *testing.T) {
	a := PickIndex("salt", "2026-01-01", "anime", 10)
	if b := PickIndex("salt", "2026-01-01", "anime", 10); a != b {
		t.Fatalf("PickIndex not deterministic: %d vs %d", a, b)
	}
	seen := map[int]bool{}
	for d := 1; d <= 28; d++ {
		key := time.Date(2026, 2, d, 0, 0, 0, 0, time.UTC).Format(dateLayout)
		i := PickIndex("salt", key, "anime", 4)
		if i < 0 || i >= 4 {
			t.Fatalf("index %d out of range", i)
		}
		seen[i] = true
	}
	if len(seen) < 2 {
		t.Errorf("PickIndex should spread over the pool, saw %v", seen)
	}
	if PickIndex("salt", "2026-01-01", "anime", 0) != 0 {
		t.Error("empty pool must yield 0")
	}
}
