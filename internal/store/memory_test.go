package store

import (
	"context"
	"sync"
	"testing"

	"github.com/robalobadob/dailypuzzle/internal/game"
)

var _ Store = (*memory)(nil)

func TestMemory_InsertIfAbsent(t *testing.T) {
	st := NewMemoryStore()
	ctx := context.Background()

	id, created, err := st.InsertIfAbsent(ctx, "2026-01-01", game.TypeAnime, "a")
	if err != nil || !created || id != "a" {
		t.Fatalf("first insert = %q,%v,%v", id, created, err)
	}
	id, created, err = st.InsertIfAbsent(ctx, "2026-01-01", game.TypeAnime, "b")
	if err != nil || created || id != "a" {
		t.Fatalf("second insert = %q,%v,%v, want existing a", id, created, err)
	}
	if _, ok, _ := st.Get(ctx, "2026-01-01", game.TypeStudio); ok {
		t.Error("schedules must be keyed by game type")
	}
}

func TestMemory_RecentTargets(t *testing.T) {
	st := NewMemoryStore()
	ctx := context.Background()
	for _, row := range []struct{ date, id string }{
		{"2026-01-01", "old"}, {"2026-01-05", "x"}, {"2026-01-07", "y"}, {"2026-01-08", "today"},
	} {
		_, _, _ = st.InsertIfAbsent(ctx, row.date, game.TypeBanner, row.id)
	}
	got, err := st.RecentTargets(ctx, game.TypeBanner, "2026-01-02", "2026-01-08")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0] != "x" || got[1] != "y" {
		t.Errorf("RecentTargets = %v, want [x y]", got)
	}
}

func TestMemory_AppendGuessSerializesAndUpdatesStatsOnce(t *testing.T) {
	st := NewMemoryStore()
	ctx := context.Background()
	sess, err := st.GetOrCreateSession(ctx, "u1", game.TypeStudio, "2026-01-01")
	if err != nil {
		t.Fatal(err)
	}
	again, _ := st.GetOrCreateSession(ctx, "u1", game.TypeStudio, "2026-01-01")
	if again.ID != sess.ID {
		t.Fatalf("GetOrCreateSession created a second session")
	}

	miss := []game.FieldResult{{Field: "name", Outcome: game.OutcomeNone}}
	var wg sync.WaitGroup
	var mu sync.Mutex
	terminalErrs := 0
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := st.AppendGuessAndMaybeTransition(ctx, sess.ID, func(s *game.Session) error {
				_, err := s.Apply("c", game.StudioGuess{}, miss, s.UpdatedAt)
				return err
			})
			if game.IsCode(err, game.ErrCodeSessionTerminal) {
				mu.Lock()
				terminalErrs++
				mu.Unlock()
			} else if err != nil {
				t.Error(err)
			}
		}()
	}
	wg.Wait()

	final, _ := st.GetSession(ctx, "u1", game.TypeStudio, "2026-01-01")
	if len(final.Guesses) != game.TypeStudio.MaxGuesses() || final.Status != game.StatusFailed {
		t.Fatalf("final = %d guesses, %s", len(final.Guesses), final.Status)
	}
	if terminalErrs != 10-game.TypeStudio.MaxGuesses() {
		t.Errorf("terminal rejections = %d", terminalErrs)
	}
	stats, _ := st.GetStats(ctx, "u1", game.TypeStudio)
	if stats.Played != 1 || stats.TotalTries != 5 || stats.Wins != 0 {
		t.Errorf("stats = %+v", stats)
	}
}

func TestMemory_MutateErrorLeavesSessionUntouched(t *testing.T) {
	st := NewMemoryStore()
	ctx := context.Background()
	sess, _ := st.GetOrCreateSession(ctx, "u1", game.TypeAnime, "2026-01-01")
	_, err := st.AppendGuessAndMaybeTransition(ctx, sess.ID, func(s *game.Session) error {
		s.Guesses = append(s.Guesses, game.Guess{Seq: 1})
		return game.NewInvalidInputError("nope")
	})
	if err == nil {
		t.Fatal("expected error")
	}
	got, _ := st.GetSession(ctx, "u1", game.TypeAnime, "2026-01-01")
	if len(got.Guesses) != 0 {
		t.Errorf("aborted mutation leaked %d guesses", len(got.Guesses))
	}
}

func TestMemory_ListStatsOrder(t *testing.T) {
	m := NewMemoryStore().(*memory)
	for _, st := range []game.Stats{
		{UserID: "c", GameType: game.TypeAnime, Wins: 3, TotalTries: 30},
		{UserID: "a", GameType: game.TypeAnime, Wins: 3, TotalTries: 20},
		{UserID: "b", GameType: game.TypeAnime, Wins: 5, TotalTries: 90},
		{UserID: "d", GameType: game.TypeBanner, Wins: 9, TotalTries: 9},
	} {
		st := st
		m.stats[st.UserID+"|"+string(st.GameType)] = &st
	}
	got, _ := m.ListStats(context.Background(), game.TypeAnime, 10)
	want := []string{"b", "a", "c"}
	if len(got) != len(want) {
		t.Fatalf("got %d rows", len(got))
	}
	for i, id := range want {
		if got[i].UserID != id {
			t.Errorf("rank %d = %s, want %s", i+1, got[i].UserID, id)
		}
	}
}

func TestMemory_Search(t *testing.T) {
	st := NewMemoryStore()
	ctx := context.Background()
	_ = st.UpsertCandidates(ctx, []game.Candidate{
		{ID: "1", Kind: game.KindAnime, Name: "Re:Zero kara Hajimeru Isekai Seikatsu", PopularityRank: 40},
		{ID: "2", Kind: game.KindAnime, Name: "Zero no Tsukaima", PopularityRank: 300},
		{ID: "3", Kind: game.KindStudio, Name: "White Fox"},
	})
	got, err := st.Search(ctx, game.KindAnime, "zero", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0].ID != "1" {
		t.Errorf("Search = %+v", got)
	}
}

func TestPoolFilter_Match(t *testing.T) {
	studio := &game.Candidate{Kind: game.KindStudio, Works: []game.Work{{PopularityRank: 800}, {PopularityRank: 150}}}
	if !(PoolFilter{Kind: game.KindStudio, MaxWorkRank: 200}).Match(studio) {
		t.Error("studio with a work ranked 150 should qualify")
	}
	if (PoolFilter{Kind: game.KindStudio, MaxWorkRank: 100}).Match(studio) {
		t.Error("studio without a work in the top 100 should not qualify")
	}
	unranked := &game.Candidate{Kind: game.KindAnime}
	if (PoolFilter{MaxPopularityRank: 500}).Match(unranked) {
		t.Error("unranked candidate should not pass a popularity filter")
	}
}
