package catalog

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/princekumarofficial/catalog-service/internal/storage/memory"
	"github.com/princekumarofficial/catalog-service/internal/tasks"
	"github.com/princekumarofficial/catalog-service/internal/types/assets"
	"github.com/princekumarofficial/catalog-service/internal/types/users"
)

func TestParseListParams(t *testing.T) {
	tests := []struct {
		name                       string
		page, limit, sortBy, order string
		want                       assets.ListQuery
	}{
		{"defaults", "", "", "", "", assets.ListQuery{Page: 1, Limit: 10, SortBy: assets.SortCreatedAt, SortOrder: assets.SortDesc}},
		{"limit zero clamps up", "1", "0", "", "", assets.ListQuery{Page: 1, Limit: 1, SortBy: assets.SortCreatedAt, SortOrder: assets.SortDesc}},
		{"limit clamps down", "1", "500", "", "", assets.ListQuery{Page: 1, Limit: 100, SortBy: assets.SortCreatedAt, SortOrder: assets.SortDesc}},
		{"negative page", "-3", "5", "", "", assets.ListQuery{Page: 1, Limit: 5, SortBy: assets.SortCreatedAt, SortOrder: assets.SortDesc}},
		{"garbage numbers", "abc", "x", "", "", assets.ListQuery{Page: 1, Limit: 10, SortBy: assets.SortCreatedAt, SortOrder: assets.SortDesc}},
		{"allowed sort", "2", "20", "views", "asc", assets.ListQuery{Page: 2, Limit: 20, SortBy: assets.SortViews, SortOrder: assets.SortAsc}},
		{"unknown sort resets order", "1", "10", "password", "asc", assets.ListQuery{Page: 1, Limit: 10, SortBy: assets.SortCreatedAt, SortOrder: assets.SortDesc}},
		{"unknown order", "1", "10", "title", "sideways", assets.ListQuery{Page: 1, Limit: 10, SortBy: assets.SortTitle, SortOrder: assets.SortDesc}},
		{"max int page caps", "9223372036854775807", "10", "", "", assets.ListQuery{Page: MaxPage, Limit: 10, SortBy: assets.SortCreatedAt, SortOrder: assets.SortDesc}},
		{"page past int range caps", "99999999999999999999999", "10", "", "", assets.ListQuery{Page: MaxPage, Limit: 10, SortBy: assets.SortCreatedAt, SortOrder: assets.SortDesc}},
		{"limit past int range caps", "1", "99999999999999999999999", "", "", assets.ListQuery{Page: 1, Limit: 100, SortBy: assets.SortCreatedAt, SortOrder: assets.SortDesc}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseListParams(tt.page, tt.limit, "", tt.sortBy, tt.order)
			if got != tt.want {
				t.Fatalf("Expected %+v, got %+v", tt.want, got)
			}
		})
	}
}

type engineFixture struct {
	store  *memory.Memory
	tasks  *recordingDispatcher
	engine *Engine
}

func newEngineFixture(t *testing.T) *engineFixture {
	t.Helper()
	f := &engineFixture{store: memory.New(), tasks: &recordingDispatcher{}}
	f.engine = NewEngine(f.store, f.tasks, zaptest.NewLogger(t))

	ctx := context.Background()
	for _, o := range []users.Owner{
		{ID: "owner-1", Username: "alice", FullName: "Alice A"},
		{ID: "owner-2", Username: "bob", FullName: "Bob B"},
	} {
		if err := f.store.CreateOwner(ctx, &o); err != nil {
			t.Fatalf("Failed to seed owner: %v", err)
		}
	}
	return f
}

func (f *engineFixture) seed(t *testing.T, id, owner, title, description string, published bool, views int64, age time.Duration) {
	t.Helper()
	a := &assets.Asset{
		ID:          id,
		OwnerID:     owner,
		VideoFile:   assets.MediaRef{ExternalID: id + "-v", URL: "u"},
		Thumbnail:   assets.MediaRef{ExternalID: id + "-t", URL: "u"},
		Title:       title,
		Description: description,
		Duration:    10,
		Views:       views,
		IsPublished: published,
		CreatedAt:   time.Now().UTC().Add(-age),
	}
	if err := f.store.CreateAsset(context.Background(), a); err != nil {
		t.Fatalf("Failed to seed asset: %v", err)
	}
}

func TestList_OnlyPublished(t *testing.T) {
	f := newEngineFixture(t)
	f.seed(t, "a1", "owner-1", "Published one", "visible to everyone", true, 0, time.Hour)
	f.seed(t, "a2", "owner-1", "Draft", "hidden from listings", false, 0, time.Minute)

	page, err := f.engine.List(context.Background(), ParseListParams("", "", "", "", ""))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if page.TotalCount != 1 || len(page.Items) != 1 || page.Items[0].ID != "a1" {
		t.Fatalf("Expected only the published asset, got %+v", page)
	}
	if page.Items[0].Owner == nil || page.Items[0].Owner.Username != "alice" {
		t.Fatal("Expected owner projection on listed rows")
	}
}

func TestList_EmptyIsSuccess(t *testing.T) {
	f := newEngineFixture(t)

	page, err := f.engine.List(context.Background(), ParseListParams("3", "10", "nothing", "", ""))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if page.Items == nil || len(page.Items) != 0 {
		t.Fatalf("Expected empty non-nil items, got %#v", page.Items)
	}
	if page.TotalCount != 0 || page.TotalPages != 0 || page.HasNext || page.HasPrev {
		t.Fatalf("Expected zero counters, got %+v", page)
	}
}

func TestList_HugePageIsEmpty(t *testing.T) {
	f := newEngineFixture(t)
	for i := 0; i < 3; i++ {
		f.seed(t, fmt.Sprintf("a%02d", i), "owner-1", fmt.Sprintf("Clip number %d", i), "a description long enough", true, 0, time.Duration(i)*time.Minute)
	}

	for _, raw := range []string{"9223372036854775807", "99999999999999999999999"} {
		page, err := f.engine.List(context.Background(), ParseListParams(raw, "100", "", "", ""))
		if err != nil {
			t.Fatalf("Unexpected error for page %s: %v", raw, err)
		}
		if len(page.Items) != 0 || page.TotalCount != 3 || page.HasNext || !page.HasPrev {
			t.Fatalf("Expected an empty trailing page for page %s, got %+v", raw, page)
		}
	}
}

func TestList_Pagination(t *testing.T) {
	f := newEngineFixture(t)
	for i := 0; i < 25; i++ {
		f.seed(t, fmt.Sprintf("a%02d", i), "owner-1", fmt.Sprintf("Clip number %d", i), "a description long enough", true, 0, time.Duration(i)*time.Minute)
	}

	page, err := f.engine.List(context.Background(), ParseListParams("3", "10", "", "", ""))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(page.Items) != 5 || page.TotalCount != 25 || page.TotalPages != 3 {
		t.Fatalf("Unexpected page: items=%d total=%d pages=%d", len(page.Items), page.TotalCount, page.TotalPages)
	}
	if page.HasNext || !page.HasPrev {
		t.Fatalf("Expected last page flags, got next=%v prev=%v", page.HasNext, page.HasPrev)
	}
	// newest first, so the last page holds the oldest rows
	if page.Items[4].ID != "a24" {
		t.Fatalf("Expected oldest asset last, got %s", page.Items[4].ID)
	}
}

func TestList_RelevanceThenSortField(t *testing.T) {
	f := newEngineFixture(t)
	f.seed(t, "weak", "owner-1", "Mountain hike", "a guitar shows up in the background", true, 900, time.Hour)
	f.seed(t, "strong-old", "owner-1", "Guitar lesson", "learning guitar chords", true, 5, 2*time.Hour)
	f.seed(t, "strong-new", "owner-2", "Guitar lesson", "learning guitar chords", true, 50, time.Minute)
	f.seed(t, "miss", "owner-2", "Cooking pasta", "nothing relevant at all", true, 1000, time.Minute)

	page, err := f.engine.List(context.Background(), ParseListParams("1", "10", "guitar", "views", "desc"))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	var ids []string
	for _, a := range page.Items {
		ids = append(ids, a.ID)
	}
	want := []string{"strong-new", "strong-old", "weak"}
	if fmt.Sprint(ids) != fmt.Sprint(want) {
		t.Fatalf("Expected %v, got %v", want, ids)
	}
}

func TestListByOwner_Visibility(t *testing.T) {
	f := newEngineFixture(t)
	f.seed(t, "pub", "owner-1", "Published clip", "visible to everyone", true, 0, time.Hour)
	f.seed(t, "draft", "owner-1", "Draft clip", "only the owner sees this", false, 0, time.Minute)
	f.seed(t, "other", "owner-2", "Someone else", "belongs to another owner", true, 0, time.Minute)

	q := ParseListParams("", "", "", "", "")
	own, err := f.engine.ListByOwner(context.Background(), "owner-1", "owner-1", q)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if own.TotalCount != 2 {
		t.Fatalf("Expected owner to see 2 assets, got %d", own.TotalCount)
	}

	public, err := f.engine.ListByOwner(context.Background(), "owner-1", "owner-2", q)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if public.TotalCount != 1 || public.Items[0].ID != "pub" {
		t.Fatalf("Expected only the published asset, got %+v", public.Items)
	}
}

func TestGet_ViewsAndCounts(t *testing.T) {
	f := newEngineFixture(t)
	f.seed(t, "a1", "owner-1", "Published one", "visible to everyone", true, 41, time.Hour)
	ctx := context.Background()
	for i, kind := range []assets.EngagementKind{assets.EngagementLike, assets.EngagementLike, assets.EngagementComment} {
		e := &assets.Engagement{ID: fmt.Sprintf("e%d", i), AssetID: "a1", OwnerID: "owner-2", Kind: kind, CreatedAt: time.Now()}
		if err := f.store.AddEngagement(ctx, e); err != nil {
			t.Fatalf("Failed to seed engagement: %v", err)
		}
	}

	got, err := f.engine.Get(ctx, "a1", "owner-2")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if got.Views != 42 {
		t.Fatalf("Expected views 42, got %d", got.Views)
	}
	if got.LikeCount != 2 || got.CommentCount != 1 {
		t.Fatalf("Expected 2 likes and 1 comment, got %d and %d", got.LikeCount, got.CommentCount)
	}
	if kinds := f.tasks.kinds(); len(kinds) != 1 || kinds[0] != tasks.KindViewRecorded {
		t.Fatalf("Expected one view task, got %v", kinds)
	}
	if f.tasks.tasks[0].ViewerID != "owner-2" {
		t.Fatal("Expected viewer id on the view task")
	}

	stored, _ := f.store.GetAsset(ctx, "a1")
	if stored.Views != 41 {
		t.Fatalf("Expected stored views untouched until the task runs, got %d", stored.Views)
	}
}

// meetingCounts makes every count wait for its sibling query.
type meetingCounts struct {
	*memory.Memory
	together *barrier
}

func (s *meetingCounts) CountEngagement(ctx context.Context, assetID string, kind assets.EngagementKind) (int64, error) {
	if err := s.together.wait(time.Second); err != nil {
		return 0, err
	}
	return s.Memory.CountEngagement(ctx, assetID, kind)
}

func TestGet_CountsRunConcurrently(t *testing.T) {
	f := newEngineFixture(t)
	f.seed(t, "a1", "owner-1", "Published one", "visible to everyone", true, 0, time.Hour)
	store := &meetingCounts{Memory: f.store, together: newBarrier(2)}
	engine := NewEngine(store, f.tasks, zaptest.NewLogger(t))

	if _, err := engine.Get(context.Background(), "a1", ""); err != nil {
		t.Fatalf("Expected like and comment counts in flight at once, got %v", err)
	}
}

func TestGet_UnpublishedHiddenFromOthers(t *testing.T) {
	f := newEngineFixture(t)
	f.seed(t, "draft", "owner-1", "Draft clip", "only the owner sees this", false, 0, time.Minute)

	if _, err := f.engine.Get(context.Background(), "draft", "owner-2"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Expected not found for another viewer, got %v", err)
	}
	if _, err := f.engine.Get(context.Background(), "draft", ""); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Expected not found for anonymous viewer, got %v", err)
	}
	if _, err := f.engine.Get(context.Background(), "draft", "owner-1"); err != nil {
		t.Fatalf("Expected owner to fetch own draft, got %v", err)
	}
	if _, err := f.engine.Get(context.Background(), "missing", ""); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Expected not found, got %v", err)
	}
}
