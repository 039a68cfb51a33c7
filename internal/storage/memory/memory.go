package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/princekumarofficial/catalog-service/internal/storage"
	"github.com/princekumarofficial/catalog-service/internal/types/assets"
	"github.com/princekumarofficial/catalog-service/internal/types/users"
)

// Memory is an in-process Storage used for local runs and tests.
type Memory struct {
	mu         sync.RWMutex
	assets     map[string]assets.Asset
	owners     map[string]users.Owner
	engagement map[string]assets.Engagement
}

func New() *Memory {
	return &Memory{
		assets:     make(map[string]assets.Asset),
		owners:     make(map[string]users.Owner),
		engagement: make(map[string]assets.Engagement),
	}
}

var _ storage.Storage = (*Memory)(nil)

func (m *Memory) CreateAsset(_ context.Context, a *assets.Asset) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now().UTC()
	if a.CreatedAt.IsZero() {
		a.CreatedAt = now
	}
	a.UpdatedAt = now

	rec := *a
	rec.Owner = nil
	rec.Score = 0
	m.assets[a.ID] = rec
	return nil
}

func (m *Memory) GetAsset(_ context.Context, id string) (*assets.Asset, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	a, ok := m.assets[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return &a, nil
}

func (m *Memory) GetAssetWithOwner(_ context.Context, id string) (*assets.Asset, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	a, ok := m.assets[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	m.attachOwner(&a)
	return &a, nil
}

func (m *Memory) attachOwner(a *assets.Asset) {
	if o, ok := m.owners[a.OwnerID]; ok {
		a.Owner = o.Summary()
	}
}

func (m *Memory) UpdateAsset(_ context.Context, id string, c storage.AssetChanges) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.assets[id]
	if !ok {
		return storage.ErrNotFound
	}
	if c.Title != nil {
		a.Title = *c.Title
	}
	if c.Description != nil {
		a.Description = *c.Description
	}
	if c.VideoFile != nil {
		a.VideoFile = *c.VideoFile
	}
	if c.Thumbnail != nil {
		a.Thumbnail = *c.Thumbnail
	}
	if c.Duration != nil {
		a.Duration = *c.Duration
	}
	if c.IsPublished != nil {
		a.IsPublished = *c.IsPublished
	}
	a.UpdatedAt = time.Now().UTC()
	m.assets[id] = a
	return nil
}

func (m *Memory) DeleteAsset(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.assets[id]; !ok {
		return storage.ErrNotFound
	}
	delete(m.assets, id)
	return nil
}

func (m *Memory) ListAssets(_ context.Context, q assets.ListQuery) ([]assets.Asset, int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	terms := storage.Terms(q.Search)
	var matched []assets.Asset
	for _, a := range m.assets {
		if !a.IsPublished && !q.IncludeUnpublished {
			continue
		}
		if q.OwnerID != "" && a.OwnerID != q.OwnerID {
			continue
		}
		if len(terms) > 0 {
			a.Score = score(a, terms)
			if a.Score == 0 {
				continue
			}
		}
		matched = append(matched, a)
	}

	sort.SliceStable(matched, func(i, j int) bool {
		return less(matched[i], matched[j], q, len(terms) > 0)
	})

	total := int64(len(matched))
	from := q.Offset()
	if from >= len(matched) {
		return []assets.Asset{}, total, nil
	}
	to := from + q.Limit
	if to > len(matched) {
		to = len(matched)
	}

	page := make([]assets.Asset, 0, to-from)
	for _, a := range matched[from:to] {
		m.attachOwner(&a)
		page = append(page, a)
	}
	return page, total, nil
}

// score weights title hits over description hits, roughly like a text index
// with field weights.
func score(a assets.Asset, terms []string) float64 {
	title := strings.ToLower(a.Title)
	desc := strings.ToLower(a.Description)
	var s float64
	for _, t := range terms {
		s += 2 * float64(strings.Count(title, t))
		s += float64(strings.Count(desc, t))
	}
	return s
}

func less(a, b assets.Asset, q assets.ListQuery, ranked bool) bool {
	if ranked && a.Score != b.Score {
		return a.Score > b.Score
	}
	asc := storage.Ascending(q)
	var cmp int
	switch q.SortBy {
	case assets.SortViews:
		cmp = compare(a.Views, b.Views)
	case assets.SortDuration:
		cmp = compare(a.Duration, b.Duration)
	case assets.SortTitle:
		cmp = strings.Compare(a.Title, b.Title)
	default:
		cmp = a.CreatedAt.Compare(b.CreatedAt)
	}
	if cmp != 0 {
		if asc {
			return cmp < 0
		}
		return cmp > 0
	}
	return a.ID < b.ID
}

func compare[T int64 | float64](a, b T) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func (m *Memory) IncrementViews(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.assets[id]
	if !ok {
		return storage.ErrNotFound
	}
	a.Views++
	m.assets[id] = a
	return nil
}

func (m *Memory) AddEngagement(_ context.Context, e *assets.Engagement) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	m.engagement[e.ID] = *e
	return nil
}

func (m *Memory) CountEngagement(_ context.Context, assetID string, kind assets.EngagementKind) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var n int64
	for _, e := range m.engagement {
		if e.AssetID == assetID && e.Kind == kind {
			n++
		}
	}
	return n, nil
}

func (m *Memory) DeleteEngagement(_ context.Context, assetID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var n int64
	for id, e := range m.engagement {
		if e.AssetID == assetID {
			delete(m.engagement, id)
			n++
		}
	}
	return n, nil
}

func (m *Memory) CreateOwner(_ context.Context, o *users.Owner) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if o.CreatedAt.IsZero() {
		o.CreatedAt = time.Now().UTC()
	}
	m.owners[o.ID] = *o
	return nil
}

func (m *Memory) GetOwner(_ context.Context, id string) (*users.Owner, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	o, ok := m.owners[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	o.WatchHistory = append([]string(nil), o.WatchHistory...)
	return &o, nil
}

func (m *Memory) AppendWatchHistory(_ context.Context, ownerID, assetID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	o, ok := m.owners[ownerID]
	if !ok {
		return storage.ErrNotFound
	}
	for _, id := range o.WatchHistory {
		if id == assetID {
			return nil
		}
	}
	o.WatchHistory = append(o.WatchHistory, assetID)
	m.owners[ownerID] = o
	return nil
}
