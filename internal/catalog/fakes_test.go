package catalog

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/princekumarofficial/catalog-service/internal/blobstore"
	"github.com/princekumarofficial/catalog-service/internal/storage"
	"github.com/princekumarofficial/catalog-service/internal/storage/memory"
	"github.com/princekumarofficial/catalog-service/internal/tasks"
	"github.com/princekumarofficial/catalog-service/internal/types/assets"
)

// fakeBlobs is an in-memory blob store that can be told to fail one slot.
type fakeBlobs struct {
	mu       sync.Mutex
	objects  map[string]bool
	puts     int
	deleted  []string
	failSlot blobstore.Slot
	duration float64
	checkCtx bool

	// together, when set, holds every Put until all expected uploads are in flight.
	together *barrier
}

func newFakeBlobs() *fakeBlobs {
	return &fakeBlobs{objects: make(map[string]bool), duration: 12.5}
}

func (f *fakeBlobs) Put(ctx context.Context, in blobstore.PutInput) (*blobstore.Object, error) {
	f.mu.Lock()
	f.puts++
	failSlot, together, checkCtx := f.failSlot, f.together, f.checkCtx
	f.mu.Unlock()

	if checkCtx && ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if together != nil {
		if err := together.wait(time.Second); err != nil {
			return nil, err
		}
	}
	if failSlot != "" && strings.Contains(in.Key, "/assets/"+string(failSlot)+"/") {
		return nil, errors.New("store unavailable")
	}
	if _, err := os.Stat(in.Payload.Path); err != nil {
		return nil, fmt.Errorf("payload missing: %w", err)
	}

	obj := &blobstore.Object{ExternalID: in.Key, URL: "https://blobs.test/" + in.Key}
	if in.Probe {
		obj.Duration = f.duration
	}
	f.mu.Lock()
	f.objects[in.Key] = true
	f.mu.Unlock()
	return obj, nil
}

func (f *fakeBlobs) Delete(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.checkCtx && ctx.Err() != nil {
		return ctx.Err()
	}
	delete(f.objects, id)
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *fakeBlobs) stored() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.objects)
}

func (f *fakeBlobs) has(id string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.objects[id]
}

type recordingDispatcher struct {
	mu    sync.Mutex
	tasks []tasks.Task
}

func (d *recordingDispatcher) Dispatch(_ context.Context, t tasks.Task) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.tasks = append(d.tasks, t)
}

func (d *recordingDispatcher) kinds() []tasks.Kind {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]tasks.Kind, 0, len(d.tasks))
	for _, t := range d.tasks {
		out = append(out, t.Kind)
	}
	return out
}

// flakyStore wraps the memory store and counts or breaks selected calls.
type flakyStore struct {
	*memory.Memory

	mu           sync.Mutex
	creates      int
	updates      int
	deletes      int
	failCreate   bool
	failUpdate   error
	hideReadback bool
	checkCtx     bool
}

func newFlakyStore() *flakyStore {
	return &flakyStore{Memory: memory.New()}
}

var _ storage.Storage = (*flakyStore)(nil)

func (s *flakyStore) CreateAsset(ctx context.Context, a *assets.Asset) error {
	s.mu.Lock()
	s.creates++
	fail := s.failCreate
	s.mu.Unlock()
	if fail {
		return errors.New("write rejected")
	}
	return s.Memory.CreateAsset(ctx, a)
}

func (s *flakyStore) UpdateAsset(ctx context.Context, id string, c storage.AssetChanges) error {
	s.mu.Lock()
	s.updates++
	fail := s.failUpdate
	s.mu.Unlock()
	if fail != nil {
		return fail
	}
	return s.Memory.UpdateAsset(ctx, id, c)
}

func (s *flakyStore) DeleteAsset(ctx context.Context, id string) error {
	s.mu.Lock()
	s.deletes++
	checkCtx := s.checkCtx
	s.mu.Unlock()
	if checkCtx && ctx.Err() != nil {
		return ctx.Err()
	}
	return s.Memory.DeleteAsset(ctx, id)
}

func (s *flakyStore) GetAssetWithOwner(ctx context.Context, id string) (*assets.Asset, error) {
	s.mu.Lock()
	hide := s.hideReadback
	s.mu.Unlock()
	if hide {
		return nil, storage.ErrNotFound
	}
	return s.Memory.GetAssetWithOwner(ctx, id)
}

// barrier lets callers through only once n of them are waiting at the same
// time. A caller that waits longer than the timeout gets an error, which is
// how a test notices that calls were made one after another.
type barrier struct {
	mu      sync.Mutex
	n       int
	arrived int
	open    chan struct{}
}

func newBarrier(n int) *barrier {
	return &barrier{n: n, open: make(chan struct{})}
}

func (b *barrier) wait(timeout time.Duration) error {
	b.mu.Lock()
	b.arrived++
	if b.arrived == b.n {
		close(b.open)
	}
	b.mu.Unlock()

	select {
	case <-b.open:
		return nil
	case <-time.After(timeout):
		return errors.New("no concurrent peer arrived")
	}
}

// spool writes a payload file of size bytes into the test's temp dir.
func spool(t *testing.T, name, contentType string, size int) *blobstore.Payload {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, make([]byte, size), 0o600); err != nil {
		t.Fatalf("Failed to write payload: %v", err)
	}
	return &blobstore.Payload{Path: path, Filename: name, ContentType: contentType, Size: int64(size)}
}

func assertReleased(t *testing.T, payloads ...*blobstore.Payload) {
	t.Helper()
	for _, p := range payloads {
		if p == nil {
			continue
		}
		if _, err := os.Stat(p.Path); !errors.Is(err, os.ErrNotExist) {
			t.Fatalf("Expected payload %s to be removed, stat err: %v", p.Filename, err)
		}
	}
}
