package estore

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/evkv/evkv/lib/kv"
	"github.com/evkv/evkv/lib/kv/expiry"
	"github.com/evkv/evkv/lib/kv/queue"
	"github.com/evkv/evkv/lib/kv/reconciler"
	"github.com/evkv/evkv/lib/kv/snapmap"
	"github.com/evkv/evkv/lib/kv/util"
	"github.com/evkv/evkv/lib/store"
	"github.com/lni/dragonboat/v4/logger"
)

var log = logger.GetLogger("store")

// --------------------------------------------------------------------------
// Options
// --------------------------------------------------------------------------

// Options configures a Store.
type Options struct {
	// Name identifies the store in logs and metrics.
	Name string
	// ReconcileInterval is the period of the background reconciliation
	// loop. Defaults to 10ms.
	ReconcileInterval time.Duration
	// QueueCapacity bounds the pending operation queue. Zero (the
	// default) means unbounded.
	QueueCapacity int
	// Clock overrides the time source, used by tests. Defaults to
	// time.Now.
	Clock func() time.Time
}

// DefaultOptions returns the default store configuration.
func DefaultOptions() Options {
	return Options{
		Name:              "default",
		ReconcileInterval: 10 * time.Millisecond,
	}
}

// --------------------------------------------------------------------------
// Store
// --------------------------------------------------------------------------

// Store is the in-process implementation of store.IStore. Writes are
// queued and applied in batches by a single background reconciler, reads
// go straight to the visible snapshot without taking any lock.
type Store struct {
	name       string
	queue      *queue.Queue
	m          *snapmap.Map
	reconciler *reconciler.Reconciler
}

// ensure interface compliance
var _ store.IStore = (*Store)(nil)

// New creates a new eventual store from the given options.
// The background reconciler is created but not started; call Start to
// begin periodic reconciliation or drive ticks manually via TickOnce.
func New(opts Options) (*Store, error) {
	if opts.Name == "" {
		opts.Name = "default"
	}
	if opts.ReconcileInterval <= 0 {
		opts.ReconcileInterval = 10 * time.Millisecond
	}
	if opts.QueueCapacity < 0 {
		return nil, fmt.Errorf("queue capacity must not be negative, got %d", opts.QueueCapacity)
	}

	q := queue.New(opts.QueueCapacity)
	m := snapmap.NewMap()
	writer, ok := m.Writer()
	if !ok {
		return nil, errors.New("snapshot map writer already taken")
	}

	r := reconciler.New(q, writer, expiry.New(), &reconciler.Options{
		Interval: opts.ReconcileInterval,
		Clock:    opts.Clock,
		Name:     opts.Name,
	})

	log.Infof("created store %s (interval=%v, queue capacity=%d)", opts.Name, opts.ReconcileInterval, opts.QueueCapacity)

	return &Store{
		name:       opts.Name,
		queue:      q,
		m:          m,
		reconciler: r,
	}, nil
}

// Start launches the background reconciliation loop. It is a no-op if
// the loop is already running.
func (s *Store) Start() {
	s.reconciler.Start()
}

// Stop halts the background reconciliation loop. Queued operations stay
// pending and are applied when the loop is restarted or TickOnce is
// called. It is a no-op if the loop is not running.
func (s *Store) Stop() {
	s.reconciler.Stop()
}

// TickOnce runs a single reconciliation pass synchronously. It is
// primarily intended for tests that drive visibility deterministically,
// but is safe to call alongside a running background loop: if a pass is
// already in progress the call returns without doing anything.
func (s *Store) TickOnce() {
	s.reconciler.TickOnce()
}

// Close shuts the store down: the background loop is stopped, the queue
// is closed against further writes and one final pass applies whatever
// was still pending. Reads keep working after Close.
func (s *Store) Close() {
	s.reconciler.Stop()
	s.queue.Close()
	s.reconciler.TickOnce()
	log.Infof("closed store %s, %d keys left visible", s.name, s.m.Len())
}

// submit queues an operation and translates queue errors into store errors.
func (s *Store) submit(op kv.Operation) error {
	if _, err := s.queue.Submit(op); err != nil {
		switch {
		case errors.Is(err, kv.ErrQueueFull):
			return store.NewError(store.RetCQueueFull, err.Error())
		case errors.Is(err, kv.ErrQueueClosed):
			return store.NewError(store.RetCShutdown, err.Error())
		default:
			return store.NewError(store.RetCInternalError, err.Error())
		}
	}
	return nil
}

// --------------------------------------------------------------------------
// Interface Methods (docu see store/interface.go)
// --------------------------------------------------------------------------

func (s *Store) Set(key string, value []byte) error {
	return s.submit(kv.Operation{Type: kv.OpInsert, Key: key, Value: value})
}

func (s *Store) SetTTL(key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		return store.NewError(store.RetCInvalidOperation, fmt.Sprintf("ttl must be positive, got %v", ttl))
	}
	return s.submit(kv.Operation{Type: kv.OpInsertTTL, Key: key, Value: value, TTL: ttl})
}

func (s *Store) Delete(key string) error {
	return s.submit(kv.Operation{Type: kv.OpDelete, Key: key})
}

func (s *Store) Get(key string) ([]byte, bool, error) {
	value, ok := s.m.Get(key)
	return value, ok, nil
}

func (s *Store) GetInfo() (kv.StoreInfo, error) {
	// sample the visible snapshot, reads stay lock-free during the scan
	hist := util.NewSizeHistogram()
	s.m.Range(func(key string, entry kv.Entry) bool {
		hist.AddSample(len(key) + len(entry.Value))
		return true
	})

	return kv.StoreInfo{
		Keys:              s.m.Len(),
		SizeBytes:         int(hist.TotalBytes()),
		PendingOps:        s.queue.Len(),
		ExpiryRecords:     s.reconciler.OutstandingRecords(),
		ReconcilerRunning: s.reconciler.Running(),
		Metadata: map[string]string{
			"name":              s.name,
			"avg_entry_bytes":   strconv.Itoa(hist.AverageSize()),
			"p99_entry_bytes":   strconv.Itoa(hist.GetPercentileEstimate(99)),
			"median_entry_size": strconv.Itoa(hist.MedianEstimate()),
		},
	}, nil
}
