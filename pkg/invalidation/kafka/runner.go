package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/IBM/sarama"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/mohammed-shakir/osrm-access/internal/cache/keys"
	"github.com/mohammed-shakir/osrm-access/internal/core/observability"
)

// TablePurger drops shared table rows; satisfied by redisstore.Client.
type TablePurger interface {
	DelPrefix(ctx context.Context, prefix string) (int, error)
}

// SessionPurger drops in-process surfaces; satisfied by sessions.Cache.
type SessionPurger interface {
	PurgeProfile(profile string) int
}

type Runner struct {
	log      *slog.Logger
	cfg      InvalidationConfig
	tables   TablePurger
	sessions SessionPurger
	ms       *metricSet
	ver      *versionDedupe
	assigned atomic.Bool
	assignMu sync.RWMutex
	assign   map[int32]struct{}
	wg       sync.WaitGroup
	cancel   context.CancelFunc
}

type Options struct {
	Logger   *slog.Logger
	Register prometheus.Registerer
	Sessions SessionPurger
}

func New(cfg InvalidationConfig, tables TablePurger, opts Options) *Runner {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Runner{
		log:      opts.Logger,
		cfg:      cfg,
		tables:   tables,
		sessions: opts.Sessions,
		ms:       newMetricSet(opts.Register),
		ver:      newVersionDedupe(cfg.DedupeSize),
		assign:   map[int32]struct{}{},
	}
}

func (r *Runner) Start(ctx context.Context) error {
	if !r.cfg.Enabled {
		r.log.Info("invalidation runner disabled")
		return nil
	}
	if r.tables == nil && r.sessions == nil {
		return errors.New("kafka runner: nothing to invalidate")
	}

	ctx, cancel := context.WithCancel(ctx)
	r.cancel = cancel

	cfg := sarama.NewConfig()
	cfg.Version = sarama.V2_5_0_0
	cfg.Consumer.Group.Session.Timeout = r.cfg.SessionTimeout
	cfg.Consumer.Group.Heartbeat.Interval = r.cfg.Heartbeat
	cfg.Consumer.Group.Rebalance.Timeout = r.cfg.RebalanceTimeout
	if r.cfg.InitialOldest {
		cfg.Consumer.Offsets.Initial = sarama.OffsetOldest
	} else {
		cfg.Consumer.Offsets.Initial = sarama.OffsetNewest
	}
	cfg.Consumer.Return.Errors = true

	group, err := sarama.NewConsumerGroup(r.cfg.Brokers, r.cfg.GroupID, cfg)
	if err != nil {
		cancel()
		return fmt.Errorf("consumer group: %w", err)
	}

	h := r.handler()

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer func() {
			if err := group.Close(); err != nil {
				r.log.Error("kafka consumer group close", "err", err)
			}
		}()

		for {
			if err := group.Consume(ctx, []string{r.cfg.Topic}, h); err != nil {
				r.log.Error("kafka consume error", "err", err)
				select {
				case <-time.After(2 * time.Second):
				case <-ctx.Done():
					return
				}
			}
			if ctx.Err() != nil {
				return
			}
		}
	}()

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		for err := range group.Errors() {
			observability.IncKafkaConsumerError("group")
			r.log.Error("kafka group error", "err", err)
		}
	}()

	r.log.Info("kafka invalidation runner started",
		"topic", r.cfg.Topic, "group", r.cfg.GroupID, "brokers", r.cfg.Brokers)
	return nil
}

func (r *Runner) Stop() {
	if r.cancel != nil {
		r.cancel()
	}
	r.wg.Wait()
	r.log.Info("kafka invalidation runner stopped")
}

// Readiness reports whether the group currently holds partitions.
func (r *Runner) Readiness() (ready bool, partitions []int32) {
	if !r.assigned.Load() {
		return false, nil
	}
	r.assignMu.RLock()
	defer r.assignMu.RUnlock()
	for p := range r.assign {
		partitions = append(partitions, p)
	}
	sort.Slice(partitions, func(i, j int) bool { return partitions[i] < partitions[j] })
	return true, partitions
}

func (r *Runner) handler() *groupHandler {
	return &groupHandler{
		setup: func(sess sarama.ConsumerGroupSession) {
			claims := sess.Claims()
			r.assignMu.Lock()
			r.assigned.Store(true)
			r.assign = map[int32]struct{}{}
			for _, parts := range claims {
				for _, p := range parts {
					r.assign[p] = struct{}{}
				}
			}
			r.assignMu.Unlock()
		},
		cleanup: func(sarama.ConsumerGroupSession) {
			r.assignMu.Lock()
			r.assigned.Store(false)
			r.assign = map[int32]struct{}{}
			r.assignMu.Unlock()
		},
		process: r.handleMessage,
	}
}

// handleMessage returns an error only when applying a valid event failed,
// so the offset is not committed and the event is redelivered.
// Undecodable or invalid payloads are counted and skipped.
func (r *Runner) handleMessage(ctx context.Context, msg *sarama.ConsumerMessage) error {
	start := time.Now()

	if !msg.Timestamp.IsZero() {
		r.ms.lagGauge.Set(time.Since(msg.Timestamp).Seconds())
	}

	var ev Event
	if err := json.Unmarshal(msg.Value, &ev); err != nil {
		r.ms.msgs.WithLabelValues("malformed").Inc()
		observability.IncKafkaConsumerError("decode")
		r.log.Warn("dataset event decode failed", "offset", msg.Offset, "partition", msg.Partition, "err", err)
		return nil
	}
	if err := ev.Validate(); err != nil {
		r.ms.msgs.WithLabelValues("malformed").Inc()
		observability.IncKafkaConsumerError("validate")
		r.log.Warn("dataset event rejected", "offset", msg.Offset, "profile", ev.Profile, "err", err)
		return nil
	}
	if ev.TS.IsZero() {
		ev.TS = msg.Timestamp
	}

	err := r.apply(ctx, ev)
	r.observe(ev.Op, err, time.Since(start))
	if err == nil && !ev.TS.IsZero() {
		observability.SetProfileReloadedAt(ev.Profile, ev.TS)
	}
	return err
}

func (r *Runner) apply(ctx context.Context, ev Event) error {
	if ev.Op == OpReload && !r.ver.isNewer(ev.Profile, ev.Version) {
		r.ms.apply.WithLabelValues("skip_version").Inc()
		r.log.Debug("dataset event already applied", "profile", ev.Profile, "version", ev.Version)
		return nil
	}

	if r.tables != nil {
		n, err := r.tables.DelPrefix(ctx, keys.ProfilePrefix(ev.Profile))
		if err != nil {
			return fmt.Errorf("purge table rows for %s: %w", ev.Profile, err)
		}
		r.ms.apply.WithLabelValues("table_rows").Add(float64(n))
	}
	sessions := 0
	if r.sessions != nil {
		sessions = r.sessions.PurgeProfile(ev.Profile)
		r.ms.apply.WithLabelValues("surfaces").Add(float64(sessions))
	}
	if ev.Op == OpReload {
		r.ver.commit(ev.Profile, ev.Version)
	}
	r.log.Info("dataset event applied",
		"op", ev.Op, "profile", ev.Profile, "version", ev.Version, "surfaces", sessions)
	return nil
}

func (r *Runner) observe(op string, err error, dur time.Duration) {
	if err != nil {
		r.ms.msgs.WithLabelValues("error").Inc()
	} else {
		r.ms.msgs.WithLabelValues("ok").Inc()
	}
	r.ms.proc.WithLabelValues(op).Observe(dur.Seconds())
}

type groupHandler struct {
	setup   func(sarama.ConsumerGroupSession)
	cleanup func(sarama.ConsumerGroupSession)
	process func(context.Context, *sarama.ConsumerMessage) error
}

func (h *groupHandler) Setup(sess sarama.ConsumerGroupSession) error {
	if h.setup != nil {
		h.setup(sess)
	}
	return nil
}

func (h *groupHandler) Cleanup(sess sarama.ConsumerGroupSession) error {
	if h.cleanup != nil {
		h.cleanup(sess)
	}
	return nil
}

func (h *groupHandler) ConsumeClaim(sess sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	ctx := sess.Context()
	for msg := range claim.Messages() {
		if err := h.process(ctx, msg); err != nil {
			return err
		}
		sess.MarkMessage(msg, "")
	}
	return nil
}
