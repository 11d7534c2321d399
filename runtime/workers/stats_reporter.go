package workers

import (
	"chat-relay/contract"
	"context"
	"log/slog"
	"time"
)

// StatsReporterWorker logs the stats rollup at a fixed interval.
type StatsReporterWorker struct {
	log      *slog.Logger
	stats    contract.StatsProvider
	interval time.Duration
}

func NewStatsReporterWorker(log *slog.Logger, stats contract.StatsProvider, interval time.Duration) *StatsReporterWorker {
	return &StatsReporterWorker{log: log, stats: stats, interval: interval}
}

func (w *StatsReporterWorker) Name() string {
	return "stats"
}

func (w *StatsReporterWorker) Run(ctx context.Context) error {
	startTime := time.Now()
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			w.report(startTime)
		}
	}
}

func (w *StatsReporterWorker) report(startTime time.Time) {
	stats, err := w.stats.Stats()
	if err != nil {
		w.log.Error("Stats unavailable", "error", err)
		return
	}
	w.log.Info("Relay stats",
		"uptime", time.Since(startTime).Round(time.Second).String(),
		"connected_users", stats.ConnectedUsers,
		"total_messages", stats.TotalMessages,
		"total_rooms", stats.TotalRooms,
		"active_private_chats", stats.ActivePrivateChats,
	)
}
