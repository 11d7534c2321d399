package internal

import (
	"chat-relay/contract"
	"chat-relay/domain/event"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/shirou/gopsutil/process"
)

// DebugServer exposes diagnostics over plain HTTP:
// /healthz for health checks, /stats for the relay rollup and /inspect to list store keys by prefix.
type DebugServer struct {
	log         *slog.Logger
	db          *badger.DB
	stats       contract.StatsProvider
	connections func() int
	startedAt   time.Time
}

func NewDebugServer(log *slog.Logger, db *badger.DB, stats contract.StatsProvider, connections func() int) *DebugServer {
	return &DebugServer{log: log, db: db, stats: stats, connections: connections, startedAt: time.Now()}
}

func (d *DebugServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", d.healthz)
	mux.HandleFunc("/stats", d.statsPage)
	mux.HandleFunc("/inspect", d.inspect)
	return mux
}

func (d *DebugServer) healthz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = fmt.Fprint(w, "OK")
}

func (d *DebugServer) statsPage(w http.ResponseWriter, _ *http.Request) {
	stats, err := d.stats.Stats()
	if err != nil {
		d.log.Error("Stats unavailable", "error", err)
		http.Error(w, "stats unavailable", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	proc := newTable(w, "Process", "Value")
	proc.Append([]string{"Uptime", time.Since(d.startedAt).Round(time.Second).String()})
	proc.Append([]string{"Goroutines", strconv.Itoa(runtime.NumGoroutine())})
	if d.connections != nil {
		proc.Append([]string{"Open connections", strconv.Itoa(d.connections())})
	}
	if rss, cpu, err := selfStats(); err == nil {
		proc.Append([]string{"RSS", fmt.Sprintf("%.1f MB", float64(rss)/1024/1024)})
		proc.Append([]string{"CPU", fmt.Sprintf("%.1f %%", cpu)})
	} else {
		d.log.Debug("Process stats unavailable", "error", err)
	}
	proc.Render()
	_, _ = fmt.Fprintln(w)

	RenderStats(w, event.NewChatStatsResponse(stats))
}

// InspectRow is one store key as listed by /inspect.
type InspectRow struct {
	Key       string
	Namespace string
	Size      int
}

func (d *DebugServer) inspect(w http.ResponseWriter, r *http.Request) {
	prefix := r.URL.Query().Get("prefix")
	if prefix == "" {
		prefix = "room:"
	}

	var rows []InspectRow
	err := d.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek([]byte(prefix)); it.ValidForPrefix([]byte(prefix)); it.Next() {
			item := it.Item()
			rows = append(rows, DefaultMapper(string(item.Key()), int(item.ValueSize())))
		}
		return nil
	})
	if err != nil {
		d.log.Error("Inspect failed", "prefix", prefix, "error", err)
		http.Error(w, "inspect failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	table := newTable(w, "Key", "Namespace", "Size")
	for _, row := range rows {
		table.Append([]string{row.Key, row.Namespace, strconv.Itoa(row.Size)})
	}
	table.Render()
}

func DefaultMapper(key string, size int) InspectRow {
	namespace, _, _ := strings.Cut(key, ":")
	return InspectRow{Key: key, Namespace: namespace, Size: size}
}

// selfStats reads resident memory and cpu usage of the current process.
func selfStats() (uint64, float64, error) {
	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return 0, 0, err
	}
	memInfo, err := p.MemoryInfo()
	if err != nil {
		return 0, 0, err
	}
	cpuPercent, err := p.CPUPercent()
	if err != nil {
		return 0, 0, err
	}
	return memInfo.RSS, cpuPercent, nil
}
