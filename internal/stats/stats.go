package stats

import (
	"encoding/json"
	"expvar"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

const mapName = "anonchat-stats"

// Metric names shared by the server components.
const (
	MetricMessagesSent  = "MessagesSent"
	MetricFilesUploaded = "FilesUploaded"
	MetricRoomsCreated  = "RoomsCreated"
	MetricRoomsDeleted  = "RoomsDeleted"
	MetricPolls         = "MessagePolls"
	MetricRateLimited   = "RateLimited"
)

type StatsProvider interface {
	Incr(name string)
	Decr(name string)
	RegisterMetric(name string)
	Run()
}

type StatsUpdater struct {
	log        zerolog.Logger
	vars       *expvar.Map
	updateChan chan *metricsUpdateReq
}

type metricsUpdateReq struct {
	name  string
	value int
}

func (su *StatsUpdater) expvarHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	expvarData := make(map[string]any)
	su.vars.Do(func(kv expvar.KeyValue) {
		var value any
		json.Unmarshal([]byte(kv.Value.String()), &value)
		expvarData[kv.Key] = value
	})

	json.NewEncoder(w).Encode(expvarData)
}

// publishedMap returns the process-wide stats map, resetting it when it was
// already published. expvar panics on duplicate names.
func publishedMap() *expvar.Map {
	if v, ok := expvar.Get(mapName).(*expvar.Map); ok {
		return v.Init()
	}
	return expvar.NewMap(mapName)
}

// NewStatsUpdater creates a new stats updater instance and serves its
// counters at GET /debug/vars on mux.
func NewStatsUpdater(mux *http.ServeMux, logger zerolog.Logger) *StatsUpdater {
	su := &StatsUpdater{
		log:        logger.With().Str("component", "stats").Logger(),
		updateChan: make(chan *metricsUpdateReq, 512),
	}
	mux.Handle("GET /debug/vars", http.HandlerFunc(su.expvarHandler))
	su.vars = publishedMap()
	su.initializeMetrics()

	return su
}

func (su *StatsUpdater) initializeMetrics() {
	startTime := time.Now()
	su.vars.Set("Uptime", expvar.Func(func() any {
		return time.Since(startTime).Milliseconds()
	}))

	for _, name := range []string{
		MetricMessagesSent,
		MetricFilesUploaded,
		MetricRoomsCreated,
		MetricRoomsDeleted,
		MetricPolls,
		MetricRateLimited,
	} {
		su.RegisterMetric(name)
	}
}

func (su *StatsUpdater) updateMetrics() {
	for req := range su.updateChan {
		metric, ok := su.vars.Get(req.name).(*expvar.Int)
		if !ok {
			su.log.Warn().Str("metric", req.name).Msg("update of unregistered metric")
			continue
		}

		metric.Add(int64(req.value))
	}
}

func (su *StatsUpdater) Incr(name string) {
	su.updateChan <- &metricsUpdateReq{name: name, value: 1}
}

func (su *StatsUpdater) Decr(name string) {
	su.updateChan <- &metricsUpdateReq{name: name, value: -1}
}

func (su *StatsUpdater) RegisterMetric(name string) {
	su.vars.Set(name, new(expvar.Int))
}

func (su *StatsUpdater) Run() {
	go su.updateMetrics()
}

func (su *StatsUpdater) Stop() {
	close(su.updateChan)
}
