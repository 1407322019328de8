// Package metrics 采集任务与清理任务的 Prometheus 指标
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const (
	MetricCollectRunsTotal     = "kickoff_collect_runs_total"
	MetricCollectRunDuration   = "kickoff_collect_run_duration_seconds"
	MetricSourceFetchTotal     = "kickoff_source_fetch_total"
	MetricArticlesFetchedTotal = "kickoff_articles_fetched_total"
	MetricArticlesUniqueTotal  = "kickoff_articles_unique_total"
	MetricArticlesSavedTotal   = "kickoff_articles_saved_total"
	MetricArticlesSweptTotal   = "kickoff_articles_swept_total"
)

const (
	StatusSuccess = "success"
	StatusFailure = "failure"
)

// Metrics 所有方法对 nil 接收者安全，未启用指标时直接传 nil
type Metrics struct {
	runsTotal     *prometheus.CounterVec
	runDuration   prometheus.Histogram
	sourceFetches *prometheus.CounterVec
	fetched       prometheus.Counter
	unique        prometheus.Counter
	saved         prometheus.Counter
	swept         prometheus.Counter
}

// New 创建指标但不注册，调用 Register 注册到指定 registry
func New() *Metrics {
	return &Metrics{
		runsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricCollectRunsTotal,
				Help: "Total number of collection runs by status",
			},
			[]string{"status"},
		),
		runDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    MetricCollectRunDuration,
				Help:    "Histogram of collection run duration in seconds",
				Buckets: []float64{0.5, 1, 2, 5, 10, 20, 30, 60, 120},
			},
		),
		sourceFetches: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricSourceFetchTotal,
				Help: "Total number of feed fetches by source and status",
			},
			[]string{"source", "status"},
		),
		fetched: prometheus.NewCounter(prometheus.CounterOpts{
			Name: MetricArticlesFetchedTotal,
			Help: "Total number of raw feed items fetched",
		}),
		unique: prometheus.NewCounter(prometheus.CounterOpts{
			Name: MetricArticlesUniqueTotal,
			Help: "Total number of cluster representatives after deduplication",
		}),
		saved: prometheus.NewCounter(prometheus.CounterOpts{
			Name: MetricArticlesSavedTotal,
			Help: "Total number of articles newly persisted",
		}),
		swept: prometheus.NewCounter(prometheus.CounterOpts{
			Name: MetricArticlesSweptTotal,
			Help: "Total number of articles removed by retention",
		}),
	}
}

func (m *Metrics) Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.runsTotal,
		m.runDuration,
		m.sourceFetches,
		m.fetched,
		m.unique,
		m.saved,
		m.swept,
	}
}

func (m *Metrics) Register(reg prometheus.Registerer) error {
	for _, c := range m.Collectors() {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// ObserveRun 记录一次采集任务的结果与耗时
func (m *Metrics) ObserveRun(status string, seconds float64) {
	if m == nil {
		return
	}
	m.runsTotal.WithLabelValues(status).Inc()
	m.runDuration.Observe(seconds)
}

func (m *Metrics) IncSourceFetch(source, status string) {
	if m == nil {
		return
	}
	m.sourceFetches.WithLabelValues(source, status).Inc()
}

// AddArticles 累加本轮抓取、去重后与新写入的条数
func (m *Metrics) AddArticles(fetched, unique, saved int) {
	if m == nil {
		return
	}
	m.fetched.Add(float64(fetched))
	m.unique.Add(float64(unique))
	m.saved.Add(float64(saved))
}

func (m *Metrics) AddSwept(n int64) {
	if m == nil {
		return
	}
	m.swept.Add(float64(n))
}
