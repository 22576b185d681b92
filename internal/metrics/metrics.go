// Package metrics exposes prometheus counters for the article write path.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	OpSave    = "save"
	OpRestore = "restore"
	OpAdd     = "add"
	OpRemove  = "remove"
)

// Recorder is what the services report to.
type Recorder interface {
	RecordCreate()
	RecordAppend(op string)
	RecordConflict(op string)
	RecordCollaboratorChange(op string)
	RecordInconsistencies(count int)
}

type Collector struct {
	creates         prometheus.Counter
	appends         *prometheus.CounterVec
	conflicts       *prometheus.CounterVec
	collaborators   *prometheus.CounterVec
	inconsistencies prometheus.Gauge
}

func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		creates: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "coauthor_articles_created_total",
			Help: "Articles created.",
		}),
		appends: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "coauthor_versions_appended_total",
			Help: "Versions appended, by operation.",
		}, []string{"op"}),
		conflicts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "coauthor_version_conflicts_total",
			Help: "Appends rejected because the expected version was stale.",
		}, []string{"op"}),
		collaborators: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "coauthor_collaborator_changes_total",
			Help: "Collaborator edges added or removed.",
		}, []string{"op"}),
		inconsistencies: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "coauthor_inconsistent_articles",
			Help: "Articles whose head disagreed with the version log at the last audit.",
		}),
	}
	reg.MustRegister(c.creates, c.appends, c.conflicts, c.collaborators, c.inconsistencies)
	return c
}

func (c *Collector) RecordCreate() {
	c.creates.Inc()
}

func (c *Collector) RecordAppend(op string) {
	c.appends.WithLabelValues(op).Inc()
}

func (c *Collector) RecordConflict(op string) {
	c.conflicts.WithLabelValues(op).Inc()
}

func (c *Collector) RecordCollaboratorChange(op string) {
	c.collaborators.WithLabelValues(op).Inc()
}

func (c *Collector) RecordInconsistencies(count int) {
	c.inconsistencies.Set(float64(count))
}

// Handler serves the prometheus exposition format.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

type noop struct{}

func NewNoop() Recorder {
	return noop{}
}

func (noop) RecordCreate()                      {}
func (noop) RecordAppend(op string)             {}
func (noop) RecordConflict(op string)           {}
func (noop) RecordCollaboratorChange(op string) {}
func (noop) RecordInconsistencies(count int)    {}
