package api

import (
	"strings"

	"reportdesk/core/audit"
	"reportdesk/core/incidents"
	"reportdesk/core/rbac"

	"github.com/prometheus/client_golang/prometheus"
)

type auditMetricsCollector struct {
	dispatcher *audit.Dispatcher

	queuedDesc       *prometheus.Desc
	writtenDesc      *prometheus.Desc
	failedDesc       *prometheus.Desc
	deadLetteredDesc *prometheus.Desc
	replayedDesc     *prometheus.Desc
}

func newAuditMetricsCollector(d *audit.Dispatcher) prometheus.Collector {
	return &auditMetricsCollector{
		dispatcher: d,
		queuedDesc: prometheus.NewDesc(
			"reportdesk_audit_queue_length",
			"Audit entries waiting in the dispatcher queue.",
			nil,
			nil,
		),
		writtenDesc: prometheus.NewDesc(
			"reportdesk_audit_written_total",
			"Audit entries written to the audit log.",
			nil,
			nil,
		),
		failedDesc: prometheus.NewDesc(
			"reportdesk_audit_failed_total",
			"Failed audit write attempts.",
			nil,
			nil,
		),
		deadLetteredDesc: prometheus.NewDesc(
			"reportdesk_audit_dead_lettered_total",
			"Audit entries moved to the dead letter table.",
			nil,
			nil,
		),
		replayedDesc: prometheus.NewDesc(
			"reportdesk_audit_replayed_total",
			"Dead-lettered audit entries written on replay.",
			nil,
			nil,
		),
	}
}

func (c *auditMetricsCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.queuedDesc
	ch <- c.writtenDesc
	ch <- c.failedDesc
	ch <- c.deadLetteredDesc
	ch <- c.replayedDesc
}

func (c *auditMetricsCollector) Collect(ch chan<- prometheus.Metric) {
	if c == nil || c.dispatcher == nil {
		return
	}
	snap := c.dispatcher.StatsSnapshot()
	ch <- prometheus.MustNewConstMetric(c.queuedDesc, prometheus.GaugeValue, float64(snap.Queued))
	ch <- prometheus.MustNewConstMetric(c.writtenDesc, prometheus.CounterValue, float64(snap.Written))
	ch <- prometheus.MustNewConstMetric(c.failedDesc, prometheus.CounterValue, float64(snap.Failed))
	ch <- prometheus.MustNewConstMetric(c.deadLetteredDesc, prometheus.CounterValue, float64(snap.DeadLettered))
	ch <- prometheus.MustNewConstMetric(c.replayedDesc, prometheus.CounterValue, float64(snap.Replayed))
}

type authzMetricsCollector struct {
	engine *rbac.Engine

	decisionsDesc *prometheus.Desc
}

func newAuthzMetricsCollector(engine *rbac.Engine) prometheus.Collector {
	return &authzMetricsCollector{
		engine: engine,
		decisionsDesc: prometheus.NewDesc(
			"reportdesk_authz_decisions_total",
			"Authorization checks by check name and outcome (allowed, denied, error).",
			[]string{"check", "outcome"},
			nil,
		),
	}
}

func (c *authzMetricsCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.decisionsDesc
}

func (c *authzMetricsCollector) Collect(ch chan<- prometheus.Metric) {
	if c == nil || c.engine == nil {
		return
	}
	for check, n := range c.engine.StatsSnapshot() {
		ch <- prometheus.MustNewConstMetric(c.decisionsDesc, prometheus.CounterValue, float64(n.Allowed), check, "allowed")
		ch <- prometheus.MustNewConstMetric(c.decisionsDesc, prometheus.CounterValue, float64(n.Denied), check, "denied")
		ch <- prometheus.MustNewConstMetric(c.decisionsDesc, prometheus.CounterValue, float64(n.Errors), check, "error")
	}
}

type incidentsMetricsCollector struct {
	svc *incidents.Service

	transitionsDesc *prometheus.Desc
}

func newIncidentsMetricsCollector(svc *incidents.Service) prometheus.Collector {
	return &incidentsMetricsCollector{
		svc: svc,
		transitionsDesc: prometheus.NewDesc(
			"reportdesk_incident_transitions_total",
			"Applied incident state transitions.",
			[]string{"from", "to"},
			nil,
		),
	}
}

func (c *incidentsMetricsCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.transitionsDesc
}

func (c *incidentsMetricsCollector) Collect(ch chan<- prometheus.Metric) {
	if c == nil || c.svc == nil {
		return
	}
	for key, n := range c.svc.TransitionsSnapshot() {
		from, to, ok := strings.Cut(key, "->")
		if !ok {
			continue
		}
		ch <- prometheus.MustNewConstMetric(c.transitionsDesc, prometheus.CounterValue, float64(n), from, to)
	}
}
