package rules

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	triggersEvaluated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "memoryd_rules_evaluated_total",
		Help: "Number of rule evaluations performed.",
	})
	triggersFired = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "memoryd_triggers_fired_total",
		Help: "Number of rule firings by rule type.",
	}, []string{"rule_type"})
)
