package cnnevo

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

type metrics struct {
	attempts  prometheus.Counter
	failures  *prometheus.CounterVec
	generated prometheus.Counter
	mutations *prometheus.CounterVec
}

func newMetrics(reg prometheus.Registerer) (*metrics, error) {
	m := &metrics{
		attempts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "cnnevo",
			Name:      "generation_attempts_total",
			Help:      "Generation attempts started, including retries.",
		}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cnnevo",
			Name:      "generation_failures_total",
			Help:      "Generation attempts that produced no genotype, by reason.",
		}, []string{"reason"}),
		generated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "cnnevo",
			Name:      "genotypes_generated_total",
			Help:      "Genotypes produced by generation.",
		}),
		mutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cnnevo",
			Name:      "mutations_total",
			Help:      "Mutation operator applications, by operator and result.",
		}, []string{"operator", "result"}),
	}

	var err error
	if m.attempts, err = register(reg, m.attempts); err != nil {
		return nil, err
	}
	if m.failures, err = register(reg, m.failures); err != nil {
		return nil, err
	}
	if m.generated, err = register(reg, m.generated); err != nil {
		return nil, err
	}
	if m.mutations, err = register(reg, m.mutations); err != nil {
		return nil, err
	}
	return m, nil
}

// register returns the already registered collector when two clients share
// a registerer.
func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var already prometheus.AlreadyRegisteredError
		if errors.As(err, &already) {
			if existing, ok := already.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		var zero C
		return zero, err
	}
	return c, nil
}
