// Package metrics define los colectores Prometheus del cliente de sesión.
//
// Todos los métodos aceptan un receptor nil, así que el resto del código
// puede llamarlos sin chequear si las métricas están habilitadas.
package metrics

import (
	"errors"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type Metrics struct {
	requests     *prometheus.CounterVec
	duration     *prometheus.HistogramVec
	profileCache *prometheus.CounterVec
	clears       *prometheus.CounterVec
	state        *prometheus.GaugeVec
}

// Resultados posibles del caché de perfil.
const (
	CacheHit    = "hit"
	CacheMiss   = "miss"
	CacheShared = "shared" // se unió a un request en vuelo
	CacheForced = "forced"
)

// New registra los colectores en reg (DefaultRegisterer si es nil). Registrar
// dos veces el mismo namespace reutiliza los colectores existentes.
func New(reg prometheus.Registerer, namespace string) (*Metrics, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if namespace == "" {
		namespace = "farmauth"
	}

	m := &Metrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Requests al backend por endpoint, método y status (0 = error de red)",
		}, []string{"endpoint", "method", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Latencia de requests al backend",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
		}, []string{"endpoint", "method"}),
		profileCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "profile_cache_total",
			Help:      "Lecturas de perfil según resultado del caché",
		}, []string{"result"}),
		clears: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_clears_total",
			Help:      "Limpiezas de sesión local por motivo",
		}, []string{"reason"}),
		state: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "session_state",
			Help:      "1 para el estado actual de la sesión, 0 para el resto",
		}, []string{"state"}),
	}

	var err error
	if m.requests, err = register(reg, m.requests); err != nil {
		return nil, err
	}
	if m.duration, err = register(reg, m.duration); err != nil {
		return nil, err
	}
	if m.profileCache, err = register(reg, m.profileCache); err != nil {
		return nil, err
	}
	if m.clears, err = register(reg, m.clears); err != nil {
		return nil, err
	}
	if m.state, err = register(reg, m.state); err != nil {
		return nil, err
	}
	return m, nil
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

// ObserveRequest registra un request terminado.
func (m *Metrics) ObserveRequest(endpoint, method string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(endpoint, method, strconv.Itoa(status)).Inc()
	m.duration.WithLabelValues(endpoint, method).Observe(d.Seconds())
}

func (m *Metrics) ProfileCache(result string) {
	if m == nil {
		return
	}
	m.profileCache.WithLabelValues(result).Inc()
}

func (m *Metrics) SessionCleared(reason string) {
	if m == nil {
		return
	}
	m.clears.WithLabelValues(reason).Inc()
}

// SetState marca current con 1 y el resto de all con 0.
func (m *Metrics) SetState(current string, all []string) {
	if m == nil {
		return
	}
	for _, s := range all {
		v := 0.0
		if s == current {
			v = 1
		}
		m.state.WithLabelValues(s).Set(v)
	}
}
