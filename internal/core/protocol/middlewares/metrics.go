package middlewares

import (
	"context"
	"sync"
	"time"

	"github.com/zeusync/reefrush/internal/core/protocol"
)

// MetricsMiddleware counts handled messages per type.
type MetricsMiddleware struct {
	messageMetrics sync.Map // message type -> *messageTypeMetrics
}

type messageTypeMetrics struct {
	mu        sync.Mutex
	count     int64
	errors    int64
	totalTime time.Duration
}

// TypeMetrics is a point-in-time copy of the counters of one message type.
type TypeMetrics struct {
	Count       int64
	Errors      int64
	AverageTime time.Duration
}

func NewMetricsMiddleware() *MetricsMiddleware {
	return &MetricsMiddleware{}
}

func (m *MetricsMiddleware) Name() string { return "metrics" }

func (m *MetricsMiddleware) Priority() uint16 {
	return 100 // Low priority, runs last
}

func (m *MetricsMiddleware) BeforeHandle(context.Context, Peer, protocol.Message) error {
	return nil
}

func (m *MetricsMiddleware) AfterHandle(_ context.Context, _ Peer, msg protocol.Message, elapsed time.Duration, err error) {
	v, _ := m.messageMetrics.LoadOrStore(msg.Type, &messageTypeMetrics{})
	metrics := v.(*messageTypeMetrics)

	metrics.mu.Lock()
	metrics.count++
	metrics.totalTime += elapsed
	if err != nil {
		metrics.errors++
	}
	metrics.mu.Unlock()
}

func (m *MetricsMiddleware) OnConnect(context.Context, Peer) {}

func (m *MetricsMiddleware) OnDisconnect(context.Context, Peer, string) {}

// GetMetrics returns collected metrics
func (m *MetricsMiddleware) GetMetrics() map[protocol.Type]TypeMetrics {
	result := make(map[protocol.Type]TypeMetrics)
	m.messageMetrics.Range(func(key, value any) bool {
		metrics := value.(*messageTypeMetrics)

		metrics.mu.Lock()
		tm := TypeMetrics{Count: metrics.count, Errors: metrics.errors}
		if metrics.count > 0 {
			tm.AverageTime = metrics.totalTime / time.Duration(metrics.count)
		}
		metrics.mu.Unlock()

		result[key.(protocol.Type)] = tm
		return true
	})
	return result
}
