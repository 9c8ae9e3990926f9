package events

import (
	"context"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"taskhub/internal/logger"
)

var (
	subscribers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "taskhub_event_subscribers",
		Help: "Number of active change feed subscribers",
	})

	droppedEvents = promauto.NewCounter(prometheus.CounterOpts{
		Name: "taskhub_events_dropped_total",
		Help: "Events dropped because a subscriber buffer was full",
	})
)

const writeTimeout = 5 * time.Second

// Hello - первое сообщение после подключения; после него подписка уже активна
type Hello struct {
	Type string `json:"type"`
}

// Handler отдаёт поток событий по WebSocket
func Handler(bus *Bus) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			OriginPatterns: []string{"*"},
		})
		if err != nil {
			logger.Error(r.Context(), err, "Ошибка подключения WebSocket")
			return
		}
		defer conn.CloseNow()

		events, unsubscribe := bus.Subscribe(64)
		defer unsubscribe()

		// входящие сообщения не нужны, чтение только отслеживает закрытие
		ctx := conn.CloseRead(context.Background())

		logger.Debug(ctx, "Подписчик подключен", "remote", r.RemoteAddr)

		if err := writeJSON(ctx, conn, Hello{Type: "hello"}); err != nil {
			return
		}

		for {
			select {
			case <-ctx.Done():
				logger.Debug(context.Background(), "Подписчик отключился", "remote", r.RemoteAddr)
				return
			case e, ok := <-events:
				if !ok {
					conn.Close(websocket.StatusGoingAway, "server shutting down")
					return
				}
				if err := writeJSON(ctx, conn, e); err != nil {
					logger.Debug(context.Background(), "Ошибка отправки события", "error", err)
					return
				}
			}
		}
	}
}

func writeJSON(ctx context.Context, conn *websocket.Conn, v any) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return wsjson.Write(ctx, conn, v)
}
