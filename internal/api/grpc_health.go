package api

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
)

// FulfillmentService - имя сервиса в gRPC health
const FulfillmentService = "barback.Fulfillment"

// Pinger - зависимость, доступность которой определяет готовность сервиса
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthServer публикует состояние хранилища через стандартный gRPC health
type HealthServer struct {
	server *health.Server
	store  Pinger
	log    *logrus.Entry
}

// NewHealthServer создает health-сервер; до первой проверки статус NOT_SERVING
func NewHealthServer(store Pinger, log *logrus.Entry) *HealthServer {
	hs := &HealthServer{
		server: health.NewServer(),
		store:  store,
		log:    log.WithField("component", "grpc_health"),
	}
	hs.set(grpc_health_v1.HealthCheckResponse_NOT_SERVING)
	return hs
}

// Register регистрирует сервис health на gRPC сервере
func (hs *HealthServer) Register(s *grpc.Server) {
	grpc_health_v1.RegisterHealthServer(s, hs.server)
}

// CheckStore проверяет хранилище один раз и обновляет статус
func (hs *HealthServer) CheckStore(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	if err := hs.store.Ping(ctx); err != nil {
		hs.log.WithError(err).Warn("⚠️ Хранилище недоступно")
		hs.set(grpc_health_v1.HealthCheckResponse_NOT_SERVING)
		return false
	}
	hs.set(grpc_health_v1.HealthCheckResponse_SERVING)
	return true
}

// Watch проверяет хранилище каждые interval до отмены ctx
func (hs *HealthServer) Watch(ctx context.Context, interval time.Duration) {
	hs.CheckStore(ctx)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			// Переводит всех наблюдателей в NOT_SERVING
			hs.server.Shutdown()
			return
		case <-ticker.C:
			hs.CheckStore(ctx)
		}
	}
}

func (hs *HealthServer) set(status grpc_health_v1.HealthCheckResponse_ServingStatus) {
	hs.server.SetServingStatus("", status)
	hs.server.SetServingStatus(FulfillmentService, status)
}
