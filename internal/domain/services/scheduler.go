package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/weni-ai/catalog-sync/internal/adapters/messaging"
	"github.com/weni-ai/catalog-sync/pkg/interfaces"
)

// SyncTask - сообщение-триггер запуска синхронизации.
// Несет только идентификатор приложения и режим, никакие данные
// продуктов через брокер не передаются.
type SyncTask struct {
	AppID   string   `json:"app_id"`
	Mode    string   `json:"mode"`
	Sellers []string `json:"sellers,omitempty"`
	// NotBefore - момент, раньше которого задачу не стоит выполнять;
	// потребитель досыпает остаток сам
	NotBefore time.Time `json:"not_before,omitempty"`
}

// CatalogEvent - событие жизненного цикла каталога для нижестоящих
// потребителей
type CatalogEvent struct {
	Event             string    `json:"event"`
	AppID             string    `json:"app_id"`
	ExternalCatalogID string    `json:"external_catalog_id"`
	OccurredAt        time.Time `json:"occurred_at"`
}

// DefaultScheduleDelay - задержка перед запуском по вебхуку, дает
// шанс нескольким подряд идущим вебхукам скоалесцироваться в одну партию
const DefaultScheduleDelay = 5 * time.Second

// Scheduler планирует фоновые запуски синхронизации через брокер
// сообщений. Ключом партиционирования служит ID приложения: задачи
// одного приложения обрабатываются по порядку.
type Scheduler struct {
	messaging interfaces.MessagingPort
	delay     time.Duration
	logger    interfaces.LoggerPort
}

// NewScheduler создает планировщик запусков
func NewScheduler(m interfaces.MessagingPort, logger interfaces.LoggerPort) *Scheduler {
	return &Scheduler{
		messaging: m,
		delay:     DefaultScheduleDelay,
		logger:    logger,
	}
}

// Schedule публикует задачу запуска синхронизации приложения
func (s *Scheduler) Schedule(ctx context.Context, appID, mode string, sellers []string) error {
	task := SyncTask{
		AppID:     appID,
		Mode:      mode,
		Sellers:   sellers,
		NotBefore: time.Now().UTC().Add(s.delay),
	}
	payload, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("failed to marshal sync task: %w", err)
	}

	if err := s.messaging.PublishWithKey(ctx, messaging.SyncTasksTopic, appID, payload); err != nil {
		return fmt.Errorf("failed to publish sync task: %w", err)
	}

	s.logger.DebugWithContext(ctx, "запуск синхронизации запланирован",
		interfaces.LogField{Key: "app_id", Value: appID},
		interfaces.LogField{Key: "mode", Value: mode},
	)
	return nil
}

// NotifyCatalogCreated публикует событие создания каталога
func (s *Scheduler) NotifyCatalogCreated(ctx context.Context, appID, externalCatalogID string) error {
	return s.publishEvent(ctx, messaging.CatalogCreatedEvent, appID, externalCatalogID)
}

// NotifyCatalogActivated публикует событие активации каталога
func (s *Scheduler) NotifyCatalogActivated(ctx context.Context, appID, externalCatalogID string) error {
	return s.publishEvent(ctx, messaging.CatalogActivatedEvent, appID, externalCatalogID)
}

// NotifySyncCompleted публикует событие завершения успешного запуска
func (s *Scheduler) NotifySyncCompleted(ctx context.Context, appID string) error {
	return s.publishEvent(ctx, messaging.SyncCompletedEvent, appID, "")
}

func (s *Scheduler) publishEvent(ctx context.Context, name messaging.KafkaEvent, appID, externalCatalogID string) error {
	event := CatalogEvent{
		Event:             name,
		AppID:             appID,
		ExternalCatalogID: externalCatalogID,
		OccurredAt:        time.Now().UTC(),
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal catalog event: %w", err)
	}
	return s.messaging.PublishWithKey(ctx, messaging.CatalogEventsTopic, appID, payload)
}
