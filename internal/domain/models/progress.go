package models

import (
	"sync/atomic"
	"time"
)

// Progress - живой счетчик хода обработки одного запуска синхронизации.
// Обновляется конкурентно воркерами конвейера, читается оркестратором.
type Progress struct {
	Total   int64
	valid   atomic.Int64
	invalid atomic.Int64

	StartedAt  time.Time
	FinishedAt time.Time
}

// NewProgress создает счетчик для батча из total элементов.
func NewProgress(total int) *Progress {
	return &Progress{
		Total:     int64(total),
		StartedAt: time.Now().UTC(),
	}
}

// AddValid учитывает успешно обработанный элемент.
func (p *Progress) AddValid() {
	p.valid.Add(1)
}

// AddInvalid учитывает отброшенный элемент.
func (p *Progress) AddInvalid() {
	p.invalid.Add(1)
}

// Valid возвращает число успешно обработанных элементов.
func (p *Progress) Valid() int {
	return int(p.valid.Load())
}

// Invalid возвращает число отброшенных элементов.
func (p *Progress) Invalid() int {
	return int(p.invalid.Load())
}

// Finish фиксирует момент завершения обработки.
func (p *Progress) Finish() {
	p.FinishedAt = time.Now().UTC()
}

// Duration возвращает длительность обработки.
func (p *Progress) Duration() time.Duration {
	end := p.FinishedAt
	if end.IsZero() {
		end = time.Now().UTC()
	}
	return end.Sub(p.StartedAt)
}
