package api

import (
	"time"

	"github.com/jeovahfialho/capgains-ledger/internal/domain"
	"github.com/jeovahfialho/capgains-ledger/internal/service"
	"github.com/jeovahfialho/capgains-ledger/internal/taxlot"
)

type ComputeRequest struct {
	Trades   []domain.TradeRecord `json:"trades"`
	Year     *int                 `json:"year,omitempty"`
	Taxpayer string               `json:"taxpayer,omitempty"`
	Rates    *taxlot.Rates        `json:"rates,omitempty"`
}

type ComputeResponse struct {
	Entries        []domain.GainEntry `json:"entries"`
	OpenLots       []domain.OpenLot   `json:"openLots"`
	Totals         domain.Totals      `json:"totals"`
	Accepted       int                `json:"accepted"`
	Skipped        int                `json:"skipped"`
	Form           *domain.TaxForm    `json:"form,omitempty"`
	Estimate       *service.Estimate  `json:"estimate,omitempty"`
	ProcessingTime string             `json:"processing_time,omitempty"`
}

type LedgerResponse struct {
	Token    string             `json:"token,omitempty"`
	Entries  []domain.GainEntry `json:"entries"`
	Count    int                `json:"count"`
	Accepted int                `json:"accepted"`
	Skipped  int                `json:"skipped"`
}

type OpenLotsResponse struct {
	Token string           `json:"token,omitempty"`
	Lots  []domain.OpenLot `json:"lots"`
	Count int              `json:"count"`
}

type AggregateResponse struct {
	Token string `json:"token,omitempty"`
	domain.Totals
}

type YearsResponse struct {
	Years []int `json:"years"`
}

type HealthResponse struct {
	Status    string                   `json:"status"`
	Version   string                   `json:"version"`
	Timestamp time.Time                `json:"timestamp"`
	Services  map[string]ServiceHealth `json:"services,omitempty"`
}

type ServiceHealth struct {
	Status  string `json:"status"`
	Latency string `json:"latency,omitempty"`
	Error   string `json:"error,omitempty"`
}

type SystemStatsResponse struct {
	Database *DatabaseStats `json:"database,omitempty"`
	Cache    *CacheStats    `json:"cache,omitempty"`
	API      APIStats       `json:"api"`
}

type DatabaseStats struct {
	Trades            int64  `json:"trades"`
	ActiveConnections int32  `json:"active_connections"`
	IdleConnections   int32  `json:"idle_connections"`
	TotalConnections  int32  `json:"total_connections"`
	WaitCount         int64  `json:"wait_count"`
	WaitDuration      string `json:"wait_duration"`
}

type CacheStats struct {
	Keys int64 `json:"keys"`
}

type APIStats struct {
	MemoryUsed       string `json:"memory_used"`
	ActiveGoroutines int    `json:"active_goroutines"`
}

type ErrorResponse struct {
	Error     string    `json:"error"`
	Code      int       `json:"code"`
	RequestID string    `json:"request_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

type LoadDataRequest struct {
	Files []string `json:"files" validate:"required"`
	Async bool     `json:"async"`
}

type LoadDataResponse struct {
	JobID   string               `json:"job_id,omitempty"`
	Status  string               `json:"status"`
	Message string               `json:"message"`
	Summary *service.LoadSummary `json:"summary,omitempty"`
}
