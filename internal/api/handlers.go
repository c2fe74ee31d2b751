package api

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/jeovahfialho/capgains-ledger/internal/export"
	"github.com/jeovahfialho/capgains-ledger/internal/service"
	"github.com/jeovahfialho/capgains-ledger/internal/storage/cache"
	"github.com/jeovahfialho/capgains-ledger/internal/storage/postgres"
	"github.com/jeovahfialho/capgains-ledger/internal/taxlot"
	"github.com/jeovahfialho/capgains-ledger/pkg/logger"
	"go.uber.org/zap"
)

const version = "1.0.0"

type Handler struct {
	db               *postgres.DB
	cacheService     *cache.RedisCache
	ledgerService    *service.LedgerService
	taxService       *service.TaxService
	ingestionService *service.IngestionService
}

// NewHandler aceita db e cacheService nil: sem eles só /compute e as
// rotas de saúde funcionam por completo.
func NewHandler(
	db *postgres.DB,
	cacheService *cache.RedisCache,
	ledgerService *service.LedgerService,
	taxService *service.TaxService,
	ingestionService *service.IngestionService,
) *Handler {
	return &Handler{
		db:               db,
		cacheService:     cacheService,
		ledgerService:    ledgerService,
		taxService:       taxService,
		ingestionService: ingestionService,
	}
}

func (h *Handler) fail(c *fiber.Ctx, code int, message string) error {
	return c.Status(code).JSON(ErrorResponse{
		Error:     message,
		Code:      code,
		RequestID: getRequestID(c),
		Timestamp: time.Now(),
	})
}

// failFrom traduz erros de serviço: ano ou alíquota inválidos viram 400, o
// resto 500.
func (h *Handler) failFrom(c *fiber.Ctx, err error, message string) error {
	if errors.Is(err, service.ErrInvalidYear) || errors.Is(err, service.ErrInvalidRate) {
		return h.fail(c, fiber.StatusBadRequest, err.Error())
	}

	logger.WithContext(c.UserContext()).Error(message, zap.Error(err))
	return h.fail(c, fiber.StatusInternalServerError, message)
}

func (h *Handler) Compute(c *fiber.Ctx) error {
	start := time.Now()

	var req ComputeRequest
	if err := c.BodyParser(&req); err != nil {
		return h.fail(c, fiber.StatusBadRequest, "corpo da requisição inválido")
	}

	result := h.ledgerService.Compute(req.Trades)

	response := ComputeResponse{
		Entries:  result.Entries,
		OpenLots: result.OpenLots,
		Totals:   taxlot.Aggregate(result.Entries),
		Accepted: result.Accepted,
		Skipped:  result.Skipped,
	}

	if req.Year != nil {
		form, estimate, err := h.taxService.FormFor(result.Entries, *req.Year, req.Taxpayer, req.Rates)
		if err != nil {
			return h.failFrom(c, err, "erro ao montar formulário")
		}
		response.Form = &form
		response.Estimate = &estimate
	}

	response.ProcessingTime = time.Since(start).String()

	logger.WithContext(c.UserContext()).Info("livro calculado",
		zap.Int("trades", len(req.Trades)),
		zap.Int("entries", len(result.Entries)),
		zap.Int("skipped", result.Skipped))

	return c.JSON(response)
}

func (h *Handler) GetLedger(c *fiber.Ctx) error {
	token := c.Query("token")

	result, err := h.ledgerService.Result(c.UserContext(), token)
	if err != nil {
		return h.failFrom(c, err, "erro ao calcular livro de ganhos")
	}

	return c.JSON(LedgerResponse{
		Token:    token,
		Entries:  result.Entries,
		Count:    len(result.Entries),
		Accepted: result.Accepted,
		Skipped:  result.Skipped,
	})
}

func (h *Handler) GetOpenLots(c *fiber.Ctx) error {
	token := c.Query("token")

	lots, err := h.ledgerService.OpenLots(c.UserContext(), token)
	if err != nil {
		return h.failFrom(c, err, "erro ao buscar lotes abertos")
	}

	return c.JSON(OpenLotsResponse{
		Token: token,
		Lots:  lots,
		Count: len(lots),
	})
}

func (h *Handler) GetAggregate(c *fiber.Ctx) error {
	token := c.Query("token")

	totals, err := h.ledgerService.Aggregate(c.UserContext(), token)
	if err != nil {
		return h.failFrom(c, err, "erro ao agregar ganhos")
	}

	return c.JSON(AggregateResponse{Token: token, Totals: totals})
}

func (h *Handler) GetYears(c *fiber.Ctx) error {
	years, err := h.ledgerService.Years(c.UserContext())
	if err != nil {
		return h.failFrom(c, err, "erro ao listar anos fiscais")
	}

	return c.JSON(YearsResponse{Years: years})
}

func (h *Handler) GetForm(c *fiber.Ctx) error {
	year, err := service.ParseYear(c.Params("year"))
	if err != nil {
		return h.fail(c, fiber.StatusBadRequest, err.Error())
	}

	form, err := h.taxService.Form(c.UserContext(), year, c.Query("taxpayer"))
	if err != nil {
		return h.failFrom(c, err, "erro ao montar formulário")
	}

	return c.JSON(form)
}

func (h *Handler) GetEstimate(c *fiber.Ctx) error {
	year, err := service.ParseYear(c.Params("year"))
	if err != nil {
		return h.fail(c, fiber.StatusBadRequest, err.Error())
	}

	rates, err := h.ratesFromQuery(c)
	if err != nil {
		return h.fail(c, fiber.StatusBadRequest, err.Error())
	}

	estimate, err := h.taxService.Estimate(c.UserContext(), year, c.Query("taxpayer"), rates)
	if err != nil {
		return h.failFrom(c, err, "erro ao estimar imposto")
	}

	return c.JSON(estimate)
}

// ratesFromQuery lê ?short=&long=; o que faltar vem da configuração.
func (h *Handler) ratesFromQuery(c *fiber.Ctx) (*taxlot.Rates, error) {
	return service.ParseRates(c.Query("short"), c.Query("long"), h.taxService.Rates())
}

func (h *Handler) ExportCSV(c *fiber.Ctx) error {
	var buf bytes.Buffer
	if err := h.taxService.ExportCSV(c.UserContext(), &buf, c.Query("token")); err != nil {
		return h.failFrom(c, err, "erro ao exportar CSV")
	}

	return sendAttachment(c, export.CSVContentType, export.CSVFilename, buf.Bytes())
}

func (h *Handler) ExportFormJSON(c *fiber.Ctx) error {
	year, err := service.ParseYear(c.Params("year"))
	if err != nil {
		return h.fail(c, fiber.StatusBadRequest, err.Error())
	}

	var buf bytes.Buffer
	if err := h.taxService.ExportFormJSON(c.UserContext(), &buf, year, c.Query("taxpayer")); err != nil {
		return h.failFrom(c, err, "erro ao exportar formulário")
	}

	return sendAttachment(c, export.JSONContentType, export.FormJSONFilename(year), buf.Bytes())
}

func (h *Handler) ExportFormHTML(c *fiber.Ctx) error {
	year, err := service.ParseYear(c.Params("year"))
	if err != nil {
		return h.fail(c, fiber.StatusBadRequest, err.Error())
	}

	rates, err := h.ratesFromQuery(c)
	if err != nil {
		return h.fail(c, fiber.StatusBadRequest, err.Error())
	}

	var buf bytes.Buffer
	if err := h.taxService.ExportFormHTML(c.UserContext(), &buf, year, c.Query("taxpayer"), rates); err != nil {
		return h.failFrom(c, err, "erro ao gerar relatório")
	}

	// abre no navegador para impressão
	c.Set(fiber.HeaderContentType, export.HTMLContentType)
	return c.Send(buf.Bytes())
}

func sendAttachment(c *fiber.Ctx, contentType, filename string, body []byte) error {
	c.Set(fiber.HeaderContentType, contentType)
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf(`attachment; filename="%s"`, filename))
	return c.Send(body)
}

func (h *Handler) HealthCheck(c *fiber.Ctx) error {
	return c.JSON(HealthResponse{
		Status:    "healthy",
		Version:   version,
		Timestamp: time.Now(),
	})
}

func (h *Handler) ReadinessCheck(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 5*time.Second)
	defer cancel()

	services := make(map[string]ServiceHealth)

	if h.db == nil {
		services["database"] = ServiceHealth{Status: "unhealthy", Error: "não configurado"}
	} else {
		services["database"] = probe(ctx, h.db.HealthCheck)
	}

	// sem Redis a API responde, só que sem cache
	if h.cacheService != nil {
		services["redis"] = probe(ctx, h.cacheService.HealthCheck)
	} else {
		services["redis"] = ServiceHealth{Status: "disabled"}
	}

	status := "ready"
	if services["database"].Status != "healthy" {
		status = "not_ready"
	}

	response := HealthResponse{
		Status:    status,
		Version:   version,
		Timestamp: time.Now(),
		Services:  services,
	}

	if status != "ready" {
		return c.Status(fiber.StatusServiceUnavailable).JSON(response)
	}

	return c.JSON(response)
}

func probe(ctx context.Context, check func(context.Context) error) ServiceHealth {
	start := time.Now()
	if err := check(ctx); err != nil {
		return ServiceHealth{Status: "unhealthy", Error: err.Error()}
	}
	return ServiceHealth{Status: "healthy", Latency: time.Since(start).String()}
}

func (h *Handler) InvalidateCache(c *fiber.Ctx) error {
	pattern := cache.Pattern(c.Params("pattern", "*"))

	if err := h.ingestionService.InvalidateCache(c.UserContext(), pattern); err != nil {
		return h.failFrom(c, err, "erro ao invalidar cache")
	}

	return c.JSON(fiber.Map{
		"status":  "success",
		"message": fmt.Sprintf("cache invalidado para padrão: %s", pattern),
	})
}

func (h *Handler) GetSystemStats(c *fiber.Ctx) error {
	ctx := c.UserContext()

	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	response := SystemStatsResponse{
		API: APIStats{
			MemoryUsed:       fmt.Sprintf("%d MB", m.Alloc/1024/1024),
			ActiveGoroutines: runtime.NumGoroutine(),
		},
	}

	if h.db != nil {
		dbStats := h.db.Stats()
		trades, err := postgres.NewTradeRepository(h.db).Count(ctx)
		if err != nil {
			logger.Warn("erro ao contar trades", zap.Error(err))
		}
		response.Database = &DatabaseStats{
			Trades:            trades,
			ActiveConnections: dbStats.AcquiredConns(),
			IdleConnections:   dbStats.IdleConns(),
			TotalConnections:  dbStats.TotalConns(),
			WaitCount:         dbStats.EmptyAcquireCount(),
			WaitDuration:      dbStats.AcquireDuration().String(),
		}
	}

	if h.cacheService != nil {
		stats, err := h.cacheService.Stats(ctx)
		if err != nil {
			logger.Warn("erro ao ler estatísticas do cache", zap.Error(err))
		}
		response.Cache = &CacheStats{Keys: stats.Keys}
	}

	return c.JSON(response)
}

func (h *Handler) LoadData(c *fiber.Ctx) error {
	var req LoadDataRequest
	if err := c.BodyParser(&req); err != nil || len(req.Files) == 0 {
		return h.fail(c, fiber.StatusBadRequest, "corpo da requisição inválido: informe files")
	}

	for i, f := range req.Files {
		req.Files[i] = strings.TrimSpace(f)
	}

	if req.Async {
		jobID := generateJobID()

		go func() {
			ctx := logger.ContextWithRequestID(context.Background(), jobID)
			summary, err := h.ingestionService.LoadFiles(ctx, req.Files)
			if err != nil {
				logger.Error("erro ao processar carga",
					zap.Strings("files", req.Files),
					zap.String("job_id", jobID),
					zap.Error(err))
				return
			}
			logger.Info("carga processada com sucesso",
				zap.String("job_id", jobID),
				zap.Int64("inserted", summary.Inserted))
		}()

		return c.Status(fiber.StatusAccepted).JSON(LoadDataResponse{
			JobID:   jobID,
			Status:  "processing",
			Message: "processamento iniciado",
		})
	}

	summary, err := h.ingestionService.LoadFiles(c.UserContext(), req.Files)
	if err != nil {
		return h.failFrom(c, err, "erro ao processar arquivos")
	}

	return c.JSON(LoadDataResponse{
		Status:  "completed",
		Message: "arquivos processados",
		Summary: summary,
	})
}

func generateJobID() string {
	return "job_" + uuid.NewString()
}

func getRequestID(c *fiber.Ctx) string {
	if id, ok := c.Locals("requestID").(string); ok {
		return id
	}
	return ""
}
