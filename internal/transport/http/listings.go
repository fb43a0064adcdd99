package http

import (
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/lebowvsky/atelier-kaisla-sub001/internal/domain/models"
	"github.com/lebowvsky/atelier-kaisla-sub001/internal/lib/logger/sl"
	"github.com/lebowvsky/atelier-kaisla-sub001/internal/transport/http/dto"
	"github.com/lebowvsky/atelier-kaisla-sub001/internal/transport/http/dto/response"
)

// CreateListing godoc
// @Summary Создать позицию каталога
// @Description Создает позицию вместе с изображениями. Файлы передаются в поле images, размеры в поле dimensions (JSON-строка)
// @Tags Каталог
// @Accept multipart/form-data
// @Produce json
// @Param name formData string true "Название"
// @Param description formData string false "Описание"
// @Param price formData integer false "Цена в минимальных единицах"
// @Param dimensions formData string false "Размеры в JSON: width, height, depth, unit"
// @Param images formData file true "Изображения (1..5)"
// @Param cover_index formData integer false "Индекс обложки среди загружаемых файлов"
// @Param alt_text formData []string false "Alt-тексты по позициям файлов"
// @Success 201 {object} dto.ListingResponse
// @Failure 400 {object} response.ErrorResponse "Нарушения валидации"
// @Failure 500 {object} response.ErrorResponse
// @Router /api/v1/listings [post]
func (r *Routers) CreateListing(c echo.Context) error {
	const op = "http.routers.CreateListing"

	log := r.log.With(
		slog.String("op", op),
	)

	var req dto.CreateListingRequest
	if err := c.Bind(&req); err != nil {
		log.Warn("invalid request data", sl.Err(err))
		return c.JSON(http.StatusBadRequest, response.InvalidRequest("invalid request data"))
	}

	if err := c.Validate(req); err != nil {
		log.Warn("validation failed", sl.Err(err))
		return c.JSON(http.StatusBadRequest, response.InvalidRequest(err.Error()))
	}

	upload, err := parseUpload(c)
	if err != nil {
		return r.uploadError(c, log, err)
	}

	listing, err := r.ListingService.CreateListing(c.Request().Context(), req, upload)
	if err != nil {
		return r.fail(c, log, err)
	}

	return c.JSON(http.StatusCreated, listing)
}

// GetListing godoc
// @Summary Получить позицию каталога
// @Tags Каталог
// @Produce json
// @Param id path string true "UUID позиции" format(uuid)
// @Success 200 {object} dto.ListingResponse
// @Failure 400 {object} response.ErrorResponse
// @Failure 404 {object} response.ErrorResponse
// @Router /api/v1/listings/{id} [get]
func (r *Routers) GetListing(c echo.Context) error {
	const op = "http.routers.GetListing"

	log := r.log.With(
		slog.String("op", op),
	)

	id, err := parseID(c, "id")
	if err != nil {
		log.Warn("invalid listing id format", sl.Err(err))
		return c.JSON(http.StatusBadRequest, response.InvalidRequest("invalid listing ID format"))
	}

	listing, err := r.ListingService.GetListing(c.Request().Context(), id)
	if err != nil {
		return r.fail(c, log, err)
	}

	return c.JSON(http.StatusOK, listing)
}

// ListListings godoc
// @Summary Список позиций каталога
// @Tags Каталог
// @Produce json
// @Param limit query int false "Количество элементов" default(20)
// @Success 200 {array} dto.ListingResponse
// @Router /api/v1/listings [get]
func (r *Routers) ListListings(c echo.Context) error {
	const op = "http.routers.ListListings"

	log := r.log.With(
		slog.String("op", op),
	)

	listings, err := r.ListingService.ListListings(c.Request().Context(), queryLimit(c))
	if err != nil {
		return r.fail(c, log, err)
	}

	return c.JSON(http.StatusOK, listings)
}

// UpdateListing godoc
// @Summary Обновить позицию каталога
// @Description Частичное обновление. dimensions: отсутствует - без изменений, null - очистить
// @Tags Каталог
// @Accept json
// @Produce json
// @Param id path string true "UUID позиции" format(uuid)
// @Param request body dto.UpdateListingRequest true "Поля для обновления"
// @Success 200 {object} dto.ListingResponse
// @Failure 400 {object} response.ErrorResponse
// @Failure 404 {object} response.ErrorResponse
// @Router /api/v1/listings/{id} [patch]
func (r *Routers) UpdateListing(c echo.Context) error {
	const op = "http.routers.UpdateListing"

	log := r.log.With(
		slog.String("op", op),
	)

	id, err := parseID(c, "id")
	if err != nil {
		log.Warn("invalid listing id format", sl.Err(err))
		return c.JSON(http.StatusBadRequest, response.InvalidRequest("invalid listing ID format"))
	}

	req := new(dto.UpdateListingRequest)
	if err := c.Bind(req); err != nil {
		log.Warn("invalid request data", sl.Err(err))
		return c.JSON(http.StatusBadRequest, response.InvalidRequest("invalid request data"))
	}

	if err := c.Validate(req); err != nil {
		log.Warn("validation failed", sl.Err(err))
		return c.JSON(http.StatusBadRequest, response.InvalidRequest(err.Error()))
	}

	listing, err := r.ListingService.UpdateListing(c.Request().Context(), id, *req)
	if err != nil {
		return r.fail(c, log, err)
	}

	return c.JSON(http.StatusOK, listing)
}

// DeleteListing godoc
// @Summary Удалить позицию каталога
// @Description Удаляет запись и изображения; файлы удаляются после записи
// @Tags Каталог
// @Param id path string true "UUID позиции" format(uuid)
// @Success 204
// @Failure 400 {object} response.ErrorResponse
// @Failure 404 {object} response.ErrorResponse
// @Router /api/v1/listings/{id} [delete]
func (r *Routers) DeleteListing(c echo.Context) error {
	const op = "http.routers.DeleteListing"

	log := r.log.With(
		slog.String("op", op),
	)

	id, err := parseID(c, "id")
	if err != nil {
		log.Warn("invalid listing id format", sl.Err(err))
		return c.JSON(http.StatusBadRequest, response.InvalidRequest("invalid listing ID format"))
	}

	if err := r.ListingService.DeleteListing(c.Request().Context(), id); err != nil {
		return r.fail(c, log, err)
	}

	return c.NoContent(http.StatusNoContent)
}

// uploadError отличает нарушения формы от нечитаемого multipart-тела
func (r *Routers) uploadError(c echo.Context, log *slog.Logger, err error) error {
	if models.IsValidationError(err) {
		return r.fail(c, log, err)
	}

	log.Warn("failed to read multipart form", sl.Err(err))
	return c.JSON(http.StatusBadRequest, response.InvalidRequest("multipart form expected"))
}
