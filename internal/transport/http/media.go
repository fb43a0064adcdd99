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

// Обработчики медиа общие для всех видов сущностей, вид фиксируется при регистрации маршрута.

func (r *Routers) parentRef(c echo.Context, log *slog.Logger, kind models.ParentKind) (models.ParentRef, bool) {
	id, err := parseID(c, "id")
	if err != nil {
		log.Warn("invalid parent id format", sl.Err(err))
		return models.ParentRef{}, false
	}

	return models.ParentRef{Kind: kind, ID: id}, true
}

// ListMedia godoc
// @Summary Изображения сущности
// @Tags Медиа
// @Produce json
// @Param id path string true "UUID сущности" format(uuid)
// @Success 200 {array} dto.MediaResponse
// @Failure 404 {object} response.ErrorResponse
// @Router /api/v1/listings/{id}/media [get]
// @Router /api/v1/articles/{id}/media [get]
func (r *Routers) ListMedia(kind models.ParentKind) echo.HandlerFunc {
	const op = "http.routers.ListMedia"

	return func(c echo.Context) error {
		log := r.log.With(
			slog.String("op", op),
			slog.String("kind", string(kind)),
		)

		ref, ok := r.parentRef(c, log, kind)
		if !ok {
			return c.JSON(http.StatusBadRequest, response.InvalidRequest("invalid ID format"))
		}

		assets, err := r.MediaService.ListMedia(c.Request().Context(), ref)
		if err != nil {
			return r.fail(c, log, err)
		}

		return c.JSON(http.StatusOK, dto.NewMediaResponses(assets))
	}
}

// AddMedia godoc
// @Summary Добавить изображения
// @Description Догружает изображения к существующей сущности в пределах емкости коллекции
// @Tags Медиа
// @Accept multipart/form-data
// @Produce json
// @Param id path string true "UUID сущности" format(uuid)
// @Param images formData file true "Изображения"
// @Param cover_index formData integer false "Индекс новой обложки среди загружаемых файлов"
// @Param alt_text formData []string false "Alt-тексты по позициям файлов"
// @Success 201 {array} dto.MediaResponse
// @Failure 400 {object} response.ErrorResponse
// @Failure 404 {object} response.ErrorResponse
// @Failure 500 {object} response.ErrorResponse
// @Router /api/v1/listings/{id}/media [post]
// @Router /api/v1/articles/{id}/media [post]
func (r *Routers) AddMedia(kind models.ParentKind) echo.HandlerFunc {
	const op = "http.routers.AddMedia"

	return func(c echo.Context) error {
		log := r.log.With(
			slog.String("op", op),
			slog.String("kind", string(kind)),
		)

		ref, ok := r.parentRef(c, log, kind)
		if !ok {
			return c.JSON(http.StatusBadRequest, response.InvalidRequest("invalid ID format"))
		}

		upload, err := parseUpload(c)
		if err != nil {
			return r.uploadError(c, log, err)
		}

		assets, err := r.MediaService.AddMedia(c.Request().Context(), ref, upload)
		if err != nil {
			return r.fail(c, log, err)
		}

		log.Info("media added", slog.String("parent", ref.String()), slog.Int("count", len(assets)))

		return c.JSON(http.StatusCreated, dto.NewMediaResponses(assets))
	}
}

// UpdateMedia godoc
// @Summary Обновить метаданные изображения
// @Description is_cover=true снимает флаг с предыдущей обложки
// @Tags Медиа
// @Accept json
// @Produce json
// @Param id path string true "UUID сущности" format(uuid)
// @Param media_id path string true "UUID изображения" format(uuid)
// @Param request body dto.UpdateMediaRequest true "Поля для обновления"
// @Success 200 {object} dto.MediaResponse
// @Failure 400 {object} response.ErrorResponse
// @Failure 404 {object} response.ErrorResponse
// @Router /api/v1/listings/{id}/media/{media_id} [patch]
// @Router /api/v1/articles/{id}/media/{media_id} [patch]
func (r *Routers) UpdateMedia(kind models.ParentKind) echo.HandlerFunc {
	const op = "http.routers.UpdateMedia"

	return func(c echo.Context) error {
		log := r.log.With(
			slog.String("op", op),
			slog.String("kind", string(kind)),
		)

		ref, ok := r.parentRef(c, log, kind)
		if !ok {
			return c.JSON(http.StatusBadRequest, response.InvalidRequest("invalid ID format"))
		}

		mediaID, err := parseID(c, "media_id")
		if err != nil {
			log.Warn("invalid media id format", sl.Err(err))
			return c.JSON(http.StatusBadRequest, response.InvalidRequest("invalid media ID format"))
		}

		req := new(dto.UpdateMediaRequest)
		if err := c.Bind(req); err != nil {
			log.Warn("invalid request data", sl.Err(err))
			return c.JSON(http.StatusBadRequest, response.InvalidRequest("invalid request data"))
		}

		if err := c.Validate(req); err != nil {
			log.Warn("validation failed", sl.Err(err))
			return c.JSON(http.StatusBadRequest, response.InvalidRequest(err.Error()))
		}

		asset, err := r.MediaService.UpdateMedia(c.Request().Context(), ref, mediaID, req.ToDomain())
		if err != nil {
			return r.fail(c, log, err)
		}

		return c.JSON(http.StatusOK, dto.NewMediaResponse(*asset))
	}
}

// DeleteMedia godoc
// @Summary Удалить изображение
// @Description Запись удаляется всегда, ошибка удаления файла только логируется. Обложка не переназначается
// @Tags Медиа
// @Param id path string true "UUID сущности" format(uuid)
// @Param media_id path string true "UUID изображения" format(uuid)
// @Success 204
// @Failure 400 {object} response.ErrorResponse
// @Failure 404 {object} response.ErrorResponse
// @Router /api/v1/listings/{id}/media/{media_id} [delete]
// @Router /api/v1/articles/{id}/media/{media_id} [delete]
func (r *Routers) DeleteMedia(kind models.ParentKind) echo.HandlerFunc {
	const op = "http.routers.DeleteMedia"

	return func(c echo.Context) error {
		log := r.log.With(
			slog.String("op", op),
			slog.String("kind", string(kind)),
		)

		ref, ok := r.parentRef(c, log, kind)
		if !ok {
			return c.JSON(http.StatusBadRequest, response.InvalidRequest("invalid ID format"))
		}

		mediaID, err := parseID(c, "media_id")
		if err != nil {
			log.Warn("invalid media id format", sl.Err(err))
			return c.JSON(http.StatusBadRequest, response.InvalidRequest("invalid media ID format"))
		}

		if err := r.MediaService.DeleteMedia(c.Request().Context(), ref, mediaID); err != nil {
			return r.fail(c, log, err)
		}

		return c.NoContent(http.StatusNoContent)
	}
}
