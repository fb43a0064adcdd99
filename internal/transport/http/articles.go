package http

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/lebowvsky/atelier-kaisla-sub001/internal/lib/logger/sl"
	"github.com/lebowvsky/atelier-kaisla-sub001/internal/transport/http/dto"
	"github.com/lebowvsky/atelier-kaisla-sub001/internal/transport/http/dto/response"
)

// CreateArticle godoc
// @Summary Создать статью
// @Description Создает статью вместе с изображениями. Поле dimensions для статей игнорируется
// @Tags Статьи
// @Accept multipart/form-data
// @Produce json
// @Param title formData string true "Заголовок"
// @Param content formData string false "Текст статьи"
// @Param published formData boolean false "Опубликована"
// @Param images formData file true "Изображения (1..5)"
// @Param cover_index formData integer false "Индекс обложки среди загружаемых файлов"
// @Param alt_text formData []string false "Alt-тексты по позициям файлов"
// @Success 201 {object} dto.ArticleResponse
// @Failure 400 {object} response.ErrorResponse "Нарушения валидации"
// @Failure 500 {object} response.ErrorResponse
// @Router /api/v1/articles [post]
func (r *Routers) CreateArticle(c echo.Context) error {
	const op = "http.routers.CreateArticle"

	log := r.log.With(
		slog.String("op", op),
	)

	var req dto.CreateArticleRequest
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

	article, err := r.ArticleService.CreateArticle(c.Request().Context(), req, upload)
	if err != nil {
		return r.fail(c, log, err)
	}

	return c.JSON(http.StatusCreated, article)
}

// GetArticle godoc
// @Summary Получить статью
// @Tags Статьи
// @Produce json
// @Param id path string true "UUID статьи" format(uuid)
// @Success 200 {object} dto.ArticleResponse
// @Failure 400 {object} response.ErrorResponse
// @Failure 404 {object} response.ErrorResponse
// @Router /api/v1/articles/{id} [get]
func (r *Routers) GetArticle(c echo.Context) error {
	const op = "http.routers.GetArticle"

	log := r.log.With(
		slog.String("op", op),
	)

	id, err := parseID(c, "id")
	if err != nil {
		log.Warn("invalid article id format", sl.Err(err))
		return c.JSON(http.StatusBadRequest, response.InvalidRequest("invalid article ID format"))
	}

	article, err := r.ArticleService.GetArticle(c.Request().Context(), id)
	if err != nil {
		return r.fail(c, log, err)
	}

	return c.JSON(http.StatusOK, article)
}

// ListArticles godoc
// @Summary Список статей
// @Tags Статьи
// @Produce json
// @Param limit query int false "Количество элементов" default(20)
// @Param published query bool false "Только опубликованные"
// @Success 200 {array} dto.ArticleResponse
// @Router /api/v1/articles [get]
func (r *Routers) ListArticles(c echo.Context) error {
	const op = "http.routers.ListArticles"

	log := r.log.With(
		slog.String("op", op),
	)

	onlyPublished, _ := strconv.ParseBool(c.QueryParam("published"))

	articles, err := r.ArticleService.ListArticles(c.Request().Context(), queryLimit(c), onlyPublished)
	if err != nil {
		return r.fail(c, log, err)
	}

	return c.JSON(http.StatusOK, articles)
}

// UpdateArticle godoc
// @Summary Обновить статью
// @Description Частичное обновление заголовка, текста и флага публикации
// @Tags Статьи
// @Accept json
// @Produce json
// @Param id path string true "UUID статьи" format(uuid)
// @Param request body dto.UpdateArticleRequest true "Поля для обновления"
// @Success 200 {object} dto.ArticleResponse
// @Failure 400 {object} response.ErrorResponse
// @Failure 404 {object} response.ErrorResponse
// @Router /api/v1/articles/{id} [patch]
func (r *Routers) UpdateArticle(c echo.Context) error {
	const op = "http.routers.UpdateArticle"

	log := r.log.With(
		slog.String("op", op),
	)

	id, err := parseID(c, "id")
	if err != nil {
		log.Warn("invalid article id format", sl.Err(err))
		return c.JSON(http.StatusBadRequest, response.InvalidRequest("invalid article ID format"))
	}

	req := new(dto.UpdateArticleRequest)
	if err := c.Bind(req); err != nil {
		log.Warn("invalid request data", sl.Err(err))
		return c.JSON(http.StatusBadRequest, response.InvalidRequest("invalid request data"))
	}

	if err := c.Validate(req); err != nil {
		log.Warn("validation failed", sl.Err(err))
		return c.JSON(http.StatusBadRequest, response.InvalidRequest(err.Error()))
	}

	article, err := r.ArticleService.UpdateArticle(c.Request().Context(), id, *req)
	if err != nil {
		return r.fail(c, log, err)
	}

	return c.JSON(http.StatusOK, article)
}

// DeleteArticle godoc
// @Summary Удалить статью
// @Tags Статьи
// @Param id path string true "UUID статьи" format(uuid)
// @Success 204
// @Failure 400 {object} response.ErrorResponse
// @Failure 404 {object} response.ErrorResponse
// @Router /api/v1/articles/{id} [delete]
func (r *Routers) DeleteArticle(c echo.Context) error {
	const op = "http.routers.DeleteArticle"

	log := r.log.With(
		slog.String("op", op),
	)

	id, err := parseID(c, "id")
	if err != nil {
		log.Warn("invalid article id format", sl.Err(err))
		return c.JSON(http.StatusBadRequest, response.InvalidRequest("invalid article ID format"))
	}

	if err := r.ArticleService.DeleteArticle(c.Request().Context(), id); err != nil {
		return r.fail(c, log, err)
	}

	return c.NoContent(http.StatusNoContent)
}
