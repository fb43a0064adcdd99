package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"

	"github.com/lebowvsky/atelier-kaisla-sub001/internal/domain/models"
	"github.com/lebowvsky/atelier-kaisla-sub001/internal/lib/logger/handlers/slogdiscard"
	"github.com/lebowvsky/atelier-kaisla-sub001/internal/services/ingestion"
	httprouters "github.com/lebowvsky/atelier-kaisla-sub001/internal/transport/http"
	"github.com/lebowvsky/atelier-kaisla-sub001/internal/transport/http/dto"
	"github.com/lebowvsky/atelier-kaisla-sub001/internal/transport/http/dto/response"
)

type MockListingService struct {
	mock.Mock
}

func (m *MockListingService) CreateListing(ctx context.Context, req dto.CreateListingRequest, upload ingestion.Request) (*dto.ListingResponse, error) {
	args := m.Called(ctx, req, upload)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*dto.ListingResponse), args.Error(1)
}

func (m *MockListingService) GetListing(ctx context.Context, id uuid.UUID) (*dto.ListingResponse, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*dto.ListingResponse), args.Error(1)
}

func (m *MockListingService) ListListings(ctx context.Context, limit int) ([]dto.ListingResponse, error) {
	args := m.Called(ctx, limit)
	return args.Get(0).([]dto.ListingResponse), args.Error(1)
}

func (m *MockListingService) UpdateListing(ctx context.Context, id uuid.UUID, req dto.UpdateListingRequest) (*dto.ListingResponse, error) {
	args := m.Called(ctx, id, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*dto.ListingResponse), args.Error(1)
}

func (m *MockListingService) DeleteListing(ctx context.Context, id uuid.UUID) error {
	return m.Called(ctx, id).Error(0)
}

type MockArticleService struct {
	mock.Mock
}

func (m *MockArticleService) CreateArticle(ctx context.Context, req dto.CreateArticleRequest, upload ingestion.Request) (*dto.ArticleResponse, error) {
	args := m.Called(ctx, req, upload)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*dto.ArticleResponse), args.Error(1)
}

func (m *MockArticleService) GetArticle(ctx context.Context, id uuid.UUID) (*dto.ArticleResponse, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*dto.ArticleResponse), args.Error(1)
}

func (m *MockArticleService) ListArticles(ctx context.Context, limit int, onlyPublished bool) ([]dto.ArticleResponse, error) {
	args := m.Called(ctx, limit, onlyPublished)
	return args.Get(0).([]dto.ArticleResponse), args.Error(1)
}

func (m *MockArticleService) UpdateArticle(ctx context.Context, id uuid.UUID, req dto.UpdateArticleRequest) (*dto.ArticleResponse, error) {
	args := m.Called(ctx, id, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*dto.ArticleResponse), args.Error(1)
}

func (m *MockArticleService) DeleteArticle(ctx context.Context, id uuid.UUID) error {
	return m.Called(ctx, id).Error(0)
}

type MockMediaService struct {
	mock.Mock
}

func (m *MockMediaService) AddMedia(ctx context.Context, ref models.ParentRef, req ingestion.Request) ([]models.MediaAsset, error) {
	args := m.Called(ctx, ref, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.MediaAsset), args.Error(1)
}

func (m *MockMediaService) UpdateMedia(ctx context.Context, ref models.ParentRef, mediaID uuid.UUID, upd models.MediaUpdate) (*models.MediaAsset, error) {
	args := m.Called(ctx, ref, mediaID, upd)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.MediaAsset), args.Error(1)
}

func (m *MockMediaService) DeleteMedia(ctx context.Context, ref models.ParentRef, mediaID uuid.UUID) error {
	return m.Called(ctx, ref, mediaID).Error(0)
}

func (m *MockMediaService) ListMedia(ctx context.Context, ref models.ParentRef) ([]models.MediaAsset, error) {
	args := m.Called(ctx, ref)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.MediaAsset), args.Error(1)
}

type structValidator struct {
	v *validator.Validate
}

func (sv *structValidator) Validate(i interface{}) error {
	return sv.v.Struct(i)
}

type RoutersTestSuite struct {
	suite.Suite
	echo     *echo.Echo
	listings *MockListingService
	articles *MockArticleService
	media    *MockMediaService
}

func (s *RoutersTestSuite) SetupTest() {
	s.listings = new(MockListingService)
	s.articles = new(MockArticleService)
	s.media = new(MockMediaService)

	e := echo.New()
	e.Validator = &structValidator{v: validator.New()}

	routers := httprouters.NewRouter(slogdiscard.NewDiscardLogger(), s.listings, s.articles, s.media)
	routers.Register(e.Group("/api/v1"))

	s.echo = e
}

func (s *RoutersTestSuite) TearDownTest() {
	s.listings.AssertExpectations(s.T())
	s.articles.AssertExpectations(s.T())
	s.media.AssertExpectations(s.T())
}

type formFile struct {
	field       string
	filename    string
	contentType string
	body        string
}

func multipartBody(s *RoutersTestSuite, values map[string][]string, files []formFile) (*bytes.Buffer, string) {
	buf := &bytes.Buffer{}
	w := multipart.NewWriter(buf)

	for field, vals := range values {
		for _, v := range vals {
			s.Require().NoError(w.WriteField(field, v))
		}
	}

	for _, f := range files {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, f.field, f.filename))
		h.Set("Content-Type", f.contentType)
		part, err := w.CreatePart(h)
		s.Require().NoError(err)
		_, err = part.Write([]byte(f.body))
		s.Require().NoError(err)
	}

	s.Require().NoError(w.Close())

	return buf, w.FormDataContentType()
}

func (s *RoutersTestSuite) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.echo.ServeHTTP(rec, req)
	return rec
}

func (s *RoutersTestSuite) jsonRequest(method, target, body string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	return req
}

func (s *RoutersTestSuite) decodeError(rec *httptest.ResponseRecorder) response.ErrorResponse {
	var out response.ErrorResponse
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func (s *RoutersTestSuite) TestCreateListing_Success() {
	body, ct := multipartBody(s, map[string][]string{
		"name":        {"Oak chair"},
		"price":       {"12000"},
		"dimensions":  {`{"width":40,"height":90,"unit":"cm"}`},
		"cover_index": {"1"},
		"alt_text":    {"front", "side"},
	}, []formFile{
		{field: "images", filename: "a.jpg", contentType: "image/jpeg", body: "aaaa"},
		{field: "images", filename: "b.png", contentType: "image/png", body: "bb"},
	})

	id := uuid.New()
	s.listings.On("CreateListing", mock.Anything,
		dto.CreateListingRequest{Name: "Oak chair", Price: 12000},
		mock.MatchedBy(func(u ingestion.Request) bool {
			return len(u.Files) == 2 &&
				u.Files[0].Filename == "a.jpg" &&
				u.Files[0].ContentType == "image/jpeg" &&
				u.Files[0].Size == 4 &&
				u.Files[1].ContentType == "image/png" &&
				u.RawDimensions != nil && *u.RawDimensions == `{"width":40,"height":90,"unit":"cm"}` &&
				u.CoverIndex != nil && *u.CoverIndex == 1 &&
				len(u.AltTexts) == 2 && u.AltTexts[0] == "front"
		}),
	).Return(&dto.ListingResponse{ID: id, Name: "Oak chair"}, nil).Once()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/listings", body)
	req.Header.Set(echo.HeaderContentType, ct)
	rec := s.do(req)

	s.Equal(http.StatusCreated, rec.Code)

	var out dto.ListingResponse
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &out))
	s.Equal(id, out.ID)
}

func (s *RoutersTestSuite) TestCreateListing_AbsentDimensionsStayNil() {
	body, ct := multipartBody(s, map[string][]string{"name": {"Lamp"}}, []formFile{
		{field: "images", filename: "a.jpg", contentType: "image/jpeg", body: "a"},
	})

	s.listings.On("CreateListing", mock.Anything, mock.Anything,
		mock.MatchedBy(func(u ingestion.Request) bool {
			return u.RawDimensions == nil && u.CoverIndex == nil && len(u.AltTexts) == 0
		}),
	).Return(&dto.ListingResponse{Name: "Lamp"}, nil).Once()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/listings", body)
	req.Header.Set(echo.HeaderContentType, ct)

	s.Equal(http.StatusCreated, s.do(req).Code)
}

func (s *RoutersTestSuite) TestCreateListing_MissingName() {
	body, ct := multipartBody(s, map[string][]string{"price": {"10"}}, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/listings", body)
	req.Header.Set(echo.HeaderContentType, ct)
	rec := s.do(req)

	s.Equal(http.StatusBadRequest, rec.Code)
	s.Equal(response.CodeInvalidRequest, s.decodeError(rec).Error)
}

func (s *RoutersTestSuite) TestCreateListing_BadCoverIndex() {
	body, ct := multipartBody(s, map[string][]string{
		"name":        {"Lamp"},
		"cover_index": {"first"},
	}, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/listings", body)
	req.Header.Set(echo.HeaderContentType, ct)
	rec := s.do(req)

	s.Equal(http.StatusBadRequest, rec.Code)
	out := s.decodeError(rec)
	s.Equal(response.CodeValidationFailed, out.Error)
	s.Require().Len(out.Violations, 1)
	s.Equal("cover_index", out.Violations[0].Field)
}

func (s *RoutersTestSuite) TestCreateListing_ErrorMapping() {
	cases := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{
			name: "validation lists every violation",
			err: fmt.Errorf("wrapped: %w", &models.ValidationError{Violations: []models.Violation{
				{Field: "images", Code: models.CodeCount, Message: "too many"},
				{Field: "dimensions.width", Code: models.CodeStructuredField, Message: "must be greater than 0"},
			}}),
			status: http.StatusBadRequest,
			code:   response.CodeValidationFailed,
		},
		{
			name:   "storage failure",
			err:    fmt.Errorf("wrapped: %w", &models.StorageError{Op: "put", Err: errors.New("disk full")}),
			status: http.StatusInternalServerError,
			code:   response.CodeStorageError,
		},
		{
			name:   "persistence failure",
			err:    fmt.Errorf("wrapped: %w", &models.PersistenceError{Err: errors.New("conn reset")}),
			status: http.StatusInternalServerError,
			code:   response.CodePersistenceError,
		},
		{
			name:   "unexpected",
			err:    errors.New("boom"),
			status: http.StatusInternalServerError,
			code:   response.CodeInternalError,
		},
	}

	for _, tc := range cases {
		s.Run(tc.name, func() {
			s.SetupTest()

			body, ct := multipartBody(s, map[string][]string{"name": {"Lamp"}}, []formFile{
				{field: "images", filename: "a.jpg", contentType: "image/jpeg", body: "a"},
			})
			s.listings.On("CreateListing", mock.Anything, mock.Anything, mock.Anything).
				Return(nil, tc.err).Once()

			req := httptest.NewRequest(http.MethodPost, "/api/v1/listings", body)
			req.Header.Set(echo.HeaderContentType, ct)
			rec := s.do(req)

			s.Equal(tc.status, rec.Code)
			out := s.decodeError(rec)
			s.Equal(tc.code, out.Error)
			if tc.code == response.CodeValidationFailed {
				s.Len(out.Violations, 2)
			}
		})
	}
}

func (s *RoutersTestSuite) TestGetListing() {
	s.Run("invalid id", func() {
		rec := s.do(httptest.NewRequest(http.MethodGet, "/api/v1/listings/not-a-uuid", nil))
		s.Equal(http.StatusBadRequest, rec.Code)
	})

	s.Run("not found", func() {
		id := uuid.New()
		s.listings.On("GetListing", mock.Anything, id).
			Return(nil, fmt.Errorf("repo: %w", models.ErrNotFound)).Once()

		rec := s.do(httptest.NewRequest(http.MethodGet, "/api/v1/listings/"+id.String(), nil))
		s.Equal(http.StatusNotFound, rec.Code)
		s.Equal(response.CodeNotFound, s.decodeError(rec).Error)
	})

	s.Run("found", func() {
		id := uuid.New()
		s.listings.On("GetListing", mock.Anything, id).
			Return(&dto.ListingResponse{ID: id, Media: []dto.MediaResponse{{URL: "http://cdn/listings/k.jpg"}}}, nil).Once()

		rec := s.do(httptest.NewRequest(http.MethodGet, "/api/v1/listings/"+id.String(), nil))
		s.Equal(http.StatusOK, rec.Code)
		s.Contains(rec.Body.String(), "http://cdn/listings/k.jpg")
	})
}

func (s *RoutersTestSuite) TestListListings_PassesLimit() {
	s.listings.On("ListListings", mock.Anything, 5).Return([]dto.ListingResponse{}, nil).Once()

	rec := s.do(httptest.NewRequest(http.MethodGet, "/api/v1/listings?limit=5", nil))
	s.Equal(http.StatusOK, rec.Code)
}

func (s *RoutersTestSuite) TestUpdateListing_NullDimensions() {
	id := uuid.New()
	s.listings.On("UpdateListing", mock.Anything, id, mock.MatchedBy(func(req dto.UpdateListingRequest) bool {
		return req.Name != nil && *req.Name == "New" && string(req.Dimensions) == "null"
	})).Return(&dto.ListingResponse{ID: id, Name: "New"}, nil).Once()

	rec := s.do(s.jsonRequest(http.MethodPatch, "/api/v1/listings/"+id.String(), `{"name":"New","dimensions":null}`))
	s.Equal(http.StatusOK, rec.Code)
}

func (s *RoutersTestSuite) TestUpdateListing_RejectsNegativePrice() {
	id := uuid.New()

	rec := s.do(s.jsonRequest(http.MethodPatch, "/api/v1/listings/"+id.String(), `{"price":-1}`))
	s.Equal(http.StatusBadRequest, rec.Code)
}

func (s *RoutersTestSuite) TestDeleteListing() {
	id := uuid.New()
	s.listings.On("DeleteListing", mock.Anything, id).Return(nil).Once()

	rec := s.do(httptest.NewRequest(http.MethodDelete, "/api/v1/listings/"+id.String(), nil))
	s.Equal(http.StatusNoContent, rec.Code)
}

func (s *RoutersTestSuite) TestCreateArticle() {
	body, ct := multipartBody(s, map[string][]string{
		"title":     {"Spring collection"},
		"published": {"true"},
	}, []formFile{
		{field: "images", filename: "hero.webp", contentType: "image/webp", body: "w"},
	})

	s.articles.On("CreateArticle", mock.Anything,
		dto.CreateArticleRequest{Title: "Spring collection", Published: true},
		mock.MatchedBy(func(u ingestion.Request) bool { return len(u.Files) == 1 }),
	).Return(&dto.ArticleResponse{Title: "Spring collection"}, nil).Once()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/articles", body)
	req.Header.Set(echo.HeaderContentType, ct)

	s.Equal(http.StatusCreated, s.do(req).Code)
}

func (s *RoutersTestSuite) TestListArticles_PublishedFilter() {
	s.articles.On("ListArticles", mock.Anything, 0, true).Return([]dto.ArticleResponse{}, nil).Once()

	rec := s.do(httptest.NewRequest(http.MethodGet, "/api/v1/articles?published=true", nil))
	s.Equal(http.StatusOK, rec.Code)
}

func (s *RoutersTestSuite) TestAddMedia_UsesRouteKind() {
	id := uuid.New()
	body, ct := multipartBody(s, nil, []formFile{
		{field: "images", filename: "a.jpg", contentType: "image/jpeg", body: "a"},
	})

	ref := models.ParentRef{Kind: models.ParentArticle, ID: id}
	s.media.On("AddMedia", mock.Anything, ref, mock.MatchedBy(func(u ingestion.Request) bool {
		return len(u.Files) == 1
	})).Return([]models.MediaAsset{{ID: uuid.New(), ParentKind: models.ParentArticle, ParentID: id, SortOrder: 3, URL: "u"}}, nil).Once()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/articles/"+id.String()+"/media", body)
	req.Header.Set(echo.HeaderContentType, ct)
	rec := s.do(req)

	s.Equal(http.StatusCreated, rec.Code)

	var out []dto.MediaResponse
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &out))
	s.Require().Len(out, 1)
	s.Equal(3, out[0].SortOrder)
	s.NotContains(rec.Body.String(), "storage_key")
}

func (s *RoutersTestSuite) TestAddMedia_CapacityExceeded() {
	id := uuid.New()
	body, ct := multipartBody(s, nil, []formFile{
		{field: "images", filename: "a.jpg", contentType: "image/jpeg", body: "a"},
	})

	s.media.On("AddMedia", mock.Anything, models.ParentRef{Kind: models.ParentListing, ID: id}, mock.Anything).
		Return(nil, &models.ValidationError{Violations: []models.Violation{
			{Field: "images", Code: models.CodeCapacityExceeded, Message: "collection is full"},
		}}).Once()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/listings/"+id.String()+"/media", body)
	req.Header.Set(echo.HeaderContentType, ct)
	rec := s.do(req)

	s.Equal(http.StatusBadRequest, rec.Code)
	s.Equal(models.CodeCapacityExceeded, s.decodeError(rec).Violations[0].Code)
}

func (s *RoutersTestSuite) TestAddMedia_NotMultipart() {
	id := uuid.New()

	rec := s.do(s.jsonRequest(http.MethodPost, "/api/v1/listings/"+id.String()+"/media", `{}`))
	s.Equal(http.StatusBadRequest, rec.Code)
	s.Equal(response.CodeInvalidRequest, s.decodeError(rec).Error)
}

func (s *RoutersTestSuite) TestUpdateMedia_SetCover() {
	id, mediaID := uuid.New(), uuid.New()
	isCover := true

	s.media.On("UpdateMedia", mock.Anything, models.ParentRef{Kind: models.ParentListing, ID: id}, mediaID,
		models.MediaUpdate{IsCover: &isCover},
	).Return(&models.MediaAsset{ID: mediaID, IsCover: true, URL: "u"}, nil).Once()

	rec := s.do(s.jsonRequest(http.MethodPatch,
		"/api/v1/listings/"+id.String()+"/media/"+mediaID.String(), `{"is_cover":true}`))

	s.Equal(http.StatusOK, rec.Code)

	var out dto.MediaResponse
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &out))
	s.True(out.IsCover)
}

func (s *RoutersTestSuite) TestUpdateMedia_InvalidMediaID() {
	id := uuid.New()

	rec := s.do(s.jsonRequest(http.MethodPatch, "/api/v1/listings/"+id.String()+"/media/nope", `{}`))
	s.Equal(http.StatusBadRequest, rec.Code)
}

func (s *RoutersTestSuite) TestDeleteMedia() {
	id, mediaID := uuid.New(), uuid.New()
	ref := models.ParentRef{Kind: models.ParentListing, ID: id}

	s.media.On("DeleteMedia", mock.Anything, ref, mediaID).Return(nil).Once()

	rec := s.do(httptest.NewRequest(http.MethodDelete, "/api/v1/listings/"+id.String()+"/media/"+mediaID.String(), nil))
	s.Equal(http.StatusNoContent, rec.Code)
}

func (s *RoutersTestSuite) TestDeleteMedia_NotFound() {
	id, mediaID := uuid.New(), uuid.New()

	s.media.On("DeleteMedia", mock.Anything, mock.Anything, mediaID).Return(models.ErrNotFound).Once()

	rec := s.do(httptest.NewRequest(http.MethodDelete, "/api/v1/listings/"+id.String()+"/media/"+mediaID.String(), nil))
	s.Equal(http.StatusNotFound, rec.Code)
}

func (s *RoutersTestSuite) TestListMedia() {
	id := uuid.New()
	s.media.On("ListMedia", mock.Anything, models.ParentRef{Kind: models.ParentListing, ID: id}).
		Return([]models.MediaAsset{{ID: uuid.New()}, {ID: uuid.New()}}, nil).Once()

	rec := s.do(httptest.NewRequest(http.MethodGet, "/api/v1/listings/"+id.String()+"/media", nil))
	s.Equal(http.StatusOK, rec.Code)
}

func TestRoutersTestSuite(t *testing.T) {
	suite.Run(t, new(RoutersTestSuite))
}
