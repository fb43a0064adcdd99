package ingestion

import (
	"fmt"
	"io"
	"log/slog"
	"mime"
	"mime/multipart"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-playground/validator/v10"

	"github.com/lebowvsky/atelier-kaisla-sub001/internal/domain/models"
)

const maxAltTextLen = 255

// Rules задает ограничения для входящих файлов
type Rules struct {
	MaxFileSize       int64
	MaxFilesCreate    int
	MaxFilesPerEntity int
	AllowedTypes      []string
	SniffContent      bool
}

// File описывает файл-кандидат. Open нужен только для проверки содержимого.
type File struct {
	Filename    string
	ContentType string
	Size        int64
	Open        func() (io.ReadCloser, error)
}

func FromMultipart(fh *multipart.FileHeader) File {
	return File{
		Filename:    fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
		Size:        fh.Size,
		Open: func() (io.ReadCloser, error) {
			return fh.Open()
		},
	}
}

// Request исходные, еще не проверенные данные загрузки
type Request struct {
	Files []File
	// RawDimensions равен nil, если поле не передавалось
	RawDimensions *string
	CoverIndex    *int
	AltTexts      []string
}

// Batch проверенная загрузка, готовая для координатора
type Batch struct {
	Files      []File
	Dimensions *models.Dimensions
	CoverIndex *int
	AltTexts   []string
}

func (b *Batch) AltText(i int) string {
	if i < len(b.AltTexts) {
		return b.AltTexts[i]
	}
	return ""
}

type Validator struct {
	log      *slog.Logger
	validate *validator.Validate
	rules    Rules
	allowed  map[string]bool
}

func New(log *slog.Logger, rules Rules) *Validator {
	allowed := make(map[string]bool, len(rules.AllowedTypes))
	for _, t := range rules.AllowedTypes {
		allowed[strings.ToLower(t)] = true
	}

	return &Validator{
		log:      log,
		validate: newStructValidator(),
		rules:    rules,
		allowed:  allowed,
	}
}

func (v *Validator) Rules() Rules {
	return v.rules
}

// ValidateCreate проверяет пакет файлов для создания новой сущности
func (v *Validator) ValidateCreate(req Request) (*Batch, error) {
	const op = "ingestion.Validator.ValidateCreate"

	return v.run(op, req, v.rules.MaxFilesCreate, false)
}

// ValidateAppend проверяет пакет для добавления к существующей коллекции
// из existing элементов. Верхняя граница равна оставшейся емкости.
// MaxFilesPerEntity <= 0 снимает ограничение емкости, тогда за один запрос
// принимается не больше MaxFilesCreate файлов.
func (v *Validator) ValidateAppend(req Request, existing int) (*Batch, error) {
	const op = "ingestion.Validator.ValidateAppend"

	if v.rules.MaxFilesPerEntity <= 0 {
		return v.run(op, req, v.rules.MaxFilesCreate, false)
	}

	remaining := v.rules.MaxFilesPerEntity - existing
	if remaining < 0 {
		remaining = 0
	}

	return v.run(op, req, remaining, true)
}

// ValidateDimensions проверяет только структурированное поле, для обновлений без файлов
func (v *Validator) ValidateDimensions(raw *string) (*models.Dimensions, error) {
	res := ParseDimensions(v.validate, raw)
	if !res.OK() {
		return nil, &models.ValidationError{Violations: res.Violations}
	}

	return res.Value, nil
}

func (v *Validator) run(op string, req Request, maxCount int, capacityBound bool) (*Batch, error) {
	log := v.log.With(
		slog.String("op", op),
		slog.Int("files", len(req.Files)),
	)

	var violations []models.Violation

	violations = append(violations, v.checkCount(len(req.Files), maxCount, capacityBound)...)
	for i, f := range req.Files {
		violations = append(violations, v.checkFile(i, f)...)
	}

	dims := ParseDimensions(v.validate, req.RawDimensions)
	violations = append(violations, dims.Violations...)

	violations = append(violations, checkCoverIndex(req.CoverIndex, len(req.Files))...)
	violations = append(violations, checkAltTexts(req.AltTexts, len(req.Files))...)

	if len(violations) > 0 {
		log.Info("upload rejected",
			slog.Int("violations", len(violations)),
			slog.String("dimensions", quote(req.RawDimensions)),
		)
		return nil, &models.ValidationError{Violations: violations}
	}

	log.Debug("upload accepted")

	return &Batch{
		Files:      req.Files,
		Dimensions: dims.Value,
		CoverIndex: req.CoverIndex,
		AltTexts:   req.AltTexts,
	}, nil
}

func (v *Validator) checkCount(n, maxCount int, capacityBound bool) []models.Violation {
	if capacityBound && maxCount == 0 {
		return []models.Violation{{
			Field:   "images",
			Code:    models.CodeCapacityExceeded,
			Message: fmt.Sprintf("collection already holds the maximum of %d images", v.rules.MaxFilesPerEntity),
		}}
	}

	if n < 1 || n > maxCount {
		return []models.Violation{{
			Field:   "images",
			Code:    models.CodeCount,
			Message: fmt.Sprintf("expected between 1 and %d files, got %d", maxCount, n),
		}}
	}

	return nil
}

func (v *Validator) checkFile(i int, f File) []models.Violation {
	field := fmt.Sprintf("images[%d]", i)
	var out []models.Violation

	switch {
	case f.Size <= 0:
		out = append(out, models.Violation{Field: field, Code: models.CodeSize, Message: "file is empty"})
	case f.Size > v.rules.MaxFileSize:
		out = append(out, models.Violation{
			Field:   field,
			Code:    models.CodeSize,
			Message: fmt.Sprintf("file size %d exceeds limit of %d bytes", f.Size, v.rules.MaxFileSize),
		})
	}

	mediaType, _, err := mime.ParseMediaType(f.ContentType)
	if err != nil || !v.allowed[mediaType] {
		return append(out, models.Violation{
			Field:   field,
			Code:    models.CodeContentType,
			Message: fmt.Sprintf("content type %q is not allowed", f.ContentType),
		})
	}

	ext := strings.ToLower(filepath.Ext(f.Filename))
	if !extensionMatches(mediaType, ext) {
		return append(out, models.Violation{
			Field:   field,
			Code:    models.CodeExtension,
			Message: fmt.Sprintf("extension %q does not match content type %s", ext, mediaType),
		})
	}

	if v.rules.SniffContent && f.Open != nil {
		if msg := sniff(f, mediaType); msg != "" {
			out = append(out, models.Violation{Field: field, Code: models.CodeContentMismatch, Message: msg})
		}
	}

	return out
}

var knownExtensions = map[string][]string{
	"image/jpeg": {".jpg", ".jpeg"},
	"image/png":  {".png"},
	"image/webp": {".webp"},
}

func extensionMatches(mediaType, ext string) bool {
	if ext == "" {
		return false
	}

	exts, ok := knownExtensions[mediaType]
	if !ok {
		exts, _ = mime.ExtensionsByType(mediaType)
	}
	for _, e := range exts {
		if e == ext {
			return true
		}
	}

	return false
}

func sniff(f File, declared string) string {
	rc, err := f.Open()
	if err != nil {
		return "file content could not be read"
	}
	defer rc.Close()

	detected, err := mimetype.DetectReader(rc)
	if err != nil {
		return "file content could not be read"
	}
	if !detected.Is(declared) {
		return fmt.Sprintf("content looks like %s, declared %s", detected.String(), declared)
	}

	return ""
}

func checkCoverIndex(idx *int, n int) []models.Violation {
	if idx == nil {
		return nil
	}
	if *idx < 0 || *idx >= n {
		return []models.Violation{{
			Field:   "cover_index",
			Code:    models.CodeCoverIndex,
			Message: fmt.Sprintf("cover_index %d is outside the uploaded batch", *idx),
		}}
	}

	return nil
}

func checkAltTexts(alts []string, n int) []models.Violation {
	var out []models.Violation
	if len(alts) > n {
		out = append(out, models.Violation{
			Field:   "alt_text",
			Code:    models.CodeAltText,
			Message: fmt.Sprintf("got %d alt texts for %d files", len(alts), n),
		})
	}
	for i, a := range alts {
		if len([]rune(a)) > maxAltTextLen {
			out = append(out, models.Violation{
				Field:   fmt.Sprintf("alt_text[%d]", i),
				Code:    models.CodeAltText,
				Message: fmt.Sprintf("must be at most %d characters", maxAltTextLen),
			})
		}
	}

	return out
}
