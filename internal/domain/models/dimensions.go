package models

// Dimensions физические размеры работы, передаются как JSON-строка в multipart-запросе
type Dimensions struct {
	Width  float64  `json:"width" validate:"gt=0"`
	Height float64  `json:"height" validate:"gt=0"`
	Depth  *float64 `json:"depth,omitempty" validate:"omitempty,gt=0"`
	Unit   string   `json:"unit" validate:"required,oneof=mm cm m in"`
}
