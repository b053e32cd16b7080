package api

import (
	"time"

	"github.com/shopspring/decimal"
)

// ProductRequest is the JSON "product" part of a create request.
type ProductRequest struct {
	Name         string              `json:"name" binding:"required,max=100"`
	Description  string              `json:"description" binding:"max=500"`
	Manufacturer string              `json:"manufacturer" binding:"required,max=100"`
	Color        string              `json:"color" binding:"required,max=50"`
	Price        decimal.NullDecimal `json:"price" binding:"required,gt=0"`
	Quantity     *int                `json:"quantity" binding:"required,gte=0"`
}

// ProductPatch is the JSON "product" part of an update request. Absent
// fields are left unchanged.
type ProductPatch struct {
	Name         *string             `json:"name" binding:"omitempty,min=1,max=100"`
	Description  *string             `json:"description" binding:"omitempty,max=500"`
	Manufacturer *string             `json:"manufacturer" binding:"omitempty,min=1,max=100"`
	Color        *string             `json:"color" binding:"omitempty,min=1,max=50"`
	Price        decimal.NullDecimal `json:"price" binding:"omitempty,gt=0"`
	Quantity     *int                `json:"quantity" binding:"omitempty,gte=0"`
}

// ImportItemRequest is one element of an import batch. Items are validated
// by the catalog according to its import policy, not at binding time.
type ImportItemRequest struct {
	Name         string              `json:"name"`
	Description  string              `json:"description"`
	Manufacturer string              `json:"manufacturer"`
	Color        string              `json:"color"`
	Price        decimal.NullDecimal `json:"price"`
	Quantity     *int                `json:"quantity"`
	ImageURLs    []string            `json:"image_urls"`
}

type ImageResponse struct {
	ID           int64     `json:"id"`
	FileName     string    `json:"file_name"`
	URL          string    `json:"url"`
	DisplayOrder *int      `json:"display_order,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

type ProductResponse struct {
	ID              int64           `json:"id"`
	Name            string          `json:"name"`
	Description     string          `json:"description"`
	DescriptionHTML string          `json:"description_html"`
	Summary         string          `json:"summary"`
	Manufacturer    string          `json:"manufacturer"`
	Color           string          `json:"color"`
	Price           decimal.Decimal `json:"price"`
	Quantity        int             `json:"quantity"`
	Images          []ImageResponse `json:"images"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

type ImportFailureResponse struct {
	Index int    `json:"index"`
	Name  string `json:"name,omitempty"`
	URL   string `json:"url,omitempty"`
	Error string `json:"error"`
}

type ImportResponse struct {
	Created  []ProductResponse       `json:"created"`
	Failures []ImportFailureResponse `json:"failures"`
}

type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"status"`
}

type HealthResponse struct {
	Status   string `json:"status"`
	Database string `json:"database"`
}
