package catalog

import (
	"errors"
	"fmt"
	"reflect"
	"slices"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/princekumarofficial/catalog-service/internal/blobstore"
	"github.com/princekumarofficial/catalog-service/internal/config"
)

// Limits bounds what the ingestor accepts for each payload slot.
type Limits struct {
	MaxVideoSize       int64
	MaxThumbnailSize   int64
	VideoTypes         []string
	ImageTypes         []string
	CompensationBudget time.Duration
}

func LimitsFromConfig(cfg config.Media) Limits {
	return Limits{
		MaxVideoSize:       cfg.MaxVideoSize,
		MaxThumbnailSize:   cfg.MaxThumbnailSize,
		VideoTypes:         cfg.AllowedVideoTypes,
		ImageTypes:         cfg.AllowedImageTypes,
		CompensationBudget: cfg.CompensationBudget,
	}
}

// DefaultLimits mirrors the shipped configuration defaults.
func DefaultLimits() Limits {
	return Limits{
		MaxVideoSize:       100 << 20,
		MaxThumbnailSize:   5 << 20,
		VideoTypes:         []string{"video/mp4", "video/mpeg", "video/webm", "video/quicktime"},
		ImageTypes:         []string{"image/jpeg", "image/png", "image/webp"},
		CompensationBudget: 30 * time.Second,
	}
}

// Length rules count runes of the trimmed value.
type createMetadata struct {
	Title       string `json:"title" validate:"required,min=3,max=100"`
	Description string `json:"description" validate:"required,min=10,max=1000"`
}

type updateMetadata struct {
	Title       *string `json:"title" validate:"omitnil,min=3,max=100"`
	Description *string `json:"description" validate:"omitnil,min=10,max=1000"`
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

func (in *Ingestor) validateMetadata(meta any) error {
	err := in.validate.Struct(meta)
	if err == nil {
		return nil
	}
	var ve validator.ValidationErrors
	if errors.As(err, &ve) {
		return newError(KindValidation, describe(ve), ve)
	}
	return newError(KindValidation, "invalid metadata", err)
}

func describe(ve validator.ValidationErrors) string {
	parts := make([]string, 0, len(ve))
	for _, fe := range ve {
		switch fe.Tag() {
		case "required":
			parts = append(parts, fe.Field()+" is required")
		case "min":
			parts = append(parts, fmt.Sprintf("%s must be at least %s characters", fe.Field(), fe.Param()))
		case "max":
			parts = append(parts, fmt.Sprintf("%s must be at most %s characters", fe.Field(), fe.Param()))
		default:
			parts = append(parts, fe.Field()+": "+fe.Tag())
		}
	}
	return strings.Join(parts, "; ")
}

// checkPayload validates one slot. A nil payload is only accepted when the
// slot is optional.
func (in *Ingestor) checkPayload(slot blobstore.Slot, p *blobstore.Payload, required bool) error {
	if p == nil {
		if required {
			return newError(KindValidation, fmt.Sprintf("%s file is required", slot), nil)
		}
		return nil
	}

	allowed, ceiling := in.limits.VideoTypes, in.limits.MaxVideoSize
	if slot == blobstore.SlotThumbnail {
		allowed, ceiling = in.limits.ImageTypes, in.limits.MaxThumbnailSize
	}

	if !slices.Contains(allowed, p.ContentType) {
		return newError(KindValidation,
			fmt.Sprintf("%s type %q is not allowed, expected one of %s", slot, p.ContentType, strings.Join(allowed, ", ")), nil)
	}
	if p.Size <= 0 {
		return newError(KindValidation, fmt.Sprintf("%s file is empty", slot), nil)
	}
	if ceiling > 0 && p.Size > ceiling {
		return newError(KindValidation, fmt.Sprintf("%s file exceeds %d bytes", slot, ceiling), nil)
	}
	return nil
}

func trimmed(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	return &v
}
