package validation

import (
	"fmt"

	apperrors "github.com/itsadi-24/smart-note/internal/errors"
)

// DimensionLimits bounds the size of an image accepted for analysis
type DimensionLimits struct {
	MinWidth  int
	MinHeight int
	// MaxPixels caps width*height; it is checked from the header before the
	// pixel data is decoded.
	MaxPixels int64
}

// DefaultDimensionLimits returns the default limits
func DefaultDimensionLimits() DimensionLimits {
	return DimensionLimits{
		MinWidth:  1,
		MinHeight: 1,
		MaxPixels: 40_000_000,
	}
}

// DimensionValidator rejects images that are empty or too large to decode safely
type DimensionValidator struct {
	limits DimensionLimits
}

// NewDimensionValidatorWithLimits creates a validator with custom limits
func NewDimensionValidatorWithLimits(limits DimensionLimits) *DimensionValidator {
	return &DimensionValidator{
		limits: limits,
	}
}

// ValidateDimensions checks width and height against the limits
func (dv *DimensionValidator) ValidateDimensions(width, height int) error {
	if width < dv.limits.MinWidth || height < dv.limits.MinHeight {
		return apperrors.NewValidationError(
			fmt.Sprintf("image is %dx%d, minimum is %dx%d", width, height, dv.limits.MinWidth, dv.limits.MinHeight), nil)
	}

	if dv.limits.MaxPixels > 0 {
		if pixels := int64(width) * int64(height); pixels > dv.limits.MaxPixels {
			return apperrors.NewValidationError(
				fmt.Sprintf("image has %d pixels, maximum is %d", pixels, dv.limits.MaxPixels), nil)
		}
	}

	return nil
}
