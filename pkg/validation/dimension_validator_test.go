package validation

import (
	"testing"

	apperrors "github.com/itsadi-24/smart-note/internal/errors"
)

func TestDefaultDimensionLimits(t *testing.T) {
	limits := DefaultDimensionLimits()
	if limits.MinWidth != 1 || limits.MinHeight != 1 || limits.MaxPixels != 40_000_000 {
		t.Errorf("Unexpected default limits %+v", limits)
	}
}

func TestValidateDimensions(t *testing.T) {
	validator := NewDimensionValidatorWithLimits(DimensionLimits{
		MinWidth:  1,
		MinHeight: 1,
		MaxPixels: 100 * 100,
	})

	tests := []struct {
		name    string
		width   int
		height  int
		wantErr bool
	}{
		{"single pixel", 1, 1, false},
		{"exactly at limit", 100, 100, false},
		{"wide but small", 1000, 10, false},
		{"zero width", 0, 10, true},
		{"zero height", 10, 0, true},
		{"over limit", 101, 100, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validator.ValidateDimensions(tt.width, tt.height)
			if tt.wantErr {
				if err == nil {
					t.Fatal("Expected error, got none")
				}
				if !apperrors.IsType(err, apperrors.ErrorTypeValidation) {
					t.Errorf("Expected validation error, got %v", err)
				}
			} else if err != nil {
				t.Errorf("Expected no error, got %v", err)
			}
		})
	}
}

func TestValidateDimensions_NoPixelCap(t *testing.T) {
	validator := NewDimensionValidatorWithLimits(DimensionLimits{MinWidth: 1, MinHeight: 1})
	if err := validator.ValidateDimensions(50000, 50000); err != nil {
		t.Errorf("Expected no error without a pixel cap, got %v", err)
	}
}
