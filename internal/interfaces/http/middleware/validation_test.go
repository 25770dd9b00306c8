package middleware

import (
	"testing"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// bindingFieldNames maps Go struct field names to the names the
// validator reports after SetupValidator has run.
func bindingFieldNames(t *testing.T, err error) map[string]string {
	t.Helper()
	var fieldErrs validator.ValidationErrors
	require.ErrorAs(t, err, &fieldErrs)
	names := make(map[string]string, len(fieldErrs))
	for _, fe := range fieldErrs {
		names[fe.StructField()] = fe.Field()
	}
	return names
}

func TestSetupValidator(t *testing.T) {
	SetupValidator()

	v, ok := binding.Validator.Engine().(*validator.Validate)
	require.True(t, ok, "gin binding engine is not *validator.Validate")

	t.Run("reports json tag names", func(t *testing.T) {
		type turnPayload struct {
			Utterance string `json:"utterance" binding:"required"`
			Specialty string `json:"specialty,omitempty" binding:"omitempty,max=5"`
		}

		err := v.Struct(turnPayload{Specialty: "toolong"})
		names := bindingFieldNames(t, err)

		assert.Equal(t, "utterance", names["Utterance"])
		assert.Equal(t, "specialty", names["Specialty"], "tag options after the comma must be stripped")
	})

	t.Run("falls back to form tag", func(t *testing.T) {
		type listQuery struct {
			PageSize int `form:"page_size" binding:"required,min=1"`
		}

		err := v.Struct(listQuery{})
		names := bindingFieldNames(t, err)

		assert.Equal(t, "page_size", names["PageSize"])
	})

	t.Run("skipped json field keeps struct name", func(t *testing.T) {
		type internalPayload struct {
			Marker string `json:"-" binding:"required"`
		}

		err := v.Struct(internalPayload{})
		names := bindingFieldNames(t, err)

		assert.Equal(t, "Marker", names["Marker"])
	})

	t.Run("safe to call twice", func(t *testing.T) {
		SetupValidator()

		type probe struct {
			SubjectID string `json:"subject_id" binding:"required,uuid"`
		}

		err := v.Struct(probe{SubjectID: "not-a-uuid"})
		names := bindingFieldNames(t, err)

		assert.Equal(t, "subject_id", names["SubjectID"])
	})
}
