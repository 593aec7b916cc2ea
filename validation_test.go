package main

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fieldsOf(errs ValidationErrors) []string {
	fields := make([]string, 0, len(errs))
	for _, e := range errs {
		fields = append(fields, e.Field)
	}
	return fields
}

func TestValidator(t *testing.T) {
	t.Run("ValidateRequired", func(t *testing.T) {
		v := NewValidator()

		assert.True(t, v.ValidateRequired("field", "value"))
		assert.False(t, v.ValidateRequired("field", ""))
		assert.False(t, v.ValidateRequired("field", "   "))
		assert.Len(t, v.Errors(), 2)
	})

	t.Run("ValidateMaxLength counts runes", func(t *testing.T) {
		v := NewValidator()

		assert.True(t, v.ValidateMaxLength("field", "héllo", 5))
		assert.False(t, v.ValidateMaxLength("field", "héllo!", 5))
	})

	t.Run("ValidateNoHTML", func(t *testing.T) {
		v := NewValidator()

		assert.True(t, v.ValidateNoHTML("field", "2 < 3 and 4 > 1"))
		assert.False(t, v.ValidateNoHTML("field", "<script>alert(1)</script>"))
	})

	t.Run("ValidateInteger", func(t *testing.T) {
		v := NewValidator()

		val, ok := v.ValidateInteger("num", "42", 0, 100)
		assert.True(t, ok)
		assert.Equal(t, int64(42), val)

		_, ok = v.ValidateInteger("num", "150", 0, 100)
		assert.False(t, ok)

		_, ok = v.ValidateInteger("num", "-5", 0, 100)
		assert.False(t, ok)

		_, ok = v.ValidateInteger("num", "4.5", 0, 100)
		assert.False(t, ok)

		_, ok = v.ValidateInteger("num", "not a number", 0, 100)
		assert.False(t, ok)
	})
}

func TestValidateSponsoredPostForm(t *testing.T) {
	tests := []struct {
		name       string
		title      string
		body       string
		price      string
		wantPrice  int64
		wantFields []string
	}{
		{
			name:      "valid",
			title:     "Seed catalog",
			body:      "Spring sale",
			price:     "88",
			wantPrice: 88,
		},
		{
			name:      "zero price",
			title:     "Seed catalog",
			body:      "Spring sale",
			price:     "0",
			wantPrice: 0,
		},
		{
			name:      "price with surrounding space",
			title:     "Seed catalog",
			body:      "Spring sale",
			price:     " 12 ",
			wantPrice: 12,
		},
		{
			name:       "everything missing",
			wantFields: []string{"title", "body", "price"},
		},
		{
			name:       "price not a number",
			title:      "Seed catalog",
			body:       "Spring sale",
			price:      "cheap",
			wantFields: []string{"price"},
		},
		{
			name:       "price too large",
			title:      "Seed catalog",
			body:       "Spring sale",
			price:      "1000000001",
			wantFields: []string{"price"},
		},
		{
			name:       "body too long",
			title:      "Seed catalog",
			body:       strings.Repeat("a", MaxBodyLength+1),
			price:      "1",
			wantFields: []string{"body"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			price, errs := ValidateSponsoredPostForm(tt.title, tt.body, tt.price)

			if len(tt.wantFields) == 0 {
				require.Empty(t, errs)
				assert.Equal(t, tt.wantPrice, price)
				return
			}
			assert.ElementsMatch(t, tt.wantFields, fieldsOf(errs))
		})
	}
}

func TestValidateSponsoredPostUpdate(t *testing.T) {
	empty := ""
	title := "Autumn catalog"

	assert.Empty(t, ValidateSponsoredPostUpdate(nil, nil), "nothing to change")
	assert.Empty(t, ValidateSponsoredPostUpdate(&title, nil))
	assert.Equal(t, []string{"title"}, fieldsOf(ValidateSponsoredPostUpdate(&empty, nil)))
	assert.Equal(t, []string{"body"}, fieldsOf(ValidateSponsoredPostUpdate(&title, &empty)))
}

func TestValidateTopicForm(t *testing.T) {
	assert.Empty(t, ValidateTopicForm("Gardening", ""))
	assert.Equal(t, []string{"name"}, fieldsOf(ValidateTopicForm("", "Plants")))
	assert.Equal(t, []string{"name"}, fieldsOf(ValidateTopicForm("<b>Gardening</b>", "")))
	assert.Equal(t, []string{"description"}, fieldsOf(ValidateTopicForm("Gardening", strings.Repeat("a", MaxTopicDescriptionLength+1))))
}

func TestValidatePostForm(t *testing.T) {
	assert.Empty(t, ValidatePostForm("First frost", "Cover the beds"))
	assert.ElementsMatch(t, []string{"title", "body"}, fieldsOf(ValidatePostForm("", "")))
}

func TestValidationErrors(t *testing.T) {
	errs := ValidationErrors{
		{Field: "title", Message: "is required"},
		{Field: "title", Message: "must not exceed 255 characters"},
		{Field: "price", Message: "must be a whole number"},
	}

	assert.Equal(t, "title: is required; title: must not exceed 255 characters; price: must be a whole number", errs.Error())
	assert.Equal(t, map[string]string{
		"title": "is required",
		"price": "must be a whole number",
	}, errs.ByField())

	var none ValidationErrors
	assert.Empty(t, none.ByField())
}

func TestSanitizeInput(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"trims", "  hello  ", "hello"},
		{"collapses spaces", "a \t  b", "a b"},
		{"normalizes line endings", "a\r\nb\rc", "a\nb\nc"},
		{"limits blank lines", "a\n\n\n\nb", "a\n\nb"},
		{"drops NUL", "a\x00b", "ab"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SanitizeInput(tt.input))
		})
	}
}

func TestStatusForError(t *testing.T) {
	assert.Equal(t, 200, statusForError(nil))
	assert.Equal(t, 404, statusForError(ErrNotFound))
	assert.Equal(t, 404, statusForError(foreignKeyViolation()))
	assert.Equal(t, 422, statusForError(ValidationErrors{{Field: "title", Message: "is required"}}))
	assert.Equal(t, 500, statusForError(errMockDatabase))
}
