package main

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"
)

// ValidationError represents a validation error
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors represents multiple validation errors
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	var messages []string
	for _, err := range e {
		messages = append(messages, err.Error())
	}
	return strings.Join(messages, "; ")
}

// ByField returns the first message for each field, for form rendering.
func (e ValidationErrors) ByField() map[string]string {
	out := make(map[string]string, len(e))
	for _, err := range e {
		if _, ok := out[err.Field]; !ok {
			out[err.Field] = err.Message
		}
	}
	return out
}

// Validator provides input validation functions
type Validator struct {
	errors ValidationErrors
}

// NewValidator creates a new validator
func NewValidator() *Validator {
	return &Validator{
		errors: make(ValidationErrors, 0),
	}
}

// HasErrors returns true if there are validation errors
func (v *Validator) HasErrors() bool {
	return len(v.errors) > 0
}

// Errors returns all validation errors
func (v *Validator) Errors() ValidationErrors {
	return v.errors
}

// AddError adds a validation error
func (v *Validator) AddError(field, message string) {
	v.errors = append(v.errors, ValidationError{
		Field:   field,
		Message: message,
	})
}

// ValidateRequired validates that a field is not empty
func (v *Validator) ValidateRequired(field, value string) bool {
	if strings.TrimSpace(value) == "" {
		v.AddError(field, "is required")
		return false
	}
	return true
}

// ValidateMaxLength validates maximum length in runes
func (v *Validator) ValidateMaxLength(field, value string, maxLength int) bool {
	if utf8.RuneCountInString(value) > maxLength {
		v.AddError(field, fmt.Sprintf("must not exceed %d characters", maxLength))
		return false
	}
	return true
}

var htmlTagRegex = regexp.MustCompile(`</?[a-zA-Z][^>]*>`)

// ValidateNoHTML validates that a string contains no HTML tags
func (v *Validator) ValidateNoHTML(field, value string) bool {
	if htmlTagRegex.MatchString(value) {
		v.AddError(field, "must not contain HTML tags")
		return false
	}
	return true
}

// ValidateRange validates that value lies within [min, max]
func (v *Validator) ValidateRange(field string, value, min, max int64) bool {
	if value < min {
		v.AddError(field, fmt.Sprintf("must be at least %d", min))
		return false
	}

	if value > max {
		v.AddError(field, fmt.Sprintf("must not exceed %d", max))
		return false
	}

	return true
}

// ValidateInteger validates that a string is a base-10 integer within bounds
func (v *Validator) ValidateInteger(field, value string, min, max int64) (int64, bool) {
	num, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
	if err != nil {
		v.AddError(field, "must be a whole number")
		return 0, false
	}

	if !v.ValidateRange(field, num, min, max) {
		return 0, false
	}

	return num, true
}

// Form validation constants
const (
	MaxTitleLength            = 255
	MaxBodyLength             = 10000
	MaxTopicNameLength        = 200
	MaxTopicDescriptionLength = 1000
	MinPrice                  = 0
	MaxPrice                  = 1_000_000_000
)

func (v *Validator) validateTitle(title string) {
	if v.ValidateRequired("title", title) {
		v.ValidateMaxLength("title", title, MaxTitleLength)
	}
}

func (v *Validator) validateBody(body string) {
	if v.ValidateRequired("body", body) {
		v.ValidateMaxLength("body", body, MaxBodyLength)
	}
}

// ValidateSponsoredPostForm validates the create form and returns the parsed price.
func ValidateSponsoredPostForm(title, body, price string) (int64, ValidationErrors) {
	v := NewValidator()

	v.validateTitle(title)
	v.validateBody(body)

	var parsed int64
	if v.ValidateRequired("price", price) {
		parsed, _ = v.ValidateInteger("price", price, MinPrice, MaxPrice)
	}

	return parsed, v.Errors()
}

// ValidateSponsoredPostUpdate validates the fields present in an update.
// A nil field is left unchanged and is not validated.
func ValidateSponsoredPostUpdate(title, body *string) ValidationErrors {
	v := NewValidator()

	if title != nil {
		v.validateTitle(*title)
	}

	if body != nil {
		v.validateBody(*body)
	}

	return v.Errors()
}

// ValidateTopicForm validates the topic creation form
func ValidateTopicForm(name, description string) ValidationErrors {
	v := NewValidator()

	if v.ValidateRequired("name", name) {
		v.ValidateMaxLength("name", name, MaxTopicNameLength)
		v.ValidateNoHTML("name", name)
	}

	v.ValidateMaxLength("description", description, MaxTopicDescriptionLength)

	return v.Errors()
}

// ValidatePostForm validates an ordinary post
func ValidatePostForm(title, body string) ValidationErrors {
	v := NewValidator()

	v.validateTitle(title)
	v.validateBody(body)

	return v.Errors()
}

var (
	hSpaceRegex  = regexp.MustCompile(`[^\S\n]+`)
	newlineRegex = regexp.MustCompile(`\n{3,}`)
)

// SanitizeInput performs basic input sanitization
func SanitizeInput(input string) string {
	// CRLF and lone CR become LF
	input = strings.ReplaceAll(input, "\r\n", "\n")
	input = strings.ReplaceAll(input, "\r", "\n")

	input = strings.ReplaceAll(input, "\x00", "")

	input = strings.TrimSpace(input)

	// Collapse spaces and tabs but keep newlines
	input = hSpaceRegex.ReplaceAllString(input, " ")

	// At most one blank line between paragraphs
	input = newlineRegex.ReplaceAllString(input, "\n\n")

	return input
}
