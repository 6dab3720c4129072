package errors

import (
	"strings"
	"unicode"
)

// MaxImages is the number of screenshots an extension may carry.
const MaxImages = 5

// ValidateRequired rejects empty or whitespace-only values.
// The field name is used verbatim in the message, matching the request
// payload keys ("Name cannot be empty").
func ValidateRequired(field, value string) error {
	if strings.TrimSpace(value) == "" {
		return New(CodeInvalidInput, "%s cannot be empty", field)
	}
	return nil
}

// ValidateImages checks the screenshot list of a create/update request.
// At least one and at most [MaxImages] entries are allowed.
func ValidateImages(images []string) error {
	if images == nil {
		return New(CodeInvalidInput, "Images must be a list of URLs")
	}
	if len(images) == 0 || len(images) > MaxImages {
		return New(CodeInvalidInput, "You must upload at least 1 (max %d) screenshot of your extension", MaxImages)
	}
	return nil
}

// ValidateURL validates a URL string for safety.
// It ensures the URL has a safe scheme (http or https).
func ValidateURL(rawURL string) error {
	if rawURL == "" {
		return New(CodeInvalidInput, "URL cannot be empty")
	}

	if !strings.HasPrefix(rawURL, "http://") && !strings.HasPrefix(rawURL, "https://") {
		return New(CodeInvalidInput, "URL must use http or https scheme")
	}

	for _, r := range rawURL {
		if unicode.IsControl(r) || unicode.IsSpace(r) {
			return New(CodeInvalidInput, "URL contains invalid characters")
		}
	}

	return nil
}

// ValidateVersionList checks a list of requested API versions.
// Every entry must be a plain major number ("2", "3").
func ValidateVersionList(versions []string) error {
	for _, v := range versions {
		if v == "" {
			return New(CodeInvalidInput, "versions must be a comma-separated list of numbers")
		}
		for _, r := range v {
			if r < '0' || r > '9' {
				return New(CodeInvalidInput, "versions must be a comma-separated list of numbers")
			}
		}
	}
	return nil
}

// ValidatePagination checks offset/limit query parameters.
func ValidatePagination(offset, limit, maxLimit int) error {
	if offset < 0 {
		return New(CodeInvalidInput, "offset must be >= 0")
	}
	if limit < 1 || limit > maxLimit {
		return New(CodeInvalidInput, "limit must be between 1 and %d", maxLimit)
	}
	return nil
}
