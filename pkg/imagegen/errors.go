// ABOUTME: Typed and sentinel errors returned by Generate and ListModels
// ABOUTME: Sentinels compare with errors.Is; struct errors with errors.As

package imagegen

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInvalidRequest  = errors.New("invalid generation request")
	ErrEmptyStream     = errors.New("no valid data received from stream")
	ErrInvalidResponse = errors.New("invalid response from API: missing choices[0].message")
	ErrNoImageReturned = errors.New("model returned no image; the prompt or input images may have been rejected")
	ErrEmptyModelList  = errors.New("model list is empty")
)

// HTTPStatusError is a non-2xx response from the chat endpoint.
type HTTPStatusError struct {
	StatusCode int
	Body       string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("API error %d: %s", e.StatusCode, e.Body)
}

// ModalityRetryError reports that the single retry with flipped output
// modalities was rejected too.
type ModalityRetryError struct {
	Modalities []string // Modalities used by the retry
	Err        *HTTPStatusError
}

func (e *ModalityRetryError) Error() string {
	return fmt.Sprintf("retry with modalities [%s] failed: %v", strings.Join(e.Modalities, ","), e.Err)
}

func (e *ModalityRetryError) Unwrap() error {
	return e.Err
}

// TextInsteadOfImageError is returned when the model answered with prose.
type TextInsteadOfImageError struct {
	Text string
}

func (e *TextInsteadOfImageError) Error() string {
	return "model returned text instead of an image: " + e.Text
}

// ModelListFetchError is a non-2xx response from the models endpoint.
type ModelListFetchError struct {
	StatusCode int
	Body       string
}

func (e *ModelListFetchError) Error() string {
	return fmt.Sprintf("fetching model list failed %d: %s", e.StatusCode, e.Body)
}
