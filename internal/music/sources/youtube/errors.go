package youtube

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	kkdai "github.com/kkdai/youtube/v2"
	"google.golang.org/api/googleapi"

	"github.com/keshon/jukebox/internal/music/sources"
)

// permanentMessages are provider messages that no retry will fix.
var permanentMessages = []string{
	"Video unavailable",
	"Private video",
	"This video is not available",
}

// statusError exposes an upstream HTTP status to the retry classifier.
type statusError struct {
	code int
	err  error
}

func (e *statusError) Error() string   { return e.err.Error() }
func (e *statusError) Unwrap() error   { return e.err }
func (e *statusError) StatusCode() int { return e.code }

// ClassifyError maps provider errors onto sources sentinels. Permanent failures
// wrap sources.ErrUnavailable; everything else stays transient.
func ClassifyError(err error) error {
	if err == nil {
		return nil
	}

	// ErrLoginRequired covers the bot check as well as age gates, so it stays
	// transient.
	switch {
	case errors.Is(err, kkdai.ErrVideoPrivate),
		errors.Is(err, kkdai.ErrInvalidCharactersInVideoID),
		errors.Is(err, kkdai.ErrVideoIDMinLength):
		return fmt.Errorf("%w: %w", sources.ErrUnavailable, err)
	}

	if isPlayabilityStatus(err) {
		return fmt.Errorf("%w: %w", sources.ErrUnavailable, err)
	}

	var unexpected kkdai.ErrUnexpectedStatusCode
	if errors.As(err, &unexpected) {
		if int(unexpected) == http.StatusNotFound {
			return fmt.Errorf("%w: %w", sources.ErrUnavailable, err)
		}
		return &statusError{code: int(unexpected), err: err}
	}

	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		if apiErr.Code == http.StatusNotFound || apiErr.Code == http.StatusForbidden {
			return fmt.Errorf("%w: %w", sources.ErrUnavailable, err)
		}
		return &statusError{code: apiErr.Code, err: err}
	}

	if IsPermanentMessage(err.Error()) {
		return fmt.Errorf("%w: %w", sources.ErrUnavailable, err)
	}
	return err
}

// isPlayabilityStatus matches kkdai's playability error, which it returns by
// pointer.
func isPlayabilityStatus(err error) bool {
	var ptr *kkdai.ErrPlayabiltyStatus
	if errors.As(err, &ptr) && ptr != nil {
		return true
	}
	var val kkdai.ErrPlayabiltyStatus
	return errors.As(err, &val)
}

// IsPermanentMessage reports whether msg carries one of the provider's
// "gone for good" texts.
func IsPermanentMessage(msg string) bool {
	for _, m := range permanentMessages {
		if strings.Contains(msg, m) {
			return true
		}
	}
	return false
}
