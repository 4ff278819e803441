package assistant

import (
	"errors"
	"fmt"
)

var (
	ErrScopeClassification = errors.New("scope classification failed")
	ErrExtraction          = errors.New("reference extraction failed")
	ErrRetrieval           = errors.New("context retrieval failed")
	ErrSummarization       = errors.New("summarization failed")
	ErrAnswerGeneration    = errors.New("answer generation failed")
	ErrTranslation         = errors.New("translation failed")

	ErrUnsupportedLanguage = errors.New("unsupported language")
	ErrInvalidInput        = errors.New("invalid input")
	ErrSessionFull         = errors.New("session history is full")
)

// stageError wraps cause under a stage sentinel so both match errors.Is.
func stageError(stage error, cause error) error {
	if cause == nil {
		return stage
	}
	return fmt.Errorf("%w: %w", stage, cause)
}
