package evaluation

import "errors"

// Ошибки ядра. Все синхронные, возвращаются вызывающему без повторов.
var (
	ErrInvalidDateRange         = errors.New("end date must be after start date")
	ErrDuplicateAssignment      = errors.New("assignment already exists for this evaluator and evaluatee")
	ErrSelfRelationshipMismatch = errors.New("self relationship requires evaluator to be the evaluatee")
	ErrInvalidAnswerType        = errors.New("answer does not match question type")
	ErrMissingRequiredResponse  = errors.New("required question has no answer")
	ErrIncompleteSubmission     = errors.New("required questions are not answered")
	ErrAlreadyFinalized         = errors.New("result is already finalized")
)

var (
	ErrNotFound            = errors.New("not found")
	ErrInvalidTransition   = errors.New("invalid status transition")
	ErrAssignmentClosed    = errors.New("assignment is closed for responses")
	ErrScoreOutOfRange     = errors.New("score is out of range")
	ErrQuestionInUse       = errors.New("question is referenced by responses")
	ErrInvalidQuestion     = errors.New("invalid question")
	ErrInvalidCampaign     = errors.New("invalid campaign")
	ErrUnknownRelationship = errors.New("unknown relationship")
	ErrNotFinalized        = errors.New("result is not finalized")
	ErrInvalidPolicy       = errors.New("invalid evaluation policy")

	ErrSelfEvaluationDisabled = errors.New("self evaluation is disabled for this campaign")
)
