package dto

import "time"

// SuggestionScore is a literacy score supplied with an ad-hoc suggestion request.
type SuggestionScore struct {
	Score float64   `json:"score" validate:"gte=0,lte=100"`
	Date  time.Time `json:"date" validate:"required"`
}

// SuggestionReflection is a reflection supplied with an ad-hoc suggestion request.
type SuggestionReflection struct {
	Note string    `json:"note" validate:"required,max=5000"`
	Date time.Time `json:"date" validate:"required"`
}

// SuggestionRequest is the snapshot a teaching suggestion is generated from.
type SuggestionRequest struct {
	Name           string                 `json:"name" validate:"required,min=1,max=255"`
	LiteracyScores []SuggestionScore      `json:"literacyScores" validate:"omitempty,dive"`
	SELScores      SELScoresInput         `json:"selScores"`
	Reflections    []SuggestionReflection `json:"reflections" validate:"omitempty,dive"`
}

// SuggestionResponse carries the generated text verbatim.
type SuggestionResponse struct {
	Suggestion string `json:"suggestion"`
}

// AIStatusResponse reports whether the completion service accepts our credential.
type AIStatusResponse struct {
	Available bool   `json:"available"`
	Message   string `json:"message"`
}
