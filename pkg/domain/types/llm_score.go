package types

import "fmt"

// LLMScore is the automated pass/fail judgment attached to a trace at creation
type LLMScore string

const (
	LLMScorePass LLMScore = "Pass"
	LLMScoreFail LLMScore = "Fail"
)

// AllLLMScores returns all valid LLM scores
func AllLLMScores() []LLMScore {
	return []LLMScore{LLMScorePass, LLMScoreFail}
}

// IsValid checks if the LLM score is valid
func (s LLMScore) IsValid() bool {
	switch s {
	case LLMScorePass, LLMScoreFail:
		return true
	default:
		return false
	}
}

func (s LLMScore) String() string {
	return string(s)
}

// ParseLLMScore parses a string into an LLMScore
func ParseLLMScore(s string) (LLMScore, error) {
	score := LLMScore(s)
	if !score.IsValid() {
		return "", fmt.Errorf("invalid llm score: %s", s)
	}
	return score, nil
}
