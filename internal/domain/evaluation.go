package domain

// TextEvaluationRequest is what the free-text scorer needs for one answer.
type TextEvaluationRequest struct {
	Passage  string
	Question string
	Answer   string
}

// TextEvaluation is the scorer's verdict. Degraded marks a fallback produced after a failure.
type TextEvaluation struct {
	Score    float64
	Feedback string
	Degraded bool
}

// AudioEvaluationRequest carries a recording and the text it should match.
type AudioEvaluationRequest struct {
	Audio        []byte
	ExpectedText string
}

// AudioEvaluation holds the pronunciation score on the collaborator's native 0-5 scale
// and the accuracy as a percentage.
type AudioEvaluation struct {
	PronunciationScore float64
	AccuracyScore      float64
	Feedback           string
	Transcript         string
	Degraded           bool
}

// PronunciationScale is the native maximum of AudioEvaluation.PronunciationScore.
const PronunciationScale = 5.0

const (
	TextFallbackFeedback    = "Could not evaluate answer."
	AudioFallbackFeedback   = "Could not evaluate audio."
	AudioFallbackTranscript = "Error in processing."
)

// FallbackTextEvaluation is returned by text evaluators that failed.
func FallbackTextEvaluation() TextEvaluation {
	return TextEvaluation{Score: 0, Feedback: TextFallbackFeedback, Degraded: true}
}

// FallbackAudioEvaluation is returned by audio evaluators that failed.
func FallbackAudioEvaluation() AudioEvaluation {
	return AudioEvaluation{
		Feedback:   AudioFallbackFeedback,
		Transcript: AudioFallbackTranscript,
		Degraded:   true,
	}
}
