package evaluation

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"

	"reading-quiz-service/internal/domain"
)

// TextClient scores free-text answers against their passage.
type TextClient struct {
	client
}

func NewTextClient(opts Options) *TextClient {
	return &TextClient{client: newClient(opts)}
}

type textRequest struct {
	Text     string `json:"text_input"`
	Question string `json:"question_input"`
	Answer   string `json:"student_answer_input"`
}

type textResponse struct {
	FinalScore flexNumber `json:"final_score"`
	Feedback   string     `json:"feedback"`
}

// EvaluateText never fails; any error yields domain.FallbackTextEvaluation.
func (c *TextClient) EvaluateText(ctx context.Context, req domain.TextEvaluationRequest) domain.TextEvaluation {
	payload, err := json.Marshal(textRequest{Text: req.Passage, Question: req.Question, Answer: req.Answer})
	if err != nil {
		return domain.FallbackTextEvaluation()
	}
	raw, err := c.post(ctx, func(ctx context.Context) (*http.Request, error) {
		r, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		r.Header.Set("Content-Type", "application/json")
		return r, nil
	})
	if err != nil {
		c.log.WithError(err).Warn("text evaluation failed")
		return domain.FallbackTextEvaluation()
	}

	var resp textResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		c.log.WithError(err).Warn("text evaluation: malformed response")
		return domain.FallbackTextEvaluation()
	}
	return domain.TextEvaluation{Score: resp.FinalScore.value, Feedback: resp.Feedback}
}
