package evaluation

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"

	"reading-quiz-service/internal/domain"
)

// AudioClient sends recordings to the pronunciation scorer.
type AudioClient struct {
	client
}

func NewAudioClient(opts Options) *AudioClient {
	return &AudioClient{client: newClient(opts)}
}

type audioResponse struct {
	Score      flexNumber `json:"score"`
	Accuracy   flexNumber `json:"accuracy"`
	Feedback   string     `json:"pron_feedback"`
	Transcript string     `json:"transcript"`
}

// EvaluateAudio never fails; any error yields domain.FallbackAudioEvaluation.
// The pronunciation score keeps the scorer's 0-5 scale.
func (c *AudioClient) EvaluateAudio(ctx context.Context, req domain.AudioEvaluationRequest) domain.AudioEvaluation {
	body, contentType, err := audioForm(req)
	if err != nil {
		return domain.FallbackAudioEvaluation()
	}
	raw, err := c.post(ctx, func(ctx context.Context) (*http.Request, error) {
		r, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		r.Header.Set("Content-Type", contentType)
		return r, nil
	})
	if err != nil {
		c.log.WithError(err).Warn("audio evaluation failed")
		return domain.FallbackAudioEvaluation()
	}

	var resp audioResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		c.log.WithError(err).Warn("audio evaluation: malformed response")
		return domain.FallbackAudioEvaluation()
	}
	return domain.AudioEvaluation{
		PronunciationScore: resp.Score.value,
		AccuracyScore:      resp.Accuracy.value,
		Feedback:           resp.Feedback,
		Transcript:         resp.Transcript,
	}
}

func audioForm(req domain.AudioEvaluationRequest) ([]byte, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("audio", "recording.wav")
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(req.Audio); err != nil {
		return nil, "", err
	}
	if err := w.WriteField("expected_text", req.ExpectedText); err != nil {
		return nil, "", err
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), w.FormDataContentType(), nil
}
