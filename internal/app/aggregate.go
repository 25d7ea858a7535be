package app

import (
	"math"
	"sort"

	"reading-quiz-service/internal/domain"
)

// sectionCount is the fixed divisor of the overall average, even when a section is empty.
const sectionCount = 4

type aggregateInput struct {
	multipleChoiceItems int
	freeTextItems       int
	audioItems          int
	tally               int
	outcomes            []evaluationOutcome
}

// aggregate computes the final results from resolved outcomes. Each outcome's tag decides
// which sums it feeds; completion order only matters for the feedback list.
func aggregate(in aggregateInput) domain.FinalResults {
	var (
		textSum, pronunciationSum, accuracySum float64
		degraded                               int
		feedback                               []evaluationOutcome
	)
	for _, o := range in.outcomes {
		if o.degraded() {
			degraded++
		}
		switch o.kind {
		case domain.SectionFreeText:
			textSum += clamp(o.text.Score, 0, 100)
		case domain.SectionAudio:
			pron := clamp(o.audio.PronunciationScore, 0, domain.PronunciationScale)
			pronunciationSum += pron / domain.PronunciationScale * 100
			accuracySum += clamp(o.audio.AccuracyScore, 0, 100)
			if o.audio.Feedback != "" {
				feedback = append(feedback, o)
			}
		}
	}

	mc := 0.0
	if in.multipleChoiceItems > 0 {
		mc = clamp(float64(in.tally)/float64(in.multipleChoiceItems)*100, 0, 100)
	}
	text := mean(textSum, in.freeTextItems)
	pron := mean(pronunciationSum, in.audioItems)
	acc := mean(accuracySum, in.audioItems)
	overall := (mc + text + pron + acc) / sectionCount

	sort.SliceStable(feedback, func(i, j int) bool { return feedback[i].seq < feedback[j].seq })
	var notes []string
	for _, o := range feedback {
		notes = append(notes, o.audio.Feedback)
	}

	return domain.FinalResults{
		MultipleChoice:      roundScore(mc),
		Text:                roundScore(text),
		AudioPronunciation:  roundScore(pron),
		AudioAccuracy:       roundScore(acc),
		Overall:             roundScore(overall),
		Feedback:            notes,
		DegradedEvaluations: degraded,
	}
}

func mean(sum float64, n int) float64 {
	if n <= 0 {
		return 0
	}
	return clamp(sum/float64(n), 0, 100)
}

// clamp also maps NaN to lo.
func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) || v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func roundScore(v float64) int {
	return int(math.Floor(v + 0.5))
}
