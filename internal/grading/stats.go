package grading

import (
	"math"
	"sort"

	"github.com/notefold/notefold-backend/internal/model"
)

// MinSubmissionsForStats is the completed-submission threshold below which
// per-exercise stats and the score distribution stay empty.
const MinSubmissionsForStats = 5

// distributionEpsilon absorbs floating-point drift when bucketing
// near-integer total scores.
const distributionEpsilon = 1e-5

// ExerciseStats aggregates one choice question across a test's completed
// submissions.
type ExerciseStats struct {
	NoteID             string   `json:"note_id"`
	TotalAnswers       int      `json:"total_answers"`
	EmptyAnswers       int      `json:"empty_answers"`
	CorrectAnswers     int      `json:"correct_answers"`
	AverageScore       *float64 `json:"average_score"`
	CorrelationToTotal *float64 `json:"correlation_to_total"`
}

// ScoreDistributionEntry is one bucket of total scores, keyed by the integer
// part of the score.
type ScoreDistributionEntry struct {
	ScoreMin float64 `json:"score_min"`
	ScoreMax float64 `json:"score_max"`
	Count    int     `json:"count"`
}

// TestStats is the derived, never-persisted analytics view of a test.
type TestStats struct {
	CompletedSubmissions   int                      `json:"completed_submissions"`
	IncompletedSubmissions int                      `json:"incompleted_submissions"`
	Exercises              []ExerciseStats          `json:"exercises"`
	ScoreDistribution      []ScoreDistributionEntry `json:"score_distribution"`
}

// ComputeTestStats aggregates all submissions of a test. Below the
// completed-submission threshold it returns a valid "insufficient data"
// result with empty exercises and distribution, never a partial one.
func ComputeTestStats(submissions []model.Submission) TestStats {
	var completed []model.Submission
	incompleted := 0
	for _, s := range submissions {
		if s.CompletedOn != nil {
			completed = append(completed, s)
		} else {
			incompleted++
		}
	}

	stats := TestStats{
		CompletedSubmissions:   len(completed),
		IncompletedSubmissions: incompleted,
		Exercises:              []ExerciseStats{},
		ScoreDistribution:      []ScoreDistributionEntry{},
	}
	if len(completed) < MinSubmissionsForStats {
		return stats
	}

	for _, noteID := range distinctExercises(completed) {
		stats.Exercises = append(stats.Exercises, computeExercise(noteID, completed))
	}
	stats.ScoreDistribution = computeDistribution(completed)
	return stats
}

// distinctExercises lists exercise note ids in first-encounter order across
// completed submissions, keeping the output stable between calls.
func distinctExercises(completed []model.Submission) []string {
	seen := make(map[string]bool)
	var ids []string
	for _, s := range completed {
		for _, a := range s.Answers {
			if !seen[a.NoteID] {
				seen[a.NoteID] = true
				ids = append(ids, a.NoteID)
			}
		}
	}
	return ids
}

func computeExercise(noteID string, completed []model.Submission) ExerciseStats {
	ex := ExerciseStats{NoteID: noteID}

	var answeredScores, totalScores []float64
	answeredSum := 0.0
	for _, s := range completed {
		a, ok := findAnswer(s.Answers, noteID)
		if !ok {
			continue
		}
		ex.TotalAnswers++

		score := AnswerScore(a)
		if score == 1 {
			ex.CorrectAnswers++
		}
		if a.Answer == nil {
			ex.EmptyAnswers++
			continue
		}
		answeredSum += score
		if s.Score != nil {
			answeredScores = append(answeredScores, score)
			totalScores = append(totalScores, *s.Score)
		}
	}

	if answered := ex.TotalAnswers - ex.EmptyAnswers; answered > 0 {
		mean := answeredSum / float64(answered)
		ex.AverageScore = &mean
	}

	ex.CorrelationToTotal = pearson(answeredScores, totalScores)
	return ex
}

func findAnswer(answers []model.Answer, noteID string) (model.Answer, bool) {
	for _, a := range answers {
		if a.NoteID == noteID {
			return a, true
		}
	}
	return model.Answer{}, false
}

// pearson returns the correlation coefficient of two aligned series, or nil
// when the series are empty or either has zero variance.
func pearson(xs, ys []float64) *float64 {
	n := len(xs)
	if n == 0 || n != len(ys) {
		return nil
	}

	var meanX, meanY float64
	for i := 0; i < n; i++ {
		meanX += xs[i]
		meanY += ys[i]
	}
	meanX /= float64(n)
	meanY /= float64(n)

	var sxx, syy, sxy float64
	for i := 0; i < n; i++ {
		dx := xs[i] - meanX
		dy := ys[i] - meanY
		sxx += dx * dx
		syy += dy * dy
		sxy += dx * dy
	}
	if sxx == 0 || syy == 0 {
		return nil
	}
	r := sxy / math.Sqrt(sxx*syy)
	return &r
}

// computeDistribution buckets completed submissions with a defined score by
// the integer part of the score. Bucket counts sum to exactly the number of
// scored submissions.
func computeDistribution(completed []model.Submission) []ScoreDistributionEntry {
	type bucket struct {
		min, max float64
		count    int
	}
	buckets := make(map[int]*bucket)

	for _, s := range completed {
		if s.Score == nil {
			continue
		}
		score := *s.Score
		key := int(math.Floor(score + distributionEpsilon))
		b, ok := buckets[key]
		if !ok {
			buckets[key] = &bucket{min: score, max: score, count: 1}
			continue
		}
		b.count++
		if score < b.min {
			b.min = score
		}
		if score > b.max {
			b.max = score
		}
	}

	keys := make([]int, 0, len(buckets))
	for k := range buckets {
		keys = append(keys, k)
	}
	sort.Ints(keys)

	entries := make([]ScoreDistributionEntry, 0, len(keys))
	for _, k := range keys {
		b := buckets[k]
		entries = append(entries, ScoreDistributionEntry{ScoreMin: b.min, ScoreMax: b.max, Count: b.count})
	}
	return entries
}
