package api

import (
	"fmt"
	"html/template"
	"time"

	"quiz-ai/internal/models"
	"quiz-ai/internal/session"
)

var templateFuncs = template.FuncMap{
	"filesize": filesize,
}

type questionView struct {
	Index    int                  `json:"index"`
	Number   int                  `json:"-"`
	Question string               `json:"question"`
	Options  []string             `json:"options"`
	Answered bool                 `json:"answered"`
	Record   *models.AnswerRecord `json:"answer,omitempty"`
}

// pageView is everything index.tmpl renders.
type pageView struct {
	Phase           session.Phase
	Document        *models.DocumentRef
	Options         models.QuizOptions
	QuizTypes       []models.QuizType
	QuestionCounts  []int
	Summary         string
	Questions       []questionView
	Score           int
	Total           int
	Answered        int
	Complete        bool
	Error           string
	FallbackSummary string
	MaxUploadMB     int64
}

func (s *Server) newPageView(snap session.Snapshot) pageView {
	counts := make([]int, 0, models.MaxQuestions-models.MinQuestions+1)
	for n := models.MinQuestions; n <= models.MaxQuestions; n++ {
		counts = append(counts, n)
	}
	view := pageView{
		Phase:           snap.Phase,
		Document:        snap.Document,
		Options:         snap.Options,
		QuizTypes:       models.QuizTypes,
		QuestionCounts:  counts,
		Questions:       questionViews(snap),
		Score:           snap.Score,
		Total:           snap.Total(),
		Answered:        len(snap.Answers),
		Complete:        snap.Complete(),
		Error:           snap.Error,
		FallbackSummary: snap.FallbackSummary,
		MaxUploadMB:     s.opts.MaxUploadBytes >> 20,
	}
	if snap.Result != nil {
		view.Summary = snap.Result.Summary
	}
	return view
}

// sessionView is the JSON form of a snapshot. Correct answers only appear for answered
// questions.
type sessionView struct {
	ID              string              `json:"id"`
	Phase           session.Phase       `json:"phase"`
	Generating      bool                `json:"generating"`
	Job             *Job                `json:"job,omitempty"`
	Document        *models.DocumentRef `json:"document,omitempty"`
	Options         models.QuizOptions  `json:"options"`
	Summary         string              `json:"summary,omitempty"`
	Questions       []questionView      `json:"questions,omitempty"`
	Score           int                 `json:"score"`
	Total           int                 `json:"total"`
	Answered        int                 `json:"answered"`
	Error           string              `json:"error,omitempty"`
	FallbackSummary string              `json:"fallbackSummary,omitempty"`
	UpdatedAt       time.Time           `json:"updatedAt"`
}

func (s *Server) newSessionView(snap session.Snapshot) sessionView {
	view := sessionView{
		ID:              snap.ID,
		Phase:           snap.Phase,
		Document:        snap.Document,
		Options:         snap.Options,
		Questions:       questionViews(snap),
		Score:           snap.Score,
		Total:           snap.Total(),
		Answered:        len(snap.Answers),
		Error:           snap.Error,
		FallbackSummary: snap.FallbackSummary,
		UpdatedAt:       snap.UpdatedAt,
	}
	if job, ok := s.jobs.Get(snap.ID); ok && job.Kind == JobGenerate {
		view.Generating = true
		view.Job = job
	}
	if snap.Result != nil {
		view.Summary = snap.Result.Summary
	}
	return view
}

func questionViews(snap session.Snapshot) []questionView {
	if snap.Result == nil {
		return nil
	}
	out := make([]questionView, len(snap.Result.Questions))
	for i, q := range snap.Result.Questions {
		out[i] = questionView{
			Index:    i,
			Number:   i + 1,
			Question: q.Question,
			Options:  q.Options,
		}
		if rec, ok := snap.Answered(i); ok {
			out[i].Answered = true
			out[i].Record = &rec
		}
	}
	return out
}

func filesize(n int64) string {
	switch {
	case n >= 1<<20:
		return fmt.Sprintf("%.1f MB", float64(n)/(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%.1f KB", float64(n)/(1<<10))
	default:
		return fmt.Sprintf("%d B", n)
	}
}
