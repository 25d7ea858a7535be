package domain

// Choice is one labeled answer of a multiple-choice item.
type Choice struct {
	Label string `json:"label"`
	Text  string `json:"text"`
}

// MultipleChoiceItem is a question with labeled choices and exactly one correct label.
type MultipleChoiceItem struct {
	ID           string   `json:"id"`
	Prompt       string   `json:"question"`
	SourceText   string   `json:"sourceText,omitempty"`
	Choices      []Choice `json:"choices"`
	CorrectLabel string   `json:"correctOption"`
}

// FreeTextItem asks a question about a passage; answers are scored remotely.
type FreeTextItem struct {
	ID       string `json:"id"`
	Question string `json:"question"`
	Passage  string `json:"inputText"`
}

// AudioItem is a passage the learner reads aloud.
type AudioItem struct {
	ID         string `json:"id"`
	Passage    string `json:"texte"`
	Level      string `json:"niveau,omitempty"`
	Difficulty string `json:"difficulty,omitempty"`
}

// QuestionSet is the snapshot of the three ordered collections a session plays through.
type QuestionSet struct {
	MultipleChoice []MultipleChoiceItem `json:"multipleChoice"`
	FreeText       []FreeTextItem       `json:"freeText"`
	Audio          []AudioItem          `json:"audio"`
}

// Section identifies one of the three exercise categories.
type Section string

const (
	SectionMultipleChoice Section = "multiple_choice"
	SectionFreeText       Section = "free_text"
	SectionAudio          Section = "audio"
)

// FinalResults holds the normalized per-section and overall scores of a finished session.
type FinalResults struct {
	MultipleChoice      int      `json:"qcmScoreTotal"`
	Text                int      `json:"textScoreTotal"`
	AudioPronunciation  int      `json:"audioPronunciationTotal"`
	AudioAccuracy       int      `json:"audioAccuracyTotal"`
	Overall             int      `json:"finalAverageScore"`
	Feedback            []string `json:"feedback,omitempty"`
	DegradedEvaluations int      `json:"degradedEvaluations,omitempty"`
}

// Role is the account kind; only learners get their results written back.
type Role string

const (
	RoleStudent Role = "student"
	RoleTeacher Role = "teacher"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleStudent || r == RoleTeacher
}

// Status tracks a learner's progress through the quiz.
type Status string

const (
	StatusNotStarted Status = "Not Started"
	StatusInProgress Status = "In Progress"
	StatusCompleted  Status = "Completed"
)

// User is an account of the quiz application.
type User struct {
	ID           string        `json:"_id"`
	Username     string        `json:"username"`
	PasswordHash string        `json:"-"`
	Role         Role          `json:"role"`
	Score        *FinalResults `json:"score"`
	Status       Status        `json:"status"`
}

// IsLearner reports whether results of this user's sessions are persisted.
func (u User) IsLearner() bool {
	return u.Role == RoleStudent
}
