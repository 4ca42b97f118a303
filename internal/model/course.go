package model

// Course 课程归创建它的讲师所有，课时与测验随课程级联删除
type Course struct {
	BaseModel
	Title        string        `gorm:"size:255;not null" json:"title"`
	Description  string        `gorm:"type:text" json:"description"`
	CreatedBy    uint          `gorm:"index;not null" json:"createdBy"`
	Published    bool          `gorm:"not null" json:"published"`
	Lessons      []Lesson      `gorm:"foreignKey:CourseID;constraint:OnDelete:CASCADE" json:"lessons,omitempty"`
	Quizzes      []Quiz        `gorm:"foreignKey:CourseID;constraint:OnDelete:CASCADE" json:"quizzes,omitempty"`
	Certificates []Certificate `gorm:"foreignKey:CourseID;constraint:OnDelete:RESTRICT" json:"-"`
}

func (Course) TableName() string {
	return "courses"
}

type Lesson struct {
	BaseModel
	CourseID        uint   `gorm:"index;not null" json:"courseId"`
	Title           string `gorm:"size:255;not null" json:"title"`
	Order           int    `gorm:"column:sort_order;default:0" json:"order"`
	VideoPath       string `gorm:"size:500" json:"videoPath,omitempty"`
	DurationSeconds int    `gorm:"default:0" json:"durationSeconds"`
}

func (Lesson) TableName() string {
	return "lessons"
}

type Quiz struct {
	BaseModel
	CourseID     uint          `gorm:"index;not null" json:"courseId"`
	LessonID     *uint         `gorm:"index" json:"lessonId,omitempty"`
	Title        string        `gorm:"size:255;not null" json:"title"`
	PassingScore int           `gorm:"not null" json:"passingScore"`
	Questions    []Question    `gorm:"foreignKey:QuizID;constraint:OnDelete:CASCADE" json:"questions,omitempty"`
	Attempts     []QuizAttempt `gorm:"foreignKey:QuizID;constraint:OnDelete:RESTRICT" json:"-"`
}

func (Quiz) TableName() string {
	return "quizzes"
}

type QuestionType string

const (
	SingleChoice   QuestionType = "single"
	MultipleChoice QuestionType = "multiple"
)

type Question struct {
	BaseModel
	QuizID  uint         `gorm:"index;not null" json:"quizId"`
	Text    string       `gorm:"type:text;not null" json:"text"`
	Type    QuestionType `gorm:"size:20;default:'single'" json:"type"`
	Order   int          `gorm:"column:sort_order;default:0" json:"order"`
	Answers []Answer     `gorm:"foreignKey:QuestionID;constraint:OnDelete:CASCADE" json:"answers,omitempty"`
}

func (Question) TableName() string {
	return "questions"
}

// Answer 的 IsCorrect 永不序列化给客户端
type Answer struct {
	BaseModel
	QuestionID uint   `gorm:"index;not null" json:"questionId"`
	Text       string `gorm:"type:text;not null" json:"text"`
	IsCorrect  bool   `gorm:"default:false" json:"-"`
}

func (Answer) TableName() string {
	return "answers"
}
