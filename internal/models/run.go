package models

import (
	"fmt"
	"time"
)

// RunState 单次处理流程的状态
type RunState string

const (
	// StateIdle 初始状态
	StateIdle RunState = "idle"
	// StateFormatChecked 文档格式已确认
	StateFormatChecked RunState = "format_checked"
	// StateTextExtracted 文本已提取
	StateTextExtracted RunState = "text_extracted"
	// StateQuestionsExtracted 问题已切分，等待用户触发回答
	StateQuestionsExtracted RunState = "questions_extracted"
	// StateAnswersAcquired 所有问题都已有回答（或兜底文本）
	StateAnswersAcquired RunState = "answers_acquired"
	// StateAssembled 结果文档已生成
	StateAssembled RunState = "assembled"
	// StateDone 流程结束
	StateDone RunState = "done"
	// StateFailed 流程失败
	StateFailed RunState = "failed"
)

// transitions 允许的状态转换，failed可以从任意非终止状态到达
var transitions = map[RunState]RunState{
	StateIdle:               StateFormatChecked,
	StateFormatChecked:      StateTextExtracted,
	StateTextExtracted:      StateQuestionsExtracted,
	StateQuestionsExtracted: StateAnswersAcquired,
	StateAnswersAcquired:    StateAssembled,
	StateAssembled:          StateDone,
}

// IsTerminal 是否为终止状态
func (s RunState) IsTerminal() bool {
	return s == StateDone || s == StateFailed
}

// ErrorKind 错误分类
type ErrorKind string

const (
	ErrorKindNone              ErrorKind = ""
	ErrorKindUnsupportedFormat ErrorKind = "unsupported_format"
	ErrorKindExtractionFailed  ErrorKind = "extraction_failed"
	ErrorKindOCRUnavailable    ErrorKind = "ocr_unavailable"
	ErrorKindStorage           ErrorKind = "storage"
	ErrorKindCancelled         ErrorKind = "cancelled"
	ErrorKindAssembly          ErrorKind = "assembly"
)

// AnswerResult 问题与回答
type AnswerResult struct {
	Index    int    `json:"index"`    // 问题序号，从1开始
	Question string `json:"question"` // 问题原文
	Answer   string `json:"answer"`   // 回答或兜底文本
	Failed   bool   `json:"failed"`   // 是否使用了兜底文本
}

// Run 当前这一次文档处理的状态
// 只保存在缓存中，不写入数据库
type Run struct {
	ID         string         `json:"id"`
	FileName   string         `json:"file_name"`
	Format     string         `json:"format"`
	State      RunState       `json:"state"`
	Method     string         `json:"method,omitempty"`
	Questions  []string       `json:"questions"`
	Results    []AnswerResult `json:"results,omitempty"`
	Notices    []string       `json:"notices,omitempty"`
	ErrorKind  ErrorKind      `json:"error_kind,omitempty"`
	Error      string         `json:"error,omitempty"`
	ArtifactID string         `json:"artifact_id,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
}

// NewRun 创建处于idle状态的Run
func NewRun(id, fileName string) *Run {
	now := time.Now()
	return &Run{
		ID:        id,
		FileName:  fileName,
		State:     StateIdle,
		Questions: []string{},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Transition 转换到下一个状态，不允许跳过或回退
func (r *Run) Transition(to RunState) error {
	if to == StateFailed {
		if r.State.IsTerminal() {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, r.State, to)
		}
	} else if next, ok := transitions[r.State]; !ok || next != to {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, r.State, to)
	}

	r.State = to
	r.UpdatedAt = time.Now()
	return nil
}

// Fail 将Run标记为失败并记录错误
func (r *Run) Fail(kind ErrorKind, err error) {
	if !r.State.IsTerminal() {
		r.State = StateFailed
	}
	r.RecordError(kind, err)
}

// RecordError 记录错误但不改变状态
func (r *Run) RecordError(kind ErrorKind, err error) {
	r.ErrorKind = kind
	if err != nil {
		r.Error = err.Error()
	}
	r.UpdatedAt = time.Now()
}

// AddNotice 追加一条提示信息
func (r *Run) AddNotice(notices ...string) {
	r.Notices = append(r.Notices, notices...)
}

// NoQuestions 已完成问题切分但没有找到问题
func (r *Run) NoQuestions() bool {
	return r.State == StateQuestionsExtracted && len(r.Questions) == 0
}

// FailedAnswers 使用兜底文本的回答数量
func (r *Run) FailedAnswers() int {
	n := 0
	for _, res := range r.Results {
		if res.Failed {
			n++
		}
	}
	return n
}
