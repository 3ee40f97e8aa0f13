package document

import (
	"regexp"
	"strings"
)

// questionPattern 大写字母开头，中间不含句末标点，以问号结尾
var questionPattern = regexp.MustCompile(`[A-Z][^?.!]*\?`)

// minQuestionWords 问题至少需要的单词数（不含）
const minQuestionWords = 2

// Segment 从文本中切分出问句
// 按出现顺序返回，不去重，匹配可以跨越换行
func Segment(text string) []string {
	matches := questionPattern.FindAllString(text, -1)

	questions := make([]string, 0, len(matches))
	for _, m := range matches {
		q := strings.TrimSpace(m)
		if len(strings.Fields(q)) > minQuestionWords {
			questions = append(questions, q)
		}
	}
	return questions
}
