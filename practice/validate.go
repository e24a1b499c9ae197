package practice

import (
	"sort"
	"strings"
)

// ValidateAnswer reports whether a submitted answer matches the canonical
// one. Multiple-choice compares the two letter sets order-independently;
// single-choice and judgment compare exactly. Both sides are compared
// case-insensitively.
func ValidateAnswer(userAnswer, correctAnswer string, isMultipleChoice bool) bool {
	userAnswer = strings.ToUpper(strings.TrimSpace(userAnswer))
	correctAnswer = strings.ToUpper(strings.TrimSpace(correctAnswer))

	if !isMultipleChoice {
		return userAnswer == correctAnswer
	}

	return letterSet(userAnswer) == letterSet(correctAnswer)
}

// letterSet normalizes a letter answer into its sorted unique form
func letterSet(answer string) string {
	seen := make(map[rune]bool)
	var letters []rune
	for _, r := range answer {
		if r == ' ' || r == ',' {
			continue
		}
		if !seen[r] {
			seen[r] = true
			letters = append(letters, r)
		}
	}
	sort.Slice(letters, func(i, j int) bool { return letters[i] < letters[j] })
	return string(letters)
}

// PeekedAnswerDisplay is shown in place of an answer the user never gave
const PeekedAnswerDisplay = "未作答（直接查看答案）"

// FormatAnswerDisplay renders an answer with its option texts: judgment
// answers get their T/F labels, multiple-choice joins each chosen option
// with " + ", single-choice shows the one option.
func FormatAnswerDisplay(answer string, options map[string]string, isMultipleChoice bool) string {
	answer = strings.ToUpper(answer)

	if len(options) == 0 {
		switch answer {
		case "T":
			return "T. 正确"
		case "F":
			return "F. 错误"
		}
		return answer
	}

	if isMultipleChoice {
		var parts []string
		for _, letter := range strings.Split(letterSet(answer), "") {
			if text, ok := options[letter]; ok {
				parts = append(parts, letter+". "+text)
			}
		}
		return strings.Join(parts, " + ")
	}

	if text, ok := options[answer]; ok {
		return answer + ". " + text
	}
	return answer
}
