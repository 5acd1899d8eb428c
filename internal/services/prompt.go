package services

import (
	"fmt"
	"strings"

	"quiz-ai/internal/models"
)

// Delimiters of the agent output contract.
const (
	SummaryMarker = "---SUMMARY---"
	QuizMarker    = "---QUIZ---"
)

const rolePreamble = "You are an expert AI assistant for students. Your goal is to help users study more effectively. "

const trueFalseExample = `[
  {
    "question": "Is the sky blue?",
    "options": ["True", "False"],
    "answer": "True"
  }
]`

const multipleChoiceExample = `[
  {
    "question": "What is the capital of France?",
    "options": ["London", "Berlin", "Paris", "Madrid"],
    "answer": "Paris"
  }
]`

// BuildInstructions returns the agent instructions for a quiz of the given type and size.
// Anything other than True/False gets the multiple-choice template.
func BuildInstructions(quizType models.QuizType, numQuestions int) string {
	var b strings.Builder
	b.WriteString(rolePreamble)
	b.WriteString("1. First, use the `" + ToolExtractText + "` tool to read the content of the PDF file specified by the user. ")
	b.WriteString("2. After extracting the text, create a concise, easy-to-understand summary of the key points. ")
	fmt.Fprintf(&b, "3. Following the summary, generate a quiz with exactly %d questions based on the content. ", numQuestions)

	example := multipleChoiceExample
	if quizType == models.QuizTrueFalse {
		b.WriteString("4. The quiz must be a 'True/False' quiz. ")
		example = trueFalseExample
	} else {
		b.WriteString("4. The quiz must be a 'Multiple Choice' quiz with four options per question. ")
	}
	b.WriteString("Every answer must be copied exactly from that question's options. ")
	b.WriteString("**Crucially, format your final output *exactly* as follows:**\n")
	b.WriteString(SummaryMarker + "\n\n<Your summary here>\n\n")
	b.WriteString(QuizMarker + "\n\n")
	b.WriteString("```json\n")
	b.WriteString(example)
	b.WriteString("\n```")
	return b.String()
}

// BuildPrompt returns the user message pointing the agent at the document.
func BuildPrompt(filePath string) string {
	return "Please process the document located at the following path: " + filePath
}
