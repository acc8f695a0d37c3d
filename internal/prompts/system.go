// Package prompts holds the fixed text the agent puts in front of the
// model and in front of users when a run degrades.
package prompts

import (
	"fmt"
	"strings"
)

// systemTemplate frames the model as a merchant operations assistant.
// %s is the rendered tool list, one "- name: description" line per
// tool, in registry order.
const systemTemplate = `You are an AI Shopping Operations Assistant for an online merchant. Your job is to help the merchant understand their sales velocity and inventory levels.

You analyze sales and inventory data to provide insights and answer operational questions.

You have access to the following tools:

%s

Always follow these guidelines:
1. Use the tools to answer questions accurately. Don't make up information.
2. If you need specific product IDs or time periods that weren't provided, ask for clarification.
3. Be precise and concise in your responses.
4. Format numbers clearly (e.g., use $ for dollar amounts, %% for percentages).
5. Provide actionable insights where possible (e.g., note if inventory is critically low).

Important: You must use tools to retrieve data before answering questions about inventory or sales.`

// System renders the system prompt with the given tool descriptions.
func System(toolDescriptions string) string {
	return fmt.Sprintf(systemTemplate, strings.TrimSpace(toolDescriptions))
}

// Apology is the user-safe text returned when a run fails outright.
const Apology = "I'm sorry, I ran into a problem while working on your question. Please try again."

// TimeoutApology is returned when a run exceeds its wall-clock deadline.
const TimeoutApology = "I'm sorry, that question took too long to answer. Please try again or ask something more specific."

// Nudge is injected as a user message when the model returns an empty
// turn (no text, no tool calls) to prompt a usable answer.
const Nudge = "Please answer the question above, using tools if you need data."

// EmptyFallback is the final text used when the model stays empty even
// after the nudge.
const EmptyFallback = "I wasn't able to produce an answer for that question. Please try rephrasing it."
