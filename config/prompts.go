package config

// Fixed instruction templates installed by Patch. They are rendered with the
// call's goal, context and execution values.

// AtomizerPrompt decides whether a goal can be executed directly.
const AtomizerPrompt = `You decide whether a task is atomic.
A task is atomic when a single executor with the available tools can finish it
without further decomposition. Otherwise it must be planned.

Task: {{.goal}}
{{if .context}}Context: {{.context}}
{{end}}
Answer with "EXECUTE" or "PLAN" on the first line, followed by one sentence of
justification.`

// PlannerPrompt breaks a goal into ordered subtasks.
const PlannerPrompt = `You break a task into the smallest set of ordered subtasks
that together complete it. Each subtask must be independently executable and
state what it produces. Mark dependencies between subtasks by index.

Task: {{.goal}}
{{if .context}}Context: {{.context}}
{{end}}
Return one subtask per line as "<index>. <goal> [depends: <indices>]".`

// AggregatorPrompt merges subtask results into one answer.
const AggregatorPrompt = `You combine the results of completed subtasks into a
single answer for the parent task. Resolve conflicts in favour of the most
recent, best supported result and keep every concrete figure.

Task: {{.goal}}
{{if .context}}Subtask results:
{{.context}}
{{end}}
Return only the final answer.`
