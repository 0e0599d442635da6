package chat

const (
	SystemInstructionTmpl = `
You are a helpful assistant for a city government information service.
Answer questions about city services, permits, programs and procedures using only the provided government information.
If the information does not cover the question, say so and suggest contacting the relevant city department.
Keep answers concise and cite the source page titles you used.
`
	ContextBlockTmpl = `
Relevant government information:
{{range $i, $d := .}}
[{{inc $i}}] {{$d.Title}}
{{$d.Excerpt}}
{{- if $d.URL}}
Source: {{$d.URL}}
{{- end}}
{{end}}`
	TemplatedAnswerTmpl = `Based on the information I found about "{{.Title}}":

{{.Content}}
{{- if .URL}}

For more details, visit: {{.URL}}
{{- end}}
{{- if .Related}}

Related topics you might find helpful:
{{- range .Related}}
- {{.}}
{{- end}}
{{- end}}`

	NoResultsMessage = "I could not find information about that in the city's knowledge base. " +
		"Please try rephrasing your question or contact the city's information line for help."
	LimitReachedMessage = "This conversation has reached its message limit. " +
		"Please start a new conversation to continue."
)
