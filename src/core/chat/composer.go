package chat

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"text/template"
	"time"

	"github.com/tmc/langchaingo/textsplitter"

	"govrag/src/core/knowledgebase"
	"govrag/src/infrastructure/log"
)

const (
	maxContextDocs   = 3
	maxHistory       = 10
	maxRelatedTitles = 2
	DefaultChunkSize = 512
)

// Path names how an answer was produced
type Path string

const (
	PathGenerated Path = "generated"
	PathFallback  Path = "fallback"
	PathTemplated Path = "templated"
)

// Composition is the composed answer text and the confidence of its path
type Composition struct {
	Content    string
	Confidence float64
	Path       Path
}

// Composer turns retrieval results and prior messages into an answer.
// It never fails: backend problems are folded into a fallback composition.
type Composer interface {
	Compose(ctx context.Context, history []knowledgebase.ChatMessage, question string, results []knowledgebase.SearchResult) Composition
}

// Completion is the outcome of one generation call
type Completion struct {
	Text string
	Err  error
}

// OK reports whether the backend produced usable text
func (c Completion) OK() bool {
	return c.Err == nil && strings.TrimSpace(c.Text) != ""
}

var (
	tmplFuncs   = template.FuncMap{"inc": func(i int) int { return i + 1 }}
	contextTmpl = template.Must(template.New("context").Funcs(tmplFuncs).Parse(ContextBlockTmpl))
	answerTmpl  = template.Must(template.New("answer").Parse(TemplatedAnswerTmpl))
)

// LiveComposer asks a generation backend for the answer
type LiveComposer struct {
	backend    knowledgebase.GenerationBackend
	timeout    time.Duration
	confidence ConfidenceConfig
	splitter   textsplitter.TextSplitter
}

// NewLiveComposer bounds each backend call by timeout when it is positive.
// Document excerpts in the context block are cut to chunkSize estimated tokens.
func NewLiveComposer(backend knowledgebase.GenerationBackend, timeout time.Duration, confidence ConfidenceConfig, chunkSize int) *LiveComposer {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	return &LiveComposer{
		backend:    backend,
		timeout:    timeout,
		confidence: confidence,
		splitter: textsplitter.NewRecursiveCharacter(
			textsplitter.WithChunkSize(chunkSize),
			textsplitter.WithChunkOverlap(0),
			textsplitter.WithLenFunc(EstimateTokens),
		),
	}
}

func (l *LiveComposer) Compose(ctx context.Context, history []knowledgebase.ChatMessage, question string, results []knowledgebase.SearchResult) Composition {
	completion := l.complete(ctx, l.BuildMessages(history, question, results))
	if completion.OK() {
		conf := l.confidence.GeneratedNoDocs
		if len(results) > 0 {
			conf = l.confidence.Generated
		}
		return Composition{
			Content:    strings.TrimSpace(completion.Text),
			Confidence: clamp(conf, 0, 1),
			Path:       PathGenerated,
		}
	}

	log.Error(completion.Err, "generation failed, using templated answer", "results", len(results))
	return Composition{
		Content:    TemplatedAnswer(results),
		Confidence: clamp(l.confidence.Fallback, 0, 1),
		Path:       PathFallback,
	}
}

func (l *LiveComposer) complete(ctx context.Context, messages []knowledgebase.Message) Completion {
	if l.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.timeout)
		defer cancel()
	}

	text, err := l.backend.Complete(ctx, messages)
	if err != nil {
		return Completion{Err: fmt.Errorf("failed to generate completion: %w", err)}
	}
	if strings.TrimSpace(text) == "" {
		return Completion{Err: fmt.Errorf("failed to generate completion: empty response")}
	}
	return Completion{Text: text}
}

type contextDoc struct {
	Title   string
	Excerpt string
	URL     string
}

// BuildMessages orders the conversation sent to the backend: the system
// instruction, a context block of the top documents, the latest prior
// messages oldest first and finally the question.
func (l *LiveComposer) BuildMessages(history []knowledgebase.ChatMessage, question string, results []knowledgebase.SearchResult) []knowledgebase.Message {
	messages := []knowledgebase.Message{
		{Role: knowledgebase.RoleSystem, Content: strings.TrimSpace(SystemInstructionTmpl)},
	}

	if block := l.contextBlock(results); block != "" {
		messages = append(messages, knowledgebase.Message{Role: knowledgebase.RoleSystem, Content: block})
	}

	if len(history) > maxHistory {
		history = history[len(history)-maxHistory:]
	}
	for _, m := range history {
		messages = append(messages, knowledgebase.Message{Role: m.Role, Content: m.Content})
	}

	return append(messages, knowledgebase.Message{Role: knowledgebase.RoleUser, Content: question})
}

func (l *LiveComposer) contextBlock(results []knowledgebase.SearchResult) string {
	if len(results) == 0 {
		return ""
	}
	if len(results) > maxContextDocs {
		results = results[:maxContextDocs]
	}

	docs := make([]contextDoc, 0, len(results))
	for _, r := range results {
		docs = append(docs, contextDoc{
			Title:   r.Document.Title,
			Excerpt: l.excerpt(r.Document.Content),
			URL:     r.Document.URL,
		})
	}

	var buf bytes.Buffer
	if err := contextTmpl.Execute(&buf, docs); err != nil {
		log.Error(err, "failed to execute context template")
		return ""
	}
	return strings.TrimSpace(buf.String())
}

func (l *LiveComposer) excerpt(content string) string {
	chunks, err := l.splitter.SplitText(content)
	if err != nil || len(chunks) == 0 {
		return content
	}
	return chunks[0]
}

// TemplatedComposer answers by quoting the retrieved documents without a backend
type TemplatedComposer struct {
	confidence ConfidenceConfig
}

func NewTemplatedComposer(confidence ConfidenceConfig) *TemplatedComposer {
	return &TemplatedComposer{
		confidence: confidence,
	}
}

func (t *TemplatedComposer) Compose(_ context.Context, _ []knowledgebase.ChatMessage, _ string, results []knowledgebase.SearchResult) Composition {
	conf := t.confidence.TemplatedNoResults
	if len(results) > 0 {
		conf = t.confidence.Templated
	}
	return Composition{
		Content:    TemplatedAnswer(results),
		Confidence: clamp(conf, 0, 1),
		Path:       PathTemplated,
	}
}

type answerData struct {
	Title   string
	Content string
	URL     string
	Related []string
}

// TemplatedAnswer quotes the top result and lists up to two related titles.
// Without results it returns NoResultsMessage.
func TemplatedAnswer(results []knowledgebase.SearchResult) string {
	if len(results) == 0 {
		return NoResultsMessage
	}

	top := results[0].Document
	data := answerData{
		Title:   top.Title,
		Content: top.Content,
		URL:     top.URL,
	}
	for _, r := range results[1:] {
		if len(data.Related) == maxRelatedTitles {
			break
		}
		data.Related = append(data.Related, r.Document.Title)
	}

	var buf bytes.Buffer
	if err := answerTmpl.Execute(&buf, data); err != nil {
		log.Error(err, "failed to execute answer template")
		return top.Title + "\n\n" + top.Content
	}
	return buf.String()
}
