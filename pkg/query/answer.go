package query

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/OFFIS-RIT/kgraph/internal/util"
	"github.com/OFFIS-RIT/kgraph/pkg/ai"
	"github.com/OFFIS-RIT/kgraph/pkg/common"
	"github.com/OFFIS-RIT/kgraph/pkg/logger"

	"github.com/pkoukk/tiktoken-go"
)

const (
	NoInformationAnswer = "I couldn't find any relevant information to answer your question."
	NoClearAnswer       = "I couldn't generate a clear answer from the available information."

	answerChunks     = 5
	answerSentences  = 4
	contextSnippets  = 5
	maxNodesUsed     = 10
	snippetChars     = 200
	contextChars     = 2000
	minSentenceChars = 20
)

var sentenceBoundary = regexp.MustCompile(`[.!?]+`)

// Composer answers questions from retrieved chunks. With a Generator it asks
// a model for a cited answer and falls back to sentence extraction whenever
// generation fails; without one it always extracts.
type Composer struct {
	retriever     *Retriever
	expander      *Expander
	docs          DocumentReader
	generator     ai.Generator
	tokenEncoder  string
	encoderOnce   sync.Once
	encoder       *tiktoken.Tiktoken
	contextTokens int
	alpha         float64
}

// NewComposerParams configures a Composer. Generator and Documents are
// optional. TokenEncoder names a tiktoken encoding used to cap the
// generative context at ContextTokens; an empty name disables the cap. The
// encoding is loaded on the first generative answer. Alpha is used as given,
// so zero means keyword-only retrieval.
type NewComposerParams struct {
	Retriever     *Retriever
	Expander      *Expander
	Documents     DocumentReader
	Generator     ai.Generator
	TokenEncoder  string
	ContextTokens int
	Alpha         float64
}

func NewComposer(params NewComposerParams) (*Composer, error) {
	if params.Retriever == nil || params.Expander == nil {
		return nil, errors.New("retriever and expander are required")
	}
	alpha := params.Alpha
	if alpha < 0 || alpha > 1 {
		return nil, fmt.Errorf("%w: alpha %v is outside [0,1]", common.ErrInvalidInput, alpha)
	}

	c := &Composer{
		retriever:     params.Retriever,
		expander:      params.Expander,
		docs:          params.Documents,
		generator:     params.Generator,
		tokenEncoder:  params.TokenEncoder,
		contextTokens: params.ContextTokens,
		alpha:         alpha,
	}
	return c, nil
}

// Generative reports whether answers are generated by a model.
func (c *Composer) Generative() bool {
	return c.generator != nil
}

// Search runs hybrid retrieval with the composer's alpha.
func (c *Composer) Search(ctx context.Context, query string, k int) ([]common.ChunkResult, error) {
	return c.retriever.Search(ctx, query, k, c.alpha)
}

type answerOptions struct {
	tracer Tracer
}

type AnswerOption func(*answerOptions)

// WithTracer records what the answer touched.
func WithTracer(t Tracer) AnswerOption {
	return func(o *answerOptions) {
		o.tracer = t
	}
}

// Answer retrieves up to k chunks for question and composes an answer. It
// fails only when retrieval or expansion fails; generation errors are
// absorbed by the extractive path.
func (c *Composer) Answer(ctx context.Context, question string, k int, opts ...AnswerOption) (common.Answer, error) {
	o := answerOptions{}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	start := time.Now()

	results, err := c.retriever.Search(ctx, question, k, c.alpha)
	if err != nil {
		return common.Answer{}, err
	}
	ids := make([]string, len(results))
	for i, r := range results {
		ids[i] = r.Chunk.ID
	}
	RecordRetrievedChunkIDs(o.tracer, ids...)

	if len(results) == 0 {
		RecordAnswerMode(o.tracer, AnswerModeEmpty, time.Since(start), nil)
		return EmptyAnswer(), nil
	}

	hood, err := c.expander.Expand(ctx, results)
	if err != nil {
		return common.Answer{}, err
	}
	nodes := TopLabels(hood, maxNodesUsed)
	RecordExpandedConcepts(o.tracer, nodes...)

	var ans common.Answer
	mode := AnswerModeExtractive
	var genErr error
	if c.generator != nil {
		var res ai.GenerationResult
		ans, res = c.generative(ctx, question, results)
		switch res.Outcome {
		case ai.Generated:
			mode = AnswerModeGenerative
		default:
			genErr = res.Err
			logger.Warn("[Query] Generation failed, using extractive answer", "err", res.Err)
			ans = Extractive(results)
			mode = AnswerModeFallback
		}
	} else {
		ans = Extractive(results)
	}
	ans.NodesUsed = nodes

	c.enrichSources(ctx, ans.Sources)

	used := make([]string, len(ans.Sources))
	for i, s := range ans.Sources {
		used[i] = s.ChunkID
	}
	RecordUsedChunkIDs(o.tracer, used...)
	RecordAnswerMode(o.tracer, mode, time.Since(start), genErr)

	return ans, nil
}

// EmptyAnswer is returned when nothing relevant was retrieved.
func EmptyAnswer() common.Answer {
	return common.Answer{
		Answer:    NoInformationAnswer,
		Sources:   []common.Source{},
		NodesUsed: []string{},
	}
}

type sentence struct {
	text  string
	score float64
	chunk common.ChunkResult
}

// Extractive builds an answer from the best sentences of the top chunks.
// Sentences of at most 20 characters are dropped; the rest are ranked by
// their chunk's score, and the top four joined. Sources list the first
// chunk of each document that contributed a sentence.
func Extractive(results []common.ChunkResult) common.Answer {
	top := results[:min(answerChunks, len(results))]

	sentences := make([]sentence, 0)
	for _, r := range top {
		for _, part := range sentenceBoundary.Split(r.Chunk.Text, -1) {
			part = strings.TrimSpace(part)
			if len([]rune(part)) <= minSentenceChars {
				continue
			}
			sentences = append(sentences, sentence{text: part, score: r.Score, chunk: r})
		}
	}
	sort.SliceStable(sentences, func(i, j int) bool {
		return sentences[i].score > sentences[j].score
	})
	sentences = sentences[:min(answerSentences, len(sentences))]

	ans := common.Answer{Sources: []common.Source{}, NodesUsed: []string{}}
	if len(sentences) == 0 {
		ans.Answer = NoClearAnswer
		return ans
	}

	texts := make([]string, len(sentences))
	seenDocs := make(map[string]struct{})
	for i, s := range sentences {
		texts[i] = s.text
		if _, ok := seenDocs[s.chunk.Chunk.DocumentID]; ok {
			continue
		}
		seenDocs[s.chunk.Chunk.DocumentID] = struct{}{}
		ans.Sources = append(ans.Sources, toSource(s.chunk))
	}

	ans.Answer = strings.Join(texts, ". ")
	if !strings.HasSuffix(ans.Answer, ".") {
		ans.Answer += "."
	}
	return ans
}

func (c *Composer) generative(ctx context.Context, question string, results []common.ChunkResult) (common.Answer, ai.GenerationResult) {
	snippets := SelectBestSnippets(results, contextSnippets)
	parts := make([]string, len(snippets))
	for i, s := range snippets {
		parts[i] = fmt.Sprintf("[%d] %s", i+1, s)
	}
	background := util.Truncate(strings.Join(parts, "\n\n"), contextChars, "...")
	background = c.capTokens(background)

	prompt := fmt.Sprintf(ai.AnswerPrompt, question, background)
	res := c.generator.Generate(ctx, ai.AnswerSystemPrompt, prompt)
	if res.Outcome != ai.Generated {
		return common.Answer{}, res
	}

	top := results[:min(answerChunks, len(results))]
	ans := common.Answer{
		Answer:    res.Text,
		Sources:   make([]common.Source, 0, len(top)),
		NodesUsed: []string{},
	}
	for _, r := range top {
		ans.Sources = append(ans.Sources, toSource(r))
	}
	return ans, res
}

// loadEncoder fetches the tiktoken encoding once. A failure is logged and
// leaves the context capped by characters only.
func (c *Composer) loadEncoder() *tiktoken.Tiktoken {
	c.encoderOnce.Do(func() {
		if c.tokenEncoder == "" || c.contextTokens <= 0 {
			return
		}
		enc, err := tiktoken.GetEncoding(c.tokenEncoder)
		if err != nil {
			logger.Warn("[Query] Failed to load token encoder", "encoder", c.tokenEncoder, "err", err)
			return
		}
		c.encoder = enc
	})
	return c.encoder
}

func (c *Composer) capTokens(text string) string {
	enc := c.loadEncoder()
	if enc == nil {
		return text
	}
	tokens := enc.Encode(text, nil, nil)
	if len(tokens) <= c.contextTokens {
		return text
	}
	return enc.Decode(tokens[:c.contextTokens]) + "..."
}

func toSource(r common.ChunkResult) common.Source {
	return common.Source{
		ChunkID:    r.Chunk.ID,
		DocumentID: r.Chunk.DocumentID,
		Text:       util.Truncate(r.Chunk.Text, snippetChars, "..."),
		Score:      r.Score,
	}
}

// enrichSources fills in document names and URLs. Lookup failures leave the
// sources as they are.
func (c *Composer) enrichSources(ctx context.Context, sources []common.Source) {
	if c.docs == nil || len(sources) == 0 {
		return
	}
	ids := make([]string, 0, len(sources))
	for _, s := range sources {
		ids = append(ids, s.DocumentID)
	}
	docs, err := c.docs.GetDocuments(ctx, ids)
	if err != nil {
		logger.Warn("[Query] Failed to load source documents", "err", err)
		return
	}
	for i := range sources {
		if doc, ok := docs[sources[i].DocumentID]; ok {
			sources[i].DocName = doc.Name
			sources[i].URL = doc.URL
		}
	}
}
