package flow

import (
	"context"
	"fmt"
	"testing"

	"github.com/philippgille/chromem-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"document-qa/internal/config"
	"document-qa/internal/knowledge"
	"document-qa/internal/models"
	"document-qa/internal/parser"
)

type fakeHandler struct {
	text  string
	err   error
	reads *int
}

func (h *fakeHandler) ReadFile(file models.UploadedFile) (string, error) {
	if h.reads != nil {
		*h.reads++
	}
	return h.text, h.err
}

type fakeFactory struct {
	handlers map[string]parser.FileHandler
}

func (f *fakeFactory) FileHandler(fileType string) (parser.FileHandler, error) {
	h, ok := f.handlers[fileType]
	if !ok {
		return nil, fmt.Errorf("unsupported file type: %s", fileType)
	}
	return h, nil
}

type fakeProcessor struct {
	chunks   []string
	base     *knowledge.Base
	embedErr error
}

func (p *fakeProcessor) SplitText(text string) []string {
	return p.chunks
}

func (p *fakeProcessor) CreateEmbeddings(ctx context.Context, chunks []string) (*knowledge.Base, error) {
	return p.base, p.embedErr
}

type fakeRunner struct {
	setupCalls int
	docs       []string
	docsErr    error
	answer     string
	chainErr   error
	chainRuns  int
}

func (r *fakeRunner) Setup() error {
	r.setupCalls++
	return nil
}

func (r *fakeRunner) RelevantChunks(ctx context.Context, base *knowledge.Base, question string) ([]string, error) {
	return r.docs, r.docsErr
}

func (r *fakeRunner) RunChain(ctx context.Context, docs []string, question string) (string, error) {
	r.chainRuns++
	return r.answer, r.chainErr
}

// newTestBase builds a knowledge base preloaded with n pre-embedded
// documents, so no embedding service is needed.
func newTestBase(t *testing.T, n int) *knowledge.Base {
	t.Helper()
	base, err := knowledge.NewMemoryBase("test")
	require.NoError(t, err)
	if n == 0 {
		return base
	}
	docs := make([]chromem.Document, n)
	for i := range docs {
		docs[i] = chromem.Document{
			ID:        fmt.Sprintf("doc-%d", i),
			Content:   fmt.Sprintf("chunk %d", i),
			Embedding: []float32{1, float32(i), 0.5},
		}
	}
	require.NoError(t, base.AddDocuments(context.Background(), docs))
	return base
}

func newCoordinator(t *testing.T, factory FileHandlerFactory, proc TextProcessor, runner ChainRunner) *Coordinator {
	t.Helper()
	c, err := NewCoordinator(config.DefaultConfig(), factory, proc, runner)
	require.NoError(t, err)
	return c
}

func textFiles(names ...string) []models.UploadedFile {
	files := make([]models.UploadedFile, len(names))
	for i, name := range names {
		files[i] = models.UploadedFile{Name: name, Type: "text/plain", Data: []byte("x")}
	}
	return files
}

func TestRun_TooManyFiles(t *testing.T) {
	reads := 0
	factory := &fakeFactory{handlers: map[string]parser.FileHandler{
		"text/plain": &fakeHandler{text: "some text", reads: &reads},
	}}
	runner := &fakeRunner{}
	c := newCoordinator(t, factory, &fakeProcessor{}, runner)

	got := c.Run(context.Background(), textFiles("a.txt", "b.txt", "c.txt", "d.txt"), "question?")

	assert.Equal(t, "Please upload a maximum of 3 files", got)
	assert.Zero(t, reads, "no file should be read")
}

func TestRun_MissingInputs(t *testing.T) {
	factory := &fakeFactory{handlers: map[string]parser.FileHandler{}}
	c := newCoordinator(t, factory, &fakeProcessor{}, &fakeRunner{})
	ctx := context.Background()

	assert.Equal(t, msgNoInput, c.Run(ctx, nil, ""))
	assert.Equal(t, msgNoFiles, c.Run(ctx, nil, "question?"))
	assert.Equal(t, msgNoQuestion, c.Run(ctx, textFiles("a.txt"), ""))
	assert.Equal(t, msgNoQuestion, c.Run(ctx, textFiles("a.txt"), "   "))
}

func TestRun_ExtractionFailureNamesFileAndAborts(t *testing.T) {
	firstReads, secondReads := 0, 0
	factory := &fakeFactory{handlers: map[string]parser.FileHandler{
		"text/plain":    &fakeHandler{text: "", reads: &firstReads},
		"text/markdown": &fakeHandler{text: "never reached", reads: &secondReads},
	}}
	c := newCoordinator(t, factory, &fakeProcessor{}, &fakeRunner{})

	files := []models.UploadedFile{
		{Name: "broken.txt", Type: "text/plain", Data: []byte("x")},
		{Name: "fine.md", Type: "text/markdown", Data: []byte("x")},
	}
	got := c.Run(context.Background(), files, "question?")

	assert.Contains(t, got, "broken.txt")
	assert.Equal(t, 1, firstReads)
	assert.Zero(t, secondReads, "later files must not be processed")
}

func TestRun_UnknownFileTypeNamesFile(t *testing.T) {
	factory := &fakeFactory{handlers: map[string]parser.FileHandler{}}
	c := newCoordinator(t, factory, &fakeProcessor{}, &fakeRunner{})

	files := []models.UploadedFile{{Name: "image.png", Type: "image/png", Data: []byte("x")}}
	got := c.Run(context.Background(), files, "question?")

	assert.Contains(t, got, "image.png")
}

func TestRun_ChunkingFailure(t *testing.T) {
	factory := &fakeFactory{handlers: map[string]parser.FileHandler{
		"text/plain": &fakeHandler{text: "some text"},
	}}
	c := newCoordinator(t, factory, &fakeProcessor{chunks: nil}, &fakeRunner{})

	got := c.Run(context.Background(), textFiles("a.txt"), "question?")

	assert.Equal(t, msgNoChunks, got)
}

func TestRun_EmbeddingFailure(t *testing.T) {
	factory := &fakeFactory{handlers: map[string]parser.FileHandler{
		"text/plain": &fakeHandler{text: "some text"},
	}}
	runner := &fakeRunner{docs: []string{"should not be used"}}

	// nil knowledge base
	c := newCoordinator(t, factory, &fakeProcessor{chunks: []string{"chunk"}}, runner)
	got := c.Run(context.Background(), textFiles("a.txt"), "question?")
	assert.Equal(t, msgNoEmbeddings, got)

	// embedding error
	c = newCoordinator(t, factory, &fakeProcessor{chunks: []string{"chunk"}, embedErr: fmt.Errorf("boom")}, runner)
	got = c.Run(context.Background(), textFiles("a.txt"), "question?")
	assert.Equal(t, msgNoEmbeddings, got)

	// empty knowledge base
	c = newCoordinator(t, factory, &fakeProcessor{chunks: []string{"chunk"}, base: newTestBase(t, 0)}, runner)
	got = c.Run(context.Background(), textFiles("a.txt"), "question?")
	assert.Equal(t, msgNoEmbeddings, got)

	assert.Zero(t, runner.chainRuns, "chain must never run after an embedding failure")
}

func TestRun_RetrievalFailure(t *testing.T) {
	factory := &fakeFactory{handlers: map[string]parser.FileHandler{
		"text/plain": &fakeHandler{text: "some text"},
	}}
	proc := &fakeProcessor{chunks: []string{"chunk"}, base: newTestBase(t, 2)}

	runner := &fakeRunner{docs: nil}
	c := newCoordinator(t, factory, proc, runner)
	got := c.Run(context.Background(), textFiles("a.txt"), "question?")
	assert.Equal(t, msgNoRelevant, got)
	assert.Zero(t, runner.chainRuns)

	runner = &fakeRunner{docsErr: fmt.Errorf("search down")}
	c = newCoordinator(t, factory, proc, runner)
	got = c.Run(context.Background(), textFiles("a.txt"), "question?")
	assert.Equal(t, msgNoRelevant, got)
	assert.Zero(t, runner.chainRuns)
}

func TestRun_ChainErrorIsWrapped(t *testing.T) {
	factory := &fakeFactory{handlers: map[string]parser.FileHandler{
		"text/plain": &fakeHandler{text: "some text"},
	}}
	proc := &fakeProcessor{chunks: []string{"chunk"}, base: newTestBase(t, 1)}
	runner := &fakeRunner{docs: []string{"chunk"}, chainErr: fmt.Errorf("model offline")}
	c := newCoordinator(t, factory, proc, runner)

	got := c.Run(context.Background(), textFiles("a.txt"), "question?")

	assert.Equal(t, msgChainFailed, got)
}

func TestRun_EndToEnd(t *testing.T) {
	factory := &fakeFactory{handlers: map[string]parser.FileHandler{
		"text/plain":    &fakeHandler{text: "Alpha text."},
		"text/markdown": &fakeHandler{text: "Beta text."},
	}}
	proc := &fakeProcessor{
		chunks: []string{"Alpha text.", "Beta text."},
		base:   newTestBase(t, 2),
	}
	runner := &fakeRunner{
		docs:   []string{"Alpha text.", "Beta text."},
		answer: "Alpha is a thing.",
	}
	c := newCoordinator(t, factory, proc, runner)

	files := []models.UploadedFile{
		{Name: "alpha.txt", Type: "text/plain", Data: []byte("x")},
		{Name: "beta.md", Type: "text/markdown", Data: []byte("x")},
	}
	got := c.Run(context.Background(), files, "What is Alpha?")

	assert.Equal(t, "Alpha is a thing.", got)
	assert.Equal(t, 1, runner.chainRuns)
}

func TestRun_Idempotent(t *testing.T) {
	factory := &fakeFactory{handlers: map[string]parser.FileHandler{
		"text/plain": &fakeHandler{text: "Alpha text."},
	}}
	proc := &fakeProcessor{chunks: []string{"Alpha text."}, base: newTestBase(t, 1)}
	runner := &fakeRunner{docs: []string{"Alpha text."}, answer: "Alpha is a thing."}
	c := newCoordinator(t, factory, proc, runner)

	files := textFiles("alpha.txt")
	first := c.Run(context.Background(), files, "What is Alpha?")
	second := c.Run(context.Background(), files, "What is Alpha?")

	assert.Equal(t, first, second)
}

func TestNewCoordinator_SetupCalledOnce(t *testing.T) {
	runner := &fakeRunner{}
	c := newCoordinator(t, &fakeFactory{}, &fakeProcessor{}, runner)

	assert.Equal(t, 1, runner.setupCalls)

	c.Run(context.Background(), nil, "")
	assert.Equal(t, 1, runner.setupCalls, "Run must not re-run setup")
}
