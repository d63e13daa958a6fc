package pipeline

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"github.com/kataras/golog"
	"github.com/redis/go-redis/v9"
	"github.com/smallnest/langgraphgo/rag"
	"github.com/smallnest/langgraphgo/rag/engine"
	"github.com/smallnest/langgraphgo/rag/loader"
	"github.com/smallnest/langgraphgo/rag/retriever"
	"github.com/smallnest/langgraphgo/rag/splitter"
	"github.com/smallnest/langgraphgo/rag/store"
)

// Retrieval modes accepted by Query. They follow the downstream library's
// naming: naive is plain similarity search, mmr reranks for diversity, local
// and global are graph-based, hybrid and mix combine retrievers with weights.
const (
	ModeNaive  = "naive"
	ModeMMR    = "mmr"
	ModeLocal  = "local"
	ModeGlobal = "global"
	ModeHybrid = "hybrid"
	ModeMix    = "mix"
)

// Options configures the pipeline's backends and retrieval behavior.
type Options struct {
	// ChunkSize and ChunkOverlap control the text splitter. Zero values use
	// the downstream defaults (1000/200).
	ChunkSize    int
	ChunkOverlap int

	// TopK is the number of chunks retrieved per query. Defaults to 4.
	TopK int

	// SystemPrompt overrides the generation system prompt.
	SystemPrompt string

	// Milvus, when set, stores chunk vectors in a Milvus collection instead
	// of process memory.
	Milvus *MilvusOptions

	// GraphURL enables the knowledge-graph backend, in the form
	// falkordb://host:port/graph. Local and global modes retrieve from the
	// graph, and hybrid mode combines it with vector search.
	GraphURL string
}

// Pipeline glues the Azure model callables to the retrieval engine. It owns
// the storage backends it opens: ingest with ProcessDocument, answer with
// Query, release everything with Finalize.
type Pipeline struct {
	funcs    ModelFuncs
	embedder rag.Embedder
	splitter rag.TextSplitter

	vectorStore rag.VectorStore
	memStore    *store.InMemoryVectorStore
	milvusStore *MilvusStore

	graph       rag.KnowledgeGraph
	graphEngine *engine.GraphRAGEngine
	graphRedis  *redis.Client

	topK         int
	systemPrompt string
	log          *golog.Logger

	finalized bool
}

// New wires the model bundle to the configured storage backends. The
// knowledge-graph connection is probed eagerly so a bad address fails here
// rather than on the first query.
func New(funcs ModelFuncs, opts Options) (*Pipeline, error) {
	if err := funcs.Validate(); err != nil {
		return nil, err
	}

	if opts.TopK <= 0 {
		opts.TopK = 4
	}
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = 1000
	}
	if opts.ChunkOverlap <= 0 {
		opts.ChunkOverlap = 200
	}

	embedder := &embedderAdapter{funcs: funcs}

	p := &Pipeline{
		funcs:        funcs,
		embedder:     embedder,
		topK:         opts.TopK,
		systemPrompt: opts.SystemPrompt,
		log:          golog.Default,
		splitter: splitter.NewRecursiveCharacterTextSplitter(
			splitter.WithChunkSize(opts.ChunkSize),
			splitter.WithChunkOverlap(opts.ChunkOverlap),
		),
	}

	if opts.Milvus != nil {
		ms, err := NewMilvusStore(*opts.Milvus, embedder)
		if err != nil {
			return nil, fmt.Errorf("open milvus store: %w", err)
		}
		p.milvusStore = ms
		p.vectorStore = ms
	} else {
		p.memStore = store.NewInMemoryVectorStore(embedder)
		p.vectorStore = p.memStore
	}

	if opts.GraphURL != "" {
		if err := p.openGraph(opts.GraphURL, funcs); err != nil {
			_ = p.Finalize()
			return nil, err
		}
	}

	return p, nil
}

// openGraph probes the FalkorDB address with a plain redis ping, then hands
// the connection string to the downstream graph store.
func (p *Pipeline) openGraph(graphURL string, funcs ModelFuncs) error {
	u, err := url.Parse(graphURL)
	if err != nil {
		return fmt.Errorf("parse graph URL: %w", err)
	}
	if u.Host == "" {
		return fmt.Errorf("graph URL %q has no host", graphURL)
	}

	client := redis.NewClient(&redis.Options{Addr: u.Host})
	if err := client.Ping(context.Background()).Err(); err != nil {
		_ = client.Close()
		return fmt.Errorf("knowledge graph at %s unreachable: %w", u.Host, err)
	}
	p.graphRedis = client

	kg, err := store.NewFalkorDBGraph(graphURL)
	if err != nil {
		return fmt.Errorf("open knowledge graph: %w", err)
	}
	p.graph = kg

	ge, err := engine.NewGraphRAGEngine(rag.GraphRAGConfig{DatabaseURL: graphURL},
		&llmAdapter{funcs: funcs}, p.embedder, kg)
	if err != nil {
		return fmt.Errorf("build graph engine: %w", err)
	}
	p.graphEngine = ge

	return nil
}

// ProcessDocument loads the file at path, splits it into chunks and indexes
// them into every configured backend. It returns once indexing completes.
func (p *Pipeline) ProcessDocument(ctx context.Context, path string) error {
	docs, err := loader.NewTextLoader(path).Load(ctx)
	if err != nil {
		return fmt.Errorf("load document: %w", err)
	}

	chunks := p.splitter.SplitDocuments(docs)
	if len(chunks) == 0 {
		return fmt.Errorf("document %s produced no chunks", path)
	}

	p.log.Infof("indexing %d chunks (%d tokens) from %s", len(chunks), countDocumentTokens(chunks), path)

	if err := p.vectorStore.Add(ctx, chunks); err != nil {
		return fmt.Errorf("index chunks: %w", err)
	}

	if p.graphEngine != nil {
		if err := p.graphEngine.AddDocuments(ctx, chunks); err != nil {
			return fmt.Errorf("index knowledge graph: %w", err)
		}
	}

	return nil
}

// Query answers a question using the given retrieval mode. Retrieval and
// generation both run inside the downstream engine; an unknown mode is
// rejected before any network call.
func (p *Pipeline) Query(ctx context.Context, question, mode string) (string, error) {
	ret, err := p.retrieverFor(mode)
	if err != nil {
		return "", err
	}

	cfg := rag.DefaultPipelineConfig()
	cfg.TopK = p.topK
	cfg.IncludeCitations = false
	if p.systemPrompt != "" {
		cfg.SystemPrompt = p.systemPrompt
	}
	cfg.Retriever = ret
	cfg.LLM = &chatModel{funcs: p.funcs}

	rp := rag.NewRAGPipeline(cfg)
	if err := rp.BuildBasicRAG(); err != nil {
		return "", fmt.Errorf("build query pipeline: %w", err)
	}
	runnable, err := rp.Compile()
	if err != nil {
		return "", fmt.Errorf("compile query pipeline: %w", err)
	}

	out, err := runnable.Invoke(ctx, rag.RAGState{Query: question})
	if err != nil {
		return "", err
	}
	state, ok := out.(rag.RAGState)
	if !ok {
		return "", fmt.Errorf("unexpected pipeline state %T", out)
	}
	return state.Answer, nil
}

func (p *Pipeline) retrieverFor(mode string) (rag.Retriever, error) {
	cfg := rag.RetrievalConfig{K: p.topK, SearchType: "similarity"}
	vec := retriever.NewVectorRetriever(p.vectorStore, p.embedder, cfg)

	switch mode {
	case ModeNaive:
		return vec, nil

	case ModeMMR:
		mmrCfg := cfg
		mmrCfg.SearchType = "mmr"
		return retriever.NewVectorRetriever(p.vectorStore, p.embedder, mmrCfg), nil

	case ModeLocal, ModeGlobal:
		if p.graph != nil {
			return retriever.NewGraphRetriever(p.graph, p.embedder, cfg), nil
		}
		// Without a graph backend these modes degrade to similarity search.
		return vec, nil

	case ModeHybrid, ModeMix:
		var second rag.Retriever
		if p.graph != nil {
			second = retriever.NewGraphRetriever(p.graph, p.embedder, cfg)
		} else {
			mmrCfg := cfg
			mmrCfg.SearchType = "mmr"
			second = retriever.NewVectorRetriever(p.vectorStore, p.embedder, mmrCfg)
		}
		return retriever.NewHybridRetriever([]rag.Retriever{vec, second}, []float64{0.6, 0.4}, cfg), nil

	default:
		return nil, fmt.Errorf("unknown query mode %q", mode)
	}
}

// Finalize releases every storage backend the pipeline opened. It is safe to
// call more than once and on every exit path.
func (p *Pipeline) Finalize() error {
	if p.finalized {
		return nil
	}
	p.finalized = true

	var errs []error
	if p.memStore != nil {
		errs = append(errs, p.memStore.Close())
	}
	if p.milvusStore != nil {
		errs = append(errs, p.milvusStore.Close())
	}
	if p.graphRedis != nil {
		errs = append(errs, p.graphRedis.Close())
	}
	return errors.Join(errs...)
}
