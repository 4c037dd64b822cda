package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"mnemo/src/internal/config"
	"mnemo/src/internal/index/chromem"
	"mnemo/src/internal/index/sqlite"
	"mnemo/src/internal/memory"
)

const usage = `usage: memctl -user <id> [-project <id> -org <id>] [-config <file>] <command>

commands:
  add <content...>   store a memory (-tags, -people, -topic)
  search             search memories (-query, -tags, -all-tags, -people,
                     -topic, -when, -limit, -threshold, -sort)
  list               list memories (-limit, -offset)
  delete <id>        delete one memory
  delete-all         delete every memory in the scope
  import <file>      bulk-load memories from a YAML seed file
`

func main() {
	var (
		configFile string
		user       string
		project    string
		org        string
	)
	flag.StringVar(&configFile, "config", "", "path to config file to load first")
	flag.StringVar(&user, "user", "", "tenant user id")
	flag.StringVar(&project, "project", "", "tenant project id")
	flag.StringVar(&org, "org", "", "tenant organization id")
	flag.Parse()

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, nil)))

	if flag.NArg() == 0 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	cfg, err := config.Load(configFile)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	loc, err := cfg.Location()
	if err != nil {
		slog.Error("failed to resolve timezone", "error", err)
		os.Exit(1)
	}

	embedder, err := buildEmbedder(cfg)
	if err != nil {
		slog.Error("failed to initialize embedder", "error", err)
		os.Exit(1)
	}
	index, err := buildIndex(cfg)
	if err != nil {
		slog.Error("failed to initialize index", "error", err)
		os.Exit(1)
	}

	svc := memory.NewService(index, embedder, loc,
		memory.WithDefaultLimit(cfg.Search.DefaultLimit))
	scope := memory.Scope{UserID: user, ProjectID: project, OrganizationID: org}
	ctx := context.Background()

	command := flag.Arg(0)
	rest := flag.Args()[1:]

	if err := run(ctx, svc, scope, command, rest); err != nil {
		slog.Error("command failed", "command", command, "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, svc *memory.Service, scope memory.Scope, command string, args []string) error {
	switch command {
	case "add":
		return runAdd(ctx, svc, scope, args)
	case "search":
		return runSearch(ctx, svc, scope, args)
	case "list":
		return runList(ctx, svc, scope, args)
	case "delete":
		if len(args) != 1 {
			return fmt.Errorf("delete takes exactly one memory id")
		}
		if err := svc.Delete(ctx, scope, args[0]); err != nil {
			return err
		}
		fmt.Println("deleted", args[0])
		return nil
	case "delete-all":
		result, err := svc.DeleteAll(ctx, scope)
		if err != nil {
			return err
		}
		fmt.Printf("deleted %d of %d memories\n", result.Deleted, result.Attempted)
		return nil
	case "import":
		if len(args) != 1 {
			return fmt.Errorf("import takes exactly one seed file")
		}
		return runImport(ctx, svc, scope, args[0])
	default:
		fmt.Fprint(os.Stderr, usage)
		return fmt.Errorf("unknown command %q", command)
	}
}

func runAdd(ctx context.Context, svc *memory.Service, scope memory.Scope, args []string) error {
	fs := flag.NewFlagSet("add", flag.ExitOnError)
	tags := fs.String("tags", "", "comma-separated tags")
	people := fs.String("people", "", "comma-separated people mentioned")
	topic := fs.String("topic", "", "topic category")
	_ = fs.Parse(args)

	content := strings.Join(fs.Args(), " ")
	id, err := svc.Add(ctx, scope, content, splitCSV(*tags), splitCSV(*people), *topic, nil)
	if err != nil {
		return err
	}
	fmt.Println(id)
	return nil
}

func runSearch(ctx context.Context, svc *memory.Service, scope memory.Scope, args []string) error {
	fs := flag.NewFlagSet("search", flag.ExitOnError)
	query := fs.String("query", "", "semantic query text")
	tags := fs.String("tags", "", "comma-separated tags")
	allTags := fs.Bool("all-tags", false, "require every tag instead of any")
	people := fs.String("people", "", "comma-separated people")
	topic := fs.String("topic", "", "topic category")
	when := fs.String("when", "", "temporal expression (today, weekends, q3, ...)")
	limit := fs.Int("limit", 0, "maximum results")
	threshold := fs.Float64("threshold", -1, "minimum similarity score")
	sortBy := fs.String("sort", "relevance", "sort order: relevance, timestamp, score")
	_ = fs.Parse(args)

	q := memory.SearchQuery{
		SemanticText:       *query,
		Tags:               splitCSV(*tags),
		MatchAllTags:       *allTags,
		People:             splitCSV(*people),
		TopicCategory:      *topic,
		TemporalExpression: *when,
		Limit:              *limit,
		SortBy:             memory.SortBy(*sortBy),
	}
	if *threshold >= 0 {
		q.ScoreThreshold = threshold
	}

	records, err := svc.Search(ctx, scope, q)
	if err != nil {
		return err
	}
	printRecords(records)
	return nil
}

func runList(ctx context.Context, svc *memory.Service, scope memory.Scope, args []string) error {
	fs := flag.NewFlagSet("list", flag.ExitOnError)
	limit := fs.Int("limit", 0, "maximum results (0 = all)")
	offset := fs.Int("offset", 0, "results to skip")
	_ = fs.Parse(args)

	records, err := svc.GetAll(ctx, scope, *limit, *offset)
	if err != nil {
		return err
	}
	printRecords(records)
	return nil
}

// seedEntry is one record in a YAML import file.
type seedEntry struct {
	Content  string            `yaml:"content"`
	Tags     []string          `yaml:"tags"`
	People   []string          `yaml:"people"`
	Topic    string            `yaml:"topic"`
	Metadata map[string]string `yaml:"metadata"`
}

func runImport(ctx context.Context, svc *memory.Service, scope memory.Scope, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read seed file: %w", err)
	}
	var entries []seedEntry
	if err := yaml.Unmarshal(data, &entries); err != nil {
		return fmt.Errorf("parse seed file: %w", err)
	}

	imported := 0
	for i, entry := range entries {
		id, err := svc.Add(ctx, scope, entry.Content, entry.Tags, entry.People, entry.Topic, entry.Metadata)
		if err != nil {
			slog.Warn("skipping seed entry", "index", i, "error", err)
			continue
		}
		slog.Debug("imported memory", "index", i, "id", id)
		imported++
	}
	fmt.Printf("imported %d of %d memories\n", imported, len(entries))
	return nil
}

func splitCSV(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func printRecords(records []memory.RankedRecord) {
	for _, rec := range records {
		line := fmt.Sprintf("%s  %.3f  %s", rec.ID, rec.Score, rec.Content)
		if len(rec.Tags) > 0 {
			line += "  [" + strings.Join(rec.Tags, ",") + "]"
		}
		fmt.Println(line)
	}
	fmt.Printf("%d result(s)\n", len(records))
}

func buildEmbedder(cfg *config.Config) (memory.Embedder, error) {
	switch strings.ToLower(cfg.Embeddings.Provider) {
	case "", "static":
		if cfg.Embeddings.WeightsPath != "" {
			return memory.LoadStaticEmbedder(cfg.Embeddings.WeightsPath)
		}
		return memory.NewStaticEmbedder(cfg.Embeddings.Dimensions, nil), nil
	case "openai":
		return memory.NewOpenAIEmbedder(
			cfg.Embeddings.APIKey,
			cfg.Embeddings.BaseURL,
			cfg.Embeddings.Model,
			cfg.Embeddings.Dimensions,
		), nil
	default:
		return nil, fmt.Errorf("unknown embeddings provider %q", cfg.Embeddings.Provider)
	}
}

func buildIndex(cfg *config.Config) (memory.Index, error) {
	switch strings.ToLower(cfg.Index.Backend) {
	case "", "chromem":
		return chromem.New(cfg.StorageDir, cfg.Index.Collection)
	case "sqlite":
		return sqlite.New(filepath.Join(cfg.StorageDir, "memories.db"))
	default:
		return nil, fmt.Errorf("unknown index backend %q", cfg.Index.Backend)
	}
}
