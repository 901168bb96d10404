package main

import (
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"

	"auto_dialogue_document/chart"
	"auto_dialogue_document/classifier"
	"auto_dialogue_document/config"
	"auto_dialogue_document/formatter"
	"auto_dialogue_document/gate"
	"auto_dialogue_document/generator"
	"auto_dialogue_document/pipeline"
	"auto_dialogue_document/rules"
	"auto_dialogue_document/session"
)

var (
	configPath string
	verbose    bool
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	root := &cobra.Command{
		Use:           "dialogdoc",
		Short:         "Turn multi-party discussions into chart-illustrated documents",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", config.DefaultPath, "path to config.json or config.yaml")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable info logs")

	root.AddCommand(serveCmd(), evaluateCmd(), renderCmd(), draftCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadConfig() (config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return config.Config{}, err
	}
	if verbose {
		cfg.Verbose = true
	}
	return cfg, nil
}

func buildLLM(cfg config.LLMConfig) (generator.LLMClient, error) {
	if cfg.Provider == "" {
		return nil, fmt.Errorf("llm config missing; please set llm.provider/model/api_key in config")
	}
	settings := &generator.LLMSettings{
		Provider:    cfg.Provider,
		Model:       cfg.Model,
		APIKey:      cfg.APIKey,
		BaseURL:     cfg.BaseURL,
		Temperature: cfg.Temperature,
		MaxRetries:  cfg.MaxRetries,
	}
	switch cfg.Provider {
	case "mock":
		return generator.MockLLM{}, nil
	case "openai":
		return generator.NewOpenAILLMFromConfig(settings)
	case "deepseek":
		// DeepSeek speaks the OpenAI protocol but needs its own endpoint.
		if cfg.BaseURL == "" {
			return nil, fmt.Errorf("llm provider deepseek requires base_url (OpenAI-compatible endpoint)")
		}
		return generator.NewOpenAILLMFromConfig(settings)
	default:
		return nil, fmt.Errorf("llm provider %s not supported", cfg.Provider)
	}
}

func buildStore(cfg config.SessionConfig) (session.Store, error) {
	switch cfg.Backend {
	case "redis":
		return session.NewRedisStore(cfg.RedisURL)
	default:
		return session.NewMemoryStore(), nil
	}
}

func loadRules(cfg config.Config) (rules.Rules, error) {
	if cfg.RulesPath == "" {
		return rules.Default(), nil
	}
	return rules.Load(cfg.RulesPath)
}

func buildGate(cfg config.Config, r rules.Rules) *gate.Gate {
	return gate.New(gate.Config{
		MinDepth:           cfg.Gate.MinDepth,
		CooldownRounds:     cfg.Gate.CooldownRounds,
		ConsensusPhrases:   r.Gate.Consensus,
		SubstantivePhrases: r.Gate.Substantive,
	})
}

// buildPipeline wires the core components from configuration. store and
// drafter may be nil for commands that never run a session.
func buildPipeline(cfg config.Config, store session.Store, drafter pipeline.Drafter) (*pipeline.Pipeline, error) {
	r, err := loadRules(cfg)
	if err != nil {
		return nil, err
	}
	cls, err := classifier.New(r)
	if err != nil {
		return nil, err
	}
	matcher, err := formatter.NewAnchorMatcher(r)
	if err != nil {
		return nil, err
	}
	policy, err := pipeline.ParseChartPolicy(cfg.Chart.OnFailure)
	if err != nil {
		return nil, err
	}
	deps := pipeline.Deps{
		Store:      store,
		Gate:       buildGate(cfg, r),
		Classifier: cls,
		Renderer:   chart.NewRenderer(chart.WithSize(cfg.Chart.Width, cfg.Chart.Height), chart.WithWorkers(cfg.Chart.Workers)),
		Formatter:  formatter.New(formatter.WithAnchorMatcher(matcher), formatter.WithEmphasis(r.Emphasis.Strong, r.Emphasis.Soft)),
		Logger:     log.Default(),
	}
	if drafter != nil {
		deps.Drafter = drafter
	}
	return pipeline.New(deps, pipeline.Options{ChartPolicy: policy, Verbose: cfg.Verbose})
}

func buildAgent(cfg config.Config) (*generator.Agent, error) {
	llm, err := buildLLM(cfg.LLM)
	if err != nil {
		return nil, err
	}
	return generator.NewAgent(llm)
}

func infof(cfg config.Config, format string, args ...interface{}) {
	if cfg.Verbose {
		log.Printf("[cli] "+format, args...)
	}
}
