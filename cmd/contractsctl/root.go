package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/joseph-ayodele/contracts-tracker/internal/async"
	"github.com/joseph-ayodele/contracts-tracker/internal/common"
	"github.com/joseph-ayodele/contracts-tracker/internal/extract"
	"github.com/joseph-ayodele/contracts-tracker/internal/llm"
	"github.com/joseph-ayodele/contracts-tracker/internal/llm/openai"
	"github.com/joseph-ayodele/contracts-tracker/internal/pipeline"
	repo "github.com/joseph-ayodele/contracts-tracker/internal/repository"
	"github.com/joseph-ayodele/contracts-tracker/internal/storage"
)

// app carries the persistent flags shared by every command.
type app struct {
	envFile string
	output  string
	verbose bool

	cfg    *common.Config
	logger *slog.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "contractsctl",
		Short: "Score, extract and manage contracts from the command line",
		Long: `contractsctl scores extraction records, runs PDF text and field extraction,
ingests directories of contracts into the database and exports results to XLSX.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			switch a.output {
			case "json", "yaml":
			default:
				return fmt.Errorf("--output must be json or yaml, got %q", a.output)
			}
			cfg, err := common.LoadConfig(a.envFile)
			if err != nil {
				return err
			}
			a.cfg = cfg
			level := cfg.LogLevel
			if a.verbose {
				level = "debug"
			}
			a.logger = common.NewLogger(cmd.ErrOrStderr(), level, true)
			return nil
		},
	}
	root.PersistentFlags().StringVar(&a.envFile, "env", ".env", "optional .env file")
	root.PersistentFlags().StringVarP(&a.output, "output", "o", "json", "output format: json or yaml")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "enable debug logging")

	root.AddCommand(
		newScoreCmd(a),
		newExtractCmd(a),
		newParseCmd(a),
		newIngestCmd(a),
		newWatchCmd(a),
		newExportCmd(a),
		newDBHealthCmd(a),
	)
	return root
}

// write renders v in the selected format. YAML output goes through JSON
// first so both formats use the same field names.
func (a *app) write(w io.Writer, v any) error {
	if a.output == "json" {
		data, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(w, "%s\n", data)
		return err
	}
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return err
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return err
	}
	return enc.Close()
}

func (a *app) extractor() *extract.PDFExtractor {
	return extract.NewPDFExtractor(extract.ConfigFrom(a.cfg.Extract), a.logger)
}

// parser uses the configured model when an API key is present and the
// regex fallback otherwise.
func (a *app) parser() *llm.Parser {
	var fields llm.FieldExtractor
	if a.cfg.LLM.APIKey != "" {
		fields = llm.NewGuard(openai.NewClient(openai.ConfigFrom(a.cfg.LLM), a.logger), llm.GuardConfig{
			Name:           "openai",
			RequestsPerSec: a.cfg.LLM.RequestsPerSec,
			Burst:          a.cfg.LLM.Burst,
			MaxFailures:    a.cfg.LLM.BreakerFailures,
			OpenFor:        a.cfg.LLM.BreakerOpenFor,
		}, a.logger)
	} else {
		a.logger.Warn("OPENAI_API_KEY not set; using regex fallback extraction")
	}
	var opts []llm.ParserOption
	if !a.cfg.LLM.FallbackOnFailed {
		opts = append(opts, llm.WithoutFallback())
	}
	return llm.NewParser(fields, a.logger, opts...)
}

// env is an opened database plus the services built on it.
type env struct {
	contracts repo.ContractRepository
	store     *storage.Local
	health    func(ctx context.Context) error
	close     func()
}

func (a *app) openEnv(ctx context.Context) (*env, error) {
	db := a.cfg.Database
	if db.DSN == "" {
		return nil, fmt.Errorf("DB_URL is required")
	}
	drv, pool, err := repo.Open(ctx, repo.Config{
		Driver:           db.Driver,
		DSN:              db.DSN,
		MaxConns:         db.MaxConns,
		MinConns:         db.MinConns,
		MaxConnLifetime:  db.MaxConnLifetime,
		MaxConnIdleTime:  db.MaxConnIdleTime,
		DialTimeout:      db.DialTimeout,
		StatementTimeout: db.StatementTimeout,
	}, a.logger)
	if err != nil {
		return nil, err
	}
	closeDB := func() { repo.Close(drv, pool, a.logger) }
	if err := repo.Migrate(ctx, drv, a.logger); err != nil {
		closeDB()
		return nil, err
	}
	store, err := storage.NewLocal(a.cfg.Storage.UploadDir, a.cfg.Storage.MaxFileSize, a.logger)
	if err != nil {
		closeDB()
		return nil, err
	}
	return &env{
		contracts: repo.NewContractRepository(drv, a.logger),
		store:     store,
		health: func(ctx context.Context) error {
			return repo.HealthCheck(ctx, drv, 5*time.Second, a.logger)
		},
		close: closeDB,
	}, nil
}

// localQueue processes contracts in this process; Shutdown waits for the
// queued work to finish.
func (a *app) localQueue(e *env) *async.ProcessorQueue {
	proc := pipeline.NewProcessor(e.contracts, a.extractor(), a.parser(), a.logger,
		pipeline.WithValidator(extract.Validate),
	)
	return async.NewProcessorQueue(proc, a.logger,
		async.WithWorkers(a.cfg.Queue.Workers),
		async.WithQueueSize(a.cfg.Queue.Size),
		async.WithProcessTimeout(a.cfg.Queue.Timeout),
	)
}

func readInput(path string, stdin io.Reader) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(stdin)
	}
	return os.ReadFile(path)
}
