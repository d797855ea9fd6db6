package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"chain_of_density/config"
	"chain_of_density/dataset"
	"chain_of_density/generator"
	"chain_of_density/publisher"
	"chain_of_density/server"
	"chain_of_density/store"
)

var (
	configPath string
	verbose    bool

	cfg    config.Config
	logger *slog.Logger

	rootCmd = &cobra.Command{
		Use:           "cod",
		Short:         "Chain of Density summaries of articles",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			loaded, err := config.Load(configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			cfg = loaded
			logger = newLogger(cfg.LogLevel, verbose)
			slog.SetDefault(logger)
			return nil
		},
	}

	summarizeCmd = &cobra.Command{
		Use:   "summarize [file]",
		Short: "Densify one article read from a file or stdin",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runSummarize,
	}

	distilCmd = &cobra.Command{
		Use:   "distil",
		Short: "Summarize a CSV window of articles into a fine-tuning JSONL file",
		RunE:  runDistil,
	}

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		RunE:  runServe,
	}
)

var (
	summarizeSteps  int
	summarizeJSON   bool
	summarizeHTML   string
	summarizeRecord bool

	distilInput  string
	distilOutput string
	distilOffset int
	distilLimit  int
	distilSteps  int

	serveAddr string
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config.yaml (defaults apply when empty)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logs")

	summarizeCmd.Flags().IntVar(&summarizeSteps, "steps", 0, "number of rewrites (overrides chain.steps)")
	summarizeCmd.Flags().BoolVar(&summarizeJSON, "json", false, "print the whole chain as JSON")
	summarizeCmd.Flags().StringVar(&summarizeHTML, "html", "", "write an HTML report to this path")
	summarizeCmd.Flags().BoolVar(&summarizeRecord, "record", false, "append the final summary to output.jsonl")

	distilCmd.Flags().StringVar(&distilInput, "input", "", "CSV dataset (overrides dataset.path)")
	distilCmd.Flags().StringVarP(&distilOutput, "output", "o", "", "JSONL output (overrides output.jsonl)")
	distilCmd.Flags().IntVar(&distilOffset, "offset", -1, "first row (overrides dataset.offset)")
	distilCmd.Flags().IntVar(&distilLimit, "limit", -1, "number of rows (overrides dataset.limit)")
	distilCmd.Flags().IntVar(&distilSteps, "steps", 0, "number of rewrites (overrides chain.steps)")

	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (overrides server_addr)")

	rootCmd.AddCommand(summarizeCmd, distilCmd, serveCmd)
}

func runSummarize(cmd *cobra.Command, args []string) error {
	text, err := readArticle(cmd.InOrStdin(), args)
	if err != nil {
		return err
	}
	var opts []generator.Option
	if summarizeRecord {
		rec, err := publisher.OpenJSONL(cfg.Output.JSONL)
		if err != nil {
			return err
		}
		defer rec.Close()
		opts = append(opts, generator.WithRecorder(rec))
	}
	d, err := buildDensifier(cfg, logger, opts...)
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	chain, err := d.Summarize(ctx, generator.NewArticle(text), summarizeSteps)
	if chain != nil && cfg.Output.StoreDir != "" {
		recorded := summarizeRecord && err == nil
		if serr := saveChain(context.WithoutCancel(ctx), chain, recorded); serr != nil {
			logger.Warn("store chain", "error", serr)
		}
	}
	if chain != nil && summarizeHTML != "" {
		if herr := writeHTML(summarizeHTML, chain); herr != nil {
			logger.Warn("write report", "error", herr)
		}
	}
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if summarizeJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(chain)
	}
	last, _ := chain.Last()
	_, err = fmt.Fprintln(out, last.Summary.Text)
	return err
}

func runDistil(cmd *cobra.Command, _ []string) error {
	path := firstNonEmpty(distilInput, cfg.Dataset.Path)
	if path == "" {
		return errors.New("dataset path missing; pass --input or set dataset.path")
	}
	w := dataset.Window{Offset: cfg.Dataset.Offset, Limit: cfg.Dataset.Limit}
	if distilOffset >= 0 {
		w.Offset = distilOffset
	}
	if distilLimit >= 0 {
		w.Limit = distilLimit
	}
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	articles, err := dataset.ReadFile(ctx, path, w)
	if err != nil {
		return err
	}
	st, err := openStore(cfg.Output.StoreDir)
	if err != nil {
		return err
	}
	defer st.Close()
	rec, err := publisher.OpenJSONL(firstNonEmpty(distilOutput, cfg.Output.JSONL))
	if err != nil {
		return err
	}
	defer rec.Close()
	d, err := buildDensifier(cfg, logger, generator.WithRecorder(rec))
	if err != nil {
		return err
	}

	var report publisher.DensityReport
	failed, err := distilArticles(ctx, d, st, rec, articles, w.Offset, &report)
	if err != nil {
		return err
	}

	if _, err := report.WriteTo(cmd.OutOrStdout()); err != nil {
		return err
	}
	logger.Info("distil finished", "articles", len(articles), "recorded", rec.Count(), "failed", failed)
	if failed > 0 {
		return fmt.Errorf("%d of %d articles failed", failed, len(articles))
	}
	return nil
}

// distilArticles records one fine-tuning example per article. Articles
// already recorded are skipped; a finished chain in the store that was never
// recorded is recorded again instead of regenerated.
func distilArticles(ctx context.Context, d *generator.Densifier, st *store.Store, rec generator.Recorder,
	articles []generator.Article, offset int, report *publisher.DensityReport) (int, error) {
	failed := 0
	for i, article := range articles {
		log := logger.With("row", offset+i, "article", article.ID)
		done, err := st.Recorded(ctx, article.ID)
		if err != nil {
			return failed, err
		}
		if done {
			log.Info("already distilled, skipping")
			continue
		}

		prev, err := st.ByArticle(ctx, article.ID)
		switch {
		case err == nil:
			last, _ := prev.Last()
			text, cerr := generator.ClipArticle(article.Text, cfg.Chain.MaxArticleChars)
			if cerr != nil {
				return failed, cerr
			}
			if rerr := rec.Record(ctx, generator.Article{ID: article.ID, Text: text, Reference: article.Reference}, last.Summary); rerr != nil {
				failed++
				log.Error("record stored chain", "chain", prev.ID, "error", rerr)
				continue
			}
			log.Info("recorded stored chain", "chain", prev.ID)
			if merr := st.MarkRecorded(ctx, article.ID, prev.ID); merr != nil {
				return failed, merr
			}
			report.Add(last.Summary.Text)
			continue
		case !errors.Is(err, store.ErrNotFound):
			return failed, err
		}

		chain, err := d.Summarize(ctx, article, distilSteps)
		if chain != nil {
			if perr := st.Put(context.WithoutCancel(ctx), chain); perr != nil {
				log.Warn("store chain", "error", perr)
			}
		}
		if err != nil {
			if ctx.Err() != nil {
				return failed, err
			}
			failed++
			log.Error("article failed", "error", err)
			continue
		}
		if merr := st.MarkRecorded(ctx, article.ID, chain.ID); merr != nil {
			return failed, merr
		}
		last, _ := chain.Last()
		report.Add(last.Summary.Text)
	}
	return failed, nil
}

func runServe(cmd *cobra.Command, _ []string) error {
	st, err := openStore(cfg.Output.StoreDir)
	if err != nil {
		return err
	}
	defer st.Close()
	d, err := buildDensifier(cfg, logger)
	if err != nil {
		return err
	}
	srv, err := server.New(d, st, logger)
	if err != nil {
		return err
	}
	listen := firstNonEmpty(serveAddr, cfg.ServerAddr, ":8080")

	httpSrv := &http.Server{Addr: listen, Handler: srv.Routes()}
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	errc := make(chan error, 1)
	go func() { errc <- httpSrv.ListenAndServe() }()
	logger.Info("starting web server", "addr", listen)

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		logger.Info("shutting down")
		return httpSrv.Shutdown(context.Background())
	}
}

func readArticle(stdin io.Reader, args []string) (string, error) {
	var (
		data []byte
		err  error
	)
	if len(args) == 1 && args[0] != "-" {
		data, err = os.ReadFile(args[0])
	} else {
		data, err = io.ReadAll(stdin)
	}
	if err != nil {
		return "", err
	}
	text := strings.TrimSpace(string(data))
	if text == "" {
		return "", errors.New("article is empty")
	}
	return text, nil
}

func openStore(dir string) (*store.Store, error) {
	if dir == "" {
		return store.OpenInMemory()
	}
	return store.Open(dir)
}

func saveChain(ctx context.Context, chain *generator.Chain, recorded bool) error {
	st, err := store.Open(cfg.Output.StoreDir)
	if err != nil {
		return err
	}
	defer st.Close()
	if err := st.Put(ctx, chain); err != nil {
		return err
	}
	if !recorded {
		return nil
	}
	return st.MarkRecorded(ctx, chain.Article.ID, chain.ID)
}

func writeHTML(path string, chain *generator.Chain) error {
	html, err := publisher.RenderHTML(chain)
	if err != nil {
		return err
	}
	return os.WriteFile(path, []byte(html), 0o644)
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
