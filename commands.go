package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"auto_dialogue_document/config"
	"auto_dialogue_document/export"
	"auto_dialogue_document/formatter"
	"auto_dialogue_document/gate"
	"auto_dialogue_document/generator"
	"auto_dialogue_document/pipeline"
	"auto_dialogue_document/server"
)

func serveCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			store, err := buildStore(cfg.Session)
			if err != nil {
				return err
			}
			defer store.Close()
			agent, err := buildAgent(cfg)
			if err != nil {
				return err
			}
			pipe, err := buildPipeline(cfg, store, agent)
			if err != nil {
				return err
			}
			srv, err := server.New(pipe, store, server.WithLogger(log.Default(), cfg.Verbose))
			if err != nil {
				return err
			}

			listen := cfg.ServerAddr
			if addr != "" {
				listen = addr
			}
			if listen == "" {
				listen = ":8080"
			}
			httpSrv := &http.Server{Addr: listen, Handler: srv.Routes(), ReadHeaderTimeout: 10 * time.Second}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			go func() {
				<-ctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				_ = httpSrv.Shutdown(shutdownCtx)
			}()

			log.Printf("Starting web server on %s (llm=%s, sessions=%s)", listen, cfg.LLM.Provider, cfg.Session.Backend)
			if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "http listen address (overrides config.server_addr)")
	return cmd
}

func evaluateCmd() *cobra.Command {
	var (
		transcriptPath string
		round, last    int
	)
	cmd := &cobra.Command{
		Use:   "evaluate",
		Short: "Run the quality gate over a transcript",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			r, err := loadRules(cfg)
			if err != nil {
				return err
			}
			transcript, err := os.ReadFile(transcriptPath)
			if err != nil {
				return err
			}
			d := buildGate(cfg, r).Evaluate(string(transcript), round, last)
			infof(cfg, "evaluated %s round=%d last=%d", transcriptPath, round, last)
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(d)
		},
	}
	cmd.Flags().StringVar(&transcriptPath, "transcript", "", "path to a transcript with one \"Speaker: text\" line per utterance")
	cmd.Flags().IntVar(&round, "round", 0, "current round number")
	cmd.Flags().IntVar(&last, "last", 0, "round of the last generated document")
	_ = cmd.MarkFlagRequired("transcript")
	return cmd
}

type outputFlags struct {
	out string
	pdf string
}

func (o *outputFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&o.out, "out", "o", "", "write the HTML document here (default stdout)")
	cmd.Flags().StringVar(&o.pdf, "pdf", "", "also print the document to this PDF file (needs chrome)")
}

func (o *outputFlags) write(ctx context.Context, cmd *cobra.Command, cfg config.Config, res pipeline.Result) error {
	doc := res.Document
	for _, title := range res.SkippedCharts {
		log.Printf("[cli] chart %q skipped", title)
	}
	if o.out == "" {
		if _, err := fmt.Fprint(cmd.OutOrStdout(), doc.HTML); err != nil {
			return err
		}
	} else {
		if err := os.WriteFile(o.out, []byte(doc.HTML), 0o644); err != nil {
			return err
		}
		infof(cfg, "wrote %s (%d charts, %d inserted, %d appended)", o.out, res.Charts, doc.Inserted, doc.Appended)
	}
	if o.pdf == "" {
		return nil
	}
	exp, err := export.New().Export(ctx, *doc, export.FormatPDF)
	if err != nil {
		return err
	}
	if err := os.WriteFile(o.pdf, exp.Data, 0o644); err != nil {
		return err
	}
	infof(cfg, "wrote %s", o.pdf)
	return nil
}

func renderCmd() *cobra.Command {
	var (
		draftPath      string
		transcriptPath string
		authors        []string
		out            outputFlags
	)
	cmd := &cobra.Command{
		Use:   "render",
		Short: "Format a Markdown draft into a chart-illustrated HTML document",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			md, err := os.ReadFile(draftPath)
			if err != nil {
				return err
			}
			parsed, err := generator.ParseMarkdown(string(md))
			if err != nil {
				return err
			}
			draft := formatter.Draft{Title: parsed.Title, Authors: authors, Category: parsed.Category, Body: parsed.Body}

			var conversation string
			if transcriptPath != "" {
				data, err := os.ReadFile(transcriptPath)
				if err != nil {
					return err
				}
				conversation = string(data)
				if len(authors) == 0 {
					draft.Authors = gate.Snapshot{Utterances: gate.ParseTranscript(conversation)}.Speakers()
				}
			}

			pipe, err := buildPipeline(cfg, nil, nil)
			if err != nil {
				return err
			}
			res, err := pipe.Synthesize(cmd.Context(), draft, conversation)
			if err != nil {
				return err
			}
			return out.write(cmd.Context(), cmd, cfg, res)
		},
	}
	cmd.Flags().StringVar(&draftPath, "draft", "", "path to the Markdown draft")
	cmd.Flags().StringVar(&transcriptPath, "transcript", "", "optional transcript used as classification context")
	cmd.Flags().StringSliceVar(&authors, "author", nil, "document author (repeatable)")
	out.register(cmd)
	_ = cmd.MarkFlagRequired("draft")
	return cmd
}

func draftCmd() *cobra.Command {
	var (
		transcriptPath string
		round, last    int
		force          bool
		out            outputFlags
	)
	cmd := &cobra.Command{
		Use:   "draft",
		Short: "Draft a document from a transcript with the configured LLM",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			data, err := os.ReadFile(transcriptPath)
			if err != nil {
				return err
			}
			if round < 0 {
				round = last + cfg.Gate.CooldownRounds
			}
			snap := gate.Snapshot{Utterances: gate.ParseTranscript(string(data)), Round: round, LastDocumentRound: last}

			r, err := loadRules(cfg)
			if err != nil {
				return err
			}
			if d := buildGate(cfg, r).EvaluateSnapshot(snap); !d.ShouldCreate && !force {
				return fmt.Errorf("gate rejected transcript: %s (use --force to draft anyway)", d.Reason)
			}

			agent, err := buildAgent(cfg)
			if err != nil {
				return err
			}
			log.Printf("[cli] drafting from %s with %s", transcriptPath, cfg.LLM.Provider)
			draft, err := agent.Draft(cmd.Context(), snap)
			if err != nil {
				return err
			}
			pipe, err := buildPipeline(cfg, nil, nil)
			if err != nil {
				return err
			}
			res, err := pipe.Synthesize(cmd.Context(), draft, snap.Transcript())
			if err != nil {
				return err
			}
			return out.write(cmd.Context(), cmd, cfg, res)
		},
	}
	cmd.Flags().StringVar(&transcriptPath, "transcript", "", "path to the transcript")
	cmd.Flags().IntVar(&round, "round", -1, "current round (default: first round past the cooldown)")
	cmd.Flags().IntVar(&last, "last", 0, "round of the last generated document")
	cmd.Flags().BoolVar(&force, "force", false, "draft even when the quality gate rejects the transcript")
	out.register(cmd)
	_ = cmd.MarkFlagRequired("transcript")
	return cmd
}
