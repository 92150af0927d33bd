// Package pipeline orchestrates the extraction pipeline end to end: batching,
// analyzer calls, parsing, aggregation, classification, and vault
// integration. Runs are short-lived units of work; a run aborted mid-batch
// keeps whatever earlier batches already integrated.
package pipeline

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/kestrelworks/grimoire/internal/analyzer"
	"github.com/kestrelworks/grimoire/internal/batch"
	"github.com/kestrelworks/grimoire/internal/classify"
	"github.com/kestrelworks/grimoire/internal/config"
	"github.com/kestrelworks/grimoire/internal/extract"
	"github.com/kestrelworks/grimoire/internal/scan"
	"github.com/kestrelworks/grimoire/internal/session"
	"github.com/kestrelworks/grimoire/internal/vault"
)

// Deps carries the pipeline's collaborators. Sessions may be nil for
// discovery-only use.
type Deps struct {
	Sessions *session.Store
	Gateway  analyzer.Gateway
	Vault    *vault.Store
	Config   *config.Config
	Log      *zap.Logger
}

// Report summarizes one pipeline run.
type Report struct {
	Batches      int  `json:"batches"`
	Entities     int  `json:"entities"`
	Services     int  `json:"services"`
	Patterns     int  `json:"patterns"`
	Knowledge    int  `json:"knowledge"`
	UsedFallback bool `json:"used_fallback"`
	Integrated   bool `json:"integrated"`
}

// Pipeline runs compaction and discovery against a fixed set of
// collaborators.
type Pipeline struct {
	deps Deps
}

// New builds a pipeline. A nil logger is replaced with a no-op.
func New(deps Deps) *Pipeline {
	if deps.Log == nil {
		deps.Log = zap.NewNop()
	}
	return &Pipeline{deps: deps}
}

// Compact reads the full session log, runs it through the pipeline, and
// integrates the result. An empty or missing session yields an empty report
// and no error.
func (p *Pipeline) Compact(ctx context.Context, sessionID string) (Report, error) {
	logText, err := p.deps.Sessions.ReadAll(sessionID)
	if err != nil {
		return Report{}, err
	}
	if logText == "" {
		return Report{}, nil
	}

	items := []batch.Item{{
		Path:     "session/" + sessionID + ".log",
		Category: "session",
		Content:  logText,
		Size:     len(logText),
	}}
	batches := batch.Prepare(items, p.deps.Config.BatchMaxChars)

	return p.run(ctx, batches, func() extract.Result {
		return fallbackFromSession(sessionID, logText)
	})
}

// Discover scans a project root and runs every candidate file through the
// pipeline.
func (p *Pipeline) Discover(ctx context.Context, projectRoot string) (Report, error) {
	files, facts, err := scan.Scan(projectRoot, p.deps.Config.ScanMaxFiles)
	if err != nil {
		return Report{}, err
	}
	if len(files) == 0 {
		return Report{}, nil
	}

	p.deps.Log.Info("discovery scan complete",
		zap.String("root", projectRoot),
		zap.Int("files", len(files)),
		zap.Strings("languages", facts.Languages))

	items := scan.Load(projectRoot, files)
	batches := batch.Prepare(items, p.deps.Config.BatchMaxChars)

	return p.run(ctx, batches, func() extract.Result {
		return fallbackFromFacts(facts)
	})
}

// run processes batches in order, aggregates, classifies, and integrates.
// Analyzer failures degrade to the fallback result, recorded once per run;
// remaining batches still get their chance unless the context is done. Only
// vault write failures surface as errors.
func (p *Pipeline) run(ctx context.Context, batches []batch.Batch, fallback func() extract.Result) (Report, error) {
	report := Report{Batches: len(batches)}
	pacing := time.Duration(p.deps.Config.BatchPacingMS) * time.Millisecond

	var results []extract.Result
	for i, b := range batches {
		if i > 0 && pacing > 0 {
			select {
			case <-ctx.Done():
			case <-time.After(pacing):
			}
		}
		if ctx.Err() != nil {
			p.deps.Log.Warn("run aborted", zap.Int("completed_batches", i))
			break
		}

		resp, err := p.deps.Gateway.Analyze(ctx, buildPrompt(b))
		if err != nil {
			p.deps.Log.Warn("analyzer call failed",
				zap.Int("batch", i),
				zap.Error(err))
			if !report.UsedFallback {
				results = append(results, fallback())
				report.UsedFallback = true
			}
			continue
		}

		parsed := extract.Parse(resp)
		if len(parsed.Unparsed) > 0 {
			p.deps.Log.Warn("analyzer response partially unparsed",
				zap.Int("batch", i),
				zap.Strings("diagnostics", parsed.Unparsed))
		}
		results = append(results, parsed)
	}

	unified := extract.Merge(results)
	if unified.IsEmpty() {
		return report, nil
	}

	counts, err := p.deps.Vault.Integrate(classify.Classify(unified))
	if err != nil {
		return report, err
	}

	report.Entities = counts.Entities
	report.Services = counts.Services
	report.Patterns = counts.Patterns
	report.Knowledge = counts.Knowledge
	report.Integrated = counts.Total() > 0

	p.deps.Log.Info("integration complete",
		zap.Int("entities", report.Entities),
		zap.Int("services", report.Services),
		zap.Int("patterns", report.Patterns),
		zap.Int("knowledge", report.Knowledge),
		zap.Bool("used_fallback", report.UsedFallback))

	return report, nil
}
