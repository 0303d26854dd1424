// Copyright 2026 Perl2J Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/perl2j/perl2j/internal/config"
	"github.com/perl2j/perl2j/internal/log"
	"github.com/perl2j/perl2j/internal/pipeline"
	"github.com/perl2j/perl2j/lang/java"
	"github.com/perl2j/perl2j/lang/java/writer"
	"github.com/perl2j/perl2j/lang/perl"
	"github.com/perl2j/perl2j/llm"
	"github.com/perl2j/perl2j/llm/agent"
	"github.com/perl2j/perl2j/llm/recipe"
	"github.com/perl2j/perl2j/mcp"
	"github.com/perl2j/perl2j/store"
	"github.com/perl2j/perl2j/version"
)

const Usage = `perl2j <Action> <Path> [Flags]
Action:
   parse        extract Perl sources under Path into a source-unit store
   convert      convert the units in a store (or Perl sources under Path) to Java
   check        run the structural assurance checks against a Java file
   mcp          run as a MCP server over the unit store in Path
   version      print the version of perl2j

Model configuration comes from the environment (or a .env file):
   API_TYPE, API_KEY, MODEL_NAME, BASE_URL
   MAX_FIX_ATTEMPTS, BACKEND_RETRIES, RATE_LIMIT_PER_SECOND, CONVERT_CONCURRENCY
   NEO4J_URI, NEO4J_USER, NEO4J_PASSWORD
`

func main() {
	flags := flag.NewFlagSet("perl2j", flag.ExitOnError)

	flagHelp := flags.Bool("h", false, "Show help message.")
	flagVerbose := flags.Bool("verbose", false, "Verbose mode.")
	flagOutput := flags.String("o", "", "Output path.")
	flagRecursive := flags.Bool("recursive", true, "Recurse into subdirectories when collecting Perl sources.")
	flagGraph := flags.Bool("neo4j", false, "Use the Neo4j graph store instead of the directory store.")
	flagRecipes := flags.String("recipes", "", "Directory of conversion recipes (overrides RECIPES_DIR).")
	flagJavac := flags.String("javac", "", "Path to javac for compile assurance (overrides JAVAC_PATH).")
	flagPom := flags.String("pom", "", "pom.xml template whose coordinates seed the generated pom.")
	flagEnhance := flags.Bool("enhance", false, "Polish passing drafts with a final enhancement pass.")

	flags.Usage = func() {
		fmt.Fprint(os.Stderr, Usage)
		fmt.Fprintf(os.Stderr, "Flags:\n")
		flags.PrintDefaults()
	}

	if len(os.Args) < 2 {
		flags.Usage()
		os.Exit(1)
	}
	action := strings.ToLower(os.Args[1])

	switch action {
	case "version":
		fmt.Fprintf(os.Stdout, "%s\n", version.Version)

	case "parse":
		uri := parseArgsAndFlags(flags, flagHelp, flagVerbose)
		cfg := loadConfig()
		runParse(cfg, uri, *flagOutput, *flagRecursive, *flagGraph)

	case "convert":
		uri := parseArgsAndFlags(flags, flagHelp, flagVerbose)
		cfg := loadConfig()
		if *flagRecipes != "" {
			cfg.RecipesDir = *flagRecipes
		}
		if *flagJavac != "" {
			cfg.JavacPath = *flagJavac
		}
		if *flagOutput != "" {
			cfg.OutputDir = *flagOutput
		}
		if *flagEnhance {
			cfg.EnhanceFinal = true
		}
		runConvert(cfg, uri, *flagGraph, *flagPom, *flagRecursive)

	case "check":
		uri := parseArgsAndFlags(flags, flagHelp, flagVerbose)
		runCheck(uri, *flagJavac)

	case "mcp":
		uri := parseArgsAndFlags(flags, flagHelp, flagVerbose)
		cfg := loadConfig()
		outDir := cfg.OutputDir
		if *flagOutput != "" {
			outDir = *flagOutput
		}
		svr := mcp.NewServer(mcp.ServerOptions{
			ServerName:    "perl2j",
			ServerVersion: version.Version,
			Verbose:       *flagVerbose,
			ConversionToolsOptions: mcp.ConversionToolsOptions{
				UnitsDir:  uri,
				OutputDir: outDir,
			},
		})
		if err := svr.ServeStdio(); err != nil {
			log.Error("Failed to run MCP server: %v\n", err)
			os.Exit(1)
		}

	default:
		fmt.Fprintf(os.Stderr, "unknown action: %s\n", action)
		flags.Usage()
		os.Exit(1)
	}
}

func parseArgsAndFlags(flags *flag.FlagSet, flagHelp *bool, flagVerbose *bool) (uri string) {
	if len(os.Args) < 3 {
		flags.Usage()
		os.Exit(1)
	}
	uri = os.Args[2]
	if len(os.Args) > 3 {
		flags.Parse(os.Args[3:])
	}

	if flagHelp != nil && *flagHelp {
		flags.Usage()
		os.Exit(0)
	}
	if flagVerbose != nil && *flagVerbose {
		log.SetLogLevel(log.DebugLevel)
	}
	return uri
}

func loadConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		log.Error("Bad configuration: %v\n", err)
		os.Exit(1)
	}
	return cfg
}

// runCtx is canceled on SIGINT/SIGTERM. In-flight backend calls finish;
// no new ones start.
func runCtx() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func runParse(cfg *config.Config, uri, out string, recursive, graph bool) {
	ctx, stop := runCtx()
	defer stop()

	units, failures, err := perl.ParseDir(ctx, uri, perl.ParseOptions{
		Recursive:   recursive,
		Concurrency: cfg.Concurrency,
	})
	if err != nil {
		log.Error("Failed to parse %s: %v\n", uri, err)
		os.Exit(1)
	}
	for _, f := range failures {
		log.Error("Unparsed file %s: %s\n", f.File, f.Err)
	}
	log.Info("Extracted %d source units from %s\n", len(units), uri)

	dest := openStore(ctx, cfg, out, graph)
	defer dest.Close(ctx)
	if err := dest.SaveSourceUnits(ctx, units); err != nil {
		log.Error("Failed to store units: %v\n", err)
		os.Exit(1)
	}
}

// openStore picks the unit store: Neo4j when requested, otherwise a
// directory store at dir ("parsed" when unset).
func openStore(ctx context.Context, cfg *config.Config, dir string, graph bool) store.UnitStore {
	if graph {
		gs, err := store.NewGraphStore(ctx, store.GraphConfig{
			URI:      cfg.Neo4jURI,
			User:     cfg.Neo4jUser,
			Password: cfg.Neo4jPassword,
			Database: cfg.Neo4jDatabase,
		})
		if err != nil {
			log.Error("Failed to open graph store: %v\n", err)
			os.Exit(1)
		}
		return gs
	}
	if dir == "" {
		dir = "parsed"
	}
	return store.NewDirStore(dir)
}

// unitSlice adapts already-parsed units to the controller's source
// contract, for converting straight from a Perl tree without a store.
type unitSlice []*perl.SourceUnit

func (s unitSlice) FetchSourceUnits(ctx context.Context) ([]*perl.SourceUnit, error) {
	return s, nil
}

func runConvert(cfg *config.Config, uri string, graph bool, pomTemplate string, recursive bool) {
	if err := cfg.ValidateModel(); err != nil {
		log.Error("Bad model configuration: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := runCtx()
	defer stop()

	source, cleanup := resolveSource(ctx, cfg, uri, graph, recursive)
	defer cleanup()

	recipes := recipe.NewRegistry()
	if cfg.RecipesDir != "" {
		recipes.SetLocalDir(cfg.RecipesDir)
	}
	if err := recipes.Initialize(); err != nil {
		log.Error("Failed to load recipes: %v\n", err)
		os.Exit(1)
	}
	if cfg.RecipesDir != "" {
		if err := recipes.Watch(); err != nil {
			log.Error("Recipe hot-reload unavailable: %v\n", err)
		}
	}

	var deep []java.DeepCheck
	syntax := java.NewSyntaxChecker()
	defer syntax.Close()
	deep = append(deep, syntax)
	if cfg.JavacPath != "" {
		compile, err := java.NewCompileChecker(cfg.JavacPath)
		if err != nil {
			log.Error("Compile assurance unavailable: %v\n", err)
			os.Exit(1)
		}
		deep = append(deep, compile)
	}
	checker := java.NewChecker(deep...)

	gate := llm.NewRateGate(cfg.RateLimitPerSecond)
	client := llm.NewClient(cfg.ModelConfig(), gate)
	sink := writer.NewWriter(writer.Options{OutDir: cfg.OutputDir, PomTemplate: pomTemplate})

	controller, err := pipeline.NewController(cfg.PipelineConfig(), pipeline.Deps{
		Source:    source,
		Analyzer:  agent.NewAnalyzer(client),
		Generator: agent.NewGenerator(client, recipes),
		Fixer:     agent.NewFixer(client),
		Enhancer:  agent.NewEnhancer(client),
		Checker:   checker,
		Artifacts: sink,
		Reports:   sink,
		Progress: func(done, total int, rec *pipeline.ConversionRecord) {
			log.Info("[%d/%d] %s: %s\n", done, total, rec.Identity, rec.Phase)
		},
	})
	if err != nil {
		log.Error("Failed to build pipeline: %v\n", err)
		os.Exit(1)
	}

	report, err := controller.Run(ctx)
	if err != nil {
		log.Error("Conversion run failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Fprint(os.Stdout, report.Summary())
}

// resolveSource picks where units come from: the graph store, a directory
// store holding units.json, or a fresh parse of a Perl source tree.
func resolveSource(ctx context.Context, cfg *config.Config, uri string, graph bool, recursive bool) (pipeline.UnitSource, func()) {
	if graph {
		gs, err := store.NewGraphStore(ctx, store.GraphConfig{
			URI:      cfg.Neo4jURI,
			User:     cfg.Neo4jUser,
			Password: cfg.Neo4jPassword,
			Database: cfg.Neo4jDatabase,
		})
		if err != nil {
			log.Error("Failed to open graph store: %v\n", err)
			os.Exit(1)
		}
		return gs, func() { gs.Close(ctx) }
	}

	ds := store.NewDirStore(uri)
	if _, err := os.Stat(ds.Path()); err == nil {
		log.Info("Converting units from store %s\n", ds.Path())
		return ds, func() {}
	}

	units, failures, err := perl.ParseDir(ctx, uri, perl.ParseOptions{
		Recursive:   recursive,
		Concurrency: cfg.Concurrency,
	})
	if err != nil {
		log.Error("Failed to parse %s: %v\n", uri, err)
		os.Exit(1)
	}
	for _, f := range failures {
		log.Error("Unparsed file %s: %s\n", f.File, f.Err)
	}
	if len(units) == 0 {
		log.Error("No Perl sources found under %s\n", uri)
		os.Exit(1)
	}
	log.Info("Converting %d freshly parsed units from %s\n", len(units), uri)
	return unitSlice(units), func() {}
}

func runCheck(uri, javacPath string) {
	data, err := os.ReadFile(uri)
	if err != nil {
		log.Error("Failed to read %s: %v\n", uri, err)
		os.Exit(1)
	}

	var deep []java.DeepCheck
	syntax := java.NewSyntaxChecker()
	defer syntax.Close()
	deep = append(deep, syntax)
	if javacPath != "" {
		compile, err := java.NewCompileChecker(javacPath)
		if err != nil {
			log.Error("Compile assurance unavailable: %v\n", err)
			os.Exit(1)
		}
		deep = append(deep, compile)
	}
	checker := java.NewChecker(deep...)

	code := string(data)
	issues := checker.Check(code)
	fmt.Fprintf(os.Stdout, "%s: score %d/10, %d issue(s)\n", uri, checker.Score(code), len(issues))
	for _, issue := range issues {
		fmt.Fprintf(os.Stdout, "  [%s] %s\n", issue.Kind, issue.Message)
	}
	if len(issues) > 0 {
		os.Exit(1)
	}
}
