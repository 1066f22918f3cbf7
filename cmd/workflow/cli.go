package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/alecthomas/kong"
	"github.com/goliatone/go-logger/glog"
	"gopkg.in/yaml.v3"

	workflow "github.com/shiningyao/imixs-workflow"
	"github.com/shiningyao/imixs-workflow/kernel"
	"github.com/shiningyao/imixs-workflow/model"
	"github.com/shiningyao/imixs-workflow/plugins"
)

type cli struct {
	LogLevel string `help:"Log level (trace, debug, info, warn, error)." default:"warn" name:"log-level"`

	Run      runCmd      `cmd:"" help:"Process a record and print the result."`
	Models   modelsCmd   `cmd:"" help:"List the models found in a directory."`
	Validate validateCmd `cmd:"" help:"Check every model file in a directory."`
}

type env struct {
	stdout io.Writer
	logger kernel.Logger
}

type runCmd struct {
	Models   string `help:"Directory holding model files." required:""`
	Record   string `help:"Record file (.yaml, .yml or .json)." required:""`
	Caller   string `help:"Caller name recorded by the audit plugin." default:"anonymous"`
	Activity int    `help:"Override the record's $activityid."`
	Format   string `help:"Output format." enum:"yaml,json" default:"yaml"`
	NoAudit  bool   `help:"Skip the audit plugin." name:"no-audit"`
}

func (c *runCmd) Run(e *env) error {
	reg := model.NewRegistry()
	if _, err := model.LoadDir(reg, c.Models); err != nil {
		return err
	}

	rec, err := readRecord(c.Record)
	if err != nil {
		return err
	}
	if c.Activity > 0 {
		rec.ReplaceItemValue(workflow.ItemActivityID, c.Activity)
	}

	chain := []workflow.Plugin{plugins.NewRule(nil)}
	if !c.NoAudit {
		chain = append(chain, plugins.NewAudit())
	}

	k, err := kernel.New(reg,
		kernel.WithLogger(e.logger),
		kernel.WithCaller(workflow.StaticCaller(c.Caller)),
		kernel.WithPlugins(chain...),
	)
	if err != nil {
		return err
	}

	out, err := k.Process(context.Background(), rec)
	if err != nil {
		return err
	}
	return writeRecord(e.stdout, out, c.Format)
}

type modelsCmd struct {
	Models string `help:"Directory holding model files." required:""`
}

func (c *modelsCmd) Run(e *env) error {
	reg := model.NewRegistry()
	_, loadErr := model.LoadDir(reg, c.Models)

	for _, version := range reg.Versions() {
		m, err := reg.GetModel(context.Background(), version)
		if err != nil {
			return err
		}
		activities := 0
		for _, t := range m.Tasks() {
			activities += len(m.ActivitiesOf(t.ID))
		}
		fmt.Fprintf(e.stdout, "%s\t%d tasks\t%d activities", version, len(m.Tasks()), activities)
		if d := m.Description(); d != "" {
			fmt.Fprintf(e.stdout, "\t%s", firstLine(d))
		}
		fmt.Fprintln(e.stdout)
	}
	return loadErr
}

type validateCmd struct {
	Models string `help:"Directory holding model files." required:""`
}

func (c *validateCmd) Run(e *env) error {
	versions, err := model.LoadDir(model.NewRegistry(), c.Models)
	if err != nil {
		return err
	}
	fmt.Fprintf(e.stdout, "%d models valid: %s\n", len(versions), strings.Join(versions, ", "))
	return nil
}

func execute(args []string, stdout, stderr io.Writer) int {
	var root cli
	exitCode := -1
	parser, err := kong.New(&root,
		kong.Name("workflow"),
		kong.Description("Run records through BPMN-style process models."),
		kong.Writers(stdout, stderr),
		kong.Exit(func(code int) { exitCode = code }),
	)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 2
	}

	ctx, err := parser.Parse(args)
	if exitCode >= 0 {
		return exitCode
	}
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 2
	}

	logger := kernel.NewGlogLogger(glog.NewLogger(
		glog.WithWriter(stderr),
		glog.WithLoggerTypeJSON(),
		glog.WithLevel(root.LogLevel),
	))

	if err := ctx.Run(&env{stdout: stdout, logger: logger}); err != nil {
		reportError(stderr, err)
		return 1
	}
	return 0
}

// reportError writes err to w as a single RPC error envelope line.
func reportError(w io.Writer, err error) {
	if encErr := json.NewEncoder(w).Encode(workflow.RPCErrorForError(err)); encErr != nil {
		fmt.Fprintf(w, "workflow: %v\n", err)
	}
}

func readRecord(path string) (*workflow.Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read record: %w", err)
	}

	rec := workflow.NewRecord()
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		err = json.Unmarshal(data, rec)
	default:
		err = yaml.Unmarshal(data, rec)
	}
	if err != nil {
		return nil, fmt.Errorf("decode record %s: %w", path, err)
	}
	return rec, nil
}

func writeRecord(w io.Writer, rec *workflow.Record, format string) error {
	if format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(rec)
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(rec); err != nil {
		return err
	}
	return enc.Close()
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return strings.TrimSpace(s[:i])
	}
	return strings.TrimSpace(s)
}
