package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/go-playground/validator/v10"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"

	"github.com/jmylchreest/labpool/internal/logger"
	"github.com/jmylchreest/labpool/internal/output"
	"github.com/jmylchreest/labpool/internal/version"
	"github.com/jmylchreest/labpool/pkg/elab"
	"github.com/jmylchreest/labpool/pkg/label"
	"github.com/jmylchreest/labpool/pkg/labpool"
	"github.com/jmylchreest/labpool/pkg/source"
)

var poolCmd = &cobra.Command{
	Use:   "pool",
	Short: "Pool labeled values into a workbook",
	Long: `Find each label in every section and write one row per section.

Exactly one source is used: an eLabJournal experiment (--experiment), local
HTML files or directories (--file) or URLs (--url). Labels come from --labels,
--labels-file, or an interactive prompt when stdin is a terminal.

Values are reduced to their numeric characters unless the label is exempt
(default: "Cell ID"). A label that cannot be found leaves an empty cell.

Examples:
  labpool pool -e 12345 -l "Actual PCV, Cell ID" -o pooled.xlsx
  labpool pool -e 12345 --labels-file labels.yaml --upload
  labpool pool -f day1.html -f day2.html -l "Actual PCV" --format yaml`,
	RunE: runPool,
}

func init() {
	rootCmd.AddCommand(poolCmd)

	flags := poolCmd.Flags()

	// Labels
	flags.StringP("labels", "l", "", "comma separated field labels")
	flags.String("labels-file", "", "YAML file with a list of labels (or a labels: key)")
	flags.StringSlice("exempt", []string{"Cell ID"}, "labels whose values are kept verbatim")

	// Sources
	flags.StringP("experiment", "e", "", "eLabJournal experiment ID")
	flags.StringSliceP("file", "f", nil, "HTML file, directory or glob (can be repeated)")
	flags.StringSliceP("url", "u", nil, "URL to fetch (can be repeated)")
	flags.String("follow", "", "CSS selector of section links on each --url index page")
	flags.String("follow-pattern", "", "regex the followed links must match")
	flags.String("section-type", elab.SectionProcedure, "eLabJournal section type to pool")
	flags.String("base-url", "", "eLabJournal API base URL")
	flags.StringP("api-key", "k", "", "eLabJournal API key (or use env var)")
	flags.Duration("timeout", 30*time.Second, "request timeout")

	// Extraction
	flags.String("header-column", "SectionHeader", "name of the first column")
	flags.String("max-document-size", "0", "skip sections larger than this (e.g., 500KB, 0=unlimited)")
	flags.String("marker-selector", "", "CSS selector of the value marker inside a cell (default span)")
	flags.String("cell-selector", "", "CSS selector of cells inside a row (default td, e.g. \"th, td\")")

	// Output
	flags.StringP("output", "o", "", "output file (default: stdout)")
	flags.String("format", "xlsx", "output format: xlsx, json, jsonl, yaml")
	flags.String("sheet-name", "Pooled Data", "workbook sheet name")
	flags.Bool("upload", false, "upload the workbook to the experiment as a new section")

	// Bind to viper
	_ = viper.BindPFlag("base_url", flags.Lookup("base-url"))
	_ = viper.BindPFlag("api_key", flags.Lookup("api-key"))
	_ = viper.BindPFlag("section_type", flags.Lookup("section-type"))
	_ = viper.BindPFlag("exempt", flags.Lookup("exempt"))
	_ = viper.BindPFlag("header_column", flags.Lookup("header-column"))
	_ = viper.BindPFlag("sheet_name", flags.Lookup("sheet-name"))
	_ = viper.BindPFlag("timeout", flags.Lookup("timeout"))
	_ = viper.BindPFlag("max_document_size", flags.Lookup("max-document-size"))
}

// poolSettings are the validated CLI settings of one run.
type poolSettings struct {
	BaseURL     string `validate:"omitempty,url"`
	Experiment  string `validate:"required_with=Upload"`
	Files       []string
	URLs        []string `validate:"dive,url"`
	SectionType string   `validate:"required"`
	Upload      bool
	Format      output.Format
	Output      string
}

func (s poolSettings) sourceCount() int {
	n := 0
	if s.Experiment != "" {
		n++
	}
	if len(s.Files) > 0 {
		n++
	}
	if len(s.URLs) > 0 {
		n++
	}
	return n
}

func runPool(cmd *cobra.Command, _ []string) error {
	if err := logger.Init(logger.Options{
		Debug: viper.GetBool("debug"),
		Quiet: viper.GetBool("quiet"),
		Level: viper.GetString("log_level"),
		JSON:  viper.GetBool("log_json"),
	}); err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger.Debug("pool command starting", "version", version.String())

	flags := cmd.Flags()
	experiment, _ := flags.GetString("experiment")
	files, _ := flags.GetStringSlice("file")
	urls, _ := flags.GetStringSlice("url")
	upload, _ := flags.GetBool("upload")
	outPath, _ := flags.GetString("output")
	formatStr, _ := flags.GetString("format")

	format, err := output.ParseFormat(formatStr)
	if err != nil {
		return err
	}

	settings := poolSettings{
		BaseURL:     viper.GetString("base_url"),
		Experiment:  experiment,
		Files:       files,
		URLs:        urls,
		SectionType: viper.GetString("section_type"),
		Upload:      upload,
		Format:      format,
		Output:      outPath,
	}
	if err := validator.New().Struct(settings); err != nil {
		return fmt.Errorf("invalid options: %w", err)
	}
	if n := settings.sourceCount(); n != 1 {
		return fmt.Errorf("exactly one of --experiment, --file or --url is required (got %d)", n)
	}

	labels, err := resolveLabels(cmd)
	if err != nil {
		return err
	}
	logger.Debug("labels resolved", "labels", labels)

	maxSize, err := parseSize(viper.GetString("max_document_size"))
	if err != nil {
		return err
	}

	timeout := viper.GetDuration("timeout")

	var client *elab.Client
	if settings.Experiment != "" {
		client, err = elab.New(elab.Config{
			BaseURL:   settings.BaseURL,
			APIKey:    viper.GetString("api_key"),
			Timeout:   timeout,
			UserAgent: "labpool/" + version.String(),
		})
		if err != nil {
			return err
		}
	}

	var src source.Source
	switch {
	case settings.Experiment != "":
		src = source.NewElab(client, source.ElabConfig{
			ExperimentID: settings.Experiment,
			SectionType:  settings.SectionType,
		})
	case len(settings.Files) > 0:
		src = source.NewFiles(settings.Files...)
	default:
		follow, _ := flags.GetString("follow")
		followPattern, _ := flags.GetString("follow-pattern")
		src = source.NewURLs(source.URLConfig{
			Timeout:       timeout,
			Follow:        follow,
			FollowPattern: followPattern,
		}, settings.URLs...)
	}

	opts := []labpool.Option{
		labpool.WithSource(src),
		labpool.WithExempt(viper.GetStringSlice("exempt")...),
		labpool.WithHeaderColumn(viper.GetString("header_column")),
		labpool.WithSheetName(viper.GetString("sheet_name")),
		labpool.WithMaxDocumentSize(maxSize),
	}
	if sel, _ := flags.GetString("marker-selector"); sel != "" {
		opts = append(opts, labpool.WithMarkerSelector(sel))
	}
	if sel, _ := flags.GetString("cell-selector"); sel != "" {
		opts = append(opts, labpool.WithCellSelector(sel))
	}
	if settings.Upload {
		opts = append(opts, labpool.WithPublisher(elab.NewPublisher(client, settings.Experiment)))
	}

	p, err := labpool.New(opts...)
	if err != nil {
		return err
	}
	defer func() { _ = p.Close() }()

	// Binary output is not written to a terminal.
	writeOutput := !settings.Upload || settings.Output != ""
	if writeOutput && settings.Output == "" && format.Binary() && term.IsTerminal(int(os.Stdout.Fd())) {
		return fmt.Errorf("refusing to write %s to a terminal; use -o or --format json", format)
	}

	logInfo("Pooling %d label(s) from %s", len(labels), p.Source())

	res, err := p.Run(ctx, labels)
	if res != nil && res.Dataset != nil {
		reportFailures(res.Dataset.Failures)
	}
	if err != nil {
		switch {
		case errors.Is(err, labpool.ErrEmptyResult):
			return fmt.Errorf("every section failed to load; nothing was written")
		case errors.Is(err, labpool.ErrPersistence) && res != nil && res.ArtifactID != "":
			return fmt.Errorf("%w (section %s was created)", err, res.ArtifactID)
		}
		return err
	}

	if writeOutput {
		if err := writeResult(res, format, settings.Output); err != nil {
			return err
		}
	}

	ds := res.Dataset
	logInfo("Pooled %d section(s), %d value(s) found, %d skipped", len(ds.Rows), ds.FoundCount(), len(ds.Failures))
	if settings.Output != "" {
		logInfo("Wrote %s (%s)", settings.Output, format)
	}
	if res.ArtifactID != "" {
		logInfo("Uploaded %q as section %s", res.Artifact, res.ArtifactID)
	}
	return nil
}

// resolveLabels reads labels from flags, a file, or an interactive prompt, in
// that order.
func resolveLabels(cmd *cobra.Command) ([]string, error) {
	if raw, _ := cmd.Flags().GetString("labels"); strings.TrimSpace(raw) != "" {
		return label.ParseList(raw), nil
	}
	if path, _ := cmd.Flags().GetString("labels-file"); path != "" {
		return readLabelsFile(path)
	}
	labels, err := promptLabels(os.Stdin, cmd.ErrOrStderr())
	if err != nil {
		return nil, err
	}
	if len(labels) == 0 {
		return nil, labpool.ErrNoLabels
	}
	return labels, nil
}

// parseSize parses a human size such as 500KB. Empty or 0 means unlimited.
func parseSize(s string) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" || s == "0" {
		return 0, nil
	}
	n, err := humanize.ParseBytes(s)
	if err != nil {
		return 0, fmt.Errorf("invalid max-document-size %q: %w", s, err)
	}
	return int(n), nil
}

func reportFailures(failures []labpool.RetrievalError) {
	if len(failures) == 0 {
		return
	}
	logInfo("Skipped %d section(s):", len(failures))
	for _, f := range failures {
		logInfo("  - %s (%s): %v", f.Header, f.DocumentID, f.Err)
	}
}

func writeResult(res *labpool.Result, format output.Format, path string) error {
	var out io.Writer = os.Stdout
	if path != "" {
		file, err := os.Create(path) //#nosec G304 -- CLI tool writes to user-specified output file
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer func() { _ = file.Close() }()
		out = file
	}

	w, err := output.NewWriter(out, format)
	if err != nil {
		return err
	}

	if format.Binary() {
		err = w.Write(res.Workbook)
	} else {
		err = w.WriteAll(output.Records(res.Dataset))
	}
	if err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return w.Close()
}
