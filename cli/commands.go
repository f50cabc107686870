package cli

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"bughunter/apperr"
	"bughunter/appstate"
	"bughunter/logger"
	"bughunter/reporter"
	"bughunter/results"
	"bughunter/toolkit"
	"bughunter/web"
)

func newServeCommand(opts *options) *cobra.Command {
	var listen string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the web interface",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if listen != "" {
				opts.cfg.Server.Listen = listen
			}
			srv, err := web.New(opts.cfg, opts.actions())
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			fmt.Fprintf(cmd.OutOrStdout(), "Serving on http://%s\n", opts.cfg.Server.Listen)
			return srv.Run(ctx)
		},
	}
	cmd.Flags().StringVar(&listen, "listen", "", "address to listen on (overrides config)")
	return cmd
}

func newBugsCommand(opts *options) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "bugs",
		Short: "List the bugs that can be injected",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if asJSON {
				return writeJSONTo(out, appstate.Catalog)
			}
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			for _, section := range appstate.Catalog {
				fmt.Fprintf(tw, "%s (%s)\n", section.Title, section.ID)
				for _, bug := range section.Bugs {
					fmt.Fprintf(tw, "  %s\t%s\n", bug.ID, bug.Label)
				}
			}
			return tw.Flush()
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the catalog as JSON")
	return cmd
}

func newGenerateCommand(opts *options) *cobra.Command {
	var (
		bugs    []string
		pageURL string
		preview bool
	)
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate a page containing the selected bugs",
		Example: `  bughunter generate --bug broken_link --bug missing_alt
  bughunter generate --bug empty_button --preview`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st := appstate.New()
			if err := st.SetSelection(bugs); err != nil {
				return err
			}
			st.SetInputURL(pageURL)

			logger.Info("cli.generate: starting", zap.Strings("bugs", st.SelectedBugs))
			actions := opts.actions()
			if err := actions.Generate(cmd.Context(), st); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), st.GeneratedURL)

			if !preview {
				return nil
			}
			p, err := actions.Preview(cmd.Context(), st.GeneratedURL)
			if err != nil {
				return err
			}
			printPreview(cmd.OutOrStdout(), p)
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&bugs, "bug", nil, "bug id to inject (repeatable, see 'bughunter bugs')")
	cmd.Flags().StringVar(&pageURL, "url", "", "use this page instead of generating one")
	cmd.Flags().BoolVar(&preview, "preview", false, "fetch the page and count the elements bugs target")
	return cmd
}

type reportFlags struct {
	filter   string
	jsonOut  string
	snippets bool
}

func (f *reportFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.filter, "filter", "all", "which items to show: all, passed or failed")
	cmd.Flags().StringVar(&f.jsonOut, "json", "", "also write the outcome as JSON to this file")
	cmd.Flags().BoolVar(&f.snippets, "snippets", false, "show code snippets of items")
}

// show renders out and exports it when asked. A failed outcome is printed
// and reported as errOutcomeFailed.
func (f *reportFlags) show(cmd *cobra.Command, opts *options, out results.Outcome) error {
	mode, err := results.ParseMode(f.filter)
	if err != nil {
		return err
	}
	if f.jsonOut != "" {
		if err := reporter.WriteJSON(f.jsonOut, out); err != nil {
			return err
		}
	}
	if err := reporter.RenderOutcome(cmd.OutOrStdout(), out, mode, opts.renderOptions(f.snippets)); err != nil {
		return err
	}
	if out.Failed() {
		return errOutcomeFailed
	}
	return nil
}

func newTestHTMLCommand(opts *options) *cobra.Command {
	var (
		file       string
		remotePath string
		rf         reportFlags
	)
	cmd := &cobra.Command{
		Use:   "test-html",
		Short: "Test an HTML file with the service",
		Long: `Test an HTML file. With --file the local file is uploaded first; with
--path a file already on the service is tested. Without either, the last
generated page is tested.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if file != "" && remotePath != "" {
				return apperr.Validation("use either --file or --path, not both")
			}
			if _, err := results.ParseMode(rf.filter); err != nil {
				return err
			}

			st := appstate.New()
			actions := opts.actions()
			switch {
			case file != "":
				f, err := os.Open(file)
				if err != nil {
					return apperr.Wrap(apperr.ErrCodeNotFound, fmt.Sprintf("open %q", file), err)
				}
				defer f.Close()
				if err := actions.Upload(cmd.Context(), st, file, f); err != nil {
					return err
				}
			case remotePath != "":
				st.MarkUploaded(remotePath)
			}

			logger.Info("cli.test_html: starting", zap.String("file_path", st.HTMLTestPath()))
			return rf.show(cmd, opts, actions.TestHTML(cmd.Context(), st))
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "local HTML file to upload and test")
	cmd.Flags().StringVar(&remotePath, "path", "", "path of an HTML file on the service")
	rf.register(cmd)
	return cmd
}

func newTestURLCommand(opts *options) *cobra.Command {
	var rf reportFlags
	cmd := &cobra.Command{
		Use:   "test-url URL",
		Short: "Test a live URL with the service",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := results.ParseMode(rf.filter); err != nil {
				return err
			}
			st := appstate.New()
			st.SetInputURL(args[0])

			logger.Info("cli.test_url: starting", zap.String("url", st.InputURL))
			out, err := opts.actions().TestURL(cmd.Context(), st)
			if err != nil {
				return err
			}
			return rf.show(cmd, opts, out)
		},
	}
	rf.register(cmd)
	return cmd
}

func newReportCommand(opts *options) *cobra.Command {
	var rf reportFlags
	cmd := &cobra.Command{
		Use:   "report FILE",
		Short: "Summarize a saved result file",
		Long: `Summarize a result file written by --json, or a bare result document
as returned by the service. With --json the summary is written as JSON.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mode, err := results.ParseMode(rf.filter)
			if err != nil {
				return err
			}
			out, err := reporter.ReadOutcomeFile(args[0])
			if err != nil {
				return err
			}
			if rf.jsonOut != "" && !out.Failed() {
				rep, err := reporter.BuildReport(out, mode)
				if err != nil {
					return err
				}
				if err := reporter.WriteJSON(rf.jsonOut, rep); err != nil {
					return err
				}
			}
			if err := reporter.RenderOutcome(cmd.OutOrStdout(), out, mode, opts.renderOptions(rf.snippets)); err != nil {
				return err
			}
			if out.Failed() {
				return errOutcomeFailed
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&rf.filter, "filter", "all", "which items to show: all, passed or failed")
	cmd.Flags().StringVar(&rf.jsonOut, "json", "", "write the summary as JSON to this file")
	cmd.Flags().BoolVar(&rf.snippets, "snippets", false, "show code snippets of items")
	return cmd
}

func newFixCommand(opts *options) *cobra.Command {
	var req toolkit.FixRequest
	cmd := &cobra.Command{
		Use:   "fix",
		Short: "Ask the service how to fix a failing test",
		Example: `  bughunter fix --category links --item /about --test "check broken link" \
    --description "404 Not Found" --snippet '<a href="/about">About</a>'`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			suggestion, err := opts.actions().SuggestFix(cmd.Context(), req)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), suggestion)
			return nil
		},
	}
	cmd.Flags().StringVar(&req.Category, "category", "", "defect family of the item")
	cmd.Flags().StringVar(&req.Item, "item", "", "item identifier")
	cmd.Flags().StringVar(&req.Test, "test", "", "name of the failing test")
	cmd.Flags().StringVar(&req.Description, "description", "", "test result description")
	cmd.Flags().StringVar(&req.CodeSnippet, "snippet", "", "offending HTML fragment")
	return cmd
}

func printPreview(w io.Writer, p reporter.PagePreview) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	if p.Title != "" {
		fmt.Fprintf(tw, "Title\t%s\n", p.Title)
	}
	fmt.Fprintf(tw, "Links\t%d (%d without href)\n", p.Links, p.LinksNoHref)
	fmt.Fprintf(tw, "Buttons\t%d (%d empty)\n", p.Buttons, p.EmptyButtons)
	fmt.Fprintf(tw, "Forms\t%d\n", p.Forms)
	fmt.Fprintf(tw, "Images\t%d (%d without alt)\n", p.Images, p.ImagesNoAlt)
	fmt.Fprintf(tw, "Hidden\t%d\n", p.HiddenElements)
	_ = tw.Flush()
}

func writeJSONTo(w io.Writer, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(b))
	return err
}
