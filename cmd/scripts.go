package cmd

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/spf13/cobra"

	"github.com/sw33tLie/jsenv/internal/utils"
	"github.com/sw33tLie/jsenv/pkg/errs"
	"github.com/sw33tLie/jsenv/pkg/scripts"
	"github.com/sw33tLie/jsenv/pkg/whttp"
)

var scriptsCmd = &cobra.Command{
	Use:   "scripts <page.html|url>",
	Short: "Compile and run the text/babel and text/jsx scripts of an HTML page in document order",
	Long: `Scans the page for <script type="text/babel"> and <script type="text/jsx"> tags,
loads external ones concurrently and compiles and runs every script in document order.

With --exec html (default) the compiled scripts are appended to <head> and the
page is written out. With --exec vm they run in an embedded JavaScript VM.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		execMode, _ := cmd.Flags().GetString("exec")
		sameSite, _ := cmd.Flags().GetBool("same-site")
		timeout, _ := cmd.Flags().GetDuration("timeout")

		ctx := cmd.Context()
		if timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}

		page, base, err := loadPage(ctx, args[0])
		if err != nil {
			return err
		}
		doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page))
		if err != nil {
			return err
		}
		found := scripts.Scan(doc, base)
		utils.Log.Debugf("found %d scripts in %s", len(found), args[0])

		t, _, err := newTransformer()
		if err != nil {
			return err
		}
		fetcher := scripts.NewHTTPFetcher()
		if sameSite && (base.Scheme == "http" || base.Scheme == "https") {
			fetcher.Origin = base
			fetcher.SameSite = true
		}

		var exec scripts.Executor
		var injector *scripts.HeadInjector
		switch execMode {
		case "html":
			injector = scripts.NewHeadInjector(doc)
			exec = injector
		case "vm":
			exec = scripts.NewVMExecutor(utils.Log)
		default:
			return fmt.Errorf("unknown --exec %q, expected html or vm", execMode)
		}

		p := scripts.NewPipeline(t, fetcher, exec, utils.Log)
		if presets := configList("scripts.presets"); len(presets) > 0 {
			p.Presets = presets
		}
		if plugins := configList("scripts.plugins"); len(plugins) > 0 {
			p.Plugins = plugins
		}

		report, runErr := p.Run(ctx, found)
		if report != nil {
			utils.Log.Infof("%d scripts found, %d executed, %d failed", report.Found, len(report.Executed), len(report.Failures))
			for _, f := range report.Failures {
				utils.Log.Warnf("%s: %v", f.Name, f.Err)
			}
		}
		if runErr != nil {
			return runErr
		}
		if injector != nil {
			out, err := injector.Render()
			if err != nil {
				return err
			}
			return writeOutput(cmd, out)
		}
		return nil
	},
}

// loadPage reads a local file or downloads a page. The returned URL is the
// base for resolving script sources.
func loadPage(ctx context.Context, arg string) ([]byte, *url.URL, error) {
	if strings.HasPrefix(arg, "http://") || strings.HasPrefix(arg, "https://") {
		base, err := url.Parse(arg)
		if err != nil {
			return nil, nil, err
		}
		res, err := whttp.SendHTTPRequest(ctx, &whttp.WHTTPReq{URL: arg, Method: http.MethodGet}, whttp.NewClient(2, 30*time.Second))
		if err != nil {
			return nil, nil, &errs.NetworkError{URL: arg, Err: err}
		}
		if res.StatusCode != http.StatusOK {
			return nil, nil, &errs.NetworkError{URL: arg, Status: res.StatusCode}
		}
		return res.Body, base, nil
	}
	abs, err := filepath.Abs(arg)
	if err != nil {
		return nil, nil, err
	}
	page, err := os.ReadFile(abs)
	if err != nil {
		return nil, nil, err
	}
	return page, &url.URL{Scheme: "file", Path: filepath.ToSlash(abs)}, nil
}

func init() {
	rootCmd.AddCommand(scriptsCmd)
	scriptsCmd.Flags().String("exec", "html", "How to run compiled scripts: html or vm")
	scriptsCmd.Flags().Bool("same-site", false, "Only load external scripts from the page's site")
	scriptsCmd.Flags().Duration("timeout", time.Minute, "Give up on scripts still loading after this long (0 waits forever)")
	scriptsCmd.Flags().StringP("out", "o", "", "Where to write the page in html mode (default: stdout)")
}
