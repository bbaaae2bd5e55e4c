package cli

import (
	"errors"
	"fmt"
	"mime"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/spf13/cobra"

	"issuecompass/internal/app"
	"issuecompass/internal/bootstrap"
	"issuecompass/internal/export"
	"issuecompass/internal/logging"
	"issuecompass/internal/model"
)

var (
	askAttach       string
	askLink         string
	askLanguage     string
	askLinesPerPage int
)

var askCmd = &cobra.Command{
	Use:   "ask [issue]",
	Short: "Analyse one issue and print the detailed report",
	Long: `Sends the issue to the configured model, then fetches details for every
suggested item one at a time, pausing between requests and backing off when
the model reports a rate limit. Progress goes to stderr, the report to stdout.`,
	Args: cobra.ExactArgs(1),
	RunE: runAsk,
}

func init() {
	askCmd.Flags().StringVar(&askAttach, "attach", "", "path of a file to send along (max 5 MiB)")
	askCmd.Flags().StringVar(&askLink, "link", "", "URL to send along")
	askCmd.Flags().StringVarP(&askLanguage, "language", "l", "", "answer language (defaults to llm.language)")
	askCmd.Flags().IntVarP(&askLinesPerPage, "lines-per-page", "n", defaultLinesPerPage, "report lines per page")
	askCmd.MarkFlagsMutuallyExclusive("attach", "link")
	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger, closer, err := logging.NewWithWriter(cfg.Log, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer closer.Close()

	wcfg := bootstrap.WorkspaceConfig(cfg, logger)
	wcfg.Clock = newClock()
	ws := app.NewWorkspace(newAnalysisClient(cfg), wcfg)
	defer ws.Close()

	if err := stageFromFlags(ws, cfg.Attachment.MaxBytes); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	progress, unsubscribe := ws.Progress(64)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for p := range progress {
			fmt.Fprintf(cmd.ErrOrStderr(), "[%d/%d] %s\n", p.Completed, p.Total, p.Status)
		}
	}()

	_, err = ws.SubmitQuery(ctx, args[0], askLanguage)
	if err != nil {
		unsubscribe()
		<-done
		return fmt.Errorf("analysis failed: %w", err)
	}
	idle := make(chan struct{})
	go func() {
		defer close(idle)
		ws.WaitIdle()
	}()
	select {
	case <-idle:
	case <-ctx.Done():
		ws.Close()
		unsubscribe()
		<-done
		return ctx.Err()
	}
	unsubscribe()
	<-done

	doc, ok := ws.Current()
	if !ok {
		return errors.New("no result produced")
	}
	pages, err := export.Report(doc, askLinesPerPage)
	if err != nil {
		return err
	}
	for _, page := range pages {
		if len(pages) > 1 {
			cmd.Printf("--- page %d/%d ---\n", page.Number, len(pages))
		}
		for _, line := range page.Lines {
			cmd.Println(line)
		}
	}
	return nil
}

func stageFromFlags(ws *app.Workspace, maxBytes int) error {
	switch {
	case askAttach != "":
		info, err := os.Stat(askAttach)
		if err != nil {
			return fmt.Errorf("read attachment failed: %w", err)
		}
		if maxBytes > 0 && info.Size() > int64(maxBytes) {
			return fmt.Errorf("%w: %s is %d bytes", model.ErrPayloadTooLarge, askAttach, info.Size())
		}
		data, err := os.ReadFile(askAttach)
		if err != nil {
			return fmt.Errorf("read attachment failed: %w", err)
		}
		return ws.StageAttachment(model.NewFileAttachment(filepath.Base(askAttach), detectMime(askAttach, data), data))
	case askLink != "":
		return ws.StageAttachment(model.NewLinkAttachment(askLink))
	}
	return nil
}

func detectMime(path string, data []byte) string {
	if byExt := mime.TypeByExtension(filepath.Ext(path)); byExt != "" {
		return byExt
	}
	return http.DetectContentType(data)
}
